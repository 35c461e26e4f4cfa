package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FlowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agreement_flow_duration_seconds",
			Help:    "Pipeline flow duration in seconds, completion call included",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		},
		[]string{"flow"},
	)

	FlowTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agreement_flow_total",
			Help: "Total pipeline flow calls by outcome",
		},
		[]string{"flow", "outcome"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agreement_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agreement_circuit_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	KBItemsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agreement_kb_items_loaded",
			Help: "Enabled KB items held in memory",
		},
	)

	KBSelectionSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agreement_kb_selection_size",
			Help:    "Number of KB items selected per brief",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
		},
	)

	RetrievalHitRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agreement_retrieval_hit_rate",
			Help: "Share of evaluation cases with at least one expected item selected",
		},
		[]string{"dataset"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agreement_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agreement_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agreement_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(FlowDuration)
		prometheus.MustRegister(FlowTotal)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(CircuitState)
		prometheus.MustRegister(KBItemsLoaded)
		prometheus.MustRegister(KBSelectionSize)
		prometheus.MustRegister(RetrievalHitRate)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(RateLimited)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
