// Package pipeline runs the intake, generate and optimize flows: build a
// prompt, call the completion service, parse the reply and validate it.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/llm"
	"github.com/service-agreement/backend/internal/metrics"
	"github.com/service-agreement/backend/internal/schema"
	"github.com/service-agreement/backend/internal/storage/models"
	"github.com/service-agreement/backend/pkg/logger"
	"github.com/service-agreement/backend/pkg/utils"
)

const (
	FlowIntake   = "intake"
	FlowGenerate = "generate"
	FlowOptimize = "optimize"
)

// CompletionCache stores completion text that already passed validation.
type CompletionCache interface {
	GetCompletion(ctx context.Context, key string) (string, bool, error)
	SetCompletion(ctx context.Context, key, content string) error
}

// RunRecorder persists one row per flow call.
type RunRecorder interface {
	InsertRun(ctx context.Context, run *models.GenerationRun) error
}

type Config struct {
	IntakeModel     string
	GenerateModel   string
	Timeout         time.Duration
	GenerateTimeout time.Duration
}

type Orchestrator struct {
	completer llm.Completer
	validator *schema.Validator
	cfg       Config
	cache     CompletionCache
	runs      RunRecorder
	newTrace  func() string
}

type Option func(*Orchestrator)

func WithCache(c CompletionCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

func WithRunRecorder(r RunRecorder) Option {
	return func(o *Orchestrator) { o.runs = r }
}

func WithValidator(v *schema.Validator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

func NewOrchestrator(completer llm.Completer, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 120 * time.Second
	}
	o := &Orchestrator{
		completer: completer,
		validator: schema.Default(),
		cfg:       cfg,
		newTrace:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// flow describes one instantiation of the shared run skeleton.
type flow[T any] struct {
	name     string
	model    string
	timeout  time.Duration
	system   string
	user     string
	kbIDs    []string
	validate func(raw []byte) (T, error)
}

// Result is a validated flow value with the trace id of the call.
type Result[T any] struct {
	Value   T
	TraceID string
	Model   string
	Usage   llm.Usage
	Cached  bool
}

// run executes the prompt, completion, parse and validate steps and records
// the outcome. Every error it returns is a *FlowError.
func run[T any](ctx context.Context, o *Orchestrator, f flow[T], traceID string) (Result[T], error) {
	log := logger.WithTrace(traceID, f.name)
	start := time.Now()
	rec := &models.GenerationRun{
		TraceID:   traceID,
		Flow:      f.name,
		Model:     f.model,
		KbItemIDs: f.kbIDs,
		CreatedAt: start.UTC(),
	}

	fail := func(err error, raw string) (Result[T], error) {
		kind := KindOf(err)
		rec.Status = models.RunStatusFailed
		rec.ErrorKind = kind
		rec.ErrorMessage = err.Error()
		rec.RawContent = raw
		o.finish(ctx, log, rec, start)
		metrics.FlowTotal.WithLabelValues(f.name, kind).Inc()
		return Result[T]{}, &FlowError{Flow: f.name, TraceID: traceID, Err: err}
	}

	log.Debug("Prompt prepared", zap.String("model", f.model), zap.Int("prompt_chars", len(f.user)))

	cacheKey, err := utils.Fingerprint(f.name, f.model, f.system, f.user)
	if err != nil {
		return fail(err, "")
	}

	content, cached := o.cachedCompletion(ctx, log, f.name, cacheKey)
	var usage llm.Usage
	model := f.model
	if !cached {
		resp, err := o.completer.Complete(ctx, llm.CompletionRequest{
			Model:        f.model,
			SystemPrompt: f.system,
			UserPrompt:   f.user,
			Timeout:      f.timeout,
		})
		if err != nil {
			var ue *UpstreamError
			if !errors.As(err, &ue) {
				err = &UpstreamError{Err: err}
			}
			log.Error("Completion call failed", zap.Error(err))
			return fail(err, "")
		}
		content, usage = resp.Content, resp.Usage
		if resp.Model != "" {
			model = resp.Model
		}
		metrics.LLMTokensUsed.WithLabelValues(model, "prompt").Add(float64(usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(model, "completion").Add(float64(usage.CompletionTokens))
	}
	log.Debug("Completion received", zap.Bool("cached", cached), zap.Int("content_chars", len(content)))

	var value T
	switch out := Interpret(content, f.validate).(type) {
	case Parsed[T]:
		value = out.Value
	case Rejected[T]:
		log.Error("Completion failed validation",
			zap.String("kind", schema.KindOf(out.Err)),
			zap.Error(out.Err),
			zap.String("content", content),
		)
		return fail(out.Err, content)
	case Malformed[T]:
		log.Error("Completion is not valid JSON", zap.Error(out.Err), zap.String("content", out.Raw))
		return fail(&MalformedCompletionError{Raw: out.Raw, Err: out.Err}, out.Raw)
	default:
		return fail(errors.New("unhandled completion outcome"), content)
	}

	if !cached && o.cache != nil {
		if err := o.cache.SetCompletion(ctx, cacheKey, content); err != nil {
			log.Warn("Failed to cache completion", zap.Error(err))
		}
	}

	rec.Status = models.RunStatusOK
	rec.Model = model
	rec.Cached = cached
	rec.PromptTokens = usage.PromptTokens
	rec.CompletionTokens = usage.CompletionTokens
	o.finish(ctx, log, rec, start)
	metrics.FlowTotal.WithLabelValues(f.name, "ok").Inc()

	return Result[T]{Value: value, TraceID: traceID, Model: model, Usage: usage, Cached: cached}, nil
}

func (o *Orchestrator) cachedCompletion(ctx context.Context, log *zap.Logger, flowName, key string) (string, bool) {
	if o.cache == nil {
		return "", false
	}
	content, ok, err := o.cache.GetCompletion(ctx, key)
	if err != nil {
		log.Warn("Completion cache lookup failed", zap.Error(err))
		return "", false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues(flowName).Inc()
		return "", false
	}
	metrics.CacheHits.WithLabelValues(flowName).Inc()
	return content, true
}

func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, rec *models.GenerationRun, start time.Time) {
	elapsed := time.Since(start)
	rec.LatencyMS = int(elapsed.Milliseconds())
	metrics.FlowDuration.WithLabelValues(rec.Flow).Observe(elapsed.Seconds())

	log.Info("Flow finished",
		zap.String("status", rec.Status),
		zap.String("error_kind", rec.ErrorKind),
		zap.Int("latency_ms", rec.LatencyMS),
	)

	if o.runs == nil {
		return
	}
	// The run row is written even if the caller has gone away.
	if err := o.runs.InsertRun(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("Failed to record run", zap.Error(err))
	}
}

// reject wraps an error raised before any network call.
func (o *Orchestrator) reject(flowName, traceID string, err error) error {
	metrics.FlowTotal.WithLabelValues(flowName, KindOf(err)).Inc()
	logger.WithTrace(traceID, flowName).Warn("Request rejected", zap.Error(err))
	return &FlowError{Flow: flowName, TraceID: traceID, Err: err}
}
