package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/api"
	"github.com/service-agreement/backend/internal/api/handlers"
	"github.com/service-agreement/backend/internal/cache/redis"
	"github.com/service-agreement/backend/internal/kb"
	"github.com/service-agreement/backend/internal/llm"
	"github.com/service-agreement/backend/internal/metrics"
	"github.com/service-agreement/backend/internal/middleware/ratelimit"
	"github.com/service-agreement/backend/internal/pipeline"
	"github.com/service-agreement/backend/internal/retrieval"
	"github.com/service-agreement/backend/internal/storage/sqlite"
	"github.com/service-agreement/backend/pkg/circuitbreaker"
	"github.com/service-agreement/backend/pkg/config"
	appLogger "github.com/service-agreement/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Service Agreement API Server")
	metrics.Init()

	ctx := context.Background()

	source, err := newKbSource(ctx, cfg.KB)
	if err != nil {
		appLogger.Fatal("Failed to create KB source", zap.Error(err))
	}
	store := kb.NewStore(source, nil)
	ranker := retrieval.NewRanker(store)
	appLogger.Info("KB ready", zap.String("source", source.Name()), zap.Int("items", len(store.Load(ctx))))

	llmClient := llm.NewClient(llm.Options{
		APIBase:     cfg.LLM.APIBase,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout(),
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metrics.CircuitState.WithLabelValues(name).Set(float64(to))
		},
	})

	var opts []pipeline.Option
	checks := map[string]handlers.Pinger{}

	if cfg.Cache.Enabled {
		cache, err := redis.NewClient(ctx, redis.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      time.Duration(cfg.Cache.TTLSec) * time.Second,
		})
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cache.Close()

		if _, err := cache.InvalidateCompletions(ctx); err != nil {
			appLogger.Warn("Failed to invalidate completion cache", zap.Error(err))
		}
		opts = append(opts, pipeline.WithCache(cache))
		checks["redis"] = cache
	}

	var runStore handlers.RunStore
	if cfg.Audit.Enabled {
		sqliteClient, err := sqlite.NewClient(cfg.Audit.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		if err := sqliteClient.InitSchema(); err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}
		opts = append(opts, pipeline.WithRunRecorder(sqliteClient))
		runStore = sqliteClient
		checks["sqlite"] = sqliteClient
	}

	orchestrator := pipeline.NewOrchestrator(llmClient, pipeline.Config{
		IntakeModel:     cfg.LLM.IntakeModel,
		GenerateModel:   cfg.LLM.GenerateModel,
		Timeout:         cfg.LLM.Timeout(),
		GenerateTimeout: cfg.LLM.GenerateTimeout(),
	}, opts...)

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	api.Register(app, api.Deps{
		Flows:          orchestrator,
		Store:          store,
		Ranker:         ranker,
		Selector:       ranker,
		KbLimit:        cfg.KB.Limit,
		Runs:           runStore,
		Checks:         checks,
		MockAllow:      cfg.Download.MockAllow,
		RateLimiter:    limiter,
		Development:    cfg.Logging.Level == "debug",
		RequestLogging: true,
		Logger:         appLogger.GetLogger(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Server shutdown incomplete", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func newKbSource(ctx context.Context, cfg config.KBConfig) (kb.Source, error) {
	switch cfg.Source {
	case "", "dir":
		return kb.NewDirSource(cfg.Dir), nil
	case "s3":
		src, err := kb.NewS3Source(ctx, kb.S3Config{
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
			Region: cfg.S3Region,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown kb source %q", cfg.Source)
	}
}
