// Package api assembles the HTTP and websocket routes.
package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/api/handlers"
	"github.com/service-agreement/backend/internal/metrics"
	"github.com/service-agreement/backend/internal/middleware/ratelimit"
	"github.com/service-agreement/backend/internal/middleware/security"
	"github.com/service-agreement/backend/internal/middleware/validation"
	"github.com/service-agreement/backend/internal/pipeline"
)

type Deps struct {
	Flows    handlers.Pipeline
	Store    handlers.KbStore
	Ranker   handlers.KbRanker
	Selector pipeline.KbSelector
	KbLimit  int
	// Runs is nil when the run log is disabled.
	Runs      handlers.RunStore
	Checks    map[string]handlers.Pinger
	MockAllow bool

	RateLimiter    *ratelimit.RateLimiter
	AllowedOrigins []string
	Development    bool
	RequestLogging bool
	Logger         *zap.Logger
}

func Register(app *fiber.App, d Deps) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	app.Use(recover.New())
	if d.RequestLogging {
		app.Use(fiberlogger.New())
	}
	origins := "*"
	if len(d.AllowedOrigins) > 0 {
		origins = strings.Join(d.AllowedOrigins, ", ")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: d.AllowedOrigins,
		IsDevelopment:  d.Development,
	}))

	contractHandler := handlers.NewContractHandler(d.Flows, d.Selector, d.KbLimit)
	kbHandler := handlers.NewKbHandler(d.Store, d.Ranker, d.KbLimit)
	downloadHandler := handlers.NewDownloadHandler(d.MockAllow)
	healthHandler := handlers.NewHealthHandler(d.Store, d.Checks)
	wsHandler := handlers.NewWebSocketHandler(d.Flows, d.Selector, d.KbLimit)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	contractGroup := api.Group("/contract")
	if d.RateLimiter != nil {
		contractGroup.Use(d.RateLimiter.Middleware())
	}
	contractGroup.Use(validation.Middleware(validation.Config{Logger: d.Logger}))
	contractGroup.Post("/intake", contractHandler.Intake)
	contractGroup.Post("/generate", contractHandler.Generate)
	contractGroup.Post("/optimize", contractHandler.Optimize)

	api.Get("/kb/items", kbHandler.ListItems)
	api.Get("/kb/items/:id", kbHandler.GetItem)
	api.Post("/kb/select", validation.Middleware(validation.Config{Logger: d.Logger}), kbHandler.Select)

	api.Get("/download", downloadHandler.Download)
	api.Get("/download/permission", downloadHandler.Permission)

	if d.Runs != nil {
		runsHandler := handlers.NewRunsHandler(d.Runs)
		api.Get("/runs", runsHandler.ListRuns)
		api.Get("/runs/stats", runsHandler.Stats)
		api.Get("/runs/:trace_id", runsHandler.GetRun)
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/session", websocket.New(wsHandler.HandleConnection))
}
