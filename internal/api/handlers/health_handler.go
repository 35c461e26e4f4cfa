package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store  KbStore
	checks map[string]Pinger
}

func NewHealthHandler(store KbStore, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{store: store, checks: checks}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Ready reports the KB size and the state of each optional dependency. An
// empty KB is still ready; generation then runs without references.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	deps := fiber.Map{}
	ready := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			deps[name] = err.Error()
			ready = false
			continue
		}
		deps[name] = "ok"
	}

	status, code := "ready", fiber.StatusOK
	if !ready {
		status, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"kb_items": len(h.store.Load(ctx)),
		"deps":     deps,
	})
}
