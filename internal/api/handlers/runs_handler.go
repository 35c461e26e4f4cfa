package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/storage/models"
	"github.com/service-agreement/backend/internal/storage/sqlite"
	"github.com/service-agreement/backend/pkg/logger"
)

type RunStore interface {
	GetRun(ctx context.Context, traceID string) (*models.GenerationRun, error)
	ListRuns(ctx context.Context, flow string, limit int) ([]models.GenerationRun, error)
	Stats(ctx context.Context) ([]models.RunStats, error)
}

// RunsHandler exposes the diagnostic run log by trace id.
type RunsHandler struct {
	store RunStore
}

func NewRunsHandler(store RunStore) *RunsHandler {
	return &RunsHandler{store: store}
}

func (h *RunsHandler) GetRun(c *fiber.Ctx) error {
	traceID := c.Params("trace_id")
	run, err := h.store.GetRun(c.UserContext(), traceID)
	if errors.Is(err, sqlite.ErrRunNotFound) {
		return respErr(c, fiber.StatusNotFound, "not_found", "run not found", fiber.Map{"trace_id": traceID})
	}
	if err != nil {
		logger.Error("Failed to get run", zap.String("trace_id", traceID), zap.Error(err))
		return respErr(c, fiber.StatusInternalServerError, "internal", "failed to get run", nil)
	}
	return respData(c, run)
}

func (h *RunsHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		return badRequest(c, "limit must be between 1 and 500")
	}
	runs, err := h.store.ListRuns(c.UserContext(), c.Query("flow"), limit)
	if err != nil {
		logger.Error("Failed to list runs", zap.Error(err))
		return respErr(c, fiber.StatusInternalServerError, "internal", "failed to list runs", nil)
	}
	return respData(c, fiber.Map{"runs": runs})
}

func (h *RunsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.store.Stats(c.UserContext())
	if err != nil {
		logger.Error("Failed to compute run stats", zap.Error(err))
		return respErr(c, fiber.StatusInternalServerError, "internal", "failed to compute run stats", nil)
	}
	return respData(c, fiber.Map{"flows": stats})
}
