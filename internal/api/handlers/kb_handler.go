package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/retrieval"
	"github.com/service-agreement/backend/pkg/logger"
)

type KbStore interface {
	Load(ctx context.Context) []contract.KbItem
	Get(ctx context.Context, id string) (contract.KbItem, bool)
}

type KbRanker interface {
	Rank(ctx context.Context, brief contract.Brief, limit int, extraTopics []string) []retrieval.Scored
}

type KbHandler struct {
	store   KbStore
	ranker  KbRanker
	kbLimit int
}

func NewKbHandler(store KbStore, ranker KbRanker, kbLimit int) *KbHandler {
	return &KbHandler{store: store, ranker: ranker, kbLimit: kbLimit}
}

func (h *KbHandler) ListItems(c *fiber.Ctx) error {
	items := h.store.Load(c.UserContext())
	return respData(c, fiber.Map{"items": items, "total": len(items)})
}

func (h *KbHandler) GetItem(c *fiber.Ctx) error {
	id := c.Params("id")
	item, ok := h.store.Get(c.UserContext(), id)
	if !ok {
		return respErr(c, fiber.StatusNotFound, "not_found", "KB item not found", fiber.Map{"id": id})
	}
	return respData(c, item)
}

type selectBody struct {
	Brief       *contract.Brief `json:"brief"`
	Limit       int             `json:"limit"`
	ExtraTopics []string        `json:"extra_topics"`
}

// Select ranks the KB for a brief and returns the scored items, best first.
func (h *KbHandler) Select(c *fiber.Ctx) error {
	var body selectBody
	if err := c.BodyParser(&body); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}
	if body.Brief == nil {
		return badRequest(c, "brief is required")
	}
	if body.Limit < 0 || body.Limit > 50 {
		return badRequest(c, "limit must be between 0 and 50")
	}

	limit := body.Limit
	if limit == 0 {
		limit = h.kbLimit
	}
	scored := h.ranker.Rank(c.UserContext(), *body.Brief, limit, body.ExtraTopics)
	return respData(c, fiber.Map{"items": scored})
}
