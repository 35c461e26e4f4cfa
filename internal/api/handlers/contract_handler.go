package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/pipeline"
	"github.com/service-agreement/backend/pkg/logger"
)

// Pipeline is the set of flows the contract routes call.
type Pipeline interface {
	pipeline.Flows
	Optimize(ctx context.Context, req pipeline.OptimizeRequest) (pipeline.OptimizeResponse, error)
}

type ContractHandler struct {
	flows    Pipeline
	selector pipeline.KbSelector
	kbLimit  int
}

func NewContractHandler(flows Pipeline, selector pipeline.KbSelector, kbLimit int) *ContractHandler {
	return &ContractHandler{flows: flows, selector: selector, kbLimit: kbLimit}
}

func (h *ContractHandler) Intake(c *fiber.Ctx) error {
	var req pipeline.IntakeRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.flows.Intake(c.UserContext(), req)
	if err != nil {
		return h.fail(c, "intake", err)
	}
	return respData(c, resp)
}

type generateBody struct {
	pipeline.GenerateRequest
	ExtraTopics []string `json:"extra_topics,omitempty"`
}

type generateResult struct {
	Contract contract.Document `json:"contract"`
	KbItems  []contract.KbItem `json:"kb_items"`
	TraceID  string            `json:"trace_id"`
}

// Generate drafts a contract. When the body has no kb_items the ranker picks
// them; an explicit empty list means no KB at all.
func (h *ContractHandler) Generate(c *fiber.Ctx) error {
	var body generateBody
	if err := c.BodyParser(&body); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	req := body.GenerateRequest
	if req.KbItems == nil && req.Brief != nil && h.selector != nil {
		req.KbItems = h.selector.Select(c.UserContext(), *req.Brief, h.kbLimit, body.ExtraTopics)
	}
	if req.KbItems == nil {
		req.KbItems = []contract.KbItem{}
	}

	resp, err := h.flows.Generate(c.UserContext(), req)
	if err != nil {
		return h.fail(c, "generate", err)
	}
	return respData(c, generateResult{Contract: resp.Contract, KbItems: req.KbItems, TraceID: resp.TraceID})
}

type optimizeBody struct {
	pipeline.OptimizeRequest
	// Contract, when present, is the full current document; the rewrite is
	// merged into it and returned.
	Contract *contract.Document `json:"contract,omitempty"`
}

func (h *ContractHandler) Optimize(c *fiber.Ctx) error {
	var body optimizeBody
	if err := c.BodyParser(&body); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	if body.Contract != nil {
		resp, err := h.flows.Refine(c.UserContext(), body.Contract, body.Clause.ClauseID, body.UserNote, body.KbItems, body.ContractMetadata)
		if err != nil {
			return h.fail(c, "optimize", err)
		}
		return respData(c, resp)
	}

	resp, err := h.flows.Optimize(c.UserContext(), body.OptimizeRequest)
	if err != nil {
		return h.fail(c, "optimize", err)
	}
	return respData(c, resp)
}

func (h *ContractHandler) fail(c *fiber.Ctx, route string, err error) error {
	logger.Warn("Contract request failed",
		zap.String("route", route),
		zap.String("trace_id", pipeline.TraceIDOf(err)),
		zap.String("kind", pipeline.KindOf(err)),
	)
	return respFlowErr(c, err)
}
