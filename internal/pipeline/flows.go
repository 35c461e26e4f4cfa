package pipeline

import (
	"context"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/schema"
)

type IntakeResponse struct {
	Result  contract.IntakeResult `json:"result"`
	TraceID string                `json:"trace_id"`
}

// Intake extracts a brief from a free-text description.
func (o *Orchestrator) Intake(ctx context.Context, req IntakeRequest) (IntakeResponse, error) {
	traceID := o.newTrace()
	req.applyDefaults()
	if err := checkInput(&req); err != nil {
		return IntakeResponse{}, o.reject(FlowIntake, traceID, err)
	}

	res, err := run(ctx, o, flow[contract.IntakeResult]{
		name:    FlowIntake,
		model:   o.cfg.IntakeModel,
		timeout: o.cfg.Timeout,
		system:  intakeSystemPrompt,
		user:    intakeUserPrompt(req),
		validate: func(raw []byte) (contract.IntakeResult, error) {
			return o.validator.Intake(raw, req.DefaultCurrency)
		},
	}, traceID)
	if err != nil {
		return IntakeResponse{}, err
	}
	return IntakeResponse{Result: res.Value, TraceID: res.TraceID}, nil
}

type GenerateResponse struct {
	Contract contract.Document `json:"contract"`
	TraceID  string            `json:"trace_id"`
}

// Generate drafts a full document from a brief and the KB items the caller
// chose to offer. It does not rank the KB itself.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	traceID := o.newTrace()
	if req.Brief == nil {
		return GenerateResponse{}, o.reject(FlowGenerate, traceID, &PreconditionError{Reason: "a brief is required before generating"})
	}
	brief := *req.Brief
	brief.Normalize(contract.DefaultCurrency)
	req.Brief = &brief
	if err := checkInput(&req); err != nil {
		return GenerateResponse{}, o.reject(FlowGenerate, traceID, err)
	}

	opts := req.Options.Resolve()
	user, err := generateUserPrompt(brief, opts, req.KbItems, req.UserDescriptionRaw)
	if err != nil {
		return GenerateResponse{}, o.reject(FlowGenerate, traceID, err)
	}
	rules := schema.DocumentRules{
		OfferedKbIDs:      contract.KbIDs(req.KbItems),
		IncludeReferences: opts.IncludeReferences,
	}

	res, err := run(ctx, o, flow[contract.Document]{
		name:    FlowGenerate,
		model:   o.cfg.GenerateModel,
		timeout: o.cfg.GenerateTimeout,
		system:  generateSystemPrompt,
		user:    user,
		kbIDs:   rules.OfferedKbIDs,
		validate: func(raw []byte) (contract.Document, error) {
			return o.validator.Document(raw, rules)
		},
	}, traceID)
	if err != nil {
		return GenerateResponse{}, err
	}
	return GenerateResponse{Contract: res.Value, TraceID: res.TraceID}, nil
}

type OptimizeResponse struct {
	Clause  contract.Clause `json:"clause"`
	TraceID string          `json:"trace_id"`
}

// Optimize rewrites one clause from a change note. The result keeps the
// clause id and cites only offered KB items or the clause's own references.
func (o *Orchestrator) Optimize(ctx context.Context, req OptimizeRequest) (OptimizeResponse, error) {
	traceID := o.newTrace()
	if err := checkInput(&req); err != nil {
		return OptimizeResponse{}, o.reject(FlowOptimize, traceID, err)
	}
	res, _, err := o.optimize(ctx, traceID, req, nil)
	return res, err
}

// optimize runs the rewrite flow. When into is set, merging the rewrite into
// it is part of validation, so a failed merge is recorded as a failed run.
func (o *Orchestrator) optimize(ctx context.Context, traceID string, req OptimizeRequest, into *contract.Document) (OptimizeResponse, contract.Document, error) {
	user, err := rewriteUserPrompt(req)
	if err != nil {
		return OptimizeResponse{}, contract.Document{}, o.reject(FlowOptimize, traceID, err)
	}
	rules := schema.ClauseRules{
		ClauseID:      req.Clause.ClauseID,
		AllowedRefIDs: append(contract.KbIDs(req.KbItems), req.Clause.ReferenceIDs...),
	}

	var merged contract.Document
	res, err := run(ctx, o, flow[contract.Clause]{
		name:    FlowOptimize,
		model:   o.cfg.GenerateModel,
		timeout: o.cfg.Timeout,
		system:  rewriteSystemPrompt,
		user:    user,
		kbIDs:   contract.KbIDs(req.KbItems),
		validate: func(raw []byte) (contract.Clause, error) {
			clause, err := o.validator.Clause(raw, rules)
			if err != nil || into == nil {
				return clause, err
			}
			merged, err = schema.Merge(into, clause)
			return clause, err
		},
	}, traceID)
	if err != nil {
		return OptimizeResponse{}, contract.Document{}, err
	}
	return OptimizeResponse{Clause: res.Value, TraceID: res.TraceID}, merged, nil
}

type RefineResponse struct {
	Clause   contract.Clause   `json:"clause"`
	Contract contract.Document `json:"contract"`
	TraceID  string            `json:"trace_id"`
}

// Refine rewrites the clause clauseID of doc and returns the merged document.
// doc itself is not modified. A missing clause fails before any network call.
func (o *Orchestrator) Refine(ctx context.Context, doc *contract.Document, clauseID, userNote string, kbItems []contract.KbItem, metadata map[string]any) (RefineResponse, error) {
	traceID := o.newTrace()
	idx := doc.ClauseIndex(clauseID)
	if idx < 0 {
		return RefineResponse{}, o.reject(FlowOptimize, traceID, &ClauseNotFoundError{ClauseID: clauseID})
	}

	req := OptimizeRequest{
		ContractMetadata: documentMetadata(doc, metadata),
		Clause:           doc.Clauses[idx],
		UserNote:         userNote,
		KbItems:          kbItems,
	}
	if err := checkInput(&req); err != nil {
		return RefineResponse{}, o.reject(FlowOptimize, traceID, err)
	}

	res, merged, err := o.optimize(ctx, traceID, req, doc)
	if err != nil {
		return RefineResponse{}, err
	}
	return RefineResponse{Clause: res.Clause, Contract: merged, TraceID: res.TraceID}, nil
}

func documentMetadata(doc *contract.Document, extra map[string]any) map[string]any {
	md := map[string]any{"contract_title": doc.ContractTitle}
	for k, v := range extra {
		md[k] = v
	}
	return md
}
