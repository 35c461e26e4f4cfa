package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/service-agreement/backend/internal/contract"
)

type State string

const (
	StateIdle             State = "idle"
	StateIntakeInFlight   State = "intake_in_flight"
	StateIntakeComplete   State = "intake_complete"
	StateGenerateInFlight State = "generate_in_flight"
	StateContractReady    State = "contract_ready"
	StateOptimizeInFlight State = "optimize_in_flight"
)

// Flows is the part of the Orchestrator a Session drives.
type Flows interface {
	Intake(ctx context.Context, req IntakeRequest) (IntakeResponse, error)
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	Refine(ctx context.Context, doc *contract.Document, clauseID, userNote string, kbItems []contract.KbItem, metadata map[string]any) (RefineResponse, error)
}

// KbSelector picks KB items for a brief when the caller offers none.
type KbSelector interface {
	Select(ctx context.Context, brief contract.Brief, limit int, extraTopics []string) []contract.KbItem
}

// Session holds one user's brief and document and enforces the order of
// flows. Only one flow may be in flight at a time; a failed flow returns the
// session to the state it started from.
type Session struct {
	flows    Flows
	selector KbSelector
	kbLimit  int

	mu          sync.Mutex
	state       State
	intake      *contract.IntakeResult
	description string
	brief       *contract.Brief
	options     *contract.GenerateOptions
	kbItems     []contract.KbItem
	doc         *contract.Document
}

func NewSession(flows Flows, selector KbSelector, kbLimit int) *Session {
	return &Session{flows: flows, selector: selector, kbLimit: kbLimit, state: StateIdle}
}

// Snapshot is a copy of the session's current data.
type Snapshot struct {
	State    State                  `json:"state"`
	Intake   *contract.IntakeResult `json:"intake,omitempty"`
	Brief    *contract.Brief        `json:"brief,omitempty"`
	KbItems  []contract.KbItem      `json:"kb_items,omitempty"`
	Contract *contract.Document     `json:"contract,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state, KbItems: append([]contract.KbItem(nil), s.kbItems...)}
	if s.intake != nil {
		in := *s.intake
		snap.Intake = &in
	}
	if s.brief != nil {
		b := *s.brief
		snap.Brief = &b
	}
	if s.doc != nil {
		d := *s.doc
		d.Clauses = append([]contract.Clause(nil), s.doc.Clauses...)
		d.Footnotes = append([]contract.Footnote(nil), s.doc.Footnotes...)
		snap.Contract = &d
	}
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// begin moves to the in-flight state if the session is in one of from.
func (s *Session) begin(to State, from ...State) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIntakeInFlight, StateGenerateInFlight, StateOptimizeInFlight:
		return "", &PreconditionError{Reason: fmt.Sprintf("session is busy (%s)", s.state)}
	}
	for _, f := range from {
		if s.state == f {
			prev := s.state
			s.state = to
			return prev, nil
		}
	}
	return "", &PreconditionError{Reason: fmt.Sprintf("cannot start %s from %s", to, s.state)}
}

func (s *Session) rollback(prev State) {
	s.mu.Lock()
	s.state = prev
	s.mu.Unlock()
}

// Describe runs intake on a free-text description. It is allowed from idle
// and after a previous intake.
func (s *Session) Describe(ctx context.Context, req IntakeRequest) (IntakeResponse, error) {
	prev, err := s.begin(StateIntakeInFlight, StateIdle, StateIntakeComplete)
	if err != nil {
		return IntakeResponse{}, err
	}

	resp, err := s.flows.Intake(ctx, req)
	if err != nil {
		s.rollback(prev)
		return IntakeResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	result := resp.Result
	s.intake = &result
	s.description = req.UserDescription
	if result.IsSupportedServiceAgreement {
		brief := result.Brief
		s.brief = &brief
	} else {
		s.brief = nil
	}
	s.state = StateIntakeComplete
	return resp, nil
}

type GenerateInput struct {
	// Brief replaces the intake brief when set (the user's edited version).
	Brief       *contract.Brief
	Options     *contract.GenerateOptions
	KbItems     []contract.KbItem
	ExtraTopics []string
}

// Generate drafts the document. It requires a supported intake or an existing
// document. KB items are selected for the brief when none are given.
func (s *Session) Generate(ctx context.Context, in GenerateInput) (GenerateResponse, error) {
	s.mu.Lock()
	supported := s.intake != nil && s.intake.IsSupportedServiceAgreement
	brief := s.brief
	description := s.description
	s.mu.Unlock()

	if in.Brief != nil {
		brief = in.Brief
	}
	if s.State() == StateIntakeComplete && !supported {
		return GenerateResponse{}, &PreconditionError{Reason: "the description is not a supported service agreement"}
	}
	if brief == nil {
		return GenerateResponse{}, &PreconditionError{Reason: "a brief is required before generating"}
	}

	prev, err := s.begin(StateGenerateInFlight, StateIntakeComplete, StateContractReady)
	if err != nil {
		return GenerateResponse{}, err
	}

	items := in.KbItems
	if items == nil && s.selector != nil {
		items = s.selector.Select(ctx, *brief, s.kbLimit, in.ExtraTopics)
	}

	resp, err := s.flows.Generate(ctx, GenerateRequest{
		Brief:              brief,
		Options:            in.Options,
		KbItems:            items,
		UserDescriptionRaw: description,
	})
	if err != nil {
		s.rollback(prev)
		return GenerateResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b := *brief
	doc := resp.Contract
	s.brief = &b
	s.options = in.Options
	s.kbItems = items
	s.doc = &doc
	s.state = StateContractReady
	return resp, nil
}

// Optimize rewrites one clause of the current document and replaces it in
// place. Nothing else in the document changes.
func (s *Session) Optimize(ctx context.Context, clauseID, userNote string) (RefineResponse, error) {
	prev, err := s.begin(StateOptimizeInFlight, StateContractReady)
	if err != nil {
		return RefineResponse{}, err
	}

	s.mu.Lock()
	doc := *s.doc
	doc.Clauses = append([]contract.Clause(nil), s.doc.Clauses...)
	items := s.kbItems
	metadata := map[string]any{}
	if s.brief != nil && s.brief.ServiceType != nil {
		metadata["service_type"] = string(*s.brief.ServiceType)
	}
	metadata["locale"] = s.options.Resolve().Locale
	s.mu.Unlock()

	resp, err := s.flows.Refine(ctx, &doc, clauseID, userNote, items, metadata)
	if err != nil {
		s.rollback(prev)
		return RefineResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merged := resp.Contract
	s.doc = &merged
	s.state = StateContractReady
	return resp, nil
}
