package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/contract/contracttest"
)

type fakeSelector struct {
	items []contract.KbItem
	calls int
}

func (f *fakeSelector) Select(ctx context.Context, brief contract.Brief, limit int, extraTopics []string) []contract.KbItem {
	f.calls++
	return f.items
}

// blockingFlows holds Intake until release is closed.
type blockingFlows struct {
	Flows
	started chan struct{}
	release chan struct{}
}

func (b *blockingFlows) Intake(ctx context.Context, req IntakeRequest) (IntakeResponse, error) {
	close(b.started)
	<-b.release
	return IntakeResponse{}, errors.New("released")
}

func TestSession_FullFlow(t *testing.T) {
	items := contracttest.KbItems()[:1]
	doc := contracttest.Document(items[0].ID)

	rewrite := doc.Clauses[1]
	rewrite.Body = "Client will pay $120 at the end of each visit."

	fc := (&fakeCompleter{}).
		push(supportedCleaningIntake(t)).
		push(toJSON(t, doc)).
		push(toJSON(t, rewrite))
	sel := &fakeSelector{items: items}
	s := NewSession(NewOrchestrator(fc, testConfig()), sel, 4)
	ctx := context.Background()

	assert.Equal(t, StateIdle, s.State())

	_, err := s.Describe(ctx, IntakeRequest{UserDescription: "bi-weekly cleaning, $120 per visit"})
	require.NoError(t, err)
	assert.Equal(t, StateIntakeComplete, s.State())

	gen, err := s.Generate(ctx, GenerateInput{})
	require.NoError(t, err)
	assert.Equal(t, StateContractReady, s.State())
	assert.Equal(t, 1, sel.calls)
	assert.Contains(t, fc.calls[1].UserPrompt, "bi-weekly cleaning, $120 per visit")

	ref, err := s.Optimize(ctx, "fees_payment", "Payment at the end of each visit.")
	require.NoError(t, err)
	assert.Equal(t, StateContractReady, s.State())
	assert.Contains(t, fc.calls[2].UserPrompt, `"service_type": "cleaning"`)
	assert.Contains(t, fc.calls[2].UserPrompt, "24_hour_notice_cleaning")

	snap := s.Snapshot()
	require.NotNil(t, snap.Contract)
	assert.Equal(t, ref.Contract, *snap.Contract)
	assert.Equal(t, rewrite.Body, snap.Contract.Clauses[1].Body)
	assert.Equal(t, gen.Contract.Clauses[0], snap.Contract.Clauses[0])
	assert.Equal(t, items, snap.KbItems)
}

func TestSession_OrderEnforced(t *testing.T) {
	fc := &fakeCompleter{}
	s := NewSession(NewOrchestrator(fc, testConfig()), nil, 4)
	ctx := context.Background()

	_, err := s.Generate(ctx, GenerateInput{})
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = s.Optimize(ctx, "fees_payment", "note")
	assert.Equal(t, KindPrecondition, KindOf(err))

	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, fc.callCount())
}

func TestSession_UnsupportedIntakeBlocksGenerate(t *testing.T) {
	fc := (&fakeCompleter{}).push(unsupportedIntake(t))
	s := NewSession(NewOrchestrator(fc, testConfig()), nil, 4)
	ctx := context.Background()

	resp, err := s.Describe(ctx, IntakeRequest{UserDescription: "apartment lease"})
	require.NoError(t, err)
	assert.False(t, resp.Result.IsSupportedServiceAgreement)
	assert.Nil(t, s.Snapshot().Brief)

	brief := contracttest.CleaningBrief()
	_, err = s.Generate(ctx, GenerateInput{Brief: &brief})
	var pc *PreconditionError
	require.ErrorAs(t, err, &pc)
	assert.Equal(t, StateIntakeComplete, s.State())
	assert.Equal(t, 1, fc.callCount())
}

func TestSession_FailedFlowRollsBack(t *testing.T) {
	doc := contracttest.Document()
	doc.Clauses = doc.Clauses[:10]

	fc := (&fakeCompleter{}).
		push(supportedCleaningIntake(t)).
		push(toJSON(t, doc))
	s := NewSession(NewOrchestrator(fc, testConfig()), nil, 4)
	ctx := context.Background()

	_, err := s.Describe(ctx, IntakeRequest{UserDescription: "house cleaning"})
	require.NoError(t, err)

	_, err = s.Generate(ctx, GenerateInput{KbItems: []contract.KbItem{}})
	require.Error(t, err)
	assert.Equal(t, StateIntakeComplete, s.State())
	assert.Nil(t, s.Snapshot().Contract)
}

func TestSession_BusyRejectsSecondFlow(t *testing.T) {
	flows := &blockingFlows{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(flows, nil, 4)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.Describe(ctx, IntakeRequest{UserDescription: "dog walking"})
		done <- err
	}()
	<-flows.started

	assert.Equal(t, StateIntakeInFlight, s.State())
	_, err := s.Describe(ctx, IntakeRequest{UserDescription: "dog walking"})
	var pc *PreconditionError
	require.ErrorAs(t, err, &pc)
	assert.Contains(t, pc.Reason, "busy")

	close(flows.release)
	require.Error(t, <-done)
	assert.Equal(t, StateIdle, s.State())
}
