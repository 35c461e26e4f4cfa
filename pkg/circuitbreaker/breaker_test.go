package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func failing(context.Context) error { return errUpstream }
func succeeding(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("llm", Config{FailureThreshold: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	require.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	assert.Equal(t, StateOpen, cb.State())

	calls := 0
	err := cb.Execute(ctx, func(context.Context) error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)
}

func TestCircuitBreaker_HalfOpenProbeCloses(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("llm", Config{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	clock := time.Now()
	cb.now = func() time.Time { return clock }
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, StateOpen, cb.State())

	clock = clock.Add(2 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_CanceledCallerDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("llm", Config{FailureThreshold: 1})
	ctx := context.Background()

	err := cb.Execute(ctx, func(context.Context) error { return context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}
