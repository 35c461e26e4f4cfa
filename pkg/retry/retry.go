// Package retry backs off between attempts at infrastructure operations such as
// connecting to a cache at start-up. Completion-service calls are never retried.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

type Backoff struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	Logger         *zap.Logger
}

func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts:    5,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         zap.NewNop(),
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = d.MaxAttempts
	}
	if b.InitialDelay <= 0 {
		b.InitialDelay = d.InitialDelay
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = d.MaxDelay
	}
	if b.Multiplier < 1 {
		b.Multiplier = d.Multiplier
	}
	if b.Logger == nil {
		b.Logger = d.Logger
	}
	return b
}

// Do runs op until it succeeds, the attempts are exhausted or ctx is done.
// The last error is returned when every attempt fails.
func Do(ctx context.Context, b Backoff, name string, op func(ctx context.Context) error) error {
	b = b.withDefaults()
	delay := b.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				b.Logger.Info("Operation succeeded after retry",
					zap.String("operation", name),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}

		if attempt == b.MaxAttempts {
			break
		}

		b.Logger.Warn("Operation failed, retrying",
			zap.String("operation", name),
			zap.Error(lastErr),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", b.MaxAttempts),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(delay, b.JitterFraction)):
		}

		delay = time.Duration(math.Min(float64(b.MaxDelay), float64(delay)*b.Multiplier))
	}

	return lastErr
}

func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	j := time.Duration(rand.Float64() * float64(d) * fraction)
	if rand.Intn(2) == 0 {
		return d - j
	}
	return d + j
}
