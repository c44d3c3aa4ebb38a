package commons

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	apperrors "cashdesk/internal/errors"
)

// DefaultBackoffs is the wait before attempt 1 (0ms), attempt 2 (100ms), attempt 3 (200ms), etc.
// Attempts past the end of the slice reuse the last value.
var DefaultBackoffs = []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}

type Retrier struct {
	maxAttempts int
	retryable   func(error) bool
	logger      *zap.Logger
	backoffs    []time.Duration
}

func NewRetrier(maxAttempts int, retryable func(error) bool, logger *zap.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{
		maxAttempts: maxAttempts,
		retryable:   retryable,
		logger:      logger,
		backoffs:    DefaultBackoffs,
	}
}

// WithBackoffs returns a copy of the retrier using the given waits.
func (r *Retrier) WithBackoffs(backoffs ...time.Duration) *Retrier {
	cp := *r
	cp.backoffs = backoffs
	return &cp
}

func (r *Retrier) wait(attempt int) time.Duration {
	if len(r.backoffs) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx >= len(r.backoffs) {
		idx = len(r.backoffs) - 1
	}
	base := r.backoffs[idx]
	if base <= 0 {
		return 0
	}
	// ±20% jitter
	jitter := time.Duration(float64(base) * (rand.Float64()*0.4 - 0.2))
	return base + jitter
}

// Do runs fn until it succeeds, returns a non-retryable error, or maxAttempts is reached.
// Exhausting the attempts on number collisions returns the last DuplicateNumberError; any
// other exhausted conflict yields a DeadlockError wrapping the last failure.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context, attempt int) error) error {
	var last error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			if d := r.wait(attempt); d > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(d):
				}
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if !r.retryable(err) {
			return err
		}
		last = err

		r.logger.Warn("retryable conflict detected",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", r.maxAttempts),
			zap.Error(err),
		)
	}

	if _, ok := apperrors.IsDuplicateNumberError(last); ok {
		return fmt.Errorf("%s: max retries exceeded: %w", operation, last)
	}
	return apperrors.WrapDeadlockError("max retries exceeded", last)
}
