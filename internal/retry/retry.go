// Package retry wraps fallible perception/action operations with bounded
// attempts and exponential backoff, capturing a diagnostic frame on every
// failure so the most recent evidence is always attached to the outcome.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giapdang/autocapcut/internal/cv"
	"github.com/giapdang/autocapcut/internal/logging"
)

// Operation is a guarded fallible action, e.g. "find and click export".
type Operation func(ctx context.Context) error

// classifier lets error types opt out of retrying. Errors that do not
// implement it are treated as transient.
type classifier interface {
	Retryable() bool
}

// Exhausted is the terminal failure after the retry budget is spent. It
// carries the last error and the most recent diagnostic frame.
type Exhausted struct {
	Op         string
	Attempts   int
	LastErr    error
	Diagnostic *cv.Frame
}

func (e *Exhausted) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.LastErr)
}

func (e *Exhausted) Unwrap() error { return e.LastErr }

// Controller runs operations with the configured retry discipline. One
// controller is shared across an item's states; each Run call gets its own
// attempt budget.
type Controller struct {
	maxAttempts int
	baseDelay   time.Duration
	capture     func() (*cv.Frame, error)
	log         *logging.Logger

	// sleep is replaceable in tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a controller. capture provides diagnostic frames on failure
// and may be nil when no frame source is available.
func New(maxAttempts int, baseDelay time.Duration, capture func() (*cv.Frame, error)) *Controller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Controller{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		capture:     capture,
		log:         logging.New("retry"),
		sleep:       sleepCtx,
	}
}

// WithLogger replaces the controller's logger.
func (c *Controller) WithLogger(log *logging.Logger) *Controller {
	c.log = log
	return c
}

// Run executes op up to maxAttempts times. The delay before attempt k
// (k >= 2) is baseDelay * 2^(k-2): the first retry waits baseDelay, the
// second twice that, and so on. Cancellation aborts immediately and is
// never counted against the budget; errors whose type reports
// Retryable() == false abort after the first occurrence.
func (c *Controller) Run(ctx context.Context, op string, fn Operation) error {
	var lastErr error
	var diagnostic *cv.Frame

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.baseDelay << (attempt - 2)
			c.log.DebugWith("backing off before retry", map[string]interface{}{
				"op": op, "attempt": attempt, "delay": delay,
			})
			if err := c.sleep(ctx, delay); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		// Diagnostic frame on every failed attempt, so the attached frame is
		// always the most recent failure.
		if c.capture != nil {
			if frame, err := c.capture(); err == nil {
				diagnostic = frame
			}
		}

		if errors.Is(lastErr, context.Canceled) || ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, lastErr)
		}

		var cl classifier
		if errors.As(lastErr, &cl) && !cl.Retryable() {
			return fmt.Errorf("%s: %w", op, lastErr)
		}

		c.log.WarnWith("attempt failed", map[string]interface{}{
			"op": op, "attempt": attempt, "max": c.maxAttempts, "error": lastErr,
		})
	}

	return &Exhausted{Op: op, Attempts: c.maxAttempts, LastErr: lastErr, Diagnostic: diagnostic}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
