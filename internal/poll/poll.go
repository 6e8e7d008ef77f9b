// Package poll implements the wait loop the perception engine is built on:
// evaluate a detection predicate, sleep one interval, repeat until the
// condition holds, the timeout elapses, or the context is cancelled. The
// sleep between evaluations is the engine's single suspension point.
package poll

import (
	"context"
	"time"

	"github.com/giapdang/autocapcut/internal/cv"
)

// Predicate captures a frame and evaluates one detection condition. It
// returns the latest match result; infrastructure failures (capture errors)
// come back as the error and abort the wait immediately.
type Predicate func() (*cv.MatchResult, error)

// Outcome is the result of one wait call. Cancelled is reported separately
// from Satisfied so callers never mistake an aborted wait for a detection
// failure.
type Outcome struct {
	Satisfied bool
	Cancelled bool
	Elapsed   time.Duration
	Last      *cv.MatchResult
}

// WaitFor polls the predicate every interval until it reports a found match.
// The timeout is hard: once elapsed time exceeds it the wait returns
// Satisfied=false without blocking further. Cancellation is checked at least
// once per tick.
func WaitFor(ctx context.Context, pred Predicate, timeout, interval time.Duration) (Outcome, error) {
	return wait(ctx, pred, timeout, interval, func(r *cv.MatchResult) bool {
		return r != nil && r.Found
	})
}

// WaitUntilGone is the dual of WaitFor: it succeeds once a previously
// present template stops matching, which is how a closing dialog is
// detected.
func WaitUntilGone(ctx context.Context, pred Predicate, timeout, interval time.Duration) (Outcome, error) {
	return wait(ctx, pred, timeout, interval, func(r *cv.MatchResult) bool {
		return r == nil || !r.Found
	})
}

func wait(ctx context.Context, pred Predicate, timeout, interval time.Duration, done func(*cv.MatchResult) bool) (Outcome, error) {
	start := time.Now()
	deadline := start.Add(timeout)

	var last *cv.MatchResult
	for {
		if ctx.Err() != nil {
			return Outcome{Cancelled: true, Elapsed: time.Since(start), Last: last}, nil
		}

		result, err := pred()
		if err != nil {
			return Outcome{Elapsed: time.Since(start), Last: last}, err
		}
		last = result

		if done(result) {
			return Outcome{Satisfied: true, Elapsed: time.Since(start), Last: last}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Outcome{Elapsed: time.Since(start), Last: last}, nil
		}

		sleep := interval
		if sleep > remaining {
			sleep = remaining
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome{Cancelled: true, Elapsed: time.Since(start), Last: last}, nil
		case <-timer.C:
		}
	}
}
