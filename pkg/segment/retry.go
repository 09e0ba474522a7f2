package segment

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"gocv.io/x/gocv"
)

// Stats is a snapshot of retry counters.
type Stats struct {
	Attempts  int64 `json:"attempts"`
	Failures  int64 `json:"failures"`
	Successes int64 `json:"successes"`
	Exhausted int64 `json:"exhausted"`
}

// Retrying wraps a Provider with a RetryPolicy. Every failed attempt is
// logged and counted. It is safe for concurrent use.
type Retrying struct {
	next   Provider
	policy RetryPolicy
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error

	attempts  atomic.Int64
	failures  atomic.Int64
	successes atomic.Int64
	exhausted atomic.Int64
}

// NewRetrying wraps next with policy.
func NewRetrying(next Provider, policy RetryPolicy, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{
		next:   next,
		policy: policy,
		logger: logger.With("component", "segment.retry"),
		sleep:  gax.Sleep,
	}
}

// Mask asks the wrapped provider until it succeeds, the error is not
// retryable, the budget runs out (*DegradedModeError) or ctx is done.
// A failed attempt never leaks a mask to the caller.
func (r *Retrying) Mask(ctx context.Context, f gocv.Mat) (gocv.Mat, error) {
	start := time.Now()
	bo := gax.Backoff{
		Initial:    r.policy.InitialDelay,
		Max:        r.policy.MaxDelay,
		Multiplier: r.policy.Multiplier,
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return gocv.NewMat(), err
		}

		r.attempts.Add(1)
		m, err := r.next.Mask(ctx, f)
		if err == nil {
			r.successes.Add(1)
			if attempt > 1 {
				r.logger.Info("mask service recovered",
					"attempts", attempt,
					"elapsed", time.Since(start).Round(time.Millisecond),
				)
			}
			return m, nil
		}
		m.Close()
		r.failures.Add(1)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return gocv.NewMat(), ctxErr
		}
		if !IsRetryable(err) {
			return gocv.NewMat(), err
		}

		elapsed := time.Since(start)
		if r.spent(attempt, elapsed) {
			r.exhausted.Add(1)
			r.logger.Error("mask retries exhausted",
				"attempts", attempt,
				"elapsed", elapsed.Round(time.Millisecond),
				"error", err,
			)
			return gocv.NewMat(), &DegradedModeError{Attempts: attempt, Elapsed: elapsed, Err: err}
		}

		var delay time.Duration
		if r.policy.InitialDelay > 0 {
			delay = bo.Pause()
			if r.policy.MaxElapsed > 0 {
				delay = min(delay, r.policy.MaxElapsed-elapsed)
			}
		}

		r.logger.Warn("mask request failed, retrying",
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"delay", delay,
			"error", err,
		)

		if delay > 0 {
			if err := r.sleep(ctx, delay); err != nil {
				return gocv.NewMat(), err
			}
		}
	}
}

func (r *Retrying) spent(attempt int, elapsed time.Duration) bool {
	if r.policy.MaxAttempts > 0 && attempt >= r.policy.MaxAttempts {
		return true
	}
	return r.policy.MaxElapsed > 0 && elapsed >= r.policy.MaxElapsed
}

// Stats returns a snapshot of the retry counters.
func (r *Retrying) Stats() Stats {
	return Stats{
		Attempts:  r.attempts.Load(),
		Failures:  r.failures.Load(),
		Successes: r.successes.Load(),
		Exhausted: r.exhausted.Load(),
	}
}
