package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// loop fires e on every tick of its interval until ctx is done. A tick
// that finds the job still running is skipped.
func (r *Runner) loop(ctx context.Context, e *entry) {
	defer r.wg.Done()
	logger := r.logger.With("job", e.job.Name())

	if r.runOnStart {
		r.fire(ctx, e)
	}

	ticker := time.NewTicker(e.sched.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("job loop stopped")
			return
		case <-ticker.C:
			r.fire(ctx, e)
		}
	}
}

func (r *Runner) fire(ctx context.Context, e *entry) {
	if !e.lock.TryLock() {
		r.logger.Info("job still running, tick skipped", "job", e.job.Name())
		return
	}
	defer e.lock.Unlock()
	r.invoke(ctx, e)
}

// invoke runs up to MaxRetries+1 attempts of e under the schedule's
// deadline. The caller holds e.lock.
func (r *Runner) invoke(parent context.Context, e *entry) Result {
	name := e.job.Name()
	logger := r.logger.With("job", name)

	ctx := parent
	if e.sched.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, e.sched.Deadline)
		defer cancel()
	}

	res := Result{Job: name, StartedAt: time.Now()}
	maxAttempts := e.sched.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		e.setState(StateRunning)
		e.attempt.Store(int32(attempt))
		res.Attempts = attempt
		r.metrics.ObserveAttempt(name)

		logger.Info("job attempt started", "attempt", attempt, "max_attempts", maxAttempts)
		lastErr = e.job.Run(ctx)
		if lastErr == nil {
			res.Outcome = OutcomeSucceeded
			res.Partial = false
			e.setState(StateSucceeded)
			logger.Info("job succeeded", "attempt", attempt, "duration", time.Since(res.StartedAt))
			return r.finish(e, res)
		}

		var pe PartialError
		res.Partial = errors.As(lastErr, &pe) && pe.Partial()

		if parent.Err() != nil {
			res.Outcome = OutcomeCancelled
			res.Err = fmt.Errorf("job %s cancelled: %w", name, parent.Err())
			e.setState(StateIdle)
			logger.Warn("job cancelled", "attempt", attempt, "error", lastErr)
			return r.finish(e, res)
		}
		if ctx.Err() != nil || attempt == maxAttempts {
			break
		}

		e.setState(StateRetryScheduled)
		logger.Warn("job attempt failed, retry scheduled",
			"attempt", attempt,
			"retry_in", e.sched.RetryDelay,
			"partial", res.Partial,
			"error", lastErr,
		)
		if !sleep(ctx, e.sched.RetryDelay) {
			break
		}
	}

	if parent.Err() != nil {
		res.Outcome = OutcomeCancelled
		res.Err = fmt.Errorf("job %s cancelled: %w", name, parent.Err())
		e.setState(StateIdle)
		return r.finish(e, res)
	}

	res.Outcome = OutcomeExhausted
	res.Err = fmt.Errorf("job %s: %w after %d attempts: %w", name, types.ErrRetryBudgetExhausted, res.Attempts, lastErr)
	e.setState(StateExhausted)
	logger.Error("job retry budget exhausted",
		"attempts", res.Attempts,
		"partial", res.Partial,
		"deadline_exceeded", errors.Is(ctx.Err(), context.DeadlineExceeded),
		"error", lastErr,
	)
	return r.finish(e, res)
}

func (r *Runner) finish(e *entry, res Result) Result {
	res.Duration = time.Since(res.StartedAt)
	r.metrics.ObserveRun(res.Job, res.Outcome, res.Duration)

	e.mu.Lock()
	e.last = &res
	e.mu.Unlock()
	return res
}

// sleep waits for d and reports whether it completed before ctx was done.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
