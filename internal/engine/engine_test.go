package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khlemanenka99-ai/news-portal/internal/observability"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// funcJob adapts a function to Job.
type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Run(ctx context.Context) error { return j.run(ctx) }

type partialErr struct{}

func (partialErr) Error() string { return "2 of 3 sources failed" }
func (partialErr) Partial() bool { return true }

func quick(retries int) Schedule {
	return Schedule{Interval: time.Hour, MaxRetries: retries, RetryDelay: time.Millisecond}
}

// --- State Tests ---

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:           "idle",
		StateRunning:        "running",
		StateRetryScheduled: "retry_scheduled",
		StateSucceeded:      "succeeded",
		StateExhausted:      "exhausted",
		State(42):           "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

// --- Retry Policy Tests ---

func TestAlwaysFailingJobExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	metrics := observability.NewMetrics()
	r := NewRunner(testLogger, WithMetrics(metrics))
	job := &funcJob{name: "news", run: func(context.Context) error {
		calls.Add(1)
		return errors.New("title missing")
	}}
	if err := r.Register(job, quick(5)); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := r.RunOnce(context.Background(), "news")
	if !errors.Is(err, types.ErrRetryBudgetExhausted) {
		t.Fatalf("expected ErrRetryBudgetExhausted, got %v", err)
	}
	if calls.Load() != 6 {
		t.Errorf("expected 6 attempts (max_retries+1), got %d", calls.Load())
	}
	if res.Attempts != 6 || res.Outcome != OutcomeExhausted {
		t.Errorf("unexpected result: %+v", res)
	}

	st := r.Status()[0]
	if st.State != StateExhausted {
		t.Errorf("expected state exhausted, got %s", st.State)
	}
	if st.LastError == "" {
		t.Error("expected last error to be recorded")
	}
	if got := testutil.ToFloat64(metrics.JobAttempts.WithLabelValues("news")); got != 6 {
		t.Errorf("expected 6 attempts recorded, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.JobRuns.WithLabelValues("news", OutcomeExhausted)); got != 1 {
		t.Errorf("expected 1 exhausted run recorded, got %v", got)
	}
}

func TestJobSucceedsAfterRetry(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(testLogger)
	job := &funcJob{name: "currency", run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("HTTP 502")
		}
		return nil
	}}
	if err := r.Register(job, quick(5)); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := r.RunOnce(context.Background(), "currency")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Attempts != 3 || res.Outcome != OutcomeSucceeded {
		t.Errorf("unexpected result: %+v", res)
	}
	if r.Status()[0].State != StateSucceeded {
		t.Errorf("expected succeeded, got %s", r.Status()[0].State)
	}
}

func TestZeroRetriesMeansSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(testLogger)
	job := &funcJob{name: "weather", run: func(context.Context) error {
		calls.Add(1)
		return errors.New("down")
	}}
	_ = r.Register(job, quick(0))

	_, err := r.RunOnce(context.Background(), "weather")
	if !errors.Is(err, types.ErrRetryBudgetExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestPartialFailureIsReported(t *testing.T) {
	r := NewRunner(testLogger)
	job := &funcJob{name: "news", run: func(context.Context) error { return partialErr{} }}
	_ = r.Register(job, quick(1))

	res, _ := r.RunOnce(context.Background(), "news")
	if !res.Partial {
		t.Error("expected partial result")
	}
	if !r.Status()[0].Partial {
		t.Error("expected partial flag in status")
	}
}

func TestDeadlineBoundsAllAttempts(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(testLogger)
	job := &funcJob{name: "news", run: func(ctx context.Context) error {
		calls.Add(1)
		<-ctx.Done() // a hung browser
		return ctx.Err()
	}}
	_ = r.Register(job, Schedule{Interval: time.Hour, MaxRetries: 5, RetryDelay: time.Millisecond, Deadline: 50 * time.Millisecond})

	start := time.Now()
	res, err := r.RunOnce(context.Background(), "news")
	if !errors.Is(err, types.ErrRetryBudgetExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline cause, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("deadline not enforced, took %s", elapsed)
	}
	if calls.Load() != 1 || res.Attempts != 1 {
		t.Errorf("expected a single attempt inside the deadline, got %d", calls.Load())
	}
}

func TestCancelledInvocation(t *testing.T) {
	r := NewRunner(testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	job := &funcJob{name: "news", run: func(context.Context) error {
		cancel()
		return errors.New("interrupted")
	}}
	_ = r.Register(job, Schedule{Interval: time.Hour, MaxRetries: 3, RetryDelay: time.Hour})

	res, err := r.RunOnce(ctx, "news")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res.Outcome != OutcomeCancelled || r.Status()[0].State != StateIdle {
		t.Errorf("unexpected result %+v / state %s", res, r.Status()[0].State)
	}
}

// --- Overlap Tests ---

func TestNoOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var running, maxRunning atomic.Int32

	r := NewRunner(testLogger)
	job := &funcJob{name: "news", run: func(context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}}
	_ = r.Register(job, quick(0))
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	if err := r.Trigger("news"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	<-started

	if err := r.Trigger("news"); !errors.Is(err, types.ErrJobRunning) {
		t.Errorf("expected ErrJobRunning from Trigger, got %v", err)
	}
	if _, err := r.RunOnce(context.Background(), "news"); !errors.Is(err, types.ErrJobRunning) {
		t.Errorf("expected ErrJobRunning from RunOnce, got %v", err)
	}
	if st := r.Status()[0].State; st != StateRunning {
		t.Errorf("expected running state, got %s", st)
	}

	close(release)
	r.Stop()
	if maxRunning.Load() != 1 {
		t.Errorf("expected at most one concurrent run, saw %d", maxRunning.Load())
	}
}

func TestRunOnStartAndTicks(t *testing.T) {
	var mu sync.Mutex
	var runs []time.Time

	r := NewRunner(testLogger, WithRunOnStart(true))
	job := &funcJob{name: "currency", run: func(context.Context) error {
		mu.Lock()
		runs = append(runs, time.Now())
		mu.Unlock()
		return nil
	}}
	_ = r.Register(job, Schedule{Interval: 30 * time.Millisecond})
	_ = r.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(runs)
		mu.Unlock()
		if n >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(runs) < 3 {
		t.Fatalf("expected at least 3 runs (start + ticks), got %d", len(runs))
	}
}

// --- Registration Tests ---

func TestRegisterValidation(t *testing.T) {
	r := NewRunner(testLogger)
	job := &funcJob{name: "news", run: func(context.Context) error { return nil }}

	if err := r.Register(job, Schedule{}); err == nil {
		t.Error("expected error for zero interval")
	}
	if err := r.Register(job, quick(1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(job, quick(1)); err == nil {
		t.Error("expected error for duplicate job")
	}
	if _, err := r.RunOnce(context.Background(), "missing"); !errors.Is(err, types.ErrUnknownJob) {
		t.Errorf("expected ErrUnknownJob, got %v", err)
	}
	if err := r.Trigger("news"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted before start, got %v", err)
	}
}

func TestTriggerAfterStop(t *testing.T) {
	var runs atomic.Int32
	r := NewRunner(testLogger)
	job := &funcJob{name: "weather", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}
	_ = r.Register(job, Schedule{Interval: time.Hour})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Stop()

	if err := r.Trigger("weather"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted after stop, got %v", err)
	}
	if n := runs.Load(); n != 0 {
		t.Errorf("expected no runs after stop, got %d", n)
	}
}
