package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/observability"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// State is the lifecycle state of one job.
type State int32

const (
	StateIdle           State = 0
	StateRunning        State = 1
	StateRetryScheduled State = 2
	StateSucceeded      State = 3
	StateExhausted      State = 4
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateRetryScheduled:
		return "retry_scheduled"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrNotStarted is returned by Trigger before Start or after Stop.
var ErrNotStarted = errors.New("runner not started")

// Job is one periodic unit of work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// PartialError is implemented by job errors that report some progress
// before failing.
type PartialError interface {
	error
	Partial() bool
}

// Schedule controls when and how persistently a job runs.
type Schedule struct {
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Deadline   time.Duration // covers all attempts of one invocation; 0 disables
}

// ScheduleFrom converts a job's configuration.
func ScheduleFrom(jc config.JobConfig) Schedule {
	return Schedule{
		Interval:   jc.Interval,
		MaxRetries: jc.MaxRetries,
		RetryDelay: jc.RetryDelay,
		Deadline:   jc.Deadline,
	}
}

// Result describes one finished invocation.
type Result struct {
	Job       string        `json:"job"`
	Outcome   string        `json:"outcome"`
	Attempts  int           `json:"attempts"`
	Partial   bool          `json:"partial"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// Invocation outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeExhausted = "exhausted"
	OutcomeCancelled = "cancelled"
)

// JobStatus is a point-in-time view of a registered job.
type JobStatus struct {
	Name        string     `json:"name"`
	State       State      `json:"state"`
	Interval    string     `json:"interval"`
	Attempt     int        `json:"attempt"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastOutcome string     `json:"last_outcome,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Partial     bool       `json:"partial"`
}

type entry struct {
	job   Job
	sched Schedule

	// lock is held for the whole invocation; TryLock refuses overlap.
	lock sync.Mutex

	state   atomic.Int32
	attempt atomic.Int32

	mu   sync.RWMutex
	last *Result
}

func (e *entry) setState(s State) { e.state.Store(int32(s)) }

// Runner fires each registered job on its own ticker and retries failed
// invocations within their budget.
type Runner struct {
	mu      sync.RWMutex
	jobs    map[string]*entry
	order   []string
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	runOnStart bool
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRunOnStart fires every job immediately when the runner starts.
func WithRunOnStart(on bool) Option {
	return func(r *Runner) { r.runOnStart = on }
}

// WithMetrics records attempts, outcomes and durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates an empty Runner.
func NewRunner(logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		jobs:   make(map[string]*entry),
		logger: logger.With("component", "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds job with its schedule. Registering after Start or under
// a duplicate name fails.
func (r *Runner) Register(job Job, sched Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("cannot register %q: runner already started", job.Name())
	}
	if _, ok := r.jobs[job.Name()]; ok {
		return fmt.Errorf("job %q already registered", job.Name())
	}
	if sched.Interval <= 0 {
		return fmt.Errorf("job %q: interval must be positive", job.Name())
	}
	if sched.MaxRetries < 0 {
		return fmt.Errorf("job %q: max retries must be non-negative", job.Name())
	}

	r.jobs[job.Name()] = &entry{job: job, sched: sched}
	r.order = append(r.order, job.Name())
	r.logger.Debug("job registered",
		"job", job.Name(),
		"interval", sched.Interval,
		"max_retries", sched.MaxRetries,
	)
	return nil
}

// Start launches one scheduling loop per job. The loops stop when ctx is
// done or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("runner already started")
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.logger.Info("runner starting", "jobs", len(r.order), "run_on_start", r.runOnStart)
	for _, name := range r.order {
		e := r.jobs[name]
		r.wg.Add(1)
		go r.loop(r.ctx, e)
	}
	return nil
}

// Stop cancels running invocations and waits for every loop to return.
func (r *Runner) Stop() {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.logger.Info("runner stopped")
}

// Trigger starts an out-of-schedule invocation in the background.
func (r *Runner) Trigger(name string) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	r.mu.RLock()
	ctx := r.ctx
	r.mu.RUnlock()
	// A cancelled context means Stop already ran.
	if ctx == nil || ctx.Err() != nil {
		return ErrNotStarted
	}

	if !e.lock.TryLock() {
		return types.ErrJobRunning
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer e.lock.Unlock()
		r.invoke(ctx, e)
	}()
	return nil
}

// RunOnce runs one invocation of name in the caller's goroutine.
func (r *Runner) RunOnce(ctx context.Context, name string) (Result, error) {
	e, err := r.lookup(name)
	if err != nil {
		return Result{}, err
	}
	if !e.lock.TryLock() {
		return Result{}, types.ErrJobRunning
	}
	defer e.lock.Unlock()

	res := r.invoke(ctx, e)
	return res, res.Err
}

// Status returns every job in registration order.
func (r *Runner) Status() []JobStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]JobStatus, 0, len(r.order))
	for _, name := range r.order {
		e := r.jobs[name]
		st := JobStatus{
			Name:     name,
			State:    State(e.state.Load()),
			Interval: e.sched.Interval.String(),
			Attempt:  int(e.attempt.Load()),
		}
		e.mu.RLock()
		if e.last != nil {
			started := e.last.StartedAt
			st.LastRun = &started
			st.LastOutcome = e.last.Outcome
			st.Partial = e.last.Partial
			if e.last.Err != nil {
				st.LastError = e.last.Err.Error()
			}
		}
		e.mu.RUnlock()
		out = append(out, st)
	}
	return out
}

// Jobs returns the registered job names in registration order.
func (r *Runner) Jobs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Runner) lookup(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownJob, name)
	}
	return e, nil
}
