// Package runner holds the batch jobs and the single-threaded loop that
// invokes them on a time-of-day or cron schedule.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/google/uuid"
)

// Observer receives every finished run
type Observer interface {
	Observe(ctx context.Context, result domain.RunResult)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(ctx context.Context, result domain.RunResult)

func (f ObserverFunc) Observe(ctx context.Context, result domain.RunResult) {
	f(ctx, result)
}

// Config holds runner configuration
type Config struct {
	Logger       *slog.Logger
	Jobs         []Job
	Schedule     []Entry
	PollInterval time.Duration
	JobTimeout   time.Duration // 0 lets a job run unbounded
	Location     *time.Location
	QueueSize    int
	HistorySize  int
	Clock        func() time.Time
	Observers    []Observer
}

// JobStatus is a snapshot of one registered job
type JobStatus struct {
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Schedule []string          `json:"schedule"`
	NextRun  *time.Time        `json:"next_run,omitempty"`
	LastRun  *domain.RunResult `json:"last_run,omitempty"`
}

type slot struct {
	entry Entry
	job   Job
	next  time.Time
}

// Runner owns the schedule and invokes due jobs one at a time
type Runner struct {
	logger       *slog.Logger
	jobs         map[string]Job
	order        []string
	slots        []*slot
	pollInterval time.Duration
	jobTimeout   time.Duration
	location     *time.Location
	clock        func() time.Time
	observers    []Observer
	triggers     chan string
	historySize  int

	mu      sync.RWMutex
	last    map[string]domain.RunResult
	history []domain.RunResult
}

// NewRunner creates a runner. Every schedule entry must name a registered job.
func NewRunner(cfg *Config) (*Runner, error) {
	r := &Runner{
		logger:       cfg.Logger,
		jobs:         make(map[string]Job, len(cfg.Jobs)),
		pollInterval: cfg.PollInterval,
		jobTimeout:   cfg.JobTimeout,
		location:     cfg.Location,
		clock:        cfg.Clock,
		observers:    cfg.Observers,
		historySize:  cfg.HistorySize,
		last:         make(map[string]domain.RunResult),
	}

	if r.pollInterval <= 0 {
		r.pollInterval = time.Minute
	}
	if r.location == nil {
		r.location = time.Local
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.historySize <= 0 {
		r.historySize = 100
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 8
	}
	r.triggers = make(chan string, queueSize)

	for _, job := range cfg.Jobs {
		if _, dup := r.jobs[job.Name()]; dup {
			return nil, fmt.Errorf("duplicate job name: %s", job.Name())
		}
		r.jobs[job.Name()] = job
		r.order = append(r.order, job.Name())
	}

	now := r.now()
	for _, entry := range cfg.Schedule {
		job, ok := r.jobs[entry.Job]
		if !ok {
			return nil, fmt.Errorf("schedule references unknown job: %s", entry.Job)
		}
		r.slots = append(r.slots, &slot{
			entry: entry,
			job:   job,
			next:  entry.At.Next(now),
		})
	}

	return r, nil
}

func (r *Runner) now() time.Time {
	return r.clock().In(r.location)
}

// Start runs the polling loop until ctx is canceled. A job in flight when
// ctx is canceled is allowed to finish.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("Scheduler started",
		slog.Int("entries", len(r.slots)),
		slog.Int("jobs", len(r.jobs)),
		slog.Duration("poll_interval", r.pollInterval),
		slog.Duration("job_timeout", r.jobTimeout),
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Scheduler context canceled, stopping...")
			return

		case <-ticker.C:
			r.Tick(ctx, r.now())

		case name := <-r.triggers:
			if job, ok := r.jobs[name]; ok {
				r.execute(ctx, job, domain.TriggerManual)
			}
		}
	}
}

// Tick invokes, in registration order, every entry due at now and advances
// it to its next occurrence. It returns the number of jobs invoked.
func (r *Runner) Tick(ctx context.Context, now time.Time) int {
	now = now.In(r.location)

	ran := 0
	for _, s := range r.slots {
		r.mu.RLock()
		due := !now.Before(s.next)
		r.mu.RUnlock()
		if !due {
			continue
		}

		r.execute(ctx, s.job, domain.TriggerSchedule)
		ran++

		r.mu.Lock()
		s.next = s.entry.At.Next(now)
		r.mu.Unlock()
	}
	return ran
}

// Trigger queues a manual run of the named job for the loop to pick up
func (r *Runner) Trigger(name string) error {
	if _, ok := r.jobs[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownJob, name)
	}

	select {
	case r.triggers <- name:
		r.logger.Info("Manual run queued", slog.String("job", name))
		return nil
	default:
		return domain.ErrTriggerQueueFull
	}
}

// RunNow invokes the named job on the calling goroutine
func (r *Runner) RunNow(ctx context.Context, name string) (domain.RunResult, error) {
	job, ok := r.jobs[name]
	if !ok {
		return domain.RunResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownJob, name)
	}
	return r.execute(ctx, job, domain.TriggerManual), nil
}

func (r *Runner) execute(ctx context.Context, job Job, trigger string) domain.RunResult {
	result := domain.RunResult{
		RunID:     uuid.NewString(),
		Job:       job.Name(),
		Kind:      job.Kind(),
		Trigger:   trigger,
		StartedAt: r.now(),
	}

	logger := r.logger.With(
		slog.String("job", result.Job),
		slog.String("run_id", result.RunID),
		slog.String("trigger", trigger),
	)
	logger.Info("Job started")

	began := time.Now()
	rows, err := r.invoke(ctx, job)
	result.Duration = time.Since(began)
	result.Rows = rows

	if err != nil {
		err = domain.AsJobFailure(job.Name(), err)
		result.Status = domain.RunStatusFailed
		result.Error = err.Error()
		logger.Error("Job failed",
			slog.Duration("duration", result.Duration),
			slog.String("error", err.Error()),
		)
	} else {
		result.Status = domain.RunStatusSucceeded
		logger.Info("Job finished",
			slog.Int64("rows", rows),
			slog.Duration("duration", result.Duration),
		)
	}

	r.record(result)

	obsCtx := context.WithoutCancel(ctx)
	for _, o := range r.observers {
		o.Observe(obsCtx, result)
	}

	return result
}

// invoke runs job, converting a panic into an error
func (r *Runner) invoke(ctx context.Context, job Job) (rows int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()

	jobCtx := context.WithoutCancel(ctx)
	if r.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, r.jobTimeout)
		defer cancel()
	}

	return job.Run(jobCtx)
}

func (r *Runner) record(result domain.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last[result.Job] = result
	r.history = append(r.history, result)
	if len(r.history) > r.historySize {
		r.history = r.history[len(r.history)-r.historySize:]
	}
}

// Jobs returns a snapshot of every registered job in registration order
func (r *Runner) Jobs() []JobStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]JobStatus, 0, len(r.order))
	for _, name := range r.order {
		job := r.jobs[name]
		status := JobStatus{
			Name:     name,
			Kind:     job.Kind(),
			Schedule: []string{},
		}

		for _, s := range r.slots {
			if s.entry.Job != name {
				continue
			}
			status.Schedule = append(status.Schedule, s.entry.At.String())
			if status.NextRun == nil || s.next.Before(*status.NextRun) {
				next := s.next
				status.NextRun = &next
			}
		}

		if last, ok := r.last[name]; ok {
			status.LastRun = &last
		}
		out = append(out, status)
	}
	return out
}

// History returns the most recent runs, oldest first
func (r *Runner) History() []domain.RunResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.RunResult, len(r.history))
	copy(out, r.history)
	return out
}
