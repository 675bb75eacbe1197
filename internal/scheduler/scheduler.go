// Package scheduler runs the process's periodic background jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds one tick when Job.Timeout is zero.
const DefaultTimeout = 5 * time.Minute

// ErrUnknownJob is returned by RunNow for an unregistered name.
var ErrUnknownJob = errors.New("unknown job")

// Job is one periodic unit of work.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. A run is not interrupted by shutdown.
	Timeout time.Duration
	// RunOnStart runs the first tick immediately instead of after Interval.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type entry struct {
	Job
	mu sync.Mutex // serializes ticks of the same job
}

// Scheduler owns one loop per job.
type Scheduler struct {
	jobs []*entry
	log  *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	group    *errgroup.Group
	stopOnce sync.Once
}

// New validates jobs and returns an idle scheduler.
func New(logger *slog.Logger, jobs ...Job) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{log: logger.With("component", "scheduler")}
	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		if j.Name == "" || j.Run == nil {
			return nil, errors.New("job requires a name and a run function")
		}
		if j.Interval <= 0 {
			return nil, fmt.Errorf("job %q: interval must be positive", j.Name)
		}
		if seen[j.Name] {
			return nil, fmt.Errorf("job %q registered twice", j.Name)
		}
		seen[j.Name] = true
		if j.Timeout <= 0 {
			j.Timeout = DefaultTimeout
		}
		s.jobs = append(s.jobs, &entry{Job: j})
	}
	return s, nil
}

// Start launches every job loop. Loops end when ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group != nil {
		return errors.New("scheduler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = g

	for _, e := range s.jobs {
		g.Go(func() error {
			s.loop(gctx, e)
			return nil
		})
		s.log.Info("job scheduled", "job", e.Name, "interval", e.Interval, "run_on_start", e.RunOnStart)
	}
	return nil
}

// Stop requests shutdown and waits for running ticks to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel, g := s.cancel, s.group
		s.mu.Unlock()
		if cancel == nil {
			return
		}
		cancel()
		_ = g.Wait()
		s.log.Info("scheduler stopped")
	})
}

// RunNow runs the named job once, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, e := range s.jobs {
		if e.Name == name {
			return s.tick(ctx, e)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

// Jobs lists registered job names.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, e := range s.jobs {
		names = append(names, e.Name)
	}
	return names
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	if e.RunOnStart {
		_ = s.tick(ctx, e)
	}

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			_ = s.tick(ctx, e)
		}
	}
}

// tick runs one job invocation. The run context survives cancellation of
// ctx so shutdown lets it finish; panics become errors.
func (s *Scheduler) tick(ctx context.Context, e *entry) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", e.Name, r)
			s.log.Error("job panicked", "job", e.Name, "panic", r, "stack", string(debug.Stack()))
			return
		}
		if err != nil {
			s.log.Error("job failed", "job", e.Name, "duration", time.Since(start), "error", err)
			return
		}
		s.log.Debug("job finished", "job", e.Name, "duration", time.Since(start))
	}()

	return e.Run(runCtx)
}
