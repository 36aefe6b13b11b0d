package questions

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Scheduler defaults: first periodic pass after 5 minutes, then daily.
const (
	DefaultInitialDelay = 5 * time.Minute
	DefaultInterval     = 24 * time.Hour
)

// PassRunner is the generation capability the scheduler drives.
type PassRunner interface {
	GeneratePass(ctx context.Context) (*Set, error)
}

// Scheduler waits for the startup ingestion signal, runs one generation
// pass immediately, then runs a reentrancy-guarded periodic loop. Pass
// failures are logged and never terminate the loop.
type Scheduler struct {
	generator    PassRunner
	ready        <-chan struct{}
	initialDelay time.Duration
	interval     time.Duration
	logger       *slog.Logger

	// running guards against overlapping passes. A compare-and-swap flag
	// rather than a plain bool so that a second scheduler instance, or the
	// synchronous shortage path, cannot race a tick.
	running atomic.Bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInitialDelay sets the delay before the first periodic pass.
func WithInitialDelay(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.initialDelay = d
		}
	}
}

// WithInterval sets the recurring pass interval.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSchedulerLogger sets a custom logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a generation scheduler. ready is the one-shot
// ingestion completion signal; the scheduler blocks on it before its first
// pass.
func NewScheduler(generator PassRunner, ready <-chan struct{}, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		generator:    generator,
		ready:        ready,
		initialDelay: DefaultInitialDelay,
		interval:     DefaultInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "question-scheduler")
	return s
}

// Run blocks until ctx is cancelled. Cancellation during any wait ends the
// loop without running a pending tick.
func (s *Scheduler) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
	}

	s.logger.Info("ingestion complete, starting question generation")
	s.RunPass(ctx)

	initial := time.NewTimer(s.initialDelay)
	defer initial.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-initial.C:
	}
	s.RunPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("question generation scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.RunPass(ctx)
		}
	}
}

// RunPass attempts one generation pass, skipping entirely (no queueing) if
// a previous pass is still running. Returns whether the pass ran.
func (s *Scheduler) RunPass(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous generation pass still running, skipping tick")
		return false
	}
	defer s.running.Store(false)

	set, err := s.generator.GeneratePass(ctx)
	if err != nil {
		s.logger.Error("question generation pass failed", "error", err)
		return true
	}
	s.logger.Info("question generation pass complete",
		"episode", set.SourceEpisodeNumber,
		"questions", len(set.Questions),
	)
	return true
}
