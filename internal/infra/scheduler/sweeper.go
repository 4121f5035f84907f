// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper removes sessions whose TTL elapsed.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// DefaultSchedule is used when none is configured.
const DefaultSchedule = "@every 5m"

// Scheduler owns the cron runner for session sweeps.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
	entryID  cron.EntryID

	mu      sync.Mutex
	started bool
}

// New builds a scheduler; the schedule is validated by Start.
func New(sweeper Sweeper, schedule string, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		cron:     cron.New(),
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  time.Minute,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers the sweep job and begins ticking. Calling Start twice is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	id, err := s.cron.AddFunc(s.schedule, s.RunOnce)
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	s.started = true
	s.logger.Info("session sweeper started", "schedule", s.schedule)
	return nil
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	removed, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		s.logger.Warn("session sweep failed", "removed", removed, "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("expired sessions removed", "count", removed)
	}
}

// NextRun reports when the next sweep is due, or zero before Start.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Stop halts the runner and waits for a running sweep to return.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
