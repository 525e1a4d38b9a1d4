// Package scheduler runs the artifact retention purge on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Defaults for Config.
const (
	DefaultCron = "0 3 * * *"
	DefaultTick = 60 * time.Second
)

// Purger deletes artifacts created before a cutoff. Satisfied by store.Store.
type Purger interface {
	DeleteArtifactsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config controls the retention purge. A zero Retention disables it.
type Config struct {
	Cron      string        `yaml:"cron"`
	Retention time.Duration `yaml:"retention"`
	Tick      time.Duration `yaml:"tick"`
}

// PurgeResult describes the last purge run.
type PurgeResult struct {
	At      time.Time `json:"at"`
	Cutoff  time.Time `json:"cutoff"`
	Deleted int64     `json:"deleted"`
	Error   string    `json:"error,omitempty"`
}

// Scheduler checks the cron schedule on every tick and purges expired
// artifacts when a run is due.
type Scheduler struct {
	purger    Purger
	schedule  cron.Schedule
	cronExpr  string
	retention time.Duration
	tick      time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	runMu   sync.Mutex
	next    time.Time
	last    PurgeResult
	running bool
}

// NewScheduler validates cfg and returns a stopped Scheduler.
func NewScheduler(p Purger, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cron == "" {
		cfg.Cron = DefaultCron
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Retention < 0 {
		return nil, fmt.Errorf("retention must not be negative, got %s", cfg.Retention)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", cfg.Cron, err)
	}

	return &Scheduler{
		purger:    p,
		schedule:  schedule,
		cronExpr:  cfg.Cron,
		retention: cfg.Retention,
		tick:      cfg.Tick,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Enabled reports whether a retention period is configured.
func (s *Scheduler) Enabled() bool { return s.retention > 0 }

// Start launches the background loop. It is a no-op when disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Info("retention disabled")
		return nil
	}

	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.runMu.Lock()
	s.next = s.schedule.Next(s.now())
	next := s.next
	s.runMu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("retention scheduler started",
		slog.String("cron", s.cronExpr),
		slog.Duration("retention", s.retention),
		slog.Time("next_run", next),
	)
	return nil
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check runs a purge when the next scheduled time has passed.
func (s *Scheduler) check(ctx context.Context) {
	now := s.now()
	s.runMu.Lock()
	due := !s.next.IsZero() && !now.Before(s.next)
	if due {
		s.next = s.schedule.Next(now)
	}
	s.runMu.Unlock()

	if due {
		if _, err := s.PurgeNow(ctx); err != nil {
			s.logger.Error("retention purge failed", slog.String("error", err.Error()))
		}
	}
}

// PurgeNow deletes artifacts older than the retention period immediately.
// Overlapping calls return an error instead of running twice.
func (s *Scheduler) PurgeNow(ctx context.Context) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}

	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return 0, fmt.Errorf("purge already running")
	}
	s.running = true
	s.runMu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.retention)
	n, err := s.purger.DeleteArtifactsBefore(ctx, cutoff)

	result := PurgeResult{At: now, Cutoff: cutoff, Deleted: n}
	if err != nil {
		result.Error = err.Error()
	}

	s.runMu.Lock()
	s.running = false
	s.last = result
	s.runMu.Unlock()

	if err != nil {
		return 0, err
	}
	s.logger.Info("retention purge complete", slog.Int64("deleted", n), slog.Time("cutoff", cutoff))
	return n, nil
}

// LastRun returns the result of the most recent purge.
func (s *Scheduler) LastRun() PurgeResult {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.last
}

// NextRun returns when the next purge is due, or the zero time when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.next
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.runMu.Lock()
	s.next = time.Time{}
	s.runMu.Unlock()

	s.logger.Info("retention scheduler stopped")
	return nil
}
