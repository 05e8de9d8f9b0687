package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler defaults.
const (
	DefaultPublishInterval = 5 * time.Minute
	DefaultSweepInterval   = time.Hour
)

// SchedulerConfig configures Scheduler.
type SchedulerConfig struct {
	// PublishInterval is the time between snapshot publishes.
	// Default: 5m
	PublishInterval time.Duration

	// SweepInterval is the time between expired session sweeps.
	// Default: 1h
	SweepInterval time.Duration
}

// Scheduler runs the two background tasks: periodic snapshot publishing
// and periodic session sweeping. Each runs on its own ticker goroutine.
type Scheduler struct {
	backup   *BackupService
	accounts *AccountService
	cfg      SchedulerConfig
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a scheduler. Either service may be nil to disable
// its task.
func NewScheduler(backup *BackupService, accounts *AccountService, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = DefaultPublishInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		backup:   backup,
		accounts: accounts,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start launches the background tasks. The first publish runs
// immediately. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	if s.backup != nil {
		s.wg.Add(1)
		go s.publishLoop(ctx)
	}
	if s.accounts != nil {
		s.wg.Add(1)
		go s.sweepLoop(ctx)
	}

	s.logger.Info("scheduler started",
		"publish_interval", s.cfg.PublishInterval,
		"sweep_interval", s.cfg.SweepInterval)
}

// Stop cancels the tasks and waits for them to exit. A publish in flight
// is canceled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) publishLoop(ctx context.Context) {
	defer s.wg.Done()

	// Errors are logged by the backup service; the next tick retries.
	_ = s.backup.RunOnce(ctx)

	ticker := time.NewTicker(s.cfg.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = s.backup.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.accounts.SweepExpired(ctx)
		case <-ctx.Done():
			return
		}
	}
}
