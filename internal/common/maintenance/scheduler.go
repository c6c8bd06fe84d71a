package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/departureboard/internal/common/logger"
)

// CleanupScheduler handles periodic maintenance tasks
type CleanupScheduler struct {
	maintenance *Maintenance
	logger      logger.Logger
	config      SchedulerConfig
	isRunning   bool
	mu          sync.RWMutex
	cancelFn    context.CancelFunc
	done        chan struct{}
	lastResult  *CleanupResult
}

// SchedulerConfig contains configuration for the cleanup scheduler
type SchedulerConfig struct {
	Interval  time.Duration // how often to clean snapshots
	Retention time.Duration // how long snapshots are kept
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:  time.Hour,
		Retention: 24 * time.Hour,
	}
}

// NewCleanupScheduler creates a new cleanup scheduler
func NewCleanupScheduler(store SnapshotStore, log logger.Logger, config SchedulerConfig) *CleanupScheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &CleanupScheduler{
		maintenance: New(store, log),
		logger:      log,
		config:      config,
	}
}

// Start begins the cleanup scheduling. The first cleanup runs immediately.
func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cleanup scheduler is already running")
	}
	if s.config.Interval <= 0 {
		return fmt.Errorf("cleanup interval must be positive, got %s", s.config.Interval)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("Starting cleanup scheduler",
		"interval", s.config.Interval,
		"retention", s.config.Retention)

	go s.cleanupLoop(ctx, s.done)

	return nil
}

// Stop stops the cleanup scheduler and waits for a running cleanup to end.
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}

	s.logger.Info("Stopping cleanup scheduler")
	s.cancelFn()
	done := s.done
	s.isRunning = false
	s.mu.Unlock()

	<-done
	s.logger.Info("Cleanup scheduler stopped")
}

// IsRunning returns whether the scheduler is active
func (s *CleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *CleanupScheduler) cleanupLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.performCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Cleanup loop stopping")
			return
		case <-ticker.C:
			s.performCleanup(ctx)
		}
	}
}

func (s *CleanupScheduler) performCleanup(ctx context.Context) CleanupResult {
	result := s.maintenance.CleanupOldSnapshots(ctx, s.config.Retention)

	s.mu.Lock()
	s.lastResult = &result
	s.mu.Unlock()

	return result
}

// TriggerCleanup manually runs a cleanup outside the schedule.
func (s *CleanupScheduler) TriggerCleanup(ctx context.Context) error {
	s.logger.Info("Manual snapshot cleanup triggered")
	result := s.performCleanup(ctx)
	if !result.Success {
		return fmt.Errorf("snapshot cleanup failed: %s", result.Error)
	}
	return nil
}

// GetStatus returns the current status of the cleanup scheduler
func (s *CleanupScheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]interface{}{
		"is_running": s.isRunning,
		"interval":   s.config.Interval.String(),
		"retention":  s.config.Retention.String(),
	}
	if s.lastResult != nil {
		status["last_cleanup_success"] = s.lastResult.Success
		status["last_cleanup_deleted"] = s.lastResult.RecordsDeleted
		status["last_cleanup_cutoff"] = s.lastResult.Cutoff.UTC().Format(time.RFC3339)
	}
	return status
}
