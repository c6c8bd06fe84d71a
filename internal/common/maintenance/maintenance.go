package maintenance

import (
	"context"
	"time"

	"github.com/departureboard/internal/common/logger"
)

// SnapshotStore is the part of the database maintenance works on.
type SnapshotStore interface {
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Vacuum(ctx context.Context) error
}

// CleanupResult represents the result of a cleanup operation
type CleanupResult struct {
	Cutoff         time.Time
	RecordsDeleted int64
	Duration       time.Duration
	Success        bool
	Error          string
}

// Maintenance handles database cleanup and maintenance operations
type Maintenance struct {
	store  SnapshotStore
	logger logger.Logger
	now    func() time.Time
}

// New creates a new Maintenance instance
func New(store SnapshotStore, log logger.Logger) *Maintenance {
	if log == nil {
		log = logger.Nop()
	}
	return &Maintenance{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// CleanupOldSnapshots removes board snapshots older than retention.
func (m *Maintenance) CleanupOldSnapshots(ctx context.Context, retention time.Duration) CleanupResult {
	start := m.now()
	result := CleanupResult{Cutoff: start.Add(-retention)}

	m.logger.Info("Starting snapshot cleanup", "retention", retention, "cutoff", result.Cutoff)

	deleted, err := m.store.DeleteSnapshotsBefore(ctx, result.Cutoff)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		m.logger.Error("Snapshot cleanup failed", "error", err, "duration", result.Duration)
		return result
	}

	result.RecordsDeleted = deleted
	result.Success = true
	m.logger.Info("Snapshot cleanup completed",
		"records_deleted", deleted,
		"duration", result.Duration)

	if deleted > 0 {
		if err := m.store.Vacuum(ctx); err != nil {
			// cleanup itself succeeded
			m.logger.Warn("Failed to vacuum after cleanup", "error", err)
		}
	}

	return result
}
