package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/departureboard/internal/common/db"
	"github.com/departureboard/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	cutoffs  []time.Time
	deleted  int64
	err      error
	vacuumed int
}

func (f *fakeStore) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func (f *fakeStore) Vacuum(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vacuumed++
	return nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestCleanupOldSnapshotsCutoff(t *testing.T) {
	store := &fakeStore{deleted: 3}
	m := New(store, nil)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	result := m.CleanupOldSnapshots(context.Background(), 6*time.Hour)

	assert.True(t, result.Success)
	assert.Equal(t, int64(3), result.RecordsDeleted)
	assert.Equal(t, now.Add(-6*time.Hour), result.Cutoff)
	require.Len(t, store.cutoffs, 1)
	assert.Equal(t, now.Add(-6*time.Hour), store.cutoffs[0])
	assert.Equal(t, 1, store.vacuumed)
}

func TestCleanupOldSnapshotsNothingDeletedSkipsVacuum(t *testing.T) {
	store := &fakeStore{}
	result := New(store, nil).CleanupOldSnapshots(context.Background(), time.Hour)

	assert.True(t, result.Success)
	assert.Equal(t, 0, store.vacuumed)
}

func TestCleanupOldSnapshotsFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	result := New(store, nil).CleanupOldSnapshots(context.Background(), time.Hour)

	assert.False(t, result.Success)
	assert.Equal(t, "disk full", result.Error)
	assert.Equal(t, 0, store.vacuumed)
}

func TestCleanupAgainstSQLite(t *testing.T) {
	database, err := db.New(db.DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	defer database.Close()
	ctx := context.Background()
	require.NoError(t, database.EnsureSchema(ctx))

	now := time.Now()
	_, err = database.SaveSnapshot(ctx, "a", now.Add(-48*time.Hour), []models.VehicleInfo{{Number: "1"}})
	require.NoError(t, err)
	_, err = database.SaveSnapshot(ctx, "a", now, []models.VehicleInfo{{Number: "1"}})
	require.NoError(t, err)

	result := New(database, nil).CleanupOldSnapshots(ctx, 24*time.Hour)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), result.RecordsDeleted)
}

func TestSchedulerRunsImmediately(t *testing.T) {
	store := &fakeStore{}
	s := NewCleanupScheduler(store, nil, SchedulerConfig{Interval: time.Hour, Retention: time.Hour})

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool { return store.calls() == 1 }, time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Equal(t, true, s.GetStatus()["last_cleanup_success"])
}

func TestSchedulerStartTwice(t *testing.T) {
	s := NewCleanupScheduler(&fakeStore{}, nil, DefaultSchedulerConfig())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	s := NewCleanupScheduler(&fakeStore{}, nil, SchedulerConfig{Retention: time.Hour})
	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewCleanupScheduler(&fakeStore{}, nil, DefaultSchedulerConfig())
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestTriggerCleanup(t *testing.T) {
	ok := NewCleanupScheduler(&fakeStore{}, nil, DefaultSchedulerConfig())
	assert.NoError(t, ok.TriggerCleanup(context.Background()))

	failing := NewCleanupScheduler(&fakeStore{err: errors.New("locked")}, nil, DefaultSchedulerConfig())
	assert.Error(t, failing.TriggerCleanup(context.Background()))
	assert.Equal(t, false, failing.GetStatus()["last_cleanup_success"])
}
