package db

import (
	"context"
	"testing"
	"time"

	"github.com/departureboard/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.EnsureSchema(context.Background()))
	return database
}

func intPtr(n int) *int { return &n }

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	database := newTestDB(t)
	assert.NoError(t, database.EnsureSchema(context.Background()))
}

func TestSQLiteKeepsSingleConnection(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := database.SaveSnapshot(ctx, "a", time.Now(), nil)
		require.NoError(t, err)
	}

	var foreignKeys int
	require.NoError(t, database.conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	stats := database.conn.Stats()
	assert.Equal(t, 1, stats.MaxOpenConnections)
	assert.Equal(t, 1, stats.OpenConnections)
	assert.Zero(t, stats.MaxLifetimeClosed)
	assert.Zero(t, stats.MaxIdleTimeClosed)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New("mysql", "", nil)
	assert.Error(t, err)
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	polledAt := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	rows := []models.VehicleInfo{
		{Number: "6", Destination: "Kortedala", FgColor: "#ff6600", BgColor: "#ffffff", NextMinutes: 4, NextNextMinutes: intPtr(11)},
		{Number: "16", Destination: "Eketrägatan", FgColor: "#000000", BgColor: "#ffffff", NextMinutes: 5},
	}

	id, err := database.SaveSnapshot(ctx, "9021014001760000", polledAt, rows)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	snapshot, err := database.LatestSnapshot(ctx, "9021014001760000")
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, id, snapshot.ID)
	assert.True(t, polledAt.Equal(snapshot.PolledAt))
	assert.Equal(t, rows, snapshot.Rows)
}

func TestLatestSnapshotPicksNewest(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	_, err := database.SaveSnapshot(ctx, "a", base, []models.VehicleInfo{{Number: "1", NextMinutes: 9}})
	require.NoError(t, err)
	newest, err := database.SaveSnapshot(ctx, "a", base.Add(time.Minute), []models.VehicleInfo{{Number: "1", NextMinutes: 8}})
	require.NoError(t, err)
	_, err = database.SaveSnapshot(ctx, "b", base.Add(time.Hour), nil)
	require.NoError(t, err)

	snapshot, err := database.LatestSnapshot(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, newest, snapshot.ID)
	assert.Equal(t, 8, snapshot.Rows[0].NextMinutes)

	empty, err := database.LatestSnapshot(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, empty)
	assert.Empty(t, empty.Rows)
}

func TestLatestSnapshotMissing(t *testing.T) {
	database := newTestDB(t)

	snapshot, err := database.LatestSnapshot(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestDeleteSnapshotsBefore(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := database.SaveSnapshot(ctx, "a", base.Add(time.Duration(i)*time.Hour),
			[]models.VehicleInfo{{Number: "5", NextMinutes: i}})
		require.NoError(t, err)
	}

	deleted, err := database.DeleteSnapshotsBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remainingRows int
	require.NoError(t, database.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM board_rows").Scan(&remainingRows))
	assert.Equal(t, 1, remainingRows)

	snapshot, err := database.LatestSnapshot(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, 2, snapshot.Rows[0].NextMinutes)
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	lite := &DB{driver: DriverSQLite}
	query := "SELECT * FROM board_rows WHERE snapshot_id = ? AND position > ?"

	assert.Equal(t, "SELECT * FROM board_rows WHERE snapshot_id = $1 AND position > $2", pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
}
