package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/departureboard/pkg/models"
	"github.com/google/uuid"
)

// Snapshot is one stored rendering of a station's board.
type Snapshot struct {
	ID        string
	StationID string
	PolledAt  time.Time
	Rows      []models.VehicleInfo
}

// SaveSnapshot stores rows for stationID and returns the snapshot id.
func (db *DB) SaveSnapshot(ctx context.Context, stationID string, polledAt time.Time, rows []models.VehicleInfo) (string, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	snapshotID := uuid.New().String()
	polledAtStr := polledAt.UTC().Format(time.RFC3339)

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		db.rebind("INSERT INTO board_snapshots (snapshot_id, station_id, polled_at, row_count) VALUES (?, ?, ?, ?)"),
		snapshotID, stationID, polledAtStr, len(rows))
	if err != nil {
		return "", fmt.Errorf("inserting snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, db.rebind(`
		INSERT INTO board_rows (
			snapshot_id, position, number, destination, fg_color, bg_color, next_min, next_next_min
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return "", fmt.Errorf("preparing row statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		var nextNext sql.NullInt64
		if row.NextNextMinutes != nil {
			nextNext = sql.NullInt64{Int64: int64(*row.NextNextMinutes), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			snapshotID, i, row.Number, row.Destination, row.FgColor, row.BgColor, row.NextMinutes, nextNext,
		); err != nil {
			return "", fmt.Errorf("inserting row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing snapshot: %w", err)
	}

	db.logger.Debug("Snapshot stored", "station", stationID, "snapshot_id", snapshotID, "rows", len(rows))
	return snapshotID, nil
}

// LatestSnapshot returns the newest snapshot for stationID, or nil if none.
func (db *DB) LatestSnapshot(ctx context.Context, stationID string) (*Snapshot, error) {
	var (
		snapshot    Snapshot
		polledAtStr string
	)
	err := db.conn.QueryRowContext(ctx, db.rebind(`
		SELECT snapshot_id, station_id, polled_at
		FROM board_snapshots
		WHERE station_id = ?
		ORDER BY polled_at DESC
		LIMIT 1`), stationID).Scan(&snapshot.ID, &snapshot.StationID, &polledAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	snapshot.PolledAt, err = time.Parse(time.RFC3339, polledAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing polled_at %q: %w", polledAtStr, err)
	}

	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT number, destination, fg_color, bg_color, next_min, next_next_min
		FROM board_rows
		WHERE snapshot_id = ?
		ORDER BY position`), snapshot.ID)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot rows: %w", err)
	}
	defer rows.Close()

	snapshot.Rows = []models.VehicleInfo{}
	for rows.Next() {
		var (
			row      models.VehicleInfo
			nextNext sql.NullInt64
		)
		if err := rows.Scan(&row.Number, &row.Destination, &row.FgColor, &row.BgColor, &row.NextMinutes, &nextNext); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if nextNext.Valid {
			n := int(nextNext.Int64)
			row.NextNextMinutes = &n
		}
		snapshot.Rows = append(snapshot.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}

	return &snapshot, nil
}

// DeleteSnapshotsBefore removes snapshots polled before cutoff and returns
// how many were deleted.
func (db *DB) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	cutoffStr := cutoff.UTC().Format(time.RFC3339)

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, db.rebind(`
		DELETE FROM board_rows
		WHERE snapshot_id IN (SELECT snapshot_id FROM board_snapshots WHERE polled_at < ?)`), cutoffStr); err != nil {
		return 0, fmt.Errorf("deleting snapshot rows: %w", err)
	}

	result, err := tx.ExecContext(ctx, db.rebind("DELETE FROM board_snapshots WHERE polled_at < ?"), cutoffStr)
	if err != nil {
		return 0, fmt.Errorf("deleting snapshots: %w", err)
	}
	deleted, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing cleanup: %w", err)
	}

	return deleted, nil
}
