package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/departureboard/internal/common/logger"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed schema.sql
var schemaSQL string

type DB struct {
	conn    *sql.DB
	driver  string
	logger  logger.Logger
	writeMu sync.Mutex
}

// New opens and pings a database. driver is DriverPostgres or DriverSQLite.
func New(driver, dsn string, log logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.Nop()
	}

	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == DriverSQLite {
		// one writer at a time on one connection that is never recycled;
		// a fresh connection would see an empty ":memory:" database
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
		conn.SetConnMaxIdleTime(0)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
			log.Warn("Failed to enable foreign keys", "error", err)
		}
	}

	log.Info("Database connection established", "driver", driver)

	return &DB{
		conn:   conn,
		driver: driver,
		logger: log,
	}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.conn.BeginTx(ctx, nil)
}

// EnsureSchema creates tables if they don't exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	db.logger.Debug("Database schema ensured")
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Vacuum reclaims space after large deletes.
func (db *DB) Vacuum(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	query := "VACUUM"
	if db.driver == DriverPostgres {
		query = "VACUUM ANALYZE board_snapshots, board_rows"
	}
	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("vacuuming: %w", err)
	}
	return nil
}
