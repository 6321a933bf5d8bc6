// Package db provides database connectivity helpers for the DuckDB fact
// store and the SQLite metadata store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// SQLite DSN parameters for production hardening.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

const queryHistorySchema = `
CREATE TABLE IF NOT EXISTS query_history (
	id             TEXT PRIMARY KEY,
	request_id     TEXT NOT NULL DEFAULT '',
	metric_name    TEXT NOT NULL,
	original_query TEXT NOT NULL DEFAULT '',
	generated_sql  TEXT NOT NULL,
	generated_by   TEXT NOT NULL,
	outcome        TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_history_created_at ON query_history (created_at DESC);
`

// OpenSQLite opens a hardened *sql.DB pool for the given SQLite file path
// and ensures the query-history schema exists. The metadata store sees one
// writer at a time.
func OpenSQLite(path string) (*sql.DB, error) {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")

	sqlDB, err := sql.Open("sqlite3", path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := sqlDB.ExecContext(ctx, queryHistorySchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure query_history schema: %w", err)
	}

	return sqlDB, nil
}
