// Package repository implements SQLite-backed persistence for the metadata
// store.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mikallon/datacore/internal/domain"
)

// Compile-time check.
var _ domain.QueryHistoryRepository = (*QueryHistoryRepo)(nil)

// QueryHistoryRepo implements QueryHistoryRepository using SQLite.
type QueryHistoryRepo struct {
	db *sql.DB
}

// NewQueryHistoryRepo creates a new QueryHistoryRepo.
func NewQueryHistoryRepo(db *sql.DB) *QueryHistoryRepo {
	return &QueryHistoryRepo{db: db}
}

// Record inserts one query audit record. Missing IDs and timestamps are
// filled in.
func (r *QueryHistoryRepo) Record(ctx context.Context, rec *domain.QueryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO query_history (id, request_id, metric_name, original_query, generated_sql, generated_by, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID, rec.MetricName, rec.OriginalQuery, rec.GeneratedSQL, rec.GeneratedBy, rec.Outcome, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query history: %w", err)
	}
	return nil
}

// ListRecent returns the most recent audit records, newest first.
func (r *QueryHistoryRepo) ListRecent(ctx context.Context, limit int) ([]domain.QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, metric_name, original_query, generated_sql, generated_by, outcome, created_at
		FROM query_history
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list query history: %w", err)
	}
	defer rows.Close()

	var records []domain.QueryRecord
	for rows.Next() {
		var rec domain.QueryRecord
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.MetricName, &rec.OriginalQuery, &rec.GeneratedSQL, &rec.GeneratedBy, &rec.Outcome, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan query history row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
