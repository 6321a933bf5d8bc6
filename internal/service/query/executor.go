// Package query orchestrates metric queries: structured and natural-language
// paths, SQL planning with local-compiler fallback, execution, and audit.
package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mikallon/datacore/internal/domain"
)

// Compile-time check.
var _ domain.QueryExecutor = (*DBExecutor)(nil)

// DBExecutor runs SQL against a database/sql pool (DuckDB in production).
type DBExecutor struct {
	db *sql.DB
}

// NewDBExecutor creates an executor over an open pool.
func NewDBExecutor(db *sql.DB) *DBExecutor {
	return &DBExecutor{db: db}
}

// Execute runs one query and materializes the full result set.
func (e *DBExecutor) Execute(ctx context.Context, sqlQuery string) (*domain.QueryResult, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &domain.QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		// Byte slices would JSON-encode as base64; surface them as strings.
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.RowCount = len(result.Rows)
	return result, nil
}
