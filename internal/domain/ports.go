package domain

import (
	"context"
	"time"
)

// PlanRequest is the contract handed to an external semantic-query engine:
// metric names, group-by names, where-conditions, and a time window.
type PlanRequest struct {
	Metrics   []string
	GroupBy   []string
	Where     []string
	StartDate string
	EndDate   string
	Limit     int
}

// SQLPlanner is an optional external collaborator that turns a plan request
// into executable SQL. When it is unavailable or errors, callers fall back
// to the local compiler.
type SQLPlanner interface {
	PlanSQL(ctx context.Context, req PlanRequest) (string, error)
}

// QueryResult is the row set produced by executing compiled SQL.
type QueryResult struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

// QueryExecutor runs SQL against the fact-table store.
type QueryExecutor interface {
	Execute(ctx context.Context, sqlQuery string) (*QueryResult, error)
}

// QueryRecord is one audit entry in the query history.
type QueryRecord struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id,omitempty"`
	MetricName    string    `json:"metric_name"`
	OriginalQuery string    `json:"original_query,omitempty"`
	GeneratedSQL  string    `json:"generated_sql"`
	GeneratedBy   string    `json:"generated_by"`
	Outcome       string    `json:"outcome"`
	CreatedAt     time.Time `json:"created_at"`
}

// QueryHistoryRepository persists query audit records.
type QueryHistoryRepository interface {
	Record(ctx context.Context, rec *QueryRecord) error
	ListRecent(ctx context.Context, limit int) ([]QueryRecord, error)
}
