package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
)

// OpenDuckDB opens the DuckDB database holding the fact tables. The metrics
// layer only reads from it; writes belong to the upstream pipeline.
func OpenDuckDB(path string) (*sql.DB, error) {
	duck, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := duck.PingContext(ctx); err != nil {
		_ = duck.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	return duck, nil
}
