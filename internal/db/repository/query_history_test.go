package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikallon/datacore/internal/db"
	"github.com/mikallon/datacore/internal/domain"
)

func TestQueryHistoryRoundTrip(t *testing.T) {
	repo := NewQueryHistoryRepo(db.OpenTestSQLite(t))
	ctx := context.Background()

	rec := &domain.QueryRecord{
		RequestID:     "req-1",
		MetricName:    "total_toll_revenue",
		OriginalQuery: "最近7天的收入",
		GeneratedSQL:  "SELECT 1",
		GeneratedBy:   "compiler",
		Outcome:       "resolved",
	}
	require.NoError(t, repo.Record(ctx, rec))

	assert.NotEmpty(t, rec.ID, "missing ID is filled in")
	assert.False(t, rec.CreatedAt.IsZero(), "missing timestamp is filled in")

	records, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "total_toll_revenue", got.MetricName)
	assert.Equal(t, "最近7天的收入", got.OriginalQuery)
	assert.Equal(t, "resolved", got.Outcome)
}

func TestQueryHistoryListRecentOrdersNewestFirst(t *testing.T) {
	repo := NewQueryHistoryRepo(db.OpenTestSQLite(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Record(ctx, &domain.QueryRecord{
			MetricName: "total_toll_revenue",
			Outcome:    "resolved",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt))
}

func TestQueryHistoryListRecentDefaultLimit(t *testing.T) {
	repo := NewQueryHistoryRepo(db.OpenTestSQLite(t))

	records, err := repo.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
