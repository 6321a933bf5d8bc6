package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikallon/datacore/internal/config"
	"github.com/mikallon/datacore/internal/domain"
	"github.com/mikallon/datacore/internal/middleware"
	"github.com/mikallon/datacore/internal/nlquery"
	"github.com/mikallon/datacore/internal/semantics"
	"github.com/mikallon/datacore/internal/service/query"
)

type stubExecutor struct {
	err error
}

func (s *stubExecutor) Execute(_ context.Context, _ string) (*domain.QueryResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.QueryResult{
		Columns:  []string{"transaction_date", "metric_value"},
		Rows:     [][]any{{"2026-08-26", 12345.67}},
		RowCount: 1,
	}, nil
}

func testRouter(t *testing.T, executor domain.QueryExecutor) http.Handler {
	t.Helper()

	model := &domain.SemanticModel{
		Name:          "toll_revenue",
		Model:         "ref('dws_toll_revenue_daily')",
		Schema:        "main_dws",
		TimeDimension: "transaction_date",
		Measures: []domain.Measure{
			{Name: "total_amount", Expr: "total_amount", Agg: domain.AggregationSum},
		},
		Dimensions: []domain.Dimension{{Name: "city"}},
	}
	metrics := []domain.MetricDefinition{
		{
			Name: "total_toll_revenue", Label: "通行费总收入", Description: "总收入 营收",
			Type: domain.MetricTypeSimple, TypeParams: domain.MetricTypeParams{Measure: "total_amount"},
		},
		{
			Name: "broken_metric", Label: "坏指标",
			Type: domain.MetricTypeSimple, TypeParams: domain.MetricTypeParams{Measure: "missing"},
		},
	}
	registry := semantics.NewRegistry(semantics.NewCatalog(model, metrics))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := nlquery.NewResolver(nlquery.NewClient(config.LLMConfig{}), logger).
		WithClock(func() time.Time { return time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC) })
	svc := query.NewService(registry, resolver, executor, nil, nil, logger)

	cfg := &config.Config{
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		CORSAllowedOrigins: []string{"*"},
	}
	return NewRouter(NewHandler(svc, logger), cfg)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, testRouter(t, &stubExecutor{}), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListMetrics(t *testing.T) {
	rec := doJSON(t, testRouter(t, &stubExecutor{}), http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var metrics []domain.MetricDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metrics))
	require.Len(t, metrics, 2)
	assert.Equal(t, "total_toll_revenue", metrics[0].Name)
}

func TestSemanticModel(t *testing.T) {
	rec := doJSON(t, testRouter(t, &stubExecutor{}), http.MethodGet, "/api/semantic-model", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var model domain.SemanticModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &model))
	assert.Equal(t, "toll_revenue", model.Name)
}

func TestQueryMetric(t *testing.T) {
	rec := doJSON(t, testRouter(t, &stubExecutor{}), http.MethodPost, "/api/metrics/query", domain.MetricQuery{
		MetricName: "total_toll_revenue",
		Dimensions: []string{"city"},
		StartDate:  "2026-08-01",
		EndDate:    "2026-08-26",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result query.MetricResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "total_toll_revenue", result.MetricName)
	assert.Contains(t, result.SQL, "SUM(total_amount)")
	assert.Equal(t, 1, result.Data.RowCount)
}

func TestQueryMetric_BadRequests(t *testing.T) {
	router := testRouter(t, &stubExecutor{})

	rec := doJSON(t, router, http.MethodPost, "/api/metrics/query", domain.MetricQuery{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/metrics/query", bytes.NewReader([]byte("not json")))
	recRaw := httptest.NewRecorder()
	router.ServeHTTP(recRaw, req)
	assert.Equal(t, http.StatusBadRequest, recRaw.Code)
}

func TestQueryMetric_NotFound(t *testing.T) {
	rec := doJSON(t, testRouter(t, &stubExecutor{}), http.MethodPost, "/api/metrics/query", domain.MetricQuery{
		MetricName: "no_such_metric",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryMetric_ConfigurationError(t *testing.T) {
	// broken_metric references a measure the model does not define.
	rec := doJSON(t, testRouter(t, &stubExecutor{}), http.MethodPost, "/api/metrics/query", domain.MetricQuery{
		MetricName: "broken_metric",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestQueryMetric_ExecutorFailure(t *testing.T) {
	rec := doJSON(t, testRouter(t, &stubExecutor{err: errors.New("boom")}), http.MethodPost, "/api/metrics/query", domain.MetricQuery{
		MetricName: "total_toll_revenue",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestQueryNatural(t *testing.T) {
	rec := doJSON(t, testRouter(t, &stubExecutor{}), http.MethodPost, "/api/metrics/query/natural", map[string]any{
		"query": "最近7天各城市的通行费总收入",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result query.NaturalResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "total_toll_revenue", result.MetricName)
	assert.Equal(t, nlquery.SourceRules, result.Source)
	assert.Equal(t, "2026-08-20", result.Parsed.StartDate)
	assert.Equal(t, "最近7天各城市的通行费总收入", result.Parsed.OriginalQuery)
}

func TestQueryNatural_EmptyQuery(t *testing.T) {
	rec := doJSON(t, testRouter(t, &stubExecutor{}), http.MethodPost, "/api/metrics/query/natural", map[string]any{
		"query": "",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_EmptyWithoutStore(t *testing.T) {
	rec := doJSON(t, testRouter(t, &stubExecutor{}), http.MethodGet, "/api/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "null", rec.Body.String())
}

func TestRequestIDHeaderPropagates(t *testing.T) {
	router := testRouter(t, &stubExecutor{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(middleware.RequestIDHeader, "fixed-id")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", rec.Header().Get(middleware.RequestIDHeader))
}
