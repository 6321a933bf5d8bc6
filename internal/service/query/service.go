package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikallon/datacore/internal/domain"
	"github.com/mikallon/datacore/internal/middleware"
	"github.com/mikallon/datacore/internal/nlquery"
	"github.com/mikallon/datacore/internal/semantics"
)

const (
	generatedByPlanner  = "planner"
	generatedByCompiler = "compiler"
)

// MetricResult is the outcome of one structured metric query.
type MetricResult struct {
	MetricName  string              `json:"metric_name"`
	Data        *domain.QueryResult `json:"data"`
	SQL         string              `json:"query_sql"`
	GeneratedBy string              `json:"generated_by"`
}

// NaturalResult extends MetricResult with the resolution audit trail.
type NaturalResult struct {
	MetricResult
	Parsed  domain.ParsedQuery `json:"parsed_query"`
	Outcome nlquery.Outcome    `json:"outcome"`
	Source  nlquery.Source     `json:"source"`
	Reason  string             `json:"reason,omitempty"`
}

// Service answers metric queries against the active catalog snapshot. Each
// call reads one immutable snapshot; concurrent calls share nothing mutable.
type Service struct {
	registry *semantics.Registry
	resolver *nlquery.Resolver
	executor domain.QueryExecutor
	planner  domain.SQLPlanner             // optional external semantic-query engine
	history  domain.QueryHistoryRepository // optional audit store
	logger   *slog.Logger
}

// NewService wires the query service. planner and history may be nil.
func NewService(registry *semantics.Registry, resolver *nlquery.Resolver, executor domain.QueryExecutor, planner domain.SQLPlanner, history domain.QueryHistoryRepository, logger *slog.Logger) *Service {
	return &Service{
		registry: registry,
		resolver: resolver,
		executor: executor,
		planner:  planner,
		history:  history,
		logger:   logger,
	}
}

// ListMetrics returns the metric definitions of the active catalog.
func (s *Service) ListMetrics() []domain.MetricDefinition {
	return s.registry.Current().Metrics()
}

// SemanticModel returns the active semantic model.
func (s *Service) SemanticModel() *domain.SemanticModel {
	return s.registry.Current().Model()
}

// QueryMetric runs one structured metric query: plan or compile SQL, execute
// it, and record the audit entry.
func (s *Service) QueryMetric(ctx context.Context, q domain.MetricQuery) (*MetricResult, error) {
	catalog := s.registry.Current()
	result, err := s.run(ctx, catalog, q)
	if err != nil {
		return nil, err
	}
	s.record(ctx, &domain.QueryRecord{
		RequestID:    middleware.RequestIDFromContext(ctx),
		MetricName:   q.MetricName,
		GeneratedSQL: result.SQL,
		GeneratedBy:  result.GeneratedBy,
		Outcome:      string(nlquery.OutcomeResolved),
	})
	return result, nil
}

// QueryNatural resolves a natural-language question, then runs it like a
// structured query. The resolution outcome travels with the result so
// callers can see whether the hybrid path or the rule fallback answered.
func (s *Service) QueryNatural(ctx context.Context, text string, useLLM bool) (*NaturalResult, error) {
	catalog := s.registry.Current()
	resolution := s.resolver.Resolve(ctx, catalog, text, useLLM)

	result, err := s.run(ctx, catalog, resolution.Query.MetricQuery)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &domain.QueryRecord{
		RequestID:     middleware.RequestIDFromContext(ctx),
		MetricName:    resolution.Query.MetricName,
		OriginalQuery: text,
		GeneratedSQL:  result.SQL,
		GeneratedBy:   result.GeneratedBy,
		Outcome:       string(resolution.Outcome),
	})

	return &NaturalResult{
		MetricResult: *result,
		Parsed:       resolution.Query,
		Outcome:      resolution.Outcome,
		Source:       resolution.Source,
		Reason:       resolution.Reason,
	}, nil
}

// run produces and executes SQL for one metric query against one snapshot.
func (s *Service) run(ctx context.Context, catalog *semantics.Catalog, q domain.MetricQuery) (*MetricResult, error) {
	metric, ok := catalog.Metric(q.MetricName)
	if !ok {
		return nil, domain.ErrNotFound("metric %q not found in the registry", q.MetricName)
	}

	sqlText, generatedBy, err := s.planSQL(ctx, catalog, metric, q)
	if err != nil {
		return nil, err
	}

	data, err := s.executor.Execute(ctx, sqlText)
	if err != nil {
		return nil, err
	}

	return &MetricResult{
		MetricName:  q.MetricName,
		Data:        data,
		SQL:         sqlText,
		GeneratedBy: generatedBy,
	}, nil
}

// planSQL prefers the external semantic-query engine when one is wired;
// on its unavailability or error the local compiler is authoritative.
// ConfigurationError from the compiler always surfaces to the caller.
func (s *Service) planSQL(ctx context.Context, catalog *semantics.Catalog, metric *domain.MetricDefinition, q domain.MetricQuery) (string, string, error) {
	if s.planner != nil {
		sqlText, err := s.planner.PlanSQL(ctx, planRequest(catalog.Model(), q))
		if err == nil && strings.TrimSpace(sqlText) != "" {
			return sqlText, generatedByPlanner, nil
		}
		if err != nil {
			s.logger.Warn("external planner failed, falling back to compiler", "metric", q.MetricName, "error", err)
		}
	}

	sqlText, err := semantics.CompileMetricSQL(metric, catalog.Model(), q)
	if err != nil {
		return "", "", err
	}
	return sqlText, generatedByCompiler, nil
}

// planRequest translates a metric query into the external engine's contract:
// metric names, group-by names (time column included), where-conditions, and
// the time window. Only filters on known dimensions are forwarded.
func planRequest(model *domain.SemanticModel, q domain.MetricQuery) domain.PlanRequest {
	groupBy := append([]string{}, q.Dimensions...)
	groupBy = append(groupBy, model.TimeColumn())

	var where []string
	for _, dim := range model.Dimensions {
		value, ok := q.Filters[dim.Name]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case []any:
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = fmt.Sprintf("'%v'", item)
			}
			where = append(where, fmt.Sprintf("%s IN (%s)", dim.Name, strings.Join(parts, ", ")))
		default:
			where = append(where, fmt.Sprintf("%s = '%v'", dim.Name, v))
		}
	}

	return domain.PlanRequest{
		Metrics:   []string{q.MetricName},
		GroupBy:   groupBy,
		Where:     where,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
	}
}

func (s *Service) record(ctx context.Context, rec *domain.QueryRecord) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, rec); err != nil {
		s.logger.Warn("query history record failed", "error", err)
	}
}

// History returns the most recent audit records.
func (s *Service) History(ctx context.Context, limit int) ([]domain.QueryRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListRecent(ctx, limit)
}
