package semantics

import (
	"fmt"
	"strings"

	"github.com/mikallon/datacore/internal/domain"
)

// CompileMetricSQL compiles a metric definition against a semantic model
// into executable SQL. It is a pure function: identical inputs always yield
// byte-identical SQL.
//
// The projection is the model's time column, then each requested dimension
// the model knows (unknown dimensions are dropped, mirroring the filter
// policy), then the metric expression aliased as metric_value. Grouping
// covers every projected column except the metric value, ordering is always
// by the time column ascending.
//
// Filter values are inserted as literal-quoted strings; the compiler assumes
// trusted, pre-validated input and leaves any escaping policy to callers.
func CompileMetricSQL(metric *domain.MetricDefinition, model *domain.SemanticModel, q domain.MetricQuery) (string, error) {
	expr, err := metricExpression(metric, model)
	if err != nil {
		return "", err
	}

	timeCol := model.TimeColumn()
	selectFields := []string{timeCol}
	for _, dim := range q.Dimensions {
		if model.HasDimension(dim) {
			selectFields = append(selectFields, dim)
		}
	}
	selectFields = append(selectFields, expr+" AS metric_value")

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectFields, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(model.TableRef())
	sb.WriteString(" WHERE 1=1")

	if q.StartDate != "" {
		fmt.Fprintf(&sb, " AND %s >= '%s'", timeCol, q.StartDate)
	}
	if q.EndDate != "" {
		fmt.Fprintf(&sb, " AND %s <= '%s'", timeCol, q.EndDate)
	}

	// Filters are emitted in the model's dimension declaration order so that
	// identical inputs compile to identical SQL regardless of map iteration.
	for _, dim := range model.Dimensions {
		value, ok := q.Filters[dim.Name]
		if !ok {
			continue
		}
		sb.WriteString(" AND ")
		sb.WriteString(filterClause(dim.Name, value))
	}

	groupBy := selectFields[:len(selectFields)-1]
	sb.WriteString(" GROUP BY ")
	sb.WriteString(strings.Join(groupBy, ", "))
	sb.WriteString(" ORDER BY ")
	sb.WriteString(timeCol)

	return sb.String(), nil
}

// metricExpression builds the aggregation expression for a metric. Ratio
// metrics always compile to a percentage, (AGG(num) * 100.0) / AGG(den).
func metricExpression(metric *domain.MetricDefinition, model *domain.SemanticModel) (string, error) {
	switch metric.Type {
	case domain.MetricTypeSimple:
		name := metric.TypeParams.Measure
		measure, ok := model.Measure(name)
		if !ok {
			return "", domain.ErrUnknownMeasure(name)
		}
		return aggExpression(measure), nil

	case domain.MetricTypeRatio:
		numName := metric.TypeParams.Numerator
		denName := metric.TypeParams.Denominator
		if numName == "" || denName == "" {
			return "", domain.ErrMissingRatioOperand(metric.Name)
		}
		num, ok := model.Measure(numName)
		if !ok {
			return "", domain.ErrUnknownMeasure(numName)
		}
		den, ok := model.Measure(denName)
		if !ok {
			return "", domain.ErrUnknownMeasure(denName)
		}
		return fmt.Sprintf("(%s * 100.0) / %s", aggExpression(num), aggExpression(den)), nil

	default:
		return "", domain.ErrUnsupportedMetricType(metric.Type)
	}
}

// aggExpression maps a measure's aggregation to its SQL function. Unknown
// aggregation names are upper-cased and used verbatim.
func aggExpression(m domain.Measure) string {
	var fn string
	switch m.Agg {
	case domain.AggregationSum, "":
		fn = "SUM"
	case domain.AggregationAverage:
		fn = "AVG"
	case domain.AggregationCount:
		fn = "COUNT"
	default:
		fn = strings.ToUpper(m.Agg)
	}
	return fmt.Sprintf("%s(%s)", fn, m.Expr)
}

// filterClause renders one dimension filter: equality for a scalar,
// an IN list for a slice.
func filterClause(dim string, value any) string {
	switch v := value.(type) {
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprintf("'%v'", item)
		}
		return fmt.Sprintf("%s IN (%s)", dim, strings.Join(parts, ", "))
	case []string:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprintf("'%s'", item)
		}
		return fmt.Sprintf("%s IN (%s)", dim, strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("%s = '%v'", dim, v)
	}
}
