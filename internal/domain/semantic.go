package domain

import "strings"

const (
	AggregationSum     = "sum"
	AggregationAverage = "average"
	AggregationCount   = "count"

	MetricTypeSimple = "simple"
	MetricTypeRatio  = "ratio"

	GranularityDay   = "day"
	GranularityWeek  = "week"
	GranularityMonth = "month"
	GranularityYear  = "year"
)

// Measure is a numeric expression with an associated aggregation function,
// scoped to one fact table. Immutable once its semantic model is loaded.
type Measure struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
	Agg  string `yaml:"agg" json:"agg"`
}

// Dimension is a categorical column usable for grouping or filtering.
type Dimension struct {
	Name string `yaml:"name" json:"name"`
}

// SemanticModel is the declarative map of one fact table's measures and
// dimensions. One active instance per process; a reload replaces it
// wholesale, never mutates it in place.
type SemanticModel struct {
	Name          string      `yaml:"name" json:"name"`
	Model         string      `yaml:"model" json:"model"` // ref('table_name') or a bare table name
	Schema        string      `yaml:"schema" json:"schema"`
	TimeDimension string      `yaml:"time_dimension" json:"time_dimension"`
	Measures      []Measure   `yaml:"measures" json:"measures"`
	Dimensions    []Dimension `yaml:"dimensions" json:"dimensions"`
}

// TableRef resolves the model reference into a fully-qualified table name.
// dbt-style ref('dws_toll_revenue_daily') becomes schema.dws_toll_revenue_daily.
func (m *SemanticModel) TableRef() string {
	table := m.Model
	if i := strings.Index(table, "ref('"); i >= 0 {
		rest := table[i+len("ref('"):]
		if j := strings.Index(rest, "')"); j >= 0 {
			table = rest[:j]
		}
	}
	if m.Schema != "" {
		return m.Schema + "." + table
	}
	return table
}

// TimeColumn returns the model's time dimension, defaulting to transaction_date.
func (m *SemanticModel) TimeColumn() string {
	if m.TimeDimension != "" {
		return m.TimeDimension
	}
	return "transaction_date"
}

// Measure looks up a measure definition by name.
func (m *SemanticModel) Measure(name string) (Measure, bool) {
	for _, ms := range m.Measures {
		if ms.Name == name {
			return ms, true
		}
	}
	return Measure{}, false
}

// HasDimension reports whether the model defines the named dimension.
func (m *SemanticModel) HasDimension(name string) bool {
	for _, d := range m.Dimensions {
		if d.Name == name {
			return true
		}
	}
	return false
}

// DimensionNames returns the model's dimension names in declaration order.
func (m *SemanticModel) DimensionNames() []string {
	names := make([]string, len(m.Dimensions))
	for i, d := range m.Dimensions {
		names[i] = d.Name
	}
	return names
}

// MetricTypeParams carries the measure references of a metric definition.
// Simple metrics set Measure; ratio metrics set Numerator and Denominator.
type MetricTypeParams struct {
	Measure     string `yaml:"measure" json:"measure,omitempty"`
	Numerator   string `yaml:"numerator" json:"numerator,omitempty"`
	Denominator string `yaml:"denominator" json:"denominator,omitempty"`
}

// MetricDefinition is a named, typed combination of one or two measures that
// produces a single reportable value.
type MetricDefinition struct {
	Name        string           `yaml:"name" json:"name"`
	Label       string           `yaml:"label" json:"label"`
	Description string           `yaml:"description" json:"description"`
	Type        string           `yaml:"type" json:"type"`
	TypeParams  MetricTypeParams `yaml:"type_params" json:"type_params"`
}

// MetricQuery is the validated, language-neutral request shape consumed by
// the SQL compiler. Filter values are scalars or lists of scalars; unknown
// filter keys are dropped at compile time, never raised.
type MetricQuery struct {
	MetricName      string         `json:"metric_name"`
	Dimensions      []string       `json:"dimensions,omitempty"`
	Filters         map[string]any `json:"filters,omitempty"`
	StartDate       string         `json:"start_date,omitempty"`
	EndDate         string         `json:"end_date,omitempty"`
	TimeGranularity string         `json:"time_granularity,omitempty"`
}

// ParsedQuery is the outcome of resolving a natural-language question: a
// MetricQuery plus the verbatim input and the recognized time keyword, kept
// for auditability. Created per resolution call, immutable after
// construction, never persisted except to the query-history store.
type ParsedQuery struct {
	MetricQuery
	OriginalQuery string `json:"original_query"`
	TimeKeyword   string `json:"time_keyword,omitempty"`
}
