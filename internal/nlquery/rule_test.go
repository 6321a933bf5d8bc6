package nlquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikallon/datacore/internal/domain"
	"github.com/mikallon/datacore/internal/semantics"
)

// fixedNow is a Wednesday.
var fixedNow = time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func testCatalog(t *testing.T) *semantics.Catalog {
	t.Helper()
	model := &domain.SemanticModel{
		Name:          "toll_revenue",
		Model:         "ref('dws_toll_revenue_daily')",
		Schema:        "main_dws",
		TimeDimension: "transaction_date",
		Measures: []domain.Measure{
			{Name: "total_amount", Expr: "total_amount", Agg: domain.AggregationSum},
			{Name: "transaction_count", Expr: "transaction_count", Agg: domain.AggregationSum},
			{Name: "etc_transaction_count", Expr: "etc_transaction_count", Agg: domain.AggregationSum},
		},
		Dimensions: []domain.Dimension{
			{Name: "city"},
			{Name: "station_name"},
			{Name: "vehicle_type_name"},
			{Name: "payment_method_name"},
			{Name: "highway_code"},
		},
	}
	metrics := []domain.MetricDefinition{
		{
			Name: "total_toll_revenue", Label: "通行费总收入", Description: "总收入 营收 金额",
			Type: domain.MetricTypeSimple, TypeParams: domain.MetricTypeParams{Measure: "total_amount"},
		},
		{
			Name: "total_transactions", Label: "交易总笔数", Description: "交易 笔数 车流量",
			Type: domain.MetricTypeSimple, TypeParams: domain.MetricTypeParams{Measure: "transaction_count"},
		},
		{
			Name: "etc_usage_rate", Label: "ETC使用率", Description: "使用率 渗透率",
			Type: domain.MetricTypeRatio, TypeParams: domain.MetricTypeParams{
				Numerator: "etc_transaction_count", Denominator: "transaction_count",
			},
		},
	}
	return semantics.NewCatalog(model, metrics)
}

func newRules(t *testing.T) *RuleResolver {
	t.Helper()
	return NewRuleResolver(testCatalog(t)).WithClock(clock)
}

func TestRuleParse_ChineseRevenueByCityLastSevenDays(t *testing.T) {
	q := newRules(t).Parse("最近7天各城市的通行费总收入")

	assert.Equal(t, "total_toll_revenue", q.MetricName)
	assert.Equal(t, []string{"city"}, q.Dimensions)
	assert.Equal(t, "2026-08-20", q.StartDate, "a 7-day window ending today spans 7 calendar days")
	assert.Equal(t, "2026-08-26", q.EndDate)
	assert.Equal(t, "last 7 days", q.TimeKeyword)
}

func TestRuleParse_LabelAndDescriptionLookup(t *testing.T) {
	rules := newRules(t)

	assert.Equal(t, "etc_usage_rate", rules.Parse("ETC使用率怎么样").MetricName)
	assert.Equal(t, "total_transactions", rules.Parse("看一下车流量").MetricName)
	assert.Equal(t, "total_toll_revenue", rules.Parse("total_toll_revenue by station").MetricName)
}

func TestRuleParse_ConceptFallback(t *testing.T) {
	rules := newRules(t)

	// No lookup key matches; the revenue concept picks the revenue metric.
	assert.Equal(t, "total_toll_revenue", rules.Parse("show me the revenue trend").MetricName)
	assert.Equal(t, "total_transactions", rules.Parse("transaction breakdown please").MetricName)
}

func TestRuleParse_DefaultsToFirstMetric(t *testing.T) {
	q := newRules(t).Parse("你好")
	assert.Equal(t, "total_toll_revenue", q.MetricName)
	assert.Empty(t, q.Dimensions)
	assert.Empty(t, q.StartDate)
	assert.Empty(t, q.TimeKeyword)
}

func TestRuleParse_ExplicitDates(t *testing.T) {
	rules := newRules(t)

	q := rules.Parse("2026-08-01 到 2026-08-15 的收入")
	assert.Equal(t, "2026-08-01", q.StartDate)
	assert.Equal(t, "2026-08-15", q.EndDate)
	assert.Equal(t, "explicit", q.TimeKeyword)

	single := rules.Parse("2026/8/5 的收入")
	assert.Equal(t, "2026-08-05", single.StartDate)
	assert.Equal(t, "2026-08-05", single.EndDate)
}

func TestRuleParse_ExplicitDatesBeatKeywords(t *testing.T) {
	q := newRules(t).Parse("昨天不算，查 2026-08-10 的收入")
	assert.Equal(t, "2026-08-10", q.StartDate)
	assert.Equal(t, "explicit", q.TimeKeyword)
}

func TestRuleParse_TimeKeywords(t *testing.T) {
	rules := newRules(t)

	tests := []struct {
		text    string
		start   string
		end     string
		keyword string
	}{
		{"今天的收入", "2026-08-26", "2026-08-26", "today"},
		{"yesterday revenue", "2026-08-25", "2026-08-25", "yesterday"},
		{"本周收入", "2026-08-24", "2026-08-26", "this week"},
		{"this month revenue", "2026-08-01", "2026-08-26", "this month"},
		{"最近30天收入", "2026-07-28", "2026-08-26", "last 30 days"},
		{"last 3 days revenue", "2026-08-24", "2026-08-26", "last 3 days"},
		{"Last 3 Days revenue", "2026-08-24", "2026-08-26", "last 3 days"},
		{"Recent 14 days of revenue", "2026-08-13", "2026-08-26", "last 14 days"},
		{"最近收入情况", "2026-08-20", "2026-08-26", "last 7 days"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			q := rules.Parse(tt.text)
			assert.Equal(t, tt.start, q.StartDate)
			assert.Equal(t, tt.end, q.EndDate)
			assert.Equal(t, tt.keyword, q.TimeKeyword)
		})
	}
}

func TestRuleParse_Dimensions(t *testing.T) {
	q := newRules(t).Parse("按城市和车型看支付方式的收入")
	assert.Equal(t, []string{"city", "vehicle_type_name", "payment_method_name"}, q.Dimensions)

	// Bilingual mentions of the same dimension dedupe.
	q = newRules(t).Parse("city 城市 revenue")
	assert.Equal(t, []string{"city"}, q.Dimensions)
}

func TestRuleParse_CityFilter(t *testing.T) {
	q := newRules(t).Parse("北京的收入")
	require.NotNil(t, q.Filters)
	assert.Equal(t, "北京", q.Filters["city"])

	// Only one city filter is derived even when several cities appear.
	q = newRules(t).Parse("上海和天津的收入")
	assert.Equal(t, "上海", q.Filters["city"])

	q = newRules(t).Parse("全国收入")
	assert.Nil(t, q.Filters)
}

func TestRuleParse_Idempotent(t *testing.T) {
	rules := newRules(t)
	text := "最近7天北京按城市的通行费总收入"

	first := rules.Parse(text)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, rules.Parse(text))
	}
}

func TestRuleParse_ShippedCatalog(t *testing.T) {
	catalog, err := semantics.LoadCatalog("../../models/dws/schema.yml", "../../models/metrics.yml")
	require.NoError(t, err)
	rules := NewRuleResolver(catalog).WithClock(clock)

	// A generic revenue question must land on the daily-revenue metric, not
	// on a narrower metric that happens to share a keyword.
	q := rules.Parse("查询最近7天的日收入，按城市分组")
	assert.Equal(t, "total_toll_revenue", q.MetricName)
	assert.Equal(t, []string{"city"}, q.Dimensions)
	assert.Equal(t, "2026-08-20", q.StartDate)
	assert.Equal(t, "2026-08-26", q.EndDate)

	// ETC questions still reach the ETC metrics.
	assert.Equal(t, "etc_revenue", rules.Parse("最近7天的ETC收入").MetricName)
	assert.Equal(t, "etc_usage_rate", rules.Parse("本月ETC使用率").MetricName)
}

func TestRuleParse_OriginalQueryPreserved(t *testing.T) {
	text := "最近7天的收入"
	q := newRules(t).Parse(text)
	assert.Equal(t, text, q.OriginalQuery)
}
