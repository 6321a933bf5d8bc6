// Package nlquery resolves natural-language questions into structured metric
// queries, combining deterministic keyword rules with an optional external
// text-completion service. Exact date arithmetic is always computed locally;
// the external service is never trusted for calendar dates.
package nlquery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mikallon/datacore/internal/domain"
	"github.com/mikallon/datacore/internal/semantics"
)

const dateLayout = "2006-01-02"

var (
	cjkWordPattern  = regexp.MustCompile(`\p{Han}{2,4}`)
	datePattern     = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	dayCountPattern = regexp.MustCompile(`(\d+)\s*天|(?:last|recent)\s+(\d+)\s+days?`)
)

// dimensionKeywords maps bilingual query keywords to dimension names. Scanned
// in order; each match contributes its dimension once.
var dimensionKeywords = []struct {
	keyword   string
	dimension string
}{
	{"城市", "city"},
	{"收费站", "station_name"},
	{"车型", "vehicle_type_name"},
	{"支付方式", "payment_method_name"},
	{"高速公路", "highway_code"},
	{"city", "city"},
	{"station", "station_name"},
	{"vehicle", "vehicle_type_name"},
	{"payment", "payment_method_name"},
	{"highway", "highway_code"},
}

// conceptRules is the priority-ordered metric fallback: when no lookup key
// matches, the first concept present in the query selects the first metric
// whose name or label carries that concept.
var conceptRules = []struct {
	queryKeywords []string
	metricMarkers []string
}{
	{[]string{"收入", "revenue"}, []string{"收入", "revenue"}},
	{[]string{"交易", "transaction"}, []string{"交易", "transaction"}},
	{[]string{"质量", "quality"}, []string{"质量", "quality"}},
}

// knownCities are the city names the rule layer recognizes as filters. The
// first one present in the text becomes a city filter; no other filter kinds
// are derived at this layer.
var knownCities = []string{"北京", "上海", "南京", "天津", "德州", "廊坊"}

type metricLookupEntry struct {
	key    string
	metric string
}

// RuleResolver extracts metric, dimensions, time range, and filters from a
// natural-language string by keyword and pattern matching. It is
// deterministic, offline, and never fails: when nothing matches it falls
// back to the first metric in the catalog.
type RuleResolver struct {
	catalog *semantics.Catalog
	lookup  []metricLookupEntry
	now     func() time.Time
}

// NewRuleResolver builds a resolver over one catalog snapshot. The lookup
// table maps metric names, labels, and description keywords (contiguous runs
// of 2-4 ideographic characters, a proxy for noun phrases) to canonical
// metric names, in catalog declaration order.
func NewRuleResolver(catalog *semantics.Catalog) *RuleResolver {
	r := &RuleResolver{catalog: catalog, now: time.Now}
	seen := map[string]bool{}
	add := func(key, metric string) {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		r.lookup = append(r.lookup, metricLookupEntry{key: key, metric: metric})
	}
	for _, m := range catalog.Metrics() {
		add(m.Name, m.Name)
		add(m.Label, m.Name)
		for _, kw := range cjkWordPattern.FindAllString(m.Description, -1) {
			add(kw, m.Name)
		}
	}
	return r
}

// WithClock overrides the resolver's clock. Tests use this to pin
// today-relative ranges.
func (r *RuleResolver) WithClock(now func() time.Time) *RuleResolver {
	r.now = now
	return r
}

// Parse resolves a natural-language query into a best-effort structured
// query. It never returns an error.
func (r *RuleResolver) Parse(text string) domain.ParsedQuery {
	lower := strings.ToLower(text)

	start, end, timeKeyword := r.extractTimeRange(text, lower)

	return domain.ParsedQuery{
		MetricQuery: domain.MetricQuery{
			MetricName: r.extractMetric(lower),
			Dimensions: r.extractDimensions(lower),
			Filters:    r.extractFilters(text),
			StartDate:  start,
			EndDate:    end,
		},
		OriginalQuery: text,
		TimeKeyword:   timeKeyword,
	}
}

func (r *RuleResolver) extractMetric(lower string) string {
	for _, entry := range r.lookup {
		if strings.Contains(lower, entry.key) {
			return entry.metric
		}
	}

	for _, rule := range conceptRules {
		if !containsAny(lower, rule.queryKeywords) {
			continue
		}
		for _, m := range r.catalog.Metrics() {
			if containsAny(strings.ToLower(m.Name), rule.metricMarkers) ||
				containsAny(strings.ToLower(m.Label), rule.metricMarkers) {
				return m.Name
			}
		}
	}

	if first := r.catalog.FirstMetric(); first != nil {
		return first.Name
	}
	return ""
}

func (r *RuleResolver) extractDimensions(lower string) []string {
	var dims []string
	seen := map[string]bool{}
	for _, entry := range dimensionKeywords {
		if strings.Contains(lower, entry.keyword) && !seen[entry.dimension] {
			seen[entry.dimension] = true
			dims = append(dims, entry.dimension)
		}
	}
	return dims
}

// extractTimeRange applies the time rules in strict priority order; the
// first match wins and short-circuits the rest.
func (r *RuleResolver) extractTimeRange(text, lower string) (start, end, keyword string) {
	today := r.now()

	// 1. Explicit dates override every keyword rule.
	if matches := datePattern.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		start = normalizeDate(matches[0])
		end = start
		if len(matches) >= 2 {
			end = normalizeDate(matches[1])
		}
		return start, end, "explicit"
	}

	switch {
	case strings.Contains(text, "今天") || strings.Contains(lower, "today"):
		d := today.Format(dateLayout)
		return d, d, "today"

	case strings.Contains(text, "昨天") || strings.Contains(lower, "yesterday"):
		d := today.AddDate(0, 0, -1).Format(dateLayout)
		return d, d, "yesterday"

	case strings.Contains(text, "本周") || strings.Contains(lower, "this week"):
		daysSinceMonday := (int(today.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -daysSinceMonday)
		return monday.Format(dateLayout), today.Format(dateLayout), "this week"

	case strings.Contains(text, "本月") || strings.Contains(lower, "this month"):
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return first.Format(dateLayout), today.Format(dateLayout), "this month"

	case strings.Contains(text, "最近") || strings.Contains(lower, "last") || strings.Contains(lower, "recent"):
		days := 7
		if m := dayCountPattern.FindStringSubmatch(lower); m != nil {
			digits := m[1]
			if digits == "" {
				digits = m[2]
			}
			if n, err := strconv.Atoi(digits); err == nil && n > 0 {
				days = n
			}
		}
		// An N-day window ends today and includes it.
		start := today.AddDate(0, 0, -(days - 1))
		return start.Format(dateLayout), today.Format(dateLayout), fmt.Sprintf("last %d days", days)
	}

	return "", "", ""
}

func (r *RuleResolver) extractFilters(text string) map[string]any {
	filters := map[string]any{}
	for _, city := range knownCities {
		if strings.Contains(text, city) {
			filters["city"] = city
			break
		}
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}

func normalizeDate(match []string) string {
	month, _ := strconv.Atoi(match[2])
	day, _ := strconv.Atoi(match[3])
	return fmt.Sprintf("%s-%02d-%02d", match[1], month, day)
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
