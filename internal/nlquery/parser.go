package nlquery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikallon/datacore/internal/semantics"
)

// llmReply is the structured reply expected inside the completion text.
// Unknown fields are ignored at decode time; known fields are validated
// against the catalog before they are allowed to propagate.
type llmReply struct {
	MetricName  string         `json:"metric_name"`
	Dimensions  []string       `json:"dimensions"`
	TimeKeyword string         `json:"time_keyword"`
	StartDate   string         `json:"start_date"`
	EndDate     string         `json:"end_date"`
	Filters     map[string]any `json:"filters"`
}

// parseReply locates the first balanced {...} block in the completion text
// and decodes it. A reply without a parseable block is a resolution failure.
func parseReply(text string) (*llmReply, error) {
	block, ok := extractJSONBlock(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in completion reply")
	}
	var reply llmReply
	if err := json.Unmarshal([]byte(block), &reply); err != nil {
		return nil, fmt.Errorf("decode completion reply: %w", err)
	}
	return &reply, nil
}

// extractJSONBlock returns the first balanced top-level {...} block,
// tracking string literals so braces inside values do not unbalance it.
func extractJSONBlock(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// validateReply filters the reply down to names the catalog knows: an
// unknown metric name is cleared (the merger then falls back to the rule
// result), unknown dimensions and filter keys are dropped.
func validateReply(reply *llmReply, catalog *semantics.Catalog) {
	if reply.MetricName != "" {
		if _, ok := catalog.Metric(reply.MetricName); !ok {
			reply.MetricName = ""
		}
	}

	model := catalog.Model()
	if len(reply.Dimensions) > 0 {
		valid := reply.Dimensions[:0]
		for _, d := range reply.Dimensions {
			if model.HasDimension(d) {
				valid = append(valid, d)
			}
		}
		reply.Dimensions = valid
	}
	if len(reply.Filters) > 0 {
		for key := range reply.Filters {
			if !model.HasDimension(key) {
				delete(reply.Filters, key)
			}
		}
	}
}

// dateLayoutLenient also accepts non-zero-padded months and days, which
// completion services emit now and then.
const dateLayoutLenient = "2006-1-2"

// repairDate rewrites a completion-supplied date whose year differs from the
// current year, preserving month and day; if the rewritten date is still in
// the future it is clamped to today. Malformed dates pass through unchanged
// rather than failing, as does Feb 29 when the current year has none.
func repairDate(s string, now time.Time) string {
	if s == "" {
		return s
	}
	parsed, err := time.Parse(dateLayoutLenient, s)
	if err != nil {
		return s
	}
	if parsed.Year() == now.Year() {
		return s
	}
	fixed := time.Date(now.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	if fixed.Month() != parsed.Month() {
		return s
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if fixed.After(today) {
		fixed = today
	}
	return fixed.Format(dateLayout)
}
