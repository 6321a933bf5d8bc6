package nlquery

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikallon/datacore/internal/semantics"
)

// BuildHybridPrompt builds the preferred prompt: the model picks metric,
// dimensions, and a time keyword, and must not compute calendar dates.
// Date arithmetic stays with the rule resolver, which is authoritative.
func BuildHybridPrompt(catalog *semantics.Catalog, query string) string {
	var sb strings.Builder
	sb.WriteString("You answer metric questions against a governed semantic layer.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Only use the metrics defined below; never guess SQL or invent calculations.\n")
	sb.WriteString("2. Metric definitions already encode the correct business logic.\n")
	sb.WriteString("3. Your job is intent: pick the right metric and dimensions.\n")
	sb.WriteString("4. For time ranges, return only the time keyword from the question (for example \"last 7 days\", \"this month\", \"yesterday\"). Do NOT compute concrete dates.\n\n")

	sb.WriteString("Available metrics:\n")
	for _, m := range catalog.Metrics() {
		fmt.Fprintf(&sb, "- %s: %s (%s)\n", m.Name, m.Label, m.Description)
	}

	sb.WriteString("\nAvailable dimensions: ")
	sb.WriteString(strings.Join(catalog.Model().DimensionNames(), ", "))

	sb.WriteString("\n\nUser question: ")
	sb.WriteString(query)

	sb.WriteString("\n\nRespond with a single JSON object and nothing else:\n")
	sb.WriteString(`{"metric_name": "...", "dimensions": ["..."], "time_keyword": "...", "filters": {"key": "value"}}`)
	sb.WriteString("\n\nRemember: return the time keyword only, never concrete dates.")
	return sb.String()
}

// BuildLegacyPrompt builds the compatibility prompt that asks the model to
// compute explicit dates itself. Replies from this path go through date
// repair before use.
func BuildLegacyPrompt(catalog *semantics.Catalog, query string, now time.Time) string {
	today := now.Format(dateLayout)

	var sb strings.Builder
	sb.WriteString("You answer metric questions against a governed semantic layer.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Only use the metrics defined below; never guess SQL or invent calculations.\n")
	fmt.Fprintf(&sb, "2. The current date is %s; all date arithmetic must be based on it.\n\n", today)

	sb.WriteString("Available metrics:\n")
	for _, m := range catalog.Metrics() {
		fmt.Fprintf(&sb, "- %s: %s (%s)\n", m.Name, m.Label, m.Description)
	}

	sb.WriteString("\nAvailable dimensions: ")
	sb.WriteString(strings.Join(catalog.Model().DimensionNames(), ", "))

	sb.WriteString("\n\nUser question: ")
	sb.WriteString(query)

	sb.WriteString("\n\nRespond with a single JSON object and nothing else:\n")
	fmt.Fprintf(&sb, `{"metric_name": "...", "dimensions": ["..."], "start_date": "YYYY-MM-DD (not after %s)", "end_date": "YYYY-MM-DD (not after %s)", "filters": {"key": "value"}}`, today, today)
	return sb.String()
}
