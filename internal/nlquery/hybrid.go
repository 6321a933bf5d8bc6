package nlquery

import (
	"context"
	"log/slog"
	"time"

	"github.com/mikallon/datacore/internal/domain"
	"github.com/mikallon/datacore/internal/semantics"
)

// Outcome tags which resolution path produced a result.
type Outcome string

const (
	// OutcomeResolved means the requested path completed.
	OutcomeResolved Outcome = "resolved"
	// OutcomeDegraded means the completion service failed and the rule
	// resolver answered instead.
	OutcomeDegraded Outcome = "degraded"
)

// Source names the resolver that produced the final query.
type Source string

const (
	SourceRules  Source = "rules"
	SourceHybrid Source = "hybrid"
	SourceLegacy Source = "llm-legacy"
)

// Resolution is the tagged result of resolving one natural-language query.
// Callers and tests can observe which path executed without relying on logs.
type Resolution struct {
	Query   domain.ParsedQuery `json:"query"`
	Outcome Outcome            `json:"outcome"`
	Source  Source             `json:"source"`
	Reason  string             `json:"reason,omitempty"`
}

// Resolver turns free text into a structured metric query. With a configured
// completion client it runs the hybrid strategy: the external service
// recognizes metric, dimensions, and a time keyword, while the rule resolver
// computes the concrete date range from the original text. Without one, or
// on any service failure, it degrades to rules alone. Callers never see
// completion-layer errors.
type Resolver struct {
	llm    *Client
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver creates a resolver. llm may be nil, disabling the hybrid path.
func NewResolver(llm *Client, logger *slog.Logger) *Resolver {
	return &Resolver{llm: llm, logger: logger, now: time.Now}
}

// WithClock overrides the resolver's clock for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve parses text against one catalog snapshot. useLLM selects the
// hybrid path when a completion client is configured.
func (r *Resolver) Resolve(ctx context.Context, catalog *semantics.Catalog, text string, useLLM bool) Resolution {
	rules := NewRuleResolver(catalog).WithClock(r.now)
	ruleQuery := rules.Parse(text)

	if !useLLM || r.llm == nil || !r.llm.Enabled() {
		return Resolution{Query: ruleQuery, Outcome: OutcomeResolved, Source: SourceRules}
	}

	reply, err := r.complete(ctx, catalog, BuildHybridPrompt(catalog, text))
	if err != nil {
		r.logger.Warn("completion resolution failed, falling back to rules", "error", err)
		return Resolution{Query: ruleQuery, Outcome: OutcomeDegraded, Source: SourceRules, Reason: err.Error()}
	}

	// The service supplies metric, dimensions, and filters; the date range is
	// always the rule resolver's, computed from the original text.
	merged := ruleQuery
	if reply.MetricName != "" {
		merged.MetricName = reply.MetricName
	}
	if len(reply.Dimensions) > 0 {
		merged.Dimensions = reply.Dimensions
	}
	if len(reply.Filters) > 0 {
		merged.Filters = reply.Filters
	}
	if reply.TimeKeyword != "" {
		merged.TimeKeyword = reply.TimeKeyword
	}

	return Resolution{Query: merged, Outcome: OutcomeResolved, Source: SourceHybrid}
}

// ResolveLegacy exercises the compatibility prompt that asks the completion
// service for explicit dates. Returned dates run through date repair:
// implausible years are rewritten to the current year and future dates are
// clamped to today. Failures degrade to rules like the hybrid path.
func (r *Resolver) ResolveLegacy(ctx context.Context, catalog *semantics.Catalog, text string) Resolution {
	rules := NewRuleResolver(catalog).WithClock(r.now)
	ruleQuery := rules.Parse(text)

	if r.llm == nil || !r.llm.Enabled() {
		return Resolution{Query: ruleQuery, Outcome: OutcomeResolved, Source: SourceRules}
	}

	reply, err := r.complete(ctx, catalog, BuildLegacyPrompt(catalog, text, r.now()))
	if err != nil {
		r.logger.Warn("legacy completion resolution failed, falling back to rules", "error", err)
		return Resolution{Query: ruleQuery, Outcome: OutcomeDegraded, Source: SourceRules, Reason: err.Error()}
	}

	merged := ruleQuery
	if reply.MetricName != "" {
		merged.MetricName = reply.MetricName
	}
	if len(reply.Dimensions) > 0 {
		merged.Dimensions = reply.Dimensions
	}
	if len(reply.Filters) > 0 {
		merged.Filters = reply.Filters
	}
	now := r.now()
	if reply.StartDate != "" {
		merged.StartDate = repairDate(reply.StartDate, now)
	}
	if reply.EndDate != "" {
		merged.EndDate = repairDate(reply.EndDate, now)
	}

	return Resolution{Query: merged, Outcome: OutcomeResolved, Source: SourceLegacy}
}

func (r *Resolver) complete(ctx context.Context, catalog *semantics.Catalog, prompt string) (*llmReply, error) {
	text, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	reply, err := parseReply(text)
	if err != nil {
		return nil, err
	}
	validateReply(reply, catalog)
	return reply, nil
}
