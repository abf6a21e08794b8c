// Package inference wraps the paid AI enrichment call behind cost
// estimation, a monthly spend ledger, adaptive rate limiting, and a
// fingerprint cache. Exceeding the budget is an expected steady state,
// not an error: callers get fallback results, never budget exceptions.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/metrics"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
)

// Analysis kinds issued as independent sub-calls per enrichment.
const (
	analysisPatterns        = "patterns"
	analysisAnomalies       = "anomalies"
	analysisRecommendations = "recommendations"
)

// Config controls the budget-gated enhancer.
type Config struct {
	Enabled           bool
	FallbackOnError   bool
	CacheTTL          time.Duration
	RequestsPerMinute int
	Temperature       float64
}

// Enhancer orchestrates one budget-gated enrichment per evaluation cycle.
type Enhancer struct {
	cfg       Config
	invoker   Invoker
	costModel *CostModel
	ledger    *Ledger
	cache     *Cache
	limiter   *AdaptiveLimiter
	retryCfg  retry.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewEnhancer creates an enhancer. metrics may be nil.
func NewEnhancer(cfg Config, invoker Invoker, costModel *CostModel, ledger *Ledger, retryCfg retry.Config, logger *slog.Logger, m *metrics.Metrics) *Enhancer {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Enhancer{
		cfg:       cfg,
		invoker:   invoker,
		costModel: costModel,
		ledger:    ledger,
		cache:     NewCache(cfg.CacheTTL),
		limiter:   NewAdaptiveLimiter(cfg.RequestsPerMinute),
		retryCfg:  retryCfg,
		logger:    logger,
		metrics:   m,
	}
}

// Cache returns the underlying insight cache. Tests use it to manipulate
// the clock.
func (e *Enhancer) Cache() *Cache { return e.cache }

// Enhance enriches an evaluation with AI analysis when the budget allows.
// It never fails for budget or cache reasons; those paths return
// FallbackUsed=true. It fails only when ctx is cancelled or when every
// sub-call errored and fallback-on-error is disabled.
func (e *Enhancer) Enhance(ctx context.Context, eval *model.CostEvaluation, history []model.CostEvaluation) (*model.EnrichedEvaluation, error) {
	fallback := &model.EnrichedEvaluation{Evaluation: eval, FallbackUsed: true}

	if !e.cfg.Enabled {
		return fallback, nil
	}

	if e.ledger.Exhausted() {
		e.logger.Info("enrichment budget exhausted, skipping",
			"period", e.ledger.Period(), "spent", e.ledger.Spent())
		return fallback, nil
	}

	fingerprint := Fingerprint(eval)
	if insight, ok := e.cache.Get(fingerprint); ok {
		e.metrics.ObserveCache("hit")
		return &model.EnrichedEvaluation{Evaluation: eval, Insight: insight, FromCache: true}, nil
	}
	e.metrics.ObserveCache("miss")

	prompts := buildPrompts(eval, history)
	texts := make([]string, len(prompts))
	for i, p := range prompts {
		texts[i] = p.prompt
	}
	estimate := e.costModel.EstimateCalls(texts)
	if remaining := e.ledger.Remaining(); estimate > remaining {
		e.logger.Info("enrichment would exceed remaining budget, skipping",
			"estimate_usd", estimate, "remaining_usd", remaining)
		return fallback, nil
	}

	if err := e.limiter.Acquire(ctx, e.ledger.Utilization()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	results := e.invokeAll(ctx, prompts)

	insight := &model.Insight{}
	var errs []error
	successes := 0
	for _, r := range results {
		if r.err != nil {
			e.metrics.ObserveInferenceCall(r.name, "error")
			e.logger.Warn("enrichment sub-call failed", "analysis", r.name, "error", r.err)
			errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
			continue
		}
		e.metrics.ObserveInferenceCall(r.name, "success")
		successes++
		switch r.name {
		case analysisPatterns:
			insight.Patterns = r.result.Text
		case analysisAnomalies:
			insight.Anomalies = r.result.Text
		case analysisRecommendations:
			insight.Recommendations = r.result.Text
		}
		insight.TokensUsed += r.result.TokensUsed
		insight.CostUSD = roundCost(insight.CostUSD + r.result.EstimatedCost)
	}

	if successes == 0 {
		if e.cfg.FallbackOnError {
			e.logger.Error("all enrichment sub-calls failed, falling back", "error", errors.Join(errs...))
			return fallback, nil
		}
		return nil, fmt.Errorf("enrichment failed: %w", errors.Join(errs...))
	}

	// Money is committed only after sub-calls have fully completed, so a
	// cancelled cycle cannot leave a partial ledger mutation behind.
	e.ledger.Record(ctx, insight.CostUSD)
	e.metrics.SetLedgerSpend(e.ledger.Spent())
	e.cache.Put(fingerprint, insight)

	return &model.EnrichedEvaluation{Evaluation: eval, Insight: insight}, nil
}

type subResult struct {
	name   string
	result *InvokeResult
	err    error
}

type analysisPrompt struct {
	name   string
	prompt string
}

// invokeAll runs the sub-calls concurrently and collects each result
// independently: one failure never cancels its siblings.
func (e *Enhancer) invokeAll(ctx context.Context, prompts []analysisPrompt) []subResult {
	results := make([]subResult, len(prompts))
	var wg sync.WaitGroup

	for i, p := range prompts {
		wg.Add(1)
		go func(i int, p analysisPrompt) {
			defer wg.Done()
			result, _, err := retry.Do(ctx, e.retryCfg, retry.Retryable, func(ctx context.Context) (*InvokeResult, error) {
				return e.invoker.Invoke(ctx, p.prompt, e.costModel.MaxOutputToks, e.cfg.Temperature)
			})
			results[i] = subResult{name: p.name, result: result, err: err}
		}(i, p)
	}
	wg.Wait()
	return results
}

// buildPrompts renders the three analysis prompts from the evaluation and
// optional history.
func buildPrompts(eval *model.CostEvaluation, history []model.CostEvaluation) []analysisPrompt {
	summary := evaluationSummary(eval, history)
	return []analysisPrompt{
		{analysisPatterns, "Analyze the spending patterns in this cloud cost report. " +
			"Identify which services drive the spend and how it is distributed.\n\n" + summary},
		{analysisAnomalies, "Identify anomalies in this cloud cost report: unusual " +
			"spikes, services growing faster than the total, or costs inconsistent with the history.\n\n" + summary},
		{analysisRecommendations, "Suggest concrete cost optimizations for this cloud " +
			"cost report, ordered by expected savings.\n\n" + summary},
	}
}

func evaluationSummary(eval *model.CostEvaluation, history []model.CostEvaluation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Period %s to %s. Total spend %.2f %s, projected %.2f.\n",
		eval.PeriodStart.Format("2006-01-02"), eval.PeriodEnd.Format("2006-01-02"),
		eval.TotalCost, eval.Currency, eval.ProjectedTotal)

	type entry struct {
		name   string
		amount float64
	}
	entries := make([]entry, 0, len(eval.ServiceCosts))
	for name, amount := range eval.ServiceCosts {
		entries = append(entries, entry{name, amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].amount != entries[j].amount {
			return entries[i].amount > entries[j].amount
		}
		return entries[i].name < entries[j].name
	})

	b.WriteString("Costs by service:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %.2f\n", e.name, e.amount)
	}

	if len(history) > 0 {
		b.WriteString("Previous period totals:\n")
		for _, h := range history {
			fmt.Fprintf(&b, "- %s: %.2f\n", h.PeriodStart.Format("2006-01"), h.TotalCost)
		}
	}
	return b.String()
}
