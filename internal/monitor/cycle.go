package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/alerts"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
)

// Enricher produces AI analysis for an evaluation, falling back to the
// raw evaluation when the enrichment budget does not allow a call.
type Enricher interface {
	Enhance(ctx context.Context, eval *model.CostEvaluation, history []model.CostEvaluation) (*model.EnrichedEvaluation, error)
}

// Alerter delivers one formatted alert across the configured channels.
type Alerter interface {
	Deliver(ctx context.Context, eval *model.CostEvaluation, actx *model.AlertContext, insight *model.Insight, pushCfg alerts.PushChannelConfig) (*model.DeliveryOutcome, error)
}

// Cycle is one evaluation pass: read spend, compare against the
// threshold, enrich, deliver.
type Cycle struct {
	source         CostSource
	enricher       Enricher
	alerter        Alerter
	pushCfg        alerts.PushChannelConfig
	thresholdUSD   float64
	minServiceCost float64
	retryCfg       retry.Config
	logger         *slog.Logger
}

// NewCycle wires an evaluation cycle.
func NewCycle(source CostSource, enricher Enricher, alerter Alerter, pushCfg alerts.PushChannelConfig, thresholdUSD, minServiceCost float64, retryCfg retry.Config, logger *slog.Logger) *Cycle {
	return &Cycle{
		source:         source,
		enricher:       enricher,
		alerter:        alerter,
		pushCfg:        pushCfg,
		thresholdUSD:   thresholdUSD,
		minServiceCost: minServiceCost,
		retryCfg:       retryCfg,
		logger:         logger,
	}
}

// Run executes one cycle. A cost source failure aborts the cycle: a
// spend figure that could not be read is never treated as zero. When
// spend is at or under the threshold the cycle is a no-op and returns a
// nil outcome. An enrichment failure degrades the alert to the raw
// evaluation rather than dropping it.
func (c *Cycle) Run(ctx context.Context) (*model.DeliveryOutcome, error) {
	eval, _, err := retry.Do(ctx, c.retryCfg, retry.Retryable, func(ctx context.Context) (*model.CostEvaluation, error) {
		return c.source.CurrentSpend(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("read current spend: %w", err)
	}

	if eval.TotalCost <= c.thresholdUSD {
		c.logger.Info("spend under threshold, no alert",
			"total_usd", eval.TotalCost, "threshold_usd", c.thresholdUSD)
		return nil, nil
	}

	var insight *model.Insight
	enriched, err := c.enricher.Enhance(ctx, eval, nil)
	if err != nil {
		c.logger.Error("enrichment failed, alerting without analysis", "error", err)
	} else if !enriched.FallbackUsed {
		insight = enriched.Insight
	}

	actx := alerts.BuildContext(eval, c.thresholdUSD, c.minServiceCost)
	c.logger.Warn("budget threshold exceeded",
		"total_usd", eval.TotalCost, "threshold_usd", c.thresholdUSD,
		"percent_over", actx.PercentOver, "severity", actx.Severity)

	outcome, err := c.alerter.Deliver(ctx, eval, actx, insight, c.pushCfg)
	if err != nil {
		return outcome, fmt.Errorf("deliver alert: %w", err)
	}
	return outcome, nil
}
