package monitor_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/internal/monitor"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/alerts"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1}
}

type fakeSource struct {
	eval *model.CostEvaluation
	err  error
}

func (f *fakeSource) CurrentSpend(context.Context) (*model.CostEvaluation, error) {
	return f.eval, f.err
}

type fakeEnricher struct {
	enriched *model.EnrichedEvaluation
	err      error
	calls    int
}

func (f *fakeEnricher) Enhance(_ context.Context, eval *model.CostEvaluation, _ []model.CostEvaluation) (*model.EnrichedEvaluation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.enriched != nil {
		return f.enriched, nil
	}
	return &model.EnrichedEvaluation{Evaluation: eval, FallbackUsed: true}, nil
}

type fakeAlerter struct {
	calls    int
	lastEval *model.CostEvaluation
	lastCtx  *model.AlertContext
	lastIns  *model.Insight
	lastPush alerts.PushChannelConfig
	err      error
}

func (f *fakeAlerter) Deliver(_ context.Context, eval *model.CostEvaluation, actx *model.AlertContext, insight *model.Insight, pushCfg alerts.PushChannelConfig) (*model.DeliveryOutcome, error) {
	f.calls++
	f.lastEval, f.lastCtx, f.lastIns, f.lastPush = eval, actx, insight, pushCfg
	if f.err != nil {
		return &model.DeliveryOutcome{Errors: []string{f.err.Error()}}, f.err
	}
	return &model.DeliveryOutcome{
		ChannelsAttempted: []string{alerts.ChannelDefault, alerts.ChannelEmail, alerts.ChannelSMS},
		ChannelsSucceeded: []string{alerts.ChannelDefault, alerts.ChannelEmail, alerts.ChannelSMS},
	}, nil
}

func evalWithTotal(total float64) *model.CostEvaluation {
	return &model.CostEvaluation{
		TotalCost:    total,
		ServiceCosts: map[string]float64{"compute": total},
		PeriodStart:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:    time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Currency:     "USD",
	}
}

func TestCycle_UnderThresholdIsNoOp(t *testing.T) {
	source := &fakeSource{eval: evalWithTotal(80.0)}
	enricher := &fakeEnricher{}
	alerter := &fakeAlerter{}
	cycle := monitor.NewCycle(source, enricher, alerter, alerts.NoPushChannel{}, 100.0, 0.01, fastRetry(), quietLogger())

	outcome, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, outcome)
	assert.Zero(t, enricher.calls, "no enrichment when under threshold")
	assert.Zero(t, alerter.calls, "no alert when under threshold")
}

func TestCycle_ExactlyAtThresholdIsNoOp(t *testing.T) {
	source := &fakeSource{eval: evalWithTotal(100.0)}
	alerter := &fakeAlerter{}
	cycle := monitor.NewCycle(source, &fakeEnricher{}, alerter, alerts.NoPushChannel{}, 100.0, 0.01, fastRetry(), quietLogger())

	outcome, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, outcome)
	assert.Zero(t, alerter.calls)
}

func TestCycle_OverThresholdAlerts(t *testing.T) {
	source := &fakeSource{eval: evalWithTotal(130.0)}
	insight := &model.Insight{Patterns: "compute dominates"}
	enricher := &fakeEnricher{enriched: &model.EnrichedEvaluation{Insight: insight}}
	alerter := &fakeAlerter{}
	pushCfg := alerts.PushChannel{PlatformAppID: "app-42", BundleID: "com.example.sentinel"}
	cycle := monitor.NewCycle(source, enricher, alerter, pushCfg, 100.0, 0.01, fastRetry(), quietLogger())

	outcome, err := cycle.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, 1, alerter.calls)
	assert.Equal(t, insight, alerter.lastIns)
	assert.Equal(t, pushCfg, alerter.lastPush)
	require.NotNil(t, alerter.lastCtx)
	assert.InDelta(t, 30.0, alerter.lastCtx.PercentOver, 0.001)
	assert.Equal(t, model.SeverityWarning, alerter.lastCtx.Severity)
}

func TestCycle_CostSourceFailureAborts(t *testing.T) {
	source := &fakeSource{err: &retry.PermanentError{Op: "fetch costs", StatusCode: 403}}
	enricher := &fakeEnricher{}
	alerter := &fakeAlerter{}
	cycle := monitor.NewCycle(source, enricher, alerter, alerts.NoPushChannel{}, 100.0, 0.01, fastRetry(), quietLogger())

	_, err := cycle.Run(context.Background())
	require.ErrorContains(t, err, "read current spend")
	assert.Zero(t, enricher.calls, "an unreadable spend figure is never treated as zero")
	assert.Zero(t, alerter.calls)
}

func TestCycle_EnrichmentFailureStillAlerts(t *testing.T) {
	source := &fakeSource{eval: evalWithTotal(200.0)}
	enricher := &fakeEnricher{err: errors.New("enrichment failed: everything broke")}
	alerter := &fakeAlerter{}
	cycle := monitor.NewCycle(source, enricher, alerter, alerts.NoPushChannel{}, 100.0, 0.01, fastRetry(), quietLogger())

	outcome, err := cycle.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, 1, alerter.calls, "alert is never dropped because analysis is unavailable")
	assert.Nil(t, alerter.lastIns)
}

func TestCycle_FallbackEnrichmentAlertsWithoutInsight(t *testing.T) {
	source := &fakeSource{eval: evalWithTotal(200.0)}
	enricher := &fakeEnricher{} // returns FallbackUsed=true
	alerter := &fakeAlerter{}
	cycle := monitor.NewCycle(source, enricher, alerter, alerts.NoPushChannel{}, 100.0, 0.01, fastRetry(), quietLogger())

	_, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, alerter.lastIns)
}

func TestCycle_DeliveryFailurePropagates(t *testing.T) {
	source := &fakeSource{eval: evalWithTotal(200.0)}
	alerter := &fakeAlerter{err: errors.New("gateway down")}
	cycle := monitor.NewCycle(source, &fakeEnricher{}, alerter, alerts.NoPushChannel{}, 100.0, 0.01, fastRetry(), quietLogger())

	outcome, err := cycle.Run(context.Background())
	require.ErrorContains(t, err, "deliver alert")
	require.NotNil(t, outcome, "outcome reports the failed attempt")
	assert.NotEmpty(t, outcome.Errors)
}

func TestHTTPCostSource_CurrentSpend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/costs/current", r.URL.Path)
		assert.Equal(t, "Bearer billing-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"total_cost":      142.77,
			"service_costs":   map[string]float64{"compute": 100.0, "storage": 42.77},
			"period_start":    "2026-08-01T00:00:00Z",
			"period_end":      "2026-08-31T23:59:59Z",
			"projected_total": 150.0,
		})
	}))
	defer server.Close()

	source := monitor.NewHTTPCostSource(server.URL, "billing-key", time.Second)
	eval, err := source.CurrentSpend(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 142.77, eval.TotalCost, 0.001)
	assert.Equal(t, "USD", eval.Currency, "currency defaults when the API omits it")
	assert.Len(t, eval.ServiceCosts, 2)
	assert.False(t, eval.RetrievedAt.IsZero())
}

func TestHTTPCostSource_ErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	source := monitor.NewHTTPCostSource(server.URL, "billing-key", time.Second)
	_, err := source.CurrentSpend(context.Background())

	var transient *retry.TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, http.StatusTooManyRequests, transient.StatusCode)
}
