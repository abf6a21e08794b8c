package alerts_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/alerts"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvaluation() *model.CostEvaluation {
	return &model.CostEvaluation{
		TotalCost: 150.0,
		ServiceCosts: map[string]float64{
			"compute":    80.0,
			"storage":    30.0,
			"network":    20.0,
			"database":   15.0,
			"monitoring": 4.0,
			"dns":        1.0,
		},
		PeriodStart:    time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		ProjectedTotal: 160.0,
		Currency:       "USD",
		RetrievedAt:    time.Now().UTC(),
	}
}

func TestBuildContext(t *testing.T) {
	actx := alerts.BuildContext(sampleEvaluation(), 100.0, 0)

	assert.InDelta(t, 50.0, actx.ExceedAmount, 0.001)
	assert.InDelta(t, 50.0, actx.PercentOver, 0.001)
	assert.Equal(t, model.SeverityWarning, actx.Severity, "exactly 50%% over is still a warning")

	eval := sampleEvaluation()
	eval.TotalCost = 151.0
	actx = alerts.BuildContext(eval, 100.0, 0)
	assert.Equal(t, model.SeverityCritical, actx.Severity)
}

func TestTopServices_RankingAndCap(t *testing.T) {
	eval := sampleEvaluation()
	ranked := alerts.TopServices(eval.ServiceCosts, eval.TotalCost, 0)

	require.Len(t, ranked, 5, "capped at five entries")
	assert.Equal(t, "compute", ranked[0].Name)
	assert.Equal(t, "storage", ranked[1].Name)
	assert.Equal(t, "network", ranked[2].Name)
	assert.Equal(t, "database", ranked[3].Name)
	assert.Equal(t, "monitoring", ranked[4].Name)
	assert.InDelta(t, 80.0/150.0*100, ranked[0].Percentage, 0.001)
}

func TestTopServices_MinCostExclusion(t *testing.T) {
	eval := sampleEvaluation()
	ranked := alerts.TopServices(eval.ServiceCosts, eval.TotalCost, 10.0)

	require.Len(t, ranked, 4)
	for _, svc := range ranked {
		assert.GreaterOrEqual(t, svc.Amount, 10.0)
	}
}

func TestTopServices_Deterministic(t *testing.T) {
	costs := map[string]float64{
		"beta":  20.0,
		"alpha": 20.0,
		"gamma": 20.0,
		"delta": 5.0,
	}

	first := alerts.TopServices(costs, 65.0, 0)
	for range 10 {
		assert.Equal(t, first, alerts.TopServices(costs, 65.0, 0))
	}

	// Equal amounts rank by name.
	assert.Equal(t, "alpha", first[0].Name)
	assert.Equal(t, "beta", first[1].Name)
	assert.Equal(t, "gamma", first[2].Name)
}

func TestFormatLongForm(t *testing.T) {
	eval := sampleEvaluation()
	actx := alerts.BuildContext(eval, 100.0, 0)

	body := alerts.FormatLongForm(eval, actx, nil)
	assert.Contains(t, body, "WARNING")
	assert.Contains(t, body, "$150.00")
	assert.Contains(t, body, "$100.00")
	assert.Contains(t, body, "compute")
	assert.NotContains(t, body, "Recommendations")

	insight := &model.Insight{Recommendations: "Reduce idle compute instances."}
	body = alerts.FormatLongForm(eval, actx, insight)
	assert.Contains(t, body, "Reduce idle compute instances.")
}

func TestFormatShortForm(t *testing.T) {
	eval := sampleEvaluation()
	actx := alerts.BuildContext(eval, 100.0, 0)

	short := alerts.FormatShortForm(eval, actx)
	assert.Contains(t, short, "$150.00")
	assert.Contains(t, short, "50.0% over")
	assert.Less(t, len(short), 160, "short form must fit an SMS")
}

func TestFormatPushPayload(t *testing.T) {
	eval := sampleEvaluation()
	actx := alerts.BuildContext(eval, 100.0, 0)
	pc := alerts.PushChannel{PlatformAppID: "app-1", BundleID: "com.example.costs", Sandbox: true}

	payload := alerts.FormatPushPayload(eval, actx, pc)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))

	aps, ok := decoded["aps"].(map[string]any)
	require.True(t, ok)
	alert, ok := aps["alert"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, alert["title"])
	assert.NotEmpty(t, alert["body"])
	assert.Equal(t, "com.example.costs", decoded["bundle_id"])
	assert.Equal(t, true, decoded["sandbox"])
}
