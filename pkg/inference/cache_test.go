package inference_test

import (
	"testing"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/inference"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvaluation() *model.CostEvaluation {
	return &model.CostEvaluation{
		TotalCost: 120.50,
		ServiceCosts: map[string]float64{
			"compute": 80.00,
			"storage": 25.50,
			"network": 15.00,
		},
		PeriodStart:    time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		ProjectedTotal: 130.00,
		Currency:       "USD",
	}
}

func TestFingerprint_StableForEquivalentEvaluations(t *testing.T) {
	a := sampleEvaluation()
	b := sampleEvaluation()
	assert.Equal(t, inference.Fingerprint(a), inference.Fingerprint(b))
}

func TestFingerprint_SensitiveToSalientFields(t *testing.T) {
	base := inference.Fingerprint(sampleEvaluation())

	changedTotal := sampleEvaluation()
	changedTotal.TotalCost = 121.00
	assert.NotEqual(t, base, inference.Fingerprint(changedTotal))

	changedProjected := sampleEvaluation()
	changedProjected.ProjectedTotal = 999.00
	assert.NotEqual(t, base, inference.Fingerprint(changedProjected))

	changedTop := sampleEvaluation()
	changedTop.ServiceCosts["compute"] = 81.00
	assert.NotEqual(t, base, inference.Fingerprint(changedTop))

	extraService := sampleEvaluation()
	extraService.ServiceCosts["database"] = 1.00
	assert.NotEqual(t, base, inference.Fingerprint(extraService), "category count is part of the fingerprint")
}

func TestFingerprint_IgnoresCategoriesBeyondTopFive(t *testing.T) {
	a := sampleEvaluation()
	b := sampleEvaluation()
	for _, eval := range []*model.CostEvaluation{a, b} {
		eval.ServiceCosts["queue"] = 5.00
		eval.ServiceCosts["dns"] = 4.00
	}
	a.ServiceCosts["logs"] = 0.10
	b.ServiceCosts["logs"] = 0.20

	assert.Equal(t, inference.Fingerprint(a), inference.Fingerprint(b),
		"amounts outside the top five do not affect the fingerprint")
}

func TestCache_HitThenTTLExpiry(t *testing.T) {
	cache := inference.NewCache(time.Hour)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	insight := &model.Insight{Patterns: "compute dominates"}
	cache.Put("fp-1", insight)

	got, ok := cache.Get("fp-1")
	require.True(t, ok)
	assert.Equal(t, insight, got)

	now = now.Add(59 * time.Minute)
	_, ok = cache.Get("fp-1")
	assert.True(t, ok, "entry still young")

	now = now.Add(time.Minute)
	_, ok = cache.Get("fp-1")
	assert.False(t, ok, "entry aged past TTL")

	// Eviction happened on the failed read.
	now = now.Add(-30 * time.Minute)
	_, ok = cache.Get("fp-1")
	assert.False(t, ok)
}

func TestCache_MissForUnknownFingerprint(t *testing.T) {
	cache := inference.NewCache(time.Hour)
	_, ok := cache.Get("never-stored")
	assert.False(t, ok)
}
