// Package monitor runs the periodic evaluation cycle: read spend from
// the billing API, enrich it when the budget allows, and deliver an
// alert when the threshold is crossed.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
)

// CostSource reads the current billing period's spend.
type CostSource interface {
	CurrentSpend(ctx context.Context) (*model.CostEvaluation, error)
}

// HTTPCostSource reads spend from the billing API over REST.
type HTTPCostSource struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPCostSource creates a billing API client.
func NewHTTPCostSource(url, apiKey string, timeout time.Duration) *HTTPCostSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCostSource{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type costResponse struct {
	TotalCost      float64            `json:"total_cost"`
	ServiceCosts   map[string]float64 `json:"service_costs"`
	PeriodStart    time.Time          `json:"period_start"`
	PeriodEnd      time.Time          `json:"period_end"`
	ProjectedTotal float64            `json:"projected_total"`
	Currency       string             `json:"currency"`
}

// CurrentSpend fetches the month-to-date cost breakdown. Failures
// propagate untouched; a missing cost read must never be mistaken for
// zero spend.
func (s *HTTPCostSource) CurrentSpend(ctx context.Context) (*model.CostEvaluation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/v1/costs/current", nil)
	if err != nil {
		return nil, fmt.Errorf("create cost request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &retry.TransientError{Op: "fetch costs", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, retry.FromStatus("fetch costs", resp.StatusCode, errors.New(string(payload)))
	}

	var body costResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode cost response: %w", err)
	}
	if body.Currency == "" {
		body.Currency = "USD"
	}

	return &model.CostEvaluation{
		TotalCost:      body.TotalCost,
		ServiceCosts:   body.ServiceCosts,
		PeriodStart:    body.PeriodStart,
		PeriodEnd:      body.PeriodEnd,
		ProjectedTotal: body.ProjectedTotal,
		Currency:       body.Currency,
		RetrievedAt:    time.Now().UTC(),
	}, nil
}
