package model

import (
	"fmt"
	"time"
)

// CostEvaluation is a snapshot of cloud spending for one billing period,
// produced once per monitoring cycle by the cost data source. It is
// immutable after creation.
type CostEvaluation struct {
	TotalCost      float64            `json:"total_cost"`
	ServiceCosts   map[string]float64 `json:"service_costs"`
	PeriodStart    time.Time          `json:"period_start"`
	PeriodEnd      time.Time          `json:"period_end"`
	ProjectedTotal float64            `json:"projected_total"`
	Currency       string             `json:"currency"`
	RetrievedAt    time.Time          `json:"retrieved_at"`
}

// Severity indicates how far spending is over the configured threshold.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityFor derives the alert severity from the percentage over threshold.
// More than 50% over is critical.
func SeverityFor(percentOver float64) Severity {
	if percentOver > 50 {
		return SeverityCritical
	}
	return SeverityWarning
}

// ServiceCost is one ranked entry in an alert's top-services list.
type ServiceCost struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// AlertContext carries everything an alert message needs beyond the raw
// evaluation. It is recomputed every cycle and never persisted.
type AlertContext struct {
	Threshold    float64       `json:"threshold"`
	ExceedAmount float64       `json:"exceed_amount"`
	PercentOver  float64       `json:"percent_over"`
	TopServices  []ServiceCost `json:"top_services"`
	Severity     Severity      `json:"severity"`
}

// Insight is the AI-generated enrichment for one evaluation. The three
// analysis fields are filled independently; any of them may be empty when
// the corresponding sub-call failed.
type Insight struct {
	Patterns        string  `json:"patterns,omitempty"`
	Anomalies       string  `json:"anomalies,omitempty"`
	Recommendations string  `json:"recommendations,omitempty"`
	TokensUsed      int64   `json:"tokens_used"`
	CostUSD         float64 `json:"cost_usd"`
}

// EnrichedEvaluation is the result of a budget-gated enrichment attempt.
// FallbackUsed is true whenever the insight is missing for an expected,
// recoverable reason (enrichment disabled, budget exhausted, all sub-calls
// failed with fallback-on-error enabled).
type EnrichedEvaluation struct {
	Evaluation   *CostEvaluation `json:"evaluation"`
	Insight      *Insight        `json:"insight,omitempty"`
	FallbackUsed bool            `json:"fallback_used"`
	FromCache    bool            `json:"from_cache"`
}

// DeliveryOutcome reports the result of one alert delivery attempt across
// all configured channels. It is returned to the caller and never persisted.
type DeliveryOutcome struct {
	ChannelsAttempted []string      `json:"channels_attempted"`
	ChannelsSucceeded []string      `json:"channels_succeeded"`
	FallbackUsed      bool          `json:"fallback_used"`
	Errors            []string      `json:"errors,omitempty"`
	DeliveryTime      time.Duration `json:"delivery_time"`
	RetryCount        int           `json:"retry_count"`
	PayloadBytes      int           `json:"payload_bytes"`
}

// Succeeded reports whether the named channel was delivered to.
func (o *DeliveryOutcome) Succeeded(channel string) bool {
	for _, c := range o.ChannelsSucceeded {
		if c == channel {
			return true
		}
	}
	return false
}

// PushEndpointRegistration maps a device token to the platform endpoint
// created for it. At most one active registration exists per device token.
type PushEndpointRegistration struct {
	DeviceToken string    `json:"device_token" db:"device_token"`
	EndpointID  string    `json:"endpoint_id" db:"endpoint_id"`
	UserID      string    `json:"user_id,omitempty" db:"user_id"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// LedgerSnapshot is the durable form of the enrichment spend ledger for
// one billing period.
type LedgerSnapshot struct {
	Period    string    `json:"period" db:"period"`
	SpentUSD  float64   `json:"spent_usd" db:"spent_usd"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HealthLevel grades a platform or certificate health report.
type HealthLevel string

const (
	HealthOK      HealthLevel = "ok"
	HealthWarning HealthLevel = "warning"
	HealthError   HealthLevel = "error"
)

// CertificateHealth is the heuristic push-certificate expiry estimate.
// DaysRemaining is derived from the platform application's creation time
// against a nominal certificate lifetime, not from the certificate itself.
type CertificateHealth struct {
	Valid         bool        `json:"valid"`
	DaysRemaining int         `json:"days_remaining"`
	Level         HealthLevel `json:"level"`
	Message       string      `json:"message,omitempty"`
	CheckedAt     time.Time   `json:"checked_at"`
}

// Period returns the billing-period identifier (year and month) for t.
func Period(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}
