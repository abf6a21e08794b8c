package alerts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
)

// topServicesLimit caps the ranked services list in alert messages.
const topServicesLimit = 5

// BuildContext derives the alert context for an evaluation that exceeded
// the threshold. Callers gate on TotalCost > threshold before alerting;
// BuildContext itself just computes the derived numbers.
func BuildContext(eval *model.CostEvaluation, threshold, minServiceCost float64) *model.AlertContext {
	exceed := eval.TotalCost - threshold
	var percentOver float64
	if threshold > 0 {
		percentOver = exceed / threshold * 100
	}

	return &model.AlertContext{
		Threshold:    threshold,
		ExceedAmount: exceed,
		PercentOver:  percentOver,
		TopServices:  TopServices(eval.ServiceCosts, eval.TotalCost, minServiceCost),
		Severity:     model.SeverityFor(percentOver),
	}
}

// TopServices ranks the cost breakdown by amount descending, capped at
// five entries. Entries under minCost are excluded before ranking. Ties
// are broken by name so re-ranking the same breakdown is deterministic.
func TopServices(serviceCosts map[string]float64, totalCost, minCost float64) []model.ServiceCost {
	ranked := make([]model.ServiceCost, 0, len(serviceCosts))
	for name, amount := range serviceCosts {
		if amount < minCost {
			continue
		}
		var pct float64
		if totalCost > 0 {
			pct = amount / totalCost * 100
		}
		ranked = append(ranked, model.ServiceCost{Name: name, Amount: amount, Percentage: pct})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Amount != ranked[j].Amount {
			return ranked[i].Amount > ranked[j].Amount
		}
		return ranked[i].Name < ranked[j].Name
	})

	if len(ranked) > topServicesLimit {
		ranked = ranked[:topServicesLimit]
	}
	return ranked
}

// FormatLongForm renders the full alert body used for the default and
// email channels. insight may be nil.
func FormatLongForm(eval *model.CostEvaluation, actx *model.AlertContext, insight *model.Insight) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: cloud spending over budget\n\n", actx.Severity)
	fmt.Fprintf(&b, "Current spend:   %s%.2f\n", currencySymbol(eval.Currency), eval.TotalCost)
	fmt.Fprintf(&b, "Budget:          %s%.2f\n", currencySymbol(eval.Currency), actx.Threshold)
	fmt.Fprintf(&b, "Over budget:     %s%.2f (%.1f%%)\n", currencySymbol(eval.Currency), actx.ExceedAmount, actx.PercentOver)
	fmt.Fprintf(&b, "Projected total: %s%.2f\n", currencySymbol(eval.Currency), eval.ProjectedTotal)
	fmt.Fprintf(&b, "Period:          %s to %s\n",
		eval.PeriodStart.Format("2006-01-02"), eval.PeriodEnd.Format("2006-01-02"))

	if len(actx.TopServices) > 0 {
		b.WriteString("\nTop services:\n")
		for i, svc := range actx.TopServices {
			fmt.Fprintf(&b, "  %d. %s: %s%.2f (%.1f%%)\n",
				i+1, svc.Name, currencySymbol(eval.Currency), svc.Amount, svc.Percentage)
		}
	}

	if insight != nil {
		if insight.Patterns != "" {
			fmt.Fprintf(&b, "\nSpending patterns:\n%s\n", insight.Patterns)
		}
		if insight.Anomalies != "" {
			fmt.Fprintf(&b, "\nAnomalies:\n%s\n", insight.Anomalies)
		}
		if insight.Recommendations != "" {
			fmt.Fprintf(&b, "\nRecommendations:\n%s\n", insight.Recommendations)
		}
	}

	return b.String()
}

// FormatShortForm renders the one-line SMS body.
func FormatShortForm(eval *model.CostEvaluation, actx *model.AlertContext) string {
	return fmt.Sprintf("%s budget alert: %s%.2f spent vs %s%.2f budget (%.1f%% over)",
		actx.Severity,
		currencySymbol(eval.Currency), eval.TotalCost,
		currencySymbol(eval.Currency), actx.Threshold,
		actx.PercentOver)
}

// Subject renders the message subject line.
func Subject(actx *model.AlertContext) string {
	return fmt.Sprintf("[%s] Cloud budget exceeded by %.1f%%", actx.Severity, actx.PercentOver)
}

type pushAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushAPS struct {
	Alert pushAlert `json:"alert"`
	Sound string    `json:"sound"`
	Badge int       `json:"badge"`
}

type pushPayload struct {
	APS       pushAPS `json:"aps"`
	Severity  string  `json:"severity"`
	TotalCost float64 `json:"total_cost"`
	Threshold float64 `json:"threshold"`
	BundleID  string  `json:"bundle_id,omitempty"`
	Sandbox   bool    `json:"sandbox,omitempty"`
}

// FormatPushPayload renders the push-platform JSON payload.
func FormatPushPayload(eval *model.CostEvaluation, actx *model.AlertContext, pc PushChannel) string {
	payload := pushPayload{
		APS: pushAPS{
			Alert: pushAlert{
				Title: Subject(actx),
				Body:  FormatShortForm(eval, actx),
			},
			Sound: "default",
			Badge: 1,
		},
		Severity:  string(actx.Severity),
		TotalCost: eval.TotalCost,
		Threshold: actx.Threshold,
		BundleID:  pc.BundleID,
		Sandbox:   pc.Sandbox,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		// Fixed struct of scalar fields; marshalling cannot realistically fail.
		return "{}"
	}
	return string(encoded)
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "USD", "":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	default:
		return code + " "
	}
}
