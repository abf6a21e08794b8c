package inference

import (
	"math"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/tokenizer"
)

// costPrecision is the number of decimal places money estimates are
// rounded to before threshold comparisons, so repeated estimates of the
// same input cannot flap around the budget boundary.
const costPrecision = 4

// roundCost rounds a dollar amount to the fixed cost precision.
func roundCost(usd float64) float64 {
	scale := math.Pow10(costPrecision)
	return math.Round(usd*scale) / scale
}

// EstimateCall predicts the cost of one enrichment sub-call from its
// prompt under this cost model, assuming the full output allowance is
// consumed.
func (m *CostModel) EstimateCall(prompt string) float64 {
	inputTokens, err := tokenizer.CountTokens(prompt, m.Encoding)
	if err != nil {
		inputTokens = tokenizer.EstimateTokens(prompt)
	}
	cost := float64(inputTokens)/1000*m.InputPer1K +
		float64(m.MaxOutputToks)/1000*m.OutputPer1K
	return roundCost(cost)
}

// EstimateCalls sums the cost estimate over a batch of prompts.
func (m *CostModel) EstimateCalls(prompts []string) float64 {
	var total float64
	for _, p := range prompts {
		total += m.EstimateCall(p)
	}
	return roundCost(total)
}
