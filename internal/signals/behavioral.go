package signals

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Per-signal weights for the behavioral evaluator.
const (
	weightFastInteraction = 0.35
	weightNavigation      = 0.20
	weightAmountPattern   = 0.45
)

// Interaction-speed bands in milliseconds. Below fastMs the full weight
// applies, between fastMs and moderateMs half of it, above moderateMs none.
const (
	interactionFastMs     = 1200
	interactionModerateMs = 2500
)

// BehavioralInput carries the optional behavioral measurements a
// transaction may supply. Nil pointers mean the measurement is absent and
// the corresponding signal is skipped.
type BehavioralInput struct {
	Amount            decimal.Decimal
	InteractionTimeMs *int
	NavigationSteps   *int
	HistoricalAmounts []decimal.Decimal
}

// EvaluateBehavioral scores interaction speed, navigation rhythm and
// amount deviation from history. Pure and stateless.
func EvaluateBehavioral(in BehavioralInput) Result {
	score := 0.0
	reasons := []string{}

	if in.InteractionTimeMs != nil {
		ms := *in.InteractionTimeMs
		switch {
		case ms < interactionFastMs:
			score += weightFastInteraction
			reasons = append(reasons, fmt.Sprintf("interaction_too_fast_%dms", ms))
		case ms < interactionModerateMs:
			score += weightFastInteraction * 0.5
			reasons = append(reasons, fmt.Sprintf("interaction_moderately_fast_%dms", ms))
		}
	}

	if in.NavigationSteps != nil {
		switch *in.NavigationSteps {
		case 0:
			score += weightNavigation
			reasons = append(reasons, "zero_navigation_steps_automation")
		case 1:
			score += weightNavigation * 0.5
			reasons = append(reasons, "minimal_navigation_steps")
		}
	}

	if amountDeviates(in.Amount, in.HistoricalAmounts) {
		score += weightAmountPattern
		reasons = append(reasons, "amount_deviates_from_history")
	}

	if score > 1.0 {
		score = 1.0
	}
	return Result{SubScore: score, ReasonCodes: reasons}
}

// amountDeviates flags an amount that exceeds 2x the historical maximum or
// 3x the historical mean. No history means no penalty.
func amountDeviates(amount decimal.Decimal, history []decimal.Decimal) bool {
	if len(history) == 0 {
		return false
	}

	maxHist := history[0]
	sum := decimal.Zero
	for _, h := range history {
		if h.GreaterThan(maxHist) {
			maxHist = h
		}
		sum = sum.Add(h)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(history))))

	two := decimal.NewFromInt(2)
	three := decimal.NewFromInt(3)

	if maxHist.IsPositive() && amount.GreaterThan(maxHist.Mul(two)) {
		return true
	}
	if mean.IsPositive() && amount.GreaterThan(mean.Mul(three)) {
		return true
	}
	return false
}
