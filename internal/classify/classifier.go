// Package classify implements the deterministic risk classifier: a pure
// weighted aggregation of all sub-scores into a final risk score and tier.
// All persistence happens in the evaluators and memory components, never
// here.
package classify

import (
	"github.com/shopspring/decimal"

	"github.com/trustflow/trustflow/internal/signals"
)

// Tier is the three-level classification outcome.
type Tier string

const (
	TierNoFraud       Tier = "NO_FRAUD"
	TierPossibleFraud Tier = "POSSIBLE_FRAUD"
	TierFraud         Tier = "FRAUD"
)

// Factor codes reported in an Assessment.
const (
	FactorHighAmount       = "high_amount"
	FactorMediumAmount     = "medium_amount"
	FactorMuleRisk         = "mule_risk"
	FactorEmulator         = "emulator_detected"
	FactorAnomalousIP      = "anomalous_ip"
	FactorSuspiciousTyping = "suspicious_typing_speed"
)

// Weights are the signal weights of the classifier. The full weights sum
// to roughly 1.0; the final score is clamped regardless.
type Weights struct {
	HighAmount       float64 `yaml:"high_amount"`
	MediumAmount     float64 `yaml:"medium_amount"`
	MuleScore        float64 `yaml:"mule_score"`
	Emulator         float64 `yaml:"emulator"`
	AnomalousIP      float64 `yaml:"anomalous_ip"`
	SuspiciousTyping float64 `yaml:"suspicious_typing"`
}

// DefaultWeights returns the production weight set.
func DefaultWeights() Weights {
	return Weights{
		HighAmount:       0.30,
		MediumAmount:     0.10,
		MuleScore:        0.35,
		Emulator:         0.20,
		AnomalousIP:      0.15,
		SuspiciousTyping: 0.10,
	}
}

// Thresholds are the decision cutoffs and amount bands.
type Thresholds struct {
	Fraud         float64
	PossibleFraud float64
	HighAmount    decimal.Decimal
	MediumAmount  decimal.Decimal
}

// DefaultThresholds returns the production cutoffs: fraud at 0.75,
// possible fraud at 0.45, amount bands at $10,000 and $3,000.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Fraud:         0.75,
		PossibleFraud: 0.45,
		HighAmount:    decimal.NewFromInt(10_000),
		MediumAmount:  decimal.NewFromInt(3_000),
	}
}

// Assessment is the fan-in result: immutable once produced.
type Assessment struct {
	RiskScore float64  `json:"risk_score"`
	Tier      Tier     `json:"tier"`
	Factors   []string `json:"factors"`
}

// Classifier aggregates sub-scores into a final assessment.
type Classifier struct {
	weights    Weights
	thresholds Thresholds
}

// New creates a classifier with the given weights and thresholds.
func New(weights Weights, thresholds Thresholds) *Classifier {
	return &Classifier{weights: weights, thresholds: thresholds}
}

// NewDefault creates a classifier with production weights and thresholds.
func NewDefault() *Classifier {
	return New(DefaultWeights(), DefaultThresholds())
}

// Classify computes the final risk score and tier. Pure and side-effect
// free; monotone in muleScore.
func (c *Classifier) Classify(amount decimal.Decimal, device signals.DeviceSignals, muleScore float64) Assessment {
	score := 0.0
	factors := []string{}

	switch {
	case amount.GreaterThan(c.thresholds.HighAmount):
		score += c.weights.HighAmount
		factors = append(factors, FactorHighAmount)
	case amount.GreaterThan(c.thresholds.MediumAmount):
		score += c.weights.MediumAmount
		factors = append(factors, FactorMediumAmount)
	}

	if muleScore > 0 {
		score += muleScore * c.weights.MuleScore
		factors = append(factors, FactorMuleRisk)
	}

	if device.IsEmulator {
		score += c.weights.Emulator
		factors = append(factors, FactorEmulator)
	}
	if device.AnomalousIP {
		score += c.weights.AnomalousIP
		factors = append(factors, FactorAnomalousIP)
	}
	if device.SuspiciousTyping {
		score += c.weights.SuspiciousTyping
		factors = append(factors, FactorSuspiciousTyping)
	}

	if score > 1.0 {
		score = 1.0
	}

	tier := TierNoFraud
	switch {
	case score >= c.thresholds.Fraud:
		tier = TierFraud
	case score >= c.thresholds.PossibleFraud:
		tier = TierPossibleFraud
	}

	return Assessment{RiskScore: score, Tier: tier, Factors: factors}
}
