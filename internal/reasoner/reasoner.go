// Package reasoner abstracts the explanation/report collaborator. Two
// variants satisfy the same contract: a deterministic rule-based reasoner
// with no network dependency, and a remote one that falls back to the rules
// on any failure. Which one runs is a configuration choice.
package reasoner

import (
	"context"
	"fmt"
	"strings"
)

// Input is the slice of pipeline state the reasoner sees at the
// decide/block transition.
type Input struct {
	TransactionID string   `json:"transaction_id"`
	Sender        string   `json:"sender_account"`
	Receiver      string   `json:"receiver_account"`
	Amount        string   `json:"amount"`
	Currency      string   `json:"currency"`
	Tier          string   `json:"tier"`
	RiskScore     float64  `json:"risk_score"`
	Factors       []string `json:"factors"`
	MuleScore     float64  `json:"mule_score"`
	MuleReasons   []string `json:"mule_reasons"`
	DeviceScore   float64  `json:"device_score"`
	Blocked       bool     `json:"blocked"`
	Escalated     bool     `json:"escalated"`
}

// Explanation is the reasoner's output contract. Both variants produce the
// same shape.
type Explanation struct {
	Tier       string   `json:"tier"`
	Confidence float64  `json:"confidence"`
	RiskScore  float64  `json:"risk_score"`
	Factors    []string `json:"factors"`
	Text       string   `json:"explanation"`
	Provider   string   `json:"provider"`
}

// Reasoner turns a pipeline outcome into a human-readable explanation.
type Reasoner interface {
	Name() string
	Explain(ctx context.Context, in Input) (Explanation, error)
}

// factorDescriptions maps factor and reason codes to analyst-facing text.
var factorDescriptions = map[string]string{
	"high_amount":              "transaction amount exceeds the high-value band",
	"medium_amount":            "transaction amount is above the typical range",
	"mule_risk":                "receiver account shows mule-network indicators",
	"emulator_detected":        "transaction originated from an emulated device",
	"anomalous_ip":             "source IP is a known anonymization exit or out of place",
	"suspicious_typing_speed":  "typing rhythm is consistent with automation",
	"blacklisted_account":      "receiver account is blacklisted",
	"high_centrality":          "receiver is unusually connected within the transfer graph",
	"moderate_centrality":      "receiver is more connected than the average account",
	"high_in_degree":           "receiver collects funds from many distinct senders",
	"moderate_in_degree":       "receiver collects funds from several distinct senders",
	"cascade_member":           "receiver sits inside a transfer cascade",
	"known_mule_type":          "receiver was previously classified as a mule",
	"memory_boost":             "receiver carries remembered suspicion from earlier flags",
	"rooted_device":            "device is rooted or jailbroken",
	"amount_deviates_from_history": "amount deviates sharply from the sender's history",
}

func describe(code string) string {
	if d, ok := factorDescriptions[code]; ok {
		return d
	}
	return code
}

// RuleReasoner is the deterministic variant: templated text assembled from
// factor descriptions. It never errors and needs no network.
type RuleReasoner struct{}

// NewRuleReasoner creates the deterministic reasoner.
func NewRuleReasoner() *RuleReasoner {
	return &RuleReasoner{}
}

// Name returns the provider identifier.
func (r *RuleReasoner) Name() string { return "rules" }

// Explain builds a templated explanation from the assessment factors.
func (r *RuleReasoner) Explain(_ context.Context, in Input) (Explanation, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Decision %s with risk score %.2f for transaction %s (%s %s from %s to %s).",
		in.Tier, in.RiskScore, in.TransactionID, in.Amount, in.Currency, in.Sender, in.Receiver)

	codes := append(append([]string{}, in.Factors...), in.MuleReasons...)
	if len(codes) == 0 {
		b.WriteString(" No significant risk factors were detected.")
	} else {
		b.WriteString(" Risk factors:")
		for _, code := range codes {
			fmt.Fprintf(&b, " %s;", describe(code))
		}
	}

	switch {
	case in.Blocked:
		b.WriteString(" The transaction was blocked.")
	case in.Escalated:
		b.WriteString(" The transaction required secondary verification.")
	default:
		b.WriteString(" The transaction was approved.")
	}

	return Explanation{
		Tier:       in.Tier,
		Confidence: r.confidence(in),
		RiskScore:  in.RiskScore,
		Factors:    in.Factors,
		Text:       b.String(),
		Provider:   r.Name(),
	}, nil
}

// confidence is a fixed heuristic: strong when the signal is unambiguous
// (very low or very high score), weaker near the decision boundaries.
func (r *RuleReasoner) confidence(in Input) float64 {
	switch {
	case in.MuleScore >= 1.0:
		return 0.95
	case in.RiskScore >= 0.85 || in.RiskScore <= 0.15:
		return 0.9
	case in.Escalated:
		return 0.6
	default:
		return 0.75
	}
}

// Report builds the formal incident report for a blocked transaction.
func (r *RuleReasoner) Report(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FRAUD INCIDENT REPORT — transaction %s\n", in.TransactionID)
	fmt.Fprintf(&b, "Amount %s %s from %s to %s was blocked at tier %s (risk score %.2f).\n",
		in.Amount, in.Currency, in.Sender, in.Receiver, in.Tier, in.RiskScore)
	b.WriteString("Evidence:\n")
	for _, code := range append(append([]string{}, in.Factors...), in.MuleReasons...) {
		fmt.Fprintf(&b, "  - %s\n", describe(code))
	}
	b.WriteString("Action taken: transaction blocked; receiver account retained in suspicious-account memory.\n")
	b.WriteString("Recommendation: review the receiver's recent inbound transfers and linked accounts.\n")
	return b.String()
}
