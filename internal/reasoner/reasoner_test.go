package reasoner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockedInput() Input {
	return Input{
		TransactionID: "TXN-001",
		Sender:        "ACC-A",
		Receiver:      "ACC-MULE-001",
		Amount:        "15000",
		Currency:      "USD",
		Tier:          "FRAUD",
		RiskScore:     0.85,
		Factors:       []string{"high_amount", "mule_risk"},
		MuleScore:     1.0,
		MuleReasons:   []string{"blacklisted_account"},
		Blocked:       true,
	}
}

func TestRuleReasoner_Deterministic(t *testing.T) {
	r := NewRuleReasoner()
	in := blockedInput()

	first, err := r.Explain(context.Background(), in)
	require.NoError(t, err)
	second, err := r.Explain(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRuleReasoner_BlockedExplanation(t *testing.T) {
	expl, err := NewRuleReasoner().Explain(context.Background(), blockedInput())
	require.NoError(t, err)

	assert.Equal(t, "rules", expl.Provider)
	assert.Equal(t, "FRAUD", expl.Tier)
	assert.Contains(t, expl.Text, "TXN-001")
	assert.Contains(t, expl.Text, "blocked")
	assert.Contains(t, expl.Text, "high-value band")
	assert.Contains(t, expl.Text, "blacklisted")
}

func TestRuleReasoner_CleanExplanation(t *testing.T) {
	expl, err := NewRuleReasoner().Explain(context.Background(), Input{
		TransactionID: "TXN-002",
		Tier:          "NO_FRAUD",
		RiskScore:     0.05,
	})
	require.NoError(t, err)
	assert.Contains(t, expl.Text, "No significant risk factors")
	assert.Contains(t, expl.Text, "approved")
}

func TestRuleReasoner_UnknownFactorPassedThrough(t *testing.T) {
	expl, err := NewRuleReasoner().Explain(context.Background(), Input{
		TransactionID: "TXN-003",
		Tier:          "POSSIBLE_FRAUD",
		Factors:       []string{"some_future_factor"},
	})
	require.NoError(t, err)
	assert.Contains(t, expl.Text, "some_future_factor")
}

func TestRuleReasoner_Confidence(t *testing.T) {
	r := NewRuleReasoner()

	assert.Equal(t, 0.95, r.confidence(Input{MuleScore: 1.0, RiskScore: 0.5}))
	assert.Equal(t, 0.9, r.confidence(Input{RiskScore: 0.9}))
	assert.Equal(t, 0.9, r.confidence(Input{RiskScore: 0.1}))
	assert.Equal(t, 0.6, r.confidence(Input{RiskScore: 0.5, Escalated: true}))
	assert.Equal(t, 0.75, r.confidence(Input{RiskScore: 0.5}))
}

func TestRuleReasoner_Report(t *testing.T) {
	report := NewRuleReasoner().Report(blockedInput())

	assert.Contains(t, report, "FRAUD INCIDENT REPORT")
	assert.Contains(t, report, "TXN-001")
	assert.Contains(t, report, "Evidence:")
	assert.Contains(t, report, "blacklisted")
	assert.Contains(t, report, "Action taken")
}
