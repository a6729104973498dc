package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Transaction is the immutable input to the pipeline. Optional telemetry
// fields are pointers so "absent" and "zero" stay distinct.
type Transaction struct {
	ID                string            `json:"transaction_id"`
	SenderAccount     string            `json:"sender_account"`
	ReceiverAccount   string            `json:"receiver_account"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	DeviceID          string            `json:"device_id,omitempty"`
	IPAddress         string            `json:"ip_address,omitempty"`
	UserAgent         string            `json:"user_agent,omitempty"`
	InteractionTimeMs *int              `json:"interaction_time_ms,omitempty"`
	NavigationSteps   *int              `json:"navigation_steps,omitempty"`
	HistoricalAmounts []decimal.Decimal `json:"historical_amounts,omitempty"`

	// Explicit client-supplied device flags. When absent, emulator and IP
	// anomalies are derived from telemetry; rooted can only come from the
	// client.
	IsEmulator  *bool `json:"is_emulator,omitempty"`
	IsRooted    *bool `json:"is_rooted,omitempty"`
	AnomalousIP *bool `json:"anomalous_ip,omitempty"`
}

// Validate rejects a transaction before it enters the orchestrator.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if t.SenderAccount == "" {
		return fmt.Errorf("sender_account is required")
	}
	if t.ReceiverAccount == "" {
		return fmt.Errorf("receiver_account is required")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", t.Amount)
	}
	return nil
}
