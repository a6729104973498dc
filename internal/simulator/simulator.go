// Package simulator generates random transactions with mixed risk
// profiles, for the batch demo endpoint and the replay binary.
package simulator

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trustflow/trustflow/internal/pipeline"
)

// Profile weights: 40% clean, 35% suspicious, 25% fraud-leaning.
const (
	profileClean      = "clean"
	profileSuspicious = "suspicious"
	profileFraud      = "fraud"
)

var (
	cleanAccounts = []string{
		"ACC-CLEAN-001", "ACC-CLEAN-002", "ACC-CLEAN-003",
		"ACC-CLEAN-004", "ACC-CLEAN-005",
	}
	muleAccounts = []string{
		"ACC-MULE-001", "ACC-MULE-002", "ACC-MULE-003", "ACC-MULE-004",
	}
	blockedAccounts = []string{"ACC-BLOCKED-001", "ACC-BLOCKED-002"}
	senderAccounts  = []string{
		"USER-001", "USER-002", "USER-003", "USER-004",
		"USER-005", "USER-006", "USER-007", "USER-008",
	}

	normalIPs    = []string{"203.0.113.10", "198.51.100.22", "172.217.14.100", ""}
	anomalousIPs = []string{"10.0.0.1", "185.220.101.1", "45.33.32.156"}

	normalUAs = []string{
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8)",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120",
		"",
	}
	emulatorUAs = []string{
		"Mozilla/5.0 (Linux; Android SDK Emulator)",
		"BlueStacks/5.0",
	}

	deviceIDs = []string{"DEV-A1", "DEV-B2", "DEV-C3", "DEV-D4", "DEV-E5", ""}
)

// Generator produces random transactions. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a generator seeded for reproducible batches.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate returns one random transaction.
func (g *Generator) Generate() pipeline.Transaction {
	g.mu.Lock()
	defer g.mu.Unlock()

	profile := g.pickProfile()
	id := "SIM-" + strings.ToUpper(uuid.NewString()[:8])
	sender := pick(g.rng, senderAccounts)

	var (
		receiver string
		amount   decimal.Decimal
		ip       string
		ua       string
	)
	switch profile {
	case profileClean:
		receiver = pick(g.rng, cleanAccounts)
		amount = g.amount(10, 2500)
		ip = pick(g.rng, normalIPs)
		ua = pick(g.rng, normalUAs)
	case profileSuspicious:
		receiver = pick(g.rng, muleAccounts)
		amount = g.amount(1000, 8000)
		ip = pick(g.rng, append(append([]string{}, normalIPs...), anomalousIPs...))
		ua = pick(g.rng, append(append([]string{}, normalUAs...), emulatorUAs...))
	default:
		receiver = pick(g.rng, append(append([]string{}, muleAccounts...), blockedAccounts...))
		amount = g.amount(5000, 50000)
		ip = pick(g.rng, anomalousIPs)
		ua = pick(g.rng, append(append([]string{}, emulatorUAs...), normalUAs[0]))
	}

	tx := pipeline.Transaction{
		ID:              id,
		SenderAccount:   sender,
		ReceiverAccount: receiver,
		Amount:          amount,
		Currency:        "USD",
		DeviceID:        pick(g.rng, deviceIDs),
		IPAddress:       ip,
		UserAgent:       ua,
	}

	// Some transactions carry behavioral telemetry.
	if g.rng.Float64() < 0.6 {
		ms := 300 + g.rng.Intn(4000)
		steps := g.rng.Intn(5)
		tx.InteractionTimeMs = &ms
		tx.NavigationSteps = &steps
	}
	if g.rng.Float64() < 0.4 {
		n := 2 + g.rng.Intn(4)
		history := make([]decimal.Decimal, n)
		for i := range history {
			history[i] = g.amount(50, 1500)
		}
		tx.HistoricalAmounts = history
	}
	return tx
}

// Batch returns n random transactions.
func (g *Generator) Batch(n int) []pipeline.Transaction {
	out := make([]pipeline.Transaction, n)
	for i := range out {
		out[i] = g.Generate()
	}
	return out
}

func (g *Generator) pickProfile() string {
	switch r := g.rng.Intn(100); {
	case r < 40:
		return profileClean
	case r < 75:
		return profileSuspicious
	default:
		return profileFraud
	}
}

func (g *Generator) amount(lo, hi float64) decimal.Decimal {
	v := lo + g.rng.Float64()*(hi-lo)
	return decimal.NewFromFloat(v).Round(2)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

// Describe summarizes the generator pools, for the modules endpoint.
func Describe() string {
	return fmt.Sprintf("%d sender, %d clean, %d mule, %d blocked accounts",
		len(senderAccounts), len(cleanAccounts), len(muleAccounts), len(blockedAccounts))
}
