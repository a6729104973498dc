// Package mule composes the account graph, the graph detector and the
// suspicious-account memory into one score-plus-reasons result per
// transaction.
package mule

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/trustflow/trustflow/internal/graph"
	"github.com/trustflow/trustflow/internal/memory"
)

// ReasonMemoryBoost is appended when the remembered prior strictly raised
// the current score.
const ReasonMemoryBoost = "memory_boost"

// DefaultSuspicionThreshold is the score at or above which an account is
// written into the suspicious-account memory.
const DefaultSuspicionThreshold = 0.3

// Result is the composed mule assessment for one transaction.
type Result struct {
	MuleScore float64       `json:"mule_score"`
	Reasons   []string      `json:"reasons"`
	Metrics   graph.Metrics `json:"graph_metrics"`
}

// Service wires store, detector and memory together.
type Service struct {
	store     *graph.Store
	detector  *graph.Detector
	memory    memory.ReputationStore
	threshold float64
}

// NewService creates a mule scoring service. A threshold of 0 selects the
// default suspicion threshold.
func NewService(store *graph.Store, detector *graph.Detector, mem memory.ReputationStore, threshold float64) *Service {
	if threshold <= 0 {
		threshold = DefaultSuspicionThreshold
	}
	return &Service{store: store, detector: detector, memory: mem, threshold: threshold}
}

// Score evaluates the receiver of a transfer.
//
// The transfer itself is recorded into the graph first, so the transaction
// under evaluation is part of the structure being analyzed. This is
// deliberate: it makes the detector sensitive to the very transfer it is
// scoring. Once recorded, the mutation is never rolled back.
func (s *Service) Score(sender, receiver string, amount decimal.Decimal) Result {
	if sender != "" && receiver != "" && amount.IsPositive() {
		s.store.RecordTransfer(sender, receiver, amount)
	}

	analysis := s.detector.Analyze(receiver)
	score := analysis.MuleScore
	reasons := analysis.Reasons

	if prior, ok := s.memory.PriorScore(receiver); ok {
		if boosted := prior * memory.DecayFloor; boosted > score {
			score = boosted
			reasons = append(reasons, ReasonMemoryBoost)
		}
	}

	if score >= s.threshold {
		score = s.memory.Reinforce(receiver, score, reasons)
		log.Debug().
			Str("account", receiver).
			Float64("mule_score", score).
			Strs("reasons", reasons).
			Msg("mule: account reinforced in memory")
	}

	return Result{MuleScore: score, Reasons: reasons, Metrics: analysis.Metrics}
}

// ScoreOnly is the legacy single-float accessor for callers that only need
// the receiver's score. No transfer is recorded.
func (s *Service) ScoreOnly(receiver string) float64 {
	return s.Score("", receiver, decimal.Zero).MuleScore
}
