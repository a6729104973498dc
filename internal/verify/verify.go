// Package verify defines the secondary-verification collaborators used by
// the escalation path: a facial check followed by a voice check. The
// simulated implementations are deterministic given the same identifiers so
// escalation flows are reproducible in tests and demos.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Result is a single verification outcome.
type Result struct {
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Verifier performs one verification step for a user and transaction.
// Implementations must honor context cancellation; the orchestrator maps
// any error, including a deadline, to the verification-failed branch.
type Verifier interface {
	Verify(ctx context.Context, userID, transactionID string) (Result, error)
}

// DefaultFacialThreshold is the similarity needed to pass the facial check.
const DefaultFacialThreshold = 0.70

// FacialVerifier simulates a facial-recognition provider. The similarity
// score is a seeded gaussian centered at 0.75, so most users pass.
type FacialVerifier struct {
	Threshold float64
	// Latency delays each call, standing in for a provider round trip.
	// Zero in tests.
	Latency time.Duration
}

// NewFacialVerifier creates a facial verifier. A threshold of 0 selects the
// default.
func NewFacialVerifier(threshold float64) *FacialVerifier {
	if threshold <= 0 {
		threshold = DefaultFacialThreshold
	}
	return &FacialVerifier{Threshold: threshold}
}

// Verify returns a deterministic simulated similarity score for the pair of
// identifiers.
func (v *FacialVerifier) Verify(ctx context.Context, userID, transactionID string) (Result, error) {
	if err := wait(ctx, v.Latency); err != nil {
		return Result{Method: "facial"}, err
	}

	rng := rand.New(rand.NewSource(seed("facial", userID, transactionID)))
	similarity := clamp(rng.NormFloat64()*0.15 + 0.75)

	result := Result{
		Passed:     similarity >= v.Threshold,
		Confidence: similarity,
		Method:     "facial",
	}
	log.Debug().
		Str("user", userID).
		Str("transaction", transactionID).
		Float64("similarity", similarity).
		Bool("passed", result.Passed).
		Msg("verify: facial check")
	return result, nil
}

// VoiceVerifier simulates the automated confirmation call: the user either
// confirms the transaction or not, with a seeded confidence.
type VoiceVerifier struct {
	Latency time.Duration
}

// NewVoiceVerifier creates a voice verifier.
func NewVoiceVerifier() *VoiceVerifier {
	return &VoiceVerifier{}
}

// Verify simulates the confirmation call. Roughly 85% of calls confirm.
func (v *VoiceVerifier) Verify(ctx context.Context, userID, transactionID string) (Result, error) {
	if err := wait(ctx, v.Latency); err != nil {
		return Result{Method: "voice"}, err
	}

	rng := rand.New(rand.NewSource(seed("voice", userID, transactionID)))
	confirmed := rng.Float64() < 0.85
	confidence := clamp(rng.NormFloat64()*0.1 + 0.8)

	result := Result{
		Passed:     confirmed,
		Confidence: confidence,
		Method:     "voice",
	}
	log.Debug().
		Str("user", userID).
		Str("transaction", transactionID).
		Bool("confirmed", confirmed).
		Msg("verify: voice check")
	return result, nil
}

// wait sleeps for d unless the context finishes first.
func wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func seed(method, userID, transactionID string) int64 {
	sum := sha256.Sum256([]byte(method + ":" + userID + ":" + transactionID))
	return int64(binary.BigEndian.Uint64(sum[:8]) & 0x7fffffffffffffff)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
