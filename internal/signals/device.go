// Package signals holds the stateless per-transaction signal evaluators:
// device risk and behavioral risk. Each produces an additive, capped [0,1]
// sub-score plus reason codes.
package signals

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Per-signal weights for the device evaluator.
const (
	weightEmulator    = 0.30
	weightRooted      = 0.30
	weightAnomalousIP = 0.25
)

// Device reason codes, in signal-evaluation order.
const (
	ReasonEmulator    = "emulator_detected"
	ReasonRooted      = "rooted_device"
	ReasonAnomalousIP = "anomalous_ip"
)

// DeviceSignals are the per-transaction device flags fed to the evaluator
// and the classifier.
type DeviceSignals struct {
	IsEmulator       bool   `json:"is_emulator"`
	IsRooted         bool   `json:"is_rooted"`
	AnomalousIP      bool   `json:"anomalous_ip"`
	SuspiciousTyping bool   `json:"suspicious_typing_speed"`
	Fingerprint      string `json:"device_fingerprint"`
}

// Result is one evaluator's contribution: a sub-score in [0,1] and the
// reason codes explaining it.
type Result struct {
	SubScore    float64  `json:"sub_score"`
	ReasonCodes []string `json:"reason_codes"`
}

// EvaluateDevice scores the device flags. Pure: same flags, same result.
// The fingerprint is carried through for correlation only and never scored.
func EvaluateDevice(d DeviceSignals) Result {
	score := 0.0
	reasons := []string{}

	if d.IsEmulator {
		score += weightEmulator
		reasons = append(reasons, ReasonEmulator)
	}
	if d.IsRooted {
		score += weightRooted
		reasons = append(reasons, ReasonRooted)
	}
	if d.AnomalousIP {
		score += weightAnomalousIP
		reasons = append(reasons, ReasonAnomalousIP)
	}

	if score > 1.0 {
		score = 1.0
	}
	return Result{SubScore: score, ReasonCodes: reasons}
}

// Fingerprint derives a stable short hash from a device identifier.
// Display/correlation only; an empty id hashes as "unknown".
func Fingerprint(deviceID string) string {
	if deviceID == "" {
		deviceID = "unknown"
	}
	sum := sha256.Sum256([]byte(deviceID))
	return fmt.Sprintf("%x", sum)[:16]
}

// seedFrom maps an identifier onto a stable uint64 for deterministic
// simulations.
func seedFrom(id string) uint64 {
	sum := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint64(sum[:8])
}
