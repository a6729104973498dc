// Package memory implements the persistent suspicious-account store.
//
// Once an account has been flagged, its remembered suspicion decays by at
// most 30% per reinforcement cycle even if the current transaction looks
// clean (the anti-drop rule). Records are never deleted.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// DecayFloor is the fraction of the prior score a reinforcement can never
// drop below: final = max(current, prior * DecayFloor).
const DecayFloor = 0.7

// ReputationRecord is the on-disk document for one flagged account.
type ReputationRecord struct {
	MuleScore float64  `json:"mule_score"`
	Reasons   []string `json:"reasons"`
	HitCount  int      `json:"hit_count"`
	LastSeen  int64    `json:"last_seen"`
}

// ReputationStore is the contract the scoring service depends on.
// Reinforce must be atomic end-to-end: concurrent reinforcements for the
// same account must not race and silently drop an update.
type ReputationStore interface {
	// PriorScore returns the remembered score for an account, if any.
	PriorScore(accountID string) (float64, bool)
	// Reinforce applies the anti-drop rule, persists the updated record,
	// and returns the final score.
	Reinforce(accountID string, currentScore float64, reasons []string) float64
}

// FileStore is a ReputationStore backed by a single JSON document on disk,
// keyed by account id. The full record set is held in memory; every
// reinforcement rewrites the file atomically (temp file + rename).
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]ReputationRecord

	writeFailures atomic.Int64

	now func() time.Time
}

// Open loads the store from path. A missing or malformed file is treated as
// an empty store rather than an error.
func Open(path string) *FileStore {
	s := &FileStore{
		path:    path,
		records: make(map[string]ReputationRecord),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("memory: read failed, starting empty")
		}
		return s
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("memory: malformed store, starting empty")
		s.records = make(map[string]ReputationRecord)
		return s
	}

	log.Info().Int("accounts", len(s.records)).Str("path", path).Msg("memory: loaded")
	return s
}

// PriorScore returns the remembered mule score for an account.
func (s *FileStore) PriorScore(accountID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		return 0, false
	}
	return rec.MuleScore, true
}

// Record returns a copy of the full record for an account.
func (s *FileStore) Record(accountID string) (ReputationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	return rec, ok
}

// Len returns the number of flagged accounts.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Reinforce applies the anti-drop rule under the store lock, so the
// read-compute-write cycle cannot interleave with another reinforcement.
//
// The in-memory record is always updated; a failed disk write is retried
// once and otherwise surfaced through WriteFailures, never to the caller.
func (s *FileStore) Reinforce(accountID string, currentScore float64, reasons []string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.records[accountID]

	final := currentScore
	if floor := prev.MuleScore * DecayFloor; floor > final {
		final = floor
	}

	s.records[accountID] = ReputationRecord{
		MuleScore: final,
		Reasons:   append([]string(nil), reasons...),
		HitCount:  prev.HitCount + 1,
		LastSeen:  s.now().Unix(),
	}

	if err := s.flushLocked(); err != nil {
		// Losing a reinforcement on disk would break the anti-drop
		// contract across restarts. Retry once, then count the failure.
		if err = s.flushLocked(); err != nil {
			s.writeFailures.Add(1)
			log.Error().Err(err).Str("account", accountID).Msg("memory: persist failed after retry")
		}
	}
	return final
}

// WriteFailures reports how many reinforcements could not be persisted.
func (s *FileStore) WriteFailures() int64 {
	return s.writeFailures.Load()
}

// flushLocked writes the full document atomically. Caller holds s.mu.
func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("memory: create dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("memory: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("memory: rename: %w", err)
	}
	return nil
}
