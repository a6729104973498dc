// Package eventlog is the append-only outcome store: one JSON line per
// completed transaction. It keeps a capped in-memory buffer for querying
// and fans each record out to live subscribers (the websocket stream).
// Persist failures are logged and counted, never returned to the pipeline.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Record is one completed-transaction outcome.
type Record struct {
	EventID         string    `json:"event_id"`
	TransactionID   string    `json:"transaction_id"`
	Timestamp       time.Time `json:"ts"`
	Tier            string    `json:"tier"`
	RiskScore       float64   `json:"risk_score"`
	Confidence      float64   `json:"confidence"`
	Factors         []string  `json:"factors"`
	MuleScore       float64   `json:"mule_score"`
	DeviceScore     float64   `json:"device_score"`
	BehavioralScore float64   `json:"behavioral_score"`
	Escalated       bool      `json:"escalated"`
	FacialPassed    *bool     `json:"facial_passed,omitempty"`
	VoicePassed     *bool     `json:"voice_passed,omitempty"`
	Approved        bool      `json:"approved"`
	Blocked         bool      `json:"blocked"`
	Explanation     string    `json:"explanation,omitempty"`
	Report          string    `json:"report,omitempty"`
}

// Log is the append-only JSONL store.
type Log struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	entries []Record
	maxBuf  int

	subscribers map[int]chan Record
	nextSub     int

	failures atomic.Int64
}

// Open opens (or creates) the log at path. maxBuf caps the in-memory
// buffer; once full, the oldest entries are discarded.
func Open(path string, maxBuf int) (*Log, error) {
	if maxBuf < 0 {
		maxBuf = 0
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("eventlog: create dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	return &Log{
		f:           f,
		path:        path,
		entries:     make([]Record, 0, maxBuf),
		maxBuf:      maxBuf,
		subscribers: make(map[int]chan Record),
	}, nil
}

// Append writes one record. A disk failure is logged and counted; the
// record still lands in the in-memory buffer and reaches subscribers.
func (l *Log) Append(r Record) {
	if r.EventID == "" {
		r.EventID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(r)
	if err != nil {
		l.failures.Add(1)
		log.Error().Err(err).Str("transaction", r.TransactionID).Msg("eventlog: marshal failed")
		return
	}

	l.mu.Lock()
	if _, err := l.f.Write(append(data, '\n')); err != nil {
		l.failures.Add(1)
		log.Error().Err(err).Str("transaction", r.TransactionID).Msg("eventlog: append failed")
	}

	if l.maxBuf > 0 {
		if len(l.entries) >= l.maxBuf {
			copy(l.entries, l.entries[1:])
			l.entries[len(l.entries)-1] = r
		} else {
			l.entries = append(l.entries, r)
		}
	}

	for _, ch := range l.subscribers {
		select {
		case ch <- r:
		default: // slow subscriber, drop rather than block the pipeline
		}
	}
	l.mu.Unlock()
}

// Entries returns a copy of the in-memory buffer.
func (l *Log) Entries() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.entries))
	copy(out, l.entries)
	return out
}

// Query returns buffered records for one transaction.
func (l *Log) Query(transactionID string) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Record
	for _, r := range l.entries {
		if r.TransactionID == transactionID {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of buffered records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Failures reports how many records could not be persisted.
func (l *Log) Failures() int64 {
	return l.failures.Load()
}

// Subscribe registers a live feed of appended records. The returned id is
// passed to Unsubscribe.
func (l *Log) Subscribe(buffer int) (int, <-chan Record) {
	if buffer <= 0 {
		buffer = 64
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan Record, buffer)
	l.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (l *Log) Unsubscribe(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.subscribers[id]; ok {
		delete(l.subscribers, id)
		close(ch)
	}
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ch := range l.subscribers {
		delete(l.subscribers, id)
		close(ch)
	}
	return l.f.Close()
}
