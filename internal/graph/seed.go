package graph

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeedDemo loads a small demo network into an empty graph: a handful of
// normal accounts, a four-hop mule cascade fed by many senders, and two
// blacklisted accounts. Used by the demo deployment and the simulator; a
// graph that already has nodes is left untouched.
func (s *Store) SeedDemo() {
	if s.Stats().NodeCount > 0 {
		return
	}

	now := time.Now().Unix()

	type demoEdge struct {
		sender   string
		receiver string
		total    int64
		count    int
		ageSec   int64
	}

	edges := []demoEdge{
		// Legitimate low-frequency transfers.
		{"ACC-NORMAL-001", "ACC-NORMAL-002", 200, 1, 86400},
		{"ACC-NORMAL-002", "ACC-NORMAL-003", 150, 1, 72000},
		{"ACC-NORMAL-004", "ACC-NORMAL-005", 300, 2, 48000},
		{"ACC-NORMAL-001", "ACC-NORMAL-005", 100, 1, 36000},

		// Mule cascade: 001 -> 002 -> 003 -> 004, fast hops.
		{"ACC-MULE-001", "ACC-MULE-002", 5000, 3, 7200},
		{"ACC-MULE-002", "ACC-MULE-003", 4800, 3, 3600},
		{"ACC-MULE-003", "ACC-MULE-004", 4500, 2, 1800},

		// Many normal accounts feed MULE-001 (high reception).
		{"ACC-NORMAL-001", "ACC-MULE-001", 1000, 2, 14400},
		{"ACC-NORMAL-002", "ACC-MULE-001", 800, 3, 10800},
		{"ACC-NORMAL-003", "ACC-MULE-001", 1200, 1, 7200},
		{"ACC-NORMAL-004", "ACC-MULE-001", 600, 2, 5400},
		{"ACC-NORMAL-005", "ACC-MULE-001", 900, 1, 3600},

		// Toward the blacklist.
		{"ACC-MULE-004", "ACC-BLOCKED-001", 4000, 2, 900},
		{"ACC-NORMAL-003", "ACC-BLOCKED-002", 500, 1, 1800},

		// Demo sender.
		{"ACC-SENDER-001", "ACC-NORMAL-001", 250, 1, 100000},
	}

	s.mu.Lock()
	for _, e := range edges {
		s.ensureNode(e.sender)
		s.ensureNode(e.receiver)
		edge := &TransferEdge{
			Sender:        e.sender,
			Receiver:      e.receiver,
			Count:         e.count,
			TotalAmount:   decimal.NewFromInt(e.total),
			LastTimestamp: now - e.ageSec,
		}
		if s.adjOut[e.sender] == nil {
			s.adjOut[e.sender] = make(map[string]*TransferEdge)
		}
		if s.adjIn[e.receiver] == nil {
			s.adjIn[e.receiver] = make(map[string]*TransferEdge)
		}
		s.adjOut[e.sender][e.receiver] = edge
		s.adjIn[e.receiver][e.sender] = edge
		s.edgeCount.Add(1)
		s.transferCount.Add(int64(e.count))
	}
	for _, id := range []string{"ACC-MULE-001", "ACC-MULE-002", "ACC-MULE-003", "ACC-MULE-004"} {
		s.nodes[id].Kind = KindMule
	}
	for _, id := range []string{"ACC-BLOCKED-001", "ACC-BLOCKED-002"} {
		s.nodes[id].Kind = KindBlocked
	}
	s.mu.Unlock()
}
