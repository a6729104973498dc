package graph

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Account Graph Store — directed graph of accounts and aggregated transfers.
// Single source of truth for relationship structure; shared process-wide and
// mutated under lock by every transaction that references it.
// ---------------------------------------------------------------------------

// NodeKind classifies an account node.
type NodeKind string

const (
	KindUser    NodeKind = "user"
	KindMule    NodeKind = "mule"
	KindBlocked NodeKind = "blocked"
	KindUnknown NodeKind = "unknown"
)

// AccountNode is a single account in the transfer graph.
type AccountNode struct {
	ID        string   `json:"id"`
	Kind      NodeKind `json:"kind"`
	Label     string   `json:"label"`
	FirstSeen int64    `json:"first_seen"`
}

// TransferEdge aggregates every observed transfer for one ordered
// sender→receiver pair. There is at most one edge per pair; count,
// total_amount and last_timestamp only ever grow.
type TransferEdge struct {
	Sender        string          `json:"sender"`
	Receiver      string          `json:"receiver"`
	Count         int             `json:"count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	LastTimestamp int64           `json:"last_timestamp"`
}

// Store is the in-memory account graph. The graph is an append-only ledger
// of observed transfers: nothing is evicted, which is an operational concern
// for long-lived processes but explicitly not a correctness one.
type Store struct {
	mu     sync.RWMutex
	nodes  map[string]*AccountNode
	adjOut map[string]map[string]*TransferEdge // sender -> receiver -> edge
	adjIn  map[string]map[string]*TransferEdge // receiver -> sender -> same edge

	nodeCount     atomic.Int64
	edgeCount     atomic.Int64
	transferCount atomic.Int64

	now func() time.Time
}

// NewStore creates an empty account graph.
func NewStore() *Store {
	return &Store{
		nodes:  make(map[string]*AccountNode),
		adjOut: make(map[string]map[string]*TransferEdge),
		adjIn:  make(map[string]map[string]*TransferEdge),
		now:    time.Now,
	}
}

// EnsureAccount creates the account with kind=user if it does not exist and
// returns a copy of the node. Idempotent.
func (s *Store) EnsureAccount(id string) AccountNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.ensureNode(id)
}

// ensureNode must be called with s.mu held for writing.
func (s *Store) ensureNode(id string) *AccountNode {
	if node, ok := s.nodes[id]; ok {
		return node
	}
	node := &AccountNode{
		ID:        id,
		Kind:      KindUser,
		Label:     id,
		FirstSeen: s.now().Unix(),
	}
	s.nodes[id] = node
	s.nodeCount.Add(1)
	return node
}

// MarkMule classifies an account as a known mule. A blocked account stays
// blocked; kind is never downgraded back to user.
func (s *Store) MarkMule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.ensureNode(id)
	if node.Kind != KindBlocked {
		node.Kind = KindMule
	}
}

// MarkBlocked blacklists an account. Blocked is terminal.
func (s *Store) MarkBlocked(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureNode(id).Kind = KindBlocked
}

// Kind returns the kind of an account, or KindUnknown if the account has
// never been seen.
func (s *Store) Kind(id string) NodeKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.nodes[id]; ok {
		return node.Kind
	}
	return KindUnknown
}

// RecordTransfer folds one observed transfer into the graph. Both endpoints
// are created if missing. The aggregate-or-create step is atomic relative to
// other writers touching the same edge.
func (s *Store) RecordTransfer(sender, receiver string, amount decimal.Decimal) {
	if sender == "" || receiver == "" {
		return
	}
	ts := s.now().Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureNode(sender)
	s.ensureNode(receiver)

	if edge, ok := s.adjOut[sender][receiver]; ok {
		edge.Count++
		edge.TotalAmount = edge.TotalAmount.Add(amount)
		if ts > edge.LastTimestamp {
			edge.LastTimestamp = ts
		}
	} else {
		edge := &TransferEdge{
			Sender:        sender,
			Receiver:      receiver,
			Count:         1,
			TotalAmount:   amount,
			LastTimestamp: ts,
		}
		if s.adjOut[sender] == nil {
			s.adjOut[sender] = make(map[string]*TransferEdge)
		}
		if s.adjIn[receiver] == nil {
			s.adjIn[receiver] = make(map[string]*TransferEdge)
		}
		s.adjOut[sender][receiver] = edge
		s.adjIn[receiver][sender] = edge
		s.edgeCount.Add(1)
	}
	s.transferCount.Add(1)
}

// Edge returns a copy of the aggregated edge for an ordered pair, if any.
func (s *Store) Edge(sender, receiver string) (TransferEdge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if edge, ok := s.adjOut[sender][receiver]; ok {
		return *edge, true
	}
	return TransferEdge{}, false
}

// Degrees returns the in- and out-degree of an account.
func (s *Store) Degrees(id string) (in, out int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.adjIn[id]), len(s.adjOut[id])
}

// Stats reports graph-level counters.
type Stats struct {
	NodeCount     int64 `json:"node_count"`
	EdgeCount     int64 `json:"edge_count"`
	TransferCount int64 `json:"transfer_count"`
}

// Stats returns current graph statistics.
func (s *Store) Stats() Stats {
	return Stats{
		NodeCount:     s.nodeCount.Load(),
		EdgeCount:     s.edgeCount.Load(),
		TransferCount: s.transferCount.Load(),
	}
}

// NodeInfo describes one node for the introspection endpoint.
type NodeInfo struct {
	ID        string   `json:"id"`
	Kind      NodeKind `json:"kind"`
	Label     string   `json:"label"`
	InDegree  int      `json:"in_degree"`
	OutDegree int      `json:"out_degree"`
}

// Info is a consistent observable view of the graph structure.
type Info struct {
	Nodes []NodeInfo     `json:"nodes"`
	Edges []TransferEdge `json:"edges"`
}

// Info returns the node and edge listing used by the graph introspection
// endpoint. Taken under a single read lock, so the view is consistent.
func (s *Store) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		Nodes: make([]NodeInfo, 0, len(s.nodes)),
		Edges: make([]TransferEdge, 0),
	}
	for id, node := range s.nodes {
		info.Nodes = append(info.Nodes, NodeInfo{
			ID:        id,
			Kind:      node.Kind,
			Label:     node.Label,
			InDegree:  len(s.adjIn[id]),
			OutDegree: len(s.adjOut[id]),
		})
	}
	for _, edges := range s.adjOut {
		for _, edge := range edges {
			info.Edges = append(info.Edges, *edge)
		}
	}
	sort.Slice(info.Nodes, func(i, j int) bool { return info.Nodes[i].ID < info.Nodes[j].ID })
	sort.Slice(info.Edges, func(i, j int) bool {
		if info.Edges[i].Sender != info.Edges[j].Sender {
			return info.Edges[i].Sender < info.Edges[j].Sender
		}
		return info.Edges[i].Receiver < info.Edges[j].Receiver
	})
	return info
}
