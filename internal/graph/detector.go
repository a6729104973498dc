package graph

import "sort"

// ---------------------------------------------------------------------------
// Mule Graph Detector — read-only analysis of the account graph.
// Additive, capped, explainable scoring: every contribution carries a reason.
// ---------------------------------------------------------------------------

// Signal weights. The sum of all full weights plus the known-kind bonus is
// capped at 1.0 when the final score is clamped.
const (
	weightCentrality = 0.35
	weightFrequency  = 0.30
	weightCascade    = 0.35
	weightKnownMule  = 0.15
)

// Thresholds for the individual signals.
const (
	inDegreeHigh     = 5
	inDegreeModerate = 3
	cascadeMinDepth  = 2

	// chainVisitBound caps each directional chain walk at this many distinct
	// nodes, so cyclic or near-complete graphs cannot blow up the traversal.
	chainVisitBound = 5
)

// Reason codes emitted by Analyze, in signal-evaluation order.
const (
	ReasonBlacklisted        = "blacklisted_account"
	ReasonHighCentrality     = "high_centrality"
	ReasonModerateCentrality = "moderate_centrality"
	ReasonHighInDegree       = "high_in_degree"
	ReasonModerateInDegree   = "moderate_in_degree"
	ReasonCascadeMember      = "cascade_member"
	ReasonKnownMuleKind      = "known_mule_type"
)

// Metrics are the derived per-account graph measurements. Computed fresh on
// every Analyze call; never stored.
type Metrics struct {
	Centrality   float64  `json:"centrality"`
	InDegree     int      `json:"in_degree"`
	OutDegree    int      `json:"out_degree"`
	CascadeDepth int      `json:"cascade_depth"`
	NodeKind     NodeKind `json:"node_kind"`
}

// Analysis is the result of analyzing one account.
type Analysis struct {
	Account   string  `json:"account"`
	MuleScore float64 `json:"mule_score"`
	Reasons   []string `json:"reasons"`
	Metrics   Metrics  `json:"graph_metrics"`
}

// Detector analyzes the account graph for mule patterns. It only ever reads
// the store, under the store's read lock.
type Detector struct {
	store *Store
}

// NewDetector creates a detector bound to a graph store.
func NewDetector(store *Store) *Detector {
	return &Detector{store: store}
}

// Analyze scores one account against the current graph snapshot.
//
// An unknown account is a terminal zero-signal case, not an error. A blocked
// account short-circuits to score 1.0 with only the blacklist reason.
func (d *Detector) Analyze(accountID string) Analysis {
	s := d.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[accountID]
	if !ok {
		return Analysis{
			Account: accountID,
			Reasons: []string{},
			Metrics: Metrics{NodeKind: KindUnknown},
		}
	}

	metrics := Metrics{
		Centrality:   d.centrality(accountID),
		InDegree:     len(s.adjIn[accountID]),
		OutDegree:    len(s.adjOut[accountID]),
		CascadeDepth: d.cascadeDepth(accountID),
		NodeKind:     node.Kind,
	}

	if node.Kind == KindBlocked {
		return Analysis{
			Account:   accountID,
			MuleScore: 1.0,
			Reasons:   []string{ReasonBlacklisted},
			Metrics:   metrics,
		}
	}

	score := 0.0
	reasons := []string{}

	// Centrality vs. the mean across the snapshot. Undefined for a graph
	// with a single node, in which case the signal is skipped entirely.
	if len(s.nodes) > 1 {
		mean := d.meanCentrality()
		switch {
		case metrics.Centrality > mean*2:
			score += weightCentrality
			reasons = append(reasons, ReasonHighCentrality)
		case metrics.Centrality > mean*1.5:
			score += weightCentrality * 0.5
			reasons = append(reasons, ReasonModerateCentrality)
		}
	}

	// Reception frequency.
	switch {
	case metrics.InDegree >= inDegreeHigh:
		score += weightFrequency
		reasons = append(reasons, ReasonHighInDegree)
	case metrics.InDegree >= inDegreeModerate:
		score += weightFrequency * 0.5
		reasons = append(reasons, ReasonModerateInDegree)
	}

	// Cascade membership.
	if metrics.CascadeDepth >= cascadeMinDepth {
		score += weightCascade
		reasons = append(reasons, ReasonCascadeMember)
	}

	// Known-kind bonus.
	if node.Kind == KindMule {
		score += weightKnownMule
		reasons = append(reasons, ReasonKnownMuleKind)
	}

	if score > 1.0 {
		score = 1.0
	}

	return Analysis{
		Account:   accountID,
		MuleScore: score,
		Reasons:   reasons,
		Metrics:   metrics,
	}
}

// centrality is the degree centrality of a node: (in+out) / (n-1).
// Must be called with the store read lock held.
func (d *Detector) centrality(id string) float64 {
	n := len(d.store.nodes)
	if n <= 1 {
		return 0
	}
	deg := len(d.store.adjIn[id]) + len(d.store.adjOut[id])
	return float64(deg) / float64(n-1)
}

// meanCentrality averages degree centrality over every node in the snapshot.
// Must be called with the store read lock held.
func (d *Detector) meanCentrality() float64 {
	n := len(d.store.nodes)
	if n <= 1 {
		return 0
	}
	sum := 0.0
	for id := range d.store.nodes {
		sum += float64(len(d.store.adjIn[id])+len(d.store.adjOut[id])) / float64(n-1)
	}
	return sum / float64(n)
}

// cascadeDepth is the longest simple predecessor chain plus the longest
// simple successor chain through the account. Must be called with the store
// read lock held.
func (d *Detector) cascadeDepth(id string) int {
	return d.chainLength(id, d.store.adjIn) + d.chainLength(id, d.store.adjOut)
}

// chainFrame is one level of the explicit DFS stack used by chainLength.
type chainFrame struct {
	node      string
	neighbors []string
	next      int
}

// chainLength walks the longest simple chain from start through adj,
// visiting at most chainVisitBound distinct nodes per chain and never
// revisiting a node already on the current chain. Iterative with an explicit
// stack; the visited set always mirrors the nodes on the stack.
func (d *Detector) chainLength(start string, adj map[string]map[string]*TransferEdge) int {
	neighborsOf := func(id string) []string {
		out := make([]string, 0, len(adj[id]))
		for n := range adj[id] {
			out = append(out, n)
		}
		sort.Strings(out)
		return out
	}

	visited := map[string]bool{start: true}
	stack := []*chainFrame{{node: start, neighbors: neighborsOf(start)}}
	best := 0

	for len(stack) > 0 {
		frame := stack[len(stack)-1]

		descended := false
		for frame.next < len(frame.neighbors) {
			next := frame.neighbors[frame.next]
			frame.next++
			if visited[next] || len(visited) >= chainVisitBound {
				continue
			}
			visited[next] = true
			stack = append(stack, &chainFrame{node: next, neighbors: neighborsOf(next)})
			if depth := len(stack) - 1; depth > best {
				best = depth
			}
			descended = true
			break
		}

		if !descended {
			stack = stack[:len(stack)-1]
			if frame.node != start {
				delete(visited, frame.node)
			}
		}
	}
	return best
}
