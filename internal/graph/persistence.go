package graph

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Graph persistence — gob-encoded snapshots, written atomically.
// The graph itself is the live source of truth; snapshots exist so suspicion
// structure survives a restart.
// ---------------------------------------------------------------------------

// snapshot is the serializable state of the account graph.
type snapshot struct {
	Nodes         map[string]*AccountNode
	AdjOut        map[string]map[string]*TransferEdge
	NodeCount     int
	EdgeCount     int
	TransferCount int64
	CreatedAt     time.Time
}

// SaveSnapshot persists the current graph state to a gob-encoded file.
// The file is written to a temp path and renamed into place.
func (s *Store) SaveSnapshot(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Nodes:         s.nodes,
		AdjOut:        s.adjOut,
		NodeCount:     len(s.nodes),
		TransferCount: s.transferCount.Load(),
		CreatedAt:     time.Now(),
	}
	for _, edges := range s.adjOut {
		snap.EdgeCount += len(edges)
	}
	// Encode while holding the read lock so a concurrent RecordTransfer
	// cannot mutate the maps mid-encode.
	err := writeSnapshot(path, &snap)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	log.Info().
		Int("nodes", snap.NodeCount).
		Int("edges", snap.EdgeCount).
		Str("path", path).
		Msg("graph: snapshot saved")
	return nil
}

func writeSnapshot(path string, snap *snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("graph: create snapshot dir: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("graph: create snapshot file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("graph: encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("graph: close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("graph: rename snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores graph state from a gob-encoded file. A missing or
// empty snapshot means a fresh start, not an error.
func (s *Store) LoadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", path).Msg("graph: no snapshot found, starting fresh")
			return nil
		}
		return fmt.Errorf("graph: open snapshot: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		if err == io.EOF {
			log.Warn().Str("path", path).Msg("graph: empty snapshot, starting fresh")
			return nil
		}
		return fmt.Errorf("graph: decode snapshot: %w", err)
	}

	s.mu.Lock()
	s.nodes = snap.Nodes
	s.adjOut = snap.AdjOut
	if s.nodes == nil {
		s.nodes = make(map[string]*AccountNode)
	}
	if s.adjOut == nil {
		s.adjOut = make(map[string]map[string]*TransferEdge)
	}
	// Rebuild the reverse adjacency from the forward one: both maps hold
	// pointers to the same edges, so only one side is serialized.
	s.adjIn = make(map[string]map[string]*TransferEdge)
	edgeCount := int64(0)
	for sender, edges := range s.adjOut {
		for receiver, edge := range edges {
			if s.adjIn[receiver] == nil {
				s.adjIn[receiver] = make(map[string]*TransferEdge)
			}
			s.adjIn[receiver][sender] = edge
			edgeCount++
		}
	}
	s.nodeCount.Store(int64(len(s.nodes)))
	s.edgeCount.Store(edgeCount)
	s.transferCount.Store(snap.TransferCount)
	s.mu.Unlock()

	log.Info().
		Int("nodes", snap.NodeCount).
		Int("edges", snap.EdgeCount).
		Time("created_at", snap.CreatedAt).
		Str("path", path).
		Msg("graph: snapshot loaded")
	return nil
}

// SnapshotLoop runs periodic snapshots until the context is done, then
// writes a final snapshot on the way out.
func (s *Store) SnapshotLoop(path string, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			if err := s.SaveSnapshot(path); err != nil {
				log.Error().Err(err).Msg("graph: final snapshot failed")
			}
			return
		case <-ticker.C:
			if err := s.SaveSnapshot(path); err != nil {
				log.Error().Err(err).Msg("graph: periodic snapshot failed")
			}
		}
	}
}
