package memory

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "suspicious.json"))
}

func TestOpen_MissingFileStartsEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, 0, s.Len())
	_, ok := s.PriorScore("any")
	assert.False(t, ok)
}

func TestOpen_MalformedFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suspicious.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := Open(path)
	assert.Equal(t, 0, s.Len())
}

func TestReinforce_FirstFlag(t *testing.T) {
	s := newTestStore(t)
	final := s.Reinforce("ACC-1", 0.6, []string{"high_in_degree"})
	assert.Equal(t, 0.6, final)

	rec, ok := s.Record("ACC-1")
	require.True(t, ok)
	assert.Equal(t, 0.6, rec.MuleScore)
	assert.Equal(t, 1, rec.HitCount)
	assert.Equal(t, []string{"high_in_degree"}, rec.Reasons)
}

func TestReinforce_AntiDropFloor(t *testing.T) {
	s := newTestStore(t)
	s.Reinforce("ACC-1", 0.8, nil)

	// A clean-looking follow-up cannot drop the score below 70% of prior.
	final := s.Reinforce("ACC-1", 0.1, nil)
	assert.InDelta(t, 0.8*DecayFloor, final, 1e-9)

	rec, _ := s.Record("ACC-1")
	assert.Equal(t, 2, rec.HitCount)
}

func TestReinforce_HigherScoreWins(t *testing.T) {
	s := newTestStore(t)
	s.Reinforce("ACC-1", 0.4, nil)
	final := s.Reinforce("ACC-1", 0.9, nil)
	assert.Equal(t, 0.9, final)
}

func TestReinforce_RepeatedDecayConverges(t *testing.T) {
	s := newTestStore(t)
	s.Reinforce("ACC-1", 1.0, nil)

	score := 1.0
	for i := 0; i < 5; i++ {
		score = s.Reinforce("ACC-1", 0.0, nil)
	}
	// 1.0 * 0.7^5
	assert.InDelta(t, 0.16807, score, 1e-9)
}

func TestReinforce_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suspicious.json")

	s := Open(path)
	s.Reinforce("ACC-1", 0.75, []string{"cascade_member"})

	reopened := Open(path)
	score, ok := reopened.PriorScore("ACC-1")
	require.True(t, ok)
	assert.Equal(t, 0.75, score)

	rec, _ := reopened.Record("ACC-1")
	assert.Equal(t, []string{"cascade_member"}, rec.Reasons)
}

func TestReinforce_ConcurrentNoLostUpdates(t *testing.T) {
	s := newTestStore(t)
	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s.Reinforce("ACC-1", 0.5, nil)
			}
		}()
	}
	wg.Wait()

	rec, ok := s.Record("ACC-1")
	require.True(t, ok)
	assert.Equal(t, workers*perWorker, rec.HitCount)
	assert.Equal(t, 0.5, rec.MuleScore)
	assert.Equal(t, int64(0), s.WriteFailures())
}

func TestReinforce_ReasonsAreCopied(t *testing.T) {
	s := newTestStore(t)
	reasons := []string{"a", "b"}
	s.Reinforce("ACC-1", 0.5, reasons)
	reasons[0] = "mutated"

	rec, _ := s.Record("ACC-1")
	assert.Equal(t, "a", rec.Reasons[0])
}
