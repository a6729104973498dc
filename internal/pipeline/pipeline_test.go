package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustflow/trustflow/internal/classify"
	"github.com/trustflow/trustflow/internal/eventlog"
	"github.com/trustflow/trustflow/internal/graph"
	"github.com/trustflow/trustflow/internal/memory"
	"github.com/trustflow/trustflow/internal/mule"
	"github.com/trustflow/trustflow/internal/observability"
	"github.com/trustflow/trustflow/internal/reasoner"
	"github.com/trustflow/trustflow/internal/verify"
)

// stubVerifier returns a fixed result and counts calls.
type stubVerifier struct {
	result verify.Result
	err    error
	delay  time.Duration
	calls  int
}

func (s *stubVerifier) Verify(ctx context.Context, _, _ string) (verify.Result, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return verify.Result{Method: s.result.Method}, ctx.Err()
		}
	}
	return s.result, s.err
}

// failingReasoner always errors, forcing the rule fallback.
type failingReasoner struct{}

func (failingReasoner) Name() string { return "failing" }
func (failingReasoner) Explain(context.Context, reasoner.Input) (reasoner.Explanation, error) {
	return reasoner.Explanation{}, errors.New("reasoner unavailable")
}

type testEnv struct {
	orch   *Orchestrator
	store  *graph.Store
	events *eventlog.Log
	facial *stubVerifier
	voice  *stubVerifier
}

func newTestEnv(t *testing.T, opts func(*Options)) *testEnv {
	t.Helper()

	store := graph.NewStore()
	mem := memory.Open(filepath.Join(t.TempDir(), "suspicious.json"))
	events, err := eventlog.Open(filepath.Join(t.TempDir(), "outcomes.jsonl"), 64)
	require.NoError(t, err)
	t.Cleanup(func() { events.Close() })

	env := &testEnv{
		store:  store,
		events: events,
		facial: &stubVerifier{result: verify.Result{Passed: true, Confidence: 0.9, Method: "facial"}},
		voice:  &stubVerifier{result: verify.Result{Passed: true, Confidence: 0.9, Method: "voice"}},
	}

	o := Options{
		MuleService: mule.NewService(store, graph.NewDetector(store), mem, 0),
		Classifier:  classify.NewDefault(),
		Facial:      env.facial,
		Voice:       env.voice,
		Events:      events,
	}
	if opts != nil {
		opts(&o)
	}
	env.orch = New(o)
	return env
}

func boolPtr(v bool) *bool { return &v }

func cleanTx(id string) Transaction {
	return Transaction{
		ID:              id,
		SenderAccount:   "USER-001",
		ReceiverAccount: "ACC-CLEAN-001",
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
	}
}

func possibleFraudTx(id string) Transaction {
	// medium amount (0.10) + emulator (0.20) + anomalous IP (0.15) = 0.45.
	return Transaction{
		ID:              id,
		SenderAccount:   "USER-001",
		ReceiverAccount: "ACC-CLEAN-001",
		Amount:          decimal.NewFromInt(5_000),
		Currency:        "USD",
		IsEmulator:      boolPtr(true),
		AnomalousIP:     boolPtr(true),
	}
}

func TestProcess_RejectsInvalidTransaction(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.orch.Process(context.Background(), Transaction{ID: "TXN-1"})
	assert.Error(t, err)
	assert.Equal(t, 0, env.events.Len())
}

func TestProcess_CleanTransactionApproved(t *testing.T) {
	env := newTestEnv(t, nil)

	st, err := env.orch.Process(context.Background(), cleanTx("TXN-1"))
	require.NoError(t, err)

	assert.True(t, st.Outcome.Approved)
	assert.False(t, st.Outcome.Blocked)
	assert.Equal(t, classify.TierNoFraud, st.Outcome.Tier)
	assert.False(t, st.Escalated)
	assert.False(t, st.Outcome.HITLRequired)
	assert.Empty(t, st.Outcome.Report)
	assert.NotEmpty(t, st.Outcome.Explanation)
	assert.Equal(t, 0, env.facial.calls)

	assert.Contains(t, st.Trace, StageApprove)
	assert.Contains(t, st.Trace, StageFinalize)
	assert.NotContains(t, st.Trace, StageFacialVerify)
}

func TestProcess_FraudBlockedWithoutEscalation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.MarkBlocked("ACC-BLOCKED-001")

	st, err := env.orch.Process(context.Background(), Transaction{
		ID:              "TXN-1",
		SenderAccount:   "USER-001",
		ReceiverAccount: "ACC-BLOCKED-001",
		Amount:          decimal.NewFromInt(20_000),
		Currency:        "USD",
		IsEmulator:      boolPtr(true),
	})
	require.NoError(t, err)

	assert.True(t, st.Outcome.Blocked)
	assert.Equal(t, classify.TierFraud, st.Outcome.Tier)
	assert.False(t, st.Escalated)
	assert.Equal(t, 0, env.facial.calls)
	assert.NotEmpty(t, st.Outcome.Report)
	assert.Contains(t, st.Outcome.Report, "FRAUD INCIDENT REPORT")
	assert.Contains(t, st.Trace, StageBlock)
}

func TestProcess_EscalationBothChecksPass(t *testing.T) {
	env := newTestEnv(t, nil)

	st, err := env.orch.Process(context.Background(), possibleFraudTx("TXN-1"))
	require.NoError(t, err)

	assert.Equal(t, classify.TierPossibleFraud, st.Outcome.Tier)
	assert.True(t, st.Escalated)
	assert.True(t, st.Outcome.Approved)
	assert.True(t, st.Outcome.HITLRequired)
	assert.Equal(t, 1, env.facial.calls)
	assert.Equal(t, 1, env.voice.calls)
	require.NotNil(t, st.Facial)
	require.NotNil(t, st.Voice)
	assert.Contains(t, st.Trace, StageFacialVerify)
	assert.Contains(t, st.Trace, StageVoiceVerify)
}

func TestProcess_FacialFailureSkipsVoice(t *testing.T) {
	env := newTestEnv(t, nil)
	env.facial.result = verify.Result{Passed: false, Confidence: 0.2, Method: "facial"}

	st, err := env.orch.Process(context.Background(), possibleFraudTx("TXN-1"))
	require.NoError(t, err)

	assert.True(t, st.Outcome.Blocked)
	assert.Equal(t, 1, env.facial.calls)
	assert.Equal(t, 0, env.voice.calls)
	assert.Nil(t, st.Voice)
	assert.NotEmpty(t, st.Outcome.Report)
	assert.NotContains(t, st.Trace, StageVoiceVerify)
}

func TestProcess_VoiceFailureBlocks(t *testing.T) {
	env := newTestEnv(t, nil)
	env.voice.result = verify.Result{Passed: false, Confidence: 0.3, Method: "voice"}

	st, err := env.orch.Process(context.Background(), possibleFraudTx("TXN-1"))
	require.NoError(t, err)

	assert.True(t, st.Outcome.Blocked)
	assert.Equal(t, 1, env.voice.calls)
}

func TestProcess_VerifierErrorTreatedAsRejection(t *testing.T) {
	env := newTestEnv(t, nil)
	env.facial.err = errors.New("provider down")

	st, err := env.orch.Process(context.Background(), possibleFraudTx("TXN-1"))
	require.NoError(t, err)

	assert.True(t, st.Outcome.Blocked)
	require.NotNil(t, st.Facial)
	assert.False(t, st.Facial.Passed)
}

func TestProcess_VerifierTimeoutBlocks(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.VerifyTimeout = 20 * time.Millisecond
	})
	env.facial.delay = time.Second

	start := time.Now()
	st, err := env.orch.Process(context.Background(), possibleFraudTx("TXN-1"))
	require.NoError(t, err)

	assert.True(t, st.Outcome.Blocked)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestProcess_ReasonerFailureFallsBackToRules(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Reasoner = failingReasoner{}
	})

	st, err := env.orch.Process(context.Background(), cleanTx("TXN-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, st.Outcome.Explanation)
	assert.Contains(t, st.Outcome.Explanation, "TXN-1")
}

func TestProcess_AppendsExactlyOneEventPerTransaction(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.orch.Process(context.Background(), cleanTx("TXN-1"))
	require.NoError(t, err)
	_, err = env.orch.Process(context.Background(), possibleFraudTx("TXN-2"))
	require.NoError(t, err)

	assert.Equal(t, 2, env.events.Len())
	escalatedRec := env.events.Query("TXN-2")
	require.Len(t, escalatedRec, 1)
	assert.True(t, escalatedRec[0].Escalated)
	require.NotNil(t, escalatedRec[0].FacialPassed)
	assert.True(t, *escalatedRec[0].FacialPassed)
}

func TestProcess_RecordsTransferInGraph(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.orch.Process(context.Background(), cleanTx("TXN-1"))
	require.NoError(t, err)

	edge, ok := env.store.Edge("USER-001", "ACC-CLEAN-001")
	require.True(t, ok)
	assert.Equal(t, 1, edge.Count)
}

func TestProcess_MetricsCounters(t *testing.T) {
	registry := observability.NewRegistry()
	env := newTestEnv(t, func(o *Options) {
		o.Metrics = registry
	})
	env.facial.result = verify.Result{Passed: false, Method: "facial"}

	_, err := env.orch.Process(context.Background(), cleanTx("TXN-1"))
	require.NoError(t, err)
	_, err = env.orch.Process(context.Background(), possibleFraudTx("TXN-2"))
	require.NoError(t, err)

	approved := registry.Counter("trustflow_transactions_approved_total", "")
	blocked := registry.Counter("trustflow_transactions_blocked_total", "")
	escalated := registry.Counter("trustflow_transactions_escalated_total", "")
	assert.Equal(t, int64(1), approved.Value())
	assert.Equal(t, int64(1), blocked.Value())
	assert.Equal(t, int64(1), escalated.Value())
}

func TestProcess_ConcurrentTransactions(t *testing.T) {
	env := newTestEnv(t, nil)

	const n = 20
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			tx := cleanTx("TXN-" + string(rune('A'+i)))
			_, err := env.orch.Process(context.Background(), tx)
			errCh <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errCh)
	}
	assert.Equal(t, n, env.events.Len())
}
