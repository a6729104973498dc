package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacialVerifier_Deterministic(t *testing.T) {
	v := NewFacialVerifier(0)

	first, err := v.Verify(context.Background(), "USER-1", "TXN-1")
	require.NoError(t, err)
	second, err := v.Verify(context.Background(), "USER-1", "TXN-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "facial", first.Method)
	assert.GreaterOrEqual(t, first.Confidence, 0.0)
	assert.LessOrEqual(t, first.Confidence, 1.0)
}

func TestFacialVerifier_ThresholdApplied(t *testing.T) {
	loose := NewFacialVerifier(0.01)
	strict := &FacialVerifier{Threshold: 0.999}

	res, err := loose.Verify(context.Background(), "USER-1", "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, res.Confidence >= loose.Threshold, res.Passed)

	res, err = strict.Verify(context.Background(), "USER-1", "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, res.Confidence >= strict.Threshold, res.Passed)
}

func TestFacialVerifier_DefaultThreshold(t *testing.T) {
	v := NewFacialVerifier(0)
	assert.Equal(t, DefaultFacialThreshold, v.Threshold)
	v = NewFacialVerifier(-1)
	assert.Equal(t, DefaultFacialThreshold, v.Threshold)
}

func TestFacialVerifier_MostUsersPass(t *testing.T) {
	v := NewFacialVerifier(0)
	passed := 0
	for i := 0; i < 100; i++ {
		res, err := v.Verify(context.Background(), "USER", string(rune('A'+i%26))+string(rune('0'+i/26)))
		require.NoError(t, err)
		if res.Passed {
			passed++
		}
	}
	// Similarity is centered at 0.75 with the threshold at 0.70.
	assert.Greater(t, passed, 40)
}

func TestVoiceVerifier_Deterministic(t *testing.T) {
	v := NewVoiceVerifier()

	first, err := v.Verify(context.Background(), "USER-1", "TXN-1")
	require.NoError(t, err)
	second, err := v.Verify(context.Background(), "USER-1", "TXN-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "voice", first.Method)
}

func TestVoiceVerifier_MostCallsConfirm(t *testing.T) {
	v := NewVoiceVerifier()
	confirmed := 0
	for i := 0; i < 100; i++ {
		res, err := v.Verify(context.Background(), "USER", string(rune('A'+i%26))+string(rune('0'+i/26)))
		require.NoError(t, err)
		if res.Passed {
			confirmed++
		}
	}
	assert.Greater(t, confirmed, 60)
}

func TestVerify_CancelledContext(t *testing.T) {
	v := &FacialVerifier{Latency: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := v.Verify(ctx, "USER-1", "TXN-1")
	assert.Error(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, "facial", res.Method)
}

func TestVerify_TimeoutHonored(t *testing.T) {
	v := &VoiceVerifier{Latency: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := v.Verify(ctx, "USER-1", "TXN-1")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSeed_DistinctPerMethodAndIdentity(t *testing.T) {
	base := seed("facial", "USER-1", "TXN-1")
	assert.NotEqual(t, base, seed("voice", "USER-1", "TXN-1"))
	assert.NotEqual(t, base, seed("facial", "USER-2", "TXN-1"))
	assert.NotEqual(t, base, seed("facial", "USER-1", "TXN-2"))
}
