package reasoner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteReasoner_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in Input
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "TXN-001", in.TransactionID)

		json.NewEncoder(w).Encode(remoteResponse{
			Explanation: "remote verdict text",
			Confidence:  0.88,
		})
	}))
	defer srv.Close()

	r := NewRemoteReasoner(srv.URL, 0)
	expl, err := r.Explain(context.Background(), blockedInput())
	require.NoError(t, err)

	assert.Equal(t, "remote", expl.Provider)
	assert.Equal(t, "remote verdict text", expl.Text)
	assert.Equal(t, 0.88, expl.Confidence)
	assert.Equal(t, "FRAUD", expl.Tier)
}

func TestRemoteReasoner_FallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	expl, err := NewRemoteReasoner(srv.URL, 0).Explain(context.Background(), blockedInput())
	require.NoError(t, err)
	assert.Equal(t, "rules", expl.Provider)
	assert.Contains(t, expl.Text, "TXN-001")
}

func TestRemoteReasoner_FallsBackOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	expl, err := NewRemoteReasoner(srv.URL, 0).Explain(context.Background(), blockedInput())
	require.NoError(t, err)
	assert.Equal(t, "rules", expl.Provider)
}

func TestRemoteReasoner_FallsBackOnEmptyExplanation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(remoteResponse{Confidence: 0.5})
	}))
	defer srv.Close()

	expl, err := NewRemoteReasoner(srv.URL, 0).Explain(context.Background(), blockedInput())
	require.NoError(t, err)
	assert.Equal(t, "rules", expl.Provider)
}

func TestRemoteReasoner_FallsBackOnUnreachableEndpoint(t *testing.T) {
	expl, err := NewRemoteReasoner("http://127.0.0.1:1/unreachable", 0).
		Explain(context.Background(), blockedInput())
	require.NoError(t, err)
	assert.Equal(t, "rules", expl.Provider)
}
