package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// RemoteReasoner calls an external explanation service (typically an LLM
// gateway). Any failure — transport error, timeout, non-2xx status,
// malformed body — resolves to the deterministic rule reasoner; a remote
// outage can never fail the pipeline.
type RemoteReasoner struct {
	endpoint string
	client   *http.Client
	fallback *RuleReasoner
}

// NewRemoteReasoner creates a remote reasoner with the given endpoint and
// per-request timeout.
func NewRemoteReasoner(endpoint string, timeout time.Duration) *RemoteReasoner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteReasoner{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		fallback: NewRuleReasoner(),
	}
}

// Name returns the provider identifier.
func (r *RemoteReasoner) Name() string { return "remote" }

// remoteResponse is the wire shape the remote service returns.
type remoteResponse struct {
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
}

// Explain queries the remote service, falling back to rules on any failure.
func (r *RemoteReasoner) Explain(ctx context.Context, in Input) (Explanation, error) {
	expl, err := r.explainRemote(ctx, in)
	if err != nil {
		log.Warn().Err(err).Str("transaction", in.TransactionID).
			Msg("reasoner: remote failed, using rule fallback")
		return r.fallback.Explain(ctx, in)
	}
	return expl, nil
}

func (r *RemoteReasoner) explainRemote(ctx context.Context, in Input) (Explanation, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return Explanation{}, fmt.Errorf("reasoner: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return Explanation{}, fmt.Errorf("reasoner: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Explanation{}, fmt.Errorf("reasoner: call remote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Explanation{}, fmt.Errorf("reasoner: remote status %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Explanation{}, fmt.Errorf("reasoner: decode response: %w", err)
	}
	if out.Explanation == "" {
		return Explanation{}, fmt.Errorf("reasoner: remote returned empty explanation")
	}

	return Explanation{
		Tier:       in.Tier,
		Confidence: out.Confidence,
		RiskScore:  in.RiskScore,
		Factors:    in.Factors,
		Text:       out.Explanation,
		Provider:   r.Name(),
	}, nil
}
