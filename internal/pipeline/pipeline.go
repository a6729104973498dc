// Package pipeline implements the risk-orchestration state machine: signal
// fan-out, classifier fan-in, the decide/escalate branches and the single
// finalization step every transaction must pass through.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trustflow/trustflow/internal/classify"
	"github.com/trustflow/trustflow/internal/eventlog"
	"github.com/trustflow/trustflow/internal/mule"
	"github.com/trustflow/trustflow/internal/observability"
	"github.com/trustflow/trustflow/internal/reasoner"
	"github.com/trustflow/trustflow/internal/signals"
	"github.com/trustflow/trustflow/internal/verify"
)

// Stage names, in the order a transaction can visit them.
const (
	StageStart         = "start"
	StageDeviceSignals = "device_signals"
	StageMuleScoring   = "mule_scoring"
	StageRiskClassify  = "risk_classify"
	StageDecide        = "decide"
	StageFacialVerify  = "facial_verify"
	StageVoiceVerify   = "voice_verify"
	StageApprove       = "approve"
	StageBlock         = "block"
	StageFinalize      = "finalize"
)

// State is the per-transaction accumulator. Each field is written exactly
// once by the stage that owns it and read-only afterward; the struct is
// discarded when the transaction reaches its terminal state.
type State struct {
	Transaction Transaction

	// Fan-out results.
	Device     signals.DeviceSignals
	DeviceRes  signals.Result
	Behavioral signals.Result
	Mule       mule.Result

	// Fan-in result.
	Assessment classify.Assessment

	// Escalation results.
	Escalated bool
	Facial    *verify.Result
	Voice     *verify.Result

	// Terminal.
	Outcome Outcome
	Trace   []string
}

// Outcome is the terminal result returned to the caller and persisted by
// Finalize.
type Outcome struct {
	TransactionID string        `json:"transaction_id"`
	Approved      bool          `json:"approved"`
	Blocked       bool          `json:"blocked"`
	Tier          classify.Tier `json:"tier"`
	RiskScore     float64       `json:"risk_score"`
	Confidence    float64       `json:"confidence"`
	Factors       []string      `json:"factors"`
	Explanation   string        `json:"explanation"`
	Report        string        `json:"report,omitempty"`
	HITLRequired  bool          `json:"hitl_required"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Orchestrator runs transactions through the pipeline. It holds no
// per-transaction state, so any number of transactions may be processed
// concurrently.
type Orchestrator struct {
	muleSvc    *mule.Service
	classifier *classify.Classifier
	facial     verify.Verifier
	voice      verify.Verifier
	reasoner   reasoner.Reasoner
	ruleFB     *reasoner.RuleReasoner
	events     *eventlog.Log

	verifyTimeout   time.Duration
	reasonerTimeout time.Duration

	approved  *observability.Counter
	blocked   *observability.Counter
	escalated *observability.Counter
}

// Options configures an Orchestrator.
type Options struct {
	MuleService     *mule.Service
	Classifier      *classify.Classifier
	Facial          verify.Verifier
	Voice           verify.Verifier
	Reasoner        reasoner.Reasoner
	Events          *eventlog.Log
	VerifyTimeout   time.Duration
	ReasonerTimeout time.Duration
	Metrics         *observability.Registry
}

// New creates an orchestrator. Metrics may be nil.
func New(opts Options) *Orchestrator {
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 3 * time.Second
	}
	if opts.ReasonerTimeout <= 0 {
		opts.ReasonerTimeout = 5 * time.Second
	}
	o := &Orchestrator{
		muleSvc:         opts.MuleService,
		classifier:      opts.Classifier,
		facial:          opts.Facial,
		voice:           opts.Voice,
		reasoner:        opts.Reasoner,
		ruleFB:          reasoner.NewRuleReasoner(),
		events:          opts.Events,
		verifyTimeout:   opts.VerifyTimeout,
		reasonerTimeout: opts.ReasonerTimeout,
	}
	if opts.Reasoner == nil {
		o.reasoner = o.ruleFB
	}
	if opts.Metrics != nil {
		o.approved = opts.Metrics.Counter("trustflow_transactions_approved_total", "Transactions approved")
		o.blocked = opts.Metrics.Counter("trustflow_transactions_blocked_total", "Transactions blocked")
		o.escalated = opts.Metrics.Counter("trustflow_transactions_escalated_total", "Transactions escalated to verification")
	}
	return o
}

// Process runs one transaction to its terminal state. The only error is an
// invalid transaction rejected before the pipeline starts; every other
// failure resolves to a deterministic branch inside the state machine.
//
// Graph and memory mutations made along the way are never rolled back,
// even if the caller's context is already cancelled: the graph is an
// append-only ledger of observed transfers, not a transactional resource.
func (o *Orchestrator) Process(ctx context.Context, tx Transaction) (*State, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	st := &State{Transaction: tx, Trace: []string{StageStart}}
	started := time.Now()

	// Fan-out: the two evaluators are independent; run them concurrently
	// and suspend at the fan-in point until both complete. Each goroutine
	// writes only the fields it owns.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		st.Device = o.deviceSignals(tx)
		st.DeviceRes = signals.EvaluateDevice(st.Device)
		st.Behavioral = signals.EvaluateBehavioral(signals.BehavioralInput{
			Amount:            tx.Amount,
			InteractionTimeMs: tx.InteractionTimeMs,
			NavigationSteps:   tx.NavigationSteps,
			HistoricalAmounts: tx.HistoricalAmounts,
		})
	}()
	go func() {
		defer wg.Done()
		st.Mule = o.muleSvc.Score(tx.SenderAccount, tx.ReceiverAccount, tx.Amount)
	}()
	wg.Wait()
	st.Trace = append(st.Trace, StageDeviceSignals, StageMuleScoring)

	// Fan-in.
	st.Assessment = o.classifier.Classify(tx.Amount, st.Device, st.Mule.MuleScore)
	st.Trace = append(st.Trace, StageRiskClassify, StageDecide)

	approved := false
	switch st.Assessment.Tier {
	case classify.TierNoFraud:
		approved = true
	case classify.TierFraud:
		approved = false
	default: // POSSIBLE_FRAUD
		st.Escalated = true
		if o.escalated != nil {
			o.escalated.Inc()
		}
		approved = o.escalate(ctx, st)
	}

	if approved {
		st.Trace = append(st.Trace, StageApprove)
	} else {
		st.Trace = append(st.Trace, StageBlock)
	}

	o.finalize(ctx, st, approved)

	log.Info().
		Str("transaction", tx.ID).
		Str("tier", string(st.Assessment.Tier)).
		Float64("risk_score", st.Assessment.RiskScore).
		Bool("approved", approved).
		Bool("escalated", st.Escalated).
		Dur("elapsed", time.Since(started)).
		Msg("pipeline: transaction finalized")

	return st, nil
}

// deviceSignals merges derived telemetry with explicit client flags.
func (o *Orchestrator) deviceSignals(tx Transaction) signals.DeviceSignals {
	d := signals.DeriveDeviceSignals(tx.DeviceID, tx.IPAddress, tx.UserAgent)
	if tx.IsEmulator != nil {
		d.IsEmulator = *tx.IsEmulator
	}
	if tx.IsRooted != nil {
		d.IsRooted = *tx.IsRooted
	}
	if tx.AnomalousIP != nil {
		d.AnomalousIP = *tx.AnomalousIP
	}
	return d
}

// escalate runs the sequential verification chain: facial, then voice.
// Any verifier error or timeout resolves to the failed branch, never to an
// indefinite wait.
func (o *Orchestrator) escalate(ctx context.Context, st *State) bool {
	st.Trace = append(st.Trace, StageFacialVerify)
	facial := o.runVerifier(ctx, o.facial, st)
	st.Facial = &facial
	if !facial.Passed {
		return false
	}

	st.Trace = append(st.Trace, StageVoiceVerify)
	voice := o.runVerifier(ctx, o.voice, st)
	st.Voice = &voice
	return voice.Passed
}

func (o *Orchestrator) runVerifier(ctx context.Context, v verify.Verifier, st *State) verify.Result {
	vctx, cancel := context.WithTimeout(ctx, o.verifyTimeout)
	defer cancel()

	result, err := v.Verify(vctx, st.Transaction.SenderAccount, st.Transaction.ID)
	if err != nil {
		log.Warn().Err(err).
			Str("transaction", st.Transaction.ID).
			Str("method", result.Method).
			Msg("pipeline: verification failed, treating as rejection")
		return verify.Result{Passed: false, Method: result.Method}
	}
	return result
}

// finalize runs exactly once per transaction, on every branch. It is the
// only stage permitted to persist the outcome record.
func (o *Orchestrator) finalize(ctx context.Context, st *State, approved bool) {
	st.Trace = append(st.Trace, StageFinalize)

	in := reasoner.Input{
		TransactionID: st.Transaction.ID,
		Sender:        st.Transaction.SenderAccount,
		Receiver:      st.Transaction.ReceiverAccount,
		Amount:        st.Transaction.Amount.String(),
		Currency:      st.Transaction.Currency,
		Tier:          string(st.Assessment.Tier),
		RiskScore:     st.Assessment.RiskScore,
		Factors:       st.Assessment.Factors,
		MuleScore:     st.Mule.MuleScore,
		MuleReasons:   st.Mule.Reasons,
		DeviceScore:   st.DeviceRes.SubScore,
		Blocked:       !approved,
		Escalated:     st.Escalated,
	}

	rctx, cancel := context.WithTimeout(ctx, o.reasonerTimeout)
	expl, err := o.reasoner.Explain(rctx, in)
	cancel()
	if err != nil {
		// The rule reasoner cannot fail; use it as the last-resort shape.
		expl, _ = o.ruleFB.Explain(context.Background(), in)
	}

	st.Outcome = Outcome{
		TransactionID: st.Transaction.ID,
		Approved:      approved,
		Blocked:       !approved,
		Tier:          st.Assessment.Tier,
		RiskScore:     st.Assessment.RiskScore,
		Confidence:    expl.Confidence,
		Factors:       st.Assessment.Factors,
		Explanation:   expl.Text,
		HITLRequired:  st.Escalated,
		Timestamp:     time.Now().UTC(),
	}
	if !approved {
		st.Outcome.Report = o.ruleFB.Report(in)
	}

	if o.approved != nil {
		if approved {
			o.approved.Inc()
		} else {
			o.blocked.Inc()
		}
	}

	if o.events != nil {
		o.events.Append(outcomeRecord(st))
	}
}

func outcomeRecord(st *State) eventlog.Record {
	rec := eventlog.Record{
		TransactionID:   st.Transaction.ID,
		Timestamp:       st.Outcome.Timestamp,
		Tier:            string(st.Outcome.Tier),
		RiskScore:       st.Outcome.RiskScore,
		Confidence:      st.Outcome.Confidence,
		Factors:         st.Outcome.Factors,
		MuleScore:       st.Mule.MuleScore,
		DeviceScore:     st.DeviceRes.SubScore,
		BehavioralScore: st.Behavioral.SubScore,
		Escalated:       st.Escalated,
		Approved:        st.Outcome.Approved,
		Blocked:         st.Outcome.Blocked,
		Explanation:     st.Outcome.Explanation,
		Report:          st.Outcome.Report,
	}
	if st.Facial != nil {
		passed := st.Facial.Passed
		rec.FacialPassed = &passed
	}
	if st.Voice != nil {
		passed := st.Voice.Passed
		rec.VoicePassed = &passed
	}
	return rec
}
