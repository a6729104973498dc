package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/trustflow/trustflow/internal/graph"
	"github.com/trustflow/trustflow/internal/memory"
	"github.com/trustflow/trustflow/internal/observability"
	"github.com/trustflow/trustflow/internal/pipeline"
	"github.com/trustflow/trustflow/internal/simulator"
	"github.com/trustflow/trustflow/internal/verify"
)

// analyzeResponse is the transaction analysis payload.
type analyzeResponse struct {
	Outcome pipeline.Outcome `json:"outcome"`
	Trace   []string         `json:"trace"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var tx pipeline.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	st, err := s.orchestrator.Process(c.Request.Context(), tx)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analyzeResponse{Outcome: st.Outcome, Trace: st.Trace})
}

func (s *Server) handleGraphInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Info())
}

func (s *Server) handleGraphStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Stats())
}

// accountResponse joins the live graph analysis with the long-term
// reputation record for one account.
type accountResponse struct {
	Account    string                   `json:"account"`
	Kind       string                   `json:"kind"`
	Analysis   graph.Analysis           `json:"analysis"`
	Reputation *memory.ReputationRecord `json:"reputation,omitempty"`
}

func (s *Server) handleAccount(c *gin.Context) {
	id := c.Param("id")
	resp := accountResponse{
		Account:  id,
		Kind:     string(s.store.Kind(id)),
		Analysis: s.detector.Analyze(id),
	}
	if rec, ok := s.reputation.Record(id); ok {
		resp.Reputation = &rec
	}
	c.JSON(http.StatusOK, resp)
}

type verifyRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
}

// handleVerify runs a single standalone verification step, outside any
// pipeline escalation, for manual HITL review.
func (s *Server) handleVerify(v verify.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		res, err := v.Verify(c.Request.Context(), req.UserID, req.TransactionID)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type simulateRequest struct {
	Count int `json:"count"`
}

type simulateResponse struct {
	Requested int                `json:"requested"`
	Processed int                `json:"processed"`
	Rejected  int                `json:"rejected"`
	Approved  int                `json:"approved"`
	Blocked   int                `json:"blocked"`
	Escalated int                `json:"escalated"`
	ElapsedMs int64              `json:"elapsed_ms"`
	Outcomes  []pipeline.Outcome `json:"outcomes"`
}

const maxSimulateBatch = 500

func (s *Server) handleSimulateBatch(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Count <= 0 {
		req.Count = 10
	}
	if req.Count > maxSimulateBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count exceeds batch limit"})
		return
	}

	start := time.Now()
	resp := simulateResponse{Requested: req.Count, Outcomes: make([]pipeline.Outcome, 0, req.Count)}
	for _, tx := range s.generator.Batch(req.Count) {
		st, err := s.orchestrator.Process(c.Request.Context(), tx)
		if err != nil {
			resp.Rejected++
			continue
		}
		resp.Processed++
		switch {
		case st.Outcome.Approved:
			resp.Approved++
		case st.Outcome.Blocked:
			resp.Blocked++
		}
		if st.Escalated {
			resp.Escalated++
		}
		resp.Outcomes = append(resp.Outcomes, st.Outcome)
	}
	resp.ElapsedMs = time.Since(start).Milliseconds()
	log.Info().
		Int("processed", resp.Processed).
		Int("approved", resp.Approved).
		Int("blocked", resp.Blocked).
		Msg("server: simulation batch complete")
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.events.Entries()})
}

func (s *Server) handleEventsByTx(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.events.Query(c.Param("transaction_id"))})
}

// moduleDescriptor describes one subsystem for the capability listing.
type moduleDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleModules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modules": []moduleDescriptor{
		{Name: "graph", Description: "in-memory transfer graph with mule pattern detection"},
		{Name: "memory", Description: "persistent suspicious-account reputation with score decay floor"},
		{Name: "signals", Description: "device and behavioral signal evaluation"},
		{Name: "classify", Description: "weighted risk tier classification"},
		{Name: "pipeline", Description: "fan-out orchestration with verification escalation"},
		{Name: "verify", Description: "facial and voice verification simulation"},
		{Name: "reasoner", Description: "outcome explanation with deterministic rule fallback"},
		{Name: "eventlog", Description: "append-only outcome log with live subscriptions"},
		{Name: "simulator", Description: "transaction generator, " + simulator.Describe()},
	}})
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.health.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status != observability.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
