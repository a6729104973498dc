// Package server exposes the HTTP API: transaction analysis, graph
// inspection, verification simulation, batch simulation, health, metrics
// and a WebSocket event stream.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/trustflow/trustflow/internal/config"
	"github.com/trustflow/trustflow/internal/eventlog"
	"github.com/trustflow/trustflow/internal/graph"
	"github.com/trustflow/trustflow/internal/memory"
	"github.com/trustflow/trustflow/internal/observability"
	"github.com/trustflow/trustflow/internal/pipeline"
	"github.com/trustflow/trustflow/internal/simulator"
	"github.com/trustflow/trustflow/internal/verify"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg          *config.Config
	orchestrator *pipeline.Orchestrator
	store        *graph.Store
	detector     *graph.Detector
	reputation   *memory.FileStore
	events       *eventlog.Log
	facial       verify.Verifier
	voice        verify.Verifier
	generator    *simulator.Generator
	health       *observability.HealthMonitor
	exporter     *observability.PrometheusExporter

	router  *gin.Engine
	httpSrv *http.Server
}

// Options carries the wired components for a Server.
type Options struct {
	Config       *config.Config
	Orchestrator *pipeline.Orchestrator
	Store        *graph.Store
	Detector     *graph.Detector
	Reputation   *memory.FileStore
	Events       *eventlog.Log
	Facial       verify.Verifier
	Voice        verify.Verifier
	Generator    *simulator.Generator
	Health       *observability.HealthMonitor
	Metrics      *observability.Registry
}

// New builds the server and registers all routes.
func New(opts Options) *Server {
	s := &Server{
		cfg:          opts.Config,
		orchestrator: opts.Orchestrator,
		store:        opts.Store,
		detector:     opts.Detector,
		reputation:   opts.Reputation,
		events:       opts.Events,
		facial:       opts.Facial,
		voice:        opts.Voice,
		generator:    opts.Generator,
		health:       opts.Health,
	}
	if opts.Metrics != nil {
		s.exporter = observability.NewPrometheusExporter(opts.Metrics)
	}

	if s.cfg.General.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.POST("/analyze", s.handleAnalyze)
	r.GET("/graph/info", s.handleGraphInfo)
	r.GET("/graph/stats", s.handleGraphStats)
	r.GET("/graph/account/:id", s.handleAccount)
	r.POST("/verify/facial", s.handleVerify(s.facial))
	r.POST("/verify/voice", s.handleVerify(s.voice))
	r.POST("/simulate/batch", s.handleSimulateBatch)
	r.GET("/events", s.handleEvents)
	r.GET("/events/:transaction_id", s.handleEventsByTx)
	r.GET("/ws/events", s.handleEventStream)
	r.GET("/modules", s.handleModules)
	r.GET("/health", s.handleHealth)
	if s.exporter != nil {
		r.GET("/metrics", gin.WrapH(s.exporter))
	}

	s.router = r
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Router exposes the gin engine, for tests.
func (s *Server) Router() http.Handler { return s.router }

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	log.Info().Str("addr", s.httpSrv.Addr).Msg("server: listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("server: request")
	}
}
