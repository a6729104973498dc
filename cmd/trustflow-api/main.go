package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/trustflow/trustflow/internal/classify"
	"github.com/trustflow/trustflow/internal/config"
	"github.com/trustflow/trustflow/internal/eventlog"
	"github.com/trustflow/trustflow/internal/graph"
	"github.com/trustflow/trustflow/internal/memory"
	"github.com/trustflow/trustflow/internal/mule"
	"github.com/trustflow/trustflow/internal/observability"
	"github.com/trustflow/trustflow/internal/pipeline"
	"github.com/trustflow/trustflow/internal/reasoner"
	"github.com/trustflow/trustflow/internal/server"
	"github.com/trustflow/trustflow/internal/simulator"
	"github.com/trustflow/trustflow/internal/verify"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	log.Logger = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "trustflow-api").
		Logger()

	log.Info().Msg("========================================")
	log.Info().Msg("TrustFlow Risk Orchestrator - Starting")
	log.Info().Msg("========================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyLogConfig(cfg)

	log.Info().
		Str("instance_id", cfg.General.InstanceID).
		Str("environment", cfg.General.Environment).
		Str("addr", cfg.Server.Addr).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	// Account graph: restore the last snapshot, then seed the demo
	// topology when the graph is empty and seeding is enabled.
	store := graph.NewStore()
	if err := store.LoadSnapshot(cfg.Graph.SnapshotPath); err != nil {
		log.Warn().Err(err).Msg("Graph snapshot unreadable, starting empty")
	}
	if cfg.Graph.SeedDemo {
		store.SeedDemo()
	}
	log.Info().
		Int64("nodes", store.Stats().NodeCount).
		Int64("edges", store.Stats().EdgeCount).
		Msg("Account graph ready")

	snapshotStop := make(chan struct{})
	go store.SnapshotLoop(cfg.Graph.SnapshotPath,
		time.Duration(cfg.Graph.SnapshotIntervalS)*time.Second, snapshotStop)

	reputation := memory.Open(cfg.Memory.Path)
	log.Info().Int("known_accounts", reputation.Len()).Msg("Reputation memory loaded")

	detector := graph.NewDetector(store)
	muleSvc := mule.NewService(store, detector, reputation, cfg.Memory.SuspicionThreshold)

	classifier := classify.New(classify.DefaultWeights(), classify.Thresholds{
		Fraud:         cfg.Risk.FraudThreshold,
		PossibleFraud: cfg.Risk.PossibleFraudThreshold,
		HighAmount:    decimalFromFloat(cfg.Risk.HighAmountUSD),
		MediumAmount:  decimalFromFloat(cfg.Risk.MediumAmountUSD),
	})

	facial := verify.NewFacialVerifier(cfg.Verification.FacialThreshold)
	voice := verify.NewVoiceVerifier()

	var explain reasoner.Reasoner = reasoner.NewRuleReasoner()
	if cfg.Reasoner.Remote && cfg.Reasoner.Endpoint != "" {
		explain = reasoner.NewRemoteReasoner(cfg.Reasoner.Endpoint,
			time.Duration(cfg.Reasoner.TimeoutMs)*time.Millisecond)
		log.Info().Str("endpoint", cfg.Reasoner.Endpoint).Msg("Remote reasoner enabled")
	}

	events, err := eventlog.Open(cfg.EventLog.Path, cfg.EventLog.BufferSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open event log")
	}
	defer events.Close()

	registry := observability.NewRegistry()
	registry.GaugeFunc("trustflow_graph_nodes", "Accounts in the transfer graph",
		func() float64 { return float64(store.Stats().NodeCount) })
	registry.GaugeFunc("trustflow_graph_edges", "Edges in the transfer graph",
		func() float64 { return float64(store.Stats().EdgeCount) })
	registry.GaugeFunc("trustflow_suspicious_accounts", "Accounts in reputation memory",
		func() float64 { return float64(reputation.Len()) })
	registry.GaugeFunc("trustflow_eventlog_entries", "Buffered outcome records",
		func() float64 { return float64(events.Len()) })
	registry.GaugeFunc("trustflow_eventlog_write_failures", "Outcome records that could not be persisted",
		func() float64 { return float64(events.Failures()) })
	registry.GaugeFunc("trustflow_memory_write_failures", "Reputation updates that could not be persisted",
		func() float64 { return float64(reputation.WriteFailures()) })

	orchestrator := pipeline.New(pipeline.Options{
		MuleService:     muleSvc,
		Classifier:      classifier,
		Facial:          facial,
		Voice:           voice,
		Reasoner:        explain,
		Events:          events,
		VerifyTimeout:   time.Duration(cfg.Verification.TimeoutMs) * time.Millisecond,
		ReasonerTimeout: time.Duration(cfg.Reasoner.TimeoutMs) * time.Millisecond,
		Metrics:         registry,
	})

	health := observability.NewHealthMonitor()
	registerHealthChecks(health, store, reputation, events)

	srv := server.New(server.Options{
		Config:       cfg,
		Orchestrator: orchestrator,
		Store:        store,
		Detector:     detector,
		Reputation:   reputation,
		Events:       events,
		Facial:       facial,
		Voice:        voice,
		Generator:    simulator.New(time.Now().UnixNano()),
		Health:       health,
		Metrics:      registry,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server failed")
		}
		cancel()
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	close(snapshotStop)
	// Give the snapshot loop a moment to write the final snapshot.
	time.Sleep(200 * time.Millisecond)

	log.Info().Msg("TrustFlow Risk Orchestrator - Shutdown complete")
}

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func applyLogConfig(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.General.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.General.LogFormat == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

func registerHealthChecks(m *observability.HealthMonitor, store *graph.Store,
	reputation *memory.FileStore, events *eventlog.Log) {

	m.Register("graph", func(ctx context.Context) observability.ComponentHealth {
		stats := store.Stats()
		return observability.ComponentHealth{
			Status: observability.StatusHealthy,
			Details: map[string]any{
				"nodes": stats.NodeCount, "edges": stats.EdgeCount,
				"transfers": stats.TransferCount,
			},
		}
	})
	m.Register("memory", func(ctx context.Context) observability.ComponentHealth {
		status := observability.StatusHealthy
		msg := ""
		if reputation.WriteFailures() > 0 {
			status = observability.StatusDegraded
			msg = "reputation writes are failing"
		}
		return observability.ComponentHealth{
			Status:  status,
			Message: msg,
			Details: map[string]any{"accounts": reputation.Len(), "write_failures": reputation.WriteFailures()},
		}
	})
	m.Register("eventlog", func(ctx context.Context) observability.ComponentHealth {
		status := observability.StatusHealthy
		msg := ""
		if events.Failures() > 0 {
			status = observability.StatusDegraded
			msg = "event log writes are failing"
		}
		return observability.ComponentHealth{
			Status:  status,
			Message: msg,
			Details: map[string]any{"entries": events.Len(), "write_failures": events.Failures()},
		}
	})
}
