// trustflow-sim replays a batch of generated transactions through an
// in-process pipeline and prints the outcome distribution. Useful for
// exercising the scoring stack without a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trustflow/trustflow/internal/classify"
	"github.com/trustflow/trustflow/internal/eventlog"
	"github.com/trustflow/trustflow/internal/graph"
	"github.com/trustflow/trustflow/internal/memory"
	"github.com/trustflow/trustflow/internal/mule"
	"github.com/trustflow/trustflow/internal/pipeline"
	"github.com/trustflow/trustflow/internal/reasoner"
	"github.com/trustflow/trustflow/internal/simulator"
	"github.com/trustflow/trustflow/internal/verify"
)

func main() {
	count := flag.Int("n", 50, "number of transactions to simulate")
	seed := flag.Int64("seed", 42, "generator seed")
	verbose := flag.Bool("v", false, "log every transaction")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().
		Str("service", "trustflow-sim").
		Logger()
	if !*verbose {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	// Replay state is ephemeral.
	workDir, err := os.MkdirTemp("", "trustflow-sim-")
	if err != nil {
		log.Fatal().Err(err).Msg("temp dir failed")
	}
	defer os.RemoveAll(workDir)

	store := graph.NewStore()
	store.SeedDemo()
	reputation := memory.Open(filepath.Join(workDir, "suspicious_accounts.json"))
	muleSvc := mule.NewService(store, graph.NewDetector(store), reputation, mule.DefaultSuspicionThreshold)

	events, err := eventlog.Open(filepath.Join(workDir, "outcomes.jsonl"), 4096)
	if err != nil {
		log.Fatal().Err(err).Msg("event log open failed")
	}
	defer events.Close()

	orch := pipeline.New(pipeline.Options{
		MuleService: muleSvc,
		Classifier:  classify.NewDefault(),
		Facial:      verify.NewFacialVerifier(0),
		Voice:       verify.NewVoiceVerifier(),
		Reasoner:    reasoner.NewRuleReasoner(),
		Events:      events,
	})

	gen := simulator.New(*seed)
	ctx := context.Background()

	var approved, blocked, escalated int
	start := time.Now()
	for i := 0; i < *count; i++ {
		st, err := orch.Process(ctx, gen.Generate())
		if err != nil {
			log.Warn().Err(err).Msg("transaction rejected")
			continue
		}
		if st.Outcome.Approved {
			approved++
		}
		if st.Outcome.Blocked {
			blocked++
		}
		if st.Escalated {
			escalated++
		}
		if *verbose {
			fmt.Printf("%-14s %-16s %.3f %s\n",
				st.Transaction.ID, st.Outcome.Tier, st.Outcome.RiskScore, st.Outcome.Explanation)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("\nProcessed %d transactions in %s\n", *count, elapsed.Round(time.Millisecond))
	fmt.Printf("  approved:  %d\n", approved)
	fmt.Printf("  blocked:   %d\n", blocked)
	fmt.Printf("  escalated: %d\n", escalated)
	stats := store.Stats()
	fmt.Printf("  graph: %d nodes, %d edges, %d transfers\n",
		stats.NodeCount, stats.EdgeCount, stats.TransferCount)
	fmt.Printf("  suspicious accounts remembered: %d\n", reputation.Len())
}
