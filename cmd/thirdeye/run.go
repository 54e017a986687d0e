package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/analysis"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/config"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/dialogue"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness"
	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/generation/providers"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/results"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/store"
)

type runFlags struct {
	rounds        int
	concurrency   int
	contextRounds int
	seeds         []string
	out           string
	closing       bool
}

func newRunCmd(configPath *string) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the experiment and write the results artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, flags)

			logger := newLogger(cfg.Log)
			if err := cfg.Validate(); err != nil {
				logger.Error().Err(err).Msg("Invalid configuration")
				return err
			}
			seeds, err := selectSeeds(cfg, flags.seeds)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runExperiment(ctx, cfg, seeds, logger)
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.rounds, "rounds", 0, "rounds per seed text")
	f.IntVar(&flags.concurrency, "concurrency", 0, "seed dialogues run in parallel")
	f.IntVar(&flags.contextRounds, "context-rounds", 0, "prior rounds shown verbatim, 0 for full history")
	f.StringSliceVar(&flags.seeds, "seeds", nil, "restrict the run to these seed ids")
	f.StringVar(&flags.out, "out", "", "artifact path")
	f.BoolVar(&flags.closing, "closing", false, "compare closing statements instead of last turns")
	return cmd
}

// applyRunFlags overrides configuration with the flags the user set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) {
	f := cmd.Flags()
	if f.Changed("rounds") {
		cfg.Experiment.Rounds = flags.rounds
	}
	if f.Changed("concurrency") {
		cfg.Experiment.Concurrency = flags.concurrency
	}
	if f.Changed("context-rounds") {
		cfg.Experiment.ContextRounds = flags.contextRounds
	}
	if f.Changed("out") {
		cfg.Output.Path = flags.out
	}
	if f.Changed("closing") {
		cfg.Experiment.ClosingStatements = flags.closing
	}
}

// selectSeeds returns the configured seeds in id order, restricted to ids
// when any are given.
func selectSeeds(cfg *config.Config, ids []string) ([]dialogue.SeedText, error) {
	if len(ids) == 0 {
		ids = cfg.SeedIDs()
	}
	seeds := make([]dialogue.SeedText, 0, len(ids))
	for _, id := range ids {
		content, ok := cfg.SeedTexts[id]
		if !ok {
			return nil, &config.ConfigurationError{Field: "seeds", Reason: fmt.Sprintf("unknown seed id %q", id)}
		}
		seeds = append(seeds, dialogue.SeedText{ID: id, Content: content})
	}
	return seeds, nil
}

func runExperiment(ctx context.Context, cfg *config.Config, seeds []dialogue.SeedText, logger zerolog.Logger) error {
	var db *sql.DB
	if cfg.Store.Enabled {
		var err error
		db, err = store.Open(ctx, cfg.Store.DSN, logger)
		if err != nil {
			return fmt.Errorf("failed to open transcript store: %w", err)
		}
		defer db.Close()
	}

	factory := harness.NewFactory(cfg, db, logger)
	httpClient := &http.Client{}
	client := factory.CreateClient(
		providers.NewAnthropicProvider(cfg.LLM, httpClient),
		providers.NewOpenAIEmbedder(cfg.Embedding, httpClient),
	)

	builder := dialogue.NewPromptBuilder(dialogue.ContextPolicy{
		Rounds:       cfg.Experiment.ContextRounds,
		SummaryChars: cfg.Experiment.SummaryChars,
	})
	executor := dialogue.NewRoundExecutor(client, builder, ports.Options{
		MaxNewTokens: cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
	}, nil)
	comparator := analysis.NewScopedComparator(
		func() analysis.Embedder { return client.Scoped() },
		analysis.NewThresholds(cfg.Thresholds),
	)

	orchestrator := dialogue.NewOrchestrator(executor, comparator, factory.CreateStore(), dialogue.Options{
		Rounds:            cfg.Experiment.Rounds,
		Concurrency:       cfg.Experiment.Concurrency,
		RoundAttempts:     cfg.Experiment.RoundAttempts,
		ClosingStatements: cfg.Experiment.ClosingStatements,
	}, logger)

	checkpointPath := ""
	if cfg.Output.Checkpoint {
		checkpointPath = cfg.CheckpointPath()
	}
	checkpoints := results.NewCheckpointer(results.NewAggregator(), checkpointPath, logger)
	orchestrator.OnOutcome = checkpoints.Record

	run, err := orchestrator.Run(ctx, seeds)
	if err != nil {
		return err
	}

	result, err := results.Aggregate(run.Outcomes)
	if err != nil {
		return err
	}
	if err := results.WriteArtifact(cfg.Output.Path, result); err != nil {
		return err
	}
	if checkpointPath != "" {
		if err := os.Remove(checkpointPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", checkpointPath).Msg("Failed to remove checkpoint")
		}
	}
	logger.Info().Str("path", cfg.Output.Path).Str("run_id", run.RunID).Msg("Results written")

	results.Summarize(result).Log(logger)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted, partial results written: %w", err)
	}
	return nil
}
