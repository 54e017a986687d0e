package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	internal "github.com/ZanzyTHEbar/third-eye/thirdeye"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          internal.DefaultAppName,
		Short:        "Run interpreter, skeptic and observer dialogues over seed texts and measure where they land",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.yaml, ./configs/config.yaml or the user config dir)")

	root.AddCommand(
		newRunCmd(&configPath),
		newValidateCmd(&configPath),
		newReportCmd(),
	)
	return root
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration without calling any backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: %d rounds over seeds %s\n",
				cfg.Experiment.Rounds, strings.Join(cfg.SeedIDs(), ", "))
			return nil
		},
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Str("app", internal.DefaultAppName).Logger()
}
