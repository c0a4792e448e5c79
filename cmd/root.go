// Package cmd implements the kona command line interface. Each subcommand
// lives in its own file and registers itself in init; main.go only calls
// Execute.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kona-ai/kona/internal/config"
	"github.com/kona-ai/kona/internal/log"
	"github.com/kona-ai/kona/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "kona",
	Short: "kona - team knowledge base with grounded Q&A",
	Long: `kona ingests documents into a deduplicated knowledge corpus and
answers questions grounded in the retrieved content.

Start by importing a directory of documentation:

  kona ingest ./docs

Then ask questions against the corpus:

  kona ask "how do I request production access?"`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration, builds the logger and wires the service.
// Every subcommand that touches the corpus goes through here so the
// startup sequence stays in one place. Overrides run after Load and
// before wiring, letting commands apply their flag values.
func setup(ctx context.Context, overrides ...func(*config.Config)) (*service.Service, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	svc, cleanup, err := service.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return svc, cfg, cleanup, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
