package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/swdee/go-reideval/config"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

func main() {

	rootCmd := &cobra.Command{
		Use:   "reideval",
		Short: "Retrieval diagnostics for person re-identification models",
		Long: `reideval ranks a gallery against every query using a ReID model's
features and reports CMC, mAP, the hardest correct and incorrect matches and
the positive/negative and same/different camera similarity distributions.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		evaluateCmd(),
		rankCmd(),
		compareCmd(),
		extractCmd(),
		historyCmd(),
		versionCmd(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config and applies the
// persistent flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {

	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)

	if err != nil {
		return nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	return cfg, nil
}

// newLogger builds the command logger, human readable on a console or one
// JSON object per line
func newLogger(cfg config.LogConfig) zerolog.Logger {

	level, err := zerolog.ParseLevel(cfg.Level)

	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger

	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger.Level(level).With().Timestamp().Logger()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "reideval", Version)
		},
	}
}
