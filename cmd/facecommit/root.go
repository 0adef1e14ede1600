package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/byosync/facecommit/pkg/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	configPath string
	verbose    bool

	cfg    config.Config
	logger *slog.Logger

	// closers run after the command, in order.
	closers []func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:          "facecommit",
	Short:        "Face biometric enrollment and verification with fuzzy commitments",
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cleanup()

		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load()

		lvl := new(slog.LevelVar)
		lvl.Set(slog.LevelInfo)
		if verbose {
			lvl.Set(slog.LevelDebug)
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: lvl,
		}))

		if configPath == "" {
			configPath = os.Getenv("FACECOMMIT_CONFIG")
		}

		var err error
		cfg, err = config.Load(configPath)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		cleanup()
	},
}

// cleanup runs the pending closers. It uses a fresh context because the
// command context may already be cancelled by Ctrl+C.
func cleanup() {
	for _, c := range closers {
		if err := c(context.Background()); err != nil {
			logger.Warn("close failed", "err", err)
		}
	}
	closers = nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	err := rootCmd.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (default: $FACECOMMIT_CONFIG or built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}
