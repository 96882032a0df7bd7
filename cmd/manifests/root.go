package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"manifests/internal/config"
	"manifests/internal/pipeline"
	"manifests/internal/rules"
	"manifests/internal/storage"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "manifests",
	Short: "Digitize freight manifest PDFs into a billing workbook",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadRules() (rules.Rules, *pipeline.Pipeline, error) {
	r, err := cfg.Rules()
	if err != nil {
		return rules.Rules{}, nil, err
	}
	p, err := pipeline.New(r)
	if err != nil {
		return rules.Rules{}, nil, err
	}
	return r, p, nil
}

func openDB() (*storage.DB, error) {
	if err := cfg.Require("DB_PATH", cfg.DBPath); err != nil {
		return nil, err
	}
	return storage.Open(cfg.DBPath)
}
