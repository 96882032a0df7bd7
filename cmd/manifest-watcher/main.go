package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"manifests/internal/config"
	"manifests/internal/listener"
	"manifests/internal/pdftext"
	"manifests/internal/pipeline"
	"manifests/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(config.InitLogger(cfg.LogLevel, cfg.LogFormat))
	defer func() { _ = zap.L().Sync() }()

	must(cfg.Require("INBOX_DIR", cfg.InboxDir))
	must(listener.EnsureInbox(cfg.InboxDir))

	r, err := cfg.Rules()
	must(err)
	p, err := pipeline.New(r)
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc, err := listener.NewService(db, cfg, p, pdftext.New())
	must(err)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	zap.L().Info("watching inbox", zap.String("dir", cfg.InboxDir), zap.Int("interval_sec", cfg.WatchIntervalSec))
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
