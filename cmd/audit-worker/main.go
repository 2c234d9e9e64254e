// Command audit-worker consumes preferences.updated events and appends
// them to the audit log.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/iliyamo/calendar-preferences/internal/config"
	"github.com/iliyamo/calendar-preferences/internal/queue"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := config.ParseAudit(env.Options{})
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("audit worker starting", "queue", cfg.Queue.Name, "dir", cfg.LogDir)
	err = queue.NewAuditConsumer(cfg.Queue.URL, cfg.Queue.Name, cfg.LogDir, logger).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("audit worker stopped", "error", err)
		os.Exit(1)
	}
}
