package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	accessmanager "github.com/magabrotheeeer/group-access/internal/app/access-manager"
	"github.com/magabrotheeeer/group-access/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting access manager", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := accessmanager.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize access manager app", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("access manager app stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("access manager app stopped gracefully")
}
