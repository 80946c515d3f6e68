package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"user-ingest/internal/app"
	"user-ingest/internal/config"
	"user-ingest/internal/metrics"
	"user-ingest/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoadConfig(config.FetchConfigPath())

	log := logger.MustSetupLogger(&logger.Config{
		Level:      cfg.Log.Level,
		FormatJSON: cfg.Log.FormatJSON,
		Rotation: logger.Rotation{
			File:       cfg.Log.Rotation.File,
			MaxSize:    cfg.Log.Rotation.MaxSize,
			MaxBackups: cfg.Log.Rotation.MaxBackups,
			MaxAge:     cfg.Log.Rotation.MaxAge,
		},
	})
	defer func() { _ = log.Sync() }()

	if dump, err := cfg.Dump(); err == nil {
		log.Debug("Configuration loaded\n" + dump)
	}

	metrics.Init()

	listener, err := app.NewListener(cfg, log)
	if err != nil {
		log.Error("Failed to start listener", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	runErr := listener.Run(ctx)
	if runErr != nil {
		log.Error("Listener stopped", zap.Error(runErr))
	} else {
		log.Info("Streaming pull interrupted")
	}

	if err := listener.Shutdown(); err != nil {
		log.Error("Failed to shutdown listener", zap.Error(err))
	}
	log.Info("Listener has shutdown")

	if runErr != nil {
		_ = log.Sync()
		os.Exit(1)
	}
}
