package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"user-ingest/internal/app"
	"user-ingest/internal/config"
	"user-ingest/internal/metrics"
	"user-ingest/pkg/logger"
)

// @title User Ingest API
// @version 1.0
// @description Read API over the records written by the ingestion listener
// @host localhost:8080
// @BasePath /
// @schemes http

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoadConfig(config.FetchConfigPath())

	log := logger.MustSetupLogger(loggerConfig(cfg))
	if dump, err := cfg.Dump(); err == nil {
		log.Debug("Configuration loaded\n" + dump)
	}

	metrics.Init()

	server := app.MustNewAPIServer(cfg, log)

	errs := make(chan error, 1)

	defer func() {
		if err := server.Shutdown(); err != nil {
			log.Error("Failed to shutdown application", zap.Error(err))
		}

		log.Info("Application has shutdown")
		_ = log.Sync()
	}()

	go func() { errs <- server.Run() }()

	select {
	case err := <-errs:
		if err != nil {
			log.Error("Server error, shutting down...", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Received stop signal, shutting down...")
	}
}

func loggerConfig(cfg *config.Config) *logger.Config {
	return &logger.Config{
		Level:      cfg.Log.Level,
		FormatJSON: cfg.Log.FormatJSON,
		Rotation: logger.Rotation{
			File:       cfg.Log.Rotation.File,
			MaxSize:    cfg.Log.Rotation.MaxSize,
			MaxBackups: cfg.Log.Rotation.MaxBackups,
			MaxAge:     cfg.Log.Rotation.MaxAge,
		},
	}
}
