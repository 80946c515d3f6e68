package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"user-ingest/internal/api"
	"user-ingest/internal/apperrors"
	"user-ingest/internal/auth"
	"user-ingest/internal/config"
	"user-ingest/internal/storage"
)

// APIServer owns everything the HTTP service needs for its lifetime.
type APIServer struct {
	Cfg        *config.Config
	Log        *zap.Logger
	Storage    *storage.Storage
	HTTPServer *http.Server
}

func NewAPIServer(cfg *config.Config, log *zap.Logger) (*APIServer, error) {
	if err := cfg.ValidateAPI(); err != nil {
		return nil, err
	}

	db, err := initStorage(log, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	authn := auth.New(cfg.Auth.JWTSecret)
	if authn != nil {
		log.Info("Bearer token auth enabled for /data")
	}

	handler := api.NewAPI(log.Named("api"), db, authn, cfg.Database.QueryTimeout)

	return &APIServer{
		Cfg:     cfg,
		Log:     log,
		Storage: db,
		HTTPServer: &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
			Handler:           handler.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func MustNewAPIServer(cfg *config.Config, log *zap.Logger) *APIServer {
	s, err := NewAPIServer(cfg, log)
	if err != nil {
		panic(err)
	}
	return s
}

// Run serves until the listener fails. http.ErrServerClosed is not an error.
func (s *APIServer) Run() error {
	s.Log.Info("Starting API server", zap.String("addr", s.HTTPServer.Addr))
	if err := s.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *APIServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.Cfg.HTTP.ShutdownTimeout)
	defer cancel()

	err := apperrors.ErrShutdown

	if srvErr := s.HTTPServer.Shutdown(ctx); srvErr != nil {
		err = fmt.Errorf("%w, failed to shutdown http server: %w", err, srvErr)
	}
	s.Log.Debug("Http server shutdown")

	if dbErr := s.Storage.Close(); dbErr != nil {
		err = fmt.Errorf("%w, failed to close database: %w", err, dbErr)
	}
	s.Log.Debug("Database closed")

	if err != apperrors.ErrShutdown {
		return err
	}
	return nil
}
