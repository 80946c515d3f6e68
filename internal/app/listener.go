package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"user-ingest/internal/apperrors"
	"user-ingest/internal/config"
	"user-ingest/internal/consumer"
	"user-ingest/internal/ingest"
	"user-ingest/internal/messaging"
	"user-ingest/internal/metrics"
	"user-ingest/internal/storage"
	"user-ingest/internal/worker"
)

// Listener owns the broker subscription, the store pool and the optional
// metrics endpoint of the ingestion process.
type Listener struct {
	Cfg           *config.Config
	Log           *zap.Logger
	Storage       *storage.Storage
	Rabbit        *messaging.RabbitClient
	Consumer      *consumer.Consumer
	MetricsServer *http.Server
}

// NewListener refuses to start without a broker credential reference, before
// anything is dialed.
func NewListener(cfg *config.Config, log *zap.Logger) (*Listener, error) {
	if err := cfg.ValidateListener(); err != nil {
		return nil, err
	}

	db, err := initStorage(log, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	rabbit, err := messaging.NewRabbitClient(log.Named("rabbit"), cfg.RabbitMQ.URL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("RabbitMQ connected")

	if err := initQueue(rabbit, cfg); err != nil {
		_ = rabbit.Close()
		_ = db.Close()
		return nil, err
	}

	handler := ingest.NewHandler(log.Named("ingest"), db, cfg.Database.QueryTimeout)
	pool := worker.NewWorkerPool(log.Named("worker"), cfg.Workers, func(ctx context.Context, d amqp.Delivery) {
		handler.Handle(ctx, d)
	})
	cons := consumer.NewConsumer(log.Named("consumer"), rabbit.GetChannel(), cfg.RabbitMQ.Queue, cfg.RabbitMQ.ConsumerTag, pool)

	l := &Listener{
		Cfg:      cfg,
		Log:      log,
		Storage:  db,
		Rabbit:   rabbit,
		Consumer: cons,
	}

	if cfg.Metrics.Port > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		l.MetricsServer = &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return l, nil
}

func initQueue(rabbit *messaging.RabbitClient, cfg *config.Config) error {
	if err := rabbit.SetPrefetch(cfg.RabbitMQ.Prefetch); err != nil {
		return err
	}
	if cfg.RabbitMQ.DeclareQueue {
		if err := rabbit.DeclareQueue(cfg.RabbitMQ.Queue); err != nil {
			return err
		}
	}
	return nil
}

// Run blocks in the receive loop until ctx is cancelled or the broker drops
// the subscription.
func (l *Listener) Run(ctx context.Context) error {
	if l.MetricsServer != nil {
		go func() {
			l.Log.Info("Serving metrics", zap.String("addr", l.MetricsServer.Addr))
			if err := l.MetricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Log.Error("Metrics server error", zap.Error(err))
			}
		}()

		go l.pollQueueDepth(ctx)
	}

	return l.Consumer.Run(ctx)
}

func (l *Listener) pollQueueDepth(ctx context.Context) {
	rate := l.Cfg.Metrics.QueuePollRate
	if rate <= 0 {
		return
	}

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Rabbit.UpdateQueueDepth(l.Cfg.RabbitMQ.Queue)
		}
	}
}

func (l *Listener) Shutdown() error {
	err := apperrors.ErrShutdown

	if cErr := l.Consumer.Close(); cErr != nil {
		err = fmt.Errorf("%w, failed to close consumer: %w", err, cErr)
	}

	if rErr := l.Rabbit.Close(); rErr != nil {
		err = fmt.Errorf("%w, failed to close rabbit: %w", err, rErr)
	}
	l.Log.Debug("RabbitMQ closed")

	if l.MetricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), l.Cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if sErr := l.MetricsServer.Shutdown(ctx); sErr != nil {
			err = fmt.Errorf("%w, failed to shutdown metrics server: %w", err, sErr)
		}
	}

	if dbErr := l.Storage.Close(); dbErr != nil {
		err = fmt.Errorf("%w, failed to close database: %w", err, dbErr)
	}
	l.Log.Debug("Database closed")

	if err != apperrors.ErrShutdown {
		return err
	}
	return nil
}
