package worker

import (
	"context"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"user-ingest/internal/metrics"
)

type HandlerFunc func(ctx context.Context, d amqp.Delivery)

// WorkerPool drains one delivery channel with a fixed number of goroutines.
// Each goroutine handles a single delivery at a time.
type WorkerPool struct {
	log     *zap.Logger
	workers int
	handle  HandlerFunc

	wg   sync.WaitGroup
	done chan struct{}
}

func NewWorkerPool(log *zap.Logger, workerCount int, handle HandlerFunc) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		log:     log,
		workers: workerCount,
		handle:  handle,
		done:    make(chan struct{}),
	}
}

// Start launches the workers. They stop when ctx is cancelled or msgs is
// closed; Done is closed once all of them have returned.
func (wp *WorkerPool) Start(ctx context.Context, msgs <-chan amqp.Delivery) {
	wp.log.Info("Starting worker pool", zap.Int("workers", wp.workers))

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.run(ctx, i, msgs)
	}

	go func() {
		wp.wg.Wait()
		close(wp.done)
	}()
}

func (wp *WorkerPool) run(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer wp.wg.Done()

	metrics.WorkerActive.Inc()
	defer metrics.WorkerActive.Dec()

	for {
		select {
		case <-ctx.Done():
			wp.log.Debug("Worker stopping", zap.Int("worker_id", id))
			return
		case msg, ok := <-msgs:
			if !ok {
				wp.log.Debug("Delivery channel closed", zap.Int("worker_id", id))
				return
			}
			wp.handle(ctx, msg)
		}
	}
}

func (wp *WorkerPool) Done() <-chan struct{} {
	return wp.done
}

func (wp *WorkerPool) Wait() {
	<-wp.done
}

func (wp *WorkerPool) Workers() int {
	return wp.workers
}
