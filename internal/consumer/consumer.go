// internal/consumer/consumer.go
package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"user-ingest/internal/worker"
)

var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Channel is the subset of *amqp.Channel a consumer needs.
type Channel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	Close() error
}

// Consumer holds the subscription and the pool draining it.
type Consumer struct {
	log         *zap.Logger
	QueueName   string
	ConsumerTag string
	Channel     Channel
	Pool        *worker.WorkerPool
}

func NewConsumer(log *zap.Logger, ch Channel, queueName, consumerTag string, pool *worker.WorkerPool) *Consumer {
	return &Consumer{
		log:         log,
		QueueName:   queueName,
		ConsumerTag: consumerTag,
		Channel:     ch,
		Pool:        pool,
	}
}

// Run subscribes to the queue and blocks until ctx is cancelled or the broker
// closes the delivery channel. On cancellation the subscription is cancelled;
// messages still being handled are not waited for.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.Channel.Consume(
		c.QueueName,
		c.ConsumerTag,
		false, // autoAck: false to settle manually
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("queue %s: failed to start consuming: %w", c.QueueName, err)
	}

	c.Pool.Start(ctx, msgs)
	c.log.Info("Listening for messages", zap.String("queue", c.QueueName), zap.String("consumer_tag", c.ConsumerTag))

	select {
	case <-ctx.Done():
		c.log.Info("Stopping consumer", zap.String("queue", c.QueueName))
		if err := c.Channel.Cancel(c.ConsumerTag, false); err != nil {
			c.log.Warn("Failed to cancel consumer", zap.Error(err))
		}
		return nil
	case <-c.Pool.Done():
		return fmt.Errorf("queue %s: %w", c.QueueName, ErrDeliveriesClosed)
	}
}

// Close releases the channel.
func (c *Consumer) Close() error {
	if err := c.Channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	c.log.Info("Stopped consumer", zap.String("queue", c.QueueName))
	return nil
}
