// internal/messaging/rabbit.go
package messaging

import (
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"user-ingest/internal/metrics"
)

type RabbitClient struct {
	log     *zap.Logger
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitClient(log *zap.Logger, url string) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	return &RabbitClient{
		log:     log,
		conn:    conn,
		channel: ch,
	}, nil
}

func (r *RabbitClient) GetChannel() *amqp.Channel {
	return r.channel
}

// SetPrefetch bounds the number of unsettled deliveries the broker pushes to
// this channel.
func (r *RabbitClient) SetPrefetch(count int) error {
	if err := r.channel.Qos(count, 0, false); err != nil {
		return fmt.Errorf("set prefetch %d: %w", count, err)
	}
	return nil
}

// DeclareQueue creates the durable subscription queue if it does not exist.
func (r *RabbitClient) DeclareQueue(queueName string) error {
	_, err := r.channel.QueueDeclare(
		queueName,
		true, false, false, false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	r.log.Info("Queue declared", zap.String("queue", queueName))
	return nil
}

// Publish sends a JSON message to queueName through the default exchange.
func (r *RabbitClient) Publish(queueName string, body []byte) error {
	err := r.channel.Publish(
		"",        // default exchange
		queueName, // routing key (queue name)
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queueName, err)
	}
	return nil
}

// Close cleans up connection and channel
func (r *RabbitClient) Close() error {
	if err := r.channel.Close(); err != nil && err != amqp.ErrClosed {
		return err
	}
	if err := r.conn.Close(); err != nil && err != amqp.ErrClosed {
		return err
	}
	return nil
}

// UpdateQueueDepth inspects the queue on a throwaway channel, since a failed
// passive declare closes the channel it was issued on.
func (r *RabbitClient) UpdateQueueDepth(queueName string) {
	ch, err := r.conn.Channel()
	if err != nil {
		r.log.Warn("Failed to open inspection channel", zap.Error(err))
		return
	}
	defer ch.Close()

	q, err := ch.QueueInspect(queueName)
	if err != nil {
		r.log.Warn("Failed to inspect queue", zap.String("queue", queueName), zap.Error(err))
		return
	}

	metrics.QueueDepth.WithLabelValues(queueName).Set(float64(q.Messages))
}
