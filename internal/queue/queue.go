package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/postersnap/postersnap/internal/config"
	"github.com/postersnap/postersnap/internal/logging"
)

const posterQueue = "poster_jobs"

// jobMessage is the wire format for a queued generation job. The payload is
// just the poster id; workers load the full record from the store so the
// queue never carries stale parameters.
type jobMessage struct {
	PosterID string `json:"poster_id"`
}

// Queue wraps an AMQP connection used to hand generation jobs to workers
// running in separate processes.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logging.Logger
}

// New creates a new queue connection and declares the job queue.
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		posterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// One unacked job per worker keeps long renders from starving peers
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Queue{conn: conn, channel: channel, logger: logger}, nil
}

// Close closes the channel and connection.
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// Dispatch publishes a generation job for the given poster.
func (q *Queue) Dispatch(ctx context.Context, posterID string) error {
	body, err := json.Marshal(jobMessage{PosterID: posterID})
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		"",          // default exchange
		posterQueue, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	q.logger.WithPosterID(posterID).Debug("Job published")
	return nil
}

// Consume delivers queued jobs to handler until ctx is cancelled. A handler
// error nacks the message without requeue; job state is already recorded in
// the store, so redelivery would only repeat a failed run.
func (q *Queue) Consume(ctx context.Context, handler func(ctx context.Context, posterID string) error) error {
	deliveries, err := q.channel.Consume(
		posterQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			var msg jobMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				q.logger.ErrorWithErr("Discarding malformed job message", err)
				_ = delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, msg.PosterID); err != nil {
				q.logger.WithPosterID(msg.PosterID).ErrorWithErr("Job handler failed", err)
				_ = delivery.Nack(false, false)
				continue
			}

			_ = delivery.Ack(false)
		}
	}
}
