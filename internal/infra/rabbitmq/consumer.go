package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Handler processes one delivery. A nil return acknowledges the
// message; an infrastructure error nacks it back onto the queue for
// redelivery; an error wrapped with Permanent drops it.
type Handler func(ctx context.Context, body []byte) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable: redelivering the same
// bytes can never succeed (malformed payload, unknown message type,
// protocol integrity fault).
func Permanent(err error) error {
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Consumer pulls deliveries from one queue with a prefetch of 1 and
// manual acknowledgment, the unit-of-work discipline the saga relies
// on for at-least-once processing.
type Consumer struct {
	channel *amqp.Channel
	queue   string
	tag     string
	log     zerolog.Logger
}

func NewConsumer(ch *amqp.Channel, queue, tag string, log zerolog.Logger) (*Consumer, error) {
	// One unacked message at a time; the broker waits for the ack
	// before sending the next.
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("configure QoS: %w", err)
	}
	return &Consumer{channel: ch, queue: queue, tag: tag, log: log}, nil
}

// Run consumes until the context is canceled or the channel closes.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	deliveries, err := c.channel.Consume(
		c.queue,
		c.tag,
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", c.queue, err)
	}

	notifyClose := make(chan *amqp.Error, 1)
	c.channel.NotifyClose(notifyClose)

	c.log.Info().Str("queue", c.queue).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-notifyClose:
			if amqpErr != nil {
				return fmt.Errorf("channel closed: %w", amqpErr)
			}
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, delivery, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery, handler Handler) {
	err := handler(ctx, delivery.Body)
	switch {
	case err == nil:
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.log.Error().Err(ackErr).Str("queue", c.queue).Msg("failed to ack delivery")
		}
	case IsPermanent(err):
		c.log.Error().Err(err).Str("queue", c.queue).Msg("dropping undeliverable message")
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.log.Error().Err(nackErr).Str("queue", c.queue).Msg("failed to nack delivery")
		}
	default:
		// Infrastructure failure: requeue so the operation is retried
		// idempotently.
		c.log.Warn().Err(err).Str("queue", c.queue).Msg("requeueing delivery after handler failure")
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.log.Error().Err(nackErr).Str("queue", c.queue).Msg("failed to nack delivery")
		}
	}
}
