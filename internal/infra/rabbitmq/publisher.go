package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher implements gateway.MessagePublisher on an AMQP channel.
type Publisher struct {
	channel *amqp.Channel
	log     zerolog.Logger
}

func NewPublisher(ch *amqp.Channel, log zerolog.Logger) *Publisher {
	return &Publisher{channel: ch, log: log}
}

func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	bytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        bytes,
			// Survives a broker restart.
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.log.Debug().Str("exchange", exchange).Str("routing_key", routingKey).Msg("message published")
	return nil
}

// DeclareTopology declares a durable topic exchange, a durable queue
// and their binding. Declarations are idempotent, so every service
// declares what it uses at startup.
func DeclareTopology(ch *amqp.Channel, exchange, queue, binding string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	if queue == "" {
		return nil
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := ch.QueueBind(q.Name, binding, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, exchange, err)
	}
	return nil
}
