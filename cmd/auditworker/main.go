package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Brankond/Momentum/internal/config"
	"github.com/Brankond/Momentum/internal/infra/mongodb"
	"github.com/Brankond/Momentum/internal/infra/rabbitmq"
	"github.com/Brankond/Momentum/internal/messaging"
	"github.com/Brankond/Momentum/internal/protocol"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create MongoDB client")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to disconnect MongoDB")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal().Err(err).Msg("MongoDB is not responding")
	}
	log.Info().Msg("connected to MongoDB")

	auditRepo := mongodb.NewAuditRepository(mongoClient, cfg.MongoDB)

	rabbitConn, err := amqp.DialConfig(cfg.RabbitURL, amqp.Config{
		Properties: amqp.Table{"connection_name": "auditworker"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rabbitConn.Close()
	log.Info().Msg("connected to RabbitMQ")

	channel, err := rabbitConn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open channel")
	}
	defer channel.Close()

	if err := rabbitmq.DeclareTopology(channel, messaging.TransferEventExchange, messaging.AuditQueue, messaging.TransferEventBinding); err != nil {
		log.Fatal().Err(err).Msg("failed to declare audit topology")
	}

	consumer, err := rabbitmq.NewConsumer(channel, messaging.AuditQueue, "auditworker", log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create audit consumer")
	}

	handler := func(ctx context.Context, body []byte) error {
		env, payload, err := protocol.DecodeTransferEvent(body)
		if err != nil {
			return rabbitmq.Permanent(err)
		}

		entry := mongodb.AuditLog{
			ID:                  env.MessageID.String(),
			EventType:           env.MessageType,
			TransferID:          payload.TransferID.String(),
			CorrelationID:       env.CorrelationID.String(),
			SourceWalletID:      payload.SourceWalletID.String(),
			DestinationWalletID: payload.DestinationWalletID.String(),
			AmountMinorUnits:    payload.AmountMinorUnits,
			Currency:            payload.Currency,
			Reference:           payload.Reference,
			FailureStage:        payload.FailureStage,
			FailureReason:       payload.FailureReason,
			Metadata:            payload.Metadata,
			OccurredAt:          env.OccurredAt,
		}

		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := auditRepo.Save(saveCtx, entry); err != nil {
			return err
		}

		log.Info().
			Str("event", env.MessageType).
			Str("transfer_id", payload.TransferID.String()).
			Msg("transfer event audited")
		return nil
	}

	log.Info().Str("queue", messaging.AuditQueue).Msg("audit worker started")
	if err := consumer.Run(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("audit consumer stopped")
	}

	log.Info().Msg("shutting down")
}
