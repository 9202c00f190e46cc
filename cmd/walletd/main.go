package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Brankond/Momentum/internal/config"
	"github.com/Brankond/Momentum/internal/infra/http/handler"
	internalMiddleware "github.com/Brankond/Momentum/internal/infra/http/middleware"
	"github.com/Brankond/Momentum/internal/infra/postgres"
	"github.com/Brankond/Momentum/internal/infra/rabbitmq"
	"github.com/Brankond/Momentum/internal/messaging"
	"github.com/Brankond/Momentum/internal/protocol"
	"github.com/Brankond/Momentum/internal/usecase/ledger"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL is not responding")
	}
	log.Info().Msg("connected to PostgreSQL")

	rabbitConn, err := amqp.DialConfig(cfg.RabbitURL, amqp.Config{
		Properties: amqp.Table{"connection_name": "walletd"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rabbitConn.Close()
	log.Info().Msg("connected to RabbitMQ")

	pubChannel, err := rabbitConn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open publisher channel")
	}
	defer pubChannel.Close()

	consChannel, err := rabbitConn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open consumer channel")
	}
	defer consChannel.Close()

	// The wallet service consumes commands and publishes results.
	if err := rabbitmq.DeclareTopology(consChannel, messaging.WalletCommandExchange, messaging.WalletCommandQueue, messaging.WalletCommandBinding); err != nil {
		log.Fatal().Err(err).Msg("failed to declare command topology")
	}
	if err := rabbitmq.DeclareTopology(pubChannel, messaging.WalletEventExchange, "", ""); err != nil {
		log.Fatal().Err(err).Msg("failed to declare result topology")
	}

	publisher := rabbitmq.NewPublisher(pubChannel, log.Logger)
	resultBus := messaging.NewWalletResultPublisher(publisher)

	walletRepo := postgres.NewWalletRepository(dbPool)
	ledgerRepo := postgres.NewLedgerRepository(dbPool)
	uow := postgres.NewUow(dbPool)

	ledgerService := ledger.NewService(walletRepo, ledgerRepo, uow, log.Logger)
	commandHandler := ledger.NewCommandHandler(ledgerService, resultBus, log.Logger)

	consumer, err := rabbitmq.NewConsumer(consChannel, messaging.WalletCommandQueue, "walletd", log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create command consumer")
	}

	go func() {
		err := consumer.Run(ctx, func(ctx context.Context, body []byte) error {
			err := commandHandler.Handle(ctx, body)
			if err != nil && protocol.IsDecodeFailure(err) {
				return rabbitmq.Permanent(err)
			}
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("command consumer stopped")
			stop()
		}
	}()

	walletHandler := handler.NewWalletHandler(ledgerService)

	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))
	router.Use(internalMiddleware.Metrics)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health response")
		}
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Post("/wallets", walletHandler.Create)
	router.Get("/wallets/{walletID}", walletHandler.Get)
	router.Get("/wallets/{walletID}/ledger", walletHandler.GetLedger)
	router.Post("/wallets/{walletID}/credit", walletHandler.Credit)
	router.Post("/wallets/{walletID}/debit", walletHandler.Debit)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("wallet service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
}
