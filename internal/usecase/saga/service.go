// Package saga implements the transfer orchestrator: a persistent
// state machine per transfer that issues debit, credit and reversal
// commands, interprets their asynchronous results and drives every
// transfer to a terminal state.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
	"github.com/Brankond/Momentum/internal/idempotency"
	"github.com/Brankond/Momentum/internal/messaging"
	"github.com/Brankond/Momentum/internal/money"
	"github.com/Brankond/Momentum/internal/protocol"
)

// IdempotencyTTL bounds how long a key pins its original request.
const IdempotencyTTL = 24 * time.Hour

// Service owns the transfer lifecycle. All state transitions run
// inside a unit of work with the transfer row locked, so concurrent
// results for one transfer are applied one at a time. Messages are
// published after the unit of work commits; the reaper re-dispatches
// commands whose publish was lost.
type Service struct {
	transfers   gateway.TransferRepository
	commands    gateway.CommandRepository
	idempotency gateway.IdempotencyRecordRepository
	tx          gateway.TransactionManager
	commandBus  *messaging.WalletCommandPublisher
	events      *messaging.TransferEventPublisher
	log         zerolog.Logger
}

func NewService(
	transfers gateway.TransferRepository,
	commands gateway.CommandRepository,
	idempotencyRecords gateway.IdempotencyRecordRepository,
	tx gateway.TransactionManager,
	commandBus *messaging.WalletCommandPublisher,
	events *messaging.TransferEventPublisher,
	log zerolog.Logger,
) *Service {
	return &Service{
		transfers:   transfers,
		commands:    commands,
		idempotency: idempotencyRecords,
		tx:          tx,
		commandBus:  commandBus,
		events:      events,
		log:         log,
	}
}

// InitiateTransferInput is the inbound transfer request. The
// idempotency key is client-supplied and required.
type InitiateTransferInput struct {
	SourceWalletID      uuid.UUID
	DestinationWalletID uuid.UUID
	AmountMinorUnits    int64
	Currency            string
	Reference           string
	Description         string
	Metadata            map[string]any
	IdempotencyKey      string
}

func (in InitiateTransferInput) validate() error {
	if in.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency key is required", domain.ErrInvalidRequest)
	}
	if in.Reference == "" {
		return fmt.Errorf("%w: reference is required", domain.ErrInvalidRequest)
	}
	if in.SourceWalletID == uuid.Nil || in.DestinationWalletID == uuid.Nil {
		return fmt.Errorf("%w: both wallet ids are required", domain.ErrInvalidRequest)
	}
	if in.SourceWalletID == in.DestinationWalletID {
		return fmt.Errorf("%w: source and destination must differ", domain.ErrInvalidRequest)
	}
	amount, err := money.FromMinor(in.AmountMinorUnits, in.Currency)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	return nil
}

// InitiateTransfer creates the saga and dispatches the debit command.
// A retry with a known idempotency key and an identical request hash
// returns the stored transfer without re-dispatching anything; a
// divergent retry fails with domain.ErrIdempotencyConflict.
func (s *Service) InitiateTransfer(ctx context.Context, input InitiateTransferInput) (*domain.Transfer, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	requestHash, err := idempotency.HashRequest(
		input.SourceWalletID,
		input.DestinationWalletID,
		input.AmountMinorUnits,
		input.Currency,
		input.Reference,
		input.Description,
		input.Metadata,
	)
	if err != nil {
		return nil, err
	}

	var (
		transfer     *domain.Transfer
		debitCommand *domain.TransferCommand
	)
	err = s.tx.Run(ctx, func(ctx context.Context) error {
		transfers := s.transfers.WithTx(gateway.TxFrom(ctx))
		commands := s.commands.WithTx(gateway.TxFrom(ctx))
		records := s.idempotency.WithTx(gateway.TxFrom(ctx))

		existing, err := transfers.GetByIdempotencyKey(ctx, input.IdempotencyKey)
		if err != nil {
			return fmt.Errorf("look up idempotency key: %w", err)
		}
		if existing != nil {
			// The divergence check recomputes the hash from the stored
			// transfer, so it keeps rejecting even after the
			// idempotency record's TTL has passed. The key on the
			// transfer row never expires.
			existingHash, err := idempotency.HashRequest(
				existing.SourceWalletID,
				existing.DestinationWalletID,
				existing.AmountMinorUnits,
				existing.Currency,
				existing.Reference,
				existing.Description,
				existing.Metadata,
			)
			if err != nil {
				return err
			}
			if existingHash != requestHash {
				return domain.ErrIdempotencyConflict
			}
			transfer = existing
			return nil
		}

		now := time.Now().UTC()
		transfer = &domain.Transfer{
			ID:                  uuid.New(),
			SourceWalletID:      input.SourceWalletID,
			DestinationWalletID: input.DestinationWalletID,
			AmountMinorUnits:    input.AmountMinorUnits,
			Currency:            input.Currency,
			Reference:           input.Reference,
			Description:         input.Description,
			Metadata:            input.Metadata,
			CorrelationID:       uuid.New(),
			IdempotencyKey:      input.IdempotencyKey,
			Status:              domain.TransferPending,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		transfer.MarkDebitInProgress()
		if err := transfers.Create(ctx, transfer); err != nil {
			return fmt.Errorf("persist transfer: %w", err)
		}

		if err := records.Create(ctx, &domain.IdempotencyRecord{
			Key:         input.IdempotencyKey,
			TransferID:  transfer.ID,
			RequestHash: requestHash,
			ExpiresAt:   now.Add(IdempotencyTTL),
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("persist idempotency record: %w", err)
		}

		// Both legs are created up front; the credit stays PENDING
		// until the debit result arrives.
		debitCommand = domain.NewTransferCommand(transfer.ID, domain.CommandDebit, transfer.SourceWalletID, transfer.AmountMinorUnits)
		debitCommand.MarkSent(now)
		creditCommand := domain.NewTransferCommand(transfer.ID, domain.CommandCredit, transfer.DestinationWalletID, transfer.AmountMinorUnits)

		if err := commands.Create(ctx, debitCommand); err != nil {
			return fmt.Errorf("persist debit command: %w", err)
		}
		if err := commands.Create(ctx, creditCommand); err != nil {
			return fmt.Errorf("persist credit command: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if debitCommand == nil {
		// Idempotent retry: nothing new was created.
		s.log.Info().
			Str("transfer_id", transfer.ID.String()).
			Str("idempotency_key", input.IdempotencyKey).
			Msg("transfer replayed for idempotency key")
		return transfer, nil
	}

	transfersInitiated.Inc()
	s.dispatchCommand(ctx, transfer, debitCommand)
	s.log.Info().
		Str("transfer_id", transfer.ID.String()).
		Str("source_wallet", transfer.SourceWalletID.String()).
		Str("destination_wallet", transfer.DestinationWalletID.String()).
		Int64("amount", transfer.AmountMinorUnits).
		Msg("transfer initiated")
	return transfer, nil
}

// GetTransfer returns the current saga snapshot.
func (s *Service) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	return s.transfers.GetByID(ctx, id)
}

// HandleWalletResult advances the saga for one command outcome.
// Unknown transfer or command ids indicate a protocol integrity fault
// and surface as domain not-found errors; duplicate results are
// acknowledged without effect.
func (s *Service) HandleWalletResult(ctx context.Context, env protocol.Envelope, payload protocol.WalletResultPayload) error {
	var after []func(ctx context.Context)

	err := s.tx.Run(ctx, func(ctx context.Context) error {
		transfers := s.transfers.WithTx(gateway.TxFrom(ctx))
		commands := s.commands.WithTx(gateway.TxFrom(ctx))

		// The transfer lock serializes concurrent results for the
		// same saga.
		transfer, err := transfers.GetByIDForUpdate(ctx, payload.TransferID)
		if err != nil {
			return err
		}
		command, err := commands.GetByID(ctx, payload.CommandID)
		if err != nil {
			return err
		}
		// A result must only ever act on its own transfer's command.
		if command.TransferID != transfer.ID {
			return fmt.Errorf("%w: command %s does not belong to transfer %s",
				domain.ErrCommandNotFound, command.ID, transfer.ID)
		}

		if transfer.IsTerminal() || command.Status == domain.CommandAcked || command.Status == domain.CommandFailed {
			duplicateResults.Inc()
			s.log.Info().
				Str("transfer_id", transfer.ID.String()).
				Str("command_id", command.ID.String()).
				Str("status", string(transfer.Status)).
				Msg("duplicate wallet result ignored")
			return nil
		}

		if payload.Status == protocol.ResultSucceeded {
			after, err = s.onCommandSucceeded(ctx, transfers, commands, transfer, command, env.OccurredAt)
			return err
		}
		after, err = s.onCommandFailed(ctx, transfers, commands, transfer, command, payload.FailureReason)
		return err
	})
	if err != nil {
		return err
	}

	for _, fn := range after {
		fn(ctx)
	}
	return nil
}

func (s *Service) onCommandSucceeded(
	ctx context.Context,
	transfers gateway.TransferRepository,
	commands gateway.CommandRepository,
	transfer *domain.Transfer,
	command *domain.TransferCommand,
	occurredAt time.Time,
) ([]func(ctx context.Context), error) {
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	command.MarkAcknowledged(occurredAt)
	if err := commands.Save(ctx, command); err != nil {
		return nil, fmt.Errorf("persist command ack: %w", err)
	}

	switch command.Kind {
	case domain.CommandDebit:
		transfer.MarkCreditInProgress()
		if err := transfers.Save(ctx, transfer); err != nil {
			return nil, fmt.Errorf("persist transfer: %w", err)
		}

		credit, err := commands.GetByTransferAndKind(ctx, transfer.ID, domain.CommandCredit)
		if err != nil {
			return nil, err
		}
		// Only a PENDING credit is dispatched; a duplicate debit
		// result must not send the credit twice.
		if credit.Status != domain.CommandPending {
			return nil, nil
		}
		credit.MarkSent(time.Now().UTC())
		if err := commands.Save(ctx, credit); err != nil {
			return nil, fmt.Errorf("persist credit command: %w", err)
		}
		snapshot := *transfer
		sent := *credit
		return []func(ctx context.Context){func(ctx context.Context) {
			s.dispatchCommand(ctx, &snapshot, &sent)
		}}, nil

	case domain.CommandCredit:
		transfer.MarkCompleted(occurredAt)
		if err := transfers.Save(ctx, transfer); err != nil {
			return nil, fmt.Errorf("persist transfer: %w", err)
		}
		transfersFinished.WithLabelValues(string(domain.TransferCompleted)).Inc()
		snapshot := *transfer
		return []func(ctx context.Context){func(ctx context.Context) {
			if err := s.events.PublishCompleted(ctx, &snapshot); err != nil {
				s.log.Error().Err(err).Str("transfer_id", snapshot.ID.String()).Msg("failed to publish transfer.completed")
			}
		}}, nil

	case domain.CommandReversal:
		// Compensation applied; the net outcome is still a failure.
		transfer.MarkFailedCompensated(time.Now().UTC())
		if err := transfers.Save(ctx, transfer); err != nil {
			return nil, fmt.Errorf("persist transfer: %w", err)
		}
		transfersFinished.WithLabelValues(string(domain.TransferFailedCompensated)).Inc()
		snapshot := *transfer
		reason := transfer.FailureReason
		return []func(ctx context.Context){func(ctx context.Context) {
			if err := s.events.PublishFailed(ctx, &snapshot, reason); err != nil {
				s.log.Error().Err(err).Str("transfer_id", snapshot.ID.String()).Msg("failed to publish transfer.failed")
			}
		}}, nil

	default:
		return nil, fmt.Errorf("unsupported command kind %q", command.Kind)
	}
}

func (s *Service) onCommandFailed(
	ctx context.Context,
	transfers gateway.TransferRepository,
	commands gateway.CommandRepository,
	transfer *domain.Transfer,
	command *domain.TransferCommand,
	reason string,
) ([]func(ctx context.Context), error) {
	command.MarkFailed(reason)
	if err := commands.Save(ctx, command); err != nil {
		return nil, fmt.Errorf("persist command failure: %w", err)
	}

	switch command.Kind {
	case domain.CommandDebit:
		// Nothing moved yet, so no compensation is needed.
		transfer.MarkFailed(domain.StageDebit, reason)
		if err := transfers.Save(ctx, transfer); err != nil {
			return nil, fmt.Errorf("persist transfer: %w", err)
		}
		transfersFinished.WithLabelValues(string(domain.TransferFailed)).Inc()
		snapshot := *transfer
		return []func(ctx context.Context){func(ctx context.Context) {
			if err := s.events.PublishFailed(ctx, &snapshot, reason); err != nil {
				s.log.Error().Err(err).Str("transfer_id", snapshot.ID.String()).Msg("failed to publish transfer.failed")
			}
		}}, nil

	case domain.CommandCredit:
		transfer.MarkCompensationPending(reason)
		if err := transfers.Save(ctx, transfer); err != nil {
			return nil, fmt.Errorf("persist transfer: %w", err)
		}

		// The reversal returns the debited amount to the source
		// wallet.
		reversal := domain.NewTransferCommand(transfer.ID, domain.CommandReversal, transfer.SourceWalletID, transfer.AmountMinorUnits)
		reversal.MarkSent(time.Now().UTC())
		if err := commands.Create(ctx, reversal); err != nil {
			return nil, fmt.Errorf("persist reversal command: %w", err)
		}

		snapshot := *transfer
		sent := *reversal
		return []func(ctx context.Context){
			func(ctx context.Context) { s.dispatchCommand(ctx, &snapshot, &sent) },
			func(ctx context.Context) {
				if err := s.events.PublishCompensationRequested(ctx, &snapshot, reason); err != nil {
					s.log.Error().Err(err).Str("transfer_id", snapshot.ID.String()).Msg("failed to publish transfer.compensation.requested")
				}
			},
		}, nil

	case domain.CommandReversal:
		// The compensation itself failed: park the transfer in the
		// operator-escalation state instead of retrying forever.
		transfer.MarkCompensationFailed(reason)
		if err := transfers.Save(ctx, transfer); err != nil {
			return nil, fmt.Errorf("persist transfer: %w", err)
		}
		transfersFinished.WithLabelValues(string(domain.TransferCompensationFailed)).Inc()
		s.log.Error().
			Str("transfer_id", transfer.ID.String()).
			Str("reason", reason).
			Msg("reversal failed, transfer requires operator intervention")
		snapshot := *transfer
		return []func(ctx context.Context){func(ctx context.Context) {
			if err := s.events.PublishFailed(ctx, &snapshot, reason); err != nil {
				s.log.Error().Err(err).Str("transfer_id", snapshot.ID.String()).Msg("failed to publish transfer.failed")
			}
		}}, nil

	default:
		return nil, fmt.Errorf("unsupported command kind %q", command.Kind)
	}
}

// onCommandUnresolved parks the saga once a command's retry budget is
// spent with no result. The command may or may not have been applied;
// synthesizing a failure here could leave a real debit uncompensated,
// and synthesizing a reversal could undo a credit that was kept. Only
// an operator can resolve it.
func (s *Service) onCommandUnresolved(
	ctx context.Context,
	transfers gateway.TransferRepository,
	commands gateway.CommandRepository,
	transfer *domain.Transfer,
	command *domain.TransferCommand,
	reason string,
) ([]func(ctx context.Context), error) {
	command.MarkFailed(reason)
	if err := commands.Save(ctx, command); err != nil {
		return nil, fmt.Errorf("persist command failure: %w", err)
	}

	transfer.MarkUnresolved(commandStage(command.Kind), reason)
	if err := transfers.Save(ctx, transfer); err != nil {
		return nil, fmt.Errorf("persist transfer: %w", err)
	}
	transfersFinished.WithLabelValues(string(domain.TransferUnresolved)).Inc()
	s.log.Error().
		Str("transfer_id", transfer.ID.String()).
		Str("command_id", command.ID.String()).
		Str("kind", string(command.Kind)).
		Str("reason", reason).
		Msg("command outcome unknown, transfer requires operator intervention")

	snapshot := *transfer
	return []func(ctx context.Context){func(ctx context.Context) {
		if err := s.events.PublishFailed(ctx, &snapshot, reason); err != nil {
			s.log.Error().Err(err).Str("transfer_id", snapshot.ID.String()).Msg("failed to publish transfer.failed")
		}
	}}, nil
}

func commandStage(kind domain.CommandKind) domain.FailureStage {
	switch kind {
	case domain.CommandDebit:
		return domain.StageDebit
	case domain.CommandCredit:
		return domain.StageCredit
	default:
		return domain.StageReversal
	}
}

// dispatchCommand publishes a wallet command. Publish failures are
// logged, not returned: the command row is already SENT and the reaper
// re-dispatches it once it goes stale.
func (s *Service) dispatchCommand(ctx context.Context, transfer *domain.Transfer, command *domain.TransferCommand) {
	if err := s.commandBus.Publish(ctx, transfer, command); err != nil {
		s.log.Error().Err(err).
			Str("transfer_id", transfer.ID.String()).
			Str("command_id", command.ID.String()).
			Str("kind", string(command.Kind)).
			Msg("failed to publish wallet command")
	}
}

// IsProtocolFault reports whether a handler error means the message
// referenced state this service does not know, which indicates a bug
// or data-retention problem rather than something redelivery can fix.
func IsProtocolFault(err error) bool {
	return errors.Is(err, domain.ErrTransferNotFound) || errors.Is(err, domain.ErrCommandNotFound)
}
