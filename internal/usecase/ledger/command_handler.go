package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/messaging"
	"github.com/Brankond/Momentum/internal/money"
	"github.com/Brankond/Momentum/internal/protocol"
)

// CommandHandler consumes wallet command messages, applies them
// through the ledger service and reports the outcome on the result
// exchange. Business rejections become FAILED results and the message
// is acknowledged; only infrastructure failures propagate so the bus
// redelivers.
type CommandHandler struct {
	service *Service
	results *messaging.WalletResultPublisher
	log     zerolog.Logger
}

func NewCommandHandler(service *Service, results *messaging.WalletResultPublisher, log zerolog.Logger) *CommandHandler {
	return &CommandHandler{service: service, results: results, log: log}
}

func (h *CommandHandler) Handle(ctx context.Context, body []byte) error {
	env, payload, err := protocol.DecodeWalletCommand(body)
	if err != nil {
		return err
	}

	input := ApplyInput{
		WalletID:    payload.WalletID,
		AmountMinor: payload.AmountMinorUnits,
		Reference:   payload.Reference,
		Description: payload.Description,
		Metadata:    payload.Metadata,
		OccurredAt:  env.OccurredAt,
	}

	var entry *domain.LedgerEntry
	switch env.MessageType {
	case protocol.TypeWalletDebitCommand:
		entry, err = h.service.Debit(ctx, input)
	case protocol.TypeWalletCreditCommand:
		entry, err = h.service.Credit(ctx, input)
	}

	if err != nil {
		if !isBusinessFailure(err) {
			// Let the bus redeliver; the dedupe on (wallet, reference)
			// keeps the retry safe.
			return fmt.Errorf("apply %s: %w", env.MessageType, err)
		}
		h.log.Warn().
			Str("command_id", payload.CommandID.String()).
			Str("wallet_id", payload.WalletID.String()).
			Err(err).
			Msg("wallet command rejected")
		if pubErr := h.results.PublishFailure(ctx, payload, env, err.Error()); pubErr != nil {
			return fmt.Errorf("publish failure result: %w", pubErr)
		}
		return nil
	}

	if pubErr := h.results.PublishSuccess(ctx, payload, env, entry); pubErr != nil {
		return fmt.Errorf("publish success result: %w", pubErr)
	}
	return nil
}

// isBusinessFailure separates rule violations, which must travel back
// as FAILED results, from infrastructure faults, which must not
// advance the saga.
func isBusinessFailure(err error) bool {
	return errors.Is(err, domain.ErrWalletNotFound) ||
		errors.Is(err, domain.ErrWalletInactive) ||
		errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrInvalidAmount) ||
		errors.Is(err, money.ErrCurrencyMismatch) ||
		errors.Is(err, money.ErrUnknownCurrency)
}
