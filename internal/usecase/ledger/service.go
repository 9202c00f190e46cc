// Package ledger implements the wallet-side participant: it applies
// debit and credit commands against wallet balances and keeps the
// append-only journal that makes redelivered commands safe.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
	"github.com/Brankond/Momentum/internal/money"
)

// Service owns all wallet balance mutation. Every apply runs inside a
// unit of work with the wallet row exclusively locked, so operations
// on one wallet are serialized while different wallets proceed in
// parallel.
type Service struct {
	wallets gateway.WalletRepository
	entries gateway.LedgerRepository
	tx      gateway.TransactionManager
	log     zerolog.Logger
}

func NewService(wallets gateway.WalletRepository, entries gateway.LedgerRepository, tx gateway.TransactionManager, log zerolog.Logger) *Service {
	return &Service{
		wallets: wallets,
		entries: entries,
		tx:      tx,
		log:     log,
	}
}

// CreateWalletInput describes a new wallet. InitialBalanceMinorUnits
// may be zero.
type CreateWalletInput struct {
	OwnerID                  uuid.UUID
	Currency                 string
	InitialBalanceMinorUnits int64
}

// CreateWallet provisions a wallet, refusing a second wallet for the
// same owner and currency.
func (s *Service) CreateWallet(ctx context.Context, input CreateWalletInput) (*domain.Wallet, error) {
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))

	var created *domain.Wallet
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		wallets := s.wallets.WithTx(gateway.TxFrom(ctx))

		existing, err := wallets.GetByOwnerAndCurrency(ctx, input.OwnerID, currency)
		if err != nil && !errors.Is(err, domain.ErrWalletNotFound) {
			return fmt.Errorf("check for existing wallet: %w", err)
		}
		if existing != nil {
			return domain.ErrDuplicateWallet
		}

		wallet, err := domain.NewWallet(input.OwnerID, currency, input.InitialBalanceMinorUnits)
		if err != nil {
			return err
		}
		if err := wallets.Create(ctx, wallet); err != nil {
			return fmt.Errorf("persist wallet: %w", err)
		}
		created = wallet
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("wallet_id", created.ID.String()).
		Str("currency", created.Currency).
		Int64("initial_balance", created.BalanceMinorUnits).
		Msg("wallet created")
	return created, nil
}

// ApplyInput is one debit or credit keyed by (wallet, reference).
type ApplyInput struct {
	WalletID    uuid.UUID
	AmountMinor int64
	Reference   string
	Description string
	Metadata    map[string]any
	OccurredAt  time.Time
}

// Credit adds funds to a wallet. Replaying the same reference returns
// the original entry without moving money again.
func (s *Service) Credit(ctx context.Context, input ApplyInput) (*domain.LedgerEntry, error) {
	return s.apply(ctx, input, domain.EntryCredit)
}

// Debit removes funds from a wallet, failing with
// domain.ErrInsufficientFunds when the balance cannot cover the
// amount. Replay-safe like Credit.
func (s *Service) Debit(ctx context.Context, input ApplyInput) (*domain.LedgerEntry, error) {
	return s.apply(ctx, input, domain.EntryDebit)
}

func (s *Service) apply(ctx context.Context, input ApplyInput, direction domain.EntryDirection) (*domain.LedgerEntry, error) {
	if input.AmountMinor <= 0 {
		operationsTotal.WithLabelValues(string(direction), outcomeRejected).Inc()
		return nil, domain.ErrInvalidAmount
	}
	if input.Reference == "" {
		operationsTotal.WithLabelValues(string(direction), outcomeRejected).Inc()
		return nil, fmt.Errorf("%w: reference is required", domain.ErrInvalidAmount)
	}

	var (
		entry    *domain.LedgerEntry
		replayed bool
	)
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		wallets := s.wallets.WithTx(gateway.TxFrom(ctx))
		entries := s.entries.WithTx(gateway.TxFrom(ctx))

		// The lock is held for the whole read-modify-append sequence.
		wallet, err := wallets.GetByIDForUpdate(ctx, input.WalletID)
		if err != nil {
			return err
		}
		if !wallet.IsActive() {
			return domain.ErrWalletInactive
		}

		// Dedupe contract: a redelivered command finds its original
		// entry and returns it unchanged.
		existing, err := entries.GetByWalletAndReference(ctx, wallet.ID, input.Reference)
		if err != nil {
			return fmt.Errorf("look up ledger entry: %w", err)
		}
		if existing != nil {
			entry = existing
			replayed = true
			return nil
		}

		amount, err := money.FromMinor(input.AmountMinor, wallet.Currency)
		if err != nil {
			return err
		}
		switch direction {
		case domain.EntryDebit:
			err = wallet.Debit(amount)
		case domain.EntryCredit, domain.EntryReversal:
			err = wallet.Credit(amount)
		default:
			err = fmt.Errorf("unsupported entry direction %q", direction)
		}
		if err != nil {
			return err
		}

		occurredAt := input.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}
		entry = &domain.LedgerEntry{
			ID:                       uuid.New(),
			WalletID:                 wallet.ID,
			Direction:                direction,
			AmountMinorUnits:         input.AmountMinor,
			RunningBalanceMinorUnits: wallet.BalanceMinorUnits,
			Reference:                input.Reference,
			Description:              input.Description,
			Metadata:                 input.Metadata,
			OccurredAt:               occurredAt,
		}

		// Wallet and entry are persisted as one atomic unit.
		if err := wallets.Save(ctx, wallet); err != nil {
			return fmt.Errorf("persist wallet balance: %w", err)
		}
		if err := entries.Append(ctx, entry); err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		operationsTotal.WithLabelValues(string(direction), outcomeRejected).Inc()
		return nil, err
	}

	if replayed {
		operationsTotal.WithLabelValues(string(direction), outcomeReplayed).Inc()
		s.log.Info().
			Str("wallet_id", input.WalletID.String()).
			Str("reference", input.Reference).
			Msg("duplicate command replayed from journal")
		return entry, nil
	}

	operationsTotal.WithLabelValues(string(direction), outcomeApplied).Inc()
	s.log.Info().
		Str("wallet_id", input.WalletID.String()).
		Str("direction", string(direction)).
		Str("reference", input.Reference).
		Int64("amount", input.AmountMinor).
		Int64("running_balance", entry.RunningBalanceMinorUnits).
		Msg("ledger entry applied")
	return entry, nil
}

// GetWallet is a pure read.
func (s *Service) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return s.wallets.GetByID(ctx, id)
}

// GetLedger returns the wallet journal in occurrence order, oldest
// first.
func (s *Service) GetLedger(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error) {
	if _, err := s.wallets.GetByID(ctx, walletID); err != nil {
		return nil, err
	}
	return s.entries.ListByWallet(ctx, walletID)
}
