package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/Brankond/Momentum/internal/domain"
)

// WalletRepository is the persistence contract for wallets. The ledger
// service only talks to this interface, never to a concrete store.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Wallet, error)

	// GetByIDForUpdate returns the wallet with an exclusive lock held
	// until the surrounding unit of work ends. All balance mutation
	// goes through this lock.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	Save(ctx context.Context, wallet *domain.Wallet) error

	// WithTx returns a copy of the repository bound to the transaction
	// started by the unit of work.
	WithTx(tx TransactionObject) WalletRepository
}

// LedgerRepository persists the append-only journal. Entries are never
// updated or deleted.
type LedgerRepository interface {
	Append(ctx context.Context, entry *domain.LedgerEntry) error

	// GetByWalletAndReference returns the existing entry for the dedupe
	// tuple, or (nil, nil) when no entry exists yet.
	GetByWalletAndReference(ctx context.Context, walletID uuid.UUID, reference string) (*domain.LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error)
	WithTx(tx TransactionObject) LedgerRepository
}
