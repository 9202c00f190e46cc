package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Brankond/Momentum/internal/domain"
)

// TransferRepository persists saga records.
type TransferRepository interface {
	Create(ctx context.Context, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)

	// GetByIDForUpdate locks the transfer row so two result messages
	// for the same transfer are processed one at a time.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)

	// GetByIdempotencyKey returns (nil, nil) when no transfer was
	// created under the key yet.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transfer, error)
	Save(ctx context.Context, transfer *domain.Transfer) error
	WithTx(tx TransactionObject) TransferRepository
}

// CommandRepository persists the per-leg wallet commands of a transfer.
type CommandRepository interface {
	Create(ctx context.Context, command *domain.TransferCommand) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TransferCommand, error)
	GetByTransferAndKind(ctx context.Context, transferID uuid.UUID, kind domain.CommandKind) (*domain.TransferCommand, error)

	// ListStuck returns SENT commands whose last send is older than the
	// cutoff, for the reaper to re-dispatch. PENDING commands are parked
	// by the saga and are never eligible.
	ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]domain.TransferCommand, error)
	Save(ctx context.Context, command *domain.TransferCommand) error
	WithTx(tx TransactionObject) CommandRepository
}

// IdempotencyRecordRepository stores the key-to-transfer pinning used
// by the request-level idempotency guard.
type IdempotencyRecordRepository interface {
	Create(ctx context.Context, record *domain.IdempotencyRecord) error

	// GetByKey returns (nil, nil) when the key was never used.
	GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	WithTx(tx TransactionObject) IdempotencyRecordRepository
}
