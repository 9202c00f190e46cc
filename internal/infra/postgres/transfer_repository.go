package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
)

// TransferRepository implements gateway.TransferRepository with pgx/v5.
type TransferRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool, db: pool}
}

const transferColumns = `transfer_id, idempotency_key, source_wallet_id, destination_wallet_id, amount_minor_units, currency, reference, description, metadata, correlation_id, status, failure_stage, failure_reason, created_at, updated_at, completed_at`

func (r *TransferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	metadata, err := marshalMetadata(transfer.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO transfers (transfer_id, idempotency_key, source_wallet_id, destination_wallet_id, amount_minor_units, currency, reference, description, metadata, correlation_id, status, failure_stage, failure_reason, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		transfer.ID, transfer.IdempotencyKey, transfer.SourceWalletID, transfer.DestinationWalletID,
		transfer.AmountMinorUnits, transfer.Currency, transfer.Reference, transfer.Description,
		metadata, transfer.CorrelationID, string(transfer.Status), string(transfer.FailureStage),
		transfer.FailureReason, transfer.CreatedAt, transfer.UpdatedAt, transfer.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE transfer_id = $1`, id)
	return scanTransfer(row)
}

// GetByIDForUpdate locks the transfer row so concurrent result
// deliveries for the same transfer are applied one at a time.
func (r *TransferRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE transfer_id = $1 FOR UPDATE`, id)
	return scanTransfer(row)
}

func (r *TransferRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transfer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE idempotency_key = $1`, key)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, domain.ErrTransferNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return transfer, nil
}

func (r *TransferRepository) Save(ctx context.Context, transfer *domain.Transfer) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transfers
		SET status = $2, failure_stage = $3, failure_reason = $4, updated_at = $5, completed_at = $6
		WHERE transfer_id = $1`,
		transfer.ID, string(transfer.Status), string(transfer.FailureStage), transfer.FailureReason,
		transfer.UpdatedAt, transfer.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransferNotFound
	}
	return nil
}

func (r *TransferRepository) WithTx(tx gateway.TransactionObject) gateway.TransferRepository {
	return &TransferRepository{pool: r.pool, db: bind(r.pool, tx)}
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var (
		transfer     domain.Transfer
		metadata     []byte
		status       string
		failureStage string
	)
	err := row.Scan(
		&transfer.ID, &transfer.IdempotencyKey, &transfer.SourceWalletID, &transfer.DestinationWalletID,
		&transfer.AmountMinorUnits, &transfer.Currency, &transfer.Reference, &transfer.Description,
		&metadata, &transfer.CorrelationID, &status, &failureStage, &transfer.FailureReason,
		&transfer.CreatedAt, &transfer.UpdatedAt, &transfer.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &transfer.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode transfer metadata: %w", err)
		}
	}
	transfer.Status = domain.TransferStatus(status)
	transfer.FailureStage = domain.FailureStage(failureStage)
	return &transfer, nil
}
