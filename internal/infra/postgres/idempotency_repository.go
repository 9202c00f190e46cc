package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
)

// IdempotencyRecordRepository implements
// gateway.IdempotencyRecordRepository with pgx/v5.
type IdempotencyRecordRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewIdempotencyRecordRepository(pool *pgxpool.Pool) *IdempotencyRecordRepository {
	return &IdempotencyRecordRepository{pool: pool, db: pool}
}

func (r *IdempotencyRecordRepository) Create(ctx context.Context, record *domain.IdempotencyRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transfer_idempotency (idempotency_key, transfer_id, request_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		record.Key, record.TransferID, record.RequestHash, record.ExpiresAt, record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		return fmt.Errorf("failed to create idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRecordRepository) GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var record domain.IdempotencyRecord
	err := r.db.QueryRow(ctx, `
		SELECT idempotency_key, transfer_id, request_hash, expires_at, created_at
		FROM transfer_idempotency
		WHERE idempotency_key = $1 AND expires_at > now()`,
		key).Scan(&record.Key, &record.TransferID, &record.RequestHash, &record.ExpiresAt, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return &record, nil
}

func (r *IdempotencyRecordRepository) WithTx(tx gateway.TransactionObject) gateway.IdempotencyRecordRepository {
	return &IdempotencyRecordRepository{pool: r.pool, db: bind(r.pool, tx)}
}
