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

// LedgerRepository implements gateway.LedgerRepository with pgx/v5.
// Entries are append-only; there is no update path.
type LedgerRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool, db: pool}
}

const ledgerColumns = `entry_id, wallet_id, direction, amount_minor_units, running_balance_minor_units, reference, description, metadata, occurred_at`

func (r *LedgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO ledger_entries (entry_id, wallet_id, direction, amount_minor_units, running_balance_minor_units, reference, description, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.WalletID, string(entry.Direction), entry.AmountMinorUnits,
		entry.RunningBalanceMinorUnits, entry.Reference, entry.Description, metadata, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetByWalletAndReference(ctx context.Context, walletID uuid.UUID, reference string) (*domain.LedgerEntry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE wallet_id = $1 AND reference = $2`,
		walletID, reference)
	entry, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

func (r *LedgerRepository) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE wallet_id = $1 ORDER BY occurred_at ASC`,
		walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepository) WithTx(tx gateway.TransactionObject) gateway.LedgerRepository {
	return &LedgerRepository{pool: r.pool, db: bind(r.pool, tx)}
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var (
		entry     domain.LedgerEntry
		direction string
		metadata  []byte
	)
	err := row.Scan(
		&entry.ID, &entry.WalletID, &direction, &entry.AmountMinorUnits,
		&entry.RunningBalanceMinorUnits, &entry.Reference, &entry.Description, &metadata, &entry.OccurredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	entry.Direction = domain.EntryDirection(direction)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode ledger metadata: %w", err)
		}
	}
	return &entry, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger metadata: %w", err)
	}
	return encoded, nil
}
