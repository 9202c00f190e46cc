package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
)

// WalletRepository implements gateway.WalletRepository with pgx/v5.
type WalletRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool, db: pool}
}

const walletColumns = `wallet_id, owner_id, currency, balance_minor_units, status, version, created_at, updated_at`

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO wallets (wallet_id, owner_id, currency, balance_minor_units, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		wallet.ID, wallet.OwnerID, wallet.Currency, wallet.BalanceMinorUnits,
		string(wallet.Status), wallet.Version, wallet.CreatedAt, wallet.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateWallet
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE wallet_id = $1`, id)
	return scanWallet(row)
}

func (r *WalletRepository) GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Wallet, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 AND currency = $2`,
		ownerID, currency)
	return scanWallet(row)
}

// GetByIDForUpdate locks the wallet row until the surrounding
// transaction commits, serializing balance mutation per wallet.
func (r *WalletRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE wallet_id = $1 FOR UPDATE`, id)
	return scanWallet(row)
}

func (r *WalletRepository) Save(ctx context.Context, wallet *domain.Wallet) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE wallets
		SET balance_minor_units = $2, status = $3, version = $4, updated_at = $5
		WHERE wallet_id = $1`,
		wallet.ID, wallet.BalanceMinorUnits, string(wallet.Status), wallet.Version, wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

func (r *WalletRepository) WithTx(tx gateway.TransactionObject) gateway.WalletRepository {
	return &WalletRepository{pool: r.pool, db: bind(r.pool, tx)}
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		wallet domain.Wallet
		status string
	)
	err := row.Scan(
		&wallet.ID, &wallet.OwnerID, &wallet.Currency, &wallet.BalanceMinorUnits,
		&status, &wallet.Version, &wallet.CreatedAt, &wallet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	wallet.Status = domain.WalletStatus(status)
	return &wallet, nil
}
