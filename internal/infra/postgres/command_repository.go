package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
)

// CommandRepository implements gateway.CommandRepository with pgx/v5.
type CommandRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewCommandRepository(pool *pgxpool.Pool) *CommandRepository {
	return &CommandRepository{pool: pool, db: pool}
}

const commandColumns = `command_id, transfer_id, kind, wallet_id, amount_minor_units, status, last_error, retry_count, sent_at, acknowledged_at, created_at, updated_at`

func (r *CommandRepository) Create(ctx context.Context, command *domain.TransferCommand) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transfer_commands (command_id, transfer_id, kind, wallet_id, amount_minor_units, status, last_error, retry_count, sent_at, acknowledged_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		command.ID, command.TransferID, string(command.Kind), command.WalletID,
		command.AmountMinorUnits, string(command.Status), command.LastError, command.RetryCount,
		command.SentAt, command.AcknowledgedAt, command.CreatedAt, command.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer command: %w", err)
	}
	return nil
}

func (r *CommandRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TransferCommand, error) {
	row := r.db.QueryRow(ctx, `SELECT `+commandColumns+` FROM transfer_commands WHERE command_id = $1`, id)
	return scanCommand(row)
}

func (r *CommandRepository) GetByTransferAndKind(ctx context.Context, transferID uuid.UUID, kind domain.CommandKind) (*domain.TransferCommand, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+commandColumns+` FROM transfer_commands WHERE transfer_id = $1 AND kind = $2`,
		transferID, string(kind))
	return scanCommand(row)
}

// ListStuck returns dispatched commands with no recorded outcome whose
// last send attempt predates cutoff. The reaper re-publishes these.
// PENDING commands are excluded: they are parked until the saga
// authorizes their dispatch and must never be sent by the reaper.
func (r *CommandRepository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]domain.TransferCommand, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+commandColumns+`
		FROM transfer_commands
		WHERE status = 'SENT' AND sent_at < $1
		ORDER BY sent_at ASC
		LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck commands: %w", err)
	}
	defer rows.Close()

	var commands []domain.TransferCommand
	for rows.Next() {
		command, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		commands = append(commands, *command)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stuck commands: %w", err)
	}
	return commands, nil
}

func (r *CommandRepository) Save(ctx context.Context, command *domain.TransferCommand) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transfer_commands
		SET status = $2, last_error = $3, retry_count = $4, sent_at = $5, acknowledged_at = $6, updated_at = $7
		WHERE command_id = $1`,
		command.ID, string(command.Status), command.LastError, command.RetryCount,
		command.SentAt, command.AcknowledgedAt, command.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transfer command: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommandNotFound
	}
	return nil
}

func (r *CommandRepository) WithTx(tx gateway.TransactionObject) gateway.CommandRepository {
	return &CommandRepository{pool: r.pool, db: bind(r.pool, tx)}
}

func scanCommand(row pgx.Row) (*domain.TransferCommand, error) {
	var (
		command domain.TransferCommand
		kind    string
		status  string
	)
	err := row.Scan(
		&command.ID, &command.TransferID, &kind, &command.WalletID,
		&command.AmountMinorUnits, &status, &command.LastError, &command.RetryCount,
		&command.SentAt, &command.AcknowledgedAt, &command.CreatedAt, &command.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCommandNotFound
		}
		return nil, fmt.Errorf("failed to scan transfer command: %w", err)
	}
	command.Kind = domain.CommandKind(kind)
	command.Status = domain.CommandStatus(status)
	return &command, nil
}
