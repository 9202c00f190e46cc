package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
)

type TransferRepository struct {
	mu        sync.RWMutex
	transfers map[uuid.UUID]domain.Transfer
}

func NewTransferRepository() *TransferRepository {
	return &TransferRepository{transfers: make(map[uuid.UUID]domain.Transfer)}
}

func (r *TransferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[transfer.ID] = *transfer
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	transfer, ok := r.transfers[id]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	copied := transfer
	return &copied, nil
}

func (r *TransferRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	return r.GetByID(ctx, id)
}

func (r *TransferRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, transfer := range r.transfers {
		if transfer.IdempotencyKey == key {
			copied := transfer
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *TransferRepository) Save(ctx context.Context, transfer *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transfers[transfer.ID]; !ok {
		return domain.ErrTransferNotFound
	}
	r.transfers[transfer.ID] = *transfer
	return nil
}

func (r *TransferRepository) WithTx(tx gateway.TransactionObject) gateway.TransferRepository {
	return r
}

type CommandRepository struct {
	mu       sync.RWMutex
	commands map[uuid.UUID]domain.TransferCommand
}

func NewCommandRepository() *CommandRepository {
	return &CommandRepository{commands: make(map[uuid.UUID]domain.TransferCommand)}
}

func (r *CommandRepository) Create(ctx context.Context, command *domain.TransferCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[command.ID] = *command
	return nil
}

func (r *CommandRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TransferCommand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	command, ok := r.commands[id]
	if !ok {
		return nil, domain.ErrCommandNotFound
	}
	copied := command
	return &copied, nil
}

func (r *CommandRepository) GetByTransferAndKind(ctx context.Context, transferID uuid.UUID, kind domain.CommandKind) (*domain.TransferCommand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, command := range r.commands {
		if command.TransferID == transferID && command.Kind == kind {
			copied := command
			return &copied, nil
		}
	}
	return nil, domain.ErrCommandNotFound
}

func (r *CommandRepository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]domain.TransferCommand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.TransferCommand
	for _, command := range r.commands {
		// Only SENT commands can be stuck. A PENDING command is parked
		// on purpose until the saga authorizes its dispatch.
		if command.Status != domain.CommandSent {
			continue
		}
		if command.SentAt != nil && command.SentAt.After(cutoff) {
			continue
		}
		out = append(out, command)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *CommandRepository) Save(ctx context.Context, command *domain.TransferCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[command.ID]; !ok {
		return domain.ErrCommandNotFound
	}
	r.commands[command.ID] = *command
	return nil
}

func (r *CommandRepository) WithTx(tx gateway.TransactionObject) gateway.CommandRepository {
	return r
}

type IdempotencyRecordRepository struct {
	mu      sync.RWMutex
	records map[string]domain.IdempotencyRecord
}

func NewIdempotencyRecordRepository() *IdempotencyRecordRepository {
	return &IdempotencyRecordRepository{records: make(map[string]domain.IdempotencyRecord)}
}

func (r *IdempotencyRecordRepository) Create(ctx context.Context, record *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.Key] = *record
	return nil
}

func (r *IdempotencyRecordRepository) GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	copied := record
	return &copied, nil
}

func (r *IdempotencyRecordRepository) WithTx(tx gateway.TransactionObject) gateway.IdempotencyRecordRepository {
	return r
}
