package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/gateway"
)

type WalletRepository struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]domain.Wallet
}

func NewWalletRepository() *WalletRepository {
	return &WalletRepository{wallets: make(map[uuid.UUID]domain.Wallet)}
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[wallet.ID] = *wallet
	return nil
}

func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.wallets[id]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	copied := wallet
	return &copied, nil
}

func (r *WalletRepository) GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, wallet := range r.wallets {
		if wallet.OwnerID == ownerID && wallet.Currency == currency {
			copied := wallet
			return &copied, nil
		}
	}
	return nil, domain.ErrWalletNotFound
}

// GetByIDForUpdate relies on the memory TxManager serializing units of
// work, so no extra row lock is needed here.
func (r *WalletRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *WalletRepository) Save(ctx context.Context, wallet *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[wallet.ID]; !ok {
		return domain.ErrWalletNotFound
	}
	r.wallets[wallet.ID] = *wallet
	return nil
}

func (r *WalletRepository) WithTx(tx gateway.TransactionObject) gateway.WalletRepository {
	return r
}

type LedgerRepository struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

func (r *LedgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *LedgerRepository) GetByWalletAndReference(ctx context.Context, walletID uuid.UUID, reference string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if entry.WalletID == walletID && entry.Reference == reference {
			copied := entry
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *LedgerRepository) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, entry := range r.entries {
		if entry.WalletID == walletID {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (r *LedgerRepository) WithTx(tx gateway.TransactionObject) gateway.LedgerRepository {
	return r
}
