package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/Brankond/Momentum/internal/money"
)

type WalletStatus string

const (
	WalletActive    WalletStatus = "ACTIVE"
	WalletSuspended WalletStatus = "SUSPENDED"
	WalletClosed    WalletStatus = "CLOSED"
)

// Wallet holds a single-currency balance owned by one account holder.
// The balance is only ever mutated through the ledger service while the
// wallet row is exclusively locked.
type Wallet struct {
	ID                uuid.UUID
	OwnerID           uuid.UUID
	Currency          string
	BalanceMinorUnits int64
	Status            WalletStatus
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewWallet(ownerID uuid.UUID, currency string, initialBalanceMinorUnits int64) (*Wallet, error) {
	if initialBalanceMinorUnits < 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := money.FromMinor(initialBalanceMinorUnits, currency); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Wallet{
		ID:                uuid.New(),
		OwnerID:           ownerID,
		Currency:          currency,
		BalanceMinorUnits: initialBalanceMinorUnits,
		Status:            WalletActive,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Balance returns the current balance as a Money value.
func (w *Wallet) Balance() money.Money {
	balance, _ := money.FromMinor(w.BalanceMinorUnits, w.Currency)
	return balance
}

func (w *Wallet) IsActive() bool {
	return w.Status == WalletActive
}

// Debit subtracts the amount from the balance. Fails when the amount is
// non-positive, the currency differs or funds are insufficient.
func (w *Wallet) Debit(amount money.Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	remaining, err := w.Balance().Subtract(amount)
	if err != nil {
		return err
	}
	if remaining.IsNegative() {
		return ErrInsufficientFunds
	}
	w.BalanceMinorUnits = remaining.MinorUnits()
	w.touch()
	return nil
}

// Credit adds the amount to the balance. Fails when the amount is
// non-positive or the currency differs.
func (w *Wallet) Credit(amount money.Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	total, err := w.Balance().Add(amount)
	if err != nil {
		return err
	}
	w.BalanceMinorUnits = total.MinorUnits()
	w.touch()
	return nil
}

func (w *Wallet) touch() {
	w.Version++
	w.UpdatedAt = time.Now().UTC()
}
