package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brankond/Momentum/internal/domain"
	"github.com/Brankond/Momentum/internal/infra/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(
		memory.NewWalletRepository(),
		memory.NewLedgerRepository(),
		memory.NewTxManager(),
		zerolog.Nop(),
	)
}

func createWallet(t *testing.T, s *Service, balance int64) *domain.Wallet {
	t.Helper()
	wallet, err := s.CreateWallet(context.Background(), CreateWalletInput{
		OwnerID:                  uuid.New(),
		Currency:                 "EUR",
		InitialBalanceMinorUnits: balance,
	})
	require.NoError(t, err)
	return wallet
}

func TestCreateWallet(t *testing.T) {
	s := newTestService(t)

	wallet, err := s.CreateWallet(context.Background(), CreateWalletInput{
		OwnerID:                  uuid.New(),
		Currency:                 "eur",
		InitialBalanceMinorUnits: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", wallet.Currency)
	assert.Equal(t, int64(1000), wallet.BalanceMinorUnits)
	assert.Equal(t, domain.WalletActive, wallet.Status)
}

func TestCreateWallet_DuplicateOwnerCurrency(t *testing.T) {
	s := newTestService(t)
	ownerID := uuid.New()

	_, err := s.CreateWallet(context.Background(), CreateWalletInput{OwnerID: ownerID, Currency: "EUR"})
	require.NoError(t, err)

	_, err = s.CreateWallet(context.Background(), CreateWalletInput{OwnerID: ownerID, Currency: "EUR"})
	assert.ErrorIs(t, err, domain.ErrDuplicateWallet)

	// A second currency for the same owner is fine.
	_, err = s.CreateWallet(context.Background(), CreateWalletInput{OwnerID: ownerID, Currency: "USD"})
	assert.NoError(t, err)
}

func TestCreditAndDebit(t *testing.T) {
	s := newTestService(t)
	wallet := createWallet(t, s, 1000)
	ctx := context.Background()

	entry, err := s.Credit(ctx, ApplyInput{
		WalletID:    wallet.ID,
		AmountMinor: 500,
		Reference:   "top-up-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryCredit, entry.Direction)
	assert.Equal(t, int64(1500), entry.RunningBalanceMinorUnits)

	entry, err = s.Debit(ctx, ApplyInput{
		WalletID:    wallet.ID,
		AmountMinor: 300,
		Reference:   "purchase-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), entry.RunningBalanceMinorUnits)

	stored, err := s.GetWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), stored.BalanceMinorUnits)
}

func TestDebit_InsufficientFunds(t *testing.T) {
	s := newTestService(t)
	wallet := createWallet(t, s, 100)
	ctx := context.Background()

	_, err := s.Debit(ctx, ApplyInput{
		WalletID:    wallet.ID,
		AmountMinor: 101,
		Reference:   "too-much",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The failed attempt must not touch the balance or the journal.
	stored, err := s.GetWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.BalanceMinorUnits)

	entries, err := s.GetLedger(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApply_DuplicateReferenceReplays(t *testing.T) {
	s := newTestService(t)
	wallet := createWallet(t, s, 1000)
	ctx := context.Background()

	input := ApplyInput{
		WalletID:    wallet.ID,
		AmountMinor: 400,
		Reference:   "transfer-42",
	}

	first, err := s.Debit(ctx, input)
	require.NoError(t, err)

	// Redelivery of the same command returns the original entry and
	// moves no money.
	second, err := s.Debit(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.RunningBalanceMinorUnits, second.RunningBalanceMinorUnits)

	stored, err := s.GetWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), stored.BalanceMinorUnits)

	entries, err := s.GetLedger(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestApply_SameReferenceDifferentWallets(t *testing.T) {
	s := newTestService(t)
	a := createWallet(t, s, 1000)
	b := createWallet(t, s, 1000)
	ctx := context.Background()

	// The dedupe key is (wallet, reference), so the same reference on
	// two wallets produces two entries. This is exactly how one
	// transfer debits the source and credits the destination.
	_, err := s.Debit(ctx, ApplyInput{WalletID: a.ID, AmountMinor: 250, Reference: "transfer-7"})
	require.NoError(t, err)
	_, err = s.Credit(ctx, ApplyInput{WalletID: b.ID, AmountMinor: 250, Reference: "transfer-7"})
	require.NoError(t, err)

	storedA, _ := s.GetWallet(ctx, a.ID)
	storedB, _ := s.GetWallet(ctx, b.ID)
	assert.Equal(t, int64(750), storedA.BalanceMinorUnits)
	assert.Equal(t, int64(1250), storedB.BalanceMinorUnits)
}

func TestApply_Validation(t *testing.T) {
	s := newTestService(t)
	wallet := createWallet(t, s, 1000)
	ctx := context.Background()

	_, err := s.Credit(ctx, ApplyInput{WalletID: wallet.ID, AmountMinor: 0, Reference: "zero"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = s.Credit(ctx, ApplyInput{WalletID: wallet.ID, AmountMinor: -5, Reference: "negative"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = s.Credit(ctx, ApplyInput{WalletID: wallet.ID, AmountMinor: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = s.Credit(ctx, ApplyInput{WalletID: uuid.New(), AmountMinor: 100, Reference: "ghost"})
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
}

func TestApply_InactiveWallet(t *testing.T) {
	s := newTestService(t)
	wallet := createWallet(t, s, 1000)
	ctx := context.Background()

	wallet.Status = domain.WalletSuspended
	require.NoError(t, s.wallets.Save(ctx, wallet))

	_, err := s.Credit(ctx, ApplyInput{WalletID: wallet.ID, AmountMinor: 100, Reference: "frozen"})
	assert.ErrorIs(t, err, domain.ErrWalletInactive)
}

func TestGetLedger_RunningBalances(t *testing.T) {
	s := newTestService(t)
	wallet := createWallet(t, s, 0)
	ctx := context.Background()

	_, err := s.Credit(ctx, ApplyInput{WalletID: wallet.ID, AmountMinor: 100, Reference: "c1"})
	require.NoError(t, err)
	_, err = s.Credit(ctx, ApplyInput{WalletID: wallet.ID, AmountMinor: 50, Reference: "c2"})
	require.NoError(t, err)
	_, err = s.Debit(ctx, ApplyInput{WalletID: wallet.ID, AmountMinor: 30, Reference: "d1"})
	require.NoError(t, err)

	entries, err := s.GetLedger(ctx, wallet.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Each entry snapshots the balance after it applied.
	assert.Equal(t, int64(100), entries[0].RunningBalanceMinorUnits)
	assert.Equal(t, int64(150), entries[1].RunningBalanceMinorUnits)
	assert.Equal(t, int64(120), entries[2].RunningBalanceMinorUnits)
}

func TestGetLedger_UnknownWallet(t *testing.T) {
	s := newTestService(t)

	_, err := s.GetLedger(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
}
