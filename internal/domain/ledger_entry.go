package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntryDirection string

const (
	EntryCredit   EntryDirection = "CREDIT"
	EntryDebit    EntryDirection = "DEBIT"
	EntryReversal EntryDirection = "REVERSAL"
)

// LedgerEntry is one line of a wallet's append-only journal. Entries
// are never mutated or deleted, and (WalletID, Reference) is unique:
// that tuple is the dedupe key that makes command redelivery safe.
type LedgerEntry struct {
	ID                       uuid.UUID
	WalletID                 uuid.UUID
	Direction                EntryDirection
	AmountMinorUnits         int64
	RunningBalanceMinorUnits int64
	Reference                string
	Description              string
	Metadata                 map[string]any
	OccurredAt               time.Time
}

// SignedAmount returns the amount with the sign implied by the entry
// direction, so summing a wallet's journal reproduces its balance.
func (e *LedgerEntry) SignedAmount() int64 {
	if e.Direction == EntryDebit {
		return -e.AmountMinorUnits
	}
	return e.AmountMinorUnits
}
