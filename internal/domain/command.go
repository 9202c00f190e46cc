package domain

import (
	"time"

	"github.com/google/uuid"
)

type CommandKind string

const (
	CommandDebit    CommandKind = "DEBIT"
	CommandCredit   CommandKind = "CREDIT"
	CommandReversal CommandKind = "REVERSAL"
)

type CommandStatus string

const (
	CommandPending CommandStatus = "PENDING"
	CommandSent    CommandStatus = "SENT"
	CommandAcked   CommandStatus = "ACKED"
	CommandFailed  CommandStatus = "FAILED"
)

// TransferCommand is the durable record of what was asked of the
// ledger for one transfer leg. Rows are only mutated to track delivery
// and outcome status.
type TransferCommand struct {
	ID               uuid.UUID
	TransferID       uuid.UUID
	Kind             CommandKind
	WalletID         uuid.UUID
	AmountMinorUnits int64
	Status           CommandStatus
	LastError        string
	RetryCount       int
	SentAt           *time.Time
	AcknowledgedAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewTransferCommand(transferID uuid.UUID, kind CommandKind, walletID uuid.UUID, amountMinorUnits int64) *TransferCommand {
	now := time.Now().UTC()
	return &TransferCommand{
		ID:               uuid.New(),
		TransferID:       transferID,
		Kind:             kind,
		WalletID:         walletID,
		AmountMinorUnits: amountMinorUnits,
		Status:           CommandPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (c *TransferCommand) MarkSent(sentAt time.Time) {
	c.Status = CommandSent
	c.SentAt = &sentAt
	c.UpdatedAt = time.Now().UTC()
}

func (c *TransferCommand) MarkAcknowledged(acknowledgedAt time.Time) {
	c.Status = CommandAcked
	c.AcknowledgedAt = &acknowledgedAt
	c.UpdatedAt = time.Now().UTC()
}

func (c *TransferCommand) MarkFailed(reason string) {
	c.Status = CommandFailed
	c.LastError = reason
	c.RetryCount++
	c.UpdatedAt = time.Now().UTC()
}

// RecordRetry bumps the retry counter when the reaper re-publishes a
// command whose result never arrived.
func (c *TransferCommand) RecordRetry(sentAt time.Time) {
	c.RetryCount++
	c.MarkSent(sentAt)
}
