package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransferStatus string

const (
	TransferPending             TransferStatus = "PENDING"
	TransferDebitInProgress     TransferStatus = "DEBIT_IN_PROGRESS"
	TransferCreditInProgress    TransferStatus = "CREDIT_IN_PROGRESS"
	TransferCompleted           TransferStatus = "COMPLETED"
	TransferFailed              TransferStatus = "FAILED"
	TransferCompensationPending TransferStatus = "COMPENSATION_PENDING"
	TransferFailedCompensated   TransferStatus = "FAILED_COMPENSATED"
	// TransferCompensationFailed marks a transfer whose reversal itself
	// failed. It is terminal and requires operator intervention.
	TransferCompensationFailed TransferStatus = "COMPENSATION_FAILED"
	// TransferUnresolved marks a transfer whose command outcome is
	// unknown: it was dispatched, possibly applied, but no result ever
	// came back. Terminal, requires operator intervention.
	TransferUnresolved TransferStatus = "UNRESOLVED"
)

type FailureStage string

const (
	StageDebit    FailureStage = "DEBIT"
	StageCredit   FailureStage = "CREDIT"
	StageReversal FailureStage = "REVERSAL"
)

// Transfer is the saga record for a single money movement between two
// wallets. It is created once per idempotency key, mutated only by the
// orchestrator and never deleted.
type Transfer struct {
	ID                  uuid.UUID
	SourceWalletID      uuid.UUID
	DestinationWalletID uuid.UUID
	AmountMinorUnits    int64
	Currency            string
	Reference           string
	Description         string
	Metadata            map[string]any
	CorrelationID       uuid.UUID
	IdempotencyKey      string
	Status              TransferStatus
	FailureStage        FailureStage
	FailureReason       string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
}

// IsTerminal reports whether the saga has reached a final state and no
// further result messages may advance it.
func (t *Transfer) IsTerminal() bool {
	switch t.Status {
	case TransferCompleted, TransferFailed, TransferFailedCompensated, TransferCompensationFailed, TransferUnresolved:
		return true
	default:
		return false
	}
}

func (t *Transfer) MarkDebitInProgress() {
	t.Status = TransferDebitInProgress
	t.touch()
}

func (t *Transfer) MarkCreditInProgress() {
	t.Status = TransferCreditInProgress
	t.touch()
}

// MarkCompleted finalizes the happy path and clears any failure fields
// left by earlier duplicate deliveries.
func (t *Transfer) MarkCompleted(completedAt time.Time) {
	t.Status = TransferCompleted
	t.FailureStage = ""
	t.FailureReason = ""
	t.CompletedAt = &completedAt
	t.touch()
}

func (t *Transfer) MarkFailed(stage FailureStage, reason string) {
	t.Status = TransferFailed
	t.FailureStage = stage
	t.FailureReason = reason
	t.touch()
}

func (t *Transfer) MarkCompensationPending(reason string) {
	t.Status = TransferCompensationPending
	t.FailureStage = StageCredit
	t.FailureReason = reason
	t.touch()
}

func (t *Transfer) MarkFailedCompensated(completedAt time.Time) {
	t.Status = TransferFailedCompensated
	t.FailureStage = StageCredit
	t.CompletedAt = &completedAt
	t.touch()
}

// MarkUnresolved parks the transfer once a command's outcome is
// unknown. Money may or may not have moved; only an operator can
// decide, so no automatic failure or compensation is synthesized.
func (t *Transfer) MarkUnresolved(stage FailureStage, reason string) {
	t.Status = TransferUnresolved
	t.FailureStage = stage
	t.FailureReason = reason
	t.touch()
}

func (t *Transfer) MarkCompensationFailed(reason string) {
	t.Status = TransferCompensationFailed
	t.FailureStage = StageCredit
	t.FailureReason = reason
	t.touch()
}

func (t *Transfer) touch() {
	t.UpdatedAt = time.Now().UTC()
}
