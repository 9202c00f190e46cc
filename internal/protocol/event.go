package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transfer lifecycle event types published for downstream consumers
// such as the audit worker.
const (
	TypeTransferCompleted             = "transfer.completed"
	TypeTransferFailed                = "transfer.failed"
	TypeTransferCompensationRequested = "transfer.compensation.requested"
)

// TransferEventPayload carries the transfer snapshot shared by every
// lifecycle event, plus the event-specific completion or failure
// fields.
type TransferEventPayload struct {
	TransferID          uuid.UUID      `json:"transferId"`
	SourceWalletID      uuid.UUID      `json:"sourceWalletId"`
	DestinationWalletID uuid.UUID      `json:"destinationWalletId"`
	AmountMinorUnits    int64          `json:"amountMinorUnits"`
	Currency            string         `json:"currency"`
	Reference           string         `json:"reference"`
	Description         string         `json:"description,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	CompletedAt         *time.Time     `json:"completedAt,omitempty"`
	FailureStage        string         `json:"failureStage,omitempty"`
	FailureReason       string         `json:"failureReason,omitempty"`
}

// DecodeTransferEvent parses a transfer lifecycle event, rejecting
// message types outside the closed event set.
func DecodeTransferEvent(body []byte) (Envelope, TransferEventPayload, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return Envelope{}, TransferEventPayload{}, err
	}

	switch env.MessageType {
	case TypeTransferCompleted, TypeTransferFailed, TypeTransferCompensationRequested:
	default:
		return Envelope{}, TransferEventPayload{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.MessageType)
	}

	var payload TransferEventPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return Envelope{}, TransferEventPayload{}, fmt.Errorf("%w: decode transfer event payload: %v", ErrMalformedMessage, err)
	}
	return env, payload, nil
}
