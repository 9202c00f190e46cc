package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const TypeWalletTransactionResult = "wallet.transaction.result"

type ResultType string

const (
	ResultDebit  ResultType = "DEBIT"
	ResultCredit ResultType = "CREDIT"
)

type ResultStatus string

const (
	ResultSucceeded ResultStatus = "SUCCEEDED"
	ResultFailed    ResultStatus = "FAILED"
)

// WalletResultPayload reports the outcome of one wallet command back
// to the orchestrator. RunningBalanceMinorUnits is only present on
// success.
type WalletResultPayload struct {
	CommandID                uuid.UUID    `json:"commandId"`
	TransferID               uuid.UUID    `json:"transferId"`
	WalletID                 uuid.UUID    `json:"walletId"`
	Type                     ResultType   `json:"type"`
	Status                   ResultStatus `json:"status"`
	AmountMinorUnits         int64        `json:"amountMinorUnits"`
	RunningBalanceMinorUnits *int64       `json:"runningBalanceMinorUnits,omitempty"`
	Reference                string       `json:"reference"`
	FailureReason            string       `json:"failureReason,omitempty"`
}

// DecodeWalletResult parses a wallet result message, rejecting every
// other message type.
func DecodeWalletResult(body []byte) (Envelope, WalletResultPayload, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return Envelope{}, WalletResultPayload{}, err
	}

	if env.MessageType != TypeWalletTransactionResult {
		return Envelope{}, WalletResultPayload{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.MessageType)
	}

	var payload WalletResultPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return Envelope{}, WalletResultPayload{}, fmt.Errorf("%w: decode wallet result payload: %v", ErrMalformedMessage, err)
	}

	switch payload.Status {
	case ResultSucceeded, ResultFailed:
	default:
		return Envelope{}, WalletResultPayload{}, fmt.Errorf("%w: result status %q", ErrUnknownMessageType, payload.Status)
	}
	return env, payload, nil
}
