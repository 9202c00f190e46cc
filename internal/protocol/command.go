package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Wallet command message types. Reversals travel as credit commands
// against the source wallet; the reversal kind only exists on the
// orchestrator side.
const (
	TypeWalletDebitCommand  = "wallet.debit.command"
	TypeWalletCreditCommand = "wallet.credit.command"
)

// WalletCommandPayload asks the ledger participant to move money on a
// single wallet. Reference is the dedupe key on the wallet side.
type WalletCommandPayload struct {
	CommandID        uuid.UUID      `json:"commandId"`
	TransferID       uuid.UUID      `json:"transferId"`
	WalletID         uuid.UUID      `json:"walletId"`
	AmountMinorUnits int64          `json:"amountMinorUnits"`
	Currency         string         `json:"currency"`
	Reference        string         `json:"reference"`
	Description      string         `json:"description,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// DecodeWalletCommand parses a wallet command message, rejecting any
// message type outside the closed command set.
func DecodeWalletCommand(body []byte) (Envelope, WalletCommandPayload, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return Envelope{}, WalletCommandPayload{}, err
	}

	switch env.MessageType {
	case TypeWalletDebitCommand, TypeWalletCreditCommand:
	default:
		return Envelope{}, WalletCommandPayload{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.MessageType)
	}

	var payload WalletCommandPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return Envelope{}, WalletCommandPayload{}, fmt.Errorf("%w: decode wallet command payload: %v", ErrMalformedMessage, err)
	}
	return env, payload, nil
}
