package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, env Envelope) []byte {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return body
}

func TestDecodeWalletCommand(t *testing.T) {
	correlation := uuid.New()
	payload := WalletCommandPayload{
		CommandID:        uuid.New(),
		TransferID:       uuid.New(),
		WalletID:         uuid.New(),
		AmountMinorUnits: 500,
		Currency:         "USD",
		Reference:        "tr-001",
	}
	env, err := NewEnvelope(TypeWalletDebitCommand, correlation, payload.CommandID, payload)
	require.NoError(t, err)

	decodedEnv, decoded, err := DecodeWalletCommand(encode(t, env))
	require.NoError(t, err)
	assert.Equal(t, correlation, decodedEnv.CorrelationID)
	assert.Equal(t, PayloadVersion, decodedEnv.PayloadVersion)
	assert.Equal(t, payload.CommandID, decoded.CommandID)
	assert.Equal(t, int64(500), decoded.AmountMinorUnits)
}

func TestDecodeWalletCommandRejectsUnknownType(t *testing.T) {
	env, err := NewEnvelope("wallet.freeze.command", uuid.New(), uuid.New(), WalletCommandPayload{})
	require.NoError(t, err)

	_, _, err = DecodeWalletCommand(encode(t, env))
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	// Result messages are not commands either.
	env, err = NewEnvelope(TypeWalletTransactionResult, uuid.New(), uuid.New(), WalletResultPayload{})
	require.NoError(t, err)
	_, _, err = DecodeWalletCommand(encode(t, env))
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestDecodeWalletResultRejectsUnknownStatus(t *testing.T) {
	payload := WalletResultPayload{
		CommandID:  uuid.New(),
		TransferID: uuid.New(),
		WalletID:   uuid.New(),
		Type:       ResultDebit,
		Status:     "MAYBE",
		Reference:  "tr-001",
	}
	env, err := NewEnvelope(TypeWalletTransactionResult, uuid.New(), uuid.New(), payload)
	require.NoError(t, err)

	_, _, err = DecodeWalletResult(encode(t, env))
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestDecodeTransferEvent(t *testing.T) {
	payload := TransferEventPayload{
		TransferID:       uuid.New(),
		SourceWalletID:   uuid.New(),
		AmountMinorUnits: 500,
		Currency:         "USD",
		Reference:        "tr-001",
		FailureStage:     "CREDIT",
		FailureReason:    "wallet is not active",
	}
	env, err := NewEnvelope(TypeTransferFailed, uuid.New(), payload.TransferID, payload)
	require.NoError(t, err)

	_, decoded, err := DecodeTransferEvent(encode(t, env))
	require.NoError(t, err)
	assert.Equal(t, "wallet is not active", decoded.FailureReason)

	env, err = NewEnvelope("transfer.archived", uuid.New(), uuid.New(), payload)
	require.NoError(t, err)
	_, _, err = DecodeTransferEvent(encode(t, env))
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestDecodeRejectsMalformedBody(t *testing.T) {
	_, _, err := DecodeWalletCommand([]byte("not json"))
	assert.Error(t, err)
}
