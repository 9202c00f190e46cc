// Package protocol defines the versioned message envelopes exchanged
// between the transfer and wallet services. Message type sets are
// closed: decoding rejects unknown types instead of guessing.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const PayloadVersion = "1.0.0"

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMalformedMessage   = errors.New("malformed message")
)

// IsDecodeFailure reports whether err means the message bytes can
// never be understood, so redelivering them is pointless.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrUnknownMessageType)
}

// Envelope is the shared shape of every command, result and event
// message. CorrelationID is the transfer's correlation id, constant
// across the whole saga; CausationID links a message to the one that
// produced it.
type Envelope struct {
	MessageID      uuid.UUID       `json:"messageId"`
	OccurredAt     time.Time       `json:"occurredAt"`
	CorrelationID  uuid.UUID       `json:"correlationId"`
	CausationID    uuid.UUID       `json:"causationId"`
	MessageType    string          `json:"messageType"`
	PayloadVersion string          `json:"payloadVersion"`
	Payload        json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload in a fresh envelope with a random
// message id and the current payload version.
func NewEnvelope(messageType string, correlationID, causationID uuid.UUID, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", messageType, err)
	}
	return Envelope{
		MessageID:      uuid.New(),
		OccurredAt:     time.Now().UTC(),
		CorrelationID:  correlationID,
		CausationID:    causationID,
		MessageType:    messageType,
		PayloadVersion: PayloadVersion,
		Payload:        raw,
	}, nil
}

func decodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: decode envelope: %v", ErrMalformedMessage, err)
	}
	return env, nil
}
