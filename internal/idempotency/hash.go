// Package idempotency canonicalizes transfer requests and hashes them
// so retried requests can be told apart from divergent reuse of the
// same idempotency key.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// canonicalRequest fixes the field order of the hashed representation.
// Map keys are sorted by encoding/json, so equal requests always
// produce equal hashes regardless of wire formatting.
type canonicalRequest struct {
	SourceWalletID      uuid.UUID      `json:"sourceWalletId"`
	DestinationWalletID uuid.UUID      `json:"destinationWalletId"`
	AmountMinorUnits    int64          `json:"amountMinorUnits"`
	Currency            string         `json:"currency"`
	Reference           string         `json:"reference"`
	Description         string         `json:"description"`
	Metadata            map[string]any `json:"metadata"`
}

// HashRequest returns the hex SHA-256 of the canonicalized transfer
// request.
func HashRequest(sourceWalletID, destinationWalletID uuid.UUID, amountMinorUnits int64, currency, reference, description string, metadata map[string]any) (string, error) {
	canonical := canonicalRequest{
		SourceWalletID:      sourceWalletID,
		DestinationWalletID: destinationWalletID,
		AmountMinorUnits:    amountMinorUnits,
		Currency:            currency,
		Reference:           reference,
		Description:         description,
		Metadata:            metadata,
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("canonicalize transfer request: %w", err)
	}
	return HashBody(raw), nil
}

// HashBody returns the hex SHA-256 of raw bytes. Used by the HTTP
// idempotency middleware to fingerprint request bodies.
func HashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
