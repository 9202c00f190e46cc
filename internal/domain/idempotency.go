package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord pins an externally supplied idempotency key to the
// transfer it first created, plus a hash of the canonicalized request.
// A retry with the same key and hash returns the original transfer; a
// retry with a different hash is a client error.
type IdempotencyRecord struct {
	Key         string
	TransferID  uuid.UUID
	RequestHash string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
