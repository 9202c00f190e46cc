package gateway

import (
	"context"
	"time"
)

// MessagePublisher sends a message body to a topic exchange. The body
// is serialized by the implementation.
type MessagePublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// CachedResponse is what the HTTP idempotency middleware stores per
// Idempotency-Key: the original response plus a hash of the request
// body so divergent retries can be refused.
type CachedResponse struct {
	StatusCode  int
	Body        []byte
	RequestHash string
}

// ResponseCache stores idempotent HTTP responses with a TTL.
type ResponseCache interface {
	// Get returns (nil, nil) on a cache miss.
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Save(ctx context.Context, key string, response CachedResponse, ttl time.Duration) error
}
