package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brankond/Momentum/internal/gateway"
)

type memoryCache struct {
	entries map[string]gateway.CachedResponse
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]gateway.CachedResponse)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (*gateway.CachedResponse, error) {
	resp, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (c *memoryCache) Save(ctx context.Context, key string, response gateway.CachedResponse, ttl time.Duration) error {
	c.entries[key] = response
	return nil
}

func newTestHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusCreated)
		if _, err := w.Write([]byte(`{"transfer_id":"abc"}`)); err != nil {
			panic(err)
		}
	})
}

func doRequest(t *testing.T, handler http.Handler, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/transfers", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_ReplaysCachedResponse(t *testing.T) {
	cache := newMemoryCache()
	calls := 0
	handler := Idempotency(cache, time.Hour)(newTestHandler(&calls))

	first := doRequest(t, handler, "key-1", `{"amount":100}`)
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, 1, calls)

	second := doRequest(t, handler, "key-1", `{"amount":100}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))

	// The handler ran only once; the retry came from the cache.
	assert.Equal(t, 1, calls)
}

func TestIdempotency_DivergentBodyRejected(t *testing.T) {
	cache := newMemoryCache()
	calls := 0
	handler := Idempotency(cache, time.Hour)(newTestHandler(&calls))

	first := doRequest(t, handler, "key-1", `{"amount":100}`)
	require.Equal(t, http.StatusCreated, first.Code)

	conflict := doRequest(t, handler, "key-1", `{"amount":999}`)
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Contains(t, conflict.Body.String(), "idempotency key reused")
	assert.Equal(t, 1, calls)
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	cache := newMemoryCache()
	calls := 0
	handler := Idempotency(cache, time.Hour)(newTestHandler(&calls))

	doRequest(t, handler, "", `{"amount":100}`)
	doRequest(t, handler, "", `{"amount":100}`)

	assert.Equal(t, 2, calls)
	assert.Empty(t, cache.entries)
}

func TestIdempotency_ServerErrorsNotCached(t *testing.T) {
	cache := newMemoryCache()
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	handler := Idempotency(cache, time.Hour)(failing)

	rec := doRequest(t, handler, "key-1", `{"amount":100}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, cache.entries)
}
