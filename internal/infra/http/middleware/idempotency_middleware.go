package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Brankond/Momentum/internal/gateway"
	"github.com/Brankond/Momentum/internal/idempotency"
)

// responseRecorder captures what the handler writes so the response
// can be replayed for retries of the same idempotency key.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency replays the cached response for a repeated
// Idempotency-Key. A retry whose body hash differs from the original
// request is refused with 409 instead of silently returning a response
// that belongs to different parameters.
func Idempotency(cache gateway.ResponseCache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			requestHash := idempotency.HashBody(body)

			cached, err := cache.Get(ctx, key)
			if err != nil {
				// Fail open: a cache outage must not take the API down.
				log.Error().Err(err).Msg("failed to look up idempotency key")
				next.ServeHTTP(w, r)
				return
			}

			if cached != nil {
				if cached.RequestHash != requestHash {
					log.Warn().Str("key", key).Msg("idempotency key reused with a different body")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusConflict)
					if _, err := w.Write([]byte(`{"error":"idempotency key reused with a different request"}`)); err != nil {
						log.Error().Err(err).Msg("failed to write conflict response")
					}
					return
				}

				log.Info().Str("key", key).Msg("idempotency cache hit")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Hit", "true")
				w.WriteHeader(cached.StatusCode)
				if _, err := w.Write(cached.Body); err != nil {
					log.Error().Err(err).Msg("failed to write cached response")
				}
				return
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}

			next.ServeHTTP(recorder, r)

			// 5xx responses stay uncached so the client can retry.
			if recorder.statusCode < 500 {
				err := cache.Save(ctx, key, gateway.CachedResponse{
					StatusCode:  recorder.statusCode,
					Body:        recorder.body.Bytes(),
					RequestHash: requestHash,
				}, ttl)
				if err != nil {
					log.Error().Err(err).Msg("failed to save idempotency key")
				}
			}
		})
	}
}
