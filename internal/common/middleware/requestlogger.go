// Package middleware provides HTTP middleware for the fake TMDB API: request logging
// correlated by login attempt, and panic recovery.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tmdbauth/internal/common/httpclient"
	"github.com/tansive/tmdbauth/internal/common/httpx"
	"github.com/tansive/tmdbauth/internal/common/logtrace"
)

// RequestLogger logs every request with the caller's attempt ID, if sent, and stores a
// request-scoped logger in the context. Query strings are not logged; they carry the
// API key and the password.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		attemptID := r.Header.Get(httpclient.AttemptIDHeader)
		logger := log.With().Str("method", r.Method).Str("path", r.URL.Path)
		if attemptID != "" {
			ctx = logtrace.WithAttemptID(ctx, attemptID)
			logger = logger.Str("attempt_id", attemptID)
		}
		ctx = logger.Logger().WithContext(ctx)

		rw := httpx.NewResponseWriter(w)
		defer func() {
			log.Ctx(ctx).Info().
				Int("status", rw.Status()).
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}
