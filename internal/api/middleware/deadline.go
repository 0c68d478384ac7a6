package middleware

import (
	"context"
	"net/http"
	"time"
)

// defaultRequestTimeout bounds any request that isn't already governed
// by an upload job's own deadline (spec §4.3 computes job-specific
// deadlines itself; this is the backstop for everything else —
// validate, compare, database reads — so a stalled workspace call can't
// hang a request indefinitely).
const defaultRequestTimeout = 30 * time.Second

// Deadline attaches defaultRequestTimeout to the request context. It
// must not be mounted on the page-upload routes: those compute their
// own, much longer job deadline (spec §4.3's 180s/300s/480s ladder) and
// a parent context.WithTimeout here would silently cap them at 30s
// regardless, since a child deadline can only ever be tighter than its
// parent's.
func Deadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
