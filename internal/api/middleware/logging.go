// Package middleware holds pagesync's chi middleware: structured
// request logging, Prometheus instrumentation, and a per-request
// deadline for the routes outside the upload job timeout ladder (the
// upload routes set their own ladder deadline; spec §4.3, §4.9).
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/relaydocs/pagesync/internal/logging"
)

// RequestLogger logs one structured line per request using zerolog,
// carrying the chi request id and route pattern (grounded on the
// teacher's use of chi/v5/middleware.Logger, swapped for zerolog the
// way the rest of pagesync logs).
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		reqID := middleware.GetReqID(r.Context())
		logging.WithRequestID(reqID).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Int("bytes", ww.BytesWritten()).
			Msg("http_request")
	})
}
