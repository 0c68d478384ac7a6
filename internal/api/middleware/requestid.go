package middleware

import (
	"net/http"

	"github.com/google/uuid"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/relaydocs/pagesync/internal/api/ctxkeys"
)

// BindJobRequestID injects pagesync's own request-id (spec §4.5: "every
// request binds to a new UploadJob keyed by this id") into the context
// under ctxkeys.RequestID. It reuses chi's own request id when present
// rather than minting a second, unrelated identifier; chi's
// middleware.RequestID must run before this one.
func BindJobRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimw.GetReqID(r.Context())
		if id == "" {
			id = uuid.NewString()
		}
		ctx := ctxkeys.WithValue(r.Context(), ctxkeys.RequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
