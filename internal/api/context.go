package api

import (
	"context"

	"github.com/relaydocs/pagesync/internal/api/ctxkeys"
)

// WithRequestID adds the per-request correlation id to ctx (spec §4.5:
// every request binds to a new UploadJob keyed by this id).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return ctxkeys.WithValue(ctx, ctxkeys.RequestID, requestID)
}

// GetRequestID retrieves the request id injected by the request-id
// middleware.
func GetRequestID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(ctxkeys.RequestID).(string)
	if !ok || id == "" {
		return "", ErrMissingRequestID
	}
	return id, nil
}
