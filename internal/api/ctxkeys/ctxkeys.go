// Package ctxkeys holds shared context keys for the API layer.
// Extracted to a leaf package to avoid import cycles between api and api/handlers.
package ctxkeys

import "context"

// Key is the named type for all API context keys. Using a named type
// avoids collisions with plain string keys from other packages at
// runtime (context.Value compares both type and value).
type Key string

const (
	// RequestID is the context key for the per-request correlation id
	// (spec §4.5: every request binds to a new UploadJob keyed by this id).
	RequestID Key = "request_id"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}
