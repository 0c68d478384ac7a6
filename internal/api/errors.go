package api

import "errors"

// ErrMissingRequestID is returned when request_id is missing from context,
// which only happens if a handler runs outside the request-id middleware.
var ErrMissingRequestID = errors.New("missing request_id in context")
