// Package apierr holds the HTTP-facing error taxonomy and response
// envelope shared by the api and api/handlers packages. Extracted to a
// leaf package, the same way ctxkeys is, to avoid an import cycle: the
// api package's router wires up api/handlers, so api/handlers can never
// import api back.
package apierr

import (
	"encoding/json"
	"net/http"

	"github.com/relaydocs/pagesync/internal/workspace"
)

// Kind is the cross-cutting, wire-stable error taxonomy the coordinator
// renders every failure into (spec §7, "Error kinds").
type Kind string

const (
	InvalidInput     Kind = "invalid_input"
	Unauthorized     Kind = "unauthorized"
	NotFound         Kind = "not_found"
	RateLimited      Kind = "rate_limited"
	Timeout          Kind = "timeout"
	WorkspaceError   Kind = "workspace_error"
	ValidationFailed Kind = "validation_failed"
	Internal         Kind = "internal"
)

// statusByKind maps each Kind to the HTTP status the coordinator writes
// (spec §7 table). ValidationFailed maps to 200: it is reported with
// hasErrors=true inside the payload, not as an HTTP error status.
var statusByKind = map[Kind]int{
	ValidationFailed: http.StatusOK,
	InvalidInput:   http.StatusBadRequest,
	Unauthorized:   http.StatusUnauthorized,
	NotFound:       http.StatusNotFound,
	RateLimited:    http.StatusTooManyRequests,
	Timeout:        http.StatusGatewayTimeout,
	WorkspaceError: http.StatusBadGateway,
	Internal:       http.StatusInternalServerError,
}

// StatusFor returns the HTTP status a Kind renders as.
func StatusFor(kind Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is the typed error handlers return up to the coordinator, which
// renders it into the envelope below and the matching HTTP status.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error carrying cause as its chained error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// FromWorkspace maps a workspace client failure into the coordinator's
// taxonomy (spec §7, "Propagation policy": every workspace failure is
// mapped before crossing into the coordinator).
func FromWorkspace(err error) *Error {
	werr, ok := workspace.AsWorkspaceError(err)
	if !ok {
		return Wrap(Internal, "unexpected error", err)
	}
	switch werr.Kind {
	case workspace.KindNotFound:
		return Wrap(NotFound, "target page not found in workspace", err)
	case workspace.KindAuthFailure:
		return Wrap(Unauthorized, "workspace rejected the configured bearer token", err)
	case workspace.KindRateLimited:
		return Wrap(RateLimited, "workspace rate limit exhausted its retries", err)
	case workspace.KindValidation:
		return Wrap(InvalidInput, "workspace rejected the request payload", err)
	default:
		return Wrap(WorkspaceError, "workspace operation failed", err)
	}
}

// Envelope is the response shape every endpoint returns (spec §6.1: "All
// endpoints return {"success","data","error"}").
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Body  `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Body is the error object nested in a failed Envelope.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteOK writes a 200 success envelope carrying data, optionally with
// non-fatal warnings (spec §7, "successful uploads with warnings return
// success=true plus a warnings[] array").
func WriteOK(w http.ResponseWriter, data any, warnings []string) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Warnings: warnings})
}

// WriteErr renders err into the response envelope and its matching
// status code. If err is not an *Error, it is treated as Internal.
func WriteErr(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*Error)
	if !ok {
		apiErr = Wrap(Internal, "unexpected error", err)
	}
	writeJSON(w, StatusFor(apiErr.Kind), Envelope{
		Success: false,
		Error:   &Body{Code: string(apiErr.Kind), Message: apiErr.Message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
