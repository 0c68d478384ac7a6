package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
)

func jsonMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func errUnknownBlockKind(kind BlockKind) error {
	return fmt.Errorf("workspace: unknown block kind %q", kind)
}

// Kind is the cross-cutting error taxonomy every workspace client failure
// is mapped into before crossing the client's boundary (spec §4.1,
// "Error taxonomy"; spec §7, "Propagation policy").
type Kind string

const (
	KindTransient         Kind = "transient"
	KindRateLimited       Kind = "rate_limited"
	KindNotFound          Kind = "not_found"
	KindConflictRetryable Kind = "conflict_retryable"
	KindValidation        Kind = "validation"
	KindAuthFailure       Kind = "auth_failure"
	KindPermanent         Kind = "permanent"
)

// Error is the typed error every workspace operation returns on failure.
// Callers (the orchestrator, the request coordinator) branch on Kind
// rather than inspecting HTTP status codes directly.
type Error struct {
	Kind       Kind
	Op         string // operation name, e.g. "appendChildren"
	StatusCode int
	RetryAfter float64 // seconds; only meaningful when Kind == KindRateLimited
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("workspace: %s: %s (%s): %v", e.Op, e.Message, e.Kind, e.Cause)
	}
	return fmt.Sprintf("workspace: %s: %s (%s)", e.Op, e.Message, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// retryable reports whether the retry policy (spec §4.1, "Retry policy")
// should attempt this operation again.
func (e *Error) retryable() bool {
	switch e.Kind {
	case KindTransient, KindConflictRetryable, KindRateLimited:
		return true
	default:
		return false
	}
}

// AsWorkspaceError unwraps err into a *Error, if any exists in its chain.
func AsWorkspaceError(err error) (*Error, bool) {
	var werr *Error
	if errors.As(err, &werr) {
		return werr, true
	}
	return nil, false
}
