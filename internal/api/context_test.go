package api

import (
	"context"
	"errors"
	"testing"
)

func TestWithRequestIDAndGetRequestID_Success(t *testing.T) {
	t.Parallel()

	ctx := WithRequestID(context.Background(), "req-123")
	got, err := GetRequestID(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "req-123" {
		t.Fatalf("expected req-123, got %q", got)
	}
}

func TestGetRequestID_Missing_ReturnsExpectedError(t *testing.T) {
	t.Parallel()

	_, err := GetRequestID(context.Background())
	if !errors.Is(err, ErrMissingRequestID) {
		t.Fatalf("expected ErrMissingRequestID, got %v", err)
	}
}

func TestGetRequestID_EmptyValue_ReturnsExpectedError(t *testing.T) {
	t.Parallel()

	ctx := WithRequestID(context.Background(), "")
	_, err := GetRequestID(ctx)
	if !errors.Is(err, ErrMissingRequestID) {
		t.Fatalf("expected ErrMissingRequestID, got %v", err)
	}
}
