package ctxkeys

import (
	"context"
	"testing"
)

func TestWithValue_SetsAndGetsTypedKey(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), RequestID, "req-999")
	got, ok := ctx.Value(RequestID).(string)
	if !ok {
		t.Fatalf("expected string value")
	}
	if got != "req-999" {
		t.Fatalf("expected req-999, got %q", got)
	}
}
