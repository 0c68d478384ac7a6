package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeadline_AttachesContextDeadline(t *testing.T) {
	var hasDeadline bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	})

	chain := Deadline(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	if !hasDeadline {
		t.Fatal("expected Deadline middleware to attach a context deadline")
	}
}
