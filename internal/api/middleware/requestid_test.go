package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/relaydocs/pagesync/internal/api/ctxkeys"
)

func TestBindJobRequestID_ReusesChiRequestID(t *testing.T) {
	var observed string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observed, _ = r.Context().Value(ctxkeys.RequestID).(string)
	})

	chain := chimw.RequestID(BindJobRequestID(inner))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	if observed == "" {
		t.Fatal("expected ctxkeys.RequestID to be populated")
	}
}

func TestBindJobRequestID_MintsIDWhenChiAbsent(t *testing.T) {
	var observed string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observed, _ = r.Context().Value(ctxkeys.RequestID).(string)
	})

	chain := BindJobRequestID(inner)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	if observed == "" {
		t.Fatal("expected a minted request id when chi's middleware did not run first")
	}
}
