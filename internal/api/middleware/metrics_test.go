package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMetrics_PassesThroughAndResolvesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.With(Metrics).Get("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRoutePattern_FallsBackToURLPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/unmatched/path", nil)
	if got := routePattern(req); got != "/unmatched/path" {
		t.Errorf("routePattern() = %q, want %q", got, "/unmatched/path")
	}
}
