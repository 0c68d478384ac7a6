package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/relaydocs/pagesync/internal/config"
	"github.com/relaydocs/pagesync/internal/jobs"
	"github.com/relaydocs/pagesync/internal/upload"
	"github.com/relaydocs/pagesync/internal/workspace"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := workspace.DefaultClientConfig("test-token")
	cfg.ReqPerSec = 1000
	client := workspace.New(cfg)
	registry := jobs.NewRegistry(10 * time.Minute)
	orchestrator := upload.New(client, registry, nil, upload.DefaultOptions())
	snapshot := config.NewSnapshot(config.Default())
	return NewRouter(client, orchestrator, registry, nil, snapshot)
}

func TestNewRouter_HealthEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 from /api/health, got %d", w.Code)
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "pagesync_") {
		t.Errorf("expected /metrics body to contain pagesync collectors, got %q", w.Body.String())
	}
}

func TestNewRouter_StatusEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 from /api/status, got %d", w.Code)
	}
}

func TestNewRouter_UnknownRoute_NotFound(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestNewRouter_JobNotFound(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", w.Code)
	}
}
