package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relaydocs/pagesync/internal/config"
)

func TestAdminHandler_ReloadConfig(t *testing.T) {
	t.Setenv("WORKSPACE_TOKEN", "reload-token")
	t.Setenv("LOG_LEVEL", "debug")

	snapshot := config.NewSnapshot(config.Default())
	h := NewAdminHandler(snapshot)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/config/reload", nil)
	w := httptest.NewRecorder()
	h.ReloadConfig(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if snapshot.Get().LogLevel != "debug" {
		t.Errorf("LogLevel after reload = %q, want %q", snapshot.Get().LogLevel, "debug")
	}
}

func TestAdminHandler_ReloadConfig_MissingToken(t *testing.T) {
	t.Setenv("WORKSPACE_TOKEN", "")

	snapshot := config.NewSnapshot(config.Default())
	h := NewAdminHandler(snapshot)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/config/reload", nil)
	w := httptest.NewRecorder()
	h.ReloadConfig(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
	}
}
