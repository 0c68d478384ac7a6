package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/relaydocs/pagesync/internal/config"
	"github.com/relaydocs/pagesync/internal/jobs"
)

func TestStatusHandler_Status_OmitsToken(t *testing.T) {
	cfg := config.Default()
	cfg.WorkspaceToken = "super-secret-token"
	snapshot := config.NewSnapshot(cfg)
	registry := jobs.NewRegistry(time.Minute)
	registry.Create("req-1", "page-1", time.Now().Add(time.Minute))

	h := NewStatusHandler(snapshot, registry)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	h.Status(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "super-secret-token") {
		t.Fatalf("response body leaked workspace token: %s", w.Body.String())
	}

	var decoded struct {
		Data struct {
			ActiveJobs int `json:"activeJobs"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Data.ActiveJobs != 1 {
		t.Errorf("activeJobs = %d, want 1", decoded.Data.ActiveJobs)
	}
}
