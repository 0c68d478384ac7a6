package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/relaydocs/pagesync/internal/config"
	"github.com/relaydocs/pagesync/internal/jobs"
	"github.com/relaydocs/pagesync/internal/upload"
)

func newPagesFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/pages":
			_, _ = w.Write([]byte(`{"id":"page-new","url":"https://example.com/page-new"}`))
		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/pages/"):
			_, _ = w.Write([]byte(`{"id":"page-existing"}`))
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/children"):
			_, _ = w.Write([]byte(`{"results":[],"has_more":false}`))
		case r.Method == http.MethodPatch && strings.Contains(r.URL.Path, "/children"):
			_, _ = w.Write([]byte(`{"results":[{"id":"block-1"},{"id":"block-2"}]}`))
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/blocks/"):
			_, _ = w.Write([]byte(`{"archived":true}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
}

func newPageHandlerFixture(t *testing.T) *PageHandler {
	t.Helper()
	srv := newPagesFakeServer(t)
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv)
	registry := jobs.NewRegistry(time.Minute)
	orchestrator := upload.New(client, registry, nil, upload.DefaultOptions())
	snapshot := config.NewSnapshot(config.Default())
	return NewPageHandler(client, orchestrator, snapshot)
}

const sampleHTML = `<h1>Title</h1><p>Hello world, this is a paragraph.</p>`

func TestPageHandler_CreatePage_DryRun(t *testing.T) {
	h := newPageHandlerFixture(t)

	body := strings.NewReader(`{"contentHtml":"` + sampleHTML + `","dryRun":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/pages", body)
	w := httptest.NewRecorder()
	h.CreatePage(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var decoded struct {
		Data CreatePageResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Data.DryRun {
		t.Errorf("expected dryRun=true in response")
	}
	if decoded.Data.PageID != "" {
		t.Errorf("dry run should not create a page, got pageId %q", decoded.Data.PageID)
	}
}

func TestPageHandler_CreatePage_MissingDatabaseID(t *testing.T) {
	h := newPageHandlerFixture(t)

	body := strings.NewReader(`{"contentHtml":"` + sampleHTML + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/pages", body)
	w := httptest.NewRecorder()
	h.CreatePage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
	}
}

func TestPageHandler_CreatePage_Full(t *testing.T) {
	h := newPageHandlerFixture(t)

	reqBody := `{"contentHtml":"` + sampleHTML + `","databaseId":"db-1","title":"My Page"}`
	req := httptest.NewRequest(http.MethodPost, "/api/pages", strings.NewReader(reqBody))
	w := httptest.NewRecorder()
	h.CreatePage(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var decoded struct {
		Data CreatePageResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Data.PageID != "page-new" {
		t.Errorf("pageId = %q, want %q", decoded.Data.PageID, "page-new")
	}
}

func mountPageRoutes(h *PageHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/pages", h.CreatePage)
	r.Patch("/api/pages/{id}", h.ReplacePageContent)
	r.Post("/api/pages/{id}:appendChildren", h.AppendChildren)
	return r
}

func TestPageHandler_ReplacePageContent(t *testing.T) {
	h := newPageHandlerFixture(t)
	router := mountPageRoutes(h)

	body := strings.NewReader(`{"contentHtml":"` + sampleHTML + `"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/pages/page-existing", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var decoded struct {
		Data ReplacePageContentResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Data.AppendedCount == 0 {
		t.Errorf("expected appendedCount > 0")
	}
}

func TestPageHandler_AppendChildren(t *testing.T) {
	h := newPageHandlerFixture(t)
	router := mountPageRoutes(h)

	body := strings.NewReader(`{"children":[{"kind":"paragraph","richText":[{"text":"hi"}]}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/pages/page-existing:appendChildren", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var decoded struct {
		Data AppendChildrenResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Data.AppendedCount != 1 {
		t.Errorf("appendedCount = %d, want 1", decoded.Data.AppendedCount)
	}
}

func TestPageHandler_AppendChildren_EmptyChildren(t *testing.T) {
	h := newPageHandlerFixture(t)
	router := mountPageRoutes(h)

	req := httptest.NewRequest(http.MethodPost, "/api/pages/page-existing:appendChildren", strings.NewReader(`{"children":[]}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// TestPageHandler_ReplacePageContent_PageDeleted covers the case where the
// workspace record behind a page has been deleted out from under the
// caller: the purge's child listing returns object_not_found, and the
// response must surface success=false with kind not_found rather than a
// generic workspace_error, without ever reaching the upload step.
func TestPageHandler_ReplacePageContent_PageDeleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/children"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"object_not_found","message":"page has been deleted"}`))
		case r.Method == http.MethodPatch && strings.Contains(r.URL.Path, "/children"):
			t.Fatal("upload must not proceed once the page lookup reports object_not_found")
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	registry := jobs.NewRegistry(time.Minute)
	orchestrator := upload.New(client, registry, nil, upload.DefaultOptions())
	snapshot := config.NewSnapshot(config.Default())
	h := NewPageHandler(client, orchestrator, snapshot)
	router := mountPageRoutes(h)

	body := strings.NewReader(`{"contentHtml":"` + sampleHTML + `"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/pages/deleted-page", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", w.Code, w.Body.String())
	}

	var decoded struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Success {
		t.Error("expected success=false")
	}
	if decoded.Error.Code != "not_found" {
		t.Errorf("error.code = %q, want %q", decoded.Error.Code, "not_found")
	}
}
