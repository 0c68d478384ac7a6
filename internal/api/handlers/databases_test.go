package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestDatabaseHandler_Retrieve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/databases/") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"title":[{"plain_text":"Docs"}],"properties":{"Name":{"type":"title"}}}`))
	}))
	defer srv.Close()

	h := NewDatabaseHandler(newTestClient(t, srv))

	r := chi.NewRouter()
	r.Get("/api/databases/{id}", h.Retrieve)

	req := httptest.NewRequest(http.MethodGet, "/api/databases/db-123", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestDatabaseHandler_Retrieve_MissingID(t *testing.T) {
	h := NewDatabaseHandler(nil)
	r := chi.NewRouter()
	r.Get("/api/databases/{id}", h.Retrieve)

	req := httptest.NewRequest(http.MethodGet, "/api/databases/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound && w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 or 404 for missing id, got %d", w.Code)
	}
}

func TestDatabaseHandler_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/query") {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"results":[{"id":"row-1"}],"has_more":false,"next_cursor":null}`))
	}))
	defer srv.Close()

	h := NewDatabaseHandler(newTestClient(t, srv))
	r := chi.NewRouter()
	r.Post("/api/databases/{id}/query", h.Query)

	body := strings.NewReader(`{"filter":{"property":"Status","select":{"equals":"Done"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/databases/db-123/query", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var decoded struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Data.Count != 1 {
		t.Errorf("count = %d, want 1", decoded.Data.Count)
	}
}
