package handlers

import (
	"net/http"

	"github.com/relaydocs/pagesync/internal/api/apierr"
	"github.com/relaydocs/pagesync/internal/workspace"
)

// DatabaseHandler serves the database read endpoints (spec §6.1, GET
// /api/databases/{id}, POST /api/databases/{id}/query).
type DatabaseHandler struct {
	client *workspace.Client
}

// NewDatabaseHandler builds a DatabaseHandler.
func NewDatabaseHandler(client *workspace.Client) *DatabaseHandler {
	return &DatabaseHandler{client: client}
}

// Retrieve implements GET /api/databases/{id}.
func (h *DatabaseHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	dbID := chiURLParamID(r)
	if !requireNonEmpty(w, dbID, "id") {
		return
	}
	props, err := h.client.RetrieveDatabase(r.Context(), dbID)
	if err != nil {
		apierr.WriteErr(w, apierr.FromWorkspace(err))
		return
	}
	apierr.WriteOK(w, map[string]any{"databaseId": dbID, "properties": props}, nil)
}

// QueryRequest is the body of POST /api/databases/{id}/query.
type QueryRequest struct {
	Filter any    `json:"filter,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

// Query implements POST /api/databases/{id}/query.
func (h *DatabaseHandler) Query(w http.ResponseWriter, r *http.Request) {
	dbID := chiURLParamID(r)
	if !requireNonEmpty(w, dbID, "id") {
		return
	}
	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.client.QueryDatabase(r.Context(), dbID, req.Filter, req.Cursor)
	if err != nil {
		apierr.WriteErr(w, apierr.FromWorkspace(err))
		return
	}
	apierr.WriteOK(w, map[string]any{
		"results":    res.Results,
		"hasMore":    res.HasMore,
		"nextCursor": res.NextCursor,
		"count":      len(res.Results),
	}, nil)
}
