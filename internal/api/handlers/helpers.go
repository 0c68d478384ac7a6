// Package handlers holds the HTTP handlers for pagesync's request
// coordinator (spec §4.5). Handlers never talk to ctxkeys' sibling
// package api directly — api wires handlers up, so the reverse import
// would cycle — context keys are read straight off ctxkeys instead.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/relaydocs/pagesync/internal/api/apierr"
	"github.com/relaydocs/pagesync/internal/api/ctxkeys"
)

const paramID = "id"

// chiURLParamID reads the {id} path parameter shared by every
// resource-by-id route.
func chiURLParamID(r *http.Request) string {
	return chi.URLParam(r, paramID)
}

// requestIDFrom reads the per-request correlation id the request-id
// middleware attaches to ctx (spec §4.5; mirrors the teacher's
// getWorkspaceID(ctx) pattern, generalized to pagesync's single-tenant
// context key).
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxkeys.RequestID).(string)
	return id
}

// decodeBody decodes r's JSON body into dst, writing a 400 invalid_input
// envelope and returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierr.WriteErr(w, apierr.Wrap(apierr.InvalidInput, "invalid request body", err))
		return false
	}
	return true
}

// requireNonEmpty writes a 400 invalid_input envelope and returns false
// when val is empty — used to validate required request fields before
// doing any work.
func requireNonEmpty(w http.ResponseWriter, val, fieldName string) bool {
	if val != "" {
		return true
	}
	apierr.WriteErr(w, apierr.New(apierr.InvalidInput, fieldName+" is required"))
	return false
}
