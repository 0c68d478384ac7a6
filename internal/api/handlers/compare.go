package handlers

import (
	"net/http"

	"github.com/relaydocs/pagesync/internal/api/apierr"
	"github.com/relaydocs/pagesync/internal/config"
	"github.com/relaydocs/pagesync/internal/validator"
	"github.com/relaydocs/pagesync/internal/workspace"
)

// CompareHandler serves the coverage-comparison endpoints (spec §6.1,
// POST /api/compare/notion-page, POST /api/compare/notion-db-row, GET
// /api/compare/health).
type CompareHandler struct {
	client *workspace.Client
	cfg    *config.Snapshot
}

// NewCompareHandler builds a CompareHandler.
func NewCompareHandler(client *workspace.Client, cfg *config.Snapshot) *CompareHandler {
	return &CompareHandler{client: client, cfg: cfg}
}

// CompareRequest is the body of POST /api/compare/notion-page and POST
// /api/compare/notion-db-row.
type CompareRequest struct {
	PageID  string `json:"pageId"`
	SrcText string `json:"srcText"`
	Options struct {
		MinMissingSpanTokens int `json:"minMissingSpanTokens,omitempty"`
	} `json:"options,omitempty"`
}

func (h *CompareHandler) compareOptions() validator.Options {
	cfg := h.cfg.Get()
	return validator.Options{
		CoverageThreshold: cfg.CoverageThreshold,
		MaxMissingSpans:   cfg.MaxMissingSpans,
		GroupMax:          cfg.GroupMax,
		LevRatio:          cfg.LevRatio,
		TokenOverlap:      cfg.TokenOverlap,
		FuzzyThreshold:    cfg.FuzzyThreshold,
		InversionWarn:     cfg.InversionWarn,
		Tolerances:        validator.DefaultTolerances(),
	}
}

// NotionPage implements POST /api/compare/notion-page: fetch pageId's
// current children and compute a text-coverage report against srcText.
func (h *CompareHandler) NotionPage(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireNonEmpty(w, req.PageID, "pageId") || !requireNonEmpty(w, req.SrcText, "srcText") {
		return
	}

	children, err := fetchChildren(r.Context(), h.client, req.PageID)
	if err != nil {
		apierr.WriteErr(w, apierr.FromWorkspace(err))
		return
	}

	report := validator.CompareText(req.SrcText, children, h.compareOptions())
	apierr.WriteOK(w, toReportDTO(report), report.Warnings)
}

// NotionDBRow implements POST /api/compare/notion-db-row: same
// comparison as NotionPage, plus a best-effort write of the coverage
// result back onto the page's properties.
func (h *CompareHandler) NotionDBRow(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireNonEmpty(w, req.PageID, "pageId") || !requireNonEmpty(w, req.SrcText, "srcText") {
		return
	}

	ctx := r.Context()
	children, err := fetchChildren(ctx, h.client, req.PageID)
	if err != nil {
		apierr.WriteErr(w, apierr.FromWorkspace(err))
		return
	}

	report := validator.CompareText(req.SrcText, children, h.compareOptions())

	updated := true
	props := map[string]any{"pagesync_coverage": map[string]any{"number": report.Coverage}}
	if err := h.client.UpdatePageProperties(ctx, req.PageID, props); err != nil {
		updated = false
	}

	apierr.WriteOK(w, map[string]any{"report": toReportDTO(report), "updated": updated}, report.Warnings)
}

// Health implements GET /api/compare/health: the validator is a pure
// in-process function, so readiness is always true once the process is
// up — this endpoint exists for symmetry with health probes that expect
// a per-subsystem check.
func (h *CompareHandler) Health(w http.ResponseWriter, _ *http.Request) {
	apierr.WriteOK(w, map[string]any{"status": "ok", "version": "1"}, nil)
}
