package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relaydocs/pagesync/internal/api/apierr"
	"github.com/relaydocs/pagesync/internal/blocktree"
	"github.com/relaydocs/pagesync/internal/config"
	"github.com/relaydocs/pagesync/internal/upload"
	"github.com/relaydocs/pagesync/internal/validator"
	"github.com/relaydocs/pagesync/internal/workspace"
)

// PageHandler serves the page-lifecycle endpoints (spec §6.1: POST
// /api/pages, PATCH /api/pages/{id}, POST
// /api/pages/{id}:appendChildren).
type PageHandler struct {
	client       *workspace.Client
	orchestrator *upload.Orchestrator
	cfg          *config.Snapshot
}

// NewPageHandler builds a PageHandler.
func NewPageHandler(client *workspace.Client, orchestrator *upload.Orchestrator, cfg *config.Snapshot) *PageHandler {
	return &PageHandler{client: client, orchestrator: orchestrator, cfg: cfg}
}

// jobTimeout picks the per-job deadline ladder (spec §4.3, "Timeouts":
// thresholds on block/table count) for a freshly built tree.
func jobTimeout(blockCount, tableCount int) time.Duration {
	switch {
	case tableCount > 5 || blockCount > 1000:
		return 480 * time.Second
	case tableCount > 0 || blockCount > 300:
		return 300 * time.Second
	default:
		return 180 * time.Second
	}
}

func tableCount(blocks []*workspace.Block) int {
	n := 0
	for _, b := range blocks {
		if b.Kind == workspace.KindTable {
			n++
		}
		n += tableCount(b.Children)
	}
	return n
}

func blockCount(blocks []*workspace.Block) int {
	n := len(blocks)
	for _, b := range blocks {
		n += blockCount(b.Children)
	}
	return n
}

func (h *PageHandler) blocktreeOptions() blocktree.Options {
	return blocktree.DefaultOptions()
}

func (h *PageHandler) validatorOptions() validator.Options {
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

// CreatePageRequest is the body of POST /api/pages.
type CreatePageRequest struct {
	Title       string `json:"title"`
	DatabaseID  string `json:"databaseId"`
	ContentHTML string `json:"contentHtml"`
	URL         string `json:"url,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Cover       string `json:"cover,omitempty"`
	DryRun      bool   `json:"dryRun,omitempty"`
}

// CreatePageResponse is the body POST /api/pages returns.
type CreatePageResponse struct {
	PageID   string    `json:"pageId,omitempty"`
	URL      string    `json:"url,omitempty"`
	Report   reportDTO `json:"report,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
	DryRun   bool      `json:"dryRun,omitempty"`
}

// CreatePage implements POST /api/pages: convert contentHtml to a block
// tree, and — unless dryRun — create the page and upload it (spec §4.5:
// "dryRun invokes the builder and validator locally without creating a
// job or touching the workspace client").
func (h *PageHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req CreatePageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireNonEmpty(w, req.ContentHTML, "contentHtml") {
		return
	}
	if !req.DryRun && !requireNonEmpty(w, req.DatabaseID, "databaseId") {
		return
	}

	ctx := r.Context()
	src := []byte(req.ContentHTML)

	built, err := blocktree.Build(ctx, src, h.blocktreeOptions())
	if err != nil {
		apierr.WriteErr(w, apierr.Wrap(apierr.InvalidInput, "failed to convert contentHtml", err))
		return
	}

	if req.DryRun {
		report, verr := validator.Validate(ctx, src, built.Blocks, h.validatorOptions())
		if verr != nil {
			apierr.WriteErr(w, apierr.Wrap(apierr.Internal, "validation failed", verr))
			return
		}
		apierr.WriteOK(w, CreatePageResponse{Report: toReportDTO(report), Warnings: built.Warnings, DryRun: true}, nil)
		return
	}

	page, err := h.client.CreatePage(ctx, workspace.CreatePageInput{
		DatabaseID: req.DatabaseID, Title: req.Title, Icon: req.Icon, Cover: req.Cover,
	})
	if err != nil {
		apierr.WriteErr(w, apierr.FromWorkspace(err))
		return
	}

	requestID := requestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	deadline := time.Now().Add(jobTimeout(blockCount(built.Blocks), tableCount(built.Blocks)))

	result, err := h.orchestrator.ReplaceContent(ctx, upload.ReplaceContentInput{
		RequestID: requestID, TargetPageID: page.ID, Blocks: built.Blocks,
		SourceHTML: src, ValidatorOpts: h.validatorOptions(), Deadline: deadline,
	})
	if err != nil {
		apierr.WriteErr(w, classifyJobErr(err))
		return
	}

	warnings := append(append([]string(nil), built.Warnings...), result.Warnings...)
	apierr.WriteOK(w, CreatePageResponse{
		PageID: page.ID, URL: page.URL, Report: toReportDTO(result.Report), Warnings: warnings,
	}, warnings)
}

// ReplacePageContentRequest is the body of PATCH /api/pages/{id}.
type ReplacePageContentRequest struct {
	Title       string `json:"title,omitempty"`
	ContentHTML string `json:"contentHtml"`
	URL         string `json:"url,omitempty"`
}

// ReplacePageContentResponse is the body PATCH /api/pages/{id} returns.
type ReplacePageContentResponse struct {
	AppendedCount int       `json:"appendedCount"`
	Report        reportDTO `json:"report,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
}

// ReplacePageContent implements PATCH /api/pages/{id}: purge the page's
// existing content and upload the freshly-converted tree in its place
// (spec §4.3, "Responsibility").
func (h *PageHandler) ReplacePageContent(w http.ResponseWriter, r *http.Request) {
	pageID := chiURLParamID(r)
	if !requireNonEmpty(w, pageID, "page id") {
		return
	}

	var req ReplacePageContentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireNonEmpty(w, req.ContentHTML, "contentHtml") {
		return
	}

	ctx := r.Context()
	src := []byte(req.ContentHTML)

	built, err := blocktree.Build(ctx, src, h.blocktreeOptions())
	if err != nil {
		apierr.WriteErr(w, apierr.Wrap(apierr.InvalidInput, "failed to convert contentHtml", err))
		return
	}

	if req.Title != "" {
		if err := h.client.UpdatePageProperties(ctx, pageID, map[string]any{
			"title": map[string]any{"title": []map[string]any{{"type": "text", "text": map[string]any{"content": req.Title}}}},
		}); err != nil {
			apierr.WriteErr(w, apierr.FromWorkspace(err))
			return
		}
	}

	requestID := requestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	deadline := time.Now().Add(jobTimeout(blockCount(built.Blocks), tableCount(built.Blocks)))

	result, err := h.orchestrator.ReplaceContent(ctx, upload.ReplaceContentInput{
		RequestID: requestID, TargetPageID: pageID, Blocks: built.Blocks,
		SourceHTML: src, ValidatorOpts: h.validatorOptions(), Deadline: deadline,
	})
	if err != nil {
		apierr.WriteErr(w, classifyJobErr(err))
		return
	}

	warnings := append(append([]string(nil), built.Warnings...), result.Warnings...)
	apierr.WriteOK(w, ReplacePageContentResponse{
		AppendedCount: result.AppendedCount, Report: toReportDTO(result.Report), Warnings: warnings,
	}, warnings)
}

// AppendChildrenRequest is the body of POST
// /api/pages/{id}:appendChildren.
type AppendChildrenRequest struct {
	Children []blockDTO `json:"children"`
}

// AppendChildrenResponse is the body POST
// /api/pages/{id}:appendChildren returns.
type AppendChildrenResponse struct {
	AppendedCount int               `json:"appendedCount"`
	Blocks        []blockSummaryDTO `json:"blocks"`
}

// AppendChildren implements POST /api/pages/{id}:appendChildren: append
// a caller-supplied block list without purging existing content or
// running validation (spec §6.1).
func (h *PageHandler) AppendChildren(w http.ResponseWriter, r *http.Request) {
	pageID := chiURLParamID(r)
	if !requireNonEmpty(w, pageID, "page id") {
		return
	}

	var req AppendChildrenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Children) == 0 {
		apierr.WriteErr(w, apierr.New(apierr.InvalidInput, "children must be non-empty"))
		return
	}

	blocks := toBlocks(req.Children)
	requestID := requestIDFrom(r.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}
	deadline := time.Now().Add(jobTimeout(blockCount(blocks), tableCount(blocks)))

	appended, err := h.orchestrator.AppendOnly(r.Context(), requestID, pageID, blocks, deadline)
	if err != nil {
		apierr.WriteErr(w, classifyJobErr(err))
		return
	}

	apierr.WriteOK(w, AppendChildrenResponse{AppendedCount: appended, Blocks: blockSummaries(blocks)}, nil)
}

// classifyJobErr maps an orchestrator failure into the coordinator's
// taxonomy (spec §7: the orchestrator's own errors are either
// ErrCancelled/deadline-exceeded — timeout — or a wrapped workspace
// error — workspace_error/not_found/etc., forwarded through
// apierr.FromWorkspace).
func classifyJobErr(err error) *apierr.Error {
	switch {
	case errors.Is(err, upload.ErrCancelled), errors.Is(err, context.DeadlineExceeded):
		return apierr.Wrap(apierr.Timeout, "job was cancelled or its deadline expired", err)
	case errors.Is(err, upload.ErrPurgeIncomplete):
		return apierr.Wrap(apierr.WorkspaceError, "could not purge existing page content", err)
	default:
		return apierr.FromWorkspace(err)
	}
}
