package handlers

import (
	"net/http"

	"github.com/relaydocs/pagesync/internal/api/apierr"
	"github.com/relaydocs/pagesync/internal/validator"
	"github.com/relaydocs/pagesync/internal/workspace"
)

// ValidateHandler serves POST /api/validate: refresh the validation
// summary for a batch of already-uploaded pages.
type ValidateHandler struct {
	client *workspace.Client
}

// NewValidateHandler builds a ValidateHandler.
func NewValidateHandler(client *workspace.Client) *ValidateHandler {
	return &ValidateHandler{client: client}
}

// ValidateRequest is the body of POST /api/validate.
type ValidateRequest struct {
	PageIDs []string `json:"pageIds"`
}

// pageValidationSummary is one page's entry in the /api/validate
// response (spec §6.1: "per-page summary"). Unlike
// /api/compare/notion-page, no srcText is supplied here, so only the
// element-count half of the validator runs — true text coverage needs a
// source document to compare against.
type pageValidationSummary struct {
	PageID       string                  `json:"pageId"`
	Exists       bool                    `json:"exists"`
	NotionCounts validator.ElementCounts `json:"notionCounts"`
	Error        string                  `json:"error,omitempty"`
}

// Validate implements POST /api/validate.
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.PageIDs) == 0 {
		apierr.WriteErr(w, apierr.New(apierr.InvalidInput, "pageIds must be non-empty"))
		return
	}

	ctx := r.Context()
	summaries := make([]pageValidationSummary, 0, len(req.PageIDs))
	for _, pageID := range req.PageIDs {
		if _, err := h.client.RetrievePage(ctx, pageID); err != nil {
			werr, _ := workspace.AsWorkspaceError(err)
			summaries = append(summaries, pageValidationSummary{PageID: pageID, Exists: false, Error: errString(werr, err)})
			continue
		}

		children, err := fetchChildren(ctx, h.client, pageID)
		if err != nil {
			summaries = append(summaries, pageValidationSummary{PageID: pageID, Exists: true, Error: err.Error()})
			continue
		}
		summaries = append(summaries, pageValidationSummary{
			PageID: pageID, Exists: true, NotionCounts: validator.CountBlockElements(children),
		})
	}

	apierr.WriteOK(w, map[string]any{"pages": summaries}, nil)
}

func errString(werr *workspace.Error, fallback error) string {
	if werr != nil {
		return werr.Message
	}
	return fallback.Error()
}
