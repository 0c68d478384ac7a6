package handlers

import (
	"net/http"

	"github.com/relaydocs/pagesync/internal/api/apierr"
	"github.com/relaydocs/pagesync/internal/config"
)

// AdminHandler serves the operator-only admin endpoints (spec §4.7:
// configuration may be reloaded without restarting the process).
type AdminHandler struct {
	cfg *config.Snapshot
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(cfg *config.Snapshot) *AdminHandler {
	return &AdminHandler{cfg: cfg}
}

// ReloadConfig implements POST /api/admin/config/reload: re-resolve
// configuration from the file/env layers and atomically swap it in
// (config.Snapshot.Reload guarantees no reader ever observes a torn
// value — spec §5, "Shared resources").
func (h *AdminHandler) ReloadConfig(w http.ResponseWriter, _ *http.Request) {
	cfg, err := h.cfg.Reload()
	if err != nil {
		apierr.WriteErr(w, apierr.Wrap(apierr.InvalidInput, "config reload failed", err))
		return
	}
	apierr.WriteOK(w, map[string]any{"config": toConfigDTO(cfg)}, nil)
}
