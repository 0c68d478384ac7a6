package handlers

import (
	"net/http"

	"github.com/relaydocs/pagesync/internal/api/apierr"
	"github.com/relaydocs/pagesync/internal/jobs"
)

// JobHandler serves the job-polling endpoints (spec §4.6, GET
// /api/jobs/{id}, POST /api/jobs/{id}:cancel).
type JobHandler struct {
	registry *jobs.Registry
	store    *jobs.Store
}

// NewJobHandler builds a JobHandler. store may be nil if no durable
// record database was configured.
func NewJobHandler(registry *jobs.Registry, store *jobs.Store) *JobHandler {
	return &JobHandler{registry: registry, store: store}
}

type jobSnapshotDTO struct {
	RequestID    string   `json:"requestId"`
	TargetPageID string   `json:"targetPageId"`
	Phase        string   `json:"phase"`
	Completed    int      `json:"completedUnits"`
	Total        int      `json:"totalUnits"`
	Warnings     []string `json:"warnings,omitempty"`
	FailureKind  string   `json:"failureKind,omitempty"`
	FailureMsg   string   `json:"failureMessage,omitempty"`
	Cancelled    bool     `json:"cancelled"`
}

// Get implements GET /api/jobs/{id}. A job still tracked in the
// in-memory registry answers from there; once the sweeper has evicted
// it (spec §4.6, terminal jobs kept for JobRegistryTTL), the durable
// jobs.Store record is the fallback.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := chiURLParamID(r)
	if !requireNonEmpty(w, requestID, "id") {
		return
	}

	if job, ok := h.registry.Get(requestID); ok {
		snap := job.Snapshot()
		apierr.WriteOK(w, jobSnapshotDTO{
			RequestID:    snap.RequestID,
			TargetPageID: snap.TargetPageID,
			Phase:        string(snap.Phase),
			Completed:    snap.Progress.CompletedUnits,
			Total:        snap.Progress.TotalUnits,
			Warnings:     snap.Warnings,
			FailureKind:  snap.FailureKind,
			FailureMsg:   snap.FailureMsg,
			Cancelled:    snap.Cancelled,
		}, nil)
		return
	}

	if h.store != nil {
		rec, err := h.store.Get(r.Context(), requestID)
		if err != nil {
			apierr.WriteErr(w, apierr.Wrap(apierr.Internal, "failed to read job record", err))
			return
		}
		if rec != nil {
			apierr.WriteOK(w, jobSnapshotDTO{
				RequestID:    rec.RequestID,
				TargetPageID: rec.TargetPageID,
				Phase:        string(rec.Phase),
				Warnings:     rec.Warnings,
				FailureKind:  rec.FailureKind,
			}, nil)
			return
		}
	}

	apierr.WriteErr(w, apierr.New(apierr.NotFound, "no job found for this request id"))
}

// Cancel implements POST /api/jobs/{id}:cancel (spec §4.6: "flips the
// job's cancellation flag").
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID := chiURLParamID(r)
	if !requireNonEmpty(w, requestID, "id") {
		return
	}
	if !h.registry.Cancel(requestID) {
		apierr.WriteErr(w, apierr.New(apierr.NotFound, "no active job for this request id"))
		return
	}
	apierr.WriteOK(w, map[string]any{"cancelled": true}, nil)
}
