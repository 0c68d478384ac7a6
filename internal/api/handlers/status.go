package handlers

import (
	"net/http"

	"github.com/relaydocs/pagesync/internal/api/apierr"
	"github.com/relaydocs/pagesync/internal/config"
	"github.com/relaydocs/pagesync/internal/jobs"
)

// StatusHandler serves GET /api/status: current runtime configuration
// and job-registry occupancy, for operators to inspect without reading
// logs (spec §4.7, §4.9).
type StatusHandler struct {
	cfg      *config.Snapshot
	registry *jobs.Registry
}

// NewStatusHandler builds a StatusHandler.
func NewStatusHandler(cfg *config.Snapshot, registry *jobs.Registry) *StatusHandler {
	return &StatusHandler{cfg: cfg, registry: registry}
}

// configDTO exposes a subset of config.Config. It always omits
// WorkspaceToken: the bearer token pagesync forwards to the workspace
// must never appear in an API response. The job registry, job record
// store, config file and purge settings are not exposed either.
type configDTO struct {
	WorkspaceAPIVersion string  `json:"workspaceApiVersion"`
	ListenAddr          string  `json:"listenAddr"`
	MetricsAddr         string  `json:"metricsAddr"`
	MaxConcurrentJobs   int     `json:"maxConcurrentJobs"`
	ReqPerSec           float64 `json:"reqPerSec"`
	CoverageThreshold   float64 `json:"coverageThreshold"`
	MaxMissingSpans     int     `json:"maxMissingSpans"`
	GroupMax            int     `json:"groupMax"`
	LevRatio            float64 `json:"levRatio"`
	TokenOverlap        float64 `json:"tokenOverlap"`
	FuzzyThreshold      float64 `json:"fuzzyThreshold"`
	InversionWarn       int     `json:"inversionWarn"`
	StrictMarkerSweep   bool    `json:"strictMarkerSweep"`
	LogLevel            string  `json:"logLevel"`
	MaxHTMLBytes        int64   `json:"maxHtmlBytes"`
}

func toConfigDTO(cfg config.Config) configDTO {
	return configDTO{
		WorkspaceAPIVersion: cfg.WorkspaceAPIVersion,
		ListenAddr:          cfg.ListenAddr,
		MetricsAddr:         cfg.MetricsAddr,
		MaxConcurrentJobs:   cfg.MaxConcurrentJobs,
		ReqPerSec:           cfg.ReqPerSec,
		CoverageThreshold:   cfg.CoverageThreshold,
		MaxMissingSpans:     cfg.MaxMissingSpans,
		GroupMax:            cfg.GroupMax,
		LevRatio:            cfg.LevRatio,
		TokenOverlap:        cfg.TokenOverlap,
		FuzzyThreshold:      cfg.FuzzyThreshold,
		InversionWarn:       cfg.InversionWarn,
		StrictMarkerSweep:   cfg.StrictMarkerSweep,
		LogLevel:            cfg.LogLevel,
		MaxHTMLBytes:        cfg.MaxHTMLBytes,
	}
}

// Status implements GET /api/status.
func (h *StatusHandler) Status(w http.ResponseWriter, _ *http.Request) {
	apierr.WriteOK(w, map[string]any{
		"config":      toConfigDTO(h.cfg.Get()),
		"activeJobs":  h.registry.Len(),
	}, nil)
}
