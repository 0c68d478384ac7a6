// Package config provides pagesync's runtime configuration, loaded from
// environment variables with an optional YAML file layer, and held behind
// an atomically-swapped snapshot so concurrent readers never observe a
// torn value (spec §5, "Shared resources").
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunables named in spec.md §6.3 plus the SPEC_FULL §6.3
// additions.
type Config struct {
	WorkspaceToken       string  `yaml:"workspace_token"`
	WorkspaceAPIVersion  string  `yaml:"workspace_api_version"`
	ListenAddr           string  `yaml:"listen_addr"`
	MetricsAddr          string  `yaml:"metrics_addr"`
	MaxConcurrentJobs    int     `yaml:"max_concurrent_jobs"`
	ReqPerSec            float64 `yaml:"req_per_sec"`
	CoverageThreshold    float64 `yaml:"coverage_threshold"`
	MaxMissingSpans      int     `yaml:"max_missing_spans"`
	GroupMax             int     `yaml:"group_max"`
	LevRatio             float64 `yaml:"lev_ratio"`
	TokenOverlap         float64 `yaml:"token_overlap"`
	FuzzyThreshold       float64 `yaml:"fuzzy_threshold"`
	InversionWarn        int     `yaml:"inversion_warn"`
	StrictMarkerSweep    bool    `yaml:"strict_marker_sweep"`
	LogLevel             string  `yaml:"log_level"`
	MaxHTMLBytes         int64   `yaml:"max_html_bytes"`
	JobRegistryTTL       time.Duration
	JobLocalConcurrency  int
	JobRecordDBPath      string `yaml:"job_record_db_path"`
	ConfigFilePath       string
	PurgeDeleteBatchSize int
	PurgeMaxAttempts     int
}

const (
	envWorkspaceToken      = "WORKSPACE_TOKEN"
	envWorkspaceAPIVersion = "WORKSPACE_API_VERSION"
	envListenAddr          = "LISTEN_ADDR"
	envMetricsAddr         = "METRICS_ADDR"
	envMaxConcurrentJobs   = "MAX_CONCURRENT_JOBS"
	envReqPerSec           = "REQ_PER_SEC"
	envCoverageThreshold   = "COVERAGE_THRESHOLD"
	envMaxMissingSpans     = "MAX_MISSING_SPANS"
	envGroupMax            = "GROUP_MAX"
	envLevRatio            = "LEV_RATIO"
	envTokenOverlap        = "TOKEN_OVERLAP"
	envFuzzyThreshold      = "FUZZY_THRESHOLD"
	envInversionWarn       = "INVERSION_WARN"
	envStrictMarkerSweep   = "STRICT_MARKER_SWEEP"
	envLogLevel            = "LOG_LEVEL"
	envMaxHTMLBytes        = "MAX_HTML_BYTES"
	envJobRecordDBPath     = "JOB_RECORD_DB_PATH"
	envConfigFile          = "PAGESYNC_CONFIG_FILE"
)

// Default returns the hard-coded defaults named throughout spec.md.
func Default() Config {
	return Config{
		WorkspaceAPIVersion:  "2022-06-28",
		ListenAddr:           "127.0.0.1:3004",
		MetricsAddr:          "",
		MaxConcurrentJobs:    8,
		ReqPerSec:            3,
		CoverageThreshold:    0.97,
		MaxMissingSpans:      0,
		GroupMax:             8,
		LevRatio:             0.88,
		TokenOverlap:         0.65,
		FuzzyThreshold:       0.85,
		InversionWarn:        3,
		StrictMarkerSweep:    false,
		LogLevel:             "info",
		MaxHTMLBytes:         16 * 1024 * 1024,
		JobRegistryTTL:       10 * time.Minute,
		JobLocalConcurrency:  4,
		JobRecordDBPath:      "./data/pagesync-jobs.db",
		PurgeDeleteBatchSize: 10,
		PurgeMaxAttempts:     20,
	}
}

// Load resolves configuration from defaults, an optional YAML file
// (PAGESYNC_CONFIG_FILE), and then environment variables, in that
// override order (env wins).
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(envConfigFile); path != "" {
		cfg.ConfigFilePath = path
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("config: load file %q: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.WorkspaceToken == "" {
		return Config{}, fmt.Errorf("config: %s is required", envWorkspaceToken)
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	cfg.WorkspaceToken = envOr(envWorkspaceToken, cfg.WorkspaceToken)
	cfg.WorkspaceAPIVersion = envOr(envWorkspaceAPIVersion, cfg.WorkspaceAPIVersion)
	cfg.ListenAddr = envOr(envListenAddr, cfg.ListenAddr)
	cfg.MetricsAddr = envOr(envMetricsAddr, cfg.MetricsAddr)
	cfg.LogLevel = envOr(envLogLevel, cfg.LogLevel)
	cfg.JobRecordDBPath = envOr(envJobRecordDBPath, cfg.JobRecordDBPath)

	cfg.MaxConcurrentJobs = envOrInt(envMaxConcurrentJobs, cfg.MaxConcurrentJobs)
	cfg.MaxMissingSpans = envOrInt(envMaxMissingSpans, cfg.MaxMissingSpans)
	cfg.GroupMax = envOrInt(envGroupMax, cfg.GroupMax)
	cfg.InversionWarn = envOrInt(envInversionWarn, cfg.InversionWarn)

	cfg.ReqPerSec = envOrFloat(envReqPerSec, cfg.ReqPerSec)
	cfg.CoverageThreshold = envOrFloat(envCoverageThreshold, cfg.CoverageThreshold)
	cfg.LevRatio = envOrFloat(envLevRatio, cfg.LevRatio)
	cfg.TokenOverlap = envOrFloat(envTokenOverlap, cfg.TokenOverlap)
	cfg.FuzzyThreshold = envOrFloat(envFuzzyThreshold, cfg.FuzzyThreshold)

	cfg.MaxHTMLBytes = envOrInt64(envMaxHTMLBytes, cfg.MaxHTMLBytes)

	if v := os.Getenv(envStrictMarkerSweep); v != "" {
		cfg.StrictMarkerSweep = v == "true" || v == "1"
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Snapshot is an atomically-swappable holder for the resolved Config.
// Readers call Get(); the admin reload endpoint calls Reload to
// re-resolve and atomically swap the whole struct in one step.
type Snapshot struct {
	ptr atomic.Pointer[Config]
}

// NewSnapshot creates a Snapshot initialized with cfg.
func NewSnapshot(cfg Config) *Snapshot {
	s := &Snapshot{}
	s.ptr.Store(&cfg)
	return s
}

// Get returns the currently active Config. The returned value is a
// complete, consistent snapshot — never a partial merge of concurrent
// writers.
func (s *Snapshot) Get() Config {
	return *s.ptr.Load()
}

// Reload re-resolves configuration from the file/env layers and swaps it
// in atomically. Returns the new Config on success; on error the
// previous snapshot remains active.
func (s *Snapshot) Reload() (Config, error) {
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}
	s.ptr.Store(&cfg)
	return cfg, nil
}
