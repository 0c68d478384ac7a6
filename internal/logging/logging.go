// Package logging provides process-wide structured logging for pagesync
// using zerolog. A single global logger is initialized via Init and
// retrieved via L(); per-request and per-job code attaches fields with
// the With* helpers to get a scoped child logger.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	global = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init configures the global logger's level from a string
// (trace/debug/info/warn/error, case-insensitive). Unrecognized values
// fall back to info. Safe to call once at startup; later calls replace
// the global logger for tests.
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()
	global = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(parseLevel(level))
}

// L returns the current global logger.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// WithRequestID returns a child logger carrying request_id.
func WithRequestID(requestID string) zerolog.Logger {
	return L().With().Str("request_id", requestID).Logger()
}

// WithJob returns a child logger carrying job_id and the current phase.
func WithJob(jobID, phase string) zerolog.Logger {
	return L().With().Str("job_id", jobID).Str("phase", phase).Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
