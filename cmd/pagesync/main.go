// pagesync converts HTML documents into workspace block trees, uploads
// them under rate limiting and a bounded-retry policy, and validates
// the result against the source (spec §1).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/relaydocs/pagesync/internal/config"
	"github.com/relaydocs/pagesync/internal/jobs"
	"github.com/relaydocs/pagesync/internal/logging"
	"github.com/relaydocs/pagesync/internal/server"
	"github.com/relaydocs/pagesync/internal/upload"
	"github.com/relaydocs/pagesync/internal/version"
	"github.com/relaydocs/pagesync/internal/workspace"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	if len(args) > 0 && args[0] == "serve" {
		return runServe(args[1:], out)
	}

	fs := pflag.NewFlagSet("pagesync", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp {
		printHelp(out)
		return 0
	}

	fmt.Fprintln(out, version.String()) //nolint:errcheck
	return 0
}

func runServe(args []string, out io.Writer) int {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", "", "HTTP listen address (overrides LISTEN_ADDR)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(out, "config load failed: %v\n", err) //nolint:errcheck
		return 1
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	logging.Init(cfg.LogLevel)
	snapshot := config.NewSnapshot(cfg)

	clientCfg := workspace.DefaultClientConfig(cfg.WorkspaceToken)
	clientCfg.APIVersion = cfg.WorkspaceAPIVersion
	clientCfg.ReqPerSec = cfg.ReqPerSec
	client := workspace.New(clientCfg)

	var store *jobs.Store
	if cfg.JobRecordDBPath != "" {
		store, err = jobs.OpenStore(cfg.JobRecordDBPath)
		if err != nil {
			fmt.Fprintf(out, "job store init failed: %v\n", err) //nolint:errcheck
			return 1
		}
	}

	registry := jobs.NewRegistry(cfg.JobRegistryTTL)
	orchestrator := upload.New(client, registry, store, upload.Options{
		PurgeMaxAttempts:    cfg.PurgeMaxAttempts,
		JobLocalConcurrency: cfg.JobLocalConcurrency,
		StrictMarkerSweep:   cfg.StrictMarkerSweep,
	})

	httpCfg := server.DefaultConfig()
	httpCfg.Addr = cfg.ListenAddr
	srv := server.New(client, orchestrator, registry, store, snapshot, httpCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(out, "server failed: %v\n", err) //nolint:errcheck
			return 1
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ReadTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(out, "shutdown error: %v\n", err) //nolint:errcheck
			return 1
		}
	}

	return 0
}

func printHelp(out io.Writer) {
	helpText := `pagesync - HTML to workspace block-tree upload service

Usage:
  pagesync [options]
  pagesync serve [--addr host:port]

Options:
  --version    Show version information
  --help       Show this help message

Examples:
  pagesync --version
  pagesync serve --addr 127.0.0.1:3004`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
