// Package upload is the stateful per-request orchestrator that drives a
// block tree from local memory into the workspace (spec §4.3). It owns
// no HTTP transport itself — all remote calls go through an
// *workspace.Client — and advances a jobs.Job through its state
// machine as it progresses.
package upload

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/relaydocs/pagesync/internal/jobs"
	"github.com/relaydocs/pagesync/internal/logging"
	"github.com/relaydocs/pagesync/internal/metrics"
	"github.com/relaydocs/pagesync/internal/validator"
	"github.com/relaydocs/pagesync/internal/workspace"
)

// markerPattern matches the correlation token the block-tree builder
// embeds in text runs (spec §3, entity Marker).
var markerPattern = regexp.MustCompile(`\(src:[a-zA-Z0-9_-]{8,}\)`)

const (
	maxChunkSize       = 100
	purgeBatchSize     = 10
	sweepMaxRetries    = 5
	sweepRetryBaseStep = 500 * time.Millisecond
)

// ErrPurgeIncomplete is returned when the purge phase exhausts its
// attempt budget without the target page reporting zero children (spec
// §4.3, "Purging").
var ErrPurgeIncomplete = fmt.Errorf("upload: purge did not converge within the configured attempt budget")

// ErrCancelled is returned when the job's cancellation flag was observed
// at a suspension point (spec §4.6, §5 "Cancellation semantics").
var ErrCancelled = fmt.Errorf("upload: job cancelled")

// Options configures one Orchestrator.
type Options struct {
	PurgeMaxAttempts int
	JobLocalConcurrency int
	StrictMarkerSweep   bool
}

// DefaultOptions mirrors SPEC_FULL §6.3 defaults.
func DefaultOptions() Options {
	return Options{PurgeMaxAttempts: 20, JobLocalConcurrency: 4, StrictMarkerSweep: false}
}

// Orchestrator drives the Init→Purging→Chunking→Uploading→Sweeping→
// Finalizing→Done/Failed state machine (spec §4.3).
type Orchestrator struct {
	client   *workspace.Client
	registry *jobs.Registry
	store    *jobs.Store // optional; nil disables persistence
	opts     Options
}

// New builds an Orchestrator. store may be nil.
func New(client *workspace.Client, registry *jobs.Registry, store *jobs.Store, opts Options) *Orchestrator {
	if opts.JobLocalConcurrency <= 0 {
		opts = DefaultOptions()
	}
	return &Orchestrator{client: client, registry: registry, store: store, opts: opts}
}

// ReplaceContentInput carries everything ReplaceContent needs (spec
// §6.1, PATCH /api/pages/{id}).
type ReplaceContentInput struct {
	RequestID     string
	TargetPageID  string
	Blocks        []*workspace.Block
	SourceHTML    []byte
	ValidatorOpts validator.Options
	Deadline      time.Time
}

// Result is what ReplaceContent hands back to the request coordinator.
type Result struct {
	AppendedCount int
	Warnings      []string
	Report        *validator.Report
}

// ReplaceContent makes TargetPageID's content equal to Blocks, sweeps
// marker tokens, validates the result, then best-effort finalizes the
// page (spec §4.3, "Responsibility").
func (o *Orchestrator) ReplaceContent(ctx context.Context, in ReplaceContentInput) (*Result, error) {
	job := o.registry.Create(in.RequestID, in.TargetPageID, in.Deadline)
	ctx, cancel := context.WithDeadline(ctx, in.Deadline)
	defer cancel()

	log := logging.WithJob(in.RequestID, string(jobs.PhaseInit))

	if err := o.purge(ctx, job, in.TargetPageID); err != nil {
		return o.fail(job, "workspace_error", err)
	}

	job.UpdateProgress(jobs.PhaseChunking, 0, len(in.Blocks), time.Now())

	appended, err := o.uploadChildren(ctx, job, in.TargetPageID, in.Blocks)
	if err != nil {
		return o.fail(job, "workspace_error", err)
	}

	if err := o.sweep(ctx, job, in.Blocks); err != nil {
		if o.opts.StrictMarkerSweep {
			return o.fail(job, "workspace_error", err)
		}
		job.AddWarning("marker_sweep_incomplete")
	}

	report, err := o.validateAndFinalize(ctx, job, in)
	if err != nil {
		job.AddWarning("validation_failed")
		log.Warn().Err(err).Msg("post-upload validation failed")
	}

	job.UpdateProgress(jobs.PhaseDone, appended, appended, time.Now())
	log.Info().Int("appended", appended).Msg("replace-content job complete")

	if o.store != nil && report != nil {
		o.persistRecord(ctx, job, report)
	}

	return &Result{AppendedCount: appended, Warnings: o.jobWarnings(job), Report: report}, nil
}

// AppendOnly uploads blocks under parentID without purging existing
// content or running validation (spec §6.1, POST
// /api/pages/{id}:appendChildren — a thinner operation than
// ReplaceContent that skips straight to the Uploading phase).
func (o *Orchestrator) AppendOnly(ctx context.Context, requestID, parentID string, blocks []*workspace.Block, deadline time.Time) (int, error) {
	job := o.registry.Create(requestID, parentID, deadline)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	job.UpdateProgress(jobs.PhaseChunking, 0, len(blocks), time.Now())
	appended, err := o.uploadChildren(ctx, job, parentID, blocks)
	if err != nil {
		job.Fail("workspace_error", err.Error(), time.Now())
		return appended, err
	}
	job.UpdateProgress(jobs.PhaseDone, appended, appended, time.Now())
	return appended, nil
}

// validateAndFinalize runs the validator against the uploaded tree and
// best-effort refreshes the page's validation-summary properties (spec
// §4.3, "Finalizing": "best-effort; its failure is a warning, not a job
// failure").
func (o *Orchestrator) validateAndFinalize(ctx context.Context, job *jobs.Job, in ReplaceContentInput) (*validator.Report, error) {
	if len(in.SourceHTML) == 0 {
		return nil, nil
	}

	report, err := validator.Validate(ctx, in.SourceHTML, in.Blocks, in.ValidatorOpts)
	if err != nil {
		return nil, err
	}
	metrics.ValidatorCoverage.Observe(report.Coverage)

	job.UpdateProgress(jobs.PhaseFinalizing, 0, 1, time.Now())
	props := map[string]any{
		"pagesync_coverage": map[string]any{"number": report.Coverage},
	}
	if err := o.client.UpdatePageProperties(ctx, in.TargetPageID, props); err != nil {
		job.AddWarning("finalize_failed")
	}
	return report, nil
}

func (o *Orchestrator) persistRecord(ctx context.Context, job *jobs.Job, report *validator.Report) {
	snap := job.Snapshot()
	rec := jobs.Record{
		RequestID:    snap.RequestID,
		TargetPageID: snap.TargetPageID,
		Phase:        snap.Phase,
		SourceCounts: countsToMap(report.SourceCounts),
		NotionCounts: countsToMap(report.NotionCounts),
		Coverage:     report.Coverage,
		HasErrors:    report.HasErrors,
		Warnings:     snap.Warnings,
		FailureKind:  snap.FailureKind,
	}
	if err := o.store.Upsert(ctx, rec); err != nil {
		logging.WithJob(snap.RequestID, string(snap.Phase)).Warn().Err(err).Msg("persist job record failed")
	}
}

func countsToMap(c validator.ElementCounts) map[string]int {
	return map[string]int{
		"tables":      c.Tables,
		"images":      c.Images,
		"lists":       c.Lists,
		"callouts":    c.Callouts,
		"code_blocks": c.CodeBlocks,
		"headings":    c.Headings,
	}
}

func (o *Orchestrator) jobWarnings(job *jobs.Job) []string {
	return job.Snapshot().Warnings
}

func (o *Orchestrator) fail(job *jobs.Job, kind string, err error) (*Result, error) {
	job.Fail(kind, err.Error(), time.Now())
	metrics.JobsInPhase.WithLabelValues(string(jobs.PhaseFailed)).Inc()
	return nil, err
}

// checkSuspension observes the job's cancellation flag and the
// context's deadline at a suspension point (spec §5, "Suspension
// points").
func checkSuspension(ctx context.Context, job *jobs.Job) error {
	if job.Cancelled() {
		job.Fail("internal", "cancelled", time.Now())
		return ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		job.Fail("timeout", err.Error(), time.Now())
		return err
	}
	return nil
}

// purge lists and deletes all existing children of pageID in parallel
// batches (spec §4.3, "Purging").
func (o *Orchestrator) purge(ctx context.Context, job *jobs.Job, pageID string) error {
	job.UpdateProgress(jobs.PhasePurging, 0, 0, time.Now())

	for attempt := 0; attempt < o.opts.PurgeMaxAttempts; attempt++ {
		if err := checkSuspension(ctx, job); err != nil {
			return err
		}

		res, err := o.client.ListChildren(ctx, pageID, "")
		if err != nil {
			return fmt.Errorf("purge: list children: %w", err)
		}
		if len(res.Blocks) == 0 {
			return nil
		}

		if err := o.deleteBatches(ctx, pageID); err != nil {
			return err
		}
	}
	return ErrPurgeIncomplete
}

// deleteBatches deletes every child of pageID in parallel batches of
// purgeBatchSize, paginating as needed (spec §4.3: "Delete them in
// parallel batches of up to 10"). NotFound deletion errors are treated
// as success (already gone).
func (o *Orchestrator) deleteBatches(ctx context.Context, pageID string) error {
	cursor := ""
	for {
		res, err := o.client.ListChildren(ctx, pageID, cursor)
		if err != nil {
			return fmt.Errorf("purge: list children: %w", err)
		}

		sem := semaphore.NewWeighted(int64(purgeBatchSize))
		g, gctx := errgroup.WithContext(ctx)
		for _, blk := range res.Blocks {
			blk := blk
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			g.Go(func() error {
				defer sem.Release(1)
				if err := o.client.DeleteBlock(gctx, blk.ID); err != nil {
					if werr, ok := workspace.AsWorkspaceError(err); ok && werr.Kind == workspace.KindNotFound {
						return nil
					}
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("purge: delete batch: %w", err)
		}

		if !res.HasMore {
			return nil
		}
		cursor = res.NextCursor
	}
}

// uploadChildren chunks blocks into appendChildren batches of at most
// maxChunkSize, uploading in source-document order. A block's own
// children are normally left attached and ride along inline in its
// creation payload (workspace.Block.MarshalJSON nests them under the
// block's typed key), so most subtrees need no further calls. Only a
// subtree whose total descendant count exceeds maxChunkSize is detached
// before the call and uploaded separately against the parent's
// newly-assigned id — inlining it would both exceed the API's per-call
// limit and, left in place, upload it a second time (spec §4.3,
// "Chunking", "Uploading"; spec §8 properties 3, 4).
func (o *Orchestrator) uploadChildren(ctx context.Context, job *jobs.Job, parentID string, blocks []*workspace.Block) (int, error) {
	appended := 0
	for start := 0; start < len(blocks); start += maxChunkSize {
		if err := checkSuspension(ctx, job); err != nil {
			return appended, err
		}

		end := start + maxChunkSize
		if end > len(blocks) {
			end = len(blocks)
		}
		chunk := blocks[start:end]

		job.UpdateProgress(jobs.PhaseUploading, appended, len(blocks), time.Now())

		overflow := make([]bool, len(chunk))
		detached := make([][]*workspace.Block, len(chunk))
		for i, blk := range chunk {
			if len(blk.Children) == 0 {
				continue
			}
			if descendantCount(blk.Children) > maxChunkSize {
				overflow[i] = true
				detached[i] = blk.Children
				blk.Children = nil
			}
		}

		res, err := o.client.AppendChildren(ctx, parentID, chunk)
		if err != nil {
			for i, blk := range chunk {
				if overflow[i] {
					blk.Children = detached[i]
				}
			}
			if werr, ok := workspace.AsWorkspaceError(err); ok && werr.Kind == workspace.KindValidation {
				return appended, fmt.Errorf("upload: chunk %d failed validation: %w", start/maxChunkSize, err)
			}
			return appended, fmt.Errorf("upload: append chunk %d: %w", start/maxChunkSize, err)
		}

		for i, blk := range chunk {
			if i < len(res.BlockIDs) {
				blk.ID = res.BlockIDs[i]
			}
			if overflow[i] {
				blk.Children = detached[i]
			} else {
				appended += descendantCount(blk.Children) // embedded inline, but still created
			}
		}
		appended += len(chunk)

		for i, blk := range chunk {
			if !overflow[i] || blk.ID == "" {
				continue
			}
			childCount, err := o.uploadChildren(ctx, job, blk.ID, blk.Children)
			appended += childCount
			if err != nil {
				return appended, err
			}
		}
	}
	return appended, nil
}

// descendantCount returns the total number of blocks across blocks'
// subtrees (not counting blocks itself), used to decide whether a
// block's children must be chunked separately rather than ride along
// inline in its parent's creation payload.
func descendantCount(blocks []*workspace.Block) int {
	n := len(blocks)
	for _, b := range blocks {
		n += descendantCount(b.Children)
	}
	return n
}
