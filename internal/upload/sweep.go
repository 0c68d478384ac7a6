package upload

import (
	"context"
	"time"

	"github.com/relaydocs/pagesync/internal/jobs"
	"github.com/relaydocs/pagesync/internal/workspace"
)

// sweep strips marker runs from every uploaded block that still carries
// one (spec §4.3, "Sweeping"). It walks the local tree rather than
// re-fetching the remote tree: every block already carries the id the
// workspace assigned it during upload, so the marker→element
// correlation the markers exist for is already resolved (spec §9,
// design note on an alternative to re-fetching: "a side-table mapping
// block → source-element id, which avoids the sweep phase but requires
// the orchestrator to read back assigned ids before it can finish" —
// uploadChildren already reads those ids back).
func (o *Orchestrator) sweep(ctx context.Context, job *jobs.Job, blocks []*workspace.Block) error {
	job.UpdateProgress(jobs.PhaseSweeping, 0, 0, time.Now())

	total := countMarked(blocks)
	cleaned := 0
	var firstErr error

	walkMarked(blocks, func(blk *workspace.Block) {
		if firstErr != nil {
			return
		}
		if err := checkSuspension(ctx, job); err != nil {
			firstErr = err
			return
		}
		if err := o.sweepOne(ctx, blk); err != nil {
			firstErr = err
			return
		}
		cleaned++
		job.UpdateProgress(jobs.PhaseSweeping, cleaned, total, time.Now())
	})
	return firstErr
}

// sweepOne strips marker runs from one block and pushes the update,
// retrying ConflictRetryable outcomes with a linear backoff (spec §4.3:
// "retries ConflictRetryable failures up to 5 times with a 500ms ×
// attempt delay").
func (o *Orchestrator) sweepOne(ctx context.Context, blk *workspace.Block) error {
	stripMarkers(blk)

	var lastErr error
	for attempt := 0; attempt <= sweepMaxRetries; attempt++ {
		if attempt > 0 && !sleepOrDoneCtx(ctx, time.Duration(attempt)*sweepRetryBaseStep) {
			return ctx.Err()
		}
		err := o.client.UpdateBlock(ctx, blk.ID, blk)
		if err == nil {
			return nil
		}
		lastErr = err
		werr, ok := workspace.AsWorkspaceError(err)
		if !ok || werr.Kind != workspace.KindConflictRetryable {
			return err
		}
	}
	return lastErr
}

func sleepOrDoneCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// stripMarkers removes any rich-text/caption run matching markerPattern
// from blk in place.
func stripMarkers(blk *workspace.Block) {
	blk.RichText = stripMarkerRuns(blk.RichText)
	blk.Caption = stripMarkerRuns(blk.Caption)
}

func stripMarkerRuns(runs []workspace.RichRun) []workspace.RichRun {
	out := runs[:0:0]
	for _, r := range runs {
		if markerPattern.MatchString(r.Text) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hasMarker(blk *workspace.Block) bool {
	for _, r := range blk.RichText {
		if markerPattern.MatchString(r.Text) {
			return true
		}
	}
	for _, r := range blk.Caption {
		if markerPattern.MatchString(r.Text) {
			return true
		}
	}
	return false
}

// walkMarked calls fn for every block in the tree (in document order)
// that still carries a marker run and has an assigned id.
func walkMarked(blocks []*workspace.Block, fn func(*workspace.Block)) {
	for _, blk := range blocks {
		if blk.ID != "" && hasMarker(blk) {
			fn(blk)
		}
		if len(blk.Children) > 0 {
			walkMarked(blk.Children, fn)
		}
	}
}

func countMarked(blocks []*workspace.Block) int {
	n := 0
	walkMarked(blocks, func(*workspace.Block) { n++ })
	return n
}
