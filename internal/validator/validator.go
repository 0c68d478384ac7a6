// Package validator implements the pure analysis step that reconciles
// converted/uploaded blocks against their source HTML (spec §4.4). It
// performs no I/O: callers fetch remote blocks themselves and pass them
// in as a workspace.Block tree.
package validator

import (
	"context"
	"sync"

	"github.com/relaydocs/pagesync/internal/workspace"
)

// ElementCounts tallies the structural elements the comparison cares
// about (spec §4.4, "Element-count comparison").
type ElementCounts struct {
	Tables     int
	Images     int
	Lists      int
	Callouts   int
	CodeBlocks int
	Headings   int
}

// Tolerances bounds how far NotionCounts may drift from SourceCounts
// before it is reported as an error.
type Tolerances struct {
	Tables     int
	Images     int
	Lists      int
	Callouts   int
	CodeBlocks int
	Headings   int
}

// DefaultTolerances matches spec §4.4 exactly: zero tolerance for tables,
// images, and code blocks; ±1 for callouts and lists.
func DefaultTolerances() Tolerances {
	return Tolerances{Tables: 0, Images: 0, Lists: 1, Callouts: 1, CodeBlocks: 0, Headings: 0}
}

// Options configures one Validate call (spec §6.3 env vars map 1:1 onto
// these fields).
type Options struct {
	CoverageThreshold float64
	MaxMissingSpans   int
	GroupMax          int
	LevRatio          float64
	TokenOverlap      float64
	FuzzyThreshold    float64
	InversionWarn     int
	Tolerances        Tolerances
}

// DefaultOptions matches spec §6.3's documented defaults.
func DefaultOptions() Options {
	return Options{
		CoverageThreshold: 0.97,
		MaxMissingSpans:   0,
		GroupMax:          8,
		LevRatio:          0.88,
		TokenOverlap:      0.65,
		FuzzyThreshold:    0.85,
		InversionWarn:     3,
		Tolerances:        DefaultTolerances(),
	}
}

// Report is the spec's ValidationReport entity (spec §3).
type Report struct {
	SourceCounts     ElementCounts
	NotionCounts     ElementCounts
	HasErrors        bool
	Errors           []string
	Warnings         []string
	Coverage         float64
	AdjustedCoverage float64
	MissingSpans     []string
	Method           string // "exact" or "fuzzy"
}

// Validate computes element-count deltas and text coverage between
// sourceHTML and blocks (spec §4.4). The source-side and block-side
// element counts are tallied concurrently; text coverage is computed
// after both finish.
func Validate(ctx context.Context, sourceHTML []byte, blocks []*workspace.Block, opts Options) (*Report, error) {
	if opts.CoverageThreshold == 0 {
		opts = DefaultOptions()
	}

	var (
		srcCounts, blockCounts ElementCounts
		srcSegs, blockSegs     []string
		countErr, segErr       error
		wg                     sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		srcCounts, countErr = countSourceElements(sourceHTML)
	}()
	go func() {
		defer wg.Done()
		blockCounts = countBlockElements(blocks)
	}()
	wg.Wait()
	if countErr != nil {
		return nil, countErr
	}

	srcSegs, segErr = extractSourceSegments(sourceHTML)
	if segErr != nil {
		return nil, segErr
	}
	blockSegs = extractBlockSegments(blocks)

	normSrc := normalizeSegments(srcSegs)
	normBlocks := normalizeSegments(blockSegs)

	report := &Report{SourceCounts: srcCounts, NotionCounts: blockCounts}
	compareCounts(report, opts.Tolerances)
	applyCoverage(report, normSrc, normBlocks, opts)

	return report, nil
}

// CompareText compares already-extracted plain source text against an
// uploaded block tree's text content (spec §6.1, POST
// /api/compare/notion-page). Unlike Validate, the caller here supplies
// text that was already extracted upstream, so only the text-coverage
// signal runs: there is no source HTML to count elements against.
func CompareText(srcText string, blocks []*workspace.Block, opts Options) *Report {
	if opts.CoverageThreshold == 0 {
		opts = DefaultOptions()
	}

	normSrc := normalizeSegments(splitTextLines(srcText))
	normBlocks := normalizeSegments(extractBlockSegments(blocks))

	report := &Report{NotionCounts: countBlockElements(blocks)}
	applyCoverage(report, normSrc, normBlocks, opts)
	return report
}

// applyCoverage computes the LCS-based raw/adjusted coverage scores and
// the inversion/error checks shared by Validate and CompareText (spec
// §4.4, "Text coverage").
func applyCoverage(report *Report, normSrc, normBlocks []string, opts Options) {
	report.Method = "exact"

	lcsLen, _ := longestCommonSubsequence(normSrc, normBlocks)
	denom := max(len(normSrc), len(normBlocks))
	if denom > 0 {
		report.Coverage = float64(lcsLen) / float64(denom)
	} else {
		report.Coverage = 1.0
	}

	missing, extra := setDiff(normSrc, normBlocks)
	reconciled, adjustedMatches := reconcile(missing, extra, opts)
	report.MissingSpans = reconciled
	if len(adjustedMatches) > 0 {
		report.Method = "fuzzy"
	}
	adjustedLCS := lcsLen + len(adjustedMatches)
	if denom > 0 {
		report.AdjustedCoverage = float64(adjustedLCS) / float64(denom)
	} else {
		report.AdjustedCoverage = 1.0
	}
	if report.AdjustedCoverage > 1.0 {
		report.AdjustedCoverage = 1.0
	}

	inversions := countInversions(normSrc, normBlocks)
	if inversions > opts.InversionWarn {
		report.Warnings = append(report.Warnings, "excessive_segment_inversions")
	} else if inversions > 0 {
		report.Warnings = append(report.Warnings, "segment_order_inversions_detected")
	}

	if report.Coverage < opts.CoverageThreshold {
		report.Errors = append(report.Errors, "coverage_below_threshold")
	}
	if len(report.MissingSpans) > opts.MaxMissingSpans {
		report.Errors = append(report.Errors, "missing_spans_exceed_allowance")
	}
	report.HasErrors = len(report.Errors) > 0
}
