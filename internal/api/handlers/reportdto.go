package handlers

import "github.com/relaydocs/pagesync/internal/validator"

// reportDTO is the JSON shape of a validator.Report.
type reportDTO struct {
	SourceCounts     validator.ElementCounts `json:"sourceCounts"`
	NotionCounts     validator.ElementCounts `json:"notionCounts"`
	HasErrors        bool                    `json:"hasErrors"`
	Errors           []string                `json:"errors,omitempty"`
	Warnings         []string                `json:"warnings,omitempty"`
	Coverage         float64                 `json:"coverage"`
	AdjustedCoverage float64                 `json:"adjustedCoverage"`
	MissingSpans     []string                `json:"missingSpans,omitempty"`
	Method           string                  `json:"method"`
}

func toReportDTO(r *validator.Report) reportDTO {
	if r == nil {
		return reportDTO{}
	}
	return reportDTO{
		SourceCounts: r.SourceCounts, NotionCounts: r.NotionCounts, HasErrors: r.HasErrors,
		Errors: r.Errors, Warnings: r.Warnings, Coverage: r.Coverage,
		AdjustedCoverage: r.AdjustedCoverage, MissingSpans: r.MissingSpans, Method: r.Method,
	}
}
