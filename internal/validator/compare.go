package validator

// compareCounts emits an error onto report for every element kind whose
// count delta exceeds its tolerance (spec §4.4, "Element-count
// comparison").
func compareCounts(report *Report, tol Tolerances) {
	checks := []struct {
		name         string
		source, note int
		tolerance    int
	}{
		{"tables", report.SourceCounts.Tables, report.NotionCounts.Tables, tol.Tables},
		{"images", report.SourceCounts.Images, report.NotionCounts.Images, tol.Images},
		{"lists", report.SourceCounts.Lists, report.NotionCounts.Lists, tol.Lists},
		{"callouts", report.SourceCounts.Callouts, report.NotionCounts.Callouts, tol.Callouts},
		{"code_blocks", report.SourceCounts.CodeBlocks, report.NotionCounts.CodeBlocks, tol.CodeBlocks},
		{"headings", report.SourceCounts.Headings, report.NotionCounts.Headings, tol.Headings},
	}
	for _, c := range checks {
		delta := c.note - c.source
		if delta < 0 {
			delta = -delta
		}
		if delta > c.tolerance {
			report.Errors = append(report.Errors, "element_count_mismatch:"+c.name)
		}
	}
}
