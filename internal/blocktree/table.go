package blocktree

import (
	"golang.org/x/net/html"

	"github.com/relaydocs/pagesync/internal/workspace"
)

// emitTable converts a `<table>` into a table block with table_row
// children, one per source row, cells aligned to the widest row (spec
// §4.2 mapping table; spec §8, S3).
func (b *builder) emitTable(n *html.Node) *workspace.Block {
	hasHeader := findTag(n, "thead") != nil
	rows := tableRows(n)

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	children := make([]*workspace.Block, 0, len(rows))
	for _, row := range rows {
		cells := make([][]RichRun, width)
		for i := range cells {
			if i < len(row) {
				cells[i] = row[i]
			}
		}
		wsCells := make([][]workspace.RichRun, len(cells))
		for i, c := range cells {
			wsCells[i] = RichRunList(c).toWorkspace(b.opts)
		}
		children = append(children, &workspace.Block{Kind: workspace.KindTableRow, Cells: wsCells})
	}

	return &workspace.Block{
		Kind:            workspace.KindTable,
		TableWidth:      width,
		HasColumnHeader: hasHeader,
		Children:        children,
	}
}

// tableRows collects every `<tr>` under n (both in `<thead>` and
// `<tbody>`/bare) as an ordered slice of cell run-lists.
func tableRows(n *html.Node) [][][]RichRun {
	var rows [][][]RichRun
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "tr" {
			var cells [][]RichRun
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, inlineRunsRaw(c))
				}
			}
			rows = append(rows, cells)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return rows
}

// inlineRunsRaw is like (*builder).inlineRuns but returns the
// pre-conversion RichRun slice, since table cells are assembled into a
// [][]RichRun shape before a single shared toWorkspace pass.
func inlineRunsRaw(n *html.Node) []RichRun {
	var runs []RichRun
	var walk func(node *html.Node, acc RichRun)
	walk = func(node *html.Node, acc RichRun) {
		switch node.Type {
		case html.TextNode:
			text := collapseWhitespace(node.Data)
			if text == "" {
				return
			}
			r := acc
			r.Text = text
			runs = append(runs, r)
		case html.ElementNode:
			next := acc
			switch node.Data {
			case "b", "strong":
				next.Bold = true
			case "i", "em":
				next.Italic = true
			case "s", "del":
				next.Strike = true
			case "u":
				next.Under = true
			case "code":
				next.Code = true
			}
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				walk(c, next)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, RichRun{})
	}
	return runs
}
