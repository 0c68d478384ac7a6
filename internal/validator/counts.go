package validator

import (
	"bytes"

	"golang.org/x/net/html"

	"github.com/relaydocs/pagesync/internal/workspace"
)

func countSourceElements(src []byte) (ElementCounts, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return ElementCounts{}, err
	}
	var counts ElementCounts
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "table":
				counts.Tables++
			case "img":
				counts.Images++
			case "ul", "ol":
				counts.Lists++
			case "h1", "h2", "h3", "h4", "h5", "h6":
				counts.Headings++
			case "pre":
				counts.CodeBlocks++
			case "div":
				if isCalloutDivNode(n) {
					counts.Callouts++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return counts, nil
}

func isCalloutDivNode(n *html.Node) bool {
	var cls string
	for _, a := range n.Attr {
		if a.Key == "class" {
			cls = a.Val
		}
	}
	for _, want := range []string{"note", "info", "warning", "important", "caution", "tip"} {
		for _, tok := range splitFields(cls) {
			if tok == want {
				return true
			}
		}
	}
	return false
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

// CountBlockElements tallies ElementCounts over a block tree using the
// same rules Validate applies to the uploaded side of a comparison.
// Exposed for callers that only have a remote-fetched block list and no
// source HTML to compare against (spec §6.1, POST /api/validate).
func CountBlockElements(blocks []*workspace.Block) ElementCounts {
	return countBlockElements(blocks)
}

func countBlockElements(blocks []*workspace.Block) ElementCounts {
	var counts ElementCounts
	var walk func(b *workspace.Block)
	walk = func(b *workspace.Block) {
		switch b.Kind {
		case workspace.KindTable:
			counts.Tables++
		case workspace.KindImage:
			counts.Images++
		case workspace.KindBulletedItem, workspace.KindNumberedItem:
			counts.Lists++
		case workspace.KindCallout:
			counts.Callouts++
		case workspace.KindCode:
			counts.CodeBlocks++
		case workspace.KindHeading1, workspace.KindHeading2, workspace.KindHeading3:
			counts.Headings++
		}
		for _, c := range b.Children {
			walk(c)
		}
	}
	for _, b := range blocks {
		walk(b)
	}
	// Block-model lists are counted per logical list (consecutive items
	// of the same kind at the same level), not per item, to compare
	// against the source's per-<ul>/<ol> count.
	counts.Lists = countLogicalLists(blocks)
	return counts
}

func countLogicalLists(blocks []*workspace.Block) int {
	total := 0
	var walk func(siblings []*workspace.Block)
	walk = func(siblings []*workspace.Block) {
		inRun := false
		for _, b := range siblings {
			isItem := b.Kind == workspace.KindBulletedItem || b.Kind == workspace.KindNumberedItem
			if isItem && !inRun {
				total++
				inRun = true
			} else if !isItem {
				inRun = false
			}
			walk(b.Children)
		}
	}
	walk(blocks)
	return total
}
