package validator

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/relaydocs/pagesync/internal/workspace"
)

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true,
}

// extractSourceSegments walks src's text nodes in document order,
// skipping script/style/nav residue, and returns one segment per
// non-empty trimmed text run (spec §4.4, "Text coverage" step 1).
func extractSourceSegments(src []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	var segs []string
	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			skip = true
		}
		if !skip && n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				segs = append(segs, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)
	return segs, nil
}

// extractBlockSegments flattens every block's text payload into ordered
// segments (spec §4.4 step 1, "block text payloads").
func extractBlockSegments(blocks []*workspace.Block) []string {
	var segs []string
	var walk func(b *workspace.Block)
	walk = func(b *workspace.Block) {
		if t := blockPlainText(b); t != "" {
			segs = append(segs, t)
		}
		for _, c := range b.Children {
			walk(c)
		}
	}
	for _, b := range blocks {
		walk(b)
	}
	return segs
}

func blockPlainText(b *workspace.Block) string {
	var sb strings.Builder
	appendRuns := func(runs []workspace.RichRun) {
		for _, r := range runs {
			if strings.HasPrefix(r.Text, "(src:") {
				continue
			}
			sb.WriteString(r.Text)
			sb.WriteString(" ")
		}
	}
	appendRuns(b.RichText)
	for _, cell := range b.Cells {
		appendRuns(cell)
	}
	return strings.TrimSpace(sb.String())
}

// splitTextLines segments already-extracted plain text by line, for
// callers (CompareText) that hand in text rather than HTML (spec §6.1,
// POST /api/compare/notion-page).
func splitTextLines(text string) []string {
	var segs []string
	for _, line := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			segs = append(segs, t)
		}
	}
	return segs
}

// normalizeSegments applies spec §4.4 step 2 to each segment: lowercase,
// NFKD, drop combining marks, replace non-word characters with spaces,
// collapse whitespace.
func normalizeSegments(segs []string) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		n := normalizeText(s)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// normalizeText is idempotent: normalizeText(normalizeText(t)) ==
// normalizeText(t) for all t (spec §8, property 2), since every step is
// itself idempotent on its own output domain.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = norm.NFKD.String(s)

	var sb strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) { // combining mark
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
