package blocktree

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/relaydocs/pagesync/internal/workspace"
)

// RichRun is the builder's working representation of one annotated
// inline run, before it is split to the workspace's 2000-code-point
// limit and converted to workspace.RichRun (spec §3, entity RichRun).
type RichRun struct {
	Text   string
	Bold   bool
	Italic bool
	Strike bool
	Under  bool
	Code   bool
	Color  string
	Href   *string
}

var colorAllowlist = map[string]string{
	"red": "red", "blue": "blue", "green": "green", "yellow": "yellow",
	"orange": "orange", "purple": "purple", "pink": "pink", "gray": "gray", "grey": "gray",
}

// inlineRuns walks n's inline descendants and flattens them into an
// ordered list of annotated runs (spec §4.2, "Inline rich-text rules").
func (b *builder) inlineRuns(n *html.Node) []workspace.RichRun {
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
			case "a":
				href := attrValue(node, "href")
				next.Href = &href
			case "br":
				runs = append(runs, RichRun{Text: "\n"})
				return
			case "span":
				if color := extractAllowlistedColor(attrValue(node, "style")); color != "" {
					next.Color = color
				}
			}
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				walk(c, next)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !isInlineTag(c.Data) && c.Data != "br" {
			continue
		}
		walk(c, RichRun{})
	}
	return RichRunList(runs).toWorkspace(b.opts)
}

// RichRunList is RichRun's slice type, named so toWorkspace can hang off
// a literal built at the call site.
type RichRunList []RichRun

func extractAllowlistedColor(style string) string {
	idx := strings.Index(style, "color:")
	if idx < 0 {
		return ""
	}
	rest := style[idx+len("color:"):]
	if semi := strings.IndexByte(rest, ';'); semi >= 0 {
		rest = rest[:semi]
	}
	rest = strings.ToLower(strings.TrimSpace(rest))
	return colorAllowlist[rest]
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func toAnnotations(r RichRun) *workspace.Annotations {
	if !r.Bold && !r.Italic && !r.Strike && !r.Under && !r.Code && r.Color == "" {
		return nil
	}
	return &workspace.Annotations{
		Bold: r.Bold, Italic: r.Italic, Strike: r.Strike, Underline: r.Under,
		Code: r.Code, Color: r.Color,
	}
}

// splitRun splits text at a maximum of maxLen code points, preferring a
// space boundary near the limit so words are not broken in half, and
// never cutting inside a normalization segment — a base rune plus its
// combining marks — falling back to a plain code-point boundary only
// when a segment itself doesn't fit in the window (spec §4.2: "split is
// on a grapheme boundary if possible, otherwise on any code-point
// boundary"). Segment boundaries come from golang.org/x/text/unicode/norm,
// the same package internal/validator/textseg.go normalizes text
// through; it does not model full UAX #29 grapheme clusters (a ZWJ emoji
// sequence can still be split between its parts), only NFC combining
// sequences.
func splitRun(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}
	runes := []rune(text)
	bounds := graphemeBoundaries(text)
	var out []string
	pos := 0
	for pos < len(runes) {
		end := pos + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		if end < len(runes) {
			end = backOffToSpace(runes, pos, end)
			end = snapToGraphemeBoundary(bounds, pos, end)
		}
		if end <= pos {
			end = pos + 1
		}
		out = append(out, strings.TrimSpace(string(runes[pos:end])))
		pos = end
	}
	return out
}

// backOffToSpace steps end back to the nearest preceding whitespace rune
// at or after lo, so a split doesn't fall in the middle of a word. If no
// whitespace is found before lo, end is returned unchanged.
func backOffToSpace(runes []rune, lo, end int) int {
	cut := end
	for cut > lo && !unicode.IsSpace(runes[cut]) {
		cut--
	}
	if cut > lo {
		return cut
	}
	return end
}

// graphemeBoundaries returns the rune indices into text where each
// NFC normalization segment begins — positions safe to cut without
// separating a base rune from a combining mark that follows it.
func graphemeBoundaries(text string) []int {
	bounds := make([]int, 0, utf8.RuneCountInString(text))
	var iter norm.Iter
	iter.InitString(norm.NFC, text)
	runeIdx := 0
	for !iter.Done() {
		bounds = append(bounds, runeIdx)
		start := iter.Pos()
		iter.Next()
		// Count the input runes the segment consumed, not the runes of its
		// NFC-composed output, so indices stay aligned with text.
		runeIdx += utf8.RuneCountInString(text[start:iter.Pos()])
	}
	return bounds
}

// snapToGraphemeBoundary adjusts end down to the nearest boundary in
// (lo, end]; if the segment starting at lo doesn't have one before end
// (it overruns the window on its own), end is returned unchanged — a
// code-point cut is the documented fallback.
func snapToGraphemeBoundary(bounds []int, lo, end int) int {
	best := end
	for _, b := range bounds {
		if b > end {
			break
		}
		if b > lo {
			best = b
		}
	}
	return best
}

func (runs RichRunList) toWorkspace(opts Options) []workspace.RichRun {
	var out []workspace.RichRun
	for _, r := range runs {
		parts := splitRun(r.Text, opts.MaxRunLength)
		for _, p := range parts {
			if p == "" {
				continue
			}
			out = append(out, workspace.RichRun{
				Text:        p,
				Annotations: toAnnotations(r),
				Href:        r.Href,
			})
		}
	}
	return out
}
