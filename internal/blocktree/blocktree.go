// Package blocktree is the pure HTML-to-block-tree transformation (spec
// §4.2). It owns no network state and performs no I/O beyond reading the
// bytes it is given; Build is safe to call concurrently from many
// requests.
package blocktree

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/relaydocs/pagesync/internal/workspace"
)

// ImageUploader re-hosts an image so the workspace can reference it by a
// stable external URL (spec §6.4). The default implementation returns
// the original URL unchanged.
type ImageUploader interface {
	Upload(ctx context.Context, srcURL string) (externalURL string, err error)
}

// PassthroughUploader is the default ImageUploader: it never re-hosts
// anything.
type PassthroughUploader struct{}

// Upload returns srcURL unchanged.
func (PassthroughUploader) Upload(_ context.Context, srcURL string) (string, error) {
	return srcURL, nil
}

// Options configures a single Build call.
type Options struct {
	// MaxRunLength bounds a rich-text run's length in code points before
	// the builder splits it (spec §4.2, "Inline rich-text rules").
	MaxRunLength int
	// DataURIInlineLimit is the byte threshold under which a data: image
	// URI is kept inline rather than routed to Uploader (spec §4.2,
	// "Edge policies").
	DataURIInlineLimit int
	Uploader           ImageUploader
}

// DefaultOptions returns the spec-mandated defaults.
func DefaultOptions() Options {
	return Options{
		MaxRunLength:        2000,
		DataURIInlineLimit:  8 * 1024,
		Uploader:            PassthroughUploader{},
	}
}

// Result is everything Build produces from one source document.
type Result struct {
	Blocks   []*workspace.Block
	Warnings []string
	// MarkerIndex maps marker token -> the block id's ordinal position in
	// a depth-first walk of Blocks, used by the validator and the
	// orchestrator's sweeper to correlate source elements to uploaded
	// blocks (spec §3, entity Marker; spec §9 "Marker strategy").
	MarkerIndex map[string]int
}

// Build parses src as permissive HTML5 and emits a block tree honoring
// the workspace schema (spec §4.2). It never returns a cyclic tree: the
// DOM walk only ever descends into FirstChild/NextSibling, which cannot
// cycle back to an ancestor.
func Build(ctx context.Context, src []byte, opts Options) (*Result, error) {
	if opts.MaxRunLength <= 0 {
		opts = DefaultOptions()
	}

	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("blocktree: parse html: %w", err)
	}

	root := locateContentRoot(doc)
	stripDisallowed(root)

	b := &builder{
		opts:        opts,
		markerIndex: map[string]int{},
	}
	blocks := b.walkChildren(ctx, root, 0)
	blocks = b.normalizeTopLevel(blocks)

	for i, blk := range blocks {
		b.indexMarkers(blk, &i)
	}

	return &Result{
		Blocks:      blocks,
		Warnings:    b.warnings,
		MarkerIndex: b.markerIndex,
	}, nil
}

type builder struct {
	opts        Options
	warnings    []string
	markerIndex map[string]int
	ordinal     int
}

func (b *builder) warn(w string) {
	b.warnings = append(b.warnings, w)
}

func (b *builder) indexMarkers(blk *workspace.Block, _ *int) {
	for _, r := range blk.RichText {
		if tok, ok := extractMarkerToken(r.Text); ok {
			b.markerIndex[tok] = b.ordinal
		}
	}
	b.ordinal++
	for _, child := range blk.Children {
		b.indexMarkers(child, nil)
	}
}

// locateContentRoot chooses the first matching container per the
// priority list in spec §4.2 step 1.
func locateContentRoot(doc *html.Node) *html.Node {
	candidates := []func(*html.Node) *html.Node{
		func(n *html.Node) *html.Node { return findByClass(n, "body-content", "docBody") },
		func(n *html.Node) *html.Node { return findByClass(n, "dita", "refbody") },
		func(n *html.Node) *html.Node { return findByAttr(n, "role", "main") },
		func(n *html.Node) *html.Node { return findTag(n, "main") },
		func(n *html.Node) *html.Node { return findTag(n, "body") },
	}
	for _, find := range candidates {
		if n := find(doc); n != nil {
			return n
		}
	}
	return doc
}

func findTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findByClass(n *html.Node, classes ...string) *html.Node {
	if n.Type == html.ElementNode {
		cls := attrValue(n, "class")
		for _, want := range classes {
			if hasClassToken(cls, want) {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, classes...); found != nil {
			return found
		}
	}
	return nil
}

func findByAttr(n *html.Node, key, val string) *html.Node {
	if n.Type == html.ElementNode && attrValue(n, key) == val {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByAttr(c, key, val); found != nil {
			return found
		}
	}
	return nil
}

func hasClassToken(classAttr, want string) bool {
	for _, tok := range strings.Fields(classAttr) {
		if strings.EqualFold(tok, want) {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

var disallowedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
}

// stripDisallowed removes nodes the spec excludes outright (spec §4.2
// step 2): every disallowed tag other than iframe, every svg, and every
// iframe whose src is not on the oEmbed allow-list. Allow-listed iframes
// are left in place so the walk can emit them as video blocks. An svg is
// always dropped, including one beside an img; no alt text is taken from
// it.
func stripDisallowed(root *html.Node) {
	var remove []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "svg" || (disallowedTags[n.Data] && n.Data != "iframe") {
				remove = append(remove, n)
				return
			}
			if n.Data == "iframe" && !isAllowlistedEmbed(n) {
				remove = append(remove, n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	for _, n := range remove {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

var embedAllowlist = []string{"youtube.com", "youtube-nocookie.com", "vimeo.com", "player.vimeo.com"}

func isAllowlistedEmbed(n *html.Node) bool {
	src := attrValue(n, "src")
	for _, host := range embedAllowlist {
		if strings.Contains(src, host) {
			return true
		}
	}
	return false
}

func extractMarkerToken(text string) (string, bool) {
	const prefix = "(src:"
	start := strings.LastIndex(text, prefix)
	if start < 0 {
		return "", false
	}
	end := strings.Index(text[start:], ")")
	if end < 0 {
		return "", false
	}
	return text[start : start+end+1], true
}
