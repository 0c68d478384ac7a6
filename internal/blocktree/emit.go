package blocktree

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/relaydocs/pagesync/internal/workspace"
	"github.com/relaydocs/pagesync/pkg/idgen"
)

// maxNestingDepth is how many levels beneath a list-item context the
// workspace schema tolerates before the builder must flatten (spec
// §4.2, "Limits and normalization rules").
const maxNestingDepth = 2

// walkChildren performs the depth-first walk over n's children,
// dispatching each element per the mapping table in spec §4.2 and
// inlining unknown containers' children at the container's position.
func (b *builder) walkChildren(ctx context.Context, n *html.Node, listDepth int) []*workspace.Block {
	var out []*workspace.Block
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, b.emitNode(ctx, c, listDepth)...)
	}
	return b.mergeAdjacentCallouts(out)
}

func (b *builder) emitNode(ctx context.Context, n *html.Node, listDepth int) []*workspace.Block {
	switch n.Type {
	case html.TextNode:
		text := collapseWhitespace(n.Data)
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []*workspace.Block{b.withMarker(&workspace.Block{
			Kind:     workspace.KindParagraph,
			RichText: RichRunList{{Text: text}}.toWorkspace(b.opts),
		})}
	case html.CommentNode:
		return nil
	case html.ElementNode:
		return b.emitElement(ctx, n, listDepth)
	default:
		return nil
	}
}

func (b *builder) emitElement(ctx context.Context, n *html.Node, listDepth int) []*workspace.Block {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return []*workspace.Block{b.emitHeading(n)}
	case "p":
		return b.emitParagraph(n)
	case "ul", "ol":
		return b.walkChildren(ctx, n, listDepth)
	case "li":
		return []*workspace.Block{b.emitListItem(ctx, n, listDepth)}
	case "table":
		return []*workspace.Block{b.emitTable(n)}
	case "pre":
		return []*workspace.Block{b.emitCode(n)}
	case "blockquote":
		return []*workspace.Block{b.withMarker(&workspace.Block{
			Kind:     workspace.KindQuote,
			RichText: b.inlineRuns(n),
			Children: b.walkNonInlineChildren(ctx, n, listDepth+1),
		})}
	case "img":
		return []*workspace.Block{b.emitImage(ctx, n)}
	case "video":
		return []*workspace.Block{b.emitVideo(n)}
	case "iframe":
		return []*workspace.Block{b.emitEmbed(n)}
	case "hr":
		return []*workspace.Block{{Kind: workspace.KindDivider}}
	case "a", "b", "strong", "i", "em", "s", "del", "u", "code", "span":
		// Pure inline elements reached directly under a block container
		// (e.g. the content root has a bare `<a>` as a top-level node)
		// become a paragraph wrapping their inline runs.
		runs := b.inlineRuns(n)
		if len(runs) == 0 {
			return nil
		}
		return []*workspace.Block{b.withMarker(&workspace.Block{Kind: workspace.KindParagraph, RichText: runs})}
	default:
		if isCalloutDiv(n) {
			return []*workspace.Block{b.emitCallout(ctx, n, listDepth)}
		}
		if isCodeBlockDiv(n) {
			return []*workspace.Block{b.emitCode(n)}
		}
		// Unknown container: inline its children at this position (spec
		// §4.2 mapping table, "unknown container").
		return b.walkChildren(ctx, n, listDepth)
	}
}

func (b *builder) emitHeading(n *html.Node) *workspace.Block {
	level, _ := strconv.Atoi(strings.TrimPrefix(n.Data, "h"))
	kind := workspace.KindHeading1
	switch level {
	case 1:
		kind = workspace.KindHeading1
	case 2:
		kind = workspace.KindHeading2
	default:
		kind = workspace.KindHeading3
	}
	runs := b.inlineRuns(n)
	if level > 3 {
		prefix := strings.Repeat("▸ ", level-3)
		if len(runs) > 0 {
			runs[0].Text = prefix + runs[0].Text
		} else {
			runs = []workspace.RichRun{{Text: strings.TrimSpace(prefix)}}
		}
	}
	return b.withMarker(&workspace.Block{Kind: kind, RichText: runs})
}

func (b *builder) emitParagraph(n *html.Node) []*workspace.Block {
	runs := b.inlineRuns(n)
	if len(runs) == 0 {
		return nil // empty paragraphs dropped (spec §4.2, limits)
	}
	return []*workspace.Block{b.withMarker(&workspace.Block{Kind: workspace.KindParagraph, RichText: runs})}
}

func (b *builder) emitListItem(ctx context.Context, n *html.Node, listDepth int) *workspace.Block {
	kind := workspace.KindBulletedItem
	if n.Parent != nil && n.Parent.Data == "ol" {
		kind = workspace.KindNumberedItem
	}

	runs := b.inlineRuns(n)
	children := b.walkNonInlineChildren(ctx, n, listDepth+1)
	children = b.flattenDepth(children, 0)

	// "A list item whose only child is a single paragraph has the
	// paragraph inlined" (spec §4.2, "Edge policies").
	if len(runs) == 0 && len(children) == 1 && children[0].Kind == workspace.KindParagraph {
		only := children[0]
		return b.withMarker(&workspace.Block{Kind: kind, RichText: only.RichText, Children: only.Children})
	}

	return b.withMarker(&workspace.Block{Kind: kind, RichText: runs, Children: children})
}

// walkNonInlineChildren emits block-level children of n (nested lists,
// tables, callouts, code) while skipping pure inline/text content
// already captured by inlineRuns.
func (b *builder) walkNonInlineChildren(ctx context.Context, n *html.Node, listDepth int) []*workspace.Block {
	var out []*workspace.Block
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			continue
		}
		if c.Type == html.ElementNode && isInlineTag(c.Data) {
			continue
		}
		out = append(out, b.emitNode(ctx, c, listDepth)...)
	}
	return b.mergeAdjacentCallouts(out)
}

func (b *builder) withMarker(blk *workspace.Block) *workspace.Block {
	token := "(src:" + idgen.NewMarkerToken() + ")"
	switch blk.Kind {
	case workspace.KindParagraph, workspace.KindHeading1, workspace.KindHeading2, workspace.KindHeading3,
		workspace.KindBulletedItem, workspace.KindNumberedItem, workspace.KindToggle, workspace.KindQuote,
		workspace.KindToDo, workspace.KindCallout:
		blk.RichText = append(blk.RichText, workspace.RichRun{Text: token})
	case workspace.KindCode:
		blk.Caption = append(blk.Caption, workspace.RichRun{Text: token})
	}
	return blk
}

// flattenDepth hoists children deeper than maxNestingDepth up to the
// nearest permitted parent, preserving relative order, and records a
// warning (spec §4.2, "Limits and normalization rules").
func (b *builder) flattenDepth(blocks []*workspace.Block, depth int) []*workspace.Block {
	if depth >= maxNestingDepth {
		var hoisted []*workspace.Block
		for _, blk := range blocks {
			hoisted = append(hoisted, blk)
			if len(blk.Children) > 0 && !workspace.IsLeafKind(blk.Kind) {
				hoisted = append(hoisted, b.flattenDepth(blk.Children, depth)...)
				blk.Children = nil
				b.warn("[nesting flattened]")
			}
		}
		return hoisted
	}
	for _, blk := range blocks {
		if workspace.IsLeafKind(blk.Kind) {
			continue
		}
		blk.Children = b.flattenDepth(blk.Children, depth+1)
	}
	return blocks
}

// normalizeTopLevel applies tree-wide normalization that only makes
// sense once the full top-level slice is known (spec §4.2 step 5).
func (b *builder) normalizeTopLevel(blocks []*workspace.Block) []*workspace.Block {
	return b.mergeAdjacentCallouts(blocks)
}

// mergeAdjacentCallouts deduplicates adjacent identical callouts
// produced by style redundancies (spec §8, S2).
func (b *builder) mergeAdjacentCallouts(blocks []*workspace.Block) []*workspace.Block {
	if len(blocks) < 2 {
		return blocks
	}
	out := blocks[:1]
	for i := 1; i < len(blocks); i++ {
		prev := out[len(out)-1]
		cur := blocks[i]
		if prev.Kind == workspace.KindCallout && cur.Kind == workspace.KindCallout &&
			plainText(prev.RichText) == plainText(cur.RichText) {
			b.warn("duplicate_callouts_collapsed")
			continue
		}
		out = append(out, cur)
	}
	return out
}

func plainText(runs []workspace.RichRun) string {
	var sb strings.Builder
	for _, r := range runs {
		if strings.HasPrefix(r.Text, "(src:") {
			continue
		}
		sb.WriteString(r.Text)
	}
	return sb.String()
}

func isInlineTag(tag string) bool {
	switch tag {
	case "a", "b", "strong", "i", "em", "s", "del", "u", "code", "span", "br":
		return true
	default:
		return false
	}
}

func isCalloutDiv(n *html.Node) bool {
	if n.Data != "div" {
		return false
	}
	cls := attrValue(n, "class")
	for _, c := range []string{"note", "info", "warning", "important", "caution", "tip"} {
		if hasClassToken(cls, c) {
			return true
		}
	}
	return false
}

func isCodeBlockDiv(n *html.Node) bool {
	return n.Data == "code" && hasClassToken(attrValue(n, "class"), "codeblock")
}

var calloutIcons = map[string]string{
	"note": "ⓘ", "info": "ⓘ", "warning": "⚠", "important": "❗",
	"caution": "⚠", "tip": "💡",
}

var calloutColors = map[string]string{
	"note": "gray", "info": "blue", "warning": "yellow",
	"important": "red", "caution": "orange", "tip": "green",
}

func (b *builder) emitCallout(ctx context.Context, n *html.Node, listDepth int) *workspace.Block {
	cls := attrValue(n, "class")
	icon, color := "ⓘ", "gray"
	for _, c := range []string{"note", "info", "warning", "important", "caution", "tip"} {
		if hasClassToken(cls, c) {
			icon, color = calloutIcons[c], calloutColors[c]
			break
		}
	}
	return b.withMarker(&workspace.Block{
		Kind:     workspace.KindCallout,
		RichText: b.inlineRuns(n),
		Icon:     icon,
		Color:    color,
		Children: b.walkNonInlineChildren(ctx, n, listDepth+1),
	})
}

var languageAllowlist = map[string]bool{
	"go": true, "javascript": true, "typescript": true, "python": true, "java": true,
	"c": true, "cpp": true, "csharp": true, "ruby": true, "rust": true, "bash": true,
	"shell": true, "json": true, "yaml": true, "html": true, "css": true, "sql": true,
	"plain text": true, "xml": true, "markdown": true,
}

func (b *builder) emitCode(n *html.Node) *workspace.Block {
	lang := attrValue(n, "data-language")
	if lang == "" {
		if codeChild := findTag(n, "code"); codeChild != nil {
			lang = languageFromClass(attrValue(codeChild, "class"))
		}
		if lang == "" {
			lang = languageFromClass(attrValue(n, "class"))
		}
	}
	lang = strings.ToLower(lang)
	if lang == "" || !languageAllowlist[lang] {
		lang = "plain text"
	}
	return b.withMarker(&workspace.Block{
		Kind:     workspace.KindCode,
		RichText: RichRunList{{Text: rawText(n)}}.toWorkspace(b.opts),
		Language: lang,
	})
}

func languageFromClass(cls string) string {
	for _, tok := range strings.Fields(cls) {
		if strings.HasPrefix(tok, "language-") {
			return strings.TrimPrefix(tok, "language-")
		}
	}
	return ""
}

func (b *builder) emitImage(ctx context.Context, n *html.Node) *workspace.Block {
	src := attrValue(n, "src")
	alt := attrValue(n, "alt")

	if strings.HasPrefix(src, "data:") && len(src) >= b.opts.DataURIInlineLimit {
		uploaded, err := b.opts.Uploader.Upload(ctx, src)
		if err != nil {
			b.warn("image_upload_failed")
			return &workspace.Block{
				Kind:    workspace.KindBookmark,
				URL:     "",
				Caption: RichRunList{{Text: alt}}.toWorkspace(b.opts),
			}
		}
		src = uploaded
	}

	return &workspace.Block{
		Kind:    workspace.KindImage,
		URL:     src,
		Caption: RichRunList{{Text: alt}}.toWorkspace(b.opts),
	}
}

func (b *builder) emitVideo(n *html.Node) *workspace.Block {
	src := attrValue(n, "src")
	if source := findTag(n, "source"); source != nil && src == "" {
		src = attrValue(source, "src")
	}
	return &workspace.Block{Kind: workspace.KindVideo, URL: src}
}

func (b *builder) emitEmbed(n *html.Node) *workspace.Block {
	return &workspace.Block{Kind: workspace.KindVideo, URL: attrValue(n, "src")}
}

func rawText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
