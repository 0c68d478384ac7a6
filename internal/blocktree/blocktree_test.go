package blocktree

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaydocs/pagesync/internal/workspace"
)

func TestBuild_MinimalPage(t *testing.T) {
	res, err := Build(context.Background(), []byte(`<h1>Hello</h1><p>World.</p>`), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Blocks, 2)

	assert.Equal(t, workspace.KindHeading1, res.Blocks[0].Kind)
	assert.Equal(t, "Hello", plainText(res.Blocks[0].RichText))

	assert.Equal(t, workspace.KindParagraph, res.Blocks[1].Kind)
	assert.Equal(t, "World.", plainText(res.Blocks[1].RichText))
}

func TestBuild_CalloutDedup(t *testing.T) {
	src := `<div class="note">Careful.</div><div class="note">Careful.</div>`
	res, err := Build(context.Background(), []byte(src), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, workspace.KindCallout, res.Blocks[0].Kind)
	assert.Contains(t, res.Warnings, "duplicate_callouts_collapsed")
}

func TestBuild_TableWithHeader(t *testing.T) {
	src := `<table><thead><tr><th>A</th><th>B</th></tr></thead>` +
		`<tbody><tr><td>1</td><td>2</td></tr></tbody></table>`
	res, err := Build(context.Background(), []byte(src), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)

	tbl := res.Blocks[0]
	assert.Equal(t, workspace.KindTable, tbl.Kind)
	assert.True(t, tbl.HasColumnHeader)
	assert.Equal(t, 2, tbl.TableWidth)
	require.Len(t, tbl.Children, 2)
	for _, row := range tbl.Children {
		assert.Equal(t, workspace.KindTableRow, row.Kind)
		assert.Len(t, row.Cells, 2)
	}
}

func TestBuild_OversizedListPreservesOrderAndCount(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<ul>")
	for i := 0; i < 250; i++ {
		fmt.Fprintf(&sb, "<li>item %d</li>", i)
	}
	sb.WriteString("</ul>")

	res, err := Build(context.Background(), []byte(sb.String()), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Blocks, 250)
	assert.Equal(t, "item 0", plainText(res.Blocks[0].RichText))
	assert.Equal(t, "item 249", plainText(res.Blocks[249].RichText))
}

func TestBuild_NoChildrenOnLeafKinds(t *testing.T) {
	src := `<hr><img src="https://example.com/a.png" alt="a">`
	res, err := Build(context.Background(), []byte(src), DefaultOptions())
	require.NoError(t, err)
	for _, blk := range res.Blocks {
		if workspace.IsLeafKind(blk.Kind) {
			assert.Empty(t, blk.Children)
		}
	}
}

func TestBuild_HeadingClampAndPrefix(t *testing.T) {
	res, err := Build(context.Background(), []byte(`<h4>Deep</h4>`), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, workspace.KindHeading3, res.Blocks[0].Kind)
	assert.Contains(t, plainText(res.Blocks[0].RichText), "▸ ")
}

func TestBuild_EmptyParagraphsDropped(t *testing.T) {
	res, err := Build(context.Background(), []byte(`<p></p><p>  </p><p>real</p>`), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, "real", plainText(res.Blocks[0].RichText))
}

func TestBuild_CodeBlockLanguageFallback(t *testing.T) {
	res, err := Build(context.Background(), []byte(`<pre><code class="language-go">fn</code></pre>`), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, "go", res.Blocks[0].Language)

	res2, err := Build(context.Background(), []byte(`<pre><code>fn</code></pre>`), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "plain text", res2.Blocks[0].Language)
}

func TestSplitRun_RespectsMaxLength(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitRun(long, 2000)
	assert.Len(t, parts, 3)
	for _, p := range parts {
		assert.LessOrEqual(t, len([]rune(p)), 2000)
	}
}

func TestSplitRun_DoesNotSeverCombiningMarkFromBaseRune(t *testing.T) {
	// A base rune followed by a combining acute accent forms one
	// grapheme; with maxLen=10 a naive code-point cut would land right
	// between them (9 "x"s, then "e", then the accent).
	text := strings.Repeat("x", 9) + "e\u0301" + strings.Repeat("x", 20)
	parts := splitRun(text, 10)
	require.Len(t, parts, 4)

	assert.Equal(t, text, strings.Join(parts, ""))
	for _, p := range parts {
		runs := []rune(p)
		if len(runs) == 0 {
			continue
		}
		assert.Falsef(t, unicode.Is(unicode.Mn, runs[0]),
			"part %q starts with a combining mark severed from its base rune", p)
	}
}

func TestMarkerIndex_PopulatedForTextBearingBlocks(t *testing.T) {
	res, err := Build(context.Background(), []byte(`<p>hi</p>`), DefaultOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, res.MarkerIndex)
}
