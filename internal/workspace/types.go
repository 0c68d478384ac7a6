// Package workspace is the token-aware client for the hosted document
// workspace API (spec §4.1). It owns the bearer token, the HTTPS
// connection pool, request-level retry/backoff, and global pacing; it
// never lets a raw HTTP error cross its boundary (spec §7, "Propagation
// policy") — every failure is mapped to the Kind taxonomy in errors.go
// before returning.
//
// Wire types below are hand-rolled encoding/json structs rather than an
// imported Notion SDK (see DESIGN.md) because the tagged-sum shape (spec
// §9, "Dynamic field access on workspace payloads") needs precise control
// over which key the per-kind payload marshals under.
package workspace

// BlockKind enumerates the block kinds the workspace schema accepts
// (spec §3, entity Block).
type BlockKind string

const (
	KindParagraph     BlockKind = "paragraph"
	KindHeading1      BlockKind = "heading_1"
	KindHeading2      BlockKind = "heading_2"
	KindHeading3      BlockKind = "heading_3"
	KindBulletedItem  BlockKind = "bulleted_list_item"
	KindNumberedItem  BlockKind = "numbered_list_item"
	KindToDo          BlockKind = "to_do"
	KindToggle        BlockKind = "toggle"
	KindQuote         BlockKind = "quote"
	KindCallout       BlockKind = "callout"
	KindCode          BlockKind = "code"
	KindImage         BlockKind = "image"
	KindVideo         BlockKind = "video"
	KindDivider       BlockKind = "divider"
	KindTable         BlockKind = "table"
	KindTableRow      BlockKind = "table_row"
	KindBookmark      BlockKind = "bookmark"
	KindChildPage     BlockKind = "child_page"
	KindSynced        BlockKind = "synced_block"
	KindLinkToPage    BlockKind = "link_to_page"
)

// leafKinds never accept children in the workspace schema (spec §8,
// property 6: "No children on leaf kinds").
var leafKinds = map[BlockKind]bool{
	KindDivider:  true,
	KindImage:    true,
	KindVideo:    true,
	KindBookmark: true,
	KindTableRow: true,
	KindSynced:   true,
	KindLinkToPage: true,
}

// IsLeafKind reports whether kind must never carry children.
func IsLeafKind(kind BlockKind) bool {
	return leafKinds[kind]
}

// Annotations are the independent rich-text style bits (spec §3, entity
// RichRun).
type Annotations struct {
	Bold      bool   `json:"bold"`
	Italic    bool   `json:"italic"`
	Strike    bool   `json:"strikethrough"`
	Underline bool   `json:"underline"`
	Code      bool   `json:"code"`
	Color     string `json:"color,omitempty"`
}

// RichRun is one run of annotated text, optionally a link (spec §3,
// entity RichRun). Text is never longer than 2000 code points; longer
// runs are split by the builder before reaching this type.
type RichRun struct {
	Text        string       `json:"text"`
	Annotations *Annotations `json:"annotations,omitempty"`
	Href        *string      `json:"href,omitempty"`
}

func richRunJSON(r RichRun) map[string]any {
	text := map[string]any{"content": r.Text}
	if r.Href != nil {
		text["link"] = map[string]any{"url": *r.Href}
	}
	out := map[string]any{
		"type": "text",
		"text": text,
	}
	if r.Annotations != nil {
		out["annotations"] = r.Annotations
	}
	if r.Href != nil {
		out["href"] = *r.Href
	}
	return out
}

func richTextJSON(runs []RichRun) []map[string]any {
	out := make([]map[string]any, 0, len(runs))
	for _, r := range runs {
		out = append(out, richRunJSON(r))
	}
	return out
}

// TableShape describes a table block's column/row geometry (spec §3,
// entity TableShape).
type TableShape struct {
	ColumnCount int
	HasHeader   bool
	RowCount    int
}

// Block is the tagged sum over block kind (spec §9, "Dynamic field
// access on workspace payloads": "prefer a tagged sum over block kind
// rather than a single untyped map"). Exactly one of the typed payload
// fields is populated, matching Kind; Children holds nested blocks for
// kinds that accept them.
type Block struct {
	ID       string // assigned by the workspace after upload; empty until then
	Kind     BlockKind
	Children []*Block

	RichText []RichRun // paragraph, headings, list items, to_do, toggle, quote, code captions

	// kind-specific extras
	Checked         bool   // to_do
	Language        string // code
	URL             string // image, video, bookmark, link_to_page
	Caption         []RichRun
	Icon            string // callout
	Color           string // callout
	TableWidth      int    // table
	HasColumnHeader bool   // table
	HasRowHeader    bool   // table
	Cells           [][]RichRun // table_row
	Title           string      // child_page
	LinkedPageID    string      // link_to_page
}

// MarshalJSON renders the block in the workspace's wire shape: a
// discriminated object keyed by "type" whose value is an object keyed by
// the type name itself, per the real block-API schema.
func (b *Block) MarshalJSON() ([]byte, error) {
	payload, err := b.payloadJSON()
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"object": "block",
		"type":   string(b.Kind),
		string(b.Kind): payload,
	}
	return jsonMarshal(out)
}

func (b *Block) payloadJSON() (map[string]any, error) {
	payload := map[string]any{}
	switch b.Kind {
	case KindParagraph, KindHeading1, KindHeading2, KindHeading3,
		KindBulletedItem, KindNumberedItem, KindToggle, KindQuote:
		payload["rich_text"] = richTextJSON(b.RichText)
		if len(b.Children) > 0 {
			payload["children"] = b.Children
		}
	case KindToDo:
		payload["rich_text"] = richTextJSON(b.RichText)
		payload["checked"] = b.Checked
		if len(b.Children) > 0 {
			payload["children"] = b.Children
		}
	case KindCallout:
		payload["rich_text"] = richTextJSON(b.RichText)
		payload["icon"] = map[string]any{"type": "emoji", "emoji": b.Icon}
		if b.Color != "" {
			payload["color"] = b.Color
		}
		if len(b.Children) > 0 {
			payload["children"] = b.Children
		}
	case KindCode:
		payload["rich_text"] = richTextJSON(b.RichText)
		payload["language"] = b.Language
		if len(b.Caption) > 0 {
			payload["caption"] = richTextJSON(b.Caption)
		}
	case KindImage:
		payload["type"] = "external"
		payload["external"] = map[string]any{"url": b.URL}
		if len(b.Caption) > 0 {
			payload["caption"] = richTextJSON(b.Caption)
		}
	case KindVideo:
		payload["type"] = "external"
		payload["external"] = map[string]any{"url": b.URL}
	case KindBookmark:
		payload["url"] = b.URL
		if len(b.Caption) > 0 {
			payload["caption"] = richTextJSON(b.Caption)
		}
	case KindDivider, KindSynced:
		// no payload fields
	case KindTable:
		payload["table_width"] = b.TableWidth
		payload["has_column_header"] = b.HasColumnHeader
		payload["has_row_header"] = b.HasRowHeader
		if len(b.Children) > 0 {
			payload["children"] = b.Children
		}
	case KindTableRow:
		rows := make([][]map[string]any, 0, len(b.Cells))
		for _, cell := range b.Cells {
			rows = append(rows, richTextJSON(cell))
		}
		payload["cells"] = rows
	case KindChildPage:
		payload["title"] = b.Title
	case KindLinkToPage:
		payload["type"] = "page_id"
		payload["page_id"] = b.LinkedPageID
	default:
		return nil, errUnknownBlockKind(b.Kind)
	}
	return payload, nil
}

// CountChildren returns the number of direct children, used when
// enforcing the 100-child submission limit (spec §4.2).
func (b *Block) CountChildren() int {
	return len(b.Children)
}
