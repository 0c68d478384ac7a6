package handlers

import "github.com/relaydocs/pagesync/internal/workspace"

// richRunDTO is the JSON shape of one workspace.RichRun, used only for
// decoding caller-supplied block trees (spec §6.1, POST
// /api/pages/{id}:appendChildren) — the builder produces workspace.Block
// values directly and never goes through this DTO.
type richRunDTO struct {
	Text      string  `json:"text"`
	Bold      bool    `json:"bold,omitempty"`
	Italic    bool    `json:"italic,omitempty"`
	Strike    bool    `json:"strikethrough,omitempty"`
	Underline bool    `json:"underline,omitempty"`
	Code      bool    `json:"code,omitempty"`
	Color     string  `json:"color,omitempty"`
	Href      *string `json:"href,omitempty"`
}

func (d richRunDTO) toRichRun() workspace.RichRun {
	run := workspace.RichRun{Text: d.Text, Href: d.Href}
	if d.Bold || d.Italic || d.Strike || d.Underline || d.Code || d.Color != "" {
		run.Annotations = &workspace.Annotations{
			Bold: d.Bold, Italic: d.Italic, Strike: d.Strike, Underline: d.Underline,
			Code: d.Code, Color: d.Color,
		}
	}
	return run
}

func toRichRuns(dtos []richRunDTO) []workspace.RichRun {
	if len(dtos) == 0 {
		return nil
	}
	out := make([]workspace.RichRun, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toRichRun())
	}
	return out
}

// blockDTO is the JSON shape of one workspace.Block for request decoding.
type blockDTO struct {
	Kind            workspace.BlockKind `json:"kind"`
	Children        []blockDTO          `json:"children,omitempty"`
	RichText        []richRunDTO        `json:"richText,omitempty"`
	Checked         bool                `json:"checked,omitempty"`
	Language        string              `json:"language,omitempty"`
	URL             string              `json:"url,omitempty"`
	Caption         []richRunDTO        `json:"caption,omitempty"`
	Icon            string              `json:"icon,omitempty"`
	Color           string              `json:"color,omitempty"`
	TableWidth      int                 `json:"tableWidth,omitempty"`
	HasColumnHeader bool                `json:"hasColumnHeader,omitempty"`
	HasRowHeader    bool                `json:"hasRowHeader,omitempty"`
	Cells           [][]richRunDTO      `json:"cells,omitempty"`
	Title           string              `json:"title,omitempty"`
	LinkedPageID    string              `json:"linkedPageId,omitempty"`
}

func (d blockDTO) toBlock() *workspace.Block {
	children := make([]*workspace.Block, 0, len(d.Children))
	for _, c := range d.Children {
		children = append(children, c.toBlock())
	}
	cells := make([][]workspace.RichRun, 0, len(d.Cells))
	for _, row := range d.Cells {
		cells = append(cells, toRichRuns(row))
	}
	return &workspace.Block{
		Kind:            d.Kind,
		Children:        children,
		RichText:        toRichRuns(d.RichText),
		Checked:         d.Checked,
		Language:        d.Language,
		URL:             d.URL,
		Caption:         toRichRuns(d.Caption),
		Icon:            d.Icon,
		Color:           d.Color,
		TableWidth:      d.TableWidth,
		HasColumnHeader: d.HasColumnHeader,
		HasRowHeader:    d.HasRowHeader,
		Cells:           cells,
		Title:           d.Title,
		LinkedPageID:    d.LinkedPageID,
	}
}

func toBlocks(dtos []blockDTO) []*workspace.Block {
	out := make([]*workspace.Block, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toBlock())
	}
	return out
}

// blockSummaryDTO is the JSON shape a *workspace.Block renders as in a
// response, deliberately thin: callers need the assigned id and original
// position, not the full payload they just uploaded.
type blockSummaryDTO struct {
	ID   string              `json:"id"`
	Kind workspace.BlockKind `json:"kind"`
}

func blockSummaries(blocks []*workspace.Block) []blockSummaryDTO {
	out := make([]blockSummaryDTO, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockSummaryDTO{ID: b.ID, Kind: b.Kind})
	}
	return out
}
