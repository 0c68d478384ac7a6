package handlers

import (
	"context"

	"github.com/relaydocs/pagesync/internal/workspace"
)

// fetchChildren pages through every immediate child of parentID and
// converts each into a workspace.Block carrying just enough of its
// payload (kind, rich text) for the validator's element-count and
// text-coverage signals to run against (spec §4.4). It does not recurse
// into grandchildren: compare/validate endpoints reconcile against the
// page's top-level structure, matching what the builder itself emits as
// top-level blocks for a freshly converted document.
func fetchChildren(ctx context.Context, client *workspace.Client, parentID string) ([]*workspace.Block, error) {
	var out []*workspace.Block
	cursor := ""
	for {
		res, err := client.ListChildren(ctx, parentID, cursor)
		if err != nil {
			return nil, err
		}
		for _, rb := range res.Blocks {
			out = append(out, &workspace.Block{ID: rb.ID, Kind: rb.Kind, RichText: rb.RichText})
		}
		if !res.HasMore {
			return out, nil
		}
		cursor = res.NextCursor
	}
}
