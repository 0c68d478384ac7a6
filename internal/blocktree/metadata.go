package blocktree

import (
	"regexp"
	"strings"

	"github.com/relaydocs/pagesync/internal/workspace"
)

// metadataCommentPattern matches the leading HTML comment block some
// source documents carry (spec §6.2).
var metadataCommentPattern = regexp.MustCompile(`(?s)^\s*<!--(.*?)-->`)

// pageIDPattern matches a 32-char hex id or an already-hyphenated UUID,
// case-insensitive (spec §6.2).
var pageIDPattern = regexp.MustCompile(`(?i)[0-9a-f]{32}|[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

var urlLinePattern = regexp.MustCompile(`(?im)^\s*URL:\s*(\S+)\s*$`)

// Metadata is what ExtractMetadata finds in a source document's leading
// comment block.
type Metadata struct {
	PageID string // hyphenated 36-char form, empty if absent
	URL    string
	Found  bool
}

// ExtractMetadata looks for a leading `<!-- Page ID: ... URL: ... -->`
// comment and normalizes any page id it finds (spec §6.2, §9 open
// question (b): both 32-char and hyphenated forms are accepted).
func ExtractMetadata(src []byte) Metadata {
	m := metadataCommentPattern.FindSubmatch(src)
	if m == nil {
		return Metadata{}
	}
	block := string(m[1])

	meta := Metadata{Found: true}
	if id := pageIDPattern.FindString(block); id != "" {
		meta.PageID = workspace.NormalizePageID(id)
	}
	if urlMatch := urlLinePattern.FindStringSubmatch(block); len(urlMatch) == 2 {
		meta.URL = strings.TrimSpace(urlMatch[1])
	}
	return meta
}
