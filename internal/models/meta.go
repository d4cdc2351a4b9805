// Package models defines the domain types for Othala.
package models

import (
	"path"
	"strings"
	"time"
)

// Pos locates a span of text within a file. Start and End are byte offsets
// into the file content (End exclusive); Line and Col are zero-based.
type Pos struct {
	Line  int `json:"line"`
	Col   int `json:"col"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// FileRef identifies a vault file by its vault-relative path.
//
// Ghost refs point at files that do not exist yet: their path is synthesized
// from unresolved link text plus the default ".md" extension, so unresolved
// links stay indexable and unify with the real file once it is created.
type FileRef struct {
	Path  string `json:"path"`
	Ghost bool   `json:"ghost,omitempty"`
}

// Basename returns the final path component.
func (f FileRef) Basename() string {
	return path.Base(f.Path)
}

// RefItem is one outgoing reference occurrence in a file: an inline wikilink,
// an embed, or a frontmatter link.
type RefItem struct {
	Raw     string `json:"raw"` // full link text incl. optional #subpath, e.g. "Note#Heading"
	Display string `json:"display,omitempty"`
	Pos     Pos    `json:"pos"`
}

// Target returns the link target without its subpath.
func (r RefItem) Target() string {
	if i := strings.Index(r.Raw, "#"); i >= 0 {
		return r.Raw[:i]
	}
	return r.Raw
}

// Subpath returns the heading or block fragment after '#', or "".
func (r RefItem) Subpath() string {
	if i := strings.Index(r.Raw, "#"); i >= 0 {
		return r.Raw[i+1:]
	}
	return ""
}

// Heading is one ATX heading in a file body.
type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
	Pos   Pos    `json:"pos"`
}

// Block is one ^block-id anchor in a file body.
type Block struct {
	ID  string `json:"id"`
	Pos Pos    `json:"pos"`
}

// FileMeta is the parsed metadata of one vault file. Positions and link lists
// are produced once by the parser; everything downstream consumes them as-is.
type FileMeta struct {
	Path             string    `json:"path"`
	Title            string    `json:"title,omitempty"`
	Aliases          []string  `json:"aliases,omitempty"`
	Excluded         bool      `json:"excluded,omitempty"` // frontmatter opt-out from incoming reference credit
	Links            []RefItem `json:"links,omitempty"`
	Embeds           []RefItem `json:"embeds,omitempty"`
	FrontmatterLinks []RefItem `json:"frontmatter_links,omitempty"`
	Headings         []Heading `json:"headings,omitempty"`
	Blocks           []Block   `json:"blocks,omitempty"`
}

// FileInfo is a lightweight listing entry.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
