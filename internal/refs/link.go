// Package refs implements the reference counting engine: link equivalence
// policies, the corpus-wide reference index, and per-file reference views.
package refs

import (
	"strings"

	"github.com/starford/othala/internal/models"
)

// Link is one directed reference filed in the index. It is owned by the index
// bucket it lives in; the FileRef data it points at belongs to the vault.
type Link struct {
	// RealLink is the raw link text as written, including any subpath.
	RealLink string `json:"real_link"`
	// Reference carries display text and source position.
	Reference models.RefItem `json:"reference"`
	// ResolvedFile is the destination: a real vault file, or a ghost ref
	// synthesized from unresolved link text.
	ResolvedFile models.FileRef `json:"resolved_file"`
	// SourceFile is the originating file, nil for links scanned out of free
	// text with no source document.
	SourceFile *models.FileRef `json:"source_file,omitempty"`
}

// SourcePath returns the source file path, or "" when there is none.
func (l Link) SourcePath() string {
	if l.SourceFile == nil {
		return ""
	}
	return l.SourceFile.Path
}

// Subpath returns the heading/block fragment of the reference, or "".
func (l Link) Subpath() string {
	return l.Reference.Subpath()
}

// GhostRef synthesizes a FileRef for unresolved link text. The path gets the
// default .md extension so the ghost unifies with the real file once created:
// the key derivation is purely a function of the (synthetic or real) path.
func GhostRef(target string) models.FileRef {
	p := strings.TrimSpace(target)
	if !strings.HasSuffix(strings.ToLower(p), ".md") {
		p += ".md"
	}
	return models.FileRef{Path: p, Ghost: true}
}
