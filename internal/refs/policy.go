package refs

import (
	"path"
	"strings"

	"github.com/kljensen/snowball"

	"github.com/starford/othala/internal/apperr"
)

// Policy decides when two link references denote the same thing. GenerateKey
// must be total and side-effect-free: two links are equivalent under the
// policy iff their keys are equal. Keys generated under different policies
// must never be mixed within one index.
type Policy interface {
	ID() string
	Name() string
	GenerateKey(l Link) string
}

// Counter lets a policy override how a reference list is counted.
// The default count is the list length.
type Counter interface {
	CountReferences(refs []*Link) int
}

// Filterer lets a policy narrow a reference list before display.
// The default filter is identity.
type Filterer interface {
	FilterReferences(refs []*Link) []*Link
}

// CountReferences counts refs under p, honoring a Counter override.
func CountReferences(p Policy, refs []*Link) int {
	if c, ok := p.(Counter); ok {
		return c.CountReferences(refs)
	}
	return len(refs)
}

// FilterReferences filters refs under p, honoring a Filterer override.
func FilterReferences(p Policy, refs []*Link) []*Link {
	if f, ok := p.(Filterer); ok {
		return f.FilterReferences(refs)
	}
	return refs
}

// targetKey is the shared key core: the uppercased resolved (or ghost) path,
// plus the uppercased subpath fragment for heading/block references.
func targetKey(l Link) string {
	key := strings.ToUpper(l.ResolvedFile.Path)
	if sub := l.Subpath(); sub != "" {
		key += "#" + strings.ToUpper(sub)
	}
	return key
}

// CaseInsensitive collapses links to the same target regardless of source
// file or letter case.
type CaseInsensitive struct{}

func (CaseInsensitive) ID() string   { return "case-insensitive" }
func (CaseInsensitive) Name() string { return "Case-insensitive" }
func (CaseInsensitive) GenerateKey(l Link) string {
	return targetKey(l)
}

// SameFile scopes equivalence to the source file: references are equivalent
// only when they originate from the same file. A refinement of
// CaseInsensitive.
type SameFile struct{}

func (SameFile) ID() string   { return "same-file" }
func (SameFile) Name() string { return "Same file" }
func (SameFile) GenerateKey(l Link) string {
	return strings.ToUpper(l.SourcePath()) + "::" + targetKey(l)
}

// WordForm collapses morphological variants of the target basename (plurals,
// case) using an English snowball stem.
type WordForm struct{}

func (WordForm) ID() string   { return "word-form" }
func (WordForm) Name() string { return "Word form" }
func (WordForm) GenerateKey(l Link) string {
	p := l.ResolvedFile.Path
	dir := path.Dir(p)
	base := strings.TrimSuffix(path.Base(p), ".md")
	base = strings.TrimSuffix(base, ".MD")

	key := strings.ToUpper(stemPhrase(base)) + ".MD"
	if dir != "." && dir != "" {
		key = strings.ToUpper(dir) + "/" + key
	}
	if sub := l.Subpath(); sub != "" {
		key += "#" + strings.ToUpper(sub)
	}
	return key
}

func stemPhrase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if stemmed, err := snowball.Stem(w, "english", false); err == nil && stemmed != "" {
			words[i] = stemmed
		}
	}
	return strings.Join(words, " ")
}

// BaseName keys on the uppercased basename only: moving a file between
// folders does not change its identity for counting, and subpaths are
// ignored.
type BaseName struct{}

func (BaseName) ID() string   { return "base-name" }
func (BaseName) Name() string { return "Base name" }
func (BaseName) GenerateKey(l Link) string {
	return strings.ToUpper(l.ResolvedFile.Basename())
}

// UniqueFiles keys like CaseInsensitive but counts each source file once,
// however many links it contains to the same target.
type UniqueFiles struct{}

func (UniqueFiles) ID() string   { return "unique-files" }
func (UniqueFiles) Name() string { return "Unique files" }
func (UniqueFiles) GenerateKey(l Link) string {
	return targetKey(l)
}

func (UniqueFiles) FilterReferences(refs []*Link) []*Link {
	seen := make(map[string]struct{}, len(refs))
	var out []*Link
	for _, r := range refs {
		src := r.SourcePath()
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, r)
	}
	return out
}

func (u UniqueFiles) CountReferences(refs []*Link) int {
	return len(u.FilterReferences(refs))
}

// policies is the closed set, in stable display order.
var policies = []Policy{
	CaseInsensitive{},
	SameFile{},
	WordForm{},
	BaseName{},
	UniqueFiles{},
}

// Policies returns the closed set of equivalence policies in stable order.
func Policies() []Policy {
	out := make([]Policy, len(policies))
	copy(out, policies)
	return out
}

// PolicyByID looks up a policy by its identifier.
func PolicyByID(id string) (Policy, error) {
	for _, p := range policies {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, apperr.ErrUnknownPolicy
}

// Compile-time checks: UniqueFiles carries both overrides.
var (
	_ Counter  = UniqueFiles{}
	_ Filterer = UniqueFiles{}
)
