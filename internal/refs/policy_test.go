package refs

import (
	"errors"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

func mkLink(source, resolved, raw string) Link {
	return Link{
		RealLink:     raw,
		Reference:    models.RefItem{Raw: raw},
		ResolvedFile: models.FileRef{Path: resolved},
		SourceFile:   &models.FileRef{Path: source},
	}
}

func TestCaseInsensitiveKeyDeterminism(t *testing.T) {
	// Identical resolved path and subpath give identical keys, whatever the
	// source file.
	a := mkLink("one.md", "notes/Target.md", "Target#Section")
	b := mkLink("two.md", "notes/Target.md", "target#Section")

	p := CaseInsensitive{}
	if p.GenerateKey(a) != p.GenerateKey(b) {
		t.Errorf("keys differ: %q vs %q", p.GenerateKey(a), p.GenerateKey(b))
	}
	if got := p.GenerateKey(a); got != "NOTES/TARGET.MD#SECTION" {
		t.Errorf("key = %q", got)
	}
}

func TestSameFileRefinesCaseInsensitive(t *testing.T) {
	sf := SameFile{}
	ci := CaseInsensitive{}

	a := mkLink("src.md", "t.md", "t")
	b := mkLink("src.md", "t.md", "T")
	c := mkLink("other.md", "t.md", "t")

	// Equivalent under SameFile implies equivalent under CaseInsensitive.
	if sf.GenerateKey(a) != sf.GenerateKey(b) {
		t.Fatal("a and b should be SameFile-equivalent")
	}
	if ci.GenerateKey(a) != ci.GenerateKey(b) {
		// never reached if the refinement holds
		t.Error("refinement violated")
	}

	// The converse does not hold: same target from different sources.
	if ci.GenerateKey(a) != ci.GenerateKey(c) {
		t.Error("a and c should be CaseInsensitive-equivalent")
	}
	if sf.GenerateKey(a) == sf.GenerateKey(c) {
		t.Error("a and c must not be SameFile-equivalent")
	}
}

func TestWordFormCollapsesPlurals(t *testing.T) {
	p := WordForm{}
	singular := mkLink("s.md", "topics/Note.md", "Note")
	plural := mkLink("s.md", "topics/Notes.md", "Notes")

	if p.GenerateKey(singular) != p.GenerateKey(plural) {
		t.Errorf("plural did not collapse: %q vs %q",
			p.GenerateKey(singular), p.GenerateKey(plural))
	}
}

func TestBaseNameIgnoresFolderAndSubpath(t *testing.T) {
	p := BaseName{}
	a := mkLink("s.md", "deep/nested/Note.md", "Note")
	b := mkLink("s.md", "Note.md", "Note#Section")

	if p.GenerateKey(a) != p.GenerateKey(b) {
		t.Errorf("keys differ: %q vs %q", p.GenerateKey(a), p.GenerateKey(b))
	}
	if got := p.GenerateKey(a); got != "NOTE.MD" {
		t.Errorf("key = %q", got)
	}
}

func TestUniqueFilesCountsSourcesOnce(t *testing.T) {
	p := UniqueFiles{}
	refs := []*Link{}
	for _, src := range []string{"a.md", "a.md", "a.md", "b.md"} {
		l := mkLink(src, "t.md", "t")
		refs = append(refs, &l)
	}

	if got := CountReferences(p, refs); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
	if got := len(FilterReferences(p, refs)); got != 2 {
		t.Errorf("filtered = %d, want 2", got)
	}

	// Default semantics, for contrast.
	if got := CountReferences(CaseInsensitive{}, refs); got != 4 {
		t.Errorf("default count = %d, want 4", got)
	}
}

func TestGhostRefKey(t *testing.T) {
	ghost := GhostRef("Nonexistent")
	if ghost.Path != "Nonexistent.md" || !ghost.Ghost {
		t.Fatalf("ghost = %+v", ghost)
	}
	l := Link{RealLink: "Nonexistent", Reference: models.RefItem{Raw: "Nonexistent"}, ResolvedFile: ghost}
	if got := (CaseInsensitive{}).GenerateKey(l); got != "NONEXISTENT.MD" {
		t.Errorf("key = %q", got)
	}
}

func TestPolicyRegistry(t *testing.T) {
	ids := []string{"case-insensitive", "same-file", "word-form", "base-name", "unique-files"}
	if len(Policies()) != len(ids) {
		t.Fatalf("policies = %d, want %d", len(Policies()), len(ids))
	}
	for _, id := range ids {
		p, err := PolicyByID(id)
		if err != nil {
			t.Errorf("PolicyByID(%q): %v", id, err)
			continue
		}
		if p.ID() != id {
			t.Errorf("id = %q, want %q", p.ID(), id)
		}
	}
	if _, err := PolicyByID("bogus"); !errors.Is(err, apperr.ErrUnknownPolicy) {
		t.Errorf("err = %v, want ErrUnknownPolicy", err)
	}
}
