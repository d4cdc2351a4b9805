package vault

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/othala/internal/metacache"
	"github.com/starford/othala/internal/storage"
)

func testVault(t *testing.T, files map[string]string, ignore []string) *Vault {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	f, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	db, err := metacache.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if err := metacache.Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	v, err := New(store, db, ignore)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestResolveExactAndExtension(t *testing.T) {
	v := testVault(t, map[string]string{
		"notes/target.md": "# Target",
		"source.md":       "[[notes/target]]",
	}, nil)

	if ref := v.Resolve("notes/target.md", "source.md"); ref == nil || ref.Path != "notes/target.md" {
		t.Errorf("exact: %+v", ref)
	}
	if ref := v.Resolve("notes/target", "source.md"); ref == nil || ref.Path != "notes/target.md" {
		t.Errorf("with extension added: %+v", ref)
	}
	if ref := v.Resolve("NOTES/TARGET", "source.md"); ref == nil || ref.Path != "notes/target.md" {
		t.Errorf("case-insensitive: %+v", ref)
	}
}

func TestResolveRelativeToSource(t *testing.T) {
	v := testVault(t, map[string]string{
		"topics/deep.md": "# Deep",
		"topics/main.md": "[[deep]]",
	}, nil)

	if ref := v.Resolve("deep", "topics/main.md"); ref == nil || ref.Path != "topics/deep.md" {
		t.Errorf("relative: %+v", ref)
	}
}

func TestResolveBasenameAcrossVault(t *testing.T) {
	v := testVault(t, map[string]string{
		"deeply/nested/note.md": "# Note",
		"other.md":              "x",
	}, nil)

	if ref := v.Resolve("note", "other.md"); ref == nil || ref.Path != "deeply/nested/note.md" {
		t.Errorf("basename: %+v", ref)
	}
}

func TestResolveBasenameDeterministicOnCollision(t *testing.T) {
	v := testVault(t, map[string]string{
		"b/dup.md": "x",
		"a/dup.md": "x",
	}, nil)

	// Sorted order makes the collision winner stable.
	if ref := v.Resolve("dup", ""); ref == nil || ref.Path != "a/dup.md" {
		t.Errorf("collision winner = %+v", ref)
	}
}

func TestResolveMissReturnsNil(t *testing.T) {
	v := testVault(t, map[string]string{"a.md": "x"}, nil)
	if ref := v.Resolve("does-not-exist", "a.md"); ref != nil {
		t.Errorf("expected nil, got %+v", ref)
	}
}

func TestResolveEmptyTargetIsSelf(t *testing.T) {
	v := testVault(t, map[string]string{"self.md": "x"}, nil)
	if ref := v.Resolve("", "self.md"); ref == nil || ref.Path != "self.md" {
		t.Errorf("self: %+v", ref)
	}
}

func TestIgnoredPrefix(t *testing.T) {
	v := testVault(t, map[string]string{"templates/t.md": "x", "a.md": "x"}, []string{"templates/"})
	if !v.Ignored("templates/t.md") {
		t.Error("templates/t.md should be ignored")
	}
	if v.Ignored("a.md") {
		t.Error("a.md should not be ignored")
	}
}
