package metacache

import (
	"errors"
	"os"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	meta := &models.FileMeta{
		Path:    "notes/a.md",
		Title:   "A",
		Aliases: []string{"Alpha"},
		Links:   []models.RefItem{{Raw: "B", Pos: models.Pos{Start: 10, End: 15}}},
		Headings: []models.Heading{
			{Text: "Intro", Level: 2},
		},
	}
	if err := db.Upsert(meta, "cs1"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := db.Get("notes/a.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "A" || len(got.Links) != 1 || got.Links[0].Raw != "B" {
		t.Errorf("meta = %+v", got)
	}
	if len(got.Headings) != 1 || got.Headings[0].Text != "Intro" {
		t.Errorf("headings = %+v", got.Headings)
	}

	cs, err := db.GetChecksum("notes/a.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "cs1" {
		t.Errorf("checksum = %q", cs)
	}
}

func TestGetMissing(t *testing.T) {
	db := testDB(t)
	if _, err := db.Get("nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteFile(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(&models.FileMeta{Path: "del.md"}, "x")
	if err := db.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get("del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestIsExcluded(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(&models.FileMeta{Path: "priv.md", Excluded: true}, "1")
	_ = db.Upsert(&models.FileMeta{Path: "pub.md"}, "2")

	if ex, _ := db.IsExcluded("priv.md"); !ex {
		t.Error("priv.md should be excluded")
	}
	if ex, _ := db.IsExcluded("pub.md"); ex {
		t.Error("pub.md should not be excluded")
	}
	if ex, _ := db.IsExcluded("unknown.md"); ex {
		t.Error("unknown path should not be excluded")
	}
}

func TestAllMetasAndFiles(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(&models.FileMeta{Path: "b.md", Title: "B"}, "1")
	_ = db.Upsert(&models.FileMeta{Path: "a.md", Title: "A"}, "2")

	metas, err := db.AllMetas()
	if err != nil {
		t.Fatalf("AllMetas: %v", err)
	}
	if len(metas) != 2 || metas[0].Path != "a.md" {
		t.Errorf("metas = %+v", metas)
	}

	files, err := db.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 2 || files[1].Path != "b.md" {
		t.Errorf("files = %+v", files)
	}
}

func TestSyncParsesAndPrunesStale(t *testing.T) {
	db := testDB(t)
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}

	_ = store.Write("one.md", []byte("# One\n\n[[two]]\n"))
	_ = store.Write("two.md", []byte("# Two\n"))
	_ = db.Upsert(&models.FileMeta{Path: "gone.md"}, "stale")

	if err := Sync(db, store, discardLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	meta, err := db.Get("one.md")
	if err != nil {
		t.Fatalf("Get one.md: %v", err)
	}
	if len(meta.Links) != 1 || meta.Links[0].Raw != "two" {
		t.Errorf("links = %+v", meta.Links)
	}
	if _, err := db.Get("gone.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale entry not pruned: %v", err)
	}
}

func TestSyncSkipsUnchanged(t *testing.T) {
	db := testDB(t)
	vaultDir := t.TempDir()
	store, _ := storage.NewFS(vaultDir)
	_ = store.Write("same.md", []byte("body"))

	if err := Sync(db, store, discardLogger()); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	cs1, _ := db.GetChecksum("same.md")

	if err := Sync(db, store, discardLogger()); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	cs2, _ := db.GetChecksum("same.md")
	if cs1 == "" || cs1 != cs2 {
		t.Errorf("checksums differ: %q vs %q", cs1, cs2)
	}
}
