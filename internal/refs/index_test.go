package refs

import (
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/models"
)

// fakeCorpus is an in-memory corpus for index tests.
type fakeCorpus struct {
	metas    map[string]*models.FileMeta
	ignored  map[string]bool
	excluded map[string]bool
}

func newFakeCorpus() *fakeCorpus {
	return &fakeCorpus{
		metas:    make(map[string]*models.FileMeta),
		ignored:  make(map[string]bool),
		excluded: make(map[string]bool),
	}
}

func (c *fakeCorpus) add(p string, links ...string) *models.FileMeta {
	meta := &models.FileMeta{Path: p}
	for _, l := range links {
		meta.Links = append(meta.Links, models.RefItem{Raw: l})
	}
	c.metas[p] = meta
	return meta
}

func (c *fakeCorpus) Files() ([]models.FileInfo, error) {
	paths := make([]string, 0, len(c.metas))
	for p := range c.metas {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]models.FileInfo, 0, len(paths))
	for _, p := range paths {
		out = append(out, models.FileInfo{Path: p})
	}
	return out, nil
}

func (c *fakeCorpus) Metadata(p string) (*models.FileMeta, error) {
	if m, ok := c.metas[p]; ok {
		return m, nil
	}
	return &models.FileMeta{Path: p}, nil
}

func (c *fakeCorpus) Resolve(linkText, sourcePath string) *models.FileRef {
	target := strings.TrimSpace(linkText)
	if target == "" {
		return &models.FileRef{Path: sourcePath}
	}
	lower := strings.ToLower(target)
	for p := range c.metas {
		lp := strings.ToLower(p)
		if lp == lower || lp == lower+".md" {
			return &models.FileRef{Path: p}
		}
		base := strings.ToLower(strings.TrimSuffix(path.Base(p), ".md"))
		if base == lower {
			return &models.FileRef{Path: p}
		}
	}
	return nil
}

func (c *fakeCorpus) Text(string) (string, error) { return "", nil }
func (c *fakeCorpus) Ignored(p string) bool       { return c.ignored[p] }
func (c *fakeCorpus) Excluded(p string) bool      { return c.excluded[p] }

func testIndex(t *testing.T, c *fakeCorpus, p Policy, threshold int) *Index {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ix := NewIndex(c, p, threshold, logger)
	if err := ix.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func TestBuildIndexesEveryOutgoingLink(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "b", "c")
	c.add("b.md")
	c.add("c.md", "b")

	ix := testIndex(t, c, CaseInsensitive{}, 1)

	refs := ix.References()
	if got := len(refs["B.MD"]); got != 2 {
		t.Errorf("B.MD refs = %d, want 2", got)
	}
	if got := len(refs["C.MD"]); got != 1 {
		t.Errorf("C.MD refs = %d, want 1", got)
	}
}

func TestEmbedsAndFrontmatterLinksIndexed(t *testing.T) {
	c := newFakeCorpus()
	meta := c.add("a.md")
	meta.Embeds = []models.RefItem{{Raw: "b"}}
	meta.FrontmatterLinks = []models.RefItem{{Raw: "b"}}
	c.add("b.md")

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	if got := len(ix.References()["B.MD"]); got != 2 {
		t.Errorf("B.MD refs = %d, want 2", got)
	}
}

func TestSelfLinkRewrittenToOwnPath(t *testing.T) {
	c := newFakeCorpus()
	meta := c.add("a.md")
	meta.Links = []models.RefItem{{Raw: "#Section"}}

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	if got := len(ix.References()["A.MD#SECTION"]); got != 1 {
		t.Errorf("self link refs = %d, want 1; keys: %v", got, keysOf(ix))
	}
}

func TestRemoveThenReinsertIsIdempotent(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "b", "b", "c")
	c.add("b.md")
	c.add("c.md", "b")

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	before := countSnapshot(ix)

	ix.RemoveFile("a.md")
	if got := len(ix.References()["B.MD"]); got != 1 {
		t.Fatalf("after remove, B.MD refs = %d, want 1", got)
	}
	if err := ix.AddFile("a.md"); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	after := countSnapshot(ix)
	if len(before) != len(after) {
		t.Fatalf("key sets differ: %v vs %v", before, after)
	}
	for k, n := range before {
		if after[k] != n {
			t.Errorf("key %s: %d before, %d after", k, n, after[k])
		}
	}
}

func TestRemoveFileDeletesEmptyBuckets(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "b")
	c.add("b.md")

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	ix.RemoveFile("a.md")
	if _, ok := ix.References()["B.MD"]; ok {
		t.Error("empty bucket should be deleted")
	}
}

func TestIgnoredSourceContributesNothing(t *testing.T) {
	c := newFakeCorpus()
	c.add("templates/t.md", "b")
	c.add("b.md")
	c.ignored["templates/t.md"] = true

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	if _, ok := ix.References()["B.MD"]; ok {
		t.Error("ignored source must contribute no links")
	}
}

func TestExcludedDestinationGetsNoCredit(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "priv", "pub")
	c.add("priv.md")
	c.add("pub.md")
	c.excluded["priv.md"] = true

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	refs := ix.References()
	if _, ok := refs["PRIV.MD"]; ok {
		t.Error("excluded destination must receive no credit")
	}
	if got := len(refs["PUB.MD"]); got != 1 {
		t.Errorf("PUB.MD refs = %d, want 1", got)
	}
}

func TestGhostThenRealKeepsKeyAndCount(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "Nonexistent")

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	bucket := ix.References()["NONEXISTENT.MD"]
	if len(bucket) != 1 || !bucket[0].ResolvedFile.Ghost {
		t.Fatalf("ghost bucket = %+v", bucket)
	}

	// The target file appears; a rebuild resolves the link for real.
	c.add("Nonexistent.md")
	if err := ix.Build(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	bucket = ix.References()["NONEXISTENT.MD"]
	if len(bucket) != 1 {
		t.Fatalf("count changed across ghost transition: %d", len(bucket))
	}
	if bucket[0].ResolvedFile.Ghost {
		t.Error("link should now be resolved")
	}
}

func TestRenameScenario(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "b")
	c.add("b.md")

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	if len(ix.References()["B.MD"]) != 1 {
		t.Fatal("precondition failed")
	}

	// b.md is renamed to c.md; a.md still says [[b]], which now ghosts.
	delete(c.metas, "b.md")
	c.add("c.md")
	if err := ix.UpdateFile("a.md"); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}

	refs := ix.References()
	if got := len(refs["B.MD"]); got != 1 {
		t.Errorf("B.MD refs = %d, want 1 (ghost)", got)
	}
	if !refs["B.MD"][0].ResolvedFile.Ghost {
		t.Error("reference to renamed-away file should be a ghost")
	}

	// a.md is edited to point at the new name.
	c.add("a.md", "c")
	if err := ix.UpdateFile("a.md"); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	refs = ix.References()
	if got := len(refs["C.MD"]); got != 1 {
		t.Errorf("C.MD refs = %d, want 1", got)
	}
	if _, ok := refs["B.MD"]; ok {
		t.Error("old name must have no references")
	}
}

func TestUpdateFileAtomicUnderConcurrentReads(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "t")
	c.add("t.md")

	ix := testIndex(t, c, CaseInsensitive{}, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if err := ix.UpdateFile("a.md"); err != nil {
				t.Errorf("UpdateFile: %v", err)
				return
			}
		}
	}()

	// Remove and reinsert run under one lock, so the bucket never looks empty.
	for alive := true; alive; {
		select {
		case <-done:
			alive = false
		default:
		}
		if got := len(ix.References()["T.MD"]); got != 1 {
			t.Fatalf("reader observed %d refs mid-update", got)
		}
	}
}

func TestSetPolicyPublishesPolicyAndKeysTogether(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "t")
	c.add("t.md")

	ix := testIndex(t, c, CaseInsensitive{}, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		policies := []Policy{SameFile{}, CaseInsensitive{}}
		for i := 0; i < 100; i++ {
			if err := ix.SetPolicy(policies[i%2]); err != nil {
				t.Errorf("SetPolicy: %v", err)
				return
			}
		}
	}()

	// A reader must never see the new policy paired with old-policy buckets.
	for alive := true; alive; {
		select {
		case <-done:
			alive = false
		default:
		}
		ix.mu.RLock()
		id := ix.policy.ID()
		_, ci := ix.refs["T.MD"]
		_, sf := ix.refs["A.MD::T.MD"]
		ix.mu.RUnlock()

		switch id {
		case "case-insensitive":
			if !ci || sf {
				t.Fatalf("policy %s published with mixed keys (ci=%v sf=%v)", id, ci, sf)
			}
		case "same-file":
			if !sf || ci {
				t.Fatalf("policy %s published with mixed keys (ci=%v sf=%v)", id, ci, sf)
			}
		}
	}
}

func TestPolicySwitchToUniqueFilesNeverIncreasesCounts(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "t", "t", "t")
	c.add("b.md", "t")
	c.add("t.md")

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	before := ix.Counts(1)

	if err := ix.SetPolicy(UniqueFiles{}); err != nil {
		t.Fatalf("SetPolicy: %v", err)
	}
	after := ix.Counts(1)

	for k, n := range after {
		if b, ok := before[k]; ok && n > b {
			t.Errorf("key %s: count grew from %d to %d", k, b, n)
		}
	}
	if after["T.MD"] != 2 {
		t.Errorf("T.MD unique count = %d, want 2", after["T.MD"])
	}
	if before["T.MD"] != 4 {
		t.Errorf("T.MD raw count = %d, want 4", before["T.MD"])
	}
}

func TestFindAllForLinkUnionsPolicyVariants(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "t")
	c.add("t.md")

	ix := testIndex(t, c, SameFile{}, 1)

	// Under SameFile, a lookup from a different source would miss with the
	// native key; the union probe still finds nothing for the CI shape since
	// buckets are keyed SameFile. From the same source it hits.
	hits := ix.FindAllForLink("a.md", "t")
	if len(hits) != 1 {
		t.Errorf("hits = %d, want 1", len(hits))
	}

	// Under CaseInsensitive the same probe also works regardless of source.
	if err := ix.SetPolicy(CaseInsensitive{}); err != nil {
		t.Fatal(err)
	}
	hits = ix.FindAllForLink("elsewhere.md", "t")
	if len(hits) != 1 {
		t.Errorf("hits = %d, want 1", len(hits))
	}
}

func TestGenerateKeyFromPathAndLink(t *testing.T) {
	c := newFakeCorpus()
	c.add("notes/T.md")
	ix := testIndex(t, c, CaseInsensitive{}, 1)

	if got := ix.GenerateKeyFromPathAndLink("a.md", "T#Sec"); got != "NOTES/T.MD#SEC" {
		t.Errorf("key = %q", got)
	}
	if got := ix.GenerateKeyFromPathAndLink("a.md", "Missing"); got != "MISSING.MD" {
		t.Errorf("ghost key = %q", got)
	}
}

func TestFileCacheRespectsThreshold(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "t")
	c.add("b.md", "t")
	c.add("t.md")
	c.metas["t.md"].Headings = []models.Heading{{Text: "Top", Level: 1}}

	// Threshold 3: two references to t.md must not appear.
	ix := testIndex(t, c, CaseInsensitive{}, 3)
	fc, err := ix.FileCacheFor("a.md")
	if err != nil {
		t.Fatalf("FileCacheFor: %v", err)
	}
	if len(fc.Links) != 0 {
		t.Errorf("below threshold, links = %+v", fc.Links)
	}

	// Threshold 2: exactly at threshold, the item appears.
	ix = testIndex(t, c, CaseInsensitive{}, 2)
	fc, err = ix.FileCacheFor("a.md")
	if err != nil {
		t.Fatalf("FileCacheFor: %v", err)
	}
	if len(fc.Links) != 1 || fc.Links[0].Key != "T.MD" {
		t.Errorf("at threshold, links = %+v", fc.Links)
	}
	if got := len(fc.Links[0].References); got != 2 {
		t.Errorf("references = %d, want 2", got)
	}
}

func TestFileCacheInvalidatedByIndexMutation(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "t")
	c.add("t.md")

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	fc1, _ := ix.FileCacheFor("a.md")
	fc2, _ := ix.FileCacheFor("a.md")
	if fc1 != fc2 {
		t.Error("expected cached instance while index unchanged")
	}

	c.add("b.md", "t")
	if err := ix.AddFile("b.md"); err != nil {
		t.Fatal(err)
	}
	fc3, _ := ix.FileCacheFor("a.md")
	if fc3 == fc1 {
		t.Error("expected recompute after index mutation")
	}
	if got := len(fc3.Links[0].References); got != 2 {
		t.Errorf("references = %d, want 2", got)
	}
}

func TestFileCacheSoftTTL(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "t")
	c.add("t.md")

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	fc1, _ := ix.FileCacheFor("a.md")

	// Age the cache past the TTL without touching the index.
	fc1.CreatedAt = fc1.CreatedAt.Add(-2 * time.Second)
	fc2, _ := ix.FileCacheFor("a.md")
	if fc1 == fc2 {
		t.Error("expected recompute after TTL expiry")
	}
}

func TestHeadingAndBlockAnchorsInFileCache(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "t#Top", "t#^b1")
	target := c.add("t.md")
	target.Headings = []models.Heading{{Text: "Top", Level: 1}}
	target.Blocks = []models.Block{{ID: "b1"}}

	ix := testIndex(t, c, CaseInsensitive{}, 1)
	fc, err := ix.FileCacheFor("t.md")
	if err != nil {
		t.Fatalf("FileCacheFor: %v", err)
	}
	if len(fc.Headings) != 1 || fc.Headings[0].Key != "T.MD#TOP" {
		t.Errorf("headings = %+v", fc.Headings)
	}
	if len(fc.Blocks) != 1 || fc.Blocks[0].Key != "T.MD#^B1" {
		t.Errorf("blocks = %+v", fc.Blocks)
	}
}

func TestFallbackChainBridgesRawText(t *testing.T) {
	c := newFakeCorpus()
	c.add("a.md", "Ghost Target")

	ix := testIndex(t, c, CaseInsensitive{}, 1)

	// Direct key is the ghost path; the raw-text fallback with the .MD
	// suffix finds the same bucket.
	link := ix.linkFromText("b.md", "Ghost Target")
	ix.mu.RLock()
	found := ix.findWithFallback("NO SUCH KEY", link)
	ix.mu.RUnlock()
	if len(found) != 1 {
		t.Errorf("fallback found = %d, want 1", len(found))
	}
}

func keysOf(ix *Index) []string {
	var out []string
	for k := range ix.References() {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func countSnapshot(ix *Index) map[string]int {
	out := make(map[string]int)
	for k, v := range ix.References() {
		out[k] = len(v)
	}
	return out
}
