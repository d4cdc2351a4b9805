package refs

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/vault"
)

// Index owns the corpus-wide mapping from canonical key to inbound references.
// It is rebuilt in full on policy change and updated per-file (remove then
// reinsert) on document change. A mutation counter invalidates the per-file
// caches handed out by FileCacheFor.
//
// All methods are safe for concurrent use; mutations and reads are serialized
// by an internal lock since the watcher and the HTTP handlers run on
// different goroutines.
type Index struct {
	corpus vault.Corpus
	logger *slog.Logger

	mu        sync.RWMutex
	policy    Policy
	threshold int
	refs      map[string][]*Link
	mutation  int64
	caches    map[string]*FileCache
}

// NewIndex creates an empty index under the given policy. threshold is the
// minimum reference count an item needs to appear in per-file views; values
// below 1 are clamped to 1.
func NewIndex(corpus vault.Corpus, policy Policy, threshold int, logger *slog.Logger) *Index {
	if threshold < 1 {
		threshold = 1
	}
	return &Index{
		corpus:    corpus,
		logger:    logger,
		policy:    policy,
		threshold: threshold,
		refs:      make(map[string][]*Link),
		caches:    make(map[string]*FileCache),
	}
}

// Policy returns the active equivalence policy.
func (ix *Index) Policy() Policy {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.policy
}

// Threshold returns the minimum reference count for per-file views.
func (ix *Index) Threshold() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.threshold
}

// SetPolicy swaps the active policy and rebuilds the whole index: keys
// generated under different policies must never coexist. The swap and the
// rebuild happen under one critical section, so readers never see the new
// policy against old-policy buckets.
func (ix *Index) SetPolicy(p Policy) error {
	infos, err := ix.corpus.Files()
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.policy = p
	ix.rebuildLocked(infos)
	return nil
}

// Build clears the index and re-walks every corpus file. Files that fail to
// load are logged and skipped; they contribute no references.
func (ix *Index) Build() error {
	infos, err := ix.corpus.Files()
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.rebuildLocked(infos)
	return nil
}

// rebuildLocked re-walks the given corpus listing into a fresh key map.
// Caller holds ix.mu.
func (ix *Index) rebuildLocked(infos []models.FileInfo) {
	ix.refs = make(map[string][]*Link)
	for _, fi := range infos {
		meta, err := ix.corpus.Metadata(fi.Path)
		if err != nil {
			ix.logger.Warn("index: metadata failed, skipping file",
				slog.String("path", fi.Path), slog.String("error", err.Error()))
			continue
		}
		ix.insertFileLocked(meta)
	}
	ix.bumpLocked()

	ix.logger.Info("index: built",
		slog.Int("files", len(infos)),
		slog.Int("keys", len(ix.refs)),
		slog.String("policy", ix.policy.ID()))
}

// AddFile inserts all outgoing references of one file into the index.
func (ix *Index) AddFile(path string) error {
	meta, err := ix.corpus.Metadata(path)
	if err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.insertFileLocked(meta)
	ix.bumpLocked()
	return nil
}

// RemoveFile removes every reference originating from the given file,
// deleting buckets that become empty.
func (ix *Index) RemoveFile(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeFileLocked(path)
	ix.bumpLocked()
}

// UpdateFile applies the remove-then-reinsert protocol for one changed file.
// In-place patching is never attempted; the index must reflect exactly the
// current outgoing link set. Remove and reinsert run under one critical
// section, so readers never observe the file's references absent in between.
func (ix *Index) UpdateFile(path string) error {
	meta, err := ix.corpus.Metadata(path)
	if err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeFileLocked(path)
	ix.insertFileLocked(meta)
	ix.bumpLocked()
	return nil
}

// removeFileLocked strips every reference sourced from path. Caller holds
// ix.mu.
func (ix *Index) removeFileLocked(path string) {
	for key, bucket := range ix.refs {
		kept := bucket[:0]
		for _, l := range bucket {
			if l.SourcePath() != path {
				kept = append(kept, l)
			}
		}
		if len(kept) == 0 {
			delete(ix.refs, key)
		} else {
			ix.refs[key] = kept
		}
	}
}

// insertFileLocked files every outgoing reference of one document under its
// policy key. Caller holds ix.mu.
func (ix *Index) insertFileLocked(meta *models.FileMeta) {
	for _, l := range ix.collectLinks(meta) {
		link := l
		key := ix.policy.GenerateKey(link)
		ix.refs[key] = append(ix.refs[key], &link)
	}
}

// collectLinks turns a file's parsed metadata into index-ready Links:
// links, embeds, and frontmatter links, with self-references rewritten to the
// file's own path and unresolved targets degraded to ghost refs. Source files
// matching the ignore predicate contribute nothing; destinations that are
// ignored or opted out receive no credit.
func (ix *Index) collectLinks(meta *models.FileMeta) []Link {
	if ix.corpus.Ignored(meta.Path) {
		return nil
	}

	var out []Link
	source := &models.FileRef{Path: meta.Path}

	collect := func(items []models.RefItem) {
		for _, item := range items {
			resolved := ix.resolveItem(item, meta.Path)
			if resolved.Path == "" {
				continue
			}
			if !resolved.Ghost && (ix.corpus.Ignored(resolved.Path) || ix.corpus.Excluded(resolved.Path)) {
				continue
			}
			out = append(out, Link{
				RealLink:     item.Raw,
				Reference:    item,
				ResolvedFile: resolved,
				SourceFile:   source,
			})
		}
	}

	collect(meta.Links)
	collect(meta.Embeds)
	collect(meta.FrontmatterLinks)
	return out
}

// resolveItem resolves one reference item to a real or ghost FileRef.
// Self-referencing links ("#Heading", "#^block") resolve to the source file.
func (ix *Index) resolveItem(item models.RefItem, sourcePath string) models.FileRef {
	target := item.Target()
	if target == "" && strings.HasPrefix(item.Raw, "#") {
		return models.FileRef{Path: sourcePath}
	}
	if resolved := ix.corpus.Resolve(target, sourcePath); resolved != nil {
		return *resolved
	}
	return GhostRef(target)
}

// References returns a snapshot copy of the whole index.
func (ix *Index) References() map[string][]*Link {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string][]*Link, len(ix.refs))
	for k, v := range ix.refs {
		bucket := make([]*Link, len(v))
		copy(bucket, v)
		out[k] = bucket
	}
	return out
}

// Counts returns key → reference count under the active policy, for every
// key whose count is at least min.
func (ix *Index) Counts(min int) map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]int)
	for k, v := range ix.refs {
		if n := CountReferences(ix.policy, v); n >= min {
			out[k] = n
		}
	}
	return out
}

// GenerateKeyFromPathAndLink computes the active-policy key for link text as
// written in the given source file.
func (ix *Index) GenerateKeyFromPathAndLink(sourcePath, linkText string) string {
	link := ix.linkFromText(sourcePath, linkText)
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.policy.GenerateKey(link)
}

// FindAllForLink is the policy-agnostic union lookup used by presentation
// surfaces: it probes the current-policy key plus the key shapes of the other
// source-scoped and source-free policies, concatenating all hits. Duplicates
// are possible and left to the caller.
func (ix *Index) FindAllForLink(sourcePath, linkText string) []*Link {
	link := ix.linkFromText(sourcePath, linkText)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	keys := []string{ix.policy.GenerateKey(link)}
	ci := CaseInsensitive{}.GenerateKey(link)
	sf := SameFile{}.GenerateKey(link)
	if ix.policy.ID() == (SameFile{}).ID() {
		keys = append(keys, ci)
	} else {
		keys = append(keys, sf)
	}

	var out []*Link
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ix.refs[key]...)
	}
	return out
}

// linkFromText builds a Link for raw link text written in sourcePath,
// resolving or ghosting the target.
func (ix *Index) linkFromText(sourcePath, linkText string) Link {
	item := models.RefItem{Raw: linkText}
	resolved := ix.resolveItem(item, sourcePath)
	var source *models.FileRef
	if sourcePath != "" {
		source = &models.FileRef{Path: sourcePath}
	}
	return Link{
		RealLink:     linkText,
		Reference:    item,
		ResolvedFile: resolved,
		SourceFile:   source,
	}
}

// findWithFallback performs the index lookup with the legacy key-variant
// chain: the computed key, the key with the default extension appended, the
// resolved path variants, then the raw link text variants. Ghost-link and
// resolved-link keys diverge once a target file is created; the chain bridges
// that gap. Returns nil when every variant misses. Caller holds ix.mu.
func (ix *Index) findWithFallback(key string, l Link) []*Link {
	if refs, ok := ix.refs[key]; ok {
		return refs
	}
	if refs, ok := ix.refs[key+".MD"]; ok {
		return refs
	}

	bare := strings.ToUpper(l.ResolvedFile.Path)
	if refs, ok := ix.refs[bare]; ok {
		return refs
	}
	if sub := l.Subpath(); sub != "" {
		if refs, ok := ix.refs[bare+"#"+strings.ToUpper(sub)]; ok {
			return refs
		}
	}

	raw := strings.ToUpper(l.RealLink)
	if refs, ok := ix.refs[raw]; ok {
		return refs
	}
	if refs, ok := ix.refs[raw+".MD"]; ok {
		return refs
	}
	return nil
}

// bumpLocked advances the mutation counter and drops stale file caches.
// Caller holds ix.mu.
func (ix *Index) bumpLocked() {
	ix.mutation++
	ix.caches = make(map[string]*FileCache)
}
