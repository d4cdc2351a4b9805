// Package vault binds storage and the metadata cache into the corpus view that
// the reference engine and the dictionary detector consume. It owns link
// resolution: mapping link text plus a source path to a concrete vault file.
package vault

import (
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/starford/othala/internal/metacache"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
)

// Corpus is the boundary interface the reference engine depends on. The engine
// never parses Markdown or touches the file system through anything else.
type Corpus interface {
	// Files lists every known vault file.
	Files() ([]models.FileInfo, error)
	// Metadata returns the parsed metadata for one file.
	Metadata(path string) (*models.FileMeta, error)
	// Resolve maps link text (without subpath) plus its source path to a
	// concrete vault file, or nil when the target does not exist.
	Resolve(linkText, sourcePath string) *models.FileRef
	// Text returns the full content of one file.
	Text(path string) (string, error)
	// Ignored reports whether a path is excluded from reference processing.
	Ignored(path string) bool
	// Excluded reports whether a file opted out of incoming reference credit
	// via its frontmatter.
	Excluded(path string) bool
}

// Vault implements Corpus over a storage provider and metadata cache.
type Vault struct {
	store  storage.Provider
	cache  metacache.Store
	ignore []string // path prefixes excluded from reference processing

	mu        sync.RWMutex
	paths     map[string]string   // lowercased path → actual path
	basenames map[string][]string // lowercased basename (no .md) → sorted paths
}

// New creates a Vault and primes its resolution tables from the cache.
func New(store storage.Provider, cache metacache.Store, ignore []string) (*Vault, error) {
	v := &Vault{store: store, cache: cache, ignore: ignore}
	if err := v.Refresh(); err != nil {
		return nil, err
	}
	return v, nil
}

// Refresh rebuilds the resolution tables from the metadata cache. Call after
// any batch of cache mutations; individual lookups stay lock-cheap.
func (v *Vault) Refresh() error {
	infos, err := v.cache.Files()
	if err != nil {
		return err
	}

	paths := make(map[string]string, len(infos))
	basenames := make(map[string][]string)
	for _, fi := range infos {
		lower := strings.ToLower(fi.Path)
		paths[lower] = fi.Path

		base := strings.ToLower(strings.TrimSuffix(path.Base(fi.Path), ".md"))
		basenames[base] = append(basenames[base], fi.Path)
	}
	for _, ps := range basenames {
		sort.Strings(ps)
	}

	v.mu.Lock()
	v.paths = paths
	v.basenames = basenames
	v.mu.Unlock()
	return nil
}

// Files lists every known vault file from the cache.
func (v *Vault) Files() ([]models.FileInfo, error) {
	return v.cache.Files()
}

// Metadata returns the parsed metadata for one file from the cache.
func (v *Vault) Metadata(path string) (*models.FileMeta, error) {
	return v.cache.Get(path)
}

// Text reads the full content of one file.
func (v *Vault) Text(path string) (string, error) {
	data, err := v.store.Read(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Resolve maps link text plus its source path to a concrete vault file.
//
// Candidates are tried in order: exact path, path + ".md", relative to the
// source file's directory, then a vault-wide basename match (first path in
// sorted order when several files share the basename). Empty link text
// resolves to the source file itself. Returns nil when nothing matches;
// callers degrade to ghost refs.
func (v *Vault) Resolve(linkText, sourcePath string) *models.FileRef {
	target := strings.TrimSpace(linkText)
	if target == "" {
		if sourcePath == "" {
			return nil
		}
		return &models.FileRef{Path: sourcePath}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	lower := strings.ToLower(target)
	candidates := []string{lower, lower + ".md"}
	if dir := path.Dir(sourcePath); dir != "." && dir != "" {
		rel := strings.ToLower(path.Join(dir, target))
		candidates = append(candidates, rel, rel+".md")
	}
	for _, c := range candidates {
		if actual, ok := v.paths[c]; ok {
			return &models.FileRef{Path: actual}
		}
	}

	base := strings.ToLower(strings.TrimSuffix(path.Base(target), ".md"))
	if ps := v.basenames[base]; len(ps) > 0 {
		return &models.FileRef{Path: ps[0]}
	}
	return nil
}

// Basename returns the file name of a vault path without its .md extension.
func Basename(p string) string {
	return strings.TrimSuffix(path.Base(p), ".md")
}

// Ignored reports whether a path matches a configured ignore prefix.
func (v *Vault) Ignored(p string) bool {
	for _, prefix := range v.ignore {
		if prefix != "" && strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Excluded reports whether a file carries the frontmatter exclusion flag.
func (v *Vault) Excluded(p string) bool {
	excluded, err := v.cache.IsExcluded(p)
	return err == nil && excluded
}

// Verify *Vault satisfies Corpus at compile time.
var _ Corpus = (*Vault)(nil)
