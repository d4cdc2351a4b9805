package refs

import (
	"time"

	"github.com/starford/othala/internal/models"
)

// ItemType classifies entries in a per-file reference view.
type ItemType string

const (
	ItemLink            ItemType = "link"
	ItemHeading         ItemType = "heading"
	ItemBlock           ItemType = "block"
	ItemEmbed           ItemType = "embed"
	ItemFrontmatterLink ItemType = "frontmatterLink"
)

// CachedItem is one entry of a file's reference view: an anchor (heading,
// block) or outgoing reference (link, embed, frontmatter link) together with
// the inbound references found for its key.
type CachedItem struct {
	Key         string     `json:"key"`
	Type        ItemType   `json:"type"`
	Pos         models.Pos `json:"pos"`
	Page        string     `json:"page"`
	References  []*Link    `json:"references"`
	Original    string     `json:"original,omitempty"`
	DisplayText string     `json:"display_text,omitempty"`
}

// FileCache is the lazily materialized reference view of one file. It stays
// valid until the index mutates or one second passes, whichever comes first.
type FileCache struct {
	Links            []CachedItem `json:"links,omitempty"`
	Embeds           []CachedItem `json:"embeds,omitempty"`
	Headings         []CachedItem `json:"headings,omitempty"`
	Blocks           []CachedItem `json:"blocks,omitempty"`
	FrontmatterLinks []CachedItem `json:"frontmatter_links,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`

	mutation int64
}

const fileCacheTTL = time.Second

// FileCacheFor returns the cached reference view for one file, recomputing it
// when stale. Items whose reference count falls below the threshold are
// omitted, as are items with no references at all.
func (ix *Index) FileCacheFor(path string) (*FileCache, error) {
	ix.mu.RLock()
	if fc, ok := ix.caches[path]; ok && fc.mutation == ix.mutation && time.Since(fc.CreatedAt) < fileCacheTTL {
		ix.mu.RUnlock()
		return fc, nil
	}
	ix.mu.RUnlock()

	// Malformed or missing host metadata means "no references", not an error.
	meta, err := ix.corpus.Metadata(path)
	if err != nil {
		return &FileCache{CreatedAt: time.Now()}, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	fc := &FileCache{CreatedAt: time.Now(), mutation: ix.mutation}

	self := &models.FileRef{Path: meta.Path}
	for _, h := range meta.Headings {
		item := models.RefItem{Raw: meta.Path + "#" + h.Text, Pos: h.Pos}
		link := Link{RealLink: item.Raw, Reference: item, ResolvedFile: *self, SourceFile: self}
		if ci, ok := ix.cachedItemLocked(link, ItemHeading, meta.Path, h.Text); ok {
			fc.Headings = append(fc.Headings, ci)
		}
	}
	for _, b := range meta.Blocks {
		item := models.RefItem{Raw: meta.Path + "#^" + b.ID, Pos: b.Pos}
		link := Link{RealLink: item.Raw, Reference: item, ResolvedFile: *self, SourceFile: self}
		if ci, ok := ix.cachedItemLocked(link, ItemBlock, meta.Path, b.ID); ok {
			fc.Blocks = append(fc.Blocks, ci)
		}
	}

	outgoing := func(items []models.RefItem, typ ItemType) []CachedItem {
		var out []CachedItem
		for _, item := range items {
			resolved := ix.resolveItem(item, meta.Path)
			if resolved.Path == "" {
				continue
			}
			link := Link{RealLink: item.Raw, Reference: item, ResolvedFile: resolved, SourceFile: self}
			if ci, ok := ix.cachedItemLocked(link, typ, meta.Path, item.Display); ok {
				out = append(out, ci)
			}
		}
		return out
	}
	fc.Links = outgoing(meta.Links, ItemLink)
	fc.Embeds = outgoing(meta.Embeds, ItemEmbed)
	fc.FrontmatterLinks = outgoing(meta.FrontmatterLinks, ItemFrontmatterLink)

	ix.caches[path] = fc
	return fc, nil
}

// cachedItemLocked generates the key for one link-shaped item, looks up its
// references with the fallback chain, and applies policy filtering plus the
// count threshold. ok is false when the item should be omitted.
// Caller holds ix.mu.
func (ix *Index) cachedItemLocked(link Link, typ ItemType, page, display string) (CachedItem, bool) {
	key := ix.policy.GenerateKey(link)
	found := ix.findWithFallback(key, link)
	if len(found) == 0 {
		return CachedItem{}, false
	}
	if CountReferences(ix.policy, found) < ix.threshold {
		return CachedItem{}, false
	}
	return CachedItem{
		Key:         key,
		Type:        typ,
		Pos:         link.Reference.Pos,
		Page:        page,
		References:  FilterReferences(ix.policy, found),
		Original:    link.RealLink,
		DisplayText: display,
	}, true
}
