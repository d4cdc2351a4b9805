package detect

import (
	"fmt"
	"sync"

	"github.com/starford/othala/internal/vault"
)

// DictionarySettings selects which phrase sources feed the dictionary and how
// candidates are filtered during scanning.
type DictionarySettings struct {
	Basenames             bool
	Aliases               bool
	Headings              bool
	CustomList            bool
	CustomPhrases         []string
	MinPhraseLength       int
	RequireWordBoundaries bool
}

// Dictionary detects occurrences of known phrases in prose using a trie
// built from corpus metadata. Build swaps in a freshly built trie atomically,
// so detection can run concurrently with rebuilds.
type Dictionary struct {
	corpus   vault.Corpus
	keyFor   func(linkText string) string
	settings DictionarySettings

	mu   sync.RWMutex
	trie *PhraseTrie
}

// NewDictionary returns a dictionary detector. Call Build before detecting.
func NewDictionary(corpus vault.Corpus, keyFor func(string) string, settings DictionarySettings) *Dictionary {
	if settings.MinPhraseLength < 1 {
		settings.MinPhraseLength = 1
	}
	return &Dictionary{
		corpus:   corpus,
		keyFor:   keyFor,
		settings: settings,
		trie:     NewPhraseTrie(),
	}
}

// Build collects phrases from the enabled sources and rebuilds the trie.
// Sources are inserted in a fixed order (basenames, aliases, headings, custom
// list) so later sources win on folded-phrase collisions.
func (d *Dictionary) Build() error {
	trie := NewPhraseTrie()

	insert := func(phrase, target string) {
		if len([]rune(phrase)) < d.settings.MinPhraseLength {
			return
		}
		trie.Insert(phrase, d.keyFor(phrase), target)
	}

	infos, err := d.corpus.Files()
	if err != nil {
		return fmt.Errorf("detect: build dictionary: %w", err)
	}
	for _, fi := range infos {
		if d.corpus.Excluded(fi.Path) || d.corpus.Ignored(fi.Path) {
			continue
		}
		meta, err := d.corpus.Metadata(fi.Path)
		if err != nil {
			continue
		}
		if d.settings.Basenames {
			insert(vault.Basename(fi.Path), fi.Path)
		}
		if d.settings.Aliases {
			for _, alias := range meta.Aliases {
				insert(alias, fi.Path)
			}
		}
		if d.settings.Headings {
			for _, h := range meta.Headings {
				insert(h.Text, fi.Path)
			}
		}
	}
	if d.settings.CustomList {
		for _, phrase := range d.settings.CustomPhrases {
			target := phrase
			if ref := d.corpus.Resolve(phrase, ""); ref != nil {
				target = ref.Path
			}
			insert(phrase, target)
		}
	}

	d.mu.Lock()
	d.trie = trie
	d.mu.Unlock()
	return nil
}

// PhraseCount returns the number of distinct phrases currently indexed.
func (d *Dictionary) PhraseCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.trie.Len()
}

// Detect scans text for dictionary phrases. A file may legally mention its
// own title, so matches targeting the scanned file are kept.
func (d *Dictionary) Detect(_ string, text string) []Detection {
	d.mu.RLock()
	trie := d.trie
	d.mu.RUnlock()

	matches := trie.Scan(text, d.settings.RequireWordBoundaries)
	out := make([]Detection, 0, len(matches))
	for _, m := range matches {
		out = append(out, Detection{
			Start:   m.Start,
			End:     m.End,
			Display: text[m.Start:m.End],
			Key:     m.Key,
			Target:  m.Target,
			Source:  SourceDictionary,
		})
	}
	return out
}
