// Package detect implements implicit link detection: phrases in prose that
// are not explicit links but match known titles, aliases, headings, custom
// phrases, or user-defined regex rules.
package detect

import (
	"unicode"
	"unicode/utf8"
)

// PhraseTrie is a character trie over case-folded phrase text. Each terminal
// node stores the canonical key and target path for its phrase. Inserting the
// same folded phrase twice overwrites the earlier mapping: last insert wins,
// in source order.
type PhraseTrie struct {
	root *trieNode
	size int
}

type trieNode struct {
	children map[rune]*trieNode
	terminal bool
	key      string
	target   string
}

// Match is one accepted phrase occurrence. Start and End are byte offsets.
type Match struct {
	Start  int
	End    int
	Key    string
	Target string
}

// NewPhraseTrie returns an empty trie.
func NewPhraseTrie() *PhraseTrie {
	return &PhraseTrie{root: &trieNode{}}
}

// Len returns the number of distinct folded phrases in the trie.
func (t *PhraseTrie) Len() int {
	return t.size
}

// Insert adds a phrase with its canonical key and target path.
func (t *PhraseTrie) Insert(phrase, key, target string) {
	node := t.root
	for _, r := range phrase {
		r = unicode.ToLower(r)
		if node.children == nil {
			node.children = make(map[rune]*trieNode)
		}
		child, ok := node.children[r]
		if !ok {
			child = &trieNode{}
			node.children[r] = child
		}
		node = child
	}
	if node == t.root {
		return // empty phrase
	}
	if !node.terminal {
		t.size++
	}
	node.terminal = true
	node.key = key
	node.target = target
}

// Scan performs a single left-to-right pass over text, emitting the greedy
// longest-prefix match starting at each position. After an accepted match the
// scan resumes past its end, so matches from one pass never overlap. With
// boundaries enabled, a match is accepted only when the characters adjacent
// to its span are non-word characters or string boundaries.
func (t *PhraseTrie) Scan(text string, boundaries bool) []Match {
	var out []Match
	i := 0
	for i < len(text) {
		node := t.root
		lastEnd := -1
		var lastKey, lastTarget string

		for j := i; j < len(text); {
			r, size := utf8.DecodeRuneInString(text[j:])
			child, ok := node.children[unicode.ToLower(r)]
			if !ok {
				break
			}
			node = child
			j += size
			if node.terminal {
				lastEnd = j
				lastKey = node.key
				lastTarget = node.target
			}
		}

		if lastEnd > i && (!boundaries || boundaryOK(text, i, lastEnd)) {
			out = append(out, Match{Start: i, End: lastEnd, Key: lastKey, Target: lastTarget})
			i = lastEnd
			continue
		}

		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return out
}

// boundaryOK checks that the runes immediately before start and after end are
// not word characters.
func boundaryOK(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
