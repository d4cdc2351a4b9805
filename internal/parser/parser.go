// Package parser extracts frontmatter, wikilinks, embeds, headings, and block
// anchors from Markdown content. It is the only component that looks at raw
// Markdown; everything downstream consumes the positioned metadata it emits.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/models"
)

var (
	// Wikilink grammar: [[target]], [[target|display]], [[target#subpath]],
	// [[#subpath]] (self-reference). The target portion may not contain
	// brackets or pipes; '#' stays inside Raw and is split off downstream.
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]+))?\]\]`)
	headingRe  = regexp.MustCompile(`^(#{1,6})[ \t]+(.+?)[ \t]*$`)
	blockRe    = regexp.MustCompile(`\^([A-Za-z0-9][A-Za-z0-9-]*)[ \t]*$`)
)

// Parse extracts all reference metadata from raw Markdown bytes. Positions are
// byte offsets into the full file content, not the body alone.
func Parse(data []byte) (*models.FileMeta, error) {
	fm, bodyStart := splitFrontmatter(data)
	content := string(data)
	body := content[bodyStart:]

	idx := newLineIndex(content)
	meta := &models.FileMeta{}

	meta.Links, meta.Embeds = extractRefs(content, bodyStart, idx)
	meta.Headings = extractHeadings(body, bodyStart, idx)
	meta.Blocks = extractBlocks(body, bodyStart, idx)

	if fm != nil {
		meta.Title = stringField(fm, "title")
		meta.Aliases = stringListField(fm, "aliases")
		meta.Excluded = boolField(fm, "exclude-references")
		meta.FrontmatterLinks = frontmatterLinks(fm)
	}
	if meta.Title == "" {
		meta.Title = firstH1(meta.Headings)
	}

	return meta, nil
}

// splitFrontmatter locates YAML frontmatter (between leading --- delimiters)
// and returns the parsed map plus the byte offset where the body starts.
// Invalid or absent frontmatter yields a nil map and offset 0.
func splitFrontmatter(data []byte) (map[string]any, int) {
	const delim = "---"
	if !bytes.HasPrefix(data, []byte(delim)) {
		return nil, 0
	}
	rest := data[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, 0
	}
	yamlBlock := rest[:idx]

	// Body starts after the closing delimiter line, including its newline.
	bodyStart := len(delim) + idx + 1 + len(delim)
	for bodyStart < len(data) && (data[bodyStart] == '\n' || data[bodyStart] == '\r') {
		bodyStart++
	}

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, 0
	}
	return fm, bodyStart
}

// lineIndex maps byte offsets to line/column pairs.
type lineIndex struct {
	starts []int // byte offset of each line start
}

func newLineIndex(content string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts}
}

func (li *lineIndex) pos(start, end int) models.Pos {
	line := 0
	for line+1 < len(li.starts) && li.starts[line+1] <= start {
		line++
	}
	return models.Pos{Line: line, Col: start - li.starts[line], Start: start, End: end}
}

// extractRefs returns inline wikilinks and embeds. An embed is a wikilink
// immediately preceded by '!'; its position includes the bang.
func extractRefs(content string, bodyStart int, idx *lineIndex) (links, embeds []models.RefItem) {
	body := content[bodyStart:]
	for _, m := range wikilinkRe.FindAllStringSubmatchIndex(body, -1) {
		start, end := bodyStart+m[0], bodyStart+m[1]
		raw := strings.TrimSpace(body[m[2]:m[3]])
		if raw == "" {
			continue
		}
		var display string
		if m[4] >= 0 {
			display = strings.TrimSpace(body[m[4]:m[5]])
		}

		if start > bodyStart && content[start-1] == '!' {
			embeds = append(embeds, models.RefItem{
				Raw:     raw,
				Display: display,
				Pos:     idx.pos(start-1, end),
			})
			continue
		}
		links = append(links, models.RefItem{
			Raw:     raw,
			Display: display,
			Pos:     idx.pos(start, end),
		})
	}
	return links, embeds
}

func extractHeadings(body string, bodyStart int, idx *lineIndex) []models.Heading {
	var out []models.Heading
	offset := bodyStart
	for _, line := range strings.SplitAfter(body, "\n") {
		trimmed := strings.TrimRight(line, "\n")
		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			out = append(out, models.Heading{
				Text:  m[2],
				Level: len(m[1]),
				Pos:   idx.pos(offset, offset+len(trimmed)),
			})
		}
		offset += len(line)
	}
	return out
}

func extractBlocks(body string, bodyStart int, idx *lineIndex) []models.Block {
	var out []models.Block
	offset := bodyStart
	for _, line := range strings.SplitAfter(body, "\n") {
		trimmed := strings.TrimRight(line, "\n")
		if m := blockRe.FindStringSubmatchIndex(trimmed); m != nil {
			out = append(out, models.Block{
				ID:  trimmed[m[2]:m[3]],
				Pos: idx.pos(offset+m[0], offset+m[1]),
			})
		}
		offset += len(line)
	}
	return out
}

// frontmatterLinks collects wikilink-shaped values from frontmatter fields,
// both scalar and list-valued. Frontmatter carries no byte positions.
func frontmatterLinks(fm map[string]any) []models.RefItem {
	var out []models.RefItem
	appendLink := func(v any) {
		s, ok := v.(string)
		if !ok {
			return
		}
		m := wikilinkRe.FindStringSubmatch(strings.TrimSpace(s))
		if m == nil {
			return
		}
		item := models.RefItem{Raw: strings.TrimSpace(m[1])}
		if m[2] != "" {
			item.Display = strings.TrimSpace(m[2])
		}
		if item.Raw != "" {
			out = append(out, item)
		}
	}
	for _, v := range fm {
		switch val := v.(type) {
		case string:
			appendLink(val)
		case []any:
			for _, item := range val {
				appendLink(item)
			}
		}
	}
	return out
}

func stringField(fm map[string]any, key string) string {
	if v, ok := fm[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func stringListField(fm map[string]any, key string) []string {
	var out []string
	switch v := fm[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func boolField(fm map[string]any, key string) bool {
	v, ok := fm[key].(bool)
	return ok && v
}

func firstH1(headings []models.Heading) string {
	for _, h := range headings {
		if h.Level == 1 {
			return h.Text
		}
	}
	return ""
}
