package mcpserver

// LinkFormatContract describes the canonical wikilink and frontmatter format
// that LLM consumers should follow so references index correctly.
const LinkFormatContract = `# Othala Link Format Contract

Every Markdown file stored in Othala SHOULD follow this structure so its
references are counted correctly.

## Structure

` + "```" + `markdown
---
title: Human-readable title         # OPTIONAL – falls back to the first H1
aliases:                            # OPTIONAL – alternate names for detection
  - alt name
exclude-references: false           # OPTIONAL – true opts out of incoming credit
---

Body text in standard Markdown.

Use [[wikilinks]] to reference other files (without .md extension).
Use [[target|alias]] for display text that differs from the target.
Use [[target#Heading]] to reference a specific heading.
Use [[target#^block-id]] to reference a block marked with ^block-id.
Use ![[target]] to embed; embeds count as references too.
` + "```" + `

## Rules

1. **Wikilinks** use double brackets: ` + "`" + `[[other-file]]` + "`" + `. The target is the
   filename stem (no ` + "`" + `.md` + "`" + ` extension, path separators OK: ` + "`" + `[[folder/file]]` + "`" + `).
2. **Link text is matched case-insensitively** under the default policy;
   ` + "`" + `[[Target]]` + "`" + ` and ` + "`" + `[[target]]` + "`" + ` count as the same reference.
3. **Links to files that do not exist yet are legal.** They are tracked as
   ghost references and unify with the real file once it is created.
4. **Subpaths** (` + "`" + `#Heading` + "`" + `, ` + "`" + `#^block` + "`" + `) narrow the reference to an anchor
   inside the target. A bare ` + "`" + `[[#Heading]]` + "`" + ` references the current file.
5. **Frontmatter values shaped like wikilinks** are indexed as references.
6. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
7. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
title: Graph Theory
aliases:
  - graphs
---

# Graph Theory

Closely related to [[Trees]] and [[combinatorics|Combinatorics]].

See [[Algorithms#Shortest Paths]] for applications.

A key fact worth citing elsewhere. ^key-fact
` + "```" + `
`
