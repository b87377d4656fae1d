// Package metadata parses raw note text into structured metadata
// (frontmatter, headings, tags, links, embeds, block ids) and classifies
// every link as resolved or unresolved against the current file set.
package metadata

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loc is a zero-based line/column position with its byte offset.
type Loc struct {
	Line   int `json:"line"`
	Col    int `json:"col"`
	Offset int `json:"offset"`
}

// Pos is a half-open source range.
type Pos struct {
	Start Loc `json:"start"`
	End   Loc `json:"end"`
}

// HeadingCache is one ATX heading.
type HeadingCache struct {
	Heading  string `json:"heading"`
	Level    int    `json:"level"`
	Position Pos    `json:"position"`
}

// LinkCache is one wikilink or embed. Link is the target text as written,
// including any #heading or #^block subpath; DisplayText is the alias after
// a pipe, if present.
type LinkCache struct {
	Link        string `json:"link"`
	DisplayText string `json:"displayText,omitempty"`
	Position    Pos    `json:"position"`
}

// TagCache is one inline #tag occurrence.
type TagCache struct {
	Tag      string `json:"tag"`
	Position Pos    `json:"position"`
}

// CachedMetadata is the parse result for one file. It is derived solely from
// the file's raw content at parse time and recomputed, never patched, when
// the content changes.
type CachedMetadata struct {
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Headings    []HeadingCache `json:"headings,omitempty"`
	Links       []LinkCache    `json:"links,omitempty"`
	Embeds      []LinkCache    `json:"embeds,omitempty"`
	Tags        []TagCache     `json:"tags,omitempty"`
	Blocks      map[string]Pos `json:"blocks,omitempty"`
}

var (
	// #..###### heading — up to six hashes followed by a space.
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

	// [[target]], [[target#heading]], [[target|alias]], ![[embed]]
	linkPattern = regexp.MustCompile(`(!?)\[\[([^\[\]]+)\]\]`)

	// #tag or #nested/tag — must start with a letter or underscore so plain
	// issue numbers (#42) and heading markers don't register.
	tagPattern = regexp.MustCompile(`#([A-Za-z_][A-Za-z0-9_/-]*)`)

	// ^blockId at end of line.
	blockIDPattern = regexp.MustCompile(`\^([A-Za-z0-9-]+)\s*$`)

	// `inline code` spans, masked before tag/link extraction.
	inlineCodePattern = regexp.MustCompile("`[^`]*`")
)

// Parse extracts CachedMetadata from raw note content.
func Parse(content string) *CachedMetadata {
	meta := &CachedMetadata{}

	fm, fmEndLine := parseFrontmatter(content)
	meta.Frontmatter = fm

	lines := strings.Split(content, "\n")
	offset := 0
	inFence := false

	for i, line := range lines {
		lineLen := len(line)

		// Frontmatter lines carry no inline metadata.
		if i < fmEndLine {
			offset += lineLen + 1
			continue
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			offset += lineLen + 1
			continue
		}
		if inFence {
			offset += lineLen + 1
			continue
		}

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			meta.Headings = append(meta.Headings, HeadingCache{
				Heading: m[2],
				Level:   len(m[1]),
				Position: Pos{
					Start: Loc{Line: i, Col: 0, Offset: offset},
					End:   Loc{Line: i, Col: lineLen, Offset: offset + lineLen},
				},
			})
		}

		// Inline code spans hide links and tags but keep the line length,
		// so match indices still map onto the original text.
		masked := maskInlineCode(line)

		for _, m := range linkPattern.FindAllStringSubmatchIndex(masked, -1) {
			start, end := m[0], m[1]
			isEmbed := masked[m[2]:m[3]] == "!"
			inner := line[m[4]:m[5]]

			link, display := inner, ""
			if pipe := strings.Index(inner, "|"); pipe >= 0 {
				link = strings.TrimSpace(inner[:pipe])
				display = strings.TrimSpace(inner[pipe+1:])
			} else {
				link = strings.TrimSpace(link)
			}
			if link == "" {
				continue
			}

			lc := LinkCache{
				Link:        link,
				DisplayText: display,
				Position: Pos{
					Start: Loc{Line: i, Col: start, Offset: offset + start},
					End:   Loc{Line: i, Col: end, Offset: offset + end},
				},
			}
			if isEmbed {
				meta.Embeds = append(meta.Embeds, lc)
			} else {
				meta.Links = append(meta.Links, lc)
			}
		}

		// Mask links too so [[page#section|#notatag]] does not produce tags.
		tagSource := linkPattern.ReplaceAllStringFunc(masked, func(s string) string {
			return strings.Repeat(" ", len(s))
		})
		for _, m := range tagPattern.FindAllStringSubmatchIndex(tagSource, -1) {
			start, end := m[0], m[1]
			// Require start of line or whitespace/paren before the hash.
			if start > 0 {
				prev := tagSource[start-1]
				if prev != ' ' && prev != '\t' && prev != '(' {
					continue
				}
			}
			meta.Tags = append(meta.Tags, TagCache{
				Tag: tagSource[m[2]:m[3]],
				Position: Pos{
					Start: Loc{Line: i, Col: start, Offset: offset + start},
					End:   Loc{Line: i, Col: end, Offset: offset + end},
				},
			})
		}

		if m := blockIDPattern.FindStringSubmatchIndex(masked); m != nil && strings.TrimSpace(line) != "" {
			// The marker must not be the whole line content's start (a bare
			// ^id line still labels the preceding paragraph in Obsidian; we
			// record it against this line either way).
			id := line[m[2]:m[3]]
			if meta.Blocks == nil {
				meta.Blocks = make(map[string]Pos)
			}
			meta.Blocks[id] = Pos{
				Start: Loc{Line: i, Col: 0, Offset: offset},
				End:   Loc{Line: i, Col: lineLen, Offset: offset + lineLen},
			}
		}

		offset += lineLen + 1
	}

	return meta
}

// parseFrontmatter extracts the YAML block fenced by --- at the very start
// of the file. Returns the parsed map (nil if absent or malformed — a bad
// frontmatter block never fails the parse) and the first body line index.
func parseFrontmatter(content string) (map[string]any, int) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return nil, 0
	}

	lines := strings.Split(content, "\n")
	closing := -1
	for i := 1; i < len(lines); i++ {
		t := strings.TrimRight(lines[i], "\r")
		if t == "---" || t == "..." {
			closing = i
			break
		}
	}
	if closing < 0 {
		return nil, 0
	}

	block := strings.Join(lines[1:closing], "\n")
	var props map[string]any
	if err := yaml.Unmarshal([]byte(block), &props); err != nil {
		return nil, closing + 1
	}
	if len(props) == 0 {
		return nil, closing + 1
	}
	return props, closing + 1
}

func maskInlineCode(line string) string {
	return inlineCodePattern.ReplaceAllStringFunc(line, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
}

// StripSubpath removes a #heading or #^block suffix from a link target.
func StripSubpath(link string) string {
	if i := strings.Index(link, "#"); i >= 0 {
		return strings.TrimSpace(link[:i])
	}
	return link
}
