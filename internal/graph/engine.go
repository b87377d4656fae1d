package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mkarlsen/vaultkit/internal/metadata"
)

const contextLineLimit = 200

// LinkPosition locates one link occurrence inside its source note.
type LinkPosition struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Context string `json:"context"`
}

// Backlink is one source note linking to a target, with every occurrence.
type Backlink struct {
	Source    string         `json:"source"`
	Count     int            `json:"count"`
	Positions []LinkPosition `json:"positions"`
}

// Engine resolves detailed backlinks: which notes link to a target, where
// exactly, and what the surrounding text looks like. It performs no I/O;
// the caller populates the content cache with the sources it wants context
// for. Sources without cached content get a line-number placeholder.
type Engine struct {
	graph *Graph
	meta  *metadata.Cache

	mu      sync.RWMutex
	content map[string]string
}

func NewEngine(g *Graph, meta *metadata.Cache) *Engine {
	return &Engine{graph: g, meta: meta, content: make(map[string]string)}
}

// SetContent caches a source note's content for context extraction.
func (e *Engine) SetContent(path, content string) {
	e.mu.Lock()
	e.content[path] = content
	e.mu.Unlock()
}

// RemoveContent drops one cached source.
func (e *Engine) RemoveContent(path string) {
	e.mu.Lock()
	delete(e.content, path)
	e.mu.Unlock()
}

// ClearContentCache drops all cached content.
func (e *Engine) ClearContentCache() {
	e.mu.Lock()
	e.content = make(map[string]string)
	e.mu.Unlock()
}

// DetailedBacklinks returns each source linking to target with its link
// occurrences, positions sorted by line then column, sources sorted by path.
func (e *Engine) DetailedBacklinks(target string) []Backlink {
	sources := e.graph.Backlinks(target)
	if len(sources) == 0 {
		return nil
	}

	out := make([]Backlink, 0, len(sources))
	for _, source := range sources {
		positions := e.positionsIn(source, target)
		if len(positions) == 0 {
			continue
		}
		out = append(out, Backlink{
			Source:    source,
			Count:     len(positions),
			Positions: positions,
		})
	}
	return out
}

// positionsIn finds every link in source whose target resolves to the
// requested path.
func (e *Engine) positionsIn(source, target string) []LinkPosition {
	meta := e.meta.GetCache(source)
	if meta == nil {
		return nil
	}

	e.mu.RLock()
	content, hasContent := e.content[source]
	e.mu.RUnlock()
	var lines []string
	if hasContent {
		lines = strings.Split(content, "\n")
	}

	var out []LinkPosition
	collect := func(links []metadata.LinkCache) {
		for _, lc := range links {
			dest := e.meta.GetFirstLinkpathDest(lc.Link, source)
			if dest == nil || dest.Path() != target {
				continue
			}
			out = append(out, LinkPosition{
				Line:    lc.Position.Start.Line,
				Col:     lc.Position.Start.Col,
				Context: contextAround(lines, lc.Position.Start.Line, hasContent),
			})
		}
	}
	collect(meta.Links)
	collect(meta.Embeds)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// contextAround extracts the line of the occurrence plus one line above and
// below, each truncated. Without content it falls back to "Line N" (1-based).
func contextAround(lines []string, line int, hasContent bool) string {
	if !hasContent || line < 0 || line >= len(lines) {
		return fmt.Sprintf("Line %d", line+1)
	}
	start := line - 1
	if start < 0 {
		start = 0
	}
	end := line + 1
	if end >= len(lines) {
		end = len(lines) - 1
	}
	parts := make([]string, 0, 3)
	for i := start; i <= end; i++ {
		parts = append(parts, truncate(lines[i], contextLineLimit))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
