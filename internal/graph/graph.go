// Package graph answers connectivity queries over the resolved link maps:
// backlinks, neighborhoods, paths, orphans, dead links and clusters.
package graph

import (
	"sort"
	"sync"

	"github.com/mkarlsen/vaultkit/internal/metadata"
)

// DegreeMode selects which edges NodeDegree counts.
type DegreeMode int

const (
	DegreeIn DegreeMode = iota
	DegreeOut
	DegreeTotal
)

// Degree is a node's in/out link counts.
type Degree struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// DeadLink is one unresolved link occurrence source.
type DeadLink struct {
	Source string `json:"source"`
	Link   string `json:"link"`
}

// RankedNote is a note with its backlink count.
type RankedNote struct {
	Path      string `json:"path"`
	Backlinks int    `json:"backlinks"`
}

// Stats contains global graph statistics.
type Stats struct {
	TotalNodes    int     `json:"totalNodes"`
	TotalEdges    int     `json:"totalEdges"`
	OrphanCount   int     `json:"orphanCount"`
	AverageDegree float64 `json:"averageDegree"`
}

// Graph computes link-structure queries from the metadata cache's resolved
// and unresolved link maps. It holds no content, only structure. Self-links
// are excluded from every result: backlinks, degrees, edges and rankings.
type Graph struct {
	meta *metadata.Cache

	mu        sync.Mutex
	backlinks map[string]map[string]bool // target → sources, built lazily
}

func New(meta *metadata.Cache) *Graph {
	return &Graph{meta: meta}
}

// InvalidateBacklinkIndex drops the lazy backlink index. The client calls
// this whenever metadata for any file changes.
func (g *Graph) InvalidateBacklinkIndex() {
	g.mu.Lock()
	g.backlinks = nil
	g.mu.Unlock()
}

// snapshot captures the current link maps. The metadata cache replaces its
// maps wholesale on rebuild, so the captured references stay consistent.
type snapshot struct {
	resolved   map[string]map[string]int
	unresolved map[string]map[string]int
	notes      map[string]bool // parsed markdown files
	nodes      map[string]bool // notes plus resolved link targets
}

func (g *Graph) snapshot() snapshot {
	var s snapshot
	g.meta.WithLinks(func(view metadata.LinkView) {
		s.resolved = view.Resolved
		s.unresolved = view.Unresolved
		s.notes = view.Paths
		s.nodes = make(map[string]bool, len(view.Paths))
		for path := range view.Paths {
			s.nodes[path] = true
		}
		for _, targets := range view.Resolved {
			for target := range targets {
				s.nodes[target] = true
			}
		}
	})
	return s
}

// Outlinks returns the distinct resolved targets of a note, sorted.
func (g *Graph) Outlinks(path string) []string {
	s := g.snapshot()
	targets := s.resolved[path]
	if len(targets) == 0 {
		return nil
	}
	out := make([]string, 0, len(targets))
	for target := range targets {
		if target == path {
			continue
		}
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

// Backlinks returns the notes linking to a path, sorted.
func (g *Graph) Backlinks(path string) []string {
	index := g.backlinkIndex()
	sources := index[path]
	if len(sources) == 0 {
		return nil
	}
	out := make([]string, 0, len(sources))
	for source := range sources {
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) backlinkIndex() map[string]map[string]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.backlinks != nil {
		return g.backlinks
	}
	s := g.snapshot()
	index := make(map[string]map[string]bool)
	for source, targets := range s.resolved {
		for target := range targets {
			if target == source {
				continue
			}
			if index[target] == nil {
				index[target] = make(map[string]bool)
			}
			index[target][source] = true
		}
	}
	g.backlinks = index
	return index
}

// adjacency builds the undirected neighbor sets, self-links dropped.
func adjacency(s snapshot) map[string]map[string]bool {
	adj := make(map[string]map[string]bool, len(s.nodes))
	add := func(a, b string) {
		if adj[a] == nil {
			adj[a] = make(map[string]bool)
		}
		adj[a][b] = true
	}
	for source, targets := range s.resolved {
		for target := range targets {
			if target == source {
				continue
			}
			add(source, target)
			add(target, source)
		}
	}
	return adj
}

// Neighbors returns the notes reachable from path within depth hops over
// undirected edges, in BFS arrival order, at most limit results. The start
// node is not included. Unknown paths, depth <= 0 and limit == 0 yield nil;
// a negative limit means unlimited.
func (g *Graph) Neighbors(path string, depth, limit int) []string {
	if depth <= 0 || limit == 0 {
		return nil
	}
	s := g.snapshot()
	if !s.nodes[path] {
		return nil
	}
	adj := adjacency(s)

	type hop struct {
		path  string
		depth int
	}
	visited := map[string]bool{path: true}
	queue := []hop{{path, 0}}
	var out []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth == depth {
			continue
		}
		next := make([]string, 0, len(adj[cur.path]))
		for n := range adj[cur.path] {
			next = append(next, n)
		}
		sort.Strings(next)
		for _, n := range next {
			if visited[n] {
				continue
			}
			visited[n] = true
			out = append(out, n)
			if limit > 0 && len(out) == limit {
				return out
			}
			queue = append(queue, hop{n, cur.depth + 1})
		}
	}
	return out
}

// FindPath returns a shortest undirected path between two notes, inclusive
// of both endpoints. Nil when either endpoint is unknown or no path exists.
func (g *Graph) FindPath(from, to string) []string {
	s := g.snapshot()
	if !s.nodes[from] || !s.nodes[to] {
		return nil
	}
	if from == to {
		return []string{from}
	}
	adj := adjacency(s)

	parent := map[string]string{from: from}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		next := make([]string, 0, len(adj[cur]))
		for n := range adj[cur] {
			next = append(next, n)
		}
		sort.Strings(next)
		for _, n := range next {
			if _, seen := parent[n]; seen {
				continue
			}
			parent[n] = cur
			if n == to {
				var rev []string
				for at := to; at != from; at = parent[at] {
					rev = append(rev, at)
				}
				rev = append(rev, from)
				for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
					rev[i], rev[j] = rev[j], rev[i]
				}
				return rev
			}
			queue = append(queue, n)
		}
	}
	return nil
}

// Orphans returns the notes with no inbound and no outbound resolved links,
// sorted. Self-links do not save a note from orphanhood.
func (g *Graph) Orphans() []string {
	s := g.snapshot()
	index := g.backlinkIndex()
	var out []string
	for note := range s.notes {
		if len(index[note]) > 0 {
			continue
		}
		hasOut := false
		for target := range s.resolved[note] {
			if target != note {
				hasOut = true
				break
			}
		}
		if !hasOut {
			out = append(out, note)
		}
	}
	sort.Strings(out)
	return out
}

// DeadLinks returns every unresolved link occurrence, sorted by source
// then link text.
func (g *Graph) DeadLinks() []DeadLink {
	s := g.snapshot()
	var out []DeadLink
	for source, links := range s.unresolved {
		for link := range links {
			out = append(out, DeadLink{Source: source, Link: link})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Link < out[j].Link
	})
	return out
}

// MostLinked ranks notes by distinct backlink sources, descending, ties
// broken by path ascending.
func (g *Graph) MostLinked(limit int) []RankedNote {
	if limit <= 0 {
		return nil
	}
	index := g.backlinkIndex()
	ranked := make([]RankedNote, 0, len(index))
	for target, sources := range index {
		ranked = append(ranked, RankedNote{Path: target, Backlinks: len(sources)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Backlinks != ranked[j].Backlinks {
			return ranked[i].Backlinks > ranked[j].Backlinks
		}
		return ranked[i].Path < ranked[j].Path
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Clusters returns the connected components of the undirected graph,
// singletons included. Components are sorted by size descending then by
// first path; paths inside each component are sorted.
func (g *Graph) Clusters() [][]string {
	s := g.snapshot()

	parent := make(map[string]string, len(s.nodes))
	rank := make(map[string]int, len(s.nodes))
	for node := range s.nodes {
		parent[node] = node
	}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if rank[ra] < rank[rb] {
			ra, rb = rb, ra
		}
		parent[rb] = ra
		if rank[ra] == rank[rb] {
			rank[ra]++
		}
	}

	for source, targets := range s.resolved {
		for target := range targets {
			if target != source {
				union(source, target)
			}
		}
	}

	groups := make(map[string][]string)
	for node := range s.nodes {
		root := find(node)
		groups[root] = append(groups[root], node)
	}

	out := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// NodeDegree counts a note's links in the requested direction.
func (g *Graph) NodeDegree(path string, mode DegreeMode) int {
	d := g.degree(path)
	switch mode {
	case DegreeIn:
		return d.In
	case DegreeOut:
		return d.Out
	default:
		return d.In + d.Out
	}
}

func (g *Graph) degree(path string) Degree {
	s := g.snapshot()
	index := g.backlinkIndex()
	d := Degree{In: len(index[path])}
	for target := range s.resolved[path] {
		if target != path {
			d.Out++
		}
	}
	return d
}

// AllNodeDegrees returns the degree of every node in the graph.
func (g *Graph) AllNodeDegrees() map[string]Degree {
	s := g.snapshot()
	index := g.backlinkIndex()
	out := make(map[string]Degree, len(s.nodes))
	for node := range s.nodes {
		d := Degree{In: len(index[node])}
		for target := range s.resolved[node] {
			if target != node {
				d.Out++
			}
		}
		out[node] = d
	}
	return out
}

// GraphStats computes the global graph statistics. An edge is one distinct
// resolved source→target pair; average degree counts each edge at both ends.
func (g *Graph) GraphStats() Stats {
	s := g.snapshot()
	stats := Stats{TotalNodes: len(s.nodes)}

	for source, targets := range s.resolved {
		for target := range targets {
			if target != source {
				stats.TotalEdges++
			}
		}
	}
	stats.OrphanCount = len(g.Orphans())
	if stats.TotalNodes > 0 {
		stats.AverageDegree = float64(2*stats.TotalEdges) / float64(stats.TotalNodes)
	}
	return stats
}
