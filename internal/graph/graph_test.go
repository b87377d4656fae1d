package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/vaultkit/internal/backend"
	"github.com/mkarlsen/vaultkit/internal/metadata"
	"github.com/mkarlsen/vaultkit/internal/vault"
)

func testGraph(t *testing.T, files map[string]string) (*vault.Vault, *metadata.Cache, *Graph) {
	t.Helper()
	v, err := vault.New(backend.NewMemoryFrom(files))
	require.NoError(t, err)
	require.NoError(t, v.Load(context.Background()))

	cache := metadata.NewCache(v)
	for _, f := range v.GetMarkdownFiles() {
		cache.HandleModify(context.Background(), f)
	}
	return v, cache, New(cache)
}

// hubVault is a hub with three spokes plus one disconnected note.
func hubVault(t *testing.T) (*vault.Vault, *metadata.Cache, *Graph) {
	return testGraph(t, map[string]string{
		"hub.md":    "the center",
		"a.md":      "[[hub]]",
		"b.md":      "[[hub]] and [[a]]",
		"c.md":      "[[hub]]",
		"island.md": "nothing links here",
	})
}

func TestBacklinksHubAndSpokes(t *testing.T) {
	_, _, g := hubVault(t)

	assert.Equal(t, []string{"a.md", "b.md", "c.md"}, g.Backlinks("hub.md"))
	assert.Equal(t, []string{"b.md"}, g.Backlinks("a.md"))
	assert.Nil(t, g.Backlinks("island.md"))
	assert.Nil(t, g.Backlinks("no-such.md"))
}

func TestOutlinks(t *testing.T) {
	_, _, g := hubVault(t)

	assert.Equal(t, []string{"a.md", "hub.md"}, g.Outlinks("b.md"))
	assert.Nil(t, g.Outlinks("hub.md"))
}

func TestSelfLinksExcluded(t *testing.T) {
	_, _, g := testGraph(t, map[string]string{
		"self.md": "[[self]] loops back",
	})

	assert.Nil(t, g.Backlinks("self.md"))
	assert.Nil(t, g.Outlinks("self.md"))
	assert.Equal(t, 0, g.NodeDegree("self.md", DegreeTotal))
	assert.Equal(t, []string{"self.md"}, g.Orphans())

	stats := g.GraphStats()
	assert.Equal(t, 0, stats.TotalEdges)
	assert.Equal(t, 1, stats.OrphanCount)
}

func TestNeighbors(t *testing.T) {
	_, _, g := hubVault(t)

	// Depth 1 from the hub reaches the spokes, undirected.
	assert.Equal(t, []string{"a.md", "b.md", "c.md"}, g.Neighbors("hub.md", 1, 10))

	// Depth 2 from c reaches everything connected except c itself.
	got := g.Neighbors("c.md", 2, 10)
	assert.ElementsMatch(t, []string{"hub.md", "a.md", "b.md"}, got)

	// Limit truncates in arrival order.
	assert.Equal(t, []string{"a.md", "b.md"}, g.Neighbors("hub.md", 1, 2))

	assert.Nil(t, g.Neighbors("hub.md", 0, 10))
	assert.Nil(t, g.Neighbors("hub.md", 1, 0))
	assert.Nil(t, g.Neighbors("missing.md", 1, 10))

	// Negative limit means unlimited.
	assert.Equal(t, []string{"a.md", "b.md", "c.md"}, g.Neighbors("hub.md", 1, -1))
	got = g.Neighbors("c.md", 2, -1)
	assert.ElementsMatch(t, []string{"hub.md", "a.md", "b.md"}, got)
}

func TestFindPath(t *testing.T) {
	_, _, g := hubVault(t)

	// Shortest route between two spokes goes through the hub.
	path := g.FindPath("a.md", "c.md")
	require.Len(t, path, 3)
	assert.Equal(t, "a.md", path[0])
	assert.Equal(t, "c.md", path[2])

	assert.Equal(t, []string{"hub.md"}, g.FindPath("hub.md", "hub.md"))
	assert.Nil(t, g.FindPath("a.md", "island.md"))
	assert.Nil(t, g.FindPath("a.md", "missing.md"))
}

func TestOrphansAndDeadLinks(t *testing.T) {
	_, _, g := testGraph(t, map[string]string{
		"a.md":      "[[b]] and [[nowhere]]",
		"b.md":      "plain",
		"island.md": "only links to [[gone]], which does not exist",
	})

	// island.md's only link is dead, so it has no resolved edges.
	assert.Equal(t, []string{"island.md"}, g.Orphans())

	dead := g.DeadLinks()
	require.Len(t, dead, 2)
	assert.Equal(t, DeadLink{Source: "a.md", Link: "nowhere"}, dead[0])
	assert.Equal(t, DeadLink{Source: "island.md", Link: "gone"}, dead[1])
}

func TestMostLinked(t *testing.T) {
	_, _, g := testGraph(t, map[string]string{
		"x.md": "[[p]] [[q]]",
		"y.md": "[[p]] [[q]]",
		"z.md": "[[p]]",
		"p.md": "",
		"q.md": "",
	})

	ranked := g.MostLinked(10)
	require.Len(t, ranked, 2)
	assert.Equal(t, RankedNote{Path: "p.md", Backlinks: 3}, ranked[0])
	assert.Equal(t, RankedNote{Path: "q.md", Backlinks: 2}, ranked[1])

	assert.Len(t, g.MostLinked(1), 1)
	assert.Nil(t, g.MostLinked(0))
}

func TestMostLinkedTieBreak(t *testing.T) {
	_, _, g := testGraph(t, map[string]string{
		"src.md":   "[[beta]] [[alpha]]",
		"alpha.md": "",
		"beta.md":  "",
	})

	ranked := g.MostLinked(10)
	require.Len(t, ranked, 2)
	assert.Equal(t, "alpha.md", ranked[0].Path)
	assert.Equal(t, "beta.md", ranked[1].Path)
}

func TestClusters(t *testing.T) {
	_, _, g := hubVault(t)

	clusters := g.Clusters()
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"a.md", "b.md", "c.md", "hub.md"}, clusters[0])
	assert.Equal(t, []string{"island.md"}, clusters[1])

	// Every node lands in exactly one cluster.
	seen := make(map[string]int)
	for _, c := range clusters {
		for _, node := range c {
			seen[node]++
		}
	}
	for node, n := range seen {
		assert.Equalf(t, 1, n, "node %s in %d clusters", node, n)
	}
	assert.Len(t, seen, 5)
}

func TestDegreesAndStats(t *testing.T) {
	_, _, g := hubVault(t)

	assert.Equal(t, 3, g.NodeDegree("hub.md", DegreeIn))
	assert.Equal(t, 0, g.NodeDegree("hub.md", DegreeOut))
	assert.Equal(t, 3, g.NodeDegree("hub.md", DegreeTotal))
	assert.Equal(t, 2, g.NodeDegree("b.md", DegreeOut))

	degrees := g.AllNodeDegrees()
	require.Len(t, degrees, 5)

	// Conservation: total in-degree equals total out-degree equals edges.
	var in, out int
	for _, d := range degrees {
		in += d.In
		out += d.Out
	}
	stats := g.GraphStats()
	assert.Equal(t, in, out)
	assert.Equal(t, stats.TotalEdges, in)
	assert.Equal(t, 4, stats.TotalEdges)
	assert.Equal(t, 5, stats.TotalNodes)
	assert.Equal(t, 1, stats.OrphanCount)
	assert.InDelta(t, 1.6, stats.AverageDegree, 1e-9)
}

func TestInvalidationAfterModify(t *testing.T) {
	v, cache, g := testGraph(t, map[string]string{
		"a.md": "[[b]]",
		"b.md": "x",
	})
	cache.OnChanged(func(string) { g.InvalidateBacklinkIndex() })
	cache.OnRemoved(func(string) { g.InvalidateBacklinkIndex() })

	assert.Equal(t, []string{"a.md"}, g.Backlinks("b.md"))

	f := v.GetFileByPath("a.md")
	require.NoError(t, v.Modify(context.Background(), f, "no more links"))
	cache.HandleModify(context.Background(), f)

	assert.Nil(t, g.Backlinks("b.md"))
}
