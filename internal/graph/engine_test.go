package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailedBacklinksPositions(t *testing.T) {
	v, cache, g := testGraph(t, map[string]string{
		"target.md": "the target",
		"src.md":    "above\nsee [[target]] here and [[target|again]]\nbelow",
	})
	e := NewEngine(g, cache)

	content, err := v.Read(context.Background(), v.GetFileByPath("src.md"))
	require.NoError(t, err)
	e.SetContent("src.md", content)

	backlinks := e.DetailedBacklinks("target.md")
	require.Len(t, backlinks, 1)

	bl := backlinks[0]
	assert.Equal(t, "src.md", bl.Source)
	assert.Equal(t, 2, bl.Count)
	require.Len(t, bl.Positions, 2)

	// Both occurrences sit on line 1, ordered by column.
	assert.Equal(t, 1, bl.Positions[0].Line)
	assert.Equal(t, 4, bl.Positions[0].Col)
	assert.Equal(t, 1, bl.Positions[1].Line)
	assert.Less(t, bl.Positions[0].Col, bl.Positions[1].Col)

	// Context spans the line above and below.
	assert.Equal(t, "above\nsee [[target]] here and [[target|again]]\nbelow", bl.Positions[0].Context)
}

func TestDetailedBacklinksPlaceholderWithoutContent(t *testing.T) {
	_, cache, g := testGraph(t, map[string]string{
		"target.md": "x",
		"src.md":    "first\n[[target]]",
	})
	e := NewEngine(g, cache)

	backlinks := e.DetailedBacklinks("target.md")
	require.Len(t, backlinks, 1)
	require.Len(t, backlinks[0].Positions, 1)
	assert.Equal(t, "Line 2", backlinks[0].Positions[0].Context)
}

func TestDetailedBacklinksTruncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	_, cache, g := testGraph(t, map[string]string{
		"target.md": "x",
		"src.md":    long + "\n[[target]]",
	})
	e := NewEngine(g, cache)
	e.SetContent("src.md", long+"\n[[target]]")

	backlinks := e.DetailedBacklinks("target.md")
	require.Len(t, backlinks, 1)

	ctx := backlinks[0].Positions[0].Context
	lines := strings.Split(ctx, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, contextLineLimit+3, len(lines[0]))
	assert.True(t, strings.HasSuffix(lines[0], "..."))
	assert.Equal(t, "[[target]]", lines[1])
}

func TestDetailedBacklinksEmbedsCount(t *testing.T) {
	_, cache, g := testGraph(t, map[string]string{
		"pic.md": "a note, not a picture",
		"src.md": "![[pic]] embedded and [[pic]] linked",
	})
	e := NewEngine(g, cache)
	e.SetContent("src.md", "![[pic]] embedded and [[pic]] linked")

	backlinks := e.DetailedBacklinks("pic.md")
	require.Len(t, backlinks, 1)
	assert.Equal(t, 2, backlinks[0].Count)
	assert.Equal(t, 0, backlinks[0].Positions[0].Col)
}

func TestEngineClearContentCache(t *testing.T) {
	_, cache, g := testGraph(t, map[string]string{
		"target.md": "x",
		"src.md":    "[[target]]",
	})
	e := NewEngine(g, cache)
	e.SetContent("src.md", "[[target]]")

	e.ClearContentCache()
	backlinks := e.DetailedBacklinks("target.md")
	require.Len(t, backlinks, 1)
	assert.Equal(t, "Line 1", backlinks[0].Positions[0].Context)
}
