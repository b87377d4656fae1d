package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/vaultkit/internal/backend"
	"github.com/mkarlsen/vaultkit/internal/vault"
)

// testCache builds a vault over the given files and seeds the metadata
// cache the way the client does at warm-up.
func testCache(t *testing.T, files map[string]string) (*vault.Vault, *Cache) {
	t.Helper()
	v, err := vault.New(backend.NewMemoryFrom(files))
	require.NoError(t, err)
	require.NoError(t, v.Load(context.Background()))

	c := NewCache(v)
	for _, f := range v.GetMarkdownFiles() {
		c.HandleModify(context.Background(), f)
	}
	return v, c
}

func TestResolutionPriority(t *testing.T) {
	_, c := testCache(t, map[string]string{
		"notes/target.md": "im a target",
		"other/target.md": "so am i",
		"notes/src.md":    "[[target]]",
		"root-src.md":     "[[target]] and [[other/target]] and [[solo]]",
		"deep/solo.md":    "unique basename",
	})

	// Same-directory match beats the other candidate.
	dest := c.GetFirstLinkpathDest("target", "notes/src.md")
	require.NotNil(t, dest)
	assert.Equal(t, "notes/target.md", dest.Path())

	// Exact path wins regardless of source location.
	dest = c.GetFirstLinkpathDest("other/target", "notes/src.md")
	require.NotNil(t, dest)
	assert.Equal(t, "other/target.md", dest.Path())

	// Ambiguous basename from an unrelated directory resolves to nothing.
	assert.Nil(t, c.GetFirstLinkpathDest("target", "root-src.md"))

	// Unique basename resolves from anywhere.
	dest = c.GetFirstLinkpathDest("solo", "root-src.md")
	require.NotNil(t, dest)
	assert.Equal(t, "deep/solo.md", dest.Path())

	// Case-insensitive.
	dest = c.GetFirstLinkpathDest("SOLO", "root-src.md")
	require.NotNil(t, dest)
	assert.Equal(t, "deep/solo.md", dest.Path())

	// Subpaths are stripped before resolving.
	dest = c.GetFirstLinkpathDest("solo#heading", "root-src.md")
	require.NotNil(t, dest)
}

func TestLinkClassification(t *testing.T) {
	_, c := testCache(t, map[string]string{
		"a.md": "[[b]] [[b]] [[ghost]]",
		"b.md": "back to [[a]]",
	})

	c.WithLinks(func(view LinkView) {
		assert.Equal(t, 2, view.Resolved["a.md"]["b.md"])
		assert.Equal(t, 1, view.Resolved["b.md"]["a.md"])
		assert.Equal(t, 1, view.Unresolved["a.md"]["ghost"])
		assert.True(t, view.Paths["a.md"])
		assert.True(t, view.Paths["b.md"])
	})
}

func TestCreateResolvesPendingLinks(t *testing.T) {
	v, c := testCache(t, map[string]string{
		"a.md": "[[future]]",
	})

	c.WithLinks(func(view LinkView) {
		assert.Equal(t, 1, view.Unresolved["a.md"]["future"])
		assert.Empty(t, view.Resolved["a.md"])
	})

	f, err := v.Create(context.Background(), "future.md", "now exists")
	require.NoError(t, err)
	c.HandleCreate(context.Background(), f)

	c.WithLinks(func(view LinkView) {
		assert.Equal(t, 1, view.Resolved["a.md"]["future.md"])
		assert.Empty(t, view.Unresolved["a.md"])
	})
}

func TestDeleteUnresolvesLinks(t *testing.T) {
	v, c := testCache(t, map[string]string{
		"a.md": "[[b]]",
		"b.md": "bye",
	})

	var removed []string
	c.OnRemoved(func(path string) { removed = append(removed, path) })

	f := v.GetFileByPath("b.md")
	require.NoError(t, v.Delete(context.Background(), f))
	c.HandleDelete(f)

	assert.Equal(t, []string{"b.md"}, removed)
	assert.Nil(t, c.GetCache("b.md"))
	c.WithLinks(func(view LinkView) {
		assert.Empty(t, view.Resolved["a.md"])
		assert.Equal(t, 1, view.Unresolved["a.md"]["b"])
	})
}

func TestRenameRekeysMetadata(t *testing.T) {
	v, c := testCache(t, map[string]string{
		"a.md":   "points at [[old]]",
		"old.md": "# Old Title\nwith a [[a]] backref",
	})

	var changed, removed []string
	c.OnChanged(func(path string) { changed = append(changed, path) })
	c.OnRemoved(func(path string) { removed = append(removed, path) })

	f := v.GetFileByPath("old.md")
	require.NoError(t, v.Rename(context.Background(), f, "new.md"))
	c.HandleRename(f, "old.md")

	assert.Equal(t, []string{"old.md"}, removed)
	assert.Equal(t, []string{"new.md"}, changed)

	// Metadata moved to the new key without a re-parse.
	assert.Nil(t, c.GetCache("old.md"))
	meta := c.GetCache("new.md")
	require.NotNil(t, meta)
	require.Len(t, meta.Headings, 1)
	assert.Equal(t, "Old Title", meta.Headings[0].Heading)

	c.WithLinks(func(view LinkView) {
		// The renamed file's own outlink survives under the new key.
		assert.Equal(t, 1, view.Resolved["new.md"]["a.md"])
		// Links that pointed at the old name are now dangling.
		assert.Empty(t, view.Resolved["a.md"])
		assert.Equal(t, 1, view.Unresolved["a.md"]["old"])
	})
}

func TestModifyReparses(t *testing.T) {
	v, c := testCache(t, map[string]string{
		"a.md": "#first",
		"b.md": "x",
	})

	f := v.GetFileByPath("a.md")
	require.NoError(t, v.Modify(context.Background(), f, "#second [[b]]"))
	c.HandleModify(context.Background(), f)

	meta := c.GetCache("a.md")
	require.NotNil(t, meta)
	require.Len(t, meta.Tags, 1)
	assert.Equal(t, "second", meta.Tags[0].Tag)

	c.WithLinks(func(view LinkView) {
		assert.Equal(t, 1, view.Resolved["a.md"]["b.md"])
	})
}
