package filemanager

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/vaultkit/internal/backend"
	"github.com/mkarlsen/vaultkit/internal/metadata"
	"github.com/mkarlsen/vaultkit/internal/vault"
)

// testManager wires vault events to the metadata cache the way the client
// does, so renames and rewrites keep resolution current mid-operation.
func testManager(t *testing.T, files map[string]string) (*vault.Vault, *FileManager) {
	t.Helper()
	v, err := vault.New(backend.NewMemoryFrom(files))
	require.NoError(t, err)
	require.NoError(t, v.Load(context.Background()))

	cache := metadata.NewCache(v)
	v.On(vault.EventCreate, func(args ...any) {
		cache.HandleCreate(context.Background(), args[0].(*vault.File))
	})
	v.On(vault.EventModify, func(args ...any) {
		cache.HandleModify(context.Background(), args[0].(*vault.File))
	})
	v.On(vault.EventDelete, func(args ...any) {
		cache.HandleDelete(args[0].(*vault.File))
	})
	v.On(vault.EventRename, func(args ...any) {
		cache.HandleRename(args[0].(*vault.File), args[1].(string))
	})
	for _, f := range v.GetMarkdownFiles() {
		cache.HandleModify(context.Background(), f)
	}
	return v, New(v, cache)
}

func TestRenameRewritesLinks(t *testing.T) {
	v, fm := testManager(t, map[string]string{
		"old-name.md": "the note being renamed",
		"a.md":        "plain link [[old-name]] here",
		"b.md":        "alias [[old-name|shown text]] and heading [[old-name#intro]]",
		"c.md":        "embedded ![[old-name]]",
		"other.md":    "[[unrelated]] untouched",
	})
	ctx := context.Background()

	f := v.GetFileByPath("old-name.md")
	require.NoError(t, fm.RenameFile(ctx, f, "new-name.md"))
	assert.Equal(t, "new-name.md", f.Path())

	read := func(path string) string {
		content, err := v.Read(ctx, v.GetFileByPath(path))
		require.NoError(t, err)
		return content
	}

	assert.Equal(t, "plain link [[new-name]] here", read("a.md"))
	assert.Equal(t, "alias [[new-name|shown text]] and heading [[new-name#intro]]", read("b.md"))
	assert.Equal(t, "embedded ![[new-name]]", read("c.md"))
	assert.Equal(t, "[[unrelated]] untouched", read("other.md"))
}

func TestRenameSkipsCodeRegions(t *testing.T) {
	v, fm := testManager(t, map[string]string{
		"old.md": "x",
		"src.md": "[[old]]\n```\n[[old]]\n```\nand `[[old]]` inline",
	})
	ctx := context.Background()

	require.NoError(t, fm.RenameFile(ctx, v.GetFileByPath("old.md"), "new.md"))

	content, err := v.Read(ctx, v.GetFileByPath("src.md"))
	require.NoError(t, err)
	assert.Equal(t, "[[new]]\n```\n[[old]]\n```\nand `[[old]]` inline", content)
}

func TestRenameIntoFolderUsesPath(t *testing.T) {
	v, fm := testManager(t, map[string]string{
		"old.md":         "x",
		"archive/new.md": "a different note already holds the basename",
		"src.md":         "[[old]]",
	})
	ctx := context.Background()

	// Two files will share the basename "new", so the rewritten link
	// must use the full path.
	require.NoError(t, fm.RenameFile(ctx, v.GetFileByPath("old.md"), "notes/new.md"))

	content, err := v.Read(ctx, v.GetFileByPath("src.md"))
	require.NoError(t, err)
	assert.Equal(t, "[[notes/new]]", content)
}

func TestRenameRewritesSelfLink(t *testing.T) {
	v, fm := testManager(t, map[string]string{
		"old.md": "see also [[old#later]]",
	})
	ctx := context.Background()

	f := v.GetFileByPath("old.md")
	require.NoError(t, fm.RenameFile(ctx, f, "new.md"))

	content, err := v.Read(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "see also [[new#later]]", content)
}

func TestLinkPath(t *testing.T) {
	v, fm := testManager(t, map[string]string{
		"notes/a.md":      "",
		"notes/b.md":      "",
		"archive/b.md":    "",
		"unique.md":       "",
		"img/diagram.png": "",
	})

	// Same folder: bare basename.
	assert.Equal(t, "a", fm.LinkPath(v.GetFileByPath("notes/a.md"), "notes/b.md"))
	// Unique basename anywhere: bare basename.
	assert.Equal(t, "unique", fm.LinkPath(v.GetFileByPath("unique.md"), "notes/a.md"))
	// Ambiguous basename from elsewhere: full path sans extension.
	assert.Equal(t, "archive/b", fm.LinkPath(v.GetFileByPath("archive/b.md"), "unique.md"))
	// Non-markdown: full path with extension.
	assert.Equal(t, "img/diagram.png", fm.LinkPath(v.GetFileByPath("img/diagram.png"), "notes/a.md"))
}

func TestProcessFrontMatter(t *testing.T) {
	v, fm := testManager(t, map[string]string{
		"note.md": "---\ntitle: Old\n---\nbody text\n",
	})
	ctx := context.Background()
	f := v.GetFileByPath("note.md")

	require.NoError(t, fm.ProcessFrontMatter(ctx, f, func(props map[string]any) {
		props["title"] = "New"
		props["reviewed"] = true
	}))

	content, err := v.Read(ctx, f)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content, "---\n"))
	assert.Contains(t, content, "title: New")
	assert.Contains(t, content, "reviewed: true")
	assert.True(t, strings.HasSuffix(content, "---\nbody text\n"))
}

func TestProcessFrontMatterCreatesBlock(t *testing.T) {
	v, fm := testManager(t, map[string]string{
		"bare.md": "no frontmatter here\n",
	})
	ctx := context.Background()
	f := v.GetFileByPath("bare.md")

	require.NoError(t, fm.ProcessFrontMatter(ctx, f, func(props map[string]any) {
		assert.Empty(t, props)
		props["status"] = "draft"
	}))

	content, err := v.Read(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "---\nstatus: draft\n---\nno frontmatter here\n", content)
}

func TestProcessFrontMatterCorruptYAML(t *testing.T) {
	v, fm := testManager(t, map[string]string{
		"broken.md": "---\n: : not yaml [\n---\nbody\n",
	})
	ctx := context.Background()
	f := v.GetFileByPath("broken.md")

	require.NoError(t, fm.ProcessFrontMatter(ctx, f, func(props map[string]any) {
		assert.Empty(t, props, "corrupt frontmatter starts over from empty")
		props["fixed"] = true
	}))

	content, err := v.Read(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "---\nfixed: true\n---\nbody\n", content)
}

func TestProcessFrontMatterNoChangeNoWrite(t *testing.T) {
	v, fm := testManager(t, map[string]string{
		"note.md": "plain body\n",
	})
	var modifies int
	v.On(vault.EventModify, func(args ...any) { modifies++ })

	require.NoError(t, fm.ProcessFrontMatter(context.Background(), v.GetFileByPath("note.md"), func(map[string]any) {}))
	assert.Equal(t, 0, modifies)
}

func TestProcessFrontMatterSerialized(t *testing.T) {
	v, fm := testManager(t, map[string]string{
		"counter.md": "---\nn: 0\n---\nbody\n",
	})
	ctx := context.Background()
	f := v.GetFileByPath("counter.md")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fm.ProcessFrontMatter(ctx, f, func(props map[string]any) {
				props["n"] = props["n"].(int) + 1
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var final int
	require.NoError(t, fm.ProcessFrontMatter(ctx, f, func(props map[string]any) {
		final = props["n"].(int)
	}))
	assert.Equal(t, 20, final)
}
