// Package client wires the vault, metadata cache, graph, search index and
// file manager into one entry point the CLI, MCP and HTTP surfaces share.
package client

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/mkarlsen/vaultkit/internal/backend"
	"github.com/mkarlsen/vaultkit/internal/filemanager"
	"github.com/mkarlsen/vaultkit/internal/graph"
	"github.com/mkarlsen/vaultkit/internal/metadata"
	"github.com/mkarlsen/vaultkit/internal/search"
	"github.com/mkarlsen/vaultkit/internal/vault"
)

const defaultScanWorkers = 8

// Options configures a Client.
type Options struct {
	Logger        zerolog.Logger
	VaultOptions  []vault.Option
	SearchOptions []search.Option
	ScanWorkers   int
}

// Client is the composition root over one vault.
type Client struct {
	log     zerolog.Logger
	vault   *vault.Vault
	workers int

	Meta   *metadata.Cache
	Graph  *graph.Graph
	Engine *graph.Engine
	Search *search.Index
	Files  *filemanager.FileManager
}

// New assembles a client over a backend. Call Open before querying.
func New(b backend.Backend, opts Options) (*Client, error) {
	v, err := vault.New(b, opts.VaultOptions...)
	if err != nil {
		return nil, err
	}

	meta := metadata.NewCache(v)
	g := graph.New(meta)
	c := &Client{
		log:    opts.Logger,
		vault:  v,
		Meta:   meta,
		Graph:  g,
		Engine: graph.NewEngine(g, meta),
		Search: search.NewIndex(opts.SearchOptions...),
		Files:  filemanager.New(v, meta),
	}
	c.workers = opts.ScanWorkers
	if c.workers <= 0 {
		c.workers = defaultScanWorkers
	}

	c.wireEvents()
	return c, nil
}

// Vault exposes the underlying vault for surfaces that need file objects.
func (c *Client) Vault() *vault.Vault { return c.vault }

// Open scans the vault, parses every markdown file in parallel and builds
// the metadata cache and search index.
func (c *Client) Open(ctx context.Context) error {
	if err := c.vault.Load(ctx); err != nil {
		return fmt.Errorf("load vault: %w", err)
	}

	files := c.vault.GetMarkdownFiles()
	parsed := make(map[string]*metadata.CachedMetadata, len(files))
	docs := make([]search.Document, 0, len(files))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(c.workers).WithContext(ctx).WithCancelOnError()
	for _, f := range files {
		f := f
		p.Go(func(ctx context.Context) error {
			content, err := c.vault.CachedRead(ctx, f)
			if err != nil {
				return fmt.Errorf("scan %s: %w", f.Path(), err)
			}
			meta := metadata.Parse(content)
			mu.Lock()
			parsed[f.Path()] = meta
			docs = append(docs, buildDocument(f, meta, content))
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	c.Meta.Rebuild(ctx, parsed)
	c.Search.BuildIndex(docs)
	c.Graph.InvalidateBacklinkIndex()

	c.log.Debug().
		Int("notes", len(files)).
		Msg("vault opened")
	return nil
}

// wireEvents connects vault mutations to metadata re-parsing and metadata
// changes to graph and search invalidation.
func (c *Client) wireEvents() {
	c.vault.On(vault.EventCreate, func(args ...any) {
		c.Meta.HandleCreate(context.Background(), args[0].(*vault.File))
	})
	c.vault.On(vault.EventModify, func(args ...any) {
		c.Meta.HandleModify(context.Background(), args[0].(*vault.File))
	})
	c.vault.On(vault.EventDelete, func(args ...any) {
		c.Meta.HandleDelete(args[0].(*vault.File))
	})
	c.vault.On(vault.EventRename, func(args ...any) {
		c.Meta.HandleRename(args[0].(*vault.File), args[1].(string))
	})

	c.Meta.OnChanged(func(path string) {
		c.Graph.InvalidateBacklinkIndex()
		c.Search.MarkDirty(path)
		c.Engine.RemoveContent(path)
	})
	c.Meta.OnRemoved(func(path string) {
		c.Graph.InvalidateBacklinkIndex()
		c.Search.MarkDeleted(path)
		c.Engine.RemoveContent(path)
	})
}

func buildDocument(f *vault.File, meta *metadata.CachedMetadata, content string) search.Document {
	doc := search.Document{
		Path:    f.Path(),
		Title:   f.Basename(),
		Content: content,
	}
	if meta == nil {
		return doc
	}
	if title, ok := meta.Frontmatter["title"].(string); ok && title != "" {
		doc.Title = title
	}
	seen := make(map[string]bool)
	for _, tc := range meta.Tags {
		if !seen[tc.Tag] {
			seen[tc.Tag] = true
			doc.Tags = append(doc.Tags, tc.Tag)
		}
	}
	for _, tag := range frontmatterTags(meta.Frontmatter) {
		if !seen[tag] {
			seen[tag] = true
			doc.Tags = append(doc.Tags, tag)
		}
	}
	return doc
}

func frontmatterTags(fm map[string]any) []string {
	var out []string
	switch v := fm["tags"].(type) {
	case string:
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// --- Note operations ---

// notePath normalizes a user-supplied note path, appending .md when no
// extension is given.
func notePath(path string) string {
	path = vault.NormalizePath(path)
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if !strings.Contains(base, ".") {
		path += ".md"
	}
	return path
}

// ReadNote returns a note's content.
func (c *Client) ReadNote(ctx context.Context, path string) (string, error) {
	f := c.vault.GetFileByPath(notePath(path))
	if f == nil {
		return "", backend.NotFound(path)
	}
	return c.vault.CachedRead(ctx, f)
}

// CreateNote creates a new note, failing if it already exists.
func (c *Client) CreateNote(ctx context.Context, path, content string) (*vault.File, error) {
	return c.vault.Create(ctx, notePath(path), content)
}

// UpdateNote replaces a note's content.
func (c *Client) UpdateNote(ctx context.Context, path, content string) error {
	f := c.vault.GetFileByPath(notePath(path))
	if f == nil {
		return backend.NotFound(path)
	}
	return c.vault.Modify(ctx, f, content)
}

// AppendNote appends to an existing note.
func (c *Client) AppendNote(ctx context.Context, path, content string) error {
	f := c.vault.GetFileByPath(notePath(path))
	if f == nil {
		return backend.NotFound(path)
	}
	return c.vault.Append(ctx, f, content)
}

// DeleteNote removes a note.
func (c *Client) DeleteNote(ctx context.Context, path string) error {
	f := c.vault.GetFileByPath(notePath(path))
	if f == nil {
		return backend.NotFound(path)
	}
	return c.vault.Delete(ctx, f)
}

// RenameNote renames a note and rewrites all links pointing to it.
func (c *Client) RenameNote(ctx context.Context, path, newPath string) error {
	f := c.vault.GetFileByPath(notePath(path))
	if f == nil {
		return backend.NotFound(path)
	}
	return c.Files.RenameFile(ctx, f, notePath(newPath))
}

// UpdateFrontmatter mutates a note's frontmatter through the file manager.
func (c *Client) UpdateFrontmatter(ctx context.Context, path string, fn func(map[string]any)) error {
	f := c.vault.GetFileByPath(notePath(path))
	if f == nil {
		return backend.NotFound(path)
	}
	return c.Files.ProcessFrontMatter(ctx, f, fn)
}

// ListNotes returns every markdown path, sorted.
func (c *Client) ListNotes() []string {
	files := c.vault.GetMarkdownFiles()
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path())
	}
	sort.Strings(out)
	return out
}

// TagIndex maps each tag to the sorted notes carrying it, inline and
// frontmatter tags combined.
func (c *Client) TagIndex() map[string][]string {
	index := make(map[string]map[string]bool)
	for _, f := range c.vault.GetMarkdownFiles() {
		meta := c.Meta.GetFileCache(f)
		if meta == nil {
			continue
		}
		add := func(tag string) {
			if index[tag] == nil {
				index[tag] = make(map[string]bool)
			}
			index[tag][f.Path()] = true
		}
		for _, tc := range meta.Tags {
			add(tc.Tag)
		}
		for _, tag := range frontmatterTags(meta.Frontmatter) {
			add(tag)
		}
	}

	out := make(map[string][]string, len(index))
	for tag, paths := range index {
		sorted := make([]string, 0, len(paths))
		for path := range paths {
			sorted = append(sorted, path)
		}
		sort.Strings(sorted)
		out[tag] = sorted
	}
	return out
}

// SearchNotes refreshes the index if needed and runs a ranked query.
func (c *Client) SearchNotes(ctx context.Context, query string, limit int) ([]search.Result, error) {
	if err := c.refreshSearch(ctx); err != nil {
		return nil, err
	}
	return c.Search.Search(query, limit), nil
}

func (c *Client) refreshSearch(ctx context.Context) error {
	if !c.Search.NeedsUpdate() {
		return nil
	}
	var readErr error
	c.Search.UpdateIndex(func(path string) (search.Document, bool) {
		f := c.vault.GetFileByPath(path)
		if f == nil {
			return search.Document{}, false
		}
		content, err := c.vault.CachedRead(ctx, f)
		if err != nil {
			readErr = err
			return search.Document{}, false
		}
		return buildDocument(f, c.Meta.GetCache(path), content), true
	})
	return readErr
}

// DetailedBacklinks loads each linking source's content into the engine and
// returns backlinks with positions and surrounding context.
func (c *Client) DetailedBacklinks(ctx context.Context, path string) ([]graph.Backlink, error) {
	target := notePath(path)
	for _, source := range c.Graph.Backlinks(target) {
		f := c.vault.GetFileByPath(source)
		if f == nil {
			continue
		}
		content, err := c.vault.CachedRead(ctx, f)
		if err != nil {
			return nil, err
		}
		c.Engine.SetContent(source, content)
	}
	return c.Engine.DetailedBacklinks(target), nil
}

// NoteContext is the graph neighborhood summary for one note.
type NoteContext struct {
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	Headings  []string `json:"headings,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Outlinks  []string `json:"outlinks,omitempty"`
	Backlinks []string `json:"backlinks,omitempty"`
}

// GetNoteContext summarizes a note: structure, tags and link neighborhood.
func (c *Client) GetNoteContext(path string) (*NoteContext, error) {
	p := notePath(path)
	f := c.vault.GetFileByPath(p)
	if f == nil {
		return nil, backend.NotFound(path)
	}

	nc := &NoteContext{
		Path:      p,
		Title:     f.Basename(),
		Outlinks:  c.Graph.Outlinks(p),
		Backlinks: c.Graph.Backlinks(p),
	}
	if meta := c.Meta.GetCache(p); meta != nil {
		if title, ok := meta.Frontmatter["title"].(string); ok && title != "" {
			nc.Title = title
		}
		for _, h := range meta.Headings {
			nc.Headings = append(nc.Headings, h.Heading)
		}
		seen := make(map[string]bool)
		for _, tc := range meta.Tags {
			if !seen[tc.Tag] {
				seen[tc.Tag] = true
				nc.Tags = append(nc.Tags, tc.Tag)
			}
		}
	}
	return nc, nil
}
