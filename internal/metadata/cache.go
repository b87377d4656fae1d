package metadata

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mkarlsen/vaultkit/internal/vault"
)

// LinkView is a read-locked view over the cache's link maps, passed to
// WithLinks callbacks. Callers must not retain or mutate the maps.
type LinkView struct {
	// Resolved: source path → target path → occurrence count.
	Resolved map[string]map[string]int
	// Unresolved: source path → link text → occurrence count.
	Unresolved map[string]map[string]int
	// Paths: every parsed markdown file.
	Paths map[string]bool
}

// Cache holds per-file CachedMetadata and the resolved/unresolved link maps,
// the single source of truth the graph layer reads. Metadata is recomputed
// from raw content on every vault mutation event; link classification is
// rebuilt against the current file set, so creates and deletes re-resolve
// links that gained or lost a target.
type Cache struct {
	vault *vault.Vault

	mu         sync.RWMutex
	metadata   map[string]*CachedMetadata
	resolved   map[string]map[string]int
	unresolved map[string]map[string]int

	// lookup tables rebuilt with the link maps
	byPath     map[string]string   // lowercase path → path
	byBasename map[string][]string // lowercase basename → paths, sorted

	onChanged []func(path string)
	onRemoved []func(path string)
}

// NewCache creates an empty metadata cache over a vault. The caller wires
// vault events to the Handle* methods.
func NewCache(v *vault.Vault) *Cache {
	return &Cache{
		vault:      v,
		metadata:   make(map[string]*CachedMetadata),
		resolved:   make(map[string]map[string]int),
		unresolved: make(map[string]map[string]int),
		byPath:     make(map[string]string),
		byBasename: make(map[string][]string),
	}
}

// OnChanged registers a callback fired after a file's metadata is created
// or recomputed (including the new path of a rename).
func (c *Cache) OnChanged(fn func(path string)) { c.onChanged = append(c.onChanged, fn) }

// OnRemoved registers a callback fired after a file's metadata is dropped
// (delete, or the old path of a rename).
func (c *Cache) OnRemoved(fn func(path string)) { c.onRemoved = append(c.onRemoved, fn) }

// GetFileCache returns the cached metadata for a file, nil if never parsed.
func (c *Cache) GetFileCache(f *vault.File) *CachedMetadata {
	if f == nil {
		return nil
	}
	return c.GetCache(f.Path())
}

// GetCache returns the cached metadata for a path, nil if never parsed.
func (c *Cache) GetCache(path string) *CachedMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metadata[vault.NormalizePath(path)]
}

// WithLinks runs fn with a read-locked view of the link maps.
func (c *Cache) WithLinks(fn func(view LinkView)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make(map[string]bool, len(c.metadata))
	for path := range c.metadata {
		paths[path] = true
	}
	fn(LinkView{Resolved: c.resolved, Unresolved: c.unresolved, Paths: paths})
}

// --- Vault event handlers ---

// HandleCreate parses a newly created file and re-resolves the vault's
// links: the new file may satisfy previously unresolved links.
func (c *Cache) HandleCreate(ctx context.Context, f *vault.File) {
	c.reindex(ctx, f)
}

// HandleModify recomputes a modified file's metadata.
func (c *Cache) HandleModify(ctx context.Context, f *vault.File) {
	c.reindex(ctx, f)
}

// HandleDelete drops a file's metadata and re-resolves remaining links:
// links that pointed at the file become unresolved.
func (c *Cache) HandleDelete(f *vault.File) {
	path := f.Path()
	c.mu.Lock()
	delete(c.metadata, path)
	c.rebuildLinksLocked()
	c.mu.Unlock()
	for _, fn := range c.onRemoved {
		fn(path)
	}
}

// HandleRename rekeys the file's metadata from the old path and re-resolves
// the whole link set. Skipping the rekey would silently orphan graph data
// under the stale source key.
func (c *Cache) HandleRename(f *vault.File, oldPath string) {
	newPath := f.Path()
	c.mu.Lock()
	if meta, ok := c.metadata[oldPath]; ok {
		delete(c.metadata, oldPath)
		c.metadata[newPath] = meta
	}
	c.rebuildLinksLocked()
	c.mu.Unlock()
	for _, fn := range c.onRemoved {
		fn(oldPath)
	}
	for _, fn := range c.onChanged {
		fn(newPath)
	}
}

func (c *Cache) reindex(ctx context.Context, f *vault.File) {
	path := f.Path()
	if f.Extension() != "md" {
		// Non-markdown files carry no metadata but still affect resolution
		// (embeds can target them).
		c.mu.Lock()
		c.rebuildLinksLocked()
		c.mu.Unlock()
		return
	}

	content, err := c.vault.CachedRead(ctx, f)
	if err != nil {
		return
	}
	meta := Parse(content)

	c.mu.Lock()
	c.metadata[path] = meta
	c.rebuildLinksLocked()
	c.mu.Unlock()

	for _, fn := range c.onChanged {
		fn(path)
	}
}

// Rebuild parses every markdown file from scratch. Used at client warm-up.
func (c *Cache) Rebuild(ctx context.Context, parsed map[string]*CachedMetadata) {
	c.mu.Lock()
	c.metadata = parsed
	c.rebuildLinksLocked()
	c.mu.Unlock()
}

// --- Link resolution ---

// rebuildLinksLocked reclassifies every link in every parsed file against
// the current file set. Caller holds the write lock.
func (c *Cache) rebuildLinksLocked() {
	c.byPath = make(map[string]string)
	c.byBasename = make(map[string][]string)
	for _, f := range c.vault.GetFiles() {
		path := f.Path()
		c.byPath[strings.ToLower(path)] = path
		key := strings.ToLower(f.Basename())
		c.byBasename[key] = append(c.byBasename[key], path)
	}
	for _, paths := range c.byBasename {
		sort.Strings(paths)
	}

	c.resolved = make(map[string]map[string]int)
	c.unresolved = make(map[string]map[string]int)

	for source, meta := range c.metadata {
		for _, lc := range meta.Links {
			c.classifyLocked(source, lc.Link)
		}
		for _, lc := range meta.Embeds {
			c.classifyLocked(source, lc.Link)
		}
	}
}

func (c *Cache) classifyLocked(source, link string) {
	target := c.resolveLocked(StripSubpath(link), source)
	if target != "" {
		if c.resolved[source] == nil {
			c.resolved[source] = make(map[string]int)
		}
		c.resolved[source][target]++
		return
	}
	if c.unresolved[source] == nil {
		c.unresolved[source] = make(map[string]int)
	}
	c.unresolved[source][link]++
}

// resolveLocked applies the resolution priority: exact path match, then
// same-directory basename match, then vault-wide unique basename match.
// Matching is case-insensitive. Returns "" when nothing matches.
func (c *Cache) resolveLocked(linkText, sourcePath string) string {
	if linkText == "" {
		return ""
	}
	normalized := strings.ToLower(vault.NormalizePath(linkText))

	// Exact path, with and without the implied .md extension.
	if path, ok := c.byPath[normalized]; ok {
		return path
	}
	if path, ok := c.byPath[normalized+".md"]; ok {
		return path
	}

	// Same directory as the source.
	dir := strings.ToLower(dirOf(sourcePath))
	base := strings.ToLower(linkText)
	if candidates, ok := c.byBasename[base]; ok {
		for _, path := range candidates {
			if strings.ToLower(dirOf(path)) == dir {
				return path
			}
		}
		// Unique basename anywhere in the vault.
		if len(candidates) == 1 {
			return candidates[0]
		}
	}
	return ""
}

// GetFirstLinkpathDest resolves a link text from a source file, returning
// the target file or nil, with the same priority order as classification.
func (c *Cache) GetFirstLinkpathDest(linkText, sourcePath string) *vault.File {
	c.mu.RLock()
	target := c.resolveLocked(StripSubpath(linkText), vault.NormalizePath(sourcePath))
	c.mu.RUnlock()
	if target == "" {
		return nil
	}
	return c.vault.GetFileByPath(target)
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}
