// Package vault owns the abstract file tree over a storage backend: file
// identity, bounded content and file-object caches, a lazily built folder
// tree, and a synchronous event bus for create/modify/delete/rename.
package vault

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mkarlsen/vaultkit/internal/backend"
)

// Default cache capacities.
const (
	DefaultContentCacheSize = 500
	DefaultFileCacheSize    = 5000
	DefaultFolderCacheSize  = 1000
	DefaultParentCacheSize  = 2000
)

type options struct {
	contentCacheSize int
	fileCacheSize    int
	folderCacheSize  int
	parentCacheSize  int
}

// Option configures a Vault.
type Option func(*options)

// WithContentCacheSize bounds the content LRU (default 500).
func WithContentCacheSize(n int) Option { return func(o *options) { o.contentCacheSize = n } }

// WithFileCacheSize bounds the file-object LRU (default 5000).
func WithFileCacheSize(n int) Option { return func(o *options) { o.fileCacheSize = n } }

// WithFolderCacheSize bounds the folder-lookup LRU (default 1000).
func WithFolderCacheSize(n int) Option { return func(o *options) { o.folderCacheSize = n } }

// WithParentCacheSize bounds the parent-path LRU (default 2000).
func WithParentCacheSize(n int) Option { return func(o *options) { o.parentCacheSize = n } }

// Vault maintains the file tree for one backend. All mutation methods fire
// their event synchronously before returning, after the internal caches are
// already consistent with the write.
type Vault struct {
	backend backend.Backend
	bus     *eventBus

	mu        sync.RWMutex
	index     map[string]backend.FileStat // authoritative path set
	root      *Folder
	treeDirty bool

	fileCache    *lruCache[*File]
	contentCache *lruCache[string]
	folderCache  *lruCache[*Folder]
	parentCache  *lruCache[string]
}

// New creates a Vault over a backend. Call Load to scan existing files.
// Returns an error for non-positive cache capacities.
func New(b backend.Backend, opts ...Option) (*Vault, error) {
	o := options{
		contentCacheSize: DefaultContentCacheSize,
		fileCacheSize:    DefaultFileCacheSize,
		folderCacheSize:  DefaultFolderCacheSize,
		parentCacheSize:  DefaultParentCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	fileCache, err := newLRU[*File](o.fileCacheSize)
	if err != nil {
		return nil, err
	}
	contentCache, err := newLRU[string](o.contentCacheSize)
	if err != nil {
		return nil, err
	}
	folderCache, err := newLRU[*Folder](o.folderCacheSize)
	if err != nil {
		return nil, err
	}
	parentCache, err := newLRU[string](o.parentCacheSize)
	if err != nil {
		return nil, err
	}

	return &Vault{
		backend:      b,
		bus:          newEventBus(),
		index:        make(map[string]backend.FileStat),
		treeDirty:    true,
		fileCache:    fileCache,
		contentCache: contentCache,
		folderCache:  folderCache,
		parentCache:  parentCache,
	}, nil
}

// Backend returns the injected storage backend.
func (v *Vault) Backend() backend.Backend { return v.backend }

// Load scans the backend and (re)builds the authoritative path index.
// Fires no events: Load describes pre-existing state, not mutations.
func (v *Vault) Load(ctx context.Context) error {
	paths, err := v.backend.List(ctx, "")
	if err != nil {
		return err
	}

	index := make(map[string]backend.FileStat, len(paths))
	for _, path := range paths {
		stat, err := v.backend.Stat(ctx, path)
		if err != nil || stat == nil {
			continue // raced with an external delete
		}
		index[NormalizePath(path)] = *stat
	}

	v.mu.Lock()
	v.index = index
	v.treeDirty = true
	v.mu.Unlock()
	return nil
}

// --- Lookup ---

// GetFileByPath returns the file at path, or nil if absent or a folder.
func (v *Vault) GetFileByPath(path string) *File {
	path = NormalizePath(path)
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fileLocked(path)
}

// fileLocked returns the cached or freshly constructed *File for an indexed
// path. Caller holds at least a read lock.
func (v *Vault) fileLocked(path string) *File {
	stat, ok := v.index[path]
	if !ok {
		return nil
	}
	if f, ok := v.fileCache.Get(path); ok {
		return f
	}
	f := newFile(path, stat)
	v.fileCache.Put(path, f)
	return f
}

// GetAbstractFileByPath returns the file or folder at path, nil if neither.
func (v *Vault) GetAbstractFileByPath(path string) AbstractFile {
	path = NormalizePath(path)
	if f := v.GetFileByPath(path); f != nil {
		return f
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if folder := v.folderLocked(path); folder != nil {
		return folder
	}
	return nil
}

// GetFiles returns every file in the vault, sorted by path.
func (v *Vault) GetFiles() []*File {
	v.mu.RLock()
	defer v.mu.RUnlock()
	files := make([]*File, 0, len(v.index))
	for _, path := range v.sortedPathsLocked() {
		files = append(files, v.fileLocked(path))
	}
	return files
}

// GetMarkdownFiles returns every .md file, sorted by path.
func (v *Vault) GetMarkdownFiles() []*File {
	var md []*File
	for _, f := range v.GetFiles() {
		if f.Extension() == "md" {
			md = append(md, f)
		}
	}
	return md
}

// GetAllLoadedFiles returns every folder (root included) and file.
func (v *Vault) GetAllLoadedFiles() []AbstractFile {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ensureTreeLocked()

	var all []AbstractFile
	var walk func(folder *Folder)
	walk = func(folder *Folder) {
		all = append(all, folder)
		for _, child := range folder.Children {
			if sub, ok := child.(*Folder); ok {
				walk(sub)
			} else {
				all = append(all, child)
			}
		}
	}
	walk(v.root)
	return all
}

// GetAllFolders returns every folder in the lazily built tree.
func (v *Vault) GetAllFolders(includeRoot bool) []*Folder {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ensureTreeLocked()

	var folders []*Folder
	var walk func(folder *Folder)
	walk = func(folder *Folder) {
		if includeRoot || !folder.IsRoot() {
			folders = append(folders, folder)
		}
		for _, child := range folder.Children {
			if sub, ok := child.(*Folder); ok {
				walk(sub)
			}
		}
	}
	walk(v.root)
	return folders
}

func (v *Vault) sortedPathsLocked() []string {
	paths := make([]string, 0, len(v.index))
	for path := range v.index {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// --- Folder tree (lazy, dirty-flagged) ---

// ensureTreeLocked rebuilds the folder tree if a write invalidated it.
// Building is O(files) and happens on the first structural query after a
// mutation, not on every write.
func (v *Vault) ensureTreeLocked() {
	if !v.treeDirty && v.root != nil {
		return
	}

	root := &Folder{path: ""}
	folders := map[string]*Folder{"": root}
	v.folderCache.Purge()
	v.folderCache.Put("", root)

	var ensureFolder func(path string) *Folder
	ensureFolder = func(path string) *Folder {
		if f, ok := folders[path]; ok {
			return f
		}
		parent, ok := v.parentCache.Get(path)
		if !ok {
			parent = parentPath(path)
			v.parentCache.Put(path, parent)
		}
		p := ensureFolder(parent)
		f := &Folder{path: path}
		folders[path] = f
		v.folderCache.Put(path, f)
		p.Children = append(p.Children, f)
		return f
	}

	for _, path := range v.sortedPathsLocked() {
		folder := ensureFolder(parentPath(path))
		folder.Children = append(folder.Children, v.fileLocked(path))
	}

	v.root = root
	v.treeDirty = false
}

// folderLocked resolves a folder by path, using the folder cache as a memo
// over the tree walk. Caller holds the write lock.
func (v *Vault) folderLocked(path string) *Folder {
	v.ensureTreeLocked()
	if path == "" {
		return v.root
	}
	if f, ok := v.folderCache.Get(path); ok {
		return f
	}

	current := v.root
	for _, seg := range strings.Split(path, "/") {
		var next *Folder
		for _, child := range current.Children {
			if sub, ok := child.(*Folder); ok && sub.Name() == seg {
				next = sub
				break
			}
		}
		if next == nil {
			return nil
		}
		current = next
	}
	v.folderCache.Put(path, current)
	return current
}

// --- Content ---

// Read always fetches fresh content from the backend.
func (v *Vault) Read(ctx context.Context, f *File) (string, error) {
	return v.backend.Read(ctx, f.Path())
}

// CachedRead serves from the content LRU, reading through on a miss.
func (v *Vault) CachedRead(ctx context.Context, f *File) (string, error) {
	if content, ok := v.contentCache.Get(f.Path()); ok {
		return content, nil
	}
	content, err := v.backend.Read(ctx, f.Path())
	if err != nil {
		return "", err
	}
	v.contentCache.Put(f.Path(), content)
	return content, nil
}

// --- Mutations ---

// Create writes a new file and fires a create event. Fails with
// ErrAlreadyExists if a file is already indexed at the normalized path.
func (v *Vault) Create(ctx context.Context, path, content string) (*File, error) {
	path = NormalizePath(path)

	v.mu.RLock()
	_, exists := v.index[path]
	v.mu.RUnlock()
	if exists {
		return nil, backend.AlreadyExists(path)
	}

	if err := v.backend.Write(ctx, path, content); err != nil {
		return nil, err
	}
	stat := v.statOrNow(ctx, path, int64(len(content)))

	v.mu.Lock()
	v.index[path] = stat
	f := newFile(path, stat)
	v.fileCache.Put(path, f)
	v.contentCache.Put(path, content)
	v.treeDirty = true
	v.mu.Unlock()

	v.bus.trigger(EventCreate, f)
	return f, nil
}

// Modify overwrites an existing file, repopulates the content cache entry
// synchronously with the write, and fires exactly one modify event.
func (v *Vault) Modify(ctx context.Context, f *File, content string) error {
	path := f.Path()

	v.mu.RLock()
	_, exists := v.index[path]
	v.mu.RUnlock()
	if !exists {
		return backend.NotFound(path)
	}

	if err := v.backend.Write(ctx, path, content); err != nil {
		return err
	}
	stat := v.statOrNow(ctx, path, int64(len(content)))

	v.mu.Lock()
	v.index[path] = stat
	f.Stat = stat
	v.contentCache.Put(path, content)
	v.mu.Unlock()

	v.bus.trigger(EventModify, f)
	return nil
}

// Append adds content at the end of the file. Fires one modify event.
func (v *Vault) Append(ctx context.Context, f *File, content string) error {
	current, err := v.Read(ctx, f)
	if err != nil {
		return err
	}
	return v.Modify(ctx, f, current+content)
}

// Process reads the file, applies fn, and writes the result back.
// Fires one modify event.
func (v *Vault) Process(ctx context.Context, f *File, fn func(string) string) error {
	current, err := v.Read(ctx, f)
	if err != nil {
		return err
	}
	return v.Modify(ctx, f, fn(current))
}

// Delete removes the file from the backend and every cache, then fires a
// delete event carrying the pre-deletion file snapshot.
func (v *Vault) Delete(ctx context.Context, f *File) error {
	path := f.Path()
	if err := v.backend.Delete(ctx, path); err != nil {
		return err
	}

	v.mu.Lock()
	delete(v.index, path)
	v.fileCache.Remove(path)
	v.contentCache.Remove(path)
	v.treeDirty = true
	v.mu.Unlock()

	v.bus.trigger(EventDelete, f)
	return nil
}

// Trash is Delete. A system-trash backend could diverge here; the event
// contract is identical.
func (v *Vault) Trash(ctx context.Context, f *File) error {
	return v.Delete(ctx, f)
}

// Rename moves a file. The *File is mutated in place so held references
// observe the new path, caches are rekeyed atomically, and a single rename
// event fires with the updated file and the old path. Never fires
// delete+create.
func (v *Vault) Rename(ctx context.Context, f *File, newPath string) error {
	newPath = NormalizePath(newPath)
	oldPath := f.Path()
	if newPath == oldPath {
		return nil
	}

	v.mu.RLock()
	_, exists := v.index[newPath]
	v.mu.RUnlock()
	if exists {
		return backend.AlreadyExists(newPath)
	}

	if err := v.backend.Rename(ctx, oldPath, newPath); err != nil {
		return err
	}

	v.mu.Lock()
	stat := v.index[oldPath]
	delete(v.index, oldPath)
	v.index[newPath] = stat

	if content, ok := v.contentCache.Get(oldPath); ok {
		v.contentCache.Remove(oldPath)
		v.contentCache.Put(newPath, content)
	}
	v.fileCache.Remove(oldPath)
	f.setPath(newPath)
	v.fileCache.Put(newPath, f)
	v.treeDirty = true
	v.mu.Unlock()

	v.bus.trigger(EventRename, f, oldPath)
	return nil
}

// Copy duplicates a file and fires a create event for the new path only.
func (v *Vault) Copy(ctx context.Context, f *File, newPath string) (*File, error) {
	newPath = NormalizePath(newPath)

	v.mu.RLock()
	_, exists := v.index[newPath]
	v.mu.RUnlock()
	if exists {
		return nil, backend.AlreadyExists(newPath)
	}

	if err := v.backend.Copy(ctx, f.Path(), newPath); err != nil {
		return nil, err
	}
	stat := v.statOrNow(ctx, newPath, f.Stat.Size)

	v.mu.Lock()
	v.index[newPath] = stat
	copied := newFile(newPath, stat)
	v.fileCache.Put(newPath, copied)
	v.treeDirty = true
	v.mu.Unlock()

	v.bus.trigger(EventCreate, copied)
	return copied, nil
}

func (v *Vault) statOrNow(ctx context.Context, path string, size int64) backend.FileStat {
	if stat, err := v.backend.Stat(ctx, path); err == nil && stat != nil {
		return *stat
	}
	now := time.Now()
	return backend.FileStat{CTime: now, MTime: now, Size: size}
}

// --- Events ---

// On subscribes to an event. The returned ref is the unsubscribe capability.
func (v *Vault) On(event string, fn EventCallback) *EventRef {
	return v.bus.on(event, fn)
}

// Off removes a subscription by ref.
func (v *Vault) Off(ref *EventRef) { ref.Unsubscribe() }

// Trigger dispatches a synthetic or custom event synchronously.
func (v *Vault) Trigger(event string, args ...any) { v.bus.trigger(event, args...) }

// --- Cache management ---

// CacheStats reports capacity and size per cache.
func (v *Vault) CacheStats() map[string]CacheStats {
	return map[string]CacheStats{
		"content": v.contentCache.Stats(),
		"file":    v.fileCache.Stats(),
		"folder":  v.folderCache.Stats(),
		"parent":  v.parentCache.Stats(),
	}
}

// ClearCaches resets every cache. The path index is untouched.
func (v *Vault) ClearCaches() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fileCache.Purge()
	v.contentCache.Purge()
	v.folderCache.Purge()
	v.parentCache.Purge()
	v.treeDirty = true
}

// ClearContentCache resets only the content cache.
func (v *Vault) ClearContentCache() { v.contentCache.Purge() }

// --- External changes ---

// SyncExternal reconciles one path with the backend after an external
// (non-vault-API) change and fires the matching event. The watcher calls
// this after debouncing; vault API mutations never go through here.
func (v *Vault) SyncExternal(ctx context.Context, path string) error {
	path = NormalizePath(path)
	stat, err := v.backend.Stat(ctx, path)
	if err != nil {
		return err
	}

	v.mu.Lock()
	old, known := v.index[path]

	switch {
	case stat == nil && known:
		delete(v.index, path)
		f, ok := v.fileCache.Get(path)
		if !ok {
			f = newFile(path, old)
		}
		v.fileCache.Remove(path)
		v.contentCache.Remove(path)
		v.treeDirty = true
		v.mu.Unlock()
		v.bus.trigger(EventDelete, f)

	case stat != nil && !known:
		v.index[path] = *stat
		f := newFile(path, *stat)
		v.fileCache.Put(path, f)
		v.treeDirty = true
		v.mu.Unlock()
		v.bus.trigger(EventCreate, f)

	case stat != nil && known && (!stat.MTime.Equal(old.MTime) || stat.Size != old.Size):
		v.index[path] = *stat
		f := v.fileLocked(path)
		f.Stat = *stat
		v.contentCache.Remove(path)
		v.mu.Unlock()
		v.bus.trigger(EventModify, f)

	default:
		v.mu.Unlock()
	}
	return nil
}
