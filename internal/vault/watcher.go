package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/mkarlsen/vaultkit/internal/backend"
)

// Watcher re-triggers vault events for changes made outside the vault API
// (another editor, git checkout, sync client). Rapid successive filesystem
// events for the same path are coalesced within the debounce window before
// the vault is reconciled. Vault API calls never pass through the watcher —
// their events always fire immediately.
type Watcher struct {
	vault    *Vault
	root     string
	debounce time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher over a filesystem-backed vault. window is the
// debounce interval; 0 picks a 200ms default.
func NewWatcher(v *Vault, fs *backend.FS, window time.Duration, log zerolog.Logger) (*Watcher, error) {
	if window <= 0 {
		window = 200 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		vault:    v,
		root:     fs.Root(),
		debounce: window,
		log:      log,
		pending:  make(map[string]*time.Timer),
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching the vault root and all its subdirectories.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.loop(ctx)
	return nil
}

// Close stops the watcher and cancels pending debounce timers.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	for _, timer := range w.pending {
		timer.Stop()
	}
	w.pending = make(map[string]*time.Timer)
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		name := filepath.Base(entry)
		if strings.HasPrefix(name, ".") {
			continue
		}
		if info, err := filepathStat(entry); err == nil && info {
			if err := w.addRecursive(entry); err != nil {
				w.log.Debug().Err(err).Str("dir", entry).Msg("watch subdirectory")
			}
		}
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	path := NormalizePath(filepath.ToSlash(rel))
	if path == "" || strings.HasPrefix(baseName(path), ".") {
		return
	}
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ".") {
			return
		}
	}

	// New directories need their own watch.
	if event.Op&fsnotify.Create != 0 {
		if isDir, err := filepathStat(event.Name); err == nil && isDir {
			_ = w.addRecursive(event.Name)
			return
		}
	}

	w.schedule(ctx, path)
}

// schedule coalesces events per path: each new event within the window
// resets the path's timer, so a burst of writes produces one reconcile.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		if err := w.vault.SyncExternal(ctx, path); err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("sync external change")
		}
	})
}

// filepathStat reports whether name is a directory.
func filepathStat(name string) (bool, error) {
	info, err := os.Stat(name)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
