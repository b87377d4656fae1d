package backend

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	data  []byte
	ctime time.Time
	mtime time.Time
}

// Memory is a map-backed Backend. Used by tests and as an ephemeral vault.
type Memory struct {
	mu    sync.RWMutex
	files map[string]*memEntry
	now   func() time.Time
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		files: make(map[string]*memEntry),
		now:   time.Now,
	}
}

// NewMemoryFrom creates an in-memory backend pre-populated with files.
func NewMemoryFrom(files map[string]string) *Memory {
	m := NewMemory()
	for path, content := range files {
		now := m.now()
		m.files[path] = &memEntry{data: []byte(content), ctime: now, mtime: now}
	}
	return m
}

func (m *Memory) Read(ctx context.Context, path string) (string, error) {
	data, err := m.ReadBinary(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *Memory) ReadBinary(_ context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.files[path]
	if !ok {
		return nil, NotFound(path)
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

func (m *Memory) Write(ctx context.Context, path string, content string) error {
	return m.WriteBinary(ctx, path, []byte(content))
}

func (m *Memory) WriteBinary(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	cp := make([]byte, len(data))
	copy(cp, data)
	if e, ok := m.files[path]; ok {
		e.data = cp
		e.mtime = now
		return nil
	}
	m.files[path] = &memEntry{data: cp, ctime: now, mtime: now}
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return NotFound(path)
	}
	delete(m.files, path)
	return nil
}

func (m *Memory) Exists(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok, nil
}

func (m *Memory) Stat(_ context.Context, path string) (*FileStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.files[path]
	if !ok {
		return nil, nil
	}
	return &FileStat{CTime: e.ctime, MTime: e.mtime, Size: int64(len(e.data))}, nil
}

func (m *Memory) List(_ context.Context, dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := dir
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var paths []string
	for path := range m.files {
		if prefix == "" || strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Mkdir is a no-op: directories are implicit in an in-memory store.
func (m *Memory) Mkdir(_ context.Context, _ string) error { return nil }

func (m *Memory) Rename(_ context.Context, oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.files[oldPath]
	if !ok {
		return NotFound(oldPath)
	}
	if _, ok := m.files[newPath]; ok {
		return AlreadyExists(newPath)
	}
	delete(m.files, oldPath)
	e.mtime = m.now()
	m.files[newPath] = e
	return nil
}

func (m *Memory) Copy(_ context.Context, srcPath, dstPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.files[srcPath]
	if !ok {
		return NotFound(srcPath)
	}
	cp := make([]byte, len(e.data))
	copy(cp, e.data)
	now := m.now()
	m.files[dstPath] = &memEntry{data: cp, ctime: now, mtime: now}
	return nil
}
