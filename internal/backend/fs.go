package backend

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS is a Backend rooted at a directory on disk. Every path is resolved
// inside the root; anything that escapes it is rejected with
// ErrPathTraversal before touching the filesystem.
type FS struct {
	root string
}

// NewFS creates a filesystem backend rooted at dir. The directory must
// already exist.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: vault root %s is not a directory", ErrInvalidInput, abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault root directory.
func (f *FS) Root() string { return f.root }

// resolve maps a vault-relative path onto the disk, rejecting traversal.
func (f *FS) resolve(path string) (string, error) {
	if strings.Contains(path, "\x00") {
		return "", Traversal(path)
	}
	full := filepath.Join(f.root, filepath.FromSlash(path))
	full = filepath.Clean(full)
	if full != f.root && !strings.HasPrefix(full, f.root+string(filepath.Separator)) {
		return "", Traversal(path)
	}
	return full, nil
}

func (f *FS) Read(ctx context.Context, path string) (string, error) {
	data, err := f.ReadBinary(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *FS) ReadBinary(_ context.Context, path string) ([]byte, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NotFound(path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (f *FS) Write(ctx context.Context, path string, content string) error {
	return f.WriteBinary(ctx, path, []byte(content))
}

func (f *FS) WriteBinary(_ context.Context, path string, data []byte) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (f *FS) Delete(_ context.Context, path string) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return NotFound(path)
		}
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (f *FS) Exists(_ context.Context, path string) (bool, error) {
	full, err := f.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

func (f *FS) Stat(_ context.Context, path string) (*FileStat, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	// Creation time is not portable; mtime stands in for both.
	return &FileStat{
		CTime: info.ModTime(),
		MTime: info.ModTime(),
		Size:  info.Size(),
	}, nil
}

func (f *FS) List(_ context.Context, dir string) ([]string, error) {
	full, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != full {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return nil
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return paths, nil
}

func (f *FS) Mkdir(_ context.Context, path string) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

func (f *FS) Rename(_ context.Context, oldPath, newPath string) error {
	oldFull, err := f.resolve(oldPath)
	if err != nil {
		return err
	}
	newFull, err := f.resolve(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		if os.IsNotExist(err) {
			return NotFound(oldPath)
		}
		return fmt.Errorf("rename %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}

func (f *FS) Copy(ctx context.Context, srcPath, dstPath string) error {
	data, err := f.ReadBinary(ctx, srcPath)
	if err != nil {
		return err
	}
	return f.WriteBinary(ctx, dstPath, data)
}
