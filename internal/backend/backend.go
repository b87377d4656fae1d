// Package backend abstracts byte-level storage for a vault. Implementations
// exist for the local filesystem and for memory (tests, ephemeral vaults).
// The vault layer treats a Backend as an injected dependency and never
// touches the disk directly.
package backend

import (
	"context"
	"time"
)

// FileStat describes a stored file. Times are wall-clock.
type FileStat struct {
	CTime time.Time
	MTime time.Time
	Size  int64
}

// Backend is the storage contract every vault sits on. All paths are
// vault-relative, slash-separated, and already normalized by the caller.
//
// Stat returns (nil, nil) for a missing path — absence is not an error at
// this layer. Read/Delete/Rename on a missing path return ErrNotFound with
// the offending path in the message.
type Backend interface {
	Read(ctx context.Context, path string) (string, error)
	ReadBinary(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, content string) error
	WriteBinary(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	Stat(ctx context.Context, path string) (*FileStat, error)

	// List returns the paths of all files under dir, recursively, relative
	// to the vault root. dir == "" lists the whole vault. Hidden directories
	// (".obsidian", ".git", ...) are skipped.
	List(ctx context.Context, dir string) ([]string, error)

	Mkdir(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	Copy(ctx context.Context, srcPath, dstPath string) error
}
