package vault

import (
	"strings"

	"github.com/mkarlsen/vaultkit/internal/backend"
)

// AbstractFile is either a *File or a *Folder in the vault tree.
// Path is the unique identity; Name is derived from it.
type AbstractFile interface {
	Path() string
	Name() string
}

// File is a path-addressed note or attachment. Name, Basename and Extension
// are pure functions of the path. On rename the object is mutated in place,
// so references held by callers observe the new path.
type File struct {
	path string

	// Stat is refreshed on every write through the vault.
	Stat backend.FileStat
}

func newFile(path string, stat backend.FileStat) *File {
	return &File{path: path, Stat: stat}
}

func (f *File) Path() string { return f.path }

// Name returns the final path segment including the extension.
func (f *File) Name() string { return baseName(f.path) }

// Basename returns the file name without its extension.
func (f *File) Basename() string {
	name := f.Name()
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// Extension returns the extension without the leading dot, "" if none.
func (f *File) Extension() string {
	name := f.Name()
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i+1:]
	}
	return ""
}

// setPath is called by Vault.Rename while holding the vault lock.
func (f *File) setPath(path string) { f.path = path }

// Folder is a virtual directory in the vault tree. Folders are derived from
// file paths; they are not stored entities.
type Folder struct {
	path     string
	Children []AbstractFile
}

func (f *Folder) Path() string { return f.path }

func (f *Folder) Name() string { return baseName(f.path) }

// IsRoot reports whether this is the vault root folder.
func (f *Folder) IsRoot() bool { return f.path == "" }
