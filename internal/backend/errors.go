package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage boundary. Callers match with errors.Is;
// HTTP/MCP/CLI layers map them to status codes and exit codes.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrPathTraversal = errors.New("path escapes vault root")
	ErrInvalidInput  = errors.New("invalid input")
)

// NotFound wraps ErrNotFound with the offending path.
func NotFound(path string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}

// AlreadyExists wraps ErrAlreadyExists with the offending path.
func AlreadyExists(path string) error {
	return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
}

// Traversal wraps ErrPathTraversal with the offending path. Never recovered:
// a traversal attempt is always fatal to the operation that made it.
func Traversal(path string) error {
	return fmt.Errorf("%w: %s", ErrPathTraversal, path)
}
