package vault

import "strings"

// NormalizePath canonicalizes a vault-relative path: backslashes become
// forward slashes, repeated slashes collapse, leading/trailing slashes are
// stripped, and "."/".." segments are resolved. ".." past the root is
// ignored rather than an error — the vault root is the floor.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")

	var out []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			// collapse
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}

// parentPath returns the folder portion of a normalized path, "" for the root.
func parentPath(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

// baseName returns the final segment of a normalized path.
func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
