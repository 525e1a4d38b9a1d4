package isolation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Contain joins the slash-separated rel onto root and verifies that the
// result, after resolving symlinks on its longest existing prefix, still lies
// strictly below root.
func Contain(root, rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("path %q contains a null byte", rel)
	}
	base, err := ResolvePath(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	resolved, err := ResolvePath(target)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", rel, err)
	}
	if resolved == base || !IsUnder(resolved, base) {
		return "", fmt.Errorf("path %q escapes %s", rel, root)
	}
	return target, nil
}

// ResolvePath cleans path to an absolute form, resolving symlinks on the
// longest existing ancestor so that paths to files not yet created resolve
// consistently.
func ResolvePath(path string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("path contains null byte")
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return resolveAncestor(abs), nil
}

func resolveAncestor(path string) string {
	dir := path
	for range 256 {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, err := filepath.Rel(parent, path)
			if err != nil {
				return path
			}
			return filepath.Join(resolved, rel)
		}
		dir = parent
	}
	return path
}

// IsUnder reports whether path equals base or lies below it. Both must be
// clean absolute paths.
func IsUnder(path, base string) bool {
	if path == base {
		return true
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
