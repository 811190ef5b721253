package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathGuard confines file operations to one base directory, guarding the
// upload and data-directory paths against traversal (CWE-22).
type PathGuard struct {
	base string
}

// NewPathGuard creates a guard rooted at dir.
func NewPathGuard(dir string) (*PathGuard, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving base directory %s: %w", dir, err)
	}
	return &PathGuard{base: filepath.Clean(abs)}, nil
}

// Join resolves name inside the base directory. Names that escape the
// base after cleaning are rejected.
func (g *PathGuard) Join(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty filename")
	}

	path := filepath.Clean(filepath.Join(g.base, filepath.Base(name)))
	if path != g.base && !strings.HasPrefix(path, g.base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the data directory", name)
	}
	if path == g.base {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	return path, nil
}
