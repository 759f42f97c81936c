// Package validation guards filesystem-backed identifiers against path
// traversal. This package has no dependencies on other internal packages to
// avoid import cycles.
package validation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidFilename indicates an uploaded file's name is malformed or
// attempts path traversal.
var ErrInvalidFilename = errors.New("invalid filename")

// Filename strips any directory components from name and rejects anything
// that still resolves outside a single path segment, so it is safe to
// concatenate into a blob store key that a local-disk backend will later
// pass through filepath.Join.
func Filename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidFilename
	}

	base := filepath.Base(filepath.FromSlash(name))
	if base == "." || base == ".." || base == string(os.PathSeparator) {
		return "", ErrInvalidFilename
	}
	if strings.ContainsAny(base, `/\`) {
		return "", ErrInvalidFilename
	}

	return base, nil
}
