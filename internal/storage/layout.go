// Package storage maps (symbol, year) pairs to files under a year partitioned tree and is the
// single authority on whether a pair has already been downloaded.
package storage

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rxtech-lab/argo-history/pkg/errors"
)

// Layout resolves output paths of the form <root>/<year>/<symbol>.<ext>.
type Layout struct {
	root string
	ext  string
}

// NewLayout creates a layout rooted at root writing files with the given extension.
func NewLayout(root string, ext string) *Layout {
	return &Layout{
		root: root,
		ext:  strings.TrimPrefix(ext, "."),
	}
}

// Root returns the root directory.
func (l *Layout) Root() string {
	return l.root
}

// ResolvePath returns the canonical file for symbol and year. It has no side effects.
func (l *Layout) ResolvePath(symbol string, year int) string {
	return filepath.Join(l.root, strconv.Itoa(year), fileName(symbol)+"."+l.ext)
}

// Exists reports whether path is present.
func (l *Layout) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if stderrors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to stat %s", path)
}

// EnsureDirectory creates every missing parent directory of path. Existing directories are fine.
func (l *Layout) EnsureDirectory(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to create directory %s", dir)
	}

	return nil
}

// fileNameEscaper percent-encodes path separators and the escape character itself, so every
// symbol maps to a distinct name inside its year directory.
var fileNameEscaper = strings.NewReplacer("%", "%25", "/", "%2F", `\`, "%5C")

func fileName(symbol string) string {
	return fileNameEscaper.Replace(symbol)
}
