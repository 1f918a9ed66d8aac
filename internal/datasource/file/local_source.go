// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

// Local opens a file from the local disk. It is safe for concurrent use.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the base name of the path.
func (l *Local) Name() string { return filepath.Base(l.path) }

// Open returns the *os.File as an io.ReadCloser, so callers may type-assert
// it to datasource.Seekable.
//
// A context that is already done short-circuits without touching the disk.
// A missing file yields an etlerr.SourceNotFound error that still matches
// os.ErrNotExist.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, etlerr.Wrapf(etlerr.SourceNotFound, "source", err, "open %s", l.path)
		}
		return nil, etlerr.Wrapf(etlerr.SourceRead, "source", err, "open %s", l.path)
	}
	return f, nil
}
