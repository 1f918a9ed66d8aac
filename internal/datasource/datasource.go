// Package datasource abstracts where the bytes of a source file live.
// Implementations: file.Local (disk), bucket.Object (S3-compatible bucket)
// and httpds.URL (HTTP download).
package datasource

import (
	"context"
	"io"
)

// Source opens the underlying file for reading. A missing file is reported
// as an etlerr.SourceNotFound error.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name is the file's base name, used to derive default table and object
	// names.
	Name() string
}

// Seekable is what random-access formats (Parquet) need from an opened
// source. *os.File and *minio.Object both satisfy it.
type Seekable interface {
	io.ReaderAt
	io.Seeker
}
