// Package reader turns a source descriptor into a lazy sequence of batches.
//
// A Reader is forward-only and not restartable. Callers either pull with
// Next until io.EOF or range over All:
//
//	r, err := reader.Open(ctx, desc, 10_000)
//	if err != nil { ... }
//	defer r.Close()
//	for b, err := range r.All(ctx) {
//	    if err != nil { ... }
//	    ...
//	}
package reader

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/datasource"
	"github.com/YogovAI/Product-Development-Yogov/internal/datasource/bucket"
	"github.com/YogovAI/Product-Development-Yogov/internal/datasource/file"
	"github.com/YogovAI/Product-Development-Yogov/internal/datasource/httpds"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/objstore"
	"github.com/YogovAI/Product-Development-Yogov/internal/parser"
	csvparser "github.com/YogovAI/Product-Development-Yogov/internal/parser/csv"
	jsonparser "github.com/YogovAI/Product-Development-Yogov/internal/parser/json"
	parquetparser "github.com/YogovAI/Product-Development-Yogov/internal/parser/parquet"
)

// Descriptor says what to read and how to parse it.
type Descriptor struct {
	Format  parser.Format
	Source  datasource.Source
	Options config.Options
}

// FromConfig builds a Descriptor from a job's source block. An object_store
// block selects a bucket source, an http(s) Path a download; otherwise Path
// is a local file.
func FromConfig(sc *config.SourceConfig) (Descriptor, error) {
	format, err := parser.ParseFormat(sc.Format)
	if err != nil {
		return Descriptor{}, err
	}
	d := Descriptor{Format: format, Options: sc.Options}

	if st := sc.ObjectStore; st != nil {
		client, err := objstore.New(objstore.Config{
			Endpoint:  st.EndpointURL,
			AccessKey: st.AccessKey,
			SecretKey: st.SecretKey,
			Region:    st.Region,
			Secure:    st.Secure,
		})
		if err != nil {
			return Descriptor{}, etlerr.Wrap(etlerr.Config, "reader", err)
		}
		d.Source = bucket.New(client, st.Bucket, sc.Path)
		return d, nil
	}
	if httpds.IsURL(sc.Path) {
		d.Source = httpds.New(httpds.NewClient(httpds.Config{
			InsecureSkipVerify: sc.Options.Bool("insecure_skip_verify", false),
		}), sc.Path)
		return d, nil
	}
	d.Source = file.NewLocal(sc.Path)
	return d, nil
}

// Reader yields batches of at most the chunk size.
type Reader struct {
	name  string
	rc    io.ReadCloser
	br    parser.BatchReader
	chunk int
	done  bool
}

// Open opens the source and prepares the format parser. The returned
// Reader owns the source handle; Close releases it.
func Open(ctx context.Context, d Descriptor, chunkSize int) (*Reader, error) {
	if chunkSize <= 0 {
		return nil, etlerr.New(etlerr.Config, "reader", "chunk size must be > 0, got %d", chunkSize)
	}
	switch d.Format {
	case parser.CSV, parser.JSON, parser.Parquet:
	default:
		return nil, etlerr.New(etlerr.UnsupportedFormat, "reader", "format %q", d.Format)
	}
	if d.Source == nil {
		return nil, etlerr.New(etlerr.Config, "reader", "no source")
	}

	rc, err := d.Source.Open(ctx)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.SourceRead, "reader", err)
	}

	var br parser.BatchReader
	switch d.Format {
	case parser.CSV:
		br, err = csvparser.NewReader(rc, d.Options)
	case parser.JSON:
		br, err = jsonparser.NewReader(rc, d.Options)
	case parser.Parquet:
		seekable, ok := rc.(datasource.Seekable)
		if !ok {
			rc.Close()
			return nil, etlerr.New(etlerr.SourceRead, "reader", "parquet needs a seekable source, got %T", rc)
		}
		var pr *parquetparser.Reader
		pr, err = parquetparser.NewReader(ctx, seekable, chunkSize)
		if err == nil {
			br = pr
			rc = closeBoth{pr, rc}
		}
	}
	if err != nil {
		rc.Close()
		return nil, etlerr.Wrap(etlerr.SourceRead, "reader", err)
	}

	return &Reader{name: d.Source.Name(), rc: rc, br: br, chunk: chunkSize}, nil
}

// Name is the source file's base name.
func (r *Reader) Name() string { return r.name }

// Next returns the next batch, or io.EOF when the source is exhausted.
func (r *Reader) Next(ctx context.Context) (*batch.Batch, error) {
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := r.br.Read(r.chunk)
	if err != nil {
		r.done = true
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, etlerr.Wrap(etlerr.SourceRead, "reader", err)
	}
	return b, nil
}

// All ranges over the remaining batches. Iteration stops after the first
// error, which is yielded with a nil batch.
func (r *Reader) All(ctx context.Context) iter.Seq2[*batch.Batch, error] {
	return func(yield func(*batch.Batch, error) bool) {
		for {
			b, err := r.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(b, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the source handle. It is safe to call more than once.
func (r *Reader) Close() error {
	r.done = true
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	return err
}

type closeBoth struct {
	first  io.Closer
	second io.ReadCloser
}

func (c closeBoth) Read(p []byte) (int, error) { return c.second.Read(p) }

func (c closeBoth) Close() error {
	return errors.Join(c.first.Close(), c.second.Close())
}
