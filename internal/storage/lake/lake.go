// Package lake writes a run's batches into one Parquet file and uploads it
// to an S3-compatible bucket on commit.
//
// The file is built locally: Bootstrap opens a pqarrow writer over a temp
// file, every Write appends one record batch (one row group), Commit closes
// the writer and uploads the file, and Close removes the temp file whether
// or not the upload happened.
package lake

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/rs/zerolog"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/objstore"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage"
)

const (
	op          = "sink.lake"
	contentType = "application/vnd.apache.parquet"
)

func init() {
	storage.Register(storage.KindLake, func(_ context.Context, job *config.Job, log zerolog.Logger) (storage.Sink, error) {
		cfg := job.Target.Lake
		if cfg == nil {
			return nil, etlerr.New(etlerr.Config, op, "target.lake is required for kind lake")
		}
		bucket, prefix := cfg.Bucket, cfg.KeyPrefix
		if cfg.Location != "" {
			loc, err := ParseLocation(cfg.Location)
			if err != nil {
				return nil, err
			}
			bucket, prefix = loc.Bucket, loc.Prefix
		}
		client, err := objstore.New(objstore.Config{
			Endpoint:  cfg.EndpointURL,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			Secure:    cfg.Secure,
		})
		if err != nil {
			return nil, etlerr.Wrap(etlerr.Config, op, err)
		}
		return New(client, Options{Bucket: bucket, KeyPrefix: prefix, Source: job.Source.Path}, log)
	})
}

// Options says where the object goes.
type Options struct {
	Bucket    string
	KeyPrefix string
	// Source is the source file path; its base name names the object.
	Source string
	// TempDir holds the local file; "" means os.TempDir.
	TempDir string
}

// Sink is the lake storage.Sink. It is not safe for concurrent use.
type Sink struct {
	up     objstore.Uploader
	bucket string
	key    string
	dir    string
	log    zerolog.Logger

	cols   []schema.Column
	schema *arrow.Schema
	path   string
	f      *os.File
	fw     *pqarrow.FileWriter
	rows   int64
}

var _ storage.Sink = (*Sink)(nil)

// New returns a Sink that uploads through up.
func New(up objstore.Uploader, opt Options, log zerolog.Logger) (*Sink, error) {
	if up == nil {
		return nil, etlerr.New(etlerr.Config, op, "no uploader")
	}
	if opt.Bucket == "" {
		return nil, etlerr.New(etlerr.Config, op, "bucket is required")
	}
	key := ObjectKey(opt.KeyPrefix, opt.Source)
	return &Sink{
		up:     up,
		bucket: opt.Bucket,
		key:    key,
		dir:    opt.TempDir,
		log:    log.With().Str("component", op).Str("object", key).Logger(),
	}, nil
}

// Target is the object URL.
func (s *Sink) Target() string { return fmt.Sprintf("s3://%s/%s", s.bucket, s.key) }

// Bootstrap opens the Parquet writer with t's columns.
func (s *Sink) Bootstrap(_ context.Context, t schema.Table) error {
	if s.fw != nil {
		return etlerr.New(etlerr.SinkWrite, op, "already bootstrapped")
	}
	if len(t.Columns) == 0 {
		return etlerr.New(etlerr.SinkWrite, op, "table %s has no columns", t.Name)
	}
	sch := ArrowSchema(t.Columns)

	f, err := os.CreateTemp(s.dir, "etl-*.parquet")
	if err != nil {
		return etlerr.Wrapf(etlerr.SinkWrite, op, err, "create temp file")
	}
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(sch, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return etlerr.Wrapf(etlerr.SinkWrite, op, err, "open parquet writer")
	}

	s.cols, s.schema, s.f, s.fw, s.path = t.Columns, sch, f, fw, f.Name()
	s.log.Debug().Str("path", s.path).Int("columns", len(t.Columns)).Msg("parquet writer open")
	return nil
}

// Write appends b as one record batch. Every column of b must be in the
// file; file columns b lacks (template columns absent from the data) are
// written as nulls.
func (s *Sink) Write(_ context.Context, b *batch.Batch) (int64, error) {
	if s.fw == nil {
		return 0, etlerr.New(etlerr.SinkWrite, op, "write before bootstrap")
	}
	idx := make([]int, len(s.cols))
	known := make(map[string]bool, len(s.cols))
	for i, c := range s.cols {
		idx[i] = b.Index(c.Name)
		known[c.Name] = true
	}
	for _, c := range b.Columns {
		if !known[c] {
			return 0, etlerr.New(etlerr.SchemaMismatch, op, "batch column %q is not in the file", c)
		}
	}
	if b.Len() == 0 {
		return 0, nil
	}

	rec, err := s.record(b, idx)
	if err != nil {
		return 0, err
	}
	defer rec.Release()
	if err := s.fw.Write(rec); err != nil {
		return 0, etlerr.Wrapf(etlerr.SinkWrite, op, err, "write row group")
	}
	s.rows += int64(b.Len())
	return int64(b.Len()), nil
}

// Commit closes the writer and uploads the file. Without a Bootstrap there
// is nothing to upload.
func (s *Sink) Commit(ctx context.Context) error {
	if s.fw == nil {
		return nil
	}
	err := s.fw.Close()
	s.fw = nil
	if cerr := s.f.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return etlerr.Wrapf(etlerr.SinkWrite, op, err, "finish parquet file")
	}

	n, err := s.up.Upload(ctx, s.bucket, s.key, s.path, contentType)
	if err != nil {
		return etlerr.Wrapf(etlerr.ObjectStoreUpload, op, err, "upload %s", s.Target())
	}
	s.log.Info().Int64("rows", s.rows).Int64("bytes", n).Str("target", s.Target()).Msg("object uploaded")
	return nil
}

// Close abandons an unfinished file and removes the temp file.
func (s *Sink) Close() error {
	if s.fw != nil {
		_ = s.fw.Close()
		s.fw = nil
		_ = s.f.Close()
	}
	if s.path == "" {
		return nil
	}
	err := os.Remove(s.path)
	s.path = ""
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ArrowSchema maps resolved columns to Arrow fields. Columns declared
// not null or primary key are required; everything else is nullable.
func ArrowSchema(cols []schema.Column) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     arrowType(c.Type),
			Nullable: !c.NotNull && !c.PrimaryKey,
		}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t schema.Type) arrow.DataType {
	switch t.Kind {
	case schema.Integer:
		return arrow.PrimitiveTypes.Int32
	case schema.BigInt:
		return arrow.PrimitiveTypes.Int64
	case schema.Float:
		return arrow.PrimitiveTypes.Float64
	case schema.Boolean:
		return arrow.FixedWidthTypes.Boolean
	case schema.Timestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	}
	return arrow.BinaryTypes.String
}

func (s *Sink) record(b *batch.Batch, idx []int) (arrow.Record, error) {
	bld := array.NewRecordBuilder(memory.DefaultAllocator, s.schema)
	defer bld.Release()

	for i, c := range s.cols {
		fb := bld.Field(i)
		fb.Reserve(b.Len())
		for r, row := range b.Rows {
			var v any
			if idx[i] >= 0 {
				var err error
				if v, err = schema.Convert(row[idx[i]], c.Type); err != nil {
					return nil, etlerr.Wrapf(etlerr.SinkWrite, op, err, "row %d column %q", r, c.Name)
				}
			}
			if v == nil {
				if !s.schema.Field(i).Nullable {
					return nil, etlerr.New(etlerr.SinkWrite, op, "row %d column %q: null in required column", r, c.Name)
				}
				fb.AppendNull()
				continue
			}
			if err := appendValue(fb, v); err != nil {
				return nil, etlerr.Wrapf(etlerr.SinkWrite, op, err, "row %d column %q", r, c.Name)
			}
		}
	}
	return bld.NewRecord(), nil
}

func appendValue(fb array.Builder, v any) error {
	switch fb := fb.(type) {
	case *array.Int32Builder:
		i := v.(int64)
		if i < math.MinInt32 || i > math.MaxInt32 {
			return fmt.Errorf("%d overflows INTEGER", i)
		}
		fb.Append(int32(i))
	case *array.Int64Builder:
		fb.Append(v.(int64))
	case *array.Float64Builder:
		fb.Append(v.(float64))
	case *array.BooleanBuilder:
		fb.Append(v.(bool))
	case *array.TimestampBuilder:
		ts, ok := schema.ToTime(v)
		if !ok {
			return fmt.Errorf("not a timestamp: %v", v)
		}
		fb.Append(arrow.Timestamp(ts.UnixMicro()))
	case *array.StringBuilder:
		fb.Append(schema.FormatValue(v))
	default:
		return fmt.Errorf("unsupported builder %T", fb)
	}
	return nil
}
