// Package parquet reads Parquet files into batches through the Arrow record
// reader, so only one record batch of the file is decoded at a time.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/datasource"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/parser"
)

// Reader is a forward-only Parquet batch reader. Cell values are converted
// to int64, float64, bool, string or time.Time. Unsigned 64-bit values
// beyond the int64 range are read as decimal strings.
type Reader struct {
	pf      *file.Reader
	rr      pqarrow.RecordReader
	columns []string

	buf  [][]any
	done bool
}

var _ parser.BatchReader = (*Reader)(nil)

// NewReader opens src. batchSize sizes the Arrow record batches.
func NewReader(ctx context.Context, src datasource.Seekable, batchSize int) (*Reader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("parquet: batch size must be > 0")
	}
	pf, err := file.NewParquetReader(src)
	if err != nil {
		return nil, etlerr.Wrapf(etlerr.SourceRead, "reader.parquet", err, "open file")
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: int64(batchSize)}, memory.DefaultAllocator)
	if err != nil {
		pf.Close()
		return nil, etlerr.Wrapf(etlerr.SourceRead, "reader.parquet", err, "arrow reader")
	}
	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		pf.Close()
		return nil, etlerr.Wrapf(etlerr.SourceRead, "reader.parquet", err, "record reader")
	}

	fields := rr.Schema().Fields()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return &Reader{pf: pf, rr: rr, columns: parser.DedupeHeaders(cols)}, nil
}

// Columns returns the file's top-level column names.
func (r *Reader) Columns() []string { return r.columns }

// Read returns up to n rows.
func (r *Reader) Read(n int) (*batch.Batch, error) {
	if n <= 0 {
		return nil, fmt.Errorf("parquet: batch size must be > 0")
	}
	for len(r.buf) < n && !r.done {
		if !r.rr.Next() {
			r.done = true
			if err := r.rr.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, etlerr.Wrapf(etlerr.SourceRead, "reader.parquet", err, "read records")
			}
			break
		}
		rows, err := recordRows(r.rr.Record())
		if err != nil {
			return nil, err
		}
		r.buf = append(r.buf, rows...)
	}
	if len(r.buf) == 0 {
		return nil, io.EOF
	}

	take := min(n, len(r.buf))
	b := batch.New(r.columns, take)
	b.Rows = append(b.Rows, r.buf[:take]...)
	r.buf = r.buf[take:]
	return b, nil
}

// Close releases the record reader and the file.
func (r *Reader) Close() error {
	r.rr.Release()
	return r.pf.Close()
}

func recordRows(rec arrow.Record) ([][]any, error) {
	nrows := int(rec.NumRows())
	rows := make([][]any, nrows)
	for i := range rows {
		rows[i] = make([]any, rec.NumCols())
	}
	for c, col := range rec.Columns() {
		for i := 0; i < nrows; i++ {
			v, err := value(col, i)
			if err != nil {
				return nil, etlerr.Wrapf(etlerr.SourceRead, "reader.parquet", err, "column %s", rec.ColumnName(c))
			}
			rows[i][c] = v
		}
	}
	return rows, nil
}

func value(col arrow.Array, i int) (any, error) {
	if col.IsNull(i) {
		return nil, nil
	}
	switch a := col.(type) {
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Uint8:
		return int64(a.Value(i)), nil
	case *array.Uint16:
		return int64(a.Value(i)), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Uint64:
		v := a.Value(i)
		if v > math.MaxInt64 {
			// Kept exact as a decimal string.
			return strconv.FormatUint(v, 10), nil
		}
		return int64(v), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Binary:
		return string(a.Value(i)), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit), nil
	case *array.Date32:
		return a.Value(i).ToTime(), nil
	case *array.Date64:
		return a.Value(i).ToTime(), nil
	case *array.Decimal128:
		scale := a.DataType().(*arrow.Decimal128Type).Scale
		return a.Value(i).ToFloat64(scale), nil
	}
	return col.ValueStr(i), nil
}
