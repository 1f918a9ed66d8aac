// Package csv reads delimited text into batches. It streams through
// encoding/csv with ReuseRecord so memory stays bounded by the batch size.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/parser"
	"github.com/YogovAI/Product-Development-Yogov/internal/textnorm"
)

const utf8BOM = "\uFEFF"

// defaultNA are the cell values read as nulls unless keep_default_na is off.
var defaultNA = map[string]bool{
	"#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true, "-1.#QNAN": true,
	"-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true,
	"N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// Reader is a forward-only CSV batch reader.
//
// Options:
//   - comma (string; first rune; default ',')
//   - has_header (bool; default true). Without a header, columns are named
//     column_1, column_2, ...
//   - trim_space (bool; default false)
//   - lazy_quotes (bool; default false)
//   - normalize_headers (bool; default false): lowercase ASCII identifiers
//   - keep_default_na (bool; default true): read the usual missing-value
//     markers (NA, N/A, NaN, null, None, ...) as nulls
//
// An empty cell is a null. Rows shorter than the header are padded with
// nulls; longer rows are an error.
type Reader struct {
	cr      *csv.Reader
	columns []string
	trim    bool
	na      map[string]bool
	line    int
	pending []string
	done    bool
}

var _ parser.BatchReader = (*Reader)(nil)

// NewReader reads the header (when present) and returns a Reader.
func NewReader(r io.Reader, opt config.Options) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	rd := &Reader{cr: cr, trim: opt.Bool("trim_space", false)}
	if opt.Bool("keep_default_na", true) {
		rd.na = defaultNA
	}

	first, err := rd.next()
	if errors.Is(err, io.EOF) {
		rd.done = true
		return rd, nil
	}
	if err != nil {
		return nil, err
	}

	if opt.Bool("has_header", true) {
		rd.columns = parser.DedupeHeaders(headerNames(first, opt.Bool("normalize_headers", false)))
		return rd, nil
	}

	rd.columns = make([]string, len(first))
	for i := range first {
		rd.columns[i] = fmt.Sprintf("column_%d", i+1)
	}
	rd.pending = append([]string(nil), first...)
	return rd, nil
}

// Columns returns the header.
func (r *Reader) Columns() []string { return r.columns }

// Read returns up to n rows.
func (r *Reader) Read(n int) (*batch.Batch, error) {
	if n <= 0 {
		return nil, fmt.Errorf("csv: batch size must be > 0")
	}
	if r.done && r.pending == nil {
		return nil, io.EOF
	}

	b := batch.New(r.columns, n)
	if r.pending != nil {
		row, err := r.toRow(r.pending)
		if err != nil {
			return nil, err
		}
		b.Rows = append(b.Rows, row)
		r.pending = nil
	}

	for !r.done && b.Len() < n {
		rec, err := r.next()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		row, err := r.toRow(rec)
		if err != nil {
			return nil, err
		}
		b.Rows = append(b.Rows, row)
	}

	if b.Len() == 0 {
		return nil, io.EOF
	}
	return b, nil
}

func (r *Reader) next() ([]string, error) {
	rec, err := r.cr.Read()
	r.line++
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, etlerr.Wrapf(etlerr.SourceRead, "reader.csv", err, "line %d", r.line)
	}
	return rec, err
}

func (r *Reader) toRow(rec []string) ([]any, error) {
	if len(rec) > len(r.columns) {
		return nil, etlerr.New(etlerr.SourceRead, "reader.csv",
			"line %d: %d fields, header has %d", r.line, len(rec), len(r.columns))
	}
	row := make([]any, len(r.columns))
	for i, v := range rec {
		if r.trim {
			v = strings.TrimSpace(v)
		}
		if v != "" && !r.na[v] {
			row[i] = v
		}
	}
	return row, nil
}

func headerNames(rec []string, normalize bool) []string {
	out := make([]string, len(rec))
	for i, h := range rec {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.TrimSpace(h)
		if normalize && h != "" {
			h = textnorm.Header(h)
		}
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		out[i] = h
	}
	return out
}
