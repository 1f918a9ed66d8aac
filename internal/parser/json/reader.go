// Package json reads JSON records into batches. Two layouts are accepted:
// a top-level array of objects, and a stream of objects (JSON lines). Keys
// keep the order in which they first appear.
package json

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/parser"
)

// Reader is a forward-only JSON batch reader.
//
// The column set of each batch is every key seen so far in the stream, in
// first-appearance order; a record missing a key yields null for it. A key
// that first shows up in a later batch therefore widens that batch, which
// the run's schema lock rejects.
//
// Numbers decode to int64 when integral and float64 otherwise. Nested
// objects and arrays are kept as their compact JSON text.
type Reader struct {
	dec     *json.Decoder
	started bool
	inArray bool
	done    bool
	record  int

	pending []any

	columns []string
	index   map[string]int
}

var _ parser.BatchReader = (*Reader)(nil)

// NewReader returns a Reader over r. No options are interpreted yet.
func NewReader(r io.Reader, _ config.Options) (*Reader, error) {
	dec := json.NewDecoder(bufio.NewReaderSize(r, 64*1024))
	dec.UseNumber()
	return &Reader{dec: dec, index: map[string]int{}}, nil
}

// Columns returns every key seen so far.
func (r *Reader) Columns() []string { return r.columns }

// Read returns up to n records.
func (r *Reader) Read(n int) (*batch.Batch, error) {
	if n <= 0 {
		return nil, fmt.Errorf("json: batch size must be > 0")
	}
	if !r.started {
		if err := r.start(); err != nil {
			return nil, err
		}
	}
	if r.done && r.pending == nil {
		return nil, io.EOF
	}

	rows := make([][]any, 0, n)
	for len(rows) < n {
		if r.pending != nil {
			rows = append(rows, r.pending)
			r.pending = nil
			continue
		}
		if r.done || !r.dec.More() {
			r.done = true
			break
		}
		row, err := r.readObject()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}

	width := len(r.columns)
	for i, row := range rows {
		if len(row) < width {
			rows[i] = append(row, make([]any, width-len(row))...)
		}
	}
	cols := make([]string, width)
	copy(cols, r.columns)
	return &batch.Batch{Columns: cols, Rows: rows}, nil
}

// start reads the first token to tell an array from a record stream.
func (r *Reader) start() error {
	r.started = true
	tok, err := r.dec.Token()
	if err == io.EOF {
		r.done = true
		return nil
	}
	if err != nil {
		return r.fail(err)
	}
	switch tok {
	case json.Delim('['):
		r.inArray = true
		return nil
	case json.Delim('{'):
		row, err := r.readFields()
		if err != nil {
			return err
		}
		r.pending = row
		return nil
	}
	r.done = true
	return etlerr.New(etlerr.SourceRead, "reader.json", "unsupported root value %v (want object or array)", tok)
}

func (r *Reader) readObject() ([]any, error) {
	tok, err := r.dec.Token()
	if err != nil {
		return nil, r.fail(err)
	}
	if tok != json.Delim('{') {
		return nil, etlerr.New(etlerr.SourceRead, "reader.json", "record %d: want object, got %v", r.record+1, tok)
	}
	return r.readFields()
}

// readFields decodes the members of an object whose '{' was consumed.
func (r *Reader) readFields() ([]any, error) {
	r.record++
	row := make([]any, len(r.columns))
	for r.dec.More() {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, r.fail(err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, etlerr.New(etlerr.SourceRead, "reader.json", "record %d: bad key %v", r.record, tok)
		}
		var v any
		if err := r.dec.Decode(&v); err != nil {
			return nil, r.fail(err)
		}

		i, seen := r.index[key]
		if !seen {
			i = len(r.columns)
			r.index[key] = i
			r.columns = append(r.columns, key)
		}
		for len(row) <= i {
			row = append(row, nil)
		}
		row[i], err = scalar(v)
		if err != nil {
			return nil, r.fail(err)
		}
	}
	if _, err := r.dec.Token(); err != nil {
		return nil, r.fail(err)
	}
	return row, nil
}

func (r *Reader) fail(err error) error {
	r.done = true
	return etlerr.Wrapf(etlerr.SourceRead, "reader.json", err, "record %d", r.record)
}

func scalar(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}
