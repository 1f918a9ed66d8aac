// Package batch holds the in-memory unit of work that flows from the reader
// through quality and transform stages into a sink.
package batch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

// Batch is an ordered, bounded set of rows. Rows are row-major and every row
// is aligned to Columns. A nil cell is a null.
type Batch struct {
	Columns []string
	Rows    [][]any
}

// New returns an empty batch over columns with room for n rows.
func New(columns []string, n int) *Batch {
	return &Batch{Columns: columns, Rows: make([][]any, 0, n)}
}

// Len returns the number of rows.
func (b *Batch) Len() int { return len(b.Rows) }

// Index returns the position of column name, or -1.
func (b *Batch) Index(name string) int {
	return slices.Index(b.Columns, name)
}

// Has reports whether the batch carries column name.
func (b *Batch) Has(name string) bool { return b.Index(name) >= 0 }

// Column returns the values of column i in row order.
func (b *Batch) Column(i int) []any {
	out := make([]any, len(b.Rows))
	for r, row := range b.Rows {
		out[r] = row[i]
	}
	return out
}

// AddColumn appends a column filled with nil and returns its index. If the
// column already exists its index is returned unchanged.
func (b *Batch) AddColumn(name string) int {
	if i := b.Index(name); i >= 0 {
		return i
	}
	b.Columns = append(b.Columns, name)
	for r := range b.Rows {
		b.Rows[r] = append(b.Rows[r], nil)
	}
	return len(b.Columns) - 1
}

// Filter returns a new batch with the rows whose drop flag is false, keeping
// row order. Rows are shared with the receiver, not copied.
func (b *Batch) Filter(drop []bool) *Batch {
	out := New(slices.Clone(b.Columns), len(b.Rows))
	for i, row := range b.Rows {
		if drop[i] {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Lock pins the column set of a stream to the first batch it sees.
// Later batches must carry exactly the same columns; their order is
// normalised to the locked order.
type Lock struct {
	columns []string
	index   map[string]int
}

// Columns returns the locked column set, or nil before the first batch.
func (l *Lock) Columns() []string { return l.columns }

// Check locks on the first call and validates every later batch. It
// reorders b in place when the same columns arrive in a different order.
func (l *Lock) Check(b *Batch) error {
	if l.columns == nil {
		l.columns = slices.Clone(b.Columns)
		l.index = make(map[string]int, len(b.Columns))
		for i, c := range b.Columns {
			if _, dup := l.index[c]; dup {
				return etlerr.New(etlerr.SchemaMismatch, "reader", "duplicate column %q", c)
			}
			l.index[c] = i
		}
		return nil
	}

	var extra, missing []string
	seen := make(map[string]bool, len(b.Columns))
	for _, c := range b.Columns {
		seen[c] = true
		if _, ok := l.index[c]; !ok {
			extra = append(extra, c)
		}
	}
	for _, c := range l.columns {
		if !seen[c] {
			missing = append(missing, c)
		}
	}
	if len(extra) > 0 || len(missing) > 0 || len(b.Columns) != len(l.columns) {
		return etlerr.New(etlerr.SchemaMismatch, "reader", "columns changed after first batch: %s", describeDiff(extra, missing))
	}

	if slices.Equal(b.Columns, l.columns) {
		return nil
	}
	perm := make([]int, len(l.columns))
	for src, c := range b.Columns {
		perm[l.index[c]] = src
	}
	for r, row := range b.Rows {
		out := make([]any, len(row))
		for dst, src := range perm {
			out[dst] = row[src]
		}
		b.Rows[r] = out
	}
	b.Columns = slices.Clone(l.columns)
	return nil
}

func describeDiff(extra, missing []string) string {
	var parts []string
	if len(extra) > 0 {
		parts = append(parts, fmt.Sprintf("extra %v", extra))
	}
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %v", missing))
	}
	if len(parts) == 0 {
		return "duplicate column names"
	}
	return strings.Join(parts, ", ")
}
