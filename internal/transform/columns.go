package transform

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
)

// rename maps source column names to targets. Absent sources are ignored.
type rename struct {
	mappings []config.Mapping
}

func newRename(m []config.Mapping) *rename { return &rename{mappings: m} }

func (*rename) name() string { return "rename" }

func (r *rename) apply(b *batch.Batch) error {
	for _, m := range r.mappings {
		i := b.Index(m.Source)
		if i < 0 || m.Source == m.Target {
			continue
		}
		if b.Has(m.Target) {
			return fmt.Errorf("rename %q to %q: column already exists", m.Source, m.Target)
		}
		b.Columns[i] = m.Target
	}
	return nil
}

// split breaks the string form of one column into positional outputs.
type split struct {
	column  string
	source  string
	delim   string
	outputs []config.SplitOutput
	log     zerolog.Logger
}

func newSplit(c config.TemplateColumn, log zerolog.Logger) (*split, error) {
	t := c.Transform
	if !strings.EqualFold(t.Op, "split") {
		return nil, fmt.Errorf("unknown transform op %q", t.Op)
	}
	if t.Delimiter == "" {
		return nil, fmt.Errorf("split needs a delimiter")
	}
	src := t.SourceColumn
	if src == "" {
		src = c.Name
	}
	outputs := t.Outputs
	if len(outputs) == 0 {
		return nil, fmt.Errorf("split needs at least one output")
	}
	for _, o := range outputs {
		switch o.Cast {
		case "", "int", "float":
		default:
			return nil, fmt.Errorf("output %q: unknown cast %q", o.Name, o.Cast)
		}
	}
	return &split{column: c.Name, source: src, delim: t.Delimiter, outputs: outputs, log: log}, nil
}

func (s *split) name() string { return "split:" + s.column }

func (s *split) apply(b *batch.Batch) error {
	src := b.Index(s.source)
	if src < 0 {
		s.log.Warn().Str("column", s.source).Msg("split source column not found, skipped")
		return nil
	}

	dst := make([]int, len(s.outputs))
	for i, o := range s.outputs {
		dst[i] = b.AddColumn(o.Name)
	}

	for _, row := range b.Rows {
		v := row[src]
		var parts []string
		if !schema.IsNull(v) {
			parts = strings.Split(schema.FormatValue(v), s.delim)
		}
		for i, o := range s.outputs {
			var part any
			if o.Index >= 0 && o.Index < len(parts) {
				part = castPart(parts[o.Index], o.Cast)
			}
			row[dst[i]] = part
		}
	}
	return nil
}

// castPart converts one split part. Parts that do not parse become null.
func castPart(p, cast string) any {
	switch cast {
	case "int":
		f, ok := schema.ToFloat(p)
		if !ok || !schema.InInt64Range(math.Round(f)) {
			return nil
		}
		return int64(math.Round(f))
	case "float":
		f, ok := schema.ToFloat(p)
		if !ok {
			return nil
		}
		return f
	}
	return p
}

// cast forces integer-typed template columns to int64, truncating
// fractions. Values that are not numbers become null.
type cast struct {
	columns []string
}

func newCast(t *config.Template) *cast {
	var cols []string
	for _, c := range t.Columns {
		if schema.ParseType(c.Constraints.PGType).IsInteger() {
			cols = append(cols, c.Name)
		}
	}
	if len(cols) == 0 {
		return nil
	}
	return &cast{columns: cols}
}

func (*cast) name() string { return "cast" }

func (c *cast) apply(b *batch.Batch) error {
	for _, col := range c.columns {
		i := b.Index(col)
		if i < 0 {
			continue
		}
		for _, row := range b.Rows {
			row[i] = truncInt(row[i])
		}
	}
	return nil
}

func truncInt(v any) any {
	if i, ok := v.(int64); ok {
		return i
	}
	f, ok := schema.ToFloat(v)
	if !ok || !schema.InInt64Range(math.Trunc(f)) {
		return nil
	}
	return int64(math.Trunc(f))
}
