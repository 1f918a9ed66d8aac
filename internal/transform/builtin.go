package transform

import (
	"fmt"
	"strings"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
	"github.com/YogovAI/Product-Development-Yogov/internal/textnorm"
)

var presets = map[string]func(string) string{
	"trim": strings.TrimSpace,
	"trim_and_uppercase": func(s string) string {
		return strings.ToUpper(strings.TrimSpace(s))
	},
	"uppercase":     strings.ToUpper,
	"lowercase":     strings.ToLower,
	"strip_accents": textnorm.FoldAccents,
}

// builtin rewrites one column in place with a preset. Without a target it
// applies to the first column of the batch. Nulls stay null.
type builtin struct {
	step   string
	preset string
	fn     func(string) string
	column string
}

func newBuiltin(step, logic, target string) (*builtin, error) {
	preset := strings.ToLower(strings.TrimSpace(logic))
	fn, ok := presets[preset]
	if !ok {
		return nil, fmt.Errorf("unknown built-in %q", logic)
	}
	return &builtin{step: step, preset: preset, fn: fn, column: target}, nil
}

func (s *builtin) name() string { return s.step }

func (s *builtin) apply(b *batch.Batch) error {
	i := 0
	if s.column != "" {
		i = b.Index(s.column)
	}
	if i < 0 || len(b.Columns) == 0 {
		return fmt.Errorf("%s: unknown column %q", s.preset, s.column)
	}
	for _, row := range b.Rows {
		if schema.IsNull(row[i]) {
			row[i] = nil
			continue
		}
		row[i] = s.fn(schema.FormatValue(row[i]))
	}
	return nil
}
