// Package transform applies the ordered column operations of a job to each
// batch: renames, template splits and casts, then the declared
// transformations (sandboxed expressions and built-in presets).
package transform

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

// Kind is the closed set of declared transformation types.
type Kind int

const (
	// Expression derives a column from a null-propagating expression.
	Expression Kind = iota
	// CustomFunction evaluates an expression per row with nulls visible.
	CustomFunction
	// BuiltIn applies a named string preset to one column.
	BuiltIn
)

func (k Kind) String() string {
	switch k {
	case Expression:
		return "expression"
	case CustomFunction:
		return "custom_function"
	case BuiltIn:
		return "built_in"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind reads a document type. "python" is accepted as a synonym for
// custom_function.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expression":
		return Expression, nil
	case "custom_function", "python":
		return CustomFunction, nil
	case "built_in", "builtin":
		return BuiltIn, nil
	}
	return 0, fmt.Errorf("unknown transformation type %q", s)
}

type stage interface {
	name() string
	apply(b *batch.Batch) error
}

// Pipeline is the compiled, immutable transformation plan of one run.
type Pipeline struct {
	stages []stage
}

// Build compiles the job's mappings, its template's split and cast columns,
// and its transformations, in that order. Configuration problems are
// reported here, before any row is read.
func Build(job *config.Job, log zerolog.Logger) (*Pipeline, error) {
	log = log.With().Str("component", "transform").Logger()
	p := &Pipeline{}

	if len(job.Mappings) > 0 {
		p.stages = append(p.stages, newRename(job.Mappings))
	}

	if t := job.Template; t != nil {
		for _, c := range t.Columns {
			if c.Transform == nil {
				continue
			}
			s, err := newSplit(c, log)
			if err != nil {
				return nil, etlerr.Wrapf(etlerr.Config, "transform", err, "template column %q", c.Name)
			}
			p.stages = append(p.stages, s)
		}
		if c := newCast(t); c != nil {
			p.stages = append(p.stages, c)
		}
	}

	for i, tr := range job.Transformations {
		name := tr.Name
		if name == "" {
			name = fmt.Sprintf("transformations[%d]", i)
		}
		kind, err := ParseKind(tr.Type)
		if err != nil {
			return nil, etlerr.Wrapf(etlerr.Config, "transform", err, "%s", name)
		}

		var s stage
		switch kind {
		case Expression:
			s, err = newExpression(name, tr.Logic, tr.TargetColumn)
		case CustomFunction:
			s, err = newCustom(name, tr.Logic, tr.TargetColumn)
		case BuiltIn:
			s, err = newBuiltin(name, tr.Logic, tr.TargetColumn)
		}
		if err != nil {
			return nil, etlerr.Wrapf(etlerr.Config, "transform", err, "%s", name)
		}
		p.stages = append(p.stages, s)
	}
	return p, nil
}

// Len returns the number of compiled stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// Apply runs every stage over b. The returned batch owns its column list;
// row slices are updated in place.
func (p *Pipeline) Apply(b *batch.Batch) (*batch.Batch, error) {
	if len(p.stages) == 0 {
		return b, nil
	}
	out := &batch.Batch{Columns: slices.Clip(slices.Clone(b.Columns)), Rows: b.Rows}
	for _, s := range p.stages {
		if err := s.apply(out); err != nil {
			return nil, etlerr.Wrapf(etlerr.TransformExecution, "transform", err, "step %q", s.name())
		}
	}
	return out, nil
}
