package transform

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
)

// rowVar exposes the whole row to custom functions: row["First Name"].
const rowVar = "row"

// builtins are the expr-lang builtins a transformation may call. Everything
// else is disabled.
var builtins = []string{
	"len", "upper", "lower", "trim", "trimPrefix", "trimSuffix",
	"abs", "round", "floor", "ceil", "int", "float", "string",
	"hasPrefix", "hasSuffix", "replace", "split", "indexOf",
}

// functions are defined here rather than taken from expr-lang.
var functions = map[string]func(params ...any) (any, error){
	"substr":   substr,
	"coalesce": coalesce,
}

var defRe = regexp.MustCompile(`(?m)^\s*def\s+\w+\s*\(`)

func compileOptions() []expr.Option {
	opts := []expr.Option{expr.DisableAllBuiltins()}
	for _, name := range builtins {
		opts = append(opts, expr.EnableBuiltin(name))
	}
	for name, fn := range functions {
		opts = append(opts, expr.Function(name, fn))
	}
	return opts
}

// compiled is a checked program and the columns it reads.
type compiled struct {
	program *vm.Program
	refs    []string
	usesRow bool
}

func compile(logic string) (*compiled, error) {
	logic = strings.TrimSpace(logic)
	if logic == "" {
		return nil, fmt.Errorf("empty logic")
	}
	if defRe.MatchString(logic) {
		return nil, fmt.Errorf("function definitions are not supported; write the logic as a single expression")
	}

	tree, err := parser.Parse(logic)
	if err != nil {
		return nil, err
	}
	refs := &identifiers{seen: map[string]bool{}, locals: map[string]bool{}}
	ast.Walk(&tree.Node, refs)

	program, err := expr.Compile(logic, compileOptions()...)
	if err != nil {
		return nil, err
	}

	c := &compiled{program: program}
	for _, name := range refs.names {
		switch {
		case refs.locals[name], slices.Contains(builtins, name):
		case name == rowVar:
			c.usesRow = true
		default:
			if _, fn := functions[name]; !fn {
				c.refs = append(c.refs, name)
			}
		}
	}
	return c, nil
}

// identifiers collects free names in first-appearance order.
type identifiers struct {
	names  []string
	seen   map[string]bool
	locals map[string]bool
}

func (v *identifiers) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if !v.seen[n.Value] {
			v.seen[n.Value] = true
			v.names = append(v.names, n.Value)
		}
	case *ast.VariableDeclaratorNode:
		v.locals[n.Name] = true
	}
}

func (c *compiled) indexes(b *batch.Batch) ([]int, error) {
	idx := make([]int, len(c.refs))
	for i, name := range c.refs {
		idx[i] = b.Index(name)
		if idx[i] < 0 {
			return nil, fmt.Errorf("unknown column %q", name)
		}
	}
	return idx, nil
}

// expression writes target from a null-propagating expression: a row with
// any referenced column null yields null.
type expression struct {
	step   string
	target string
	code   *compiled
}

func newExpression(step, logic, target string) (*expression, error) {
	if target == "" {
		return nil, fmt.Errorf("target_column is required")
	}
	c, err := compile(logic)
	if err != nil {
		return nil, err
	}
	if c.usesRow {
		return nil, fmt.Errorf("%q is only available to custom functions", rowVar)
	}
	return &expression{step: step, target: target, code: c}, nil
}

func (e *expression) name() string { return e.step }

func (e *expression) apply(b *batch.Batch) error {
	idx, err := e.code.indexes(b)
	if err != nil {
		return err
	}
	out := b.AddColumn(e.target)

	env := make(map[string]any, len(idx))
	for r, row := range b.Rows {
		null := false
		for i, name := range e.code.refs {
			v := row[idx[i]]
			if schema.IsNull(v) {
				null = true
				break
			}
			env[name] = v
		}
		if null {
			row[out] = nil
			continue
		}
		v, err := run(e.code.program, env)
		if err != nil {
			return fmt.Errorf("row %d: %w", r, err)
		}
		row[out] = v
	}
	return nil
}

// custom writes target from an expression that sees every column, nulls
// included, and the row as a map.
type custom struct {
	step   string
	target string
	code   *compiled
}

func newCustom(step, logic, target string) (*custom, error) {
	if target == "" {
		return nil, fmt.Errorf("target_column is required")
	}
	c, err := compile(logic)
	if err != nil {
		return nil, err
	}
	return &custom{step: step, target: target, code: c}, nil
}

func (c *custom) name() string { return c.step }

func (c *custom) apply(b *batch.Batch) error {
	if _, err := c.code.indexes(b); err != nil {
		return err
	}
	out := b.AddColumn(c.target)
	cols := slices.Clone(b.Columns)

	for r, row := range b.Rows {
		env := make(map[string]any, len(cols)+1)
		rec := make(map[string]any, len(cols))
		for i, name := range cols {
			v := row[i]
			if schema.IsNull(v) {
				v = nil
			}
			env[name] = v
			rec[name] = v
		}
		env[rowVar] = rec
		v, err := run(c.code.program, env)
		if err != nil {
			return fmt.Errorf("row %d: %w", r, err)
		}
		row[out] = v
	}
	return nil
}

func run(p *vm.Program, env map[string]any) (any, error) {
	v, err := expr.Run(p, env)
	if err != nil {
		return nil, err
	}
	return normalize(v)
}

// normalize narrows expression results to the value types batches carry.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int64, float64, time.Time:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case time.Duration:
		return x.String(), nil
	}
	return nil, fmt.Errorf("unsupported result type %T", v)
}

// substr(s, start[, length]) slices by rune. Out-of-range bounds clamp.
func substr(params ...any) (any, error) {
	if len(params) < 2 || len(params) > 3 {
		return nil, fmt.Errorf("substr: want 2 or 3 arguments, got %d", len(params))
	}
	if params[0] == nil {
		return nil, nil
	}
	s := []rune(schema.FormatValue(params[0]))
	start, ok := schema.ToInt(params[1])
	if !ok {
		return nil, fmt.Errorf("substr: start must be an integer")
	}
	end := int64(len(s))
	if len(params) == 3 {
		n, ok := schema.ToInt(params[2])
		if !ok || n < 0 {
			return nil, fmt.Errorf("substr: length must be a non-negative integer")
		}
		end = start + n
	}
	start = max(0, min(start, int64(len(s))))
	end = max(start, min(end, int64(len(s))))
	return string(s[start:end]), nil
}

// coalesce returns its first non-null argument.
func coalesce(params ...any) (any, error) {
	for _, p := range params {
		if !schema.IsNull(p) {
			return p, nil
		}
	}
	return nil, nil
}
