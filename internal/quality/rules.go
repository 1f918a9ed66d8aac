// Package quality evaluates row-level data-quality rules against a batch and
// applies the run's failure policy.
package quality

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
)

// Policy says what happens to a batch with violations.
type Policy string

const (
	// Warn logs violation counts and keeps every row.
	Warn Policy = "warn"
	// Halt fails the run on the first rule with a violation.
	Halt Policy = "halt"
	// Quarantine drops every row flagged by any rule.
	Quarantine Policy = "quarantine"
)

// Check is one of NotNull, Range, Regex or Unique. The set is closed: the
// unexported method keeps other packages from adding kinds.
type Check interface {
	// Name is the check's document name.
	Name() string
	// violations flags, per value, whether it fails the check.
	violations(values []any) []bool
}

// NotNull flags null values.
type NotNull struct{}

// Range flags numeric values outside [Min, Max] and non-numeric values.
// Either bound may be nil. Nulls are not flagged.
type Range struct {
	Min, Max *float64
}

// Regex flags values whose string form does not match Pattern in full.
// A null's string form is the empty string.
type Regex struct {
	Pattern string
	re      *regexp.Regexp
}

// Unique flags every value that occurs more than once in the batch,
// including the first occurrence. Nulls compare equal to each other.
type Unique struct{}

func (NotNull) Name() string { return "not_null" }
func (Range) Name() string   { return "range" }
func (Regex) Name() string   { return "regex" }
func (Unique) Name() string  { return "unique" }

func (NotNull) violations(values []any) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = schema.IsNull(v)
	}
	return out
}

func (r Range) violations(values []any) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		if schema.IsNull(v) {
			continue
		}
		f, ok := schema.ToFloat(v)
		if !ok {
			out[i] = true
			continue
		}
		out[i] = (r.Min != nil && f < *r.Min) || (r.Max != nil && f > *r.Max)
	}
	return out
}

func (r Regex) violations(values []any) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = !r.re.MatchString(schema.FormatValue(v))
	}
	return out
}

func (Unique) violations(values []any) []bool {
	first := make(map[xxh3.Uint128]int, len(values))
	out := make([]bool, len(values))
	for i, v := range values {
		h := xxh3.HashString128(uniqueKey(v))
		if j, seen := first[h]; seen {
			out[i] = true
			out[j] = true
			continue
		}
		first[h] = i
	}
	return out
}

// uniqueKey tags a value with its class so 1 and "1" differ while 1 and
// 1.0 collide.
func uniqueKey(v any) string {
	if schema.IsNull(v) {
		return "n:"
	}
	switch x := v.(type) {
	case string:
		return "s:" + x
	case bool:
		return "b:" + strconv.FormatBool(x)
	}
	if i, ok := schema.ToInt(v); ok {
		return "i:" + strconv.FormatInt(i, 10)
	}
	if f, ok := schema.ToFloat(v); ok {
		return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "o:" + schema.FormatValue(v)
}

// Rule binds a check to a column.
type Rule struct {
	Column  string
	Check   Check
	Message string
}

// RuleSet is an ordered list of rules and the policy that governs them.
type RuleSet struct {
	Policy Policy
	Rules  []Rule
}

// Build compiles the document form. Regex patterns are compiled here, once
// per run.
func Build(dq config.DataQuality) (RuleSet, error) {
	set := RuleSet{Policy: Warn}
	switch Policy(dq.OnFailure) {
	case "", Warn:
	case Halt:
		set.Policy = Halt
	case Quarantine:
		set.Policy = Quarantine
	default:
		return RuleSet{}, etlerr.New(etlerr.Config, "quality", "unknown policy %q", dq.OnFailure)
	}

	for i, r := range dq.Rules {
		var c Check
		switch r.Check {
		case "not_null":
			c = NotNull{}
		case "range":
			if r.Min == nil && r.Max == nil {
				return RuleSet{}, etlerr.New(etlerr.Config, "quality", "rules[%d]: range needs min or max", i)
			}
			c = Range{Min: r.Min, Max: r.Max}
		case "regex":
			re, err := regexp.Compile(`^(?:` + r.Pattern + `)$`)
			if err != nil || r.Pattern == "" {
				return RuleSet{}, etlerr.New(etlerr.Config, "quality", "rules[%d]: invalid pattern %q", i, r.Pattern)
			}
			c = Regex{Pattern: r.Pattern, re: re}
		case "unique":
			c = Unique{}
		default:
			return RuleSet{}, etlerr.New(etlerr.Config, "quality", "rules[%d]: unknown check %q", i, r.Check)
		}

		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("Failed check %s on %s", r.Check, r.Column)
		}
		if rg, ok := c.(Range); ok {
			msg += describeBounds(rg)
		}
		set.Rules = append(set.Rules, Rule{Column: r.Column, Check: c, Message: msg})
	}
	return set, nil
}

func describeBounds(r Range) string {
	format := func(f float64) string {
		if f == math.Trunc(f) {
			return strconv.FormatFloat(f, 'f', 0, 64)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf(" (min=%s, max=%s)", format(*r.Min), format(*r.Max))
	case r.Min != nil:
		return fmt.Sprintf(" (min=%s)", format(*r.Min))
	default:
		return fmt.Sprintf(" (max=%s)", format(*r.Max))
	}
}
