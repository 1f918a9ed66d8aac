package quality

import (
	"github.com/rs/zerolog"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

// RuleResult is the outcome of one rule on one batch.
type RuleResult struct {
	Column     string
	Check      string
	Violations int
	// Skipped is set when the batch does not carry the rule's column.
	Skipped bool
}

// Report summarises one batch.
type Report struct {
	Rules []RuleResult
	// Dropped counts rows removed under the quarantine policy.
	Dropped int
}

// Evaluator applies a RuleSet to batches.
type Evaluator struct {
	set RuleSet
	log zerolog.Logger
}

// NewEvaluator returns an Evaluator logging through log.
func NewEvaluator(set RuleSet, log zerolog.Logger) *Evaluator {
	return &Evaluator{set: set, log: log.With().Str("component", "quality").Logger()}
}

// Evaluate runs every rule against b in order.
//
//   - warn: violations are logged, b is returned unchanged.
//   - halt: the first rule with a violation fails with QualityGateFailure.
//   - quarantine: rows flagged by any rule are dropped, order preserved.
//
// Rules naming a column b does not carry are skipped with a warning.
func (e *Evaluator) Evaluate(b *batch.Batch) (*batch.Batch, Report, error) {
	var rep Report
	if len(e.set.Rules) == 0 {
		return b, rep, nil
	}

	drop := make([]bool, b.Len())
	for _, r := range e.set.Rules {
		res := RuleResult{Column: r.Column, Check: r.Check.Name()}
		col := b.Index(r.Column)
		if col < 0 {
			e.log.Warn().Str("column", r.Column).Str("check", res.Check).Msg("column not found, rule skipped")
			res.Skipped = true
			rep.Rules = append(rep.Rules, res)
			continue
		}

		mask := r.Check.violations(b.Column(col))
		for i, bad := range mask {
			if bad {
				res.Violations++
				drop[i] = true
			}
		}
		rep.Rules = append(rep.Rules, res)
		if res.Violations == 0 {
			continue
		}

		e.log.Error().Str("column", r.Column).Str("check", res.Check).Int("rows", res.Violations).Msg(r.Message)
		if e.set.Policy == Halt {
			return nil, rep, etlerr.New(etlerr.QualityGateFailure, "quality", "halted due to data quality failures: %s", r.Message)
		}
	}

	if e.set.Policy != Quarantine {
		return b, rep, nil
	}
	out := b.Filter(drop)
	rep.Dropped = b.Len() - out.Len()
	if rep.Dropped > 0 {
		e.log.Info().Int("rows", rep.Dropped).Msg("quarantined rows")
	}
	return out, rep, nil
}
