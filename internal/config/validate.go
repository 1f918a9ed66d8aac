package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the document
// (e.g. "data_quality.rules[1].pattern").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var (
	knownFormats   = set("csv", "json", "jsonl", "parquet")
	knownDrivers   = set("postgres", "sqlite", "mssql", "mysql")
	knownModes     = set("auto", "recreate", "create_if_absent")
	knownPolicies  = set("warn", "halt", "quarantine")
	knownChecks    = set("not_null", "range", "regex", "unique")
	knownTypes     = set("expression", "custom_function", "python", "built_in")
	knownBuiltins  = set("trim", "trim_and_uppercase", "uppercase", "lowercase", "strip_accents")
	knownSplitCast = set("", "int", "float")
)

// ValidateJob lints a decoded job. It never mutates the job.
func ValidateJob(j *Job) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if j.Source == nil {
		add(SeverityError, "source", "missing required configuration key: source")
	} else {
		validateSource(j.Source, add)
	}
	if j.Target == nil {
		add(SeverityError, "target", "missing required configuration key: target")
	} else {
		validateTarget(j.Target, add)
	}
	if strings.TrimSpace(j.Name) == "" {
		add(SeverityWarning, "job", "job is empty; metrics and job records will be unlabeled")
	}

	validateQuality(j.DataQuality, add)

	targets := map[string]int{}
	for i, m := range j.Mappings {
		p := fmt.Sprintf("mappings[%d]", i)
		if m.Source == "" || m.Target == "" {
			add(SeverityError, p, "mapping needs both source and target")
			continue
		}
		if prev, dup := targets[m.Target]; dup {
			add(SeverityWarning, p+".target", "target %q also produced by mappings[%d]", m.Target, prev)
		}
		targets[m.Target] = i
	}

	for i, t := range j.Transformations {
		validateTransformation(fmt.Sprintf("transformations[%d]", i), t, add)
	}

	if j.Template != nil {
		validateTemplate(j.Template, add)
	}

	if j.Runtime.ChunkSize < 0 {
		add(SeverityError, "runtime.chunk_size", "chunk_size must be >= 0")
	}
	return issues
}

type addFn func(sev IssueSeverity, path, format string, args ...any)

func validateSource(s *SourceConfig, add addFn) {
	if _, ok := knownFormats[s.Format]; !ok {
		add(SeverityError, "source.format", "unsupported format %q (want csv, json, jsonl or parquet)", s.Format)
	}
	if strings.TrimSpace(s.Path) == "" {
		add(SeverityError, "source.path", "source requires a non-empty path")
	}
	if st := s.ObjectStore; st != nil {
		if st.Bucket == "" {
			add(SeverityError, "source.object_store.bucket", "object store source requires a bucket")
		}
		if st.EndpointURL == "" {
			add(SeverityError, "source.object_store.endpoint_url", "object store source requires an endpoint")
		}
	}
}

func validateTarget(t *TargetConfig, add addFn) {
	switch t.Kind {
	case "relational":
		r := t.Relational
		if r == nil {
			add(SeverityError, "target.relational", "relational target requires a relational block")
			return
		}
		if _, ok := knownDrivers[r.Driver]; !ok {
			add(SeverityError, "target.relational.driver", "unknown driver %q", r.Driver)
		}
		if strings.TrimSpace(r.DSN) == "" {
			add(SeverityError, "target.relational.dsn", "dsn must not be empty")
		}
		if _, ok := knownModes[r.Mode]; !ok && r.Mode != "" {
			add(SeverityError, "target.relational.mode", "unknown mode %q", r.Mode)
		}
		if r.BatchSize < 0 {
			add(SeverityError, "target.relational.batch_size", "batch_size must be >= 0")
		}
	case "lake":
		l := t.Lake
		if l == nil {
			add(SeverityError, "target.lake", "lake target requires a lake block")
			return
		}
		if l.Bucket == "" && l.Location == "" {
			add(SeverityError, "target.lake", "lake target requires bucket or location")
		}
		if l.Location != "" && !strings.HasPrefix(l.Location, "s3://") && !strings.HasPrefix(l.Location, "s3a://") {
			add(SeverityError, "target.lake.location", "location must start with s3:// or s3a://")
		}
		if l.EndpointURL == "" {
			add(SeverityError, "target.lake.endpoint_url", "endpoint_url must not be empty")
		}
	default:
		add(SeverityError, "target.kind", "unknown target kind %q (want relational or lake)", t.Kind)
	}
}

func validateQuality(dq DataQuality, add addFn) {
	if _, ok := knownPolicies[dq.OnFailure]; !ok && dq.OnFailure != "" {
		add(SeverityError, "data_quality.on_failure", "unknown policy %q (want warn, halt or quarantine)", dq.OnFailure)
	}
	for i, r := range dq.Rules {
		p := fmt.Sprintf("data_quality.rules[%d]", i)
		if r.Column == "" {
			add(SeverityError, p+".column", "rule column must not be empty")
		}
		if _, ok := knownChecks[r.Check]; !ok {
			add(SeverityError, p+".check", "unknown check %q", r.Check)
			continue
		}
		switch r.Check {
		case "range":
			if r.Min == nil && r.Max == nil {
				add(SeverityError, p, "range check needs min or max")
			}
			if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				add(SeverityError, p, "range min %v exceeds max %v", *r.Min, *r.Max)
			}
		case "regex":
			if r.Pattern == "" {
				add(SeverityError, p+".pattern", "regex check needs a pattern")
			} else if _, err := regexp.Compile(r.Pattern); err != nil {
				add(SeverityError, p+".pattern", "invalid pattern: %v", err)
			}
		}
	}
}

func validateTransformation(p string, t Transformation, add addFn) {
	if _, ok := knownTypes[t.Type]; !ok {
		add(SeverityError, p+".type", "unknown transformation type %q", t.Type)
		return
	}
	switch t.Type {
	case "expression", "custom_function", "python":
		if strings.TrimSpace(t.Logic) == "" {
			add(SeverityError, p+".logic", "%s transformation needs logic", t.Type)
		}
		if t.TargetColumn == "" {
			add(SeverityError, p+".target_column", "%s transformation needs target_column", t.Type)
		}
		if strings.Contains(t.Logic, "def ") {
			add(SeverityError, p+".logic", "function definitions are not supported; write a single expression")
		}
	case "built_in":
		if _, ok := knownBuiltins[t.Logic]; !ok {
			add(SeverityError, p+".logic", "unknown built-in %q", t.Logic)
		}
	}
}

func validateTemplate(t *Template, add addFn) {
	seen := map[string]bool{}
	for i, c := range t.Columns {
		p := fmt.Sprintf("template.columns[%d]", i)
		if c.Name == "" {
			add(SeverityError, p+".name", "template column name must not be empty")
		} else if seen[c.Name] {
			add(SeverityError, p+".name", "duplicate template column %q", c.Name)
		}
		seen[c.Name] = true

		tr := c.Transform
		if tr == nil {
			continue
		}
		if tr.Op != "split" {
			add(SeverityError, p+".transform.op", "unknown template transform %q", tr.Op)
			continue
		}
		if tr.Delimiter == "" || len(tr.Outputs) == 0 {
			add(SeverityError, p+".transform", "split needs a delimiter and outputs")
		}
		for k, o := range tr.Outputs {
			if _, ok := knownSplitCast[o.Cast]; !ok {
				add(SeverityError, fmt.Sprintf("%s.transform.outputs[%d].cast", p, k), "unknown cast %q", o.Cast)
			}
			if o.Index < 0 {
				add(SeverityError, fmt.Sprintf("%s.transform.outputs[%d].index", p, k), "index must be >= 0")
			}
		}
	}
}

// Err folds the error-severity issues into a single ConfigError, or nil.
func Err(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return etlerr.Wrap(etlerr.Config, "config", errors.Join(errs...))
}

func set(vals ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}
