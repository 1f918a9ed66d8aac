// Package config defines the job document model for the ETL engine and the
// helpers that load, default and lint it.
//
// A job document is YAML (JSON is accepted too, being a YAML subset):
//
//	job: customers
//	source:
//	  format: csv
//	  path: ./customers.csv
//	target:
//	  kind: relational
//	  relational: { driver: postgres, dsn: "postgres://...", table: customers }
//	data_quality:
//	  on_failure: quarantine
//	  rules:
//	    - { column: age, check: range, min: 0, max: 120 }
//	transformations:
//	  - { name: bonus, type: expression, logic: "salary * 0.1", target_column: bonus }
//	template_path: ./customers.template.yaml
//
// Everything in this package is read-only once loaded; the run never mutates
// a Job.
package config

// Job is the top-level object decoded from a job document.
type Job struct {
	// Name labels metrics and job-state records. Defaults to the source file
	// base name.
	Name string `yaml:"job"`

	// Source and Target are pointers so a document that omits either key can
	// be told apart from one that sets it empty.
	Source *SourceConfig `yaml:"source"`
	Target *TargetConfig `yaml:"target"`

	DataQuality     DataQuality      `yaml:"data_quality"`
	Mappings        []Mapping        `yaml:"mappings"`
	Transformations []Transformation `yaml:"transformations"`

	// TemplatePath points at a template document, resolved relative to the
	// job document. Template is the inline alternative; the inline form wins.
	TemplatePath string    `yaml:"template_path"`
	Template     *Template `yaml:"template"`

	Runtime Runtime `yaml:"runtime"`
}

// SourceConfig describes the flat file to ingest.
type SourceConfig struct {
	// Format is one of csv, json, jsonl, parquet.
	Format string `yaml:"format"`
	// Path is a local path, or an object key when ObjectStore is set.
	Path string `yaml:"path"`
	// Options is interpreted by the parser for Format. For CSV:
	//   comma (string), has_header (bool), trim_space (bool),
	//   lazy_quotes (bool), normalize_headers (bool)
	Options Options `yaml:"options"`
	// ObjectStore, when set, reads Path from a bucket instead of local disk.
	ObjectStore *ObjectStore `yaml:"object_store"`
}

// ObjectStore carries S3-compatible connection settings.
type ObjectStore struct {
	EndpointURL string `yaml:"endpoint_url"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Bucket      string `yaml:"bucket"`
	Region      string `yaml:"region"`
	Secure      bool   `yaml:"secure"`
}

// TargetConfig selects one sink.
type TargetConfig struct {
	// Kind is relational or lake.
	Kind       string            `yaml:"kind"`
	Relational *RelationalTarget `yaml:"relational"`
	Lake       *LakeTarget       `yaml:"lake"`
}

// RelationalTarget configures the SQL sink.
type RelationalTarget struct {
	// Driver is one of postgres, sqlite, mssql, mysql.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Table defaults to the template entity name, then the source file name.
	Table  string `yaml:"table"`
	Schema string `yaml:"schema"`
	// Mode is auto, recreate or create_if_absent. Auto recreates the table
	// for ad-hoc runs and creates it only when absent for template runs.
	Mode string `yaml:"mode"`
	// BatchSize caps rows per INSERT statement (default 1000).
	BatchSize int `yaml:"batch_size"`
}

// LakeTarget configures the Parquet object sink.
type LakeTarget struct {
	Bucket    string `yaml:"bucket"`
	KeyPrefix string `yaml:"key_prefix"`
	// Location is the s3://bucket/prefix (or s3a://) shorthand for Bucket
	// and KeyPrefix.
	Location    string `yaml:"location"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	EndpointURL string `yaml:"endpoint_url"`
	Region      string `yaml:"region"`
	Secure      bool   `yaml:"secure"`
}

// DataQuality holds the ordered rules and the failure policy.
type DataQuality struct {
	// OnFailure is warn (default), halt or quarantine.
	OnFailure string        `yaml:"on_failure"`
	Rules     []QualityRule `yaml:"rules"`
}

// QualityRule is one declarative check on one column.
type QualityRule struct {
	Column string `yaml:"column"`
	// Check is not_null, range, regex or unique.
	Check   string   `yaml:"check"`
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	Pattern string   `yaml:"pattern"`
	Message string   `yaml:"message"`
}

// Mapping renames Source to Target.
type Mapping struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Transformation is one declared step. Type is expression, custom_function
// (python is accepted as an alias) or built_in.
type Transformation struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	Logic        string `yaml:"logic"`
	TargetColumn string `yaml:"target_column"`
}

// Runtime holds run tuning.
type Runtime struct {
	// ChunkSize is rows per batch. Zero picks the sink default.
	ChunkSize int `yaml:"chunk_size"`
}

// Template is a reusable column contract: declared types, constraints and
// per-column split transforms.
type Template struct {
	Name             string           `yaml:"name"`
	TargetEntityName string           `yaml:"target_entity_name"`
	Columns          []TemplateColumn `yaml:"columns"`
	// IntegerPromotionExempt lists primary-key column names that keep a
	// declared INTEGER type. Defaults to business_id.
	IntegerPromotionExempt []string `yaml:"integer_promotion_exempt"`
}

// TemplateColumn declares one output column.
type TemplateColumn struct {
	Name         string           `yaml:"name"`
	DataType     string           `yaml:"data_type"`
	Constraints  Constraints      `yaml:"constraints"`
	QualityRules Options          `yaml:"quality_rules"`
	Transform    *ColumnTransform `yaml:"transform"`
}

// Constraints are the DDL-facing parts of a template column.
type Constraints struct {
	PGType     string `yaml:"pg_type"`
	NativeType string `yaml:"native_type"`
	PrimaryKey bool   `yaml:"primary_key"`
	NotNull    bool   `yaml:"not_null"`
}

// ColumnTransform is a template-driven transform. Only op=split exists.
type ColumnTransform struct {
	Op           string        `yaml:"op"`
	SourceColumn string        `yaml:"source_column"`
	Delimiter    string        `yaml:"delimiter"`
	Outputs      []SplitOutput `yaml:"outputs"`
}

// SplitOutput names one part of a split. Cast is "", int or float.
type SplitOutput struct {
	Name  string `yaml:"name"`
	Index int    `yaml:"index"`
	Cast  string `yaml:"cast"`
}

// DeclaredType returns the native type the template pins for the column,
// or "" when inference decides.
func (c TemplateColumn) DeclaredType() string {
	if c.Constraints.PGType != "" {
		return c.Constraints.PGType
	}
	return c.Constraints.NativeType
}

// IsPrimaryKey reports a primary key declared either as a constraint or as
// a quality flag.
func (c TemplateColumn) IsPrimaryKey() bool {
	return c.Constraints.PrimaryKey || c.QualityRules.Bool("primary_key", false)
}

// IsNotNull reports a not-null requirement declared either way.
func (c TemplateColumn) IsNotNull() bool {
	return c.Constraints.NotNull || c.QualityRules.Bool("not_null", false)
}

// PromotionExempt returns the primary-key names that keep INTEGER.
func (t *Template) PromotionExempt() []string {
	if t == nil || len(t.IntegerPromotionExempt) == 0 {
		return []string{"business_id"}
	}
	return t.IntegerPromotionExempt
}
