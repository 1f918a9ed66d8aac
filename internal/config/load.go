package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

// Chunk size defaults per sink kind.
const (
	DefaultRelationalChunkSize = 10_000
	DefaultLakeChunkSize       = 50_000
	DefaultInsertBatchSize     = 1_000
)

// LoadJob reads and parses the job document at path. A referenced template
// is loaded relative to the job document's directory.
func LoadJob(path string) (*Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, etlerr.Wrapf(etlerr.Config, "config", err, "read job %s", path)
	}
	job, err := ParseJob(raw)
	if err != nil {
		return nil, err
	}
	if job.Template == nil && job.TemplatePath != "" {
		tp := job.TemplatePath
		if !filepath.IsAbs(tp) {
			tp = filepath.Join(filepath.Dir(path), tp)
		}
		t, err := LoadTemplate(tp)
		if err != nil {
			return nil, err
		}
		job.Template = t
	}
	return job, nil
}

// ParseJob decodes a job document and applies defaults. A document without
// a source or target key is rejected.
func ParseJob(raw []byte) (*Job, error) {
	var job Job
	if err := decode(bytes.NewReader(raw), &job); err != nil {
		return nil, etlerr.Wrapf(etlerr.Config, "config", err, "parse job document")
	}
	if job.Source == nil {
		return nil, etlerr.New(etlerr.Config, "config", "missing required configuration key: source")
	}
	if job.Target == nil {
		return nil, etlerr.New(etlerr.Config, "config", "missing required configuration key: target")
	}
	job.applyDefaults()
	return &job, nil
}

// LoadTemplate reads a template document.
func LoadTemplate(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, etlerr.Wrapf(etlerr.Config, "config", err, "open template %s", path)
	}
	defer f.Close()

	var t Template
	if err := decode(f, &t); err != nil {
		return nil, etlerr.Wrapf(etlerr.Config, "config", err, "parse template %s", path)
	}
	return &t, nil
}

func decode(r io.Reader, v any) error {
	err := yaml.NewDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("empty document")
	}
	return err
}

func (j *Job) applyDefaults() {
	j.Source.Format = strings.ToLower(strings.TrimSpace(j.Source.Format))
	j.Target.Kind = strings.ToLower(strings.TrimSpace(j.Target.Kind))
	if j.Name == "" && j.Source.Path != "" {
		base := filepath.Base(j.Source.Path)
		j.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if j.DataQuality.OnFailure == "" {
		j.DataQuality.OnFailure = "warn"
	}
	if r := j.Target.Relational; r != nil {
		if r.Mode == "" {
			r.Mode = "auto"
		}
		if r.BatchSize == 0 {
			r.BatchSize = DefaultInsertBatchSize
		}
	}
}

// ChunkSize returns the configured chunk size or the default for the sink.
func (j *Job) ChunkSize() int {
	if j.Runtime.ChunkSize > 0 {
		return j.Runtime.ChunkSize
	}
	if j.Target != nil && j.Target.Kind == "lake" {
		return DefaultLakeChunkSize
	}
	return DefaultRelationalChunkSize
}
