package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func customersJob(t *testing.T, dir string) string {
	t.Helper()
	src := writeFile(t, dir, "customers.csv", "name,age,email\n john ,30,john@example.com\nbob,-5,bob@example.com\nann,41,ann@example.com\n")
	return writeFile(t, dir, "customers.yaml", fmt.Sprintf(`job: customers
source:
  format: csv
  path: %s
target:
  kind: relational
  relational:
    driver: sqlite
    dsn: %s
data_quality:
  on_failure: quarantine
  rules:
    - {column: age, check: range, min: 0, max: 120}
transformations:
  - {name: clean, type: built_in, logic: trim_and_uppercase, target_column: name}
`, src, filepath.Join(dir, "warehouse.db")))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := customersJob(t, dir)
	bad := writeFile(t, dir, "bad.yaml", `source: {format: xml, path: a.xml}
target: {kind: relational, relational: {driver: oracle, dsn: x}}
`)

	out, err := execute(t, "validate", "-c", good)
	require.NoError(t, err)
	require.Contains(t, out, good+": ok")

	out, err = execute(t, "validate", "-c", good, "-c", bad)
	require.Error(t, err)
	require.Contains(t, out, `unsupported format "xml"`)
	require.Contains(t, out, `unknown driver "oracle"`)
}

func TestValidateJobsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	customersJob(t, dir)
	list := writeFile(t, dir, "jobs.txt", "# nightly\ncustomers.yaml\n\n")

	out, err := execute(t, "validate", "--jobs-file", list)
	require.NoError(t, err)
	require.Contains(t, out, filepath.Join(dir, "customers.yaml")+": ok")

	_, err = execute(t, "validate")
	require.ErrorContains(t, err, "no job documents")
}

func TestRunThenStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	job := customersJob(t, dir)
	state := "sqlite://" + filepath.Join(dir, "state.db")

	out, err := execute(t, "--state-dsn", state, "run", "-c", job)
	require.NoError(t, err)
	require.Contains(t, out, "status=completed")
	require.Contains(t, out, "target=customers")
	require.Contains(t, out, "read=3 quarantined=1 inserted=2 columns=3")

	m := regexp.MustCompile(`run=(\S+)`).FindStringSubmatch(out)
	require.Len(t, m, 2)

	out, err = execute(t, "--state-dsn", state, "status", m[1])
	require.NoError(t, err)
	require.Regexp(t, `state:\s+completed`, out)
	require.Regexp(t, `inserted:\s+2`, out)
	require.Regexp(t, `2\s+running\s+completed`, out)
}

func TestRunRejectsInvalidJobBeforeRunning(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := customersJob(t, dir)
	bad := writeFile(t, dir, "bad.yaml", "source: {format: csv, path: a.csv}\ntarget: {kind: lake, lake: {}}\n")

	out, err := execute(t, "run", "-c", good, "-c", bad)
	require.ErrorContains(t, err, "bad.yaml is invalid")
	require.NotContains(t, out, "status=")
	_, statErr := os.Stat(filepath.Join(dir, "warehouse.db"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRunReportsFailedJob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	job := writeFile(t, dir, "missing.yaml", fmt.Sprintf(`source: {format: csv, path: %s}
target: {kind: relational, relational: {driver: sqlite, dsn: %s}}
`, filepath.Join(dir, "nope.csv"), filepath.Join(dir, "w.db")))

	out, err := execute(t, "run", "-c", job)
	require.Error(t, err)
	require.Contains(t, out, "job=nope")
	require.Contains(t, out, "status=failed")
}

func TestInfer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "people.csv", "name,age,score\nann,41,1.5\nbob,29,2\n")

	out, err := execute(t, "infer", "--path", src)
	require.NoError(t, err)
	require.Regexp(t, `name\s+VARCHAR\(50\)`, out)
	require.Regexp(t, `age\s+BIGINT`, out)
	require.Regexp(t, `score\s+DOUBLE PRECISION`, out)
	require.Contains(t, out, "2 rows sampled")
}

func TestUnknownMetricsBackend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := execute(t, "--metrics-backend", "statsd", "run", "-c", customersJob(t, dir))
	require.ErrorContains(t, err, `unknown metrics backend "statsd"`)
}
