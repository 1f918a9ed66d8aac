package file

import (
	"bufio"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

// jobDocExts are the extensions a listed job document may carry. JSON is a
// YAML subset, so the same decoder reads both.
var jobDocExts = []string{".yaml", ".yml", ".json"}

// ReadJobList reads a jobs file: one job document path per line, '#'
// comments and blank lines ignored. Relative entries resolve against the
// jobs file's directory. An entry listed twice is returned once.
//
// Errors name the jobs file and, for bad entries, the line.
func ReadJobList(path string) ([]string, error) {
	const op = "jobs-file"
	f, err := os.Open(path)
	if err != nil {
		return nil, etlerr.Wrapf(etlerr.Config, op, err, "open %s", path)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	seen := map[string]bool{}
	var out []string
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if ext := strings.ToLower(filepath.Ext(line)); !slices.Contains(jobDocExts, ext) {
			return nil, etlerr.New(etlerr.Config, op, "%s:%d: %q is not a job document (want %s)",
				path, n, line, strings.Join(jobDocExts, ", "))
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(dir, line)
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, etlerr.Wrapf(etlerr.Config, op, err, "read %s", path)
	}
	return out, nil
}
