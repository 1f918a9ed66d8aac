package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

func TestReadJobList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "shared", "orders.yml")
	content := `
# nightly loads
jobs/customers.yaml
   # paused: jobs/orders.yaml
jobs/products.JSON

   jobs/customers.yaml
` + abs + "\n"
	path := filepath.Join(dir, "jobs.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := ReadJobList(path)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "jobs", "customers.yaml"),
		filepath.Join(dir, "jobs", "products.JSON"),
		abs,
	}, got)
}

func TestReadJobListErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{name: "csv entry", content: "a.yaml\n\ndata/customers.csv\n", wantMsg: `jobs.txt:3: "data/customers.csv" is not a job document`},
		{name: "no extension", content: "# header\njobs/customers\n", wantMsg: `jobs.txt:2:`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "jobs.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := ReadJobList(path)
			require.ErrorIs(t, err, etlerr.Config)
			require.ErrorContains(t, err, tt.wantMsg)
		})
	}

	missing := filepath.Join(t.TempDir(), "missing.txt")
	_, err := ReadJobList(missing)
	require.ErrorIs(t, err, etlerr.Config)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.ErrorContains(t, err, missing)
}
