package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YogovAI/Product-Development-Yogov/internal/datasource"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

func TestLocalOpen(t *testing.T) {
	t.Parallel()

	type tc struct {
		name        string
		prepare     func(t *testing.T) string
		makeCtx     func() context.Context
		wantErrIs   []error
		wantContent string
	}

	writeFile := func(t *testing.T, payload string) string {
		t.Helper()
		p := filepath.Join(t.TempDir(), "data.csv")
		require.NoError(t, os.WriteFile(p, []byte(payload), 0o644))
		return p
	}

	cases := []tc{
		{
			name:        "success_reads_content",
			prepare:     func(t *testing.T) string { return writeFile(t, "a,b\n1,2\n") },
			makeCtx:     context.Background,
			wantContent: "a,b\n1,2\n",
		},
		{
			name:      "missing_file_is_source_not_found",
			prepare:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.csv") },
			makeCtx:   context.Background,
			wantErrIs: []error{etlerr.SourceNotFound, os.ErrNotExist},
		},
		{
			name:    "pre_canceled_context_short_circuits",
			prepare: func(t *testing.T) string { return writeFile(t, "ignored") },
			makeCtx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErrIs: []error{context.Canceled},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			src := NewLocal(c.prepare(t))
			rc, err := src.Open(c.makeCtx())
			if len(c.wantErrIs) > 0 {
				require.Nil(t, rc)
				for _, target := range c.wantErrIs {
					require.ErrorIs(t, err, target)
				}
				return
			}
			require.NoError(t, err)
			defer rc.Close()

			_, seekable := rc.(datasource.Seekable)
			require.True(t, seekable)

			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.Equal(t, c.wantContent, string(got))
			require.Equal(t, "data.csv", src.Name())
		})
	}
}
