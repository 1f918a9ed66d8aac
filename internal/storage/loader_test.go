package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
)

func rowsOf(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{i, "x"}
	}
	return rows
}

// TestLoadChunks_Basic verifies rows are grouped into chunks and the total
// equals the sum of all copyFn returns.
func TestLoadChunks_Basic(t *testing.T) {
	t.Parallel()

	var sizes []int
	copyFn := func(_ context.Context, rows [][]any) (int64, error) {
		sizes = append(sizes, len(rows))
		return int64(len(rows)), nil
	}

	total, err := LoadChunks(context.Background(), rowsOf(7), 3, copyFn, zerolog.Nop())
	require.NoError(t, err)
	require.EqualValues(t, 7, total)
	require.Equal(t, []int{3, 3, 1}, sizes)
}

// TestLoadChunks_ErrorPropagation ensures the first copy error stops the load.
func TestLoadChunks_ErrorPropagation(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("copy failed")
	calls := 0
	copyFn := func(_ context.Context, rows [][]any) (int64, error) {
		calls++
		if calls == 2 {
			return 0, wantErr
		}
		return int64(len(rows)), nil
	}

	total, err := LoadChunks(context.Background(), rowsOf(5), 2, copyFn, zerolog.Nop())
	require.ErrorIs(t, err, wantErr)
	require.EqualValues(t, 2, total)
	require.Equal(t, 2, calls)
}

func TestLoadChunks_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadChunks(ctx, rowsOf(3), 2, func(context.Context, [][]any) (int64, error) {
		t.Fatal("copyFn called after cancel")
		return 0, nil
	}, zerolog.Nop())
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadChunks_BadArgs(t *testing.T) {
	t.Parallel()

	_, err := LoadChunks(context.Background(), nil, 0, nil, zerolog.Nop())
	require.Error(t, err)
	_, err = LoadChunks(context.Background(), nil, 1, nil, zerolog.Nop())
	require.Error(t, err)
}

type fakeSink struct{ target string }

func (fakeSink) Bootstrap(context.Context, schema.Table) error { return nil }
func (fakeSink) Write(_ context.Context, b *batch.Batch) (int64, error) {
	return int64(b.Len()), nil
}
func (fakeSink) Commit(context.Context) error { return nil }
func (fakeSink) Close() error                 { return nil }
func (f fakeSink) Target() string             { return f.target }

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, err := ParseKind(" Relational ")
	require.NoError(t, err)
	require.Equal(t, KindRelational, k)
	k, err = ParseKind("lake")
	require.NoError(t, err)
	require.Equal(t, "lake", k.String())

	_, err = ParseKind("kafka")
	require.ErrorIs(t, err, etlerr.Config)
}

// Not parallel: mutates the package registry.
func TestRegisterAndOpen(t *testing.T) {
	Register(KindLake, func(context.Context, *config.Job, zerolog.Logger) (Sink, error) {
		return fakeSink{target: "s3://b/k.parquet"}, nil
	})
	t.Cleanup(func() {
		mu.Lock()
		delete(factories, KindLake)
		mu.Unlock()
	})

	require.Contains(t, Kinds(), KindLake)

	s, err := Open(context.Background(), &config.Job{Target: &config.TargetConfig{Kind: "lake"}}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "s3://b/k.parquet", s.Target())

	_, err = Open(context.Background(), &config.Job{}, zerolog.Nop())
	require.ErrorIs(t, err, etlerr.Config)
}
