package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/jobs"
	parquetparser "github.com/YogovAI/Product-Development-Yogov/internal/parser/parquet"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage"
	_ "github.com/YogovAI/Product-Development-Yogov/internal/storage/all"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage/lake"
)

const employees = `name,age,email,salary
" john ",30,john@example.com,50000
alice,28,alice-at-example,40000
bob,-5,bob@example.com,30000
carol,32,carol@example.com,60000
`

func ptr(f float64) *float64 { return &f }

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func sqliteJob(src, db, policy string) *config.Job {
	return &config.Job{
		Name:   "employees",
		Source: &config.SourceConfig{Format: "csv", Path: src},
		Target: &config.TargetConfig{Kind: "relational", Relational: &config.RelationalTarget{
			Driver: "sqlite", DSN: db, Table: "employees", Mode: "recreate", BatchSize: 2,
		}},
		DataQuality: config.DataQuality{OnFailure: policy, Rules: []config.QualityRule{
			{Column: "age", Check: "range", Min: ptr(0), Max: ptr(120), Message: "age out of range"},
			{Column: "email", Check: "regex", Pattern: `^[^@\s]+@[^@\s]+\.[a-z]+$`, Message: "bad email"},
		}},
		Transformations: []config.Transformation{
			{Name: "bonus", Type: "expression", Logic: "salary * 0.1", TargetColumn: "bonus"},
			{Name: "clean_name", Type: "built_in", Logic: "trim_and_uppercase", TargetColumn: "name"},
		},
	}
}

func count(t *testing.T, db, table string) int {
	t.Helper()
	conn, err := sql.Open("sqlite", db)
	require.NoError(t, err)
	defer conn.Close()
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestRunQuarantineIntoSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := writeFile(t, "employees.csv", employees)
	db := filepath.Join(t.TempDir(), "etl.db")
	store := jobs.NewMemoryStore()
	r := NewRunner(store, zerolog.Nop())

	res, err := r.Run(ctx, Spec{Job: sqliteJob(src, db, "quarantine")})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "employees", res.Target)
	require.EqualValues(t, 4, res.RowsRead)
	require.EqualValues(t, 2, res.RowsQuarantined)
	require.EqualValues(t, 2, res.RowsInserted)
	require.Equal(t, []string{"name", "age", "email", "salary", "bonus"}, res.Columns)
	require.Equal(t, 5, res.ColumnCount())

	conn, err := sql.Open("sqlite", db)
	require.NoError(t, err)
	defer conn.Close()
	rows, err := conn.Query(`SELECT name, age, bonus FROM employees ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	type row struct {
		name  string
		age   int64
		bonus float64
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.name, &r.age, &r.bonus))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []row{{"JOHN", 30, 5000}, {"CAROL", 32, 6000}}, got)

	run, err := store.Get(ctx, res.RunID)
	require.NoError(t, err)
	require.Equal(t, jobs.Completed, run.State)
	require.EqualValues(t, 2, run.RowsInserted)
	require.Equal(t, "employees", run.Target)

	hist, err := store.History(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, jobs.Running, hist[0].To)
	require.Equal(t, jobs.Completed, hist[1].To)
}

func TestRowsWrittenIndependentOfChunkSize(t *testing.T) {
	t.Parallel()

	for _, policy := range []string{"warn", "quarantine"} {
		var written []int64
		for _, chunk := range []int{1, 3, 1000} {
			src := writeFile(t, "employees.csv", employees)
			db := filepath.Join(t.TempDir(), "etl.db")
			res, err := NewRunner(jobs.NewMemoryStore(), zerolog.Nop()).
				Run(context.Background(), Spec{Job: sqliteJob(src, db, policy), ChunkSize: chunk})
			require.NoError(t, err, "%s chunk=%d", policy, chunk)
			require.EqualValues(t, res.RowsInserted, count(t, db, "employees"))
			written = append(written, res.RowsInserted)
		}
		require.Equal(t, written[0], written[1], policy)
		require.Equal(t, written[0], written[2], policy)
	}
}

func TestHaltFailsRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := writeFile(t, "employees.csv", employees)
	db := filepath.Join(t.TempDir(), "etl.db")
	store := jobs.NewMemoryStore()

	res, err := NewRunner(store, zerolog.Nop()).Run(ctx, Spec{Job: sqliteJob(src, db, "halt")})
	require.Error(t, err)
	require.True(t, errors.Is(err, etlerr.QualityGateFailure))
	require.False(t, res.Success)
	require.Zero(t, res.RowsInserted)

	run, err2 := store.Get(ctx, res.RunID)
	require.NoError(t, err2)
	require.Equal(t, jobs.Failed, run.State)
	require.Equal(t, err.Error(), run.Message)
}

func TestSchemaDriftFailsRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := writeFile(t, "events.jsonl", `{"a":1,"b":2,"c":3}
{"a":4,"b":5,"d":6}
`)
	db := filepath.Join(t.TempDir(), "etl.db")
	job := &config.Job{
		Name:   "events",
		Source: &config.SourceConfig{Format: "jsonl", Path: src},
		Target: &config.TargetConfig{Kind: "relational", Relational: &config.RelationalTarget{Driver: "sqlite", DSN: db}},
	}
	store := jobs.NewMemoryStore()

	res, err := NewRunner(store, zerolog.Nop()).Run(ctx, Spec{Job: job, ChunkSize: 1})
	require.True(t, errors.Is(err, etlerr.SchemaMismatch), "got %v", err)
	require.False(t, res.Success)
	// Rows of earlier batches stay written.
	require.EqualValues(t, 1, res.RowsInserted)
	require.Equal(t, 1, count(t, db, "events"))

	run, err2 := store.Get(ctx, res.RunID)
	require.NoError(t, err2)
	require.Equal(t, jobs.Failed, run.State)
}

func TestInvalidJobFailsRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := jobs.NewMemoryStore()
	job := &config.Job{Name: "broken", Source: &config.SourceConfig{Format: "csv", Path: "x.csv"}}

	res, err := NewRunner(store, zerolog.Nop()).Run(ctx, Spec{Job: job})
	require.True(t, errors.Is(err, etlerr.Config), "got %v", err)

	run, err2 := store.Get(ctx, res.RunID)
	require.NoError(t, err2)
	require.Equal(t, jobs.Failed, run.State)
	require.Contains(t, run.Message, "target")
}

func TestMissingSourceFailsRun(t *testing.T) {
	t.Parallel()

	db := filepath.Join(t.TempDir(), "etl.db")
	job := sqliteJob(filepath.Join(t.TempDir(), "nope.csv"), db, "warn")

	_, err := NewRunner(jobs.NewMemoryStore(), zerolog.Nop()).Run(context.Background(), Spec{Job: job})
	require.True(t, errors.Is(err, etlerr.SourceNotFound), "got %v", err)
}

func TestEmptySourceCompletes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := writeFile(t, "empty.csv", "name,age\n")
	db := filepath.Join(t.TempDir(), "etl.db")
	job := &config.Job{
		Name:   "empty",
		Source: &config.SourceConfig{Format: "csv", Path: src},
		Target: &config.TargetConfig{Kind: "relational", Relational: &config.RelationalTarget{Driver: "sqlite", DSN: db}},
	}
	store := jobs.NewMemoryStore()

	res, err := NewRunner(store, zerolog.Nop()).Run(ctx, Spec{Job: job})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Zero(t, res.RowsInserted)
	require.Zero(t, res.Batches)

	run, err := store.Get(ctx, res.RunID)
	require.NoError(t, err)
	require.Equal(t, jobs.Completed, run.State)
}

type fakeUploader struct {
	bucket, key string
	data        []byte
}

func (f *fakeUploader) Upload(_ context.Context, bucket, key, path, _ string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	f.bucket, f.key, f.data = bucket, key, data
	return int64(len(data)), nil
}

func TestRunIntoLake(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := writeFile(t, "Employees.csv", employees)
	up := &fakeUploader{}
	job := &config.Job{
		Name:   "employees",
		Source: &config.SourceConfig{Format: "csv", Path: src},
		Target: &config.TargetConfig{Kind: "lake", Lake: &config.LakeTarget{
			Bucket: "lake", KeyPrefix: "raw", EndpointURL: "localhost:9000",
		}},
		DataQuality: config.DataQuality{OnFailure: "quarantine", Rules: []config.QualityRule{
			{Column: "age", Check: "range", Min: ptr(0)},
		}},
	}
	open := func(_ context.Context, job *config.Job, log zerolog.Logger) (storage.Sink, error) {
		return lake.New(up, lake.Options{Bucket: job.Target.Lake.Bucket, KeyPrefix: job.Target.Lake.KeyPrefix, Source: job.Source.Path, TempDir: t.TempDir()}, log)
	}

	res, err := NewRunner(jobs.NewMemoryStore(), zerolog.Nop(), WithSinkOpener(open)).
		Run(ctx, Spec{Job: job, ChunkSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, res.RowsInserted)
	require.Equal(t, 2, res.Batches)
	require.Equal(t, "s3://lake/raw/Employees.parquet", res.Target)
	require.Equal(t, "lake", up.bucket)
	require.Equal(t, "raw/Employees.parquet", up.key)

	pr, err := parquetparser.NewReader(ctx, bytes.NewReader(up.data), 100)
	require.NoError(t, err)
	defer pr.Close()
	b, err := pr.Read(100)
	require.NoError(t, err)
	require.Equal(t, []string{"name", "age", "email", "salary"}, b.Columns)
	require.Equal(t, 3, b.Len())
}

func placesJob(src, db string) *config.Job {
	return &config.Job{
		Name:   "places",
		Source: &config.SourceConfig{Format: "csv", Path: src},
		Target: &config.TargetConfig{Kind: "relational", Relational: &config.RelationalTarget{Driver: "sqlite", DSN: db}},
		Template: &config.Template{
			Name:             "places",
			TargetEntityName: "places",
			Columns: []config.TemplateColumn{
				{Name: "business_id", Constraints: config.Constraints{PGType: "INTEGER", PrimaryKey: true}},
				{Name: "location", Transform: &config.ColumnTransform{
					Op: "split", Delimiter: "|",
					Outputs: []config.SplitOutput{{Name: "city", Index: 0}, {Name: "zip", Index: 1, Cast: "int"}},
				}},
				{Name: "score", Constraints: config.Constraints{PGType: "INTEGER"}},
				{Name: "notes", Constraints: config.Constraints{PGType: "TEXT"}},
			},
		},
	}
}

func TestTemplateRunIntoSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "etl.db")
	r := NewRunner(jobs.NewMemoryStore(), zerolog.Nop())

	first := writeFile(t, "places.csv", "business_id,location,score\n1,Paris|75,7.9\n2,Oslo|150,8.2\n")
	res, err := r.Run(ctx, Spec{Job: placesJob(first, db)})
	require.NoError(t, err)
	require.Equal(t, "places", res.Target)
	require.Equal(t, []string{"business_id", "location", "score", "notes", "city", "zip"}, res.Columns)
	require.EqualValues(t, 2, res.RowsInserted)

	// The default mode keeps a templated table: the second run appends.
	second := writeFile(t, "more.csv", "business_id,location,score\n3,Lyon|69,6.5\n")
	res, err = r.Run(ctx, Spec{Job: placesJob(second, db)})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.RowsInserted)
	require.Equal(t, 3, count(t, db, "places"))

	conn, err := sql.Open("sqlite", db)
	require.NoError(t, err)
	defer conn.Close()

	info, err := conn.Query(`PRAGMA table_info(places)`)
	require.NoError(t, err)
	var names []string
	pk := map[string]bool{}
	for info.Next() {
		var (
			cid, notNull, isPK int
			name, typ          string
			dflt               sql.NullString
		)
		require.NoError(t, info.Scan(&cid, &name, &typ, &notNull, &dflt, &isPK))
		names = append(names, name)
		pk[name] = isPK > 0
	}
	require.NoError(t, info.Err())
	require.NoError(t, info.Close())
	require.Equal(t, []string{"business_id", "location", "score", "notes", "city", "zip", "created_at"}, names)
	require.True(t, pk["business_id"])

	rows, err := conn.Query(`SELECT business_id, city, zip, score, notes FROM places ORDER BY business_id`)
	require.NoError(t, err)
	defer rows.Close()
	type row struct {
		id    int64
		city  string
		zip   int64
		score int64
		notes sql.NullString
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.id, &r.city, &r.zip, &r.score, &r.notes))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []row{
		{id: 1, city: "Paris", zip: 75, score: 7},
		{id: 2, city: "Oslo", zip: 150, score: 8},
		{id: 3, city: "Lyon", zip: 69, score: 6},
	}, got)
}

func TestBootstrapWaitsForRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		inserted int64
		bonus    string
	}{
		{
			name:     "first chunk quarantined",
			body:     "name,age,email,salary\nalice,28,alice-at-example,40000\ncarol,32,carol@example.com,60000\n",
			inserted: 1,
			bonus:    "REAL",
		},
		{
			name:  "every chunk quarantined",
			body:  "name,age,email,salary\nalice,28,alice-at-example,40000\nbob,-5,bob@example.com,30000\n",
			bonus: "TEXT",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := writeFile(t, "employees.csv", tt.body)
			db := filepath.Join(t.TempDir(), "etl.db")
			res, err := NewRunner(jobs.NewMemoryStore(), zerolog.Nop()).
				Run(context.Background(), Spec{Job: sqliteJob(src, db, "quarantine"), ChunkSize: 1})
			require.NoError(t, err)
			require.True(t, res.Success)
			require.Equal(t, 2, res.Batches)
			require.EqualValues(t, tt.inserted, res.RowsInserted)
			require.Equal(t, []string{"name", "age", "email", "salary", "bonus"}, res.Columns)
			require.EqualValues(t, tt.inserted, count(t, db, "employees"))

			conn, err := sql.Open("sqlite", db)
			require.NoError(t, err)
			defer conn.Close()
			var typ string
			require.NoError(t, conn.QueryRow(`SELECT type FROM pragma_table_info('employees') WHERE name = 'bonus'`).Scan(&typ))
			require.Equal(t, tt.bonus, typ)
		})
	}
}
