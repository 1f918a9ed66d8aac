package jobs

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

const migrationsTable = "etl_schema_migrations"

// Dialect selects SQL syntax and migrations for a SQLStore.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Open returns the store for dsn:
//
//	""                       in-memory
//	sqlite://path/state.db   SQLite file
//	postgres://...           Postgres (postgresql:// too)
//
// SQL stores are migrated before Open returns.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return OpenSQL(ctx, SQLite, strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenSQL(ctx, Postgres, dsn)
	}
	return nil, fmt.Errorf("jobs: unsupported state dsn %q (want sqlite://, postgres:// or empty)", dsn)
}

// SQLStore keeps runs in etl_job_runs and etl_job_transitions.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ Store = (*SQLStore)(nil)

// OpenSQL connects and applies pending migrations.
func OpenSQL(ctx context.Context, d Dialect, dsn string) (*SQLStore, error) {
	driver := "sqlite"
	if d == Postgres {
		driver = "pgx"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("jobs: open %s: %w", d, err)
	}
	if d == SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("jobs: ping %s: %w", d, err)
	}
	s := &SQLStore{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate runs the embedded migrations. The migrate instance is not
// closed: closing it would close s.db.
func (s *SQLStore) migrate() error {
	src, err := iofs.New(migrations, "migrations/"+string(s.dialect))
	if err != nil {
		return fmt.Errorf("jobs: migrations source: %w", err)
	}

	var drv database.Driver
	switch s.dialect {
	case SQLite:
		drv, err = migratesqlite.WithInstance(s.db, &migratesqlite.Config{MigrationsTable: migrationsTable})
	case Postgres:
		drv, err = migratepgx.WithInstance(s.db, &migratepgx.Config{MigrationsTable: migrationsTable})
	default:
		err = fmt.Errorf("unknown dialect %q", s.dialect)
	}
	if err != nil {
		return fmt.Errorf("jobs: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(s.dialect), drv)
	if err != nil {
		return fmt.Errorf("jobs: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("jobs: migration up failed: %w", err)
	}
	return nil
}

// q rewrites ? placeholders for Postgres.
func (s *SQLStore) q(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *SQLStore) Create(ctx context.Context, job string) (Run, error) {
	r := newRun(job, s.now())
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO etl_job_runs (id, job, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		r.ID, r.Job, string(r.State), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("jobs: create run: %w", err)
	}
	return r, nil
}

func (s *SQLStore) Transition(ctx context.Context, id string, to State, u Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("jobs: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	r, err := s.get(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(id, r.State, to); err != nil {
		return err
	}

	var seq int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM etl_job_transitions WHERE run_id = ?`), id).Scan(&seq); err != nil {
		return fmt.Errorf("jobs: count transitions: %w", err)
	}
	now := s.now()
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO etl_job_transitions (run_id, seq, from_state, to_state, message, at) VALUES (?, ?, ?, ?, ?, ?)`),
		id, seq+1, string(r.State), string(to), u.Message, now); err != nil {
		return fmt.Errorf("jobs: record transition: %w", err)
	}

	apply(&r, to, u, now)
	if _, err := tx.ExecContext(ctx, s.q(`UPDATE etl_job_runs SET state = ?, message = ?, target = ?, rows_inserted = ?, updated_at = ? WHERE id = ?`),
		string(r.State), r.Message, r.Target, r.RowsInserted, r.UpdatedAt, id); err != nil {
		return fmt.Errorf("jobs: update run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("jobs: commit transition: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) get(ctx context.Context, qr queryer, id string) (Run, error) {
	var (
		r     Run
		state string
	)
	err := qr.QueryRowContext(ctx, s.q(`SELECT id, job, state, message, target, rows_inserted, created_at, updated_at FROM etl_job_runs WHERE id = ?`), id).
		Scan(&r.ID, &r.Job, &state, &r.Message, &r.Target, &r.RowsInserted, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("jobs: get run: %w", err)
	}
	r.State = State(state)
	return r, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Run, error) {
	return s.get(ctx, s.db, id)
}

func (s *SQLStore) History(ctx context.Context, id string) ([]Transition, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT seq, from_state, to_state, message, at FROM etl_job_transitions WHERE run_id = ? ORDER BY seq`), id)
	if err != nil {
		return nil, fmt.Errorf("jobs: history: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		t := Transition{RunID: id}
		var from, to string
		if err := rows.Scan(&t.Seq, &from, &to, &t.Message, &t.At); err != nil {
			return nil, fmt.Errorf("jobs: scan transition: %w", err)
		}
		t.From, t.To = State(from), State(to)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return s.db.Close() }
