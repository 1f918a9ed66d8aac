package relational

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage"
)

func init() {
	storage.Register(storage.KindRelational, func(ctx context.Context, job *config.Job, log zerolog.Logger) (storage.Sink, error) {
		cfg := job.Target.Relational
		if cfg == nil {
			return nil, etlerr.New(etlerr.Config, op, "target.relational is required for kind relational")
		}
		d, err := Lookup(cfg.Driver)
		if err != nil {
			return nil, err
		}
		mode, err := ParseMode(cfg.Mode)
		if err != nil {
			return nil, err
		}
		return Open(ctx, d, cfg.DSN, Options{
			Schema:    cfg.Schema,
			Mode:      mode,
			BatchSize: cfg.BatchSize,
			Templated: job.Template != nil,
		}, log)
	})
}

// Sink adapts a Writer to storage.Sink. It owns the connection pool: the
// DDL runs in one transaction and every batch in its own, so a failed batch
// leaves none of its rows behind.
type Sink struct {
	db *sql.DB
	w  *Writer
}

var _ storage.Sink = (*Sink)(nil)

// Open connects with d's driver and checks the connection.
func Open(ctx context.Context, d Dialect, dsn string, opt Options, log zerolog.Logger) (*Sink, error) {
	if err := d.CheckDSN(dsn); err != nil {
		return nil, etlerr.Wrapf(etlerr.Config, op, err, "%s dsn", d.Name())
	}
	db, err := sql.Open(d.Driver(), dsn)
	if err != nil {
		return nil, etlerr.Wrapf(etlerr.SinkWrite, op, err, "open %s", d.Name())
	}
	d.Configure(db)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, etlerr.Wrapf(etlerr.SinkWrite, op, err, "ping %s", d.Name())
	}
	return NewSink(db, d, opt, log), nil
}

// NewSink wraps an open pool. The Sink closes db on Close.
func NewSink(db *sql.DB, d Dialect, opt Options, log zerolog.Logger) *Sink {
	return &Sink{db: db, w: NewWriter(d, opt, log)}
}

// Bootstrap creates the table.
func (s *Sink) Bootstrap(ctx context.Context, t schema.Table) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.w.Bootstrap(ctx, tx, t)
	})
}

// Write appends b in its own transaction.
func (s *Sink) Write(ctx context.Context, b *batch.Batch) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = s.w.Append(ctx, tx, b)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Commit is a no-op: every Write is already committed.
func (s *Sink) Commit(context.Context) error { return nil }

// Close closes the pool.
func (s *Sink) Close() error { return s.db.Close() }

// Target returns the sanitised table name.
func (s *Sink) Target() string { return s.w.FQN() }

func (s *Sink) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.w.fail(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.w.fail(err, "commit")
	}
	return nil
}
