package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/ddl"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage"
)

const op = "sink.relational"

// Session is the part of *sql.DB and *sql.Tx the Writer needs.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Mode selects the bootstrap DDL.
type Mode int

const (
	// ModeAuto recreates ad-hoc tables and creates templated tables only
	// when absent.
	ModeAuto Mode = iota
	// ModeRecreate drops any existing table and creates it again.
	ModeRecreate
	// ModeCreateIfAbsent keeps an existing table and appends to it.
	ModeCreateIfAbsent
)

// ParseMode reads target.relational.mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "recreate", "replace":
		return ModeRecreate, nil
	case "create_if_absent", "append":
		return ModeCreateIfAbsent, nil
	}
	return 0, etlerr.New(etlerr.Config, op, "unknown mode %q", s)
}

// Options configures a Writer.
type Options struct {
	// Schema qualifies the table name when set.
	Schema string
	Mode   Mode
	// BatchSize caps rows per INSERT statement.
	BatchSize int
	// Templated reports that a template drives the table; it turns
	// ModeAuto into ModeCreateIfAbsent.
	Templated bool
}

type column struct {
	source string
	name   string
	typ    schema.Type
}

// Writer creates one table and appends batches to it. It holds no
// connection; every call takes the Session to run on.
type Writer struct {
	d   Dialect
	opt Options
	log zerolog.Logger

	fqn         string
	cols        []column
	rowsPerStmt int
	fullStmt    string
}

// NewWriter returns a Writer for d.
func NewWriter(d Dialect, opt Options, log zerolog.Logger) *Writer {
	if opt.BatchSize <= 0 {
		opt.BatchSize = config.DefaultInsertBatchSize
	}
	return &Writer{d: d, opt: opt, log: log.With().Str("component", op).Str("dialect", d.Name()).Logger()}
}

// FQN returns the unquoted, sanitised table name, or "" before Plan.
func (w *Writer) FQN() string { return w.fqn }

// Plan sanitises t and returns the table definition the Writer will create.
// A surrogate identity id and a created_at timestamp are added unless the
// table declares a primary key (id) or already has a column of that name
// (skipped with a warning).
func (w *Writer) Plan(t schema.Table) (ddl.TableDef, error) {
	if strings.TrimSpace(t.Name) == "" {
		return ddl.TableDef{}, etlerr.New(etlerr.Config, op, "table name must not be empty")
	}
	name := SanitizeTable(t.Name)
	fqn := name
	if s := strings.TrimSpace(w.opt.Schema); s != "" {
		fqn = SanitizeTable(s) + "." + name
	}
	if len(t.Columns) == 0 {
		return ddl.TableDef{}, etlerr.New(etlerr.SinkWrite, op, "table %s has no columns", fqn)
	}

	used := map[string]bool{}
	cols := make([]column, 0, len(t.Columns))
	defs := make([]ddl.ColumnDef, 0, len(t.Columns)+2)
	hasPK := false
	for _, c := range t.Columns {
		n := SanitizeColumn(c.Name)
		for i := 2; used[n]; i++ {
			n = fmt.Sprintf("%s_%d", SanitizeColumn(c.Name), i)
		}
		used[n] = true
		cols = append(cols, column{source: c.Name, name: n, typ: c.Type})
		defs = append(defs, ddl.ColumnDef{
			Name:       n,
			SQLType:    w.d.ColumnType(c.Type),
			Nullable:   !c.NotNull && !c.PrimaryKey,
			PrimaryKey: c.PrimaryKey,
		})
		hasPK = hasPK || c.PrimaryKey
	}

	if !hasPK {
		id := w.d.IdentityColumn()
		if used[id.Name] {
			w.log.Warn().Str("table", fqn).Str("column", id.Name).Msg("data already has a surrogate key column, identity skipped")
		} else {
			defs = append([]ddl.ColumnDef{id}, defs...)
		}
	}
	ts := w.d.CreatedAtColumn()
	if used[ts.Name] {
		w.log.Warn().Str("table", fqn).Str("column", ts.Name).Msg("data already has a load timestamp column, skipped")
	} else {
		defs = append(defs, ts)
	}

	w.fqn = fqn
	w.cols = cols
	w.rowsPerStmt = w.opt.BatchSize
	if maxRows := w.d.MaxParams() / len(cols); maxRows < w.rowsPerStmt {
		w.rowsPerStmt = max(1, maxRows)
	}
	if m := w.d.MaxRows(); m > 0 && m < w.rowsPerStmt {
		w.rowsPerStmt = m
	}
	w.fullStmt = w.insertSQL(w.rowsPerStmt)
	return ddl.TableDef{FQN: fqn, Columns: defs}, nil
}

// Statements returns the DDL Bootstrap runs for def.
func (w *Writer) Statements(def ddl.TableDef) ([]string, error) {
	mode := w.opt.Mode
	if mode == ModeAuto {
		mode = ModeRecreate
		if w.opt.Templated {
			mode = ModeCreateIfAbsent
		}
	}
	create, err := w.d.CreateTable(def, mode == ModeCreateIfAbsent)
	if err != nil {
		return nil, err
	}
	if mode == ModeRecreate {
		return []string{w.d.DropTable(def.FQN), create}, nil
	}
	return []string{create}, nil
}

// Bootstrap plans t and runs its DDL on s.
func (w *Writer) Bootstrap(ctx context.Context, s Session, t schema.Table) error {
	def, err := w.Plan(t)
	if err != nil {
		return err
	}
	stmts, err := w.Statements(def)
	if err != nil {
		return etlerr.Wrapf(etlerr.SinkWrite, op, err, "render DDL for %s", w.fqn)
	}
	for _, stmt := range stmts {
		w.log.Debug().Str("sql", stmt).Msg("ddl")
		if _, err := s.ExecContext(ctx, stmt); err != nil {
			return w.fail(err, "DDL on %s", w.fqn)
		}
	}
	w.log.Info().Str("table", w.fqn).Int("columns", len(w.cols)).Msg("table ready")
	return nil
}

// Append converts b to the table's column types and inserts it in
// statements of at most rowsPerStmt rows. Table columns b lacks (template
// columns absent from the data) are bound as NULL.
func (w *Writer) Append(ctx context.Context, s Session, b *batch.Batch) (int64, error) {
	if w.cols == nil {
		return 0, etlerr.New(etlerr.SinkWrite, op, "append before bootstrap")
	}
	if b.Len() == 0 {
		return 0, nil
	}

	idx := make([]int, len(w.cols))
	for i, c := range w.cols {
		idx[i] = b.Index(c.source)
	}

	rows := make([][]any, b.Len())
	for r, in := range b.Rows {
		row := make([]any, len(w.cols))
		for i, c := range w.cols {
			if idx[i] < 0 {
				continue
			}
			v, err := schema.Convert(in[idx[i]], c.typ)
			if err != nil {
				return 0, etlerr.Wrapf(etlerr.SinkWrite, op, err, "row %d column %q", r, c.name)
			}
			row[i] = v
		}
		rows[r] = row
	}

	return storage.LoadChunks(ctx, rows, w.rowsPerStmt, func(ctx context.Context, chunk [][]any) (int64, error) {
		return w.insert(ctx, s, chunk)
	}, w.log)
}

func (w *Writer) insert(ctx context.Context, s Session, rows [][]any) (int64, error) {
	query := w.fullStmt
	if len(rows) != w.rowsPerStmt {
		query = w.insertSQL(len(rows))
	}
	args := make([]any, 0, len(rows)*len(w.cols))
	for _, r := range rows {
		args = append(args, r...)
	}
	res, err := s.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, w.fail(err, "insert %d rows into %s", len(rows), w.fqn)
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = int64(len(rows))
	}
	return n, nil
}

// insertSQL renders INSERT INTO t (c1, c2) VALUES (p1, p2), (p3, p4), ...
func (w *Writer) insertSQL(rows int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(ddl.QuoteFQN(w.fqn, w.d.Quote))
	sb.WriteString(" (")
	for i, c := range w.cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(w.d.Quote(c.name))
	}
	sb.WriteString(") VALUES ")
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for i := range w.cols {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(w.d.Placeholder(n))
			n++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

func (w *Writer) fail(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if d := w.d.ErrorDetail(err); d != "" {
		msg += " (" + d + ")"
	}
	return etlerr.Wrapf(etlerr.SinkWrite, op, err, "%s", msg)
}
