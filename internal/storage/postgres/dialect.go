// Package postgres registers the Postgres dialect of the relational sink,
// backed by the pgx stdlib driver.
package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/YogovAI/Product-Development-Yogov/internal/ddl"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage/relational"
)

func init() { relational.Register(Dialect{}) }

// Dialect renders Postgres DDL and bind parameters.
type Dialect struct {
	relational.ANSI
}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Driver() string { return "pgx" }

// CheckDSN parses dsn the way pgx will when connecting.
func (Dialect) CheckDSN(dsn string) error {
	_, err := pgx.ParseConfig(dsn)
	return err
}

// ColumnType uses the canonical Postgres spelling of t.
func (Dialect) ColumnType(t schema.Type) string { return t.String() }

func (Dialect) IdentityColumn() ddl.ColumnDef {
	return ddl.ColumnDef{Name: "id", SQLType: "BIGSERIAL PRIMARY KEY", Nullable: true}
}

func (Dialect) CreatedAtColumn() ddl.ColumnDef {
	return ddl.ColumnDef{Name: "created_at", SQLType: "TIMESTAMP", Nullable: true, Default: "CURRENT_TIMESTAMP"}
}

// DropTable cascades to dependent views and constraints.
func (d Dialect) DropTable(fqn string) string {
	return "DROP TABLE IF EXISTS " + ddl.QuoteFQN(fqn, d.Quote) + " CASCADE"
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// MaxParams is the wire protocol's uint16 parameter count.
func (Dialect) MaxParams() int { return 65535 }

// ErrorDetail surfaces the server's detail text and SQLSTATE.
func (Dialect) ErrorDetail(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	if pgErr.Detail != "" {
		return fmt.Sprintf("%s; SQLSTATE %s", pgErr.Detail, pgErr.SQLState())
	}
	return "SQLSTATE " + pgErr.SQLState()
}
