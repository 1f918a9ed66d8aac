// Package sqlite registers the SQLite dialect of the relational sink, backed
// by the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"

	"github.com/YogovAI/Product-Development-Yogov/internal/ddl"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage/relational"
)

func init() { relational.Register(Dialect{}) }

// Dialect renders SQLite DDL. SQLite types are affinities, so the mapping
// prefers canonical ones:
//   - integer-ish and boolean -> INTEGER (booleans as 0/1)
//   - floating                -> REAL
//   - timestamps              -> TEXT (ISO-8601)
//   - text                    -> TEXT, VARCHAR(n) kept for readability
type Dialect struct {
	relational.ANSI
}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Driver() string { return "sqlite" }

// Configure serialises access through one connection: SQLite has a single
// writer, and an in-memory database exists per connection.
func (Dialect) Configure(db *sql.DB) {
	db.SetMaxOpenConns(1)
}

func (Dialect) ColumnType(t schema.Type) string {
	switch t.Kind {
	case schema.Integer, schema.BigInt, schema.Boolean:
		return "INTEGER"
	case schema.Float:
		return "REAL"
	case schema.VarChar:
		return fmt.Sprintf("VARCHAR(%d)", t.Length)
	case schema.Native:
		return t.Raw
	}
	return "TEXT"
}

func (Dialect) IdentityColumn() ddl.ColumnDef {
	return ddl.ColumnDef{Name: "id", SQLType: "INTEGER PRIMARY KEY AUTOINCREMENT", Nullable: true}
}

func (Dialect) CreatedAtColumn() ddl.ColumnDef {
	return ddl.ColumnDef{Name: "created_at", SQLType: "TEXT", Nullable: true, Default: "CURRENT_TIMESTAMP"}
}

// MaxParams is SQLITE_MAX_VARIABLE_NUMBER since 3.32.
func (Dialect) MaxParams() int { return 32766 }

// ErrorDetail reports the extended result code.
func (Dialect) ErrorDetail(err error) string {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return ""
	}
	return fmt.Sprintf("sqlite result code %d", se.Code())
}
