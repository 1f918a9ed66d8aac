// Package mssql registers the Microsoft SQL Server dialect of the relational
// sink.
package mssql

import (
	"errors"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/YogovAI/Product-Development-Yogov/internal/ddl"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage/relational"
)

func init() { relational.Register(Dialect{}) }

// Dialect renders T-SQL. SQL Server has no CREATE TABLE IF NOT EXISTS, so
// both DDL statements are guarded with OBJECT_ID.
type Dialect struct {
	relational.ANSI
}

func (Dialect) Name() string { return "mssql" }

func (Dialect) Driver() string { return "sqlserver" }

// CheckDSN validates the DSN early to fail fast on obvious mistakes.
func (Dialect) CheckDSN(dsn string) error {
	if _, err := msdsn.Parse(dsn); err != nil {
		return fmt.Errorf("mssql dsn: %w", err)
	}
	return nil
}

// Quote brackets an identifier: a]b -> [a]]b].
func (Dialect) Quote(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func (Dialect) ColumnType(t schema.Type) string {
	switch t.Kind {
	case schema.Integer:
		return "INT"
	case schema.BigInt:
		return "BIGINT"
	case schema.Float:
		return "FLOAT"
	case schema.VarChar:
		if t.Length > 0 && t.Length <= 4000 {
			return fmt.Sprintf("NVARCHAR(%d)", t.Length)
		}
	case schema.Boolean:
		return "BIT"
	case schema.Timestamp:
		return "DATETIME2"
	case schema.Native:
		return t.Raw
	}
	return "NVARCHAR(MAX)"
}

func (Dialect) IdentityColumn() ddl.ColumnDef {
	return ddl.ColumnDef{Name: "id", SQLType: "BIGINT IDENTITY(1,1) PRIMARY KEY", Nullable: true}
}

func (Dialect) CreatedAtColumn() ddl.ColumnDef {
	return ddl.ColumnDef{Name: "created_at", SQLType: "DATETIME2", Nullable: true, Default: "SYSUTCDATETIME()"}
}

func (d Dialect) CreateTable(def ddl.TableDef, ifAbsent bool) (string, error) {
	stmt, err := ddl.BuildCreateTableSQL(def, d.Quote, ddl.Options{})
	if err != nil {
		return "", err
	}
	if !ifAbsent {
		return stmt, nil
	}
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s;\nEND", d.objectName(def.FQN), stmt), nil
}

func (d Dialect) DropTable(fqn string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s", d.objectName(fqn), ddl.QuoteFQN(fqn, d.Quote))
}

// objectName is the quoted name escaped for use inside an N'...' literal.
func (d Dialect) objectName(fqn string) string {
	return strings.ReplaceAll(ddl.QuoteFQN(fqn, d.Quote), "'", "''")
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

// MaxParams stays below the 2100 parameter limit of an RPC request.
func (Dialect) MaxParams() int { return 2000 }

// MaxRows is the row limit of a table value constructor.
func (Dialect) MaxRows() int { return 1000 }

func (Dialect) ErrorDetail(err error) string {
	var se mssql.Error
	if !errors.As(err, &se) {
		return ""
	}
	return fmt.Sprintf("msg %d, state %d", se.Number, se.State)
}
