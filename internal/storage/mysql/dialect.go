// Package mysql registers the MySQL dialect of the relational sink.
package mysql

import (
	"errors"
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/YogovAI/Product-Development-Yogov/internal/ddl"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage/relational"
)

func init() { relational.Register(Dialect{}) }

type Dialect struct {
	relational.ANSI
}

func (Dialect) Name() string { return "mysql" }

func (Dialect) Driver() string { return "mysql" }

func (Dialect) CheckDSN(dsn string) error {
	if _, err := mysqldrv.ParseDSN(dsn); err != nil {
		return fmt.Errorf("mysql dsn: %w", err)
	}
	return nil
}

func (Dialect) Quote(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func (Dialect) ColumnType(t schema.Type) string {
	switch t.Kind {
	case schema.Integer:
		return "INT"
	case schema.BigInt:
		return "BIGINT"
	case schema.Float:
		return "DOUBLE"
	case schema.VarChar:
		return fmt.Sprintf("VARCHAR(%d)", t.Length)
	case schema.Boolean:
		return "BOOLEAN"
	case schema.Timestamp:
		return "DATETIME(6)"
	case schema.Native:
		return t.Raw
	}
	return "LONGTEXT"
}

func (Dialect) IdentityColumn() ddl.ColumnDef {
	return ddl.ColumnDef{Name: "id", SQLType: "BIGINT AUTO_INCREMENT PRIMARY KEY", Nullable: true}
}

func (Dialect) CreatedAtColumn() ddl.ColumnDef {
	return ddl.ColumnDef{Name: "created_at", SQLType: "TIMESTAMP", Nullable: true, Default: "CURRENT_TIMESTAMP"}
}

// CreateTable and DropTable repeat ANSI's so that they quote with backticks.
func (d Dialect) CreateTable(def ddl.TableDef, ifAbsent bool) (string, error) {
	return ddl.BuildCreateTableSQL(def, d.Quote, ddl.Options{IfNotExists: ifAbsent})
}

func (d Dialect) DropTable(fqn string) string {
	return "DROP TABLE IF EXISTS " + ddl.QuoteFQN(fqn, d.Quote)
}

func (Dialect) MaxParams() int { return 65535 }

func (Dialect) ErrorDetail(err error) string {
	var me *mysqldrv.MySQLError
	if !errors.As(err, &me) {
		return ""
	}
	if me.SQLState != [5]byte{} {
		return fmt.Sprintf("error %d, SQLSTATE %s", me.Number, me.SQLState[:])
	}
	return fmt.Sprintf("error %d", me.Number)
}
