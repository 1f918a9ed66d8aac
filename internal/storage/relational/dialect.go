// Package relational writes batches into SQL tables through database/sql.
//
// The Writer is dialect-agnostic: it sanitises identifiers, renders the
// CREATE TABLE through internal/ddl, and appends rows with multi-row
// parameterised INSERTs. Everything a database disagrees on (quoting, type
// names, placeholders, bind limits, identity columns, error details) comes
// from a Dialect registered by the backend packages:
//
//	storage/postgres  pgx stdlib driver
//	storage/sqlite    modernc.org/sqlite
//	storage/mssql     go-mssqldb
//	storage/mysql     go-sql-driver/mysql
package relational

import (
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/YogovAI/Product-Development-Yogov/internal/ddl"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
)

// Dialect is what a backend supplies to the Writer.
type Dialect interface {
	// Name is the target.relational.driver value, e.g. "postgres".
	Name() string
	// Driver is the database/sql driver name.
	Driver() string
	// CheckDSN rejects malformed connection strings before connecting.
	CheckDSN(dsn string) error
	// Configure tunes a freshly opened pool.
	Configure(db *sql.DB)

	Quote(id string) string
	ColumnType(t schema.Type) string
	// IdentityColumn and CreatedAtColumn describe the surrogate columns
	// added to tables without a declared primary key.
	IdentityColumn() ddl.ColumnDef
	CreatedAtColumn() ddl.ColumnDef
	CreateTable(def ddl.TableDef, ifAbsent bool) (string, error)
	DropTable(fqn string) string

	// Placeholder renders bind parameter n (1-based).
	Placeholder(n int) string
	// MaxParams is the bind-parameter limit of one statement.
	MaxParams() int
	// MaxRows caps rows per INSERT; 0 means no cap beyond MaxParams.
	MaxRows() int

	// ErrorDetail extracts driver-specific context from err, or "".
	ErrorDetail(err error) string
}

// ANSI implements the parts most dialects share: double-quoted identifiers,
// '?' placeholders, CREATE TABLE IF NOT EXISTS and DROP TABLE IF EXISTS.
// Backends embed it and override what differs.
type ANSI struct{}

func (ANSI) CheckDSN(dsn string) error {
	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("dsn must not be empty")
	}
	return nil
}

func (ANSI) Configure(*sql.DB) {}

func (ANSI) Quote(id string) string { return ddl.DoubleQuote(id) }

func (ANSI) Placeholder(int) string { return "?" }

func (ANSI) MaxRows() int { return 0 }

func (ANSI) ErrorDetail(error) string { return "" }

func (a ANSI) DropTable(fqn string) string {
	return "DROP TABLE IF EXISTS " + ddl.QuoteFQN(fqn, a.Quote)
}

func (a ANSI) CreateTable(def ddl.TableDef, ifAbsent bool) (string, error) {
	return ddl.BuildCreateTableSQL(def, a.Quote, ddl.Options{IfNotExists: ifAbsent})
}

var (
	mu       sync.RWMutex
	dialects = map[string]Dialect{}
)

// Register registers (or replaces) a dialect under its Name.
func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[d.Name()] = d
}

// Lookup returns the dialect registered for driver.
func Lookup(driver string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return nil, etlerr.New(etlerr.Config, "sink.relational", "unsupported driver %q (registered: %s)",
			driver, strings.Join(names(), ", "))
	}
	return d, nil
}

// Names lists registered dialects.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return names()
}

func names() []string {
	out := make([]string, 0, len(dialects))
	for n := range dialects {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
