package ddl

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, DATETIME2). Identity
//     columns carry their full clause here ("BIGSERIAL PRIMARY KEY").
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the table-level primary key
//   - Default: raw default expression (e.g., CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name (FQN, dotted "schema.table" or bare
// "table") and an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Quoter quotes one identifier segment.
type Quoter func(string) string
