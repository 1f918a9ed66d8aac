// Package schema infers column types from batches, reconciles them with a
// template, and converts values between their parsed and stored forms.
//
// Types are a closed set of kinds; each relational dialect renders a kind
// into its own SQL type name, and the lake sink maps kinds onto Arrow types.
package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the storage class of a column.
type Kind int

const (
	Text Kind = iota
	VarChar
	Integer
	BigInt
	Float
	Boolean
	Timestamp
	// Native is a declared type the engine passes through verbatim.
	Native
)

// VarCharFloor and VarCharCeiling bound inferred VARCHAR widths: text whose
// longest value is shorter than the ceiling gets VARCHAR(max(len, floor)),
// anything longer becomes TEXT.
const (
	VarCharFloor   = 50
	VarCharCeiling = 255
)

// Type is a column type. Length applies to VarChar, Raw to Native.
type Type struct {
	Kind   Kind
	Length int
	Raw    string
}

// String renders the type in its canonical (Postgres) spelling.
func (t Type) String() string {
	switch t.Kind {
	case VarChar:
		return fmt.Sprintf("VARCHAR(%d)", t.Length)
	case Integer:
		return "INTEGER"
	case BigInt:
		return "BIGINT"
	case Float:
		return "DOUBLE PRECISION"
	case Boolean:
		return "BOOLEAN"
	case Timestamp:
		return "TIMESTAMP"
	case Native:
		return t.Raw
	}
	return "TEXT"
}

// IsInteger reports Integer or BigInt.
func (t Type) IsInteger() bool { return t.Kind == Integer || t.Kind == BigInt }

var varcharRe = regexp.MustCompile(`^(?:VARCHAR|CHARACTER VARYING|NVARCHAR)\s*\(\s*(\d+)\s*\)$`)

// ParseType reads a declared type name. Names it does not recognise become
// Native and are rendered verbatim.
func ParseType(s string) Type {
	norm := strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	switch norm {
	case "INT", "INTEGER", "INT4", "SMALLINT", "INT2":
		return Type{Kind: Integer}
	case "BIGINT", "INT8", "LONG":
		return Type{Kind: BigInt}
	case "DOUBLE PRECISION", "DOUBLE", "FLOAT", "FLOAT8", "FLOAT4", "REAL", "NUMERIC", "DECIMAL":
		return Type{Kind: Float}
	case "TEXT", "STRING", "VARCHAR", "CHARACTER VARYING":
		return Type{Kind: Text}
	case "BOOLEAN", "BOOL":
		return Type{Kind: Boolean}
	case "TIMESTAMP", "TIMESTAMP WITHOUT TIME ZONE", "DATETIME":
		return Type{Kind: Timestamp}
	}
	if m := varcharRe.FindStringSubmatch(norm); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Type{Kind: VarChar, Length: n}
	}
	return Type{Kind: Native, Raw: strings.TrimSpace(s)}
}

// Column is one typed column of a table.
type Column struct {
	Name       string
	Type       Type
	NotNull    bool
	PrimaryKey bool
}

// Table is the resolved sink schema.
type Table struct {
	Name    string
	Columns []Column
}

// Names returns the column names in order.
func (t Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Lookup finds a column by name.
func (t Table) Lookup(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the primary-key column names in order.
func (t Table) PrimaryKey() []string {
	var out []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}
