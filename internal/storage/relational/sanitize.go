package relational

import (
	"path/filepath"
	"strings"

	"github.com/YogovAI/Product-Development-Yogov/internal/textnorm"
)

// fileExts are stripped from table names derived from file names.
var fileExts = map[string]bool{
	".csv": true, ".tsv": true, ".txt": true, ".json": true, ".jsonl": true,
	".ndjson": true, ".parquet": true, ".xlsx": true, ".xls": true,
}

// SanitizeTable turns a free-form name into a table identifier:
//
//	"customers.csv" -> "customers"
//	"My Table!"     -> "my_table_"
//	"123abc"        -> "table_123abc"
func SanitizeTable(name string) string {
	name = strings.TrimSpace(name)
	if ext := filepath.Ext(name); fileExts[strings.ToLower(ext)] {
		name = strings.TrimSuffix(name, ext)
	}
	return sanitize(name, "table_")
}

// SanitizeColumn is SanitizeTable for columns, with a col_ prefix and no
// extension stripping.
func SanitizeColumn(name string) string {
	return sanitize(strings.TrimSpace(name), "col_")
}

// sanitize folds accents, lowercases, maps every rune outside [a-z0-9_] to
// '_' and prefixes names that do not start with a letter.
func sanitize(name, prefix string) string {
	s := strings.ToLower(textnorm.FoldAccents(name))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || out[0] < 'a' || out[0] > 'z' {
		out = prefix + out
	}
	return out
}
