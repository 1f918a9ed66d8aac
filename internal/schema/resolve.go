package schema

import (
	"slices"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
)

// Resolve builds the sink table from the first processed batch.
//
// Column types come from inference over processed, except that a column
// with no non-null values takes the same-name type from source (the types
// inferred on the raw input) when there is one. A template then overrides:
// its declared type wins outright and its primary_key / not_null flags are
// carried over. Template columns come first in template order, followed by
// the remaining processed columns.
//
// Finally INTEGER is promoted to BIGINT, except for a primary-key column
// whose name is exempt (business_id unless the template says otherwise).
func Resolve(name string, processed *batch.Batch, source []Column, tmpl *config.Template) Table {
	sourceType := make(map[string]Type, len(source))
	for _, c := range source {
		sourceType[c.Name] = c.Type
	}

	inferred := make(map[string]Type, len(processed.Columns))
	for i, col := range processed.Columns {
		t, seen := inferColumn(processed, i)
		if st, ok := sourceType[col]; ok && !seen {
			t = st
		}
		inferred[col] = t
	}

	var cols []Column
	placed := map[string]bool{}
	if tmpl != nil {
		for _, tc := range tmpl.Columns {
			c := Column{Name: tc.Name, NotNull: tc.IsNotNull(), PrimaryKey: tc.IsPrimaryKey()}
			switch {
			case tc.DeclaredType() != "":
				c.Type = ParseType(tc.DeclaredType())
			case processed.Has(tc.Name):
				c.Type = inferred[tc.Name]
			default:
				c.Type = sourceType[tc.Name]
			}
			cols = append(cols, c)
			placed[tc.Name] = true
		}
	}
	for _, col := range processed.Columns {
		if placed[col] {
			continue
		}
		cols = append(cols, Column{Name: col, Type: inferred[col]})
		placed[col] = true
	}

	exempt := tmpl.PromotionExempt()
	for i := range cols {
		c := &cols[i]
		if c.Type.Kind != Integer {
			continue
		}
		if c.PrimaryKey && slices.Contains(exempt, c.Name) {
			continue
		}
		c.Type = Type{Kind: BigInt}
	}

	return Table{Name: name, Columns: cols}
}
