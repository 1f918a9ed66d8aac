package schema

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
)

// Infer derives a type for every column of b from its non-null values:
//
//   - all integral              -> BIGINT
//   - all numeric               -> DOUBLE PRECISION
//   - all boolean               -> BOOLEAN
//   - all timestamps            -> TIMESTAMP
//   - anything else             -> VARCHAR(max(len, 50)) when the longest
//     value is shorter than 255 characters, else TEXT
//   - no non-null values at all -> TEXT
func Infer(b *batch.Batch) []Column {
	cols := make([]Column, len(b.Columns))
	for i, name := range b.Columns {
		t, _ := inferColumn(b, i)
		cols[i] = Column{Name: name, Type: t}
	}
	return cols
}

type valueClass uint8

const (
	classInt valueClass = 1 << iota
	classFloat
	classBool
	classTime
	classText
)

// inferColumn returns the column type and whether any non-null value was
// seen.
func inferColumn(b *batch.Batch, col int) (Type, bool) {
	var (
		seen   valueClass
		maxLen int
	)
	for _, row := range b.Rows {
		v := row[col]
		if IsNull(v) {
			continue
		}
		seen |= classify(v)
		if n := utf8.RuneCountInString(FormatValue(v)); n > maxLen {
			maxLen = n
		}
	}

	switch {
	case seen == 0:
		return Type{Kind: Text}, false
	case seen == classInt:
		return Type{Kind: BigInt}, true
	case seen&^(classInt|classFloat) == 0:
		return Type{Kind: Float}, true
	case seen == classBool:
		return Type{Kind: Boolean}, true
	case seen == classTime:
		return Type{Kind: Timestamp}, true
	}
	if maxLen < VarCharCeiling {
		return Type{Kind: VarChar, Length: max(maxLen, VarCharFloor)}, true
	}
	return Type{Kind: Text}, true
}

func classify(v any) valueClass {
	switch x := v.(type) {
	case int64, int, int32:
		return classInt
	case float64, float32:
		return classFloat
	case bool:
		return classBool
	case time.Time:
		return classTime
	case string:
		s := strings.TrimSpace(x)
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return classInt
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
			return classFloat
		}
		if _, ok := ToBool(s); ok {
			return classBool
		}
		return classText
	}
	return classText
}

// Coerce converts the values of b in place to the types in cols, matched by
// column name. A value that does not parse under its column's type is left
// as it is.
func Coerce(b *batch.Batch, cols []Column) {
	for _, c := range cols {
		i := b.Index(c.Name)
		if i < 0 || c.Type.Kind == Native {
			continue
		}
		for _, row := range b.Rows {
			v := row[i]
			if v == nil {
				continue
			}
			if IsNull(v) {
				row[i] = nil
				continue
			}
			switch c.Type.Kind {
			case Text, VarChar:
				continue
			}
			if out, err := Convert(v, c.Type); err == nil {
				row[i] = out
			}
		}
	}
}
