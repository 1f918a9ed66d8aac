package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when a string is read as a timestamp.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// IsNull reports nil and NaN.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// FormatValue returns the string form of a value. Null is "". Whole floats
// keep one decimal ("30.0") so a float column never reads as an integer.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', 1, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return FormatValue(float64(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

// ToFloat reads v as a number. Strings are parsed; bools are not numbers.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ToInt reads v as an integer. Floats and numeric strings must be whole.
func ToInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return i, true
		}
	}
	f, ok := ToFloat(v)
	if !ok || f != math.Trunc(f) || !InInt64Range(f) {
		return 0, false
	}
	return int64(f), true
}

// InInt64Range reports whether f converts to int64 without overflow.
// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
func InInt64Range(f float64) bool {
	return f >= -(1<<63) && f < 1<<63
}

// ToBool reads v as a boolean.
func ToBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// ToTime reads v as a timestamp.
func ToTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Convert returns v in the Go type a sink binds for t: int64, float64,
// bool, time.Time or string. Null and NaN become nil. Native passes v
// through. A value that cannot take the type is an error.
func Convert(v any, t Type) (any, error) {
	if IsNull(v) {
		return nil, nil
	}
	switch t.Kind {
	case Integer, BigInt:
		if i, ok := ToInt(v); ok {
			return i, nil
		}
	case Float:
		if f, ok := ToFloat(v); ok {
			return f, nil
		}
	case Boolean:
		if b, ok := ToBool(v); ok {
			return b, nil
		}
		if i, ok := ToInt(v); ok && (i == 0 || i == 1) {
			return i == 1, nil
		}
	case Timestamp:
		if ts, ok := ToTime(v); ok {
			return ts, nil
		}
	case Native:
		return v, nil
	default:
		return FormatValue(v), nil
	}
	return nil, fmt.Errorf("value %q is not a valid %s", FormatValue(v), t)
}
