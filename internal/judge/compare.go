package judge

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CompareRows decides whether an actual result set matches the expected
// one. Row order is not significant: both sides are normalized, serialized
// and sorted before comparison, so a correct query may return rows in any
// order. Column order never matters because rows serialize with sorted
// keys. Any panic while normalizing malformed data counts as a mismatch
// rather than propagating.
func CompareRows(actual, expected []map[string]any) (equal bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("WARN: result comparison panicked, treating as mismatch: %v", r)
			equal = false
		}
	}()

	if len(actual) != len(expected) {
		return false
	}

	return strings.Join(serializeRows(actual), "\n") == strings.Join(serializeRows(expected), "\n")
}

func serializeRows(rows []map[string]any) []string {
	serialized := make([]string, 0, len(rows))
	for _, row := range rows {
		normalized := make(map[string]any, len(row))
		for col, val := range row {
			normalized[col] = NormalizeValue(val)
		}
		// encoding/json writes map keys in sorted order.
		data, err := json.Marshal(normalized)
		if err != nil {
			panic(err)
		}
		serialized = append(serialized, string(data))
	}
	sort.Strings(serialized)
	return serialized
}

// NormalizeValue maps a value to a canonical form so that representation
// differences between the engine and JSON fixtures do not cause spurious
// mismatches: every numeric kind becomes float64 (5 equals 5.0), strings
// are trimmed, timestamps truncate to calendar-date precision. Idempotent.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return t
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case time.Time:
		return t.Format("2006-01-02")
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		normalized := make([]any, len(t))
		for i, elem := range t {
			normalized[i] = NormalizeValue(elem)
		}
		return normalized
	case map[string]any:
		normalized := make(map[string]any, len(t))
		for k, elem := range t {
			normalized[k] = NormalizeValue(elem)
		}
		return normalized
	case driver.Valuer:
		// Driver-owned types (pgtype numerics, dates) unwrap to a plain
		// value first.
		if unwrapped, err := t.Value(); err == nil {
			return normalizeScalarString(unwrapped)
		}
		return normalizeScalarString(t)
	default:
		return normalizeScalarString(t)
	}
}

// normalizeScalarString is the fallback for types the switch does not know:
// render to text, and if that text reads as a number, compare it as one.
func normalizeScalarString(v any) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return normalizeNumericText(t)
	case []byte:
		return normalizeNumericText(string(t))
	case time.Time:
		return t.Format("2006-01-02")
	case int64:
		return float64(t)
	case float64:
		return t
	}
	return normalizeNumericText(fmt.Sprint(v))
}

func normalizeNumericText(s string) any {
	trimmed := strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return trimmed
}
