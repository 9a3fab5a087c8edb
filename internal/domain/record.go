package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ArraySeparator joins array-valued fields whenever they are flattened into a
// single string, both for text search and for tabular export cells.
const ArraySeparator = "; "

// Record is a schema-on-read catalog row. Catalogs do not share a common shape,
// so records are plain field maps and every accessor tolerates missing fields.
type Record map[string]any

// Lookup returns the raw value stored under field. A nil value is reported as
// missing.
func (r Record) Lookup(field string) (any, bool) {
	if r == nil {
		return nil, false
	}
	value, ok := r[field]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

// String returns the field rendered as text. Arrays are joined with
// ArraySeparator.
func (r Record) String(field string) (string, bool) {
	value, ok := r.Lookup(field)
	if !ok {
		return "", false
	}
	return FormatValue(value), true
}

// Text is String with the missing case collapsed to "".
func (r Record) Text(field string) string {
	s, _ := r.String(field)
	return s
}

// Strings returns the field as a list of strings. Scalars yield a single element.
func (r Record) Strings(field string) ([]string, bool) {
	value, ok := r.Lookup(field)
	if !ok {
		return nil, false
	}
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, FormatValue(item))
		}
		return out, true
	default:
		return []string{FormatValue(v)}, true
	}
}

// Float returns the field as a number when it is numeric or a numeric string.
func (r Record) Float(field string) (float64, bool) {
	value, ok := r.Lookup(field)
	if !ok {
		return 0, false
	}
	return toFloat(value)
}

// IsArray reports whether the field holds a list value.
func (r Record) IsArray(field string) bool {
	value, ok := r.Lookup(field)
	if !ok {
		return false
	}
	switch value.(type) {
	case []string, []any:
		return true
	default:
		return false
	}
}

// Present reports whether the field exists and is not empty. Empty strings and
// empty arrays count as absent.
func (r Record) Present(field string) bool {
	value, ok := r.Lookup(field)
	if !ok {
		return false
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case []string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	case bool:
		return v
	default:
		return true
	}
}

// Keys returns the record's field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(copyProperties(r))
}

// UnionKeys returns the sorted union of field names across records.
func UnionKeys(records []Record) []string {
	seen := make(map[string]struct{})
	for _, record := range records {
		for k := range record {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatValue renders a record value as display text.
func FormatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case []byte:
		return string(v)
	case []string:
		return strings.Join(v, ArraySeparator)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ArraySeparator)
	case map[string]any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func copyProperties(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return copyProperties(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
