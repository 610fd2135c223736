package store

import (
	"bytes"
	"encoding/json"
	"strings"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// marshalStrings converts []string to JSON text for storage.
func marshalStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(values)
	return string(b)
}

// unmarshalStrings converts JSON text back to []string.
func unmarshalStrings(s string) []string {
	if s == "" || s == "null" {
		return nil
	}
	var values []string
	_ = json.Unmarshal([]byte(s), &values)
	return values
}

// marshalAttributes converts annotation attributes to JSON text.
func marshalAttributes(attrs []Attribute) (string, error) {
	if len(attrs) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalAttributes decodes JSON attributes, restoring integers as int64
// rather than the float64 encoding/json would produce.
func unmarshalAttributes(s string) ([]Attribute, error) {
	if s == "" || s == "null" || s == "[]" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var attrs []Attribute
	if err := dec.Decode(&attrs); err != nil {
		return nil, err
	}
	for i := range attrs {
		attrs[i].Value = normalizeValue(attrs[i].Value)
	}
	return attrs, nil
}

// NormalizeValue maps decoded values (json.Number, int, int32, float32,
// nested slices) onto the canonical attribute value types.
func NormalizeValue(v any) any {
	return normalizeValue(v)
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case float32:
		return float64(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	default:
		return v
	}
}
