package experts

import (
	"time"
)

// RawInput is the raw analysis request payload fanned out to every registered
// module: symbol, timestamp and whatever contextual fields the caller has.
// Modules declare the keys they require and default the rest.
type RawInput map[string]interface{}

// Has reports whether a field is present and non-nil.
func (r RawInput) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// Symbol returns the analyzed instrument, or empty string.
func (r RawInput) Symbol() string {
	s, _ := r.String("symbol")
	return s
}

// String reads a string field.
func (r RawInput) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float reads a numeric field, accepting the integer types JSON decoding and
// hand-built maps commonly produce.
func (r RawInput) Float(field string) (float64, bool) {
	v, ok := r[field]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// FloatOr reads a numeric field with a default for missing values.
func (r RawInput) FloatOr(field string, def float64) float64 {
	if v, ok := r.Float(field); ok {
		return v
	}
	return def
}

// Floats reads a numeric series field.
func (r RawInput) Floats(field string) ([]float64, bool) {
	v, ok := r[field]
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []float64:
		return s, true
	case []interface{}:
		out := make([]float64, 0, len(s))
		for _, e := range s {
			f, ok := e.(float64)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	default:
		return nil, false
	}
}

// Time reads a timestamp field, accepting time.Time or RFC3339 strings.
func (r RawInput) Time(field string) (time.Time, bool) {
	v, ok := r[field]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// Bool reads a boolean field; absent fields read as false.
func (r RawInput) Bool(field string) bool {
	v, ok := r[field]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Features is the internal per-module representation produced from raw input.
// Pure data: building it performs no I/O.
type Features map[string]float64

// Get reads a feature with a default for missing keys.
func (f Features) Get(key string, def float64) float64 {
	if v, ok := f[key]; ok {
		return v
	}
	return def
}
