// Package numeric coerces loosely typed scraped values into numbers.
//
// Scraped analytics and planner output mix numbers, numeric strings,
// percentages and thousands separators. The helpers here read the leading
// numeric prefix of a string after removing commas, and fall back to zero
// for anything that is not a finite number.
package numeric

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

// ParseFloat returns the leading float in s, or 0.
func ParseFloat(s string) float64 {
	f, ok := LookupFloat(s)
	if !ok {
		return 0
	}
	return f
}

// LookupFloat is ParseFloat with a found flag.
func LookupFloat(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	m := floatPrefix.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseInt returns the leading integer in s, or 0. A fractional part is dropped.
func ParseInt(s string) int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	m := intPrefix.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// Float coerces v to a float64. Unsupported types yield 0.
func Float(v any) float64 {
	f, _ := LookupAny(v)
	return f
}

// LookupAny is Float with a found flag.
func LookupAny(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		return LookupFloat(x.String())
	case string:
		return LookupFloat(x)
	case bool:
		return 0, false
	}
	return 0, false
}

// Int coerces v to an int, truncating any fractional part.
func Int(v any) int {
	switch x := v.(type) {
	case string:
		return ParseInt(x)
	case json.Number:
		return ParseInt(x.String())
	}
	f, ok := LookupAny(v)
	if !ok {
		return 0
	}
	return int(f)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
