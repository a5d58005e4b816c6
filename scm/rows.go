package scm

import (
	"math"
	"strconv"
	"strings"

	"github.com/petal-labs/mcp-oracle-scm/oracle"
)

// field returns row[key], or fallback when the column is missing or blank.
func field(row oracle.Row, key, fallback string) string {
	if v := strings.TrimSpace(row[key]); v != "" {
		return v
	}
	return fallback
}

// parseNumber parses report numerics, which may carry thousands separators.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// wholeNumber truncates a report numeric to an int. Blank values are zero.
func wholeNumber(s string) (int, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, true
	}
	f, ok := parseNumber(s)
	if !ok {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

// numberOrZero parses s, treating anything unparsable as zero.
func numberOrZero(s string) float64 {
	f, _ := parseNumber(s)
	return f
}

// lowerRow converts a report row to lowercase keys, blank values to nil and
// the named numeric columns to float64.
func lowerRow(row oracle.Row, numeric ...string) map[string]any {
	out := make(map[string]any, len(row))
	for key, value := range row {
		lower := strings.ToLower(key)
		if value == "" {
			out[lower] = nil
			continue
		}
		out[lower] = value
	}
	for _, key := range numeric {
		lower := strings.ToLower(key)
		s, ok := out[lower].(string)
		if !ok {
			continue
		}
		if f, ok := parseNumber(s); ok {
			out[lower] = f
		}
	}
	return out
}

// floatField reads a numeric value produced by lowerRow.
func floatField(row map[string]any, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case string:
		return numberOrZero(v)
	default:
		return 0
	}
}

func stringField(row map[string]any, key string) string {
	s, _ := row[key].(string)
	return s
}
