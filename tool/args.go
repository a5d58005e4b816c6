package tool

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Arguments is the decoded argument object of a tool call.
type Arguments map[string]any

// String returns the trimmed string value of name, or "" when absent.
// Numbers are formatted without a trailing fraction.
func (a Arguments) String(name string) string {
	switch v := a[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Int returns the integer value of name. ok is false when the argument is
// absent or blank.
func (a Arguments) Int(name string) (value int, ok bool, err error) {
	switch v := a[name].(type) {
	case nil:
		return 0, false, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, false, InvalidArguments("%s must be an integer", name)
		}
		return int(v), true, nil
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, false, InvalidArguments("%s must be an integer", name)
		}
		return n, true, nil
	default:
		return 0, false, InvalidArguments("%s must be an integer", name)
	}
}

// StringList returns name as a list of trimmed, non-empty strings. A single
// string value becomes a one-element list.
func (a Arguments) StringList(name string) []string {
	switch v := a[name].(type) {
	case nil:
		return nil
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
		return nil
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" && item != nil {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a shallow copy safe to attach to error details.
func (a Arguments) Clone() Arguments {
	out := make(Arguments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
