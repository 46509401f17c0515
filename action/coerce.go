package action

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// AsNumber coerces heterogeneous JSON values to a finite float64.
// Numeric strings parse; non-numeric input reports false.
func AsNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case float32:
		return AsNumber(float64(x))
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		return AsNumber(x.String())
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsInt64 coerces to a whole number, rejecting fractional values.
func AsInt64(v any) (int64, bool) {
	n, ok := AsNumber(v)
	if !ok {
		return 0, false
	}
	if n != math.Trunc(n) {
		return 0, false
	}
	return int64(n), true
}

// AsString returns the trimmed string form of v. Non-strings collapse to "".
func AsString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// AsBool coerces booleans and their common string/number spellings.
func AsBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "1":
			return true
		}
		return false
	default:
		if n, ok := AsNumber(v); ok {
			return n != 0
		}
		return false
	}
}
