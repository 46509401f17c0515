package action

import (
	"fmt"
	"strings"
)

const gidPrefix = "gid://shopify/"

// GID builds a Shopify global identifier from a bare numeric id and a type
// tag (e.g. GID("LineItem", "456") -> "gid://shopify/LineItem/456").
// Already-qualified identifiers pass through unchanged. Invalid input
// (zero, negative, non-numeric) yields "".
func GID(kind string, v any) string {
	if s, ok := v.(string); ok {
		if strings.HasPrefix(strings.TrimSpace(s), "gid://") {
			return strings.TrimSpace(s)
		}
	}
	n, ok := AsInt64(v)
	if !ok || n <= 0 {
		return ""
	}
	return fmt.Sprintf("%s%s/%d", gidPrefix, kind, n)
}

// NumericGID extracts the trailing numeric id from a qualified GID, or
// passes a bare numeric value through. Returns 0 when nothing numeric is
// present.
func NumericGID(v any) int64 {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if i := strings.LastIndex(s, "/"); i >= 0 {
			s = s[i+1:]
		}
		if n, ok := AsInt64(s); ok && n > 0 {
			return n
		}
		return 0
	}
	if n, ok := AsInt64(v); ok && n > 0 {
		return n
	}
	return 0
}
