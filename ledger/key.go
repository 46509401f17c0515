// Package ledger persists the auditable trail of proposed actions: pending,
// applied, declined and failed states, keyed by a content-derived action
// key so that re-proposing an identical action never duplicates a row.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/replyloop/replyloop/action"
)

// Key derives the dedup identity of a proposed action:
// lowercased type :: order reference :: canonical payload. The payload is
// serialized with object keys sorted recursively, so key order in the
// source map never affects the derived string; array element order is
// preserved.
func Key(t action.Type, orderRef string, payload map[string]any) string {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		// Non-JSON-able payloads still need a stable key; fall back to the
		// default marshal of the map.
		b, _ := json.Marshal(payload)
		canonical = b
	}
	return fmt.Sprintf("%s::%s::%s",
		strings.ToLower(strings.TrimSpace(string(t))),
		strings.TrimSpace(orderRef),
		string(canonical),
	)
}

// canonicalJSON encodes v as an ordered key/value pair array: objects
// flatten to [k1, v1, k2, v2, ...] with keys sorted lexicographically.
func canonicalJSON(v any) ([]byte, error) {
	cv, err := canonicalizeValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cv)
}

func canonicalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			vv, err := canonicalizeValue(x[k])
			if err != nil {
				return nil, err
			}
			out = append(out, k, vv)
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(x))
		for _, vv := range x {
			cv, err := canonicalizeValue(vv)
			if err != nil {
				return nil, err
			}
			out = append(out, cv)
		}
		return out, nil
	case string, float64, float32, bool, nil, int, int64, json.Number:
		return x, nil
	default:
		// Round-trip JSON-ish values through encoding/json.
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("cannot canonicalize value of type %T", v)
		}
		var y any
		if err := json.Unmarshal(b, &y); err != nil {
			return nil, fmt.Errorf("cannot canonicalize value of type %T", v)
		}
		return canonicalizeValue(y)
	}
}
