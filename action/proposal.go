package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNoProposal = errors.New("no action proposal found in text")

// looseProposal tolerates the field spellings seen in stored draft logs.
type looseProposal struct {
	Type        string         `json:"type"`
	Action      string         `json:"action"`
	OrderID     any            `json:"orderId"`
	OrderIDAlt  any            `json:"order_id"`
	OrderNumber any            `json:"order_number"`
	Payload     map[string]any `json:"payload"`
	Params      map[string]any `json:"params"`
}

// ParseProposalText recovers a structured proposal from a stored free-text
// draft log entry. Old records embed the proposal as a JSON blob inside
// surrounding prose; candidates are collected and repaired before decoding.
func ParseProposalText(text string) (Proposed, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Proposed{}, ErrNoProposal
	}

	data, err := findJSONPayload(raw)
	if err != nil {
		return Proposed{}, fmt.Errorf("%w: %v", ErrNoProposal, err)
	}

	var lp looseProposal
	if err := json.Unmarshal(data, &lp); err != nil {
		return Proposed{}, fmt.Errorf("%w: %v", ErrNoProposal, err)
	}

	t := strings.TrimSpace(lp.Type)
	if t == "" {
		t = strings.TrimSpace(lp.Action)
	}
	if t == "" {
		return Proposed{}, fmt.Errorf("%w: missing action type", ErrNoProposal)
	}

	orderRef := ""
	for _, v := range []any{lp.OrderID, lp.OrderIDAlt, lp.OrderNumber} {
		if s := looseRefString(v); s != "" {
			orderRef = s
			break
		}
	}

	pl := lp.Payload
	if pl == nil {
		pl = lp.Params
	}

	return Proposed{Type: Type(strings.ToLower(t)), OrderRef: orderRef, Payload: pl}, nil
}

func looseRefString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		if n, ok := AsInt64(x); ok && n > 0 {
			return fmt.Sprintf("%d", n)
		}
	}
	return ""
}

// findJSONPayload locates the first parseable JSON candidate in the input,
// trying stripped and repaired variants of each candidate in turn.
func findJSONPayload(raw string) ([]byte, error) {
	var lastErr error
	for _, cand := range jsonCandidates(raw) {
		for _, variant := range candidateVariants(cand) {
			if strings.TrimSpace(variant) == "" {
				continue
			}
			var tmp any
			if err := json.Unmarshal([]byte(variant), &tmp); err != nil {
				lastErr = err
				continue
			}
			return []byte(variant), nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("no json candidates")
}

func jsonCandidates(raw string) []string {
	out := make([]string, 0, 8)
	seen := make(map[string]bool, 8)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(raw)
	for _, c := range fencedBlocks(raw) {
		add(c)
	}
	for _, c := range braceSnippets(raw) {
		add(c)
	}
	return out
}

func candidateVariants(candidate string) []string {
	out := make([]string, 0, 4)
	seen := make(map[string]bool, 4)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(candidate)
	stripped := stripNonJSONLines(candidate)
	add(stripped)
	add(repairJSON(candidate))
	if stripped != "" && stripped != candidate {
		add(repairJSON(stripped))
	}
	return out
}

// fencedBlocks returns the bodies of markdown code fences, with any
// language tag on the opening line dropped.
func fencedBlocks(raw string) []string {
	var out []string
	rest := raw
	for {
		i := strings.Index(rest, "```")
		if i < 0 {
			break
		}
		rest = rest[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			tag := strings.TrimSpace(rest[:nl])
			if len(tag) <= 16 && !strings.ContainsAny(tag, "{}[]") {
				rest = rest[nl+1:]
			}
		}
		j := strings.Index(rest, "```")
		if j < 0 {
			break
		}
		out = append(out, rest[:j])
		rest = rest[j+3:]
	}
	return out
}

// braceSnippets extracts every balanced {...} or [...] span from the text,
// ignoring braces that sit inside JSON string literals.
func braceSnippets(raw string) []string {
	var out []string
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' && raw[i] != '[' {
			continue
		}
		end := matchBalanced(raw, i)
		if end < 0 {
			continue
		}
		out = append(out, raw[i:end+1])
		i = end
	}
	return out
}

func matchBalanced(s string, start int) int {
	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch c {
			case '\\':
				i++
			case '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripNonJSONLines drops the prose lines around an embedded JSON block,
// keeping only lines that start with a token JSON itself can start with.
func stripNonJSONLines(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "```") {
			continue
		}
		if !strings.ContainsRune(`{}[]",-0123456789tfn`, rune(t[0])) {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// repairJSON fixes the two damage patterns stored drafts actually show:
// curly quotes pasted from rich-text editors and a trailing comma before a
// closing brace or bracket.
func repairJSON(s string) string {
	s = strings.NewReplacer("“", `"`, "”", `"`).Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	inStr := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(s) {
					i++
					b.WriteByte(s[i])
				}
			case '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case ',':
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\r' || s[j] == '\n') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String())
}
