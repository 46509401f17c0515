package action

import (
	"regexp"
	"strings"
)

// Boilerplate lead-ins seen in "please change the address" sentences.
var addressPrefixes = []string{
	"please change the shipping address to",
	"please change the address to",
	"change the shipping address to",
	"change shipping address to",
	"change the address to",
	"change address to",
	"update the address to",
	"update address to",
	"new shipping address:",
	"new address:",
	"address change:",
	"ship to:",
	"ship to",
}

// A short alphanumeric postal code followed by a city name, e.g.
// "1620 København" or "90210 Beverly Hills".
var zipCityRe = regexp.MustCompile(`^([0-9][0-9A-Za-z-]{2,9})\s+([^\d]\S.*)$`)

// A segment that is only a short postal code.
var zipSegRe = regexp.MustCompile(`^[0-9A-Za-z-]{3,10}$`)

// ParseAddress attempts to recover a structured address from a free-text
// address-change sentence. It segments on commas, strips known boilerplate
// prefixes, takes a leading no-digit segment as the person name (only when
// at least two segments remain), a trailing no-digit segment as the
// country, and one zip(+city) segment; the leftovers become address lines.
//
// Best effort only: a nil result means "could not infer" and callers must
// fail closed rather than guess.
func ParseAddress(text string) *Address {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)
	for _, p := range addressPrefixes {
		if strings.HasPrefix(lower, p) {
			t = strings.TrimSpace(t[len(p):])
			break
		}
	}
	t = strings.Trim(t, " .")
	if t == "" {
		return nil
	}

	var segs []string
	for _, s := range strings.Split(t, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return nil
	}

	addr := &Address{}

	if len(segs) >= 2 && !hasDigit(segs[0]) {
		addr.Name = segs[0]
		segs = segs[1:]
	}
	if len(segs) >= 2 && !hasDigit(segs[len(segs)-1]) {
		addr.Country = segs[len(segs)-1]
		segs = segs[:len(segs)-1]
	}

	segs = extractZipCity(segs, addr)

	if len(segs) > 0 {
		addr.Address1 = segs[0]
	}
	if len(segs) > 1 {
		addr.Address2 = strings.Join(segs[1:], ", ")
	}

	// Digit-free prose is not an address. Without a postal code or a house
	// number there is nothing to ship to, so refuse to guess.
	if addr.Zip == "" && !hasDigit(addr.Address1) {
		return nil
	}
	return addr
}

// extractZipCity removes the zip (and city, when recoverable) from segs.
// Two shapes are handled: a combined "zip city" segment, and a bare zip
// segment followed by a no-digit city segment.
func extractZipCity(segs []string, addr *Address) []string {
	for i, s := range segs {
		if m := zipCityRe.FindStringSubmatch(s); m != nil {
			addr.Zip = m[1]
			addr.City = strings.TrimSpace(m[2])
			return append(segs[:i:i], segs[i+1:]...)
		}
	}
	for i, s := range segs {
		if !zipSegRe.MatchString(s) || !hasDigit(s) {
			continue
		}
		// Street lines ("Vesterbrogade 86") never match zipSegRe because
		// of the space, so a bare match here is a postal code.
		addr.Zip = s
		rest := append(segs[:i:i], segs[i+1:]...)
		if i+1 < len(segs) && !hasDigit(segs[i+1]) {
			// The city segment sits at index i of rest once the zip is gone.
			addr.City = segs[i+1]
			rest = append(rest[:i:i], rest[i+1:]...)
		}
		return rest
	}
	return segs
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
