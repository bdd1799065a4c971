// Package phone canonicalizes recipient numbers and generates the lookup
// variants used when matching inbound traffic to earlier deliveries.
package phone

import (
	"fmt"
	"regexp"
	"strings"
)

var listSeparators = regexp.MustCompile(`[\n,;]+`)

// Normalize keeps only the digits of raw and prefixes them with "+".
// Empty or digit-free input yields "+".
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + 1)
	b.WriteByte('+')
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseList splits free-form operator input on newlines, commas and
// semicolons and returns the normalized numbers in first-seen order.
func ParseList(raw string) []string {
	return Dedup(listSeparators.Split(raw, -1))
}

// Dedup normalizes every non-blank entry and drops repeats, keeping the
// first occurrence. Entries without a single digit are dropped.
func Dedup(numbers []string) []string {
	seen := make(map[string]struct{}, len(numbers))
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		norm := Normalize(n)
		if norm == "+" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// PrefixSwap pairs an international country code with the national trunk
// prefix that replaces it in local notation, e.g. 212 and 0.
type PrefixSwap struct {
	CountryCode string
	TrunkPrefix string
}

// ParsePrefixSwaps reads "212:0,33:0".
func ParsePrefixSwaps(s string) ([]PrefixSwap, error) {
	var swaps []PrefixSwap
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cc, trunk, ok := strings.Cut(part, ":")
		cc, trunk = strings.TrimSpace(cc), strings.TrimSpace(trunk)
		if !ok || !isDigits(cc) || !isDigits(trunk) {
			return nil, fmt.Errorf("invalid prefix swap %q, want countrycode:trunkprefix", part)
		}
		swaps = append(swaps, PrefixSwap{CountryCode: cc, TrunkPrefix: trunk})
	}
	return swaps, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Normalizer produces candidate formats for reconciliation lookups.
type Normalizer struct {
	Swaps []PrefixSwap
}

func NewNormalizer(swaps ...PrefixSwap) *Normalizer {
	return &Normalizer{Swaps: swaps}
}

// CandidateFormats lists the formats a stored number may have, most
// likely first: as received, normalized, the received form with its "+"
// toggled, then one variant per configured prefix swap in each direction.
func (n *Normalizer) CandidateFormats(raw string) []string {
	raw = strings.TrimSpace(raw)
	norm := Normalize(raw)

	candidates := []string{raw, norm}
	if bare, ok := strings.CutPrefix(raw, "+"); ok {
		candidates = append(candidates, bare)
	} else {
		candidates = append(candidates, "+"+raw)
	}

	digits := strings.TrimPrefix(norm, "+")
	if n != nil {
		for _, s := range n.Swaps {
			if rest, ok := strings.CutPrefix(digits, s.CountryCode); ok && rest != "" {
				candidates = append(candidates, "+"+s.TrunkPrefix+rest)
			}
			if rest, ok := strings.CutPrefix(digits, s.TrunkPrefix); ok && rest != "" {
				candidates = append(candidates, "+"+s.CountryCode+rest)
			}
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if c == "" || c == "+" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
