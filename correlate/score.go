package correlate

import (
	"strings"

	"firewatch/fields"
)

// similarity scores two normalized, unequal values of the same logical
// field in [0, 1). Exact equality is handled by the caller, so 1.0 never
// comes out of here.
func similarity(entry *fields.Entry, a, b interface{}) float64 {
	// Numeric, boolean and timestamp kinds have no meaningful partial match.
	if entry.Kind != fields.KindString {
		return 0
	}

	aStr, aIsStr := a.(string)
	bStr, bIsStr := b.(string)
	if !aIsStr || !bIsStr {
		return 0
	}

	if looksLikeIPv4(aStr) && looksLikeIPv4(bStr) {
		return ipv4Similarity(aStr, bStr)
	}
	return stringSimilarity(aStr, bStr)
}

// ipv4Similarity scores two dotted-quad addresses by shared leading octets.
// Addresses on the same /24 score 0.75, the same /16 0.5, and so on. This
// approximates subnet proximity without parsing prefixes.
func ipv4Similarity(a, b string) float64 {
	aOctets := strings.Split(a, ".")
	bOctets := strings.Split(b, ".")

	shared := 0
	for i := 0; i < 4; i++ {
		if aOctets[i] != bOctets[i] {
			break
		}
		shared++
	}
	return float64(shared) / 4
}

// looksLikeIPv4 is a cheap structural check, full parsing is unnecessary
// for a similarity heuristic.
func looksLikeIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return false
			}
		}
	}
	return true
}

// stringSimilarity is a normalized Levenshtein ratio: 1 minus the edit
// distance over the longer length.
func stringSimilarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	dist := fields.EditDistance(a, b)
	return 1 - float64(dist)/float64(longer)
}
