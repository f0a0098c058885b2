package fields

// MaxSuggestionDistance is the edit-distance ceiling for field name
// suggestions in unknown-field errors.
const MaxSuggestionDistance = 2

// EditDistance computes the Levenshtein distance between two strings.
// Used for field-name suggestions and for fuzzy string similarity in the
// correlation engine.
func EditDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// Suggest returns the candidate lexically closest to target, or "" when no
// candidate is within MaxSuggestionDistance edits. Ties resolve to the
// first candidate in iteration order, so callers should pass sorted slices
// for deterministic suggestions.
func Suggest(target string, candidates []string) string {
	best := ""
	bestDist := MaxSuggestionDistance + 1

	for _, candidate := range candidates {
		d := EditDistance(target, candidate)
		if d < bestDist {
			best = candidate
			bestDist = d
		}
	}

	return best
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
