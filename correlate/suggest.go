package correlate

import (
	"sort"

	"firewatch/core"
	"firewatch/fields"
)

// Suggestion is one recommended correlation field set, scored by the static
// usefulness weights of its fields.
type Suggestion struct {
	Fields []string `json:"fields"`
	Score  float64  `json:"score"`
	Reason string   `json:"reason"`
}

// maxSuggestions bounds the list a single request returns.
const maxSuggestions = 10

// SuggestFields recommends correlation field sets for a primary entity type
// and its secondaries. Candidates are the logical fields shared by every
// involved entity type, ranked by weight: single identity fields first,
// then identity pairs, then weaker fields. Output order is deterministic.
func SuggestFields(registry *fields.Registry, primary core.EntityType, secondaries ...core.EntityType) []Suggestion {
	entities := append([]core.EntityType{primary}, secondaries...)
	shared := registry.SharedFields(entities...)
	if len(shared) == 0 {
		return nil
	}

	type weighted struct {
		name   string
		weight float64
	}
	candidates := make([]weighted, 0, len(shared))
	for _, name := range shared {
		entry, err := registry.Resolve(name, primary)
		if err != nil {
			continue
		}
		candidates = append(candidates, weighted{name: name, weight: entry.Weight})
	}

	var suggestions []Suggestion
	for _, c := range candidates {
		suggestions = append(suggestions, Suggestion{
			Fields: []string{c.name},
			Score:  c.weight,
			Reason: reasonFor(c.weight),
		})
	}

	// Pairs score as the mean weight of their members, keeping identity
	// pairs ahead of identity-plus-descriptive combinations.
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			suggestions = append(suggestions, Suggestion{
				Fields: []string{candidates[i].name, candidates[j].name},
				Score:  (candidates[i].weight + candidates[j].weight) / 2,
				Reason: "combined fields narrow the join",
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		if len(suggestions[i].Fields) != len(suggestions[j].Fields) {
			return len(suggestions[i].Fields) < len(suggestions[j].Fields)
		}
		return suggestions[i].Fields[0] < suggestions[j].Fields[0]
	})

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

// reasonFor explains a single-field score in terms of the field's role.
func reasonFor(weight float64) string {
	switch {
	case weight >= fields.WeightIdentity:
		return "identity field, joins records for the same endpoint"
	case weight >= fields.WeightTemporal:
		return "temporal field, joins records from the same time span"
	case weight >= fields.WeightGeographic:
		return "geographic field, joins records from the same region"
	default:
		return "descriptive field, weak join on its own"
	}
}
