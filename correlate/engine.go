package correlate

import (
	"fmt"
	"strings"
	"time"

	"firewatch/core"
	"firewatch/fields"
)

// Field-count bounds for one correlation request.
const (
	MinCorrelationFields = 1
	MaxCorrelationFields = 5
)

// Combination mode across correlation fields.
const (
	ModeAnd = "AND"
	ModeOr  = "OR"
)

// Fuzzy configures approximate matching. When disabled every field
// comparison is exact equality on normalized values.
type Fuzzy struct {
	Enabled      bool
	MinimumScore float64
}

// Window constrains matches to records whose timestamps lie within the
// given span of each other. A zero size disables the constraint.
type Window struct {
	Size int
	Unit string
}

// Seconds converts the window to seconds. Unknown units are caught by
// validation before this runs.
func (w Window) Seconds() float64 {
	switch strings.ToLower(w.Unit) {
	case "second", "seconds", "s":
		return float64(w.Size)
	case "minute", "minutes", "m":
		return float64(w.Size) * 60
	case "hour", "hours", "h":
		return float64(w.Size) * 3600
	case "day", "days", "d":
		return float64(w.Size) * 86400
	default:
		return 0
	}
}

// validUnit reports whether the window unit is recognized.
func (w Window) validUnit() bool {
	switch strings.ToLower(w.Unit) {
	case "second", "seconds", "s", "minute", "minutes", "m",
		"hour", "hours", "h", "day", "days", "d":
		return true
	}
	return false
}

// Spec describes one correlation request: which logical fields join the
// sets, how field verdicts combine, and the optional fuzzy and temporal
// constraints.
type Spec struct {
	Fields []string
	Mode   string
	Fuzzy  Fuzzy
	Window Window
}

// ResultSet is one entity's records entering a correlation.
type ResultSet struct {
	Entity  core.EntityType
	Records []core.Record
}

// Match is one correlated pair. Confidence is the mean per-field
// similarity over the matched fields, so an all-exact match scores 1.0
// in either mode and a kept fuzzy match never scores below the minimum
// score (fields under the threshold do not count as matched).
type Match struct {
	Primary         core.Record     `json:"primary"`
	Secondary       core.Record     `json:"secondary"`
	SecondaryEntity core.EntityType `json:"secondary_entity"`
	MatchedFields   []string        `json:"matched_fields"`
	Confidence      float64         `json:"confidence"`
}

// Engine joins result sets of different entity types on shared logical
// fields. Stateless apart from the registry reference, safe for concurrent
// use.
type Engine struct {
	registry *fields.Registry
}

// NewEngine creates a correlation engine backed by the given registry.
func NewEngine(registry *fields.Registry) *Engine {
	return &Engine{registry: registry}
}

// ValidateSpec checks the request before any record is touched. Every
// correlation field must be registered for the primary entity type and for
// every secondary entity type; one incompatible field rejects the whole
// request.
func (e *Engine) ValidateSpec(spec Spec, primary core.EntityType, secondaries ...core.EntityType) error {
	if len(spec.Fields) < MinCorrelationFields || len(spec.Fields) > MaxCorrelationFields {
		return &CorrelationError{
			Message: fmt.Sprintf("between %d and %d correlation fields required, got %d",
				MinCorrelationFields, MaxCorrelationFields, len(spec.Fields)),
		}
	}

	seen := make(map[string]bool, len(spec.Fields))
	for _, field := range spec.Fields {
		if seen[field] {
			return &CorrelationError{Field: field, Message: "duplicate correlation field"}
		}
		seen[field] = true
	}

	mode := strings.ToUpper(spec.Mode)
	if mode != ModeAnd && mode != ModeOr {
		return &CorrelationError{
			Message: fmt.Sprintf("combination mode must be %s or %s, got %q", ModeAnd, ModeOr, spec.Mode),
		}
	}

	if spec.Fuzzy.Enabled && (spec.Fuzzy.MinimumScore <= 0 || spec.Fuzzy.MinimumScore > 1) {
		return &CorrelationError{
			Message: fmt.Sprintf("fuzzy minimum score must be in (0, 1], got %g", spec.Fuzzy.MinimumScore),
		}
	}

	if spec.Window.Size < 0 {
		return &CorrelationError{Message: "temporal window size cannot be negative"}
	}
	if spec.Window.Size > 0 && !spec.Window.validUnit() {
		return &CorrelationError{
			Message: fmt.Sprintf("unknown temporal window unit %q", spec.Window.Unit),
		}
	}

	entities := append([]core.EntityType{primary}, secondaries...)
	for _, field := range spec.Fields {
		for _, entity := range entities {
			if _, err := e.registry.Resolve(field, entity); err != nil {
				return &CorrelationError{
					Field:   field,
					Message: fmt.Sprintf("not a correlatable field of entity type %q", entity),
				}
			}
		}
	}

	if spec.Window.Size > 0 {
		for _, entity := range entities {
			if _, err := e.registry.Resolve("timestamp", entity); err != nil {
				return &CorrelationError{
					Message: fmt.Sprintf("entity type %q has no timestamp field for temporal windowing", entity),
				}
			}
		}
	}

	return nil
}

// Correlate joins the primary set against every secondary set. Matches come
// back in deterministic order: primary record order, then secondary set
// order, then secondary record order. The evaluation instant resolves
// relative timestamps consistently across the whole join.
func (e *Engine) Correlate(primary ResultSet, secondaries []ResultSet, spec Spec, now time.Time) ([]Match, error) {
	secondaryEntities := make([]core.EntityType, len(secondaries))
	for i, s := range secondaries {
		secondaryEntities[i] = s.Entity
	}
	if err := e.ValidateSpec(spec, primary.Entity, secondaryEntities...); err != nil {
		return nil, err
	}

	mode := strings.ToUpper(spec.Mode)
	windowSeconds := spec.Window.Seconds()

	var matches []Match
	for _, primaryRecord := range primary.Records {
		for _, secondary := range secondaries {
			for _, secondaryRecord := range secondary.Records {
				match, ok := e.matchPair(primaryRecord, primary.Entity, secondaryRecord, secondary.Entity, spec, mode, windowSeconds, now)
				if ok {
					match.SecondaryEntity = secondary.Entity
					matches = append(matches, match)
				}
			}
		}
	}

	return matches, nil
}

// matchPair compares one primary/secondary record pair on every requested
// field and applies the combination mode and temporal window.
func (e *Engine) matchPair(primaryRecord core.Record, primaryEntity core.EntityType, secondaryRecord core.Record, secondaryEntity core.EntityType, spec Spec, mode string, windowSeconds float64, now time.Time) (Match, bool) {
	if windowSeconds > 0 && !e.withinWindow(primaryRecord, primaryEntity, secondaryRecord, secondaryEntity, windowSeconds, now) {
		return Match{}, false
	}

	var matched []string
	var total float64

	for _, field := range spec.Fields {
		score := e.fieldScore(field, primaryRecord, primaryEntity, secondaryRecord, secondaryEntity, spec.Fuzzy, now)
		if score > 0 {
			matched = append(matched, field)
			total += score
		} else if mode == ModeAnd {
			return Match{}, false
		}
	}

	if len(matched) == 0 {
		return Match{}, false
	}

	return Match{
		Primary:       primaryRecord,
		Secondary:     secondaryRecord,
		MatchedFields: matched,
		Confidence:    total / float64(len(matched)),
	}, true
}

// fieldScore computes the similarity of one logical field across the pair.
// Returns 0 when either side is missing the field or the values do not
// meet the match criteria.
func (e *Engine) fieldScore(field string, primaryRecord core.Record, primaryEntity core.EntityType, secondaryRecord core.Record, secondaryEntity core.EntityType, fuzzy Fuzzy, now time.Time) float64 {
	primaryValue, ok := e.fieldValue(field, primaryRecord, primaryEntity, now)
	if !ok {
		return 0
	}
	secondaryValue, ok := e.fieldValue(field, secondaryRecord, secondaryEntity, now)
	if !ok {
		return 0
	}

	if primaryValue == secondaryValue {
		return 1
	}
	if !fuzzy.Enabled {
		return 0
	}

	entry, err := e.registry.Resolve(field, primaryEntity)
	if err != nil {
		return 0
	}
	score := similarity(entry, primaryValue, secondaryValue)
	if score < fuzzy.MinimumScore {
		return 0
	}
	return score
}

// fieldValue resolves a logical field's normalized value for one record,
// trying candidate paths in order.
func (e *Engine) fieldValue(field string, record core.Record, entity core.EntityType, now time.Time) (interface{}, bool) {
	entry, err := e.registry.Resolve(field, entity)
	if err != nil {
		return nil, false
	}
	for _, path := range entry.Paths {
		raw, ok := record.ValueAt(path)
		if !ok {
			continue
		}
		if norm, ok := entry.Normalize(raw, now); ok {
			return norm, true
		}
	}
	return nil, false
}

// withinWindow checks the temporal constraint. A record with no resolvable
// timestamp cannot satisfy a windowed correlation.
func (e *Engine) withinWindow(primaryRecord core.Record, primaryEntity core.EntityType, secondaryRecord core.Record, secondaryEntity core.EntityType, windowSeconds float64, now time.Time) bool {
	primaryTS, ok := e.fieldValue("timestamp", primaryRecord, primaryEntity, now)
	if !ok {
		return false
	}
	secondaryTS, ok := e.fieldValue("timestamp", secondaryRecord, secondaryEntity, now)
	if !ok {
		return false
	}

	a, aOK := primaryTS.(float64)
	b, bOK := secondaryTS.(float64)
	if !aOK || !bOK {
		return false
	}

	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= windowSeconds
}
