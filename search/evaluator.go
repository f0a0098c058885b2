package search

import (
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"

	"firewatch/core"
	"firewatch/fields"
)

// wildcardMatchTimeout bounds a single pattern match so hostile patterns
// cannot stall an evaluation goroutine.
const wildcardMatchTimeout = 100 * time.Millisecond

// maxCachedPatterns bounds the compiled-pattern cache.
const maxCachedPatterns = 512

// Evaluator applies a parsed query to records. Evaluation is pure: it
// inspects the record and the AST and returns a verdict, with no side
// effects beyond an internal compiled-wildcard cache. Safe for concurrent
// use.
type Evaluator struct {
	registry *fields.Registry

	mu       sync.RWMutex
	patterns map[string]*regexp2.Regexp
}

// NewEvaluator creates an evaluator backed by the given registry.
func NewEvaluator(registry *fields.Registry) *Evaluator {
	return &Evaluator{
		registry: registry,
		patterns: make(map[string]*regexp2.Regexp),
	}
}

// Matches reports whether the record satisfies the query. A predicate whose
// field is absent from the record is a non-match for that predicate, never
// an error; negation applies on top, so "NOT severity:high" does match a
// record with no severity at all. The evaluation instant resolves
// relative-time literals consistently across one result set.
func (e *Evaluator) Matches(record core.Record, ast *Node, entity core.EntityType, now time.Time) bool {
	if ast == nil {
		return true
	}

	switch ast.Type {
	case NodeNot:
		return !e.Matches(record, ast.Left, entity, now)
	case NodeAnd:
		return e.Matches(record, ast.Left, entity, now) && e.Matches(record, ast.Right, entity, now)
	case NodeOr:
		return e.Matches(record, ast.Left, entity, now) || e.Matches(record, ast.Right, entity, now)
	default:
		return e.matchLeaf(record, ast, entity, now)
	}
}

// Filter returns the records matching the query, preserving input order.
func (e *Evaluator) Filter(records []core.Record, ast *Node, entity core.EntityType, now time.Time) []core.Record {
	out := make([]core.Record, 0, len(records))
	for _, record := range records {
		if e.Matches(record, ast, entity, now) {
			out = append(out, record)
		}
	}
	return out
}

// matchLeaf evaluates a predicate, range or wildcard node. The field's
// candidate paths are alternatives: a match at any one of them matches the
// predicate.
func (e *Evaluator) matchLeaf(record core.Record, n *Node, entity core.EntityType, now time.Time) bool {
	entry, err := e.registry.Resolve(n.Field, entity)
	if err != nil {
		// Unknown fields are rejected by validation before evaluation runs.
		return false
	}

	for _, path := range entry.Paths {
		raw, ok := record.ValueAt(path)
		if !ok {
			continue
		}
		if e.matchValue(raw, n, entry, now) {
			return true
		}
	}
	return false
}

// matchValue compares one raw record value against the node. Array-valued
// record fields match when any element matches.
func (e *Evaluator) matchValue(raw interface{}, n *Node, entry *fields.Entry, now time.Time) bool {
	if items, ok := raw.([]interface{}); ok {
		for _, item := range items {
			if e.matchValue(item, n, entry, now) {
				return true
			}
		}
		return false
	}

	got, ok := entry.Normalize(raw, now)
	if !ok {
		return false
	}

	switch n.Type {
	case NodeWildcard:
		s, ok := got.(string)
		if !ok {
			return false
		}
		return e.matchWildcard(s, normalizePattern(n.Pattern, entry, now))

	case NodeRange:
		gotF, ok := got.(float64)
		if !ok {
			return false
		}
		min, minOK := entry.Normalize(n.Min, now)
		max, maxOK := entry.Normalize(n.Max, now)
		if !minOK || !maxOK {
			return false
		}
		minF, fOK := min.(float64)
		maxF, gOK := max.(float64)
		if !fOK || !gOK {
			return false
		}
		// Bounds are inclusive on both ends
		return gotF >= minF && gotF <= maxF

	default:
		want, ok := entry.Normalize(n.Value, now)
		if !ok {
			return false
		}
		return compareValues(got, want, n.Op)
	}
}

// compareValues applies an operator to two normalized values. Ordering
// operators require numeric normal forms; equality works on any kind.
func compareValues(got, want interface{}, op fields.Operator) bool {
	switch op {
	case fields.OpEquals:
		return got == want
	case fields.OpNotEquals:
		return got != want
	}

	gotF, gOK := got.(float64)
	wantF, wOK := want.(float64)
	if !gOK || !wOK {
		return false
	}

	switch op {
	case fields.OpGreater:
		return gotF > wantF
	case fields.OpGreaterEq:
		return gotF >= wantF
	case fields.OpLess:
		return gotF < wantF
	case fields.OpLessEq:
		return gotF <= wantF
	default:
		return false
	}
}

// normalizePattern runs the literal spans of a glob pattern through the
// field's normalizer, so the pattern compares against record values in
// their normalized form: "mac:aa-bb-*" matches a MAC stored with colons
// because both sides end up separator-stripped. Spans without a string
// normal form fall back to plain lowercasing.
func normalizePattern(pattern string, entry *fields.Entry, now time.Time) string {
	var out, run strings.Builder

	flush := func() {
		if run.Len() == 0 {
			return
		}
		literal := run.String()
		run.Reset()
		if norm, ok := entry.Normalize(literal, now); ok {
			if s, isString := norm.(string); isString {
				out.WriteString(s)
				return
			}
		}
		out.WriteString(strings.ToLower(literal))
	}

	for _, r := range pattern {
		if r == '*' || r == '?' {
			flush()
			out.WriteRune(r)
			continue
		}
		run.WriteRune(r)
	}
	flush()
	return out.String()
}

// matchWildcard matches a normalized string against a * / ? glob pattern.
func (e *Evaluator) matchWildcard(value, pattern string) bool {
	re, err := e.compilePattern(strings.ToLower(pattern))
	if err != nil {
		return false
	}
	matched, err := re.MatchString(value)
	if err != nil {
		// Timed out
		return false
	}
	return matched
}

// compilePattern translates a glob into an anchored regular expression,
// caching the compiled form. The cache is dropped wholesale when it fills,
// queries reuse a small set of patterns in practice.
func (e *Evaluator) compilePattern(pattern string) (*regexp2.Regexp, error) {
	e.mu.RLock()
	re, ok := e.patterns[pattern]
	e.mu.RUnlock()
	if ok {
		return re, nil
	}

	var sb strings.Builder
	sb.WriteString(`^`)
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(`.*`)
		case '?':
			sb.WriteString(`.`)
		default:
			sb.WriteString(regexp2.Escape(string(r)))
		}
	}
	sb.WriteString(`$`)

	re, err := regexp2.Compile(sb.String(), regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = wildcardMatchTimeout

	e.mu.Lock()
	if len(e.patterns) >= maxCachedPatterns {
		e.patterns = make(map[string]*regexp2.Regexp)
	}
	e.patterns[pattern] = re
	e.mu.Unlock()

	return re, nil
}
