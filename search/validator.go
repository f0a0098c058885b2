package search

import (
	"fmt"
	"time"

	"firewatch/core"
	"firewatch/fields"
	"firewatch/util"
)

// MaxQueryLength bounds raw query text before any parsing happens.
const MaxQueryLength = 2048

// Validator checks queries against the field registry for one entity type.
// It is stateless apart from the registry reference and safe for concurrent
// use.
type Validator struct {
	registry *fields.Registry
}

// NewValidator creates a validator backed by the given registry.
func NewValidator(registry *fields.Registry) *Validator {
	return &Validator{registry: registry}
}

// PreValidate checks the raw query text before it reaches the parser:
// length, control characters, injection patterns and grouping balance.
// Oversized or hostile input never gets tokenized.
func (v *Validator) PreValidate(query string) error {
	errs := &ValidationErrors{}

	if query == "" {
		errs.add("", "query cannot be empty")
		return errs
	}
	if len(query) > MaxQueryLength {
		errs.add("", "query exceeds maximum length of %d characters (got %d)", MaxQueryLength, len(query))
		return errs
	}

	if err := util.CheckQueryContent(query); err != nil {
		errs.add("", "%s", err.Error())
	}
	if !util.BalancedGrouping(query) {
		errs.add("", "unbalanced parentheses or quotes in query")
	}

	return errs.orNil()
}

// Validate walks the AST and collects every semantic problem: unknown
// fields, operators the field does not support, range bounds that do not
// fit the field's type, and inverted ranges. All findings come back in one
// *ValidationErrors rather than failing on the first.
func (v *Validator) Validate(ast *Node, entity core.EntityType, now time.Time) error {
	errs := &ValidationErrors{}
	v.walk(ast, entity, now, errs)
	return errs.orNil()
}

func (v *Validator) walk(n *Node, entity core.EntityType, now time.Time, errs *ValidationErrors) {
	if n == nil {
		return
	}

	switch n.Type {
	case NodePredicate, NodeRange, NodeWildcard:
		v.checkLeaf(n, entity, now, errs)
	case NodeNot:
		v.walk(n.Left, entity, now, errs)
	case NodeAnd, NodeOr:
		v.walk(n.Left, entity, now, errs)
		v.walk(n.Right, entity, now, errs)
	}
}

func (v *Validator) checkLeaf(n *Node, entity core.EntityType, now time.Time, errs *ValidationErrors) {
	entry, err := v.registry.Resolve(n.Field, entity)
	if err != nil {
		errs.add(n.Field, "%s", err.Error())
		return
	}

	if !entry.Allows(n.Op) {
		errs.add(n.Field, "operator %q is not supported on field %q (type %s)", operatorLabel(n), n.Field, entry.Kind)
		return
	}

	switch n.Type {
	case NodeRange:
		min, minOK := entry.Normalize(n.Min, now)
		if !minOK {
			errs.add(n.Field, "range lower bound %q is not a valid %s value for field %q", n.Min, entry.Kind, n.Field)
		}
		max, maxOK := entry.Normalize(n.Max, now)
		if !maxOK {
			errs.add(n.Field, "range upper bound %q is not a valid %s value for field %q", n.Max, entry.Kind, n.Field)
		}
		if minOK && maxOK {
			minF, fOK := min.(float64)
			maxF, gOK := max.(float64)
			if fOK && gOK && minF > maxF {
				errs.add(n.Field, "range lower bound %q exceeds upper bound %q on field %q", n.Min, n.Max, n.Field)
			}
		}

	case NodePredicate:
		if _, ok := entry.Normalize(n.Value, now); !ok {
			hint := ""
			if entry.Kind == fields.KindSeverity {
				hint = fmt.Sprintf(" (expected one of: %v)", fields.SeverityNames())
			}
			errs.add(n.Field, "value %q is not a valid %s value for field %q%s", n.Value, entry.Kind, n.Field, hint)
		}
	}
}

// operatorLabel renders the operator the way the user wrote it.
func operatorLabel(n *Node) string {
	switch n.Type {
	case NodeRange:
		return "[min TO max]"
	case NodeWildcard:
		return "wildcard"
	}
	if text := comparatorText(n.Op); text != "" {
		return text
	}
	return string(n.Op)
}
