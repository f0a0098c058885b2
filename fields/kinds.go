package fields

// ValueKind describes the logical data type of a registry field. The kind
// selects which normalizer applies and which operators a query may use.
type ValueKind string

const (
	KindString    ValueKind = "string"
	KindNumber    ValueKind = "number"
	KindBool      ValueKind = "boolean"
	KindTimestamp ValueKind = "timestamp"
	KindSeverity  ValueKind = "severity"
)

// Operator is a comparison operator applied by a query predicate.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpGreater   Operator = ">"
	OpGreaterEq Operator = ">="
	OpLess      Operator = "<"
	OpLessEq    Operator = "<="
	OpRange     Operator = "range"
	OpWildcard  Operator = "wildcard"
)

// Operator sets per value kind. Wildcards only make sense on string-shaped
// values; ordering comparisons only on values with a numeric normal form.
var (
	stringOperators = []Operator{OpEquals, OpNotEquals, OpWildcard}

	numberOperators = []Operator{
		OpEquals, OpNotEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq, OpRange,
	}

	severityOperators = []Operator{
		OpEquals, OpNotEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq,
	}

	timestampOperators = []Operator{
		OpEquals, OpNotEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq, OpRange,
	}

	boolOperators = []Operator{OpEquals, OpNotEquals}
)

// Correlation usefulness weights per field role. Identity fields join
// records most reliably, temporal fields next, geographic fields after that.
const (
	WeightIdentity    = 1.0
	WeightTemporal    = 0.6
	WeightGeographic  = 0.4
	WeightDescriptive = 0.2
)
