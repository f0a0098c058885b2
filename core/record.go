package core

import "strings"

// Record is a raw vendor record: a generic tree of scalars and nested
// mappings, addressable by dot-separated key paths. Vendor records vary in
// shape per entity type and even per record, so no per-entity struct exists;
// the evaluator and correlation engine both address records through ValueAt.
type Record map[string]interface{}

// ValueAt resolves a dot-separated path (e.g. "device.ip") against the
// record. Returns the value and true if every path segment exists, or
// (nil, false) when any segment is missing or a non-map is traversed.
// Absence is not an error condition for callers: a missing field simply
// evaluates a predicate to false.
func (r Record) ValueAt(path string) (interface{}, bool) {
	if r == nil || path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")
	var current interface{} = map[string]interface{}(r)

	for i, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			// Records decoded through Record-typed intermediaries
			if rm, ok2 := current.(Record); ok2 {
				m = map[string]interface{}(rm)
			} else {
				return nil, false
			}
		}

		val, exists := m[part]
		if !exists {
			return nil, false
		}

		if i == len(parts)-1 {
			return val, true
		}
		current = val
	}

	return nil, false
}

// Page is a bounded window of records fetched from the vendor API, plus an
// indication of whether more pages exist upstream. The query engine only
// consumes pages; it never initiates fetching.
type Page struct {
	Records []Record
	HasMore bool
}
