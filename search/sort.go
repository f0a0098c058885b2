package search

import (
	"sort"
	"time"

	"firewatch/core"
	"firewatch/fields"
)

// sortKey is a precomputed per-record ordering key.
type sortKey struct {
	num    float64
	str    string
	isNum  bool
	absent bool
}

// SortRecords orders records by a logical field, in place and stably, so
// equal keys keep their upstream order and pagination stays deterministic.
// The sort key is the field's normalized value at its first populated
// candidate path. Records missing the field sort after all records that
// have it, regardless of direction.
func SortRecords(records []core.Record, entry *fields.Entry, descending bool, now time.Time) {
	if entry == nil {
		return
	}

	type keyed struct {
		record core.Record
		key    sortKey
	}

	items := make([]keyed, len(records))
	for i, record := range records {
		items[i] = keyed{record: record, key: recordKey(record, entry, now)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].key, items[j].key
		if a.absent || b.absent {
			// Missing keys sink to the end in either direction
			return !a.absent && b.absent
		}

		var less bool
		switch {
		case a.isNum && b.isNum:
			if a.num == b.num {
				return false
			}
			less = a.num < b.num
		default:
			if a.str == b.str {
				return false
			}
			less = a.str < b.str
		}
		if descending {
			return !less
		}
		return less
	})

	for i := range items {
		records[i] = items[i].record
	}
}

// recordKey extracts the ordering key for one record.
func recordKey(record core.Record, entry *fields.Entry, now time.Time) sortKey {
	for _, path := range entry.Paths {
		raw, ok := record.ValueAt(path)
		if !ok {
			continue
		}
		norm, ok := entry.Normalize(raw, now)
		if !ok {
			continue
		}
		switch v := norm.(type) {
		case float64:
			return sortKey{num: v, isNum: true}
		case bool:
			n := 0.0
			if v {
				n = 1.0
			}
			return sortKey{num: n, isNum: true}
		case string:
			return sortKey{str: v}
		}
	}
	return sortKey{absent: true}
}
