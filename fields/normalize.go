package fields

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Normalizer converts a raw value (from a record or a query literal) into
// its canonical comparable form: float64 for anything with a numeric normal
// form (numbers, timestamps, severities), bool for booleans, lowercased
// string otherwise. Returns false when the value has no normal form of the
// expected kind; callers treat that as a non-match, never an error.
//
// The evaluation instant is passed explicitly so relative-time literals
// ("today", "last 24h") resolve deterministically within one evaluation.
type Normalizer func(v interface{}, now time.Time) (interface{}, bool)

// severityScale maps the closed severity vocabulary onto a strictly
// increasing numeric scale so ordering comparisons compose correctly.
var severityScale = map[string]float64{
	"low":      1,
	"medium":   2,
	"high":     3,
	"critical": 4,
}

// SeverityNames returns the severity vocabulary in ascending order.
func SeverityNames() []string {
	return []string{"low", "medium", "high", "critical"}
}

// NormalizeString lowercases and trims a string-shaped value. String
// comparisons throughout the engine are case-insensitive after this step.
func NormalizeString(v interface{}, _ time.Time) (interface{}, bool) {
	return strings.ToLower(strings.TrimSpace(toString(v))), true
}

// NormalizeIP canonicalizes IP-like strings: trimmed and lowercased (IPv6
// hex digits and zone identifiers compare case-insensitively).
func NormalizeIP(v interface{}, _ time.Time) (interface{}, bool) {
	return strings.ToLower(strings.TrimSpace(toString(v))), true
}

// NormalizeMAC strips separator characters from MAC addresses and
// lowercases, so "AA:BB:CC:DD:EE:FF" and "aa-bb-cc-dd-ee-ff" compare equal.
func NormalizeMAC(v interface{}, _ time.Time) (interface{}, bool) {
	s := strings.ToLower(strings.TrimSpace(toString(v)))
	s = strings.NewReplacer(":", "", "-", "", ".", "").Replace(s)
	return s, true
}

// NormalizeProtocol lowercases protocol names (TCP == tcp).
func NormalizeProtocol(v interface{}, _ time.Time) (interface{}, bool) {
	return strings.ToLower(strings.TrimSpace(toString(v))), true
}

// NormalizeSeverity maps the severity vocabulary onto its numeric scale.
// Numeric inputs already on the scale pass through.
func NormalizeSeverity(v interface{}, _ time.Time) (interface{}, bool) {
	if f, ok := toFloat64(v); ok {
		if f >= 1 && f <= 4 {
			return f, true
		}
		return nil, false
	}

	name := strings.ToLower(strings.TrimSpace(toString(v)))
	if scale, ok := severityScale[name]; ok {
		return scale, true
	}
	return nil, false
}

// NormalizeNumber converts numeric values and numeric strings to float64.
func NormalizeNumber(v interface{}, _ time.Time) (interface{}, bool) {
	if f, ok := toFloat64(v); ok {
		return f, true
	}
	return nil, false
}

// NormalizeBool converts booleans and their common string/numeric spellings.
func NormalizeBool(v interface{}, _ time.Time) (interface{}, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
		return nil, false
	default:
		if f, ok := toFloat64(v); ok {
			return f != 0, true
		}
		return nil, false
	}
}

// NormalizeTimestamp converts timestamps to epoch seconds (float64).
// Accepts time.Time, epoch numbers (millisecond epochs are scaled down),
// ISO-8601 strings, and relative-time expressions resolved against now.
func NormalizeTimestamp(v interface{}, now time.Time) (interface{}, bool) {
	switch val := v.(type) {
	case time.Time:
		return float64(val.Unix()), true
	case string:
		t, err := ParseTimeExpression(val, now)
		if err != nil {
			return nil, false
		}
		return float64(t.Unix()), true
	default:
		if f, ok := toFloat64(v); ok {
			// Vendor epochs arrive in seconds or milliseconds depending on
			// the endpoint; anything past the year 33658 is a ms epoch.
			if f > 1e12 {
				f = f / 1000
			}
			return f, true
		}
		return nil, false
	}
}

// toString renders any scalar as a string.
func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// toFloat64 converts numeric types and numeric strings to float64.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
