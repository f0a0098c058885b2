package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relativePattern matches expressions like "last 24h", "last 7 days".
var relativePattern = regexp.MustCompile(`^last\s+(\d+)\s*(h|d|w|hour|hours|day|days|week|weeks)$`)

// absoluteFormats lists the accepted ISO-8601 / date layouts in match order.
var absoluteFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimeExpression resolves a time literal against the evaluation
// instant. Supported forms:
//   - ISO-8601 absolute timestamps ("2024-05-01T12:00:00Z", "2024-05-01")
//   - relative keywords: "now", "today" (midnight), "yesterday" (midnight)
//   - relative windows: "last 24h", "last 7d", "last 2 weeks"
//   - bare epoch seconds ("1714564800")
func ParseTimeExpression(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, fmt.Errorf("time expression cannot be empty")
	}

	switch strings.ToLower(expr) {
	case "now":
		return now, nil
	case "today":
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case "yesterday":
		y, m, d := now.UTC().AddDate(0, 0, -1).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}

	if matches := relativePattern.FindStringSubmatch(strings.ToLower(expr)); matches != nil {
		amount, err := strconv.Atoi(matches[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time amount %q", matches[1])
		}
		var unit time.Duration
		switch matches[2] {
		case "h", "hour", "hours":
			unit = time.Hour
		case "d", "day", "days":
			unit = 24 * time.Hour
		case "w", "week", "weeks":
			unit = 7 * 24 * time.Hour
		}
		return now.Add(-time.Duration(amount) * unit), nil
	}

	for _, format := range absoluteFormats {
		if t, err := time.Parse(format, expr); err == nil {
			return t.UTC(), nil
		}
	}

	// Bare epoch seconds
	if epoch, err := strconv.ParseFloat(expr, 64); err == nil {
		sec := int64(epoch)
		nsec := int64((epoch - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("invalid time expression %q (expected ISO-8601, epoch seconds, or a relative expression like 'last 24h')", expr)
}
