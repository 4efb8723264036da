package classify

import (
	"regexp"
	"strings"
	"time"
)

// priorityFields is the fixed order the differentiator walks to find a
// value distinct from every sibling at the same hierarchy prefix
// (spec.md §4.5).
var priorityFields = []string{"brand", "version", "variant", "creator", "date", "unique_id"}

var nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize lower-cases s and collapses runs of non-alphanumeric
// characters to a single underscore, trimming leading/trailing
// underscores (spec.md §4.5).
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = nonAlphanumericRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// NormalizeDate parses a handful of common date layouts and renders the
// result as YYYYMMDD; if s does not parse, it falls through to Normalize
// unchanged (spec.md §4.5: "Dates normalize to YYYYMMDD").
func NormalizeDate(s string) string {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "01/02/2006", "Jan 2, 2006", "January 2, 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("20060102")
		}
	}
	return Normalize(s)
}

// DifferentiatorResult is the outcome of Differentiate: the chosen tail
// value, which field produced it (empty if the UUID-prefix fallback was
// used), and whether every priority field collided with a sibling
// (a "collision" per the Open-Question decision in DESIGN.md).
type DifferentiatorResult struct {
	Tail          string
	Field         string
	Collision     bool
	PriorityExhausted bool
}

// Differentiate walks priorityFields over candidate, normalizing each
// present value, and returns the first one absent from every sibling's
// corresponding normalized value. If none distinguishes the node, it
// falls back to the first 8 characters of nodeUUID and marks the result
// as a collision (spec.md §4.5; collision recording decided in
// SPEC_FULL.md §9 / DESIGN.md).
func Differentiate(candidate map[string]string, siblings []Sibling, nodeUUID string) DifferentiatorResult {
	for _, field := range priorityFields {
		raw, ok := candidate[field]
		if !ok || raw == "" {
			continue
		}
		value := raw
		if field == "date" {
			value = NormalizeDate(raw)
		} else {
			value = Normalize(raw)
		}
		if value == "" {
			continue
		}
		if !collidesWithSibling(field, value, siblings) {
			return DifferentiatorResult{Tail: value, Field: field}
		}
	}

	tail := nodeUUID
	if len(tail) > 8 {
		tail = tail[:8]
	}
	return DifferentiatorResult{Tail: strings.ToLower(tail), Field: "unique_id", Collision: true, PriorityExhausted: true}
}

func collidesWithSibling(field, value string, siblings []Sibling) bool {
	for _, s := range siblings {
		if s.Fields[field] == value {
			return true
		}
	}
	return false
}
