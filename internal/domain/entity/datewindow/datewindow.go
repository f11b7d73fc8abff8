// Package datewindow filters sequences of items carrying optional
// start_date / end_date strings down to the items active at a point in time.
//
// Dates that cannot be parsed never exclude an item: a malformed start_date
// or end_date is treated as if the bound were absent.
package datewindow

import (
	"strings"
	"time"
)

// Item fields.
const (
	FieldStart = "start_date"
	FieldEnd   = "end_date"
)

var layouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01",
	"2006",
}

// ParseDate parses a Popolo date. ok is false for empty or malformed input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Active reports whether item is valid at `at`: start absent or before at,
// and end absent or after at.
func Active(item map[string]any, at time.Time) bool {
	if start, ok := dateField(item, FieldStart); ok && !start.Before(at) {
		return false
	}
	if end, ok := dateField(item, FieldEnd); ok && !end.After(at) {
		return false
	}
	return true
}

// Filter keeps the active map items of seq. Non-map items are kept.
func Filter(seq []any, at time.Time) []any {
	out := make([]any, 0, len(seq))
	for _, item := range seq {
		m, ok := item.(map[string]any)
		if !ok || Active(m, at) {
			out = append(out, item)
		}
	}
	return out
}

func dateField(item map[string]any, key string) (time.Time, bool) {
	s, ok := item[key].(string)
	if !ok {
		return time.Time{}, false
	}
	return ParseDate(s)
}
