package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts covers the date encodings seen across BTS vintages. Only the
// calendar date is kept.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"20060102",
}

// ParseDate parses a date cell and truncates it to a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("parse date: empty value")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return CalendarDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date: unrecognized format %q", s)
}

// CalendarDate drops time of day and location, keeping the date as written.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseCancelled reads a cancellation indicator. Values that are neither
// numeric nor boolean-like count as not cancelled.
func ParseCancelled(s string) float64 {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	switch strings.ToLower(s) {
	case "true", "yes", "y", "t":
		return 1
	}
	return 0
}
