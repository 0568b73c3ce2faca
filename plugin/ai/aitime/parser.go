// Package aitime parses the date/time text the model hands back when
// creating events.
package aitime

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFormat indicates the date text matched none of the accepted
// forms. It is surfaced to the caller as a clarification request, never
// a crash.
var ErrInvalidFormat = errors.New("invalid date format")

// IsInvalidFormat reports whether err is a date-format error.
func IsInvalidFormat(err error) bool {
	return errors.Is(err, ErrInvalidFormat)
}

// acceptedLayouts are tried in order: date+time with space separator,
// ISO-8601 with 'T' (with and without seconds), then date only, which
// defaults the time to start of day.
var acceptedLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseEventDate parses raw into a time in loc, normalized to second
// precision.
func ParseEventDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
}

// FormatEventDate renders a parsed event time the way it is stored and
// echoed to users: "YYYY-MM-DD HH:MM:SS".
func FormatEventDate(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
