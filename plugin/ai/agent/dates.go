package agent

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Local date matchers. These are pure functions of the message text and
// the current date: no network, no persistence. When one of them answers,
// the LLM round trip is skipped entirely.

var (
	dayOfDatePhraseRegexp = regexp.MustCompile(`(?i)\b(qué día cae|que día cae|que dia cae|día cae|dia cae)\b`)
	daysUntilPhraseRegexp = regexp.MustCompile(`(?i)\b(cuántos días faltan|cuantos dias faltan|faltan)\b`)
	isoDateRegexp         = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
)

var spanishWeekdays = map[time.Weekday]string{
	time.Monday:    "lunes",
	time.Tuesday:   "martes",
	time.Wednesday: "miércoles",
	time.Thursday:  "jueves",
	time.Friday:    "viernes",
	time.Saturday:  "sábado",
	time.Sunday:    "domingo",
}

// ValidateDateFormat reports whether the whole message is a DD/MM/YYYY date.
func ValidateDateFormat(message string) bool {
	_, err := time.Parse("02/01/2006", strings.TrimSpace(message))
	return err == nil
}

// DayOfDateReply answers "qué día cae" questions that carry a YYYY-MM-DD
// token. The second return is false when the matcher does not apply.
func DayOfDateReply(message string) (string, bool) {
	if !dayOfDatePhraseRegexp.MatchString(message) {
		return "", false
	}
	match := isoDateRegexp.FindString(message)
	if match == "" {
		return "", false
	}
	dt, err := time.Parse("2006-01-02", match)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("El día %s cae en %s.", match, spanishWeekdays[dt.Weekday()]), true
}

// DaysUntilReply answers "cuántos días faltan" questions carrying a
// YYYY-MM-DD token, and bare YYYY-MM-DD messages. Produces one of three
// shapes depending on whether the target is in the future, today, or past.
func DaysUntilReply(message string, today time.Time) (string, bool) {
	bareDate := isoDateRegexp.FindString(strings.TrimSpace(message)) == strings.TrimSpace(message)
	if !bareDate && !daysUntilPhraseRegexp.MatchString(message) {
		return "", false
	}
	match := isoDateRegexp.FindString(message)
	if match == "" {
		return "", false
	}
	target, err := time.Parse("2006-01-02", match)
	if err != nil {
		return "", false
	}

	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	delta := int(target.Sub(todayDate).Hours() / 24)

	switch {
	case delta > 0:
		return fmt.Sprintf("Faltan %d días para %s.", delta, match), true
	case delta == 0:
		return fmt.Sprintf("¡Es hoy, %s!", match), true
	default:
		return fmt.Sprintf("La fecha %s ya pasó hace %d días.", match, -delta), true
	}
}

// MatchLocal runs the local matchers in priority order. It returns the
// reply and true when the message was handled without the model.
func MatchLocal(message string, now time.Time) (string, bool) {
	if ValidateDateFormat(message) {
		if reply, ok := DayOfDateReply(message); ok {
			return reply, true
		}
		if reply, ok := DaysUntilReply(message, now); ok {
			return reply, true
		}
		return fmt.Sprintf("✅ La fecha %s es válida.", strings.TrimSpace(message)), true
	}
	if reply, ok := DayOfDateReply(message); ok {
		return reply, true
	}
	if reply, ok := DaysUntilReply(message, now); ok {
		return reply, true
	}
	return "", false
}
