package agent

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateDateFormat(t *testing.T) {
	valid := []string{"25/06/2025", "01/01/2000", " 31/12/1999 ", "5/6/2025"}
	for _, msg := range valid {
		assert.True(t, ValidateDateFormat(msg), "expected %q to validate", msg)
	}

	invalid := []string{"2025-06-25", "25/6", "hola", "32/01/2025", "25/06/2025 a las 16:00"}
	for _, msg := range invalid {
		assert.False(t, ValidateDateFormat(msg), "expected %q to fail validation", msg)
	}
}

func TestDayOfDateReply(t *testing.T) {
	reply, ok := DayOfDateReply("¿qué día cae 2025-06-25?")
	assert.True(t, ok)
	assert.Equal(t, "El día 2025-06-25 cae en miércoles.", reply)

	// Phrase without a date token does not match.
	_, ok = DayOfDateReply("¿qué día cae mi cumpleaños?")
	assert.False(t, ok)

	// Date token without the phrase does not match.
	_, ok = DayOfDateReply("2025-06-25")
	assert.False(t, ok)
}

func TestDaysUntilReply(t *testing.T) {
	today := time.Date(2025, 6, 20, 14, 30, 0, 0, time.UTC)

	t.Run("future date", func(t *testing.T) {
		reply, ok := DaysUntilReply("¿cuántos días faltan para 2025-06-25?", today)
		assert.True(t, ok)
		assert.Equal(t, "Faltan 5 días para 2025-06-25.", reply)
	})

	t.Run("today", func(t *testing.T) {
		reply, ok := DaysUntilReply("faltan para 2025-06-20", today)
		assert.True(t, ok)
		assert.Equal(t, "¡Es hoy, 2025-06-20!", reply)
	})

	t.Run("past date", func(t *testing.T) {
		reply, ok := DaysUntilReply("faltan para 2025-06-15", today)
		assert.True(t, ok)
		assert.Equal(t, "La fecha 2025-06-15 ya pasó hace 5 días.", reply)
	})

	t.Run("bare iso date counts days", func(t *testing.T) {
		reply, ok := DaysUntilReply("2025-07-01", today)
		assert.True(t, ok)
		assert.Equal(t, "Faltan 11 días para 2025-07-01.", reply)
	})

	t.Run("unrelated text does not match", func(t *testing.T) {
		_, ok := DaysUntilReply("hola, ¿cómo estás?", today)
		assert.False(t, ok)
	})
}

func TestDaysUntilReplyMagnitude(t *testing.T) {
	today := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	for _, delta := range []int{1, 5, 30, 365} {
		target := today.AddDate(0, 0, delta).Format("2006-01-02")
		reply, ok := DaysUntilReply("cuántos días faltan para "+target, today)
		assert.True(t, ok)
		assert.Equal(t, fmt.Sprintf("Faltan %d días para %s.", delta, target), reply)
	}
}

func TestDaysUntilReplyUsesLocalCalendarDay(t *testing.T) {
	// 2025-06-21 01:30 UTC is still 2025-06-20 in Montevideo. The day
	// count must follow the zone of the clock it is given, not UTC.
	montevideo := time.FixedZone("-03", -3*60*60)
	now := time.Date(2025, 6, 21, 1, 30, 0, 0, time.UTC).In(montevideo)

	reply, ok := DaysUntilReply("cuántos días faltan para 2025-06-21", now)
	assert.True(t, ok)
	assert.Equal(t, "Faltan 1 días para 2025-06-21.", reply)

	reply, ok = DaysUntilReply("cuántos días faltan para 2025-06-20", now)
	assert.True(t, ok)
	assert.Equal(t, "¡Es hoy, 2025-06-20!", reply)
}

func TestMatchLocal(t *testing.T) {
	now := time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)

	t.Run("bare slash date confirms validity", func(t *testing.T) {
		reply, ok := MatchLocal("25/06/2025", now)
		assert.True(t, ok)
		assert.Equal(t, "✅ La fecha 25/06/2025 es válida.", reply)
	})

	t.Run("bare iso date answered by day-count matcher", func(t *testing.T) {
		reply, ok := MatchLocal("2025-07-01", now)
		assert.True(t, ok)
		assert.Contains(t, reply, "Faltan 11 días")
	})

	t.Run("normal chat falls through", func(t *testing.T) {
		_, ok := MatchLocal("hola, quiero agendar algo", now)
		assert.False(t, ok)
	})
}
