package aitime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventDate(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"date and time with space", "2025-06-25 16:00", time.Date(2025, 6, 25, 16, 0, 0, 0, loc)},
		{"date and time with seconds", "2025-06-25 16:00:30", time.Date(2025, 6, 25, 16, 0, 30, 0, loc)},
		{"iso with T", "2025-06-25T16:00", time.Date(2025, 6, 25, 16, 0, 0, 0, loc)},
		{"iso with T and seconds", "2025-06-25T16:00:30", time.Date(2025, 6, 25, 16, 0, 30, 0, loc)},
		{"date only defaults to midnight", "2025-06-25", time.Date(2025, 6, 25, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEventDate(tt.input, loc)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseEventDateInvalid(t *testing.T) {
	for _, input := range []string{"", "mañana", "25/06/2025", "2025-13-40", "16:00"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseEventDate(input, time.UTC)
			require.Error(t, err)
			assert.True(t, IsInvalidFormat(err))
		})
	}
}

func TestFormatEventDate(t *testing.T) {
	ts := time.Date(2025, 6, 25, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-06-25 16:00:00", FormatEventDate(ts))
}
