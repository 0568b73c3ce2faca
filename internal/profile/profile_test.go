package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileValidate(t *testing.T) {
	t.Run("sqlite gets a default DSN under the data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: t.TempDir()}
		require.NoError(t, p.Validate())
		assert.Contains(t, p.DSN, "recorda_dev.db")
	})

	t.Run("postgres without DSN is rejected", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres", Data: t.TempDir()}
		require.Error(t, p.Validate())
	})

	t.Run("unknown driver is rejected", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql", Data: t.TempDir()}
		require.Error(t, p.Validate())
	})

	t.Run("unknown mode falls back to demo", func(t *testing.T) {
		p := &Profile{Mode: "staging", Driver: "sqlite", Data: t.TempDir()}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})

	t.Run("zero durations get defaults", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: t.TempDir()}
		require.NoError(t, p.Validate())
		assert.Equal(t, time.Minute, p.EventAdvance)
		assert.Equal(t, 10*time.Second, p.ClampGrace)
	})
}

func TestProfileFromEnv(t *testing.T) {
	t.Setenv("RECORDA_EVENT_ADVANCE", "5m")
	t.Setenv("RECORDA_CLAMP_GRACE", "30s")
	t.Setenv("RECORDA_LLM_MODEL", "gpt-4o")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, 5*time.Minute, p.EventAdvance)
	assert.Equal(t, 30*time.Second, p.ClampGrace)
	assert.Equal(t, "gpt-4o", p.LLMModel)
	assert.Equal(t, "America/Montevideo", p.Timezone)
	assert.Equal(t, "v23.0", p.WhatsAppAPIVersion)
}

func TestProfileFromEnvBareNumbers(t *testing.T) {
	t.Setenv("RECORDA_EVENT_ADVANCE", "15")
	t.Setenv("RECORDA_CLAMP_GRACE", "30")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, 15*time.Minute, p.EventAdvance)
	assert.Equal(t, 30*time.Second, p.ClampGrace)
}

func TestProfileLocation(t *testing.T) {
	p := &Profile{Timezone: "America/Montevideo"}
	loc := p.Location()
	require.NotNil(t, loc)
	assert.Equal(t, "America/Montevideo", loc.String())

	p.Timezone = "Not/AZone"
	assert.Equal(t, time.Local, p.Location())
}
