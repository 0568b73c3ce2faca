package agent

import (
	"fmt"
	"time"
)

// systemPrompt builds the fixed persona prompt plus the current local
// date/time and the deterministic reminder-resolution policy. The policy
// keeps date handling predictable: the model is told exactly how to turn
// relative expressions into absolute dates, and to ask instead of guess
// when the hour is missing.
func systemPrompt(now time.Time) string {
	return fmt.Sprintf(
		"Eres un asistente de WhatsApp cálido y natural. "+
			"Responde con lenguaje claro, directo y humano. "+
			"Si el usuario pide clima, eventos o info de cliente, hazlo de forma amistosa. "+
			"Evita sonar robótico o enciclopédico. "+
			"Ahora mismo es %s (hora local). "+
			"Para agendar recordatorios seguí estas reglas: "+
			"si el usuario dice 'en N horas' o 'en N minutos', sumá ese tiempo a la hora actual; "+
			"si da fecha y hora explícitas (ej. '25/6 a las 16:00'), usá exactamente esa información; "+
			"si da una fecha sin hora, pedile la hora antes de crear nada; "+
			"si no da fecha ni hora, pedile la hora.",
		now.Format("2006-01-02 15:04"),
	)
}
