// Package agent implements the intent router: the orchestration layer
// that decides whether an inbound message is handled locally, via a
// single LLM function-call round trip, or passed through verbatim.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/recordabot/recorda/plugin/ai"
	"github.com/recordabot/recorda/plugin/ai/aitime"
	"github.com/recordabot/recorda/store"
)

// genericApology is returned whenever the model or a downstream
// capability fails. Per-message errors never escape a Handle call.
const genericApology = "Lo siento, ha ocurrido un error procesando tu solicitud. Por favor, intenta nuevamente más tarde."

// Caller identifies the customer behind one Handle invocation. It is
// threaded explicitly through the call chain so concurrent requests for
// different callers cannot interfere.
type Caller struct {
	CustomerID int32
	Phone      string
}

// CreatedEvent is the structured result of a create_event execution.
type CreatedEvent struct {
	EventID int32  `json:"event_id"`
	UID     string `json:"uid"`
	Date    string `json:"date"` // normalized "YYYY-MM-DD HH:MM:SS"
	Title   string `json:"title"`
}

// CalendarService persists events and schedules their notifications.
type CalendarService interface {
	CreateEvent(ctx context.Context, customerID int32, rawDate string, title string) (*CreatedEvent, error)
}

// CustomerDirectory resolves and creates customer records.
type CustomerDirectory interface {
	FindOrCreateCustomer(ctx context.Context, phone string) (*store.Customer, error)
	GetCustomer(ctx context.Context, find *store.FindCustomer) (*store.Customer, error)
}

// WeatherService answers weather queries.
type WeatherService interface {
	Lookup(ctx context.Context, location string, date string) (string, error)
}

// Router receives raw messages plus the caller identity and produces the
// final reply text.
type Router struct {
	llm       ai.LLMService
	catalog   []ai.FunctionDefinition
	customers CustomerDirectory
	calendar  CalendarService
	weather   WeatherService

	now    func() time.Time
	logger *slog.Logger
}

// Config wires the router's collaborators.
type Config struct {
	LLM       ai.LLMService
	Catalog   []ai.FunctionDefinition
	Customers CustomerDirectory
	Calendar  CalendarService
	Weather   WeatherService

	// Now computes the current local time; defaults to time.Now.
	Now func() time.Time
}

// NewRouter creates a new intent router.
func NewRouter(cfg Config) *Router {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Router{
		llm:       cfg.LLM,
		catalog:   cfg.Catalog,
		customers: cfg.Customers,
		calendar:  cfg.Calendar,
		weather:   cfg.Weather,
		now:       now,
		logger:    slog.Default(),
	}
}

var (
	// No trailing \b: Go's \b is ASCII-only and never matches after an
	// accented final letter such as agendá or reunión.
	createEventVerbRegexp = regexp.MustCompile(`(?i)\b(agendar|agendá|programar|crear evento|reunión|reunion|recordar|recordame|recordarme)`)
	slashDateRegexp       = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
	timeOfDayRegexp       = regexp.MustCompile(`(?i)\ba\s?las\b|\b[0-2]?\d:[0-5]\d\b`)
)

/// shouldForceCreateEvent pre-classifies the message: scheduling verbs,
// slash-style dates or time-of-day tokens force the first round trip to
// call create_event instead of letting the model choose.
func shouldForceCreateEvent(message string) bool {
	return createEventVerbRegexp.MatchString(message) ||
		slashDateRegexp.MatchString(message) ||
		timeOfDayRegexp.MatchString(message)
}

// Handle processes one inbound message and returns the reply text.
// Errors from the model or downstream capabilities are contained here:
// the reply degrades to a generic apology instead of propagating.
func (r *Router) Handle(ctx context.Context, message string, phone string) string {
	customer, err := r.customers.FindOrCreateCustomer(ctx, phone)
	if err != nil {
		r.logger.Error("failed to resolve customer", "phone", phone, "error", err)
		return genericApology
	}
	caller := Caller{CustomerID: customer.ID, Phone: phone}

	if reply, ok := MatchLocal(message, r.now()); ok {
		r.logger.Debug("message handled locally", "customer_id", caller.CustomerID)
		return reply
	}

	reply, err := r.handleWithModel(ctx, message, caller)
	if err != nil {
		r.logger.Error("model round trip failed", "customer_id", caller.CustomerID, "error", err)
		return genericApology
	}
	return reply
}

func (r *Router) handleWithModel(ctx context.Context, message string, caller Caller) (string, error) {
	messages := []ai.Message{
		ai.SystemPrompt(systemPrompt(r.now())),
		ai.UserMessage(message),
	}

	opts := ai.ChatOptions{Functions: r.catalog}
	if shouldForceCreateEvent(message) {
		opts.ForceFunction = "create_event"
	}

	result, err := r.llm.Chat(ctx, messages, opts)
	if err != nil {
		return "", err
	}

	if result.FunctionCall == nil {
		return result.Content, nil
	}

	call := ParseFunctionCall(result.FunctionCall.Name, result.FunctionCall.Arguments, caller)
	r.logger.Info("executing function",
		"function", call.FunctionName(),
		"customer_id", caller.CustomerID)

	// create_event bypasses the synthesis round trip: the structured
	// creation result already holds everything the confirmation needs.
	if create, ok := call.(CreateEventCall); ok {
		return r.executeCreateEvent(ctx, create, caller)
	}

	payload := r.executeFunction(ctx, call, caller)
	return r.synthesizeReply(ctx, messages, result.FunctionCall, payload)
}

// executeCreateEvent persists the event, schedules its notifications and
// formats the confirmation directly.
func (r *Router) executeCreateEvent(ctx context.Context, call CreateEventCall, caller Caller) (string, error) {
	created, err := r.calendar.CreateEvent(ctx, caller.CustomerID, call.Date, call.Title)
	if err != nil {
		if aitime.IsInvalidFormat(err) {
			return fmt.Sprintf("No entendí la fecha «%s». Probá con un formato como '2025-06-25 16:00'.", call.Date), nil
		}
		return "", err
	}
	return fmt.Sprintf("📅 ¡Listo! Agendé «%s» para el %s.", created.Title, created.Date), nil
}

// executeFunction dispatches every non-create function and returns the
// JSON payload fed back into the synthesis round trip. Unknown names
// produce a structured error object, never a failure.
func (r *Router) executeFunction(ctx context.Context, call FunctionCall, caller Caller) string {
	var result any

	switch c := call.(type) {
	case GetWeatherCall:
		forecast, err := r.weather.Lookup(ctx, c.Location, c.Date)
		if err != nil {
			r.logger.Warn("weather lookup failed", "location", c.Location, "error", err)
			result = map[string]string{"error": "No pude obtener información del clima."}
		} else {
			result = map[string]string{"location": c.Location, "forecast": forecast, "date": c.Date}
		}

	case LookupCustomerCall:
		customer, err := r.customers.GetCustomer(ctx, &store.FindCustomer{ID: &c.CustomerID})
		if err != nil || customer == nil {
			result = map[string]string{"error": "Cliente no encontrado"}
		} else {
			result = map[string]any{"customer": map[string]any{
				"id":    customer.ID,
				"phone": customer.Phone,
				"name":  customer.Name,
			}}
		}

	default:
		result = map[string]string{"error": fmt.Sprintf("Function '%s' not implemented.", call.FunctionName())}
	}

	buf, err := json.Marshal(result)
	if err != nil {
		return `{"error": "internal"}`
	}
	return string(buf)
}

// synthesizeReply appends the function call and its result to the
// conversation and asks the model for the final natural-language reply.
func (r *Router) synthesizeReply(ctx context.Context, messages []ai.Message, call *ai.FunctionCallRequest, payload string) (string, error) {
	messages = append(messages,
		ai.AssistantFunctionCall(call),
		ai.ToolResult(call, payload),
	)

	final, err := r.llm.Chat(ctx, messages, ai.ChatOptions{})
	if err != nil {
		return "", err
	}
	if final.Content == "" {
		return "", fmt.Errorf("empty synthesis reply for function %s", call.Name)
	}
	return final.Content, nil
}
