package agent

import (
	"encoding/json"
	"log/slog"

	"github.com/kaptinlin/jsonrepair"
)

// The set of server-side functions is closed and statically known. The
// model supplies a name and a JSON argument payload; anything outside
// this set parses to UnknownCall so the turn degrades instead of failing.

// FunctionCall is the closed variant set of callable operations.
type FunctionCall interface {
	FunctionName() string
}

// GetWeatherCall requests a weather lookup.
type GetWeatherCall struct {
	Location string `json:"location"`
	Date     string `json:"date"`
}

func (GetWeatherCall) FunctionName() string { return "get_weather" }

// CreateEventCall requests persisting an event and scheduling its reminders.
type CreateEventCall struct {
	Date  string `json:"date"`
	Title string `json:"title"`
}

func (CreateEventCall) FunctionName() string { return "create_event" }

// LookupCustomerCall requests customer data.
type LookupCustomerCall struct {
	CustomerID int32 `json:"customer_id"`
}

func (LookupCustomerCall) FunctionName() string { return "lookup_customer" }

// UnknownCall is produced for any function name outside the closed set.
type UnknownCall struct {
	Name string
}

func (c UnknownCall) FunctionName() string { return c.Name }

// decodeArguments parses the raw argument payload. Malformed JSON is
// first run through jsonrepair; if that also fails the arguments degrade
// to an empty map rather than aborting the turn.
func decodeArguments(raw string, into any) {
	if raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), into); err == nil {
		return
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		slog.Warn("function arguments unrecoverable, using defaults", "raw", raw, "error", err)
		return
	}
	if err := json.Unmarshal([]byte(repaired), into); err != nil {
		slog.Warn("repaired function arguments still malformed, using defaults", "raw", raw, "error", err)
	}
}

// ParseFunctionCall converts the model's requested name and raw JSON
// arguments into a typed call. caller supplies request-scoped defaults:
// a lookup without a customer id targets the calling customer.
func ParseFunctionCall(name, rawArgs string, caller Caller) FunctionCall {
	switch name {
	case "get_weather":
		var call GetWeatherCall
		decodeArguments(rawArgs, &call)
		return call
	case "create_event":
		var call CreateEventCall
		decodeArguments(rawArgs, &call)
		return call
	case "lookup_customer":
		var call LookupCustomerCall
		decodeArguments(rawArgs, &call)
		if call.CustomerID == 0 {
			call.CustomerID = caller.CustomerID
		}
		return call
	default:
		return UnknownCall{Name: name}
	}
}
