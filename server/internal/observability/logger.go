// Package observability provides structured logging for the lifecycle
// of one inbound message.
package observability

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldRequestID is the field name for the per-message request ID.
	LogFieldRequestID = "request_id"
	// LogFieldCaller is the field name for the caller handle.
	LogFieldCaller = "caller"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldReplyLen is the field name for reply length.
	LogFieldReplyLen = "reply_length"
)

// MessageContext tracks one inbound message end to end: a generated
// request id, the caller handle and the processing start time.
type MessageContext struct {
	RequestID string
	Caller    string
	StartTime time.Time

	logger *slog.Logger
}

// NewMessageContext starts tracking one inbound message.
func NewMessageContext(logger *slog.Logger, caller string) *MessageContext {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MessageContext{
		RequestID: generateRequestID(),
		Caller:    caller,
		StartTime: time.Now(),
	}
	m.logger = logger.With(
		slog.String(LogFieldRequestID, m.RequestID),
		slog.String(LogFieldCaller, caller),
	)
	return m
}

// Logger returns the logger carrying the message's identifying fields.
func (m *MessageContext) Logger() *slog.Logger {
	return m.logger
}

// Received logs the start of processing.
func (m *MessageContext) Received(messageLength int) {
	m.logger.Info("message received", "message_length", messageLength)
}

// Completed logs the end of processing with its total duration.
func (m *MessageContext) Completed(replyLength int) {
	m.logger.Info("message processed",
		slog.Int64(LogFieldDuration, time.Since(m.StartTime).Milliseconds()),
		slog.Int(LogFieldReplyLen, replyLength),
	)
}

func generateRequestID() string {
	return uuid.New().String()[:8]
}
