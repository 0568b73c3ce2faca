// Package ai provides the chat-completion capability used by the agent.
// It wraps the OpenAI-compatible API behind a small interface so the
// orchestration logic can be tested against a fake.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant, tool
	Content string

	// Set on assistant messages that requested a function, and on tool
	// messages carrying a function result back to the model.
	FunctionName string
	FunctionArgs string
	ToolCallID   string
}

// FunctionCallRequest is the model's request to invoke a function.
type FunctionCallRequest struct {
	ID        string
	Name      string
	Arguments string // raw JSON payload as returned by the model
}

// ChatResult is the outcome of one chat-completion round trip: either a
// direct text reply or a requested function call.
type ChatResult struct {
	Content      string
	FunctionCall *FunctionCallRequest
}

// ChatOptions controls a single round trip.
type ChatOptions struct {
	// Functions is the catalog exposed to the model. Empty means plain chat.
	Functions []FunctionDefinition
	// ForceFunction, when non-empty, constrains the model to call that
	// function. Otherwise the model chooses freely ("auto").
	ForceFunction string
}

// LLMService is the chat-completion service interface.
type LLMService interface {
	// Chat performs one chat-completion round trip.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResult, error)
}

type llmService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// Config holds the LLM service configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewLLMService creates a new LLMService backed by an OpenAI-compatible API.
func NewLLMService(cfg *Config) (LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &llmService{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}, nil
}

func (s *llmService) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: convertMessages(messages),
	}

	if len(opts.Functions) > 0 {
		req.Tools = convertFunctions(opts.Functions)
		if opts.ForceFunction != "" {
			req.ToolChoice = openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: opts.ForceFunction},
			}
		} else {
			req.ToolChoice = "auto"
		}
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	latency := time.Since(start)
	if err != nil {
		slog.Error("chat completion failed", "error", err, "latency_ms", latency.Milliseconds())
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	msg := resp.Choices[0].Message
	result := &ChatResult{Content: msg.Content}

	// At most one server-side function is executed per turn, so only the
	// first requested call is honored.
	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		result.FunctionCall = &FunctionCallRequest{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
	}

	slog.Debug("chat completion finished",
		"latency_ms", latency.Milliseconds(),
		"tokens", resp.Usage.TotalTokens,
		"function", func() string {
			if result.FunctionCall != nil {
				return result.FunctionCall.Name
			}
			return ""
		}())

	return result, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
		if m.Role == openai.ChatMessageRoleAssistant && m.FunctionName != "" {
			msg.ToolCalls = []openai.ToolCall{{
				ID:   m.ToolCallID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      m.FunctionName,
					Arguments: m.FunctionArgs,
				},
			}}
		}
		if m.Role == openai.ChatMessageRoleTool {
			msg.ToolCallID = m.ToolCallID
		}
		out = append(out, msg)
	}
	return out
}

func convertFunctions(functions []FunctionDefinition) []openai.Tool {
	tools := make([]openai.Tool, 0, len(functions))
	for i := range functions {
		fn := functions[i]
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			},
		})
	}
	return tools
}

// SystemPrompt builds a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantFunctionCall builds the assistant turn echoing a function request.
func AssistantFunctionCall(call *FunctionCallRequest) Message {
	return Message{
		Role:         "assistant",
		FunctionName: call.Name,
		FunctionArgs: call.Arguments,
		ToolCallID:   call.ID,
	}
}

// ToolResult builds the tool turn carrying a function result back to the model.
func ToolResult(call *FunctionCallRequest, content string) Message {
	return Message{
		Role:         "tool",
		Content:      content,
		FunctionName: call.Name,
		ToolCallID:   call.ID,
	}
}
