// Package llm provides the generative backend client.
package llm

import "context"

// Message represents a chat message for the model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	ID       string `json:"id,omitempty"` // Provider-assigned ID (required for tool_result correlation)
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// NewToolCall builds a ToolCall. Mostly a convenience for tests and
// mocks; the anonymous Function struct is awkward to construct inline.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	var tc ToolCall
	tc.ID = id
	tc.Function.Name = name
	tc.Function.Arguments = args
	return tc
}

// ChatResponse is the backend's reply to one model call. All fields use
// proper Go types; wire format conversion happens at the provider
// boundary (anthropic.go).
type ChatResponse struct {
	Model   string
	Message Message

	// StopReason is the backend's explicit stop reason
	// (end_turn, tool_use, max_tokens, stop_sequence).
	StopReason string

	// Token usage for this single call.
	InputTokens  int
	OutputTokens int
}

// Client is the generative backend interface. Tools use the OpenAI
// function-definition shape; providers convert at their boundary.
type Client interface {
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)
}
