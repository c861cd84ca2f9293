// Package agent implements the model-calls-tools loop.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cadencehq/cadence-agent/internal/llm"
	"github.com/cadencehq/cadence-agent/internal/tools"
)

const (
	// maxModelCalls caps backend calls per request. Hitting the cap is
	// not an error; the loop returns whatever text accumulated.
	maxModelCalls = 5

	// FallbackReply is returned when the loop produced no text at all.
	FallbackReply = "I'm having trouble responding right now."
)

// Result is the outcome of one complete loop run.
type Result struct {
	Reply          string
	InputTokens    int
	OutputTokens   int
	ToolIterations int
}

// Loop drives the conversation: call the model, execute any requested
// tools, feed results back, repeat until the model stops asking.
type Loop struct {
	client     llm.Client
	dispatcher *tools.Dispatcher
	logger     *slog.Logger
}

// NewLoop creates an agent loop.
func NewLoop(client llm.Client, dispatcher *tools.Dispatcher, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{client: client, dispatcher: dispatcher, logger: logger}
}

// Run executes the loop for one request. messages must already hold
// the system prompt, session history, and the new user turn. A failed
// backend call is fatal; tool failures degrade to error text the model
// sees on the next call.
func (l *Loop) Run(ctx context.Context, model string, messages []llm.Message) (*Result, error) {
	defs := tools.Definitions()
	res := &Result{}
	var fragments []string

	for call := 0; call < maxModelCalls; call++ {
		resp, err := l.client.Chat(ctx, model, messages, defs)
		if err != nil {
			return nil, fmt.Errorf("model call %d: %w", call+1, err)
		}
		res.InputTokens += resp.InputTokens
		res.OutputTokens += resp.OutputTokens

		if resp.Message.Content != "" {
			fragments = append(fragments, resp.Message.Content)
		}

		if len(resp.Message.ToolCalls) == 0 || resp.StopReason == "end_turn" {
			break
		}

		res.ToolIterations++
		messages = append(messages, resp.Message)
		for _, tc := range resp.Message.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    l.executeCall(ctx, tc),
				ToolCallID: tc.ID,
			})
		}
	}

	res.Reply = strings.Join(fragments, "\n\n")
	if res.Reply == "" {
		res.Reply = FallbackReply
	}

	l.logger.Debug("loop finished",
		"tool_iterations", res.ToolIterations,
		"tokens_in", res.InputTokens,
		"tokens_out", res.OutputTokens,
	)
	return res, nil
}

func (l *Loop) executeCall(ctx context.Context, tc llm.ToolCall) string {
	args, err := json.Marshal(tc.Function.Arguments)
	if err != nil {
		return fmt.Sprintf("Tool error: %v", err)
	}
	l.logger.Info("tool call", "tool", tc.Function.Name)
	return l.dispatcher.Execute(ctx, tc.Function.Name, string(args))
}
