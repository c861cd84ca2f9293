package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence-agent/internal/llm"
	"github.com/cadencehq/cadence-agent/internal/models"
	"github.com/cadencehq/cadence-agent/internal/store"
)

const (
	maxMessageLen = 4000

	// errorDetailLen bounds how much upstream error text leaks to clients.
	errorDetailLen = 200

	historyWindow = 20
	noteLen       = 80
)

// ChatRequest is the POST /v1/chat body.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
}

// ChatResponse is the success body for POST /v1/chat.
type ChatResponse struct {
	Reply     string     `json:"reply"`
	SessionID string     `json:"session_id"`
	MessageID string     `json:"message_id"`
	Tokens    TokenUsage `json:"tokens"`
	ToolCalls int        `json:"tool_calls"`
	ModelUsed string     `json:"model_used"`
}

// TokenUsage carries per-request token totals.
type TokenUsage struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, map[string]any{"error": "Message required"})
		return
	}
	trimmed := strings.TrimSpace(req.Message)
	if trimmed == "" {
		s.errorResponse(w, http.StatusBadRequest, map[string]any{"error": "Message required"})
		return
	}
	if len(req.Message) > maxMessageLen {
		s.errorResponse(w, http.StatusBadRequest, map[string]any{"error": "Message too long (max 4000 chars)"})
		return
	}

	model := models.Resolve(req.Model)
	sid := req.SessionID
	if sid == "" {
		sid = uuid.New().String()
	}

	// The user turn is persisted before anything can fail so it
	// survives a backend outage.
	if _, err := s.store.InsertMessage(ctx, store.ChatMessage{
		SessionID: sid,
		Role:      "user",
		Content:   trimmed,
	}); err != nil {
		s.logger.Error("persist user message", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}

	history, err := s.store.RecentMessages(ctx, sid, historyWindow)
	if err != nil {
		s.logger.Error("load history", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: s.prompts.Build(ctx, model.Key),
	})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	result, err := s.loop.Run(ctx, model.ID, messages)
	if err != nil {
		s.logger.Error("agent loop failed", "session", sid, "error", err)
		s.errorResponse(w, http.StatusBadGateway, map[string]any{
			"error":  "AI service error",
			"detail": errorDetail(err),
		})
		return
	}

	saved, err := s.store.InsertMessage(ctx, store.ChatMessage{
		SessionID: sid,
		Role:      "assistant",
		Content:   result.Reply,
		TokensIn:  result.InputTokens,
		TokensOut: result.OutputTokens,
		ModelUsed: model.Key,
	})
	if err != nil {
		s.logger.Error("persist assistant message", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}

	cost := model.Cost(result.InputTokens, result.OutputTokens)
	entry := store.CostEntry{
		SessionDate:  store.DateString(time.Now()),
		ModelUsed:    model.Key,
		TokensInput:  result.InputTokens,
		TokensOutput: result.OutputTokens,
		CostUSD:      cost,
		TaskType:     "chat",
		Source:       "cc_chat",
		Notes:        "CC chat [" + model.Key + "]: " + truncate(trimmed, noteLen),
	}
	if err := s.store.InsertCostEntry(ctx, entry); err != nil {
		// The reply already exists; losing a ledger row is not worth
		// failing the request over.
		s.logger.Error("persist cost entry", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ChatResponse{
		Reply:     result.Reply,
		SessionID: sid,
		MessageID: saved.ID,
		Tokens:    TokenUsage{In: result.InputTokens, Out: result.OutputTokens},
		ToolCalls: result.ToolIterations,
		ModelUsed: model.Key,
	}, s.logger)
}

// errorDetail extracts a short diagnostic from a loop failure. API
// errors carry the upstream body; anything else reports the Go error
// text.
func errorDetail(err error) string {
	if apiErr := llm.AsAPIError(err); apiErr != nil {
		return truncate(apiErr.Body, errorDetailLen)
	}
	return truncate(err.Error(), errorDetailLen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
