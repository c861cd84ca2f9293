package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cadencehq/cadence-agent/internal/agent"
	"github.com/cadencehq/cadence-agent/internal/llm"
	"github.com/cadencehq/cadence-agent/internal/prompt"
	"github.com/cadencehq/cadence-agent/internal/store"
	"github.com/cadencehq/cadence-agent/internal/tools"
)

// fakeBackend returns its scripted responses in order, repeating the
// last one; a non-nil err fails every call.
type fakeBackend struct {
	script []*llm.ChatResponse
	err    error
	calls  int
}

func (f *fakeBackend) Chat(ctx context.Context, model string, messages []llm.Message, defs []map[string]any) (*llm.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls - 1
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i], nil
}

func reply(text string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message:      llm.Message{Role: "assistant", Content: text},
		StopReason:   "end_turn",
		InputTokens:  120,
		OutputTokens: 40,
	}
}

func testServer(t *testing.T, backend llm.Client) (*httptest.Server, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "pulse.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loop := agent.NewLoop(backend, tools.NewDispatcher(s, logger), logger)
	srv := NewServer("127.0.0.1", 0, s, loop, prompt.NewBuilder(s, logger), logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, s
}

func postChat(t *testing.T, ts *httptest.Server, body map[string]any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.URL+"/v1/chat", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestChat(t *testing.T) {
	ts, s := testServer(t, &fakeBackend{script: []*llm.ChatResponse{reply("All tracked.")}})

	resp, body := postChat(t, ts, map[string]any{"message": "how are we doing?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["reply"] != "All tracked." {
		t.Errorf("reply = %v", body["reply"])
	}
	if body["model_used"] != "haiku-4.5" {
		t.Errorf("model_used = %v", body["model_used"])
	}
	sid, _ := body["session_id"].(string)
	if sid == "" {
		t.Fatal("no session_id in response")
	}
	if body["message_id"] == "" {
		t.Error("no message_id in response")
	}
	tokens, _ := body["tokens"].(map[string]any)
	if tokens["in"] != float64(120) || tokens["out"] != float64(40) {
		t.Errorf("tokens = %v", tokens)
	}

	// Both turns persisted, plus one ledger row.
	msgs, err := s.SessionMessages(context.Background(), sid, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].TokensIn != 120 || msgs[1].ModelUsed != "haiku-4.5" {
		t.Errorf("assistant message = %+v", msgs[1])
	}
	costs, err := s.CostEntries(context.Background(), store.PeriodToday, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(costs) != 1 {
		t.Fatalf("got %d cost entries, want 1", len(costs))
	}
	if costs[0].Source != "cc_chat" || costs[0].TaskType != "chat" {
		t.Errorf("cost entry = %+v", costs[0])
	}
	if !strings.HasPrefix(costs[0].Notes, "CC chat [haiku-4.5]:") {
		t.Errorf("notes = %q", costs[0].Notes)
	}
}

func TestChatMessageRequired(t *testing.T) {
	ts, _ := testServer(t, &fakeBackend{script: []*llm.ChatResponse{reply("x")}})

	for _, body := range []map[string]any{
		{},
		{"message": ""},
		{"message": "   "},
	} {
		resp, decoded := postChat(t, ts, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d for %v", resp.StatusCode, body)
		}
		if decoded["error"] != "Message required" {
			t.Errorf("error = %v for %v", decoded["error"], body)
		}
	}
}

func TestChatMessageTooLong(t *testing.T) {
	backend := &fakeBackend{script: []*llm.ChatResponse{reply("x")}}
	ts, s := testServer(t, backend)

	resp, decoded := postChat(t, ts, map[string]any{
		"message":    strings.Repeat("a", 4001),
		"session_id": "long-msg-session",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if decoded["error"] != "Message too long (max 4000 chars)" {
		t.Errorf("error = %v", decoded["error"])
	}
	if backend.calls != 0 {
		t.Error("backend must not be called for rejected input")
	}
	msgs, err := s.SessionMessages(context.Background(), "long-msg-session", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("rejected message persisted %d rows", len(msgs))
	}
}

func TestChatSessionContinuity(t *testing.T) {
	ts, s := testServer(t, &fakeBackend{script: []*llm.ChatResponse{reply("noted")}})

	_, first := postChat(t, ts, map[string]any{"message": "first"})
	sid, _ := first["session_id"].(string)
	if sid == "" {
		t.Fatal("no session_id")
	}

	_, second := postChat(t, ts, map[string]any{"message": "second", "session_id": sid})
	if second["session_id"] != sid {
		t.Errorf("session_id changed: %v", second["session_id"])
	}

	msgs, err := s.SessionMessages(context.Background(), sid, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Errorf("history after two round trips = %d messages, want 4", len(msgs))
	}
}

func TestChatUnknownModelFallsBack(t *testing.T) {
	ts, _ := testServer(t, &fakeBackend{script: []*llm.ChatResponse{reply("ok")}})

	resp, body := postChat(t, ts, map[string]any{"message": "hi", "model": "gpt-9"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["model_used"] != "haiku-4.5" {
		t.Errorf("model_used = %v", body["model_used"])
	}
}

func TestChatBackendError(t *testing.T) {
	ts, s := testServer(t, &fakeBackend{err: &llm.APIError{StatusCode: 529, Body: "overloaded_error: try later"}})

	resp, decoded := postChat(t, ts, map[string]any{"message": "hi", "session_id": "err-session"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if decoded["error"] != "AI service error" {
		t.Errorf("error = %v", decoded["error"])
	}
	detail, _ := decoded["detail"].(string)
	if !strings.Contains(detail, "overloaded_error") {
		t.Errorf("detail = %q", detail)
	}

	// The user turn survives; no assistant message, no ledger row.
	msgs, err := s.SessionMessages(context.Background(), "err-session", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Role != "user" {
		t.Errorf("persisted %d messages after backend failure", len(msgs))
	}
	costs, err := s.CostEntries(context.Background(), store.PeriodAll, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(costs) != 0 {
		t.Error("cost entry persisted despite backend failure")
	}
}

func TestChatErrorDetailTruncated(t *testing.T) {
	long := strings.Repeat("e", 1000)
	ts, _ := testServer(t, &fakeBackend{err: &llm.APIError{StatusCode: 500, Body: long}})

	_, decoded := postChat(t, ts, map[string]any{"message": "hi"})
	detail, _ := decoded["detail"].(string)
	if len(detail) > 200 {
		t.Errorf("detail length = %d, want <= 200", len(detail))
	}
}

func TestChatCORSPreflight(t *testing.T) {
	ts, _ := testServer(t, &fakeBackend{script: []*llm.ChatResponse{reply("x")}})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/v1/chat", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "x-client-info") {
		t.Errorf("Allow-Headers = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
}

func TestHealthAndVersion(t *testing.T) {
	ts, _ := testServer(t, &fakeBackend{script: []*llm.ChatResponse{reply("x")}})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/v1/version")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var info map[string]any
	if err := json.NewDecoder(resp2.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info["version"] == nil {
		t.Error("version info missing")
	}
}

func TestModelsEndpoint(t *testing.T) {
	ts, _ := testServer(t, &fakeBackend{script: []*llm.ChatResponse{reply("x")}})

	resp, err := http.Get(ts.URL + "/v1/models")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Models []map[string]any `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Models) != 4 {
		t.Fatalf("got %d models, want 4", len(body.Models))
	}
	defaults := 0
	for _, m := range body.Models {
		if m["default"] == true {
			defaults++
			if m["key"] != "haiku-4.5" {
				t.Errorf("default model = %v", m["key"])
			}
		}
	}
	if defaults != 1 {
		t.Errorf("got %d default models, want 1", defaults)
	}
}

func TestDashboardReads(t *testing.T) {
	ts, s := testServer(t, &fakeBackend{script: []*llm.ChatResponse{reply("x")}})
	ctx := context.Background()

	if _, err := s.CreateTask(ctx, store.Task{Task: "Check HRV", Category: "health", Priority: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertMemory(ctx, store.Memory{Key: "hrv_baseline", Content: "55ms", MemoryType: store.MemoryKnowledge, Importance: 6}); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/v1/tasks", "/v1/memories", "/v1/directives", "/v1/identity", "/v1/costs?period=week"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/v1/tasks")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Tasks []store.Task `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tasks) != 1 || body.Tasks[0].Task != "Check HRV" {
		t.Errorf("tasks = %+v", body.Tasks)
	}
}
