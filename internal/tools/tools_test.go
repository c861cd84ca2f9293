package tools

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cadencehq/cadence-agent/internal/store"
)

func testDispatcher(t *testing.T) (*Dispatcher, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "pulse.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewDispatcher(s, slog.New(slog.NewTextHandler(io.Discard, nil))), s
}

func TestCreateTaskDefaults(t *testing.T) {
	d, s := testDispatcher(t)
	ctx := context.Background()

	got := d.Execute(ctx, "create_task", `{"task":"Renew passport","category":"general"}`)
	want := `Task created: "Renew passport" [general] P5`
	if got != want {
		t.Errorf("Execute = %q, want %q", got, want)
	}

	tasks, err := s.FindTasks(ctx, "passport", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].Priority != 5 || tasks[0].Status != store.StatusPending {
		t.Errorf("task = P%d %s, want P5 pending", tasks[0].Priority, tasks[0].Status)
	}
	if tasks[0].CreatedBySession != "cc_chat" {
		t.Errorf("created_by_session = %q", tasks[0].CreatedBySession)
	}
}

func TestCreateTaskExplicitPriority(t *testing.T) {
	d, _ := testDispatcher(t)

	got := d.Execute(context.Background(), "create_task", `{"task":"Fix prod","category":"ops","priority":1}`)
	if got != `Task created: "Fix prod" [ops] P1` {
		t.Errorf("Execute = %q", got)
	}
}

func TestUpdateTask(t *testing.T) {
	d, s := testDispatcher(t)
	ctx := context.Background()

	if _, err := s.CreateTask(ctx, store.Task{Task: "Book bloods", Category: "health", Priority: 3}); err != nil {
		t.Fatal(err)
	}

	got := d.Execute(ctx, "update_task", `{"task_name":"bloods","status":"completed","result":"booked for Friday"}`)
	want := `Task "Book bloods" → completed — booked for Friday`
	if got != want {
		t.Errorf("Execute = %q, want %q", got, want)
	}

	tasks, err := s.FindTasks(ctx, "bloods", 5)
	if err != nil {
		t.Fatal(err)
	}
	if tasks[0].Status != store.StatusCompleted {
		t.Errorf("status = %q", tasks[0].Status)
	}
	if tasks[0].CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
}

func TestUpdateTaskNoMatch(t *testing.T) {
	d, s := testDispatcher(t)
	ctx := context.Background()

	if _, err := s.CreateTask(ctx, store.Task{Task: "Only task", Category: "general", Priority: 5}); err != nil {
		t.Fatal(err)
	}

	got := d.Execute(ctx, "update_task", `{"task_name":"nonexistent","status":"completed"}`)
	if got != `No task found matching "nonexistent"` {
		t.Errorf("Execute = %q", got)
	}

	tasks, err := s.ListTasks(ctx, "all", 20)
	if err != nil {
		t.Fatal(err)
	}
	if tasks[0].Status != store.StatusPending {
		t.Error("no-match update must not write")
	}
}

func TestSaveMemoryDedupe(t *testing.T) {
	d, s := testDispatcher(t)
	ctx := context.Background()

	got := d.Execute(ctx, "save_memory", `{"key":"coffee","content":"black, no sugar","memory_type":"preference"}`)
	if got != `Memory saved: "coffee" [preference] importance 5` {
		t.Errorf("Execute = %q", got)
	}

	got = d.Execute(ctx, "save_memory", `{"key":"coffee","content":"switched to decaf","memory_type":"preference","importance":7}`)
	if got != `Memory saved: "coffee" [preference] importance 7` {
		t.Errorf("Execute = %q", got)
	}

	memories, err := s.SearchMemories(ctx, "coffee", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(memories) != 1 {
		t.Fatalf("got %d rows for key, want 1", len(memories))
	}
	if memories[0].Content != "switched to decaf" {
		t.Errorf("content = %q", memories[0].Content)
	}
}

func TestListTasks(t *testing.T) {
	d, s := testDispatcher(t)
	ctx := context.Background()

	seed := []store.Task{
		{Task: "Urgent thing", Category: "ops", Priority: 1, Description: "do it now"},
		{Task: "Later thing", Category: "general", Priority: 8},
		{Task: "Done thing", Category: "dev", Priority: 2},
	}
	for _, task := range seed {
		if _, err := s.CreateTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	done, err := s.FindTasks(ctx, "Done", 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateTaskStatus(ctx, done[0].ID, store.StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}

	got := d.Execute(ctx, "list_tasks", "")
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), got)
	}
	if lines[0] != "[P1] [pending] [ops] Urgent thing — do it now" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "[P8] [pending] [general] Later thing" {
		t.Errorf("line 1 = %q", lines[1])
	}

	all := d.Execute(ctx, "list_tasks", `{"status_filter":"all"}`)
	if !strings.Contains(all, "Done thing") {
		t.Error("status_filter=all should include completed tasks")
	}
}

func TestListTasksEmpty(t *testing.T) {
	d, _ := testDispatcher(t)

	got := d.Execute(context.Background(), "list_tasks", "{}")
	if got != "No active tasks. (Completed/failed filtered out. Use status_filter='all' to see everything.)" {
		t.Errorf("Execute = %q", got)
	}
}

func TestListTasksTruncatesDescription(t *testing.T) {
	d, s := testDispatcher(t)
	ctx := context.Background()

	long := strings.Repeat("d", 300)
	if _, err := s.CreateTask(ctx, store.Task{Task: "Wordy", Category: "general", Priority: 5, Description: long}); err != nil {
		t.Fatal(err)
	}

	got := d.Execute(ctx, "list_tasks", "")
	if strings.Contains(got, long) {
		t.Fatal("description not truncated")
	}
	if !strings.Contains(got, strings.Repeat("d", 80)) {
		t.Error("truncated description missing")
	}
}

func TestSearchMemories(t *testing.T) {
	d, s := testDispatcher(t)
	ctx := context.Background()

	seed := []store.Memory{
		{Key: "deadlift_form", Content: "cue: push the floor away", MemoryType: store.MemorySkill, Importance: 8},
		{Key: "gym_schedule", Content: "deadlifts on Tuesday", MemoryType: store.MemoryKnowledge, Importance: 4},
	}
	for _, m := range seed {
		if _, err := s.UpsertMemory(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	got := d.Execute(ctx, "search_memories", `{"query":"deadlift"}`)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), got)
	}
	if lines[0] != "[skill] deadlift_form: cue: push the floor away" {
		t.Errorf("line 0 = %q", lines[0])
	}
}

func TestSearchMemoriesNoMatch(t *testing.T) {
	d, _ := testDispatcher(t)

	got := d.Execute(context.Background(), "search_memories", `{"query":"nothing"}`)
	if got != `No memories matching "nothing". (Top 10 by importance are already in your system prompt.)` {
		t.Errorf("Execute = %q", got)
	}
}

func TestCheckCost(t *testing.T) {
	d, s := testDispatcher(t)
	ctx := context.Background()

	today := store.DateString(time.Now())
	entries := []store.CostEntry{
		{SessionDate: today, ModelUsed: "claude-haiku-4-5-20251001", TokensInput: 900, TokensOutput: 100, CostUSD: 0.0012, Source: "cc_chat", TaskType: "chat"},
		{SessionDate: today, ModelUsed: "claude-haiku-4-5-20251001", TokensInput: 2800, TokensOutput: 400, CostUSD: 0.0034, Source: "cc_chat", TaskType: "chat"},
	}
	for _, e := range entries {
		if err := s.InsertCostEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got := d.Execute(ctx, "check_cost", "{}")
	for _, want := range []string{
		"=== COST REPORT (today) ===",
		"Total logged: $0.0046",
		"Budget: $10.00/day",
		"Remaining: $9.9954",
		"cc_chat: 2 calls, $0.0046, 4.2K tokens",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestCheckCostEmpty(t *testing.T) {
	d, _ := testDispatcher(t)

	got := d.Execute(context.Background(), "check_cost", `{"period":"week"}`)
	if got != "No cost data for week." {
		t.Errorf("Execute = %q", got)
	}
}

func TestUnknownTool(t *testing.T) {
	d, _ := testDispatcher(t)

	got := d.Execute(context.Background(), "launch_missiles", "{}")
	if got != "Unknown tool: launch_missiles" {
		t.Errorf("Execute = %q", got)
	}
}

func TestMalformedArguments(t *testing.T) {
	d, _ := testDispatcher(t)

	got := d.Execute(context.Background(), "create_task", `{"task":`)
	if !strings.HasPrefix(got, "Tool error:") {
		t.Errorf("Execute = %q, want Tool error prefix", got)
	}
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	if len(defs) != 6 {
		t.Fatalf("got %d definitions, want 6", len(defs))
	}
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		fn, ok := d["function"].(map[string]any)
		if !ok {
			t.Fatal("definition missing function block")
		}
		names = append(names, fn["name"].(string))
	}
	want := []string{"create_task", "update_task", "save_memory", "list_tasks", "search_memories", "check_cost"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("definition %d = %q, want %q", i, names[i], n)
		}
	}
}
