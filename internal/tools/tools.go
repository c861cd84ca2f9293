// Package tools defines the closed set of operations the agent may
// invoke. Every operation returns a short human-readable result
// string; store failures surface to the model as "Error: ..." text
// rather than aborting the loop.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cadencehq/cadence-agent/internal/store"
)

const (
	dailyBudgetUSD = 10.00

	// sourceSession tags rows created through this interface.
	sourceSession = "cc_chat"

	defaultPriority   = 5
	defaultImportance = 5

	taskMatchLimit  = 5
	listTasksLimit  = 20
	searchLimit     = 10
	costReportLimit = 50

	descSnippetLen   = 80
	memorySnippetLen = 200
)

// Dispatcher executes tool calls against the store.
type Dispatcher struct {
	store  *store.Store
	logger *slog.Logger
}

// NewDispatcher creates a tool dispatcher.
func NewDispatcher(s *store.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: s, logger: logger}
}

// Typed inputs, one per tool. Decoding is tolerant: missing optional
// fields fall back to defaults in the handlers.

type createTaskInput struct {
	Task        string `json:"task"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    int    `json:"priority"`
}

type updateTaskInput struct {
	TaskName string `json:"task_name"`
	Status   string `json:"status"`
	Result   string `json:"result"`
}

type saveMemoryInput struct {
	Key        string   `json:"key"`
	Content    string   `json:"content"`
	MemoryType string   `json:"memory_type"`
	Importance int      `json:"importance"`
	Tags       []string `json:"tags"`
}

type listTasksInput struct {
	StatusFilter string `json:"status_filter"`
}

type searchMemoriesInput struct {
	Query string `json:"query"`
}

type checkCostInput struct {
	Period string `json:"period"`
}

// Execute runs the named tool with JSON-encoded arguments. It always
// returns text: success summaries, "Error: ..." on store failure,
// "Tool error: ..." on malformed arguments, "Unknown tool: ..." for
// names outside the set.
func (d *Dispatcher) Execute(ctx context.Context, name, argsJSON string) string {
	d.logger.Debug("executing tool", "tool", name)

	decode := func(v any) error {
		if argsJSON == "" {
			return nil
		}
		return json.Unmarshal([]byte(argsJSON), v)
	}

	switch name {
	case "create_task":
		var in createTaskInput
		if err := decode(&in); err != nil {
			return fmt.Sprintf("Tool error: %v", err)
		}
		return d.createTask(ctx, in)
	case "update_task":
		var in updateTaskInput
		if err := decode(&in); err != nil {
			return fmt.Sprintf("Tool error: %v", err)
		}
		return d.updateTask(ctx, in)
	case "save_memory":
		var in saveMemoryInput
		if err := decode(&in); err != nil {
			return fmt.Sprintf("Tool error: %v", err)
		}
		return d.saveMemory(ctx, in)
	case "list_tasks":
		var in listTasksInput
		if err := decode(&in); err != nil {
			return fmt.Sprintf("Tool error: %v", err)
		}
		return d.listTasks(ctx, in)
	case "search_memories":
		var in searchMemoriesInput
		if err := decode(&in); err != nil {
			return fmt.Sprintf("Tool error: %v", err)
		}
		return d.searchMemories(ctx, in)
	case "check_cost":
		var in checkCostInput
		if err := decode(&in); err != nil {
			return fmt.Sprintf("Tool error: %v", err)
		}
		return d.checkCost(ctx, in)
	default:
		return fmt.Sprintf("Unknown tool: %s", name)
	}
}

func (d *Dispatcher) createTask(ctx context.Context, in createTaskInput) string {
	if in.Priority == 0 {
		in.Priority = defaultPriority
	}
	created, err := d.store.CreateTask(ctx, store.Task{
		Task:             in.Task,
		Description:      in.Description,
		Category:         in.Category,
		Priority:         in.Priority,
		CreatedBySession: sourceSession,
	})
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Task created: %q [%s] P%d", created.Task, created.Category, created.Priority)
}

func (d *Dispatcher) updateTask(ctx context.Context, in updateTaskInput) string {
	tasks, err := d.store.FindTasks(ctx, in.TaskName, taskMatchLimit)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(tasks) == 0 {
		return fmt.Sprintf("No task found matching %q", in.TaskName)
	}
	target := tasks[0]
	if err := d.store.UpdateTaskStatus(ctx, target.ID, in.Status, in.Result); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	out := fmt.Sprintf("Task %q → %s", target.Task, in.Status)
	if in.Result != "" {
		out += " — " + in.Result
	}
	return out
}

func (d *Dispatcher) saveMemory(ctx context.Context, in saveMemoryInput) string {
	if in.Importance == 0 {
		in.Importance = defaultImportance
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	saved, err := d.store.UpsertMemory(ctx, store.Memory{
		Key:           in.Key,
		Content:       in.Content,
		MemoryType:    in.MemoryType,
		Importance:    in.Importance,
		Tags:          in.Tags,
		SourceSession: sourceSession,
	})
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Memory saved: %q [%s] importance %d", saved.Key, saved.MemoryType, saved.Importance)
}

func (d *Dispatcher) listTasks(ctx context.Context, in listTasksInput) string {
	tasks, err := d.store.ListTasks(ctx, in.StatusFilter, listTasksLimit)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(tasks) == 0 {
		return "No active tasks. (Completed/failed filtered out. Use status_filter='all' to see everything.)"
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		line := fmt.Sprintf("[P%d] [%s] [%s] %s", t.Priority, t.Status, t.Category, t.Task)
		if t.Description != "" {
			line += " — " + truncate(t.Description, descSnippetLen)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (d *Dispatcher) searchMemories(ctx context.Context, in searchMemoriesInput) string {
	memories, err := d.store.SearchMemories(ctx, in.Query, searchLimit)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(memories) == 0 {
		return fmt.Sprintf("No memories matching %q. (Top 10 by importance are already in your system prompt.)", in.Query)
	}
	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", m.MemoryType, m.Key, truncate(m.Content, memorySnippetLen)))
	}
	return strings.Join(lines, "\n")
}

type sourceStats struct {
	count     int
	cost      float64
	tokensIn  int
	tokensOut int
}

func (d *Dispatcher) checkCost(ctx context.Context, in checkCostInput) string {
	period := in.Period
	if period == "" {
		period = store.PeriodToday
	}
	entries, err := d.store.CostEntries(ctx, period, costReportLimit)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No cost data for %s.", period)
	}

	bySource := make(map[string]*sourceStats)
	var total float64
	for _, e := range entries {
		src := e.Source
		if src == "" {
			src = "unknown"
		}
		stats := bySource[src]
		if stats == nil {
			stats = &sourceStats{}
			bySource[src] = stats
		}
		stats.count++
		stats.cost += e.CostUSD
		stats.tokensIn += e.TokensInput
		stats.tokensOut += e.TokensOutput
		total += e.CostUSD
	}

	sources := make([]string, 0, len(bySource))
	for src := range bySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	var b strings.Builder
	fmt.Fprintf(&b, "=== COST REPORT (%s) ===\n", period)
	fmt.Fprintf(&b, "Total logged: $%.4f\n", total)
	fmt.Fprintf(&b, "Budget: $%.2f/day\n", dailyBudgetUSD)
	fmt.Fprintf(&b, "Remaining: $%.4f\n", dailyBudgetUSD-total)
	b.WriteString("\nBy source:\n")
	for _, src := range sources {
		stats := bySource[src]
		fmt.Fprintf(&b, "  %s: %d calls, $%.4f, %.1fK tokens\n",
			src, stats.count, stats.cost, float64(stats.tokensIn+stats.tokensOut)/1000)
	}
	b.WriteString("\nNOTE: This only shows costs logged to the local ledger. If the provider bill is higher, there may be unlogged sources.")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
