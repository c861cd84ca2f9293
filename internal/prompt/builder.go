// Package prompt assembles the system prompt from persisted agent
// state: directives, identity facts, top memories, recent session
// summaries, and today's spend.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cadencehq/cadence-agent/internal/models"
	"github.com/cadencehq/cadence-agent/internal/store"
)

const (
	// DailyBudgetUSD is the fixed daily spend budget reported to the model.
	DailyBudgetUSD = 10.00

	// SourceTag identifies this interface in the cost ledger.
	SourceTag = "cc_chat"

	// snippetLen bounds each rendered memory/summary to keep the prompt small.
	snippetLen = 200

	identityLimit   = 30
	memoryLimit     = 10
	sessionLogLimit = 3
)

// Builder constructs system prompts from the store.
type Builder struct {
	store  *store.Store
	logger *slog.Logger
}

// NewBuilder creates a prompt builder.
func NewBuilder(s *store.Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: s, logger: logger}
}

// Build assembles the system prompt for the given model key. The five
// store reads run concurrently; a failed read logs a warning and its
// section renders as empty. Build never fails — worst case the prompt
// simply carries less context.
func (b *Builder) Build(ctx context.Context, modelKey string) string {
	var (
		directives []store.Directive
		identity   []store.IdentityFact
		memories   []store.Memory
		logs       []store.SessionLog
		todayCosts []store.CostEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if directives, err = b.store.ActiveDirectives(gctx); err != nil {
			b.logger.Warn("context query failed, section empty", "section", "directives", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if identity, err = b.store.IdentityFacts(gctx, identityLimit); err != nil {
			b.logger.Warn("context query failed, section empty", "section", "identity", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if memories, err = b.store.TopMemories(gctx, memoryLimit); err != nil {
			b.logger.Warn("context query failed, section empty", "section", "memories", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if logs, err = b.store.RecentSessionLogs(gctx, sessionLogLimit); err != nil {
			b.logger.Warn("context query failed, section empty", "section", "session_logs", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if todayCosts, err = b.store.CostEntriesForDate(gctx, store.DateString(time.Now())); err != nil {
			b.logger.Warn("context query failed, section empty", "section", "costs", "error", err)
		}
		return nil
	})
	// Every goroutine returns nil; Wait only synchronizes.
	_ = g.Wait()

	var todaySpend, ccSpend float64
	for _, e := range todayCosts {
		todaySpend += e.CostUSD
		if e.Source == SourceTag {
			ccSpend += e.CostUSD
		}
	}

	model := models.Resolve(modelKey)

	var parts []string
	parts = append(parts, "You are Cadence, a personal fitness and performance monitoring agent.")
	parts = append(parts, "Your name reflects rhythm, pace, and timing — the measurable tempo of human performance.")
	parts = append(parts, "You track training, nutrition, body metrics, sleep, blood work, and anything that impacts personal performance.")
	parts = append(parts, "")
	parts = append(parts, "## CONTEXT STATUS")
	parts = append(parts, fmt.Sprintf("Pulse DB is LIVE. Loaded: %d directives, %d identity entries, %d memories, %d session logs.",
		len(directives), len(identity), len(memories), len(logs)))
	parts = append(parts, fmt.Sprintf("Today's logged spend: $%.4f (CC chat: $%.4f) | Budget: $%.2f/day | Remaining: $%.4f",
		todaySpend, ccSpend, DailyBudgetUSD, DailyBudgetUSD-todaySpend))
	parts = append(parts, fmt.Sprintf("Current model: %s ($%g/$%g per M tokens)",
		model.Key, model.InputPerMillion, model.OutputPerMillion))
	parts = append(parts, "DO NOT claim DB is empty or context is missing. Everything below is live data.")
	parts = append(parts, "")
	parts = append(parts, "## Model Pricing (KNOW THESE)")
	parts = append(parts, "| Model | Input | Output |")
	parts = append(parts, "|-------|-------|--------|")
	for _, key := range models.Keys() {
		m := models.Resolve(key)
		parts = append(parts, fmt.Sprintf("| %s | $%g/M | $%g/M |", m.Key, m.InputPerMillion, m.OutputPerMillion))
	}
	parts = append(parts, "")
	parts = append(parts, "## Tools: create_task, update_task, save_memory, list_tasks, search_memories, check_cost")
	parts = append(parts, "Use proactively. Action item → create_task. Worth remembering → save_memory. Cost question → check_cost.")
	parts = append(parts, "")
	parts = append(parts, "## Tone: Direct, no fluff. Match the operator's energy.")
	parts = append(parts, "")

	if len(directives) > 0 {
		parts = append(parts, "## Soul Directives")
		for _, d := range directives {
			parts = append(parts, fmt.Sprintf("- [%s] %s", d.Category, d.Directive))
		}
		parts = append(parts, "")
	}
	if len(identity) > 0 {
		parts = append(parts, "## Operator Context")
		for _, f := range identity {
			parts = append(parts, fmt.Sprintf("- %s: %s", f.Key, f.Value))
		}
		parts = append(parts, "")
	}
	if len(memories) > 0 {
		parts = append(parts, fmt.Sprintf("## Memories (top %d)", memoryLimit))
		for _, m := range memories {
			parts = append(parts, fmt.Sprintf("- [%s] %s: %s", m.MemoryType, m.Key, truncate(m.Content, snippetLen)))
		}
		parts = append(parts, "")
	}
	if len(logs) > 0 {
		parts = append(parts, "## Recent Sessions")
		for _, l := range logs {
			parts = append(parts, fmt.Sprintf("- [%s] %s", l.LogDate, truncate(l.Summary, snippetLen)))
		}
	}

	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
