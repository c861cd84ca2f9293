package api

import (
	"net/http"
	"strconv"

	"github.com/cadencehq/cadence-agent/internal/store"
)

// Dashboard read endpoints. These expose the store for the web UI;
// all writes stay behind the chat tools.

func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 200)
	status := r.URL.Query().Get("status")

	var (
		tasks []store.Task
		err   error
	)
	if status == "" {
		tasks, err = s.store.AllTasks(r.Context(), limit)
	} else {
		tasks, err = s.store.ListTasks(r.Context(), status, limit)
	}
	if err != nil {
		s.logger.Error("list tasks", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"tasks": tasks}, s.logger)
}

func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 200)

	var (
		memories []store.Memory
		err      error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		memories, err = s.store.SearchMemories(r.Context(), q, limit)
	} else {
		memories, err = s.store.TopMemories(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("list memories", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}
	if memories == nil {
		memories = []store.Memory{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"memories": memories}, s.logger)
}

func (s *Server) handleDirectives(w http.ResponseWriter, r *http.Request) {
	directives, err := s.store.ActiveDirectives(r.Context())
	if err != nil {
		s.logger.Error("list directives", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}
	if directives == nil {
		directives = []store.Directive{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"directives": directives}, s.logger)
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	facts, err := s.store.IdentityFacts(r.Context(), queryLimit(r, 30, 100))
	if err != nil {
		s.logger.Error("list identity", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}
	if facts == nil {
		facts = []store.IdentityFact{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"identity": facts}, s.logger)
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = store.PeriodToday
	}
	entries, err := s.store.CostEntries(r.Context(), period, queryLimit(r, 50, 500))
	if err != nil {
		s.logger.Error("list costs", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}
	var total float64
	for _, e := range entries {
		total += e.CostUSD
	}
	if entries == nil {
		entries = []store.CostEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"period":    period,
		"total_usd": total,
		"entries":   entries,
	}, s.logger)
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("id")
	messages, err := s.store.SessionMessages(r.Context(), sid, queryLimit(r, 100, 500))
	if err != nil {
		s.logger.Error("list session messages", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}
	if messages == nil {
		messages = []store.ChatMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"session_id": sid,
		"messages":   messages,
	}, s.logger)
}
