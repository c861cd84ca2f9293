package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cost periods accepted by CostEntries.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodAll   = "all"
)

// CostEntry is one append-only row in the cost ledger. Entries are
// never mutated after insert; the cost is computed once by the caller
// and stored as-is.
type CostEntry struct {
	ID           string    `json:"id"`
	SessionDate  string    `json:"session_date"` // YYYY-MM-DD
	ModelUsed    string    `json:"model_used"`
	TokensInput  int       `json:"tokens_input"`
	TokensOutput int       `json:"tokens_output"`
	CostUSD      float64   `json:"cost_usd"`
	TaskType     string    `json:"task_type"`
	Source       string    `json:"source"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DateString formats t as a ledger session date.
func DateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// InsertCostEntry appends a ledger row. An empty SessionDate defaults
// to today.
func (s *Store) InsertCostEntry(ctx context.Context, e CostEntry) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate cost entry ID: %w", err)
	}
	if e.SessionDate == "" {
		e.SessionDate = DateString(time.Now())
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cost_log
			(id, session_date, model_used, tokens_input, tokens_output, cost_usd, task_type, source, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), e.SessionDate, e.ModelUsed, e.TokensInput, e.TokensOutput,
		e.CostUSD, e.TaskType, e.Source, e.Notes, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert cost entry: %w", err)
	}
	return nil
}

// CostEntriesForDate returns every ledger row stamped with the given
// session date.
func (s *Store) CostEntriesForDate(ctx context.Context, date string) ([]CostEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_date, model_used, tokens_input, tokens_output, cost_usd,
		        task_type, source, COALESCE(notes, ''), created_at
		 FROM cost_log
		 WHERE session_date = ?
		 ORDER BY created_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query cost entries for %s: %w", date, err)
	}
	defer rows.Close()

	return scanCostEntries(rows)
}

// CostEntries returns up to limit ledger rows for a period, most
// recent first. Unknown periods are treated as "today" — the ledger
// mirrors the model catalog's silent-fallback policy.
func (s *Store) CostEntries(ctx context.Context, period string, limit int) ([]CostEntry, error) {
	query := `SELECT id, session_date, model_used, tokens_input, tokens_output, cost_usd,
	                 task_type, source, COALESCE(notes, ''), created_at
	          FROM cost_log`
	var args []any

	switch period {
	case PeriodAll:
		// no filter
	case PeriodWeek:
		weekAgo := DateString(time.Now().AddDate(0, 0, -7))
		query += ` WHERE session_date >= ?`
		args = append(args, weekAgo)
	default:
		query += ` WHERE session_date = ?`
		args = append(args, DateString(time.Now()))
	}

	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cost entries: %w", err)
	}
	defer rows.Close()

	return scanCostEntries(rows)
}

func scanCostEntries(rows rowScanner) ([]CostEntry, error) {
	var entries []CostEntry
	for rows.Next() {
		var e CostEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.SessionDate, &e.ModelUsed, &e.TokensInput,
			&e.TokensOutput, &e.CostUSD, &e.TaskType, &e.Source, &e.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan cost entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
