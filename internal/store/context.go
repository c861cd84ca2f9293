package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Directive is a persisted behavioral rule the agent follows. The core
// only reads these; they are managed out of band.
type Directive struct {
	ID        string `json:"id"`
	Directive string `json:"directive"`
	Category  string `json:"category"`
	Priority  int    `json:"priority"`
	Active    bool   `json:"active"`
}

// IdentityFact is one key/value fact about the operator.
type IdentityFact struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category,omitempty"`
}

// SessionLog is a summary of a past working session.
type SessionLog struct {
	Summary string `json:"summary"`
	LogDate string `json:"log_date"`
}

// ActiveDirectives returns active directives ordered by priority
// ascending.
func (s *Store) ActiveDirectives(ctx context.Context) ([]Directive, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, directive, category, priority, active
		 FROM directives
		 WHERE active = 1
		 ORDER BY priority ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query directives: %w", err)
	}
	defer rows.Close()

	var directives []Directive
	for rows.Next() {
		var d Directive
		if err := rows.Scan(&d.ID, &d.Directive, &d.Category, &d.Priority, &d.Active); err != nil {
			return nil, fmt.Errorf("scan directive: %w", err)
		}
		directives = append(directives, d)
	}
	return directives, rows.Err()
}

// IdentityFacts returns up to limit identity facts.
func (s *Store) IdentityFacts(ctx context.Context, limit int) ([]IdentityFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, COALESCE(category, '') FROM identity LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}
	defer rows.Close()

	var facts []IdentityFact
	for rows.Next() {
		var f IdentityFact
		if err := rows.Scan(&f.Key, &f.Value, &f.Category); err != nil {
			return nil, fmt.Errorf("scan identity fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// RecentSessionLogs returns the limit most recent session summaries.
func (s *Store) RecentSessionLogs(ctx context.Context, limit int) ([]SessionLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT summary, log_date
		 FROM session_logs
		 ORDER BY created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query session logs: %w", err)
	}
	defer rows.Close()

	var logs []SessionLog
	for rows.Next() {
		var l SessionLog
		if err := rows.Scan(&l.Summary, &l.LogDate); err != nil {
			return nil, fmt.Errorf("scan session log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// SeedDirective inserts a directive row. Used by ops tooling and tests.
func (s *Store) SeedDirective(ctx context.Context, d Directive) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate directive ID: %w", err)
	}
	active := 0
	if d.Active {
		active = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO directives (id, directive, category, priority, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), d.Directive, d.Category, d.Priority, active,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert directive: %w", err)
	}
	return nil
}

// SeedIdentityFact inserts or replaces an identity fact.
func (s *Store) SeedIdentityFact(ctx context.Context, f IdentityFact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identity (key, value, category, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, category = excluded.category`,
		f.Key, f.Value, f.Category, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert identity fact: %w", err)
	}
	return nil
}

// SeedSessionLog inserts a session summary row.
func (s *Store) SeedSessionLog(ctx context.Context, l SessionLog) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate session log ID: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_logs (id, summary, log_date, created_at)
		 VALUES (?, ?, ?, ?)`,
		id.String(), l.Summary, l.LogDate, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session log: %w", err)
	}
	return nil
}
