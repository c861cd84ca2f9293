package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Memory types the agent may save.
const (
	MemoryCore       = "core_memory"
	MemoryDecision   = "decision"
	MemorySkill      = "skill"
	MemoryPreference = "preference"
	MemoryKnowledge  = "knowledge"
)

// Memory is one persistent memory, keyed uniquely. Saving an existing
// key overwrites the row rather than creating a duplicate.
type Memory struct {
	Key           string    `json:"key"`
	Content       string    `json:"content"`
	MemoryType    string    `json:"memory_type"`
	Importance    int       `json:"importance"`
	Tags          []string  `json:"tags"`
	SourceSession string    `json:"source_session,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpsertMemory saves a memory by key. An existing key has its content,
// type, importance, and tags replaced and updated_at bumped; created_at
// is preserved.
func (s *Store) UpsertMemory(ctx context.Context, m Memory) (*Memory, error) {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	now := time.Now().UTC()
	m.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (key, content, memory_type, importance, tags, source_session, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			memory_type = excluded.memory_type,
			importance = excluded.importance,
			tags = excluded.tags,
			source_session = excluded.source_session,
			updated_at = excluded.updated_at`,
		m.Key, m.Content, m.MemoryType, m.Importance, string(tags), m.SourceSession,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert memory %q: %w", m.Key, err)
	}
	return &m, nil
}

// SearchMemories returns up to limit memories whose key or content
// contains query, case-insensitively, ordered by importance descending.
func (s *Store) SearchMemories(ctx context.Context, query string, limit int) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, content, memory_type, importance, tags, COALESCE(source_session, ''),
		        created_at, updated_at
		 FROM memories
		 WHERE key LIKE '%' || ? || '%' OR content LIKE '%' || ? || '%'
		 ORDER BY importance DESC
		 LIMIT ?`,
		query, query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// TopMemories returns the limit most important memories, for the
// system prompt and the dashboard.
func (s *Store) TopMemories(ctx context.Context, limit int) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, content, memory_type, importance, tags, COALESCE(source_session, ''),
		        created_at, updated_at
		 FROM memories
		 ORDER BY importance DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query top memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

func scanMemories(rows rowScanner) ([]Memory, error) {
	var memories []Memory
	for rows.Next() {
		var m Memory
		var tags, createdAt, updatedAt string
		if err := rows.Scan(&m.Key, &m.Content, &m.MemoryType, &m.Importance,
			&tags, &m.SourceSession, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
			m.Tags = []string{}
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
