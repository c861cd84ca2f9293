package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task statuses for the heartbeat queue.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Task is one entry in the heartbeat queue. Priority runs 1-10 with
// 1 the most urgent.
type Task struct {
	ID               string     `json:"id"`
	Task             string     `json:"task"`
	Description      string     `json:"description,omitempty"`
	Category         string     `json:"category"`
	Priority         int        `json:"priority"`
	Status           string     `json:"status"`
	Result           string     `json:"result,omitempty"`
	CreatedBySession string     `json:"created_by_session,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// CreateTask inserts a new pending task and returns it. The caller is
// responsible for defaulting priority; zero values here are stored as-is.
func (s *Store) CreateTask(ctx context.Context, t Task) (*Task, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate task ID: %w", err)
	}
	t.ID = id.String()
	t.Status = StatusPending
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO heartbeat
			(id, task, description, category, priority, status, created_by_session, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Task, t.Description, t.Category, t.Priority, t.Status,
		t.CreatedBySession,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return &t, nil
}

// FindTasks returns up to limit tasks whose title contains fragment,
// case-insensitively, oldest first.
func (s *Store) FindTasks(ctx context.Context, fragment string, limit int) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, COALESCE(description, ''), category, priority, status,
		        COALESCE(result, ''), COALESCE(created_by_session, ''),
		        created_at, updated_at, completed_at
		 FROM heartbeat
		 WHERE task LIKE '%' || ? || '%'
		 ORDER BY created_at ASC
		 LIMIT ?`,
		fragment, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// UpdateTaskStatus sets a task's status and optional result text, and
// stamps completed_at when the status is completed.
func (s *Store) UpdateTaskStatus(ctx context.Context, id, status, result string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var completedAt any
	if status == StatusCompleted {
		completedAt = now
	}

	var res any
	if result != "" {
		res = result
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE heartbeat
		 SET status = ?, result = COALESCE(?, result), updated_at = ?,
		     completed_at = COALESCE(?, completed_at)
		 WHERE id = ?`,
		status, res, now, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	return nil
}

// ListTasks returns up to limit tasks ordered by priority ascending.
// An empty filter excludes completed and failed tasks; "all" includes
// everything; any other value matches that status exactly.
func (s *Store) ListTasks(ctx context.Context, statusFilter string, limit int) ([]Task, error) {
	query := `SELECT id, task, COALESCE(description, ''), category, priority, status,
	                 COALESCE(result, ''), COALESCE(created_by_session, ''),
	                 created_at, updated_at, completed_at
	          FROM heartbeat`
	var args []any

	switch statusFilter {
	case "all":
		// no filter
	case "":
		query += ` WHERE status NOT IN (?, ?)`
		args = append(args, StatusCompleted, StatusFailed)
	default:
		query += ` WHERE status = ?`
		args = append(args, statusFilter)
	}

	query += ` ORDER BY priority ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// AllTasks returns up to limit tasks newest first, for the dashboard.
func (s *Store) AllTasks(ctx context.Context, limit int) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, COALESCE(description, ''), category, priority, status,
		        COALESCE(result, ''), COALESCE(created_by_session, ''),
		        created_at, updated_at, completed_at
		 FROM heartbeat
		 ORDER BY created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list all tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func scanTasks(rows rowScanner) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		var t Task
		var createdAt, updatedAt string
		var completedAt *string
		if err := rows.Scan(&t.ID, &t.Task, &t.Description, &t.Category, &t.Priority,
			&t.Status, &t.Result, &t.CreatedBySession,
			&createdAt, &updatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		if completedAt != nil {
			done, err := time.Parse(time.RFC3339Nano, *completedAt)
			if err == nil {
				t.CompletedAt = &done
			}
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
