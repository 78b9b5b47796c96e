package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Create(ctx context.Context, userID uuid.UUID, title, emoji string, link model.ProLinkType) (*model.Task, error) {
	if !link.Valid() {
		return nil, fmt.Errorf("create task: unknown pro link type %q", link)
	}
	t := model.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Emoji:       emoji,
		ProLinkType: link,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, emoji, pro_link_type, active, created_at) VALUES (?, ?, ?, ?, ?, 1, ?)`,
		t.ID, t.UserID, t.Title, t.Emoji, t.ProLinkType, t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &t, nil
}

func (s *TaskStore) SetActive(ctx context.Context, taskID uuid.UUID, active bool) error {
	var v int
	if active {
		v = 1
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE tasks SET active = ? WHERE id = ?`, v, taskID); err != nil {
		return fmt.Errorf("set task active: %w", err)
	}
	return nil
}

// Complete marks a task done on the given local date ("2006-01-02").
func (s *TaskStore) Complete(ctx context.Context, taskID uuid.UUID, date string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO task_completions (task_id, completed_on) VALUES (?, ?)`,
		taskID, date,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

func (s *TaskStore) Uncomplete(ctx context.Context, taskID uuid.UUID, date string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM task_completions WHERE task_id = ? AND completed_on = ?`,
		taskID, date,
	)
	if err != nil {
		return fmt.Errorf("uncomplete task: %w", err)
	}
	return nil
}

// ListForDay returns the user's active tasks with CompletedToday set for date.
func (s *TaskStore) ListForDay(ctx context.Context, userID uuid.UUID, date string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.user_id, t.title, t.emoji, t.pro_link_type, t.active, t.created_at,
		        EXISTS (SELECT 1 FROM task_completions c WHERE c.task_id = t.id AND c.completed_on = ?)
		 FROM tasks t
		 WHERE t.user_id = ? AND t.active = 1
		 ORDER BY t.created_at, t.id`,
		date, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks for day: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var active, done int
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Emoji, &t.ProLinkType, &active, &t.CreatedAt, &done); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Active = active != 0
		t.CompletedToday = done != 0
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
