package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/allowance/internal/model"
)

type TaskStore struct {
	db DBTX
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var active int

	err := scanner.Scan(&t.ID, &t.Name, &t.Description, &t.Points, &active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Active = active != 0
	return &t, nil
}

const taskCols = `id, name, description, points, active, created_at, updated_at`

func (s *TaskStore) Create(ctx context.Context, name, description string, points int, active bool) (*model.Task, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (name, description, points, active) VALUES (?, ?, ?, ?)`,
		name, description, points, boolToInt(active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// List returns all tasks, active first, then in creation order.
func (s *TaskStore) List(ctx context.Context) ([]model.Task, error) {
	return s.list(ctx, `SELECT `+taskCols+` FROM tasks ORDER BY active DESC, created_at ASC, id ASC`)
}

// ListActive returns only active tasks in creation order.
func (s *TaskStore) ListActive(ctx context.Context) ([]model.Task, error) {
	return s.list(ctx, `SELECT `+taskCols+` FROM tasks WHERE active = 1 ORDER BY created_at ASC, id ASC`)
}

func (s *TaskStore) list(ctx context.Context, query string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update changes the definition only; completions keep their own points.
func (s *TaskStore) Update(ctx context.Context, id int64, name, description string, points int, active bool, at time.Time) (*model.Task, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET name = ?, description = ?, points = ?, active = ?, updated_at = ? WHERE id = ?`,
		name, description, points, boolToInt(active), at.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) SetActive(ctx context.Context, id int64, active bool, at time.Time) (*model.Task, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), at.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set task active: %w", err)
	}
	return s.GetByID(ctx, id)
}
