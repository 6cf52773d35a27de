package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/allowance/internal/model"
)

type CompletionStore struct {
	db DBTX
}

func NewCompletionStore(db DBTX) *CompletionStore {
	return &CompletionStore{db: db}
}

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.TaskCompletion, error) {
	var c model.TaskCompletion
	var date string

	err := scanner.Scan(&c.ID, &c.TaskID, &c.TaskName, &date, &c.PointsEarned, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	c.CompletedDate, err = ParseDate(date)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Task names are joined for display only; a completion whose task row is
// gone still scans, with an empty name.
const (
	completionCols = `c.id, c.task_id, COALESCE(t.name, ''), c.completed_date, c.points_earned, c.created_at`
	completionFrom = ` FROM task_completions c LEFT JOIN tasks t ON t.id = c.task_id`
)

// Create inserts a completion. A second completion for the same task and day
// violates the table's UNIQUE constraint; see IsUniqueViolation.
func (s *CompletionStore) Create(ctx context.Context, taskID int64, date time.Time, pointsEarned int, at time.Time) (*model.TaskCompletion, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO task_completions (task_id, completed_date, points_earned, created_at) VALUES (?, ?, ?, ?)`,
		taskID, FormatDate(date), pointsEarned, at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+completionCols+completionFrom+` WHERE c.id = ?`, id)
	c, err := scanCompletion(row)
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// Get returns the completion of a task on a day, or nil if there is none.
func (s *CompletionStore) Get(ctx context.Context, taskID int64, date time.Time) (*model.TaskCompletion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+completionCols+completionFrom+` WHERE c.task_id = ? AND c.completed_date = ?`,
		taskID, FormatDate(date),
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *CompletionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_completions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}

// ListByDate returns the completions recorded for one calendar day.
func (s *CompletionStore) ListByDate(ctx context.Context, date time.Time) ([]model.TaskCompletion, error) {
	return s.list(ctx,
		`SELECT `+completionCols+completionFrom+` WHERE c.completed_date = ? ORDER BY c.id ASC`,
		FormatDate(date),
	)
}

// ListBetween returns completions whose day falls in [start, end], oldest day
// first. A zero start or end leaves that side of the range open.
func (s *CompletionStore) ListBetween(ctx context.Context, start, end time.Time) ([]model.TaskCompletion, error) {
	query := `SELECT ` + completionCols + completionFrom + ` WHERE 1 = 1`
	var args []any
	if !start.IsZero() {
		query += ` AND c.completed_date >= ?`
		args = append(args, FormatDate(start))
	}
	if !end.IsZero() {
		query += ` AND c.completed_date <= ?`
		args = append(args, FormatDate(end))
	}
	query += ` ORDER BY c.completed_date ASC, c.id ASC`
	return s.list(ctx, query, args...)
}

func (s *CompletionStore) list(ctx context.Context, query string, args ...any) ([]model.TaskCompletion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.TaskCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

// SumPoints totals points earned over all completions.
func (s *CompletionStore) SumPoints(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points_earned), 0) FROM task_completions`,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum points earned: %w", err)
	}
	return total, nil
}

func (s *CompletionStore) DeleteAll(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM task_completions`)
	if err != nil {
		return 0, fmt.Errorf("delete completions: %w", err)
	}
	return result.RowsAffected()
}
