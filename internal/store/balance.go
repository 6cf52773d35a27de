package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/allowance/internal/model"
)

// The balance and points_balance tables each hold a single row with id 1.
const singletonID = 1

type BalanceStore struct {
	db DBTX
}

func NewBalanceStore(db DBTX) *BalanceStore {
	return &BalanceStore{db: db}
}

func scanBalance(scanner interface{ Scan(...any) error }) (*model.Balance, error) {
	var b model.Balance
	err := scanner.Scan(&b.VideoGames, &b.GeneralSpending, &b.Charity, &b.Savings, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const balanceCols = `video_games, general_spending, charity, savings, updated_at`

// Get returns the balance row, or nil if it has not been created yet.
func (s *BalanceStore) Get(ctx context.Context) (*model.Balance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+balanceCols+` FROM balance WHERE id = ?`, singletonID)
	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// Ensure creates the balance row at zero if it is missing and returns it.
func (s *BalanceStore) Ensure(ctx context.Context) (*model.Balance, error) {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO balance (id) VALUES (?)`, singletonID); err != nil {
		return nil, fmt.Errorf("ensure balance: %w", err)
	}
	return s.Get(ctx)
}

// Set overwrites all four category sums.
func (s *BalanceStore) Set(ctx context.Context, b model.Balance, at time.Time) (*model.Balance, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE balance SET video_games = ?, general_spending = ?, charity = ?, savings = ?, updated_at = ? WHERE id = ?`,
		b.VideoGames.String(), b.GeneralSpending.String(), b.Charity.String(), b.Savings.String(), at.UTC(), singletonID,
	)
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	return s.Get(ctx)
}

// RecordOverride stores an audit row for a manual balance correction.
func (s *BalanceStore) RecordOverride(ctx context.Context, prev, next model.Balance, at time.Time) (*model.BalanceOverride, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO balance_overrides (
			prev_video_games, prev_general_spending, prev_charity, prev_savings,
			video_games, general_spending, charity, savings, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		prev.VideoGames.String(), prev.GeneralSpending.String(), prev.Charity.String(), prev.Savings.String(),
		next.VideoGames.String(), next.GeneralSpending.String(), next.Charity.String(), next.Savings.String(),
		at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert balance override: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.BalanceOverride{ID: id, Previous: prev, Current: next, CreatedAt: at.UTC()}, nil
}

// ListOverrides returns the correction audit trail, newest first.
func (s *BalanceStore) ListOverrides(ctx context.Context) ([]model.BalanceOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prev_video_games, prev_general_spending, prev_charity, prev_savings,
			video_games, general_spending, charity, savings, created_at
		 FROM balance_overrides ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list balance overrides: %w", err)
	}
	defer rows.Close()

	var overrides []model.BalanceOverride
	for rows.Next() {
		var o model.BalanceOverride
		if err := rows.Scan(&o.ID,
			&o.Previous.VideoGames, &o.Previous.GeneralSpending, &o.Previous.Charity, &o.Previous.Savings,
			&o.Current.VideoGames, &o.Current.GeneralSpending, &o.Current.Charity, &o.Current.Savings,
			&o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan balance override: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// --- Points balance ---

type PointsStore struct {
	db DBTX
}

func NewPointsStore(db DBTX) *PointsStore {
	return &PointsStore{db: db}
}

// Get returns the points balance row, or nil if it has not been created yet.
func (s *PointsStore) Get(ctx context.Context) (*model.PointsBalance, error) {
	var p model.PointsBalance
	err := s.db.QueryRowContext(ctx,
		`SELECT total_points, updated_at FROM points_balance WHERE id = ?`, singletonID,
	).Scan(&p.TotalPoints, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get points balance: %w", err)
	}
	return &p, nil
}

// Ensure creates the points balance row at zero if it is missing and returns it.
func (s *PointsStore) Ensure(ctx context.Context) (*model.PointsBalance, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO points_balance (id, total_points) VALUES (?, 0)`, singletonID,
	); err != nil {
		return nil, fmt.Errorf("ensure points balance: %w", err)
	}
	return s.Get(ctx)
}

func (s *PointsStore) Set(ctx context.Context, total int, at time.Time) (*model.PointsBalance, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE points_balance SET total_points = ?, updated_at = ? WHERE id = ?`,
		total, at.UTC(), singletonID,
	)
	if err != nil {
		return nil, fmt.Errorf("update points balance: %w", err)
	}
	return s.Get(ctx)
}
