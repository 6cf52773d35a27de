package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/allowance/internal/model"
)

type RewardStore struct {
	db DBTX
}

func NewRewardStore(db DBTX) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active int

	err := scanner.Scan(&r.ID, &r.Name, &r.Description, &r.PointsCost, &active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, name, description, points_cost, active, created_at, updated_at`

func (s *RewardStore) Create(ctx context.Context, name, description string, pointsCost int, active bool) (*model.Reward, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (name, description, points_cost, active) VALUES (?, ?, ?, ?)`,
		name, description, pointsCost, boolToInt(active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns all rewards, active first, then by cost.
func (s *RewardStore) List(ctx context.Context) ([]model.Reward, error) {
	return s.list(ctx, `SELECT `+rewardCols+` FROM rewards ORDER BY active DESC, points_cost ASC, name ASC`)
}

// ListActive returns only active rewards, cheapest first.
func (s *RewardStore) ListActive(ctx context.Context) ([]model.Reward, error) {
	return s.list(ctx, `SELECT `+rewardCols+` FROM rewards WHERE active = 1 ORDER BY points_cost ASC, name ASC`)
}

func (s *RewardStore) list(ctx context.Context, query string) ([]model.Reward, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// Update changes the definition only; redemptions keep the cost they were charged.
func (s *RewardStore) Update(ctx context.Context, id int64, name, description string, pointsCost int, active bool, at time.Time) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET name = ?, description = ?, points_cost = ?, active = ?, updated_at = ? WHERE id = ?`,
		name, description, pointsCost, boolToInt(active), at.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) SetActive(ctx context.Context, id int64, active bool, at time.Time) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), at.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set reward active: %w", err)
	}
	return s.GetByID(ctx, id)
}
