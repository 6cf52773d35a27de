package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/allowance/internal/model"
)

type RedemptionStore struct {
	db DBTX
}

func NewRedemptionStore(db DBTX) *RedemptionStore {
	return &RedemptionStore{db: db}
}

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.RewardRedemption, error) {
	var r model.RewardRedemption
	err := scanner.Scan(&r.ID, &r.RewardID, &r.PointsSpent, &r.RedeemedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const redemptionCols = `id, reward_id, points_spent, redeemed_at`

func (s *RedemptionStore) Create(ctx context.Context, rewardID int64, pointsSpent int, at time.Time) (*model.RewardRedemption, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO reward_redemptions (reward_id, points_spent, redeemed_at) VALUES (?, ?, ?)`,
		rewardID, pointsSpent, at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+redemptionCols+` FROM reward_redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

// List returns all redemptions, newest first.
func (s *RedemptionStore) List(ctx context.Context) ([]model.RewardRedemption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+redemptionCols+` FROM reward_redemptions ORDER BY redeemed_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []model.RewardRedemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}

// SumPoints totals points spent over all redemptions.
func (s *RedemptionStore) SumPoints(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points_spent), 0) FROM reward_redemptions`,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum points spent: %w", err)
	}
	return total, nil
}

func (s *RedemptionStore) DeleteAll(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reward_redemptions`)
	if err != nil {
		return 0, fmt.Errorf("delete redemptions: %w", err)
	}
	return result.RowsAffected()
}
