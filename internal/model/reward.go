package model

import "time"

type Task struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Reward struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PointsCost  int       `json:"points_cost"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskCompletion records a task done on a calendar day. PointsEarned is
// copied from the task when the completion is created and never changes.
type TaskCompletion struct {
	ID            int64     `json:"id"`
	TaskID        int64     `json:"task_id"`
	TaskName      string    `json:"task_name,omitempty"`
	CompletedDate time.Time `json:"completed_date"`
	PointsEarned  int       `json:"points_earned"`
	CreatedAt     time.Time `json:"created_at"`
}

// RewardRedemption records points spent on a reward. PointsSpent is copied
// from the reward cost at redemption time.
type RewardRedemption struct {
	ID          int64     `json:"id"`
	RewardID    int64     `json:"reward_id"`
	PointsSpent int       `json:"points_spent"`
	RedeemedAt  time.Time `json:"redeemed_at"`
}

type PointsBalance struct {
	TotalPoints int       `json:"total_points"`
	UpdatedAt   time.Time `json:"updated_at"`
}
