package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CompletedTask struct {
	TaskID   int64  `json:"task_id"`
	TaskName string `json:"task_name"`
	Points   int    `json:"points"`
}

// DailyPoints sums the completions of one calendar day.
type DailyPoints struct {
	Date           string          `json:"date"`
	TotalPoints    int             `json:"total_points"`
	CompletedTasks []CompletedTask `json:"completed_tasks"`
}

// MonthlyFlow holds inflow and outflow per spendable category for one month.
// Outflows are reported as positive magnitudes.
type MonthlyFlow struct {
	Month                  string          `json:"month"`
	VideoGamesInflow       decimal.Decimal `json:"video_games_inflow"`
	VideoGamesOutflow      decimal.Decimal `json:"video_games_outflow"`
	GeneralSpendingInflow  decimal.Decimal `json:"general_spending_inflow"`
	GeneralSpendingOutflow decimal.Decimal `json:"general_spending_outflow"`
}

type RewardStatus string

const (
	RewardStatusActive   RewardStatus = "active"
	RewardStatusInactive RewardStatus = "inactive"
	RewardStatusDeleted  RewardStatus = "deleted"
)

// RedemptionEntry pairs a redemption with the current state of its reward.
type RedemptionEntry struct {
	RewardRedemption
	RewardName        string       `json:"reward_name"`
	RewardDescription string       `json:"reward_description"`
	RewardStatus      RewardStatus `json:"reward_status"`
}

type DepositEntry struct {
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
