package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

// Balance is the materialized allowance balance, one running sum per category.
type Balance struct {
	VideoGames      decimal.Decimal `json:"video_games"`
	GeneralSpending decimal.Decimal `json:"general_spending"`
	Charity         decimal.Decimal `json:"charity"`
	Savings         decimal.Decimal `json:"savings"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Total returns the sum across all four categories.
func (b Balance) Total() decimal.Decimal {
	return b.VideoGames.Add(b.GeneralSpending).Add(b.Charity).Add(b.Savings)
}

// Transaction is an append-only allowance event. Category fields hold signed
// deltas: positive for deposits, negative for withdrawals.
type Transaction struct {
	ID              int64           `json:"id"`
	Type            TransactionType `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	VideoGames      decimal.Decimal `json:"video_games"`
	GeneralSpending decimal.Decimal `json:"general_spending"`
	Charity         decimal.Decimal `json:"charity"`
	Savings         decimal.Decimal `json:"savings"`
	CreatedAt       time.Time       `json:"created_at"`
}

// BalanceOverride audits a manual correction of the balance. It is not a
// Transaction and never appears in flow reports.
type BalanceOverride struct {
	ID        int64     `json:"id"`
	Previous  Balance   `json:"previous"`
	Current   Balance   `json:"current"`
	CreatedAt time.Time `json:"created_at"`
}
