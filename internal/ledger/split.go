package ledger

import (
	"github.com/shopspring/decimal"
)

// Deposit shares per category. They sum to exactly one.
var (
	VideoGamesShare      = decimal.RequireFromString("0.30")
	GeneralSpendingShare = decimal.RequireFromString("0.20")
	CharityShare         = decimal.RequireFromString("0.10")
	SavingsShare         = decimal.RequireFromString("0.40")
)

// Split is a deposit divided across the four categories.
type Split struct {
	VideoGames      decimal.Decimal
	GeneralSpending decimal.Decimal
	Charity         decimal.Decimal
	Savings         decimal.Decimal
}

// SplitDeposit divides amount by the fixed category shares.
func SplitDeposit(amount decimal.Decimal) Split {
	return Split{
		VideoGames:      amount.Mul(VideoGamesShare),
		GeneralSpending: amount.Mul(GeneralSpendingShare),
		Charity:         amount.Mul(CharityShare),
		Savings:         amount.Mul(SavingsShare),
	}
}

func (s Split) Total() decimal.Decimal {
	return s.VideoGames.Add(s.GeneralSpending).Add(s.Charity).Add(s.Savings)
}
