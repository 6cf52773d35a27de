package ledger

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/notify"
	"github.com/dukerupert/allowance/internal/store"
)

// Balance returns the allowance balance, creating it at zero on first access.
func (e *Engine) Balance(ctx context.Context) (*model.Balance, error) {
	b, err := store.NewBalanceStore(e.db).Get(ctx)
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}

	err = e.inTx(ctx, "ensure balance", func(tx *sql.Tx) error {
		b, err = store.NewBalanceStore(tx).Ensure(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Deposit splits amount across the four categories and records it.
func (e *Engine) Deposit(ctx context.Context, amount decimal.Decimal) (*model.Balance, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	split := SplitDeposit(amount)
	now := e.now()

	var updated *model.Balance
	var recorded *model.Transaction
	err := e.inTx(ctx, "deposit", func(tx *sql.Tx) error {
		balances := store.NewBalanceStore(tx)
		current, err := balances.Ensure(ctx)
		if err != nil {
			return err
		}

		next := *current
		next.VideoGames = next.VideoGames.Add(split.VideoGames)
		next.GeneralSpending = next.GeneralSpending.Add(split.GeneralSpending)
		next.Charity = next.Charity.Add(split.Charity)
		next.Savings = next.Savings.Add(split.Savings)
		if updated, err = balances.Set(ctx, next, now); err != nil {
			return err
		}

		recorded, err = store.NewTransactionStore(tx).Append(ctx, model.Transaction{
			Type:            model.TransactionDeposit,
			Amount:          amount,
			VideoGames:      split.VideoGames,
			GeneralSpending: split.GeneralSpending,
			Charity:         split.Charity,
			Savings:         split.Savings,
			CreatedAt:       now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "deposit recorded", "transaction_id", recorded.ID, "amount", amount.String())
	e.publish(ctx, notify.KindDeposit, now, recorded)
	return updated, nil
}

// Withdraw takes money from the video games and general spending categories.
// Neither category may be driven below zero.
func (e *Engine) Withdraw(ctx context.Context, videoGames, generalSpending decimal.Decimal) (*model.Balance, error) {
	if videoGames.IsNegative() || generalSpending.IsNegative() {
		return nil, ErrInvalidAmount.with("withdrawal amounts must not be negative")
	}
	if videoGames.IsZero() && generalSpending.IsZero() {
		return nil, ErrInvalidAmount.with("withdrawal amount must be greater than zero")
	}

	now := e.now()

	var updated *model.Balance
	var recorded *model.Transaction
	err := e.inTx(ctx, "withdraw", func(tx *sql.Tx) error {
		balances := store.NewBalanceStore(tx)
		current, err := balances.Ensure(ctx)
		if err != nil {
			return err
		}

		if videoGames.GreaterThan(current.VideoGames) {
			return ErrInsufficientFunds.with("withdrawal amount for video games exceeds available funds (%s available)", current.VideoGames)
		}
		if generalSpending.GreaterThan(current.GeneralSpending) {
			return ErrInsufficientFunds.with("withdrawal amount for general spending exceeds available funds (%s available)", current.GeneralSpending)
		}

		next := *current
		next.VideoGames = next.VideoGames.Sub(videoGames)
		next.GeneralSpending = next.GeneralSpending.Sub(generalSpending)
		if updated, err = balances.Set(ctx, next, now); err != nil {
			return err
		}

		recorded, err = store.NewTransactionStore(tx).Append(ctx, model.Transaction{
			Type:            model.TransactionWithdrawal,
			Amount:          videoGames.Add(generalSpending),
			VideoGames:      videoGames.Neg(),
			GeneralSpending: generalSpending.Neg(),
			Charity:         decimal.Zero,
			Savings:         decimal.Zero,
			CreatedAt:       now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "withdrawal recorded",
		"transaction_id", recorded.ID,
		"video_games", videoGames.String(),
		"general_spending", generalSpending.String(),
	)
	e.publish(ctx, notify.KindWithdrawal, now, recorded)
	return updated, nil
}

// UpdateBalance overwrites all four categories without recording a
// transaction. The correction is kept in the override audit trail instead,
// so after an override the balance no longer equals the transaction sum.
func (e *Engine) UpdateBalance(ctx context.Context, values model.Balance) (*model.Balance, error) {
	now := e.now()

	var updated *model.Balance
	var override *model.BalanceOverride
	err := e.inTx(ctx, "update balance", func(tx *sql.Tx) error {
		balances := store.NewBalanceStore(tx)
		prev, err := balances.Ensure(ctx)
		if err != nil {
			return err
		}
		if updated, err = balances.Set(ctx, values, now); err != nil {
			return err
		}
		override, err = balances.RecordOverride(ctx, *prev, *updated, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.WarnContext(ctx, "balance overridden", "override_id", override.ID)
	e.publish(ctx, notify.KindBalanceOverride, now, override)
	return updated, nil
}

// Overrides returns the manual correction audit trail, newest first.
func (e *Engine) Overrides(ctx context.Context) ([]model.BalanceOverride, error) {
	return store.NewBalanceStore(e.db).ListOverrides(ctx)
}

// ResetAll deletes every transaction and zeroes the balance in one step.
func (e *Engine) ResetAll(ctx context.Context) (*model.Balance, error) {
	now := e.now()

	var updated *model.Balance
	var removed int64
	err := e.inTx(ctx, "reset", func(tx *sql.Tx) error {
		balances := store.NewBalanceStore(tx)
		if _, err := balances.Ensure(ctx); err != nil {
			return err
		}

		var err error
		if removed, err = store.NewTransactionStore(tx).DeleteAll(ctx); err != nil {
			return err
		}
		updated, err = balances.Set(ctx, model.Balance{}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.WarnContext(ctx, "allowance ledger reset", "transactions_removed", removed)
	e.publish(ctx, notify.KindReset, now, map[string]int64{"transactions_removed": removed})
	return updated, nil
}
