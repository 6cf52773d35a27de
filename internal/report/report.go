// Package report derives read-only views from the ledger event logs.
package report

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
)

// DeletedRewardName is shown for redemptions whose reward row is gone.
const DeletedRewardName = "Deleted reward"

// Month selects one calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// Contains reports whether t, read in loc, falls inside m.
func (m Month) Contains(t time.Time, loc *time.Location) bool {
	t = t.In(loc)
	return t.Year() == m.Year && t.Month() == m.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Views reads the event logs. Timestamps are bucketed into months using loc.
type Views struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Views {
	if loc == nil {
		loc = time.Local
	}
	return &Views{db: db, loc: loc}
}

// DailyPoints groups completions in [start, end] by day, oldest day first.
// A zero bound leaves that side open. The returned sequence can be ranged
// over any number of times.
func (v *Views) DailyPoints(ctx context.Context, start, end time.Time) (iter.Seq[model.DailyPoints], error) {
	if !start.IsZero() && !end.IsZero() && ledger.Day(end).Before(ledger.Day(start)) {
		return nil, ledger.ErrInvalidDateSpan
	}

	completions, err := store.NewCompletionStore(v.db).ListBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	return func(yield func(model.DailyPoints) bool) {
		var day *model.DailyPoints
		for _, c := range completions {
			date := store.FormatDate(c.CompletedDate)
			if day != nil && day.Date != date {
				if !yield(*day) {
					return
				}
				day = nil
			}
			if day == nil {
				day = &model.DailyPoints{Date: date}
			}
			day.TotalPoints += c.PointsEarned
			day.CompletedTasks = append(day.CompletedTasks, model.CompletedTask{
				TaskID:   c.TaskID,
				TaskName: c.TaskName,
				Points:   c.PointsEarned,
			})
		}
		if day != nil {
			yield(*day)
		}
	}, nil
}

type monthKey struct {
	year  int
	month time.Month
}

// MonthlyFlow sums inflow and outflow of the two spendable categories per
// calendar month, oldest month first. Override corrections are not
// transactions and never show up here.
func (v *Views) MonthlyFlow(ctx context.Context) ([]model.MonthlyFlow, error) {
	txs, err := store.NewTransactionStore(v.db).List(ctx)
	if err != nil {
		return nil, err
	}

	flows := make(map[monthKey]*model.MonthlyFlow)
	for _, tx := range txs {
		at := tx.CreatedAt.In(v.loc)
		key := monthKey{at.Year(), at.Month()}
		f, ok := flows[key]
		if !ok {
			f = &model.MonthlyFlow{Month: at.Format("January 2006")}
			flows[key] = f
		}
		f.VideoGamesInflow, f.VideoGamesOutflow = addFlow(f.VideoGamesInflow, f.VideoGamesOutflow, tx.VideoGames)
		f.GeneralSpendingInflow, f.GeneralSpendingOutflow = addFlow(f.GeneralSpendingInflow, f.GeneralSpendingOutflow, tx.GeneralSpending)
	}

	keys := make([]monthKey, 0, len(flows))
	for k := range flows {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b monthKey) int {
		return cmp.Or(cmp.Compare(a.year, b.year), cmp.Compare(a.month, b.month))
	})

	result := make([]model.MonthlyFlow, 0, len(keys))
	for _, k := range keys {
		result = append(result, *flows[k])
	}
	return result, nil
}

func addFlow(in, out, delta decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if delta.IsPositive() {
		return in.Add(delta), out
	}
	return in, out.Add(delta.Abs())
}

// Redemptions lists redemptions newest first, optionally limited to one
// month. Each carries the reward's current name, or a placeholder when the
// reward no longer exists. PointsSpent is always the recorded value.
func (v *Views) Redemptions(ctx context.Context, month *Month) ([]model.RedemptionEntry, error) {
	redemptions, err := store.NewRedemptionStore(v.db).List(ctx)
	if err != nil {
		return nil, err
	}
	rewards, err := store.NewRewardStore(v.db).List(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]model.Reward, len(rewards))
	for _, r := range rewards {
		byID[r.ID] = r
	}

	entries := make([]model.RedemptionEntry, 0, len(redemptions))
	for _, r := range redemptions {
		if month != nil && !month.Contains(r.RedeemedAt, v.loc) {
			continue
		}

		entry := model.RedemptionEntry{RewardRedemption: r}
		reward, ok := byID[r.RewardID]
		switch {
		case !ok:
			entry.RewardName = DeletedRewardName
			entry.RewardStatus = model.RewardStatusDeleted
		case !reward.Active:
			entry.RewardName = reward.Name
			entry.RewardDescription = reward.Description
			entry.RewardStatus = model.RewardStatusInactive
		default:
			entry.RewardName = reward.Name
			entry.RewardDescription = reward.Description
			entry.RewardStatus = model.RewardStatusActive
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Transactions lists transactions oldest first, optionally limited to one month.
func (v *Views) Transactions(ctx context.Context, month *Month) ([]model.Transaction, error) {
	txs, err := store.NewTransactionStore(v.db).List(ctx)
	if err != nil {
		return nil, err
	}
	if month == nil {
		return txs, nil
	}

	filtered := make([]model.Transaction, 0, len(txs))
	for _, tx := range txs {
		if month.Contains(tx.CreatedAt, v.loc) {
			filtered = append(filtered, tx)
		}
	}
	return filtered, nil
}

// Deposits lists deposit amounts newest first.
func (v *Views) Deposits(ctx context.Context) ([]model.DepositEntry, error) {
	txs, err := store.NewTransactionStore(v.db).ListDeposits(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]model.DepositEntry, 0, len(txs))
	for _, tx := range txs {
		entries = append(entries, model.DepositEntry{Amount: tx.Amount, CreatedAt: tx.CreatedAt})
	}
	return entries, nil
}

// CompletionsOn returns the completions recorded for one calendar day.
func (v *Views) CompletionsOn(ctx context.Context, date time.Time) ([]model.TaskCompletion, error) {
	return store.NewCompletionStore(v.db).ListByDate(ctx, ledger.Day(date))
}
