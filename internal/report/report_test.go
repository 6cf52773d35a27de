package report

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func setupViews(t *testing.T) (*Views, *ledger.Engine, *clock, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &clock{now: time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := ledger.New(db, logger, ledger.WithClock(c.Now))
	return New(db, time.UTC), engine, c, db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDailyPoints(t *testing.T) {
	v, e, _, _ := setupViews(t)
	ctx := context.Background()

	a, err := e.UpsertTask(ctx, ledger.TaskInput{Name: "Feed the cat", Points: 10})
	require.NoError(t, err)
	b, err := e.UpsertTask(ctx, ledger.TaskInput{Name: "Water plants", Points: 4})
	require.NoError(t, err)

	for _, c := range []struct {
		id  int64
		day time.Time
	}{
		{a.ID, date(2024, 1, 3)},
		{b.ID, date(2024, 1, 3)},
		{a.ID, date(2024, 1, 5)},
		{b.ID, date(2024, 1, 9)},
	} {
		_, err := e.CompleteTask(ctx, c.id, c.day)
		require.NoError(t, err)
	}

	seq, err := v.DailyPoints(ctx, date(2024, 1, 1), date(2024, 1, 5))
	require.NoError(t, err)

	days := slices.Collect(seq)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-01-03", days[0].Date)
	assert.Equal(t, 14, days[0].TotalPoints)
	require.Len(t, days[0].CompletedTasks, 2)
	assert.Equal(t, "Feed the cat", days[0].CompletedTasks[0].TaskName)
	assert.Equal(t, "2024-01-05", days[1].Date)
	assert.Equal(t, 10, days[1].TotalPoints)

	// Ranging again yields the same result.
	assert.Equal(t, days, slices.Collect(seq))
}

func TestDailyPointsEarlyStop(t *testing.T) {
	v, e, _, _ := setupViews(t)
	ctx := context.Background()

	task, err := e.UpsertTask(ctx, ledger.TaskInput{Name: "Feed the cat", Points: 10})
	require.NoError(t, err)
	for d := 1; d <= 3; d++ {
		_, err := e.CompleteTask(ctx, task.ID, date(2024, 1, d))
		require.NoError(t, err)
	}

	seq, err := v.DailyPoints(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)

	var seen []string
	for day := range seq {
		seen = append(seen, day.Date)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, seen)
}

func TestDailyPointsUsesFrozenPoints(t *testing.T) {
	v, e, _, _ := setupViews(t)
	ctx := context.Background()

	task, err := e.UpsertTask(ctx, ledger.TaskInput{Name: "Feed the cat", Points: 10})
	require.NoError(t, err)
	_, err = e.CompleteTask(ctx, task.ID, date(2024, 1, 3))
	require.NoError(t, err)
	_, err = e.UpsertTask(ctx, ledger.TaskInput{ID: task.ID, Name: "Feed the cat", Points: 99})
	require.NoError(t, err)
	_, err = e.DeactivateTask(ctx, task.ID)
	require.NoError(t, err)

	seq, err := v.DailyPoints(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	days := slices.Collect(seq)
	require.Len(t, days, 1)
	assert.Equal(t, 10, days[0].TotalPoints)
	assert.Equal(t, "Feed the cat", days[0].CompletedTasks[0].TaskName)
}

func TestDailyPointsRejectsInvertedRange(t *testing.T) {
	v, _, _, _ := setupViews(t)

	_, err := v.DailyPoints(context.Background(), date(2024, 2, 1), date(2024, 1, 1))
	assert.ErrorIs(t, err, ledger.ErrInvalidDateSpan)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestMonthlyFlow(t *testing.T) {
	v, e, c, _ := setupViews(t)
	ctx := context.Background()

	c.now = time.Date(2024, time.February, 3, 9, 0, 0, 0, time.UTC)
	_, err := e.Deposit(ctx, dec("50"))
	require.NoError(t, err)

	c.now = time.Date(2024, time.January, 20, 9, 0, 0, 0, time.UTC)
	_, err = e.Deposit(ctx, dec("100"))
	require.NoError(t, err)
	_, err = e.Withdraw(ctx, dec("12.5"), dec("3"))
	require.NoError(t, err)

	c.now = time.Date(2024, time.February, 28, 9, 0, 0, 0, time.UTC)
	_, err = e.Withdraw(ctx, dec("5"), decimal.Zero)
	require.NoError(t, err)

	// Overrides are not transactions.
	_, err = e.UpdateBalance(ctx, model.Balance{VideoGames: dec("1000")})
	require.NoError(t, err)

	flows, err := v.MonthlyFlow(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 2)

	jan, feb := flows[0], flows[1]
	assert.Equal(t, "January 2024", jan.Month)
	assert.True(t, dec("30").Equal(jan.VideoGamesInflow), "jan vg inflow = %s", jan.VideoGamesInflow)
	assert.True(t, dec("12.5").Equal(jan.VideoGamesOutflow), "jan vg outflow = %s", jan.VideoGamesOutflow)
	assert.True(t, dec("20").Equal(jan.GeneralSpendingInflow), "jan gs inflow = %s", jan.GeneralSpendingInflow)
	assert.True(t, dec("3").Equal(jan.GeneralSpendingOutflow), "jan gs outflow = %s", jan.GeneralSpendingOutflow)

	assert.Equal(t, "February 2024", feb.Month)
	assert.True(t, dec("15").Equal(feb.VideoGamesInflow), "feb vg inflow = %s", feb.VideoGamesInflow)
	assert.True(t, dec("5").Equal(feb.VideoGamesOutflow), "feb vg outflow = %s", feb.VideoGamesOutflow)
	assert.True(t, feb.GeneralSpendingOutflow.IsZero())
}

func TestMonthlyFlowEmpty(t *testing.T) {
	v, _, _, _ := setupViews(t)

	flows, err := v.MonthlyFlow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestRedemptions(t *testing.T) {
	v, e, c, db := setupViews(t)
	ctx := context.Background()

	task, err := e.UpsertTask(ctx, ledger.TaskInput{Name: "Big chore", Points: 500})
	require.NoError(t, err)
	_, err = e.CompleteTask(ctx, task.ID, time.Time{})
	require.NoError(t, err)

	kept, err := e.UpsertReward(ctx, ledger.RewardInput{Name: "Sticker", Description: "Shiny", PointsCost: 10})
	require.NoError(t, err)
	retired, err := e.UpsertReward(ctx, ledger.RewardInput{Name: "Kite", PointsCost: 20})
	require.NoError(t, err)
	gone, err := e.UpsertReward(ctx, ledger.RewardInput{Name: "Balloon", PointsCost: 5})
	require.NoError(t, err)

	c.now = time.Date(2024, time.January, 12, 8, 0, 0, 0, time.UTC)
	_, err = e.RedeemReward(ctx, kept.ID)
	require.NoError(t, err)
	_, err = e.RedeemReward(ctx, retired.ID)
	require.NoError(t, err)
	c.now = time.Date(2024, time.February, 2, 8, 0, 0, 0, time.UTC)
	_, err = e.RedeemReward(ctx, gone.ID)
	require.NoError(t, err)

	// Cost changes after redemption do not alter history.
	_, err = e.UpsertReward(ctx, ledger.RewardInput{ID: kept.ID, Name: "Sticker", PointsCost: 99})
	require.NoError(t, err)
	_, err = e.DeactivateReward(ctx, retired.ID)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM rewards WHERE id = ?`, gone.ID)
	require.NoError(t, err)

	all, err := v.Redemptions(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, DeletedRewardName, all[0].RewardName)
	assert.Equal(t, model.RewardStatusDeleted, all[0].RewardStatus)
	assert.Equal(t, 5, all[0].PointsSpent)

	assert.Equal(t, "Kite", all[1].RewardName)
	assert.Equal(t, model.RewardStatusInactive, all[1].RewardStatus)

	assert.Equal(t, "Sticker", all[2].RewardName)
	assert.Equal(t, "Shiny", all[2].RewardDescription)
	assert.Equal(t, model.RewardStatusActive, all[2].RewardStatus)
	assert.Equal(t, 10, all[2].PointsSpent)

	jan, err := v.Redemptions(ctx, &Month{Year: 2024, Month: time.January})
	require.NoError(t, err)
	assert.Len(t, jan, 2)

	none, err := v.Redemptions(ctx, &Month{Year: 2023, Month: time.January})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionsAndDeposits(t *testing.T) {
	v, e, c, _ := setupViews(t)
	ctx := context.Background()

	c.now = time.Date(2024, time.January, 31, 23, 0, 0, 0, time.UTC)
	_, err := e.Deposit(ctx, dec("10"))
	require.NoError(t, err)
	c.now = time.Date(2024, time.February, 1, 1, 0, 0, 0, time.UTC)
	_, err = e.Deposit(ctx, dec("20"))
	require.NoError(t, err)
	_, err = e.Withdraw(ctx, dec("1"), decimal.Zero)
	require.NoError(t, err)

	all, err := v.Transactions(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.TransactionDeposit, all[0].Type)

	feb, err := v.Transactions(ctx, &Month{Year: 2024, Month: time.February})
	require.NoError(t, err)
	assert.Len(t, feb, 2)

	deposits, err := v.Deposits(ctx)
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	assert.True(t, dec("20").Equal(deposits[0].Amount), "newest deposit = %s", deposits[0].Amount)
	assert.True(t, dec("10").Equal(deposits[1].Amount), "oldest deposit = %s", deposits[1].Amount)
}

func TestMonthContainsUsesLocation(t *testing.T) {
	m := Month{Year: 2024, Month: time.February}
	at := time.Date(2024, time.February, 1, 3, 0, 0, 0, time.UTC)

	assert.True(t, m.Contains(at, time.UTC))
	assert.False(t, m.Contains(at, time.FixedZone("UTC-5", -5*3600)))
	assert.Equal(t, "2024-02", m.String())
}

func TestCompletionsOn(t *testing.T) {
	v, e, _, _ := setupViews(t)
	ctx := context.Background()

	task, err := e.UpsertTask(ctx, ledger.TaskInput{Name: "Feed the cat", Points: 10})
	require.NoError(t, err)
	_, err = e.CompleteTask(ctx, task.ID, date(2024, 1, 3))
	require.NoError(t, err)

	got, err := v.CompletionsOn(ctx, time.Date(2024, 1, 3, 17, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Feed the cat", got[0].TaskName)

	got, err = v.CompletionsOn(ctx, date(2024, 1, 4))
	require.NoError(t, err)
	assert.Empty(t, got)
}
