package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/notify"
	"github.com/dukerupert/allowance/internal/store"
)

// PointsBalance returns the points balance, creating it at zero on first access.
func (e *Engine) PointsBalance(ctx context.Context) (*model.PointsBalance, error) {
	p, err := store.NewPointsStore(e.db).Get(ctx)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	err = e.inTx(ctx, "ensure points balance", func(tx *sql.Tx) error {
		p, err = store.NewPointsStore(tx).Ensure(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CompleteTask credits a task's current points for one calendar day. A zero
// date means today. The points are frozen on the completion, so later edits
// to the task do not change what was earned.
func (e *Engine) CompleteTask(ctx context.Context, taskID int64, date time.Time) (*model.TaskCompletion, error) {
	day := e.dayOrToday(date)
	now := e.now()

	var completion *model.TaskCompletion
	var balance *model.PointsBalance
	err := e.inTx(ctx, "complete task", func(tx *sql.Tx) error {
		task, err := store.NewTaskStore(tx).GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return ErrTaskNotFound.with("task %d not found", taskID)
		}
		if !task.Active {
			return ErrTaskInactive.with("task %q is not active", task.Name)
		}

		completions := store.NewCompletionStore(tx)
		existing, err := completions.Get(ctx, taskID, day)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateCompletion.with("task %q already completed on %s", task.Name, store.FormatDate(day))
		}

		points := store.NewPointsStore(tx)
		current, err := points.Ensure(ctx)
		if err != nil {
			return err
		}

		completion, err = completions.Create(ctx, taskID, day, task.Points, now)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return ErrDuplicateCompletion.with("task %q already completed on %s", task.Name, store.FormatDate(day))
			}
			return err
		}

		balance, err = points.Set(ctx, current.TotalPoints+task.Points, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "task completed",
		"task_id", taskID,
		"date", store.FormatDate(day),
		"points", completion.PointsEarned,
		"total_points", balance.TotalPoints,
	)
	e.publish(ctx, notify.KindTaskCompleted, now, completion)
	return completion, nil
}

// UndoTaskCompletion removes a task's completion for a day and takes back the
// points it earned. It returns the removed completion together with the
// resulting points balance. The refund uses the frozen points, not the task's
// current value.
//
// Besides ErrCompletionNotFound, undo also fails with ErrInsufficientPoints
// when the frozen points were already spent on rewards. The points balance
// never goes negative, so such a completion stays recorded.
func (e *Engine) UndoTaskCompletion(ctx context.Context, taskID int64, date time.Time) (*model.TaskCompletion, *model.PointsBalance, error) {
	day := e.dayOrToday(date)
	now := e.now()

	var removed *model.TaskCompletion
	var balance *model.PointsBalance
	err := e.inTx(ctx, "undo task completion", func(tx *sql.Tx) error {
		completions := store.NewCompletionStore(tx)
		var err error
		removed, err = completions.Get(ctx, taskID, day)
		if err != nil {
			return err
		}
		if removed == nil {
			return ErrCompletionNotFound.with("no completion of task %d on %s", taskID, store.FormatDate(day))
		}

		points := store.NewPointsStore(tx)
		current, err := points.Ensure(ctx)
		if err != nil {
			return err
		}
		if current.TotalPoints < removed.PointsEarned {
			return ErrInsufficientPoints.with(
				"cannot undo completion worth %d points with only %d points left",
				removed.PointsEarned, current.TotalPoints,
			)
		}

		if err := completions.Delete(ctx, removed.ID); err != nil {
			return err
		}
		balance, err = points.Set(ctx, current.TotalPoints-removed.PointsEarned, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	e.logger.InfoContext(ctx, "task completion undone",
		"task_id", taskID,
		"date", store.FormatDate(day),
		"points", removed.PointsEarned,
		"total_points", balance.TotalPoints,
	)
	e.publish(ctx, notify.KindTaskUncompleted, now, removed)
	return removed, balance, nil
}

// RedeemReward spends a reward's current cost. The active flag is not
// checked: a deactivated reward can still be redeemed by id.
func (e *Engine) RedeemReward(ctx context.Context, rewardID int64) (*model.RewardRedemption, error) {
	now := e.now()

	var redemption *model.RewardRedemption
	var balance *model.PointsBalance
	err := e.inTx(ctx, "redeem reward", func(tx *sql.Tx) error {
		reward, err := store.NewRewardStore(tx).GetByID(ctx, rewardID)
		if err != nil {
			return err
		}
		if reward == nil {
			return ErrRewardNotFound.with("reward %d not found", rewardID)
		}

		points := store.NewPointsStore(tx)
		current, err := points.Ensure(ctx)
		if err != nil {
			return err
		}
		if current.TotalPoints < reward.PointsCost {
			return ErrInsufficientPoints.with(
				"%q costs %d points, only %d available",
				reward.Name, reward.PointsCost, current.TotalPoints,
			)
		}

		redemption, err = store.NewRedemptionStore(tx).Create(ctx, rewardID, reward.PointsCost, now)
		if err != nil {
			return err
		}
		balance, err = points.Set(ctx, current.TotalPoints-reward.PointsCost, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "reward redeemed",
		"reward_id", rewardID,
		"points", redemption.PointsSpent,
		"total_points", balance.TotalPoints,
	)
	e.publish(ctx, notify.KindRewardRedeemed, now, redemption)
	return redemption, nil
}

// ResetPoints deletes every completion and redemption and zeroes the points
// balance. Tasks and rewards are kept.
func (e *Engine) ResetPoints(ctx context.Context) (*model.PointsBalance, error) {
	now := e.now()

	var balance *model.PointsBalance
	var completions, redemptions int64
	err := e.inTx(ctx, "reset points", func(tx *sql.Tx) error {
		points := store.NewPointsStore(tx)
		if _, err := points.Ensure(ctx); err != nil {
			return err
		}

		var err error
		if completions, err = store.NewCompletionStore(tx).DeleteAll(ctx); err != nil {
			return err
		}
		if redemptions, err = store.NewRedemptionStore(tx).DeleteAll(ctx); err != nil {
			return err
		}
		balance, err = points.Set(ctx, 0, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.WarnContext(ctx, "points ledger reset",
		"completions_removed", completions,
		"redemptions_removed", redemptions,
	)
	e.publish(ctx, notify.KindPointsReset, now, map[string]int64{
		"completions_removed": completions,
		"redemptions_removed": redemptions,
	})
	return balance, nil
}
