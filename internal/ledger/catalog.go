package ledger

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
)

// TaskInput creates a task when ID is zero and updates it otherwise.
// Active left nil means true on create and unchanged on update.
type TaskInput struct {
	ID          int64
	Name        string
	Description string
	Points      int
	Active      *bool
}

// RewardInput mirrors TaskInput for rewards.
type RewardInput struct {
	ID          int64
	Name        string
	Description string
	PointsCost  int
	Active      *bool
}

func (e *Engine) UpsertTask(ctx context.Context, in TaskInput) (*model.Task, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidTask.with("task name is required")
	}
	if in.Points <= 0 {
		return nil, ErrInvalidTask.with("task points must be greater than zero")
	}
	description := strings.TrimSpace(in.Description)

	var task *model.Task
	err := e.inTx(ctx, "upsert task", func(tx *sql.Tx) error {
		tasks := store.NewTaskStore(tx)

		var err error
		if in.ID == 0 {
			task, err = tasks.Create(ctx, name, description, in.Points, boolOr(in.Active, true))
		} else {
			existing, gerr := tasks.GetByID(ctx, in.ID)
			if gerr != nil {
				return gerr
			}
			if existing == nil {
				return ErrReferenceNotFound.with("task %d not found", in.ID)
			}
			task, err = tasks.Update(ctx, in.ID, name, description, in.Points, boolOr(in.Active, existing.Active), e.now())
		}
		if err != nil && store.IsUniqueViolation(err) {
			return ErrDuplicateName.with("task name %q is already in use", name)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "task saved", "task_id", task.ID, "name", task.Name, "points", task.Points)
	return task, nil
}

func (e *Engine) UpsertReward(ctx context.Context, in RewardInput) (*model.Reward, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidReward.with("reward name is required")
	}
	if in.PointsCost <= 0 {
		return nil, ErrInvalidReward.with("reward points cost must be greater than zero")
	}
	description := strings.TrimSpace(in.Description)

	var reward *model.Reward
	err := e.inTx(ctx, "upsert reward", func(tx *sql.Tx) error {
		rewards := store.NewRewardStore(tx)

		var err error
		if in.ID == 0 {
			reward, err = rewards.Create(ctx, name, description, in.PointsCost, boolOr(in.Active, true))
		} else {
			existing, gerr := rewards.GetByID(ctx, in.ID)
			if gerr != nil {
				return gerr
			}
			if existing == nil {
				return ErrReferenceNotFound.with("reward %d not found", in.ID)
			}
			reward, err = rewards.Update(ctx, in.ID, name, description, in.PointsCost, boolOr(in.Active, existing.Active), e.now())
		}
		if err != nil && store.IsUniqueViolation(err) {
			return ErrDuplicateName.with("reward name %q is already in use", name)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "reward saved", "reward_id", reward.ID, "name", reward.Name, "points_cost", reward.PointsCost)
	return reward, nil
}

// DeactivateTask soft-deletes a task. Its completions keep referring to it.
func (e *Engine) DeactivateTask(ctx context.Context, id int64) (*model.Task, error) {
	var task *model.Task
	err := e.inTx(ctx, "deactivate task", func(tx *sql.Tx) error {
		tasks := store.NewTaskStore(tx)
		existing, err := tasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrReferenceNotFound.with("task %d not found", id)
		}
		task, err = tasks.SetActive(ctx, id, false, e.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "task deactivated", "task_id", id)
	return task, nil
}

// DeactivateReward soft-deletes a reward. Its redemptions keep referring to it.
func (e *Engine) DeactivateReward(ctx context.Context, id int64) (*model.Reward, error) {
	var reward *model.Reward
	err := e.inTx(ctx, "deactivate reward", func(tx *sql.Tx) error {
		rewards := store.NewRewardStore(tx)
		existing, err := rewards.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrReferenceNotFound.with("reward %d not found", id)
		}
		reward, err = rewards.SetActive(ctx, id, false, e.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "reward deactivated", "reward_id", id)
	return reward, nil
}

// Tasks lists active tasks, or every task when includeInactive is set.
func (e *Engine) Tasks(ctx context.Context, includeInactive bool) ([]model.Task, error) {
	tasks := store.NewTaskStore(e.db)
	if includeInactive {
		return tasks.List(ctx)
	}
	return tasks.ListActive(ctx)
}

// Rewards lists active rewards cheapest first, or every reward when
// includeInactive is set.
func (e *Engine) Rewards(ctx context.Context, includeInactive bool) ([]model.Reward, error) {
	rewards := store.NewRewardStore(e.db)
	if includeInactive {
		return rewards.List(ctx)
	}
	return rewards.ListActive(ctx)
}

func (e *Engine) Task(ctx context.Context, id int64) (*model.Task, error) {
	task, err := store.NewTaskStore(e.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound.with("task %d not found", id)
	}
	return task, nil
}

func (e *Engine) Reward(ctx context.Context, id int64) (*model.Reward, error) {
	reward, err := store.NewRewardStore(e.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, ErrRewardNotFound.with("reward %d not found", id)
	}
	return reward, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
