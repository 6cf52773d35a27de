// Package notify publishes committed ledger mutations to downstream consumers.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindDeposit         Kind = "deposit"
	KindWithdrawal      Kind = "withdrawal"
	KindBalanceOverride Kind = "balance_override"
	KindReset           Kind = "reset"
	KindTaskCompleted   Kind = "task_completed"
	KindTaskUncompleted Kind = "task_uncompleted"
	KindRewardRedeemed  Kind = "reward_redeemed"
	KindPointsReset     Kind = "points_reset"
)

// Event describes a mutation that has already been committed.
type Event struct {
	// ID is unique per event so consumers can drop redeliveries.
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// NewEvent stamps a fresh ID on an event of the given kind.
func NewEvent(kind Kind, at time.Time, payload any) Event {
	return Event{ID: uuid.NewString(), Kind: kind, OccurredAt: at.UTC(), Payload: payload}
}

// RoutingKey is the topic under which the event is published.
func (e Event) RoutingKey() string {
	return "ledger." + string(e.Kind)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes each event to every publisher in order. All of them are
// tried even when one fails.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
