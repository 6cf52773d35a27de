// Package ledger keeps the allowance and points balances consistent with
// their event logs. Every mutation runs in one database transaction that
// pairs the event append or removal with the balance change, so a balance
// always equals the sum of its surviving events (manual overrides excepted).
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/allowance/internal/notify"
	"github.com/dukerupert/allowance/internal/store"
)

const (
	defaultRetries = 3
	defaultBackoff = 20 * time.Millisecond
)

type Engine struct {
	db        *sql.DB
	publisher notify.Publisher
	logger    *slog.Logger
	now       func() time.Time
	retries   uint64
	backoff   time.Duration
}

type Option func(*Engine)

// WithPublisher sets where committed mutations are announced.
func WithPublisher(p notify.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithClock replaces time.Now, which also decides what "today" is.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRetries sets how many times a busy transaction is retried before the
// caller sees ErrStorageBusy.
func WithRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retries = uint64(n)
		}
	}
}

func New(db *sql.DB, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:        db,
		publisher: notify.Nop{},
		logger:    logger,
		now:       time.Now,
		retries:   defaultRetries,
		backoff:   defaultBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Day returns the calendar day of t as midnight UTC, keeping t's own
// year, month and day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today is the current calendar day by the engine's clock.
func (e *Engine) Today() time.Time {
	return Day(e.now())
}

func (e *Engine) dayOrToday(t time.Time) time.Time {
	if t.IsZero() {
		return e.Today()
	}
	return Day(t)
}

// inTx runs fn in a transaction, retrying with exponential backoff while the
// store reports a lock conflict.
func (e *Engine) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	attempt := 0
	backoff := retry.WithMaxRetries(e.retries, retry.NewExponential(e.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := e.runTx(ctx, fn)
		if err != nil && store.IsBusy(err) {
			e.logger.WarnContext(ctx, "ledger transaction conflict", "op", op, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && store.IsBusy(err) {
		return &Error{Kind: ErrStorage, Code: ErrStorageBusy.Code, Message: ErrStorageBusy.Message, Err: err}
	}
	return err
}

func (e *Engine) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// publish announces a committed mutation. Failure is logged only; the
// mutation itself has already succeeded.
func (e *Engine) publish(ctx context.Context, kind notify.Kind, at time.Time, payload any) {
	err := e.publisher.Publish(ctx, notify.NewEvent(kind, at, payload))
	if err != nil {
		e.logger.WarnContext(ctx, "publish ledger event failed", "kind", kind, "error", err)
	}
}
