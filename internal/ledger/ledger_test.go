package ledger

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/notify"
	"github.com/dukerupert/allowance/internal/store"
)

var testNow = time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) kinds() []notify.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var kinds []notify.Kind
	for _, e := range p.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func setupEngine(t *testing.T, opts ...Option) (*Engine, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(db, logger, opts...), db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s = %s, want %s", field, got, want)
}

func assertBalance(t *testing.T, b *model.Balance, vg, gs, charity, savings string) {
	t.Helper()
	require.NotNil(t, b)
	assertDecimal(t, vg, b.VideoGames, "video games")
	assertDecimal(t, gs, b.GeneralSpending, "general spending")
	assertDecimal(t, charity, b.Charity, "charity")
	assertDecimal(t, savings, b.Savings, "savings")
}

func createTask(t *testing.T, e *Engine, name string, points int) *model.Task {
	t.Helper()
	task, err := e.UpsertTask(context.Background(), TaskInput{Name: name, Points: points})
	require.NoError(t, err)
	return task
}

func createReward(t *testing.T, e *Engine, name string, cost int) *model.Reward {
	t.Helper()
	reward, err := e.UpsertReward(context.Background(), RewardInput{Name: name, PointsCost: cost})
	require.NoError(t, err)
	return reward
}

func TestDayKeepsCalendarDate(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	got := Day(time.Date(2024, time.March, 15, 23, 45, 0, 0, loc))
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestInTxDoesNotRetryOrdinaryErrors(t *testing.T) {
	e, _ := setupEngine(t)
	boom := errors.New("boom")

	calls := 0
	err := e.inTx(context.Background(), "test", func(*sql.Tx) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

// lockedEngine returns an engine on a file database whose write lock is held
// by a second handle, and the function that releases it. The engine's handle
// waits only briefly on the lock so each attempt fails fast.
func lockedEngine(t *testing.T, opts ...Option) (*Engine, *bytes.Buffer, func()) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "allowance.db")

	holder, err := database.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { holder.Close() })

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(10)&_pragma=foreign_keys(1)&_txlock=immediate")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tx, err := holder.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, `UPDATE balance SET updated_at = updated_at WHERE id = 1`)
	require.NoError(t, err)

	var once sync.Once
	release := func() { once.Do(func() { tx.Rollback() }) }
	t.Cleanup(release)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(db, logger, opts...), &logs, release
}

func TestDepositReportsStorageBusyAfterRetries(t *testing.T) {
	pub := &recordingPublisher{}
	e, logs, release := lockedEngine(t, WithRetries(2), WithPublisher(pub))
	ctx := context.Background()

	b, err := e.Deposit(ctx, dec("10"))
	require.Error(t, err)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, ErrStorageBusy)
	assert.Equal(t, "storage_busy", CodeOf(err))
	assert.Equal(t, 3, strings.Count(logs.String(), "ledger transaction conflict"), "one initial attempt plus two retries")
	assert.Empty(t, pub.kinds())

	release()

	b, err = e.Balance(ctx)
	require.NoError(t, err)
	assertBalance(t, b, "0", "0", "0", "0")

	txs, err := store.NewTransactionStore(e.db).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestDepositSucceedsOnceLockIsReleased(t *testing.T) {
	e, logs, release := lockedEngine(t, WithRetries(6))
	ctx := context.Background()

	timer := time.AfterFunc(30*time.Millisecond, release)
	defer timer.Stop()

	b, err := e.Deposit(ctx, dec("10"))
	require.NoError(t, err)
	assertBalance(t, b, "3", "2", "1", "4")
	assert.Contains(t, logs.String(), "ledger transaction conflict")
}

func TestPublishFailureKeepsMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	e, _ := setupEngine(t, WithPublisher(pub))
	ctx := context.Background()

	_, err := e.Deposit(ctx, dec("10"))
	require.NoError(t, err)

	b, err := e.Balance(ctx)
	require.NoError(t, err)
	assertDecimal(t, "3", b.VideoGames, "video games")
	assert.Equal(t, []notify.Kind{notify.KindDeposit}, pub.kinds())
}

func TestFailedMutationPublishesNothing(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := setupEngine(t, WithPublisher(pub))

	_, err := e.Withdraw(context.Background(), dec("1"), decimal.Zero)
	require.Error(t, err)
	assert.Empty(t, pub.kinds())
}

func TestErrorTaxonomy(t *testing.T) {
	err := ErrInsufficientFunds.with("only %s left", dec("2"))

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, ErrConflict, KindOf(err))
	assert.Equal(t, "insufficient_funds", CodeOf(err))
	assert.Equal(t, "only 2 left", err.Error())

	wrapped := errors.Join(errors.New("context"), err)
	assert.Equal(t, ErrConflict, KindOf(wrapped))

	assert.Nil(t, KindOf(errors.New("plain")))
	assert.Empty(t, CodeOf(errors.New("plain")))
}

func TestFreshDatabaseIsSeeded(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()

	tasks, err := e.Tasks(ctx, false)
	require.NoError(t, err)
	assert.Len(t, tasks, 6)

	rewards, err := e.Rewards(ctx, false)
	require.NoError(t, err)
	require.Len(t, rewards, 6)
	assert.Equal(t, 50, rewards[0].PointsCost)

	txs, err := store.NewTransactionStore(db).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
