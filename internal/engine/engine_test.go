package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/flowbank/internal/ledger"
	"github.com/sadopc/flowbank/internal/reward"
	"github.com/sadopc/flowbank/internal/store"
	"github.com/sadopc/flowbank/internal/testutil"
)

type zeroSource struct{}

func (zeroSource) Float64() float64 { return 0 }

func newTestEngine(t *testing.T) (*Engine, *testutil.Clock) {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	clock := testutil.NewClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	e := New(s, &testutil.MockLogger{}, Options{
		Now:               clock.Now,
		Location:          time.UTC,
		Source:            zeroSource{},
		ArchiveMaxAgeDays: 90,
	})
	return e, clock
}

func drain(gen *reward.Generator) {
	for {
		if _, done := gen.Next(); done {
			return
		}
	}
}

func TestCompleteAndSettleTask(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	_, err := e.Store.AddReward(ctx, 2, "P")
	require.NoError(t, err)

	task, _ := e.Store.CreateTask(ctx, store.Task{DisplayName: "essay", PlaylistName: "Writing"})
	_, err = e.Tracker.Start(ctx, task.ID)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	c, err := e.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), c.Task.TimeSpent)
	assert.Equal(t, reward.Range{Min: 4, Max: 13}, c.Range)

	gen, err := e.NewGenerator(ctx, c.Range.Clamp(5))
	require.NoError(t, err)
	assert.Equal(t, 5, gen.Count())
	drain(gen)

	paid, err := e.SettleTask(ctx, task.ID, gen)
	require.NoError(t, err)
	assert.Equal(t, 10, paid)

	acc, _ := e.Ledger.Accounts(ctx)
	assert.Equal(t, 10.0, acc.Points)

	hist, _ := e.Ledger.History(ctx, store.HistoryFilter{})
	require.Len(t, hist, 1)
	assert.Equal(t, ledger.CategoryTask, hist[0].Category)
	assert.Equal(t, "Writing", hist[0].Subcategory)
	require.NotNil(t, hist[0].Duration)
	assert.Equal(t, int64(3600), *hist[0].Duration)

	_, err = e.Store.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "settlement removes the task")
	assert.NoError(t, e.Ledger.Verify(ctx))
}

func TestSettleWithoutRoll(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	task, _ := e.Store.CreateTask(ctx, store.Task{DisplayName: "short"})
	e.CompleteTask(ctx, task.ID)

	paid, err := e.SettleTask(ctx, task.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, paid)
	acc, _ := e.Ledger.Accounts(ctx)
	assert.Equal(t, store.Accounts{}, acc)
}

func TestClaimable(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	task, _ := e.Store.CreateTask(ctx, store.Task{DisplayName: "later"})

	_, err := e.Claimable(ctx, task.ID)
	assert.Error(t, err, "open task has nothing to claim")

	e.Tracker.Start(ctx, task.ID)
	clock.Advance(time.Hour)
	first, err := e.CompleteTask(ctx, task.ID)
	require.NoError(t, err)

	again, err := e.Claimable(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Range, again.Range)
	assert.Equal(t, int64(3600), again.Task.TimeSpent)
}

func TestSettleRefusesRollInProgress(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	task, _ := e.Store.CreateTask(ctx, store.Task{DisplayName: "x"})
	gen, _ := e.NewGenerator(ctx, 3)
	gen.Next()

	_, err := e.SettleTask(ctx, task.ID, gen)
	assert.ErrorIs(t, err, reward.ErrNotFinished)
	_, err = e.Store.GetTask(ctx, task.ID)
	assert.NoError(t, err, "task survives a refused settlement")

	gen.Reset()
	_, err = e.SettleTask(ctx, task.ID, gen)
	assert.NoError(t, err)
}

func TestSettleTaskPaysOnce(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	e.Store.AddReward(ctx, 3, "P")
	task, _ := e.Store.CreateTask(ctx, store.Task{DisplayName: "deep"})
	e.Tracker.Start(ctx, task.ID)
	clock.Advance(time.Hour)
	e.CompleteTask(ctx, task.ID)

	gen, err := e.NewGenerator(ctx, 4)
	require.NoError(t, err)
	drain(gen)

	paid, err := e.SettleTask(ctx, task.ID, gen)
	require.NoError(t, err)
	assert.Equal(t, 12, paid)
	assert.Equal(t, reward.Input, gen.Phase(), "settled roll is reset")

	_, err = e.SettleTask(ctx, task.ID, gen)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = e.Claimable(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "a settled task cannot be claimed again")

	acc, _ := e.Ledger.Accounts(ctx)
	assert.Equal(t, 12.0, acc.Points)
	assert.NoError(t, e.Ledger.Verify(ctx))
}

func TestStartRandomRollKeepsTokensWhenCatalogFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowbank.db")
	s, err := store.New(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	e := New(s, nil, Options{Source: zeroSource{}, Location: time.UTC})
	ctx := context.Background()
	require.NoError(t, e.Ledger.UpdateRandomPicks(ctx, 3, "grant"))

	raw, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`DROP TABLE rewards`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = e.StartRandomRoll(ctx, 2)
	require.Error(t, err)

	acc, err := e.Ledger.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, acc.RandomPicks, "no tokens spent without a roll")
}

func TestRandomRoll(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.StartRandomRoll(ctx, 2)
	assert.ErrorIs(t, err, reward.ErrNoRandomPicks)

	require.NoError(t, e.Ledger.UpdateRandomPicks(ctx, 3, "grant"))
	e.Store.AddReward(ctx, 7, "P")
	e.Store.AddReward(ctx, 70, "P")

	gen, err := e.StartRandomRoll(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, gen.Count())
	drain(gen)
	assert.Equal(t, []int{7, 7, 7}, gen.Values())

	paid, err := e.FinishRandomRoll(ctx, gen)
	require.NoError(t, err)
	assert.Equal(t, 21, paid)

	acc, _ := e.Ledger.Accounts(ctx)
	assert.Equal(t, 0.0, acc.RandomPicks)
	assert.Equal(t, 21.0, acc.Points)
	assert.NoError(t, e.Ledger.Verify(ctx))
}

func TestPurchase(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	item, _ := e.Store.AddShopItem(ctx, "Book", 20)

	assert.ErrorIs(t, e.Purchase(ctx, item.ID), ledger.ErrInsufficientFunds)
	e.Ledger.UpdateBalance(ctx, 25, "seed")
	require.NoError(t, e.Purchase(ctx, item.ID))
	acc, _ := e.Ledger.Accounts(ctx)
	assert.Equal(t, 5.0, acc.Balance)
}

func TestClearArchive(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	e.Ledger.UpdatePoints(ctx, 1, "old")
	clock.Advance(100 * 24 * time.Hour)
	e.Ledger.UpdatePoints(ctx, 1, "new")

	n, err := e.ClearArchive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, e.Ledger.Verify(ctx))
}

func TestDefaultsApplied(t *testing.T) {
	s, err := store.NewMemory()
	require.NoError(t, err)
	defer s.Close()
	e := New(s, nil, Options{})

	gen, err := e.NewGenerator(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, reward.DefaultCadence().Slow, gen.Cadence())

	n, err := e.ClearArchive(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "archive clearing is off without a max age")
}
