package reward

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/flowbank/internal/ledger"
	"github.com/sadopc/flowbank/internal/store"
)

func newTestPicker(t *testing.T) (*Picker, *ledger.Ledger) {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	l := ledger.New(s, nil, func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) })
	return NewPicker(l, nil), l
}

func TestReserveNoTokens(t *testing.T) {
	p, _ := newTestPicker(t)
	_, err := p.Reserve(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNoRandomPicks)
}

func TestReserveClampsToAvailable(t *testing.T) {
	p, l := newTestPicker(t)
	ctx := context.Background()
	require.NoError(t, l.UpdateRandomPicks(ctx, 2, "grant"))

	granted, err := p.Reserve(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, granted)

	acc, _ := l.Accounts(ctx)
	assert.Equal(t, 0.0, acc.RandomPicks)

	rp := store.KindRandomPicks
	hist, _ := l.History(ctx, store.HistoryFilter{Type: &rp})
	require.Len(t, hist, 2)
	var debits []store.HistoryItem
	for _, it := range hist {
		if it.Amount < 0 {
			debits = append(debits, it)
		}
	}
	require.Len(t, debits, 1, "one debit entry for the whole roll")
	assert.Equal(t, -2.0, debits[0].Amount)
	assert.Equal(t, ledger.CategoryRoll, debits[0].Category)

	_, err = p.Reserve(ctx, 1)
	assert.ErrorIs(t, err, ErrNoRandomPicks)
}

func TestReserveAtLeastOne(t *testing.T) {
	p, l := newTestPicker(t)
	ctx := context.Background()
	l.UpdateRandomPicks(ctx, 4, "grant")

	granted, err := p.Reserve(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, granted)
	acc, _ := l.Accounts(ctx)
	assert.Equal(t, 3.0, acc.RandomPicks)
}

func TestCommitPaysOnce(t *testing.T) {
	p, l := newTestPicker(t)
	ctx := context.Background()
	g := NewGenerator(NewTable([]int{5}, 1), fixedSource(0), DefaultCadence(), nil)

	_, err := p.Commit(ctx, g, "roll")
	assert.ErrorIs(t, err, ErrNotFinished)

	g.Start(3)
	for {
		if _, done := g.Next(); done {
			break
		}
	}
	sum, err := p.Commit(ctx, g, "roll", ledger.WithCategory(ledger.CategoryRoll))
	require.NoError(t, err)
	assert.Equal(t, 15, sum)

	_, err = p.Commit(ctx, g, "roll")
	assert.ErrorIs(t, err, ErrNotFinished)

	acc, _ := l.Accounts(ctx)
	assert.Equal(t, 15.0, acc.Points)
}

func TestPayoutBuildsEntryWithoutApplying(t *testing.T) {
	p, l := newTestPicker(t)
	ctx := context.Background()
	when := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	g := NewGenerator(NewTable([]int{4}, 1), fixedSource(0), DefaultCadence(), nil)

	_, _, err := p.Payout(g, "task", when)
	assert.ErrorIs(t, err, ErrNotFinished)

	g.Start(2)
	g.Next()
	g.Next()
	items, sum, err := p.Payout(g, "task", when, ledger.WithCategory(ledger.CategoryTask))
	require.NoError(t, err)
	assert.Equal(t, 8, sum)
	require.Len(t, items, 1)
	assert.Equal(t, store.KindPoints, items[0].Type)
	assert.Equal(t, 8.0, items[0].Amount)
	assert.Equal(t, ledger.CategoryTask, items[0].Category)
	assert.Equal(t, Finished, g.Phase(), "payout leaves the reset to the caller")

	acc, _ := l.Accounts(ctx)
	assert.Zero(t, acc.Points)
}

func TestAbandonedRollForfeitsTokens(t *testing.T) {
	p, l := newTestPicker(t)
	ctx := context.Background()
	l.UpdateRandomPicks(ctx, 3, "grant")

	granted, _ := p.Reserve(ctx, 3)
	g := NewGenerator(nil, fixedSource(0), DefaultCadence(), nil)
	g.Start(granted)
	g.Next()
	g.Reset()

	_, err := p.Commit(ctx, g, "roll")
	assert.ErrorIs(t, err, ErrNotFinished)
	acc, _ := l.Accounts(ctx)
	assert.Equal(t, 0.0, acc.RandomPicks)
	assert.Equal(t, 0.0, acc.Points)
}
