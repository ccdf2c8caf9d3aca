// Package ledger owns the three audited accounts. Every mutation appends one
// history item carrying the signed delta and applies the delta in the same
// transaction, so totals always reconcile against history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sadopc/flowbank/internal/logger"
	"github.com/sadopc/flowbank/internal/store"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrMismatch           = errors.New("account total does not match history")
)

// Categories written by the built-in flows.
const (
	CategoryTask     = "Task"
	CategoryAnket    = "Anket"
	CategoryShop     = "Shop"
	CategoryExchange = "Exchange"
	CategoryRoll     = "Roll"
)

type Repository interface {
	Accounts(ctx context.Context) (store.Accounts, error)
	ApplyEntries(ctx context.Context, items []store.HistoryItem) error
	ListHistory(ctx context.Context, f store.HistoryFilter) ([]store.HistoryItem, error)
	DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
	SumHistory(ctx context.Context) (store.Accounts, error)
	ArchivedTotals(ctx context.Context) (store.Accounts, error)
	RewardSettings(ctx context.Context) (store.RewardSettings, error)
	SettleTask(ctx context.Context, id string, items []store.HistoryItem) error
}

// Option sets optional metadata on a history item.
type Option func(*store.HistoryItem)

func WithCategory(c string) Option {
	return func(it *store.HistoryItem) { it.Category = c }
}

func WithSubcategory(s string) Option {
	return func(it *store.HistoryItem) { it.Subcategory = s }
}

func WithEssential(essential bool) Option {
	return func(it *store.HistoryItem) { it.IsEssential = &essential }
}

// WithDuration records the focus time, in seconds, behind the entry.
func WithDuration(secs int64) Option {
	return func(it *store.HistoryItem) { it.Duration = &secs }
}

// NewEntry builds a history item without applying it.
func NewEntry(kind store.AccountKind, delta float64, reason string, date time.Time, opts ...Option) store.HistoryItem {
	it := store.HistoryItem{Type: kind, Amount: delta, Reason: reason, Date: date}
	for _, opt := range opts {
		opt(&it)
	}
	return it
}

type Ledger struct {
	repo Repository
	log  logger.Logger
	now  func() time.Time
}

func New(repo Repository, log logger.Logger, now func() time.Time) *Ledger {
	if log == nil {
		log = logger.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, log: log, now: now}
}

// Apply commits items as one all-or-nothing write.
func (l *Ledger) Apply(ctx context.Context, items ...store.HistoryItem) error {
	if err := l.repo.ApplyEntries(ctx, items); err != nil {
		return fmt.Errorf("apply ledger entries: %w", err)
	}
	for _, it := range items {
		l.log.Debugf(logger.TypeLedger, "%s %+g (%s) category=%q", it.Type, it.Amount, it.Reason, it.Category)
	}
	return nil
}

// SettleTask applies items and removes task id as one write. If the task is
// gone nothing is applied.
func (l *Ledger) SettleTask(ctx context.Context, id string, items ...store.HistoryItem) error {
	if err := l.repo.SettleTask(ctx, id, items); err != nil {
		return err
	}
	for _, it := range items {
		l.log.Debugf(logger.TypeLedger, "%s %+g (%s) category=%q", it.Type, it.Amount, it.Reason, it.Category)
	}
	return nil
}

func (l *Ledger) update(ctx context.Context, kind store.AccountKind, delta float64, reason string, date time.Time, opts []Option) error {
	return l.Apply(ctx, NewEntry(kind, delta, reason, date, opts...))
}

func (l *Ledger) UpdateBalance(ctx context.Context, delta float64, reason string, opts ...Option) error {
	return l.update(ctx, store.KindBalance, delta, reason, l.now(), opts)
}

// UpdateBalanceWithDate books a balance delta on an explicit, usually past,
// date.
func (l *Ledger) UpdateBalanceWithDate(ctx context.Context, delta float64, reason string, date time.Time, opts ...Option) error {
	return l.update(ctx, store.KindBalance, delta, reason, date, opts)
}

func (l *Ledger) UpdatePoints(ctx context.Context, delta float64, reason string, opts ...Option) error {
	return l.update(ctx, store.KindPoints, delta, reason, l.now(), opts)
}

func (l *Ledger) UpdateRandomPicks(ctx context.Context, delta float64, reason string, opts ...Option) error {
	return l.update(ctx, store.KindRandomPicks, delta, reason, l.now(), opts)
}

// ExchangePoints converts amount points into amount/conversionRate balance.
// Both sides are written in one transaction and returns the balance gained.
func (l *Ledger) ExchangePoints(ctx context.Context, amount float64) (float64, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("exchange amount must be positive, got %v", amount)
	}
	acc, err := l.repo.Accounts(ctx)
	if err != nil {
		return 0, err
	}
	if amount > acc.Points {
		return 0, fmt.Errorf("exchange %v P with %v available: %w", amount, acc.Points, ErrInsufficientPoints)
	}
	rs, err := l.repo.RewardSettings(ctx)
	if err != nil {
		return 0, err
	}
	if !(rs.ConversionRate > 0) || math.IsInf(rs.ConversionRate, 0) {
		return 0, fmt.Errorf("exchange points: invalid conversion rate %v", rs.ConversionRate)
	}
	gained := amount / rs.ConversionRate

	now := l.now()
	reason := fmt.Sprintf("Exchange %g P for %g ZL", amount, gained)
	err = l.Apply(ctx,
		NewEntry(store.KindPoints, -amount, reason, now, WithCategory(CategoryExchange)),
		NewEntry(store.KindBalance, gained, reason, now, WithCategory(CategoryExchange)),
	)
	if err != nil {
		return 0, err
	}
	return gained, nil
}

// ProcessRewardPick observes every individual roll. It records nothing.
func (l *Ledger) ProcessRewardPick(value, minCatalogValue int) {
	l.log.Debugf(logger.TypeLedger, "reward pick %d (catalog min %d)", value, minCatalogValue)
}

// Purchase debits the item cost from the balance.
func (l *Ledger) Purchase(ctx context.Context, item store.ShopItem) error {
	acc, err := l.repo.Accounts(ctx)
	if err != nil {
		return err
	}
	if acc.Balance < item.Cost {
		return fmt.Errorf("purchase %s for %v with %v: %w", item.Name, item.Cost, acc.Balance, ErrInsufficientFunds)
	}
	return l.UpdateBalance(ctx, -item.Cost, "Purchase: "+item.Name,
		WithCategory(CategoryShop), WithSubcategory(item.Name))
}

// ClearArchive deletes history dated before olderThan.
func (l *Ledger) ClearArchive(ctx context.Context, olderThan time.Time) (int64, error) {
	n, err := l.repo.DeleteHistoryBefore(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	l.log.Infof(logger.TypeLedger, "cleared %d history items before %s", n, olderThan.Format(time.DateOnly))
	return n, nil
}

func (l *Ledger) Accounts(ctx context.Context) (store.Accounts, error) {
	return l.repo.Accounts(ctx)
}

func (l *Ledger) History(ctx context.Context, f store.HistoryFilter) ([]store.HistoryItem, error) {
	return l.repo.ListHistory(ctx, f)
}

const verifyEpsilon = 1e-6

// Verify recomputes every account from history plus archived totals and
// reports the first one that disagrees with its stored total.
func (l *Ledger) Verify(ctx context.Context) error {
	acc, err := l.repo.Accounts(ctx)
	if err != nil {
		return err
	}
	sum, err := l.repo.SumHistory(ctx)
	if err != nil {
		return err
	}
	archived, err := l.repo.ArchivedTotals(ctx)
	if err != nil {
		return err
	}
	for _, k := range []store.AccountKind{store.KindBalance, store.KindPoints, store.KindRandomPicks} {
		want := sum.Get(k) + archived.Get(k)
		if math.Abs(acc.Get(k)-want) > verifyEpsilon {
			return fmt.Errorf("%w: %s total %v, history %v", ErrMismatch, k, acc.Get(k), want)
		}
	}
	return nil
}
