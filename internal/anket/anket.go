// Package anket walks the user through every daily spending report missing
// since the last one was filed.
package anket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/flowbank/internal/ledger"
	"github.com/sadopc/flowbank/internal/logger"
	"github.com/sadopc/flowbank/internal/store"
)

// ErrNotShowing is returned by Submit and Skip while no day is pending.
var ErrNotShowing = errors.New("no daily report pending")

type Repository interface {
	LastAnketDate(ctx context.Context) (string, error)
	SetLastAnketDate(ctx context.Context, day string) error
	RewardSettings(ctx context.Context) (store.RewardSettings, error)
	FileDailyReport(ctx context.Context, day string, items []store.HistoryItem) error
}

// Extra is a non-essential amount spent on one configured report parameter.
type Extra struct {
	Parameter string
	Amount    float64
}

// Report is what the user spent on the day being filed.
type Report struct {
	Basic        float64
	NonEssential float64
	Extra        []Extra
}

func dayKey(d time.Time) string {
	return d.Format(time.DateOnly)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// MissingDays lists the local days after last up to and including
// yesterday. An empty last yields just yesterday.
func MissingDays(last string, now time.Time, loc *time.Location) ([]time.Time, error) {
	yesterday := midnight(now, loc).AddDate(0, 0, -1)
	if last == "" {
		return []time.Time{yesterday}, nil
	}
	from, err := time.ParseInLocation(time.DateOnly, last, loc)
	if err != nil {
		return nil, fmt.Errorf("parse last anket date %q: %w", last, err)
	}

	var days []time.Time
	for d := from.AddDate(0, 0, 1); !d.After(yesterday); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

// Backfill is Idle until Init finds missing days, then Showing one day at a
// time until the queue drains or the user skips.
type Backfill struct {
	repo Repository
	log  logger.Logger
	now  func() time.Time
	loc  *time.Location

	queue []time.Time
	index int
}

func New(repo Repository, log logger.Logger, now func() time.Time, loc *time.Location) *Backfill {
	if log == nil {
		log = logger.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Backfill{repo: repo, log: log, now: now, loc: loc}
}

// Init computes the queue and reports whether there is anything to file.
// An unreadable last date is treated as unset.
func (b *Backfill) Init(ctx context.Context) (bool, error) {
	last, err := b.repo.LastAnketDate(ctx)
	if err != nil {
		return false, err
	}
	days, err := MissingDays(last, b.now(), b.loc)
	if err != nil {
		b.log.Warnf(logger.TypeAnket, "%v, asking for yesterday only", err)
		days, _ = MissingDays("", b.now(), b.loc)
	}
	b.queue = days
	b.index = 0
	if len(days) > 0 {
		b.log.Infof(logger.TypeAnket, "%d daily reports missing since %q", len(days), last)
	}
	return b.Showing(), nil
}

func (b *Backfill) Showing() bool {
	return b.index < len(b.queue)
}

// Current returns the day being filed.
func (b *Backfill) Current() (time.Time, bool) {
	if !b.Showing() {
		return time.Time{}, false
	}
	return b.queue[b.index], true
}

// Progress returns the 1-based position of the current day and the queue
// length.
func (b *Backfill) Progress() (int, int) {
	return b.index + 1, len(b.queue)
}

func (b *Backfill) SubmitDay(ctx context.Context, basic, nonEssential float64) error {
	return b.SubmitReport(ctx, Report{Basic: basic, NonEssential: nonEssential})
}

// SubmitReport debits the day's spending at local noon of that day and
// moves on. Basic necessities are discounted by basicNecessityDiscount;
// everything else is booked in full. Zero amounts book nothing.
func (b *Backfill) SubmitReport(ctx context.Context, r Report) error {
	day, ok := b.Current()
	if !ok {
		return ErrNotShowing
	}
	if r.Basic < 0 || r.NonEssential < 0 {
		return fmt.Errorf("spending must not be negative")
	}
	for _, e := range r.Extra {
		if e.Amount < 0 {
			return fmt.Errorf("spending on %s must not be negative", e.Parameter)
		}
	}
	rs, err := b.repo.RewardSettings(ctx)
	if err != nil {
		return err
	}

	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, b.loc)
	key := dayKey(day)
	var items []store.HistoryItem
	if r.Basic > 0 {
		debit := r.Basic * (1 - rs.BasicNecessityDiscount/100)
		items = append(items, ledger.NewEntry(store.KindBalance, -debit, "Daily report "+key+": basic necessities", noon,
			ledger.WithCategory(ledger.CategoryAnket), ledger.WithEssential(true)))
	}
	if r.NonEssential > 0 {
		items = append(items, ledger.NewEntry(store.KindBalance, -r.NonEssential, "Daily report "+key+": non-essential", noon,
			ledger.WithCategory(ledger.CategoryAnket), ledger.WithEssential(false)))
	}
	for _, e := range r.Extra {
		if e.Amount == 0 {
			continue
		}
		items = append(items, ledger.NewEntry(store.KindBalance, -e.Amount, "Daily report "+key+": "+e.Parameter, noon,
			ledger.WithCategory(ledger.CategoryAnket), ledger.WithSubcategory(e.Parameter), ledger.WithEssential(false)))
	}

	if err := b.repo.FileDailyReport(ctx, key, items); err != nil {
		return fmt.Errorf("file daily report %s: %w", key, err)
	}
	b.log.Debugf(logger.TypeAnket, "filed %s with %d entries", key, len(items))
	b.index++
	return nil
}

// SkipAll marks everything up to yesterday as filed without booking
// anything and ends the backfill.
func (b *Backfill) SkipAll(ctx context.Context) error {
	if !b.Showing() {
		return ErrNotShowing
	}
	yesterday := midnight(b.now(), b.loc).AddDate(0, 0, -1)
	if err := b.repo.SetLastAnketDate(ctx, dayKey(yesterday)); err != nil {
		return err
	}
	b.log.Infof(logger.TypeAnket, "skipped %d daily reports", len(b.queue)-b.index)
	b.queue = nil
	b.index = 0
	return nil
}
