// Package engine is the composition root: it owns every component and
// implements the flows that span more than one of them.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sadopc/flowbank/internal/anket"
	"github.com/sadopc/flowbank/internal/ledger"
	"github.com/sadopc/flowbank/internal/logger"
	"github.com/sadopc/flowbank/internal/reward"
	"github.com/sadopc/flowbank/internal/store"
	"github.com/sadopc/flowbank/internal/timer"
)

type Options struct {
	Cadence           reward.Cadence
	ArchiveMaxAgeDays int
	Now               func() time.Time
	Location          *time.Location
	Source            reward.Source
}

type Engine struct {
	Store   *store.Store
	Tracker *timer.Tracker
	Ledger  *ledger.Ledger
	Picker  *reward.Picker
	Anket   *anket.Backfill

	log     logger.Logger
	now     func() time.Time
	src     reward.Source
	cadence reward.Cadence
	maxAge  int
}

func New(s *store.Store, log logger.Logger, opts Options) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Source == nil {
		opts.Source = reward.DefaultSource
	}
	if opts.Cadence == (reward.Cadence{}) {
		opts.Cadence = reward.DefaultCadence()
	}

	l := ledger.New(s, log, opts.Now)
	return &Engine{
		Store:   s,
		Tracker: timer.New(s, log, opts.Now),
		Ledger:  l,
		Picker:  reward.NewPicker(l, log),
		Anket:   anket.New(s, log, opts.Now, opts.Location),
		log:     log,
		now:     opts.Now,
		src:     opts.Source,
		cadence: opts.Cadence,
		maxAge:  opts.ArchiveMaxAgeDays,
	}
}

// Completion is a finished task and the points it may claim.
type Completion struct {
	Task  *store.Task
	Range reward.Range
}

// CompleteTask completes id and computes its claimable range.
func (e *Engine) CompleteTask(ctx context.Context, id string) (Completion, error) {
	task, err := e.Tracker.Complete(ctx, id)
	if err != nil {
		return Completion{}, err
	}
	rs, err := e.Store.RewardSettings(ctx)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Task: task, Range: reward.ComputeRange(task.TimeSpent, rs)}, nil
}

// Claimable returns the range of a task completed earlier whose reward was
// never settled.
func (e *Engine) Claimable(ctx context.Context, id string) (Completion, error) {
	task, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return Completion{}, err
	}
	if !task.IsCompleted {
		return Completion{}, fmt.Errorf("claim task %s: not completed", id)
	}
	rs, err := e.Store.RewardSettings(ctx)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Task: task, Range: reward.ComputeRange(task.TimeSpent, rs)}, nil
}

// Table builds the reward table from the current catalog and lucky number.
func (e *Engine) Table(ctx context.Context) (*reward.Table, error) {
	rewards, err := e.Store.ListRewards(ctx)
	if err != nil {
		return nil, err
	}
	lucky, err := e.Store.LuckyNumber(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]int, 0, len(rewards))
	for _, r := range rewards {
		values = append(values, r.Value)
	}
	return reward.NewTable(values, lucky), nil
}

// NewGenerator returns a generator already started for count draws.
func (e *Engine) NewGenerator(ctx context.Context, count int) (*reward.Generator, error) {
	table, err := e.Table(ctx)
	if err != nil {
		return nil, fmt.Errorf("build reward table: %w", err)
	}
	return e.startGenerator(table, count)
}

func (e *Engine) startGenerator(table *reward.Table, count int) (*reward.Generator, error) {
	gen := reward.NewGenerator(table, e.src, e.cadence, e.Ledger.ProcessRewardPick)
	if err := gen.Start(count); err != nil {
		return nil, err
	}
	return gen, nil
}

// SettleTask pays a finished roll for a completed task and removes the
// task in one write, so a task is never paid twice. Without a roll, or
// after the roll was reset, the task is removed with no ledger effect. A
// roll still in progress is refused.
func (e *Engine) SettleTask(ctx context.Context, id string, gen *reward.Generator) (int, error) {
	task, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return 0, err
	}
	var (
		items []store.HistoryItem
		paid  int
	)
	finished := gen != nil && gen.Phase() == reward.Finished
	if gen != nil && gen.Phase() == reward.Generating {
		return 0, reward.ErrNotFinished
	}
	if finished {
		items, paid, err = e.Picker.Payout(gen, "Task: "+task.DisplayName, e.now(),
			ledger.WithCategory(ledger.CategoryTask),
			ledger.WithSubcategory(task.PlaylistName),
			ledger.WithDuration(task.TimeSpent))
		if err != nil {
			return 0, err
		}
	}
	if err := e.Ledger.SettleTask(ctx, id, items...); err != nil {
		return 0, err
	}
	if finished {
		gen.Reset()
	}
	e.log.Infof(logger.TypeReward, "settled task %s: %d P", id, paid)
	return paid, nil
}

// StartRandomRoll spends RP tokens and returns a started generator for the
// granted count. The table is built first so a catalog failure spends
// nothing.
func (e *Engine) StartRandomRoll(ctx context.Context, requested int) (*reward.Generator, error) {
	table, err := e.Table(ctx)
	if err != nil {
		return nil, fmt.Errorf("build reward table: %w", err)
	}
	granted, err := e.Picker.Reserve(ctx, requested)
	if err != nil {
		return nil, err
	}
	return e.startGenerator(table, granted)
}

// FinishRandomRoll pays a finished RP roll into points.
func (e *Engine) FinishRandomRoll(ctx context.Context, gen *reward.Generator) (int, error) {
	return e.Picker.Commit(ctx, gen, "Random reward roll", ledger.WithCategory(ledger.CategoryRoll))
}

// Purchase buys the shop item with id.
func (e *Engine) Purchase(ctx context.Context, id string) error {
	item, err := e.Store.GetShopItem(ctx, id)
	if err != nil {
		return err
	}
	return e.Ledger.Purchase(ctx, *item)
}

// ClearArchive drops history older than the configured age. A max age of
// zero keeps everything.
func (e *Engine) ClearArchive(ctx context.Context) (int64, error) {
	if e.maxAge <= 0 {
		return 0, nil
	}
	return e.Ledger.ClearArchive(ctx, e.now().AddDate(0, 0, -e.maxAge))
}
