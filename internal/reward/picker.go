package reward

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sadopc/flowbank/internal/ledger"
	"github.com/sadopc/flowbank/internal/logger"
	"github.com/sadopc/flowbank/internal/store"
)

var ErrNoRandomPicks = errors.New("no random picks available")

// Ledger is what the picker needs to fund and pay out rolls.
type Ledger interface {
	Accounts(ctx context.Context) (store.Accounts, error)
	UpdateRandomPicks(ctx context.Context, delta float64, reason string, opts ...ledger.Option) error
	UpdatePoints(ctx context.Context, delta float64, reason string, opts ...ledger.Option) error
}

// Picker funds rolls from RP tokens and pays finished rolls into points.
type Picker struct {
	ledger Ledger
	log    logger.Logger
}

func NewPicker(l Ledger, log logger.Logger) *Picker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Picker{ledger: l, log: log}
}

// Reserve debits up to requested tokens as one history entry and returns
// how many were granted. The debit happens before any draw, so an
// abandoned roll keeps its tokens spent.
func (p *Picker) Reserve(ctx context.Context, requested int) (int, error) {
	acc, err := p.ledger.Accounts(ctx)
	if err != nil {
		return 0, err
	}
	available := int(math.Floor(acc.RandomPicks))
	if available <= 0 {
		return 0, ErrNoRandomPicks
	}
	granted := min(max(1, requested), available)
	if granted < requested {
		p.log.Debugf(logger.TypeReward, "clamped roll request %d to %d tokens", requested, granted)
	}
	reason := fmt.Sprintf("Random reward roll x%d", granted)
	if err := p.ledger.UpdateRandomPicks(ctx, -float64(granted), reason, ledger.WithCategory(ledger.CategoryRoll)); err != nil {
		return 0, err
	}
	return granted, nil
}

// Payout builds the points entry for a finished generator without applying
// it, for callers that commit it together with other writes. A zero sum
// yields no entry. The caller resets the generator once the write lands.
func (p *Picker) Payout(g *Generator, reason string, date time.Time, opts ...ledger.Option) ([]store.HistoryItem, int, error) {
	if g.Phase() != Finished {
		return nil, 0, ErrNotFinished
	}
	sum := g.Sum()
	if sum == 0 {
		return nil, 0, nil
	}
	return []store.HistoryItem{ledger.NewEntry(store.KindPoints, float64(sum), reason, date, opts...)}, sum, nil
}

// Commit pays the sum of a finished generator into points and resets it,
// so the same roll cannot be paid twice.
func (p *Picker) Commit(ctx context.Context, g *Generator, reason string, opts ...ledger.Option) (int, error) {
	if g.Phase() != Finished {
		return 0, ErrNotFinished
	}
	sum := g.Sum()
	if sum != 0 {
		if err := p.ledger.UpdatePoints(ctx, float64(sum), reason, opts...); err != nil {
			return 0, err
		}
	}
	p.log.Infof(logger.TypeReward, "committed roll of %d values: %d P", len(g.Values()), sum)
	g.Reset()
	return sum, nil
}
