package reward

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrGenerating  = errors.New("generation already in progress")
	ErrNotFinished = errors.New("generation not finished")
	ErrAbandoned   = errors.New("generation abandoned")
)

type Phase int

const (
	Input Phase = iota
	Generating
	Finished
)

func (p Phase) String() string {
	switch p {
	case Generating:
		return "generating"
	case Finished:
		return "finished"
	}
	return "input"
}

// PickObserver sees every single draw as it happens.
type PickObserver func(value, minCatalogValue int)

// Cadence is the delay between reveals. Rolls of more than FastThreshold
// values use Fast.
type Cadence struct {
	Slow          time.Duration
	Fast          time.Duration
	FastThreshold int
}

func DefaultCadence() Cadence {
	return Cadence{Slow: 500 * time.Millisecond, Fast: 100 * time.Millisecond, FastThreshold: 10}
}

// Generator reveals count draws one at a time through Input, Generating
// and Finished. Every Reset bumps Seq so callbacks scheduled for an older
// run can tell they are stale.
type Generator struct {
	mu      sync.Mutex
	table   *Table
	src     Source
	cadence Cadence
	observe PickObserver

	phase  Phase
	count  int
	values []int
	seq    uint64
}

func NewGenerator(table *Table, src Source, cadence Cadence, observe PickObserver) *Generator {
	if table == nil {
		table = NewTable(nil, 1)
	}
	if src == nil {
		src = DefaultSource
	}
	return &Generator{table: table, src: src, cadence: cadence, observe: observe}
}

// Start begins a reveal of max(1, n) values.
func (g *Generator) Start(n int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == Generating {
		return ErrGenerating
	}
	g.count = max(1, n)
	g.values = make([]int, 0, g.count)
	g.phase = Generating
	g.seq++
	return nil
}

// Next draws exactly one value and reports whether the run is finished.
// Outside Generating it draws nothing.
func (g *Generator) Next() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next()
}

// NextFor is Next guarded by a sequence number: a stale seq draws nothing.
func (g *Generator) NextFor(seq uint64) (value int, done, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.seq || g.phase != Generating {
		return 0, g.phase == Finished, false
	}
	value, done = g.next()
	return value, done, true
}

func (g *Generator) next() (int, bool) {
	if g.phase != Generating {
		return 0, g.phase == Finished
	}
	v := g.table.Draw(g.src)
	g.values = append(g.values, v)
	if g.observe != nil {
		g.observe(v, g.table.Min())
	}
	if len(g.values) >= g.count {
		g.phase = Finished
	}
	return v, g.phase == Finished
}

// Reset returns to Input and discards drawn values.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phase = Input
	g.count = 0
	g.values = nil
	g.seq++
}

func (g *Generator) Cadence() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.count > g.cadence.FastThreshold {
		return g.cadence.Fast
	}
	return g.cadence.Slow
}

func (g *Generator) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *Generator) Seq() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

func (g *Generator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

func (g *Generator) Values() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int, len(g.values))
	copy(out, g.values)
	return out
}

func (g *Generator) Sum() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	sum := 0
	for _, v := range g.values {
		sum += v
	}
	return sum
}

func (g *Generator) Table() *Table {
	return g.table
}

// Run drives a started reveal on the cadence until Finished. Cancelling ctx
// or calling Reset stops it without drawing anything further.
func (g *Generator) Run(ctx context.Context, onValue func(v int)) error {
	seq := g.Seq()
	if g.Phase() != Generating {
		return nil
	}
	timer := time.NewTimer(g.Cadence())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		v, done, ok := g.NextFor(seq)
		if !ok {
			if done {
				return nil
			}
			return ErrAbandoned
		}
		if onValue != nil {
			onValue(v)
		}
		if done {
			return nil
		}
		timer.Reset(g.Cadence())
	}
}
