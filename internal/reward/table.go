// Package reward draws weighted reward rolls, stages their reveal, computes
// the claimable range for a finished task and gates RP-funded rolls.
package reward

import (
	"math/rand/v2"
	"slices"
)

// Source yields uniform floats in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// DefaultSource draws from the process-wide generator.
var DefaultSource Source = globalSource{}

// Weighted is one candidate value and its draw weight.
type Weighted struct {
	Value  int
	Weight float64
}

// Table is the ascending list of distinct catalog values with their weights.
// It is rebuilt whenever the catalog or the lucky number changes.
type Table struct {
	entries []Weighted
	total   float64
}

const emptyTableValue = 1

// NewTable weights the smallest value 1 and every other value v
// (min/v)*lucky, so higher values get rarer unless lucky grows.
// Non-positive values are ignored.
func NewTable(values []int, lucky float64) *Table {
	distinct := make([]int, 0, len(values))
	for _, v := range values {
		if v > 0 {
			distinct = append(distinct, v)
		}
	}
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	t := &Table{entries: make([]Weighted, 0, len(distinct))}
	if len(distinct) == 0 {
		return t
	}
	minVal := distinct[0]
	for _, v := range distinct {
		w := 1.0
		if v != minVal {
			w = float64(minVal) / float64(v) * lucky
		}
		t.entries = append(t.entries, Weighted{Value: v, Weight: w})
		t.total += w
	}
	return t
}

// Entries returns a copy of the weighted candidates.
func (t *Table) Entries() []Weighted {
	return slices.Clone(t.entries)
}

// Min is the smallest catalog value, or 1 for an empty catalog.
func (t *Table) Min() int {
	if len(t.entries) == 0 {
		return emptyTableValue
	}
	return t.entries[0].Value
}

// Draw picks one value. Rounding that leaves the loop without a pick
// returns the largest value.
func (t *Table) Draw(src Source) int {
	if len(t.entries) == 0 {
		return emptyTableValue
	}
	r := src.Float64() * t.total
	var cum float64
	for _, e := range t.entries {
		cum += e.Weight
		if r < cum {
			return e.Value
		}
	}
	return t.entries[len(t.entries)-1].Value
}
