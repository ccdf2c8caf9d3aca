package reward

import (
	"math"

	"github.com/sadopc/flowbank/internal/store"
)

// Range is the span of points a completed task may claim.
type Range struct {
	Min      int
	Max      int
	NoReward bool
}

// ComputeRange derives the claimable range from focus time. The floor is
// minPoints per started minTimeBlock (rounded); the ceiling is maxPoints
// per full maxTimeBlock plus the triangular bonus n(n+1)/2 for n full
// progressive intervals. A non-positive block size contributes nothing.
func ComputeRange(timeSpentSeconds int64, rs store.RewardSettings) Range {
	minutes := float64(max(timeSpentSeconds, 0)) / 60

	lo := 0
	if rs.MinTimeBlock > 0 {
		lo = int(math.Round(minutes/rs.MinTimeBlock)) * rs.MinPoints
	}
	hi := 0
	if rs.MaxTimeBlock > 0 {
		hi = int(math.Floor(minutes/rs.MaxTimeBlock)) * rs.MaxPoints
	}
	if rs.ProgressiveInterval > 0 {
		n := int(math.Floor(minutes / rs.ProgressiveInterval))
		hi += n * (n + 1) / 2
	}

	if hi <= 0 {
		return Range{NoReward: true}
	}
	lo = max(lo, 0)
	if lo > hi {
		lo = hi
	}
	return Range{Min: lo, Max: hi}
}

// Clamp bounds a user choice to the range.
func (r Range) Clamp(n int) int {
	if r.NoReward {
		return 0
	}
	return min(max(n, r.Min), r.Max)
}
