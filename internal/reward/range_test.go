package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sadopc/flowbank/internal/store"
)

func TestComputeRangeZeroIsNoReward(t *testing.T) {
	r := ComputeRange(0, store.DefaultRewardSettings())
	assert.Equal(t, Range{NoReward: true}, r)
}

func TestComputeRangeShortSession(t *testing.T) {
	// 10 minutes: min rounds to 1 block, but max has no full block.
	r := ComputeRange(600, store.DefaultRewardSettings())
	assert.True(t, r.NoReward)
	assert.Equal(t, 0, r.Min)
	assert.Equal(t, 0, r.Max)
}

func TestComputeRangeDefaults(t *testing.T) {
	rs := store.DefaultRewardSettings()
	cases := []struct {
		secs     int64
		min, max int
	}{
		{15 * 60, 1, 3},
		{30 * 60, 2, 6},
		{60 * 60, 4, 13},   // 4*3 + 1
		{120 * 60, 8, 27},  // 8*3 + 3
		{181 * 60, 12, 42}, // 12*3 + 6
	}
	for _, c := range cases {
		r := ComputeRange(c.secs, rs)
		assert.False(t, r.NoReward, "secs=%d", c.secs)
		assert.Equal(t, c.min, r.Min, "min secs=%d", c.secs)
		assert.Equal(t, c.max, r.Max, "max secs=%d", c.secs)
	}
}

func TestComputeRangeClampsMin(t *testing.T) {
	rs := store.DefaultRewardSettings()
	rs.MinPoints = 10
	r := ComputeRange(15*60, rs)
	assert.Equal(t, 3, r.Max)
	assert.Equal(t, 3, r.Min)
}

func TestComputeRangeNonPositiveBlocks(t *testing.T) {
	rs := store.DefaultRewardSettings()
	rs.MaxTimeBlock = 0
	rs.ProgressiveInterval = 0
	assert.True(t, ComputeRange(3600, rs).NoReward)

	rs = store.DefaultRewardSettings()
	rs.MinTimeBlock = -1
	r := ComputeRange(3600, rs)
	assert.Equal(t, 0, r.Min)
	assert.Equal(t, 13, r.Max)
}

func TestComputeRangeMonotonic(t *testing.T) {
	settings := []store.RewardSettings{store.DefaultRewardSettings()}
	odd := store.DefaultRewardSettings()
	odd.MinTimeBlock, odd.MinPoints = 7, 5
	odd.MaxTimeBlock, odd.MaxPoints = 20, 2
	odd.ProgressiveInterval = 45
	settings = append(settings, odd)

	for _, rs := range settings {
		prev := ComputeRange(0, rs)
		for secs := int64(1); secs <= 6*3600; secs += 13 {
			r := ComputeRange(secs, rs)
			assert.LessOrEqual(t, r.Min, r.Max)
			assert.GreaterOrEqual(t, r.Min, prev.Min, "min at %ds", secs)
			assert.GreaterOrEqual(t, r.Max, prev.Max, "max at %ds", secs)
			prev = r
		}
	}
}

func TestRangeClamp(t *testing.T) {
	r := Range{Min: 2, Max: 6}
	assert.Equal(t, 2, r.Clamp(0))
	assert.Equal(t, 6, r.Clamp(9))
	assert.Equal(t, 4, r.Clamp(4))
	assert.Equal(t, 0, Range{NoReward: true}.Clamp(5))
}
