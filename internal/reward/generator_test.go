package reward

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorLifecycle(t *testing.T) {
	var observed []int
	g := NewGenerator(NewTable([]int{3}, 1), fixedSource(0), DefaultCadence(), func(v, minValue int) {
		observed = append(observed, v)
		assert.Equal(t, 3, minValue)
	})
	assert.Equal(t, Input, g.Phase())

	require.NoError(t, g.Start(3))
	assert.Equal(t, Generating, g.Phase())
	assert.ErrorIs(t, g.Start(2), ErrGenerating)

	v, done := g.Next()
	assert.Equal(t, 3, v)
	assert.False(t, done)
	g.Next()
	_, done = g.Next()
	assert.True(t, done)
	assert.Equal(t, Finished, g.Phase())

	_, done = g.Next()
	assert.True(t, done)
	assert.Len(t, g.Values(), 3, "Next after Finished draws nothing")
	assert.Equal(t, 9, g.Sum())
	assert.Equal(t, []int{3, 3, 3}, observed)
}

func TestGeneratorStartClampsToOne(t *testing.T) {
	g := NewGenerator(nil, fixedSource(0), DefaultCadence(), nil)
	require.NoError(t, g.Start(0))
	assert.Equal(t, 1, g.Count())
	_, done := g.Next()
	assert.True(t, done)
	assert.Equal(t, 1, g.Sum(), "empty catalog yields 1")
}

func TestGeneratorCadence(t *testing.T) {
	g := NewGenerator(nil, fixedSource(0), DefaultCadence(), nil)
	g.Start(10)
	assert.Equal(t, 500*time.Millisecond, g.Cadence())
	g.Reset()
	g.Start(11)
	assert.Equal(t, 100*time.Millisecond, g.Cadence())
}

func TestGeneratorResetDiscardsStaleCallbacks(t *testing.T) {
	g := NewGenerator(nil, fixedSource(0), DefaultCadence(), nil)
	g.Start(5)
	seq := g.Seq()
	_, _, ok := g.NextFor(seq)
	assert.True(t, ok)

	g.Reset()
	assert.Equal(t, Input, g.Phase())
	assert.Empty(t, g.Values())

	_, _, ok = g.NextFor(seq)
	assert.False(t, ok, "a tick scheduled before Reset must not draw")
	assert.Empty(t, g.Values())

	g.Start(5)
	_, _, ok = g.NextFor(seq)
	assert.False(t, ok, "a tick from an earlier run must not draw into a new one")
}

func TestRunRevealsAll(t *testing.T) {
	cad := Cadence{Slow: time.Millisecond, Fast: time.Millisecond, FastThreshold: 10}
	g := NewGenerator(NewTable([]int{2}, 1), fixedSource(0), cad, nil)
	require.NoError(t, g.Start(4))

	var got []int
	err := g.Run(context.Background(), func(v int) { got = append(got, v) })
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2, 2}, got)
	assert.Equal(t, Finished, g.Phase())
}

func TestRunCancelled(t *testing.T) {
	cad := Cadence{Slow: time.Hour, Fast: time.Hour, FastThreshold: 10}
	g := NewGenerator(nil, fixedSource(0), cad, nil)
	g.Start(3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Run(ctx, func(int) { t.Fatal("no value may be revealed after cancel") })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, g.Values())
}

func TestRunNotStarted(t *testing.T) {
	g := NewGenerator(nil, fixedSource(0), DefaultCadence(), nil)
	assert.NoError(t, g.Run(context.Background(), nil))
	assert.Empty(t, g.Values())
}
