package timer

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/flowbank/internal/store"
	"github.com/sadopc/flowbank/internal/testutil"
)

func newTestTracker(t *testing.T) (*Tracker, *store.Store, *testutil.Clock) {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	clock := testutil.NewClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	return New(s, &testutil.MockLogger{}, clock.Now), s, clock
}

func createTask(t *testing.T, s *store.Store, name string) *store.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), store.Task{DisplayName: name})
	require.NoError(t, err)
	return task
}

func TestStartPauseResume(t *testing.T) {
	tr, s, clock := newTestTracker(t)
	ctx := context.Background()
	task := createTask(t, s, "focus")

	_, err := tr.Start(ctx, task.ID)
	require.NoError(t, err)
	clock.Advance(90*time.Second + 700*time.Millisecond)

	require.NoError(t, tr.Pause(ctx))
	got, _ := s.GetTask(ctx, task.ID)
	assert.Equal(t, int64(90), got.TimeSpent, "session is floored to whole seconds")
	assert.False(t, got.Running())

	st, _ := s.TimerState(ctx)
	assert.Equal(t, task.ID, st.ActiveTaskID)
	assert.True(t, st.Paused)

	clock.Advance(time.Hour)
	require.NoError(t, tr.Resume(ctx))
	clock.Advance(30 * time.Second)

	live, err := tr.Live(ctx)
	require.NoError(t, err)
	assert.Equal(t, Running, live.State)
	assert.Equal(t, 120*time.Second, live.Elapsed, "paused hour is not counted")
}

func TestStartSwitchesTasks(t *testing.T) {
	tr, s, clock := newTestTracker(t)
	ctx := context.Background()
	a := createTask(t, s, "a")
	b := createTask(t, s, "b")

	tr.Start(ctx, a.ID)
	clock.Advance(40 * time.Second)
	_, err := tr.Start(ctx, b.ID)
	require.NoError(t, err)

	gotA, _ := s.GetTask(ctx, a.ID)
	assert.Equal(t, int64(40), gotA.TimeSpent)
	assert.False(t, gotA.Running(), "previous task is implicitly paused")

	gotB, _ := s.GetTask(ctx, b.ID)
	assert.True(t, gotB.Running())

	st, _ := s.TimerState(ctx)
	assert.Equal(t, b.ID, st.ActiveTaskID)
	assert.False(t, st.Paused)
}

func TestStartAlreadyRunningIsNoop(t *testing.T) {
	tr, s, clock := newTestTracker(t)
	ctx := context.Background()
	task := createTask(t, s, "a")

	tr.Start(ctx, task.ID)
	started, _ := s.GetTask(ctx, task.ID)
	clock.Advance(25 * time.Second)

	_, err := tr.Start(ctx, task.ID)
	require.NoError(t, err)
	again, _ := s.GetTask(ctx, task.ID)
	assert.Equal(t, int64(0), again.TimeSpent)
	assert.True(t, started.LastStartedAt.Equal(*again.LastStartedAt))

	clock.Advance(5 * time.Second)
	tr.Pause(ctx)
	final, _ := s.GetTask(ctx, task.ID)
	assert.Equal(t, int64(30), final.TimeSpent)
}

func TestPauseResumeWithoutActiveTask(t *testing.T) {
	tr, s, _ := newTestTracker(t)
	ctx := context.Background()

	assert.NoError(t, tr.Pause(ctx))
	assert.NoError(t, tr.Resume(ctx))

	st, _ := s.TimerState(ctx)
	assert.Empty(t, st.ActiveTaskID)
}

func TestResumeWhenRunningIsNoop(t *testing.T) {
	tr, s, clock := newTestTracker(t)
	ctx := context.Background()
	task := createTask(t, s, "a")

	tr.Start(ctx, task.ID)
	clock.Advance(10 * time.Second)
	require.NoError(t, tr.Resume(ctx))

	got, _ := s.GetTask(ctx, task.ID)
	assert.Equal(t, int64(0), got.TimeSpent)
	assert.True(t, got.Running())
}

func TestToggle(t *testing.T) {
	tr, s, clock := newTestTracker(t)
	ctx := context.Background()
	task := createTask(t, s, "a")
	tr.Start(ctx, task.ID)

	clock.Advance(10 * time.Second)
	require.NoError(t, tr.Toggle(ctx))
	live, _ := tr.Live(ctx)
	assert.Equal(t, Paused, live.State)

	require.NoError(t, tr.Toggle(ctx))
	live, _ = tr.Live(ctx)
	assert.Equal(t, Running, live.State)
}

func TestCompleteSettlesRunningSession(t *testing.T) {
	tr, s, clock := newTestTracker(t)
	ctx := context.Background()
	task := createTask(t, s, "a")

	tr.Start(ctx, task.ID)
	clock.Advance(15 * time.Minute)

	done, err := tr.Complete(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, done.IsCompleted)
	assert.Nil(t, done.LastStartedAt)
	assert.Equal(t, int64(900), done.TimeSpent)
	require.NotNil(t, done.CompletedAt)

	stored, _ := s.GetTask(ctx, task.ID)
	assert.True(t, stored.IsCompleted)
	assert.Nil(t, stored.LastStartedAt, "completed task never keeps a stale start")

	st, _ := s.TimerState(ctx)
	assert.Empty(t, st.ActiveTaskID)

	_, err = tr.Complete(ctx, task.ID)
	assert.ErrorIs(t, err, ErrTaskCompleted)
	_, err = tr.Start(ctx, task.ID)
	assert.ErrorIs(t, err, ErrTaskCompleted)
}

func TestCompleteInactiveKeepsPointer(t *testing.T) {
	tr, s, _ := newTestTracker(t)
	ctx := context.Background()
	a := createTask(t, s, "a")
	b := createTask(t, s, "b")
	tr.Start(ctx, a.ID)

	_, err := tr.Complete(ctx, b.ID)
	require.NoError(t, err)
	st, _ := s.TimerState(ctx)
	assert.Equal(t, a.ID, st.ActiveTaskID)
}

func TestDeleteActiveTask(t *testing.T) {
	tr, s, clock := newTestTracker(t)
	ctx := context.Background()
	task := createTask(t, s, "a")
	tr.Start(ctx, task.ID)
	clock.Advance(time.Minute)

	require.NoError(t, tr.Delete(ctx, task.ID))
	_, err := s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	st, _ := s.TimerState(ctx)
	assert.Empty(t, st.ActiveTaskID)
	live, _ := tr.Live(ctx)
	assert.Equal(t, Stopped, live.State)
}

func TestSettle(t *testing.T) {
	tr, s, clock := newTestTracker(t)
	ctx := context.Background()
	task := createTask(t, s, "a")
	tr.Start(ctx, task.ID)
	clock.Advance(42 * time.Second)

	settled, err := tr.Settle(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), settled.TimeSpent)

	st, _ := s.TimerState(ctx)
	assert.Equal(t, task.ID, st.ActiveTaskID)
	assert.True(t, st.Paused)

	again, err := tr.Settle(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), again.TimeSpent, "settling twice adds nothing")
}

func TestStartFlowSession(t *testing.T) {
	tr, s, _ := newTestTracker(t)
	ctx := context.Background()

	task, err := tr.StartFlowSession(ctx, "  ", "Deep work")
	require.NoError(t, err)
	assert.True(t, task.IsFlowSession)
	assert.Equal(t, defaultFlowName, task.DisplayName)
	assert.Equal(t, "Deep work", task.PlaylistName)
	assert.True(t, task.Running())

	st, _ := s.TimerState(ctx)
	assert.Equal(t, task.ID, st.ActiveTaskID)
}

func TestClockSkewNeverSubtracts(t *testing.T) {
	tr, s, clock := newTestTracker(t)
	ctx := context.Background()
	task := createTask(t, s, "a")
	tr.Start(ctx, task.ID)

	clock.Advance(-time.Hour)
	require.NoError(t, tr.Pause(ctx))
	got, _ := s.GetTask(ctx, task.ID)
	assert.Equal(t, int64(0), got.TimeSpent)
}

func TestElapsedPure(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	task := &store.Task{TimeSpent: 100, LastStartedAt: &start}
	now := start.Add(20 * time.Second)

	assert.Equal(t, 120*time.Second, Elapsed(task, false, now))
	assert.Equal(t, 100*time.Second, Elapsed(task, true, now))
	assert.Equal(t, 100*time.Second, Elapsed(&store.Task{TimeSpent: 100}, false, now))
}

// Random start/pause/resume sequences across tasks must account for every
// unpaused second exactly once.
func TestRandomSequencesConserveTime(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		tr, s, clock := newTestTracker(t)
		ctx := context.Background()
		rng := rand.New(rand.NewPCG(seed, seed*7))

		tasks := []*store.Task{createTask(t, s, "a"), createTask(t, s, "b"), createTask(t, s, "c")}
		want := map[string]int64{}

		for step := 0; step < 60; step++ {
			switch rng.IntN(3) {
			case 0:
				_, err := tr.Start(ctx, tasks[rng.IntN(len(tasks))].ID)
				require.NoError(t, err)
			case 1:
				require.NoError(t, tr.Pause(ctx))
			case 2:
				require.NoError(t, tr.Resume(ctx))
			}

			secs := int64(rng.IntN(120))
			live, err := tr.Live(ctx)
			require.NoError(t, err)
			if live.State == Running {
				want[live.Task.ID] += secs
			}
			clock.Advance(time.Duration(secs) * time.Second)
		}

		for _, task := range tasks {
			got, _ := s.GetTask(ctx, task.ID)
			assert.Equal(t, want[task.ID], int64(Elapsed(got, !got.Running(), clock.Now())/time.Second),
				"seed %d task %s", seed, task.DisplayName)
		}
	}
}
