// Package timer keeps the elapsed-time accounting for timed tasks. At most
// one task is active; when it runs its open session is marked by
// LastStartedAt, and pausing folds that session into TimeSpent.
package timer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sadopc/flowbank/internal/logger"
	"github.com/sadopc/flowbank/internal/store"
)

// ErrTaskCompleted is returned when starting or completing a finished task.
var ErrTaskCompleted = errors.New("task already completed")

// Repository is the slice of the store the tracker needs.
type Repository interface {
	GetTask(ctx context.Context, id string) (*store.Task, error)
	CreateTask(ctx context.Context, t store.Task) (*store.Task, error)
	DeleteTask(ctx context.Context, id string) error
	TimerState(ctx context.Context) (store.TimerState, error)
	CommitTimer(ctx context.Context, st store.TimerState, tasks ...*store.Task) error
}

// State is what the active-task pointer is currently doing.
type State int

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	}
	return "stopped"
}

// Status is the read-side view used by the once-a-second display refresh.
type Status struct {
	Task    *store.Task
	State   State
	Elapsed time.Duration
}

type Tracker struct {
	repo Repository
	log  logger.Logger
	now  func() time.Time
}

func New(repo Repository, log logger.Logger, now func() time.Time) *Tracker {
	if log == nil {
		log = logger.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{repo: repo, log: log, now: now}
}

// fold moves the running session of t into TimeSpent and returns the number
// of seconds added. A clock that went backwards adds nothing.
func fold(t *store.Task, now time.Time) int64 {
	if t.LastStartedAt == nil {
		return 0
	}
	secs := int64(now.Sub(*t.LastStartedAt) / time.Second)
	if secs < 0 {
		secs = 0
	}
	t.TimeSpent += secs
	t.LastStartedAt = nil
	return secs
}

// Elapsed is TimeSpent plus the open session, unless paused.
func Elapsed(t *store.Task, paused bool, now time.Time) time.Duration {
	secs := t.TimeSpent
	if !paused && t.LastStartedAt != nil {
		if d := int64(now.Sub(*t.LastStartedAt) / time.Second); d > 0 {
			secs += d
		}
	}
	return time.Duration(secs) * time.Second
}

// Start makes id the running task. A different running task is paused
// first. Starting the task that is already running changes nothing.
func (tr *Tracker) Start(ctx context.Context, id string) (*store.Task, error) {
	st, err := tr.repo.TimerState(ctx)
	if err != nil {
		return nil, err
	}
	target, err := tr.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("start timer: %w", err)
	}
	if target.IsCompleted {
		return nil, fmt.Errorf("start timer %s: %w", id, ErrTaskCompleted)
	}
	if st.ActiveTaskID == id && target.Running() {
		return target, nil
	}

	now := tr.now()
	var changed []*store.Task
	if st.ActiveTaskID != "" && st.ActiveTaskID != id {
		prev, err := tr.repo.GetTask(ctx, st.ActiveTaskID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			tr.log.Warnf(logger.TypeTimer, "active task %s vanished, dropping pointer", st.ActiveTaskID)
		case err != nil:
			return nil, fmt.Errorf("start timer: %w", err)
		case prev.Running():
			secs := fold(prev, now)
			tr.log.Debugf(logger.TypeTimer, "implicit pause %s: +%ds", prev.ID, secs)
			changed = append(changed, prev)
		}
	}

	// A target running without being active is stale; keep what it earned.
	fold(target, now)
	target.LastStartedAt = &now
	changed = append(changed, target)

	if err := tr.repo.CommitTimer(ctx, store.TimerState{ActiveTaskID: id}, changed...); err != nil {
		return nil, fmt.Errorf("start timer %s: %w", id, err)
	}
	tr.log.Debugf(logger.TypeTimer, "start %s", id)
	return target, nil
}

// Pause folds the active session. With nothing running it does nothing.
func (tr *Tracker) Pause(ctx context.Context) error {
	st, err := tr.repo.TimerState(ctx)
	if err != nil {
		return err
	}
	if st.ActiveTaskID == "" || st.Paused {
		return nil
	}
	task, err := tr.repo.GetTask(ctx, st.ActiveTaskID)
	if errors.Is(err, store.ErrNotFound) {
		tr.log.Warnf(logger.TypeTimer, "active task %s vanished, dropping pointer", st.ActiveTaskID)
		return tr.repo.CommitTimer(ctx, store.TimerState{})
	}
	if err != nil {
		return fmt.Errorf("pause timer: %w", err)
	}

	secs := fold(task, tr.now())
	if err := tr.repo.CommitTimer(ctx, store.TimerState{ActiveTaskID: task.ID, Paused: true}, task); err != nil {
		return fmt.Errorf("pause timer: %w", err)
	}
	tr.log.Debugf(logger.TypeTimer, "pause %s: +%ds, total %ds", task.ID, secs, task.TimeSpent)
	return nil
}

// Resume restarts the paused active task. Otherwise it does nothing.
func (tr *Tracker) Resume(ctx context.Context) error {
	st, err := tr.repo.TimerState(ctx)
	if err != nil {
		return err
	}
	if st.ActiveTaskID == "" || !st.Paused {
		return nil
	}
	_, err = tr.Start(ctx, st.ActiveTaskID)
	return err
}

// Toggle pauses a running task or resumes a paused one.
func (tr *Tracker) Toggle(ctx context.Context) error {
	st, err := tr.repo.TimerState(ctx)
	if err != nil {
		return err
	}
	if st.Paused {
		return tr.Resume(ctx)
	}
	return tr.Pause(ctx)
}

// Settle folds the running session of id, if any. When id is the active
// task it stays active but paused.
func (tr *Tracker) Settle(ctx context.Context, id string) (*store.Task, error) {
	task, err := tr.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("settle timer: %w", err)
	}
	if !task.Running() {
		return task, nil
	}
	st, err := tr.repo.TimerState(ctx)
	if err != nil {
		return nil, err
	}
	if st.ActiveTaskID == id {
		st.Paused = true
	}
	secs := fold(task, tr.now())
	if err := tr.repo.CommitTimer(ctx, st, task); err != nil {
		return nil, fmt.Errorf("settle timer %s: %w", id, err)
	}
	tr.log.Debugf(logger.TypeTimer, "settle %s: +%ds", id, secs)
	return task, nil
}

// Complete settles id, marks it completed and clears the active pointer if
// it pointed at id, all in one commit.
func (tr *Tracker) Complete(ctx context.Context, id string) (*store.Task, error) {
	task, err := tr.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if task.IsCompleted {
		return task, fmt.Errorf("complete task %s: %w", id, ErrTaskCompleted)
	}
	st, err := tr.repo.TimerState(ctx)
	if err != nil {
		return nil, err
	}

	now := tr.now()
	fold(task, now)
	task.IsCompleted = true
	task.CompletedAt = &now
	if st.ActiveTaskID == id {
		st = store.TimerState{}
	}
	if err := tr.repo.CommitTimer(ctx, st, task); err != nil {
		return nil, fmt.Errorf("complete task %s: %w", id, err)
	}
	tr.log.Infof(logger.TypeTimer, "complete %s after %ds", id, task.TimeSpent)
	return task, nil
}

// Delete settles id, clears the active pointer if needed and removes it.
func (tr *Tracker) Delete(ctx context.Context, id string) error {
	task, err := tr.repo.GetTask(ctx, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	st, err := tr.repo.TimerState(ctx)
	if err != nil {
		return err
	}
	fold(task, tr.now())
	if st.ActiveTaskID == id {
		st = store.TimerState{}
	}
	if err := tr.repo.CommitTimer(ctx, st, task); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if err := tr.repo.DeleteTask(ctx, id); err != nil {
		return err
	}
	tr.log.Debugf(logger.TypeTimer, "delete %s", id)
	return nil
}

const defaultFlowName = "Flow session"

// StartFlowSession creates a freeform task and starts it.
func (tr *Tracker) StartFlowSession(ctx context.Context, name, playlist string) (*store.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultFlowName
	}
	task, err := tr.repo.CreateTask(ctx, store.Task{
		DisplayName:   name,
		PlaylistName:  playlist,
		IsFlowSession: true,
		CreatedAt:     tr.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("start flow session: %w", err)
	}
	return tr.Start(ctx, task.ID)
}

// Live reports the active task and its elapsed time right now.
func (tr *Tracker) Live(ctx context.Context) (Status, error) {
	st, err := tr.repo.TimerState(ctx)
	if err != nil {
		return Status{}, err
	}
	if st.ActiveTaskID == "" {
		return Status{State: Stopped}, nil
	}
	task, err := tr.repo.GetTask(ctx, st.ActiveTaskID)
	if errors.Is(err, store.ErrNotFound) {
		return Status{State: Stopped}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("live timer: %w", err)
	}
	state := Running
	if st.Paused || !task.Running() {
		state = Paused
	}
	return Status{Task: task, State: state, Elapsed: Elapsed(task, state == Paused, tr.now())}, nil
}
