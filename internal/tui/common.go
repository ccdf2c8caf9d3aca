package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/flowbank/internal/engine"
	"github.com/sadopc/flowbank/internal/reward"
	"github.com/sadopc/flowbank/internal/timer"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTasks viewState = iota
	viewFlow
	viewRewards
	viewHistory
	viewSettings
)

var viewNames = []string{"Tasks", "Flow", "Rewards", "History", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

// liveMsg carries the active timer as read on the last tick.
type liveMsg struct {
	status timer.Status
}

// timerChangedMsg asks views showing tasks to reload. A non-empty status
// is shown in the footer.
type timerChangedMsg struct {
	status string
}

type exportDoneMsg struct {
	path string
}

// completeOpenMsg opens the claim dialog for a finished task.
type completeOpenMsg struct {
	completion engine.Completion
}

// rollOpenMsg opens the reveal dialog for a started generator. taskID is
// empty for a random-pick roll.
type rollOpenMsg struct {
	gen    *reward.Generator
	taskID string
	title  string
}

// rollTickMsg reveals the next value of the roll started with seq.
type rollTickMsg struct {
	seq uint64
}

type rollSettledMsg struct {
	paid   int
	taskID string
}

type anketOpenMsg struct{}

type anketDoneMsg struct{}

func errStatus(err error) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
	}
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatSeconds(secs int64) string {
	return formatDuration(time.Duration(secs) * time.Second)
}

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}

// formatAmount trims whole numbers and keeps two decimals otherwise.
func formatAmount(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}
