package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/flowbank/internal/engine"
)

// completeModel is the claim dialog: the user slides a roll count within
// the task's range before rolling.
type completeModel struct {
	completion engine.Completion
	count      int
}

func newCompleteModel(c engine.Completion) completeModel {
	return completeModel{completion: c, count: c.Range.Min}
}

func (m completeModel) taskID() string {
	return m.completion.Task.ID
}

func (m completeModel) less() completeModel {
	m.count = m.completion.Range.Clamp(m.count - 1)
	return m
}

func (m completeModel) more() completeModel {
	m.count = m.completion.Range.Clamp(m.count + 1)
	return m
}

func (m completeModel) view(w int) string {
	t := m.completion.Task
	r := m.completion.Range

	title := goldStyle.Render("Task Complete")
	name := highlightStyle.Render(t.DisplayName)
	if t.PlaylistName != "" {
		name += mutedStyle.Render(" / " + t.PlaylistName)
	}
	spent := fmt.Sprintf("Time spent: %s (%s)", formatSeconds(t.TimeSpent), formatHours(t.TimeSpent))

	if r.NoReward {
		return modalStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", name, mutedStyle.Render(spent), "",
			warningStyle.Render("Too short to earn a reward."),
			"",
			mutedStyle.Render("enter: remove task  esc: keep for later"),
		))
	}

	return modalStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
		title, "", name, mutedStyle.Render(spent), "",
		fmt.Sprintf("Rolls: %s", goldStyle.Render(fmt.Sprintf("%d", m.count))),
		renderSlider(r.Min, r.Max, m.count, max(10, w-16)),
		"",
		mutedStyle.Render("←/→: choose  enter: roll  esc: claim later"),
	))
}

// renderSlider draws a min ... max track with a knob at value.
func renderSlider(lo, hi, value, width int) string {
	pos := 0
	if hi > lo {
		pos = (value - lo) * (width - 1) / (hi - lo)
	}
	track := strings.Repeat("─", pos) + "●" + strings.Repeat("─", max(0, width-1-pos))
	return fmt.Sprintf("%s %s %s", mutedStyle.Render(fmt.Sprint(lo)), highlightStyle.Render(track), mutedStyle.Render(fmt.Sprint(hi)))
}
