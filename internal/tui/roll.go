package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/flowbank/internal/engine"
	"github.com/sadopc/flowbank/internal/reward"
)

// rollModel reveals a started generator one value per tick. Ticks carry
// the generator seq they were scheduled for; once the dialog is closed or
// the generator reset, they draw nothing.
type rollModel struct {
	gen    *reward.Generator
	taskID string
	title  string
	seq    uint64
	values []int
}

func newRollModel(msg rollOpenMsg) rollModel {
	return rollModel{
		gen:    msg.gen,
		taskID: msg.taskID,
		title:  msg.title,
		seq:    msg.gen.Seq(),
	}
}

func (m rollModel) tick() tea.Cmd {
	seq := m.seq
	return tea.Tick(m.gen.Cadence(), func(time.Time) tea.Msg {
		return rollTickMsg{seq: seq}
	})
}

func (m rollModel) finished() bool {
	return m.gen.Phase() == reward.Finished
}

func (m rollModel) reveal(msg rollTickMsg) (rollModel, tea.Cmd) {
	v, done, ok := m.gen.NextFor(msg.seq)
	if !ok {
		return m, nil
	}
	m.values = append(m.values, v)
	if done {
		return m, nil
	}
	return m, m.tick()
}

// revealAll draws the rest at once. Late ticks then find the run finished.
func (m rollModel) revealAll() rollModel {
	for {
		v, done, ok := m.gen.NextFor(m.seq)
		if !ok {
			return m
		}
		m.values = append(m.values, v)
		if done {
			return m
		}
	}
}

// abandon resets the generator so nothing further is drawn or paid.
func (m rollModel) abandon() {
	m.gen.Reset()
}

func (m rollModel) settle(ctx context.Context, e *engine.Engine) tea.Cmd {
	gen, taskID := m.gen, m.taskID
	return func() tea.Msg {
		var (
			paid int
			err  error
		)
		if taskID != "" {
			paid, err = e.SettleTask(ctx, taskID, gen)
		} else {
			paid, err = e.FinishRandomRoll(ctx, gen)
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return rollSettledMsg{paid: paid, taskID: taskID}
	}
}

func (m rollModel) view(w int) string {
	title := goldStyle.Render(m.title)
	progress := mutedStyle.Render(fmt.Sprintf("%d / %d", len(m.values), m.gen.Count()))

	var cells []string
	minVal := m.gen.Table().Min()
	sum := 0
	for _, v := range m.values {
		sum += v
		style := normalItemStyle
		if v > minVal {
			style = goldStyle
		}
		cells = append(cells, style.Render(fmt.Sprintf("%3d", v)))
	}

	perRow := max(1, (w-8)/5)
	var rows []string
	for i := 0; i < len(cells); i += perRow {
		end := min(i+perRow, len(cells))
		rows = append(rows, strings.Join(cells[i:end], "  "))
	}
	grid := strings.Join(rows, "\n")
	if grid == "" {
		grid = mutedStyle.Render("rolling...")
	}

	footer := mutedStyle.Render("space: reveal all  esc: abandon")
	total := fmt.Sprintf("Total: %s", goldStyle.Render(fmt.Sprintf("%d P", sum)))
	if m.finished() {
		footer = mutedStyle.Render("enter: claim  esc: abandon")
	}

	return modalStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, "  ", progress),
		"",
		grid,
		"",
		total,
		"",
		footer,
	))
}
