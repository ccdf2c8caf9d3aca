// Package tui is the terminal front end. Every mutation goes through the
// engine; the once-a-second tick only reads the active timer.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/flowbank/internal/engine"
	"github.com/sadopc/flowbank/internal/export"
	"github.com/sadopc/flowbank/internal/logger"
	"github.com/sadopc/flowbank/internal/store"
	"github.com/sadopc/flowbank/internal/timer"
)

// App is the root Bubble Tea model.
type App struct {
	ctx    context.Context
	eng    *engine.Engine
	log    logger.Logger
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	live timer.Status

	tasks    tasksModel
	flow     flowModel
	rewards  rewardsModel
	history  historyModel
	settings settingsModel

	// At most one modal is open at a time.
	anket    *anketModel
	roll     *rollModel
	complete *completeModel

	help   help.Model
	status string
}

func NewApp(ctx context.Context, e *engine.Engine, log logger.Logger) App {
	if log == nil {
		log = logger.NewNop()
	}
	h := help.New()
	h.ShowAll = false

	return App{
		ctx:        ctx,
		eng:        e,
		log:        log,
		activeView: viewTasks,
		tasks:      newTasksModel(ctx, e),
		flow:       newFlowModel(ctx, e),
		rewards:    newRewardsModel(ctx, e),
		history:    newHistoryModel(ctx, e, time.Now),
		settings:   newSettingsModel(ctx, e),
		help:       h,
	}
}

// Run shows the app until the user quits.
func Run(ctx context.Context, e *engine.Engine, log logger.Logger) error {
	p := tea.NewProgram(NewApp(ctx, e, log), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.tasks.Init(),
		a.flow.refresh(),
		a.rewards.refresh(),
		a.settings.refresh(),
		checkAnketCmd(a.ctx, a.eng),
		a.liveCmd(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) liveCmd() tea.Cmd {
	return func() tea.Msg {
		st, err := a.eng.Tracker.Live(a.ctx)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Timer error: %v", err), isError: true}
		}
		return liveMsg{status: st}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.tasks.setSize(a.width, contentHeight)
		a.flow.setSize(a.width, contentHeight)
		a.rewards.setSize(a.width, contentHeight)
		a.history.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tickMsg:
		return a, tea.Batch(tickCmd(), a.liveCmd())

	// Loaded data goes to its owner whichever view is showing.
	case tasksDataMsg:
		a.tasks, _ = a.tasks.update(msg)
		return a, nil
	case playlistsDataMsg:
		a.flow, _ = a.flow.update(msg)
		return a, nil
	case rewardsDataMsg:
		a.rewards, _ = a.rewards.update(msg)
		return a, nil
	case historyDataMsg:
		a.history, _ = a.history.update(msg)
		return a, nil
	case settingsDataMsg:
		a.settings, _ = a.settings.update(msg)
		return a, nil

	case liveMsg:
		a.live = msg.status
		a.tasks, _ = a.tasks.update(msg)
		a.flow, _ = a.flow.update(msg)
		return a, nil

	case statusMsg:
		a.status = msg.text
		if msg.isError {
			a.log.Warnf(logger.TypeApp, "%s", msg.text)
		}
		return a, nil

	case timerChangedMsg:
		if msg.status != "" {
			a.status = msg.status
		}
		var cmd tea.Cmd
		a.tasks, cmd = a.tasks.update(msg)
		return a, tea.Batch(cmd, a.liveCmd())

	case completeOpenMsg:
		c := newCompleteModel(msg.completion)
		a.complete = &c
		return a, tea.Batch(a.liveCmd(), a.tasks.loadData())

	case rollOpenMsg:
		r := newRollModel(msg)
		a.roll = &r
		a.complete = nil
		return a, tea.Batch(r.tick(), a.rewards.refresh())

	case rollTickMsg:
		if a.roll == nil {
			return a, nil
		}
		r, cmd := a.roll.reveal(msg)
		a.roll = &r
		return a, cmd

	case rollSettledMsg:
		a.roll = nil
		a.complete = nil
		a.status = fmt.Sprintf("Claimed %d P", msg.paid)
		if msg.taskID != "" && msg.paid == 0 {
			a.status = "Task removed"
		}
		var c1, c2 tea.Cmd
		a.tasks, c1 = a.tasks.update(msg)
		a.rewards, c2 = a.rewards.update(msg)
		return a, tea.Batch(c1, c2, a.history.refresh())

	case anketOpenMsg:
		m, cmd := newAnketModel(a.ctx, a.eng).nextForm()
		a.anket = &m
		return a, cmd

	case anketDoneMsg:
		a.status = "Daily reports filed"
		return a, a.rewards.refresh()

	case purchaseDoneMsg:
		a.status = "Bought " + msg.name
		return a, a.refreshMoney()

	case exchangeDoneMsg:
		a.status = fmt.Sprintf("Exchanged %s P for %s", formatAmount(msg.points), formatAmount(msg.gained))
		return a, a.refreshMoney()

	case archiveClearedMsg:
		a.status = fmt.Sprintf("Cleared %d archived entries", msg.removed)

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.exportPicking = false
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)
	}

	if a.anket != nil {
		return a.updateAnket(msg)
	}
	return a.updateActiveView(msg)
}

func (a App) refreshMoney() tea.Cmd {
	return tea.Batch(a.rewards.refresh(), a.history.refresh())
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	switch {
	case a.anket != nil:
		return a.updateAnket(msg)
	case a.roll != nil:
		return a.updateRoll(msg)
	case a.complete != nil:
		return a.updateComplete(msg)
	case a.exportPicking:
		return a.updateExportPicker(msg)
	case a.isFormActive():
		return a.updateActiveView(msg)
	}

	switch {
	case key.Matches(msg, keys.Export):
		a.exportPicking = true
		a.exportCursor = 0
		return a, nil
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, keys.Help):
		a.showHelp = !a.showHelp
		a.help.ShowAll = a.showHelp
		return a, nil
	case key.Matches(msg, keys.Tab1):
		a.activeView = viewTasks
		return a, a.tasks.loadData()
	case key.Matches(msg, keys.Tab2):
		a.activeView = viewFlow
		return a, a.flow.refresh()
	case key.Matches(msg, keys.Tab3):
		a.activeView = viewRewards
		return a, a.rewards.refresh()
	case key.Matches(msg, keys.Tab4):
		a.activeView = viewHistory
		return a, a.history.refresh()
	case key.Matches(msg, keys.Tab5):
		a.activeView = viewSettings
		return a, a.settings.refresh()
	case key.Matches(msg, keys.Tab):
		a.activeView = (a.activeView + 1) % viewState(len(viewNames))
		return a, a.refreshCurrentView()
	}

	return a.updateActiveView(msg)
}

func (a App) updateAnket(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd, done := a.anket.update(msg)
	if done {
		a.anket = nil
		return a, tea.Batch(cmd, a.rewards.refresh())
	}
	a.anket = &m
	return a, cmd
}

func (a App) updateRoll(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	r := *a.roll
	switch {
	case key.Matches(msg, keys.Back):
		r.abandon()
		a.roll = nil
		a.status = "Roll abandoned"
		return a, tea.Batch(a.tasks.loadData(), a.rewards.refresh())
	case key.Matches(msg, keys.Pause):
		r = r.revealAll()
		a.roll = &r
	case key.Matches(msg, keys.Enter):
		if r.finished() {
			return a, r.settle(a.ctx, a.eng)
		}
	}
	return a, nil
}

func (a App) updateComplete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := *a.complete
	switch {
	case key.Matches(msg, keys.Back):
		a.complete = nil
		a.status = "Claim it later from the task list"
		return a, nil
	case key.Matches(msg, keys.Left):
		c = c.less()
	case key.Matches(msg, keys.Right):
		c = c.more()
	case key.Matches(msg, keys.Enter):
		return a, a.claim(c)
	}
	a.complete = &c
	return a, nil
}

// claim rolls the chosen count for the task, or removes it when there is
// nothing to earn.
func (a App) claim(c completeModel) tea.Cmd {
	ctx, e := a.ctx, a.eng
	if c.completion.Range.NoReward {
		id := c.taskID()
		return func() tea.Msg {
			if _, err := e.SettleTask(ctx, id, nil); err != nil {
				return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
			}
			return rollSettledMsg{taskID: id}
		}
	}
	task, count := c.completion.Task, c.count
	return func() tea.Msg {
		gen, err := e.NewGenerator(ctx, count)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return rollOpenMsg{gen: gen, taskID: task.ID, title: "Rolling for " + task.DisplayName}
	}
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewTasks:
		a.tasks, cmd = a.tasks.update(msg)
	case viewFlow:
		a.flow, cmd = a.flow.update(msg)
	case viewRewards:
		a.rewards, cmd = a.rewards.update(msg)
	case viewHistory:
		a.history, cmd = a.history.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewTasks:
		return a.tasks.formActive
	case viewFlow:
		return a.flow.formActive()
	case viewRewards:
		return a.rewards.formActive()
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewTasks:
		return a.tasks.loadData()
	case viewFlow:
		return a.flow.refresh()
	case viewRewards:
		return a.rewards.refresh()
	case viewHistory:
		return a.history.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewTasks:
		content = a.tasks.view()
	case viewFlow:
		content = a.flow.view()
	case viewRewards:
		content = a.rewards.view()
	case viewHistory:
		content = a.history.view()
	case viewSettings:
		content = a.settings.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(1, a.height-headerHeight-footerHeight)

	modalWidth := min(a.width-4, 72)
	var modal string
	switch {
	case a.anket != nil:
		modal = a.anket.view(modalWidth)
	case a.roll != nil:
		modal = a.roll.view(modalWidth)
	case a.complete != nil:
		modal = a.complete.view(modalWidth)
	case a.exportPicking:
		modal = a.renderExportPicker()
	}
	if modal != "" {
		content = lipgloss.Place(a.width, contentHeight, lipgloss.Center, lipgloss.Center, modal)
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("flowbank")
	gap := max(1, a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		status = mutedStyle.Render(" " + a.status)
	}

	timerInfo := ""
	switch a.live.State {
	case timer.Running:
		timerInfo = successStyle.Render(" ● " + formatDuration(a.live.Elapsed))
	case timer.Paused:
		timerInfo = warningStyle.Render(" ⏸ " + formatDuration(a.live.Elapsed))
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"CSV", "JSON"}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export History"), ""}
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))

	return activePanelStyle.Width(min(a.width-4, 40)).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	return func() tea.Msg {
		items, err := a.eng.Ledger.History(a.ctx, store.HistoryFilter{})
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}

		home, _ := os.UserHomeDir()
		dateStr := time.Now().Format("2006-01-02")

		var path string
		if format == 0 {
			path = filepath.Join(home, fmt.Sprintf("flowbank-history-%s.csv", dateStr))
			err = export.HistoryToCSV(items, path)
		} else {
			path = filepath.Join(home, fmt.Sprintf("flowbank-history-%s.json", dateStr))
			err = export.HistoryToJSON(items, path)
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		return exportDoneMsg{path: path}
	}
}
