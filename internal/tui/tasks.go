package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/flowbank/internal/engine"
	"github.com/sadopc/flowbank/internal/store"
	"github.com/sadopc/flowbank/internal/timer"
)

const noPlaylist = "(none)"

type tasksModel struct {
	ctx    context.Context
	eng    *engine.Engine
	width  int
	height int

	tasks     []store.Task
	playlists []store.Playlist
	live      timer.Status
	cursor    int

	formActive   bool
	form         *huh.Form
	formName     *string
	formPlaylist *string
}

func newTasksModel(ctx context.Context, e *engine.Engine) tasksModel {
	name, playlist := "", noPlaylist
	return tasksModel{
		ctx:          ctx,
		eng:          e,
		formName:     &name,
		formPlaylist: &playlist,
	}
}

func (m tasksModel) Init() tea.Cmd {
	return m.loadData()
}

func (m *tasksModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

type tasksDataMsg struct {
	tasks     []store.Task
	playlists []store.Playlist
}

func (m tasksModel) loadData() tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.eng.Store.ListTasks(m.ctx, true)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		playlists, _ := m.eng.Store.ListPlaylists(m.ctx, false)
		return tasksDataMsg{tasks: tasks, playlists: playlists}
	}
}

func (m tasksModel) selected() (store.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return store.Task{}, false
	}
	return m.tasks[m.cursor], true
}

func (m tasksModel) update(msg tea.Msg) (tasksModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tasksDataMsg:
		m.tasks = msg.tasks
		m.playlists = msg.playlists
		if m.cursor >= len(m.tasks) {
			m.cursor = max(0, len(m.tasks)-1)
		}
		return m, nil

	case liveMsg:
		m.live = msg.status
		return m, nil
	}

	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case timerChangedMsg, rollSettledMsg:
		return m, m.loadData()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.tasks)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.New):
			return m.showNewTaskForm()
		case key.Matches(msg, keys.Start), key.Matches(msg, keys.Enter):
			if t, ok := m.selected(); ok {
				return m, startTaskCmd(m.ctx, m.eng, t.ID)
			}
		case key.Matches(msg, keys.Pause):
			return m, toggleCmd(m.ctx, m.eng)
		case key.Matches(msg, keys.Complete):
			if t, ok := m.selected(); ok {
				return m, completeCmd(m.ctx, m.eng, t)
			}
		case key.Matches(msg, keys.Delete):
			if t, ok := m.selected(); ok {
				return m, deleteTaskCmd(m.ctx, m.eng, t.ID)
			}
		}
	}
	return m, nil
}

func startTaskCmd(ctx context.Context, e *engine.Engine, id string) tea.Cmd {
	return func() tea.Msg {
		t, err := e.Tracker.Start(ctx, id)
		if errors.Is(err, timer.ErrTaskCompleted) {
			return statusMsg{text: "Task is completed. Press c to claim its reward.", isError: true}
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return timerChangedMsg{status: "Started " + t.DisplayName}
	}
}

func toggleCmd(ctx context.Context, e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		if err := e.Tracker.Toggle(ctx); err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return timerChangedMsg{}
	}
}

// completeCmd completes an open task, or reopens the claim of one that was
// completed earlier.
func completeCmd(ctx context.Context, e *engine.Engine, t store.Task) tea.Cmd {
	return func() tea.Msg {
		var (
			c   engine.Completion
			err error
		)
		if t.IsCompleted {
			c, err = e.Claimable(ctx, t.ID)
		} else {
			c, err = e.CompleteTask(ctx, t.ID)
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return completeOpenMsg{completion: c}
	}
}

func deleteTaskCmd(ctx context.Context, e *engine.Engine, id string) tea.Cmd {
	return func() tea.Msg {
		if err := e.Tracker.Delete(ctx, id); err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return timerChangedMsg{}
	}
}

func (m tasksModel) showNewTaskForm() (tasksModel, tea.Cmd) {
	*m.formName = ""
	*m.formPlaylist = noPlaylist

	options := []huh.Option[string]{huh.NewOption(noPlaylist, noPlaylist)}
	for _, p := range m.playlists {
		options = append(options, huh.NewOption(p.Name, p.Name))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Task Name").Value(m.formName).Validate(notBlank("task name")),
			huh.NewSelect[string]().Title("Playlist").Options(options...).Value(m.formPlaylist),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		name, playlist := *m.formName, *m.formPlaylist
		if playlist == noPlaylist {
			playlist = ""
		}
		return m, m.createTask(name, playlist)
	}

	return m, cmd
}

func (m tasksModel) createTask(name, playlist string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.eng.Store.CreateTask(m.ctx, store.Task{DisplayName: name, PlaylistName: playlist})
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return timerChangedMsg{}
	}
}

func notBlank(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s must not be empty", what)
		}
		return nil
	}
}

func (m tasksModel) view() string {
	if m.width < 20 {
		return "Terminal too small"
	}
	w := m.width - 4

	if m.formActive && m.form != nil {
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("New Task"), "", m.form.View())
		return panelStyle.Width(w).Render(content)
	}

	return lipgloss.JoinVertical(lipgloss.Left, renderTimerPanel(m.live, w), m.renderTaskList(w))
}

// renderTimerPanel draws the active task the way the last tick saw it.
func renderTimerPanel(live timer.Status, w int) string {
	if live.Task == nil {
		content := lipgloss.JoinVertical(lipgloss.Center,
			timerStyle.Width(w-6).Render("00:00:00"),
			mutedStyle.Render("■  STOPPED"),
			mutedStyle.Render("Select a task and press s to start"),
		)
		return panelStyle.Width(w).Render(content)
	}

	timeStr := formatDuration(live.Elapsed)
	var timeDisplay, indicator string
	if live.State == timer.Paused {
		timeDisplay = timerPausedStyle.Width(w - 6).Render(timeStr)
		indicator = warningStyle.Render("⏸  PAUSED")
	} else {
		timeDisplay = timerRunningStyle.Width(w - 6).Render(timeStr)
		indicator = successStyle.Render("●  RUNNING")
	}

	nameLine := highlightStyle.Render(live.Task.DisplayName)
	if live.Task.PlaylistName != "" {
		nameLine += mutedStyle.Render(" / " + live.Task.PlaylistName)
	}

	content := lipgloss.JoinVertical(lipgloss.Center, timeDisplay, indicator, nameLine)
	return activePanelStyle.Width(w).Render(content)
}

func (m tasksModel) renderTaskList(w int) string {
	title := titleStyle.Render("Tasks")
	if len(m.tasks) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No tasks yet. Press n to create one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title, "")
	for i, t := range m.tasks {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}

		icon := mutedStyle.Render("○")
		spent := formatSeconds(t.TimeSpent)
		switch {
		case t.IsCompleted:
			icon = goldStyle.Render("✓")
		case m.live.Task != nil && m.live.Task.ID == t.ID:
			spent = formatDuration(m.live.Elapsed)
			icon = successStyle.Render("●")
			if m.live.State == timer.Paused {
				icon = warningStyle.Render("⏸")
			}
		}

		label := t.DisplayName
		if t.IsFlowSession {
			label += mutedStyle.Render(" (flow)")
		}
		playlist := ""
		if t.PlaylistName != "" {
			playlist = mutedStyle.Render(" [" + t.PlaylistName + "]")
		}
		rows = append(rows, fmt.Sprintf("%s%s %s  %s%s", style.Render(cursor), icon, spent, style.Render(label), playlist))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  s: start  space: pause  c: complete/claim  d: delete"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
