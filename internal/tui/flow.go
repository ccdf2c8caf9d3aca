package tui

import (
	"context"
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

var playlistColors = []string{"#6C63FF", "#2EC4B6", "#FF6B6B", "#F39C12", "#2ECC71", "#E74C3C", "#9B59B6", "#3498DB"}
var playlistCategories = []string{"work", "study", "creative", "health", "other"}

type flowForm int

const (
	formNone flowForm = iota
	formNewPlaylist
	formEditPlaylist
	formSession
)

// flowModel lists the playlists flow sessions are filed under and shows the
// running session.
type flowModel struct {
	ctx    context.Context
	eng    *engine.Engine
	width  int
	height int

	playlists    []store.Playlist
	cursor       int
	showArchived bool
	live         timer.Status

	formType flowForm
	form     *huh.Form

	// Form field pointers (survive value copies)
	formName     *string
	formColor    *string
	formCategory *string

	editingID int64
}

func newFlowModel(ctx context.Context, e *engine.Engine) flowModel {
	name, color, cat := "", playlistColors[0], ""
	return flowModel{
		ctx:          ctx,
		eng:          e,
		formName:     &name,
		formColor:    &color,
		formCategory: &cat,
	}
}

func (f *flowModel) setSize(w, h int) {
	f.width = w
	f.height = h
}

func (f flowModel) formActive() bool {
	return f.formType != formNone && f.form != nil
}

type playlistsDataMsg struct {
	playlists []store.Playlist
}

func (f flowModel) refresh() tea.Cmd {
	return func() tea.Msg {
		playlists, err := f.eng.Store.ListPlaylists(f.ctx, f.showArchived)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return playlistsDataMsg{playlists: playlists}
	}
}

func (f flowModel) selectedPlaylist() string {
	if f.cursor < len(f.playlists) {
		return f.playlists[f.cursor].Name
	}
	return ""
}

// flowing reports whether the active task is a flow session.
func (f flowModel) flowing() bool {
	return f.live.Task != nil && f.live.Task.IsFlowSession
}

func (f flowModel) update(msg tea.Msg) (flowModel, tea.Cmd) {
	switch msg := msg.(type) {
	case playlistsDataMsg:
		f.playlists = msg.playlists
		if f.cursor >= len(f.playlists) {
			f.cursor = max(0, len(f.playlists)-1)
		}
		return f, nil

	case liveMsg:
		f.live = msg.status
		return f, nil
	}

	if f.formActive() {
		return f.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if f.cursor > 0 {
				f.cursor--
			}
		case key.Matches(msg, keys.Down):
			if f.cursor < len(f.playlists)-1 {
				f.cursor++
			}
		case key.Matches(msg, keys.Start), key.Matches(msg, keys.Enter):
			return f.showSessionForm()
		case key.Matches(msg, keys.Pause):
			if f.flowing() {
				return f, toggleCmd(f.ctx, f.eng)
			}
		case key.Matches(msg, keys.Complete):
			if f.flowing() {
				return f, completeCmd(f.ctx, f.eng, *f.live.Task)
			}
		case key.Matches(msg, keys.New):
			return f.showPlaylistForm(formNewPlaylist)
		case key.Matches(msg, keys.Edit):
			if len(f.playlists) > 0 {
				return f.showPlaylistForm(formEditPlaylist)
			}
		case key.Matches(msg, keys.Delete):
			if len(f.playlists) > 0 {
				p := f.playlists[f.cursor]
				if err := f.eng.Store.ArchivePlaylist(f.ctx, p.ID); err != nil {
					return f, errStatus(err)
				}
				return f, f.refresh()
			}
		case key.Matches(msg, keys.Archive):
			f.showArchived = !f.showArchived
			return f, f.refresh()
		}
	}
	return f, nil
}

func (f flowModel) showSessionForm() (flowModel, tea.Cmd) {
	*f.formName = ""
	f.formType = formSession
	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Session Name").
				Placeholder("Flow session").
				Value(f.formName),
		),
	).WithShowHelp(true).WithShowErrors(true)
	return f, f.form.Init()
}

func (f flowModel) showPlaylistForm(kind flowForm) (flowModel, tea.Cmd) {
	*f.formName = ""
	*f.formColor = playlistColors[0]
	*f.formCategory = playlistCategories[0]
	if kind == formEditPlaylist {
		p := f.playlists[f.cursor]
		*f.formName = p.Name
		*f.formColor = p.Color
		*f.formCategory = p.Category
		f.editingID = p.ID
	}
	f.formType = kind

	colorOptions := make([]huh.Option[string], len(playlistColors))
	for i, c := range playlistColors {
		colorOptions[i] = huh.NewOption(fmt.Sprintf("● %s", c), c)
	}
	catOptions := make([]huh.Option[string], len(playlistCategories))
	for i, c := range playlistCategories {
		catOptions[i] = huh.NewOption(c, c)
	}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Playlist Name").Value(f.formName).Validate(notBlank("playlist name")),
			huh.NewSelect[string]().Title("Color").Options(colorOptions...).Value(f.formColor),
			huh.NewSelect[string]().Title("Category").Options(catOptions...).Value(f.formCategory),
		),
	).WithShowHelp(true).WithShowErrors(true)

	return f, f.form.Init()
}

func (f flowModel) updateForm(msg tea.Msg) (flowModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			f.formType = formNone
			f.form = nil
			return f, nil
		}
	}

	form, cmd := f.form.Update(msg)
	if hf, ok := form.(*huh.Form); ok {
		f.form = hf
	}

	if f.form.State != huh.StateCompleted {
		return f, cmd
	}

	kind := f.formType
	f.formType = formNone
	name, color, category := *f.formName, *f.formColor, *f.formCategory
	switch kind {
	case formSession:
		return f, f.startSession(name, f.selectedPlaylist())
	case formNewPlaylist:
		if _, err := f.eng.Store.CreatePlaylist(f.ctx, name, color, category); err != nil {
			return f, errStatus(err)
		}
	case formEditPlaylist:
		if err := f.eng.Store.UpdatePlaylist(f.ctx, f.editingID, name, color, category); err != nil {
			return f, errStatus(err)
		}
	}
	return f, f.refresh()
}

func (f flowModel) startSession(name, playlist string) tea.Cmd {
	return func() tea.Msg {
		t, err := f.eng.Tracker.StartFlowSession(f.ctx, name, playlist)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return timerChangedMsg{status: "Flowing: " + t.DisplayName}
	}
}

func (f flowModel) view() string {
	w := f.width - 4

	if f.formActive() {
		title := "New Playlist"
		switch f.formType {
		case formEditPlaylist:
			title = "Edit Playlist"
		case formSession:
			title = "Start Flow Session"
			if p := f.selectedPlaylist(); p != "" {
				title += " in " + p
			}
		}
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", f.form.View())
		return panelStyle.Width(w).Render(content)
	}

	top := renderTimerPanel(timer.Status{}, w)
	if f.flowing() {
		top = renderTimerPanel(f.live, w)
	}
	return lipgloss.JoinVertical(lipgloss.Left, top, f.renderPlaylists(w))
}

func (f flowModel) renderPlaylists(w int) string {
	title := titleStyle.Render("Playlists")
	if f.showArchived {
		title += mutedStyle.Render("  (including archived)")
	}

	var rows []string
	rows = append(rows, title, "")

	if len(f.playlists) == 0 {
		rows = append(rows, mutedStyle.Render("No playlists yet. Press n to create one, or s to flow without one."))
	} else {
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-3s %-24s %-12s", "", "Name", "Category")))
		for i, p := range f.playlists {
			colorDot := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Color)).Render("●")
			cursor := "  "
			style := normalItemStyle
			if i == f.cursor {
				cursor = "> "
				style = selectedItemStyle
			}
			name := p.Name
			if p.Archived {
				name += " (archived)"
			}
			rows = append(rows, style.Render(fmt.Sprintf("%s%s %-24s %-12s", cursor, colorDot, name, p.Category)))
		}
	}

	rows = append(rows, "")
	hint := "  s: flow  n: new  E: edit  d: archive  a: show archived"
	if f.flowing() {
		hint = "  space: pause/resume  c: complete session  " + hint[2:]
	}
	rows = append(rows, mutedStyle.Render(hint))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
