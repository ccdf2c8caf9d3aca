package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/flowbank/internal/anket"
	"github.com/sadopc/flowbank/internal/engine"
)

// anketModel asks for the spending of each missing day, one form per day.
type anketModel struct {
	ctx      context.Context
	eng      *engine.Engine
	params   []string
	discount float64

	form         *huh.Form
	basic        *string
	nonEssential *string
	extras       []*string
}

// checkAnketCmd fills the backfill queue and opens the dialog when a day is
// missing.
func checkAnketCmd(ctx context.Context, e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		showing, err := e.Anket.Init(ctx)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		if !showing {
			return nil
		}
		return anketOpenMsg{}
	}
}

func newAnketModel(ctx context.Context, e *engine.Engine) anketModel {
	m := anketModel{ctx: ctx, eng: e}
	if rs, err := e.Store.RewardSettings(ctx); err == nil {
		m.params = rs.DailyReportParameters
		m.discount = rs.BasicNecessityDiscount
	}
	return m
}

// nextForm builds the form for the current day.
func (m anketModel) nextForm() (anketModel, tea.Cmd) {
	basic, nonEssential := "0", "0"
	m.basic, m.nonEssential = &basic, &nonEssential
	m.extras = make([]*string, len(m.params))

	fields := []huh.Field{
		huh.NewInput().
			Title("Basic necessities").
			Description(fmt.Sprintf("Discounted by %s%%", formatAmount(m.discount))).
			Value(m.basic).
			Validate(validateFloat(0)),
		huh.NewInput().Title("Non-essential").Value(m.nonEssential).Validate(validateFloat(0)),
	}
	for i, p := range m.params {
		v := "0"
		m.extras[i] = &v
		fields = append(fields, huh.NewInput().Title(p).Value(m.extras[i]).Validate(validateFloat(0)))
	}

	m.form = huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).WithShowErrors(true)
	return m, m.form.Init()
}

// report reads the filled form. Blank fields count as zero.
func (m anketModel) report() anket.Report {
	r := anket.Report{
		Basic:        parseAmount(*m.basic),
		NonEssential: parseAmount(*m.nonEssential),
	}
	for i, p := range m.params {
		r.Extra = append(r.Extra, anket.Extra{Parameter: p, Amount: parseAmount(*m.extras[i])})
	}
	return r
}

// update returns done once every day is filed or skipped.
func (m anketModel) update(msg tea.Msg) (anketModel, tea.Cmd, bool) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		if err := m.eng.Anket.SkipAll(m.ctx); err != nil {
			return m, errStatus(err), true
		}
		return m, func() tea.Msg { return statusMsg{text: "Skipped missing daily reports"} }, true
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State != huh.StateCompleted {
		return m, cmd, false
	}

	if err := m.eng.Anket.SubmitReport(m.ctx, m.report()); err != nil {
		return m, errStatus(err), true
	}
	if !m.eng.Anket.Showing() {
		return m, func() tea.Msg { return anketDoneMsg{} }, true
	}
	m, cmd = m.nextForm()
	return m, cmd, false
}

func (m anketModel) view(w int) string {
	day, ok := m.eng.Anket.Current()
	if !ok || m.form == nil {
		return ""
	}
	pos, total := m.eng.Anket.Progress()
	title := goldStyle.Render("Daily Report")
	sub := highlightStyle.Render(day.Format("Monday, Jan 02 2006")) +
		mutedStyle.Render(fmt.Sprintf("  (%d/%d)", pos, total))

	return modalStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
		title, sub, "",
		mutedStyle.Render("What did you spend this day?"),
		"",
		m.form.View(),
		"",
		mutedStyle.Render("esc: skip all missing days"),
	))
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
