package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/flowbank/internal/engine"
	"github.com/sadopc/flowbank/internal/store"
)

// settingsFields holds the form values as strings, in form order.
type settingsFields struct {
	conversionRate      string
	discount            string
	minTimeBlock        string
	minPoints           string
	maxTimeBlock        string
	maxPoints           string
	progressiveInterval string
	parameters          string
	lucky               string
}

type settingsModel struct {
	ctx    context.Context
	eng    *engine.Engine
	width  int
	height int

	settings store.RewardSettings
	lucky    float64

	formActive bool
	form       *huh.Form
	fields     *settingsFields // pointer survives value copies
}

func newSettingsModel(ctx context.Context, e *engine.Engine) settingsModel {
	return settingsModel{
		ctx:      ctx,
		eng:      e,
		settings: store.DefaultRewardSettings(),
		lucky:    1,
		fields:   &settingsFields{},
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings store.RewardSettings
	lucky    float64
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		rs, err := s.eng.Store.RewardSettings(s.ctx)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		lucky, err := s.eng.Store.LuckyNumber(s.ctx)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return settingsDataMsg{settings: rs, lucky: lucky}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(settingsDataMsg); ok {
		s.settings = msg.settings
		s.lucky = msg.lucky
		return s, nil
	}

	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return s.showForm()
		}
	}
	return s, nil
}

func fieldsFrom(rs store.RewardSettings, lucky float64) settingsFields {
	return settingsFields{
		conversionRate:      formatAmount(rs.ConversionRate),
		discount:            formatAmount(rs.BasicNecessityDiscount),
		minTimeBlock:        formatAmount(rs.MinTimeBlock),
		minPoints:           strconv.Itoa(rs.MinPoints),
		maxTimeBlock:        formatAmount(rs.MaxTimeBlock),
		maxPoints:           strconv.Itoa(rs.MaxPoints),
		progressiveInterval: formatAmount(rs.ProgressiveInterval),
		parameters:          strings.Join(rs.DailyReportParameters, ", "),
		lucky:               formatAmount(lucky),
	}
}

// parse turns the form back into settings. Values are checked again by
// the store before they are saved.
func (f settingsFields) parse() (store.RewardSettings, float64, error) {
	var errs []error
	num := func(name, v string) float64 {
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a number", name, v))
		}
		return n
	}
	integer := func(name, v string) int {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a whole number", name, v))
		}
		return n
	}

	rs := store.RewardSettings{
		ConversionRate:         num("conversion rate", f.conversionRate),
		BasicNecessityDiscount: num("basic necessity discount", f.discount),
		MinTimeBlock:           num("min time block", f.minTimeBlock),
		MinPoints:              integer("min points", f.minPoints),
		MaxTimeBlock:           num("max time block", f.maxTimeBlock),
		MaxPoints:              integer("max points", f.maxPoints),
		ProgressiveInterval:    num("progressive interval", f.progressiveInterval),
		DailyReportParameters:  splitParameters(f.parameters),
	}
	lucky := num("lucky number", f.lucky)
	if lucky <= 0 && len(errs) == 0 {
		errs = append(errs, fmt.Errorf("lucky number must be positive"))
	}
	return rs, lucky, errors.Join(errs...)
}

func splitParameters(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.fields = fieldsFrom(s.settings, s.lucky)
	f := s.fields

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Min time block (min)").Value(&f.minTimeBlock).Validate(validatePositive),
			huh.NewInput().Title("Points per min block").Value(&f.minPoints).Validate(validateInt(0)),
			huh.NewInput().Title("Max time block (min)").Value(&f.maxTimeBlock).Validate(validatePositive),
			huh.NewInput().Title("Points per max block").Value(&f.maxPoints).Validate(validateInt(0)),
			huh.NewInput().Title("Progressive interval (min)").Value(&f.progressiveInterval).Validate(validatePositive),
		).Title("Reward Range"),
		huh.NewGroup(
			huh.NewInput().Title("Points per 1 balance").Value(&f.conversionRate).Validate(validatePositive),
			huh.NewInput().Title("Basic necessity discount (%)").Value(&f.discount).Validate(validatePercent),
			huh.NewInput().Title("Daily report parameters (comma-separated)").Value(&f.parameters),
			huh.NewInput().Title("Lucky number").Value(&f.lucky).Validate(validatePositive),
		).Title("Economy"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		if err := s.save(); err != nil {
			return s, errStatus(err)
		}
		return s, tea.Batch(s.refresh(), func() tea.Msg { return statusMsg{text: "Settings saved"} })
	}

	return s, cmd
}

func (s settingsModel) save() error {
	rs, lucky, err := s.fields.parse()
	if err != nil {
		return err
	}
	if err := s.eng.Store.SaveRewardSettings(s.ctx, rs); err != nil {
		return err
	}
	return s.eng.Store.SetLuckyNumber(s.ctx, lucky)
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	rs := s.settings
	params := strings.Join(rs.DailyReportParameters, ", ")
	if params == "" {
		params = "none"
	}
	items := [][2]string{
		{"Min time block", formatAmount(rs.MinTimeBlock) + " min"},
		{"Points per min block", strconv.Itoa(rs.MinPoints)},
		{"Max time block", formatAmount(rs.MaxTimeBlock) + " min"},
		{"Points per max block", strconv.Itoa(rs.MaxPoints)},
		{"Progressive interval", formatAmount(rs.ProgressiveInterval) + " min"},
		{"Conversion rate", formatAmount(rs.ConversionRate) + " P = 1"},
		{"Basic necessity discount", formatAmount(rs.BasicNecessityDiscount) + "%"},
		{"Daily report parameters", params},
		{"Lucky number", formatAmount(s.lucky)},
	}

	var rows []string
	rows = append(rows, title, "")
	for _, it := range items {
		label := lipgloss.NewStyle().Width(28).Render(it[0])
		rows = append(rows, fmt.Sprintf("  %s %s", label, highlightStyle.Render(it[1])))
	}
	rows = append(rows, "", mutedStyle.Render("Press enter to edit settings"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// --- Input validators ---

func validateInt(minVal int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("enter a whole number")
		}
		if n < minVal {
			return fmt.Errorf("must be at least %d", minVal)
		}
		return nil
	}
}

func validateFloat(minVal float64) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("enter a number")
		}
		if n < minVal {
			return fmt.Errorf("must be at least %s", formatAmount(minVal))
		}
		return nil
	}
}

func validatePositive(s string) error {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("enter a number")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

func validatePercent(s string) error {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("enter a number")
	}
	if n < 0 || n > 100 {
		return fmt.Errorf("must be between 0 and 100")
	}
	return nil
}
