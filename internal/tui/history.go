package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/flowbank/internal/engine"
	"github.com/sadopc/flowbank/internal/store"
)

var historyKinds = []store.AccountKind{store.KindPoints, store.KindBalance, store.KindRandomPicks}

const recentLimit = 12

type historyModel struct {
	ctx    context.Context
	eng    *engine.Engine
	now    func() time.Time
	width  int
	height int

	kind   int
	offset int // 7-day blocks back from today

	totals []store.DailyTotal
	recent []store.HistoryItem

	chart barchart.Model
}

func newHistoryModel(ctx context.Context, e *engine.Engine, now func() time.Time) historyModel {
	return historyModel{
		ctx:   ctx,
		eng:   e,
		now:   now,
		chart: barchart.New(60, 12),
	}
}

func (h *historyModel) setSize(w, hgt int) {
	h.width = w
	h.height = hgt
}

func (h historyModel) account() store.AccountKind {
	return historyKinds[h.kind]
}

type historyDataMsg struct {
	totals []store.DailyTotal
	recent []store.HistoryItem
}

type archiveClearedMsg struct {
	removed int64
}

// dateRange is the 7 UTC days ending today, shifted back by offset weeks.
func (h historyModel) dateRange() (time.Time, time.Time) {
	now := h.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := today.AddDate(0, 0, 1-7*h.offset)
	return end.AddDate(0, 0, -7), end
}

func (h historyModel) refresh() tea.Cmd {
	return func() tea.Msg {
		from, to := h.dateRange()
		kind := h.account()
		totals, err := h.eng.Store.DailyTotals(h.ctx, kind, from, to)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		recent, err := h.eng.Ledger.History(h.ctx, store.HistoryFilter{Type: &kind, From: &from, To: &to, Limit: recentLimit})
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return historyDataMsg{totals: totals, recent: recent}
	}
}

func (h historyModel) clearArchive() tea.Cmd {
	return func() tea.Msg {
		n, err := h.eng.ClearArchive(h.ctx)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return archiveClearedMsg{removed: n}
	}
}

func (h historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case historyDataMsg:
		h.totals = msg.totals
		h.recent = msg.recent
		h.buildChart()
		return h, nil

	case archiveClearedMsg:
		return h, h.refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			h.offset++
			return h, h.refresh()
		case key.Matches(msg, keys.Right):
			if h.offset > 0 {
				h.offset--
			}
			return h, h.refresh()
		case key.Matches(msg, keys.Up), key.Matches(msg, keys.Down):
			step := 1
			if key.Matches(msg, keys.Up) {
				step = len(historyKinds) - 1
			}
			h.kind = (h.kind + step) % len(historyKinds)
			return h, h.refresh()
		case key.Matches(msg, keys.Archive):
			return h, h.clearArchive()
		}
	}
	return h, nil
}

func (h *historyModel) buildChart() {
	chartWidth := max(20, h.width-8)
	chartHeight := 12
	if h.height > 30 {
		chartHeight = 16
	}
	h.chart = barchart.New(chartWidth, chartHeight)

	byDay := make(map[string]float64, len(h.totals))
	for _, t := range h.totals {
		byDay[t.Date] = t.Total
	}

	from, to := h.dateRange()
	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		total := byDay[d.Format(time.DateOnly)]
		value := barchart.BarValue{Name: "earned", Value: total, Style: lipgloss.NewStyle().Foreground(colorSuccess)}
		if total < 0 {
			value = barchart.BarValue{Name: "spent", Value: math.Abs(total), Style: lipgloss.NewStyle().Foreground(colorError)}
		}
		if total == 0 {
			value.Style = lipgloss.NewStyle().Foreground(colorSubtle)
		}
		bars = append(bars, barchart.BarData{Label: d.Format("Mon 02"), Values: []barchart.BarValue{value}})
	}

	h.chart.PushAll(bars)
	h.chart.Draw()
}

func (h historyModel) view() string {
	w := h.width - 4

	var tabs []string
	for i, k := range historyKinds {
		if i == h.kind {
			tabs = append(tabs, activeTabStyle.Render(string(k)))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(string(k)))
		}
	}
	kindTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	from, to := h.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s - %s", from.Format("Jan 02"), to.AddDate(0, 0, -1).Format("Jan 02, 2006")))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("History"), "  ", kindTabs, "  ", dateLabel,
	)

	legend := successStyle.Render("● earned") + "  " + errorStyle.Render("● spent")
	nav := mutedStyle.Render("  ←/→: navigate weeks  ↑/↓: switch account  a: clear archive  e: export")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", h.chart.View(), "", "  "+legend, "", h.renderRecent(w), "", nav,
		),
	)
}

func (h historyModel) renderRecent(w int) string {
	if len(h.recent) == 0 {
		return mutedStyle.Render("  No entries for this period")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-16s %10s  %-10s %s", "Date", "Amount", "Category", "Reason")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 64))))

	for _, it := range h.recent {
		amount := formatAmount(it.Amount)
		if it.Amount < 0 {
			amount = errorStyle.Render(fmt.Sprintf("%10s", amount))
		} else {
			amount = successStyle.Render(fmt.Sprintf("%10s", "+"+amount))
		}
		rows = append(rows, fmt.Sprintf("  %-16s %s  %-10s %s",
			it.Date.Local().Format("2006-01-02 15:04"), amount, it.Category, it.Reason,
		))
	}
	return strings.Join(rows, "\n")
}
