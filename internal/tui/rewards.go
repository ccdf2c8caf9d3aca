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
	"github.com/sadopc/flowbank/internal/ledger"
	"github.com/sadopc/flowbank/internal/reward"
	"github.com/sadopc/flowbank/internal/store"
)

type rewardsSection int

const (
	sectionCatalog rewardsSection = iota
	sectionShop
)

type rewardsForm int

const (
	rewardsFormNone rewardsForm = iota
	rewardsFormCatalog
	rewardsFormShop
	rewardsFormRoll
	rewardsFormExchange
)

type rewardsModel struct {
	ctx    context.Context
	eng    *engine.Engine
	width  int
	height int

	accounts store.Accounts
	rewards  []store.Reward
	odds     []reward.Weighted
	shop     []store.ShopItem

	section rewardsSection
	cursor  int

	formType rewardsForm
	form     *huh.Form
	fieldA   *string
	fieldB   *string
}

func newRewardsModel(ctx context.Context, e *engine.Engine) rewardsModel {
	a, b := "", ""
	return rewardsModel{ctx: ctx, eng: e, fieldA: &a, fieldB: &b}
}

func (r *rewardsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

func (r rewardsModel) formActive() bool {
	return r.formType != rewardsFormNone && r.form != nil
}

type rewardsDataMsg struct {
	accounts store.Accounts
	rewards  []store.Reward
	odds     []reward.Weighted
	shop     []store.ShopItem
}

func (r rewardsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		acc, err := r.eng.Ledger.Accounts(r.ctx)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		rewards, _ := r.eng.Store.ListRewards(r.ctx)
		shop, _ := r.eng.Store.ListShopItems(r.ctx)
		var odds []reward.Weighted
		if table, err := r.eng.Table(r.ctx); err == nil {
			odds = table.Entries()
		}
		return rewardsDataMsg{accounts: acc, rewards: rewards, odds: odds, shop: shop}
	}
}

func (r rewardsModel) listLen() int {
	if r.section == sectionShop {
		return len(r.shop)
	}
	return len(r.rewards)
}

func (r rewardsModel) update(msg tea.Msg) (rewardsModel, tea.Cmd) {
	if msg, ok := msg.(rewardsDataMsg); ok {
		r.accounts = msg.accounts
		r.rewards = msg.rewards
		r.odds = msg.odds
		r.shop = msg.shop
		if r.cursor >= r.listLen() {
			r.cursor = max(0, r.listLen()-1)
		}
		return r, nil
	}

	if r.formActive() {
		return r.updateForm(msg)
	}

	switch msg := msg.(type) {
	case rollSettledMsg:
		return r, r.refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left), key.Matches(msg, keys.Right):
			if r.section == sectionCatalog {
				r.section = sectionShop
			} else {
				r.section = sectionCatalog
			}
			r.cursor = 0
		case key.Matches(msg, keys.Up):
			if r.cursor > 0 {
				r.cursor--
			}
		case key.Matches(msg, keys.Down):
			if r.cursor < r.listLen()-1 {
				r.cursor++
			}
		case key.Matches(msg, keys.New):
			if r.section == sectionShop {
				return r.showForm(rewardsFormShop)
			}
			return r.showForm(rewardsFormCatalog)
		case key.Matches(msg, keys.Delete):
			return r, r.deleteSelected()
		case key.Matches(msg, keys.Buy):
			if r.section == sectionShop && r.cursor < len(r.shop) {
				return r, r.buy(r.shop[r.cursor])
			}
		case key.Matches(msg, keys.Roll):
			if r.accounts.RandomPicks < 1 {
				return r, errStatus(reward.ErrNoRandomPicks)
			}
			return r.showForm(rewardsFormRoll)
		case key.Matches(msg, keys.Exchange):
			return r.showForm(rewardsFormExchange)
		}
	}
	return r, nil
}

func (r rewardsModel) deleteSelected() tea.Cmd {
	var err error
	switch {
	case r.section == sectionShop && r.cursor < len(r.shop):
		err = r.eng.Store.DeleteShopItem(r.ctx, r.shop[r.cursor].ID)
	case r.section == sectionCatalog && r.cursor < len(r.rewards):
		err = r.eng.Store.DeleteReward(r.ctx, r.rewards[r.cursor].ID)
	default:
		return nil
	}
	if err != nil {
		return errStatus(err)
	}
	return r.refresh()
}

func (r rewardsModel) buy(item store.ShopItem) tea.Cmd {
	return func() tea.Msg {
		err := r.eng.Purchase(r.ctx, item.ID)
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return statusMsg{text: fmt.Sprintf("Not enough balance for %s (%s)", item.Name, formatAmount(item.Cost)), isError: true}
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return purchaseDoneMsg{name: item.Name}
	}
}

type purchaseDoneMsg struct {
	name string
}

func (r rewardsModel) showForm(kind rewardsForm) (rewardsModel, tea.Cmd) {
	*r.fieldA = ""
	*r.fieldB = ""
	r.formType = kind

	var group *huh.Group
	switch kind {
	case rewardsFormCatalog:
		*r.fieldB = "P"
		group = huh.NewGroup(
			huh.NewInput().Title("Reward Value").Value(r.fieldA).Validate(validateInt(1)),
			huh.NewInput().Title("Currency").Value(r.fieldB),
		)
	case rewardsFormShop:
		group = huh.NewGroup(
			huh.NewInput().Title("Item Name").Value(r.fieldA).Validate(notBlank("item name")),
			huh.NewInput().Title("Cost").Value(r.fieldB).Validate(validateFloat(0)),
		)
	case rewardsFormRoll:
		*r.fieldA = "1"
		group = huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Rolls to spend (%s RP available)", formatAmount(r.accounts.RandomPicks))).
				Value(r.fieldA).
				Validate(validateInt(1)),
		)
	case rewardsFormExchange:
		group = huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Points to exchange (%s P available)", formatAmount(r.accounts.Points))).
				Value(r.fieldA).
				Validate(validatePositive),
		)
	}

	r.form = huh.NewForm(group).WithShowHelp(true).WithShowErrors(true)
	return r, r.form.Init()
}

func (r rewardsModel) updateForm(msg tea.Msg) (rewardsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			r.formType = rewardsFormNone
			r.form = nil
			return r, nil
		}
	}

	form, cmd := r.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		r.form = f
	}
	if r.form.State != huh.StateCompleted {
		return r, cmd
	}

	kind := r.formType
	r.formType = rewardsFormNone
	a, b := strings.TrimSpace(*r.fieldA), strings.TrimSpace(*r.fieldB)

	switch kind {
	case rewardsFormCatalog:
		v, _ := strconv.Atoi(a)
		if _, err := r.eng.Store.AddReward(r.ctx, v, b); err != nil {
			return r, errStatus(err)
		}
	case rewardsFormShop:
		cost, _ := strconv.ParseFloat(b, 64)
		if _, err := r.eng.Store.AddShopItem(r.ctx, a, cost); err != nil {
			return r, errStatus(err)
		}
	case rewardsFormRoll:
		n, _ := strconv.Atoi(a)
		return r, startRollCmd(r.ctx, r.eng, n)
	case rewardsFormExchange:
		amount, _ := strconv.ParseFloat(a, 64)
		return r, r.exchange(amount)
	}
	return r, r.refresh()
}

func startRollCmd(ctx context.Context, e *engine.Engine, n int) tea.Cmd {
	return func() tea.Msg {
		gen, err := e.StartRandomRoll(ctx, n)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return rollOpenMsg{gen: gen, title: fmt.Sprintf("Random Roll x%d", gen.Count())}
	}
}

func (r rewardsModel) exchange(amount float64) tea.Cmd {
	return func() tea.Msg {
		gained, err := r.eng.Ledger.ExchangePoints(r.ctx, amount)
		if errors.Is(err, ledger.ErrInsufficientPoints) {
			return statusMsg{text: "Not enough points", isError: true}
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return exchangeDoneMsg{points: amount, gained: gained}
	}
}

type exchangeDoneMsg struct {
	points float64
	gained float64
}

func (r rewardsModel) view() string {
	w := r.width - 4

	if r.formActive() {
		title := map[rewardsForm]string{
			rewardsFormCatalog:  "Add Reward",
			rewardsFormShop:     "Add Shop Item",
			rewardsFormRoll:     "Random Roll",
			rewardsFormExchange: "Exchange Points",
		}[r.formType]
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", r.form.View())
		return panelStyle.Width(w).Render(content)
	}

	half := max(20, w/2-1)
	left := r.renderCatalog(half)
	right := r.renderShop(half)
	lists := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	nav := mutedStyle.Render("  ←/→: catalog/shop  n: add  d: delete  b: buy  r: random roll  x: exchange")
	return lipgloss.JoinVertical(lipgloss.Left, renderAccounts(r.accounts, w), lists, nav)
}

func renderAccounts(acc store.Accounts, w int) string {
	cell := func(label, value string, style lipgloss.Style) string {
		return lipgloss.JoinVertical(lipgloss.Center, mutedStyle.Render(label), style.Bold(true).Render(value))
	}
	cells := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(w/3-2).Render(cell("Balance", formatAmount(acc.Balance), highlightStyle)),
		lipgloss.NewStyle().Width(w/3-2).Render(cell("Points", formatAmount(acc.Points)+" P", goldStyle)),
		lipgloss.NewStyle().Width(w/3-2).Render(cell("Random Picks", formatAmount(acc.RandomPicks)+" RP", accentStyle)),
	)
	return panelStyle.Width(w).Render(cells)
}

func (r rewardsModel) renderCatalog(w int) string {
	style := panelStyle
	if r.section == sectionCatalog {
		style = activePanelStyle
	}
	rows := []string{titleStyle.Render("Reward Catalog"), ""}
	if len(r.rewards) == 0 {
		rows = append(rows, mutedStyle.Render("Empty. Every roll draws 1."))
		return style.Width(w).Render(strings.Join(rows, "\n"))
	}

	var total float64
	weights := make(map[int]float64, len(r.odds))
	for _, o := range r.odds {
		weights[o.Value] = o.Weight
		total += o.Weight
	}
	for i, rw := range r.rewards {
		cursor := "  "
		item := normalItemStyle
		if r.section == sectionCatalog && i == r.cursor {
			cursor = "> "
			item = selectedItemStyle
		}
		chance := ""
		if total > 0 {
			chance = mutedStyle.Render(fmt.Sprintf("  %5.1f%%", weights[rw.Value]/total*100))
		}
		rows = append(rows, item.Render(fmt.Sprintf("%s%4d %s", cursor, rw.Value, rw.Currency))+chance)
	}
	return style.Width(w).Render(strings.Join(rows, "\n"))
}

func (r rewardsModel) renderShop(w int) string {
	style := panelStyle
	if r.section == sectionShop {
		style = activePanelStyle
	}
	rows := []string{titleStyle.Render("Shop"), ""}
	if len(r.shop) == 0 {
		rows = append(rows, mutedStyle.Render("Nothing for sale yet."))
		return style.Width(w).Render(strings.Join(rows, "\n"))
	}
	for i, it := range r.shop {
		cursor := "  "
		item := normalItemStyle
		if r.section == sectionShop && i == r.cursor {
			cursor = "> "
			item = selectedItemStyle
		}
		price := formatAmount(it.Cost)
		if it.Cost > r.accounts.Balance {
			price = errorStyle.Render(price)
		} else {
			price = successStyle.Render(price)
		}
		rows = append(rows, item.Render(fmt.Sprintf("%s%-20s ", cursor, it.Name))+price)
	}
	return style.Width(w).Render(strings.Join(rows, "\n"))
}
