package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sadopc/flowbank/internal/logger"
)

type historyRow struct {
	ID          string      `db:"id"`
	Type        AccountKind `db:"type"`
	Amount      float64     `db:"amount"`
	Reason      string      `db:"reason"`
	Date        string      `db:"date"`
	Category    string      `db:"category"`
	Subcategory string      `db:"subcategory"`
	IsEssential *bool       `db:"is_essential"`
	Duration    *int64      `db:"duration"`
}

func (r historyRow) toItem() HistoryItem {
	return HistoryItem{
		ID:          r.ID,
		Type:        r.Type,
		Amount:      r.Amount,
		Reason:      r.Reason,
		Date:        parseTime(r.Date),
		Category:    r.Category,
		Subcategory: r.Subcategory,
		IsEssential: r.IsEssential,
		Duration:    r.Duration,
	}
}

const historyColumns = `id, type, amount, reason, date, category, subcategory, is_essential, duration`

func (s *Store) Accounts(ctx context.Context) (Accounts, error) {
	var a Accounts
	var rows []struct {
		Kind  AccountKind `db:"kind"`
		Total float64     `db:"total"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT kind, total FROM accounts`); err != nil {
		return a, fmt.Errorf("read accounts: %w", err)
	}
	for _, r := range rows {
		switch r.Kind {
		case KindBalance:
			a.Balance = r.Total
		case KindPoints:
			a.Points = r.Total
		case KindRandomPicks:
			a.RandomPicks = r.Total
		}
	}
	return a, nil
}

// ApplyEntries appends items to the history and adds each amount to its
// account, all in one transaction. Missing IDs are generated in place.
func (s *Store) ApplyEntries(ctx context.Context, items []HistoryItem) error {
	if len(items) == 0 {
		return nil
	}
	return s.withEntries(ctx, items, nil)
}

// FileDailyReport applies the entries of one daily report and moves
// last_anket_date to day in the same transaction, so a day is never booked
// twice or skipped.
func (s *Store) FileDailyReport(ctx context.Context, day string, items []HistoryItem) error {
	return s.withEntries(ctx, items, func(tx *sqlx.Tx) error {
		return setSetting(ctx, tx, keyLastAnketDate, day)
	})
}

// SettleTask applies the entries paying out task id and deletes the task in
// the same transaction, clearing the active pointer if it still names id.
// An unknown id applies nothing.
func (s *Store) SettleTask(ctx context.Context, id string, items []HistoryItem) error {
	return s.withEntries(ctx, items, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("settle task %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("settle task %s: %w", id, ErrNotFound)
		}
		var active string
		err = tx.GetContext(ctx, &active, `SELECT value FROM settings WHERE key = ?`, keyActiveTaskID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("settle task %s: read timer: %w", id, err)
		}
		if active != id {
			return nil
		}
		if err := setSetting(ctx, tx, keyActiveTaskID, ""); err != nil {
			return err
		}
		return setSetting(ctx, tx, keyTimerPaused, "0")
	})
}

func (s *Store) withEntries(ctx context.Context, items []HistoryItem, then func(tx *sqlx.Tx) error) error {
	for i := range items {
		if !items[i].Type.Valid() {
			return fmt.Errorf("apply entries: unknown account %q", items[i].Type)
		}
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply entries: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO history (`+historyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, string(it.Type), it.Amount, it.Reason, formatTime(it.Date),
			it.Category, it.Subcategory, it.IsEssential, it.Duration,
		)
		if err != nil {
			return fmt.Errorf("insert history %s: %w", it.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE accounts SET total = total + ? WHERE kind = ?`, it.Amount, string(it.Type))
		if err != nil {
			return fmt.Errorf("update account %s: %w", it.Type, err)
		}
	}
	if then != nil {
		if err := then(tx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListHistory returns matching items newest first.
func (s *Store) ListHistory(ctx context.Context, f HistoryFilter) ([]HistoryItem, error) {
	query := `SELECT ` + historyColumns + ` FROM history WHERE 1=1`
	var args []any

	if f.Type != nil {
		query += ` AND type = ?`
		args = append(args, string(*f.Type))
	}
	if f.Category != nil {
		query += ` AND category = ?`
		args = append(args, *f.Category)
	}
	if f.From != nil {
		query += ` AND date >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND date < ?`
		args = append(args, formatTime(*f.To))
	}
	query += ` ORDER BY date DESC, id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	var rows []historyRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	var items []HistoryItem
	for _, r := range rows {
		items = append(items, r.toItem())
	}
	return items, nil
}

// DeleteHistoryBefore removes history dated strictly before cutoff. Account
// totals are left untouched; the net of the removed amounts is added to the
// archived totals instead, so totals still reconcile against history.
func (s *Store) DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear history: %w", err)
	}
	defer tx.Rollback()

	var sums []struct {
		Type  AccountKind `db:"type"`
		Total float64     `db:"total"`
	}
	err = tx.SelectContext(ctx, &sums,
		`SELECT type, COALESCE(SUM(amount), 0) AS total FROM history WHERE date < ? GROUP BY type`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sum archived history: %w", err)
	}
	for _, sum := range sums {
		key := archivedKey(sum.Type)
		var raw string
		if err := tx.GetContext(ctx, &raw, `SELECT value FROM settings WHERE key = ?`, key); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("read %s: %w", key, err)
		}
		prev, _ := strconv.ParseFloat(raw, 64)
		if err := setSetting(ctx, tx, key, formatFloat(prev+sum.Total)); err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM history WHERE date < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func archivedKey(k AccountKind) string {
	return "archived_" + string(k)
}

// ArchivedTotals returns the net amounts of history removed by
// DeleteHistoryBefore, per account.
func (s *Store) ArchivedTotals(ctx context.Context) (Accounts, error) {
	var a Accounts
	for _, k := range []AccountKind{KindBalance, KindPoints, KindRandomPicks} {
		raw, err := s.GetSetting(ctx, archivedKey(k))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return a, err
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.log.Warnf(logger.TypeStore, "corrupt setting %s=%q, treating as 0", archivedKey(k), raw)
			continue
		}
		switch k {
		case KindBalance:
			a.Balance = f
		case KindPoints:
			a.Points = f
		case KindRandomPicks:
			a.RandomPicks = f
		}
	}
	return a, nil
}

// SumHistory returns the net of all history amounts per account.
func (s *Store) SumHistory(ctx context.Context) (Accounts, error) {
	var a Accounts
	var rows []struct {
		Type  AccountKind `db:"type"`
		Total float64     `db:"total"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT type, COALESCE(SUM(amount), 0) AS total FROM history GROUP BY type`)
	if err != nil {
		return a, fmt.Errorf("sum history: %w", err)
	}
	for _, r := range rows {
		switch r.Type {
		case KindBalance:
			a.Balance = r.Total
		case KindPoints:
			a.Points = r.Total
		case KindRandomPicks:
			a.RandomPicks = r.Total
		}
	}
	return a, nil
}

// DailyTotals groups history of one account by UTC day within [from, to).
func (s *Store) DailyTotals(ctx context.Context, kind AccountKind, from, to time.Time) ([]DailyTotal, error) {
	var totals []DailyTotal
	err := s.db.SelectContext(ctx, &totals, `
		SELECT substr(date, 1, 10) AS day, type, COALESCE(SUM(amount), 0) AS total
		FROM history
		WHERE type = ? AND date >= ? AND date < ?
		GROUP BY day, type
		ORDER BY day`,
		string(kind), formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	return totals, nil
}
