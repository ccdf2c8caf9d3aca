package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sadopc/flowbank/internal/logger"
)

// Snapshot reads the full store content. Playlists are reference data and
// are not part of a backup.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Version: currentVersion, ExportedAt: time.Now().UTC()}
	var err error

	if snap.Tasks, err = s.ListTasks(ctx, true); err != nil {
		return nil, err
	}
	if snap.Rewards, err = s.ListRewards(ctx); err != nil {
		return nil, err
	}
	if snap.Accounts, err = s.Accounts(ctx); err != nil {
		return nil, err
	}
	if snap.History, err = s.ListHistory(ctx, HistoryFilter{}); err != nil {
		return nil, err
	}
	if snap.ShopItems, err = s.ListShopItems(ctx); err != nil {
		return nil, err
	}
	if snap.Settings, err = s.GetAllSettings(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

// RestoreSnapshot replaces the store content with snap in one transaction.
// Account totals are taken from the snapshot as-is, not recomputed from
// history, since history may have been archived before the backup.
func (s *Store) RestoreSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("restore snapshot: nil snapshot")
	}
	if snap.Version < 1 {
		return fmt.Errorf("restore snapshot: missing version, not a flowbank backup")
	}
	if snap.Version > currentVersion {
		return fmt.Errorf("restore snapshot: version %d is newer than supported %d", snap.Version, currentVersion)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"tasks", "rewards", "history", "shop_items", "settings"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, t := range snap.Tasks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.DisplayName, t.PlaylistName, t.IsCompleted, t.TimeSpent,
			formatNullTime(t.LastStartedAt), formatNullTime(t.CompletedAt), t.IsFlowSession,
			formatTime(t.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("restore task %s: %w", t.ID, err)
		}
	}
	for _, r := range snap.Rewards {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rewards (id, value, currency) VALUES (?, ?, ?)`, r.ID, r.Value, r.Currency); err != nil {
			return fmt.Errorf("restore reward %s: %w", r.ID, err)
		}
	}
	for _, it := range snap.History {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO history (`+historyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, string(it.Type), it.Amount, it.Reason, formatTime(it.Date),
			it.Category, it.Subcategory, it.IsEssential, it.Duration,
		)
		if err != nil {
			return fmt.Errorf("restore history %s: %w", it.ID, err)
		}
	}
	for _, it := range snap.ShopItems {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shop_items (id, name, cost, created_at) VALUES (?, ?, ?, ?)`,
			it.ID, it.Name, it.Cost, formatTime(it.CreatedAt)); err != nil {
			return fmt.Errorf("restore shop item %s: %w", it.ID, err)
		}
	}
	for _, st := range snap.Settings {
		if err := setSetting(ctx, tx, st.Key, st.Value); err != nil {
			return err
		}
	}
	for _, k := range []AccountKind{KindBalance, KindPoints, KindRandomPicks} {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET total = ? WHERE kind = ?`, snap.Accounts.Get(k), string(k)); err != nil {
			return fmt.Errorf("restore account %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}
	s.log.Infof(logger.TypeStore, "restored snapshot: %d tasks, %d history items", len(snap.Tasks), len(snap.History))
	return nil
}
