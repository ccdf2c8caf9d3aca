package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type shopItemRow struct {
	ID        string  `db:"id"`
	Name      string  `db:"name"`
	Cost      float64 `db:"cost"`
	CreatedAt string  `db:"created_at"`
}

func (r shopItemRow) toItem() ShopItem {
	return ShopItem{ID: r.ID, Name: r.Name, Cost: r.Cost, CreatedAt: parseTime(r.CreatedAt)}
}

func (s *Store) AddShopItem(ctx context.Context, name string, cost float64) (*ShopItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("shop item name must not be empty")
	}
	if cost < 0 {
		return nil, fmt.Errorf("shop item cost must not be negative, got %v", cost)
	}
	it := ShopItem{ID: uuid.New().String(), Name: name, Cost: cost, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shop_items (id, name, cost, created_at) VALUES (?, ?, ?, ?)`,
		it.ID, it.Name, it.Cost, formatTime(it.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert shop item: %w", err)
	}
	return s.GetShopItem(ctx, it.ID)
}

func (s *Store) GetShopItem(ctx context.Context, id string) (*ShopItem, error) {
	var row shopItemRow
	err := s.db.GetContext(ctx, &row, `SELECT id, name, cost, created_at FROM shop_items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get shop item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get shop item %s: %w", id, err)
	}
	it := row.toItem()
	return &it, nil
}

func (s *Store) ListShopItems(ctx context.Context) ([]ShopItem, error) {
	var rows []shopItemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, cost, created_at FROM shop_items ORDER BY cost, name`); err != nil {
		return nil, fmt.Errorf("list shop items: %w", err)
	}
	var items []ShopItem
	for _, r := range rows {
		items = append(items, r.toItem())
	}
	return items, nil
}

func (s *Store) DeleteShopItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shop_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shop item %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete shop item %s: %w", id, ErrNotFound)
	}
	return nil
}
