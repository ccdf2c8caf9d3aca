package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const defaultCurrency = "P"

func (s *Store) AddReward(ctx context.Context, value int, currency string) (*Reward, error) {
	if value <= 0 {
		return nil, fmt.Errorf("reward value must be positive, got %d", value)
	}
	currency = strings.TrimSpace(currency)
	if currency == "" {
		currency = defaultCurrency
	}
	r := Reward{ID: uuid.New().String(), Value: value, Currency: currency}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (id, value, currency) VALUES (?, ?, ?)`, r.ID, r.Value, r.Currency)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return &r, nil
}

// ListRewards returns the catalog ordered by value.
func (s *Store) ListRewards(ctx context.Context) ([]Reward, error) {
	var rewards []Reward
	err := s.db.SelectContext(ctx, &rewards, `SELECT id, value, currency FROM rewards ORDER BY value, id`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

func (s *Store) DeleteReward(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete reward %s: %w", id, ErrNotFound)
	}
	return nil
}
