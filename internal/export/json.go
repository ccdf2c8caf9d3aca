package export

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sadopc/flowbank/internal/store"
)

type jsonExport struct {
	ExportedAt string      `json:"exported_at"`
	Count      int         `json:"count"`
	Totals     jsonTotals  `json:"totals"`
	Entries    []jsonEntry `json:"entries"`
}

// jsonTotals is the net of the exported entries per account, not the
// account balances.
type jsonTotals struct {
	Balance     float64 `json:"balance"`
	Points      float64 `json:"points"`
	RandomPicks float64 `json:"random_picks"`
}

type jsonEntry struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Account     string  `json:"account"`
	Amount      float64 `json:"amount"`
	Reason      string  `json:"reason"`
	Category    string  `json:"category,omitempty"`
	Subcategory string  `json:"subcategory,omitempty"`
	IsEssential *bool   `json:"is_essential,omitempty"`
	DurationSec *int64  `json:"duration_seconds,omitempty"`
	Duration    string  `json:"duration,omitempty"`
}

func HistoryToJSON(items []store.HistoryItem, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(items),
		Entries:    make([]jsonEntry, 0, len(items)),
	}

	for _, it := range items {
		switch it.Type {
		case store.KindBalance:
			export.Totals.Balance += it.Amount
		case store.KindPoints:
			export.Totals.Points += it.Amount
		case store.KindRandomPicks:
			export.Totals.RandomPicks += it.Amount
		}
		e := jsonEntry{
			ID:          it.ID,
			Date:        it.Date.Local().Format(time.RFC3339),
			Account:     string(it.Type),
			Amount:      it.Amount,
			Reason:      it.Reason,
			Category:    it.Category,
			Subcategory: it.Subcategory,
			IsEssential: it.IsEssential,
			DurationSec: it.Duration,
		}
		if it.Duration != nil {
			e.Duration = formatDuration(*it.Duration)
		}
		export.Entries = append(export.Entries, e)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
