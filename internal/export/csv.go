package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/flowbank/internal/store"
)

var csvHeader = []string{"ID", "Date", "Account", "Amount", "Reason", "Category", "Subcategory", "Essential", "Duration (s)", "Duration"}

// HistoryToCSV writes items, one row each, in the order given.
func HistoryToCSV(items []store.HistoryItem, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, it := range items {
		essential := ""
		if it.IsEssential != nil {
			essential = strconv.FormatBool(*it.IsEssential)
		}
		secs, dur := "", ""
		if it.Duration != nil {
			secs = strconv.FormatInt(*it.Duration, 10)
			dur = formatDuration(*it.Duration)
		}

		row := []string{
			it.ID,
			it.Date.Local().Format(time.RFC3339),
			string(it.Type),
			strconv.FormatFloat(it.Amount, 'f', -1, 64),
			it.Reason,
			it.Category,
			it.Subcategory,
			essential,
			secs,
			dur,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
