package export

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sadopc/flowbank/internal/store"
)

func sampleHistory() []store.HistoryItem {
	now := time.Now().UTC()
	essential := true
	dur := int64(3600)

	return []store.HistoryItem{
		{
			ID:       "h1",
			Type:     store.KindPoints,
			Amount:   13,
			Reason:   "Task: essay",
			Date:     now.Add(-1 * time.Hour),
			Category: "Task",
			Duration: &dur,
		},
		{
			ID:          "h2",
			Type:        store.KindBalance,
			Amount:      -40,
			Reason:      "Daily report 2024-03-09: basic necessities",
			Date:        now.Add(-30 * time.Minute),
			Category:    "Anket",
			IsEssential: &essential,
		},
		{
			ID:     "h3",
			Type:   store.KindRandomPicks,
			Amount: -2,
			Reason: "Random reward roll x2",
			Date:   now,
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return records
}

// ============================================================
// CSV
// ============================================================

func TestHistoryToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")

	if err := HistoryToCSV(sampleHistory(), path); err != nil {
		t.Fatalf("HistoryToCSV: %v", err)
	}
	records := readCSV(t, path)

	if len(records) != 4 {
		t.Fatalf("expected 4 rows (1 header + 3 data), got %d", len(records))
	}
	for i, h := range csvHeader {
		if records[0][i] != h {
			t.Fatalf("header[%d] = %q, want %q", i, records[0][i], h)
		}
	}

	row := records[1]
	if row[0] != "h1" || row[2] != "points" || row[3] != "13" {
		t.Fatalf("unexpected first row %v", row)
	}
	if row[8] != "3600" || row[9] != "01:00:00" {
		t.Fatalf("duration columns = %q %q", row[8], row[9])
	}
	if row[7] != "" {
		t.Fatalf("essential should be empty when unset, got %q", row[7])
	}

	anket := records[2]
	if anket[3] != "-40" || anket[7] != "true" {
		t.Fatalf("unexpected anket row %v", anket)
	}
	if anket[8] != "" {
		t.Fatalf("duration should be empty when unset, got %q", anket[8])
	}
}

func TestHistoryToCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := HistoryToCSV(nil, path); err != nil {
		t.Fatal(err)
	}
	if records := readCSV(t, path); len(records) != 1 {
		t.Fatalf("expected 1 row (header only), got %d", len(records))
	}
}

func TestHistoryToCSVBadPath(t *testing.T) {
	if err := HistoryToCSV(nil, "/nonexistent/dir/file.csv"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestHistoryToCSVSpecialCharacters(t *testing.T) {
	items := []store.HistoryItem{{
		ID:     "x",
		Type:   store.KindBalance,
		Amount: -3.5,
		Reason: `Purchase: "Tea", green`,
		Date:   time.Now(),
	}}
	path := filepath.Join(t.TempDir(), "special.csv")
	if err := HistoryToCSV(items, path); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	if records[1][4] != `Purchase: "Tea", green` {
		t.Fatalf("reason mangled: %q", records[1][4])
	}
	if records[1][3] != "-3.5" {
		t.Fatalf("amount = %q, want -3.5", records[1][3])
	}
}

// ============================================================
// JSON
// ============================================================

func TestHistoryToJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.json")
	if err := HistoryToJSON(sampleHistory(), path); err != nil {
		t.Fatalf("HistoryToJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var result jsonExport
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if result.Count != 3 || len(result.Entries) != 3 {
		t.Fatalf("count = %d entries = %d, want 3", result.Count, len(result.Entries))
	}
	if _, err := time.Parse(time.RFC3339, result.ExportedAt); err != nil {
		t.Fatalf("exported_at is not valid RFC3339: %q", result.ExportedAt)
	}
	if result.Totals.Points != 13 || result.Totals.Balance != -40 || result.Totals.RandomPicks != -2 {
		t.Fatalf("unexpected totals %+v", result.Totals)
	}

	e := result.Entries[0]
	if e.ID != "h1" || e.Account != "points" {
		t.Fatalf("unexpected first entry %+v", e)
	}
	if e.DurationSec == nil || *e.DurationSec != 3600 || e.Duration != "01:00:00" {
		t.Fatalf("unexpected duration %v %q", e.DurationSec, e.Duration)
	}
	if result.Entries[1].IsEssential == nil || !*result.Entries[1].IsEssential {
		t.Fatal("expected essential flag on anket entry")
	}
	for _, e := range result.Entries {
		if _, err := time.Parse(time.RFC3339, e.Date); err != nil {
			t.Fatalf("date is not valid RFC3339: %q", e.Date)
		}
	}
}

func TestHistoryToJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := HistoryToJSON(nil, path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"entries": []`) {
		t.Fatalf("empty export should carry an empty entries array, got %s", data)
	}
}

func TestHistoryToJSONOmitsUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "omit.json")
	HistoryToJSON([]store.HistoryItem{{ID: "a", Type: store.KindPoints, Amount: 1, Date: time.Now()}}, path)
	data, _ := os.ReadFile(path)
	for _, key := range []string{"is_essential", "duration_seconds", "category"} {
		if strings.Contains(string(data), key) {
			t.Fatalf("expected %s to be omitted, got %s", key, data)
		}
	}
}

func TestHistoryToJSONBadPath(t *testing.T) {
	if err := HistoryToJSON(nil, "/nonexistent/dir/file.json"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

// ============================================================
// Backup
// ============================================================

func sampleSnapshot() *store.Snapshot {
	started := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	return &store.Snapshot{
		Version:    1,
		ExportedAt: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
		Tasks: []store.Task{{
			ID: "t1", DisplayName: "essay", TimeSpent: 60, LastStartedAt: &started, CreatedAt: started,
		}},
		Rewards:  []store.Reward{{ID: "r1", Value: 5, Currency: "P"}},
		Accounts: store.Accounts{Balance: 12.5, Points: 300, RandomPicks: 2},
		History:  sampleHistory(),
		Settings: []store.Setting{{Key: "lucky_number", Value: "2"}},
	}
}

func TestBackupRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowbank.bak")
	snap := sampleSnapshot()

	if err := WriteBackup(snap, path); err != nil {
		t.Fatalf("WriteBackup: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file should be renamed away")
	}

	got, err := ReadBackup(path)
	if err != nil {
		t.Fatalf("ReadBackup: %v", err)
	}
	if got.Accounts != snap.Accounts {
		t.Fatalf("accounts = %+v, want %+v", got.Accounts, snap.Accounts)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].LastStartedAt == nil || !got.Tasks[0].LastStartedAt.Equal(*snap.Tasks[0].LastStartedAt) {
		t.Fatalf("lastStartedAt not revived: %+v", got.Tasks)
	}
	if len(got.History) != 3 || got.History[1].IsEssential == nil {
		t.Fatalf("history not preserved: %+v", got.History)
	}
	if len(got.Settings) != 1 || got.Settings[0].Value != "2" {
		t.Fatalf("settings not preserved: %+v", got.Settings)
	}
}

func TestBackupIsCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowbank.bak")
	if err := WriteBackup(sampleSnapshot(), path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	// zstd frame magic
	if len(data) < 4 || data[0] != 0x28 || data[1] != 0xB5 || data[2] != 0x2F || data[3] != 0xFD {
		t.Fatalf("backup should start with a zstd frame, got % x", data[:min(len(data), 4)])
	}
}

func TestReadBackupMissing(t *testing.T) {
	snap, err := ReadBackup(filepath.Join(t.TempDir(), "missing.bak"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
	if snap != nil {
		t.Fatalf("missing backup should return no snapshot, got %+v", snap)
	}
}

func TestReadBackupCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.bak")
	os.WriteFile(path, []byte("definitely not zstd"), 0o644)
	if _, err := ReadBackup(path); err == nil {
		t.Fatal("expected error for corrupt backup")
	}
}

func TestWriteBackupBadPath(t *testing.T) {
	if err := WriteBackup(sampleSnapshot(), "/nonexistent/dir/file.bak"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

// ============================================================
// formatDuration (internal helper)
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "00:00:00"},
		{1, "00:00:01"},
		{60, "00:01:00"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
		{86400, "24:00:00"},
		{90061, "25:01:01"},
	}

	for _, tt := range tests {
		got := formatDuration(tt.secs)
		if got != tt.want {
			t.Fatalf("formatDuration(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
