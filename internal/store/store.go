package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/sadopc/flowbank/internal/logger"
)

const currentVersion = 1

// ErrNotFound is returned when a row looked up by id does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type Store struct {
	db  *sqlx.DB
	log logger.Logger
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:", nil)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS tasks (
		id               TEXT PRIMARY KEY,
		display_name     TEXT NOT NULL,
		playlist_name    TEXT NOT NULL DEFAULT '',
		is_completed     INTEGER NOT NULL DEFAULT 0,
		time_spent       INTEGER NOT NULL DEFAULT 0,
		last_started_at  TEXT,
		completed_at     TEXT,
		is_flow_session  INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS playlists (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL UNIQUE,
		color       TEXT NOT NULL DEFAULT '#6C63FF',
		category    TEXT NOT NULL DEFAULT 'work',
		archived    INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rewards (
		id        TEXT PRIMARY KEY,
		value     INTEGER NOT NULL,
		currency  TEXT NOT NULL DEFAULT 'P'
	);

	CREATE TABLE IF NOT EXISTS accounts (
		kind   TEXT PRIMARY KEY,
		total  REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS history (
		id            TEXT PRIMARY KEY,
		type          TEXT NOT NULL,
		amount        REAL NOT NULL,
		reason        TEXT NOT NULL DEFAULT '',
		date          TEXT NOT NULL,
		category      TEXT NOT NULL DEFAULT '',
		subcategory   TEXT NOT NULL DEFAULT '',
		is_essential  INTEGER,
		duration      INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_history_date ON history(date);
	CREATE INDEX IF NOT EXISTS idx_history_type ON history(type, date);

	CREATE TABLE IF NOT EXISTS shop_items (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		cost        REAL NOT NULL,
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO accounts (kind, total) VALUES
		('balance',     0),
		('points',      0),
		('randomPicks', 0);

	INSERT OR IGNORE INTO settings (key, value) VALUES
		('conversion_rate',          '100'),
		('basic_necessity_discount', '20'),
		('min_time_block',           '15'),
		('min_points',               '1'),
		('max_time_block',           '15'),
		('max_points',               '3'),
		('progressive_interval',     '60'),
		('daily_report_parameters',  '[]'),
		('lucky_number',             '1');
	`
	_, err := s.db.Exec(ddl)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func formatNullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseNullTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseTime(*s)
	return &t
}
