package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type playlistRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Color     string `db:"color"`
	Category  string `db:"category"`
	Archived  bool   `db:"archived"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r playlistRow) toPlaylist() Playlist {
	return Playlist{
		ID:        r.ID,
		Name:      r.Name,
		Color:     r.Color,
		Category:  r.Category,
		Archived:  r.Archived,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

const playlistColumns = `id, name, color, category, archived, created_at, updated_at`

func (s *Store) CreatePlaylist(ctx context.Context, name, color, category string) (*Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("playlist name must not be empty")
	}
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (name, color, category, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		name, color, category, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert playlist: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetPlaylist(ctx, id)
}

func (s *Store) GetPlaylist(ctx context.Context, id int64) (*Playlist, error) {
	var row playlistRow
	err := s.db.GetContext(ctx, &row, `SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get playlist %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist %d: %w", id, err)
	}
	p := row.toPlaylist()
	return &p, nil
}

func (s *Store) ListPlaylists(ctx context.Context, includeArchived bool) ([]Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY name`

	var rows []playlistRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	var playlists []Playlist
	for _, r := range rows {
		playlists = append(playlists, r.toPlaylist())
	}
	return playlists, nil
}

func (s *Store) UpdatePlaylist(ctx context.Context, id int64, name, color, category string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE playlists SET name = ?, color = ?, category = ?, updated_at = ? WHERE id = ?`,
		name, color, category, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update playlist %d: %w", id, err)
	}
	return nil
}

func (s *Store) ArchivePlaylist(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE playlists SET archived = 1, updated_at = ? WHERE id = ?`, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("archive playlist %d: %w", id, err)
	}
	return nil
}

// ListPlaylistTasks returns the open tasks filed under the playlist name.
// The link is by label only, so renaming a playlist orphans its tasks.
func (s *Store) ListPlaylistTasks(ctx context.Context, name string) ([]Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+taskColumns+` FROM tasks WHERE playlist_name = ? AND is_completed = 0 ORDER BY created_at, id`, name)
	if err != nil {
		return nil, fmt.Errorf("list playlist tasks: %w", err)
	}
	var tasks []Task
	for _, r := range rows {
		tasks = append(tasks, r.toTask())
	}
	return tasks, nil
}
