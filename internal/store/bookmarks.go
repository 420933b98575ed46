package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/storyapp/storysync/internal/models"
)

// BookmarkRepository keeps the user's saved stories. Bookmarks come and go on
// explicit toggles; List always returns the most recently bookmarked first.
type BookmarkRepository struct {
	db  *sql.DB
	now func() time.Time
}

// IsBookmarked reports whether the story id has a bookmark.
func (r *BookmarkRepository) IsBookmarked(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookmarks WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check bookmark %s: %w", id, err)
	}
	return n > 0, nil
}

// Toggle removes the bookmark when present, otherwise adds one stamped now.
// It returns whether the story is bookmarked afterwards.
func (r *BookmarkRepository) Toggle(ctx context.Context, s *models.Story) (bool, error) {
	bookmarked, err := r.IsBookmarked(ctx, s.ID)
	if err != nil {
		return false, err
	}
	if bookmarked {
		if err := r.Remove(ctx, s.ID); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := r.add(ctx, s); err != nil {
		return false, err
	}
	return true, nil
}

func (r *BookmarkRepository) add(ctx context.Context, s *models.Story) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, name, description, photo_url, created_at, lat, lon, bookmarked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET bookmarked_at = excluded.bookmarked_at
	`, s.ID, s.Name, s.Description, s.PhotoURL, s.CreatedAt, s.Lat, s.Lon, timestamp(r.now()))
	if err != nil {
		return fmt.Errorf("failed to add bookmark %s: %w", s.ID, err)
	}
	return nil
}

// Remove deletes a bookmark. Removing a missing id succeeds silently.
func (r *BookmarkRepository) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove bookmark %s: %w", id, err)
	}
	return nil
}

// List returns every bookmark, most recently bookmarked first.
func (r *BookmarkRepository) List(ctx context.Context) ([]models.Bookmark, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, photo_url, created_at, lat, lon, bookmarked_at
		FROM bookmarks ORDER BY bookmarked_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	var result []models.Bookmark
	for rows.Next() {
		var b models.Bookmark
		var lat, lon sql.NullFloat64
		err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.PhotoURL, &b.CreatedAt, &lat, &lon, &b.BookmarkedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark row: %w", err)
		}
		if lat.Valid {
			b.Lat = &lat.Float64
		}
		if lon.Valid {
			b.Lon = &lon.Float64
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmark rows: %w", err)
	}
	return result, nil
}

// Count returns the number of bookmarks.
func (r *BookmarkRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookmarks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bookmarks: %w", err)
	}
	return n, nil
}

// Clear empties the collection.
func (r *BookmarkRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bookmarks`)
	if err != nil {
		return fmt.Errorf("failed to clear bookmarks: %w", err)
	}
	return nil
}
