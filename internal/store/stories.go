package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/storyapp/storysync/internal/dbx"
	"github.com/storyapp/storysync/internal/models"
)

// StoryRepository holds the locally cached copies of remote story records.
type StoryRepository struct {
	db *sql.DB
}

// Add inserts a story and fails with common.ErrConstraint if the id exists.
func (r *StoryRepository) Add(ctx context.Context, s *models.Story) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stories (id, name, description, photo_url, created_at, lat, lon)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Name, s.Description, s.PhotoURL, s.CreatedAt, s.Lat, s.Lon)
	return wrapConstraint(err, "failed to add story")
}

// Put upserts a story by id; it never fails on a duplicate key.
func (r *StoryRepository) Put(ctx context.Context, s *models.Story) error {
	return putStory(ctx, r.db, s)
}

func putStory(ctx context.Context, db dbx.DBTX, s *models.Story) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stories (id, name, description, photo_url, created_at, lat, lon)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			description = excluded.description,
			photo_url = excluded.photo_url,
			created_at = excluded.created_at,
			lat = excluded.lat,
			lon = excluded.lon
	`, s.ID, s.Name, s.Description, s.PhotoURL, s.CreatedAt, s.Lat, s.Lon)
	if err != nil {
		return fmt.Errorf("failed to upsert story: %w", err)
	}
	return nil
}

// SaveAll overwrites the cached copies of the given stories in a single
// transaction. Used after every fresh list fetch.
func (r *StoryRepository) SaveAll(ctx context.Context, stories []models.Story) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for i := range stories {
			if err := putStory(ctx, tx, &stories[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the story with the given id, or nil when absent. Absence is not
// an error.
func (r *StoryRepository) Get(ctx context.Context, id string) (*models.Story, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, photo_url, created_at, lat, lon
		FROM stories WHERE id = ?
	`, id)
	s, err := scanStory(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story %s: %w", id, err)
	}
	return s, nil
}

// GetAll returns every cached story. Order is not guaranteed; callers that
// need an order must sort explicitly.
func (r *StoryRepository) GetAll(ctx context.Context) ([]models.Story, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, photo_url, created_at, lat, lon FROM stories
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	var result []models.Story
	for rows.Next() {
		s, err := scanStory(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate story rows: %w", err)
	}
	return result, nil
}

// Delete removes a story by id. Deleting a missing id succeeds silently.
func (r *StoryRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete story %s: %w", id, err)
	}
	return nil
}

// Clear empties the collection.
func (r *StoryRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stories`)
	if err != nil {
		return fmt.Errorf("failed to clear stories: %w", err)
	}
	return nil
}

// Search returns stories whose name or description contains query,
// case-insensitively.
func (r *StoryRepository) Search(ctx context.Context, query string) ([]models.Story, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var matched []models.Story
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.Description), q) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// SortField selects the story attribute Sort orders by.
type SortField string

const (
	SortByCreatedAt   SortField = "createdAt"
	SortByName        SortField = "name"
	SortByDescription SortField = "description"
	SortByID          SortField = "id"
)

// SortOrder selects ascending or descending order.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Sort returns all cached stories ordered by the given field. The sort is
// stable: records with equal keys keep their relative order, so repeated
// renders of the same data are deterministic.
func (r *StoryRepository) Sort(ctx context.Context, field SortField, order SortOrder) ([]models.Story, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	SortStories(all, field, order)
	return all, nil
}

// SortStories orders stories in place by field. Equal keys never reorder
// relative to each other.
func SortStories(stories []models.Story, field SortField, order SortOrder) {
	key := func(s *models.Story) string {
		switch field {
		case SortByName:
			return s.Name
		case SortByDescription:
			return s.Description
		case SortByID:
			return s.ID
		default:
			return s.CreatedAt
		}
	}
	sort.SliceStable(stories, func(i, j int) bool {
		if order == Descending {
			return key(&stories[i]) > key(&stories[j])
		}
		return key(&stories[i]) < key(&stories[j])
	})
}

func scanStory(scan func(dest ...any) error) (*models.Story, error) {
	var s models.Story
	var lat, lon sql.NullFloat64
	if err := scan(&s.ID, &s.Name, &s.Description, &s.PhotoURL, &s.CreatedAt, &lat, &lon); err != nil {
		return nil, err
	}
	if lat.Valid {
		s.Lat = &lat.Float64
	}
	if lon.Valid {
		s.Lon = &lon.Float64
	}
	return &s, nil
}
