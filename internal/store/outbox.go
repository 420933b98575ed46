package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/storyapp/storysync/internal/models"
)

// OutboxRepository is the queue of story writes awaiting remote confirmation.
// Entries are append-only; successful replay marks them synced but never
// deletes them, so the collection doubles as submission history.
type OutboxRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Add appends an entry and returns its store-assigned id. The timestamp and
// synced flag are set here; whatever the caller put in those fields is
// ignored.
func (r *OutboxRepository) Add(ctx context.Context, e *models.OutboxEntry) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox (description, photo_blob, photo_ref, lat, lon, timestamp, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, e.Description, e.PhotoBlob, e.PhotoRef, e.Lat, e.Lon, timestamp(r.now()))
	if err != nil {
		return 0, wrapConstraint(err, "failed to enqueue outbox entry")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read outbox entry id: %w", err)
	}
	return id, nil
}

// Get returns the entry with the given id, or nil when absent.
func (r *OutboxRepository) Get(ctx context.Context, id int64) (*models.OutboxEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, description, photo_blob, photo_ref, lat, lon, timestamp, synced, synced_at
		FROM outbox WHERE id = ?
	`, id)
	e, err := scanOutboxEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox entry %d: %w", id, err)
	}
	return e, nil
}

// GetAll returns every entry ordered by id.
func (r *OutboxRepository) GetAll(ctx context.Context) ([]models.OutboxEntry, error) {
	return r.query(ctx, `
		SELECT id, description, photo_blob, photo_ref, lat, lon, timestamp, synced, synced_at
		FROM outbox ORDER BY id
	`)
}

// Unsynced returns the entries eligible for replay, oldest first.
func (r *OutboxRepository) Unsynced(ctx context.Context) ([]models.OutboxEntry, error) {
	return r.query(ctx, `
		SELECT id, description, photo_blob, photo_ref, lat, lon, timestamp, synced, synced_at
		FROM outbox WHERE synced = 0 ORDER BY id
	`)
}

// MarkSynced stamps the entry as replayed. It is a no-op when the id no
// longer exists.
func (r *OutboxRepository) MarkSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox SET synced = 1, synced_at = ? WHERE id = ?
	`, timestamp(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry %d synced: %w", id, err)
	}
	return nil
}

// Delete removes an entry. Deleting a missing id succeeds silently.
func (r *OutboxRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete outbox entry %d: %w", id, err)
	}
	return nil
}

// Clear empties the collection.
func (r *OutboxRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM outbox`)
	if err != nil {
		return fmt.Errorf("failed to clear outbox: %w", err)
	}
	return nil
}

func (r *OutboxRepository) query(ctx context.Context, q string) ([]models.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	var result []models.OutboxEntry
	for rows.Next() {
		e, err := scanOutboxEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return result, nil
}

func scanOutboxEntry(scan func(dest ...any) error) (*models.OutboxEntry, error) {
	var e models.OutboxEntry
	var lat, lon sql.NullFloat64
	var synced int
	var syncedAt sql.NullString
	err := scan(&e.ID, &e.Description, &e.PhotoBlob, &e.PhotoRef, &lat, &lon, &e.Timestamp, &synced, &syncedAt)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		e.Lat = &lat.Float64
	}
	if lon.Valid {
		e.Lon = &lon.Float64
	}
	e.Synced = synced != 0
	if syncedAt.Valid {
		e.SyncedAt = syncedAt.String
	}
	return &e, nil
}
