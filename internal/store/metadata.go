package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/storyapp/storysync/internal/models"
)

// Metadata keys for process-wide flags kept outside the record collections.
const (
	MetaToken           = "token"
	MetaPushState       = "push_state"
	MetaNotifyToggle    = "notify_toggle"
	MetaLastSyncSummary = "last_sync_summary"
)

// MetadataRepository is a plain key-value table for small flags: the bearer
// token, push subscription state, and UI toggle state.
type MetadataRepository struct {
	db *sql.DB
}

// Get returns the value for key, or nil when the key is absent.
func (r *MetadataRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

// Set upserts the value for key.
func (r *MetadataRepository) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key succeeds silently.
func (r *MetadataRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

// Clear wipes every key.
func (r *MetadataRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata`)
	if err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

// PushState loads the persisted push subscription state. A missing key yields
// the zero state, not an error.
func (r *MetadataRepository) PushState(ctx context.Context) (models.PushSubscriptionState, error) {
	var state models.PushSubscriptionState
	raw, err := r.Get(ctx, MetaPushState)
	if err != nil {
		return state, err
	}
	if raw == nil {
		return state, nil
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.PushSubscriptionState{}, fmt.Errorf("failed to decode push state: %w", err)
	}
	return state, nil
}

// SetPushState persists the push subscription state.
func (r *MetadataRepository) SetPushState(ctx context.Context, state models.PushSubscriptionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode push state: %w", err)
	}
	return r.Set(ctx, MetaPushState, raw)
}
