package models

// OutboxEntry is a story write made while disconnected (or that failed to
// reach the server), queued for replay.
//
// IDs are assigned by the store, monotonically increasing, never reused.
// An entry is eligible for replay iff Synced is false; a synced entry always
// carries a non-empty SyncedAt. Entries are retained as history after sync.
type OutboxEntry struct {
	ID          int64    `json:"id"`
	Description string   `json:"description"`
	PhotoBlob   []byte   `json:"photoBlob,omitempty"`
	PhotoRef    string   `json:"photo,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	Timestamp   string   `json:"timestamp"` // RFC3339, creation time
	Synced      bool     `json:"synced"`
	SyncedAt    string   `json:"syncedAt,omitempty"`
}
