// Package models defines the records persisted by the local store and the
// payload shapes exchanged with the remote API and push gateway.
package models

// Story is the locally cached copy of a remote story record. It is written
// wholesale whenever a fresh list is fetched and never partially patched.
type Story struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PhotoURL    string   `json:"photoUrl"`
	CreatedAt   string   `json:"createdAt"` // RFC3339
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

// Bookmark is a user-curated reference to a Story.
type Bookmark struct {
	Story
	BookmarkedAt string `json:"bookmarkedAt"` // RFC3339, set at bookmark time
}
