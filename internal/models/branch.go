package models

import "time"

// Branch represents a named reference to a schema version
type Branch struct {
	Name      string    `json:"name"`
	VersionID string    `json:"version_id"`
	CreatedAt time.Time `json:"created_at"`
}
