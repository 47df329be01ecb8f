package models

import "time"

// Task represents a single local task tracked by mobridge.
type Task struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Priority         *int       `json:"priority,omitempty"`
	Estimate         *int       `json:"estimate,omitempty"`
	FeatureContext   string     `json:"feature_context,omitempty"`
	Selected         bool       `json:"selected"`
	RemoteID         string     `json:"remote_id,omitempty"`
	RemoteIdentifier string     `json:"remote_identifier,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastSyncedAt     *time.Time `json:"last_synced_at,omitempty"`
}

// Mapped reports whether the task is linked to a remote issue.
func (t *Task) Mapped() bool {
	return t != nil && t.RemoteID != ""
}
