package models

import "time"

// AuthRecord stores the sealed remote API credential and the default team
// scope. Exactly one record exists at a time; logout destroys it.
type AuthRecord struct {
	APIKeySealed  string    `json:"-"`
	DefaultTeamID string    `json:"default_team_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	UserName      string    `json:"user_name,omitempty"`
	UserEmail     string    `json:"user_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// WebhookConfig is one registered webhook endpoint on the remote tracker.
type WebhookConfig struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	TeamID        string    `json:"team_id"`
	Label         string    `json:"label,omitempty"`
	ResourceTypes []string  `json:"resource_types"`
	Secret        string    `json:"-"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
}
