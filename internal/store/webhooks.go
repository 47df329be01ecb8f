package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"mobridge/internal/models"
)

// SaveWebhook inserts a webhook registration.
func (s *Store) SaveWebhook(ctx context.Context, hook *models.WebhookConfig) error {
	if hook == nil {
		return fmt.Errorf("webhook is required")
	}
	if hook.ID == "" {
		return fmt.Errorf("webhook id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhooks (id, url, team_id, label, resource_types, secret, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		hook.ID,
		hook.URL,
		hook.TeamID,
		nullIfEmpty(hook.Label),
		strings.Join(hook.ResourceTypes, ","),
		hook.Secret,
		boolToInt(hook.Enabled),
		formatTime(hook.CreatedAt),
	)
	return err
}

// GetWebhook returns a webhook registration by id, or nil.
func (s *Store) GetWebhook(ctx context.Context, id string) (*models.WebhookConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, team_id, label, resource_types, secret, enabled, created_at
		FROM webhooks WHERE id = ?
	`, id)
	return scanWebhook(row)
}

// ListWebhooks returns all webhook registrations, oldest first.
func (s *Store) ListWebhooks(ctx context.Context) ([]models.WebhookConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, team_id, label, resource_types, secret, enabled, created_at
		FROM webhooks ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hooks := make([]models.WebhookConfig, 0)
	for rows.Next() {
		hook, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		if hook == nil {
			continue
		}
		hooks = append(hooks, *hook)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hooks, nil
}

// FindWebhookByScope returns an existing registration for the same team and
// URL, or nil. Used to warn on duplicate registrations.
func (s *Store) FindWebhookByScope(ctx context.Context, teamID, url string) (*models.WebhookConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, team_id, label, resource_types, secret, enabled, created_at
		FROM webhooks WHERE team_id = ? AND url = ? LIMIT 1
	`, teamID, url)
	return scanWebhook(row)
}

// DeleteWebhook removes a registration by id.
func (s *Store) DeleteWebhook(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM webhooks WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanWebhook(scanner interface {
	Scan(dest ...any) error
}) (*models.WebhookConfig, error) {
	var hook models.WebhookConfig
	var label sql.NullString
	var resourceTypes string
	var enabled int
	var createdAt string

	if err := scanner.Scan(&hook.ID, &hook.URL, &hook.TeamID, &label, &resourceTypes, &hook.Secret, &enabled, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	hook.Label = label.String
	hook.Enabled = enabled != 0
	if resourceTypes != "" {
		hook.ResourceTypes = strings.Split(resourceTypes, ",")
	}

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	hook.CreatedAt = parsedCreated
	return &hook, nil
}
