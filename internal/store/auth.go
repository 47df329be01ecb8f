package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mobridge/internal/models"
)

// SaveAuth upserts the singleton auth record.
func (s *Store) SaveAuth(ctx context.Context, record *models.AuthRecord) error {
	if record == nil {
		return fmt.Errorf("auth record is required")
	}
	if strings.TrimSpace(record.APIKeySealed) == "" {
		return fmt.Errorf("sealed api key is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth (id, api_key_sealed, default_team_id, user_id, user_name, user_email, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			api_key_sealed = excluded.api_key_sealed,
			default_team_id = excluded.default_team_id,
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			user_email = excluded.user_email,
			updated_at = excluded.updated_at
	`,
		record.APIKeySealed,
		nullIfEmpty(record.DefaultTeamID),
		nullIfEmpty(record.UserID),
		nullIfEmpty(record.UserName),
		nullIfEmpty(record.UserEmail),
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	)
	return err
}

// GetAuth returns the auth record, or nil when not authenticated.
func (s *Store) GetAuth(ctx context.Context) (*models.AuthRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT api_key_sealed, default_team_id, user_id, user_name, user_email, created_at, updated_at
		FROM auth WHERE id = 1
	`)

	var record models.AuthRecord
	var teamID, userID, userName, userEmail sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&record.APIKeySealed, &teamID, &userID, &userName, &userEmail, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	record.DefaultTeamID = teamID.String
	record.UserID = userID.String
	record.UserName = userName.String
	record.UserEmail = userEmail.String

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	parsedUpdated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	record.CreatedAt = parsedCreated
	record.UpdatedAt = parsedUpdated
	return &record, nil
}

// SetDefaultTeam updates the default team scope on the auth record.
func (s *Store) SetDefaultTeam(ctx context.Context, teamID string, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE auth SET default_team_id = ?, updated_at = ? WHERE id = 1
	`, nullIfEmpty(teamID), formatTime(now))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("not authenticated")
	}
	return nil
}

// DeleteAuth destroys the auth record. Returns whether a record existed.
func (s *Store) DeleteAuth(ctx context.Context) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM auth WHERE id = 1")
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
