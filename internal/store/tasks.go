package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mobridge/internal/models"
)

// ListFilter narrows ListTasks results.
type ListFilter struct {
	SelectedOnly  bool
	Mapped        *bool
	TitleContains string
	Limit         int
}

// TaskUpdate carries mutable task fields; nil pointers leave fields as-is.
type TaskUpdate struct {
	Title          *string
	Description    *string
	Priority       *int
	Estimate       *int
	FeatureContext *string
	Selected       *bool
}

const taskColumns = `id, title, description, priority, estimate, feature_context, selected,
	remote_id, remote_identifier, created_at, updated_at, last_synced_at`

// TaskExists checks whether a task exists by id.
func (s *Store) TaskExists(id string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM tasks WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTask inserts a task. The id must already be set.
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, title, description, priority, estimate, feature_context, selected,
			remote_id, remote_identifier, created_at, updated_at, last_synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.Title,
		nullIfEmpty(task.Description),
		nullInt(task.Priority),
		nullInt(task.Estimate),
		nullIfEmpty(task.FeatureContext),
		boolToInt(task.Selected),
		nullIfEmpty(task.RemoteID),
		nullIfEmpty(task.RemoteIdentifier),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
		nullTime(task.LastSyncedAt),
	)
	return err
}

// GetTask returns a task by id, or nil when absent.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks WHERE id = ?
	`, id)
	return scanTask(row)
}

// GetTaskByRemoteID returns the task mapped to a remote issue id, or nil.
func (s *Store) GetTaskByRemoteID(ctx context.Context, remoteID string) (*models.Task, error) {
	if strings.TrimSpace(remoteID) == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks WHERE remote_id = ?
	`, remoteID)
	return scanTask(row)
}

// UpdateTask updates mutable fields on a task. The updated_at timestamp is
// bumped so it strictly increases across mutations even when the wall
// clock stands still.
func (s *Store) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*models.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var prevRaw string
	err = tx.QueryRowContext(ctx, "SELECT updated_at FROM tasks WHERE id = ?", id).Scan(&prevRaw)
	if err == sql.ErrNoRows {
		err = fmt.Errorf("task not found: %s", id)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	prev, err := parseTime(prevRaw)
	if err != nil {
		return nil, err
	}
	updatedAt := nextUpdatedAt(prev, time.Now())

	set := []string{}
	args := []any{}

	if update.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Description != nil {
		set = append(set, "description = ?")
		args = append(args, nullIfEmpty(*update.Description))
	}
	if update.Priority != nil {
		set = append(set, "priority = ?")
		args = append(args, *update.Priority)
	}
	if update.Estimate != nil {
		set = append(set, "estimate = ?")
		args = append(args, *update.Estimate)
	}
	if update.FeatureContext != nil {
		set = append(set, "feature_context = ?")
		args = append(args, nullIfEmpty(*update.FeatureContext))
	}
	if update.Selected != nil {
		set = append(set, "selected = ?")
		args = append(args, boolToInt(*update.Selected))
	}

	set = append(set, "updated_at = ?")
	args = append(args, formatTime(updatedAt))
	args = append(args, id)

	if _, err = tx.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(set, ", ")+" WHERE id = ?", args...); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetTask(ctx, id)
}

// SetRemoteMapping records the remote issue linked to a task and stamps the
// sync instant. It does not bump updated_at: recording a mapping is sync
// bookkeeping, not a content mutation.
func (s *Store) SetRemoteMapping(ctx context.Context, id, remoteID, remoteIdentifier string, syncedAt time.Time) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET remote_id = ?, remote_identifier = ?, last_synced_at = ?
		WHERE id = ?
	`, nullIfEmpty(remoteID), nullIfEmpty(remoteIdentifier), formatTime(syncedAt), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// MarkSynced stamps last_synced_at on a task.
func (s *Store) MarkSynced(ctx context.Context, id string, syncedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET last_synced_at = ? WHERE id = ?
	`, formatTime(syncedAt), id)
	return err
}

// ApplyRemote overwrites task content from a remote issue inside one
// transaction, stamping both updated_at and last_synced_at.
func (s *Store) ApplyRemote(ctx context.Context, id string, issue *models.RemoteIssue, syncedAt time.Time) error {
	if issue == nil {
		return fmt.Errorf("issue is required")
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, estimate = ?,
		    remote_id = ?, remote_identifier = ?, updated_at = ?, last_synced_at = ?
		WHERE id = ?
	`,
		issue.Title,
		nullIfEmpty(issue.Description),
		nullInt(issue.Priority),
		nullInt(issue.Estimate),
		issue.ID,
		nullIfEmpty(issue.Identifier),
		formatTime(syncedAt),
		formatTime(syncedAt),
		id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListTasks returns tasks matching the filter, oldest first.
func (s *Store) ListTasks(ctx context.Context, filter ListFilter) ([]models.Task, error) {
	where := []string{}
	args := []any{}

	if filter.SelectedOnly {
		where = append(where, "selected = 1")
	}
	if filter.Mapped != nil {
		if *filter.Mapped {
			where = append(where, "remote_id IS NOT NULL")
		} else {
			where = append(where, "remote_id IS NULL")
		}
	}
	if filter.TitleContains != "" {
		where = append(where, "title LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(filter.TitleContains)+"%")
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		if task == nil {
			continue
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func nextUpdatedAt(prev, now time.Time) time.Time {
	now = now.UTC()
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Millisecond)
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*models.Task, error) {
	var task models.Task
	var description, featureContext, remoteID, remoteIdentifier sql.NullString
	var priority, estimate sql.NullInt64
	var selected int
	var createdAt, updatedAt string
	var lastSyncedAt sql.NullString

	if err := scanner.Scan(
		&task.ID,
		&task.Title,
		&description,
		&priority,
		&estimate,
		&featureContext,
		&selected,
		&remoteID,
		&remoteIdentifier,
		&createdAt,
		&updatedAt,
		&lastSyncedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	task.Description = description.String
	task.FeatureContext = featureContext.String
	task.RemoteID = remoteID.String
	task.RemoteIdentifier = remoteIdentifier.String
	task.Selected = selected != 0
	if priority.Valid {
		value := int(priority.Int64)
		task.Priority = &value
	}
	if estimate.Valid {
		value := int(estimate.Int64)
		task.Estimate = &value
	}

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	parsedUpdated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	task.CreatedAt = parsedCreated
	task.UpdatedAt = parsedUpdated
	if lastSyncedAt.Valid {
		parsedSynced, err := parseTime(lastSyncedAt.String)
		if err != nil {
			return nil, err
		}
		task.LastSyncedAt = &parsedSynced
	}

	return &task, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
