package store

import (
	"context"
	"time"

	"mobridge/internal/models"
)

// TaskStore abstracts task storage for the sync engine and the command
// handlers, so tests can run against isolated instances.
type TaskStore interface {
	TaskExists(id string) (bool, error)
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	GetTaskByRemoteID(ctx context.Context, remoteID string) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, update TaskUpdate) (*models.Task, error)
	SetRemoteMapping(ctx context.Context, id, remoteID, remoteIdentifier string, syncedAt time.Time) error
	MarkSynced(ctx context.Context, id string, syncedAt time.Time) error
	ApplyRemote(ctx context.Context, id string, issue *models.RemoteIssue, syncedAt time.Time) error
	DeleteTask(ctx context.Context, id string) (bool, error)
	ListTasks(ctx context.Context, filter ListFilter) ([]models.Task, error)
}

var _ TaskStore = (*Store)(nil)
