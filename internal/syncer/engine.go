// Package syncer reconciles local tasks with remote issues across the
// push/pull/bidirectional matrix, detecting conflicts instead of guessing.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mobridge/internal/linear"
	"mobridge/internal/models"
	"mobridge/internal/store"
)

// RemoteClient is the slice of the Linear client the engine needs.
type RemoteClient interface {
	Issue(ctx context.Context, id string) (*models.RemoteIssue, error)
	AllIssues(ctx context.Context, filter linear.IssueFilter, max int) ([]models.RemoteIssue, error)
	CreateIssue(ctx context.Context, input linear.IssueCreate) (*models.RemoteIssue, error)
	UpdateIssue(ctx context.Context, id string, input linear.IssueUpdate) (*models.RemoteIssue, error)
}

// Options selects what one sync invocation reconciles.
type Options struct {
	Direction models.SyncDirection
	Filter    string
	TeamID    string
	IssueIDs  []string
	States    []models.StateType
	Limit     int
	DryRun    bool
	Force     bool
}

// Engine applies sync operations between the task store and the remote.
type Engine struct {
	store  store.TaskStore
	remote RemoteClient
	teamID string
	logger *slog.Logger
	now    func() time.Time
}

// New creates a sync engine. teamID is the default team scope used when
// options do not name one.
func New(taskStore store.TaskStore, remote RemoteClient, teamID string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  taskStore,
		remote: remote,
		teamID: teamID,
		logger: logger.With("component", "syncer"),
		now:    time.Now,
	}
}

// Sync runs one bounded reconciliation pass and reports what happened.
// Per-item remote failures (including rate limiting) are accumulated and
// do not abort the batch.
func (e *Engine) Sync(ctx context.Context, opts Options) (*models.SyncResult, error) {
	if !models.IsValidDirection(opts.Direction) {
		return nil, fmt.Errorf("invalid direction: %q", opts.Direction)
	}

	result := &models.SyncResult{}
	switch opts.Direction {
	case models.DirectionPush:
		if err := e.push(ctx, opts, result, nil); err != nil {
			return nil, err
		}
	case models.DirectionPull:
		if err := e.pull(ctx, opts, result, nil); err != nil {
			return nil, err
		}
	case models.DirectionBoth:
		// Remote ids touched by the push leg are skipped by the pull leg
		// so one invocation never double-counts an item.
		handled := make(map[string]struct{})
		if err := e.push(ctx, opts, result, handled); err != nil {
			return nil, err
		}
		if err := e.pull(ctx, opts, result, handled); err != nil {
			return nil, err
		}
	}

	e.logger.Info("sync finished",
		"direction", opts.Direction,
		"dry_run", opts.DryRun,
		"added", result.Added,
		"updated", result.Updated,
		"conflicts", result.Conflicts,
		"failed", len(result.Errors),
	)
	return result, nil
}

// SyncIssue pulls a single remote issue, used by the webhook ingestion
// path. Both ingress paths share the same identity and conflict rules.
func (e *Engine) SyncIssue(ctx context.Context, issueID string) (*models.SyncResult, error) {
	if issueID == "" {
		return nil, fmt.Errorf("issue id is required")
	}
	return e.Sync(ctx, Options{
		Direction: models.DirectionPull,
		IssueIDs:  []string{issueID},
	})
}

func (e *Engine) push(ctx context.Context, opts Options, result *models.SyncResult, handled map[string]struct{}) error {
	teamID := opts.TeamID
	if teamID == "" {
		teamID = e.teamID
	}

	tasks, err := e.localScope(ctx, opts)
	if err != nil {
		return err
	}

	for i := range tasks {
		task := &tasks[i]
		if !task.Mapped() {
			if teamID == "" {
				return fmt.Errorf("team id is required to create remote issues")
			}
			e.pushCreate(ctx, task, teamID, opts, result, handled)
			continue
		}
		e.pushUpdate(ctx, task, opts, result, handled)
	}
	return nil
}

func (e *Engine) pushCreate(ctx context.Context, task *models.Task, teamID string, opts Options, result *models.SyncResult, handled map[string]struct{}) {
	if opts.DryRun {
		result.Added++
		result.Details.Added = append(result.Details.Added, models.SyncItem{Local: task.ID})
		return
	}

	issue, err := e.remote.CreateIssue(ctx, linear.IssueCreate{
		TeamID:      teamID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		Estimate:    task.Estimate,
	})
	if err != nil {
		e.recordFailure(result, task.ID, "", err)
		return
	}
	if err := e.store.SetRemoteMapping(ctx, task.ID, issue.ID, issue.Identifier, e.now()); err != nil {
		e.recordFailure(result, task.ID, issue.ID, err)
		return
	}

	result.Added++
	result.Details.Added = append(result.Details.Added, models.SyncItem{Local: task.ID, Remote: issue.Identifier})
	if handled != nil {
		handled[issue.ID] = struct{}{}
	}
}

func (e *Engine) pushUpdate(ctx context.Context, task *models.Task, opts Options, result *models.SyncResult, handled map[string]struct{}) {
	issue, err := e.remote.Issue(ctx, task.RemoteID)
	if err != nil {
		e.recordFailure(result, task.ID, task.RemoteID, err)
		return
	}

	switch classify(task, issue, opts.Force) {
	case outcomeConflict:
		result.Conflicts++
		result.Details.Conflicted = append(result.Details.Conflicted, models.SyncItem{
			Local:  task.ID,
			Remote: issue.Identifier,
			Reason: "both sides changed since last sync",
		})
		if handled != nil {
			handled[task.RemoteID] = struct{}{}
		}
	case outcomeLocalNewer, outcomeForced:
		if !opts.DryRun {
			_, err := e.remote.UpdateIssue(ctx, task.RemoteID, linear.IssueUpdate{
				Title:       &task.Title,
				Description: &task.Description,
				Priority:    task.Priority,
				Estimate:    task.Estimate,
			})
			if err != nil {
				e.recordFailure(result, task.ID, task.RemoteID, err)
				return
			}
			if err := e.store.MarkSynced(ctx, task.ID, e.now()); err != nil {
				e.recordFailure(result, task.ID, task.RemoteID, err)
				return
			}
		}
		result.Updated++
		result.Details.Updated = append(result.Details.Updated, models.SyncItem{Local: task.ID, Remote: issue.Identifier})
		if handled != nil {
			handled[task.RemoteID] = struct{}{}
		}
	case outcomeRemoteNewer:
		result.Details.Skipped = append(result.Details.Skipped, models.SyncItem{
			Local:  task.ID,
			Remote: issue.Identifier,
			Reason: "remote is newer; pull to update the local task",
		})
	case outcomeUnchanged:
		result.Details.Skipped = append(result.Details.Skipped, models.SyncItem{
			Local:  task.ID,
			Remote: issue.Identifier,
			Reason: "up to date",
		})
	}
}

func (e *Engine) pull(ctx context.Context, opts Options, result *models.SyncResult, handled map[string]struct{}) error {
	issues, err := e.remoteScope(ctx, opts)
	if err != nil {
		return err
	}

	for i := range issues {
		issue := &issues[i]
		if handled != nil {
			if _, ok := handled[issue.ID]; ok {
				continue
			}
		}

		task, err := e.store.GetTaskByRemoteID(ctx, issue.ID)
		if err != nil {
			return err
		}
		if task == nil {
			e.pullCreate(ctx, issue, opts, result)
			continue
		}
		e.pullUpdate(ctx, task, issue, opts, result)
	}
	return nil
}

func (e *Engine) pullCreate(ctx context.Context, issue *models.RemoteIssue, opts Options, result *models.SyncResult) {
	if opts.DryRun {
		result.Added++
		result.Details.Added = append(result.Details.Added, models.SyncItem{Remote: issue.Identifier})
		return
	}

	id, err := store.GenerateTaskID(e.store.TaskExists)
	if err != nil {
		e.recordFailure(result, "", issue.ID, err)
		return
	}
	now := e.now().UTC()
	task := &models.Task{
		ID:               id,
		Title:            issue.Title,
		Description:      issue.Description,
		Priority:         issue.Priority,
		Estimate:         issue.Estimate,
		RemoteID:         issue.ID,
		RemoteIdentifier: issue.Identifier,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastSyncedAt:     &now,
	}
	if err := e.store.CreateTask(ctx, task); err != nil {
		e.recordFailure(result, id, issue.ID, err)
		return
	}

	result.Added++
	result.Details.Added = append(result.Details.Added, models.SyncItem{Local: id, Remote: issue.Identifier})
}

func (e *Engine) pullUpdate(ctx context.Context, task *models.Task, issue *models.RemoteIssue, opts Options, result *models.SyncResult) {
	switch classify(task, issue, opts.Force) {
	case outcomeConflict:
		result.Conflicts++
		result.Details.Conflicted = append(result.Details.Conflicted, models.SyncItem{
			Local:  task.ID,
			Remote: issue.Identifier,
			Reason: "both sides changed since last sync",
		})
	case outcomeRemoteNewer, outcomeForced:
		if !opts.DryRun {
			if err := e.store.ApplyRemote(ctx, task.ID, issue, e.now()); err != nil {
				e.recordFailure(result, task.ID, issue.ID, err)
				return
			}
		}
		result.Updated++
		result.Details.Updated = append(result.Details.Updated, models.SyncItem{Local: task.ID, Remote: issue.Identifier})
	case outcomeLocalNewer:
		result.Details.Skipped = append(result.Details.Skipped, models.SyncItem{
			Local:  task.ID,
			Remote: issue.Identifier,
			Reason: "local is newer; push to update the remote issue",
		})
	case outcomeUnchanged:
		result.Details.Skipped = append(result.Details.Skipped, models.SyncItem{
			Local:  task.ID,
			Remote: issue.Identifier,
			Reason: "up to date",
		})
	}
}

func (e *Engine) localScope(ctx context.Context, opts Options) ([]models.Task, error) {
	filter := store.ListFilter{Limit: opts.Limit}
	if opts.Filter != "" {
		filter.TitleContains = opts.Filter
	} else {
		filter.SelectedOnly = true
	}
	return e.store.ListTasks(ctx, filter)
}

func (e *Engine) remoteScope(ctx context.Context, opts Options) ([]models.RemoteIssue, error) {
	teamID := opts.TeamID
	if teamID == "" {
		teamID = e.teamID
	}

	if len(opts.IssueIDs) > 0 {
		issues := make([]models.RemoteIssue, 0, len(opts.IssueIDs))
		for _, id := range opts.IssueIDs {
			issue, err := e.remote.Issue(ctx, id)
			if err != nil {
				return nil, err
			}
			issues = append(issues, *issue)
		}
		return issues, nil
	}

	return e.remote.AllIssues(ctx, linear.IssueFilter{
		TeamID:     teamID,
		StateTypes: opts.States,
		Query:      opts.Filter,
	}, opts.Limit)
}

func (e *Engine) recordFailure(result *models.SyncResult, localID, remoteID string, err error) {
	item := localID
	if item == "" {
		item = remoteID
	}
	if linear.IsRateLimited(err) {
		e.logger.Warn("rate limited; continuing with remaining items", "item", item)
	}
	result.Errors = append(result.Errors, models.SyncError{Item: item, Message: err.Error()})
	result.Details.Failed = append(result.Details.Failed, models.SyncItem{
		Local:  localID,
		Remote: remoteID,
		Reason: err.Error(),
	})
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeLocalNewer
	outcomeRemoteNewer
	outcomeConflict
	outcomeForced
)

// classify decides what to do with a mapped task/issue pair. Both sides
// changed since the last recorded sync means conflict; equal timestamps
// tie-break as conflict rather than guessing a winner. Force collapses a
// conflict into the calling direction's win.
func classify(task *models.Task, issue *models.RemoteIssue, force bool) outcome {
	var lastSynced time.Time
	if task.LastSyncedAt != nil {
		lastSynced = *task.LastSyncedAt
	}

	localChanged := task.UpdatedAt.After(lastSynced)
	remoteChanged := issue.UpdatedAt.After(lastSynced)

	switch {
	case localChanged && remoteChanged:
		if force {
			return outcomeForced
		}
		return outcomeConflict
	case localChanged:
		return outcomeLocalNewer
	case remoteChanged:
		return outcomeRemoteNewer
	default:
		return outcomeUnchanged
	}
}
