package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mobridge/internal/linear"
	"mobridge/internal/models"
	"mobridge/internal/store"
)

// fakeRemote is an in-memory RemoteClient.
type fakeRemote struct {
	issues      map[string]*models.RemoteIssue
	nextID      int
	createErr   error
	createCalls int
	updateCalls int
	now         func() time.Time
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		issues: make(map[string]*models.RemoteIssue),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (f *fakeRemote) Issue(_ context.Context, id string) (*models.RemoteIssue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue not found: %s", id)
	}
	copied := *issue
	return &copied, nil
}

func (f *fakeRemote) AllIssues(_ context.Context, filter linear.IssueFilter, max int) ([]models.RemoteIssue, error) {
	out := make([]models.RemoteIssue, 0, len(f.issues))
	for _, issue := range f.issues {
		out = append(out, *issue)
	}
	// Deterministic order by identifier.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Identifier < out[i].Identifier {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (f *fakeRemote) CreateIssue(_ context.Context, input linear.IssueCreate) (*models.RemoteIssue, error) {
	f.createCalls++
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return nil, err
	}
	f.nextID++
	now := f.now()
	issue := &models.RemoteIssue{
		ID:          fmt.Sprintf("issue-%d", f.nextID),
		Identifier:  fmt.Sprintf("ENG-%d", f.nextID),
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		Estimate:    input.Estimate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.issues[issue.ID] = issue
	return issue, nil
}

func (f *fakeRemote) UpdateIssue(_ context.Context, id string, input linear.IssueUpdate) (*models.RemoteIssue, error) {
	f.updateCalls++
	issue, ok := f.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue not found: %s", id)
	}
	if input.Title != nil {
		issue.Title = *input.Title
	}
	if input.Description != nil {
		issue.Description = *input.Description
	}
	if input.Priority != nil {
		issue.Priority = input.Priority
	}
	if input.Estimate != nil {
		issue.Estimate = input.Estimate
	}
	issue.UpdatedAt = f.now()
	copied := *issue
	return &copied, nil
}

func testEngine(t *testing.T) (*Engine, *store.Store, *fakeRemote) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	remote := newFakeRemote()
	engine := New(st, remote, "team-1", nil)
	return engine, st, remote
}

func createLocalTask(t *testing.T, st *store.Store, id, title string, selected bool) *models.Task {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	task := &models.Task{
		ID:        id,
		Title:     title,
		Selected:  selected,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task %s: %v", id, err)
	}
	return task
}

func TestPushCreatesRemoteIssueAndRecordsMapping(t *testing.T) {
	engine, st, remote := testEngine(t)
	ctx := context.Background()

	priority := 2
	task := createLocalTask(t, st, "mo-push00", "Fix login bug", true)
	if _, err := st.UpdateTask(ctx, task.ID, store.TaskUpdate{Priority: &priority}); err != nil {
		t.Fatalf("set priority: %v", err)
	}

	result, err := engine.Sync(ctx, Options{Direction: models.DirectionPush})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("expected added == 1, got %d", result.Added)
	}
	if len(result.Details.Added) != 1 || result.Details.Added[0].Local != "mo-push00" {
		t.Fatalf("unexpected added details: %+v", result.Details.Added)
	}

	got, err := st.GetTask(ctx, "mo-push00")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Mapped() {
		t.Fatal("task must be mapped after push")
	}
	if got.LastSyncedAt == nil {
		t.Fatal("last_synced_at must be stamped after push")
	}

	// A pull scoped to the new remote id performs zero additional creates.
	pulled, err := engine.Sync(ctx, Options{Direction: models.DirectionPull, IssueIDs: []string{got.RemoteID}})
	if err != nil {
		t.Fatalf("scoped pull: %v", err)
	}
	if pulled.Added != 0 {
		t.Fatalf("scoped pull must not create, added == %d", pulled.Added)
	}
	if remote.createCalls != 1 {
		t.Fatalf("expected exactly 1 remote create, got %d", remote.createCalls)
	}
}

func TestPushThenPullDoesNotDuplicate(t *testing.T) {
	engine, st, _ := testEngine(t)
	ctx := context.Background()

	createLocalTask(t, st, "mo-round0", "Round trip", true)

	if _, err := engine.Sync(ctx, Options{Direction: models.DirectionPush}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if _, err := engine.Sync(ctx, Options{Direction: models.DirectionPull}); err != nil {
		t.Fatalf("pull: %v", err)
	}

	tasks, err := st.ListTasks(ctx, store.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected exactly 1 local task after round trip, got %d", len(tasks))
	}
}

func TestPullCreatesLocalTask(t *testing.T) {
	engine, st, remote := testEngine(t)
	ctx := context.Background()

	priority := 1
	now := time.Now().UTC()
	remote.issues["issue-9"] = &models.RemoteIssue{
		ID:          "issue-9",
		Identifier:  "ENG-9",
		Title:       "Remote only",
		Description: "imported",
		Priority:    &priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	result, err := engine.Sync(ctx, Options{Direction: models.DirectionPull})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("expected added == 1, got %d", result.Added)
	}

	task, err := st.GetTaskByRemoteID(ctx, "issue-9")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if task == nil {
		t.Fatal("expected local task for remote issue")
	}
	if task.Title != "Remote only" || task.Priority == nil || *task.Priority != 1 {
		t.Fatalf("remote content not copied: %+v", task)
	}
}

func TestConflictReportedNotApplied(t *testing.T) {
	engine, st, remote := testEngine(t)
	ctx := context.Background()

	createLocalTask(t, st, "mo-conf00", "Conflicted", true)
	syncedAt := time.Now().UTC().Add(-time.Hour)
	if err := st.SetRemoteMapping(ctx, "mo-conf00", "issue-5", "ENG-5", syncedAt); err != nil {
		t.Fatalf("map: %v", err)
	}
	// Both sides changed after the recorded sync instant.
	title := "Local edit"
	if _, err := st.UpdateTask(ctx, "mo-conf00", store.TaskUpdate{Title: &title}); err != nil {
		t.Fatalf("local edit: %v", err)
	}
	remote.issues["issue-5"] = &models.RemoteIssue{
		ID:         "issue-5",
		Identifier: "ENG-5",
		Title:      "Remote edit",
		UpdatedAt:  time.Now().UTC(),
	}

	result, err := engine.Sync(ctx, Options{Direction: models.DirectionPush})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if result.Conflicts != 1 {
		t.Fatalf("expected conflicts == 1, got %d", result.Conflicts)
	}
	if result.Updated != 0 {
		t.Fatalf("conflict must not count as updated, got %d", result.Updated)
	}
	if remote.updateCalls != 0 {
		t.Fatal("conflict must not mutate the remote")
	}
	if len(result.Details.Conflicted) != 1 {
		t.Fatalf("expected conflict detail, got %+v", result.Details)
	}

	// Force collapses the conflict into the push direction's win.
	forced, err := engine.Sync(ctx, Options{Direction: models.DirectionPush, Force: true})
	if err != nil {
		t.Fatalf("forced push: %v", err)
	}
	if forced.Conflicts != 0 || forced.Updated != 1 {
		t.Fatalf("forced push should update, got %+v", forced)
	}
	if remote.issues["issue-5"].Title != "Local edit" {
		t.Fatalf("forced push must apply local title, got %q", remote.issues["issue-5"].Title)
	}
}

func TestEqualTimestampsTieBreakAsConflict(t *testing.T) {
	engine, st, remote := testEngine(t)
	ctx := context.Background()

	createLocalTask(t, st, "mo-tie000", "Tied", true)
	syncedAt := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	if err := st.SetRemoteMapping(ctx, "mo-tie000", "issue-6", "ENG-6", syncedAt); err != nil {
		t.Fatalf("map: %v", err)
	}
	title := "Tied local"
	updated, err := st.UpdateTask(ctx, "mo-tie000", store.TaskUpdate{Title: &title})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	remote.issues["issue-6"] = &models.RemoteIssue{
		ID:         "issue-6",
		Identifier: "ENG-6",
		Title:      "Tied remote",
		UpdatedAt:  updated.UpdatedAt,
	}

	result, err := engine.Sync(ctx, Options{Direction: models.DirectionPull})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if result.Conflicts != 1 || result.Updated != 0 {
		t.Fatalf("equal timestamps must report a conflict, got %+v", result)
	}
}

func TestDryRunMatchesRealClassification(t *testing.T) {
	engine, st, remote := testEngine(t)
	ctx := context.Background()

	createLocalTask(t, st, "mo-dry000", "Unpushed local", true)
	now := time.Now().UTC()
	remote.issues["issue-7"] = &models.RemoteIssue{
		ID:         "issue-7",
		Identifier: "ENG-7",
		Title:      "Unpulled remote",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	dry, err := engine.Sync(ctx, Options{Direction: models.DirectionBoth, DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	real, err := engine.Sync(ctx, Options{Direction: models.DirectionBoth})
	if err != nil {
		t.Fatalf("real run: %v", err)
	}

	if dry.Added != real.Added || dry.Updated != real.Updated || dry.Conflicts != real.Conflicts {
		t.Fatalf("dry run %+v diverges from real run %+v", dry, real)
	}
	if dry.Added != 2 {
		t.Fatalf("expected 2 additions (one per side), got %d", dry.Added)
	}

	// Dry run must not have mutated anything.
	tasks, err := st.ListTasks(ctx, store.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 local tasks after real run, got %d", len(tasks))
	}
}

func TestBothDirectionDoesNotDoubleCount(t *testing.T) {
	engine, st, _ := testEngine(t)
	ctx := context.Background()

	createLocalTask(t, st, "mo-both00", "Bidirectional", true)

	result, err := engine.Sync(ctx, Options{Direction: models.DirectionBoth})
	if err != nil {
		t.Fatalf("both: %v", err)
	}
	// The push leg creates the remote issue; the pull leg must not then
	// classify that same issue again.
	if result.Added != 1 || result.Updated != 0 {
		t.Fatalf("expected single add, got %+v", result)
	}
}

func TestRateLimitFailureDoesNotAbortBatch(t *testing.T) {
	engine, st, remote := testEngine(t)
	ctx := context.Background()

	createLocalTask(t, st, "mo-rate00", "First", true)
	createLocalTask(t, st, "mo-rate01", "Second", true)
	remote.createErr = &linear.APIError{Status: 429, RateLimited: true, Messages: []string{"rate limited"}}

	result, err := engine.Sync(ctx, Options{Direction: models.DirectionPush})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 accumulated error, got %+v", result.Errors)
	}
	if result.Added != 1 {
		t.Fatalf("remaining items must still process, added == %d", result.Added)
	}
	if len(result.Details.Failed) != 1 || result.Details.Failed[0].Local != "mo-rate00" {
		t.Fatalf("unexpected failed details: %+v", result.Details.Failed)
	}
}

func TestSyncIssuePullsSingleIssue(t *testing.T) {
	engine, _, remote := testEngine(t)
	ctx := context.Background()

	now := time.Now().UTC()
	remote.issues["issue-11"] = &models.RemoteIssue{
		ID:         "issue-11",
		Identifier: "ENG-11",
		Title:      "From webhook",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	remote.issues["issue-12"] = &models.RemoteIssue{
		ID:         "issue-12",
		Identifier: "ENG-12",
		Title:      "Untouched",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	result, err := engine.SyncIssue(ctx, "issue-11")
	if err != nil {
		t.Fatalf("sync issue: %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("expected single add, got %+v", result)
	}

	if _, err := engine.SyncIssue(ctx, ""); err == nil {
		t.Fatal("expected error for empty issue id")
	}
}

func TestInvalidDirectionRejected(t *testing.T) {
	engine, _, _ := testEngine(t)
	if _, err := engine.Sync(context.Background(), Options{Direction: "sideways"}); err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestFilterScopesPush(t *testing.T) {
	engine, st, remote := testEngine(t)
	ctx := context.Background()

	createLocalTask(t, st, "mo-filt00", "Fix login bug", false)
	createLocalTask(t, st, "mo-filt01", "Write docs", false)

	result, err := engine.Sync(ctx, Options{Direction: models.DirectionPush, Filter: "login"})
	if err != nil {
		t.Fatalf("filtered push: %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("expected 1 filtered add, got %d", result.Added)
	}
	if remote.createCalls != 1 {
		t.Fatalf("expected 1 create, got %d", remote.createCalls)
	}
}
