package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mobridge/internal/config"
	"mobridge/internal/linear"
	"mobridge/internal/models"
	"mobridge/internal/secret"
	"mobridge/internal/store"
)

// fakeRemote implements Remote against in-memory state.
type fakeRemote struct {
	apiKey     string
	viewerErr  error
	issues     map[string]*models.RemoteIssue
	teams      []models.Team
	created    []linear.IssueCreate
	comments   []string
	webhooks   []linear.RemoteWebhook
	webhookErr error
}

func newFakeRemote(apiKey string) *fakeRemote {
	return &fakeRemote{
		apiKey: apiKey,
		issues: map[string]*models.RemoteIssue{},
		teams: []models.Team{
			{ID: "team-1", Key: "ENG", Name: "Engineering", States: []models.WorkflowState{
				{ID: "st-1", Name: "Backlog", Type: models.StateBacklog},
			}},
		},
	}
}

func (f *fakeRemote) Viewer(ctx context.Context) (*models.UserRef, error) {
	if f.viewerErr != nil {
		return nil, f.viewerErr
	}
	return &models.UserRef{ID: "user-1", Name: "Test User", Email: "test@example.com"}, nil
}

func (f *fakeRemote) Teams(ctx context.Context) ([]models.Team, error) { return f.teams, nil }

func (f *fakeRemote) Team(ctx context.Context, id string) (*models.Team, error) {
	for i := range f.teams {
		if f.teams[i].ID == id {
			return &f.teams[i], nil
		}
	}
	return nil, fmt.Errorf("team not found: %s", id)
}

func (f *fakeRemote) Issue(ctx context.Context, id string) (*models.RemoteIssue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue not found: %s", id)
	}
	return issue, nil
}

func (f *fakeRemote) AllIssues(ctx context.Context, filter linear.IssueFilter, max int) ([]models.RemoteIssue, error) {
	var out []models.RemoteIssue
	for _, issue := range f.issues {
		out = append(out, *issue)
	}
	return out, nil
}

func (f *fakeRemote) CreateIssue(ctx context.Context, input linear.IssueCreate) (*models.RemoteIssue, error) {
	f.created = append(f.created, input)
	id := fmt.Sprintf("rem-%d", len(f.created))
	issue := &models.RemoteIssue{
		ID:         id,
		Identifier: fmt.Sprintf("ENG-%d", len(f.created)),
		Title:      input.Title,
		UpdatedAt:  time.Now().UTC(),
	}
	f.issues[id] = issue
	return issue, nil
}

func (f *fakeRemote) UpdateIssue(ctx context.Context, id string, input linear.IssueUpdate) (*models.RemoteIssue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue not found: %s", id)
	}
	if input.Title != nil {
		issue.Title = *input.Title
	}
	issue.UpdatedAt = time.Now().UTC()
	return issue, nil
}

func (f *fakeRemote) Projects(ctx context.Context, teamID string) ([]models.ProjectRef, error) {
	return []models.ProjectRef{{ID: "proj-1", Name: "Platform"}}, nil
}

func (f *fakeRemote) CreateProject(ctx context.Context, teamID, name string) (*models.ProjectRef, error) {
	return &models.ProjectRef{ID: "proj-new", Name: name}, nil
}

func (f *fakeRemote) Cycles(ctx context.Context, teamID string) ([]models.CycleRef, error) {
	return []models.CycleRef{{ID: "cyc-1", Name: "Sprint 1", Number: 1}}, nil
}

func (f *fakeRemote) CreateCycle(ctx context.Context, teamID, name string, starts, ends time.Time) (*models.CycleRef, error) {
	return &models.CycleRef{ID: "cyc-new", Name: name, Number: 2}, nil
}

func (f *fakeRemote) AddComment(ctx context.Context, issueID, body string) error {
	f.comments = append(f.comments, issueID+": "+body)
	return nil
}

func (f *fakeRemote) CreateRelation(ctx context.Context, issueID, relatedID string, relationType models.RelationType) error {
	return nil
}

func (f *fakeRemote) IssueRelations(ctx context.Context, issueID string) ([]linear.IssueRelation, error) {
	return nil, nil
}

func (f *fakeRemote) CreateWebhook(ctx context.Context, input linear.WebhookCreate) (*linear.RemoteWebhook, error) {
	if f.webhookErr != nil {
		return nil, f.webhookErr
	}
	hook := linear.RemoteWebhook{
		ID:            fmt.Sprintf("wh-%d", len(f.webhooks)+1),
		URL:           input.URL,
		Label:         input.Label,
		ResourceTypes: input.ResourceTypes,
		Enabled:       true,
	}
	f.webhooks = append(f.webhooks, hook)
	return &hook, nil
}

func (f *fakeRemote) DeleteWebhook(ctx context.Context, id string) error {
	for i, hook := range f.webhooks {
		if hook.ID == id {
			f.webhooks = append(f.webhooks[:i], f.webhooks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeRemote) Webhooks(ctx context.Context) ([]linear.RemoteWebhook, error) {
	return f.webhooks, nil
}

func (f *fakeRemote) ClearCache() {}

type testEnv struct {
	ctx    *Context
	router *Router
	remote *fakeRemote
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sealer, err := secret.NewSealer(dir)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}

	cfg := config.Default()
	remote := newFakeRemote("")
	cmdCtx := &Context{
		Store:  st,
		Sealer: sealer,
		Config: &cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewRemote: func(apiKey string) Remote {
			remote.apiKey = apiKey
			return remote
		},
	}
	return &testEnv{ctx: cmdCtx, router: NewRouter(cmdCtx), remote: remote}
}

func (e *testEnv) dispatch(t *testing.T, line string) Result {
	t.Helper()
	result, ok := e.router.Dispatch(context.Background(), line)
	if !ok {
		t.Fatalf("line not dispatched: %q", line)
	}
	return result
}

func (e *testEnv) authenticate(t *testing.T) {
	t.Helper()
	result := e.dispatch(t, `/mo auth key:"lin_api_test" team:team-1`)
	if !result.Success {
		t.Fatalf("auth failed: %s", result.Error)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	env := newTestEnv(t)
	result := env.dispatch(t, "/mo frobnicate x:1")
	if result.Success {
		t.Fatal("expected failure for unknown command")
	}
	if !strings.Contains(result.Markdown, "sync") {
		t.Fatalf("hint should list known commands, got: %s", result.Markdown)
	}
}

func TestDispatchIgnoresUnrelatedLines(t *testing.T) {
	env := newTestEnv(t)
	if _, ok := env.router.Dispatch(context.Background(), "just some chatter"); ok {
		t.Fatal("non-namespaced line should be ignored")
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	env := newTestEnv(t)
	env.router.Register(Spec{Name: "boom"}, func(ctx context.Context, cmdCtx *Context, params Params) Result {
		panic("kaboom")
	})
	result := env.dispatch(t, "/mo boom")
	if result.Success {
		t.Fatal("expected failure result from panic")
	}
	if !strings.Contains(result.Message, "kaboom") {
		t.Fatalf("panic value should surface, got: %s", result.Message)
	}
}

func TestAuthPersistsSealedCredential(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t)

	if env.remote.apiKey != "lin_api_test" {
		t.Fatalf("remote built with key %q", env.remote.apiKey)
	}
	record, err := env.ctx.Store.GetAuth(context.Background())
	if err != nil || record == nil {
		t.Fatalf("auth record: %v, %v", record, err)
	}
	if record.APIKeySealed == "lin_api_test" {
		t.Fatal("credential stored in cleartext")
	}
	opened, err := env.ctx.Sealer.Open(record.APIKeySealed)
	if err != nil || opened != "lin_api_test" {
		t.Fatalf("unseal: %q, %v", opened, err)
	}
	if record.DefaultTeamID != "team-1" {
		t.Fatalf("default team = %q", record.DefaultTeamID)
	}
}

func TestAuthRejectsInvalidCredential(t *testing.T) {
	env := newTestEnv(t)
	env.remote.viewerErr = fmt.Errorf("401 unauthorized")
	result := env.dispatch(t, `/mo auth key:"bad"`)
	if result.Success {
		t.Fatal("expected auth failure")
	}
	record, _ := env.ctx.Store.GetAuth(context.Background())
	if record != nil {
		t.Fatal("invalid credential must not be stored")
	}
}

func TestRemoteCommandsRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	for _, line := range []string{
		"/mo sync", "/mo push", "/mo pull", "/mo teams", "/mo issues",
		"/mo webhook-register url:https://x.example/webhook",
	} {
		result := env.dispatch(t, line)
		if result.Success {
			t.Fatalf("%q should fail without auth", line)
		}
		if !strings.Contains(result.Markdown, "auth") {
			t.Fatalf("%q should hint at auth, got: %s", line, result.Markdown)
		}
	}
}

func TestLogoutDestroysCredential(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t)
	result := env.dispatch(t, "/mo logout")
	if !result.Success {
		t.Fatalf("logout failed: %s", result.Error)
	}
	if record, _ := env.ctx.Store.GetAuth(context.Background()); record != nil {
		t.Fatal("auth record survived logout")
	}
	if result := env.dispatch(t, "/mo status"); result.Success {
		t.Fatal("status should fail after logout")
	}
}

func TestTaskCreateAndList(t *testing.T) {
	env := newTestEnv(t)
	result := env.dispatch(t, `/mo task-create title:"Fix login flow" priority:2`)
	if !result.Success {
		t.Fatalf("task-create failed: %s", result.Error)
	}

	result = env.dispatch(t, "/mo task-list")
	if !result.Success {
		t.Fatalf("task-list failed: %s", result.Error)
	}
	if !strings.Contains(result.Markdown, "Fix login flow") {
		t.Fatalf("list missing task: %s", result.Markdown)
	}
}

func TestTaskCreateValidatesBounds(t *testing.T) {
	env := newTestEnv(t)
	if result := env.dispatch(t, `/mo task-create title:"x" priority:9`); result.Success {
		t.Fatal("priority 9 should fail")
	}
	if result := env.dispatch(t, `/mo task-create title:"x" estimate:99`); result.Success {
		t.Fatal("estimate 99 should fail")
	}
	if result := env.dispatch(t, "/mo task-create"); result.Success {
		t.Fatal("missing title should fail")
	}
}

func TestTaskImportMarkdown(t *testing.T) {
	env := newTestEnv(t)
	content := strings.Join([]string{
		"---",
		"feature: onboarding",
		"priority: 1",
		"---",
		"# Tasks",
		"- [ ] Add signup form",
		"- Add welcome email",
		"* Polish copy",
		"",
		"prose is ignored",
	}, "\n")
	path := filepath.Join(t.TempDir(), "tasks.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write import file: %v", err)
	}

	result := env.dispatch(t, "/mo task-import file:"+path)
	if !result.Success {
		t.Fatalf("import failed: %s", result.Error)
	}

	tasks, err := env.ctx.Store.ListTasks(context.Background(), store.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("imported %d tasks, want 3", len(tasks))
	}
	for _, task := range tasks {
		if task.FeatureContext != "onboarding" {
			t.Fatalf("feature = %q", task.FeatureContext)
		}
		if task.Priority == nil || *task.Priority != 1 {
			t.Fatalf("priority not applied: %+v", task.Priority)
		}
	}
}

func TestSyncPushCreatesRemoteIssues(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t)
	env.dispatch(t, `/mo task-create title:"Ship it"`)

	result := env.dispatch(t, "/mo push")
	if !result.Success {
		t.Fatalf("push failed: %s", result.Error)
	}
	if len(env.remote.created) != 1 {
		t.Fatalf("remote issues created = %d, want 1", len(env.remote.created))
	}

	tasks, _ := env.ctx.Store.ListTasks(context.Background(), store.ListFilter{})
	if len(tasks) != 1 || !tasks[0].Mapped() {
		t.Fatalf("task should be mapped after push: %+v", tasks)
	}
}

func TestSyncDryRunLeavesRemoteUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t)
	env.dispatch(t, `/mo task-create title:"Ship it"`)

	result := env.dispatch(t, "/mo push dryrun:true")
	if !result.Success {
		t.Fatalf("dry run failed: %s", result.Error)
	}
	if len(env.remote.created) != 0 {
		t.Fatal("dry run must not create remote issues")
	}
}

func TestSyncRejectsInvalidDirection(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t)
	if result := env.dispatch(t, "/mo sync direction:sideways"); result.Success {
		t.Fatal("invalid direction should fail")
	}
}

func TestWebhookRegisterStoresSecret(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t)

	result := env.dispatch(t, "/mo webhook-register url:https://bridge.example/webhook")
	if !result.Success {
		t.Fatalf("register failed: %s", result.Error)
	}

	hooks, err := env.ctx.Store.ListWebhooks(context.Background())
	if err != nil || len(hooks) != 1 {
		t.Fatalf("webhooks = %v, %v", hooks, err)
	}
	if hooks[0].Secret == "" {
		t.Fatal("secret not stored")
	}
	if len(hooks[0].ResourceTypes) == 0 {
		t.Fatal("resource types not defaulted")
	}
}

func TestWebhookRegisterWarnsOnDuplicateScope(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t)

	env.dispatch(t, "/mo webhook-register url:https://bridge.example/webhook")
	result := env.dispatch(t, "/mo webhook-register url:https://bridge.example/webhook")
	if !result.Success {
		t.Fatalf("second register failed: %s", result.Error)
	}
	if !strings.Contains(result.Markdown, "already existed") {
		t.Fatalf("expected duplicate warning, got: %s", result.Markdown)
	}
}

func TestWebhookDeleteRemovesBothSides(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate(t)
	env.dispatch(t, "/mo webhook-register url:https://bridge.example/webhook")

	hooks, _ := env.ctx.Store.ListWebhooks(context.Background())
	result := env.dispatch(t, "/mo webhook-delete id:"+hooks[0].ID)
	if !result.Success {
		t.Fatalf("delete failed: %s", result.Error)
	}
	if len(env.remote.webhooks) != 0 {
		t.Fatal("remote webhook not deleted")
	}
	if hooks, _ := env.ctx.Store.ListWebhooks(context.Background()); len(hooks) != 0 {
		t.Fatal("local webhook record not deleted")
	}
}

func TestManifestCoversRegisteredCommands(t *testing.T) {
	env := newTestEnv(t)
	manifest := env.router.Manifest()
	names := make(map[string]bool, len(manifest))
	for _, spec := range manifest {
		names[spec.Name] = true
		if spec.Description == "" {
			t.Fatalf("command %s has no description", spec.Name)
		}
	}
	for _, want := range []string{"auth", "sync", "push", "pull", "teams", "issues",
		"webhook-register", "webhook-list", "webhook-delete", "help"} {
		if !names[want] {
			t.Fatalf("manifest missing %s", want)
		}
	}
}
