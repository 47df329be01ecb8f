package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mobridge/internal/config"
	"mobridge/internal/linear"
	"mobridge/internal/models"
	"mobridge/internal/secret"
	"mobridge/internal/store"
	"mobridge/internal/syncer"
)

// Remote is the slice of the Linear client the handlers use.
type Remote interface {
	syncer.RemoteClient
	Viewer(ctx context.Context) (*models.UserRef, error)
	Teams(ctx context.Context) ([]models.Team, error)
	Team(ctx context.Context, id string) (*models.Team, error)
	Projects(ctx context.Context, teamID string) ([]models.ProjectRef, error)
	CreateProject(ctx context.Context, teamID, name string) (*models.ProjectRef, error)
	Cycles(ctx context.Context, teamID string) ([]models.CycleRef, error)
	CreateCycle(ctx context.Context, teamID, name string, starts, ends time.Time) (*models.CycleRef, error)
	AddComment(ctx context.Context, issueID, body string) error
	CreateRelation(ctx context.Context, issueID, relatedID string, relationType models.RelationType) error
	IssueRelations(ctx context.Context, issueID string) ([]linear.IssueRelation, error)
	CreateWebhook(ctx context.Context, input linear.WebhookCreate) (*linear.RemoteWebhook, error)
	DeleteWebhook(ctx context.Context, id string) error
	Webhooks(ctx context.Context) ([]linear.RemoteWebhook, error)
	ClearCache()
}

// Context carries the collaborators handlers work against. It is built
// once at startup and passed explicitly, so tests run against isolated
// instances.
type Context struct {
	Store  *store.Store
	Sealer *secret.Sealer
	Config *config.Config
	Logger *slog.Logger

	// NewRemote constructs a remote client for a credential. Tests swap
	// in fakes here.
	NewRemote func(apiKey string) Remote

	mu     sync.Mutex
	cached Remote
}

// NewContext builds a handler context with the production remote factory.
func NewContext(st *store.Store, sealer *secret.Sealer, cfg *config.Config, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		Store:  st,
		Sealer: sealer,
		Config: cfg,
		Logger: logger,
		NewRemote: func(apiKey string) Remote {
			return linear.NewClient(cfg.APIURL, apiKey, linear.WithLogger(logger))
		},
	}
}

// Remote returns an authenticated remote client plus the auth record, or
// an error result when not authenticated. The client is cached so team
// metadata caching survives across commands.
func (c *Context) Remote(ctx context.Context) (Remote, *models.AuthRecord, error) {
	record, err := c.Store.GetAuth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read auth record: %w", err)
	}
	if record == nil {
		return nil, nil, errNotAuthenticated
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil {
		return c.cached, record, nil
	}

	apiKey, err := c.Sealer.Open(record.APIKeySealed)
	if err != nil {
		return nil, nil, fmt.Errorf("unseal credential: %w", err)
	}
	c.cached = c.NewRemote(apiKey)
	return c.cached, record, nil
}

// ResetRemote drops the cached client; called on auth and logout.
func (c *Context) ResetRemote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
}

// Engine builds a sync engine scoped to a team.
func (c *Context) Engine(remote Remote, teamID string) *syncer.Engine {
	return syncer.New(c.Store, remote, teamID, c.Logger)
}

var errNotAuthenticated = fmt.Errorf("not authenticated")
