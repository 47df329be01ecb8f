// Package linear is a typed client for the remote GraphQL issue tracker.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mobridge/internal/models"
)

const (
	defaultHTTPTimeout  = 15 * time.Second
	defaultTeamCacheTTL = 5 * time.Minute
	defaultPageSize     = 50

	queryRetryAttempts = 2
	queryRetryBackoff  = 500 * time.Millisecond
)

// Client is a typed wrapper over the remote GraphQL endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	apiKey   string
	teams    *teamCache
	logger   *slog.Logger
	sleep    func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTeamCacheTTL overrides the team metadata cache expiry.
func WithTeamCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.teams = newTeamCache(ttl)
	}
}

// NewClient creates a new remote issue client.
func NewClient(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: defaultHTTPTimeout},
		apiKey:   apiKey,
		teams:    newTeamCache(defaultTeamCacheTTL),
		logger:   slog.Default().With("component", "linear"),
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClearCache drops cached team metadata, forcing the next lookup to hit
// the remote.
func (c *Client) ClearCache() {
	c.teams.clear()
}

// Viewer validates the credential and returns the current user.
func (c *Client) Viewer(ctx context.Context) (*models.UserRef, error) {
	var out struct {
		Viewer models.UserRef `json:"viewer"`
	}
	if err := c.query(ctx, viewerQuery, nil, &out); err != nil {
		return nil, err
	}
	return &out.Viewer, nil
}

// Teams lists all teams visible to the credential.
func (c *Client) Teams(ctx context.Context) ([]models.Team, error) {
	var out struct {
		Teams struct {
			Nodes []wireTeam `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.query(ctx, teamsQuery, nil, &out); err != nil {
		return nil, err
	}
	teams := make([]models.Team, 0, len(out.Teams.Nodes))
	for i := range out.Teams.Nodes {
		teams = append(teams, out.Teams.Nodes[i].toModel())
	}
	return teams, nil
}

// Team fetches one team with states, labels, and members. Results are
// cached for a bounded window; ClearCache forces a refresh.
func (c *Client) Team(ctx context.Context, id string) (*models.Team, error) {
	if id == "" {
		return nil, fmt.Errorf("team id is required")
	}
	if cached, ok := c.teams.get(id); ok {
		return &cached, nil
	}

	var out struct {
		Team *wireTeam `json:"team"`
	}
	if err := c.query(ctx, teamQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Team == nil {
		return nil, fmt.Errorf("team not found: %s", id)
	}
	team := out.Team.toModel()
	c.teams.put(team)
	return &team, nil
}

// Issue fetches one remote issue by id.
func (c *Client) Issue(ctx context.Context, id string) (*models.RemoteIssue, error) {
	if id == "" {
		return nil, fmt.Errorf("issue id is required")
	}
	var out struct {
		Issue *wireIssue `json:"issue"`
	}
	if err := c.query(ctx, issueQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Issue == nil {
		return nil, fmt.Errorf("issue not found: %s", id)
	}
	issue := out.Issue.toModel()
	return &issue, nil
}

// Issues fetches one page of issues under the filter.
func (c *Client) Issues(ctx context.Context, filter IssueFilter, first int, after string) ([]models.RemoteIssue, PageInfo, error) {
	if first <= 0 {
		first = defaultPageSize
	}
	variables := map[string]any{"first": first}
	if filterObject := buildIssueFilter(filter); filterObject != nil {
		variables["filter"] = filterObject
	}
	if after != "" {
		variables["after"] = after
	}

	var out struct {
		Issues struct {
			Nodes    []wireIssue `json:"nodes"`
			PageInfo PageInfo    `json:"pageInfo"`
		} `json:"issues"`
	}
	if err := c.query(ctx, issuesQuery, variables, &out); err != nil {
		return nil, PageInfo{}, err
	}

	issues := make([]models.RemoteIssue, 0, len(out.Issues.Nodes))
	for i := range out.Issues.Nodes {
		issues = append(issues, out.Issues.Nodes[i].toModel())
	}
	return issues, out.Issues.PageInfo, nil
}

// AllIssues accumulates pages under the filter until exhaustion or max
// items, whichever comes first. max <= 0 means no cap.
func (c *Client) AllIssues(ctx context.Context, filter IssueFilter, max int) ([]models.RemoteIssue, error) {
	var all []models.RemoteIssue
	after := ""
	for {
		batch := defaultPageSize
		if max > 0 && max-len(all) < batch {
			batch = max - len(all)
		}
		page, info, err := c.Issues(ctx, filter, batch, after)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if max > 0 && len(all) >= max {
			return all[:max], nil
		}
		if !info.HasNextPage || info.EndCursor == "" {
			return all, nil
		}
		after = info.EndCursor
	}
}

// CreateIssue creates a new remote issue.
func (c *Client) CreateIssue(ctx context.Context, input IssueCreate) (*models.RemoteIssue, error) {
	if input.TeamID == "" {
		return nil, fmt.Errorf("team id is required")
	}
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	payload := map[string]any{
		"teamId": input.TeamID,
		"title":  input.Title,
	}
	if input.Description != "" {
		payload["description"] = input.Description
	}
	if input.Priority != nil {
		payload["priority"] = *input.Priority
	}
	if input.Estimate != nil {
		payload["estimate"] = *input.Estimate
	}
	if input.StateID != "" {
		payload["stateId"] = input.StateID
	}
	if input.AssigneeID != "" {
		payload["assigneeId"] = input.AssigneeID
	}
	if len(input.LabelIDs) > 0 {
		payload["labelIds"] = input.LabelIDs
	}
	if input.ProjectID != "" {
		payload["projectId"] = input.ProjectID
	}
	if input.CycleID != "" {
		payload["cycleId"] = input.CycleID
	}

	var out struct {
		IssueCreate struct {
			Success bool       `json:"success"`
			Issue   *wireIssue `json:"issue"`
		} `json:"issueCreate"`
	}
	if err := c.mutate(ctx, issueCreateMutation, map[string]any{"input": payload}, &out); err != nil {
		return nil, err
	}
	if !out.IssueCreate.Success || out.IssueCreate.Issue == nil {
		return nil, fmt.Errorf("issue create was not successful")
	}
	issue := out.IssueCreate.Issue.toModel()
	return &issue, nil
}

// UpdateIssue updates mutable fields on an existing remote issue.
func (c *Client) UpdateIssue(ctx context.Context, id string, input IssueUpdate) (*models.RemoteIssue, error) {
	if id == "" {
		return nil, fmt.Errorf("issue id is required")
	}

	payload := map[string]any{}
	if input.Title != nil {
		payload["title"] = *input.Title
	}
	if input.Description != nil {
		payload["description"] = *input.Description
	}
	if input.Priority != nil {
		payload["priority"] = *input.Priority
	}
	if input.Estimate != nil {
		payload["estimate"] = *input.Estimate
	}
	if input.StateID != "" {
		payload["stateId"] = input.StateID
	}
	if input.AssigneeID != "" {
		payload["assigneeId"] = input.AssigneeID
	}
	if len(input.LabelIDs) > 0 {
		payload["labelIds"] = input.LabelIDs
	}
	if input.ProjectID != "" {
		payload["projectId"] = input.ProjectID
	}
	if input.CycleID != "" {
		payload["cycleId"] = input.CycleID
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	var out struct {
		IssueUpdate struct {
			Success bool       `json:"success"`
			Issue   *wireIssue `json:"issue"`
		} `json:"issueUpdate"`
	}
	if err := c.mutate(ctx, issueUpdateMutation, map[string]any{"id": id, "input": payload}, &out); err != nil {
		return nil, err
	}
	if !out.IssueUpdate.Success || out.IssueUpdate.Issue == nil {
		return nil, fmt.Errorf("issue update was not successful")
	}
	issue := out.IssueUpdate.Issue.toModel()
	return &issue, nil
}

// AddComment posts a comment on a remote issue.
func (c *Client) AddComment(ctx context.Context, issueID, body string) error {
	if issueID == "" {
		return fmt.Errorf("issue id is required")
	}
	if body == "" {
		return fmt.Errorf("comment body is required")
	}
	var out struct {
		CommentCreate struct {
			Success bool `json:"success"`
		} `json:"commentCreate"`
	}
	input := map[string]any{"issueId": issueID, "body": body}
	if err := c.mutate(ctx, commentCreateMutation, map[string]any{"input": input}, &out); err != nil {
		return err
	}
	if !out.CommentCreate.Success {
		return fmt.Errorf("comment create was not successful")
	}
	return nil
}

// CreateRelation links two remote issues. Inverse relation kinds
// (blocked-by, duplicated-by) are stored as their forward counterpart
// with the endpoints swapped.
func (c *Client) CreateRelation(ctx context.Context, issueID, relatedID string, relationType models.RelationType) error {
	if issueID == "" || relatedID == "" {
		return fmt.Errorf("both issue ids are required")
	}
	if !models.IsValidRelationType(relationType) {
		return fmt.Errorf("invalid relation type: %s", relationType)
	}

	wireType := relationType
	switch relationType {
	case models.RelationBlockedBy:
		wireType = models.RelationBlocks
		issueID, relatedID = relatedID, issueID
	case models.RelationDuplicatedBy:
		wireType = models.RelationDuplicate
		issueID, relatedID = relatedID, issueID
	case models.RelationRelatesTo:
		wireType = "related"
	}

	var out struct {
		IssueRelationCreate struct {
			Success bool `json:"success"`
		} `json:"issueRelationCreate"`
	}
	input := map[string]any{
		"issueId":        issueID,
		"relatedIssueId": relatedID,
		"type":           string(wireType),
	}
	if err := c.mutate(ctx, relationCreateMutation, map[string]any{"input": input}, &out); err != nil {
		return err
	}
	if !out.IssueRelationCreate.Success {
		return fmt.Errorf("relation create was not successful")
	}
	return nil
}

// IssueRelations lists relation edges on a remote issue.
func (c *Client) IssueRelations(ctx context.Context, issueID string) ([]IssueRelation, error) {
	if issueID == "" {
		return nil, fmt.Errorf("issue id is required")
	}
	var out struct {
		Issue *struct {
			Relations struct {
				Nodes []struct {
					ID    string `json:"id"`
					Type  string `json:"type"`
					Issue struct {
						ID string `json:"id"`
					} `json:"issue"`
					RelatedIssue struct {
						ID string `json:"id"`
					} `json:"relatedIssue"`
				} `json:"nodes"`
			} `json:"relations"`
		} `json:"issue"`
	}
	if err := c.query(ctx, issueRelationsQuery, map[string]any{"id": issueID}, &out); err != nil {
		return nil, err
	}
	if out.Issue == nil {
		return nil, fmt.Errorf("issue not found: %s", issueID)
	}

	relations := make([]IssueRelation, 0, len(out.Issue.Relations.Nodes))
	for _, node := range out.Issue.Relations.Nodes {
		relationType := models.RelationType(node.Type)
		if node.Type == "related" {
			relationType = models.RelationRelatesTo
		}
		relations = append(relations, IssueRelation{
			ID:           node.ID,
			Type:         relationType,
			IssueID:      node.Issue.ID,
			RelatedIssue: node.RelatedIssue.ID,
		})
	}
	return relations, nil
}

// Projects lists projects under a team.
func (c *Client) Projects(ctx context.Context, teamID string) ([]models.ProjectRef, error) {
	if teamID == "" {
		return nil, fmt.Errorf("team id is required")
	}
	var out struct {
		Team *struct {
			Projects struct {
				Nodes []models.ProjectRef `json:"nodes"`
			} `json:"projects"`
		} `json:"team"`
	}
	if err := c.query(ctx, projectsQuery, map[string]any{"teamId": teamID}, &out); err != nil {
		return nil, err
	}
	if out.Team == nil {
		return nil, fmt.Errorf("team not found: %s", teamID)
	}
	return out.Team.Projects.Nodes, nil
}

// CreateProject creates a project under a team.
func (c *Client) CreateProject(ctx context.Context, teamID, name string) (*models.ProjectRef, error) {
	if teamID == "" || name == "" {
		return nil, fmt.Errorf("team id and name are required")
	}
	var out struct {
		ProjectCreate struct {
			Success bool               `json:"success"`
			Project *models.ProjectRef `json:"project"`
		} `json:"projectCreate"`
	}
	input := map[string]any{"teamIds": []string{teamID}, "name": name}
	if err := c.mutate(ctx, projectCreateMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	if !out.ProjectCreate.Success || out.ProjectCreate.Project == nil {
		return nil, fmt.Errorf("project create was not successful")
	}
	return out.ProjectCreate.Project, nil
}

// Cycles lists cycles under a team.
func (c *Client) Cycles(ctx context.Context, teamID string) ([]models.CycleRef, error) {
	if teamID == "" {
		return nil, fmt.Errorf("team id is required")
	}
	var out struct {
		Team *struct {
			Cycles struct {
				Nodes []models.CycleRef `json:"nodes"`
			} `json:"cycles"`
		} `json:"team"`
	}
	if err := c.query(ctx, cyclesQuery, map[string]any{"teamId": teamID}, &out); err != nil {
		return nil, err
	}
	if out.Team == nil {
		return nil, fmt.Errorf("team not found: %s", teamID)
	}
	return out.Team.Cycles.Nodes, nil
}

// CreateCycle creates a cycle under a team. starts/ends are the cycle
// boundary dates.
func (c *Client) CreateCycle(ctx context.Context, teamID, name string, starts, ends time.Time) (*models.CycleRef, error) {
	if teamID == "" {
		return nil, fmt.Errorf("team id is required")
	}
	var out struct {
		CycleCreate struct {
			Success bool             `json:"success"`
			Cycle   *models.CycleRef `json:"cycle"`
		} `json:"cycleCreate"`
	}
	input := map[string]any{
		"teamId":   teamID,
		"startsAt": starts.UTC().Format(time.RFC3339),
		"endsAt":   ends.UTC().Format(time.RFC3339),
	}
	if name != "" {
		input["name"] = name
	}
	if err := c.mutate(ctx, cycleCreateMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	if !out.CycleCreate.Success || out.CycleCreate.Cycle == nil {
		return nil, fmt.Errorf("cycle create was not successful")
	}
	return out.CycleCreate.Cycle, nil
}

// CreateWebhook registers a webhook endpoint on the remote.
func (c *Client) CreateWebhook(ctx context.Context, input WebhookCreate) (*RemoteWebhook, error) {
	if input.TeamID == "" || input.URL == "" {
		return nil, fmt.Errorf("team id and url are required")
	}
	if input.Secret == "" {
		return nil, fmt.Errorf("webhook secret is required")
	}

	payload := map[string]any{
		"teamId": input.TeamID,
		"url":    input.URL,
		"secret": input.Secret,
	}
	if input.Label != "" {
		payload["label"] = input.Label
	}
	if len(input.ResourceTypes) > 0 {
		payload["resourceTypes"] = input.ResourceTypes
	}

	var out struct {
		WebhookCreate struct {
			Success bool           `json:"success"`
			Webhook *RemoteWebhook `json:"webhook"`
		} `json:"webhookCreate"`
	}
	if err := c.mutate(ctx, webhookCreateMutation, map[string]any{"input": payload}, &out); err != nil {
		return nil, err
	}
	if !out.WebhookCreate.Success || out.WebhookCreate.Webhook == nil {
		return nil, fmt.Errorf("webhook create was not successful")
	}
	return out.WebhookCreate.Webhook, nil
}

// DeleteWebhook removes a webhook registration on the remote.
func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("webhook id is required")
	}
	var out struct {
		WebhookDelete struct {
			Success bool `json:"success"`
		} `json:"webhookDelete"`
	}
	if err := c.mutate(ctx, webhookDeleteMutation, map[string]any{"id": id}, &out); err != nil {
		return err
	}
	if !out.WebhookDelete.Success {
		return fmt.Errorf("webhook delete was not successful")
	}
	return nil
}

// Webhooks lists webhook registrations on the remote.
func (c *Client) Webhooks(ctx context.Context) ([]RemoteWebhook, error) {
	var out struct {
		Webhooks struct {
			Nodes []RemoteWebhook `json:"nodes"`
		} `json:"webhooks"`
	}
	if err := c.query(ctx, webhooksQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.Webhooks.Nodes, nil
}

func buildIssueFilter(filter IssueFilter) map[string]any {
	out := map[string]any{}
	if filter.TeamID != "" {
		out["team"] = map[string]any{"id": map[string]any{"eq": filter.TeamID}}
	}
	if len(filter.IDs) > 0 {
		out["id"] = map[string]any{"in": filter.IDs}
	}
	if len(filter.StateTypes) > 0 {
		types := make([]string, 0, len(filter.StateTypes))
		for _, stateType := range filter.StateTypes {
			types = append(types, string(stateType))
		}
		out["state"] = map[string]any{"type": map[string]any{"in": types}}
	}
	if filter.Query != "" {
		out["title"] = map[string]any{"containsIgnoreCase": filter.Query}
	}
	if filter.UpdatedSince != nil {
		out["updatedAt"] = map[string]any{"gt": filter.UpdatedSince.UTC().Format(time.RFC3339)}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// query runs a read operation. Transient failures (network errors, 5xx)
// get one bounded retry; mutations never retry, since an ambiguous create
// response could double-create remote state.
func (c *Client) query(ctx context.Context, doc string, variables map[string]any, out any) error {
	var lastErr error
	for attempt := 0; attempt < queryRetryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying query after transient failure", "attempt", attempt)
			c.sleep(queryRetryBackoff)
		}
		err := c.do(ctx, doc, variables, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) || ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) mutate(ctx context.Context, doc string, variables map[string]any, out any) error {
	return c.do(ctx, doc, variables, out)
}

func (c *Client) do(ctx context.Context, doc string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{Query: doc, Variables: variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	var envelope graphQLEnvelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, RateLimited: resp.StatusCode == http.StatusTooManyRequests}
		for _, gqlErr := range envelope.Errors {
			apiErr.Messages = append(apiErr.Messages, gqlErr.Message)
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if len(envelope.Errors) > 0 {
		apiErr := &APIError{Status: resp.StatusCode}
		for _, gqlErr := range envelope.Errors {
			apiErr.Messages = append(apiErr.Messages, gqlErr.Message)
			if code, ok := gqlErr.Extensions["code"].(string); ok && code == "RATELIMITED" {
				apiErr.RateLimited = true
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

// transportError wraps a network-level failure so retry logic can tell it
// apart from remote rejections.
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return e.err.Error()
}

func (e *transportError) Unwrap() error {
	return e.err
}

func isTransient(err error) bool {
	var tErr *transportError
	if errors.As(err, &tErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.RateLimited
	}
	return false
}
