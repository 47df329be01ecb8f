package linear

import (
	"encoding/json"
	"time"

	"mobridge/internal/models"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// PageInfo is remote cursor pagination state.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// IssueFilter narrows issue listings.
type IssueFilter struct {
	TeamID       string
	IDs          []string
	StateTypes   []models.StateType
	Query        string
	UpdatedSince *time.Time
}

// IssueCreate carries fields for a new remote issue.
type IssueCreate struct {
	TeamID      string
	Title       string
	Description string
	Priority    *int
	Estimate    *int
	StateID     string
	AssigneeID  string
	LabelIDs    []string
	ProjectID   string
	CycleID     string
}

// IssueUpdate carries mutable fields for an existing remote issue; nil or
// empty fields are left untouched.
type IssueUpdate struct {
	Title       *string
	Description *string
	Priority    *int
	Estimate    *int
	StateID     string
	AssigneeID  string
	LabelIDs    []string
	ProjectID   string
	CycleID     string
}

// IssueRelation is one directed relation edge between two remote issues.
type IssueRelation struct {
	ID           string              `json:"id"`
	Type         models.RelationType `json:"type"`
	IssueID      string              `json:"issueId"`
	RelatedIssue string              `json:"relatedIssueId"`
}

// WebhookCreate carries fields for a new remote webhook registration.
type WebhookCreate struct {
	TeamID        string
	URL           string
	Label         string
	ResourceTypes []string
	Secret        string
}

// RemoteWebhook is a webhook registration as reported by the remote.
type RemoteWebhook struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Label         string   `json:"label,omitempty"`
	ResourceTypes []string `json:"resourceTypes"`
	Enabled       bool     `json:"enabled"`
}

// wireIssue matches the remote issue node shape; labels arrive nested
// under a connection.
type wireIssue struct {
	ID          string                `json:"id"`
	Identifier  string                `json:"identifier"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    *int                  `json:"priority"`
	Estimate    *int                  `json:"estimate"`
	State       *models.WorkflowState `json:"state"`
	Assignee    *models.UserRef       `json:"assignee"`
	Labels      struct {
		Nodes []models.LabelRef `json:"nodes"`
	} `json:"labels"`
	Project   *models.ProjectRef `json:"project"`
	Cycle     *models.CycleRef   `json:"cycle"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
	URL       string             `json:"url"`
}

func (w *wireIssue) toModel() models.RemoteIssue {
	return models.RemoteIssue{
		ID:          w.ID,
		Identifier:  w.Identifier,
		Title:       w.Title,
		Description: w.Description,
		Priority:    w.Priority,
		Estimate:    w.Estimate,
		State:       w.State,
		Assignee:    w.Assignee,
		Labels:      w.Labels.Nodes,
		Project:     w.Project,
		Cycle:       w.Cycle,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		URL:         w.URL,
	}
}

type wireTeam struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	States struct {
		Nodes []models.WorkflowState `json:"nodes"`
	} `json:"states"`
	Labels struct {
		Nodes []models.LabelRef `json:"nodes"`
	} `json:"labels"`
	Members struct {
		Nodes []models.UserRef `json:"nodes"`
	} `json:"members"`
}

func (w *wireTeam) toModel() models.Team {
	return models.Team{
		ID:      w.ID,
		Key:     w.Key,
		Name:    w.Name,
		States:  w.States.Nodes,
		Labels:  w.Labels.Nodes,
		Members: w.Members.Nodes,
	}
}
