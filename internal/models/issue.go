package models

import "time"

// WorkflowState is the remote workflow state an issue sits in.
type WorkflowState struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color,omitempty"`
	Type  StateType `json:"type"`
}

// UserRef references a remote user.
type UserRef struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// LabelRef references a remote issue label.
type LabelRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// ProjectRef references a remote project.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CycleRef references a remote cycle/iteration.
type CycleRef struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Number int    `json:"number,omitempty"`
}

// RemoteIssue is an issue as owned by the remote tracker. It is read and
// written exclusively through the Linear client.
type RemoteIssue struct {
	ID          string         `json:"id"`
	Identifier  string         `json:"identifier"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Priority    *int           `json:"priority,omitempty"`
	Estimate    *int           `json:"estimate,omitempty"`
	State       *WorkflowState `json:"state,omitempty"`
	Assignee    *UserRef       `json:"assignee,omitempty"`
	Labels      []LabelRef     `json:"labels,omitempty"`
	Project     *ProjectRef    `json:"project,omitempty"`
	Cycle       *CycleRef      `json:"cycle,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	URL         string         `json:"url,omitempty"`
}

// Team is remote team metadata, cached by the client.
type Team struct {
	ID      string          `json:"id"`
	Key     string          `json:"key"`
	Name    string          `json:"name"`
	States  []WorkflowState `json:"states,omitempty"`
	Labels  []LabelRef      `json:"labels,omitempty"`
	Members []UserRef       `json:"members,omitempty"`
}
