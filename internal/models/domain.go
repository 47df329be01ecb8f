package models

import (
	"fmt"
	"strings"
)

// SyncDirection selects which side of the bridge drives a sync.
type SyncDirection string

const (
	DirectionPush SyncDirection = "push"
	DirectionPull SyncDirection = "pull"
	DirectionBoth SyncDirection = "both"
)

// StateType defines the remote workflow state categories.
type StateType string

const (
	StateTriage    StateType = "triage"
	StateBacklog   StateType = "backlog"
	StateUnstarted StateType = "unstarted"
	StateStarted   StateType = "started"
	StateCompleted StateType = "completed"
	StateCanceled  StateType = "canceled"
)

// RelationType defines supported issue relation kinds.
type RelationType string

const (
	RelationBlocks       RelationType = "blocks"
	RelationBlockedBy    RelationType = "blocked-by"
	RelationRelatesTo    RelationType = "relates-to"
	RelationDuplicate    RelationType = "duplicate"
	RelationDuplicatedBy RelationType = "duplicated-by"
)

const (
	PriorityMin = 0
	PriorityMax = 4

	EstimateMin = 0
	EstimateMax = 21
)

var validDirections = map[SyncDirection]struct{}{
	DirectionPush: {},
	DirectionPull: {},
	DirectionBoth: {},
}

var validStateTypes = map[StateType]struct{}{
	StateTriage:    {},
	StateBacklog:   {},
	StateUnstarted: {},
	StateStarted:   {},
	StateCompleted: {},
	StateCanceled:  {},
}

var validRelationTypes = map[RelationType]struct{}{
	RelationBlocks:       {},
	RelationBlockedBy:    {},
	RelationRelatesTo:    {},
	RelationDuplicate:    {},
	RelationDuplicatedBy: {},
}

func IsValidDirection(direction SyncDirection) bool {
	_, ok := validDirections[direction]
	return ok
}

func IsValidStateType(stateType StateType) bool {
	_, ok := validStateTypes[stateType]
	return ok
}

func IsValidRelationType(relationType RelationType) bool {
	_, ok := validRelationTypes[relationType]
	return ok
}

func ParseDirection(raw string) (SyncDirection, error) {
	value := SyncDirection(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("direction is required")
	}
	if !IsValidDirection(value) {
		return "", fmt.Errorf("invalid direction: %s (expected push, pull, or both)", value)
	}
	return value, nil
}

func ParseStateType(raw string) (StateType, error) {
	value := StateType(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("state type is required")
	}
	if !IsValidStateType(value) {
		return "", fmt.Errorf("invalid state type: %s", value)
	}
	return value, nil
}

func ParseRelationType(raw string) (RelationType, error) {
	value := RelationType(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("relation type is required")
	}
	if !IsValidRelationType(value) {
		return "", fmt.Errorf("invalid relation type: %s", value)
	}
	return value, nil
}

func IsValidPriority(value int) bool {
	return value >= PriorityMin && value <= PriorityMax
}

func IsValidEstimate(value int) bool {
	return value >= EstimateMin && value <= EstimateMax
}
