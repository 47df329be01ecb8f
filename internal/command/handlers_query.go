package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mobridge/internal/linear"
	"mobridge/internal/models"
)

// remoteOrFail wraps the authenticated-client lookup so every remote
// handler fails the same way when unauthenticated.
func remoteOrFail(ctx context.Context, cmdCtx *Context) (Remote, *models.AuthRecord, *Result) {
	remote, record, err := cmdCtx.Remote(ctx)
	if err != nil {
		if errors.Is(err, errNotAuthenticated) {
			fail := FailHint("not authenticated", authHint)
			return nil, nil, &fail
		}
		fail := FailErr("failed to build remote client", err)
		return nil, nil, &fail
	}
	return remote, record, nil
}

func handleTeams(ctx context.Context, cmdCtx *Context, params Params) Result {
	remote, record, fail := remoteOrFail(ctx, cmdCtx)
	if fail != nil {
		return *fail
	}

	teams, err := remote.Teams(ctx)
	if err != nil {
		return FailErr("failed to list teams", err)
	}

	var sb strings.Builder
	sb.WriteString("Teams:\n")
	for _, team := range teams {
		marker := ""
		if team.ID == record.DefaultTeamID {
			marker = " (default)"
		}
		fmt.Fprintf(&sb, "- **%s** `%s` — %s%s\n", team.Key, team.ID, team.Name, marker)
	}
	result := OkMarkdown(fmt.Sprintf("%d teams", len(teams)), sb.String())
	result.Data = map[string]any{"teams": teams}
	return result
}

func handleProjects(ctx context.Context, cmdCtx *Context, params Params) Result {
	remote, record, fail := remoteOrFail(ctx, cmdCtx)
	if fail != nil {
		return *fail
	}
	teamID := resolveTeamID(cmdCtx, record, params)
	if teamID == "" {
		return FailHint("no team scope", "Pass `team:<id>` or set a default with `/mo settings team:<id>`.")
	}

	if name := params.Get("create"); name != "" {
		project, err := remote.CreateProject(ctx, teamID, name)
		if err != nil {
			return FailErr("failed to create project", err)
		}
		result := Ok(fmt.Sprintf("created project %s", project.Name))
		result.Data = map[string]any{"project": project}
		return result
	}

	projects, err := remote.Projects(ctx, teamID)
	if err != nil {
		return FailErr("failed to list projects", err)
	}
	var sb strings.Builder
	sb.WriteString("Projects:\n")
	for _, project := range projects {
		fmt.Fprintf(&sb, "- `%s` %s\n", project.ID, project.Name)
	}
	result := OkMarkdown(fmt.Sprintf("%d projects", len(projects)), sb.String())
	result.Data = map[string]any{"projects": projects}
	return result
}

func handleCycles(ctx context.Context, cmdCtx *Context, params Params) Result {
	remote, record, fail := remoteOrFail(ctx, cmdCtx)
	if fail != nil {
		return *fail
	}
	teamID := resolveTeamID(cmdCtx, record, params)
	if teamID == "" {
		return FailHint("no team scope", "Pass `team:<id>` or set a default with `/mo settings team:<id>`.")
	}

	if name := params.Get("create"); name != "" {
		starts := time.Now().UTC()
		weeks, err := params.Int("weeks", 2)
		if err != nil {
			return Fail(err.Error())
		}
		cycle, err := remote.CreateCycle(ctx, teamID, name, starts, starts.AddDate(0, 0, 7*weeks))
		if err != nil {
			return FailErr("failed to create cycle", err)
		}
		result := Ok(fmt.Sprintf("created cycle %s", cycle.ID))
		result.Data = map[string]any{"cycle": cycle}
		return result
	}

	cycles, err := remote.Cycles(ctx, teamID)
	if err != nil {
		return FailErr("failed to list cycles", err)
	}
	var sb strings.Builder
	sb.WriteString("Cycles:\n")
	for _, cycle := range cycles {
		fmt.Fprintf(&sb, "- `%s` #%d %s\n", cycle.ID, cycle.Number, cycle.Name)
	}
	result := OkMarkdown(fmt.Sprintf("%d cycles", len(cycles)), sb.String())
	result.Data = map[string]any{"cycles": cycles}
	return result
}

func handleStates(ctx context.Context, cmdCtx *Context, params Params) Result {
	remote, record, fail := remoteOrFail(ctx, cmdCtx)
	if fail != nil {
		return *fail
	}
	teamID := resolveTeamID(cmdCtx, record, params)
	if teamID == "" {
		return FailHint("no team scope", "Pass `team:<id>` or set a default with `/mo settings team:<id>`.")
	}

	team, err := remote.Team(ctx, teamID)
	if err != nil {
		return FailErr("failed to fetch team", err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Workflow states for %s:\n", team.Name)
	for _, state := range team.States {
		fmt.Fprintf(&sb, "- `%s` %s (%s)\n", state.ID, state.Name, state.Type)
	}
	result := OkMarkdown(fmt.Sprintf("%d states", len(team.States)), sb.String())
	result.Data = map[string]any{"states": team.States, "team": team.ID}
	return result
}

func handleIssues(ctx context.Context, cmdCtx *Context, params Params) Result {
	remote, record, fail := remoteOrFail(ctx, cmdCtx)
	if fail != nil {
		return *fail
	}

	if issueID := params.Get("id"); issueID != "" {
		issue, err := remote.Issue(ctx, issueID)
		if err != nil {
			return FailErr("failed to fetch issue", err)
		}
		result := OkMarkdown(issue.Identifier, formatIssue(issue))
		result.Data = map[string]any{"issue": issue}
		return result
	}

	teamID := resolveTeamID(cmdCtx, record, params)
	if teamID == "" {
		return FailHint("no team scope", "Pass `team:<id>` or set a default with `/mo settings team:<id>`.")
	}
	limit, err := params.Int("limit", 0)
	if err != nil {
		return Fail(err.Error())
	}

	filter := linear.IssueFilter{TeamID: teamID, Query: params.Get("filter")}
	for _, raw := range params.List("states") {
		state, err := models.ParseStateType(raw)
		if err != nil {
			return Fail(err.Error())
		}
		filter.StateTypes = append(filter.StateTypes, state)
	}

	issues, err := remote.AllIssues(ctx, filter, limit)
	if err != nil {
		return FailErr("failed to list issues", err)
	}
	var sb strings.Builder
	sb.WriteString("Issues:\n")
	for _, issue := range issues {
		state := ""
		if issue.State != nil {
			state = " [" + issue.State.Name + "]"
		}
		fmt.Fprintf(&sb, "- **%s** %s%s\n", issue.Identifier, issue.Title, state)
	}
	result := OkMarkdown(fmt.Sprintf("%d issues", len(issues)), sb.String())
	result.Data = map[string]any{"issues": issues}
	return result
}

func handleComment(ctx context.Context, cmdCtx *Context, params Params) Result {
	remote, _, fail := remoteOrFail(ctx, cmdCtx)
	if fail != nil {
		return *fail
	}
	issueID := params.Get("issue")
	body := params.Get("body")
	if issueID == "" || body == "" {
		return Fail("issue and body parameters are required")
	}
	if err := remote.AddComment(ctx, issueID, body); err != nil {
		return FailErr("failed to add comment", err)
	}
	return Ok(fmt.Sprintf("comment added to %s", issueID))
}

func handleRelate(ctx context.Context, cmdCtx *Context, params Params) Result {
	remote, _, fail := remoteOrFail(ctx, cmdCtx)
	if fail != nil {
		return *fail
	}
	issueID := params.Get("issue")
	if issueID == "" {
		return Fail("issue parameter is required")
	}

	if params.Has("list") {
		relations, err := remote.IssueRelations(ctx, issueID)
		if err != nil {
			return FailErr("failed to list relations", err)
		}
		var sb strings.Builder
		sb.WriteString("Relations:\n")
		for _, rel := range relations {
			fmt.Fprintf(&sb, "- %s → `%s`\n", rel.Type, rel.RelatedIssue)
		}
		result := OkMarkdown(fmt.Sprintf("%d relations", len(relations)), sb.String())
		result.Data = map[string]any{"relations": relations}
		return result
	}

	relatedID := params.Get("to")
	if relatedID == "" {
		return Fail("to parameter is required")
	}
	relationType, err := models.ParseRelationType(params.Get("type"))
	if err != nil {
		return Fail(err.Error())
	}
	if err := remote.CreateRelation(ctx, issueID, relatedID, relationType); err != nil {
		return FailErr("failed to create relation", err)
	}
	return Ok(fmt.Sprintf("%s %s %s", issueID, relationType, relatedID))
}

func formatIssue(issue *models.RemoteIssue) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** %s\n", issue.Identifier, issue.Title)
	if issue.State != nil {
		fmt.Fprintf(&sb, "State: %s (%s)\n", issue.State.Name, issue.State.Type)
	}
	if issue.Priority != nil {
		fmt.Fprintf(&sb, "Priority: %d\n", *issue.Priority)
	}
	if issue.Estimate != nil {
		fmt.Fprintf(&sb, "Estimate: %d\n", *issue.Estimate)
	}
	if issue.Assignee != nil {
		fmt.Fprintf(&sb, "Assignee: %s\n", issue.Assignee.Name)
	}
	if len(issue.Labels) > 0 {
		names := make([]string, len(issue.Labels))
		for i, label := range issue.Labels {
			names[i] = label.Name
		}
		fmt.Fprintf(&sb, "Labels: %s\n", strings.Join(names, ", "))
	}
	if issue.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", issue.Description)
	}
	if issue.URL != "" {
		fmt.Fprintf(&sb, "\n%s\n", issue.URL)
	}
	return sb.String()
}
