package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mobridge/internal/models"
	"mobridge/internal/syncer"
)

func handleSync(ctx context.Context, cmdCtx *Context, params Params) Result {
	return runSync(ctx, cmdCtx, params, models.DirectionBoth)
}

func handlePush(ctx context.Context, cmdCtx *Context, params Params) Result {
	return runSync(ctx, cmdCtx, params, models.DirectionPush)
}

func handlePull(ctx context.Context, cmdCtx *Context, params Params) Result {
	return runSync(ctx, cmdCtx, params, models.DirectionPull)
}

func runSync(ctx context.Context, cmdCtx *Context, params Params, def models.SyncDirection) Result {
	remote, record, err := cmdCtx.Remote(ctx)
	if err != nil {
		if errors.Is(err, errNotAuthenticated) {
			return FailHint("not authenticated", authHint)
		}
		return FailErr("failed to build remote client", err)
	}

	direction, err := params.Direction("direction", def)
	if err != nil {
		return Fail(err.Error())
	}
	dryRun, err := params.Bool("dryrun", false)
	if err != nil {
		return Fail(err.Error())
	}
	force, err := params.Bool("force", false)
	if err != nil {
		return Fail(err.Error())
	}
	limit, err := params.Int("limit", 0)
	if err != nil {
		return Fail(err.Error())
	}

	var states []models.StateType
	for _, raw := range params.List("states") {
		state, err := models.ParseStateType(raw)
		if err != nil {
			return Fail(err.Error())
		}
		states = append(states, state)
	}

	teamID := resolveTeamID(cmdCtx, record, params)
	if teamID == "" && direction != models.DirectionPush {
		return FailHint("no team scope",
			"Pulling needs a team. Pass `team:<id>` or set one with `/mo settings team:<id>`.")
	}

	opts := syncer.Options{
		Direction: direction,
		Filter:    params.Get("filter"),
		TeamID:    teamID,
		IssueIDs:  params.List("issues"),
		States:    states,
		Limit:     limit,
		DryRun:    dryRun,
		Force:     force,
	}

	engine := cmdCtx.Engine(remote, teamID)
	result, err := engine.Sync(ctx, opts)
	if err != nil {
		return FailErr("sync failed", err)
	}
	return syncResultToResult(result, direction, dryRun)
}

func syncResultToResult(sr *models.SyncResult, direction models.SyncDirection, dryRun bool) Result {
	verb := "synced"
	if dryRun {
		verb = "would sync"
	}
	message := fmt.Sprintf("%s %s: %d added, %d updated, %d conflicts, %d failed",
		verb, direction, sr.Added, sr.Updated, sr.Conflicts, len(sr.Errors))

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sync (%s", direction)
	if dryRun {
		sb.WriteString(", dry run")
	}
	sb.WriteString(")\n\n")
	fmt.Fprintf(&sb, "- Added: %d\n- Updated: %d\n- Conflicts: %d\n- Failed: %d\n",
		sr.Added, sr.Updated, sr.Conflicts, len(sr.Errors))
	writeItems(&sb, "Conflicted", sr.Details.Conflicted)
	writeItems(&sb, "Failed", sr.Details.Failed)
	writeItems(&sb, "Skipped", sr.Details.Skipped)

	result := OkMarkdown(message, sb.String())
	result.Data = map[string]any{"result": sr, "direction": direction, "dryRun": dryRun}
	if sr.Conflicts > 0 && !dryRun {
		result.ActionButtons = []ActionButton{
			{Label: "Force push", Command: Namespace + " push force:true"},
			{Label: "Force pull", Command: Namespace + " pull force:true"},
		}
	}
	return result
}

func writeItems(sb *strings.Builder, title string, items []models.SyncItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, item := range items {
		label := item.Local
		if label == "" {
			label = item.Remote
		}
		if item.Reason != "" {
			fmt.Fprintf(sb, "- `%s`: %s\n", label, item.Reason)
		} else {
			fmt.Fprintf(sb, "- `%s`\n", label)
		}
	}
}

// resolveTeamID picks the team scope: explicit parameter, then the auth
// record's default, then the config file.
func resolveTeamID(cmdCtx *Context, record *models.AuthRecord, params Params) string {
	if teamID := params.Get("team"); teamID != "" {
		return teamID
	}
	if record != nil && record.DefaultTeamID != "" {
		return record.DefaultTeamID
	}
	return cmdCtx.Config.DefaultTeamID
}
