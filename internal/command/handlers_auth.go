package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mobridge/internal/config"
	"mobridge/internal/models"
)

const authHint = "Authenticate first: `/mo auth key:\"<api key>\"` " +
	"(or set the MOBRIDGE_API_KEY environment variable and run `/mo auth`)."

func handleAuth(ctx context.Context, cmdCtx *Context, params Params) Result {
	apiKey := params.Get("key")
	if apiKey == "" {
		apiKey = config.EnvAPIKey()
	}
	if apiKey == "" {
		return FailHint("missing required parameter: key", authHint)
	}

	remote := cmdCtx.NewRemote(apiKey)
	viewer, err := remote.Viewer(ctx)
	if err != nil {
		return FailErr("credential validation failed", err)
	}

	sealed, err := cmdCtx.Sealer.Seal(apiKey)
	if err != nil {
		return FailErr("failed to seal credential", err)
	}

	teamID := params.Get("team")
	if teamID == "" {
		teamID = cmdCtx.Config.DefaultTeamID
	}

	now := time.Now().UTC()
	record := &models.AuthRecord{
		APIKeySealed:  sealed,
		DefaultTeamID: teamID,
		UserID:        viewer.ID,
		UserName:      viewer.Name,
		UserEmail:     viewer.Email,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing, err := cmdCtx.Store.GetAuth(ctx); err == nil && existing != nil {
		record.CreatedAt = existing.CreatedAt
		if teamID == "" {
			record.DefaultTeamID = existing.DefaultTeamID
		}
	}
	if err := cmdCtx.Store.SaveAuth(ctx, record); err != nil {
		return FailErr("failed to persist auth record", err)
	}
	cmdCtx.ResetRemote()

	name := viewer.Name
	if name == "" {
		name = viewer.DisplayName
	}
	result := Ok(fmt.Sprintf("authenticated as %s", name))
	result.Data = map[string]any{"user": viewer, "defaultTeamId": record.DefaultTeamID}
	if record.DefaultTeamID == "" {
		result.Markdown = "No default team set. Pick one with `/mo teams` " +
			"and `/mo settings team:<id>`."
		result.ActionButtons = []ActionButton{{Label: "List teams", Command: Namespace + " teams"}}
	}
	return result
}

func handleStatus(ctx context.Context, cmdCtx *Context, params Params) Result {
	record, err := cmdCtx.Store.GetAuth(ctx)
	if err != nil {
		return FailErr("failed to read auth record", err)
	}
	if record == nil {
		return FailHint("not authenticated", authHint)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Authenticated as **%s**", record.UserName)
	if record.UserEmail != "" {
		fmt.Fprintf(&sb, " (%s)", record.UserEmail)
	}
	sb.WriteString("\n")
	if record.DefaultTeamID != "" {
		fmt.Fprintf(&sb, "Default team: `%s`\n", record.DefaultTeamID)
	} else {
		sb.WriteString("No default team configured.\n")
	}

	hooks, err := cmdCtx.Store.ListWebhooks(ctx)
	if err == nil {
		fmt.Fprintf(&sb, "Registered webhooks: %d\n", len(hooks))
	}

	result := OkMarkdown(fmt.Sprintf("authenticated as %s", record.UserName), sb.String())
	result.Data = map[string]any{
		"userId":        record.UserID,
		"userName":      record.UserName,
		"defaultTeamId": record.DefaultTeamID,
	}
	return result
}

func handleLogout(ctx context.Context, cmdCtx *Context, params Params) Result {
	deleted, err := cmdCtx.Store.DeleteAuth(ctx)
	if err != nil {
		return FailErr("failed to destroy auth record", err)
	}
	cmdCtx.ResetRemote()
	if !deleted {
		return Ok("already logged out")
	}
	return Ok("logged out; credential destroyed")
}

func handleSettings(ctx context.Context, cmdCtx *Context, params Params) Result {
	if teamID := params.Get("team"); teamID != "" {
		if err := cmdCtx.Store.SetDefaultTeam(ctx, teamID, time.Now().UTC()); err != nil {
			return FailErr("failed to set default team", err)
		}
		return Ok(fmt.Sprintf("default team set to %s", teamID))
	}

	if key := params.Get("set"); key != "" {
		value := params.Get("value")
		if err := cmdCtx.Store.SetSetting(ctx, key, value, time.Now().UTC()); err != nil {
			return FailErr("failed to save setting", err)
		}
		return Ok(fmt.Sprintf("setting %s saved", key))
	}

	settings, err := cmdCtx.Store.ListSettings(ctx)
	if err != nil {
		return FailErr("failed to list settings", err)
	}
	var sb strings.Builder
	sb.WriteString("Settings:\n")
	if len(settings) == 0 {
		sb.WriteString("- (none)\n")
	}
	for key, value := range settings {
		fmt.Fprintf(&sb, "- `%s` = `%s`\n", key, value)
	}
	result := OkMarkdown(fmt.Sprintf("%d settings", len(settings)), sb.String())
	result.Data = map[string]any{"settings": settings}
	return result
}
