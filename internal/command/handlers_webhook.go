package command

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"mobridge/internal/linear"
	"mobridge/internal/models"
)

// defaultResourceTypes are the remote event categories a registration
// subscribes to unless the caller narrows them.
var defaultResourceTypes = []string{"Issue", "Comment", "IssueLabel"}

func handleWebhookRegister(ctx context.Context, cmdCtx *Context, params Params) Result {
	remote, record, fail := remoteOrFail(ctx, cmdCtx)
	if fail != nil {
		return *fail
	}

	teamID := resolveTeamID(cmdCtx, record, params)
	if teamID == "" {
		return FailHint("no team scope", "Pass `team:<id>` or set a default with `/mo settings team:<id>`.")
	}

	url := params.Get("url")
	if url == "" {
		url = cmdCtx.Config.WebhookPublicURL()
	}
	if url == "" {
		return FailHint("missing webhook url",
			"Pass `url:<https endpoint>` or configure `webhook.public_url` so the listener address is known.")
	}

	existing, err := cmdCtx.Store.FindWebhookByScope(ctx, teamID, url)
	if err != nil {
		return FailErr("failed to check existing webhooks", err)
	}

	resources := params.List("resources")
	if len(resources) == 0 {
		resources = defaultResourceTypes
	}
	secret, err := newWebhookSecret()
	if err != nil {
		return FailErr("failed to generate webhook secret", err)
	}

	created, err := remote.CreateWebhook(ctx, linear.WebhookCreate{
		TeamID:        teamID,
		URL:           url,
		Label:         params.Get("label"),
		ResourceTypes: resources,
		Secret:        secret,
	})
	if err != nil {
		return FailErr("failed to register webhook", err)
	}

	hook := &models.WebhookConfig{
		ID:            created.ID,
		URL:           created.URL,
		TeamID:        teamID,
		Label:         created.Label,
		ResourceTypes: created.ResourceTypes,
		Secret:        secret,
		Enabled:       created.Enabled,
		CreatedAt:     time.Now().UTC(),
	}
	if err := cmdCtx.Store.SaveWebhook(ctx, hook); err != nil {
		return FailErr("webhook registered remotely but could not be saved locally", err)
	}

	result := Ok(fmt.Sprintf("webhook %s registered for %s", created.ID, url))
	result.Data = map[string]any{"webhook": hook}
	if existing != nil {
		result.Markdown = fmt.Sprintf(
			"A webhook for this team and URL already existed (`%s`). Both are now active; "+
				"delete the stale one with `/mo webhook-delete id:%s`.", existing.ID, existing.ID)
	}
	return result
}

func handleWebhookList(ctx context.Context, cmdCtx *Context, params Params) Result {
	hooks, err := cmdCtx.Store.ListWebhooks(ctx)
	if err != nil {
		return FailErr("failed to list webhooks", err)
	}

	// remote:true cross-checks against the tracker's view.
	var remoteHooks []linear.RemoteWebhook
	if check, _ := params.Bool("remote", false); check {
		remote, _, fail := remoteOrFail(ctx, cmdCtx)
		if fail != nil {
			return *fail
		}
		remoteHooks, err = remote.Webhooks(ctx)
		if err != nil {
			return FailErr("failed to list remote webhooks", err)
		}
	}

	var sb strings.Builder
	sb.WriteString("Webhooks:\n")
	if len(hooks) == 0 {
		sb.WriteString("- (none)\n")
	}
	remoteKnown := make(map[string]bool, len(remoteHooks))
	for _, hook := range remoteHooks {
		remoteKnown[hook.ID] = true
	}
	for _, hook := range hooks {
		status := "enabled"
		if !hook.Enabled {
			status = "disabled"
		}
		fmt.Fprintf(&sb, "- `%s` %s team=%s [%s] %s\n",
			hook.ID, hook.URL, hook.TeamID, strings.Join(hook.ResourceTypes, ","), status)
		if remoteHooks != nil && !remoteKnown[hook.ID] {
			sb.WriteString("  - missing on remote; re-register or delete\n")
		}
	}

	result := OkMarkdown(fmt.Sprintf("%d webhooks", len(hooks)), sb.String())
	result.Data = map[string]any{"webhooks": hooks}
	return result
}

func handleWebhookDelete(ctx context.Context, cmdCtx *Context, params Params) Result {
	id := params.Get("id")
	if id == "" {
		return Fail("id parameter is required")
	}

	remote, _, fail := remoteOrFail(ctx, cmdCtx)
	if fail != nil {
		return *fail
	}
	if err := remote.DeleteWebhook(ctx, id); err != nil {
		return FailErr("failed to delete remote webhook", err)
	}
	deleted, err := cmdCtx.Store.DeleteWebhook(ctx, id)
	if err != nil {
		return FailErr("remote webhook deleted but local record removal failed", err)
	}
	if !deleted {
		return Ok(fmt.Sprintf("webhook %s deleted (no local record existed)", id))
	}
	return Ok(fmt.Sprintf("webhook %s deleted", id))
}

func newWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
