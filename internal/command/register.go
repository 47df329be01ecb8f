package command

import "context"

func registerAll(r *Router) {
	r.Register(Spec{
		Name:        "auth",
		Description: "Validate and store a remote API credential",
		Usage:       `auth key:"<api key>" [team:<id>]`,
	}, handleAuth)
	r.Register(Spec{
		Name:        "status",
		Description: "Show the authenticated user and default team",
		Usage:       "status",
	}, handleStatus)
	r.Register(Spec{
		Name:        "logout",
		Description: "Destroy the stored credential",
		Usage:       "logout",
	}, handleLogout)
	r.Register(Spec{
		Name:        "settings",
		Description: "Show or change bridge settings",
		Usage:       `settings [team:<id>] [set:<key> value:"<value>"]`,
	}, handleSettings)

	r.Register(Spec{
		Name:        "sync",
		Description: "Reconcile local tasks and remote issues in both directions",
		Usage:       "sync [direction:push|pull|both] [dryrun:true] [force:true] [filter:<text>] [team:<id>] [limit:<n>]",
	}, handleSync)
	r.Register(Spec{
		Name:        "push",
		Description: "Push local task changes to the remote tracker",
		Usage:       "push [dryrun:true] [force:true] [filter:<text>]",
	}, handlePush)
	r.Register(Spec{
		Name:        "pull",
		Description: "Pull remote issue changes into local tasks",
		Usage:       "pull [dryrun:true] [force:true] [states:<type,...>] [issues:<id,...>]",
	}, handlePull)

	r.Register(Spec{
		Name:        "teams",
		Description: "List remote teams",
		Usage:       "teams",
	}, handleTeams)
	r.Register(Spec{
		Name:        "projects",
		Description: "List or create projects in a team",
		Usage:       `projects [team:<id>] [create:"<name>"]`,
	}, handleProjects)
	r.Register(Spec{
		Name:        "cycles",
		Description: "List or create cycles in a team",
		Usage:       `cycles [team:<id>] [create:"<name>" weeks:<n>]`,
	}, handleCycles)
	r.Register(Spec{
		Name:        "states",
		Description: "List workflow states for a team",
		Usage:       "states [team:<id>]",
	}, handleStates)
	r.Register(Spec{
		Name:        "issues",
		Description: "List remote issues or show one by id",
		Usage:       "issues [id:<issue id>] [filter:<text>] [states:<type,...>] [limit:<n>]",
	}, handleIssues)
	r.Register(Spec{
		Name:        "comment",
		Description: "Add a comment to a remote issue",
		Usage:       `comment issue:<id> body:"<text>"`,
	}, handleComment)
	r.Register(Spec{
		Name:        "relate",
		Description: "Link two remote issues or list an issue's relations",
		Usage:       "relate issue:<id> [to:<id> type:blocks|blocked-by|relates-to|duplicate|duplicated-by] [list:true]",
	}, handleRelate)

	r.Register(Spec{
		Name:        "webhook-register",
		Description: "Register a webhook on the remote tracker",
		Usage:       "webhook-register [url:<https endpoint>] [team:<id>] [resources:<type,...>]",
	}, handleWebhookRegister)
	r.Register(Spec{
		Name:        "webhook-list",
		Description: "List registered webhooks",
		Usage:       "webhook-list [remote:true]",
	}, handleWebhookList)
	r.Register(Spec{
		Name:        "webhook-delete",
		Description: "Delete a webhook remotely and locally",
		Usage:       "webhook-delete id:<webhook id>",
	}, handleWebhookDelete)

	r.Register(Spec{
		Name:        "task-create",
		Description: "Create a local task",
		Usage:       `task-create title:"<title>" [description:"<text>"] [priority:<0-4>] [estimate:<0-21>] [feature:<context>]`,
	}, handleTaskCreate)
	r.Register(Spec{
		Name:        "task-list",
		Description: "List local tasks",
		Usage:       "task-list [selected:true] [mapped:true|false] [filter:<text>] [limit:<n>]",
	}, handleTaskList)
	r.Register(Spec{
		Name:        "task-import",
		Description: "Import tasks from a markdown list with yaml front matter",
		Usage:       `task-import file:<path> | content:"<markdown>"`,
	}, handleTaskImport)

	r.Register(Spec{
		Name:        "help",
		Description: "List available commands",
		Usage:       "help",
	}, func(ctx context.Context, cmdCtx *Context, params Params) Result {
		return OkMarkdown("available commands", r.helpMarkdown())
	})
}
