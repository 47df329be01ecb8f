package command

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"mobridge/internal/models"
	"mobridge/internal/store"
)

func handleTaskCreate(ctx context.Context, cmdCtx *Context, params Params) Result {
	title := params.Get("title")
	if title == "" {
		return Fail("title parameter is required")
	}

	task := models.Task{
		Title:          title,
		Description:    params.Get("description"),
		FeatureContext: params.Get("feature"),
	}
	selected, err := params.Bool("selected", true)
	if err != nil {
		return Fail(err.Error())
	}
	task.Selected = selected

	if params.Has("priority") {
		priority, err := params.Int("priority", 0)
		if err != nil {
			return Fail(err.Error())
		}
		if !models.IsValidPriority(priority) {
			return Fail(fmt.Sprintf("priority must be between %d and %d",
				models.PriorityMin, models.PriorityMax))
		}
		task.Priority = &priority
	}
	if params.Has("estimate") {
		estimate, err := params.Int("estimate", 0)
		if err != nil {
			return Fail(err.Error())
		}
		if !models.IsValidEstimate(estimate) {
			return Fail(fmt.Sprintf("estimate must be between %d and %d",
				models.EstimateMin, models.EstimateMax))
		}
		task.Estimate = &estimate
	}

	id, err := store.GenerateTaskID(cmdCtx.Store.TaskExists)
	if err != nil {
		return FailErr("failed to generate task id", err)
	}
	now := time.Now().UTC()
	task.ID = id
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := cmdCtx.Store.CreateTask(ctx, &task); err != nil {
		return FailErr("failed to create task", err)
	}

	result := Ok(fmt.Sprintf("created task %s", task.ID))
	result.Data = map[string]any{"task": task}
	return result
}

func handleTaskList(ctx context.Context, cmdCtx *Context, params Params) Result {
	filter := store.ListFilter{
		TitleContains: params.Get("filter"),
	}
	selectedOnly, err := params.Bool("selected", false)
	if err != nil {
		return Fail(err.Error())
	}
	filter.SelectedOnly = selectedOnly
	if params.Has("mapped") {
		mapped, err := params.Bool("mapped", false)
		if err != nil {
			return Fail(err.Error())
		}
		filter.Mapped = &mapped
	}
	limit, err := params.Int("limit", 0)
	if err != nil {
		return Fail(err.Error())
	}
	filter.Limit = limit

	tasks, err := cmdCtx.Store.ListTasks(ctx, filter)
	if err != nil {
		return FailErr("failed to list tasks", err)
	}

	var sb strings.Builder
	sb.WriteString("Tasks:\n")
	if len(tasks) == 0 {
		sb.WriteString("- (none)\n")
	}
	for _, task := range tasks {
		mapped := ""
		if task.Mapped() {
			mapped = " ↔ " + task.RemoteIdentifier
		}
		fmt.Fprintf(&sb, "- `%s` %s%s\n", task.ID, task.Title, mapped)
	}
	result := OkMarkdown(fmt.Sprintf("%d tasks", len(tasks)), sb.String())
	result.Data = map[string]any{"tasks": tasks}
	return result
}

func handleTaskImport(ctx context.Context, cmdCtx *Context, params Params) Result {
	content := params.Get("content")
	if content == "" {
		path := params.Get("file")
		if path == "" {
			return Fail("content or file parameter is required")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return FailErr("failed to read import file", err)
		}
		content = string(data)
	}

	front, titles, err := parseTaskMarkdown(content)
	if err != nil {
		return FailErr("failed to parse markdown", err)
	}
	if len(titles) == 0 {
		return Fail("no list items found to import")
	}

	selected := true
	if front.Selected != nil {
		selected = *front.Selected
	}

	created := make([]string, 0, len(titles))
	for _, title := range titles {
		id, err := store.GenerateTaskID(cmdCtx.Store.TaskExists)
		if err != nil {
			return FailErr("failed to generate task id", err)
		}
		now := time.Now().UTC()
		task := models.Task{
			ID:             id,
			Title:          title,
			Priority:       front.Priority,
			Estimate:       front.Estimate,
			FeatureContext: front.Feature,
			Selected:       selected,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := cmdCtx.Store.CreateTask(ctx, &task); err != nil {
			return FailErr(fmt.Sprintf("imported %d of %d tasks, then failed", len(created), len(titles)), err)
		}
		created = append(created, id)
	}

	result := Ok(fmt.Sprintf("imported %d tasks", len(created)))
	result.Data = map[string]any{"taskIds": created}
	result.ActionButtons = []ActionButton{{Label: "Push to tracker", Command: Namespace + " push"}}
	return result
}
