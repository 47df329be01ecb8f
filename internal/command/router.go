package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// HandlerFunc runs one command against the shared context.
type HandlerFunc func(ctx context.Context, cmdCtx *Context, params Params) Result

// Spec describes a registered command for help output and the tool
// manifest the transport advertises.
type Spec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	run         HandlerFunc
}

// Router parses command lines and dispatches them to registered handlers.
type Router struct {
	commands map[string]*Spec
	cmdCtx   *Context
}

// NewRouter builds a router with the full handler set registered.
func NewRouter(cmdCtx *Context) *Router {
	r := &Router{
		commands: make(map[string]*Spec),
		cmdCtx:   cmdCtx,
	}
	registerAll(r)
	return r
}

// Register adds one command.
func (r *Router) Register(spec Spec, run HandlerFunc) {
	spec.run = run
	r.commands[spec.Name] = &spec
}

// Manifest returns the registered commands sorted by name.
func (r *Router) Manifest() []Spec {
	out := make([]Spec, 0, len(r.commands))
	for _, spec := range r.commands {
		out = append(out, *spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch parses a raw command line and runs the matching handler. ok is
// false when the line is not namespaced and should be ignored. Unknown
// commands and handler panics both come back as failure results, never as
// panics or errors.
func (r *Router) Dispatch(ctx context.Context, line string) (result Result, ok bool) {
	name, params, ok := ParseLine(line)
	if !ok {
		return Result{}, false
	}
	if name == "" {
		return FailHint("missing command name", r.helpMarkdown()), true
	}

	spec, found := r.commands[name]
	if !found {
		return FailHint(
			fmt.Sprintf("unknown command: %s", name),
			fmt.Sprintf("`%s %s` is not a known command.\n\n%s", Namespace, name, r.helpMarkdown()),
		), true
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			r.cmdCtx.Logger.Error("command handler panicked", "command", name, "panic", recovered)
			result = Fail(fmt.Sprintf("internal error running %s: %v", name, recovered))
			ok = true
		}
	}()

	return spec.run(ctx, r.cmdCtx, params), true
}

func (r *Router) helpMarkdown() string {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, spec := range r.Manifest() {
		fmt.Fprintf(&sb, "- `%s %s` — %s\n", Namespace, spec.Usage, spec.Description)
	}
	return sb.String()
}
