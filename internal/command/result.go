package command

// ActionButton suggests a follow-up command the host can offer.
type ActionButton struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

// Result is the structured outcome of one command invocation. Handlers
// return it for every path, success or failure; they never panic outward.
type Result struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	Markdown      string         `json:"markdown,omitempty"`
	Error         string         `json:"error,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	ActionButtons []ActionButton `json:"actionButtons,omitempty"`
}

// Ok builds a success result.
func Ok(message string) Result {
	return Result{Success: true, Message: message}
}

// OkMarkdown builds a success result with a markdown body.
func OkMarkdown(message, markdown string) Result {
	return Result{Success: true, Message: message, Markdown: markdown}
}

// Fail builds a failure result.
func Fail(message string) Result {
	return Result{Success: false, Message: message, Error: message}
}

// FailHint builds a failure result with a markdown hint.
func FailHint(message, markdown string) Result {
	return Result{Success: false, Message: message, Error: message, Markdown: markdown}
}

// FailErr builds a failure result from an error.
func FailErr(message string, err error) Result {
	return Result{Success: false, Message: message, Error: err.Error()}
}
