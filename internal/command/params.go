package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mobridge/internal/models"
)

// Namespace is the leading token every routed command line carries.
const Namespace = "/mo"

// Params is the flat string-keyed parameter map parsed from a command
// line. Required-parameter checks live in the handlers, not the parser.
type Params map[string]string

// paramToken matches key:"quoted value" or key:value. Anything else in
// the parameter tail is skipped silently.
var paramToken = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_-]*):(?:"((?:[^"\\]|\\.)*)"|(\S+))`)

// ParseLine splits a raw `/mo <name> <params>` line into the command name
// and its parameters. ok is false when the line is not namespaced.
func ParseLine(line string) (name string, params Params, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed != Namespace && !strings.HasPrefix(trimmed, Namespace+" ") {
		return "", nil, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, Namespace))
	if rest == "" {
		return "", Params{}, true
	}

	parts := strings.SplitN(rest, " ", 2)
	name = strings.ToLower(parts[0])
	tail := ""
	if len(parts) == 2 {
		tail = parts[1]
	}
	return name, ParseParams(tail), true
}

// ParseParams parses a parameter tail. Malformed tokens never produce an
// error; they are dropped.
func ParseParams(tail string) Params {
	params := Params{}
	for _, match := range paramToken.FindAllStringSubmatch(tail, -1) {
		key := match[1]
		if match[2] != "" || strings.Contains(match[0], `:"`) {
			params[key] = unescapeQuoted(match[2])
		} else {
			params[key] = match[3]
		}
	}
	return params
}

func unescapeQuoted(value string) string {
	replacer := strings.NewReplacer(`\"`, `"`, `\\`, `\`)
	return replacer.Replace(value)
}

// Get returns a trimmed parameter value.
func (p Params) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// Has reports whether the parameter is present and non-empty.
func (p Params) Has(key string) bool {
	return p.Get(key) != ""
}

// Int coerces an integer parameter. Absent keys return def.
func (p Params) Int(key string, def int) (int, error) {
	raw := p.Get(key)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return value, nil
}

// Bool coerces a boolean parameter. Absent keys return def.
func (p Params) Bool(key string, def bool) (bool, error) {
	raw := p.Get(key)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false, got %q", key, raw)
	}
	return value, nil
}

// Direction coerces a sync direction parameter. Absent keys return def.
func (p Params) Direction(key string, def models.SyncDirection) (models.SyncDirection, error) {
	raw := p.Get(key)
	if raw == "" {
		return def, nil
	}
	return models.ParseDirection(raw)
}

// List coerces a comma-separated parameter into a slice.
func (p Params) List(key string) []string {
	raw := p.Get(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
