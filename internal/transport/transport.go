// Package transport speaks the line-oriented stdio protocol: one JSON
// request envelope per inbound line, one JSON response object per
// outbound line.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"mobridge/internal/command"
)

// Protocol version this transport speaks, and the minimum peer version
// accepted. The check is advisory: envelopes without a version pass.
const (
	ProtocolVersion = "1.0"
	minMajor        = 1
	minMinor        = 0
)

// State is the transport lifecycle phase.
type State int

const (
	StateStopped State = iota
	StateListening
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateListening:
		return "listening"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// envelope is one inbound request line.
type envelope struct {
	Command string          `json:"command"`
	Context json.RawMessage `json:"context,omitempty"`
	Version string          `json:"version,omitempty"`
	Type    string          `json:"type,omitempty"`
}

// response is one outbound line. Exactly one of the payload shapes is
// populated depending on the response kind.
type response struct {
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Version string          `json:"version,omitempty"`
	Tools   []command.Spec  `json:"tools,omitempty"`
	Result  *command.Result `json:"result,omitempty"`
}

// Transport drives the stdin/stdout protocol loop.
type Transport struct {
	router            *command.Router
	logger            *slog.Logger
	heartbeatInterval time.Duration

	mu    sync.Mutex
	state State

	writeMu sync.Mutex
	out     io.Writer
}

// New builds a transport. heartbeatInterval <= 0 disables the heartbeat.
func New(router *command.Router, out io.Writer, heartbeatInterval time.Duration, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		router:            router,
		logger:            logger.With("component", "transport"),
		heartbeatInterval: heartbeatInterval,
		out:               out,
	}
}

// State returns the current lifecycle phase.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Run reads envelopes from in until EOF or ctx cancellation. It emits the
// handshake (with the tool manifest) first, then serves requests, with a
// heartbeat ticker sharing the writer.
func (t *Transport) Run(ctx context.Context, in io.Reader) error {
	t.setState(StateListening)
	defer t.setState(StateStopped)

	t.writeResponse(response{
		Type:    "handshake",
		Success: true,
		Message: "ready",
		Version: ProtocolVersion,
		Tools:   t.router.Manifest(),
	})

	if t.heartbeatInterval > 0 {
		heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
		defer stopHeartbeat()
		go t.heartbeat(heartbeatCtx)
	}

	t.setState(StateRunning)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			t.handleLine(ctx, line)
		}
	}
}

func (t *Transport) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(t.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.writeResponse(response{Type: "heartbeat", Success: true, Message: "ping"})
		}
	}
}

func (t *Transport) handleLine(ctx context.Context, line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	// Bare ping lines predate the JSON envelope; keep answering them.
	if trimmed == "ping" {
		t.writeResponse(response{Type: "pong", Success: true, Message: "pong"})
		return
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		t.writeResponse(response{
			Type:    "error",
			Success: false,
			Error:   "malformed request: expected one JSON object per line",
		})
		return
	}

	if env.Type == "ping" {
		t.writeResponse(response{Type: "pong", Success: true, Message: "pong"})
		return
	}

	if msg, ok := checkVersion(env.Version); !ok {
		t.writeResponse(response{Type: "error", Success: false, Error: msg})
		return
	}

	result, ok := t.router.Dispatch(ctx, env.Command)
	if !ok {
		// Non-namespaced command text is ignored by design; the peer
		// multiplexes other traffic on the same stream.
		return
	}
	t.writeResponse(response{
		Type:    "result",
		Success: result.Success,
		Message: result.Message,
		Error:   result.Error,
		Result:  &result,
	})
}

// checkVersion validates a peer protocol version against the supported
// minimum. Absent or unparsable versions pass; the gate is advisory.
func checkVersion(version string) (string, bool) {
	version = strings.TrimSpace(version)
	if version == "" {
		return "", true
	}
	major, minor, ok := parseMajorMinor(version)
	if !ok {
		return "", true
	}
	if major > minMajor || (major == minMajor && minor >= minMinor) {
		return "", true
	}
	return fmt.Sprintf("protocol version %s is below the minimum supported %d.%d",
		version, minMajor, minMinor), false
}

func parseMajorMinor(version string) (major, minor int, ok bool) {
	parts := strings.SplitN(strings.TrimPrefix(version, "v"), ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// writeResponse serializes one response as a newline-terminated JSON
// object. The mutex keeps heartbeat and command responses from
// interleaving.
func (t *Transport) writeResponse(resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		t.logger.Error("failed to marshal response", "error", err)
		return
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.out.Write(append(data, '\n')); err != nil {
		t.logger.Error("failed to write response", "error", err)
	}
}
