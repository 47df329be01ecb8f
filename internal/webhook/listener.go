// Package webhook runs the HTTP listener that receives remote tracker
// event deliveries and feeds them into targeted pulls.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mobridge/internal/models"
)

const (
	signatureHeader = "Linear-Signature"

	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 5 * time.Second

	maxBodyBytes = 1 << 20

	// Deliveries whose embedded timestamp drifts beyond this window are
	// rejected as replays.
	timestampTolerance = time.Minute
)

// Syncer pulls a single remote issue into the local store.
type Syncer interface {
	SyncIssue(ctx context.Context, issueID string) (*models.SyncResult, error)
}

// SecretSource supplies the shared secrets of enabled webhook
// registrations for signature verification.
type SecretSource interface {
	ListWebhooks(ctx context.Context) ([]models.WebhookConfig, error)
}

// payload is the remote delivery envelope. Only the fields the listener
// acts on are decoded.
type payload struct {
	Action           string          `json:"action"`
	Type             string          `json:"type"`
	WebhookTimestamp int64           `json:"webhookTimestamp"`
	Data             json.RawMessage `json:"data"`
}

type issueData struct {
	ID      string `json:"id"`
	IssueID string `json:"issueId"`
}

// Listener verifies and dispatches webhook deliveries.
type Listener struct {
	addr    string
	path    string
	secrets SecretSource
	syncer  Syncer
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a listener serving deliveries at path on addr.
func New(addr, path string, secrets SecretSource, syncer Syncer, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		addr:    addr,
		path:    path,
		secrets: secrets,
		syncer:  syncer,
		logger:  logger.With("component", "webhook"),
		now:     time.Now,
	}
}

// Handler returns the HTTP handler for the delivery endpoint.
func (l *Listener) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(l.path, l.handleDelivery)
	return mux
}

// Run serves deliveries until ctx is canceled, then shuts down gracefully.
func (l *Listener) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              l.addr,
		Handler:           l.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		l.logger.Info("webhook listener starting", "addr", l.addr, "path", l.path)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (l *Listener) handleDelivery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := l.verifySignature(r.Context(), body, r.Header.Get(signatureHeader)); err != nil {
		l.logger.Warn("rejected webhook delivery", "reason", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var delivery payload
	if err := json.Unmarshal(body, &delivery); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if err := l.checkFreshness(delivery.WebhookTimestamp); err != nil {
		l.logger.Warn("rejected webhook delivery", "reason", err)
		http.Error(w, "stale delivery", http.StatusUnauthorized)
		return
	}

	// The remote retries on non-2xx, so acknowledge before the pull; a
	// failed pull is logged and picked up by the next full sync.
	w.WriteHeader(http.StatusOK)

	l.dispatch(r.Context(), delivery)
}

func (l *Listener) dispatch(ctx context.Context, delivery payload) {
	switch delivery.Type {
	case "Issue":
		var data issueData
		if err := json.Unmarshal(delivery.Data, &data); err != nil || data.ID == "" {
			l.logger.Warn("issue delivery without id", "action", delivery.Action)
			return
		}
		l.pullIssue(ctx, data.ID, delivery.Action)
	case "Comment", "IssueLabel":
		// Comment and label events carry the parent issue; refresh it.
		var data issueData
		if err := json.Unmarshal(delivery.Data, &data); err != nil || data.IssueID == "" {
			l.logger.Debug("delivery without parent issue", "type", delivery.Type, "action", delivery.Action)
			return
		}
		l.pullIssue(ctx, data.IssueID, delivery.Action)
	default:
		l.logger.Debug("ignoring delivery", "type", delivery.Type, "action", delivery.Action)
	}
}

func (l *Listener) pullIssue(ctx context.Context, issueID, action string) {
	result, err := l.syncer.SyncIssue(ctx, issueID)
	if err != nil {
		l.logger.Error("webhook-triggered pull failed", "issue", issueID, "action", action, "error", err)
		return
	}
	l.logger.Info("webhook-triggered pull",
		"issue", issueID, "action", action,
		"added", result.Added, "updated", result.Updated)
}

// verifySignature checks the delivery HMAC against every enabled
// registration's secret. Any match accepts; constant-time comparison per
// candidate.
func (l *Listener) verifySignature(ctx context.Context, body []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("missing %s header", signatureHeader)
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("signature is not hex")
	}

	hooks, err := l.secrets.ListWebhooks(ctx)
	if err != nil {
		return fmt.Errorf("load webhook secrets: %w", err)
	}

	checked := 0
	for _, hook := range hooks {
		if !hook.Enabled || hook.Secret == "" {
			continue
		}
		checked++
		mac := hmac.New(sha256.New, []byte(hook.Secret))
		mac.Write(body)
		if hmac.Equal(provided, mac.Sum(nil)) {
			return nil
		}
	}
	if checked == 0 {
		return fmt.Errorf("no enabled webhook registrations")
	}
	return fmt.Errorf("signature matched none of %d registrations", checked)
}

func (l *Listener) checkFreshness(timestamp int64) error {
	if timestamp == 0 {
		return nil
	}
	delivered := time.UnixMilli(timestamp)
	drift := l.now().Sub(delivered)
	if drift < 0 {
		drift = -drift
	}
	if drift > timestampTolerance {
		return fmt.Errorf("timestamp drift %s exceeds %s", drift, timestampTolerance)
	}
	return nil
}
