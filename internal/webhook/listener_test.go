package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mobridge/internal/models"
)

type fakeSecrets struct {
	hooks []models.WebhookConfig
	err   error
}

func (f *fakeSecrets) ListWebhooks(ctx context.Context) ([]models.WebhookConfig, error) {
	return f.hooks, f.err
}

type fakeSyncer struct {
	pulled []string
	err    error
}

func (f *fakeSyncer) SyncIssue(ctx context.Context, issueID string) (*models.SyncResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.pulled = append(f.pulled, issueID)
	return &models.SyncResult{Updated: 1}, nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func issueBody(t *testing.T, issueID string, ts time.Time) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"action":           "update",
		"type":             "Issue",
		"webhookTimestamp": ts.UnixMilli(),
		"data":             map[string]any{"id": issueID},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func testListener(secrets *fakeSecrets, syncer *fakeSyncer) *Listener {
	return New("127.0.0.1:0", "/webhook", secrets, syncer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func deliver(t *testing.T, l *Listener, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Linear-Signature", signature)
	}
	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, req)
	return rec
}

func TestDeliveryTriggersIssuePull(t *testing.T) {
	secrets := &fakeSecrets{hooks: []models.WebhookConfig{
		{ID: "wh-1", Secret: "s3cret", Enabled: true},
	}}
	syncer := &fakeSyncer{}
	l := testListener(secrets, syncer)

	body := issueBody(t, "iss-1", time.Now())
	rec := deliver(t, l, body, sign("s3cret", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(syncer.pulled) != 1 || syncer.pulled[0] != "iss-1" {
		t.Fatalf("pulled = %v", syncer.pulled)
	}
}

func TestDeliveryRejectsBadSignature(t *testing.T) {
	secrets := &fakeSecrets{hooks: []models.WebhookConfig{
		{ID: "wh-1", Secret: "s3cret", Enabled: true},
	}}
	syncer := &fakeSyncer{}
	l := testListener(secrets, syncer)

	body := issueBody(t, "iss-1", time.Now())
	tests := []struct {
		name      string
		signature string
	}{
		{"missing", ""},
		{"wrong secret", sign("other", body)},
		{"not hex", "zzzz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := deliver(t, l, body, tt.signature)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
	if len(syncer.pulled) != 0 {
		t.Fatalf("nothing should be pulled, got %v", syncer.pulled)
	}
}

func TestDeliveryMatchesAnyEnabledSecret(t *testing.T) {
	secrets := &fakeSecrets{hooks: []models.WebhookConfig{
		{ID: "wh-1", Secret: "first", Enabled: true},
		{ID: "wh-2", Secret: "second", Enabled: true},
		{ID: "wh-3", Secret: "disabled", Enabled: false},
	}}
	syncer := &fakeSyncer{}
	l := testListener(secrets, syncer)

	body := issueBody(t, "iss-2", time.Now())
	if rec := deliver(t, l, body, sign("second", body)); rec.Code != http.StatusOK {
		t.Fatalf("second secret should match, status = %d", rec.Code)
	}
	if rec := deliver(t, l, body, sign("disabled", body)); rec.Code != http.StatusUnauthorized {
		t.Fatal("disabled registration secret must not match")
	}
}

func TestDeliveryRejectsStaleTimestamp(t *testing.T) {
	secrets := &fakeSecrets{hooks: []models.WebhookConfig{
		{ID: "wh-1", Secret: "s3cret", Enabled: true},
	}}
	syncer := &fakeSyncer{}
	l := testListener(secrets, syncer)

	body := issueBody(t, "iss-1", time.Now().Add(-5*time.Minute))
	rec := deliver(t, l, body, sign("s3cret", body))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for stale delivery", rec.Code)
	}
	if len(syncer.pulled) != 0 {
		t.Fatal("stale delivery must not trigger a pull")
	}
}

func TestDeliveryRejectsNonPost(t *testing.T) {
	l := testListener(&fakeSecrets{}, &fakeSyncer{})
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestCommentDeliveryRefreshesParentIssue(t *testing.T) {
	secrets := &fakeSecrets{hooks: []models.WebhookConfig{
		{ID: "wh-1", Secret: "s3cret", Enabled: true},
	}}
	syncer := &fakeSyncer{}
	l := testListener(secrets, syncer)

	body, err := json.Marshal(map[string]any{
		"action":           "create",
		"type":             "Comment",
		"webhookTimestamp": time.Now().UnixMilli(),
		"data":             map[string]any{"id": "cmt-1", "issueId": "iss-9"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rec := deliver(t, l, body, sign("s3cret", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(syncer.pulled) != 1 || syncer.pulled[0] != "iss-9" {
		t.Fatalf("pulled = %v, want parent issue", syncer.pulled)
	}
}

func TestPullFailureStillAcknowledges(t *testing.T) {
	secrets := &fakeSecrets{hooks: []models.WebhookConfig{
		{ID: "wh-1", Secret: "s3cret", Enabled: true},
	}}
	syncer := &fakeSyncer{err: fmt.Errorf("remote down")}
	l := testListener(secrets, syncer)

	body := issueBody(t, "iss-1", time.Now())
	rec := deliver(t, l, body, sign("s3cret", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; delivery must be acked even when the pull fails", rec.Code)
	}
}

func TestDeliveryRejectsMalformedJSON(t *testing.T) {
	secrets := &fakeSecrets{hooks: []models.WebhookConfig{
		{ID: "wh-1", Secret: "s3cret", Enabled: true},
	}}
	l := testListener(secrets, &fakeSyncer{})

	body := []byte("{not json")
	rec := deliver(t, l, body, sign("s3cret", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
