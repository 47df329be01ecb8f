package store

import (
	"context"
	"testing"
	"time"

	"mobridge/internal/models"
)

func TestAuthLifecycle(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	missing, err := st.GetAuth(ctx)
	if err != nil {
		t.Fatalf("get before save: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil auth record, got %+v", missing)
	}

	record := &models.AuthRecord{
		APIKeySealed:  "sealed-token",
		DefaultTeamID: "team-1",
		UserID:        "user-1",
		UserName:      "Robin",
		UserEmail:     "robin@example.test",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := st.SaveAuth(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.GetAuth(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.APIKeySealed != "sealed-token" || got.DefaultTeamID != "team-1" {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Saving again replaces the singleton row.
	record.APIKeySealed = "resealed-token"
	record.UpdatedAt = now.Add(time.Second)
	if err := st.SaveAuth(ctx, record); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err = st.GetAuth(ctx)
	if err != nil {
		t.Fatalf("get after resave: %v", err)
	}
	if got.APIKeySealed != "resealed-token" {
		t.Fatalf("expected resealed token, got %q", got.APIKeySealed)
	}

	if err := st.SetDefaultTeam(ctx, "team-2", now.Add(2*time.Second)); err != nil {
		t.Fatalf("set default team: %v", err)
	}
	got, err = st.GetAuth(ctx)
	if err != nil {
		t.Fatalf("get after team change: %v", err)
	}
	if got.DefaultTeamID != "team-2" {
		t.Fatalf("expected team-2, got %q", got.DefaultTeamID)
	}

	deleted, err := st.DeleteAuth(ctx)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report true")
	}
	if err := st.SetDefaultTeam(ctx, "team-3", now); err == nil {
		t.Fatal("expected error setting team without auth record")
	}
}

func TestSaveAuthValidation(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.SaveAuth(ctx, nil); err == nil {
		t.Fatal("expected error for nil record")
	}
	if err := st.SaveAuth(ctx, &models.AuthRecord{}); err == nil {
		t.Fatal("expected error for empty sealed key")
	}
}
