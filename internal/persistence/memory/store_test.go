package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Joy-oyo/fenverest/internal/domain"
)

func seedActivity(t *testing.T, store *Store, id string) {
	t.Helper()
	err := store.CreateActivity(context.Background(), domain.Activity{
		ID:             id,
		Title:          "Lake Swim",
		OwnerID:        "org-1",
		ScheduledAt:    time.Now().Add(time.Hour).UTC(),
		DurationMin:    30,
		Capacity:       4,
		ParticipantIDs: []string{},
		Status:         domain.ActivityStatusScheduled,
	})
	if err != nil {
		t.Fatalf("seed activity: %v", err)
	}
}

func TestUpsertInterestReturnsPriorAction(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedActivity(t, store, "act-1")

	now := time.Now().UTC()
	_, prior, err := store.UpsertInterest(ctx, domain.Interest{
		UserID: "user-1", ActivityID: "act-1", Action: domain.SwipeLike, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if prior != nil {
		t.Fatalf("expected no prior action, got %q", *prior)
	}

	_, prior, err = store.UpsertInterest(ctx, domain.Interest{
		UserID: "user-1", ActivityID: "act-1", Action: domain.SwipePass, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if prior == nil || *prior != domain.SwipeLike {
		t.Fatalf("expected prior like, got %v", prior)
	}

	interest, err := store.GetInterest(ctx, "act-1", "user-1")
	if err != nil {
		t.Fatalf("get interest: %v", err)
	}
	if interest.Action != domain.SwipePass {
		t.Fatalf("expected pass after overwrite, got %q", interest.Action)
	}
}

func TestUpsertInterestPreservesCreatedAt(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedActivity(t, store, "act-1")

	first := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	if _, _, err := store.UpsertInterest(ctx, domain.Interest{
		UserID: "user-1", ActivityID: "act-1", Action: domain.SwipeLike, CreatedAt: first, UpdatedAt: first,
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	later := first.Add(48 * time.Hour)
	stored, _, err := store.UpsertInterest(ctx, domain.Interest{
		UserID: "user-1", ActivityID: "act-1", Action: domain.SwipePass, CreatedAt: later, UpdatedAt: later,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !stored.CreatedAt.Equal(first) {
		t.Fatalf("returned record lost original CreatedAt: %v", stored.CreatedAt)
	}

	interest, err := store.GetInterest(ctx, "act-1", "user-1")
	if err != nil {
		t.Fatalf("get interest: %v", err)
	}
	if !interest.CreatedAt.Equal(first) {
		t.Fatalf("CreatedAt changed on overwrite: %v", interest.CreatedAt)
	}
	if !interest.UpdatedAt.Equal(later) {
		t.Fatalf("UpdatedAt not advanced: %v", interest.UpdatedAt)
	}
}

func TestReturnedActivityIsACopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedActivity(t, store, "act-1")

	got, err := store.AddParticipant(ctx, "act-1", "user-1", domain.BucketDay(time.Now()))
	if err != nil {
		t.Fatalf("add participant: %v", err)
	}
	got.ParticipantIDs[0] = "tampered"
	got.Title = "tampered"

	fresh, err := store.GetActivity(ctx, "act-1")
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if fresh.ParticipantIDs[0] != "user-1" || fresh.Title != "Lake Swim" {
		t.Fatalf("store state leaked through returned pointer: %+v", fresh)
	}
}

func TestDeleteActivityPurgesCounters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedActivity(t, store, "act-1")

	if err := store.IncrementCounters(ctx, "act-1", domain.CounterDelta{Views: 5, Day: time.Now()}); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.DeleteActivity(ctx, "act-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	snapshot, err := store.CounterSnapshot(ctx, "act-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.Totals.Views != 0 || len(snapshot.Daily) != 0 {
		t.Fatalf("counters survived delete: %+v", snapshot)
	}
}
