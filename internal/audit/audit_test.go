package audit

import (
	"context"
	"fmt"
	"testing"

	"exgate.org/internal/auth"
)

func TestRecordAttributesCaller(t *testing.T) {
	store := NewInMemory()
	rec := NewRecorder(store)

	ctx := auth.ContextWithPrincipal(context.Background(), auth.Principal{UserID: "admin-1", Role: auth.RoleAdmin})
	rec.Record(ctx, "exchange.request.approve", "request req-1")

	entries, err := rec.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.UserID != "admin-1" {
		t.Fatalf("unexpected actor: %q", e.UserID)
	}
	if e.Action != "exchange.request.approve" {
		t.Fatalf("unexpected action: %q", e.Action)
	}
	if e.Details != "request req-1" {
		t.Fatalf("unexpected details: %q", e.Details)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatal("entry must carry id and timestamp")
	}
}

func TestRecordWithoutPrincipal(t *testing.T) {
	store := NewInMemory()
	rec := NewRecorder(store)

	rec.Record(context.Background(), "exchange.conversation.stopped", "")

	entries, err := rec.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != "system" {
		t.Fatalf("anonymous actions are recorded as system, got %+v", entries)
	}
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	store := NewInMemory()
	rec := NewRecorder(store)
	store.FailAppends(true)

	// Must not panic or surface anything to the caller.
	rec.Record(context.Background(), "exchange.request.reject", "request req-2")

	store.FailAppends(false)
	entries, err := rec.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed append must leave no entry, got %d", len(entries))
	}
}

func TestRecordIgnoresBlankAction(t *testing.T) {
	store := NewInMemory()
	rec := NewRecorder(store)

	rec.Record(context.Background(), "   ", "noise")

	entries, err := rec.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("blank action must be dropped, got %d entries", len(entries))
	}
}

func TestListClampsLimit(t *testing.T) {
	store := NewInMemory()
	rec := NewRecorder(store)
	for i := 0; i < 150; i++ {
		rec.Record(context.Background(), "exchange.request.note", fmt.Sprintf("entry %d", i))
	}

	entries, err := rec.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 100 {
		t.Fatalf("limit 0 must clamp to 100, got %d", len(entries))
	}

	entries, err = rec.List(context.Background(), 5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Details != "entry 149" {
		t.Fatalf("expected newest entry first, got %q", entries[0].Details)
	}
}
