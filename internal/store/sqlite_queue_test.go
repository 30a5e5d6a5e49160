package store

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperengineering/inkwell/internal/sync"
	"github.com/hyperengineering/inkwell/internal/types"
)

func TestQueue_CoalescesCreateThenDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := mustCreateProject(t, st, types.Project{UserID: "u", Title: "Ephemeral"})

	if err := st.DeleteProject(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	// Create never reached remote, so the net effect is no queue entry.
	entries, err := st.ListQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty queue, got %d entries", len(entries))
	}
}

func TestQueue_CoalescesCreateThenUpdate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := mustCreateProject(t, st, types.Project{UserID: "u", Title: "v1"})

	update := *p
	update.Title = "v2"
	if err := st.UpdateProject(ctx, &update); err != nil {
		t.Fatal(err)
	}

	entries, err := st.ListQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 coalesced entry, got %d", len(entries))
	}
	if entries[0].Operation != sync.OpCreate {
		t.Errorf("expected create to survive coalescing, got %q", entries[0].Operation)
	}
	payload, ok := entries[0].Payload.(sync.ProjectPayload)
	if !ok {
		t.Fatalf("expected project payload, got %T", entries[0].Payload)
	}
	if payload.Project.Title != "v2" {
		t.Errorf("expected payload refreshed to v2, got %q", payload.Project.Title)
	}
}

func TestQueue_CoalescesUpdateThenDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := mustCreateProject(t, st, types.Project{UserID: "u", Title: "Tracked"})

	// Simulate a prior successful push of the create.
	entries, err := st.ListQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.CompleteQueueEntry(ctx, entries[0].ID); err != nil {
		t.Fatal(err)
	}

	update := *p
	update.Title = "Tracked v2"
	if err := st.UpdateProject(ctx, &update); err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteProject(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	entries, err = st.ListQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Operation != sync.OpDelete {
		t.Errorf("expected delete after update+delete, got %q", entries[0].Operation)
	}
	if entries[0].Payload != nil {
		t.Errorf("expected nil payload on delete, got %v", entries[0].Payload)
	}
}

func TestQueue_FIFOOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := mustCreateProject(t, st, types.Project{UserID: "u", Title: "first"})
	second := mustCreateProject(t, st, types.Project{UserID: "u", Title: "second"})

	// Touching the first project again must not move it behind the second.
	update := *first
	update.Title = "first v2"
	if err := st.UpdateProject(ctx, &update); err != nil {
		t.Fatal(err)
	}

	entries, err := st.ListQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EntityID != first.ID || entries[1].EntityID != second.ID {
		t.Errorf("expected FIFO order preserved across coalescing, got %q then %q",
			entries[0].EntityID, entries[1].EntityID)
	}
}

func TestQueue_FailureParksAtCeiling(t *testing.T) {
	st := newTestStore(t)
	st.SetMaxQueueAttempts(2)
	ctx := context.Background()

	mustCreateProject(t, st, types.Project{UserID: "u", Title: "flaky"})

	entries, err := st.ListQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id := entries[0].ID

	for i := 0; i < 2; i++ {
		if err := st.FailQueueEntry(ctx, id, "remote unavailable"); err != nil {
			t.Fatal(err)
		}
	}

	entries, err = st.ListQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected parked entry excluded from drain, got %d entries", len(entries))
	}

	poisoned, err := st.ListPoisonedQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(poisoned) != 1 {
		t.Fatalf("expected 1 parked entry, got %d", len(poisoned))
	}
	if poisoned[0].Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", poisoned[0].Attempts)
	}
	if poisoned[0].LastError != "remote unavailable" {
		t.Errorf("expected failure reason recorded, got %q", poisoned[0].LastError)
	}
	if poisoned[0].LastAttemptAt == nil {
		t.Error("expected last attempt time recorded")
	}
}

func TestQueue_MergeResetsAttempts(t *testing.T) {
	st := newTestStore(t)
	st.SetMaxQueueAttempts(2)
	ctx := context.Background()

	p := mustCreateProject(t, st, types.Project{UserID: "u", Title: "retry"})

	entries, _ := st.ListQueueEntries(ctx)
	for i := 0; i < 2; i++ {
		if err := st.FailQueueEntry(ctx, entries[0].ID, "timeout"); err != nil {
			t.Fatal(err)
		}
	}

	// A fresh local edit revives the parked entry.
	update := *p
	update.Title = "retry v2"
	if err := st.UpdateProject(ctx, &update); err != nil {
		t.Fatal(err)
	}

	entries, err := st.ListQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected revived entry, got %d", len(entries))
	}
	if entries[0].Attempts != 0 {
		t.Errorf("expected attempts reset to 0, got %d", entries[0].Attempts)
	}
	if entries[0].LastError != "" {
		t.Errorf("expected last error cleared, got %q", entries[0].LastError)
	}
}

func TestQueue_FailMissingEntry(t *testing.T) {
	st := newTestStore(t)

	err := st.FailQueueEntry(context.Background(), 9999, "lost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueue_Dequeue(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	entry, err := st.Dequeue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Errorf("expected nil on empty queue, got %+v", entry)
	}

	p := mustCreateProject(t, st, types.Project{UserID: "u", Title: "queued"})

	entry, err = st.Dequeue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Fatal("expected an entry")
	}
	if entry.EntityID != p.ID || entry.Operation != sync.OpCreate {
		t.Errorf("unexpected entry %+v", entry)
	}
}
