package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/hyperengineering/inkwell/internal/types"
)

func characterSnapshot(name, notes string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"name": name, "notes": notes})
	return raw
}

func TestVersions_CreateAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	v1, err := st.CreateVersion(ctx, types.VersionedCharacter, "char-1", characterSnapshot("Ada", "curious"))
	if err != nil {
		t.Fatal(err)
	}
	if v1 == nil {
		t.Fatal("expected first version recorded")
	}
	if v1.Diff != nil {
		t.Errorf("expected no diff on first version, got %s", v1.Diff)
	}

	v2, err := st.CreateVersion(ctx, types.VersionedCharacter, "char-1", characterSnapshot("Ada", "curious and brave"))
	if err != nil {
		t.Fatal(err)
	}
	if v2 == nil {
		t.Fatal("expected second version recorded")
	}

	var diff map[string]struct {
		From json.RawMessage `json:"from"`
		To   json.RawMessage `json:"to"`
	}
	if err := json.Unmarshal(v2.Diff, &diff); err != nil {
		t.Fatal(err)
	}
	if len(diff) != 1 {
		t.Fatalf("expected 1 changed field, got %d", len(diff))
	}
	if _, ok := diff["notes"]; !ok {
		t.Errorf("expected notes in diff, got %v", diff)
	}

	versions, err := st.ListVersions(ctx, types.VersionedCharacter, "char-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].ID != v2.ID {
		t.Errorf("expected newest first, got %q", versions[0].ID)
	}
}

func TestVersions_SkipsIdenticalSnapshot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	snap := characterSnapshot("Ada", "curious")
	if _, err := st.CreateVersion(ctx, types.VersionedCharacter, "char-1", snap); err != nil {
		t.Fatal(err)
	}

	v, err := st.CreateVersion(ctx, types.VersionedCharacter, "char-1", snap)
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("expected identical snapshot skipped, got %+v", v)
	}

	versions, err := st.ListVersions(ctx, types.VersionedCharacter, "char-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Errorf("expected 1 version, got %d", len(versions))
	}
}

func TestVersions_PrunesBeyondLimit(t *testing.T) {
	st := newTestStore(t)
	st.SetVersionHistoryLimit(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		snap := characterSnapshot("Ada", fmt.Sprintf("revision %d", i))
		if _, err := st.CreateVersion(ctx, types.VersionedCharacter, "char-1", snap); err != nil {
			t.Fatal(err)
		}
	}

	versions, err := st.ListVersions(ctx, types.VersionedCharacter, "char-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(versions))
	}

	var latest map[string]string
	if err := json.Unmarshal(versions[0].Snapshot, &latest); err != nil {
		t.Fatal(err)
	}
	if latest["notes"] != "revision 4" {
		t.Errorf("expected newest snapshot kept, got %q", latest["notes"])
	}
}

func TestVersions_ScopedPerEntity(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateVersion(ctx, types.VersionedCharacter, "char-1", characterSnapshot("Ada", "a")); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateVersion(ctx, types.VersionedSynopsis, "syn-1", characterSnapshot("", "summary")); err != nil {
		t.Fatal(err)
	}

	versions, err := st.ListVersions(ctx, types.VersionedCharacter, "char-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Errorf("expected 1 character version, got %d", len(versions))
	}
}
