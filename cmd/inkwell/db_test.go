package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperengineering/inkwell/internal/migration"
	"github.com/hyperengineering/inkwell/internal/store"
	"github.com/hyperengineering/inkwell/internal/types"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inkwell.db")

	db, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.SetSetting(ctx, migration.GuestIDKey, "guest-1"); err != nil {
		t.Fatal(err)
	}
	p := &types.Project{GuestID: "guest-1", Title: "Novel"}
	if err := db.CreateProject(ctx, p); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDBStatus_JSONOutput(t *testing.T) {
	path := seedDatabase(t)

	dbPathOverride = path
	dbJSONOutput = true
	defer func() {
		dbPathOverride = ""
		dbJSONOutput = false
	}()

	var buf bytes.Buffer
	dbStatusCmd.SetOut(&buf)

	if err := dbStatusCmd.RunE(dbStatusCmd, nil); err != nil {
		t.Fatalf("db status error = %v", err)
	}

	var status dbStatus
	if err := json.Unmarshal(buf.Bytes(), &status); err != nil {
		t.Fatalf("decode output: %v\n%s", err, buf.String())
	}
	if status.GuestID != "guest-1" {
		t.Errorf("GuestID = %q, want guest-1", status.GuestID)
	}
	if status.QueueDepth != 1 {
		t.Errorf("QueueDepth = %d, want 1", status.QueueDepth)
	}
	if status.PoisonedEntries != 0 {
		t.Errorf("PoisonedEntries = %d, want 0", status.PoisonedEntries)
	}
}

func TestDBReset_Force(t *testing.T) {
	path := seedDatabase(t)

	dbPathOverride = path
	dbResetForce = true
	defer func() {
		dbPathOverride = ""
		dbResetForce = false
	}()

	var buf bytes.Buffer
	dbResetCmd.SetOut(&buf)

	if err := dbResetCmd.RunE(dbResetCmd, nil); err != nil {
		t.Fatalf("db reset error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("database file still present after reset")
	}

	// Second reset is a no-op.
	if err := dbResetCmd.RunE(dbResetCmd, nil); err != nil {
		t.Fatalf("second db reset error = %v", err)
	}
}
