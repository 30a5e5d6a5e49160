package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedFS_ContainsMigrationFiles(t *testing.T) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		t.Fatalf("failed to read embedded FS: %v", err)
	}

	found := false
	for _, entry := range entries {
		if entry.Name() == "001_initial_schema.sql" {
			found = true
			break
		}
	}

	if !found {
		t.Error("001_initial_schema.sql not found in embedded FS")
	}
}

func TestEmbeddedFS_MigrationFileReadable(t *testing.T) {
	content, err := FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		t.Fatalf("failed to read migration file: %v", err)
	}

	contentStr := string(content)
	if len(contentStr) == 0 {
		t.Error("migration file is empty")
	}

	if !strings.Contains(contentStr, "-- +goose Up") {
		t.Error("migration missing '-- +goose Up' directive")
	}
	if !strings.Contains(contentStr, "-- +goose Down") {
		t.Error("migration missing '-- +goose Down' directive")
	}
	for _, table := range []string{"projects", "chapters", "synopses", "characters", "relationships", "versions", "sync_queue", "settings"} {
		if !strings.Contains(contentStr, "CREATE TABLE "+table) {
			t.Errorf("migration missing %s table creation", table)
		}
	}
}
