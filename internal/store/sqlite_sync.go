package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/inkwell/internal/sync"
)

var entityTables = map[sync.EntityType]string{
	sync.EntityProject:      "projects",
	sync.EntityChapter:      "chapters",
	sync.EntitySynopsis:     "synopses",
	sync.EntityCharacter:    "characters",
	sync.EntityRelationship: "relationships",
}

// MarkSynced clears a record's pending flag and stamps the sync time.
// Records deleted between push and acknowledgement are ignored.
func (s *SQLiteStore) MarkSynced(ctx context.Context, entityType sync.EntityType, id string, syncedAt time.Time) error {
	table, ok := entityTables[entityType]
	if !ok {
		return fmt.Errorf("unknown entity type %q", entityType)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE `+table+`
		SET sync_status = 'synced', last_synced_at = ?
		WHERE id = ?
	`, fmtTime(syncedAt), id)
	if err != nil {
		return fmt.Errorf("mark %s synced: %w", entityType, err)
	}
	return nil
}
