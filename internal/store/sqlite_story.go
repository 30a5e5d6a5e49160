package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/inkwell/internal/richtext"
	"github.com/hyperengineering/inkwell/internal/sync"
	"github.com/hyperengineering/inkwell/internal/types"
	"github.com/oklog/ulid/v2"
)

// --- synopses ---

const selectSynopsisColumns = `
	SELECT id, project_id, content, plain_text, word_count,
	       sync_status, last_synced_at, created_at, updated_at
	FROM synopses`

func scanSynopsis(scanner interface{ Scan(...any) error }) (*types.Synopsis, error) {
	var sy types.Synopsis
	var content, lastSyncedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(&sy.ID, &sy.ProjectID, &content, &sy.PlainText, &sy.WordCount,
		&sy.SyncStatus, &lastSyncedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if content.Valid {
		sy.Content = []byte(content.String)
	}
	sy.LastSyncedAt = parseTimePtr(lastSyncedAt)
	sy.CreatedAt = parseTime(createdAt)
	sy.UpdatedAt = parseTime(updatedAt)
	return &sy, nil
}

func deriveSynopsisFields(sy *types.Synopsis) {
	sy.PlainText = richtext.ExtractPlainText(sy.Content)
	sy.WordCount = richtext.CountCharacters(sy.PlainText)
}

// CreateSynopsis stores the project's synopsis; each project has at most one.
func (s *SQLiteStore) CreateSynopsis(ctx context.Context, sy *types.Synopsis) error {
	if sy.ID == "" {
		sy.ID = ulid.Make().String()
	}
	now := s.now()
	sy.SyncStatus = types.SyncPending
	sy.CreatedAt = now
	sy.UpdatedAt = now
	deriveSynopsisFields(sy)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO synopses (id, project_id, content, plain_text, word_count,
			sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sy.ID, sy.ProjectID, nullableBytes(sy.Content), sy.PlainText, sy.WordCount,
		string(sy.SyncStatus), fmtTime(now), fmtTime(now))
	if err != nil {
		return fmt.Errorf("insert synopsis: %w", err)
	}

	if err := bumpProjectTx(ctx, tx, sy.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntitySynopsis, sy.ID, sync.OpCreate, sync.SynopsisPayload{Synopsis: *sy}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetSynopsis retrieves a synopsis by id.
func (s *SQLiteStore) GetSynopsis(ctx context.Context, id string) (*types.Synopsis, error) {
	row := s.db.QueryRowContext(ctx, selectSynopsisColumns+` WHERE id = ?`, id)
	sy, err := scanSynopsis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan synopsis: %w", err)
	}
	return sy, nil
}

// GetSynopsisByProject retrieves the project's synopsis.
func (s *SQLiteStore) GetSynopsisByProject(ctx context.Context, projectID string) (*types.Synopsis, error) {
	row := s.db.QueryRowContext(ctx, selectSynopsisColumns+` WHERE project_id = ?`, projectID)
	sy, err := scanSynopsis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan synopsis: %w", err)
	}
	return sy, nil
}

// ListPendingSynopses returns synopses awaiting push.
func (s *SQLiteStore) ListPendingSynopses(ctx context.Context) ([]types.Synopsis, error) {
	rows, err := s.db.QueryContext(ctx, selectSynopsisColumns+`
		WHERE sync_status = ?
		ORDER BY created_at ASC
	`, string(types.SyncPending))
	if err != nil {
		return nil, fmt.Errorf("query synopses: %w", err)
	}
	defer rows.Close()

	synopses := make([]types.Synopsis, 0)
	for rows.Next() {
		sy, err := scanSynopsis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan synopsis: %w", err)
		}
		synopses = append(synopses, *sy)
	}
	return synopses, rows.Err()
}

// UpdateSynopsis overwrites the synopsis content, recomputing derived fields.
func (s *SQLiteStore) UpdateSynopsis(ctx context.Context, sy *types.Synopsis) error {
	existing, err := s.GetSynopsis(ctx, sy.ID)
	if err != nil {
		return err
	}

	now := s.now()
	sy.ProjectID = existing.ProjectID
	sy.CreatedAt = existing.CreatedAt
	sy.SyncStatus = types.SyncPending
	sy.UpdatedAt = now
	deriveSynopsisFields(sy)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE synopses
		SET content = ?, plain_text = ?, word_count = ?, sync_status = ?, updated_at = ?
		WHERE id = ?
	`, nullableBytes(sy.Content), sy.PlainText, sy.WordCount, string(sy.SyncStatus), fmtTime(now), sy.ID)
	if err != nil {
		return fmt.Errorf("update synopsis: %w", err)
	}

	if err := bumpProjectTx(ctx, tx, sy.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntitySynopsis, sy.ID, sync.OpUpdate, sync.SynopsisPayload{Synopsis: *sy}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteSynopsis hard-deletes a synopsis and its version history.
// Missing ids are a no-op.
func (s *SQLiteStore) DeleteSynopsis(ctx context.Context, id string) error {
	existing, err := s.GetSynopsis(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM versions WHERE entity_type = 'synopsis' AND entity_id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("delete synopsis versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM synopses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete synopsis: %w", err)
	}
	if err := bumpProjectTx(ctx, tx, existing.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntitySynopsis, id, sync.OpDelete, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyRemoteSynopsis writes a remote synopsis into local storage as synced.
func (s *SQLiteStore) ApplyRemoteSynopsis(ctx context.Context, sy *types.Synopsis) error {
	now := s.now()
	deriveSynopsisFields(sy)
	sy.SyncStatus = types.SyncSynced
	syncedAt := now
	sy.LastSyncedAt = &syncedAt

	_, err := s.GetSynopsis(ctx, sy.ID)
	if errors.Is(err, ErrNotFound) {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO synopses (id, project_id, content, plain_text, word_count,
				sync_status, last_synced_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, sy.ID, sy.ProjectID, nullableBytes(sy.Content), sy.PlainText, sy.WordCount,
			string(sy.SyncStatus), fmtTime(syncedAt), fmtTime(sy.CreatedAt), fmtTime(sy.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert remote synopsis: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE synopses
		SET content = ?, plain_text = ?, word_count = ?, sync_status = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ?
	`, nullableBytes(sy.Content), sy.PlainText, sy.WordCount, string(sy.SyncStatus),
		fmtTime(syncedAt), fmtTime(sy.UpdatedAt), sy.ID)
	if err != nil {
		return fmt.Errorf("update remote synopsis: %w", err)
	}
	return nil
}

// --- characters ---

const selectCharacterColumns = `
	SELECT id, project_id, name, role, description, notes, image_data, position,
	       sync_status, last_synced_at, created_at, updated_at
	FROM characters`

func scanCharacter(scanner interface{ Scan(...any) error }) (*types.Character, error) {
	var c types.Character
	var lastSyncedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Role, &c.Description, &c.Notes,
		&c.ImageData, &c.Position, &c.SyncStatus, &lastSyncedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.LastSyncedAt = parseTimePtr(lastSyncedAt)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// CreateCharacter stores a new character and queues it for sync.
func (s *SQLiteStore) CreateCharacter(ctx context.Context, c *types.Character) error {
	if c.ID == "" {
		c.ID = ulid.Make().String()
	}
	now := s.now()
	c.SyncStatus = types.SyncPending
	c.CreatedAt = now
	c.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if c.Position == 0 {
		var maxPos sql.NullInt64
		err = tx.QueryRowContext(ctx, `
			SELECT MAX(position) FROM characters WHERE project_id = ?
		`, c.ProjectID).Scan(&maxPos)
		if err != nil {
			return fmt.Errorf("next character position: %w", err)
		}
		if maxPos.Valid {
			c.Position = int(maxPos.Int64) + 1
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO characters (id, project_id, name, role, description, notes,
			image_data, position, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ProjectID, c.Name, c.Role, c.Description, c.Notes,
		nullableBytes(c.ImageData), c.Position, string(c.SyncStatus), fmtTime(now), fmtTime(now))
	if err != nil {
		return fmt.Errorf("insert character: %w", err)
	}

	if err := bumpProjectTx(ctx, tx, c.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntityCharacter, c.ID, sync.OpCreate, sync.CharacterPayload{Character: *c}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetCharacter retrieves a character by id.
func (s *SQLiteStore) GetCharacter(ctx context.Context, id string) (*types.Character, error) {
	row := s.db.QueryRowContext(ctx, selectCharacterColumns+` WHERE id = ?`, id)
	c, err := scanCharacter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan character: %w", err)
	}
	return c, nil
}

// ListCharactersByProject returns the project's characters in ascending position.
func (s *SQLiteStore) ListCharactersByProject(ctx context.Context, projectID string) ([]types.Character, error) {
	return s.listCharacters(ctx, selectCharacterColumns+`
		WHERE project_id = ?
		ORDER BY position ASC
	`, projectID)
}

// ListPendingCharacters returns characters awaiting push.
func (s *SQLiteStore) ListPendingCharacters(ctx context.Context) ([]types.Character, error) {
	return s.listCharacters(ctx, selectCharacterColumns+`
		WHERE sync_status = ?
		ORDER BY created_at ASC
	`, string(types.SyncPending))
}

func (s *SQLiteStore) listCharacters(ctx context.Context, query string, args ...any) ([]types.Character, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer rows.Close()

	characters := make([]types.Character, 0)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		characters = append(characters, *c)
	}
	return characters, rows.Err()
}

// UpdateCharacter overwrites the character's domain fields.
func (s *SQLiteStore) UpdateCharacter(ctx context.Context, c *types.Character) error {
	existing, err := s.GetCharacter(ctx, c.ID)
	if err != nil {
		return err
	}

	now := s.now()
	c.ProjectID = existing.ProjectID
	c.CreatedAt = existing.CreatedAt
	c.SyncStatus = types.SyncPending
	c.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE characters
		SET name = ?, role = ?, description = ?, notes = ?, image_data = ?,
			position = ?, sync_status = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Role, c.Description, c.Notes, nullableBytes(c.ImageData),
		c.Position, string(c.SyncStatus), fmtTime(now), c.ID)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}

	if err := bumpProjectTx(ctx, tx, c.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntityCharacter, c.ID, sync.OpUpdate, sync.CharacterPayload{Character: *c}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteCharacter hard-deletes a character, its version history, and any
// relationships touching it. Missing ids are a no-op.
func (s *SQLiteStore) DeleteCharacter(ctx context.Context, id string) error {
	existing, err := s.GetCharacter(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM versions WHERE entity_type = 'character' AND entity_id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("delete character versions: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM relationships WHERE source_character_id = ? OR target_character_id = ?
	`, id, id)
	if err != nil {
		return fmt.Errorf("delete character relationships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM characters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	if err := bumpProjectTx(ctx, tx, existing.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntityCharacter, id, sync.OpDelete, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ReorderCharacters rewrites character positions to match orderedIDs.
func (s *SQLiteStore) ReorderCharacters(ctx context.Context, projectID string, orderedIDs []string) error {
	return s.reorderRows(ctx, "characters", projectID, orderedIDs)
}

// ApplyRemoteCharacter writes a remote character into local storage as
// synced, preserving the locally cached portrait blob.
func (s *SQLiteStore) ApplyRemoteCharacter(ctx context.Context, c *types.Character) error {
	now := s.now()
	c.SyncStatus = types.SyncSynced
	syncedAt := now
	c.LastSyncedAt = &syncedAt

	existing, err := s.GetCharacter(ctx, c.ID)
	if errors.Is(err, ErrNotFound) {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO characters (id, project_id, name, role, description, notes,
				image_data, position, sync_status, last_synced_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.ProjectID, c.Name, c.Role, c.Description, c.Notes,
			nullableBytes(c.ImageData), c.Position, string(c.SyncStatus),
			fmtTime(syncedAt), fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert remote character: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	if len(c.ImageData) == 0 {
		c.ImageData = existing.ImageData
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE characters
		SET name = ?, role = ?, description = ?, notes = ?, image_data = ?,
			position = ?, sync_status = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Role, c.Description, c.Notes, nullableBytes(c.ImageData),
		c.Position, string(c.SyncStatus), fmtTime(syncedAt), fmtTime(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("update remote character: %w", err)
	}
	return nil
}

// --- relationships ---

const selectRelationshipColumns = `
	SELECT id, project_id, source_character_id, target_character_id, label, description,
	       sync_status, last_synced_at, created_at, updated_at
	FROM relationships`

func scanRelationship(scanner interface{ Scan(...any) error }) (*types.Relationship, error) {
	var rel types.Relationship
	var lastSyncedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(&rel.ID, &rel.ProjectID, &rel.SourceCharacterID, &rel.TargetCharacterID,
		&rel.Label, &rel.Description, &rel.SyncStatus, &lastSyncedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rel.LastSyncedAt = parseTimePtr(lastSyncedAt)
	rel.CreatedAt = parseTime(createdAt)
	rel.UpdatedAt = parseTime(updatedAt)
	return &rel, nil
}

// CreateRelationship stores a new character relationship and queues it for sync.
func (s *SQLiteStore) CreateRelationship(ctx context.Context, rel *types.Relationship) error {
	if rel.ID == "" {
		rel.ID = ulid.Make().String()
	}
	now := s.now()
	rel.SyncStatus = types.SyncPending
	rel.CreatedAt = now
	rel.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO relationships (id, project_id, source_character_id, target_character_id,
			label, description, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rel.ID, rel.ProjectID, rel.SourceCharacterID, rel.TargetCharacterID,
		rel.Label, rel.Description, string(rel.SyncStatus), fmtTime(now), fmtTime(now))
	if err != nil {
		return fmt.Errorf("insert relationship: %w", err)
	}

	if err := bumpProjectTx(ctx, tx, rel.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntityRelationship, rel.ID, sync.OpCreate, sync.RelationshipPayload{Relationship: *rel}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetRelationship retrieves a relationship by id.
func (s *SQLiteStore) GetRelationship(ctx context.Context, id string) (*types.Relationship, error) {
	row := s.db.QueryRowContext(ctx, selectRelationshipColumns+` WHERE id = ?`, id)
	rel, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan relationship: %w", err)
	}
	return rel, nil
}

// ListRelationshipsByProject returns the project's relationships in creation order.
func (s *SQLiteStore) ListRelationshipsByProject(ctx context.Context, projectID string) ([]types.Relationship, error) {
	return s.listRelationships(ctx, selectRelationshipColumns+`
		WHERE project_id = ?
		ORDER BY created_at ASC
	`, projectID)
}

// ListPendingRelationships returns relationships awaiting push.
func (s *SQLiteStore) ListPendingRelationships(ctx context.Context) ([]types.Relationship, error) {
	return s.listRelationships(ctx, selectRelationshipColumns+`
		WHERE sync_status = ?
		ORDER BY created_at ASC
	`, string(types.SyncPending))
}

func (s *SQLiteStore) listRelationships(ctx context.Context, query string, args ...any) ([]types.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	relationships := make([]types.Relationship, 0)
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		relationships = append(relationships, *rel)
	}
	return relationships, rows.Err()
}

// UpdateRelationship overwrites the relationship's domain fields.
func (s *SQLiteStore) UpdateRelationship(ctx context.Context, rel *types.Relationship) error {
	existing, err := s.GetRelationship(ctx, rel.ID)
	if err != nil {
		return err
	}

	now := s.now()
	rel.ProjectID = existing.ProjectID
	rel.CreatedAt = existing.CreatedAt
	rel.SyncStatus = types.SyncPending
	rel.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE relationships
		SET source_character_id = ?, target_character_id = ?, label = ?, description = ?,
			sync_status = ?, updated_at = ?
		WHERE id = ?
	`, rel.SourceCharacterID, rel.TargetCharacterID, rel.Label, rel.Description,
		string(rel.SyncStatus), fmtTime(now), rel.ID)
	if err != nil {
		return fmt.Errorf("update relationship: %w", err)
	}

	if err := bumpProjectTx(ctx, tx, rel.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntityRelationship, rel.ID, sync.OpUpdate, sync.RelationshipPayload{Relationship: *rel}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteRelationship hard-deletes a relationship. Missing ids are a no-op.
func (s *SQLiteStore) DeleteRelationship(ctx context.Context, id string) error {
	existing, err := s.GetRelationship(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	if err := bumpProjectTx(ctx, tx, existing.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntityRelationship, id, sync.OpDelete, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyRemoteRelationship writes a remote relationship into local storage as synced.
func (s *SQLiteStore) ApplyRemoteRelationship(ctx context.Context, rel *types.Relationship) error {
	now := s.now()
	rel.SyncStatus = types.SyncSynced
	syncedAt := now
	rel.LastSyncedAt = &syncedAt

	_, err := s.GetRelationship(ctx, rel.ID)
	if errors.Is(err, ErrNotFound) {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO relationships (id, project_id, source_character_id, target_character_id,
				label, description, sync_status, last_synced_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rel.ID, rel.ProjectID, rel.SourceCharacterID, rel.TargetCharacterID,
			rel.Label, rel.Description, string(rel.SyncStatus), fmtTime(syncedAt),
			fmtTime(rel.CreatedAt), fmtTime(rel.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert remote relationship: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE relationships
		SET source_character_id = ?, target_character_id = ?, label = ?, description = ?,
			sync_status = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ?
	`, rel.SourceCharacterID, rel.TargetCharacterID, rel.Label, rel.Description,
		string(rel.SyncStatus), fmtTime(syncedAt), fmtTime(rel.UpdatedAt), rel.ID)
	if err != nil {
		return fmt.Errorf("update remote relationship: %w", err)
	}
	return nil
}
