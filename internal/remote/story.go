package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/inkwell/internal/types"
	"github.com/jackc/pgx/v5"
)

const selectSynopsisColumns = `
	SELECT id, project_id, content, created_at, updated_at
	FROM synopses`

func scanSynopsis(row pgx.Row) (*types.Synopsis, error) {
	var sy types.Synopsis
	err := row.Scan(&sy.ID, &sy.ProjectID, &sy.Content, &sy.CreatedAt, &sy.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sy, nil
}

// GetSynopsis retrieves a synopsis by id.
func (s *Store) GetSynopsis(ctx context.Context, id string) (*types.Synopsis, error) {
	row := s.db.Pool.QueryRow(ctx, selectSynopsisColumns+` WHERE id = $1`, id)
	sy, err := scanSynopsis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("synopsis %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get synopsis: %w", err)
	}
	return sy, nil
}

// ListSynopsesByProject returns the project's synopsis as a list for
// uniformity with the other child entities; it has at most one element.
func (s *Store) ListSynopsesByProject(ctx context.Context, projectID string) ([]types.Synopsis, error) {
	rows, err := s.db.Pool.Query(ctx, selectSynopsisColumns+` WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list synopses: %w", err)
	}
	defer rows.Close()

	synopses := make([]types.Synopsis, 0, 1)
	for rows.Next() {
		sy, err := scanSynopsis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan synopsis: %w", err)
		}
		synopses = append(synopses, *sy)
	}
	return synopses, rows.Err()
}

// UpsertSynopsis inserts a synopsis, ignoring replayed creates.
func (s *Store) UpsertSynopsis(ctx context.Context, sy *types.Synopsis) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO synopses (id, project_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, sy.ID, sy.ProjectID, sy.Content, sy.CreatedAt, sy.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert synopsis: %w", err)
	}
	return nil
}

// UpdateSynopsis overwrites a synopsis's shared fields.
func (s *Store) UpdateSynopsis(ctx context.Context, sy *types.Synopsis) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE synopses SET content = $2, updated_at = $3 WHERE id = $1
	`, sy.ID, sy.Content, sy.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update synopsis: %w", err)
	}
	return nil
}

// DeleteSynopsis removes a synopsis. Deleting an absent id is a no-op.
func (s *Store) DeleteSynopsis(ctx context.Context, id string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM synopses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete synopsis: %w", err)
	}
	return nil
}

const selectCharacterColumns = `
	SELECT id, project_id, name, role, description, notes, position, created_at, updated_at
	FROM characters`

func scanCharacter(row pgx.Row) (*types.Character, error) {
	var c types.Character
	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Role, &c.Description, &c.Notes,
		&c.Position, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCharacter retrieves a character by id.
func (s *Store) GetCharacter(ctx context.Context, id string) (*types.Character, error) {
	row := s.db.Pool.QueryRow(ctx, selectCharacterColumns+` WHERE id = $1`, id)
	c, err := scanCharacter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("character %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get character: %w", err)
	}
	return c, nil
}

// ListCharactersByProject returns a project's characters in display order.
func (s *Store) ListCharactersByProject(ctx context.Context, projectID string) ([]types.Character, error) {
	rows, err := s.db.Pool.Query(ctx, selectCharacterColumns+`
		WHERE project_id = $1
		ORDER BY position ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
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

// UpsertCharacter inserts a character, ignoring replayed creates.
func (s *Store) UpsertCharacter(ctx context.Context, c *types.Character) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO characters (id, project_id, name, role, description, notes, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.ProjectID, c.Name, c.Role, c.Description, c.Notes, c.Position, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert character: %w", err)
	}
	return nil
}

// UpdateCharacter overwrites a character's shared fields.
func (s *Store) UpdateCharacter(ctx context.Context, c *types.Character) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE characters
		SET name = $2, role = $3, description = $4, notes = $5, position = $6, updated_at = $7
		WHERE id = $1
	`, c.ID, c.Name, c.Role, c.Description, c.Notes, c.Position, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	return nil
}

// DeleteCharacter removes a character. Deleting an absent id is a no-op.
func (s *Store) DeleteCharacter(ctx context.Context, id string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	return nil
}

const selectRelationshipColumns = `
	SELECT id, project_id, source_character_id, target_character_id, label, description, created_at, updated_at
	FROM relationships`

func scanRelationship(row pgx.Row) (*types.Relationship, error) {
	var rel types.Relationship
	err := row.Scan(&rel.ID, &rel.ProjectID, &rel.SourceCharacterID, &rel.TargetCharacterID,
		&rel.Label, &rel.Description, &rel.CreatedAt, &rel.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// GetRelationship retrieves a relationship by id.
func (s *Store) GetRelationship(ctx context.Context, id string) (*types.Relationship, error) {
	row := s.db.Pool.QueryRow(ctx, selectRelationshipColumns+` WHERE id = $1`, id)
	rel, err := scanRelationship(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("relationship %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship: %w", err)
	}
	return rel, nil
}

// ListRelationshipsByProject returns a project's relationships.
func (s *Store) ListRelationshipsByProject(ctx context.Context, projectID string) ([]types.Relationship, error) {
	rows, err := s.db.Pool.Query(ctx, selectRelationshipColumns+`
		WHERE project_id = $1
		ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
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

// UpsertRelationship inserts a relationship, ignoring replayed creates.
func (s *Store) UpsertRelationship(ctx context.Context, rel *types.Relationship) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO relationships (id, project_id, source_character_id, target_character_id, label, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, rel.ID, rel.ProjectID, rel.SourceCharacterID, rel.TargetCharacterID,
		rel.Label, rel.Description, rel.CreatedAt, rel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert relationship: %w", err)
	}
	return nil
}

// UpdateRelationship overwrites a relationship's shared fields.
func (s *Store) UpdateRelationship(ctx context.Context, rel *types.Relationship) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE relationships
		SET source_character_id = $2, target_character_id = $3, label = $4, description = $5, updated_at = $6
		WHERE id = $1
	`, rel.ID, rel.SourceCharacterID, rel.TargetCharacterID, rel.Label, rel.Description, rel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update relationship: %w", err)
	}
	return nil
}

// DeleteRelationship removes a relationship. Deleting an absent id is a no-op.
func (s *Store) DeleteRelationship(ctx context.Context, id string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM relationships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	return nil
}
