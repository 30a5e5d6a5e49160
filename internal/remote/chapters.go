package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/inkwell/internal/types"
	"github.com/jackc/pgx/v5"
)

const selectChapterColumns = `
	SELECT id, project_id, title, content, position, created_at, updated_at
	FROM chapters`

func scanChapter(row pgx.Row) (*types.Chapter, error) {
	var c types.Chapter
	err := row.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Content, &c.Position,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChapter retrieves a chapter by id.
func (s *Store) GetChapter(ctx context.Context, id string) (*types.Chapter, error) {
	row := s.db.Pool.QueryRow(ctx, selectChapterColumns+` WHERE id = $1`, id)
	c, err := scanChapter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("chapter %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	return c, nil
}

// ListChaptersByProject returns a project's chapters in reading order.
func (s *Store) ListChaptersByProject(ctx context.Context, projectID string) ([]types.Chapter, error) {
	rows, err := s.db.Pool.Query(ctx, selectChapterColumns+`
		WHERE project_id = $1
		ORDER BY position ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	chapters := make([]types.Chapter, 0)
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		chapters = append(chapters, *c)
	}
	return chapters, rows.Err()
}

// UpsertChapter inserts a chapter, ignoring replayed creates.
func (s *Store) UpsertChapter(ctx context.Context, c *types.Chapter) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO chapters (id, project_id, title, content, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.ProjectID, c.Title, c.Content, c.Position, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert chapter: %w", err)
	}
	return nil
}

// UpdateChapter overwrites a chapter's shared fields.
func (s *Store) UpdateChapter(ctx context.Context, c *types.Chapter) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE chapters
		SET title = $2, content = $3, position = $4, updated_at = $5
		WHERE id = $1
	`, c.ID, c.Title, c.Content, c.Position, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	return nil
}

// DeleteChapter removes a chapter. Deleting an absent id is a no-op.
func (s *Store) DeleteChapter(ctx context.Context, id string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM chapters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return nil
}
