package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/inkwell/internal/types"
	"github.com/jackc/pgx/v5"
)

// Store implements the sync engine's remote interface against Postgres.
type Store struct{ db *DB }

// NewStore constructs a remote store over an existing pool.
func NewStore(db *DB) *Store { return &Store{db: db} }

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.Pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping remote store: %w", err)
	}
	return nil
}

const selectProjectColumns = `
	SELECT id, user_id, title, description, genre, created_at, updated_at
	FROM projects`

func scanProject(row pgx.Row) (*types.Project, error) {
	var p types.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.Genre,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = types.ProjectActive
	return &p, nil
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*types.Project, error) {
	row := s.db.Pool.QueryRow(ctx, selectProjectColumns+` WHERE id = $1`, id)
	p, err := scanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjectsByUser returns all of a user's projects.
func (s *Store) ListProjectsByUser(ctx context.Context, userID string) ([]types.Project, error) {
	rows, err := s.db.Pool.Query(ctx, selectProjectColumns+`
		WHERE user_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]types.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpsertProject inserts a project, ignoring the insert if the id already
// exists. Replays of an acknowledged create are therefore harmless.
func (s *Store) UpsertProject(ctx context.Context, p *types.Project) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO projects (id, user_id, title, description, genre, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.UserID, p.Title, p.Description, p.Genre, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// UpdateProject overwrites a project's shared fields.
func (s *Store) UpdateProject(ctx context.Context, p *types.Project) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE projects
		SET title = $2, description = $3, genre = $4, updated_at = $5
		WHERE id = $1
	`, p.ID, p.Title, p.Description, p.Genre, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// DeleteProject removes a project and, via cascade, its whole tree.
// Deleting an absent id is a no-op.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
