package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/inkwell/internal/sync"
	"github.com/hyperengineering/inkwell/internal/types"
	"github.com/oklog/ulid/v2"
)

const selectProjectColumns = `
	SELECT id, user_id, guest_id, title, description, genre, status, cover_image,
	       sync_status, last_synced_at, deleted_at, created_at, updated_at
	FROM projects`

func scanProject(scanner interface{ Scan(...any) error }) (*types.Project, error) {
	var p types.Project
	var userID, guestID, lastSyncedAt, deletedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(&p.ID, &userID, &guestID, &p.Title, &p.Description, &p.Genre,
		&p.Status, &p.CoverImage, &p.SyncStatus, &lastSyncedAt, &deletedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.UserID = userID.String
	p.GuestID = guestID.String
	p.LastSyncedAt = parseTimePtr(lastSyncedAt)
	p.DeletedAt = parseTimePtr(deletedAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// CreateProject stores a new project locally and queues it for sync.
// The id is client-generated when absent so remote upserts stay idempotent.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *types.Project) error {
	if (p.UserID == "") == (p.GuestID == "") {
		return ErrMissingOwner
	}
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	now := s.now()
	p.Status = types.ProjectActive
	p.SyncStatus = types.SyncPending
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, user_id, guest_id, title, description, genre, status,
			cover_image, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, nullableString(p.UserID), nullableString(p.GuestID), p.Title, p.Description,
		p.Genre, string(p.Status), nullableBytes(p.CoverImage), string(p.SyncStatus),
		fmtTime(now), fmtTime(now))
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	if err := s.enqueueTx(ctx, tx, sync.EntityProject, p.ID, sync.OpCreate, sync.ProjectPayload{Project: *p}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetProject retrieves an active project by id. Soft-deleted projects are
// invisible here; use the deletion timestamp columns for auditing.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx, selectProjectColumns+`
		WHERE id = ? AND status = 'active'
	`, id)

	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return p, nil
}

// ListProjectsByUser returns the user's active projects, most recently
// touched first.
func (s *SQLiteStore) ListProjectsByUser(ctx context.Context, userID string) ([]types.Project, error) {
	return s.listProjects(ctx, selectProjectColumns+`
		WHERE user_id = ? AND status = 'active'
		ORDER BY updated_at DESC
	`, userID)
}

// ListProjectsByGuest returns the guest's active projects, most recently
// touched first.
func (s *SQLiteStore) ListProjectsByGuest(ctx context.Context, guestID string) ([]types.Project, error) {
	return s.listProjects(ctx, selectProjectColumns+`
		WHERE guest_id = ? AND status = 'active'
		ORDER BY updated_at DESC
	`, guestID)
}

// ListPendingProjects returns active projects awaiting push.
func (s *SQLiteStore) ListPendingProjects(ctx context.Context) ([]types.Project, error) {
	return s.listProjects(ctx, selectProjectColumns+`
		WHERE sync_status = ? AND status = 'active'
		ORDER BY created_at ASC
	`, string(types.SyncPending))
}

func (s *SQLiteStore) listProjects(ctx context.Context, query string, args ...any) ([]types.Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
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

// UpdateProject overwrites the project's domain fields. Ownership columns are
// not touched here; guest migration owns those transitions.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *types.Project) error {
	existing, err := s.GetProject(ctx, p.ID)
	if err != nil {
		return err
	}

	now := s.now()
	p.UserID = existing.UserID
	p.GuestID = existing.GuestID
	p.Status = existing.Status
	p.CreatedAt = existing.CreatedAt
	p.SyncStatus = types.SyncPending
	p.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE projects
		SET title = ?, description = ?, genre = ?, cover_image = ?, sync_status = ?, updated_at = ?
		WHERE id = ?
	`, p.Title, p.Description, p.Genre, nullableBytes(p.CoverImage),
		string(p.SyncStatus), fmtTime(now), p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	if err := s.enqueueTx(ctx, tx, sync.EntityProject, p.ID, sync.OpUpdate, sync.ProjectPayload{Project: *p}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteProject soft-deletes the project and hard-deletes its entire child
// subtree in one transaction. Deleting a missing project is a no-op.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	_, err := s.GetProject(ctx, id)
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

	// Versions reference children, so they go before the child rows.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM versions
		WHERE (entity_type = 'synopsis' AND entity_id IN (SELECT id FROM synopses WHERE project_id = ?))
		   OR (entity_type = 'character' AND entity_id IN (SELECT id FROM characters WHERE project_id = ?))
	`, id, id)
	if err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}

	// Queued child mutations are dropped while the child rows still exist;
	// the remote cascade on the project delete covers them.
	childTables := map[sync.EntityType]string{
		sync.EntityChapter:      "chapters",
		sync.EntitySynopsis:     "synopses",
		sync.EntityCharacter:    "characters",
		sync.EntityRelationship: "relationships",
	}
	for entityType, table := range childTables {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM sync_queue
			WHERE entity_type = ? AND entity_id IN (SELECT id FROM `+table+` WHERE project_id = ?)
		`, string(entityType), id)
		if err != nil {
			return fmt.Errorf("prune %s queue entries: %w", table, err)
		}
	}

	for _, table := range []string{"relationships", "characters", "synopses", "chapters"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE projects
		SET status = 'deleted', deleted_at = ?, updated_at = ?, sync_status = ?
		WHERE id = ?
	`, fmtTime(now), fmtTime(now), string(types.SyncPending), id)
	if err != nil {
		return fmt.Errorf("soft delete project: %w", err)
	}

	if err := s.enqueueTx(ctx, tx, sync.EntityProject, id, sync.OpDelete, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ProjectOwner reports the owning identity of a project regardless of its
// lifecycle status. Exactly one of the returned ids is non-empty.
func (s *SQLiteStore) ProjectOwner(ctx context.Context, projectID string) (userID, guestID string, err error) {
	var u, g sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT user_id, guest_id FROM projects WHERE id = ?
	`, projectID).Scan(&u, &g)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("project owner: %w", err)
	}
	return u.String, g.String, nil
}

// ApplyRemoteProject writes a remote project into local storage as synced,
// preserving the locally cached cover image the remote schema does not carry.
// It never enqueues; pulled state is already remote truth.
func (s *SQLiteStore) ApplyRemoteProject(ctx context.Context, p *types.Project) error {
	now := s.now()
	existing, err := s.GetProject(ctx, p.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	p.SyncStatus = types.SyncSynced
	syncedAt := now
	p.LastSyncedAt = &syncedAt

	if existing == nil {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO projects (id, user_id, guest_id, title, description, genre, status,
				cover_image, sync_status, last_synced_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 'active', ?, ?, ?, ?, ?)
		`, p.ID, nullableString(p.UserID), nullableString(p.GuestID), p.Title, p.Description,
			p.Genre, nullableBytes(p.CoverImage), string(p.SyncStatus), fmtTime(syncedAt),
			fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert remote project: %w", err)
		}
		return nil
	}

	if len(p.CoverImage) == 0 {
		p.CoverImage = existing.CoverImage
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE projects
		SET user_id = ?, guest_id = ?, title = ?, description = ?, genre = ?,
			cover_image = ?, sync_status = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ?
	`, nullableString(p.UserID), nullableString(p.GuestID), p.Title, p.Description, p.Genre,
		nullableBytes(p.CoverImage), string(p.SyncStatus), fmtTime(syncedAt),
		fmtTime(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update remote project: %w", err)
	}
	return nil
}
