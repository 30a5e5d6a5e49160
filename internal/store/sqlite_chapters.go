package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/inkwell/internal/richtext"
	"github.com/hyperengineering/inkwell/internal/sync"
	"github.com/hyperengineering/inkwell/internal/types"
	"github.com/oklog/ulid/v2"
)

const selectChapterColumns = `
	SELECT id, project_id, title, content, plain_text, word_count, position,
	       sync_status, last_synced_at, created_at, updated_at
	FROM chapters`

func scanChapter(scanner interface{ Scan(...any) error }) (*types.Chapter, error) {
	var c types.Chapter
	var content, lastSyncedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(&c.ID, &c.ProjectID, &c.Title, &content, &c.PlainText,
		&c.WordCount, &c.Position, &c.SyncStatus, &lastSyncedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if content.Valid {
		c.Content = []byte(content.String)
	}
	c.LastSyncedAt = parseTimePtr(lastSyncedAt)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// deriveChapterFields recomputes plain text and word count from the content
// document. Derived fields are written in the same statement as the content
// so readers never observe stale derived state.
func deriveChapterFields(c *types.Chapter) {
	c.PlainText = richtext.ExtractPlainText(c.Content)
	c.WordCount = richtext.CountCharacters(c.PlainText)
}

// bumpProjectTx refreshes the parent project's updated_at so "most recently
// touched" ordering stays correct without a reindex step.
func bumpProjectTx(ctx context.Context, tx *sql.Tx, projectID string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projects SET updated_at = ? WHERE id = ?
	`, fmtTime(now), projectID)
	if err != nil {
		return fmt.Errorf("bump project updated_at: %w", err)
	}
	return nil
}

// CreateChapter stores a new chapter and queues it for sync. Position
// defaults to the end of the project's chapter list.
func (s *SQLiteStore) CreateChapter(ctx context.Context, c *types.Chapter) error {
	if c.ID == "" {
		c.ID = ulid.Make().String()
	}
	now := s.now()
	c.SyncStatus = types.SyncPending
	c.CreatedAt = now
	c.UpdatedAt = now
	deriveChapterFields(c)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if c.Position == 0 {
		var maxPos sql.NullInt64
		err = tx.QueryRowContext(ctx, `
			SELECT MAX(position) FROM chapters WHERE project_id = ?
		`, c.ProjectID).Scan(&maxPos)
		if err != nil {
			return fmt.Errorf("next chapter position: %w", err)
		}
		if maxPos.Valid {
			c.Position = int(maxPos.Int64) + 1
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chapters (id, project_id, title, content, plain_text, word_count,
			position, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ProjectID, c.Title, nullableBytes(c.Content), c.PlainText, c.WordCount,
		c.Position, string(c.SyncStatus), fmtTime(now), fmtTime(now))
	if err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}

	if err := bumpProjectTx(ctx, tx, c.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntityChapter, c.ID, sync.OpCreate, sync.ChapterPayload{Chapter: *c}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetChapter retrieves a chapter by id.
func (s *SQLiteStore) GetChapter(ctx context.Context, id string) (*types.Chapter, error) {
	row := s.db.QueryRowContext(ctx, selectChapterColumns+` WHERE id = ?`, id)
	c, err := scanChapter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chapter: %w", err)
	}
	return c, nil
}

// ListChaptersByProject returns the project's chapters in ascending position.
func (s *SQLiteStore) ListChaptersByProject(ctx context.Context, projectID string) ([]types.Chapter, error) {
	return s.listChapters(ctx, selectChapterColumns+`
		WHERE project_id = ?
		ORDER BY position ASC
	`, projectID)
}

// ListPendingChapters returns chapters awaiting push.
func (s *SQLiteStore) ListPendingChapters(ctx context.Context) ([]types.Chapter, error) {
	return s.listChapters(ctx, selectChapterColumns+`
		WHERE sync_status = ?
		ORDER BY created_at ASC
	`, string(types.SyncPending))
}

func (s *SQLiteStore) listChapters(ctx context.Context, query string, args ...any) ([]types.Chapter, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
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

// UpdateChapter overwrites the chapter's domain fields, recomputing derived
// fields and bumping the parent project in the same transaction.
func (s *SQLiteStore) UpdateChapter(ctx context.Context, c *types.Chapter) error {
	existing, err := s.GetChapter(ctx, c.ID)
	if err != nil {
		return err
	}

	now := s.now()
	c.ProjectID = existing.ProjectID
	c.CreatedAt = existing.CreatedAt
	c.SyncStatus = types.SyncPending
	c.UpdatedAt = now
	deriveChapterFields(c)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE chapters
		SET title = ?, content = ?, plain_text = ?, word_count = ?, position = ?,
			sync_status = ?, updated_at = ?
		WHERE id = ?
	`, c.Title, nullableBytes(c.Content), c.PlainText, c.WordCount, c.Position,
		string(c.SyncStatus), fmtTime(now), c.ID)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}

	if err := bumpProjectTx(ctx, tx, c.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntityChapter, c.ID, sync.OpUpdate, sync.ChapterPayload{Chapter: *c}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteChapter hard-deletes a chapter. Missing ids are a no-op.
func (s *SQLiteStore) DeleteChapter(ctx context.Context, id string) error {
	existing, err := s.GetChapter(ctx, id)
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	if err := bumpProjectTx(ctx, tx, existing.ProjectID, now); err != nil {
		return err
	}
	if err := s.enqueueTx(ctx, tx, sync.EntityChapter, id, sync.OpDelete, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ReorderChapters rewrites chapter positions to match orderedIDs in one
// transaction. The reordered rows are flagged pending so the reconciliation
// scan pushes the new ordering.
func (s *SQLiteStore) ReorderChapters(ctx context.Context, projectID string, orderedIDs []string) error {
	return s.reorderRows(ctx, "chapters", projectID, orderedIDs)
}

// reorderRows is shared by chapter and character reordering.
func (s *SQLiteStore) reorderRows(ctx context.Context, table, projectID string, orderedIDs []string) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE project_id = ?`, projectID).Scan(&count)
	if err != nil {
		return fmt.Errorf("count %s: %w", table, err)
	}
	if count != len(orderedIDs) {
		return ErrBadReorder
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for pos, id := range orderedIDs {
		result, err := tx.ExecContext(ctx, `
			UPDATE `+table+` SET position = ?, sync_status = ?, updated_at = ?
			WHERE id = ? AND project_id = ?
		`, pos, string(types.SyncPending), fmtTime(now), id, projectID)
		if err != nil {
			return fmt.Errorf("reorder %s: %w", table, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if affected == 0 {
			return ErrBadReorder
		}
	}

	if err := bumpProjectTx(ctx, tx, projectID, now); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyRemoteChapter writes a remote chapter into local storage as synced.
// Derived fields are recomputed locally since the remote schema carries only
// the content document and its count.
func (s *SQLiteStore) ApplyRemoteChapter(ctx context.Context, c *types.Chapter) error {
	now := s.now()
	deriveChapterFields(c)
	c.SyncStatus = types.SyncSynced
	syncedAt := now
	c.LastSyncedAt = &syncedAt

	_, err := s.GetChapter(ctx, c.ID)
	if errors.Is(err, ErrNotFound) {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO chapters (id, project_id, title, content, plain_text, word_count,
				position, sync_status, last_synced_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.ProjectID, c.Title, nullableBytes(c.Content), c.PlainText, c.WordCount,
			c.Position, string(c.SyncStatus), fmtTime(syncedAt), fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert remote chapter: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE chapters
		SET title = ?, content = ?, plain_text = ?, word_count = ?, position = ?,
			sync_status = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ?
	`, c.Title, nullableBytes(c.Content), c.PlainText, c.WordCount, c.Position,
		string(c.SyncStatus), fmtTime(syncedAt), fmtTime(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("update remote chapter: %w", err)
	}
	return nil
}
