package store

import (
	"context"
	"fmt"

	"github.com/hyperengineering/inkwell/internal/types"
)

// MigrateGuestProjects transfers ownership of all active guest projects to
// the given user in a single transaction. Every affected record is flagged
// pending so the next sync pushes it under the new owner. Versions are local
// history and are counted but never re-flagged. Calling with a guest id that
// owns nothing returns a zero-count success, which makes the routine safe to
// re-run.
func (s *SQLiteStore) MigrateGuestProjects(ctx context.Context, guestID, userID string) (*types.MigrationResult, error) {
	if guestID == "" || userID == "" {
		return nil, fmt.Errorf("%w: migration requires both guest and user ids", ErrMissingOwner)
	}

	result := &types.MigrationResult{}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM projects WHERE guest_id = ? AND status = ?
	`, guestID, string(types.ProjectActive))
	if err != nil {
		return nil, fmt.Errorf("query guest projects: %w", err)
	}
	var projectIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		projectIDs = append(projectIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guest projects: %w", err)
	}

	if len(projectIDs) == 0 {
		result.Success = true
		return result, nil
	}

	placeholders := ""
	args := make([]any, 0, len(projectIDs))
	for i, id := range projectIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, id)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE projects
		SET user_id = ?, guest_id = NULL, sync_status = ?
		WHERE id IN (`+placeholders+`)
	`, append([]any{userID, string(types.SyncPending)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("reassign projects: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	result.Projects = int(n)

	childTables := []struct {
		table string
		count *int
	}{
		{"chapters", &result.Chapters},
		{"synopses", &result.Synopses},
		{"characters", &result.Characters},
		{"relationships", &result.Relationships},
	}
	for _, ct := range childTables {
		res, err := tx.ExecContext(ctx, `
			UPDATE `+ct.table+`
			SET sync_status = ?
			WHERE project_id IN (`+placeholders+`)
		`, append([]any{string(types.SyncPending)}, args...)...)
		if err != nil {
			return nil, fmt.Errorf("re-flag %s: %w", ct.table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("get rows affected: %w", err)
		}
		*ct.count += int(n)
	}

	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM versions
		WHERE entity_id IN (
			SELECT id FROM synopses WHERE project_id IN (`+placeholders+`)
			UNION
			SELECT id FROM characters WHERE project_id IN (`+placeholders+`)
		)
	`, append(append([]any{}, args...), args...)...).Scan(&result.Versions)
	if err != nil {
		return nil, fmt.Errorf("count versions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit migration: %w", err)
	}

	result.Success = true
	return result, nil
}
