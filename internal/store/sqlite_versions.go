package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperengineering/inkwell/internal/types"
	"github.com/oklog/ulid/v2"
)

const selectVersionColumns = `
	SELECT id, entity_type, entity_id, snapshot, diff, created_at
	FROM versions`

func scanVersion(scanner interface{ Scan(...any) error }) (*types.Version, error) {
	var v types.Version
	var snapshot, diff sql.NullString
	var createdAt string

	err := scanner.Scan(&v.ID, &v.EntityType, &v.EntityID, &snapshot, &diff, &createdAt)
	if err != nil {
		return nil, err
	}

	if snapshot.Valid {
		v.Snapshot = []byte(snapshot.String)
	}
	if diff.Valid {
		v.Diff = []byte(diff.String)
	}
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

// CreateVersion records a local history snapshot for a synopsis or character.
// When the snapshot is identical to the latest recorded version the write is
// skipped and (nil, nil) is returned. History beyond the configured limit is
// pruned oldest-first. Versions never enter the sync queue.
func (s *SQLiteStore) CreateVersion(ctx context.Context, entityType types.VersionedEntityType, entityID string, snapshot json.RawMessage) (*types.Version, error) {
	latest, err := s.latestVersion(ctx, entityType, entityID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var diff json.RawMessage
	if latest != nil {
		diff, err = computeDiff(latest.Snapshot, snapshot)
		if err != nil {
			return nil, err
		}
		if diff == nil {
			return nil, nil
		}
	}

	now := s.now()
	v := &types.Version{
		ID:         ulid.Make().String(),
		EntityType: entityType,
		EntityID:   entityID,
		Snapshot:   snapshot,
		Diff:       diff,
		CreatedAt:  now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO versions (id, entity_type, entity_id, snapshot, diff, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.ID, string(v.EntityType), v.EntityID, nullableBytes(v.Snapshot),
		nullableBytes(v.Diff), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM versions
		WHERE entity_type = ? AND entity_id = ? AND id NOT IN (
			SELECT id FROM versions
			WHERE entity_type = ? AND entity_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
	`, string(entityType), entityID, string(entityType), entityID, s.versionLimit)
	if err != nil {
		return nil, fmt.Errorf("prune versions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}

// ListVersions returns version history newest-first.
func (s *SQLiteStore) ListVersions(ctx context.Context, entityType types.VersionedEntityType, entityID string) ([]types.Version, error) {
	rows, err := s.db.QueryContext(ctx, selectVersionColumns+`
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC, id DESC
	`, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	versions := make([]types.Version, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// GetVersion retrieves a single version by id.
func (s *SQLiteStore) GetVersion(ctx context.Context, id string) (*types.Version, error) {
	row := s.db.QueryRowContext(ctx, selectVersionColumns+` WHERE id = ?`, id)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan version: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) latestVersion(ctx context.Context, entityType types.VersionedEntityType, entityID string) (*types.Version, error) {
	row := s.db.QueryRowContext(ctx, selectVersionColumns+`
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, string(entityType), entityID)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan version: %w", err)
	}
	return v, nil
}

// computeDiff compares top-level fields of two JSON object snapshots and
// returns {"field": {"from": ..., "to": ...}} for each changed field. A nil
// result means the snapshots are equivalent.
func computeDiff(prev, next json.RawMessage) (json.RawMessage, error) {
	var prevFields, nextFields map[string]json.RawMessage
	if err := json.Unmarshal(prev, &prevFields); err != nil {
		return nil, fmt.Errorf("decode previous snapshot: %w", err)
	}
	if err := json.Unmarshal(next, &nextFields); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	type change struct {
		From json.RawMessage `json:"from"`
		To   json.RawMessage `json:"to"`
	}
	changes := make(map[string]change)

	for field, nextVal := range nextFields {
		prevVal, ok := prevFields[field]
		if !ok || !jsonEqual(prevVal, nextVal) {
			changes[field] = change{From: prevVal, To: nextVal}
		}
	}
	for field, prevVal := range prevFields {
		if _, ok := nextFields[field]; !ok {
			changes[field] = change{From: prevVal, To: nil}
		}
	}

	if len(changes) == 0 {
		return nil, nil
	}
	diff, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("encode diff: %w", err)
	}
	return diff, nil
}

// jsonEqual compares two JSON values structurally, ignoring key order and
// whitespace.
func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return string(a) == string(b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	ab, err := json.Marshal(av)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(bv)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}
