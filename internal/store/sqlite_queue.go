package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/inkwell/internal/sync"
)

// The change queue is a durable, coalesced log of intended remote mutations.
// At most one live entry exists per (entity_type, entity_id); enqueues merge
// into the existing entry instead of appending. Entries that exhaust the
// retry ceiling are parked: excluded from Dequeue and ListQueueEntries but
// kept in storage for diagnostics.

// Enqueue records a pending remote mutation, coalescing with any live entry
// for the same entity.
func (s *SQLiteStore) Enqueue(ctx context.Context, entityType sync.EntityType, entityID string, op sync.Operation, payload sync.Payload) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.enqueueTx(ctx, tx, entityType, entityID, op, payload); err != nil {
		return err
	}
	return tx.Commit()
}

// enqueueTx applies the coalescing merge rules inside an existing transaction
// so a local mutation and its queue entry commit atomically.
func (s *SQLiteStore) enqueueTx(ctx context.Context, tx *sql.Tx, entityType sync.EntityType, entityID string, op sync.Operation, payload sync.Payload) error {
	raw, err := sync.MarshalPayload(payload)
	if err != nil {
		return err
	}

	var existingID int64
	var existingOp sync.Operation
	err = tx.QueryRowContext(ctx, `
		SELECT id, operation FROM sync_queue WHERE entity_type = ? AND entity_id = ?
	`, string(entityType), entityID).Scan(&existingID, &existingOp)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sync_queue (entity_type, entity_id, operation, payload, attempts, created_at)
			VALUES (?, ?, ?, ?, 0, ?)
		`, string(entityType), entityID, string(op), nullableBytes(raw), fmtTime(s.now()))
		if err != nil {
			return fmt.Errorf("insert queue entry: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("lookup queue entry: %w", err)
	}

	// Merge rules. created_at is preserved so coalesced entries keep their
	// original position in the FIFO drain order.
	merged := op
	mergedPayload := raw
	switch {
	case existingOp == sync.OpCreate && op == sync.OpDelete:
		// The entity never reached remote; net effect is nothing to do.
		_, err = tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, existingID)
		if err != nil {
			return fmt.Errorf("remove cancelled queue entry: %w", err)
		}
		return nil
	case existingOp == sync.OpCreate && op == sync.OpUpdate:
		// Remote has never seen this entity, so it is still a creation.
		merged = sync.OpCreate
	case existingOp == sync.OpUpdate && op == sync.OpDelete:
		merged = sync.OpDelete
		mergedPayload = nil
	}
	// (update,update), (create,create) and any sequence starting from delete
	// fall through as last-write-wins.

	_, err = tx.ExecContext(ctx, `
		UPDATE sync_queue SET operation = ?, payload = ?, attempts = 0, last_attempt_at = NULL, last_error = NULL
		WHERE id = ?
	`, string(merged), nullableBytes(mergedPayload), existingID)
	if err != nil {
		return fmt.Errorf("merge queue entry: %w", err)
	}
	return nil
}

const selectQueueColumns = `
	SELECT id, entity_type, entity_id, operation, payload, attempts, last_attempt_at, last_error, created_at
	FROM sync_queue`

func scanQueueEntry(scanner interface{ Scan(...any) error }) (*sync.QueueEntry, error) {
	var e sync.QueueEntry
	var entityType, operation, createdAt string
	var payload []byte
	var lastAttemptAt, lastError sql.NullString

	if err := scanner.Scan(&e.ID, &entityType, &e.EntityID, &operation,
		&payload, &e.Attempts, &lastAttemptAt, &lastError, &createdAt); err != nil {
		return nil, err
	}
	e.LastError = lastError.String

	e.EntityType = sync.EntityType(entityType)
	e.Operation = sync.Operation(operation)
	e.CreatedAt = parseTime(createdAt)
	e.LastAttemptAt = parseTimePtr(lastAttemptAt)

	p, err := sync.UnmarshalPayload(e.EntityType, payload)
	if err != nil {
		return nil, err
	}
	e.Payload = p
	return &e, nil
}

// Dequeue returns the oldest entry below the retry ceiling, or nil when the
// queue has no eligible entries.
func (s *SQLiteStore) Dequeue(ctx context.Context) (*sync.QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, selectQueueColumns+`
		WHERE attempts < ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, s.maxQueueAttempts)

	entry, err := scanQueueEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	return entry, nil
}

// ListQueueEntries returns all eligible entries in FIFO order.
func (s *SQLiteStore) ListQueueEntries(ctx context.Context) ([]sync.QueueEntry, error) {
	return s.listQueue(ctx, selectQueueColumns+`
		WHERE attempts < ?
		ORDER BY created_at ASC, id ASC
	`, s.maxQueueAttempts)
}

// ListPoisonedQueueEntries returns entries parked at the retry ceiling.
// They are operator-visible dead-letter state, never retried or deleted
// automatically.
func (s *SQLiteStore) ListPoisonedQueueEntries(ctx context.Context) ([]sync.QueueEntry, error) {
	return s.listQueue(ctx, selectQueueColumns+`
		WHERE attempts >= ?
		ORDER BY created_at ASC, id ASC
	`, s.maxQueueAttempts)
}

func (s *SQLiteStore) listQueue(ctx context.Context, query string, args ...any) ([]sync.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync queue: %w", err)
	}
	defer rows.Close()

	entries := make([]sync.QueueEntry, 0)
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// FailQueueEntry increments the attempt counter and records the failure.
// Reaching the ceiling parks the entry; it is not deleted.
func (s *SQLiteStore) FailQueueEntry(ctx context.Context, id int64, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1, last_attempt_at = ?, last_error = ? WHERE id = ?
	`, fmtTime(s.now()), reason, id)
	if err != nil {
		return fmt.Errorf("fail queue entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteQueueEntry removes a successfully pushed entry. Success is final.
func (s *SQLiteStore) CompleteQueueEntry(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("complete queue entry: %w", err)
	}
	return nil
}

// RemoveQueueEntriesByEntity drops any live entry for the given entity.
func (s *SQLiteStore) RemoveQueueEntriesByEntity(ctx context.Context, entityType sync.EntityType, entityID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_queue WHERE entity_type = ? AND entity_id = ?
	`, string(entityType), entityID)
	if err != nil {
		return fmt.Errorf("remove queue entries: %w", err)
	}
	return nil
}

// ClearQueue empties the queue, poisoned entries included.
func (s *SQLiteStore) ClearQueue(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue`)
	if err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// HasQueuedDelete reports whether a delete is queued for the entity. Pull
// reconciliation uses it so an unsynced local delete is never clobbered by
// an incoming remote record.
func (s *SQLiteStore) HasQueuedDelete(ctx context.Context, entityType sync.EntityType, entityID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_queue
		WHERE entity_type = ? AND entity_id = ? AND operation = ?
	`, string(entityType), entityID, string(sync.OpDelete)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check queued delete: %w", err)
	}
	return n > 0, nil
}
