package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperengineering/inkwell/internal/types"
)

// Operation is the intended remote mutation for a queue entry.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// EntityType identifies which syncable table a queue entry refers to.
type EntityType string

const (
	EntityProject      EntityType = "project"
	EntityChapter      EntityType = "chapter"
	EntitySynopsis     EntityType = "synopsis"
	EntityCharacter    EntityType = "character"
	EntityRelationship EntityType = "relationship"
)

// Payload is the typed record carried by a create/update queue entry.
// It is a closed sum over the five syncable entity types so push handlers
// can switch exhaustively instead of narrowing an untyped blob.
type Payload interface {
	EntityType() EntityType
}

// ProjectPayload wraps a full project record.
type ProjectPayload struct {
	Project types.Project `json:"project"`
}

func (ProjectPayload) EntityType() EntityType { return EntityProject }

// ChapterPayload wraps a full chapter record.
type ChapterPayload struct {
	Chapter types.Chapter `json:"chapter"`
}

func (ChapterPayload) EntityType() EntityType { return EntityChapter }

// SynopsisPayload wraps a full synopsis record.
type SynopsisPayload struct {
	Synopsis types.Synopsis `json:"synopsis"`
}

func (SynopsisPayload) EntityType() EntityType { return EntitySynopsis }

// CharacterPayload wraps a full character record.
type CharacterPayload struct {
	Character types.Character `json:"character"`
}

func (CharacterPayload) EntityType() EntityType { return EntityCharacter }

// RelationshipPayload wraps a full relationship record.
type RelationshipPayload struct {
	Relationship types.Relationship `json:"relationship"`
}

func (RelationshipPayload) EntityType() EntityType { return EntityRelationship }

// UnmarshalPayload decodes a stored payload into its typed form using the
// entity type column as the discriminator. A nil/empty payload (delete
// entries) decodes to nil.
func UnmarshalPayload(entityType EntityType, raw []byte) (Payload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch entityType {
	case EntityProject:
		var p ProjectPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode project payload: %w", err)
		}
		return p, nil
	case EntityChapter:
		var p ChapterPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode chapter payload: %w", err)
		}
		return p, nil
	case EntitySynopsis:
		var p SynopsisPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode synopsis payload: %w", err)
		}
		return p, nil
	case EntityCharacter:
		var p CharacterPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode character payload: %w", err)
		}
		return p, nil
	case EntityRelationship:
		var p RelationshipPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode relationship payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
}

// MarshalPayload encodes a typed payload for durable storage.
// A nil payload (delete entries) encodes to nil.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.EntityType(), err)
	}
	return raw, nil
}

// QueueEntry is one pending mutation in the durable change queue.
// At most one live entry exists per (EntityType, EntityID) pair.
type QueueEntry struct {
	ID            int64      `json:"id"`
	EntityType    EntityType `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	Operation     Operation  `json:"operation"`
	Payload       Payload    `json:"payload,omitempty"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Status is the published sync engine state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	// StatusError is non-terminal; the next run transitions back through syncing.
	StatusError Status = "error"
)

// Result aggregates one SyncAll run.
type Result struct {
	Success bool     `json:"success"`
	Synced  int      `json:"synced"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
