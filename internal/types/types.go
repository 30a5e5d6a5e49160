package types

import (
	"encoding/json"
	"time"
)

// SyncStatus tracks whether a local record has been confirmed on the remote store.
type SyncStatus string

const (
	// SyncSynced means local and remote state were reconciled.
	SyncSynced SyncStatus = "synced"
	// SyncPending means local state has not yet been confirmed on remote.
	SyncPending SyncStatus = "pending"
	// SyncConflict is reserved. No code path currently sets it; conflict
	// resolution is last-writer-wins at whole-record granularity.
	SyncConflict SyncStatus = "conflict"
)

// ProjectStatus tracks project lifecycle for soft deletion.
type ProjectStatus string

const (
	ProjectActive  ProjectStatus = "active"
	ProjectDeleted ProjectStatus = "deleted"
)

// Project is the top-level entity. Exactly one of UserID/GuestID is set while
// the project is active; children inherit ownership through ProjectID.
type Project struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id,omitempty"`
	GuestID      string          `json:"guest_id,omitempty"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Genre        string          `json:"genre,omitempty"`
	Status       ProjectStatus   `json:"status"`
	CoverImage   []byte          `json:"-"` // locally cached blob, never pushed
	SyncStatus   SyncStatus      `json:"sync_status"`
	LastSyncedAt *time.Time      `json:"last_synced_at,omitempty"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Chapter holds rich content plus derived plain text and word count.
// Content is an opaque document tree; it round-trips storage unmodified.
type Chapter struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	Title        string          `json:"title"`
	Content      json.RawMessage `json:"content,omitempty"`
	PlainText    string          `json:"plain_text,omitempty"`
	WordCount    int             `json:"word_count"`
	Position     int             `json:"position"`
	SyncStatus   SyncStatus      `json:"sync_status"`
	LastSyncedAt *time.Time      `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Synopsis is the single story summary document for a project.
type Synopsis struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	Content      json.RawMessage `json:"content,omitempty"`
	PlainText    string          `json:"plain_text,omitempty"`
	WordCount    int             `json:"word_count"`
	SyncStatus   SyncStatus      `json:"sync_status"`
	LastSyncedAt *time.Time      `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Character is a cast member of a project.
type Character struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	Name         string     `json:"name"`
	Role         string     `json:"role,omitempty"`
	Description  string     `json:"description,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	ImageData    []byte     `json:"-"` // locally cached blob, never pushed
	Position     int        `json:"position"`
	SyncStatus   SyncStatus `json:"sync_status"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Relationship links two characters within the same project.
type Relationship struct {
	ID                string     `json:"id"`
	ProjectID         string     `json:"project_id"`
	SourceCharacterID string     `json:"source_character_id"`
	TargetCharacterID string     `json:"target_character_id"`
	Label             string     `json:"label"`
	Description       string     `json:"description,omitempty"`
	SyncStatus        SyncStatus `json:"sync_status"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// VersionedEntityType enumerates the entity types that keep snapshot history.
type VersionedEntityType string

const (
	VersionedSynopsis  VersionedEntityType = "synopsis"
	VersionedCharacter VersionedEntityType = "character"
)

// Version is one append-only snapshot in an entity's local history.
// Versions carry no sync status; history never leaves the device.
type Version struct {
	ID         string              `json:"id"`
	EntityType VersionedEntityType `json:"entity_type"`
	EntityID   string              `json:"entity_id"`
	Snapshot   json.RawMessage     `json:"snapshot"`
	Diff       json.RawMessage     `json:"diff,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// MigrationResult reports the outcome of a guest-to-user data migration.
type MigrationResult struct {
	Success       bool   `json:"success"`
	Projects      int    `json:"projects"`
	Chapters      int    `json:"chapters"`
	Synopses      int    `json:"synopses"`
	Characters    int    `json:"characters"`
	Relationships int    `json:"relationships"`
	Versions      int    `json:"versions"` // counted only, never re-flagged
	Error         string `json:"error,omitempty"`
}

// Total returns the number of records whose sync intent was re-flagged.
func (m MigrationResult) Total() int {
	return m.Projects + m.Chapters + m.Synopses + m.Characters + m.Relationships
}
