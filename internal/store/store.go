package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hyperengineering/inkwell/internal/sync"
	"github.com/hyperengineering/inkwell/internal/types"
)

// Store defines the interface contract for all local storage operations.
type Store interface {
	CreateProject(ctx context.Context, p *types.Project) error
	GetProject(ctx context.Context, id string) (*types.Project, error)
	ListProjectsByUser(ctx context.Context, userID string) ([]types.Project, error)
	ListProjectsByGuest(ctx context.Context, guestID string) ([]types.Project, error)
	ListPendingProjects(ctx context.Context) ([]types.Project, error)
	UpdateProject(ctx context.Context, p *types.Project) error
	DeleteProject(ctx context.Context, id string) error
	ProjectOwner(ctx context.Context, id string) (userID, guestID string, err error)
	ApplyRemoteProject(ctx context.Context, p *types.Project) error

	CreateChapter(ctx context.Context, c *types.Chapter) error
	GetChapter(ctx context.Context, id string) (*types.Chapter, error)
	ListChaptersByProject(ctx context.Context, projectID string) ([]types.Chapter, error)
	ListPendingChapters(ctx context.Context) ([]types.Chapter, error)
	UpdateChapter(ctx context.Context, c *types.Chapter) error
	DeleteChapter(ctx context.Context, id string) error
	ReorderChapters(ctx context.Context, projectID string, orderedIDs []string) error
	ApplyRemoteChapter(ctx context.Context, c *types.Chapter) error

	CreateSynopsis(ctx context.Context, sy *types.Synopsis) error
	GetSynopsis(ctx context.Context, id string) (*types.Synopsis, error)
	GetSynopsisByProject(ctx context.Context, projectID string) (*types.Synopsis, error)
	ListPendingSynopses(ctx context.Context) ([]types.Synopsis, error)
	UpdateSynopsis(ctx context.Context, sy *types.Synopsis) error
	DeleteSynopsis(ctx context.Context, id string) error
	ApplyRemoteSynopsis(ctx context.Context, sy *types.Synopsis) error

	CreateCharacter(ctx context.Context, c *types.Character) error
	GetCharacter(ctx context.Context, id string) (*types.Character, error)
	ListCharactersByProject(ctx context.Context, projectID string) ([]types.Character, error)
	ListPendingCharacters(ctx context.Context) ([]types.Character, error)
	UpdateCharacter(ctx context.Context, c *types.Character) error
	DeleteCharacter(ctx context.Context, id string) error
	ReorderCharacters(ctx context.Context, projectID string, orderedIDs []string) error
	ApplyRemoteCharacter(ctx context.Context, c *types.Character) error

	CreateRelationship(ctx context.Context, rel *types.Relationship) error
	GetRelationship(ctx context.Context, id string) (*types.Relationship, error)
	ListRelationshipsByProject(ctx context.Context, projectID string) ([]types.Relationship, error)
	ListPendingRelationships(ctx context.Context) ([]types.Relationship, error)
	UpdateRelationship(ctx context.Context, rel *types.Relationship) error
	DeleteRelationship(ctx context.Context, id string) error
	ApplyRemoteRelationship(ctx context.Context, rel *types.Relationship) error

	CreateVersion(ctx context.Context, entityType types.VersionedEntityType, entityID string, snapshot json.RawMessage) (*types.Version, error)
	ListVersions(ctx context.Context, entityType types.VersionedEntityType, entityID string) ([]types.Version, error)
	GetVersion(ctx context.Context, id string) (*types.Version, error)

	ListQueueEntries(ctx context.Context) ([]sync.QueueEntry, error)
	ListPoisonedQueueEntries(ctx context.Context) ([]sync.QueueEntry, error)
	FailQueueEntry(ctx context.Context, id int64, reason string) error
	CompleteQueueEntry(ctx context.Context, id int64) error
	HasQueuedDelete(ctx context.Context, entityType sync.EntityType, entityID string) (bool, error)
	MarkSynced(ctx context.Context, entityType sync.EntityType, id string, syncedAt time.Time) error

	MigrateGuestProjects(ctx context.Context, guestID, userID string) (*types.MigrationResult, error)

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error

	Close() error
}
