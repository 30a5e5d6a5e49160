package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/hyperengineering/inkwell/internal/types"
)

// ErrNoRemote indicates the engine was asked to sync while the service is
// running in offline mode (no remote DSN configured).
var ErrNoRemote = errors.New("no remote store configured")

// Store is the slice of local storage the engine needs. The concrete SQLite
// implementation lives in internal/store.
type Store interface {
	ListQueueEntries(ctx context.Context) ([]QueueEntry, error)
	FailQueueEntry(ctx context.Context, id int64, reason string) error
	CompleteQueueEntry(ctx context.Context, id int64) error
	HasQueuedDelete(ctx context.Context, entityType EntityType, entityID string) (bool, error)
	MarkSynced(ctx context.Context, entityType EntityType, id string, syncedAt time.Time) error

	GetProject(ctx context.Context, id string) (*types.Project, error)
	ProjectOwner(ctx context.Context, id string) (userID, guestID string, err error)
	ListPendingProjects(ctx context.Context) ([]types.Project, error)
	ApplyRemoteProject(ctx context.Context, p *types.Project) error

	GetChapter(ctx context.Context, id string) (*types.Chapter, error)
	ListPendingChapters(ctx context.Context) ([]types.Chapter, error)
	ApplyRemoteChapter(ctx context.Context, c *types.Chapter) error

	GetSynopsis(ctx context.Context, id string) (*types.Synopsis, error)
	ListPendingSynopses(ctx context.Context) ([]types.Synopsis, error)
	ApplyRemoteSynopsis(ctx context.Context, sy *types.Synopsis) error

	GetCharacter(ctx context.Context, id string) (*types.Character, error)
	ListPendingCharacters(ctx context.Context) ([]types.Character, error)
	ApplyRemoteCharacter(ctx context.Context, c *types.Character) error

	GetRelationship(ctx context.Context, id string) (*types.Relationship, error)
	ListPendingRelationships(ctx context.Context) ([]types.Relationship, error)
	ApplyRemoteRelationship(ctx context.Context, rel *types.Relationship) error
}

// Remote is the server-side store the engine reconciles against. The concrete
// Postgres implementation lives in internal/remote. Lookups wrap
// types.ErrNotFound for missing records; Delete and Upsert are idempotent.
type Remote interface {
	GetProject(ctx context.Context, id string) (*types.Project, error)
	ListProjectsByUser(ctx context.Context, userID string) ([]types.Project, error)
	UpsertProject(ctx context.Context, p *types.Project) error
	UpdateProject(ctx context.Context, p *types.Project) error
	DeleteProject(ctx context.Context, id string) error

	GetChapter(ctx context.Context, id string) (*types.Chapter, error)
	ListChaptersByProject(ctx context.Context, projectID string) ([]types.Chapter, error)
	UpsertChapter(ctx context.Context, c *types.Chapter) error
	UpdateChapter(ctx context.Context, c *types.Chapter) error
	DeleteChapter(ctx context.Context, id string) error

	GetSynopsis(ctx context.Context, id string) (*types.Synopsis, error)
	ListSynopsesByProject(ctx context.Context, projectID string) ([]types.Synopsis, error)
	UpsertSynopsis(ctx context.Context, sy *types.Synopsis) error
	UpdateSynopsis(ctx context.Context, sy *types.Synopsis) error
	DeleteSynopsis(ctx context.Context, id string) error

	GetCharacter(ctx context.Context, id string) (*types.Character, error)
	ListCharactersByProject(ctx context.Context, projectID string) ([]types.Character, error)
	UpsertCharacter(ctx context.Context, c *types.Character) error
	UpdateCharacter(ctx context.Context, c *types.Character) error
	DeleteCharacter(ctx context.Context, id string) error

	GetRelationship(ctx context.Context, id string) (*types.Relationship, error)
	ListRelationshipsByProject(ctx context.Context, projectID string) ([]types.Relationship, error)
	UpsertRelationship(ctx context.Context, rel *types.Relationship) error
	UpdateRelationship(ctx context.Context, rel *types.Relationship) error
	DeleteRelationship(ctx context.Context, id string) error
}

// Engine reconciles local state with the remote store. A single engine is
// shared by the HTTP layer and the background worker; concurrent run requests
// collapse into one (the loser returns immediately with an empty result).
type Engine struct {
	store  Store
	remote Remote
	logger *slog.Logger

	running atomic.Bool

	mu          stdsync.Mutex
	status      Status
	subscribers map[int]func(Status)
	nextSubID   int
}

// NewEngine creates a sync engine. remote may be nil for offline-only
// deployments; SyncAll and PullFromServer then error without touching the
// queue, leaving local state intact for a later online run.
func NewEngine(store Store, remote Remote, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       store,
		remote:      remote,
		logger:      logger,
		status:      StatusIdle,
		subscribers: make(map[int]func(Status)),
	}
}

// Status returns the engine's published state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Subscribe registers a status observer and returns its unsubscribe func.
// Observers are invoked synchronously on every transition, in registration
// order, and must not call back into the engine.
func (e *Engine) Subscribe(fn func(Status)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subscribers, id)
	}
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	// Subscriber ids are assigned in increasing order, so sorting them
	// recovers registration order from the map.
	ids := make([]int, 0, len(e.subscribers))
	for id := range e.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Status), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, e.subscribers[id])
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// SyncAll runs one full push cycle: drain the change queue in FIFO order,
// then scan for pending records the queue missed. A run already in flight
// makes SyncAll return an empty successful result immediately.
func (e *Engine) SyncAll(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return &Result{Success: true}, nil
	}
	defer e.running.Store(false)

	if e.remote == nil {
		return nil, ErrNoRemote
	}

	e.setStatus(StatusSyncing)
	result := &Result{}

	e.drainQueue(ctx, result)
	e.pushPending(ctx, result)

	result.Success = result.Failed == 0
	if result.Success {
		e.setStatus(StatusIdle)
	} else {
		e.setStatus(StatusError)
	}

	e.logger.Info("sync run finished",
		"synced", result.Synced,
		"failed", result.Failed,
		"success", result.Success)
	return result, nil
}

// drainQueue pushes queued mutations oldest-first. The queue snapshot is
// taken once per run so an entry failed here is not retried until the next
// run. Handlers push the record's current state, not the payload captured at
// enqueue time, so edits made after enqueue are never reverted.
func (e *Engine) drainQueue(ctx context.Context, result *Result) {
	entries, err := e.store.ListQueueEntries(ctx)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("list queue: %v", err))
		return
	}

	for _, entry := range entries {
		guest, err := e.entryIsGuestOwned(ctx, entry)
		if err != nil {
			e.failEntry(ctx, entry, err, result)
			continue
		}
		if guest {
			// Guest data stays local until migration; the entry's intent is
			// void, not failed.
			if err := e.store.CompleteQueueEntry(ctx, entry.ID); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("complete entry %d: %v", entry.ID, err))
			}
			continue
		}

		if err := e.pushEntry(ctx, entry); err != nil {
			e.failEntry(ctx, entry, err, result)
			continue
		}
		if err := e.store.CompleteQueueEntry(ctx, entry.ID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("complete entry %d: %v", entry.ID, err))
			continue
		}
		result.Synced++
	}
}

func (e *Engine) failEntry(ctx context.Context, entry QueueEntry, cause error, result *Result) {
	result.Failed++
	result.Errors = append(result.Errors, fmt.Sprintf("%s %s %s: %v",
		entry.Operation, entry.EntityType, entry.EntityID, cause))
	e.logger.Warn("queue entry push failed",
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"operation", entry.Operation,
		"attempts", entry.Attempts+1,
		"error", cause)
	if err := e.store.FailQueueEntry(ctx, entry.ID, cause.Error()); err != nil && !errors.Is(err, types.ErrNotFound) {
		result.Errors = append(result.Errors, fmt.Sprintf("record failure for entry %d: %v", entry.ID, err))
	}
}

// entryIsGuestOwned resolves the owning project of a queue entry. Delete
// entries carry no payload and their rows are already gone, so they resolve
// as non-guest; a remote delete for a record that was never pushed is a
// harmless no-op.
func (e *Engine) entryIsGuestOwned(ctx context.Context, entry QueueEntry) (bool, error) {
	if entry.Operation == OpDelete {
		if entry.EntityType != EntityProject {
			return false, nil
		}
		_, guestID, err := e.store.ProjectOwner(ctx, entry.EntityID)
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return guestID != "", nil
	}

	switch p := entry.Payload.(type) {
	case ProjectPayload:
		// The payload snapshot predates any ownership flip; the live row
		// decides. The snapshot only answers for rows deleted since enqueue.
		_, guestID, err := e.store.ProjectOwner(ctx, p.Project.ID)
		if errors.Is(err, types.ErrNotFound) {
			return p.Project.GuestID != "", nil
		}
		if err != nil {
			return false, err
		}
		return guestID != "", nil
	case ChapterPayload:
		return e.projectIsGuestOwned(ctx, p.Chapter.ProjectID)
	case SynopsisPayload:
		return e.projectIsGuestOwned(ctx, p.Synopsis.ProjectID)
	case CharacterPayload:
		return e.projectIsGuestOwned(ctx, p.Character.ProjectID)
	case RelationshipPayload:
		return e.projectIsGuestOwned(ctx, p.Relationship.ProjectID)
	default:
		return false, fmt.Errorf("entry %d has no payload", entry.ID)
	}
}

func (e *Engine) projectIsGuestOwned(ctx context.Context, projectID string) (bool, error) {
	_, guestID, err := e.store.ProjectOwner(ctx, projectID)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return guestID != "", nil
}

// pushEntry applies one queue entry against the remote store. Create and
// update entries re-read the record so the freshest local state is pushed,
// then defer to pushRecord's last-writer-wins comparison.
func (e *Engine) pushEntry(ctx context.Context, entry QueueEntry) error {
	if entry.Operation == OpDelete {
		switch entry.EntityType {
		case EntityProject:
			return e.remote.DeleteProject(ctx, entry.EntityID)
		case EntityChapter:
			return e.remote.DeleteChapter(ctx, entry.EntityID)
		case EntitySynopsis:
			return e.remote.DeleteSynopsis(ctx, entry.EntityID)
		case EntityCharacter:
			return e.remote.DeleteCharacter(ctx, entry.EntityID)
		case EntityRelationship:
			return e.remote.DeleteRelationship(ctx, entry.EntityID)
		default:
			return fmt.Errorf("unknown entity type %q", entry.EntityType)
		}
	}

	switch entry.EntityType {
	case EntityProject:
		p, err := e.store.GetProject(ctx, entry.EntityID)
		if errors.Is(err, types.ErrNotFound) {
			return nil // deleted locally since enqueue
		}
		if err != nil {
			return err
		}
		return e.pushProject(ctx, p)
	case EntityChapter:
		c, err := e.store.GetChapter(ctx, entry.EntityID)
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return e.pushChapter(ctx, c)
	case EntitySynopsis:
		sy, err := e.store.GetSynopsis(ctx, entry.EntityID)
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return e.pushSynopsis(ctx, sy)
	case EntityCharacter:
		c, err := e.store.GetCharacter(ctx, entry.EntityID)
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return e.pushCharacter(ctx, c)
	case EntityRelationship:
		rel, err := e.store.GetRelationship(ctx, entry.EntityID)
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return e.pushRelationship(ctx, rel)
	default:
		return fmt.Errorf("unknown entity type %q", entry.EntityType)
	}
}

// pushRecord reconciles one local record against its remote counterpart.
// Absent remote records are created; present ones are overwritten only when
// the local edit is strictly newer. Either way the local record ends up
// synced: a remote copy that is newer or equal already reflects a later
// writer, so the local pending flag has nothing left to say.
func pushRecord(localUpdatedAt time.Time, remoteUpdatedAt func() (time.Time, error), upsert, update func() error) error {
	remoteAt, err := remoteUpdatedAt()
	if errors.Is(err, types.ErrNotFound) {
		return upsert()
	}
	if err != nil {
		return err
	}
	if localUpdatedAt.After(remoteAt) {
		return update()
	}
	return nil
}

func (e *Engine) pushProject(ctx context.Context, p *types.Project) error {
	err := pushRecord(p.UpdatedAt,
		func() (time.Time, error) {
			remote, err := e.remote.GetProject(ctx, p.ID)
			if err != nil {
				return time.Time{}, err
			}
			return remote.UpdatedAt, nil
		},
		func() error { return e.remote.UpsertProject(ctx, p) },
		func() error { return e.remote.UpdateProject(ctx, p) },
	)
	if err != nil {
		return err
	}
	return e.store.MarkSynced(ctx, EntityProject, p.ID, time.Now().UTC())
}

func (e *Engine) pushChapter(ctx context.Context, c *types.Chapter) error {
	err := pushRecord(c.UpdatedAt,
		func() (time.Time, error) {
			remote, err := e.remote.GetChapter(ctx, c.ID)
			if err != nil {
				return time.Time{}, err
			}
			return remote.UpdatedAt, nil
		},
		func() error { return e.remote.UpsertChapter(ctx, c) },
		func() error { return e.remote.UpdateChapter(ctx, c) },
	)
	if err != nil {
		return err
	}
	return e.store.MarkSynced(ctx, EntityChapter, c.ID, time.Now().UTC())
}

func (e *Engine) pushSynopsis(ctx context.Context, sy *types.Synopsis) error {
	err := pushRecord(sy.UpdatedAt,
		func() (time.Time, error) {
			remote, err := e.remote.GetSynopsis(ctx, sy.ID)
			if err != nil {
				return time.Time{}, err
			}
			return remote.UpdatedAt, nil
		},
		func() error { return e.remote.UpsertSynopsis(ctx, sy) },
		func() error { return e.remote.UpdateSynopsis(ctx, sy) },
	)
	if err != nil {
		return err
	}
	return e.store.MarkSynced(ctx, EntitySynopsis, sy.ID, time.Now().UTC())
}

func (e *Engine) pushCharacter(ctx context.Context, c *types.Character) error {
	err := pushRecord(c.UpdatedAt,
		func() (time.Time, error) {
			remote, err := e.remote.GetCharacter(ctx, c.ID)
			if err != nil {
				return time.Time{}, err
			}
			return remote.UpdatedAt, nil
		},
		func() error { return e.remote.UpsertCharacter(ctx, c) },
		func() error { return e.remote.UpdateCharacter(ctx, c) },
	)
	if err != nil {
		return err
	}
	return e.store.MarkSynced(ctx, EntityCharacter, c.ID, time.Now().UTC())
}

func (e *Engine) pushRelationship(ctx context.Context, rel *types.Relationship) error {
	err := pushRecord(rel.UpdatedAt,
		func() (time.Time, error) {
			remote, err := e.remote.GetRelationship(ctx, rel.ID)
			if err != nil {
				return time.Time{}, err
			}
			return remote.UpdatedAt, nil
		},
		func() error { return e.remote.UpsertRelationship(ctx, rel) },
		func() error { return e.remote.UpdateRelationship(ctx, rel) },
	)
	if err != nil {
		return err
	}
	return e.store.MarkSynced(ctx, EntityRelationship, rel.ID, time.Now().UTC())
}

// pushPending reconciles records whose pending flag survived the queue
// drain, such as rows re-flagged by an ownership migration or left over
// after a crash between commit and push. Guest-owned records are skipped,
// not failed; they sync after migration.
func (e *Engine) pushPending(ctx context.Context, result *Result) {
	guestProjects := make(map[string]bool)
	isGuest := func(projectID string) (bool, error) {
		if v, ok := guestProjects[projectID]; ok {
			return v, nil
		}
		guest, err := e.projectIsGuestOwned(ctx, projectID)
		if err != nil {
			return false, err
		}
		guestProjects[projectID] = guest
		return guest, nil
	}

	record := func(label, id string, err error) {
		if err == nil {
			result.Synced++
			return
		}
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", label, id, err))
		e.logger.Warn("pending record push failed", "entity", label, "id", id, "error", err)
	}

	projects, err := e.store.ListPendingProjects(ctx)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("list pending projects: %v", err))
	}
	for i := range projects {
		p := projects[i]
		if p.GuestID != "" {
			guestProjects[p.ID] = true
			continue
		}
		record("project", p.ID, e.pushProject(ctx, &p))
	}

	chapters, err := e.store.ListPendingChapters(ctx)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("list pending chapters: %v", err))
	}
	for i := range chapters {
		c := chapters[i]
		guest, err := isGuest(c.ProjectID)
		if err != nil {
			record("chapter", c.ID, err)
			continue
		}
		if guest {
			continue
		}
		record("chapter", c.ID, e.pushChapter(ctx, &c))
	}

	synopses, err := e.store.ListPendingSynopses(ctx)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("list pending synopses: %v", err))
	}
	for i := range synopses {
		sy := synopses[i]
		guest, err := isGuest(sy.ProjectID)
		if err != nil {
			record("synopsis", sy.ID, err)
			continue
		}
		if guest {
			continue
		}
		record("synopsis", sy.ID, e.pushSynopsis(ctx, &sy))
	}

	characters, err := e.store.ListPendingCharacters(ctx)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("list pending characters: %v", err))
	}
	for i := range characters {
		c := characters[i]
		guest, err := isGuest(c.ProjectID)
		if err != nil {
			record("character", c.ID, err)
			continue
		}
		if guest {
			continue
		}
		record("character", c.ID, e.pushCharacter(ctx, &c))
	}

	relationships, err := e.store.ListPendingRelationships(ctx)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("list pending relationships: %v", err))
	}
	for i := range relationships {
		rel := relationships[i]
		guest, err := isGuest(rel.ProjectID)
		if err != nil {
			record("relationship", rel.ID, err)
			continue
		}
		if guest {
			continue
		}
		record("relationship", rel.ID, e.pushRelationship(ctx, &rel))
	}
}

// PullFromServer hydrates local storage with the user's remote records.
// Local records with unpushed edits are never overwritten: a pending record
// is skipped outright, and an absent one guarded by a queued delete stays
// deleted. Clean local records are overwritten only when the remote copy is
// strictly newer.
func (e *Engine) PullFromServer(ctx context.Context, userID string) (*Result, error) {
	if e.remote == nil {
		return nil, ErrNoRemote
	}

	result := &Result{}

	projects, err := e.remote.ListProjectsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list remote projects: %w", err)
	}

	for i := range projects {
		p := projects[i]
		apply, err := e.shouldApply(ctx, EntityProject, p.ID, p.UpdatedAt,
			func() (time.Time, types.SyncStatus, error) {
				local, err := e.store.GetProject(ctx, p.ID)
				if err != nil {
					return time.Time{}, "", err
				}
				return local.UpdatedAt, local.SyncStatus, nil
			})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("pull project %s: %v", p.ID, err))
			continue
		}
		if apply {
			if err := e.store.ApplyRemoteProject(ctx, &p); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("apply project %s: %v", p.ID, err))
				continue
			}
			result.Synced++
		}
		e.pullChildren(ctx, p.ID, result)
	}

	result.Success = result.Failed == 0
	e.logger.Info("pull finished", "synced", result.Synced, "failed", result.Failed)
	return result, nil
}

// shouldApply decides whether an incoming remote record may overwrite local
// state. localState wraps the local lookup for one entity.
func (e *Engine) shouldApply(ctx context.Context, entityType EntityType, id string, remoteUpdatedAt time.Time,
	localState func() (time.Time, types.SyncStatus, error)) (bool, error) {

	localAt, status, err := localState()
	if errors.Is(err, types.ErrNotFound) {
		queuedDelete, err := e.store.HasQueuedDelete(ctx, entityType, id)
		if err != nil {
			return false, err
		}
		return !queuedDelete, nil
	}
	if err != nil {
		return false, err
	}
	if status == types.SyncPending {
		return false, nil
	}
	return remoteUpdatedAt.After(localAt), nil
}

func (e *Engine) pullChildren(ctx context.Context, projectID string, result *Result) {
	fail := func(label, id string, err error) {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("pull %s %s: %v", label, id, err))
	}

	chapters, err := e.remote.ListChaptersByProject(ctx, projectID)
	if err != nil {
		fail("chapters for project", projectID, err)
	}
	for i := range chapters {
		c := chapters[i]
		apply, err := e.shouldApply(ctx, EntityChapter, c.ID, c.UpdatedAt,
			func() (time.Time, types.SyncStatus, error) {
				local, err := e.store.GetChapter(ctx, c.ID)
				if err != nil {
					return time.Time{}, "", err
				}
				return local.UpdatedAt, local.SyncStatus, nil
			})
		if err != nil {
			fail("chapter", c.ID, err)
			continue
		}
		if !apply {
			continue
		}
		if err := e.store.ApplyRemoteChapter(ctx, &c); err != nil {
			fail("chapter", c.ID, err)
			continue
		}
		result.Synced++
	}

	synopses, err := e.remote.ListSynopsesByProject(ctx, projectID)
	if err != nil {
		fail("synopses for project", projectID, err)
	}
	for i := range synopses {
		sy := synopses[i]
		apply, err := e.shouldApply(ctx, EntitySynopsis, sy.ID, sy.UpdatedAt,
			func() (time.Time, types.SyncStatus, error) {
				local, err := e.store.GetSynopsis(ctx, sy.ID)
				if err != nil {
					return time.Time{}, "", err
				}
				return local.UpdatedAt, local.SyncStatus, nil
			})
		if err != nil {
			fail("synopsis", sy.ID, err)
			continue
		}
		if !apply {
			continue
		}
		if err := e.store.ApplyRemoteSynopsis(ctx, &sy); err != nil {
			fail("synopsis", sy.ID, err)
			continue
		}
		result.Synced++
	}

	characters, err := e.remote.ListCharactersByProject(ctx, projectID)
	if err != nil {
		fail("characters for project", projectID, err)
	}
	for i := range characters {
		c := characters[i]
		apply, err := e.shouldApply(ctx, EntityCharacter, c.ID, c.UpdatedAt,
			func() (time.Time, types.SyncStatus, error) {
				local, err := e.store.GetCharacter(ctx, c.ID)
				if err != nil {
					return time.Time{}, "", err
				}
				return local.UpdatedAt, local.SyncStatus, nil
			})
		if err != nil {
			fail("character", c.ID, err)
			continue
		}
		if !apply {
			continue
		}
		if err := e.store.ApplyRemoteCharacter(ctx, &c); err != nil {
			fail("character", c.ID, err)
			continue
		}
		result.Synced++
	}

	relationships, err := e.remote.ListRelationshipsByProject(ctx, projectID)
	if err != nil {
		fail("relationships for project", projectID, err)
	}
	for i := range relationships {
		rel := relationships[i]
		apply, err := e.shouldApply(ctx, EntityRelationship, rel.ID, rel.UpdatedAt,
			func() (time.Time, types.SyncStatus, error) {
				local, err := e.store.GetRelationship(ctx, rel.ID)
				if err != nil {
					return time.Time{}, "", err
				}
				return local.UpdatedAt, local.SyncStatus, nil
			})
		if err != nil {
			fail("relationship", rel.ID, err)
			continue
		}
		if !apply {
			continue
		}
		if err := e.store.ApplyRemoteRelationship(ctx, &rel); err != nil {
			fail("relationship", rel.ID, err)
			continue
		}
		result.Synced++
	}
}
