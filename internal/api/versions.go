package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/inkwell/internal/types"
)

// ListSynopsisVersions handles GET /api/v1/synopses/{id}/versions
func (h *Handler) ListSynopsisVersions(w http.ResponseWriter, r *http.Request) {
	sy, err := h.store.GetSynopsis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if h.authorizeProject(w, r, sy.ProjectID) == nil {
		return
	}
	h.listVersions(w, r, types.VersionedSynopsis, sy.ID)
}

// CreateSynopsisVersion handles POST /api/v1/synopses/{id}/versions.
// Snapshots the synopsis as it stands; an unchanged snapshot is a no-op.
func (h *Handler) CreateSynopsisVersion(w http.ResponseWriter, r *http.Request) {
	sy, err := h.store.GetSynopsis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if h.authorizeProject(w, r, sy.ProjectID) == nil {
		return
	}
	h.createVersion(w, r, types.VersionedSynopsis, sy.ID, synopsisSnapshot{
		ID:        sy.ID,
		ProjectID: sy.ProjectID,
		Content:   sy.Content,
		PlainText: sy.PlainText,
		WordCount: sy.WordCount,
	})
}

// ListCharacterVersions handles GET /api/v1/characters/{id}/versions
func (h *Handler) ListCharacterVersions(w http.ResponseWriter, r *http.Request) {
	c := h.loadCharacter(w, r)
	if c == nil {
		return
	}
	h.listVersions(w, r, types.VersionedCharacter, c.ID)
}

// CreateCharacterVersion handles POST /api/v1/characters/{id}/versions
func (h *Handler) CreateCharacterVersion(w http.ResponseWriter, r *http.Request) {
	c := h.loadCharacter(w, r)
	if c == nil {
		return
	}
	h.createVersion(w, r, types.VersionedCharacter, c.ID, characterSnapshot{
		ID:          c.ID,
		ProjectID:   c.ProjectID,
		Name:        c.Name,
		Role:        c.Role,
		Description: c.Description,
		Notes:       c.Notes,
		Position:    c.Position,
	})
}

// Snapshot views carry only authored fields. Sync bookkeeping and
// timestamps change without the content changing; including them would
// defeat the store's content dedupe.
type synopsisSnapshot struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Content   json.RawMessage `json:"content,omitempty"`
	PlainText string          `json:"plain_text,omitempty"`
	WordCount int             `json:"word_count"`
}

type characterSnapshot struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Position    int    `json:"position"`
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request, entityType types.VersionedEntityType, entityID string) {
	versions, err := h.store.ListVersions(r.Context(), entityType, entityID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if versions == nil {
		versions = []types.Version{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *Handler) createVersion(w http.ResponseWriter, r *http.Request, entityType types.VersionedEntityType, entityID string, entity any) {
	snapshot, err := json.Marshal(entity)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	v, err := h.store.CreateVersion(r.Context(), entityType, entityID, snapshot)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if v == nil {
		// Nothing changed since the last snapshot.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}
