package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/inkwell/internal/store"
	"github.com/hyperengineering/inkwell/internal/types"
	"github.com/hyperengineering/inkwell/internal/validation"
)

// SynopsisRequest is the request body for writing a project's synopsis.
type SynopsisRequest struct {
	Content json.RawMessage `json:"content"`
}

// CharacterRequest is the request body for creating or updating a character.
type CharacterRequest struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
}

// RelationshipRequest is the request body for creating or updating a
// relationship between two characters.
type RelationshipRequest struct {
	SourceCharacterID string `json:"source_character_id"`
	TargetCharacterID string `json:"target_character_id"`
	Label             string `json:"label"`
	Description       string `json:"description"`
}

func validateCharacterRequest(req CharacterRequest) []validation.ValidationError {
	var c validation.Collector
	c.Add(validation.ValidateRequired("name", req.Name))
	validation.ValidateText(&c, "name", req.Name, validation.MaxNameLength)
	validation.ValidateText(&c, "role", req.Role, validation.MaxNameLength)
	validation.ValidateText(&c, "description", req.Description, validation.MaxDescriptionLength)
	validation.ValidateText(&c, "notes", req.Notes, validation.MaxNotesLength)
	return c.Errors()
}

func validateRelationshipRequest(req RelationshipRequest) []validation.ValidationError {
	var c validation.Collector
	validation.ValidateRelationshipEnds(&c, req.SourceCharacterID, req.TargetCharacterID)
	c.Add(validation.ValidateRequired("label", req.Label))
	validation.ValidateText(&c, "label", req.Label, validation.MaxLabelLength)
	validation.ValidateText(&c, "description", req.Description, validation.MaxDescriptionLength)
	return c.Errors()
}

// GetSynopsis handles GET /api/v1/projects/{projectID}/synopsis
func (h *Handler) GetSynopsis(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	sy, err := h.store.GetSynopsisByProject(r.Context(), p.ID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sy)
}

// PutSynopsis handles PUT /api/v1/projects/{projectID}/synopsis.
// A project has at most one synopsis, so PUT creates it on first write and
// updates it afterwards.
func (h *Handler) PutSynopsis(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	var req SynopsisRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sy, err := h.store.GetSynopsisByProject(r.Context(), p.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		sy = &types.Synopsis{ProjectID: p.ID, Content: req.Content}
		if err := h.store.CreateSynopsis(r.Context(), sy); err != nil {
			MapStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sy)
		return
	case err != nil:
		MapStoreError(w, r, err)
		return
	}

	sy.Content = req.Content
	if err := h.store.UpdateSynopsis(r.Context(), sy); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sy)
}

// DeleteSynopsis handles DELETE /api/v1/projects/{projectID}/synopsis
func (h *Handler) DeleteSynopsis(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	sy, err := h.store.GetSynopsisByProject(r.Context(), p.ID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if err := h.store.DeleteSynopsis(r.Context(), sy.ID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCharacters handles GET /api/v1/projects/{projectID}/characters
func (h *Handler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	characters, err := h.store.ListCharactersByProject(r.Context(), p.ID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if characters == nil {
		characters = []types.Character{}
	}
	writeJSON(w, http.StatusOK, characters)
}

// CreateCharacter handles POST /api/v1/projects/{projectID}/characters
func (h *Handler) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	var req CharacterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validateCharacterRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	c := &types.Character{
		ProjectID:   p.ID,
		Name:        req.Name,
		Role:        req.Role,
		Description: req.Description,
		Notes:       req.Notes,
	}
	if err := h.store.CreateCharacter(r.Context(), c); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ReorderCharacters handles PUT /api/v1/projects/{projectID}/characters/reorder
func (h *Handler) ReorderCharacters(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	var req ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var c validation.Collector
	validation.ValidateReorderIDs(&c, "ids", req.IDs)
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	if err := h.store.ReorderCharacters(r.Context(), p.ID, req.IDs); err != nil {
		MapStoreError(w, r, err)
		return
	}

	characters, err := h.store.ListCharactersByProject(r.Context(), p.ID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, characters)
}

// loadCharacter fetches a character by id and authorizes through its project.
func (h *Handler) loadCharacter(w http.ResponseWriter, r *http.Request) *types.Character {
	c, err := h.store.GetCharacter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return nil
	}
	if h.authorizeProject(w, r, c.ProjectID) == nil {
		return nil
	}
	return c
}

// GetCharacter handles GET /api/v1/characters/{id}
func (h *Handler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	c := h.loadCharacter(w, r)
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateCharacter handles PUT /api/v1/characters/{id}
func (h *Handler) UpdateCharacter(w http.ResponseWriter, r *http.Request) {
	c := h.loadCharacter(w, r)
	if c == nil {
		return
	}

	var req CharacterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validateCharacterRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	c.Name = req.Name
	c.Role = req.Role
	c.Description = req.Description
	c.Notes = req.Notes
	if err := h.store.UpdateCharacter(r.Context(), c); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCharacter handles DELETE /api/v1/characters/{id}
func (h *Handler) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
	c := h.loadCharacter(w, r)
	if c == nil {
		return
	}

	if err := h.store.DeleteCharacter(r.Context(), c.ID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRelationships handles GET /api/v1/projects/{projectID}/relationships
func (h *Handler) ListRelationships(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	rels, err := h.store.ListRelationshipsByProject(r.Context(), p.ID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if rels == nil {
		rels = []types.Relationship{}
	}
	writeJSON(w, http.StatusOK, rels)
}

// CreateRelationship handles POST /api/v1/projects/{projectID}/relationships
func (h *Handler) CreateRelationship(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	var req RelationshipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validateRelationshipRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}
	if !h.charactersInProject(w, r, p.ID, req.SourceCharacterID, req.TargetCharacterID) {
		return
	}

	rel := &types.Relationship{
		ProjectID:         p.ID,
		SourceCharacterID: req.SourceCharacterID,
		TargetCharacterID: req.TargetCharacterID,
		Label:             req.Label,
		Description:       req.Description,
	}
	if err := h.store.CreateRelationship(r.Context(), rel); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

// charactersInProject verifies both relationship ends exist in the project.
func (h *Handler) charactersInProject(w http.ResponseWriter, r *http.Request, projectID string, ids ...string) bool {
	for _, id := range ids {
		c, err := h.store.GetCharacter(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && c.ProjectID != projectID) {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
				{Field: "character_id", Message: "character " + id + " is not in this project"},
			})
			return false
		}
		if err != nil {
			MapStoreError(w, r, err)
			return false
		}
	}
	return true
}

// loadRelationship fetches a relationship by id and authorizes through its
// project.
func (h *Handler) loadRelationship(w http.ResponseWriter, r *http.Request) *types.Relationship {
	rel, err := h.store.GetRelationship(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return nil
	}
	if h.authorizeProject(w, r, rel.ProjectID) == nil {
		return nil
	}
	return rel
}

// GetRelationship handles GET /api/v1/relationships/{id}
func (h *Handler) GetRelationship(w http.ResponseWriter, r *http.Request) {
	rel := h.loadRelationship(w, r)
	if rel == nil {
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// UpdateRelationship handles PUT /api/v1/relationships/{id}.
// The two endpoint characters are fixed at creation; only the label and
// description are editable.
func (h *Handler) UpdateRelationship(w http.ResponseWriter, r *http.Request) {
	rel := h.loadRelationship(w, r)
	if rel == nil {
		return
	}

	var req RelationshipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var c validation.Collector
	c.Add(validation.ValidateRequired("label", req.Label))
	validation.ValidateText(&c, "label", req.Label, validation.MaxLabelLength)
	validation.ValidateText(&c, "description", req.Description, validation.MaxDescriptionLength)
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	rel.Label = req.Label
	rel.Description = req.Description
	if err := h.store.UpdateRelationship(r.Context(), rel); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// DeleteRelationship handles DELETE /api/v1/relationships/{id}
func (h *Handler) DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	rel := h.loadRelationship(w, r)
	if rel == nil {
		return
	}

	if err := h.store.DeleteRelationship(r.Context(), rel.ID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
