package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/inkwell/internal/types"
	"github.com/hyperengineering/inkwell/internal/validation"
)

// ChapterRequest is the request body for creating or updating a chapter.
// Plain text and word count are derived server-side from the content tree.
type ChapterRequest struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
}

// ReorderRequest carries the full explicit ordering for a project's
// chapters or characters.
type ReorderRequest struct {
	IDs []string `json:"ids"`
}

func validateChapterRequest(req ChapterRequest) []validation.ValidationError {
	var c validation.Collector
	c.Add(validation.ValidateRequired("title", req.Title))
	validation.ValidateText(&c, "title", req.Title, validation.MaxTitleLength)
	return c.Errors()
}

// ListChapters handles GET /api/v1/projects/{projectID}/chapters
func (h *Handler) ListChapters(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	chapters, err := h.store.ListChaptersByProject(r.Context(), p.ID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if chapters == nil {
		chapters = []types.Chapter{}
	}
	writeJSON(w, http.StatusOK, chapters)
}

// CreateChapter handles POST /api/v1/projects/{projectID}/chapters
func (h *Handler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	var req ChapterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validateChapterRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	c := &types.Chapter{
		ProjectID: p.ID,
		Title:     req.Title,
		Content:   req.Content,
	}
	if err := h.store.CreateChapter(r.Context(), c); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ReorderChapters handles PUT /api/v1/projects/{projectID}/chapters/reorder
func (h *Handler) ReorderChapters(w http.ResponseWriter, r *http.Request) {
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

	if err := h.store.ReorderChapters(r.Context(), p.ID, req.IDs); err != nil {
		MapStoreError(w, r, err)
		return
	}

	chapters, err := h.store.ListChaptersByProject(r.Context(), p.ID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chapters)
}

// loadChapter fetches a chapter by id and authorizes through its project.
func (h *Handler) loadChapter(w http.ResponseWriter, r *http.Request) *types.Chapter {
	c, err := h.store.GetChapter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return nil
	}
	if h.authorizeProject(w, r, c.ProjectID) == nil {
		return nil
	}
	return c
}

// GetChapter handles GET /api/v1/chapters/{id}
func (h *Handler) GetChapter(w http.ResponseWriter, r *http.Request) {
	c := h.loadChapter(w, r)
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateChapter handles PUT /api/v1/chapters/{id}
func (h *Handler) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	c := h.loadChapter(w, r)
	if c == nil {
		return
	}

	var req ChapterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validateChapterRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	c.Title = req.Title
	c.Content = req.Content
	if err := h.store.UpdateChapter(r.Context(), c); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteChapter handles DELETE /api/v1/chapters/{id}
func (h *Handler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	c := h.loadChapter(w, r)
	if c == nil {
		return
	}

	if err := h.store.DeleteChapter(r.Context(), c.ID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
