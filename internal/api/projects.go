package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/inkwell/internal/types"
	"github.com/hyperengineering/inkwell/internal/validation"
)

// ProjectRequest is the request body for creating or updating a project.
type ProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
}

func validateProjectRequest(req ProjectRequest) []validation.ValidationError {
	var c validation.Collector
	c.Add(validation.ValidateRequired("title", req.Title))
	validation.ValidateText(&c, "title", req.Title, validation.MaxTitleLength)
	validation.ValidateText(&c, "description", req.Description, validation.MaxDescriptionLength)
	validation.ValidateText(&c, "genre", req.Genre, validation.MaxNameLength)
	return c.Errors()
}

// ListProjects handles GET /api/v1/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	identity := MustIdentityFromContext(r.Context())

	var (
		projects []types.Project
		err      error
	)
	if identity.UserID != "" {
		projects, err = h.store.ListProjectsByUser(r.Context(), identity.UserID)
	} else {
		projects, err = h.store.ListProjectsByGuest(r.Context(), identity.GuestID)
	}
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	if projects == nil {
		projects = []types.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// CreateProject handles POST /api/v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validateProjectRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	identity := MustIdentityFromContext(r.Context())
	p := &types.Project{
		UserID:      identity.UserID,
		GuestID:     identity.GuestID,
		Title:       req.Title,
		Description: req.Description,
		Genre:       req.Genre,
	}
	if err := h.store.CreateProject(r.Context(), p); err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/v1/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProject handles PUT /api/v1/projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	var req ProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validateProjectRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	p.Title = req.Title
	p.Description = req.Description
	p.Genre = req.Genre
	if err := h.store.UpdateProject(r.Context(), p); err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /api/v1/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	p := h.authorizeProject(w, r, chi.URLParam(r, "projectID"))
	if p == nil {
		return
	}

	if err := h.store.DeleteProject(r.Context(), p.ID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
