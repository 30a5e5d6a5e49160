package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/inkwell/internal/auth"
	"github.com/hyperengineering/inkwell/internal/migration"
	"github.com/hyperengineering/inkwell/internal/store"
	inksync "github.com/hyperengineering/inkwell/internal/sync"
	"github.com/hyperengineering/inkwell/internal/types"
)

// Handler implements the API handlers
type Handler struct {
	store    store.Store
	engine   *inksync.Engine
	migrator *migration.Migrator
	sessions auth.Registry
	version  string
}

// NewHandler creates a new Handler with store.Store interface.
// sessions may be nil; sign-in then migrates data but leaves the token
// bound to its original identity.
func NewHandler(s store.Store, engine *inksync.Engine, migrator *migration.Migrator, sessions auth.Registry, version string) *Handler {
	return &Handler{
		store:    s,
		engine:   engine,
		migrator: migrator,
		sessions: sessions,
		version:  version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status     string         `json:"status"`
		Version    string         `json:"version"`
		SyncStatus inksync.Status `json:"sync_status"`
	}{
		Status:     "healthy",
		Version:    h.version,
		SyncStatus: h.engine.Status(),
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decodeJSON decodes the request body into v, writing a 400 problem on failure.
// Returns false if decoding failed and a response was already written.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// ownsProject reports whether the request identity owns the project.
func ownsProject(id auth.Identity, p *types.Project) bool {
	if id.UserID != "" {
		return p.UserID == id.UserID
	}
	if id.GuestID != "" {
		return p.GuestID == id.GuestID
	}
	return false
}

// authorizeProject loads a project and checks it belongs to the request
// identity. Writes a problem response and returns nil when it does not;
// foreign projects read as not found so ids cannot be probed.
func (h *Handler) authorizeProject(w http.ResponseWriter, r *http.Request, projectID string) *types.Project {
	p, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		MapStoreError(w, r, err)
		return nil
	}
	if !ownsProject(MustIdentityFromContext(r.Context()), p) {
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
		return nil
	}
	return p
}
