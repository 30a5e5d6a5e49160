package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/inkwell/internal/auth"
	"github.com/hyperengineering/inkwell/internal/migration"
	inksync "github.com/hyperengineering/inkwell/internal/sync"
	"github.com/hyperengineering/inkwell/internal/validation"
)

// SyncRun handles POST /api/v1/sync/run.
// Triggers one push cycle and reports its result. A cycle already in
// flight returns immediately with an empty successful result.
func (h *Handler) SyncRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.SyncAll(r.Context())
	if err != nil {
		if errors.Is(err, inksync.ErrNoRemote) {
			WriteProblem(w, r, http.StatusServiceUnavailable, "Service is running in offline mode")
			return
		}
		slog.Error("sync run failed", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SyncStatusResponse reports engine state plus queue depth for diagnostics.
type SyncStatusResponse struct {
	Status          inksync.Status `json:"status"`
	QueueDepth      int            `json:"queue_depth"`
	PoisonedEntries int            `json:"poisoned_entries"`
}

// SyncStatus handles GET /api/v1/sync/status
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListQueueEntries(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	poisoned, err := h.store.ListPoisonedQueueEntries(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SyncStatusResponse{
		Status:          h.engine.Status(),
		QueueDepth:      len(entries),
		PoisonedEntries: len(poisoned),
	})
}

// SyncPull handles POST /api/v1/sync/pull.
// Hydrates the local store from the remote for the signed-in user. Guests
// have nothing on the remote to pull.
func (h *Handler) SyncPull(w http.ResponseWriter, r *http.Request) {
	identity := MustIdentityFromContext(r.Context())
	if identity.UserID == "" {
		WriteProblem(w, r, http.StatusForbidden, "Sign in before pulling from the server")
		return
	}

	result, err := h.engine.PullFromServer(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, inksync.ErrNoRemote) {
			WriteProblem(w, r, http.StatusServiceUnavailable, "Service is running in offline mode")
			return
		}
		slog.Error("sync pull failed", "error", err, "user_id", identity.UserID)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SignInRequest carries the authenticated user id from the external auth
// provider.
type SignInRequest struct {
	UserID string `json:"user_id"`
}

// SignIn handles POST /api/v1/session/signin.
// Adopts any guest data into the user's account, rebinds the session token
// to the user identity, and kicks off a sync so the adopted records reach
// the remote promptly.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateRequired("user_id", req.UserID); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	result, err := h.migrator.Migrate(r.Context(), req.UserID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	// Persist the identity so a restart resolves the token to the user.
	if err := h.store.SetSetting(r.Context(), migration.UserIDKey, req.UserID); err != nil {
		slog.Warn("failed to persist user identity", "error", err)
	}

	if h.sessions != nil {
		if token := TokenFromContext(r.Context()); token != "" {
			h.sessions.Register(token, auth.Identity{UserID: req.UserID})
		}
	}

	// Best effort; the periodic coordinator retries anything this run misses.
	go func() {
		if _, err := h.engine.SyncAll(context.Background()); err != nil && !errors.Is(err, inksync.ErrNoRemote) {
			slog.Warn("post-signin sync failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusOK, result)
}
