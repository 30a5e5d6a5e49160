package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/inkwell/internal/store"
	"github.com/hyperengineering/inkwell/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]struct {
	typeURI string
	title   string
}{
	http.StatusUnauthorized: {
		typeURI: "https://inkwell.dev/errors/unauthorized",
		title:   "Unauthorized",
	},
	http.StatusBadRequest: {
		typeURI: "https://inkwell.dev/errors/bad-request",
		title:   "Bad Request",
	},
	http.StatusNotFound: {
		typeURI: "https://inkwell.dev/errors/not-found",
		title:   "Not Found",
	},
	http.StatusInternalServerError: {
		typeURI: "https://inkwell.dev/errors/internal-error",
		title:   "Internal Server Error",
	},
	http.StatusUnprocessableEntity: {
		typeURI: "https://inkwell.dev/errors/validation-error",
		title:   "Validation Error",
	},
	http.StatusServiceUnavailable: {
		typeURI: "https://inkwell.dev/errors/service-unavailable",
		title:   "Service Unavailable",
	},
	http.StatusConflict: {
		typeURI: "https://inkwell.dev/errors/conflict",
		title:   "Conflict",
	},
	http.StatusForbidden: {
		typeURI: "https://inkwell.dev/errors/forbidden",
		title:   "Forbidden",
	},
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt, ok := problemTypes[status]
	if !ok {
		pt = struct {
			typeURI string
			title   string
		}{
			typeURI: "https://inkwell.dev/errors/unknown",
			title:   http.StatusText(status),
		}
	}

	p := Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := problemTypes[http.StatusUnprocessableEntity]

	p := ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// MapStoreError converts domain errors to Problem Details responses.
func MapStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, store.ErrMissingOwner):
		WriteProblem(w, r, http.StatusUnprocessableEntity, "Exactly one owner is required")
	case errors.Is(err, store.ErrBadReorder):
		WriteProblem(w, r, http.StatusBadRequest, "Ordering must cover every record exactly once")
	default:
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
