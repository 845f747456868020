package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-finder/internal/facematch"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, facematch.ErrNoProfile):
		return http.StatusNotFound
	case errors.Is(err, facematch.ErrScanAlreadyRunning),
		errors.Is(err, facematch.ErrProfileExists):
		return http.StatusConflict
	case errors.Is(err, facematch.ErrInsufficientPhotos),
		errors.Is(err, facematch.ErrEmptyPhotoSet),
		errors.Is(err, facematch.ErrProfileTooSmall),
		errors.Is(err, facematch.ErrNoPhotosSupplied),
		errors.Is(err, facematch.ErrInvalidQuality),
		errors.Is(err, facematch.ErrInvalidMethod),
		errors.Is(err, facematch.ErrDuplicatePhotoID):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondDomainError sends err with the status code matching its kind.
func respondDomainError(w http.ResponseWriter, err error) {
	respondError(w, statusForError(err), err.Error())
}

// ownerParam returns the {ownerId} URL parameter, responding 400 when it is missing.
func ownerParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := chi.URLParam(r, "ownerId")
	if ownerID == "" {
		respondError(w, http.StatusBadRequest, "missing owner ID")
		return "", false
	}
	return ownerID, true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
