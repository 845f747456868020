package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/kozaktomas/face-finder/internal/logging"
	"github.com/kozaktomas/face-finder/internal/profile"
)

// ProfilesHandler handles face profile endpoints.
type ProfilesHandler struct {
	store      *profile.Store
	minQuality float64
}

// NewProfilesHandler creates a profiles handler. minQuality is the optimize default.
func NewProfilesHandler(store *profile.Store, minQuality float64) *ProfilesHandler {
	return &ProfilesHandler{store: store, minQuality: minQuality}
}

// BuildProfileRequest is the body of POST /profiles/{ownerId}.
type BuildProfileRequest struct {
	Photos []string                `json:"photos"`
	Method facematch.CaptureMethod `json:"method"`
}

// PhotosRequest is the body of the add/remove photo endpoints.
type PhotosRequest struct {
	Photos []string `json:"photos"`
}

// OptimizeRequest is the body of POST /profiles/{ownerId}/optimize.
type OptimizeRequest struct {
	MinQuality *float64 `json:"min_quality,omitempty"`
}

// Get returns the owner's profile.
func (h *ProfilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(w, r)
	if !ok {
		return
	}

	p, err := h.store.Get(r.Context(), ownerID)
	if err != nil {
		logging.LogError(r.Context(), "failed to load profile", err, zap.String("owner_id", ownerID))
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Build creates the owner's profile from reference photos.
func (h *ProfilesHandler) Build(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(w, r)
	if !ok {
		return
	}

	var req BuildProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Method == "" {
		req.Method = facematch.MethodUploaded
	}

	p, err := h.store.BuildProfile(r.Context(), ownerID, req.Photos, req.Method)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// AddPhotos appends reference photos.
func (h *ProfilesHandler) AddPhotos(w http.ResponseWriter, r *http.Request) {
	h.updatePhotos(w, r, h.store.AddPhotos)
}

// RemovePhotos removes reference photos.
func (h *ProfilesHandler) RemovePhotos(w http.ResponseWriter, r *http.Request) {
	h.updatePhotos(w, r, h.store.RemovePhotos)
}

type photosOp func(ctx context.Context, ownerID string, urls []string) (*facematch.FaceProfile, error)

func (h *ProfilesHandler) updatePhotos(w http.ResponseWriter, r *http.Request, op photosOp) {
	ownerID, ok := ownerParam(w, r)
	if !ok {
		return
	}

	var req PhotosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	p, err := op(r.Context(), ownerID, req.Photos)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Optimize drops low-quality reference photos. An empty body uses the configured floor.
func (h *ProfilesHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(w, r)
	if !ok {
		return
	}

	var req OptimizeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}
	minQuality := h.minQuality
	if req.MinQuality != nil {
		minQuality = *req.MinQuality
	}

	p, err := h.store.Optimize(r.Context(), ownerID, minQuality)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Delete removes the owner's profile and cached results.
func (h *ProfilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), ownerID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
