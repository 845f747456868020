package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-finder/internal/cache"
	"github.com/kozaktomas/face-finder/internal/logging"
)

// CacheHandler exposes the per-owner scan result cache.
type CacheHandler struct {
	cache *cache.ResultCache
}

func NewCacheHandler(c *cache.ResultCache) *CacheHandler {
	return &CacheHandler{cache: c}
}

// Get returns the owner's cached scan result.
func (h *CacheHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(w, r)
	if !ok {
		return
	}

	entry, err := h.cache.Peek(r.Context(), ownerID)
	if err != nil {
		logging.LogError(r.Context(), "failed to read scan cache", err, zap.String("owner_id", ownerID))
		respondError(w, http.StatusInternalServerError, "failed to read cache")
		return
	}
	if entry == nil {
		respondError(w, http.StatusNotFound, "no cached results")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// Delete invalidates the owner's cached scan result.
func (h *CacheHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(w, r)
	if !ok {
		return
	}

	if err := h.cache.Invalidate(r.Context(), ownerID); err != nil {
		logging.LogError(r.Context(), "failed to invalidate scan cache", err, zap.String("owner_id", ownerID))
		respondError(w, http.StatusInternalServerError, "failed to invalidate cache")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"invalidated": true})
}
