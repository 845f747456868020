package database

import (
	"context"

	"github.com/kozaktomas/face-finder/internal/facematch"
)

// ProfileRepository persists one face profile per owner.
type ProfileRepository interface {
	// GetProfile returns the owner's profile, or nil if none is stored
	GetProfile(ctx context.Context, ownerID string) (*facematch.FaceProfile, error)
	// SaveProfile stores the profile, replacing any previous one for the same owner
	SaveProfile(ctx context.Context, profile *facematch.FaceProfile) error
	// DeleteProfile removes the owner's profile and reports whether one existed
	DeleteProfile(ctx context.Context, ownerID string) (bool, error)
}

// CacheRepository persists the single cached scan result per owner.
type CacheRepository interface {
	// GetEntry returns the owner's cache entry, or nil if none is stored
	GetEntry(ctx context.Context, ownerID string) (*facematch.CacheEntry, error)
	// PutEntry stores the entry, replacing any previous one for the same owner
	PutEntry(ctx context.Context, ownerID string, entry *facematch.CacheEntry) error
	// DeleteEntry removes the owner's entry; deleting a missing entry is not an error
	DeleteEntry(ctx context.Context, ownerID string) error
}

// FaceStore caches detected face embeddings keyed by photo URL so repeated
// scans of the same photos skip the embedding service.
type FaceStore interface {
	// GetFaces returns the stored faces and whether the photo was processed at all
	// (a processed photo may legitimately have zero faces)
	GetFaces(ctx context.Context, photoURL string) ([]StoredFace, bool, error)
	// SaveFaces stores faces for a photo, replacing existing ones, and marks it processed
	SaveFaces(ctx context.Context, photoURL string, faces []StoredFace) error
}

// PhotoSource lists candidate photos from an external library.
type PhotoSource interface {
	AlbumPhotos(ctx context.Context, albumUID string) ([]facematch.PhotoRecord, error)
}

// Backend groups the repositories produced by one storage backend.
type Backend struct {
	Profiles ProfileRepository
	Cache    CacheRepository
	Faces    FaceStore
	close    func() error
}

// NewBackend assembles a Backend. closeFn may be nil.
func NewBackend(profiles ProfileRepository, cache CacheRepository, faces FaceStore, closeFn func() error) *Backend {
	return &Backend{Profiles: profiles, Cache: cache, Faces: faces, close: closeFn}
}

// Close releases backend resources.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}
