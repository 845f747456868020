// Package mock provides in-memory implementations of the database interfaces.
// They back the "memory" storage backend and are used throughout the tests.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

// MockProfileRepository is a mock implementation of database.ProfileRepository
type MockProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*facematch.FaceProfile

	// Error injection
	GetError    error
	SaveError   error
	DeleteError error

	// Call counters
	SaveCalls int
}

// NewMockProfileRepository creates a new mock profile repository
func NewMockProfileRepository() *MockProfileRepository {
	return &MockProfileRepository{
		profiles: make(map[string]*facematch.FaceProfile),
	}
}

// AddProfile stores a profile directly, bypassing error injection
func (m *MockProfileRepository) AddProfile(p facematch.FaceProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.OwnerID] = p.Clone()
}

// GetProfile returns a copy of the stored profile
func (m *MockProfileRepository) GetProfile(ctx context.Context, ownerID string) (*facematch.FaceProfile, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[ownerID]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

// SaveProfile stores a copy of the profile
func (m *MockProfileRepository) SaveProfile(ctx context.Context, profile *facematch.FaceProfile) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if profile == nil {
		return fmt.Errorf("nil profile")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	m.profiles[profile.OwnerID] = profile.Clone()
	return nil
}

// DeleteProfile removes the profile
func (m *MockProfileRepository) DeleteProfile(ctx context.Context, ownerID string) (bool, error) {
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.profiles[ownerID]
	delete(m.profiles, ownerID)
	return ok, nil
}

// MockCacheRepository is a mock implementation of database.CacheRepository
type MockCacheRepository struct {
	mu      sync.RWMutex
	entries map[string]*facematch.CacheEntry

	// Error injection
	GetError    error
	PutError    error
	DeleteError error

	// Call counters
	PutCalls    int
	DeleteCalls int
}

// NewMockCacheRepository creates a new mock cache repository
func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		entries: make(map[string]*facematch.CacheEntry),
	}
}

func cloneEntry(e *facematch.CacheEntry) *facematch.CacheEntry {
	c := *e
	c.Results = slices.Clone(e.Results)
	return &c
}

// GetEntry returns a copy of the stored entry
func (m *MockCacheRepository) GetEntry(ctx context.Context, ownerID string) (*facematch.CacheEntry, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[ownerID]
	if !ok {
		return nil, nil
	}
	return cloneEntry(e), nil
}

// PutEntry stores a copy of the entry
func (m *MockCacheRepository) PutEntry(ctx context.Context, ownerID string, entry *facematch.CacheEntry) error {
	if m.PutError != nil {
		return m.PutError
	}
	if entry == nil {
		return fmt.Errorf("nil cache entry")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	m.entries[ownerID] = cloneEntry(entry)
	return nil
}

// DeleteEntry removes the entry
func (m *MockCacheRepository) DeleteEntry(ctx context.Context, ownerID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	delete(m.entries, ownerID)
	return nil
}

// MockFaceStore is a mock implementation of database.FaceStore
type MockFaceStore struct {
	mu        sync.RWMutex
	faces     map[string][]database.StoredFace
	processed map[string]bool
	nextID    int64

	// Error injection
	GetFacesError  error
	SaveFacesError error
}

// NewMockFaceStore creates a new mock face store
func NewMockFaceStore() *MockFaceStore {
	return &MockFaceStore{
		faces:     make(map[string][]database.StoredFace),
		processed: make(map[string]bool),
	}
}

// GetFaces returns stored faces for a photo
func (m *MockFaceStore) GetFaces(ctx context.Context, photoURL string) ([]database.StoredFace, bool, error) {
	if m.GetFacesError != nil {
		return nil, false, m.GetFacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.faces[photoURL]), m.processed[photoURL], nil
}

// SaveFaces replaces faces for a photo and marks it processed
func (m *MockFaceStore) SaveFaces(ctx context.Context, photoURL string, faces []database.StoredFace) error {
	if m.SaveFacesError != nil {
		return m.SaveFacesError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]database.StoredFace, len(faces))
	for i, f := range faces {
		m.nextID++
		f.ID = m.nextID
		f.PhotoURL = photoURL
		stored[i] = f
	}
	m.faces[photoURL] = stored
	m.processed[photoURL] = true
	return nil
}

// MockPhotoSource is a mock implementation of database.PhotoSource
type MockPhotoSource struct {
	mu     sync.RWMutex
	albums map[string][]facematch.PhotoRecord

	AlbumPhotosError error
}

// NewMockPhotoSource creates a new mock photo source
func NewMockPhotoSource() *MockPhotoSource {
	return &MockPhotoSource{
		albums: make(map[string][]facematch.PhotoRecord),
	}
}

// AddAlbum registers the photos of an album
func (m *MockPhotoSource) AddAlbum(albumUID string, photos []facematch.PhotoRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.albums[albumUID] = slices.Clone(photos)
}

// AlbumPhotos returns the photos of an album
func (m *MockPhotoSource) AlbumPhotos(ctx context.Context, albumUID string) ([]facematch.PhotoRecord, error) {
	if m.AlbumPhotosError != nil {
		return nil, m.AlbumPhotosError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	photos, ok := m.albums[albumUID]
	if !ok {
		return nil, fmt.Errorf("album %s not found", albumUID)
	}
	return slices.Clone(photos), nil
}

// Open returns an in-memory backend. It satisfies database.Opener.
func Open(ctx context.Context, cfg *config.Config) (*database.Backend, error) {
	return database.NewBackend(
		NewMockProfileRepository(),
		NewMockCacheRepository(),
		NewMockFaceStore(),
		nil,
	), nil
}

var (
	_ database.ProfileRepository = (*MockProfileRepository)(nil)
	_ database.CacheRepository   = (*MockCacheRepository)(nil)
	_ database.FaceStore         = (*MockFaceStore)(nil)
	_ database.PhotoSource       = (*MockPhotoSource)(nil)
	_ database.Opener            = Open
)
