// Package firestoredb stores profiles, cached scan results and detected faces in Cloud Firestore.
package firestoredb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

const (
	profilesCollection = "profiles"
	cacheCollection    = "scan_cache"
	facesCollection    = "face_cache"
)

// firestoreProfile maps to Firestore document structure.
type firestoreProfile struct {
	Photos    []facematch.ProfilePhoto `firestore:"photos"`
	Method    string                   `firestore:"method"`
	CreatedAt time.Time                `firestore:"created_at"`
	UpdatedAt time.Time                `firestore:"updated_at"`
}

type firestoreCacheEntry struct {
	Signature  string                  `firestore:"signature"`
	Results    []facematch.MatchResult `firestore:"results"`
	ComputedAt time.Time               `firestore:"computed_at"`
}

type firestoreFace struct {
	FaceIndex int       `firestore:"face_index"`
	Embedding []float64 `firestore:"embedding"`
	BBox      []float64 `firestore:"bbox"`
	DetScore  float64   `firestore:"det_score"`
	Model     string    `firestore:"model,omitempty"`
}

type firestoreFaces struct {
	PhotoURL  string          `firestore:"photo_url"`
	Faces     []firestoreFace `firestore:"faces"`
	CreatedAt time.Time       `firestore:"created_at"`
}

// Store implements the profile, cache and face repositories on Firestore.
type Store struct {
	client *firestore.Client
}

// NewStore creates a new Firestore-backed store.
func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

// GetProfile retrieves a profile by owner ID.
func (s *Store) GetProfile(ctx context.Context, ownerID string) (*facematch.FaceProfile, error) {
	doc, err := s.client.Collection(profilesCollection).Doc(ownerID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	var fp firestoreProfile
	if err := doc.DataTo(&fp); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &facematch.FaceProfile{
		OwnerID:   ownerID,
		Photos:    fp.Photos,
		Method:    facematch.CaptureMethod(fp.Method),
		CreatedAt: fp.CreatedAt.UTC(),
		UpdatedAt: fp.UpdatedAt.UTC(),
	}, nil
}

// SaveProfile writes the whole profile document in a single Set.
func (s *Store) SaveProfile(ctx context.Context, profile *facematch.FaceProfile) error {
	if profile == nil {
		return errors.New("nil profile")
	}
	fp := firestoreProfile{
		Photos:    profile.Photos,
		Method:    string(profile.Method),
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}
	if _, err := s.client.Collection(profilesCollection).Doc(profile.OwnerID).Set(ctx, fp); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// DeleteProfile removes a profile using a transaction to report whether it existed.
func (s *Store) DeleteProfile(ctx context.Context, ownerID string) (bool, error) {
	docRef := s.client.Collection(profilesCollection).Doc(ownerID)
	existed := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existed = false
		_, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		existed = true
		return tx.Delete(docRef)
	})
	if err != nil {
		return false, fmt.Errorf("delete profile: %w", err)
	}
	return existed, nil
}

// GetEntry retrieves the owner's cached scan result.
func (s *Store) GetEntry(ctx context.Context, ownerID string) (*facematch.CacheEntry, error) {
	doc, err := s.client.Collection(cacheCollection).Doc(ownerID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	var fe firestoreCacheEntry
	if err := doc.DataTo(&fe); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &facematch.CacheEntry{
		Signature:  facematch.Signature(fe.Signature),
		Results:    fe.Results,
		ComputedAt: fe.ComputedAt.UTC(),
	}, nil
}

// PutEntry replaces the owner's cached scan result.
func (s *Store) PutEntry(ctx context.Context, ownerID string, entry *facematch.CacheEntry) error {
	if entry == nil {
		return errors.New("nil cache entry")
	}
	fe := firestoreCacheEntry{
		Signature:  string(entry.Signature),
		Results:    entry.Results,
		ComputedAt: entry.ComputedAt,
	}
	if fe.Results == nil {
		fe.Results = []facematch.MatchResult{}
	}
	if _, err := s.client.Collection(cacheCollection).Doc(ownerID).Set(ctx, fe); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the owner's cached scan result. Deleting a missing document succeeds.
func (s *Store) DeleteEntry(ctx context.Context, ownerID string) error {
	if _, err := s.client.Collection(cacheCollection).Doc(ownerID).Delete(ctx); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// faceDocID derives a document ID from a photo URL; URLs may contain '/'.
func faceDocID(photoURL string) string {
	sum := sha256.Sum256([]byte(photoURL))
	return hex.EncodeToString(sum[:])
}

// GetFaces retrieves the cached faces for a photo.
func (s *Store) GetFaces(ctx context.Context, photoURL string) ([]database.StoredFace, bool, error) {
	doc, err := s.client.Collection(facesCollection).Doc(faceDocID(photoURL)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get faces: %w", err)
	}

	var ff firestoreFaces
	if err := doc.DataTo(&ff); err != nil {
		return nil, false, fmt.Errorf("decode faces: %w", err)
	}

	faces := make([]database.StoredFace, len(ff.Faces))
	for i, f := range ff.Faces {
		emb := make([]float32, len(f.Embedding))
		for j, v := range f.Embedding {
			emb[j] = float32(v)
		}
		faces[i] = database.StoredFace{
			ID:        int64(i + 1),
			PhotoURL:  photoURL,
			FaceIndex: f.FaceIndex,
			Embedding: emb,
			BBox:      f.BBox,
			DetScore:  f.DetScore,
			Model:     f.Model,
			Dim:       len(emb),
			CreatedAt: ff.CreatedAt.UTC(),
		}
	}
	return faces, true, nil
}

// SaveFaces replaces the cached faces for a photo.
func (s *Store) SaveFaces(ctx context.Context, photoURL string, faces []database.StoredFace) error {
	ff := firestoreFaces{
		PhotoURL:  photoURL,
		Faces:     make([]firestoreFace, len(faces)),
		CreatedAt: time.Now().UTC(),
	}
	for i, f := range faces {
		emb := make([]float64, len(f.Embedding))
		for j, v := range f.Embedding {
			emb[j] = float64(v)
		}
		ff.Faces[i] = firestoreFace{
			FaceIndex: f.FaceIndex,
			Embedding: emb,
			BBox:      f.BBox,
			DetScore:  f.DetScore,
			Model:     f.Model,
		}
	}
	if _, err := s.client.Collection(facesCollection).Doc(faceDocID(photoURL)).Set(ctx, ff); err != nil {
		return fmt.Errorf("save faces: %w", err)
	}
	return nil
}

// Open creates a Firestore client for cfg.Firestore.ProjectID. It satisfies database.Opener.
// FIRESTORE_EMULATOR_HOST is honored by the client library.
func Open(ctx context.Context, cfg *config.Config) (*database.Backend, error) {
	if cfg == nil || cfg.Firestore.ProjectID == "" {
		return nil, errors.New("firestore project ID is required")
	}
	client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create Firestore client: %w", err)
	}
	store := NewStore(client)
	return database.NewBackend(store, store, store, client.Close), nil
}

// Compile-time interface checks
var (
	_ database.ProfileRepository = (*Store)(nil)
	_ database.CacheRepository   = (*Store)(nil)
	_ database.FaceStore         = (*Store)(nil)
	_ database.Opener            = Open
)
