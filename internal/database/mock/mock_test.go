package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

func TestMockProfileRepository_CopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	repo := NewMockProfileRepository()

	p := &facematch.FaceProfile{
		OwnerID: "alice",
		Photos: []facematch.ProfilePhoto{
			{URL: "a.jpg", QualityScore: 0.9},
			{URL: "b.jpg", QualityScore: 0.8},
		},
		Method: facematch.MethodUploaded,
	}
	if err := repo.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	p.Photos[0].URL = "mutated.jpg"

	got, err := repo.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.Photos[0].URL != "a.jpg" {
		t.Errorf("stored profile aliased caller slice: %s", got.Photos[0].URL)
	}

	got.Photos[1].URL = "mutated.jpg"
	again, _ := repo.GetProfile(ctx, "alice")
	if again.Photos[1].URL != "b.jpg" {
		t.Error("returned profile aliased stored slice")
	}

	existed, err := repo.DeleteProfile(ctx, "alice")
	if err != nil || !existed {
		t.Errorf("DeleteProfile() = %v, %v; want true, nil", existed, err)
	}
	existed, _ = repo.DeleteProfile(ctx, "alice")
	if existed {
		t.Error("second DeleteProfile() should report missing profile")
	}
	if missing, _ := repo.GetProfile(ctx, "alice"); missing != nil {
		t.Error("expected nil profile after delete")
	}
}

func TestMockProfileRepository_ErrorInjection(t *testing.T) {
	ctx := context.Background()
	repo := NewMockProfileRepository()
	injected := errors.New("boom")

	repo.GetError = injected
	if _, err := repo.GetProfile(ctx, "x"); !errors.Is(err, injected) {
		t.Errorf("GetProfile() error = %v", err)
	}
	repo.SaveError = injected
	if err := repo.SaveProfile(ctx, &facematch.FaceProfile{OwnerID: "x"}); !errors.Is(err, injected) {
		t.Errorf("SaveProfile() error = %v", err)
	}
	repo.DeleteError = injected
	if _, err := repo.DeleteProfile(ctx, "x"); !errors.Is(err, injected) {
		t.Errorf("DeleteProfile() error = %v", err)
	}
}

func TestMockCacheRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMockCacheRepository()

	entry := &facematch.CacheEntry{
		Signature:  "sig",
		Results:    []facematch.MatchResult{{PhotoID: "p1", Confidence: 0.9, MatchType: facematch.MatchStrong}},
		ComputedAt: time.Unix(100, 0),
	}
	if err := repo.PutEntry(ctx, "alice", entry); err != nil {
		t.Fatalf("PutEntry() error = %v", err)
	}
	entry.Results[0].PhotoID = "mutated"

	got, err := repo.GetEntry(ctx, "alice")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.Results[0].PhotoID != "p1" {
		t.Errorf("stored entry aliased caller slice")
	}

	if err := repo.DeleteEntry(ctx, "alice"); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	if err := repo.DeleteEntry(ctx, "alice"); err != nil {
		t.Fatalf("DeleteEntry() on missing entry error = %v", err)
	}
	if got, _ := repo.GetEntry(ctx, "alice"); got != nil {
		t.Error("expected nil entry after delete")
	}
	if repo.PutCalls != 1 || repo.DeleteCalls != 2 {
		t.Errorf("unexpected call counters: put=%d delete=%d", repo.PutCalls, repo.DeleteCalls)
	}
}

func TestMockFaceStore(t *testing.T) {
	ctx := context.Background()
	store := NewMockFaceStore()

	faces, processed, err := store.GetFaces(ctx, "p.jpg")
	if err != nil || processed || len(faces) != 0 {
		t.Fatalf("GetFaces() on unknown photo = %v, %v, %v", faces, processed, err)
	}

	if err := store.SaveFaces(ctx, "empty.jpg", nil); err != nil {
		t.Fatalf("SaveFaces() error = %v", err)
	}
	if _, processed, _ := store.GetFaces(ctx, "empty.jpg"); !processed {
		t.Error("photo without faces should still be marked processed")
	}

	err = store.SaveFaces(ctx, "p.jpg", []database.StoredFace{
		{FaceIndex: 0, Embedding: []float32{1, 0}},
		{FaceIndex: 1, Embedding: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("SaveFaces() error = %v", err)
	}
	faces, processed, _ = store.GetFaces(ctx, "p.jpg")
	if !processed || len(faces) != 2 {
		t.Fatalf("expected 2 processed faces, got %d (processed=%v)", len(faces), processed)
	}
	if faces[0].ID == 0 || faces[0].ID == faces[1].ID {
		t.Errorf("expected unique IDs, got %d and %d", faces[0].ID, faces[1].ID)
	}
	if faces[1].PhotoURL != "p.jpg" {
		t.Errorf("expected PhotoURL to be set, got %q", faces[1].PhotoURL)
	}
}

func TestMockPhotoSource(t *testing.T) {
	ctx := context.Background()
	src := NewMockPhotoSource()
	src.AddAlbum("album-1", []facematch.PhotoRecord{{ID: "p1", URL: "u1"}})

	photos, err := src.AlbumPhotos(ctx, "album-1")
	if err != nil || len(photos) != 1 {
		t.Fatalf("AlbumPhotos() = %v, %v", photos, err)
	}
	if _, err := src.AlbumPhotos(ctx, "missing"); err == nil {
		t.Error("expected error for unknown album")
	}
}

func TestOpen(t *testing.T) {
	b, err := Open(context.Background(), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if b.Profiles == nil || b.Cache == nil || b.Faces == nil {
		t.Error("expected all repositories to be set")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
