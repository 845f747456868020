package firestoredb

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

const (
	emulatorHost = "127.0.0.1:7130"
	projectID    = "demo-test-project"
)

func emulatorAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", emulatorHost)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func clearFirestore(t *testing.T) {
	t.Helper()
	url := fmt.Sprintf("http://%s/emulator/v1/projects/%s/databases/(default)/documents", emulatorHost, projectID)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to clear Firestore: %v", err)
	}
	_ = resp.Body.Close()
}

func setupFirestoreTest(t *testing.T) *Store {
	t.Helper()
	if !emulatorAvailable() {
		t.Skip("Firestore emulator not available")
	}
	t.Setenv("FIRESTORE_EMULATOR_HOST", emulatorHost)
	clearFirestore(t)

	client, err := firestore.NewClient(context.Background(), projectID)
	if err != nil {
		t.Fatalf("failed to create Firestore client: %v", err)
	}
	t.Cleanup(func() {
		clearFirestore(t)
		_ = client.Close()
	})
	return NewStore(client)
}

func TestFaceDocID(t *testing.T) {
	a := faceDocID("https://photos/a/b.jpg")
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == faceDocID("https://photos/a/c.jpg") {
		t.Error("different URLs produced the same document ID")
	}
	if a != faceDocID("https://photos/a/b.jpg") {
		t.Error("document ID is not deterministic")
	}
}

func TestFirestoreProfiles(t *testing.T) {
	store := setupFirestoreTest(t)
	ctx := context.Background()

	if p, err := store.GetProfile(ctx, "alice"); err != nil || p != nil {
		t.Fatalf("GetProfile() on missing = %v, %v", p, err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	profile := &facematch.FaceProfile{
		OwnerID: "alice",
		Photos: []facematch.ProfilePhoto{
			{URL: "https://img/1.jpg", QualityScore: 0.8},
			{URL: "https://img/2.jpg", QualityScore: 0.6},
		},
		Method:    facematch.MethodUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	got, err := store.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if len(got.Photos) != 2 || got.Photos[1].URL != "https://img/2.jpg" {
		t.Errorf("unexpected photos: %+v", got.Photos)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("expected UpdatedAt %v, got %v", now, got.UpdatedAt)
	}

	existed, err := store.DeleteProfile(ctx, "alice")
	if err != nil || !existed {
		t.Errorf("DeleteProfile() = %v, %v", existed, err)
	}
	existed, err = store.DeleteProfile(ctx, "alice")
	if err != nil || existed {
		t.Errorf("DeleteProfile() on missing = %v, %v", existed, err)
	}
}

func TestFirestoreCache(t *testing.T) {
	store := setupFirestoreTest(t)
	ctx := context.Background()

	entry := &facematch.CacheEntry{
		Signature: "sig-1",
		Results: []facematch.MatchResult{
			{PhotoID: "p1", Confidence: 0.8, MatchType: facematch.MatchStrong},
		},
		ComputedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.PutEntry(ctx, "alice", entry); err != nil {
		t.Fatalf("PutEntry() error = %v", err)
	}
	got, err := store.GetEntry(ctx, "alice")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.Signature != "sig-1" || len(got.Results) != 1 || got.Results[0].MatchType != facematch.MatchStrong {
		t.Errorf("unexpected entry: %+v", got)
	}

	if err := store.DeleteEntry(ctx, "alice"); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	if got, _ := store.GetEntry(ctx, "alice"); got != nil {
		t.Error("expected nil entry after delete")
	}
}

func TestFirestoreFaces(t *testing.T) {
	store := setupFirestoreTest(t)
	ctx := context.Background()

	url := "https://img/group.jpg"
	if _, processed, err := store.GetFaces(ctx, url); err != nil || processed {
		t.Fatalf("GetFaces() on missing = %v, %v", processed, err)
	}

	err := store.SaveFaces(ctx, url, []database.StoredFace{
		{FaceIndex: 0, Embedding: []float32{0.5, 0.25}, BBox: []float64{0, 0, 10, 10}, DetScore: 0.9},
	})
	if err != nil {
		t.Fatalf("SaveFaces() error = %v", err)
	}
	faces, processed, err := store.GetFaces(ctx, url)
	if err != nil || !processed || len(faces) != 1 {
		t.Fatalf("GetFaces() = %v, %v, %v", faces, processed, err)
	}
	if faces[0].Embedding[1] != 0.25 || faces[0].PhotoURL != url {
		t.Errorf("unexpected face: %+v", faces[0])
	}
}
