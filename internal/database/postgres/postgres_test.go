//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestPostgresBackend(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	t.Run("MigrateIsIdempotent", func(t *testing.T) {
		if err := pool.Migrate(ctx); err != nil {
			t.Fatalf("second Migrate() error = %v", err)
		}
		applied, err := pool.MigrationsApplied(ctx)
		if err != nil {
			t.Fatalf("MigrationsApplied() error = %v", err)
		}
		if len(applied) != 1 {
			t.Errorf("expected 1 applied migration, got %v", applied)
		}
	})

	t.Run("Profiles", func(t *testing.T) {
		repo := NewProfileRepository(pool)
		created := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)
		profile := &facematch.FaceProfile{
			OwnerID: "alice",
			Photos: []facematch.ProfilePhoto{
				{URL: "https://img/b.jpg", QualityScore: 0.7},
				{URL: "https://img/a.jpg", QualityScore: 0.9},
			},
			Method:    facematch.MethodGuided,
			CreatedAt: created,
			UpdatedAt: created,
		}

		if err := repo.SaveProfile(ctx, profile); err != nil {
			t.Fatalf("SaveProfile() error = %v", err)
		}
		got, err := repo.GetProfile(ctx, "alice")
		if err != nil {
			t.Fatalf("GetProfile() error = %v", err)
		}
		if got == nil || len(got.Photos) != 2 {
			t.Fatalf("expected profile with 2 photos, got %+v", got)
		}
		if got.Photos[0].URL != "https://img/b.jpg" {
			t.Errorf("photo order not preserved: %v", got.PhotoURLs())
		}
		if !got.UpdatedAt.Equal(created) || got.Method != facematch.MethodGuided {
			t.Errorf("unexpected profile metadata: %+v", got)
		}

		profile.Photos = profile.Photos[:1]
		profile.Photos = append(profile.Photos, facematch.ProfilePhoto{URL: "https://img/c.jpg", QualityScore: 0.6})
		profile.UpdatedAt = created.Add(time.Second)
		if err := repo.SaveProfile(ctx, profile); err != nil {
			t.Fatalf("SaveProfile() update error = %v", err)
		}
		got, _ = repo.GetProfile(ctx, "alice")
		if got.Photos[1].URL != "https://img/c.jpg" || !got.UpdatedAt.Equal(profile.UpdatedAt) {
			t.Errorf("profile not replaced: %+v", got)
		}

		existed, err := repo.DeleteProfile(ctx, "alice")
		if err != nil || !existed {
			t.Errorf("DeleteProfile() = %v, %v", existed, err)
		}
		if got, _ := repo.GetProfile(ctx, "alice"); got != nil {
			t.Error("expected nil profile after delete")
		}
	})

	t.Run("Cache", func(t *testing.T) {
		repo := NewCacheRepository(pool)
		entry := &facematch.CacheEntry{
			Signature: "abc123",
			Results: []facematch.MatchResult{
				{PhotoID: "p1", Confidence: 0.91, MatchType: facematch.MatchStrong,
					Consensus: &facematch.Consensus{FacesDetected: 1, ReferenceVotes: 2, ReferenceCount: 2}},
			},
			ComputedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		}
		if err := repo.PutEntry(ctx, "bob", entry); err != nil {
			t.Fatalf("PutEntry() error = %v", err)
		}
		got, err := repo.GetEntry(ctx, "bob")
		if err != nil {
			t.Fatalf("GetEntry() error = %v", err)
		}
		if got.Signature != "abc123" || len(got.Results) != 1 || got.Results[0].Consensus.ReferenceVotes != 2 {
			t.Errorf("unexpected entry: %+v", got)
		}

		if err := repo.PutEntry(ctx, "bob", &facematch.CacheEntry{Signature: "def", ComputedAt: time.Now()}); err != nil {
			t.Fatalf("PutEntry() replace error = %v", err)
		}
		got, _ = repo.GetEntry(ctx, "bob")
		if got.Signature != "def" || len(got.Results) != 0 {
			t.Errorf("entry not replaced: %+v", got)
		}

		if err := repo.DeleteEntry(ctx, "bob"); err != nil {
			t.Fatalf("DeleteEntry() error = %v", err)
		}
		if err := repo.DeleteEntry(ctx, "bob"); err != nil {
			t.Fatalf("DeleteEntry() missing error = %v", err)
		}
	})

	t.Run("Faces", func(t *testing.T) {
		repo := NewFaceRepository(pool)
		emb := make([]float32, database.FaceEmbeddingDim)
		for i := range emb {
			emb[i] = float32(i) / float32(database.FaceEmbeddingDim)
		}

		if _, processed, err := repo.GetFaces(ctx, "https://img/x.jpg"); err != nil || processed {
			t.Fatalf("GetFaces() on unknown photo = %v, %v", processed, err)
		}

		err := repo.SaveFaces(ctx, "https://img/x.jpg", []database.StoredFace{
			{FaceIndex: 0, Embedding: emb, BBox: []float64{1, 2, 3, 4}, DetScore: 0.95, Model: "buffalo_l"},
		})
		if err != nil {
			t.Fatalf("SaveFaces() error = %v", err)
		}
		faces, processed, err := repo.GetFaces(ctx, "https://img/x.jpg")
		if err != nil || !processed || len(faces) != 1 {
			t.Fatalf("GetFaces() = %d faces, processed=%v, err=%v", len(faces), processed, err)
		}
		if faces[0].Dim != database.FaceEmbeddingDim || len(faces[0].Embedding) != database.FaceEmbeddingDim {
			t.Errorf("unexpected embedding dim %d", faces[0].Dim)
		}

		if err := repo.SaveFaces(ctx, "https://img/empty.jpg", nil); err != nil {
			t.Fatalf("SaveFaces() empty error = %v", err)
		}
		faces, processed, _ = repo.GetFaces(ctx, "https://img/empty.jpg")
		if !processed || len(faces) != 0 {
			t.Errorf("expected processed photo without faces, got %d (processed=%v)", len(faces), processed)
		}
	})
}
