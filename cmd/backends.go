package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-finder/internal/ai"
	"github.com/kozaktomas/face-finder/internal/cache"
	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/database/firestoredb"
	"github.com/kozaktomas/face-finder/internal/database/mariadb"
	"github.com/kozaktomas/face-finder/internal/database/mock"
	"github.com/kozaktomas/face-finder/internal/database/postgres"
	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/kozaktomas/face-finder/internal/fingerprint"
	"github.com/kozaktomas/face-finder/internal/logging"
	"github.com/kozaktomas/face-finder/internal/profile"
	"github.com/kozaktomas/face-finder/internal/scan"
)

// httpTimeout bounds photo downloads and embedding requests.
const httpTimeout = 60 * time.Second

func init() {
	database.RegisterBackend(config.BackendMemory, mock.Open)
	database.RegisterBackend(config.BackendPostgres, postgres.Open)
	database.RegisterBackend(config.BackendFirestore, firestoredb.Open)
}

// services is the wiring shared by the serve, profile, scan and cache commands.
type services struct {
	cfg          *config.Config
	backend      *database.Backend
	profiles     *profile.Store
	cache        *cache.ResultCache
	orchestrator *scan.Orchestrator
}

// openCLIServices is openServices for the one-shot commands. It warns on stderr when
// the memory backend is selected.
func openCLIServices(ctx context.Context, cfg *config.Config) (*services, error) {
	warnEphemeralBackend(os.Stderr, cfg)
	return openServices(ctx, cfg)
}

func warnEphemeralBackend(w io.Writer, cfg *config.Config) {
	if cfg.Storage.Backend != config.BackendMemory {
		return
	}
	fmt.Fprintln(w, "Warning: STORAGE_BACKEND=memory keeps profiles and cached results only until this command exits")
}

// openServices validates the configuration and connects the storage backend and
// comparison primitives.
func openServices(ctx context.Context, cfg *config.Config) (*services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	classifier, err := facematch.NewClassifier(cfg.Matching.AcceptThreshold, cfg.Matching.StrongThreshold)
	if err != nil {
		return nil, err
	}

	backend, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logging.LogDebug(ctx, "storage backend ready", zap.String("backend", cfg.Storage.Backend))

	httpClient := &http.Client{Timeout: httpTimeout}
	fetcher := fingerprint.NewFetcher(httpClient)
	comparator := fingerprint.NewComparator(
		fingerprint.NewEmbeddingClient(cfg.Embedding.URL, httpClient),
		fetcher,
		backend.Faces,
	)

	scorer, err := newQualityScorer(ctx, cfg, comparator, fetcher)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	results := cache.New(backend.Cache, cache.WithMaxAge(cfg.Matching.CacheMaxAge))
	store := profile.NewStore(backend.Profiles, scorer, profile.WithInvalidator(results))
	orchestrator := scan.NewOrchestrator(store, comparator, results, classifier, scan.Options{
		BatchSize: cfg.Matching.BatchSize,
		Workers:   cfg.Matching.Workers,
	})

	return &services{
		cfg:          cfg,
		backend:      backend,
		profiles:     store,
		cache:        results,
		orchestrator: orchestrator,
	}, nil
}

func (s *services) Close() {
	if err := s.backend.Close(); err != nil {
		logging.Logger().Warn("failed to close storage backend", zap.Error(err))
	}
}

// newQualityScorer selects how reference photo quality is judged. The embedding
// comparator is the default; the vision models are opt-in.
func newQualityScorer(ctx context.Context, cfg *config.Config, comparator *fingerprint.Comparator, fetcher *fingerprint.Fetcher) (facematch.QualityScorer, error) {
	switch cfg.Quality.Scorer {
	case config.ScorerGemini:
		model, err := ai.NewGeminiModel(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return ai.NewJudge(model, fetcher), nil
	case config.ScorerOpenAI:
		return ai.NewJudge(ai.NewOpenAIModel(cfg.OpenAI.Token), fetcher), nil
	default:
		return comparator, nil
	}
}

// openPhotoSource connects to the PhotoPrism database for album scans.
// It returns a nil source when PHOTOPRISM_DATABASE_URL is not set.
func openPhotoSource(cfg *config.Config) (database.PhotoSource, func(), error) {
	if cfg.PhotoPrism.DatabaseURL == "" {
		return nil, func() {}, nil
	}
	pool, err := mariadb.NewPool(cfg.PhotoPrism.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to PhotoPrism database: %w", err)
	}
	closeFn := func() {
		if err := pool.Close(); err != nil {
			logging.Logger().Warn("failed to close PhotoPrism database", zap.Error(err))
		}
	}
	return mariadb.NewAlbumSource(pool, cfg.PhotoPrism.PhotoURL), closeFn, nil
}

var _ facematch.Comparator = (*fingerprint.Comparator)(nil)
