package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed matching.yaml
var matchingYAML []byte

// Storage backends.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Quality scorers.
const (
	ScorerEmbedding = "embedding"
	ScorerGemini    = "gemini"
	ScorerOpenAI    = "openai"
)

type Config struct {
	Matching   MatchingConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Firestore  FirestoreConfig
	PhotoPrism PhotoPrismConfig
	Embedding  EmbeddingConfig
	Quality    QualityConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
}

// MatchingConfig holds the classifier thresholds and scan tuning.
type MatchingConfig struct {
	AcceptThreshold float64       `yaml:"accept_threshold"`
	StrongThreshold float64       `yaml:"strong_threshold"`
	BatchSize       int           `yaml:"batch_size"`
	Workers         int           `yaml:"workers"`
	MinQuality      float64       `yaml:"min_quality"`
	CacheMaxAge     time.Duration `yaml:"cache_max_age"` // 0 disables time-based expiry
}

type StorageConfig struct {
	Backend string // memory, postgres or firestore
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type FirestoreConfig struct {
	ProjectID string
}

type PhotoPrismConfig struct {
	URL           string // base URL used to build photo download links
	DatabaseURL   string // MariaDB DSN for reading album photos (e.g., photoprism:photoprism@tcp(mariadb:3306)/photoprism)
	DownloadToken string
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
}

type QualityConfig struct {
	Scorer string // embedding, gemini or openai
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration (e.g. "24h").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// defaultMatching decodes the embedded matching defaults.
func defaultMatching() MatchingConfig {
	var m MatchingConfig
	if err := yaml.Unmarshal(matchingYAML, &m); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded matching.yaml: " + err.Error())
	}
	return m
}

func Load() *Config {
	m := defaultMatching()

	return &Config{
		Matching: MatchingConfig{
			AcceptThreshold: envFloat("MATCH_ACCEPT_THRESHOLD", m.AcceptThreshold),
			StrongThreshold: envFloat("MATCH_STRONG_THRESHOLD", m.StrongThreshold),
			BatchSize:       envInt("SCAN_BATCH_SIZE", m.BatchSize),
			Workers:         envInt("SCAN_WORKERS", m.Workers),
			MinQuality:      envFloat("PROFILE_MIN_QUALITY", m.MinQuality),
			CacheMaxAge:     envDuration("CACHE_MAX_AGE", m.CacheMaxAge),
		},
		Storage: StorageConfig{
			Backend: envString("STORAGE_BACKEND", BackendMemory),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Firestore: FirestoreConfig{
			ProjectID: os.Getenv("FIRESTORE_PROJECT_ID"),
		},
		PhotoPrism: PhotoPrismConfig{
			URL:           os.Getenv("PHOTOPRISM_URL"),
			DatabaseURL:   os.Getenv("PHOTOPRISM_DATABASE_URL"),
			DownloadToken: os.Getenv("PHOTOPRISM_DOWNLOAD_TOKEN"),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
		},
		Quality: QualityConfig{
			Scorer: envString("QUALITY_SCORER", ScorerEmbedding),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
	}
}

// Validate checks the configuration for values the matching core cannot work with.
func (c *Config) Validate() error {
	m := c.Matching
	if m.AcceptThreshold < 0 || m.AcceptThreshold > 1 {
		return fmt.Errorf("MATCH_ACCEPT_THRESHOLD must be within [0,1], got %v", m.AcceptThreshold)
	}
	if m.StrongThreshold < 0 || m.StrongThreshold > 1 {
		return fmt.Errorf("MATCH_STRONG_THRESHOLD must be within [0,1], got %v", m.StrongThreshold)
	}
	if m.StrongThreshold < m.AcceptThreshold {
		return errors.New("MATCH_STRONG_THRESHOLD must not be below MATCH_ACCEPT_THRESHOLD")
	}
	if m.BatchSize < 1 {
		return errors.New("SCAN_BATCH_SIZE must be at least 1")
	}
	if m.Workers < 1 {
		return errors.New("SCAN_WORKERS must be at least 1")
	}
	if m.MinQuality < 0 || m.MinQuality > 1 {
		return fmt.Errorf("PROFILE_MIN_QUALITY must be within [0,1], got %v", m.MinQuality)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendFirestore:
		if c.Firestore.ProjectID == "" {
			return errors.New("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	switch c.Quality.Scorer {
	case ScorerEmbedding:
	case ScorerGemini:
		if c.Gemini.APIKey == "" {
			return errors.New("GEMINI_API_KEY is required for the gemini quality scorer")
		}
	case ScorerOpenAI:
		if c.OpenAI.Token == "" {
			return errors.New("OPENAI_TOKEN is required for the openai quality scorer")
		}
	default:
		return fmt.Errorf("unknown QUALITY_SCORER %q", c.Quality.Scorer)
	}
	return nil
}

// PhotoURL builds a download URL for a PhotoPrism file hash.
// Returns empty string if the PhotoPrism URL is not set.
func (c *PhotoPrismConfig) PhotoURL(fileHash string) string {
	if c.URL == "" {
		return ""
	}
	url := c.URL + "/api/v1/dl/" + fileHash
	if c.DownloadToken != "" {
		url += "?t=" + c.DownloadToken
	}
	return url
}
