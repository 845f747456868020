package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

// CacheRepository stores one scan result per owner in scan_cache, results as JSONB.
type CacheRepository struct {
	pool *Pool
}

// NewCacheRepository creates a new PostgreSQL cache repository.
func NewCacheRepository(pool *Pool) *CacheRepository {
	return &CacheRepository{pool: pool}
}

// GetEntry returns the owner's cached entry or nil.
func (r *CacheRepository) GetEntry(ctx context.Context, ownerID string) (*facematch.CacheEntry, error) {
	var (
		entry     facematch.CacheEntry
		signature string
		raw       []byte
	)
	err := r.pool.QueryRow(ctx,
		"SELECT signature, results, computed_at FROM scan_cache WHERE owner_id = $1", ownerID,
	).Scan(&signature, &raw, &entry.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	if err := json.Unmarshal(raw, &entry.Results); err != nil {
		return nil, fmt.Errorf("decode cached results: %w", err)
	}
	entry.Signature = facematch.Signature(signature)
	entry.ComputedAt = entry.ComputedAt.UTC()
	return &entry, nil
}

// PutEntry replaces the owner's cached entry.
func (r *CacheRepository) PutEntry(ctx context.Context, ownerID string, entry *facematch.CacheEntry) error {
	if entry == nil {
		return errors.New("nil cache entry")
	}
	results := entry.Results
	if results == nil {
		results = []facematch.MatchResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO scan_cache (owner_id, signature, results, computed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id) DO UPDATE SET
			signature = EXCLUDED.signature,
			results = EXCLUDED.results,
			computed_at = EXCLUDED.computed_at
	`, ownerID, string(entry.Signature), raw, entry.ComputedAt)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the owner's cached entry if present.
func (r *CacheRepository) DeleteEntry(ctx context.Context, ownerID string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM scan_cache WHERE owner_id = $1", ownerID); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

var _ database.CacheRepository = (*CacheRepository)(nil)
