// Package cache keeps the last completed scan result per owner and decides whether it is
// still valid for a new scan request.
package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/kozaktomas/face-finder/internal/logging"
)

// ResultCache answers cache lookups by exact signature equality.
type ResultCache struct {
	repo   database.CacheRepository
	maxAge time.Duration
	now    func() time.Time
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithMaxAge treats entries older than d as misses. Zero disables expiry.
func WithMaxAge(d time.Duration) Option {
	return func(c *ResultCache) { c.maxAge = d }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

func New(repo database.CacheRepository, opts ...Option) *ResultCache {
	c := &ResultCache{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the owner's entry if it was computed for exactly this signature.
// A mismatch or an expired entry is a miss (nil, nil), not an error.
func (c *ResultCache) Lookup(ctx context.Context, ownerID string, sig facematch.Signature) (*facematch.CacheEntry, error) {
	entry, err := c.repo.GetEntry(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	log := logging.FromContext(ctx).With(zap.String("owner_id", ownerID), zap.String("signature", sig.Short()))
	if entry.Signature != sig {
		log.Debug("cache miss: signature changed", zap.String("cached_signature", entry.Signature.Short()))
		return nil, nil
	}
	if c.maxAge > 0 && c.now().Sub(entry.ComputedAt) > c.maxAge {
		log.Debug("cache miss: entry expired", zap.Time("computed_at", entry.ComputedAt))
		return nil, nil
	}
	return entry, nil
}

// Peek returns the stored entry regardless of its signature.
func (c *ResultCache) Peek(ctx context.Context, ownerID string) (*facematch.CacheEntry, error) {
	entry, err := c.repo.GetEntry(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return entry, nil
}

// Store replaces the owner's entry.
func (c *ResultCache) Store(ctx context.Context, ownerID string, entry *facematch.CacheEntry) error {
	if err := c.repo.PutEntry(ctx, ownerID, entry); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Invalidate removes the owner's entry. Invalidating a missing entry is not an error.
func (c *ResultCache) Invalidate(ctx context.Context, ownerID string) error {
	if err := c.repo.DeleteEntry(ctx, ownerID); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	logging.LogDebug(ctx, "scan cache invalidated", zap.String("owner_id", ownerID))
	return nil
}
