package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-finder/internal/database/mock"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

var now = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func entry(sig facematch.Signature, age time.Duration) *facematch.CacheEntry {
	return &facematch.CacheEntry{
		Signature:  sig,
		Results:    []facematch.MatchResult{{PhotoID: "p1", Confidence: 0.8, MatchType: facematch.MatchStrong}},
		ComputedAt: now.Add(-age),
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		stored  *facematch.CacheEntry
		maxAge  time.Duration
		sig     facematch.Signature
		wantHit bool
	}{
		{name: "empty cache", stored: nil, sig: "abc", wantHit: false},
		{name: "matching signature", stored: entry("abc", time.Hour), sig: "abc", wantHit: true},
		{name: "different signature", stored: entry("abc", time.Hour), sig: "abd", wantHit: false},
		{name: "old entry without expiry", stored: entry("abc", 24*365*time.Hour), sig: "abc", wantHit: true},
		{name: "within max age", stored: entry("abc", time.Hour), maxAge: 2 * time.Hour, sig: "abc", wantHit: true},
		{name: "expired", stored: entry("abc", 3*time.Hour), maxAge: 2 * time.Hour, sig: "abc", wantHit: false},
		{name: "expired but wrong signature anyway", stored: entry("abc", 3*time.Hour), maxAge: 2 * time.Hour, sig: "xyz", wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := mock.NewMockCacheRepository()
			if tt.stored != nil {
				repo.PutEntry(ctx, "alice", tt.stored)
			}
			c := New(repo, WithMaxAge(tt.maxAge), WithClock(func() time.Time { return now }))

			got, err := c.Lookup(ctx, "alice", tt.sig)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if (got != nil) != tt.wantHit {
				t.Errorf("expected hit=%v, got %+v", tt.wantHit, got)
			}
			if got != nil && got.Signature != tt.sig {
				t.Errorf("hit returned signature %s for lookup %s", got.Signature, tt.sig)
			}
		})
	}
}

func TestLookup_RepositoryError(t *testing.T) {
	repo := mock.NewMockCacheRepository()
	repo.GetError = errors.New("timeout")

	if _, err := New(repo).Lookup(context.Background(), "alice", "abc"); err == nil {
		t.Error("expected error")
	}
}

func TestStoreReplacesPriorEntry(t *testing.T) {
	ctx := context.Background()
	c := New(mock.NewMockCacheRepository())

	if err := c.Store(ctx, "alice", entry("first", 0)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := c.Store(ctx, "alice", entry("second", 0)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if got, _ := c.Lookup(ctx, "alice", "first"); got != nil {
		t.Error("expected first entry to be replaced")
	}
	if got, _ := c.Lookup(ctx, "alice", "second"); got == nil {
		t.Error("expected second entry to hit")
	}
	if got, _ := c.Lookup(ctx, "bob", "second"); got != nil {
		t.Error("entries must not leak across owners")
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	repo := mock.NewMockCacheRepository()
	c := New(repo)
	c.Store(ctx, "alice", entry("abc", 0))

	if err := c.Invalidate(ctx, "alice"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if got, _ := c.Peek(ctx, "alice"); got != nil {
		t.Errorf("expected no entry after invalidate, got %+v", got)
	}
	if err := c.Invalidate(ctx, "alice"); err != nil {
		t.Errorf("invalidating a missing entry should succeed, got %v", err)
	}

	repo.DeleteError = errors.New("unavailable")
	if err := c.Invalidate(ctx, "alice"); err == nil {
		t.Error("expected repository error to surface")
	}
}
