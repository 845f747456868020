// Package profile owns users' reference face profiles: building them from photos,
// adding, removing and optimizing reference photos, and deleting them.
package profile

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/kozaktomas/face-finder/internal/logging"
)

// CacheInvalidator drops cached scan results for an owner.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ownerID string) error
}

// Store is the only component that mutates face profiles.
type Store struct {
	repo        database.ProfileRepository
	scorer      facematch.QualityScorer
	invalidator CacheInvalidator
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithInvalidator makes profile mutations invalidate the owner's cached scan results.
func WithInvalidator(inv CacheInvalidator) Option {
	return func(s *Store) { s.invalidator = inv }
}

func NewStore(repo database.ProfileRepository, scorer facematch.QualityScorer, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		scorer: scorer,
		now:    time.Now,
		locks:  make(map[string]*ownerLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock serializes mutations of one owner's profile. The returned func releases it.
func (s *Store) lock(ownerID string) func() {
	s.mu.Lock()
	l, ok := s.locks[ownerID]
	if !ok {
		l = &ownerLock{}
		s.locks[ownerID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, ownerID)
		}
		s.mu.Unlock()
	}
}

// timestamp returns the current time at storage precision. It is always after prev so that
// every mutation yields a new profile version.
func (s *Store) timestamp(prev time.Time) time.Time {
	ts := s.now().UTC().Truncate(time.Microsecond)
	if !prev.IsZero() && !ts.After(prev) {
		ts = prev.Add(time.Microsecond)
	}
	return ts
}

// Get returns the owner's profile, or nil if there is none.
func (s *Store) Get(ctx context.Context, ownerID string) (*facematch.FaceProfile, error) {
	p, err := s.repo.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Exists reports whether the owner has a stored profile.
func (s *Store) Exists(ctx context.Context, ownerID string) (bool, error) {
	p, err := s.Get(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// BuildProfile scores the given photos and stores a new profile for the owner. Photos the
// scorer rejects are skipped; at least two must remain.
func (s *Store) BuildProfile(ctx context.Context, ownerID string, urls []string, method facematch.CaptureMethod) (*facematch.FaceProfile, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %q", facematch.ErrInvalidMethod, method)
	}
	urls = uniqueURLs(urls)
	if len(urls) < facematch.MinProfilePhotos {
		return nil, facematch.ErrInsufficientPhotos
	}

	unlock := s.lock(ownerID)
	defer unlock()

	existing, err := s.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, facematch.ErrProfileExists
	}

	log := logging.FromContext(ctx).With(zap.String("owner_id", ownerID))

	photos := make([]facematch.ProfilePhoto, 0, len(urls))
	for _, url := range urls {
		q, err := s.score(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("skipping reference photo", zap.String("url", url), zap.Error(err))
			continue
		}
		photos = append(photos, facematch.ProfilePhoto{URL: url, QualityScore: q})
	}
	if len(photos) < facematch.MinProfilePhotos {
		return nil, fmt.Errorf("%w (%d of %d photos usable)", facematch.ErrInsufficientPhotos, len(photos), len(urls))
	}

	ts := s.timestamp(time.Time{})
	profile := &facematch.FaceProfile{
		OwnerID:   ownerID,
		Photos:    photos,
		Method:    method,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	s.invalidate(ctx, ownerID)

	log.Info("face profile built", zap.Int("photos", len(photos)), zap.Int("rejected", len(urls)-len(photos)))
	return profile, nil
}

// AddPhotos scores and appends photos that are not yet part of the profile. Any scoring
// failure aborts the whole operation.
func (s *Store) AddPhotos(ctx context.Context, ownerID string, urls []string) (*facematch.FaceProfile, error) {
	urls = uniqueURLs(urls)
	if len(urls) == 0 {
		return nil, facematch.ErrNoPhotosSupplied
	}

	return s.mutate(ctx, ownerID, func(p *facematch.FaceProfile) (bool, error) {
		var added []facematch.ProfilePhoto
		for _, url := range urls {
			if p.HasPhoto(url) {
				continue
			}
			q, err := s.score(ctx, url)
			if err != nil {
				return false, fmt.Errorf("score %s: %w", url, err)
			}
			added = append(added, facematch.ProfilePhoto{URL: url, QualityScore: q})
		}
		p.Photos = append(p.Photos, added...)
		return len(added) > 0, nil
	})
}

// RemovePhotos removes the named photos. Unknown URLs are ignored. Removal that would leave
// fewer than two photos fails with ErrProfileTooSmall.
func (s *Store) RemovePhotos(ctx context.Context, ownerID string, urls []string) (*facematch.FaceProfile, error) {
	if len(urls) == 0 {
		return nil, facematch.ErrNoPhotosSupplied
	}

	return s.mutate(ctx, ownerID, func(p *facematch.FaceProfile) (bool, error) {
		kept := slices.DeleteFunc(slices.Clone(p.Photos), func(photo facematch.ProfilePhoto) bool {
			return slices.Contains(urls, photo.URL)
		})
		if len(kept) == len(p.Photos) {
			return false, nil
		}
		if len(kept) < facematch.MinProfilePhotos {
			return false, facematch.ErrProfileTooSmall
		}
		p.Photos = kept
		return true, nil
	})
}

// Optimize drops photos below minQuality but never leaves fewer than two: when too few
// pass, the two best photos are kept.
func (s *Store) Optimize(ctx context.Context, ownerID string, minQuality float64) (*facematch.FaceProfile, error) {
	if minQuality < 0 || minQuality > 1 {
		return nil, facematch.ErrInvalidQuality
	}

	return s.mutate(ctx, ownerID, func(p *facematch.FaceProfile) (bool, error) {
		kept := optimizePhotos(p.Photos, minQuality)
		if len(kept) == len(p.Photos) {
			return false, nil
		}
		p.Photos = kept
		return true, nil
	})
}

// Delete removes the owner's profile and its cached scan results.
func (s *Store) Delete(ctx context.Context, ownerID string) error {
	unlock := s.lock(ownerID)
	defer unlock()

	existed, err := s.repo.DeleteProfile(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	s.invalidate(ctx, ownerID)
	if !existed {
		return facematch.ErrNoProfile
	}

	logging.LogInfo(ctx, "face profile deleted", zap.String("owner_id", ownerID))
	return nil
}

// mutate applies fn to a copy of the stored profile and saves it when fn reports a change.
// The stored profile is untouched when fn or the save fails.
func (s *Store) mutate(ctx context.Context, ownerID string, fn func(*facematch.FaceProfile) (bool, error)) (*facematch.FaceProfile, error) {
	unlock := s.lock(ownerID)
	defer unlock()

	current, err := s.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, facematch.ErrNoProfile
	}

	next := current.Clone()
	changed, err := fn(next)
	if err != nil {
		return nil, err
	}
	if !changed {
		return current, nil
	}

	next.UpdatedAt = s.timestamp(current.UpdatedAt)
	if err := s.repo.SaveProfile(ctx, next); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	s.invalidate(ctx, ownerID)

	logging.LogDebug(ctx, "face profile updated",
		zap.String("owner_id", ownerID),
		zap.Int("photos", len(next.Photos)),
	)
	return next, nil
}

func (s *Store) score(ctx context.Context, url string) (float64, error) {
	q, err := s.scorer.ScoreQuality(ctx, url)
	if err != nil {
		return 0, err
	}
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("%w: got %v", facematch.ErrInvalidQuality, q)
	}
	return q, nil
}

// invalidate drops cached results. A failure is only logged: the profile version is part
// of the scan signature, so a stale entry can no longer match.
func (s *Store) invalidate(ctx context.Context, ownerID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, ownerID); err != nil {
		logging.LogWarn(ctx, "failed to invalidate scan cache",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
	}
}

// optimizePhotos keeps photos with quality >= minQuality in their original order. If fewer
// than two pass, the two highest-quality photos are kept instead.
func optimizePhotos(photos []facematch.ProfilePhoto, minQuality float64) []facematch.ProfilePhoto {
	kept := make([]facematch.ProfilePhoto, 0, len(photos))
	for _, p := range photos {
		if p.QualityScore >= minQuality {
			kept = append(kept, p)
		}
	}
	if len(kept) >= facematch.MinProfilePhotos {
		return kept
	}
	if len(photos) <= facematch.MinProfilePhotos {
		return slices.Clone(photos)
	}

	idx := make([]int, len(photos))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case photos[a].QualityScore > photos[b].QualityScore:
			return -1
		case photos[a].QualityScore < photos[b].QualityScore:
			return 1
		}
		return 0
	})
	best := idx[:facematch.MinProfilePhotos]
	slices.Sort(best)

	kept = kept[:0]
	for _, i := range best {
		kept = append(kept, photos[i])
	}
	return kept
}

func uniqueURLs(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
