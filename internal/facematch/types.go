// Package facematch holds the domain types shared by the profile store, the result cache
// and the scan orchestrator: face profiles, photo records, match results and the
// comparison primitive they are built around.
package facematch

import (
	"context"
	"slices"
	"time"
)

// MinProfilePhotos is the smallest number of reference photos a profile may hold.
const MinProfilePhotos = 2

// CaptureMethod records how a profile's reference photos were collected.
type CaptureMethod string

const (
	MethodGuided   CaptureMethod = "guided"   // captured via the assisted scan flow
	MethodUploaded CaptureMethod = "uploaded" // user-supplied images
)

// Valid reports whether m is a known capture method.
func (m CaptureMethod) Valid() bool {
	return m == MethodGuided || m == MethodUploaded
}

// ProfilePhoto is a single reference photo of a face profile.
type ProfilePhoto struct {
	URL          string  `json:"url" firestore:"url"`
	QualityScore float64 `json:"quality_score" firestore:"quality_score"`
}

// FaceProfile is a user's set of reference photos used as the basis for matching.
type FaceProfile struct {
	OwnerID   string         `json:"owner_id"`
	Photos    []ProfilePhoto `json:"photos"`
	Method    CaptureMethod  `json:"method"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Usable reports whether the profile holds enough photos to be matched against.
func (p *FaceProfile) Usable() bool {
	return p != nil && len(p.Photos) >= MinProfilePhotos
}

// Clone returns a deep copy of the profile.
func (p *FaceProfile) Clone() *FaceProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Photos = slices.Clone(p.Photos)
	return &c
}

// HasPhoto reports whether url is one of the profile's reference photos.
func (p *FaceProfile) HasPhoto(url string) bool {
	for _, photo := range p.Photos {
		if photo.URL == url {
			return true
		}
	}
	return false
}

// PhotoURLs returns the reference photo URLs in profile order.
func (p *FaceProfile) PhotoURLs() []string {
	urls := make([]string, len(p.Photos))
	for i, photo := range p.Photos {
		urls[i] = photo.URL
	}
	return urls
}

// PhotoRecord is a photo of the shared collection, as observed at scan time.
type PhotoRecord struct {
	ID         string    `json:"id" yaml:"id"`
	URL        string    `json:"url" yaml:"url"`
	UploadedAt time.Time `json:"uploaded_at" yaml:"uploaded_at"`
}

// MatchType is the qualitative confidence band of an accepted match.
type MatchType string

const (
	MatchStrong MatchType = "strong"
	MatchWeak   MatchType = "weak"
)

// Consensus is the supporting detail reported by the comparison primitive.
type Consensus struct {
	FacesDetected    int    `json:"faces_detected" firestore:"faces_detected"`
	ReferenceVotes   int    `json:"reference_votes" firestore:"reference_votes"`
	ReferenceCount   int    `json:"reference_count" firestore:"reference_count"`
	BestReferenceURL string `json:"best_reference_url,omitempty" firestore:"best_reference_url,omitempty"`
}

// MatchResult is a photo accepted as containing the profile owner's face.
type MatchResult struct {
	PhotoID    string     `json:"photo_id" firestore:"photo_id"`
	Confidence float64    `json:"confidence" firestore:"confidence"`
	MatchType  MatchType  `json:"match_type" firestore:"match_type"`
	Consensus  *Consensus `json:"consensus,omitempty" firestore:"consensus,omitempty"`
}

// SortResults orders results by confidence (highest first), then by photo id.
func SortResults(results []MatchResult) {
	slices.SortStableFunc(results, func(a, b MatchResult) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		case a.PhotoID < b.PhotoID:
			return -1
		case a.PhotoID > b.PhotoID:
			return 1
		}
		return 0
	})
}

// CacheEntry is a previously computed scan outcome for one photo set.
type CacheEntry struct {
	Signature  Signature     `json:"signature"`
	Results    []MatchResult `json:"results"`
	ComputedAt time.Time     `json:"computed_at"`
}

// Comparison is the outcome of comparing one candidate photo against a profile.
type Comparison struct {
	Score     float64
	Consensus *Consensus
}

// Matcher compares a candidate photo against a profile's reference photos.
// Score must be in [0,1]; a returned error is a per-photo failure.
type Matcher interface {
	Compare(ctx context.Context, reference []ProfilePhoto, candidate PhotoRecord) (Comparison, error)
}

// QualityScorer rates how usable a photo is as a face reference, in [0,1].
type QualityScorer interface {
	ScoreQuality(ctx context.Context, photoURL string) (float64, error)
}

// Comparator is the full face-comparison primitive.
type Comparator interface {
	Matcher
	QualityScorer
}
