package fingerprint

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/kozaktomas/face-finder/internal/database/mock"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

// fakeFetcher returns the URL itself as image bytes.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(url), nil
}

// fakeEmbedder maps image bytes (the URL) to detected faces.
type fakeEmbedder struct {
	faces map[string][]FaceDetection
	err   error
}

func (e *fakeEmbedder) ComputeFaceEmbeddings(ctx context.Context, data []byte) (*FaceResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	faces := e.faces[string(data)]
	return &FaceResponse{FacesCount: len(faces), Faces: faces, Model: "test"}, nil
}

func face(score float64, emb ...float32) FaceDetection {
	return FaceDetection{Embedding: emb, Dim: len(emb), DetScore: score, BBox: []float64{0, 0, 10, 10}}
}

func newTestComparator() (*Comparator, *fakeFetcher) {
	embedder := &fakeEmbedder{faces: map[string][]FaceDetection{
		"ref-1":     {face(0.95, 1, 0, 0)},
		"ref-2":     {face(0.90, 0.98, 0.2, 0)},
		"ref-3":     {face(0.80, 0.95, 0, 0.3)},
		"me":        {face(0.9, 1, 0.05, 0.05)},
		"stranger":  {face(0.9, 0, 1, 0)},
		"group":     {face(0.7, 0, 0, 1), face(0.8, 1, 0.1, 0)},
		"landscape": nil,
	}}
	fetcher := &fakeFetcher{}
	return NewComparator(embedder, fetcher, mock.NewMockFaceStore()), fetcher
}

var reference = []facematch.ProfilePhoto{{URL: "ref-1"}, {URL: "ref-2"}, {URL: "ref-3"}}

func TestComparator_Compare(t *testing.T) {
	c, _ := newTestComparator()
	ctx := context.Background()

	me, err := c.Compare(ctx, reference, facematch.PhotoRecord{ID: "1", URL: "me"})
	if err != nil {
		t.Fatalf("Compare(me) error = %v", err)
	}
	stranger, err := c.Compare(ctx, reference, facematch.PhotoRecord{ID: "2", URL: "stranger"})
	if err != nil {
		t.Fatalf("Compare(stranger) error = %v", err)
	}

	if me.Score < 0.9 {
		t.Errorf("expected high score for matching face, got %v", me.Score)
	}
	if stranger.Score > 0.3 {
		t.Errorf("expected low score for different face, got %v", stranger.Score)
	}
	if me.Consensus.ReferenceVotes != 3 || me.Consensus.ReferenceCount != 3 {
		t.Errorf("unexpected consensus: %+v", me.Consensus)
	}
	if stranger.Consensus.ReferenceVotes != 0 {
		t.Errorf("expected no votes for stranger, got %d", stranger.Consensus.ReferenceVotes)
	}
	if me.Score < 0 || me.Score > 1 || stranger.Score < 0 || stranger.Score > 1 {
		t.Error("scores must be within [0,1]")
	}
}

func TestComparator_GroupPhotoUsesBestFace(t *testing.T) {
	c, _ := newTestComparator()
	got, err := c.Compare(context.Background(), reference, facematch.PhotoRecord{ID: "g", URL: "group"})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if got.Consensus.FacesDetected != 2 {
		t.Errorf("expected 2 faces detected, got %d", got.Consensus.FacesDetected)
	}
	if got.Score < 0.9 {
		t.Errorf("expected the matching face to drive the score, got %v", got.Score)
	}
	if got.Consensus.BestReferenceURL == "" {
		t.Error("expected best reference URL")
	}
}

func TestComparator_NoFaces(t *testing.T) {
	c, _ := newTestComparator()
	got, err := c.Compare(context.Background(), reference, facematch.PhotoRecord{ID: "l", URL: "landscape"})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if got.Score != 0 || got.Consensus.FacesDetected != 0 {
		t.Errorf("expected zero score without faces, got %+v", got)
	}
}

func TestComparator_CachesFaces(t *testing.T) {
	c, fetcher := newTestComparator()
	ctx := context.Background()

	for range 3 {
		if _, err := c.Compare(ctx, reference, facematch.PhotoRecord{ID: "1", URL: "me"}); err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
	}
	// 3 reference photos + 1 candidate, each fetched once.
	if fetcher.calls != 4 {
		t.Errorf("expected 4 downloads, got %d", fetcher.calls)
	}
}

func TestComparator_Errors(t *testing.T) {
	ctx := context.Background()

	c, fetcher := newTestComparator()
	fetcher.err = errors.New("network down")
	if _, err := c.Compare(ctx, reference, facematch.PhotoRecord{ID: "1", URL: "me"}); err == nil {
		t.Error("expected error when reference photos cannot be downloaded")
	}

	c, _ = newTestComparator()
	noFaceRefs := []facematch.ProfilePhoto{{URL: "landscape"}, {URL: "landscape"}}
	if _, err := c.Compare(ctx, noFaceRefs, facematch.PhotoRecord{ID: "1", URL: "me"}); err == nil {
		t.Error("expected error when reference photos have no faces")
	}
}

func TestComparator_ScoreQuality(t *testing.T) {
	c, _ := newTestComparator()
	ctx := context.Background()

	q, err := c.ScoreQuality(ctx, "group")
	if err != nil {
		t.Fatalf("ScoreQuality() error = %v", err)
	}
	if math.Abs(q-0.8) > 1e-9 {
		t.Errorf("expected quality of most confident face 0.8, got %v", q)
	}

	if _, err := c.ScoreQuality(ctx, "landscape"); !errors.Is(err, facematch.ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}
