package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-finder/internal/constants"
	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/kozaktomas/face-finder/internal/logging"
)

// FaceEmbedder detects faces in an image.
type FaceEmbedder interface {
	ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error)
}

// ImageFetcher downloads an image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Comparator implements facematch.Comparator on top of face embeddings.
// Detected faces are cached per photo URL in a database.FaceStore; the reference
// faces of the last profile seen are kept in an HNSW index.
type Comparator struct {
	embedder FaceEmbedder
	fetcher  ImageFetcher
	faces    database.FaceStore

	topK           int
	voteSimilarity float64

	mu       sync.Mutex
	refKey   string
	refIndex *database.HNSWIndex
	refCount int
}

// NewComparator creates a comparator.
func NewComparator(embedder FaceEmbedder, fetcher ImageFetcher, faces database.FaceStore) *Comparator {
	return &Comparator{
		embedder:       embedder,
		fetcher:        fetcher,
		faces:          faces,
		topK:           constants.ReferenceTopK,
		voteSimilarity: constants.ReferenceVoteSimilarity,
	}
}

// facesFor returns the detected faces of a photo, computing and caching them on first use.
func (c *Comparator) facesFor(ctx context.Context, url string) ([]database.StoredFace, error) {
	faces, processed, err := c.faces.GetFaces(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("load cached faces: %w", err)
	}
	if processed {
		return faces, nil
	}

	data, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	resp, err := c.embedder.ComputeFaceEmbeddings(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces = make([]database.StoredFace, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			continue
		}
		faces = append(faces, database.StoredFace{
			PhotoURL:  url,
			FaceIndex: f.FaceIndex,
			Embedding: f.Embedding,
			BBox:      f.BBox,
			DetScore:  f.DetScore,
			Model:     resp.Model,
			Dim:       len(f.Embedding),
		})
	}

	if err := c.faces.SaveFaces(ctx, url, faces); err != nil {
		// The faces are still usable for this comparison.
		logging.LogWarn(ctx, "failed to cache faces", zap.String("url", url), zap.Error(err))
	}
	return faces, nil
}

// referenceIndex returns the HNSW index over the reference photos' faces,
// rebuilding it when the reference set changes.
func (c *Comparator) referenceIndex(ctx context.Context, reference []facematch.ProfilePhoto) (*database.HNSWIndex, int, error) {
	urls := make([]string, len(reference))
	for i, p := range reference {
		urls[i] = p.URL
	}
	key := strings.Join(urls, "\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refIndex != nil && c.refKey == key {
		return c.refIndex, c.refCount, nil
	}

	var refFaces []database.StoredFace
	for _, url := range urls {
		faces, err := c.facesFor(ctx, url)
		if err != nil {
			return nil, 0, fmt.Errorf("reference photo %s: %w", url, err)
		}
		// A reference photo contributes its most confident face only.
		if best := mostConfident(faces); best != nil {
			refFaces = append(refFaces, *best)
		}
	}
	if len(refFaces) == 0 {
		return nil, 0, errors.New("no faces detected in reference photos")
	}

	idx := database.NewHNSWIndex()
	if err := idx.BuildFromFaces(refFaces); err != nil {
		return nil, 0, fmt.Errorf("build reference index: %w", err)
	}
	c.refKey = key
	c.refIndex = idx
	c.refCount = len(refFaces)
	return idx, c.refCount, nil
}

func mostConfident(faces []database.StoredFace) *database.StoredFace {
	var best *database.StoredFace
	for i := range faces {
		if best == nil || faces[i].DetScore > best.DetScore {
			best = &faces[i]
		}
	}
	return best
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Compare scores candidate against the reference photos. The score is the best,
// over all faces detected in candidate, of the mean similarity to its closest
// reference faces. A photo without faces scores 0.
func (c *Comparator) Compare(ctx context.Context, reference []facematch.ProfilePhoto, candidate facematch.PhotoRecord) (facematch.Comparison, error) {
	idx, refCount, err := c.referenceIndex(ctx, reference)
	if err != nil {
		return facematch.Comparison{}, err
	}

	faces, err := c.facesFor(ctx, candidate.URL)
	if err != nil {
		return facematch.Comparison{}, err
	}

	consensus := &facematch.Consensus{
		FacesDetected:  len(faces),
		ReferenceCount: refCount,
	}
	best := 0.0
	for _, face := range faces {
		neighbors, err := idx.Search(face.Embedding, refCount)
		if err != nil {
			return facematch.Comparison{}, fmt.Errorf("search reference index: %w", err)
		}
		if len(neighbors) == 0 {
			continue
		}

		k := min(c.topK, len(neighbors))
		sum := 0.0
		for _, n := range neighbors[:k] {
			sum += clampUnit(n.Similarity)
		}
		score := sum / float64(k)

		votes := 0
		for _, n := range neighbors {
			if n.Similarity >= c.voteSimilarity {
				votes++
			}
		}

		if score > best || consensus.BestReferenceURL == "" {
			best = score
			consensus.ReferenceVotes = votes
			consensus.BestReferenceURL = neighbors[0].Face.PhotoURL
		}
	}

	return facematch.Comparison{Score: clampUnit(best), Consensus: consensus}, nil
}

// ScoreQuality rates a photo as a face reference by the detection score of its most confident face.
func (c *Comparator) ScoreQuality(ctx context.Context, photoURL string) (float64, error) {
	faces, err := c.facesFor(ctx, photoURL)
	if err != nil {
		return 0, err
	}
	best := mostConfident(faces)
	if best == nil {
		return 0, facematch.ErrNoFaceDetected
	}
	return clampUnit(best.DetScore), nil
}

var _ facematch.Comparator = (*Comparator)(nil)
