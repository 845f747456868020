package database

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// ErrIndexEmpty is returned when searching an index without any faces.
var ErrIndexEmpty = errors.New("index not initialized")

// Neighbor is a face returned by a similarity search.
type Neighbor struct {
	Face       *StoredFace
	Similarity float64
}

// HNSWIndex wraps the HNSW graph for searching the reference faces of a profile.
type HNSWIndex struct {
	graph    *hnsw.Graph[int64]
	idToFace map[int64]*StoredFace // Maps HNSW node ID to face
	dim      int
	mu       sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToFace: make(map[int64]*StoredFace),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildFromFaces builds the index from a slice of faces. Node keys are the
// positions in faces, so faces do not need database IDs. Faces without an
// embedding are skipped; an embedding whose dimension differs from the first
// one is an error.
func (h *HNSWIndex) BuildFromFaces(faces []StoredFace) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.dim = 0
	h.idToFace = make(map[int64]*StoredFace, len(faces))

	g := newGraph()
	for i := range faces {
		face := &faces[i]
		if len(face.Embedding) == 0 {
			continue
		}
		if h.dim == 0 {
			h.dim = len(face.Embedding)
		} else if len(face.Embedding) != h.dim {
			return fmt.Errorf("face %d of %s: embedding dimension %d, expected %d",
				face.FaceIndex, face.PhotoURL, len(face.Embedding), h.dim)
		}

		key := int64(i)
		g.Add(hnsw.MakeNode(key, face.Embedding))
		h.idToFace[key] = face
	}

	if len(h.idToFace) > 0 {
		h.graph = g
	}
	return nil
}

// Search finds up to k faces nearest to query, ordered by descending similarity.
func (h *HNSWIndex) Search(query []float32, k int) ([]Neighbor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, ErrIndexEmpty
	}
	if len(query) != h.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), h.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	nodes := h.graph.Search(query, k)
	result := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		face, ok := h.idToFace[n.Key]
		if !ok {
			continue
		}
		result = append(result, Neighbor{
			Face:       face,
			Similarity: CosineSimilarity(query, n.Value),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Similarity > result[j].Similarity
	})
	return result, nil
}

// Count returns the number of faces in the index.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToFace)
}

// IsEmpty returns true if the index has no faces.
func (h *HNSWIndex) IsEmpty() bool {
	return h.Count() == 0
}
