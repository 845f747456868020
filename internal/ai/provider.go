package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kozaktomas/face-finder/internal/constants"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

//go:embed prompts/face_quality.txt
var faceQualityPrompt string

// maxParseRetries is how many times a model is asked again after returning malformed JSON.
const maxParseRetries = 3

// ErrMultipleFaces is returned when a reference photo shows more than one face.
var ErrMultipleFaces = errors.New("more than one face in photo")

// QualityVerdict is the JSON answer expected from a vision model.
type QualityVerdict struct {
	Quality float64 `json:"quality"`
	Faces   int     `json:"faces"`
	Reason  string  `json:"reason"`
}

// VisionModel judges a single (already resized) JPEG image.
type VisionModel interface {
	Name() string
	JudgeImage(ctx context.Context, jpegData []byte) (*QualityVerdict, error)
}

// ImageFetcher downloads an image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Usage tracks token usage across requests.
type Usage struct {
	mu           sync.Mutex
	InputTokens  int
	OutputTokens int
	Requests     int
}

func (u *Usage) add(input, output int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.InputTokens += input
	u.OutputTokens += output
	u.Requests++
}

// Snapshot returns the current counters.
func (u *Usage) Snapshot() (input, output, requests int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.InputTokens, u.OutputTokens, u.Requests
}

// parseVerdict decodes a model response. Models sometimes wrap JSON in markdown fences.
func parseVerdict(content string) (*QualityVerdict, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var v QualityVerdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return nil, err
	}
	if v.Quality < 0 || v.Quality > 1 {
		return nil, fmt.Errorf("quality %v outside [0,1]", v.Quality)
	}
	if v.Faces < 0 {
		return nil, fmt.Errorf("negative face count %d", v.Faces)
	}
	return &v, nil
}

// Judge implements facematch.QualityScorer with a vision model.
type Judge struct {
	model   VisionModel
	fetcher ImageFetcher
	maxSize int
}

// NewJudge creates a quality scorer backed by model.
func NewJudge(model VisionModel, fetcher ImageFetcher) *Judge {
	return &Judge{model: model, fetcher: fetcher, maxSize: constants.MaxImageSize}
}

// ScoreQuality downloads the photo, resizes it and asks the model for a verdict.
// Photos without a face or with several faces are rejected.
func (j *Judge) ScoreQuality(ctx context.Context, photoURL string) (float64, error) {
	data, err := j.fetcher.Fetch(ctx, photoURL)
	if err != nil {
		return 0, err
	}

	// Resize image to save costs
	resized, err := encodeForModel(data, j.maxSize)
	if err != nil {
		return 0, err
	}

	verdict, err := j.model.JudgeImage(ctx, resized)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", j.model.Name(), err)
	}

	switch {
	case verdict.Faces == 0:
		return 0, facematch.ErrNoFaceDetected
	case verdict.Faces > 1:
		return 0, fmt.Errorf("%w (%d faces)", ErrMultipleFaces, verdict.Faces)
	}
	return verdict.Quality, nil
}

var _ facematch.QualityScorer = (*Judge)(nil)
