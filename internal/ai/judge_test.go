package ai

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/kozaktomas/face-finder/internal/facematch"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	return f.data, f.err
}

type fakeModel struct {
	verdict *QualityVerdict
	err     error
	calls   int
	gotSize int
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) JudgeImage(_ context.Context, jpegData []byte) (*QualityVerdict, error) {
	m.calls++
	m.gotSize = len(jpegData)
	return m.verdict, m.err
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantQuality float64
		wantFaces   int
		wantErr     bool
	}{
		{"plain", `{"quality": 0.9, "faces": 1, "reason": "sharp"}`, 0.9, 1, false},
		{"fenced", "```json\n{\"quality\": 0.4, \"faces\": 2}\n```", 0.4, 2, false},
		{"quality above one", `{"quality": 1.5, "faces": 1}`, 0, 0, true},
		{"negative quality", `{"quality": -0.1, "faces": 1}`, 0, 0, true},
		{"negative faces", `{"quality": 0.5, "faces": -1}`, 0, 0, true},
		{"not json", `the photo looks fine`, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseVerdict(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", v)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Quality != tt.wantQuality || v.Faces != tt.wantFaces {
				t.Errorf("got quality=%v faces=%d, want %v/%d", v.Quality, v.Faces, tt.wantQuality, tt.wantFaces)
			}
		})
	}
}

func TestJudge_ScoreQuality(t *testing.T) {
	photo := encodeJPEG(createTestImage(1600, 1200, color.White))
	fetchErr := errors.New("connection refused")
	modelErr := errors.New("rate limited")

	tests := []struct {
		name      string
		fetcher   *fakeFetcher
		model     *fakeModel
		want      float64
		wantErr   error
		anyErr    bool
		wantCalls int
	}{
		{
			name:      "single face",
			fetcher:   &fakeFetcher{data: photo},
			model:     &fakeModel{verdict: &QualityVerdict{Quality: 0.85, Faces: 1}},
			want:      0.85,
			wantCalls: 1,
		},
		{
			name:      "no face",
			fetcher:   &fakeFetcher{data: photo},
			model:     &fakeModel{verdict: &QualityVerdict{Quality: 0.9, Faces: 0}},
			wantErr:   facematch.ErrNoFaceDetected,
			wantCalls: 1,
		},
		{
			name:      "group photo",
			fetcher:   &fakeFetcher{data: photo},
			model:     &fakeModel{verdict: &QualityVerdict{Quality: 0.9, Faces: 3}},
			wantErr:   ErrMultipleFaces,
			wantCalls: 1,
		},
		{
			name:      "fetch fails",
			fetcher:   &fakeFetcher{err: fetchErr},
			model:     &fakeModel{},
			wantErr:   fetchErr,
			wantCalls: 0,
		},
		{
			name:      "undecodable image",
			fetcher:   &fakeFetcher{data: []byte("html error page")},
			model:     &fakeModel{},
			anyErr:    true,
			wantCalls: 0,
		},
		{
			name:      "model fails",
			fetcher:   &fakeFetcher{data: photo},
			model:     &fakeModel{err: modelErr},
			wantErr:   modelErr,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewJudge(tt.model, tt.fetcher)
			got, err := j.ScoreQuality(context.Background(), "https://photos.example/a.jpg")

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("expected error")
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected quality %v, got %v", tt.want, got)
				}
			}
			if tt.model.calls != tt.wantCalls {
				t.Errorf("expected %d model calls, got %d", tt.wantCalls, tt.model.calls)
			}
		})
	}
}

func TestJudge_ResizesBeforeModel(t *testing.T) {
	photo := encodeJPEG(createTestImage(4000, 3000, color.White))
	model := &fakeModel{verdict: &QualityVerdict{Quality: 0.7, Faces: 1}}

	j := NewJudge(model, &fakeFetcher{data: photo})
	if _, err := j.ScoreQuality(context.Background(), "u"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.gotSize == 0 || model.gotSize >= len(photo) {
		t.Errorf("expected model to receive a smaller image, got %d bytes (original %d)", model.gotSize, len(photo))
	}
}

func TestUsage_Snapshot(t *testing.T) {
	var u Usage
	u.add(100, 20)
	u.add(50, 5)

	in, out, req := u.Snapshot()
	if in != 150 || out != 25 || req != 2 {
		t.Errorf("got %d/%d/%d, want 150/25/2", in, out, req)
	}
}
