package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photos.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
- id: IMG_0001
  url: https://example.com/IMG_0001.jpg
  uploaded_at: 2026-08-01T12:00:00Z
- id: IMG_0002
  url: https://example.com/IMG_0002.jpg
`)

	photos, err := loadManifest(path)
	if err != nil {
		t.Fatalf("loadManifest failed: %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(photos))
	}
	if photos[0].ID != "IMG_0001" || photos[0].URL != "https://example.com/IMG_0001.jpg" {
		t.Errorf("unexpected first photo %+v", photos[0])
	}
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if !photos[0].UploadedAt.Equal(want) {
		t.Errorf("expected uploaded_at %v, got %v", want, photos[0].UploadedAt)
	}
	if !photos[1].UploadedAt.IsZero() {
		t.Errorf("expected zero uploaded_at, got %v", photos[1].UploadedAt)
	}
}

func TestLoadManifest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing url", "- id: IMG_0001\n"},
		{"missing id", "- url: https://example.com/a.jpg\n"},
		{"not a list", "id: IMG_0001\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadManifest(writeManifest(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := loadManifest(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
