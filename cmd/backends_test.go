package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kozaktomas/face-finder/internal/config"
)

func TestWarnEphemeralBackend(t *testing.T) {
	tests := []struct {
		backend  string
		wantWarn bool
	}{
		{config.BackendMemory, true},
		{config.BackendPostgres, false},
		{config.BackendFirestore, false},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := &config.Config{Storage: config.StorageConfig{Backend: tt.backend}}
			var buf bytes.Buffer
			warnEphemeralBackend(&buf, cfg)

			got := buf.String()
			if tt.wantWarn && !strings.Contains(got, "STORAGE_BACKEND=memory") {
				t.Errorf("expected memory backend warning, got %q", got)
			}
			if !tt.wantWarn && got != "" {
				t.Errorf("expected no warning, got %q", got)
			}
		})
	}
}
