package database

import "testing"

func TestStoredFaceWidth(t *testing.T) {
	tests := []struct {
		name string
		bbox []float64
		want float64
	}{
		{"valid box", []float64{10, 20, 110, 220}, 100},
		{"empty box", nil, 0},
		{"short box", []float64{1, 2}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := StoredFace{BBox: tc.bbox}
			if got := f.Width(); got != tc.want {
				t.Errorf("Width() = %v, want %v", got, tc.want)
			}
		})
	}
}
