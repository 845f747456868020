package database

import (
	"time"
)

// StoredFace represents a face embedding detected on a photo and cached by photo URL.
type StoredFace struct {
	ID        int64
	PhotoURL  string
	FaceIndex int
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore  float64
	Model     string
	Dim       int
	CreatedAt time.Time
}

// Width returns the bounding box width in pixels, or 0 for a malformed box.
func (f *StoredFace) Width() float64 {
	if len(f.BBox) != 4 {
		return 0
	}
	return f.BBox[2] - f.BBox[0]
}
