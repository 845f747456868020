package ai

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// minImageSide is the smallest photo side a vision model is asked to judge.
	minImageSide = 32
	jpegQuality  = 85
)

// ErrImageTooSmall is returned for photos too small to show a judgeable face.
var ErrImageTooSmall = errors.New("image too small to judge")

// encodeForModel decodes a photo, scales it down so neither side exceeds maxSide and
// re-encodes it as JPEG for the vision APIs.
func encodeForModel(data []byte, maxSide int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() < minImageSide || bounds.Dy() < minImageSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooSmall, bounds.Dx(), bounds.Dy())
	}

	if w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxSide); w != bounds.Dx() || h != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin returns w x h scaled so the longer side is at most maxSide, keeping the
// aspect ratio. Sides never drop below one pixel.
func fitWithin(w, h, maxSide int) (int, int) {
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		return maxSide, max(1, h*maxSide/w)
	}
	return max(1, w*maxSide/h), maxSide
}
