package ingest

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// Processed images fit within an HD bounding box and are re-encoded as
// quality-80 JPEG. Policy constants, not derived values.
const (
	maxWidth    = 1920
	maxHeight   = 1080
	jpegQuality = 80
)

// ResizeToFit scales an image down so it fits within maxWidth×maxHeight
// preserving aspect ratio. Images already inside the box keep their
// dimensions; there is no upscaling.
func ResizeToFit(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxWidth || bounds.Dy() > maxHeight {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
