package image

import (
	"errors"
	"image-set-comparator/internal/bitmap"
)

var ErrShapeMismatch = errors.New("shape mismatch")

type DiffResult struct {
	// Image is the difference itself, one sample per channel.
	Image *bitmap.Bitmap
	// Channels holds the non-zero sample count of each split channel plane.
	Channels   [bitmap.Channels]int64
	DiffPixels int64
	DiffAmount float64
}

// Identical reports whether every channel plane of the difference is zero.
func (d *DiffResult) Identical() bool {
	for _, n := range d.Channels {
		if n != 0 {
			return false
		}
	}
	return true
}

type Differ interface {
	Calculate(reference *bitmap.Bitmap, candidate *bitmap.Bitmap) (*DiffResult, error)
}
