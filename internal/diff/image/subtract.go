package image

import (
	"image-set-comparator/internal/bitmap"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/xerrors"
)

type Mode string

const (
	// ModeAbsolute takes |reference-candidate| per channel.
	ModeAbsolute Mode = "absolute"
	// ModeSubtract clamps reference-candidate at zero, so a candidate that is
	// brighter than the reference in a channel yields no difference there.
	ModeSubtract Mode = "subtract"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSubtract, ModeAbsolute:
		return Mode(s), nil
	case "":
		return ModeAbsolute, nil
	}
	return "", xerrors.Errorf("unknown diff mode: %s", s)
}

type SubtractDiff struct {
	mode Mode
}

func NewSubtractDiff(mode Mode) *SubtractDiff {
	if mode == "" {
		mode = ModeAbsolute
	}
	return &SubtractDiff{
		mode,
	}
}

func (s *SubtractDiff) Calculate(reference *bitmap.Bitmap, candidate *bitmap.Bitmap) (*DiffResult, error) {
	if reference.Shape != candidate.Shape {
		return nil, xerrors.Errorf("%s != %s: %w", reference.Shape, candidate.Shape, ErrShapeMismatch)
	}

	width := reference.Shape.Width
	height := reference.Shape.Height
	diff := bitmap.New(width, height)

	var channelCounts [bitmap.Channels]int64
	var diffPixelCount int64

	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
	numWorkers := runtime.GOMAXPROCS(0)
	rowsPerWorker := height / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if i == numWorkers-1 {
			endY = height
		}

		go func(startY int, endY int) {
			defer wg.Done()
			s.process(reference, candidate, diff, startY, endY, &channelCounts, &diffPixelCount)
		}(startY, endY)
	}
	wg.Wait()

	diffAmount := 0.0
	if total := int64(width * height); total > 0 {
		diffAmount = float64(diffPixelCount) / float64(total)
	}

	return &DiffResult{
		Image:      diff,
		Channels:   channelCounts,
		DiffPixels: diffPixelCount,
		DiffAmount: diffAmount,
	}, nil
}

func (s *SubtractDiff) process(reference *bitmap.Bitmap, candidate *bitmap.Bitmap, diff *bitmap.Bitmap, startY int, endY int, channelCounts *[bitmap.Channels]int64, diffPixelCount *int64) {
	var localChannels [bitmap.Channels]int64
	var localPixels int64

	rowSize := reference.Shape.Width * bitmap.Channels
	for y := startY; y < endY; y++ {
		row := y * rowSize
		for x := 0; x < rowSize; x += bitmap.Channels {
			changed := false
			for c := 0; c < bitmap.Channels; c++ {
				i := row + x + c
				v := s.subtract(reference.Pix[i], candidate.Pix[i])
				diff.Pix[i] = v
				if v != 0 {
					localChannels[c]++
					changed = true
				}
			}
			if changed {
				localPixels++
			}
		}
	}

	for c := range localChannels {
		atomic.AddInt64(&channelCounts[c], localChannels[c])
	}
	atomic.AddInt64(diffPixelCount, localPixels)
}

func (s *SubtractDiff) subtract(r uint8, c uint8) uint8 {
	if r >= c {
		return r - c
	}
	if s.mode == ModeAbsolute {
		return c - r
	}
	return 0
}

// Highlight renders the difference for humans: pixels with any non-zero
// channel are painted red, all others show the reference faded towards white.
func Highlight(reference *bitmap.Bitmap, result *DiffResult) *bitmap.Bitmap {
	out := bitmap.New(reference.Shape.Width, reference.Shape.Height)
	for i := 0; i < len(reference.Pix); i += bitmap.Channels {
		d := result.Image.Pix[i : i+bitmap.Channels]
		if d[0] != 0 || d[1] != 0 || d[2] != 0 {
			out.Pix[i] = 255
			out.Pix[i+1] = 0
			out.Pix[i+2] = 0
			continue
		}
		for c := 0; c < bitmap.Channels; c++ {
			out.Pix[i+c] = 170 + reference.Pix[i+c]/3
		}
	}
	return out
}
