// Package filter implements the median filter whose serial and parallel
// outputs are checked by the comparator.
package filter

import (
	"errors"
	"image-set-comparator/internal/bitmap"
	"runtime"
	"sync"

	"golang.org/x/xerrors"
)

var ErrInvalidWidth = errors.New("filter width must be a positive odd number")

// Median replaces every channel sample with the median of the width x width
// window around it. Borders are mirrored without repeating the edge pixel.
type Median struct {
	width  int
	radius int
}

func NewMedian(width int) (*Median, error) {
	if width < 1 || width%2 == 0 {
		return nil, xerrors.Errorf("%d: %w", width, ErrInvalidWidth)
	}
	return &Median{
		width:  width,
		radius: (width - 1) / 2,
	}, nil
}

func (m *Median) Width() int {
	return m.width
}

// Apply filters src on the calling goroutine.
func (m *Median) Apply(src *bitmap.Bitmap) *bitmap.Bitmap {
	dst := bitmap.New(src.Shape.Width, src.Shape.Height)
	if src.Shape.Width == 0 || src.Shape.Height == 0 {
		return dst
	}
	m.process(src, dst, 0, src.Shape.Height)
	return dst
}

// ApplyParallel filters src with rows split across GOMAXPROCS workers. The
// result is identical to Apply.
func (m *Median) ApplyParallel(src *bitmap.Bitmap) *bitmap.Bitmap {
	dst := bitmap.New(src.Shape.Width, src.Shape.Height)
	height := src.Shape.Height
	if src.Shape.Width == 0 || height == 0 {
		return dst
	}

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
			m.process(src, dst, startY, endY)
		}(startY, endY)
	}
	wg.Wait()

	return dst
}

func (m *Median) process(src *bitmap.Bitmap, dst *bitmap.Bitmap, startY int, endY int) {
	width := src.Shape.Width
	height := src.Shape.Height
	rowSize := width * bitmap.Channels

	// columns[x+dx] is the source column of window column dx for pixel x.
	columns := make([]int, width+2*m.radius)
	for i := range columns {
		columns[i] = mirror(i-m.radius, width) * bitmap.Channels
	}
	rows := make([]int, m.width)
	window := make([]uint8, m.width*m.width)

	for y := startY; y < endY; y++ {
		for dy := range rows {
			rows[dy] = mirror(y+dy-m.radius, height) * rowSize
		}
		for x := 0; x < width; x++ {
			for c := 0; c < bitmap.Channels; c++ {
				n := 0
				for _, row := range rows {
					for _, column := range columns[x : x+m.width] {
						window[n] = src.Pix[row+column+c]
						n++
					}
				}
				dst.Pix[y*rowSize+x*bitmap.Channels+c] = quickselect(window, len(window)/2)
			}
		}
	}
}

// mirror maps p into [0, n) by reflecting about the first and last index.
func mirror(p int, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	p %= period
	if p < 0 {
		p += period
	}
	if p >= n {
		p = period - p
	}
	return p
}

// quickselect returns the k-th smallest value of a, reordering a.
func quickselect(a []uint8, k int) uint8 {
	lo, hi := 0, len(a)-1
	for lo < hi {
		pivot := a[hi]
		pos := lo
		for i := lo; i < hi; i++ {
			if a[i] <= pivot {
				a[pos], a[i] = a[i], a[pos]
				pos++
			}
		}
		a[pos], a[hi] = a[hi], a[pos]

		switch {
		case pos == k:
			return a[pos]
		case pos > k:
			hi = pos - 1
		default:
			lo = pos + 1
		}
	}
	return a[k]
}
