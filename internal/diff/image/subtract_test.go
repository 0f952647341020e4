package image

import (
	"errors"
	"image-set-comparator/internal/bitmap"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func createTestBitmap(width, height int, v uint8) *bitmap.Bitmap {
	b := bitmap.New(width, height)
	for i := range b.Pix {
		b.Pix[i] = v
	}
	return b
}

func TestSubtractDiff_Calculate(t *testing.T) {
	t.Run("NoDifference", func(t *testing.T) {
		result, err := NewSubtractDiff(ModeSubtract).Calculate(createTestBitmap(10, 10, 0), createTestBitmap(10, 10, 0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !result.Identical() {
			t.Errorf("Expected identical result, got channels %v", result.Channels)
		}
		if result.DiffAmount != 0.0 {
			t.Errorf("Expected DiffAmount to be 0.0, got %f", result.DiffAmount)
		}
	})

	t.Run("SingleChannelDifference", func(t *testing.T) {
		reference := createTestBitmap(10, 10, 0)
		reference.Set(3, 7, 0, 9, 0)
		candidate := createTestBitmap(10, 10, 0)

		result, err := NewSubtractDiff(ModeSubtract).Calculate(reference, candidate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([bitmap.Channels]int64{0, 1, 0}, result.Channels); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]uint8{0, 9, 0}, result.Image.At(3, 7)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if result.DiffAmount != 0.01 {
			t.Errorf("Expected DiffAmount to be 0.01, got %f", result.DiffAmount)
		}
	})

	t.Run("SubtractionSaturates", func(t *testing.T) {
		reference := createTestBitmap(4, 4, 10)
		candidate := createTestBitmap(4, 4, 200)

		result, err := NewSubtractDiff(ModeSubtract).Calculate(reference, candidate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !result.Identical() {
			t.Errorf("Expected saturated difference to be zero, got channels %v", result.Channels)
		}
	})

	t.Run("SubtractionIsOrderDependent", func(t *testing.T) {
		reference := createTestBitmap(4, 4, 200)
		candidate := createTestBitmap(4, 4, 10)

		result, err := NewSubtractDiff(ModeSubtract).Calculate(reference, candidate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([bitmap.Channels]int64{16, 16, 16}, result.Channels); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if result.Image.Pix[0] != 190 {
			t.Errorf("Expected difference 190, got %d", result.Image.Pix[0])
		}
	})

	t.Run("AbsoluteIsSymmetric", func(t *testing.T) {
		reference := createTestBitmap(4, 4, 10)
		candidate := createTestBitmap(4, 4, 200)

		result, err := NewSubtractDiff(ModeAbsolute).Calculate(reference, candidate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.DiffAmount != 1.0 {
			t.Errorf("Expected DiffAmount to be 1.0, got %f", result.DiffAmount)
		}
		if result.Image.Pix[0] != 190 {
			t.Errorf("Expected difference 190, got %d", result.Image.Pix[0])
		}
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		_, err := NewSubtractDiff(ModeSubtract).Calculate(createTestBitmap(10, 10, 0), createTestBitmap(10, 11, 0))
		if !errors.Is(err, ErrShapeMismatch) {
			t.Errorf("Expected ErrShapeMismatch, got %v", err)
		}
	})

	t.Run("FewerRowsThanWorkers", func(t *testing.T) {
		reference := createTestBitmap(3, 1, 5)
		candidate := createTestBitmap(3, 1, 5)
		candidate.Set(2, 0, 5, 5, 4)

		result, err := NewSubtractDiff(ModeSubtract).Calculate(reference, candidate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([bitmap.Channels]int64{0, 0, 1}, result.Channels); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		result, err := NewSubtractDiff(ModeSubtract).Calculate(createTestBitmap(0, 0, 0), createTestBitmap(0, 0, 0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Identical() || result.DiffAmount != 0.0 {
			t.Errorf("Expected empty bitmaps to be identical, got %+v", result)
		}
	})
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAbsolute, "subtract": ModeSubtract, "absolute": ModeAbsolute} {
		got, err := ParseMode(in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseMode("perceptual"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestNewSubtractDiffDefaultsToAbsolute(t *testing.T) {
	result, err := NewSubtractDiff("").Calculate(createTestBitmap(1, 1, 0), createTestBitmap(1, 1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Identical() {
		t.Error("Expected a brighter candidate to differ")
	}
}

func TestHighlight(t *testing.T) {
	reference := createTestBitmap(2, 1, 30)
	candidate := createTestBitmap(2, 1, 30)
	candidate.Set(1, 0, 0, 30, 30)

	result, err := NewSubtractDiff(ModeSubtract).Calculate(reference, candidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]uint8{180, 180, 180, 255, 0, 0}, Highlight(reference, result).Pix); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func BenchmarkSubtractDiff_Calculate(b *testing.B) {
	sd := NewSubtractDiff(ModeSubtract)
	reference := createTestBitmap(1920, 1080, 255)
	candidate := createTestBitmap(1920, 1080, 255)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = sd.Calculate(reference, candidate)
	}
}
