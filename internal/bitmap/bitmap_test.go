package bitmap_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"image-set-comparator/internal/bitmap"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buffer.Bytes()
}

func TestDecode(t *testing.T) {
	t.Run("RGB", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 2, 1))
		img.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
		img.Set(1, 0, color.RGBA{R: 4, G: 5, B: 6, A: 255})

		b, err := bitmap.Decode(bytes.NewReader(encode(t, img)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(bitmap.Shape{Height: 1, Width: 2, Channels: 3}, b.Shape); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]uint8{1, 2, 3, 4, 5, 6}, b.Pix); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("GrayExpandsToThreeChannels", func(t *testing.T) {
		img := image.NewGray(image.Rect(0, 0, 2, 2))
		img.SetGray(1, 1, color.Gray{Y: 200})

		b, err := bitmap.Decode(bytes.NewReader(encode(t, img)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(bitmap.Shape{Height: 2, Width: 2, Channels: 3}, b.Shape); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]uint8{200, 200, 200}, b.At(1, 1)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("AlphaIsDropped", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 7})

		b, err := bitmap.Decode(bytes.NewReader(encode(t, img)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]uint8{10, 20, 30}, b.Pix); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("SixteenBitKeepsHighByte", func(t *testing.T) {
		img := image.NewRGBA64(image.Rect(0, 0, 1, 1))
		img.SetRGBA64(0, 0, color.RGBA64{R: 0x1234, G: 0xabcd, B: 0x00ff, A: 0xffff})

		b, err := bitmap.Decode(bytes.NewReader(encode(t, img)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]uint8{0x12, 0xab, 0x00}, b.Pix); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("GrayAndRGBCompareEqual", func(t *testing.T) {
		gray := image.NewGray(image.Rect(0, 0, 3, 3))
		rgb := image.NewRGBA(image.Rect(0, 0, 3, 3))
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				v := uint8(x*40 + y)
				gray.SetGray(x, y, color.Gray{Y: v})
				rgb.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
			}
		}

		g, err := bitmap.Decode(bytes.NewReader(encode(t, gray)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c, err := bitmap.Decode(bytes.NewReader(encode(t, rgb)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(g, c); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("NotPNG", func(t *testing.T) {
		_, err := bitmap.Decode(bytes.NewReader([]byte("GIF89a")))
		if !errors.Is(err, bitmap.ErrDecode) {
			t.Errorf("expected ErrDecode, got %v", err)
		}
	})
}

func TestFromImage(t *testing.T) {
	t.Run("Paletted", func(t *testing.T) {
		palette := color.Palette{color.RGBA{A: 255}, color.NRGBA{R: 9, G: 8, B: 7, A: 3}}
		img := image.NewPaletted(image.Rect(0, 0, 2, 1), palette)
		img.SetColorIndex(1, 0, 1)

		b := bitmap.FromImage(img)
		if diff := cmp.Diff([]uint8{0, 0, 0, 9, 8, 7}, b.Pix); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("OffsetBounds", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(5, 5, 7, 6))
		img.Set(6, 5, color.RGBA{R: 1, G: 1, B: 1, A: 255})

		b := bitmap.FromImage(img)
		if diff := cmp.Diff([]uint8{0, 0, 0, 1, 1, 1}, b.Pix); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Generic", func(t *testing.T) {
		img := image.NewCMYK(image.Rect(0, 0, 1, 1))
		img.Set(0, 0, color.CMYK{K: 255})

		b := bitmap.FromImage(img)
		if diff := cmp.Diff([]uint8{0, 0, 0}, b.Pix); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}

func TestImage(t *testing.T) {
	b := bitmap.New(1, 1)
	b.Set(0, 0, 1, 2, 3)

	if diff := cmp.Diff([]uint8{1, 2, 3, 255}, b.Image().Pix); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
