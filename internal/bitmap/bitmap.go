// Package bitmap decodes PNG files into the 3-channel, 8-bit layout the
// comparator works on.
package bitmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

// Channels is the number of interleaved samples per pixel (R, G, B).
const Channels = 3

var ErrDecode = errors.New("failed to decode image")

// Shape is the (height, width, channel count) of a bitmap.
type Shape struct {
	Height   int
	Width    int
	Channels int
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

type Bitmap struct {
	Shape Shape
	// Pix holds Height*Width*Channels samples, row-major, interleaved.
	Pix []uint8
}

func New(width int, height int) *Bitmap {
	return &Bitmap{
		Shape: Shape{Height: height, Width: width, Channels: Channels},
		Pix:   make([]uint8, width*height*Channels),
	}
}

// Decode reads a PNG stream. Grayscale is expanded to three channels, alpha
// is discarded without premultiplying and 16-bit samples keep their high byte.
func Decode(r io.Reader) (*Bitmap, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return FromImage(img), nil
}

func FromImage(img image.Image) *Bitmap {
	bounds := img.Bounds()
	b := New(bounds.Dx(), bounds.Dy())

	switch src := img.(type) {
	case *image.NRGBA:
		b.copyStride(src.Pix, src.Stride, src.PixOffset(bounds.Min.X, bounds.Min.Y), 4, 1)
	case *image.RGBA:
		// PNG truecolor without alpha decodes to an opaque RGBA.
		b.copyStride(src.Pix, src.Stride, src.PixOffset(bounds.Min.X, bounds.Min.Y), 4, 1)
	case *image.NRGBA64:
		b.copyStride(src.Pix, src.Stride, src.PixOffset(bounds.Min.X, bounds.Min.Y), 8, 2)
	case *image.RGBA64:
		b.copyStride(src.Pix, src.Stride, src.PixOffset(bounds.Min.X, bounds.Min.Y), 8, 2)
	case *image.Gray:
		b.copyGray(src.Pix, src.Stride, src.PixOffset(bounds.Min.X, bounds.Min.Y), 1)
	case *image.Gray16:
		b.copyGray(src.Pix, src.Stride, src.PixOffset(bounds.Min.X, bounds.Min.Y), 2)
	case *image.Paletted:
		palette := make([][Channels]uint8, len(src.Palette))
		for i, c := range src.Palette {
			palette[i] = straightRGB(c)
		}
		for y := 0; y < b.Shape.Height; y++ {
			row := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			for x := 0; x < b.Shape.Width; x++ {
				var rgb [Channels]uint8
				if index := int(src.Pix[row+x]); index < len(palette) {
					rgb = palette[index]
				}
				copy(b.Pix[(y*b.Shape.Width+x)*Channels:], rgb[:])
			}
		}
	default:
		dst := image.NewNRGBA(image.Rect(0, 0, b.Shape.Width, b.Shape.Height))
		xdraw.Draw(dst, dst.Bounds(), img, bounds.Min, xdraw.Src)
		b.copyStride(dst.Pix, dst.Stride, 0, 4, 1)
	}

	return b
}

// copyStride copies the first three samples of every pixel, taking the high
// byte when a sample is sampleSize bytes wide.
func (b *Bitmap) copyStride(pix []uint8, stride int, offset int, pixelSize int, sampleSize int) {
	for y := 0; y < b.Shape.Height; y++ {
		row := offset + y*stride
		for x := 0; x < b.Shape.Width; x++ {
			src := row + x*pixelSize
			dst := (y*b.Shape.Width + x) * Channels
			for c := 0; c < Channels; c++ {
				b.Pix[dst+c] = pix[src+c*sampleSize]
			}
		}
	}
}

func (b *Bitmap) copyGray(pix []uint8, stride int, offset int, sampleSize int) {
	for y := 0; y < b.Shape.Height; y++ {
		row := offset + y*stride
		for x := 0; x < b.Shape.Width; x++ {
			v := pix[row+x*sampleSize]
			dst := (y*b.Shape.Width + x) * Channels
			b.Pix[dst] = v
			b.Pix[dst+1] = v
			b.Pix[dst+2] = v
		}
	}
}

func straightRGB(c color.Color) [Channels]uint8 {
	switch v := c.(type) {
	case color.NRGBA:
		return [Channels]uint8{v.R, v.G, v.B}
	case color.RGBA:
		return [Channels]uint8{v.R, v.G, v.B}
	case color.Gray:
		return [Channels]uint8{v.Y, v.Y, v.Y}
	default:
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		return [Channels]uint8{n.R, n.G, n.B}
	}
}

// At returns the samples of the pixel at (x, y).
func (b *Bitmap) At(x int, y int) []uint8 {
	i := (y*b.Shape.Width + x) * Channels
	return b.Pix[i : i+Channels]
}

func (b *Bitmap) Set(x int, y int, r uint8, g uint8, bl uint8) {
	i := (y*b.Shape.Width + x) * Channels
	b.Pix[i] = r
	b.Pix[i+1] = g
	b.Pix[i+2] = bl
}

// Image returns an opaque NRGBA copy suitable for encoding.
func (b *Bitmap) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Shape.Width, b.Shape.Height))
	for i, j := 0, 0; i < len(b.Pix); i, j = i+Channels, j+4 {
		img.Pix[j] = b.Pix[i]
		img.Pix[j+1] = b.Pix[i+1]
		img.Pix[j+2] = b.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
