// Package frame normalizes raw captured pixel buffers into tightly packed
// RGBA bitmaps.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// BytesPerPixel is the only pixel stride supported (RGBA_8888).
const BytesPerPixel = 4

// Layout describes how a frame buffer is laid out. Strides are in bytes.
type Layout struct {
	Width       int
	Height      int
	RowStride   int
	PixelStride int
}

// RowPadding is the number of trailing bytes at the end of each row.
func RowPadding(l Layout) int {
	return l.RowStride - l.PixelStride*l.Width
}

// DecodeError reports a buffer that does not match its declared layout.
type DecodeError struct {
	Layout Layout
	Len    int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %dx%d (row stride %d, pixel stride %d, %d bytes): %s",
		e.Layout.Width, e.Layout.Height, e.Layout.RowStride, e.Layout.PixelStride, e.Len, e.Reason)
}

// Decode turns buf into a bitmap of exactly l.Width x l.Height with no row
// padding. An unpadded buffer is reused as the bitmap's pixel slice; a padded
// one is viewed at its padded width, cropped at the origin, and copied.
func Decode(buf []byte, l Layout) (*image.RGBA, error) {
	fail := func(reason string) (*image.RGBA, error) {
		return nil, &DecodeError{Layout: l, Len: len(buf), Reason: reason}
	}

	if l.Width <= 0 || l.Height <= 0 {
		return fail("non-positive dimensions")
	}
	if l.PixelStride != BytesPerPixel {
		return fail("unsupported pixel stride")
	}
	if l.Width > math.MaxInt/l.PixelStride {
		return fail("row size overflows")
	}
	padding := RowPadding(l)
	if padding < 0 {
		return fail("row stride shorter than a row of pixels")
	}
	if padding%l.PixelStride != 0 {
		return fail("row padding is not a whole number of pixels")
	}
	if l.Height-1 > (math.MaxInt-l.PixelStride*l.Width)/l.RowStride {
		return fail("frame size overflows")
	}
	if need := l.RowStride*(l.Height-1) + l.PixelStride*l.Width; len(buf) < need {
		return fail(fmt.Sprintf("buffer too short, need %d", need))
	}

	if padding == 0 {
		n := l.Width * l.Height * BytesPerPixel
		return &image.RGBA{
			Pix:    buf[:n:n],
			Stride: l.RowStride,
			Rect:   image.Rect(0, 0, l.Width, l.Height),
		}, nil
	}

	paddedWidth := l.Width + padding/l.PixelStride
	padded := &image.RGBA{
		Pix:    buf,
		Stride: l.RowStride,
		Rect:   image.Rect(0, 0, paddedWidth, l.Height),
	}
	crop := image.Rect(0, 0, l.Width, l.Height)
	out := image.NewRGBA(crop)
	draw.Draw(out, crop, padded, image.Point{}, draw.Src)
	return out, nil
}

// FromImage flattens img into an unpadded RGBA frame buffer.
func FromImage(img image.Image) ([]byte, Layout) {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != b.Dx()*BytesPerPixel {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}
	return rgba.Pix, Layout{
		Width:       rgba.Rect.Dx(),
		Height:      rgba.Rect.Dy(),
		RowStride:   rgba.Stride,
		PixelStride: BytesPerPixel,
	}
}

// EncodePNG encodes a bitmap losslessly.
func EncodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
