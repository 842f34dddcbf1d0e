package frame

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// paddedBuffer fills each visible pixel with (x, y, 7, 255) and the padding
// bytes with 0xEE.
func paddedBuffer(l Layout) []byte {
	buf := make([]byte, l.RowStride*l.Height)
	for i := range buf {
		buf[i] = 0xEE
	}
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			o := y*l.RowStride + x*l.PixelStride
			buf[o] = byte(x)
			buf[o+1] = byte(y)
			buf[o+2] = 7
			buf[o+3] = 255
		}
	}
	return buf
}

func TestDecodeCropsRowPadding(t *testing.T) {
	// 1088 pixels of row pitch for a 1080 wide display.
	l := Layout{Width: 1080, Height: 4, RowStride: 1088 * 4, PixelStride: 4}
	require.Equal(t, 32, RowPadding(l))

	img, err := Decode(paddedBuffer(l), l)
	require.NoError(t, err)
	require.Equal(t, 1080, img.Rect.Dx())
	require.Equal(t, 4, img.Rect.Dy())
	require.Equal(t, 1080*4, img.Stride)
	require.Len(t, img.Pix, 1080*4*4)

	require.Equal(t, color.RGBA{R: byte(1079 & 0xFF), G: 3, B: 7, A: 255}, img.RGBAAt(1079, 3))
	for i := 0; i < len(img.Pix); i += 4 {
		require.Equal(t, byte(7), img.Pix[i+2])
		require.Equal(t, byte(255), img.Pix[i+3])
	}
}

func TestDecodeUnpaddedReusesBuffer(t *testing.T) {
	l := Layout{Width: 3, Height: 2, RowStride: 12, PixelStride: 4}
	buf := paddedBuffer(l)

	img, err := Decode(buf, l)
	require.NoError(t, err)
	require.Equal(t, 3, img.Rect.Dx())
	require.Equal(t, &buf[0], &img.Pix[0])
}

func TestDecodeRejectsInconsistentLayouts(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		size   int
	}{
		{"zero width", Layout{Width: 0, Height: 2, RowStride: 0, PixelStride: 4}, 16},
		{"pixel stride", Layout{Width: 2, Height: 2, RowStride: 6, PixelStride: 3}, 12},
		{"negative padding", Layout{Width: 4, Height: 2, RowStride: 8, PixelStride: 4}, 32},
		{"partial pixel padding", Layout{Width: 2, Height: 2, RowStride: 10, PixelStride: 4}, 20},
		{"short buffer", Layout{Width: 2, Height: 2, RowStride: 8, PixelStride: 4}, 15},
		{"height overflow", Layout{Width: 1, Height: 1<<61 + 1, RowStride: 4, PixelStride: 4}, 16},
		{"width overflow", Layout{Width: math.MaxInt/4 + 1, Height: 1, RowStride: 4, PixelStride: 4}, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(make([]byte, tt.size), tt.layout)
			var de *DecodeError
			require.True(t, errors.As(err, &de), "got %v", err)
			require.Equal(t, tt.layout, de.Layout)
		})
	}
}

func TestDecodeAcceptsShortLastRow(t *testing.T) {
	l := Layout{Width: 2, Height: 2, RowStride: 16, PixelStride: 4}
	buf := paddedBuffer(l)[:16+8]

	img, err := Decode(buf, l)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 1, G: 1, B: 7, A: 255}, img.RGBAAt(1, 1))
}

func TestFromImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 14, 13))
	src.Set(11, 12, color.NRGBA{R: 200, A: 255})

	pix, l := FromImage(src)
	require.Equal(t, Layout{Width: 4, Height: 3, RowStride: 16, PixelStride: 4}, l)

	img, err := Decode(pix, l)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 200, A: 255}, img.RGBAAt(1, 2))

	data, err := EncodePNG(img)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, img.Rect, decoded.Bounds())
}
