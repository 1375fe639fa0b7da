package imageio

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient() *Image {
	img := New(4, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, [4]float32{float32(x) / 3, float32(y) / 2, 0.25, 1})
		}
	}
	return img
}

func assertImagesInDelta(t *testing.T, want, got *Image, delta float64) {
	t.Helper()
	require.Equal(t, want.Width, got.Width)
	require.Equal(t, want.Height, got.Height)
	for i := range want.Pix {
		require.InDelta(t, want.Pix[i], got.Pix[i], delta, "component %d", i)
	}
}

func TestFormatFromExt(t *testing.T) {
	tests := []struct {
		ext  string
		want Format
	}{
		{".png", PNG},
		{"PNG", PNG},
		{".jpeg", JPEG},
		{".tif", TIFF},
		{".TIFF", TIFF},
		{"bmp", BMP},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got, err := FormatFromExt(tt.ext)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := FormatFromExt(".exr")
	assert.Error(t, err)
}

func TestSaveOpenRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		delta float64
	}{
		{"out.png", 1e-4},
		{"out.tiff", 1e-4},
		{"out.bmp", 1.0 / 255},
	}
	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, Save(gradient(), path))

			got, err := Open(path, DecodeOptions{})
			require.NoError(t, err)
			assertImagesInDelta(t, gradient(), got, tt.delta)
		})
	}
}

func TestWriteClampsOutOfRange(t *testing.T) {
	img := New(2, 1)
	img.Set(0, 0, [4]float32{-1, 5, 0.5, 1})
	img.Set(1, 0, [4]float32{2, 0, 0, 1})

	var buf bytes.Buffer
	require.NoError(t, Write(img, &buf, PNG))
	got, err := Decode(&buf, DecodeOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0, got.At(0, 0)[0], 1e-6)
	assert.InDelta(t, 1, got.At(0, 0)[1], 1e-6)
	assert.InDelta(t, 1, got.At(1, 0)[0], 1e-6)
}

func TestFromImageOptions(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 188, A: 255})

	plain := FromImage(src, DecodeOptions{})
	assert.InDelta(t, 1, plain.At(0, 0)[0], 1e-6)
	assert.InDelta(t, 188.0/255, plain.At(0, 0)[2], 1e-6)

	hdr := FromImage(src, DecodeOptions{Linearize: true, Gain: 100})
	assert.InDelta(t, 100, hdr.At(0, 0)[0], 1e-3)
	assert.InDelta(t, 0, hdr.At(0, 0)[1], 1e-6)
	assert.InDelta(t, 100*SRGBToLinear(188.0/255), hdr.At(0, 0)[2], 1e-3)
	assert.Equal(t, float32(1), hdr.At(0, 0)[3])
}

func TestSRGBToLinear(t *testing.T) {
	assert.Equal(t, float32(0), SRGBToLinear(0))
	assert.InDelta(t, 1, SRGBToLinear(1), 1e-6)
	assert.InDelta(t, 0.04045/12.92, SRGBToLinear(0.04045), 1e-7)
	assert.InDelta(t, 0.214, SRGBToLinear(0.5), 1e-3)
}

func TestFlipY(t *testing.T) {
	img := gradient()
	flipped := img.FlipY()
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			assert.Equal(t, img.At(x, y), flipped.At(x, img.Height-1-y))
		}
	}
	assertImagesInDelta(t, img, flipped.FlipY(), 0)
}
