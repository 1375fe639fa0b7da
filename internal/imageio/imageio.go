// Package imageio converts between image files and the float RGBA buffers
// the render devices work with.
package imageio

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is an encoding supported for reading and writing.
type Format int

const (
	None Format = iota
	PNG
	JPEG
	TIFF
	BMP
)

// FormatFromExt maps a file extension, with or without the dot, to a Format.
func FormatFromExt(ext string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	}
	return None, fmt.Errorf("unsupported image extension %q", ext)
}

// Image is a float RGBA buffer, row 0 at the top.
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// New allocates a black opaque image.
func New(w, h int) *Image {
	img := &Image{Width: w, Height: h, Pix: make([]float32, w*h*4)}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 1
	}
	return img
}

// At returns the RGBA value of pixel (x, y).
func (img *Image) At(x, y int) [4]float32 {
	i := (y*img.Width + x) * 4
	return [4]float32{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
}

// Set stores the RGBA value of pixel (x, y).
func (img *Image) Set(x, y int, c [4]float32) {
	i := (y*img.Width + x) * 4
	copy(img.Pix[i:i+4], c[:])
}

// FlipY returns a copy with the rows in reverse order, converting between
// top-down image files and bottom-up texture memory.
func (img *Image) FlipY() *Image {
	out := &Image{Width: img.Width, Height: img.Height, Pix: make([]float32, len(img.Pix))}
	row := img.Width * 4
	for y := 0; y < img.Height; y++ {
		copy(out.Pix[(img.Height-1-y)*row:(img.Height-y)*row], img.Pix[y*row:(y+1)*row])
	}
	return out
}

// DecodeOptions control the conversion of an encoded image to floats.
type DecodeOptions struct {
	// Linearize removes the sRGB transfer curve.
	Linearize bool
	// Gain scales RGB after linearization. Zero means 1.
	Gain float32
}

// Open decodes the image file at path.
func Open(path string, opts DecodeOptions) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Decode reads any registered format.
func Decode(r io.Reader, opts DecodeOptions) (*Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(src, opts), nil
}

// FromImage converts src to floats in [0, 1], then applies opts.
func FromImage(src image.Image, opts DecodeOptions) *Image {
	b := src.Bounds()
	gain := opts.Gain
	if gain == 0 {
		gain = 1
	}
	out := New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			rgb := [3]float32{float32(c.R) / 0xffff, float32(c.G) / 0xffff, float32(c.B) / 0xffff}
			for i := range rgb {
				if opts.Linearize {
					rgb[i] = SRGBToLinear(rgb[i])
				}
				rgb[i] *= gain
			}
			out.Set(x, y, [4]float32{rgb[0], rgb[1], rgb[2], float32(c.A) / 0xffff})
		}
	}
	return out
}

// ToImage clamps to [0, 1] and quantizes to 16 bits per channel.
func (img *Image) ToImage() *image.NRGBA64 {
	dst := image.NewNRGBA64(image.Rect(0, 0, img.Width, img.Height))
	q := func(v float32) uint16 {
		return uint16(math32.Round(clamp01(v) * 0xffff))
	}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.At(x, y)
			dst.SetNRGBA64(x, y, color.NRGBA64{R: q(c[0]), G: q(c[1]), B: q(c[2]), A: q(c[3])})
		}
	}
	return dst
}

// Save writes img to path, with the format taken from the extension.
func Save(img *Image, path string) error {
	f, err := FormatFromExt(filepath.Ext(path))
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	if err := Write(img, bw, f); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// Write encodes img in format f.
func Write(img *Image, w io.Writer, f Format) error {
	im := img.ToImage()
	switch f {
	case PNG:
		return png.Encode(w, im)
	case JPEG:
		return jpeg.Encode(w, im, &jpeg.Options{Quality: 95})
	case TIFF:
		return tiff.Encode(w, im, &tiff.Options{Compression: tiff.Deflate})
	case BMP:
		rgba := image.NewRGBA(im.Bounds())
		draw.Draw(rgba, rgba.Bounds(), im, image.Point{}, draw.Src)
		return bmp.Encode(w, rgba)
	default:
		return fmt.Errorf("unsupported image format %d", f)
	}
}

// SRGBToLinear is the IEC 61966-2-1 decoding curve.
func SRGBToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math32.Pow((v+0.055)/1.055, 2.4)
}

func clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
