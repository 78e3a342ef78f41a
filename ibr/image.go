package ibr

import (
	"image"
	"image/color"
	"math"
)

// RGBImage is a 3-channel, 8-bit image. It holds color layers, luminance
// layers (ambient, diffuse and specular packed one per channel) and packed
// value layers (a 24-bit scalar stored as R<<16 | G<<8 | B).
type RGBImage struct {
	// Pix holds the image's pixels in R, G, B order.
	Pix []uint8
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	// Rect is the image's bounds.
	Rect image.Rectangle
}

// NewRGBImage creates a new black RGB image with the given bounds.
func NewRGBImage(r image.Rectangle) *RGBImage {
	w, h := r.Dx(), r.Dy()
	return &RGBImage{
		Pix:    make([]uint8, w*h*3),
		Stride: w * 3,
		Rect:   r,
	}
}

// Bounds returns the domain for which At can return non-zero color.
func (img *RGBImage) Bounds() image.Rectangle {
	return img.Rect
}

// ColorModel returns the Image's color model.
func (img *RGBImage) ColorModel() color.Model {
	return color.RGBAModel
}

// At returns the color of the pixel at (x, y).
func (img *RGBImage) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(img.Rect)) {
		return color.RGBA{}
	}
	r, g, b := img.RGBAt(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// PixOffset returns the index of the first element of Pix for pixel (x, y).
func (img *RGBImage) PixOffset(x, y int) int {
	return (y-img.Rect.Min.Y)*img.Stride + (x-img.Rect.Min.X)*3
}

// RGBAt returns the channels of the pixel at (x, y).
func (img *RGBImage) RGBAt(x, y int) (r, g, b uint8) {
	i := img.PixOffset(x, y)
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

// SetRGB sets the pixel at (x, y). Points outside the bounds are ignored.
func (img *RGBImage) SetRGB(x, y int, r, g, b uint8) {
	if !(image.Point{x, y}.In(img.Rect)) {
		return
	}
	i := img.PixOffset(x, y)
	img.Pix[i] = r
	img.Pix[i+1] = g
	img.Pix[i+2] = b
}

// Fill sets every pixel to c.
func (img *RGBImage) Fill(c color.RGBA) {
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		i := img.PixOffset(img.Rect.Min.X, y)
		for x := 0; x < img.Rect.Dx(); x++ {
			img.Pix[i] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			i += 3
		}
	}
}

// Clone returns a deep copy of img with the same bounds.
func (img *RGBImage) Clone() *RGBImage {
	out := NewRGBImage(img.Rect)
	n := img.Rect.Dx() * 3
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		copy(out.Pix[out.PixOffset(img.Rect.Min.X, y):][:n], img.Pix[img.PixOffset(img.Rect.Min.X, y):][:n])
	}
	return out
}

// DepthImage is a single-channel depth buffer. Values greater than 255 mark
// pixels where no surface is present.
type DepthImage struct {
	// Pix holds one depth value per pixel.
	Pix []float64
	// Stride is the Pix stride (in elements) between vertically adjacent pixels.
	Stride int
	// Rect is the image's bounds.
	Rect image.Rectangle
}

// NewDepthImage creates a new zero-depth image with the given bounds.
func NewDepthImage(r image.Rectangle) *DepthImage {
	w, h := r.Dx(), r.Dy()
	return &DepthImage{
		Pix:    make([]float64, w*h),
		Stride: w,
		Rect:   r,
	}
}

// Bounds returns the domain for which At can return non-zero color.
func (img *DepthImage) Bounds() image.Rectangle {
	return img.Rect
}

// ColorModel returns the Image's color model.
func (img *DepthImage) ColorModel() color.Model {
	return color.GrayModel
}

// At returns the depth at (x, y) as a gray value clamped to [0, 255].
func (img *DepthImage) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(img.Rect)) {
		return color.Gray{}
	}
	d := img.DepthAt(x, y)
	switch {
	case math.IsNaN(d) || d < 0:
		return color.Gray{}
	case d > 255:
		return color.Gray{Y: 255}
	}
	return color.Gray{Y: uint8(d)}
}

// PixOffset returns the index of the element of Pix for pixel (x, y).
func (img *DepthImage) PixOffset(x, y int) int {
	return (y-img.Rect.Min.Y)*img.Stride + (x - img.Rect.Min.X)
}

// DepthAt returns the depth at (x, y).
func (img *DepthImage) DepthAt(x, y int) float64 {
	return img.Pix[img.PixOffset(x, y)]
}

// SetDepth sets the depth at (x, y). Points outside the bounds are ignored.
func (img *DepthImage) SetDepth(x, y int, d float64) {
	if !(image.Point{x, y}.In(img.Rect)) {
		return
	}
	img.Pix[img.PixOffset(x, y)] = d
}

// ToRGBImage converts any image to an RGBImage. An *RGBImage is returned
// unchanged; alpha is discarded without un-premultiplying, so packed value
// images must be opaque.
func ToRGBImage(src image.Image) *RGBImage {
	if img, ok := src.(*RGBImage); ok {
		return img
	}
	b := src.Bounds()
	out := NewRGBImage(b)
	switch s := src.(type) {
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				i := s.PixOffset(x, y)
				out.SetRGB(x, y, s.Pix[i], s.Pix[i+1], s.Pix[i+2])
			}
		}
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				i := s.PixOffset(x, y)
				out.SetRGB(x, y, s.Pix[i], s.Pix[i+1], s.Pix[i+2])
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.RGBAModel.Convert(src.At(x, y)).(color.RGBA)
				out.SetRGB(x, y, c.R, c.G, c.B)
			}
		}
	}
	return out
}

// ToDepthImage converts any image to a DepthImage. A *DepthImage is returned
// unchanged. Gray images keep their raw sample value (0-255 or 0-65535);
// other images use their first channel in 8-bit range.
func ToDepthImage(src image.Image) *DepthImage {
	if img, ok := src.(*DepthImage); ok {
		return img
	}
	b := src.Bounds()
	out := NewDepthImage(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var d float64
			switch s := src.(type) {
			case *image.Gray:
				d = float64(s.GrayAt(x, y).Y)
			case *image.Gray16:
				d = float64(s.Gray16At(x, y).Y)
			case *RGBImage:
				r, _, _ := s.RGBAt(x, y)
				d = float64(r)
			default:
				r, _, _, _ := src.At(x, y).RGBA()
				d = float64(r >> 8)
			}
			out.SetDepth(x, y, d)
		}
	}
	return out
}

// DepthFromValues builds a DepthImage of size w×h from row-major values.
func DepthFromValues(w, h int, values []float64) *DepthImage {
	img := NewDepthImage(image.Rect(0, 0, w, h))
	copy(img.Pix, values)
	return img
}

// NoSurface is a depth value that marks a pixel as empty background.
var NoSurface = float64(math.Inf(1))
