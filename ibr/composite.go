package ibr

import (
	"fmt"
	"image"
	"image/color"
)

// DefaultBackground is the color of pixels where no layer has a surface.
var DefaultBackground = color.RGBA{R: 155, G: 155, B: 170, A: 0xff}

// backgroundDepth is the depth above which a pixel is treated as empty.
const backgroundDepth = 255

// Compositor merges an ordered sequence of layers into one RGB frame.
type Compositor struct {
	lut        *LookupTable
	background color.RGBA
}

// NewCompositor creates a compositor with no lookup table and the default
// background color.
func NewCompositor() *Compositor {
	return &Compositor{background: DefaultBackground}
}

// SetLookupTable sets the table used to recolor layer colors. A nil table
// disables recoloring.
func (c *Compositor) SetLookupTable(lut *LookupTable) {
	c.lut = lut
}

// LookupTable returns the current lookup table.
func (c *Compositor) LookupTable() *LookupTable {
	return c.lut
}

// SetBackgroundColor sets the color of empty pixels. Alpha is ignored.
func (c *Compositor) SetBackgroundColor(bg color.RGBA) {
	c.background = bg
}

// BackgroundColor returns the color of empty pixels.
func (c *Compositor) BackgroundColor() color.RGBA {
	return c.background
}

// Ambient returns the ambient term of a luminance image in all three channels.
func (c *Compositor) Ambient(lum *RGBImage) *RGBImage {
	return broadcastChannel(lum, 0)
}

// Diffuse returns the diffuse term of a luminance image in all three channels.
func (c *Compositor) Diffuse(lum *RGBImage) *RGBImage {
	return broadcastChannel(lum, 1)
}

// Specular returns the specular term of a luminance image in all three channels.
func (c *Compositor) Specular(lum *RGBImage) *RGBImage {
	return broadcastChannel(lum, 2)
}

func broadcastChannel(src *RGBImage, ch int) *RGBImage {
	out := NewRGBImage(src.Rect)
	for y := src.Rect.Min.Y; y < src.Rect.Max.Y; y++ {
		si := src.PixOffset(src.Rect.Min.X, y)
		di := out.PixOffset(src.Rect.Min.X, y)
		for x := 0; x < src.Rect.Dx(); x++ {
			v := src.Pix[si+ch]
			out.Pix[di] = v
			out.Pix[di+1] = v
			out.Pix[di+2] = v
			si += 3
			di += 3
		}
	}
	return out
}

// modulate scales a color channel by a diffuse term in [0, 255].
func modulate(c, diffuse uint8) uint8 {
	return uint8(float64(c) * (float64(diffuse) / 255.0))
}

// layerPlane is one layer prepared for compositing.
type layerPlane struct {
	color   *RGBImage
	diffuse *RGBImage // nil without luminance
	depth   *DepthImage
}

// pixel returns the layer's shaded color at column col of row row,
// relative to each image's origin.
func (p *layerPlane) pixel(col, row int) (r, g, b uint8) {
	r, g, b = p.color.RGBAt(p.color.Rect.Min.X+col, p.color.Rect.Min.Y+row)
	if p.diffuse != nil {
		d, _, _ := p.diffuse.RGBAt(p.diffuse.Rect.Min.X+col, p.diffuse.Rect.Min.Y+row)
		r, g, b = modulate(r, d), modulate(g, d), modulate(b, d)
	}
	return r, g, b
}

func (p *layerPlane) depthAt(col, row int) float64 {
	return p.depth.DepthAt(p.depth.Rect.Min.X+col, p.depth.Rect.Min.Y+row)
}

// Render composites layers into a new image.
//
// The first layer's color, shaded by its diffuse luminance when present,
// is the starting frame. Without hasDepth that frame is returned as is.
// With hasDepth every following layer, in order, replaces the pixels where
// its depth is strictly less than the nearest depth seen so far; ties keep
// the earlier layer. Pixels whose final depth exceeds 255 are set to the
// background color.
//
// All images of all layers must have the size of the first layer's color
// image, otherwise a *DimensionMismatchError is returned before any pixel
// is written.
func (c *Compositor) Render(layers []*LayerSpec, hasDepth bool) (*RGBImage, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}
	if err := checkLayers(layers, hasDepth); err != nil {
		return nil, err
	}

	planes := make([]layerPlane, len(layers))
	for i, l := range layers {
		col, err := l.Color1(c.lut)
		if err != nil {
			return nil, fmt.Errorf("ibr: layer %d: %w", i, err)
		}
		planes[i].color = col
		if lum, ok := l.Luminance(); ok {
			planes[i].diffuse = c.Diffuse(lum)
		}
		if d, ok := l.Depth(); ok {
			planes[i].depth = d
		}
	}

	size := planes[0].color.Rect.Size()
	out := NewRGBImage(image.Rectangle{Max: size})
	bg := c.background

	ParallelFor(size.Y, func(row int) {
		for col := 0; col < size.X; col++ {
			r, g, b := planes[0].pixel(col, row)
			if hasDepth {
				depth := planes[0].depthAt(col, row)
				for i := 1; i < len(planes); i++ {
					if d := planes[i].depthAt(col, row); d < depth {
						r, g, b = planes[i].pixel(col, row)
						depth = d
					}
				}
				if depth > backgroundDepth {
					r, g, b = bg.R, bg.G, bg.B
				}
			}
			out.SetRGB(col, row, r, g, b)
		}
	})
	return out, nil
}

// checkLayers verifies that every image has the size of the first color
// image and, when hasDepth is set, that every layer has a depth image.
func checkLayers(layers []*LayerSpec, hasDepth bool) error {
	colors := layers[0].Colors()
	if len(colors) == 0 {
		return fmt.Errorf("ibr: layer 0: %w", ErrNoColorImage)
	}
	want := colors[0].Rect.Size()

	check := func(layer int, field string, r image.Rectangle) error {
		if got := r.Size(); got != want {
			return &DimensionMismatchError{Layer: layer, Field: field, Want: want, Got: got}
		}
		return nil
	}

	for i, l := range layers {
		if len(l.Colors()) == 0 {
			return fmt.Errorf("ibr: layer %d: %w", i, ErrNoColorImage)
		}
		for _, img := range l.Colors() {
			if err := check(i, "color", img.Rect); err != nil {
				return err
			}
		}
		for _, img := range l.Values() {
			if err := check(i, "value", img.Rect); err != nil {
				return err
			}
		}
		if lum, ok := l.Luminance(); ok {
			if err := check(i, "luminance", lum.Rect); err != nil {
				return err
			}
		}
		d, ok := l.Depth()
		if ok {
			if err := check(i, "depth", d.Rect); err != nil {
				return err
			}
		} else if hasDepth {
			return fmt.Errorf("ibr: layer %d: %w", i, ErrMissingDepth)
		}
	}
	return nil
}
