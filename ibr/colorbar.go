package ibr

import (
	"image"
	"image/color"
)

// ColorBarBackground fills a color bar when the identity table is active.
var ColorBarBackground = color.RGBA{R: 236, G: 236, B: 236, A: 0xff}

// ColorBar renders the active table as a horizontal bar of size w×h, one
// block per control point. When the last position is 1.0 the blocks are
// shifted left so that the final color stays visible.
func (t *LookupTable) ColorBar(w, h int) *RGBImage {
	img := NewRGBImage(image.Rect(0, 0, w, h))
	img.Fill(ColorBarBackground)

	e := t.activeEntry()
	if e.IsIdentity() {
		return img
	}

	n := len(e.Colors)
	xs := append([]float64(nil), e.Positions...)
	if xs[n-1] == 1.0 {
		const squeeze = 0.1
		for i := range xs {
			xs[i] -= float64(i) * squeeze / float64(n)
		}
	}

	for i, c := range e.Colors {
		next := 1.0
		if i < n-1 {
			next = xs[i+1]
		}
		x0 := max(int(float64(w)*xs[i]), 0)
		x1 := min(int(float64(w)*next), w)
		for y := 0; y < h; y++ {
			for x := x0; x < x1; x++ {
				img.SetRGB(x, y, c.R, c.G, c.B)
			}
		}
	}
	return img
}
