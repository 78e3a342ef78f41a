package ibrstore

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrjoshuak/go-ibr/ibr"
	"github.com/mrjoshuak/go-ibr/internal/npy"
)

// gradient is a color image whose pixels all differ.
func gradient(w, h int) *ibr.RGBImage {
	img := ibr.NewRGBImage(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGB(x, y, uint8(16*x), uint8(16*y), uint8(x+y))
		}
	}
	return img
}

func TestLosslessRoundTrip(t *testing.T) {
	src := gradient(8, 8)
	for _, ext := range []string{".png", ".bmp", ".tif", ".tiff", ".j2k", ".npy", ".npz"} {
		t.Run(ext, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeWriter(&buf, src, ext))

			img, err := DecodeReader(&buf, ext)
			require.NoError(t, err)
			got := ibr.ToRGBImage(img)
			require.Equal(t, src.Rect.Size(), got.Rect.Size())
			for y := range 8 {
				for x := range 8 {
					require.Equal(t, src.At(x, y), got.At(got.Rect.Min.X+x, got.Rect.Min.Y+y), "pixel %d,%d", x, y)
				}
			}
		})
	}
}

func TestJPEGRoundTrip(t *testing.T) {
	src := ibr.NewRGBImage(image.Rect(0, 0, 16, 16))
	src.Fill(color.RGBA{R: 128, G: 128, B: 128})

	var buf bytes.Buffer
	require.NoError(t, EncodeWriter(&buf, src, "jpg"))
	img, err := DecodeReader(&buf, "JPEG")
	require.NoError(t, err)
	require.Equal(t, src.Rect, img.Bounds())

	r, _, _, _ := img.At(5, 5).RGBA()
	require.InDelta(t, 128, r>>8, 2)
}

func TestDepthArrays(t *testing.T) {
	depth := ibr.DepthFromValues(2, 2, []float64{0.5, 1, 254, 1e6})
	for _, ext := range []string{".npy", ".npz"} {
		var buf bytes.Buffer
		require.NoError(t, EncodeWriter(&buf, depth, ext))
		img, err := DecodeReader(&buf, ext)
		require.NoError(t, err)
		require.Equal(t, depth, img, ext)
	}
}

// float64 depth arrays keep their precision through decoding and the
// depth test.
func TestFloat64DepthComposite(t *testing.T) {
	f8 := func(d float64) image.Image {
		var buf bytes.Buffer
		require.NoError(t, npy.Encode(&buf, &npy.Array{DType: npy.Float64, Shape: []int{1, 2}, Data: []float64{d, d}}))
		img, err := DecodeReader(&buf, ".npy")
		require.NoError(t, err)
		return img
	}

	s := NewMemStore()
	s.SetType("field", "depth", ibr.ImageDepth)
	s.Add(ibr.Query{"layer": "a", "field": "rgb"}, solid(2, 1, color.RGBA{R: 255}))
	s.Add(ibr.Query{"layer": "a", "field": "depth"}, f8(1.0000000001))
	s.Add(ibr.Query{"layer": "b", "field": "rgb"}, solid(2, 1, color.RGBA{B: 255}))
	s.Add(ibr.Query{"layer": "b", "field": "depth"}, f8(1))
	s.Add(ibr.Query{"layer": "c", "field": "rgb"}, solid(2, 1, color.RGBA{G: 255}))
	s.Add(ibr.Query{"layer": "c", "field": "depth"}, f8(255.000001))

	load := func(name string) *ibr.LayerSpec {
		l := ibr.NewLayerSpec()
		l.AddToBaseQuery(ibr.Query{"layer": name})
		l.AddQuery(ibr.ImageRGB, "field", "rgb")
		l.AddQuery(s.DetermineType("field", "depth"), "field", "depth")
		require.NoError(t, l.LoadImages(context.Background(), s))
		return l
	}

	out, err := ibr.NewCompositor().Render([]*ibr.LayerSpec{load("a"), load("b")}, true)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{B: 255, A: 0xff}, out.At(0, 0))

	out, err = ibr.NewCompositor().Render([]*ibr.LayerSpec{load("c")}, true)
	require.NoError(t, err)
	require.Equal(t, ibr.DefaultBackground, out.At(1, 0))
}

func TestArrayImage(t *testing.T) {
	rgba := &npy.Array{DType: npy.Uint8, Shape: []int{1, 2, 4}, Data: []float64{1, 2, 3, 255, 4, 5, 6, 255}}
	img, err := arrayImage(rgba)
	require.NoError(t, err)
	r, g, b := img.(*ibr.RGBImage).RGBAt(1, 0)
	require.Equal(t, []uint8{4, 5, 6}, []uint8{r, g, b})

	u16 := &npy.Array{DType: npy.Uint16, Shape: []int{1, 1}, Data: []float64{300}}
	img, err = arrayImage(u16)
	require.NoError(t, err)
	require.Equal(t, float64(300), img.(*ibr.DepthImage).DepthAt(0, 0))

	for _, a := range []*npy.Array{
		{DType: npy.Float32, Shape: []int{1, 1, 3}, Data: []float64{0, 0, 0}},
		{DType: npy.Uint8, Shape: []int{1, 1, 2}, Data: []float64{0, 0}},
		{DType: npy.Uint8, Shape: []int{4}, Data: []float64{0, 0, 0, 0}},
	} {
		_, err := arrayImage(a)
		require.ErrorIs(t, err, ErrUnsupportedArray, "%s %v", a.DType, a.Shape)
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodeReader(bytes.NewReader(nil), ".gif")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	require.ErrorIs(t, EncodeWriter(&bytes.Buffer{}, gradient(1, 1), ".exr"), ErrUnsupportedFormat)

	var buf bytes.Buffer
	require.NoError(t, npy.WriteNPZ(&buf, nil, nil))
	_, err = DecodeReader(&buf, ".npz")
	require.ErrorIs(t, err, ErrEmptyArchive)

	header := "{'descr': '<f4', 'fortran_order': False, 'shape': (4611686018427387904, 2), }\n"
	crafted := append([]byte("\x93NUMPY\x01\x00"), byte(len(header)), 0)
	crafted = append(crafted, header...)
	_, err = DecodeReader(bytes.NewReader(crafted), ".npy")
	require.ErrorIs(t, err, npy.ErrDataSize)

	_, err = Decode(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestEncodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.tif")
	require.NoError(t, Encode(path, gradient(4, 3)))

	img, err := Decode(path)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())

	require.Error(t, Encode(filepath.Join(t.TempDir(), "frame.xyz"), gradient(1, 1)))
}
