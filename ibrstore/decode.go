// Package ibrstore provides reference ibr.Store implementations and the
// image codecs they use to read layer files.
package ibrstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrjoshuak/go-ibr/ibr"
	"github.com/mrjoshuak/go-ibr/internal/npy"
	"github.com/mrjoshuak/go-jpeg2000"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var (
	// ErrUnsupportedFormat is returned for file extensions with no codec.
	ErrUnsupportedFormat = errors.New("ibrstore: unsupported image format")

	// ErrUnsupportedArray is returned for NumPy arrays that are neither a
	// 2-D depth array nor an HxWx3 (or HxWx4) uint8 color array.
	ErrUnsupportedArray = errors.New("ibrstore: unsupported array layout")

	// ErrEmptyArchive is returned for .npz archives without arrays.
	ErrEmptyArchive = errors.New("ibrstore: archive has no arrays")
)

// Extensions lists the file extensions Decode understands, in the order
// FileStore tries them.
var Extensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".jp2", ".j2k", ".npy", ".npz"}

// Decode reads the image at path, choosing the codec from its extension.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := DecodeReader(bufio.NewReader(f), filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("ibrstore: decode %s: %w", path, err)
	}
	return img, nil
}

// DecodeReader decodes an image of the format named by ext (".png",
// "tiff", ...). NumPy arrays become *ibr.DepthImage when 2-D and
// *ibr.RGBImage when HxWx3 uint8; a .npz archive yields its first array.
func DecodeReader(r io.Reader, ext string) (image.Image, error) {
	switch normalizeExt(ext) {
	case ".png":
		return png.Decode(r)
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".bmp":
		return bmp.Decode(r)
	case ".tif", ".tiff":
		return tiff.Decode(r)
	case ".jp2", ".j2k":
		return jpeg2000.Decode(r)
	case ".npy":
		a, err := npy.Decode(r)
		if err != nil {
			return nil, err
		}
		return arrayImage(a)
	case ".npz":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		members, err := npy.ReadNPZ(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, ErrEmptyArchive
		}
		return arrayImage(members[0].Array)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	return ext
}

// arrayImage maps an array of shape HxW to a depth image and an array of
// shape HxWx3 or HxWx4 to a color image. The fourth channel is dropped.
func arrayImage(a *npy.Array) (image.Image, error) {
	switch {
	case len(a.Shape) == 2:
		h, w := a.Shape[0], a.Shape[1]
		return ibr.DepthFromValues(w, h, a.Data), nil

	case len(a.Shape) == 3 && (a.Shape[2] == 3 || a.Shape[2] == 4) && a.DType == npy.Uint8:
		h, w, ch := a.Shape[0], a.Shape[1], a.Shape[2]
		img := ibr.NewRGBImage(image.Rect(0, 0, w, h))
		for y := range h {
			for x := range w {
				i := (y*w + x) * ch
				img.SetRGB(x, y, uint8(a.Data[i]), uint8(a.Data[i+1]), uint8(a.Data[i+2]))
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: %s %v", ErrUnsupportedArray, a.DType, a.Shape)
}

// imageArray is the inverse of arrayImage.
func imageArray(img image.Image) *npy.Array {
	if d, ok := img.(*ibr.DepthImage); ok {
		b := d.Rect
		a := &npy.Array{DType: npy.Float64, Shape: []int{b.Dy(), b.Dx()}}
		a.Data = make([]float64, 0, b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				a.Data = append(a.Data, d.DepthAt(x, y))
			}
		}
		return a
	}

	rgb := ibr.ToRGBImage(img)
	b := rgb.Rect
	a := &npy.Array{DType: npy.Uint8, Shape: []int{b.Dy(), b.Dx(), 3}}
	a.Data = make([]float64, 0, 3*b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl := rgb.RGBAt(x, y)
			a.Data = append(a.Data, float64(r), float64(g), float64(bl))
		}
	}
	return a
}

// Encode writes img to path in the format named by its extension. Depth
// images are written as float64 arrays by the NumPy formats and as 8-bit
// gray by the others. JPEG 2000 output is a raw .j2k codestream.
func Encode(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := EncodeWriter(bw, img, filepath.Ext(path)); err != nil {
		f.Close()
		return fmt.Errorf("ibrstore: encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeWriter encodes img in the format named by ext.
func EncodeWriter(w io.Writer, img image.Image, ext string) error {
	switch normalizeExt(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".j2k":
		return jpeg2000.Encode(w, img, &jpeg2000.Options{Format: jpeg2000.FormatJ2K, Lossless: true})
	case ".npy":
		return npy.Encode(w, imageArray(img))
	case ".npz":
		return npy.WriteNPZ(w, []string{"arr_0"}, []*npy.Array{imageArray(img)})
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}
