// Package npy reads and writes NumPy .npy arrays and .npz archives.
//
// Only little-endian, C-ordered arrays of the numeric types used for image
// layers are supported. Element values are held as float64, which represents
// every supported type exactly.
package npy

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/mrjoshuak/go-ibr/half"
)

var (
	// ErrBadMagic is returned when the data does not start with the .npy magic string.
	ErrBadMagic = errors.New("npy: bad magic string")

	// ErrBadHeader is returned when the header dictionary cannot be parsed.
	ErrBadHeader = errors.New("npy: malformed header")

	// ErrUnsupportedDType is returned for element types this package cannot read.
	ErrUnsupportedDType = errors.New("npy: unsupported dtype")

	// ErrFortranOrder is returned for arrays stored in column-major order.
	ErrFortranOrder = errors.New("npy: fortran-ordered arrays are not supported")

	// ErrDataSize is returned when the element count does not match the shape.
	ErrDataSize = errors.New("npy: data size does not match shape")
)

const magic = "\x93NUMPY"

// headerAlign is the alignment of the data section written by Encode.
const headerAlign = 64

// DType is a NumPy array-protocol type string.
type DType string

// Supported element types, spelled the way NumPy writes them.
const (
	Float16 DType = "<f2"
	Float32 DType = "<f4"
	Float64 DType = "<f8"
	Uint8   DType = "|u1"
	Uint16  DType = "<u2"
	Int32   DType = "<i4"
	Uint32  DType = "<u4"
)

var dtypes = []DType{Float16, Float32, Float64, Uint8, Uint16, Int32, Uint32}

// parseDType accepts the little-endian, native and not-applicable byte
// order prefixes for each supported type.
func parseDType(s string) (DType, error) {
	if len(s) < 3 || !strings.ContainsRune("<|=", rune(s[0])) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDType, s)
	}
	for _, dt := range dtypes {
		if string(dt[1:]) == s[1:] {
			return dt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDType, s)
}

// Size returns the size of one element in bytes.
func (dt DType) Size() int {
	n, _ := strconv.Atoi(string(dt[2:]))
	return n
}

// Array is a decoded n-dimensional array in C order.
type Array struct {
	DType DType
	Shape []int
	Data  []float64
}

// Len returns the number of elements implied by the shape.
func (a *Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// count returns the number of elements implied by the shape, or ErrDataSize
// if they need more than limit bytes. The product is bounded at every step
// so that huge dimensions cannot overflow.
func (a *Array) count(limit int) (int, error) {
	if slices.Contains(a.Shape, 0) {
		return 0, nil
	}
	maxN := limit / a.DType.Size()
	n := 1
	for _, d := range a.Shape {
		if n > maxN/d {
			return 0, fmt.Errorf("%w: shape %v needs more than the %d bytes available", ErrDataSize, a.Shape, limit)
		}
		n *= d
	}
	if n > maxN {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrDataSize, n*a.DType.Size(), limit)
	}
	return n, nil
}

// At returns the element at the given index, one coordinate per dimension.
func (a *Array) At(idx ...int) float64 {
	off := 0
	for i, v := range idx {
		off = off*a.Shape[i] + v
	}
	return a.Data[off]
}

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// Decode reads one .npy array from r.
func Decode(r io.Reader) (*Array, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func decode(data []byte) (*Array, error) {
	rd := newReader(data)
	m, err := rd.bytes(len(magic))
	if err != nil || string(m) != magic {
		return nil, ErrBadMagic
	}
	major, err := rd.uint8()
	if err != nil {
		return nil, ErrBadHeader
	}
	if _, err := rd.uint8(); err != nil {
		return nil, ErrBadHeader
	}

	var hlen int
	switch major {
	case 1:
		n, err := rd.uint16()
		if err != nil {
			return nil, ErrBadHeader
		}
		hlen = int(n)
	case 2, 3:
		n, err := rd.uint32()
		if err != nil {
			return nil, ErrBadHeader
		}
		hlen = int(n)
	default:
		return nil, fmt.Errorf("%w: version %d", ErrBadHeader, major)
	}
	header, err := rd.bytes(hlen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	a, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	n, err := a.count(rd.Len())
	if err != nil {
		return nil, err
	}
	a.Data = make([]float64, n)
	if a.DType == Float16 {
		raw, _ := rd.bytes(2 * n)
		f := make([]float32, n)
		half.DecodeFloat32(f, raw, byteOrder)
		for i, v := range f {
			a.Data[i] = float64(v)
		}
		return a, nil
	}
	for i := range a.Data {
		if a.Data[i], err = readElement(rd, a.DType); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func readElement(rd *reader, dt DType) (float64, error) {
	switch dt {
	case Float32:
		v, err := rd.float32()
		return float64(v), err
	case Float64:
		return rd.float64()
	case Uint8:
		v, err := rd.uint8()
		return float64(v), err
	case Uint16:
		v, err := rd.uint16()
		return float64(v), err
	case Int32:
		v, err := rd.uint32()
		return float64(int32(v)), err
	case Uint32:
		v, err := rd.uint32()
		return float64(v), err
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, dt)
}

func parseHeader(h string) (*Array, error) {
	descr := descrRe.FindStringSubmatch(h)
	fortran := fortranRe.FindStringSubmatch(h)
	shape := shapeRe.FindStringSubmatch(h)
	if descr == nil || fortran == nil || shape == nil {
		return nil, fmt.Errorf("%w: %q", ErrBadHeader, h)
	}
	if fortran[1] == "True" {
		return nil, ErrFortranOrder
	}
	dt, err := parseDType(descr[1])
	if err != nil {
		return nil, err
	}

	a := &Array{DType: dt}
	for _, f := range strings.Split(shape[1], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(f, "L"))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: shape %q", ErrBadHeader, shape[1])
		}
		a.Shape = append(a.Shape, n)
	}
	return a, nil
}

// Encode writes a as a version 1.0 .npy file.
func Encode(w io.Writer, a *Array) error {
	b, err := encode(a)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func encode(a *Array) ([]byte, error) {
	dt, err := parseDType(string(a.DType))
	if err != nil {
		return nil, err
	}
	if len(a.Data) != a.Len() {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrDataSize, len(a.Data), a.Shape)
	}

	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", dt, shapeTuple(a.Shape))
	pad := headerAlign - (len(magic)+4+len(header)+1)%headerAlign
	if pad == headerAlign {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	var w buffer
	w.bytes([]byte(magic))
	w.uint8(1)
	w.uint8(0)
	w.uint16(uint16(len(header)))
	w.bytes([]byte(header))

	if dt == Float16 {
		f := make([]float32, len(a.Data))
		for i, v := range a.Data {
			f[i] = float32(v)
		}
		raw := make([]byte, 2*len(f))
		half.EncodeFloat32(raw, f, byteOrder)
		w.bytes(raw)
		return w.data, nil
	}
	for _, v := range a.Data {
		switch dt {
		case Float32:
			w.float32(float32(v))
		case Float64:
			w.float64(v)
		case Uint8:
			w.uint8(uint8(v))
		case Uint16:
			w.uint16(uint16(v))
		case Int32:
			w.uint32(uint32(int32(v)))
		case Uint32:
			w.uint32(uint32(v))
		}
	}
	return w.data, nil
}

// shapeTuple formats a shape the way Python prints a tuple.
func shapeTuple(shape []int) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, d := range shape {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(d))
	}
	if len(shape) == 1 {
		sb.WriteByte(',')
	}
	sb.WriteByte(')')
	return sb.String()
}
