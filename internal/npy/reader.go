package npy

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrShortBuffer is returned when a read runs past the end of the data.
	ErrShortBuffer = errors.New("npy: buffer too short")

	// ErrNegativeSize is returned when a size parameter is negative.
	ErrNegativeSize = errors.New("npy: negative size")
)

// byteOrder is the order of every multi-byte field this package reads.
var byteOrder = binary.LittleEndian

// reader is a bounds-checked little-endian reader over a byte slice.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

// Len returns the number of unread bytes.
func (r *reader) Len() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if r.pos+n > len(r.data) {
		return nil, ErrShortBuffer
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint32(b), nil
}

func (r *reader) float32() (float32, error) {
	v, err := r.uint32()
	return math.Float32frombits(v), err
}

func (r *reader) float64() (float64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(byteOrder.Uint64(b)), nil
}

// buffer is an append-only little-endian writer.
type buffer struct {
	data []byte
}

func (w *buffer) bytes(b []byte) { w.data = append(w.data, b...) }

func (w *buffer) uint8(v uint8) { w.data = append(w.data, v) }

func (w *buffer) uint16(v uint16) { w.data = byteOrder.AppendUint16(w.data, v) }

func (w *buffer) uint32(v uint32) { w.data = byteOrder.AppendUint32(w.data, v) }

func (w *buffer) float32(v float32) { w.uint32(math.Float32bits(v)) }

func (w *buffer) float64(v float64) { w.data = byteOrder.AppendUint64(w.data, math.Float64bits(v)) }
