// Package half converts IEEE 754 binary16 values to and from float32.
//
// Depth and value layers are often exported as float16 arrays to halve
// their size. Half-precision floats use 1 sign bit, 5 exponent bits with a
// bias of 15 and 10 mantissa bits.
package half

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Half is a binary16 value in its raw bit form.
type Half uint16

const (
	signBit      = 0x8000
	exponentMask = 0x7C00
	mantissaMask = 0x03FF

	exponentBias = 15
	maxExponent  = 31
)

var (
	// Inf is positive infinity.
	Inf = Half(0x7C00)
	// NaN is a quiet NaN.
	NaN = Half(0x7E00)
	// Max is the largest finite value, 65504.
	Max = Half(0x7BFF)
)

// FromBits returns the Half with the given bit pattern.
func FromBits(bits uint16) Half { return Half(bits) }

// Bits returns the bit pattern of h.
func (h Half) Bits() uint16 { return uint16(h) }

// IsNaN reports whether h is a NaN.
func (h Half) IsNaN() bool {
	return h&exponentMask == exponentMask && h&mantissaMask != 0
}

// IsInf reports whether h is an infinity of either sign.
func (h Half) IsInf() bool {
	return h&^signBit == Inf
}

// Float32 widens h to a float32. The conversion is exact.
func (h Half) Float32() float32 {
	sign := uint32(h&signBit) << 16
	exp := int(h&exponentMask) >> 10
	mant := uint32(h & mantissaMask)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: shift the mantissa up until the implicit bit appears.
		exp = 1
		for mant&0x0400 == 0 {
			mant <<= 1
			exp--
		}
		mant &= mantissaMask
	case maxExponent:
		if mant == 0 {
			return math.Float32frombits(sign | 0x7F800000)
		}
		return math.Float32frombits(sign | 0x7FC00000 | mant<<13)
	}
	return math.Float32frombits(sign | uint32(exp-exponentBias+127)<<23 | mant<<13)
}

// FromFloat32 narrows f to a Half, rounding to nearest even. Values too
// large for binary16 become infinities.
func FromFloat32(f float32) Half {
	bits := math.Float32bits(f)
	sign := Half(bits>>16) & signBit
	exp := int(bits>>23) & 0xFF
	mant := bits & 0x007FFFFF

	switch {
	case exp == 0xFF:
		if mant == 0 {
			return sign | Inf
		}
		return sign | NaN
	case exp == 0:
		return sign
	}

	exp += exponentBias - 127
	if exp >= maxExponent {
		return sign | Inf
	}

	var shift uint = 13
	if exp <= 0 {
		if exp < -10 {
			return sign
		}
		mant |= 0x00800000
		shift = uint(14 - exp)
		exp = 0
	}

	out := mant >> shift
	rem := mant & (1<<shift - 1)
	halfway := uint32(1) << (shift - 1)
	if rem > halfway || (rem == halfway && out&1 != 0) {
		out++
	}
	// A carry out of the mantissa bumps the exponent, which is what the
	// combined bit pattern does naturally.
	return sign | Half(uint32(exp)<<10+out)
}

// String formats h through its float32 value.
func (h Half) String() string {
	return fmt.Sprintf("%g", h.Float32())
}

// DecodeFloat32 decodes len(src)/2 binary16 values in the given byte order
// into dst, which must have room for them.
func DecodeFloat32(dst []float32, src []byte, order binary.ByteOrder) {
	for i := range len(src) / 2 {
		dst[i] = Half(order.Uint16(src[2*i:])).Float32()
	}
}

// EncodeFloat32 encodes src as binary16 values into dst, which must hold
// 2*len(src) bytes.
func EncodeFloat32(dst []byte, src []float32, order binary.ByteOrder) {
	for i, f := range src {
		order.PutUint16(dst[2*i:], uint16(FromFloat32(f)))
	}
}
