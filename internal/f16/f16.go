// Package f16 converts vector components between float32 and IEEE 754
// binary16. Namespaces declared with the f16 scalar store components in this
// half-width form; distance evaluation always widens back to float32, so the
// precision loss is confined to storage.
package f16

import (
	"math"
	"math/bits"
)

// Bits is a raw binary16 pattern: 1 sign bit, 5 exponent bits (bias 15) and
// 10 fraction bits.
type Bits uint16

const (
	signMask Bits = 0x8000
	expMask  Bits = 0x7C00
	fracMask Bits = 0x03FF
)

// Decode widens src into dst. dst must be at least len(src) long.
func Decode(dst []float32, src []Bits) {
	for i, h := range src {
		dst[i] = widen(h)
	}
}

// Encode narrows src into dst with round-to-nearest-even. dst must be at
// least len(src) long.
func Encode(dst []Bits, src []float32) {
	for i, f := range src {
		dst[i] = narrow(f)
	}
}

func widen(h Bits) float32 {
	sign := uint32(h&signMask) << 16
	exp := uint32(h&expMask) >> 10
	frac := uint32(h & fracMask)

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal half: frac * 2^-24, renormalized for float32. The
		// leading set bit becomes the implicit one.
		n := uint32(bits.Len32(frac))
		exp32 := (n + 102) << 23
		frac32 := (frac << (24 - n)) & 0x7FFFFF
		return math.Float32frombits(sign | exp32 | frac32)
	case 0x1F:
		if frac == 0 {
			return math.Float32frombits(sign | 0x7F800000)
		}
		return math.Float32frombits(sign | 0x7F800000 | (frac << 13))
	default:
		return math.Float32frombits(sign | (exp+112)<<23 | frac<<13)
	}
}

func narrow(f float32) Bits {
	b := math.Float32bits(f)
	sign := Bits(b>>16) & signMask
	exp32 := int32(b>>23) & 0xFF
	frac32 := b & 0x7FFFFF

	if exp32 == 0xFF {
		if frac32 == 0 {
			return sign | expMask
		}
		// Keep the NaN quiet and its fraction non-zero.
		payload := Bits(frac32>>13) | 0x0200
		return sign | expMask | (payload & fracMask)
	}

	// Float32 subnormals are below the smallest binary16 subnormal.
	if exp32 == 0 {
		return sign
	}

	exp16 := exp32 - 127 + 15
	if exp16 >= 0x1F {
		return sign | expMask
	}

	if exp16 <= 0 {
		if exp16 < -10 {
			return sign
		}
		// Subnormal result: shift the full significand, implicit one
		// included, and round to even on the dropped bits.
		mant := frac32 | 0x800000
		shift := uint32(14 - exp16)
		m := mant >> shift
		dropped := mant & (1<<shift - 1)
		mid := uint32(1) << (shift - 1)
		if dropped > mid || (dropped == mid && m&1 == 1) {
			m++
		}
		return sign | Bits(m)
	}

	m := frac32 >> 13
	dropped := frac32 & 0x1FFF
	if dropped > 0x1000 || (dropped == 0x1000 && m&1 == 1) {
		m++
		if m == 0x0400 {
			m = 0
			exp16++
			if exp16 >= 0x1F {
				return sign | expMask
			}
		}
	}
	return sign | Bits(exp16)<<10 | Bits(m)
}
