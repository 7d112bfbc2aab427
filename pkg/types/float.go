package types

import (
	"fmt"
	"math"
)

// FloatConType is a 32-bit floating constant. Identity is the bit
// pattern: +0.0 and -0.0 are distinct types, and so are distinct NaN
// payloads.
type FloatConType struct {
	baseType
	V float32
}

func newFloatCon(v float32) *FloatConType {
	t := &FloatConType{V: v}
	t.tag = TagFloatCon
	t.hash = newHash(TagFloatCon).u32(math.Float32bits(v)).done()
	return t
}

// MakeFloat interns the 32-bit floating constant v.
func (c *Context) MakeFloat(v float32) Type { return c.hashcons(newFloatCon(v)) }

func (t *FloatConType) eq(o Type) bool {
	f, ok := o.(*FloatConType)
	return ok && math.Float32bits(t.V) == math.Float32bits(f.V)
}

// Floating constants are their own duals: the centerline of their
// sub-lattice.
func (t *FloatConType) xdual() Type { return newFloatCon(t.V) }

func (t *FloatConType) Singleton() bool { return true }
func (t *FloatConType) Empty() bool     { return false }
func (t *FloatConType) String() string  { return fmt.Sprintf("float:%v", t.V) }

func (t *FloatConType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagAnyPtr, TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr,
		TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr,
		TagNarrowOop, TagNarrowKlass,
		TagInt, TagLong,
		TagHalfFloatTop, TagHalfFloatCon, TagHalfFloatBot,
		TagDoubleTop, TagDoubleCon, TagDoubleBot,
		TagVectorMask, TagVectorA, TagVectorS, TagVectorD,
		TagVectorX, TagVectorY, TagVectorZ,
		TagBottom, TagHalf:
		return Bottom
	case TagFloatBot:
		return Float
	case TagFloatCon:
		// Two different constants fall to the generic float.
		return Float
	case TagFloatTop, TagTop:
		return t
	}
	c.typerr(t, o)
	return nil
}

// DoubleConType is a 64-bit floating constant with bit-pattern
// identity.
type DoubleConType struct {
	baseType
	V float64
}

func newDoubleCon(v float64) *DoubleConType {
	t := &DoubleConType{V: v}
	t.tag = TagDoubleCon
	t.hash = newHash(TagDoubleCon).u64(math.Float64bits(v)).done()
	return t
}

// MakeDouble interns the 64-bit floating constant v.
func (c *Context) MakeDouble(v float64) Type { return c.hashcons(newDoubleCon(v)) }

func (t *DoubleConType) eq(o Type) bool {
	d, ok := o.(*DoubleConType)
	return ok && math.Float64bits(t.V) == math.Float64bits(d.V)
}

func (t *DoubleConType) xdual() Type { return newDoubleCon(t.V) }

func (t *DoubleConType) Singleton() bool { return true }
func (t *DoubleConType) Empty() bool     { return false }
func (t *DoubleConType) String() string  { return fmt.Sprintf("double:%v", t.V) }

func (t *DoubleConType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagAnyPtr, TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr,
		TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr,
		TagNarrowOop, TagNarrowKlass,
		TagInt, TagLong,
		TagHalfFloatTop, TagHalfFloatCon, TagHalfFloatBot,
		TagFloatTop, TagFloatCon, TagFloatBot,
		TagVectorMask, TagVectorA, TagVectorS, TagVectorD,
		TagVectorX, TagVectorY, TagVectorZ,
		TagBottom, TagHalf:
		return Bottom
	case TagDoubleBot:
		return Double
	case TagDoubleCon:
		return Double
	case TagDoubleTop, TagTop:
		return t
	}
	c.typerr(t, o)
	return nil
}

// HalfFloatConType is a 16-bit (binary16) floating constant, stored
// as its raw bit pattern.
type HalfFloatConType struct {
	baseType
	Bits uint16
}

func newHalfFloatCon(bits16 uint16) *HalfFloatConType {
	t := &HalfFloatConType{Bits: bits16}
	t.tag = TagHalfFloatCon
	t.hash = newHash(TagHalfFloatCon).u64(uint64(bits16)).done()
	return t
}

// MakeHalfFloatBits interns the binary16 constant with the given raw
// bit pattern.
func (c *Context) MakeHalfFloatBits(bits16 uint16) Type { return c.hashcons(newHalfFloatCon(bits16)) }

// MakeHalfFloat interns the binary16 constant nearest to v.
func (c *Context) MakeHalfFloat(v float32) Type { return c.MakeHalfFloatBits(float32ToHalfBits(v)) }

func (t *HalfFloatConType) eq(o Type) bool {
	h, ok := o.(*HalfFloatConType)
	return ok && t.Bits == h.Bits
}

func (t *HalfFloatConType) xdual() Type { return newHalfFloatCon(t.Bits) }

func (t *HalfFloatConType) Singleton() bool { return true }
func (t *HalfFloatConType) Empty() bool     { return false }

// Value returns the constant widened to float32.
func (t *HalfFloatConType) Value() float32 { return halfBitsToFloat32(t.Bits) }

func (t *HalfFloatConType) String() string { return fmt.Sprintf("halffloat:%v", t.Value()) }

func (t *HalfFloatConType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagAnyPtr, TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr,
		TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr,
		TagNarrowOop, TagNarrowKlass,
		TagInt, TagLong,
		TagFloatTop, TagFloatCon, TagFloatBot,
		TagDoubleTop, TagDoubleCon, TagDoubleBot,
		TagVectorMask, TagVectorA, TagVectorS, TagVectorD,
		TagVectorX, TagVectorY, TagVectorZ,
		TagBottom, TagHalf:
		return Bottom
	case TagHalfFloatBot:
		return HalfFloat
	case TagHalfFloatCon:
		return HalfFloat
	case TagHalfFloatTop, TagTop:
		return t
	}
	c.typerr(t, o)
	return nil
}

// float32ToHalfBits converts with round-to-nearest-even, preserving
// NaN (with a quiet payload) and infinities.
func float32ToHalfBits(v float32) uint16 {
	b := math.Float32bits(v)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23) & 0xff
	man := b & 0x7fffff
	switch {
	case exp == 0xff: // inf or nan
		if man != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp > 142: // overflows binary16: infinity
		return sign | 0x7c00
	case exp < 103: // too small even for a subnormal: zero
		return sign
	case exp < 113: // subnormal result
		man |= 0x800000
		shift := uint32(126 - exp)
		half := uint16(man >> shift)
		if man>>(shift-1)&1 != 0 && (man&(1<<(shift-1)-1) != 0 || half&1 != 0) {
			half++
		}
		return sign | half
	}
	half := sign | uint16((exp-112)<<10) | uint16(man>>13)
	if man&0x1000 != 0 && (man&0xfff != 0 || half&1 != 0) {
		half++ // round to nearest even; may carry into the exponent
	}
	return half
}

func halfBitsToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	man := uint32(h & 0x3ff)
	switch {
	case exp == 0x1f: // inf or nan
		return math.Float32frombits(sign | 0x7f800000 | man<<13)
	case exp == 0:
		if man == 0 {
			return math.Float32frombits(sign)
		}
		// Normalize the subnormal.
		for man&0x400 == 0 {
			man <<= 1
			exp--
		}
		man &= 0x3ff
		exp++
	}
	return math.Float32frombits(sign | (exp+112)<<23 | man<<13)
}
