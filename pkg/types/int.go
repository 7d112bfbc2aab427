package types

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/xplshn/jolt/pkg/config"
	"github.com/xplshn/jolt/pkg/util"
)

const (
	minJint  = math.MinInt32
	maxJint  = math.MaxInt32
	minJlong = math.MinInt64
	maxJlong = math.MaxInt64

	// Widening counter for the loop-widening heuristic.
	WidenMin = 0
	WidenMax = 3

	// Ranges at most this wide never widen.
	smallIntRange = 3
)

// uns abstracts the 32- and 64-bit unsigned carriers. Signed bounds
// are stored as bit patterns of the same width; signed comparison is
// unsigned comparison with the sign bit flipped.
type uns interface {
	~uint32 | ~uint64
}

func signBitOf[U uns]() U {
	var m U
	m = ^m
	return m &^ (m >> 1)
}

func sflip[U uns](x U) U { return x ^ signBitOf[U]() }

// slt is signed less-than on the bit patterns.
func slt[U uns](a, b U) bool { return sflip(a) < sflip(b) }

func smin[U uns](a, b U) U {
	if slt(a, b) {
		return a
	}
	return b
}

func smax[U uns](a, b U) U {
	if slt(a, b) {
		return b
	}
	return a
}

// knownBits records per-bit facts: zeros has a 1 wherever the value
// is known to have a 0 bit, ones wherever it is known to have a 1.
type knownBits[U uns] struct {
	zeros, ones U
}

// intProto is an un-normalized candidate: a signed range, an unsigned
// range and known bits, each possibly redundant or contradictory
// until canonicalized.
type intProto[U uns] struct {
	lo, hi   U // signed bounds as bit patterns
	ulo, uhi U
	bits     knownBits[U]
}

// adjustLo returns the smallest value >= x satisfying kb, and whether
// one exists. The highest violating bit decides: a missing known-one
// bit is set directly with the bits below it minimized; an extra
// known-zero bit forces a round-up past it, which can carry into
// higher bits and start the scan over.
func adjustLo[U uns](x U, kb knownBits[U]) (U, bool) {
	for {
		vOnes := kb.ones &^ x
		vZeros := x & kb.zeros
		if vOnes|vZeros == 0 {
			return x, true
		}
		b := U(1) << (bits.Len64(uint64(vOnes|vZeros)) - 1)
		if vZeros&b != 0 {
			// x has bit b set, so filling everything below it and
			// adding one rounds up to the next multiple of b<<1. On
			// the top bit this wraps to zero: no solution.
			y := (x | (b - 1)) + 1
			if y == 0 {
				return 0, false
			}
			x = y
			continue
		}
		// Setting the missing one-bit strictly increases x at its
		// highest differing position, so everything below is free to
		// take its minimum.
		return (x &^ (b - 1)) | b | (kb.ones & (b - 1)), true
	}
}

// adjustHi is the mirror image: the largest value <= x satisfying kb.
func adjustHi[U uns](x U, kb knownBits[U]) (U, bool) {
	for {
		vOnes := kb.ones &^ x
		vZeros := x & kb.zeros
		if vOnes|vZeros == 0 {
			return x, true
		}
		b := U(1) << (bits.Len64(uint64(vOnes|vZeros)) - 1)
		if vOnes&b != 0 {
			// The required one-bit is clear: borrow from the part
			// above it, setting everything at or below b to 1.
			low := b<<1 - 1
			if x&^low == 0 {
				return 0, false
			}
			x = (x &^ low) - 1
			continue
		}
		// Clearing the offending bit strictly decreases x, so the
		// bits below are free to take their maximum.
		return (x &^ (b<<1 - 1)) | ((b - 1) &^ kb.zeros), true
	}
}

type uinterval[U uns] struct{ lo, hi U }

// canonicalize tightens the three views of p against each other until
// nothing moves. The signed range splits into at most two unsigned
// intervals, which are intersected with the unsigned range, clipped
// at the sign boundary, and pulled inward to bit-satisfying endpoints;
// the shared high prefix of the resulting unsigned bounds feeds back
// into the known bits. Returns ok=false for a contradictory (empty)
// candidate.
func canonicalize[U uns](p intProto[U]) (intProto[U], bool) {
	sign := signBitOf[U]()
	var allOnes U
	allOnes = ^allOnes

	if p.bits.zeros&p.bits.ones != 0 {
		return p, false
	}
	if slt(p.hi, p.lo) || p.uhi < p.ulo {
		return p, false
	}

	for {
		var ivs []uinterval[U]
		if p.lo&sign == p.hi&sign {
			ivs = []uinterval[U]{{p.lo, p.hi}}
		} else {
			// lo negative, hi non-negative: two unsigned runs.
			ivs = []uinterval[U]{{0, p.hi}, {p.lo, allOnes}}
		}

		// Intersect with the unsigned view, split at the sign
		// boundary, and adjust endpoints to the known bits.
		var out []uinterval[U]
		for _, iv := range ivs {
			lo, hi := iv.lo, iv.hi
			if lo < p.ulo {
				lo = p.ulo
			}
			if hi > p.uhi {
				hi = p.uhi
			}
			if lo > hi {
				continue
			}
			parts := []uinterval[U]{{lo, hi}}
			if lo < sign && hi >= sign {
				parts = []uinterval[U]{{lo, sign - 1}, {sign, hi}}
			}
			for _, part := range parts {
				a, ok := adjustLo(part.lo, p.bits)
				if !ok || a > part.hi {
					continue
				}
				b, ok := adjustHi(part.hi, p.bits)
				if !ok || b < a {
					continue
				}
				out = append(out, uinterval[U]{a, b})
			}
		}
		if len(out) == 0 {
			return p, false
		}

		next := intProto[U]{bits: p.bits}
		next.ulo, next.uhi = out[0].lo, out[0].hi
		next.lo, next.hi = out[0].lo, out[0].hi
		for _, iv := range out[1:] {
			if iv.lo < next.ulo {
				next.ulo = iv.lo
			}
			if iv.hi > next.uhi {
				next.uhi = iv.hi
			}
			// Each interval sits on one side of the sign boundary, so
			// its unsigned endpoints are also its signed extremes.
			next.lo = smin(next.lo, iv.lo)
			next.hi = smax(next.hi, iv.hi)
		}

		// Bits shared by every value between the unsigned bounds:
		// the common high prefix of ulo and uhi.
		diff := next.ulo ^ next.uhi
		var prefix U
		if diff == 0 {
			prefix = allOnes
		} else {
			prefix = ^(U(1)<<bits.Len64(uint64(diff)) - 1)
		}
		next.bits.zeros |= prefix &^ next.ulo
		next.bits.ones |= prefix & next.ulo

		if next == p {
			return p, true
		}
		p = next
	}
}

// normalWiden keeps the widening counter sane across meets: trivially
// small ranges never widen, the full range is already as wide as it
// gets.
func normalWiden[U uns](p intProto[U], w int) int {
	var allOnes U
	allOnes = ^allOnes
	if p.uhi-p.ulo <= smallIntRange && sflip(p.hi)-sflip(p.lo) <= smallIntRange {
		return WidenMin
	}
	if p.lo == signBitOf[U]() && p.hi == signBitOf[U]()-1 && p.ulo == 0 && p.uhi == allOnes {
		return WidenMax
	}
	return w
}

// IntProto is the external candidate form for 32-bit integer types.
type IntProto struct {
	Lo, Hi     int32
	ULo, UHi   uint32
	Zeros, Ones uint32
}

// LongProto is the external candidate form for 64-bit integer types.
type LongProto struct {
	Lo, Hi     int64
	ULo, UHi   uint64
	Zeros, Ones uint64
}

// IntType is a canonical set of 32-bit integers: the intersection of
// a signed range, an unsigned range and per-bit known values, with
// every view as tight as the others allow and every bound attainable.
type IntType struct {
	baseType
	Lo, Hi      int32
	ULo, UHi    uint32
	Zeros, Ones uint32
	W           int
	isDual      bool
}

func newIntType(p intProto[uint32], w int, dual bool) *IntType {
	t := &IntType{
		Lo: int32(p.lo), Hi: int32(p.hi),
		ULo: p.ulo, UHi: p.uhi,
		Zeros: p.bits.zeros, Ones: p.bits.ones,
		W: w, isDual: dual,
	}
	t.tag = TagInt
	t.hash = newHash(TagInt).
		u32(p.lo).u32(p.hi).u32(p.ulo).u32(p.uhi).
		u32(p.bits.zeros).u32(p.bits.ones).
		u64(uint64(w)).boolv(dual).done()
	return t
}

func (t *IntType) proto() intProto[uint32] {
	return intProto[uint32]{
		lo: uint32(t.Lo), hi: uint32(t.Hi),
		ulo: t.ULo, uhi: t.UHi,
		bits: knownBits[uint32]{t.Zeros, t.Ones},
	}
}

// MakeInt interns the canonical type for the signed range [lo,hi].
// An empty range canonicalizes to Top.
func (c *Context) MakeInt(lo, hi int32, widen int) Type {
	return c.MakeIntFull(IntProto{Lo: lo, Hi: hi, ULo: 0, UHi: math.MaxUint32}, widen)
}

// MakeIntCon interns the 32-bit constant v.
func (c *Context) MakeIntCon(v int32) Type { return c.MakeInt(v, v, WidenMin) }

// MakeIntFull interns the canonical type for the intersection of all
// three views in p. Contradictory views canonicalize to Top.
func (c *Context) MakeIntFull(p IntProto, widen int) Type {
	raw := intProto[uint32]{
		lo: uint32(p.Lo), hi: uint32(p.Hi),
		ulo: p.ULo, uhi: p.UHi,
		bits: knownBits[uint32]{p.Zeros, p.Ones},
	}
	return c.makeIntOrTop(raw, widen, false)
}

func (c *Context) makeIntOrTop(raw intProto[uint32], widen int, dual bool) Type {
	canon, ok := canonicalize(raw)
	if !ok {
		if dual {
			return Bottom
		}
		return Top
	}
	return c.hashcons(newIntType(canon, normalWiden(canon, widen), dual))
}

func (t *IntType) eq(o Type) bool {
	i, ok := o.(*IntType)
	return ok && t.Lo == i.Lo && t.Hi == i.Hi && t.ULo == i.ULo && t.UHi == i.UHi &&
		t.Zeros == i.Zeros && t.Ones == i.Ones && t.W == i.W && t.isDual == i.isDual
}

func (t *IntType) xdual() Type { return newIntType(t.proto(), t.W, !t.isDual) }

// IsCon reports whether the type is one exact value.
func (t *IntType) IsCon() bool { return t.Lo == t.Hi }

// GetCon returns the single value of a constant type.
func (t *IntType) GetCon() int32 {
	util.Assertf(t.IsCon(), "not a constant: %v", t)
	return t.Lo
}

func (t *IntType) Singleton() bool { return t.Lo == t.Hi }
func (t *IntType) Empty() bool     { return false }

// Contains reports whether v is a member of the set.
func (t *IntType) Contains(v int32) bool {
	util.Assertf(!t.isDual, "membership query on a dual type: %v", t)
	u := uint32(v)
	return v >= t.Lo && v <= t.Hi && u >= t.ULo && u <= t.UHi &&
		u&t.Zeros == 0 && u&t.Ones == t.Ones
}

func (t *IntType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagAnyPtr, TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr,
		TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr,
		TagNarrowOop, TagNarrowKlass,
		TagLong, TagHalfFloatTop, TagHalfFloatCon, TagHalfFloatBot,
		TagFloatTop, TagFloatCon, TagFloatBot,
		TagDoubleTop, TagDoubleCon, TagDoubleBot,
		TagVectorMask, TagVectorA, TagVectorS, TagVectorD,
		TagVectorX, TagVectorY, TagVectorZ,
		TagBottom, TagHalf:
		return Bottom
	case TagTop:
		return t
	case TagInt:
	default:
		c.typerr(t, o)
	}
	i := o.(*IntType)
	util.Assertf(t.isDual == i.isDual, "meet of a dual with a non-dual: %v meet %v", t, i)
	if t.isDual {
		// Above the centerline the meet runs toward Top: intersect the
		// ranges and accumulate the known bits of both sides.
		raw := intProto[uint32]{
			lo:  smax(uint32(t.Lo), uint32(i.Lo)),
			hi:  smin(uint32(t.Hi), uint32(i.Hi)),
			ulo: max(t.ULo, i.ULo), uhi: min(t.UHi, i.UHi),
			bits: knownBits[uint32]{t.Zeros | i.Zeros, t.Ones | i.Ones},
		}
		return c.makeIntOrTop(raw, min(t.W, i.W), true)
	}
	raw := intProto[uint32]{
		lo:  smin(uint32(t.Lo), uint32(i.Lo)),
		hi:  smax(uint32(t.Hi), uint32(i.Hi)),
		ulo: min(t.ULo, i.ULo), uhi: max(t.UHi, i.UHi),
		bits: knownBits[uint32]{t.Zeros & i.Zeros, t.Ones & i.Ones},
	}
	return c.makeIntOrTop(raw, max(t.W, i.W), false)
}

func (c *Context) filterInt(t *IntType, kills Type, includeSpec bool) Type {
	ft, ok := c.joinHelper(t, kills, includeSpec).(*IntType)
	if !ok {
		c.warnf(config.WarnEmptyMeet, "filter of %v by %v is empty", t, kills)
		return Top
	}
	// The kill type must not slow the widening counter down; it runs
	// freely through the graph.
	if ft.W < t.W {
		return c.makeIntOrTop(ft.proto(), t.W, false)
	}
	return ft
}

// WidenToward implements the loop-widening heuristic: if this type
// grew out of old, nudge the counter; at the cap, jump to limit or
// give up to the full range instead of inching along.
func (t *IntType) WidenToward(c *Context, old, limit Type) Type {
	ot, ok := old.(*IntType)
	if !ok {
		return t
	}
	if t.Lo == ot.Lo && t.Hi == ot.Hi {
		return ot
	}
	if t.Lo <= ot.Lo && t.Hi >= ot.Hi {
		// Grew. Not yet wider than old: bump the counter.
		if t.W > ot.W {
			return t
		}
		if t.W < WidenMax {
			return c.makeIntOrTop(t.proto(), t.W+1, false)
		}
		if lim, ok := limit.(*IntType); ok && lim.Lo <= t.Lo && lim.Hi >= t.Hi {
			return c.MakeInt(lim.Lo, lim.Hi, WidenMax)
		}
		c.warnf(config.WarnWiden, "widening of %v gave up to the full int range", t)
		return Int
	}
	if ot.Lo <= t.Lo && ot.Hi >= t.Hi {
		// Shrank while widening: oscillation, keep the old type.
		return ot
	}
	return Int
}

// NarrowFrom accepts this type over old only when it shrinks the
// range substantially, stopping narrowing death-marches a single
// trip count at a time.
func (t *IntType) NarrowFrom(old Type) Type {
	if t.Lo >= t.Hi {
		return t
	}
	ot, ok := old.(*IntType)
	if !ok {
		return t
	}
	if t.Lo == ot.Lo && t.Hi == ot.Hi {
		return ot
	}
	if ot.Lo == minJint && ot.Hi == maxJint {
		return t
	}
	if t.Lo < ot.Lo || t.Hi > ot.Hi {
		return t
	}
	nrange := uint32(t.Hi) - uint32(t.Lo)
	orange := uint32(ot.Hi) - uint32(ot.Lo)
	if nrange < math.MaxUint32-1 && nrange > orange/2+smallIntRange*2 {
		return ot
	}
	return t
}

func (t *IntType) String() string {
	return fmtIntType("int", int64(t.Lo), int64(t.Hi), uint64(t.ULo), uint64(t.UHi),
		uint64(t.Zeros), uint64(t.Ones), 32, t.W, t.isDual)
}

// LongType is the 64-bit analog of IntType.
type LongType struct {
	baseType
	Lo, Hi      int64
	ULo, UHi    uint64
	Zeros, Ones uint64
	W           int
	isDual      bool
}

func newLongType(p intProto[uint64], w int, dual bool) *LongType {
	t := &LongType{
		Lo: int64(p.lo), Hi: int64(p.hi),
		ULo: p.ulo, UHi: p.uhi,
		Zeros: p.bits.zeros, Ones: p.bits.ones,
		W: w, isDual: dual,
	}
	t.tag = TagLong
	t.hash = newHash(TagLong).
		u64(p.lo).u64(p.hi).u64(p.ulo).u64(p.uhi).
		u64(p.bits.zeros).u64(p.bits.ones).
		u64(uint64(w)).boolv(dual).done()
	return t
}

func (t *LongType) proto() intProto[uint64] {
	return intProto[uint64]{
		lo: uint64(t.Lo), hi: uint64(t.Hi),
		ulo: t.ULo, uhi: t.UHi,
		bits: knownBits[uint64]{t.Zeros, t.Ones},
	}
}

// MakeLong interns the canonical type for the signed range [lo,hi].
func (c *Context) MakeLong(lo, hi int64, widen int) Type {
	return c.MakeLongFull(LongProto{Lo: lo, Hi: hi, ULo: 0, UHi: math.MaxUint64}, widen)
}

// MakeLongCon interns the 64-bit constant v.
func (c *Context) MakeLongCon(v int64) Type { return c.MakeLong(v, v, WidenMin) }

// MakeLongFull interns the canonical type for the intersection of all
// three views in p.
func (c *Context) MakeLongFull(p LongProto, widen int) Type {
	raw := intProto[uint64]{
		lo: uint64(p.Lo), hi: uint64(p.Hi),
		ulo: p.ULo, uhi: p.UHi,
		bits: knownBits[uint64]{p.Zeros, p.Ones},
	}
	return c.makeLongOrTop(raw, widen, false)
}

func (c *Context) makeLongOrTop(raw intProto[uint64], widen int, dual bool) Type {
	canon, ok := canonicalize(raw)
	if !ok {
		if dual {
			return Bottom
		}
		return Top
	}
	return c.hashcons(newLongType(canon, normalWiden(canon, widen), dual))
}

func (t *LongType) eq(o Type) bool {
	l, ok := o.(*LongType)
	return ok && t.Lo == l.Lo && t.Hi == l.Hi && t.ULo == l.ULo && t.UHi == l.UHi &&
		t.Zeros == l.Zeros && t.Ones == l.Ones && t.W == l.W && t.isDual == l.isDual
}

func (t *LongType) xdual() Type { return newLongType(t.proto(), t.W, !t.isDual) }

func (t *LongType) IsCon() bool { return t.Lo == t.Hi }

func (t *LongType) GetCon() int64 {
	util.Assertf(t.IsCon(), "not a constant: %v", t)
	return t.Lo
}

func (t *LongType) Singleton() bool { return t.Lo == t.Hi }
func (t *LongType) Empty() bool     { return false }

func (t *LongType) Contains(v int64) bool {
	util.Assertf(!t.isDual, "membership query on a dual type: %v", t)
	u := uint64(v)
	return v >= t.Lo && v <= t.Hi && u >= t.ULo && u <= t.UHi &&
		u&t.Zeros == 0 && u&t.Ones == t.Ones
}

func (t *LongType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagAnyPtr, TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr,
		TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr,
		TagNarrowOop, TagNarrowKlass,
		TagInt, TagHalfFloatTop, TagHalfFloatCon, TagHalfFloatBot,
		TagFloatTop, TagFloatCon, TagFloatBot,
		TagDoubleTop, TagDoubleCon, TagDoubleBot,
		TagVectorMask, TagVectorA, TagVectorS, TagVectorD,
		TagVectorX, TagVectorY, TagVectorZ,
		TagBottom, TagHalf:
		return Bottom
	case TagTop:
		return t
	case TagLong:
	default:
		c.typerr(t, o)
	}
	l := o.(*LongType)
	util.Assertf(t.isDual == l.isDual, "meet of a dual with a non-dual: %v meet %v", t, l)
	if t.isDual {
		raw := intProto[uint64]{
			lo:  smax(uint64(t.Lo), uint64(l.Lo)),
			hi:  smin(uint64(t.Hi), uint64(l.Hi)),
			ulo: max(t.ULo, l.ULo), uhi: min(t.UHi, l.UHi),
			bits: knownBits[uint64]{t.Zeros | l.Zeros, t.Ones | l.Ones},
		}
		return c.makeLongOrTop(raw, min(t.W, l.W), true)
	}
	raw := intProto[uint64]{
		lo:  smin(uint64(t.Lo), uint64(l.Lo)),
		hi:  smax(uint64(t.Hi), uint64(l.Hi)),
		ulo: min(t.ULo, l.ULo), uhi: max(t.UHi, l.UHi),
		bits: knownBits[uint64]{t.Zeros & l.Zeros, t.Ones & l.Ones},
	}
	return c.makeLongOrTop(raw, max(t.W, l.W), false)
}

func (c *Context) filterLong(t *LongType, kills Type, includeSpec bool) Type {
	ft, ok := c.joinHelper(t, kills, includeSpec).(*LongType)
	if !ok {
		c.warnf(config.WarnEmptyMeet, "filter of %v by %v is empty", t, kills)
		return Top
	}
	if ft.W < t.W {
		return c.makeLongOrTop(ft.proto(), t.W, false)
	}
	return ft
}

// WidenToward is the 64-bit loop-widening heuristic.
func (t *LongType) WidenToward(c *Context, old, limit Type) Type {
	ot, ok := old.(*LongType)
	if !ok {
		return t
	}
	if t.Lo == ot.Lo && t.Hi == ot.Hi {
		return ot
	}
	if t.Lo <= ot.Lo && t.Hi >= ot.Hi {
		if t.W > ot.W {
			return t
		}
		if t.W < WidenMax {
			return c.makeLongOrTop(t.proto(), t.W+1, false)
		}
		if lim, ok := limit.(*LongType); ok && lim.Lo <= t.Lo && lim.Hi >= t.Hi {
			return c.MakeLong(lim.Lo, lim.Hi, WidenMax)
		}
		c.warnf(config.WarnWiden, "widening of %v gave up to the full long range", t)
		return Long
	}
	if ot.Lo <= t.Lo && ot.Hi >= t.Hi {
		return ot
	}
	return Long
}

// NarrowFrom is the 64-bit analog of IntType.NarrowFrom.
func (t *LongType) NarrowFrom(old Type) Type {
	if t.Lo >= t.Hi {
		return t
	}
	ot, ok := old.(*LongType)
	if !ok {
		return t
	}
	if t.Lo == ot.Lo && t.Hi == ot.Hi {
		return ot
	}
	if ot.Lo == minJlong && ot.Hi == maxJlong {
		return t
	}
	if t.Lo < ot.Lo || t.Hi > ot.Hi {
		return t
	}
	nrange := uint64(t.Hi) - uint64(t.Lo)
	orange := uint64(ot.Hi) - uint64(ot.Lo)
	if nrange < math.MaxUint64-1 && nrange > orange/2+smallIntRange*2 {
		return ot
	}
	return t
}

func (t *LongType) String() string {
	return fmtIntType("long", t.Lo, t.Hi, t.ULo, t.UHi, t.Zeros, t.Ones, 64, t.W, t.isDual)
}

func fmtIntType(kind string, lo, hi int64, ulo, uhi, zeros, ones uint64, width, w int, dual bool) string {
	s := kind
	if dual {
		s = "dual " + s
	}
	minS := int64(-1) << (width - 1)
	maxS := -minS - 1
	switch {
	case lo == hi:
		s += fmt.Sprintf(":%d", lo)
	case lo == minS && hi == maxS && ulo == 0 && uhi == ^uint64(0)>>(64-width) && zeros == 0 && ones == 0:
		// Full range: nothing to print beyond the kind, widening
		// counter included.
		return s
	default:
		s += fmt.Sprintf(":%d..%d", lo, hi)
		if ulo != 0 || uhi != ^uint64(0)>>(64-width) {
			s += fmt.Sprintf(" u:%d..%d", ulo, uhi)
		}
		if zeros != 0 || ones != 0 {
			s += fmt.Sprintf(" bits:zeros=%#x,ones=%#x", zeros, ones)
		}
	}
	for i := 0; i < w; i++ {
		s += "w"
	}
	return s
}
