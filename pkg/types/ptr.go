package types

import (
	"fmt"
	"math"

	"fortio.org/safecast"

	"github.com/xplshn/jolt/pkg/config"
	"github.com/xplshn/jolt/pkg/util"
)

// PtrKind orders pointer nullability along the lattice centerline:
// TopPTR and AnyNull sit above it, Constant and Null on it, NotNull
// and BotPTR below.
type PtrKind int

const (
	TopPTR PtrKind = iota
	AnyNull
	Constant
	Null
	NotNull
	BotPTR
	ptrKindCount
)

var ptrKindNames = [ptrKindCount]string{"TopPTR", "AnyNull", "Constant", "Null", "NotNull", "BotPTR"}

func (k PtrKind) String() string { return ptrKindNames[k] }

// ptrMeet is the meet of two pointer kinds, row = receiver.
var ptrMeet = [ptrKindCount][ptrKindCount]PtrKind{
	//            TopPTR    AnyNull   Constant  Null    NotNull  BotPTR
	TopPTR:   {TopPTR, AnyNull, Constant, Null, NotNull, BotPTR},
	AnyNull:  {AnyNull, AnyNull, Constant, BotPTR, NotNull, BotPTR},
	Constant: {Constant, Constant, Constant, BotPTR, NotNull, BotPTR},
	Null:     {Null, BotPTR, BotPTR, Null, BotPTR, BotPTR},
	NotNull:  {NotNull, NotNull, NotNull, BotPTR, NotNull, BotPTR},
	BotPTR:   {BotPTR, BotPTR, BotPTR, BotPTR, BotPTR, BotPTR},
}

var ptrDual = [ptrKindCount]PtrKind{BotPTR, NotNull, Constant, Null, AnyNull, TopPTR}

func aboveCenterline(k PtrKind) bool { return k == TopPTR || k == AnyNull }
func belowCenterline(k PtrKind) bool { return k == NotNull || k == BotPTR }

// Field offsets relative to a pointer's base.
const (
	OffsetBot int32 = -2000000000 // any possible offset
	OffsetTop int32 = -2000000001 // undefined offset
)

func meetOffset(a, b int32) int32 {
	if a == OffsetTop {
		return b
	}
	if b == OffsetTop {
		return a
	}
	if a != b {
		return OffsetBot
	}
	return a
}

func dualOffset(o int32) int32 {
	if o == OffsetTop {
		return OffsetBot
	}
	if o == OffsetBot {
		return OffsetTop
	}
	return o
}

func xaddOffset(cur int32, delta int64) int32 {
	if cur == OffsetTop {
		return OffsetTop
	}
	if cur == OffsetBot || delta == int64(OffsetBot) {
		return OffsetBot
	}
	sum, err := safecast.Convert[int32](int64(cur) + delta)
	if err != nil || sum <= OffsetBot || sum == OffsetTop {
		return OffsetBot
	}
	return sum
}

func fmtOffset(o int32) string {
	switch o {
	case OffsetBot:
		return "+any"
	case OffsetTop:
		return "+top"
	case 0:
		return ""
	}
	return fmt.Sprintf("+%d", o)
}

// Inline depth of the call site that produced a speculative type.
const (
	InlineDepthBottom int32 = math.MaxInt32
	InlineDepthTop    int32 = -InlineDepthBottom
)

func meetInlineDepth(a, b int32) int32 { return max(a, b) }

// Instance ids distinguish pointers to a known allocation.
const (
	InstanceTop int32 = -1 // no allocation constrained yet
	InstanceBot int32 = 0  // any allocation
)

func meetInstanceID(a, b int32) int32 {
	if a == InstanceTop {
		return b
	}
	if b == InstanceTop {
		return a
	}
	if a != b {
		return InstanceBot
	}
	return a
}

func dualInstanceID(id int32) int32 {
	if id == InstanceTop {
		return InstanceBot
	}
	if id == InstanceBot {
		return InstanceTop
	}
	return id
}

// dualSpec duals a speculative part along with its carrier. The part
// is always an interned pointer type, so its dual link is in place.
func dualSpec(spec Type) Type {
	if spec == nil {
		return nil
	}
	return spec.Dual()
}

// ptrBase carries the parts common to the whole pointer family.
type ptrBase struct {
	baseType
	kind  PtrKind
	off   int32
	spec  Type  // speculative pointer type, or nil
	depth int32 // inline depth of the speculative info
}

func (p *ptrBase) Kind() PtrKind      { return p.kind }
func (p *ptrBase) Offset() int32      { return p.off }
func (p *ptrBase) InlineDepth() int32 { return p.depth }
func (p *ptrBase) ptrPart() *ptrBase  { return p }

func (p *ptrBase) Singleton() bool { return p.off != OffsetBot && !belowCenterline(p.kind) }
func (p *ptrBase) Empty() bool     { return p.off == OffsetTop || aboveCenterline(p.kind) }

// MaybeNull reports whether null is among the pointer's values.
func (p *ptrBase) MaybeNull() bool { return p.kind != NotNull && p.kind != Constant }

// ptrType is implemented by every pointer family member.
type ptrType interface {
	Type
	ptrPart() *ptrBase
	// withSpec rebuilds the same pointer with a different speculative
	// part and inline depth.
	withSpec(c *Context, spec Type, depth int32) Type
	// addOffset rebuilds at offset+delta with sticky OffsetBot.
	addOffset(c *Context, delta int64) Type
}

// Speculative returns the speculative part of a pointer type, or nil.
func Speculative(t Type) Type { return speculativeOf(t) }

// xmeetSpeculative merges speculative parts across a control merge.
// A branch without one contributes its own main type: if both sides
// were exact speculations, the merged speculation stays useful.
func (c *Context) xmeetSpeculative(a, b ptrType) Type {
	aSpec, bSpec := a.ptrPart().spec, b.ptrPart().spec
	if aSpec == nil && bSpec == nil {
		return nil
	}
	if aSpec == nil {
		aSpec = a
	}
	if bSpec == nil {
		bSpec = b
	}
	return c.meetHelper(aSpec, bSpec, true)
}

func specString(spec Type, depth int32) string {
	if spec == nil {
		return ""
	}
	s := fmt.Sprintf(" (speculative=%v", spec)
	if depth != InlineDepthBottom {
		s += fmt.Sprintf(" depth=%d", depth)
	}
	return s + ")"
}

// RemoveSpeculative strips the speculative part, if any.
func (c *Context) RemoveSpeculative(t Type) Type {
	switch tt := t.(type) {
	case *NarrowPtrType:
		inner := c.RemoveSpeculative(tt.ptrType)
		if inner == tt.ptrType {
			return t
		}
		return c.makeNarrow(tt.tag, inner)
	case ptrType:
		p := tt.ptrPart()
		if p.spec == nil {
			return t
		}
		return tt.withSpec(c, nil, p.depth)
	}
	return t
}

// CleanupSpeculative drops a speculative part that can no longer pay
// for itself: on null, on an above-centerline speculation, on an
// inexact maybe-null speculation, or when the main type is already an
// exact non-null klass.
func (c *Context) CleanupSpeculative(t Type) Type {
	p, ok := t.(ptrType)
	if !ok || p.ptrPart().spec == nil {
		return t
	}
	if op, ok := t.(oopPtrType); ok && op.exactKlass() && !p.ptrPart().MaybeNull() {
		return c.dropSpec(t)
	}
	noSpec := c.RemoveSpeculative(t)
	if np, ok := noSpec.(*AnyPtrType); ok && np.kind == Null && np.off == 0 {
		return c.dropSpec(t)
	}
	spec := p.ptrPart().spec
	sp, ok := spec.(ptrType)
	if !ok || aboveCenterline(sp.ptrPart().kind) {
		return c.dropSpec(t)
	}
	if spec != PtrNull && sp.ptrPart().MaybeNull() {
		op, isOop := spec.(oopPtrType)
		if !isOop || !op.exactKlass() {
			return c.dropSpec(t)
		}
	}
	return t
}

// dropSpec strips a speculative part cleanup judged useless.
func (c *Context) dropSpec(t Type) Type {
	c.warnf(config.WarnSpecDropped, "dropping useless speculative part of %v", t)
	return c.RemoveSpeculative(t)
}

// AddOffset rebuilds a pointer type delta bytes further into its
// object; unknown stays unknown.
func (c *Context) AddOffset(t Type, delta int64) Type {
	switch tt := t.(type) {
	case *NarrowPtrType:
		return c.makeNarrow(tt.tag, c.AddOffset(tt.ptrType, delta))
	case ptrType:
		return tt.addOffset(c, delta)
	}
	return t
}

func (c *Context) addOffsetSpeculative(spec Type, delta int64) Type {
	if spec == nil {
		return nil
	}
	return c.AddOffset(spec, delta)
}

// AnyPtrType is the abstract pointer: a nullability kind and an
// offset, with no memory family behind it.
type AnyPtrType struct{ ptrBase }

func newAnyPtr(kind PtrKind, off int32, spec Type, depth int32) *AnyPtrType {
	t := &AnyPtrType{ptrBase{kind: kind, off: off, spec: spec, depth: depth}}
	t.tag = TagAnyPtr
	t.hash = newHash(TagAnyPtr).u64(uint64(kind)).i32(off).sub(spec).i32(depth).done()
	return t
}

// MakeAnyPtr interns the abstract pointer with the given kind and
// offset and no speculative part.
func (c *Context) MakeAnyPtr(kind PtrKind, off int32) Type {
	return c.makeAnyPtr(kind, off, nil, InlineDepthBottom)
}

func (c *Context) makeAnyPtr(kind PtrKind, off int32, spec Type, depth int32) Type {
	return c.hashcons(newAnyPtr(kind, off, spec, depth))
}

func (t *AnyPtrType) eq(o Type) bool {
	a, ok := o.(*AnyPtrType)
	return ok && t.kind == a.kind && t.off == a.off && t.spec == a.spec && t.depth == a.depth
}

func (t *AnyPtrType) xdual() Type {
	return newAnyPtr(ptrDual[t.kind], dualOffset(t.off), dualSpec(t.spec), -t.depth)
}

func (t *AnyPtrType) withSpec(c *Context, spec Type, depth int32) Type {
	return c.makeAnyPtr(t.kind, t.off, spec, depth)
}

func (t *AnyPtrType) addOffset(c *Context, delta int64) Type {
	return c.makeAnyPtr(t.kind, xaddOffset(t.off, delta), c.addOffsetSpeculative(t.spec, delta), t.depth)
}

func (t *AnyPtrType) String() string {
	return "ptr:" + ptrKindNames[t.kind] + fmtOffset(t.off) + specString(t.spec, t.depth)
}

func (t *AnyPtrType) xmeet(c *Context, o Type) Type {
	res := t.xmeetHelper(c, o)
	return stripRedundantSpec(c, res)
}

// stripRedundantSpec canonicalizes a meet result whose speculative
// part says nothing beyond the main type.
func stripRedundantSpec(c *Context, res Type) Type {
	rp, ok := res.(ptrType)
	if !ok || rp.ptrPart().spec == nil {
		return res
	}
	if rp.ptrPart().spec == c.RemoveSpeculative(res) {
		return c.RemoveSpeculative(res)
	}
	return res
}

func (t *AnyPtrType) xmeetHelper(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagInt, TagLong,
		TagHalfFloatTop, TagHalfFloatCon, TagHalfFloatBot,
		TagFloatTop, TagFloatCon, TagFloatBot,
		TagDoubleTop, TagDoubleCon, TagDoubleBot,
		TagVectorMask, TagVectorA, TagVectorS, TagVectorD,
		TagVectorX, TagVectorY, TagVectorZ,
		TagNarrowOop, TagNarrowKlass,
		TagBottom, TagHalf:
		return Bottom
	case TagTop:
		return t
	case TagAnyPtr:
		tp := o.(*AnyPtrType)
		spec := c.xmeetSpeculative(t, tp)
		depth := meetInlineDepth(t.depth, tp.depth)
		return c.makeAnyPtr(ptrMeet[t.kind][tp.kind], meetOffset(t.off, tp.off), spec, depth)
	case TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr,
		TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr:
		// The concrete family knows how to meet an abstract pointer.
		return o.xmeet(c, t)
	}
	c.typerr(t, o)
	return nil
}

// RawPtrType is an uninterpreted machine address. Constants carry the
// address bits; raw pointers never alias the heap families.
type RawPtrType struct {
	ptrBase
	Bits uint64
}

func newRawPtr(kind PtrKind, bitsv uint64) *RawPtrType {
	t := &RawPtrType{ptrBase: ptrBase{kind: kind, off: 0, depth: InlineDepthBottom}, Bits: bitsv}
	t.tag = TagRawPtr
	t.hash = newHash(TagRawPtr).u64(uint64(kind)).u64(bitsv).done()
	return t
}

func (c *Context) makeRawPtr(kind PtrKind, bitsv uint64) Type {
	util.Assertf(kind != Constant || bitsv != 0, "raw constant needs address bits")
	return c.hashcons(newRawPtr(kind, bitsv))
}

// MakeRawPtr interns a non-constant raw pointer of the given kind.
func (c *Context) MakeRawPtr(kind PtrKind) Type {
	util.Assertf(kind != Constant, "use MakeRawPtrCon for constants")
	return c.makeRawPtr(kind, 0)
}

// MakeRawPtrCon interns the raw address constant bits. Use PtrNull
// for the null address.
func (c *Context) MakeRawPtrCon(bitsv uint64) Type {
	util.Assertf(bitsv != 0, "null is an abstract pointer, not a raw constant")
	return c.makeRawPtr(Constant, bitsv)
}

func (t *RawPtrType) eq(o Type) bool {
	r, ok := o.(*RawPtrType)
	return ok && t.kind == r.kind && t.Bits == r.Bits
}

func (t *RawPtrType) xdual() Type { return newRawPtr(ptrDual[t.kind], t.Bits) }

func (t *RawPtrType) withSpec(c *Context, spec Type, depth int32) Type { return t }

func (t *RawPtrType) addOffset(c *Context, delta int64) Type {
	// Arithmetic on a known address stays a known address.
	if t.kind == Constant {
		if delta == int64(OffsetTop) || delta == int64(OffsetBot) {
			return RawBottom
		}
		return c.makeRawPtr(Constant, t.Bits+uint64(delta))
	}
	return t
}

func (t *RawPtrType) String() string {
	if t.kind == Constant {
		return fmt.Sprintf("rawptr:%#x", t.Bits)
	}
	return "rawptr:" + ptrKindNames[t.kind]
}

func (t *RawPtrType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagInt, TagLong,
		TagHalfFloatTop, TagHalfFloatCon, TagHalfFloatBot,
		TagFloatTop, TagFloatCon, TagFloatBot,
		TagDoubleTop, TagDoubleCon, TagDoubleBot,
		TagVectorMask, TagVectorA, TagVectorS, TagVectorD,
		TagVectorX, TagVectorY, TagVectorZ,
		TagNarrowOop, TagNarrowKlass,
		TagBottom, TagHalf:
		return Bottom
	case TagTop:
		return t
	case TagRawPtr:
		tp := o.(*RawPtrType)
		kind := ptrMeet[t.kind][tp.kind]
		if kind == Constant {
			// Equal constants are the same interned type, so these
			// are different addresses: fall down the lattice unless
			// only one side was a constant.
			if tp.kind == Constant && t.kind != Constant {
				return tp
			}
			if t.kind == Constant && tp.kind != Constant {
				return t
			}
			kind = NotNull
		}
		return c.makeRawPtr(kind, 0)
	case TagOopPtr, TagInstPtr, TagAryPtr,
		TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr:
		// A heap pointer meet a machine address is not well defined.
		return PtrBottom
	case TagAnyPtr:
		tp := o.(*AnyPtrType)
		switch tp.kind {
		case TopPTR:
			return t
		case BotPTR:
			return tp
		case Null:
			if t.kind == TopPTR {
				return tp
			}
			return RawBottom
		case NotNull:
			return c.makeAnyPtr(ptrMeet[t.kind][NotNull], meetOffset(tp.off, 0), tp.spec, tp.depth)
		case AnyNull:
			if t.kind == Constant {
				return t
			}
			return c.makeRawPtr(ptrMeet[t.kind][AnyNull], 0)
		}
		util.ShouldNotReachHere("raw meet anyptr")
	}
	c.typerr(t, o)
	return nil
}
