// Package types implements the hash-consed type lattice of an
// optimizing JIT compiler: canonical, immutable value types with
// meet/dual/filter algebra over primitives, bounded integer ranges,
// the pointer family and structural composites.
//
// Types are interned per Context; structurally equal types are
// pointer-identical, so identity compares are exact. Every canonical
// type carries a memoized link to its lattice dual.
package types

import (
	"fmt"
	"os"

	"github.com/xplshn/jolt/pkg/config"
	"github.com/xplshn/jolt/pkg/util"
)

// Tag discriminates the closed set of type shapes.
type Tag int

const (
	TagBad Tag = iota // unused lattice position, never interned
	TagControl
	TagTop
	TagInt
	TagLong
	TagHalf // second half of a two-slot long/double value
	TagNarrowOop
	TagNarrowKlass
	TagTuple
	TagArray
	TagInterfaces
	TagVectorMask
	TagVectorA
	TagVectorS
	TagVectorD
	TagVectorX
	TagVectorY
	TagVectorZ
	TagAnyPtr
	TagRawPtr
	TagOopPtr
	TagInstPtr
	TagAryPtr
	TagMetadataPtr
	TagKlassPtr
	TagInstKlassPtr
	TagAryKlassPtr
	TagFunction
	TagAbio
	TagReturnAddress
	TagMemory
	TagHalfFloatTop
	TagHalfFloatCon
	TagHalfFloatBot
	TagFloatTop
	TagFloatCon
	TagFloatBot
	TagDoubleTop
	TagDoubleCon
	TagDoubleBot
	TagBottom
	tagCount
)

var tagNames = [tagCount]string{
	"bad", "control", "top", "int", "long", "half",
	"narrowoop", "narrowklass", "tuple", "array", "interfaces",
	"vectormask", "vectora", "vectors", "vectord", "vectorx", "vectory", "vectorz",
	"anyptr", "rawptr", "oopptr", "instptr", "aryptr",
	"metadataptr", "klassptr", "instklassptr", "aryklassptr",
	"func", "abio", "return_address", "memory",
	"halffloat_top", "halffloat_con", "halffloat",
	"float_top", "float_con", "float",
	"double_top", "double_con", "double",
	"bottom",
}

func (t Tag) String() string { return tagNames[t] }

// dualTag maps each field-free tag to the tag of its dual. Tags whose
// variants carry fields compute duals field-by-field instead.
var dualTag = [tagCount]Tag{
	TagBad:           TagBad,
	TagControl:       TagControl,
	TagTop:           TagBottom,
	TagHalf:          TagHalf,
	TagAbio:          TagAbio,
	TagReturnAddress: TagReturnAddress,
	TagMemory:        TagMemory,
	TagHalfFloatTop:  TagHalfFloatBot,
	TagHalfFloatBot:  TagHalfFloatTop,
	TagFloatTop:      TagFloatBot,
	TagFloatBot:      TagFloatTop,
	TagDoubleTop:     TagDoubleBot,
	TagDoubleBot:     TagDoubleTop,
	TagBottom:        TagTop,
}

// Type is one canonical lattice element.
type Type interface {
	Base() Tag
	// Dual returns the memoized lattice dual. Double dual is identity.
	Dual() Type
	// Singleton reports whether the type denotes exactly one value.
	Singleton() bool
	// Empty reports whether the type denotes no values at all.
	Empty() bool
	String() string

	eq(t Type) bool
	hashVal() uint64
	xmeet(c *Context, t Type) Type
	xdual() Type
	common() *baseType
}

// baseType is embedded in every variant: the tag, the structural hash
// (computed once, before interning) and the dual back-reference
// (written once, by hashcons).
type baseType struct {
	tag  Tag
	hash uint64
	dual Type
}

func (b *baseType) Base() Tag         { return b.tag }
func (b *baseType) hashVal() uint64   { return b.hash }
func (b *baseType) common() *baseType { return b }

func (b *baseType) Dual() Type {
	util.Assertf(b.dual != nil, "dual queried on a type that was never interned: %v", b.tag)
	return b.dual
}

// simpleType covers every field-free tag: markers (Control, Memory,
// Abio, ReturnAddress, Half), the lattice extremes, and the Top/Bot
// ends of the three float families.
type simpleType struct{ baseType }

func newSimpleType(tag Tag) *simpleType {
	return &simpleType{baseType{tag: tag, hash: newHash(tag).done()}}
}

func (s *simpleType) eq(t Type) bool { return s.tag == t.Base() }
func (s *simpleType) xdual() Type    { return newSimpleType(dualTag[s.tag]) }

func (s *simpleType) Singleton() bool { return s.tag == TagTop || s.tag == TagHalf }

func (s *simpleType) Empty() bool {
	switch s.tag {
	case TagTop, TagHalfFloatTop, TagFloatTop, TagDoubleTop:
		return true
	}
	return false
}

func (s *simpleType) String() string { return tagNames[s.tag] }

// isFloatFamily reports whether tag belongs to one of the three
// floating-point sub-lattices. Mixing two families falls to Bottom
// rather than being a compile-time error.
func isFloatFamily(tag Tag) bool {
	switch tag {
	case TagHalfFloatTop, TagHalfFloatBot, TagHalfFloatCon,
		TagFloatTop, TagFloatBot, TagFloatCon,
		TagDoubleTop, TagDoubleBot, TagDoubleCon:
		return true
	}
	return false
}

func (s *simpleType) xmeet(c *Context, t Type) Type {
	if Type(s) == t {
		return s
	}
	// Meeting TOP or BOTTOM with anything?
	if s.tag == TagTop {
		return t
	}
	if s.tag == TagBottom {
		return Bottom
	}

	switch t.Base() {
	case TagTop:
		return s
	case TagBottom:
		return Bottom

	// Cut the number of cases in half: variants that carry fields
	// know how to meet a simple type, so flip the dispatch.
	case TagInt, TagLong, TagHalfFloatCon, TagFloatCon, TagDoubleCon,
		TagAnyPtr, TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr,
		TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr,
		TagNarrowOop, TagNarrowKlass,
		TagTuple, TagArray, TagInterfaces, TagFunction,
		TagVectorMask, TagVectorA, TagVectorS, TagVectorD, TagVectorX, TagVectorY, TagVectorZ:
		return t.xmeet(c, s)

	case TagHalfFloatTop:
		if s.tag == TagHalfFloatTop {
			return s
		}
		fallthrough
	case TagHalfFloatBot:
		if s.tag == TagHalfFloatTop || s.tag == TagHalfFloatBot {
			return HalfFloat
		}
		if isFloatFamily(s.tag) {
			return Bottom
		}
		c.typerr(s, t)

	case TagFloatTop:
		if s.tag == TagFloatTop {
			return s
		}
		fallthrough
	case TagFloatBot:
		if s.tag == TagFloatTop || s.tag == TagFloatBot {
			return Float
		}
		if isFloatFamily(s.tag) {
			return Bottom
		}
		c.typerr(s, t)

	case TagDoubleTop:
		if s.tag == TagDoubleTop {
			return s
		}
		fallthrough
	case TagDoubleBot:
		if s.tag == TagDoubleTop || s.tag == TagDoubleBot {
			return Double
		}
		if isFloatFamily(s.tag) {
			return Bottom
		}
		c.typerr(s, t)

	// These must match exactly, or it is a compile-time error.
	case TagControl, TagAbio, TagMemory, TagReturnAddress, TagHalf:
		if s.tag == t.Base() {
			return s
		}
		c.typerr(s, t)
	}
	c.typerr(s, t)
	return nil
}

// Meet computes the greatest lower bound of a and b, speculative
// parts included.
func (c *Context) Meet(a, b Type) Type { return c.meetHelper(a, b, true) }

// MeetIgnoringSpeculative meets with both speculative parts dropped.
func (c *Context) MeetIgnoringSpeculative(a, b Type) Type { return c.meetHelper(a, b, false) }

// Join computes the least upper bound: the meet performed on the dual
// lattice, dualized back.
func (c *Context) Join(a, b Type) Type { return c.joinHelper(a, b, true) }

func (c *Context) joinHelper(a, b Type, includeSpec bool) Type {
	return c.meetHelper(a.Dual(), b.Dual(), includeSpec).Dual()
}

func (c *Context) meetHelper(a, b Type, includeSpec bool) Type {
	// Compressed pointers meet as their wrapped pointers; the result
	// re-compresses, and no symmetry verification runs on the wrapper
	// level (it runs on the wrapped meet instead).
	if a.Base() == TagNarrowOop && b.Base() == TagNarrowOop {
		return c.MakeNarrowOop(c.meetHelper(a.(*NarrowPtrType).ptrType, b.(*NarrowPtrType).ptrType, includeSpec))
	}
	if a.Base() == TagNarrowKlass && b.Base() == TagNarrowKlass {
		return c.MakeNarrowKlass(c.meetHelper(a.(*NarrowPtrType).ptrType, b.(*NarrowPtrType).ptrType, includeSpec))
	}

	ta := c.maybeRemoveSpeculative(a, includeSpec)
	tb := c.maybeRemoveSpeculative(b, includeSpec)
	mt := ta.xmeet(c, tb)

	if !c.verifyOn {
		return mt
	}
	if a.Base() == TagNarrowOop || b.Base() == TagNarrowOop ||
		a.Base() == TagNarrowKlass || b.Base() == TagNarrowKlass {
		return mt
	}
	c.verify.enter(c)
	defer c.verify.leave(c)
	c.checkSymmetrical(ta, tb, mt)
	return mt
}

// checkSymmetrical verifies that the meet is commutative and that the
// dual of the meet absorbs both operand duals. A violation is not
// recoverable: an asymmetric meet silently corrupts every downstream
// fixpoint, so the process aborts with a diagnostic dump.
func (c *Context) checkSymmetrical(this, t, mt Type) {
	mt2 := c.verify.meet(c, t, this)
	if mt != mt2 {
		fmt.Fprintf(os.Stderr, "=== Meet Not Commutative ===\n")
		fmt.Fprintf(os.Stderr, "t           = %v\n", t)
		fmt.Fprintf(os.Stderr, "this        = %v\n", this)
		fmt.Fprintf(os.Stderr, "t meet this = %v\n", mt2)
		fmt.Fprintf(os.Stderr, "this meet t = %v\n", mt)
		util.Fatalf("meet not commutative")
	}
	dualJoin := mt.Dual()
	t2t := c.verify.meet(c, dualJoin, t.Dual())
	t2this := c.verify.meet(c, dualJoin, this.Dual())

	// Interface meet Oop is not symmetric by construction; skip.
	if interfaceVsOop(this, t) {
		return
	}
	if t2t != t.Dual() || t2this != this.Dual() {
		fmt.Fprintf(os.Stderr, "=== Meet Not Symmetric ===\n")
		fmt.Fprintf(os.Stderr, "t             = %v\n", t)
		fmt.Fprintf(os.Stderr, "this          = %v\n", this)
		fmt.Fprintf(os.Stderr, "mt=(t meet this) = %v\n", mt)
		fmt.Fprintf(os.Stderr, "t_dual        = %v\n", t.Dual())
		fmt.Fprintf(os.Stderr, "this_dual     = %v\n", this.Dual())
		fmt.Fprintf(os.Stderr, "mt_dual       = %v\n", dualJoin)
		fmt.Fprintf(os.Stderr, "mt_dual meet t_dual    = %v\n", t2t)
		fmt.Fprintf(os.Stderr, "mt_dual meet this_dual = %v\n", t2this)
		util.Fatalf("meet not symmetric")
	}
}

// interfaceVsOop reports whether one operand is an interface-typed
// instance pointer while the other is a concrete one, including
// through speculative parts. Such meets are exempt from the dual
// symmetry check.
func interfaceVsOop(a, b Type) bool {
	if interfaceVsOopHelper(a, b) {
		return true
	}
	aSpec := speculativeOf(a)
	bSpec := speculativeOf(b)
	if aSpec != nil && interfaceVsOop(aSpec, b) {
		return true
	}
	if bSpec != nil && interfaceVsOop(a, bSpec) {
		return true
	}
	return false
}

func interfaceVsOopHelper(a, b Type) bool {
	ai, aok := a.(*InstPtrType)
	bi, bok := b.(*InstPtrType)
	if !aok || !bok || !ai.klass.Loaded || !bi.klass.Loaded {
		return false
	}
	return ai.isInterfaceType() != bi.isInterfaceType()
}

func speculativeOf(t Type) Type {
	if p, ok := t.(ptrType); ok {
		return p.ptrPart().spec
	}
	return nil
}

func (c *Context) maybeRemoveSpeculative(t Type, includeSpec bool) Type {
	if includeSpec {
		return t
	}
	return c.RemoveSpeculative(t)
}

// Filter is the join of t against kills with empty results
// canonicalized to Top; it is how a pass narrows a type by a control
// condition without ever producing a malformed element.
func (c *Context) Filter(t, kills Type) Type { return c.filterHelper(t, kills, true) }

// FilterIgnoringSpeculative filters with speculative parts dropped.
func (c *Context) FilterIgnoringSpeculative(t, kills Type) Type {
	return c.filterHelper(t, kills, false)
}

func (c *Context) filterHelper(t, kills Type, includeSpec bool) Type {
	switch tt := t.(type) {
	case *IntType:
		return c.filterInt(tt, kills, includeSpec)
	case *LongType:
		return c.filterLong(tt, kills, includeSpec)
	case *NarrowPtrType:
		return c.filterNarrow(tt, kills, includeSpec)
	}
	ft := c.joinHelper(t, kills, includeSpec)
	if ft.Empty() {
		c.warnf(config.WarnEmptyMeet, "filter of %v by %v is empty", t, kills)
		return Top
	}
	return ft
}

// typerr reports a meet of operands that no type-correct pass can
// produce. Caller-contract violation: fatal, not a lattice result.
func (c *Context) typerr(a, b Type) {
	panic(fmt.Sprintf("meet of incompatible types: %v (%v) meet %v (%v)", a, a.Base(), b, b.Base()))
}
