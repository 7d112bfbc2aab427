package types

import (
	"fmt"
	"strings"

	"github.com/xplshn/jolt/pkg/util"
)

// TupleType is an ordered, fixed-arity product of types. Tuples show
// up as the multi-value outputs of control-splitting nodes and as the
// domain and range of function signatures; they are not values in
// their own right, so a tuple is never a singleton.
type TupleType struct {
	baseType
	fields []Type
}

func newTuple(fields []Type) *TupleType {
	t := &TupleType{fields: fields}
	t.tag = TagTuple
	h := newHash(TagTuple).u64(uint64(len(fields)))
	for _, f := range fields {
		h.sub(f)
	}
	t.hash = h.done()
	return t
}

// MakeTuple interns the product of the given field types, in order.
func (c *Context) MakeTuple(fields ...Type) *TupleType {
	copied := make([]Type, len(fields))
	copy(copied, fields)
	return c.hashcons(newTuple(copied)).(*TupleType)
}

// Cnt returns the arity.
func (t *TupleType) Cnt() int { return len(t.fields) }

// FieldAt returns the i'th field type.
func (t *TupleType) FieldAt(i int) Type { return t.fields[i] }

func (t *TupleType) eq(o Type) bool {
	x, ok := o.(*TupleType)
	if !ok || len(t.fields) != len(x.fields) {
		return false
	}
	for i, f := range t.fields {
		if f != x.fields[i] {
			return false
		}
	}
	return true
}

func (t *TupleType) xdual() Type {
	fields := make([]Type, len(t.fields))
	for i, f := range t.fields {
		fields[i] = f.Dual()
	}
	return newTuple(fields)
}

func (t *TupleType) Singleton() bool { return false }

// Empty reports whether any field denotes no values; a product with an
// uninhabited component is itself uninhabited.
func (t *TupleType) Empty() bool {
	for _, f := range t.fields {
		if f.Empty() {
			return true
		}
	}
	return false
}

func (t *TupleType) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, f := range t.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

func (t *TupleType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagTop:
		return t
	case TagBottom:
		return Bottom
	case TagTuple:
		x := o.(*TupleType)
		util.Assertf(len(t.fields) == len(x.fields), "meet of tuples with differing arity: %v / %v", t, x)
		fields := make([]Type, len(t.fields))
		for i, f := range t.fields {
			fields[i] = c.meetHelper(f, x.fields[i], true)
		}
		return c.MakeTuple(fields...)
	}
	c.typerr(t, o)
	return nil
}

// VectType is a SIMD value: length lanes of a uniform element type.
// The tag carries the register species, so vectors of different
// physical widths never unify below Bottom. Vector types sit in a
// flat sub-lattice: each species/element/length combination relates
// only to itself, Top and Bottom, and is its own dual.
type VectType struct {
	baseType
	elem   Type
	length uint32
}

func newVect(tag Tag, elem Type, length uint32) *VectType {
	t := &VectType{elem: elem, length: length}
	t.tag = tag
	t.hash = newHash(tag).sub(elem).u32(length).done()
	return t
}

// MakeVect interns a vector of length lanes, each lane elemBits wide,
// choosing the register species from the total bit width. Widths that
// match no fixed register map to the scalable species.
func (c *Context) MakeVect(elem Type, length uint32, elemBits uint32) *VectType {
	util.Assertf(length > 0, "vector with no lanes")
	var tag Tag
	switch elemBits * length {
	case 32:
		tag = TagVectorS
	case 64:
		tag = TagVectorD
	case 128:
		tag = TagVectorX
	case 256:
		tag = TagVectorY
	case 512:
		tag = TagVectorZ
	default:
		tag = TagVectorA
	}
	return c.hashcons(newVect(tag, elem, length)).(*VectType)
}

// MakeVectMask interns a predicate vector with one mask lane per
// element lane.
func (c *Context) MakeVectMask(elem Type, length uint32) *VectType {
	util.Assertf(length > 0, "mask with no lanes")
	return c.hashcons(newVect(TagVectorMask, elem, length)).(*VectType)
}

// Elem returns the lane type.
func (t *VectType) Elem() Type { return t.elem }

// Length returns the lane count.
func (t *VectType) Length() uint32 { return t.length }

func (t *VectType) eq(o Type) bool {
	x, ok := o.(*VectType)
	return ok && t.tag == x.tag && t.elem == x.elem && t.length == x.length
}

func (t *VectType) xdual() Type { return newVect(t.tag, t.elem, t.length) }

func (t *VectType) Singleton() bool { return false }
func (t *VectType) Empty() bool     { return false }

func (t *VectType) String() string {
	return fmt.Sprintf("%s[%d]:{%v}", tagNames[t.tag], t.length, t.elem)
}

func (t *VectType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagTop:
		return t
	case TagBottom:
		return Bottom
	case TagVectorMask, TagVectorA, TagVectorS, TagVectorD, TagVectorX, TagVectorY, TagVectorZ,
		TagInt, TagLong,
		TagHalfFloatTop, TagHalfFloatCon, TagHalfFloatBot,
		TagFloatTop, TagFloatCon, TagFloatBot,
		TagDoubleTop, TagDoubleCon, TagDoubleBot,
		TagAnyPtr, TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr,
		TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr,
		TagNarrowOop, TagNarrowKlass:
		// Distinct vector shapes, and vectors against scalars or
		// pointers, share no values.
		return Bottom
	}
	c.typerr(t, o)
	return nil
}

// FuncType is a call signature: a domain tuple (receiver and
// parameters) and a range tuple (results). Signatures are attached to
// call nodes and never flow as data, so two different signatures fall
// straight to Bottom.
type FuncType struct {
	baseType
	domain *TupleType
	rng    *TupleType
}

func newFunc(domain, rng *TupleType) *FuncType {
	t := &FuncType{domain: domain, rng: rng}
	t.tag = TagFunction
	t.hash = newHash(TagFunction).sub(domain).sub(rng).done()
	return t
}

// MakeFunc interns a signature over interned domain and range tuples.
func (c *Context) MakeFunc(domain, rng *TupleType) *FuncType {
	return c.hashcons(newFunc(domain, rng)).(*FuncType)
}

// Domain returns the parameter tuple.
func (t *FuncType) Domain() *TupleType { return t.domain }

// Range returns the result tuple.
func (t *FuncType) Range() *TupleType { return t.rng }

func (t *FuncType) eq(o Type) bool {
	x, ok := o.(*FuncType)
	return ok && t.domain == x.domain && t.rng == x.rng
}

func (t *FuncType) xdual() Type { return newFunc(t.domain, t.rng) }

func (t *FuncType) Singleton() bool { return false }
func (t *FuncType) Empty() bool     { return false }

func (t *FuncType) String() string {
	return fmt.Sprintf("%v -> %v", t.domain, t.rng)
}

func (t *FuncType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagTop:
		return t
	case TagBottom:
		return Bottom
	case TagFunction:
		return Bottom
	}
	c.typerr(t, o)
	return nil
}
