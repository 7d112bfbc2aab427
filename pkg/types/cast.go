package types

import (
	"github.com/xplshn/jolt/pkg/klass"

	"github.com/xplshn/jolt/pkg/util"
)

// The CastTo* family rebuilds a pointer type with one part replaced,
// leaving everything else alone. Non-pointer types pass through
// unchanged so callers can cast whatever a node computes.

// CastToPtrType rebuilds t with its nullability kind replaced. A
// constant loses its oop when the kind moves away from Constant.
func (c *Context) CastToPtrType(t Type, kind PtrKind) Type {
	switch tt := t.(type) {
	case *NarrowPtrType:
		return c.makeNarrow(tt.tag, c.CastToPtrType(tt.ptrType, kind))
	case *AnyPtrType:
		if tt.kind == kind {
			return t
		}
		return c.makeAnyPtr(kind, tt.off, tt.spec, tt.depth)
	case *RawPtrType:
		if tt.kind == kind {
			return t
		}
		util.Assertf(kind != Constant, "a raw constant needs its address bits")
		return c.makeRawPtr(kind, 0)
	case *OopPtrType:
		if tt.kind == kind {
			return t
		}
		return c.makeOopPtr(kind, tt.off, tt.iid, tt.spec, tt.depth)
	case *InstPtrType:
		if tt.kind == kind {
			return t
		}
		obj := tt.obj
		if kind != Constant {
			obj = nil
		}
		return c.makeInstPtrRaw(kind, tt.klass, tt.ifaces, tt.exact, obj, tt.off, tt.iid, tt.spec, tt.depth)
	case *AryPtrType:
		if tt.kind == kind {
			return t
		}
		obj := tt.obj
		if kind != Constant {
			obj = nil
		}
		return c.makeAryPtrRaw(kind, obj, tt.ary, tt.klass, tt.exact, tt.off, tt.iid, tt.spec, tt.depth)
	case *InstKlassPtrType:
		if tt.kind == kind {
			return t
		}
		return c.makeInstKlassPtr(kind, tt.klass, tt.ifaces, tt.exact, tt.off)
	case *AryKlassPtrType:
		if tt.kind == kind {
			return t
		}
		return c.hashcons(newAryKlassPtr(kind, tt.elem, tt.klass, tt.exact, tt.off))
	case *MetadataPtrType:
		if tt.kind == kind {
			return t
		}
		m := tt.m
		if kind != Constant {
			m = nil
		}
		return c.hashcons(newMetadataPtr(kind, m, tt.off))
	}
	return t
}

// CastToExactness pins or releases the klass of an instance or array
// pointer. Constants and final classes stay exact regardless.
func (c *Context) CastToExactness(t Type, exact bool) Type {
	switch tt := t.(type) {
	case *NarrowPtrType:
		return c.makeNarrow(tt.tag, c.CastToExactness(tt.ptrType, exact))
	case *InstPtrType:
		if tt.exact == exact || !tt.klass.Loaded {
			return t
		}
		return c.makeInstPtrRaw(tt.kind, tt.klass, tt.ifaces, exact, tt.obj, tt.off, tt.iid, tt.spec, tt.depth)
	case *AryPtrType:
		if tt.exact == exact || (!exact && aryMustBeExact(tt.ary)) {
			return t
		}
		return c.makeAryPtrRaw(tt.kind, tt.obj, tt.ary, tt.klass, exact, tt.off, tt.iid, tt.spec, tt.depth)
	case *InstKlassPtrType:
		if tt.exact == exact || !tt.klass.Loaded {
			return t
		}
		return c.makeInstKlassPtr(tt.kind, tt.klass, tt.ifaces, exact, tt.off)
	case *AryKlassPtrType:
		if tt.exact == exact {
			return t
		}
		return c.hashcons(newAryKlassPtr(tt.kind, tt.elem, tt.klass, exact, tt.off))
	}
	return t
}

// CastToInstanceID moves a heap pointer to a different point on the
// instance-id lattice, typically pinning it to one allocation.
func (c *Context) CastToInstanceID(t Type, iid int32) Type {
	switch tt := t.(type) {
	case *NarrowPtrType:
		return c.makeNarrow(tt.tag, c.CastToInstanceID(tt.ptrType, iid))
	case *OopPtrType:
		if tt.iid == iid {
			return t
		}
		return c.makeOopPtr(tt.kind, tt.off, iid, tt.spec, tt.depth)
	case *InstPtrType:
		if tt.iid == iid {
			return t
		}
		return c.makeInstPtrRaw(tt.kind, tt.klass, tt.ifaces, tt.exact, tt.obj, tt.off, iid, tt.spec, tt.depth)
	case *AryPtrType:
		if tt.iid == iid {
			return t
		}
		return c.makeAryPtrRaw(tt.kind, tt.obj, tt.ary, tt.klass, tt.exact, tt.off, iid, tt.spec, tt.depth)
	}
	return t
}

// WithOffset rebuilds a pointer type at an absolute offset, unlike
// AddOffset which is relative. The speculative part moves with it.
func (c *Context) WithOffset(t Type, off int32) Type {
	switch tt := t.(type) {
	case *NarrowPtrType:
		return c.makeNarrow(tt.tag, c.WithOffset(tt.ptrType, off))
	case *AnyPtrType:
		return c.makeAnyPtr(tt.kind, off, c.withOffsetSpeculative(tt.spec, off), tt.depth)
	case *OopPtrType:
		return c.makeOopPtr(tt.kind, off, tt.iid, c.withOffsetSpeculative(tt.spec, off), tt.depth)
	case *InstPtrType:
		return c.makeInstPtrRaw(tt.kind, tt.klass, tt.ifaces, tt.exact, tt.obj,
			off, tt.iid, c.withOffsetSpeculative(tt.spec, off), tt.depth)
	case *AryPtrType:
		return c.makeAryPtrRaw(tt.kind, tt.obj, tt.ary, tt.klass, tt.exact,
			off, tt.iid, c.withOffsetSpeculative(tt.spec, off), tt.depth)
	case *InstKlassPtrType:
		return c.makeInstKlassPtr(tt.kind, tt.klass, tt.ifaces, tt.exact, off)
	case *AryKlassPtrType:
		return c.hashcons(newAryKlassPtr(tt.kind, tt.elem, tt.klass, tt.exact, off))
	case *MetadataPtrType:
		return c.hashcons(newMetadataPtr(tt.kind, tt.m, off))
	}
	return t
}

func (c *Context) withOffsetSpeculative(spec Type, off int32) Type {
	if spec == nil {
		return nil
	}
	return c.WithOffset(spec, off)
}

// CastToSize replaces the length bounds of an array pointer.
func (c *Context) CastToSize(t Type, size *IntType) Type {
	switch tt := t.(type) {
	case *NarrowPtrType:
		return c.makeNarrow(tt.tag, c.CastToSize(tt.ptrType, size))
	case *AryPtrType:
		ary := c.MakeAry(tt.ary.elem, size, tt.ary.stable)
		if ary == tt.ary {
			return t
		}
		return c.makeAryPtrRaw(tt.kind, tt.obj, ary, tt.klass, tt.exact, tt.off, tt.iid, tt.spec, tt.depth)
	}
	util.ShouldNotReachHere("sizing a non-array type")
	return nil
}

// CastToStable marks or unmarks the array contents as stable.
func (c *Context) CastToStable(t Type, stable bool) Type {
	switch tt := t.(type) {
	case *NarrowPtrType:
		return c.makeNarrow(tt.tag, c.CastToStable(tt.ptrType, stable))
	case *AryPtrType:
		ary := c.MakeAry(tt.ary.elem, tt.ary.size, stable)
		if ary == tt.ary {
			return t
		}
		return c.makeAryPtrRaw(tt.kind, tt.obj, ary, tt.klass, tt.exact, tt.off, tt.iid, tt.spec, tt.depth)
	}
	util.ShouldNotReachHere("marking a non-array type stable")
	return nil
}

// The subtype predicates compare the class views of two heap pointer
// types. IsJavaSubtypeOf answers "provably yes", MaybeJavaSubtypeOf
// answers "not provably no"; nullability and offsets play no part.

// IsSameJavaTypeAs reports whether t and o describe exactly the same
// set of classes.
func (c *Context) IsSameJavaTypeAs(t, o Type) bool {
	a, ok1 := unwrapOop(t)
	b, ok2 := unwrapOop(o)
	if !ok1 || !ok2 {
		return false
	}
	at, aAry := a.(*AryPtrType)
	bt, bAry := b.(*AryPtrType)
	if aAry != bAry {
		return false
	}
	if aAry {
		return at.exact == bt.exact && at.klass == bt.klass &&
			c.sameElem(at.ary.elem, bt.ary.elem)
	}
	ao, bo := a.oopPart(), b.oopPart()
	return ao.klass == bo.klass && ao.exact == bo.exact && ao.ifaces == bo.ifaces
}

// IsJavaSubtypeOf reports whether every class t can hold is a subtype
// of every class o allows.
func (c *Context) IsJavaSubtypeOf(t, o Type) bool {
	a, ok1 := unwrapOop(t)
	b, ok2 := unwrapOop(o)
	if !ok1 || !ok2 {
		return false
	}
	at, aAry := a.(*AryPtrType)
	bt, bAry := b.(*AryPtrType)
	switch {
	case aAry && bAry:
		if bt.exact && !at.exact {
			return false
		}
		if _, ok := unwrapOop(at.ary.elem); ok {
			if _, ok := unwrapOop(bt.ary.elem); ok {
				return c.IsJavaSubtypeOf(at.ary.elem, bt.ary.elem)
			}
		}
		// Primitive arrays relate only when the elements agree.
		return c.sameElem(at.ary.elem, bt.ary.elem)
	case aAry:
		// An array is below Object and the array marker interfaces.
		bo := b.oopPart()
		return !bo.exact && bo.klass == c.hier.Object &&
			c.arrayIfaces.ContainsAll(bo.ifaces)
	case bAry:
		return false
	}
	ao, bo := a.oopPart(), b.oopPart()
	if !ao.klass.Loaded || !bo.klass.Loaded {
		return false
	}
	if bo.exact {
		return ao.exact && ao.klass == bo.klass
	}
	return c.hier.IsSubtypeOf(ao.klass, bo.klass) && ao.ifaces.ContainsAll(bo.ifaces)
}

// MaybeJavaSubtypeOf reports whether some value of t could be a
// subtype of o. Unloaded classes answer yes.
func (c *Context) MaybeJavaSubtypeOf(t, o Type) bool {
	a, ok1 := unwrapOop(t)
	b, ok2 := unwrapOop(o)
	if !ok1 || !ok2 {
		return false
	}
	at, aAry := a.(*AryPtrType)
	bt, bAry := b.(*AryPtrType)
	switch {
	case aAry && bAry:
		if _, ok := unwrapOop(at.ary.elem); ok {
			if _, ok := unwrapOop(bt.ary.elem); ok {
				return c.MaybeJavaSubtypeOf(at.ary.elem, bt.ary.elem)
			}
		}
		return c.sameElem(at.ary.elem, bt.ary.elem)
	case aAry:
		bo := b.oopPart()
		return !bo.exact && bo.klass == c.hier.Object &&
			c.arrayIfaces.ContainsAll(bo.ifaces)
	case bAry:
		ao := a.oopPart()
		return !ao.exact && ao.klass == c.hier.Object &&
			c.arrayIfaces.ContainsAll(ao.ifaces)
	}
	ao, bo := a.oopPart(), b.oopPart()
	if !ao.klass.Loaded || !bo.klass.Loaded {
		return true
	}
	if ao.exact {
		return c.IsJavaSubtypeOf(t, o)
	}
	if bo.exact {
		return c.hier.IsSubtypeOf(bo.klass, ao.klass)
	}
	// Two inexact classes overlap unless they sit on unrelated
	// branches of the class tree, interfaces aside.
	if !ao.ifaces.IsEmpty() || !bo.ifaces.IsEmpty() {
		return true
	}
	return c.hier.IsSubtypeOf(ao.klass, bo.klass) || c.hier.IsSubtypeOf(bo.klass, ao.klass)
}

func unwrapOop(t Type) (oopPtrType, bool) {
	if n, ok := t.(*NarrowPtrType); ok {
		t = n.ptrType
	}
	op, ok := t.(oopPtrType)
	return op, ok
}

// sameElem compares array element types through any compression
// wrapper.
func (c *Context) sameElem(a, b Type) bool {
	if n, ok := a.(*NarrowPtrType); ok {
		a = n.ptrType
	}
	if n, ok := b.(*NarrowPtrType); ok {
		b = n.ptrType
	}
	return a == b
}

// Contains reports whether k is one of the interfaces in the set.
func (t *InterfacesType) Contains(k *klass.Klass) bool {
	for _, x := range t.list {
		if x == k {
			return true
		}
	}
	return false
}

// ExactKlass returns the member whose transitive closure is exactly
// the whole set, nil when no member accounts for every other one.
// Both the set and the closures are id-sorted, so a slice compare
// decides.
func (t *InterfacesType) ExactKlass(h *klass.Hierarchy) *klass.Klass {
	for _, x := range t.list {
		closure := h.TransitiveInterfaces(x)
		if len(closure) != len(t.list) {
			continue
		}
		same := true
		for i := range closure {
			if closure[i] != t.list[i] {
				same = false
				break
			}
		}
		if same {
			return x
		}
	}
	return nil
}
