package types

import "github.com/xplshn/jolt/pkg/util"

// NarrowPtrType is a 32-bit compressed view of a full-width heap or
// klass pointer. All algebra happens on the wrapped type; the wrapper
// only records which compression scheme applies.
type NarrowPtrType struct {
	baseType
	ptrType Type
}

func newNarrow(tag Tag, ptr Type) *NarrowPtrType {
	t := &NarrowPtrType{ptrType: ptr}
	t.tag = tag
	t.hash = newHash(tag).sub(ptr).done()
	return t
}

// MakeNarrowOop interns the compressed view of a heap pointer type.
func (c *Context) MakeNarrowOop(ptr Type) Type { return c.makeNarrow(TagNarrowOop, ptr) }

// MakeNarrowKlass interns the compressed view of a klass pointer type.
func (c *Context) MakeNarrowKlass(ptr Type) Type { return c.makeNarrow(TagNarrowKlass, ptr) }

func (c *Context) makeNarrow(tag Tag, ptr Type) Type {
	_, ok := ptr.(ptrType)
	util.Assertf(ok, "compressing a non-pointer type: %v", ptr)
	return c.hashcons(newNarrow(tag, ptr))
}

// PtrType returns the wrapped full-width pointer type.
func (t *NarrowPtrType) PtrType() Type { return t.ptrType }

func (t *NarrowPtrType) eq(o Type) bool {
	n, ok := o.(*NarrowPtrType)
	return ok && t.tag == n.tag && t.ptrType == n.ptrType
}

func (t *NarrowPtrType) xdual() Type { return newNarrow(t.tag, t.ptrType.Dual()) }

func (t *NarrowPtrType) Singleton() bool { return t.ptrType.Singleton() }
func (t *NarrowPtrType) Empty() bool     { return t.ptrType.Empty() }

func (t *NarrowPtrType) String() string {
	if t.tag == TagNarrowKlass {
		return "narrowklass:" + t.ptrType.String()
	}
	return "narrowoop:" + t.ptrType.String()
}

func (t *NarrowPtrType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagTop:
		return t
	case t.tag:
		return c.makeNarrow(t.tag, c.meetHelper(t.ptrType, o.(*NarrowPtrType).ptrType, true))
	case TagInt, TagLong,
		TagHalfFloatTop, TagHalfFloatCon, TagHalfFloatBot,
		TagFloatTop, TagFloatCon, TagFloatBot,
		TagDoubleTop, TagDoubleCon, TagDoubleBot,
		TagAnyPtr, TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr,
		TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr,
		TagNarrowOop, TagNarrowKlass,
		TagVectorMask, TagVectorA, TagVectorS, TagVectorD,
		TagVectorX, TagVectorY, TagVectorZ,
		TagBottom, TagHalf:
		// A compressed pointer never unifies with a differently
		// compressed or uncompressed value.
		return Bottom
	}
	c.typerr(t, o)
	return nil
}

func (c *Context) filterNarrow(t *NarrowPtrType, kills Type, includeSpec bool) Type {
	k, ok := kills.(*NarrowPtrType)
	if !ok || k.tag != t.tag {
		return Top
	}
	ft := c.filterHelper(t.ptrType, k.ptrType, includeSpec)
	if ft.Empty() || ft == Top {
		return Top
	}
	if _, isPtr := ft.(ptrType); !isPtr {
		return ft
	}
	return c.makeNarrow(t.tag, ft)
}
