package types

import (
	"fmt"

	"github.com/xplshn/jolt/pkg/klass"

	"github.com/xplshn/jolt/pkg/util"
)

// MetadataPtrType points into VM metadata (a method or its profile),
// not the Java heap. Constants carry the metadata handle.
type MetadataPtrType struct {
	ptrBase
	m *klass.Method
}

func newMetadataPtr(kind PtrKind, m *klass.Method, off int32) *MetadataPtrType {
	t := &MetadataPtrType{ptrBase: ptrBase{kind: kind, off: off, depth: InlineDepthBottom}, m: m}
	t.tag = TagMetadataPtr
	h := newHash(TagMetadataPtr).u64(uint64(kind)).i32(off)
	if m != nil {
		h.u64(m.Seq)
	} else {
		h.u64(0)
	}
	t.hash = h.done()
	return t
}

// MakeMetadataPtr interns a non-constant metadata pointer.
func (c *Context) MakeMetadataPtr(kind PtrKind, off int32) Type {
	util.Assertf(kind != Constant, "use MakeMethodConstant for metadata constants")
	return c.hashcons(newMetadataPtr(kind, nil, off))
}

// MakeMethodConstant interns the constant pointer to method m.
func (c *Context) MakeMethodConstant(m *klass.Method) Type {
	return c.hashcons(newMetadataPtr(Constant, m, 0))
}

// Metadata returns the constant metadata handle, or nil.
func (t *MetadataPtrType) Metadata() *klass.Method { return t.m }

func (t *MetadataPtrType) eq(o Type) bool {
	p, ok := o.(*MetadataPtrType)
	return ok && t.kind == p.kind && t.off == p.off && t.m == p.m
}

func (t *MetadataPtrType) xdual() Type {
	return newMetadataPtr(ptrDual[t.kind], t.m, dualOffset(t.off))
}

func (t *MetadataPtrType) withSpec(c *Context, spec Type, depth int32) Type { return t }

func (t *MetadataPtrType) addOffset(c *Context, delta int64) Type {
	return c.hashcons(newMetadataPtr(t.kind, t.m, xaddOffset(t.off, delta)))
}

func (t *MetadataPtrType) String() string {
	s := "metadata:" + ptrKindNames[t.kind]
	if t.m != nil {
		s += ":" + t.m.Holder.Name + "." + t.m.Name
	}
	return s + fmtOffset(t.off)
}

func (t *MetadataPtrType) xmeet(c *Context, o Type) Type {
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
	case TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr,
		TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr:
		// Metadata never aliases the heap or klass spaces.
		return PtrBottom
	case TagAnyPtr:
		tp := o.(*AnyPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		switch tp.kind {
		case Null:
			if kind == Null {
				return c.makeAnyPtr(kind, off, tp.spec, tp.depth)
			}
			fallthrough
		case TopPTR, AnyNull:
			return c.hashcons(newMetadataPtr(kind, t.m, off))
		case BotPTR, NotNull:
			return c.makeAnyPtr(kind, off, tp.spec, tp.depth)
		}
		util.ShouldNotReachHere("metadata meet anyptr")
	case TagMetadataPtr:
		tp := o.(*MetadataPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		md := tp.m
		if tp.kind == TopPTR {
			md = t.m
		}
		if tp.kind == TopPTR || t.kind == TopPTR || t.m == tp.m {
			return c.hashcons(newMetadataPtr(kind, md, off))
		}
		// Different metadata constants.
		if kind == Constant {
			if tp.kind == Constant && t.kind != Constant {
				return tp
			}
			if t.kind == Constant && tp.kind != Constant {
				return t
			}
			kind = NotNull
		}
		return c.hashcons(newMetadataPtr(kind, nil, off))
	}
	c.typerr(t, o)
	return nil
}

// klassBase carries the parts shared by the klass-pointer mirrors of
// instance and array types.
type klassBase struct {
	ptrBase
	klass  *klass.Klass
	ifaces *InterfacesType
	exact  bool
}

func (k *klassBase) Klass() *klass.Klass         { return k.klass }
func (k *klassBase) Interfaces() *InterfacesType { return k.ifaces }
func (k *klassBase) KlassIsExact() bool          { return k.exact }

// InstKlassPtrType is a pointer to the klass of an instance type: the
// compile-time mirror used by checkcast, instanceof and vtable loads.
type InstKlassPtrType struct{ klassBase }

func newInstKlassPtr(kind PtrKind, k *klass.Klass, ifaces *InterfacesType, exact bool, off int32) *InstKlassPtrType {
	t := &InstKlassPtrType{klassBase{
		ptrBase: ptrBase{kind: kind, off: off, depth: InlineDepthBottom},
		klass:   k, ifaces: ifaces, exact: exact,
	}}
	t.tag = TagInstKlassPtr
	t.hash = newHash(TagInstKlassPtr).u64(uint64(kind)).i32(off).
		u32(k.ID()).sub(ifaces).boolv(exact).done()
	return t
}

// MakeInstKlassPtr interns the klass pointer for k.
func (c *Context) MakeInstKlassPtr(kind PtrKind, k *klass.Klass, off int32) Type {
	return c.makeInstKlassPtr(kind, k, c.interfacesOf(k), false, off)
}

// MakeKlassConstant interns the constant klass pointer for k, as
// loaded from a class literal.
func (c *Context) MakeKlassConstant(k *klass.Klass) Type {
	if k.IsArray() {
		return c.MakeAryKlassPtr(Constant, c.klassElemType(k), k, 0)
	}
	return c.makeInstKlassPtr(Constant, k, c.interfacesOf(k), true, 0)
}

func (c *Context) makeInstKlassPtr(kind PtrKind, k *klass.Klass, ifaces *InterfacesType, exact bool, off int32) Type {
	util.Assertf(c.hier != nil, "klass pointer types need a class hierarchy")
	if k.Interface {
		ifaces = c.unionInterfaces(ifaces, c.MakeInterfaces(k))
		k = c.hier.Object
		exact = false
	}
	if kind == Constant {
		exact = true
	} else if k.Loaded && k.Final {
		exact = true
	}
	return c.hashcons(newInstKlassPtr(kind, k, ifaces, exact, off))
}

func (t *InstKlassPtrType) eq(o Type) bool {
	p, ok := o.(*InstKlassPtrType)
	return ok && t.kind == p.kind && t.off == p.off &&
		t.klass == p.klass && t.ifaces == p.ifaces && t.exact == p.exact
}

func (t *InstKlassPtrType) xdual() Type {
	return newInstKlassPtr(ptrDual[t.kind], t.klass, t.ifaces, t.exact, dualOffset(t.off))
}

func (t *InstKlassPtrType) withSpec(c *Context, spec Type, depth int32) Type { return t }

func (t *InstKlassPtrType) addOffset(c *Context, delta int64) Type {
	return c.hashcons(newInstKlassPtr(t.kind, t.klass, t.ifaces, t.exact, xaddOffset(t.off, delta)))
}

func (t *InstKlassPtrType) String() string {
	s := "klass:" + t.klass.Name + ":" + ptrKindNames[t.kind]
	if t.exact {
		s += ":exact"
	}
	if !t.ifaces.IsEmpty() {
		s += " (" + t.ifaces.String() + ")"
	}
	return s + fmtOffset(t.off)
}

func (t *InstKlassPtrType) xmeet(c *Context, o Type) Type {
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
	case TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr, TagMetadataPtr:
		return PtrBottom
	case TagAryKlassPtr:
		return o.xmeet(c, t)
	case TagAnyPtr:
		tp := o.(*AnyPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		switch tp.kind {
		case TopPTR:
			return t
		case Null:
			if kind == Null {
				return c.makeAnyPtr(kind, off, tp.spec, tp.depth)
			}
			fallthrough
		case AnyNull:
			return c.makeInstKlassPtr(kind, t.klass, t.ifaces, t.exact, off)
		case BotPTR, NotNull:
			return c.makeAnyPtr(kind, off, tp.spec, tp.depth)
		}
		util.ShouldNotReachHere("instklassptr meet anyptr")
	case TagInstKlassPtr:
		tp := o.(*InstKlassPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		a := instOperand{k: t.klass, ifaces: t.ifaces, exact: t.exact, kind: t.kind}
		b := instOperand{k: tp.klass, ifaces: tp.ifaces, exact: tp.exact, kind: tp.kind}
		resKlass, resXk, ifaces, res := c.meetInstParts(&kind, a, b)
		if res == meetUnloaded {
			// Klass pointers to unloaded classes only support the
			// conservative answer.
			if kind != BotPTR {
				kind = NotNull
			}
			return c.makeInstKlassPtr(kind, c.hier.Object, ifaces, false, off)
		}
		return c.hashcons(newInstKlassPtr(kind, resKlass, ifaces, resXk, off))
	}
	c.typerr(t, o)
	return nil
}

// AryKlassPtrType mirrors an array type in the klass space; elem is
// itself a klass pointer for object arrays or a value type for
// primitive ones.
type AryKlassPtrType struct {
	klassBase
	elem Type
}

func newAryKlassPtr(kind PtrKind, elem Type, k *klass.Klass, exact bool, off int32) *AryKlassPtrType {
	t := &AryKlassPtrType{klassBase: klassBase{
		ptrBase: ptrBase{kind: kind, off: off, depth: InlineDepthBottom},
		klass:   k, ifaces: emptyInterfaces, exact: exact,
	}, elem: elem}
	t.tag = TagAryKlassPtr
	h := newHash(TagAryKlassPtr).u64(uint64(kind)).i32(off).sub(elem).boolv(exact)
	if k != nil {
		h.u32(k.ID())
	} else {
		h.u64(0)
	}
	t.hash = h.done()
	return t
}

// Elem returns the element view of the array klass.
func (t *AryKlassPtrType) Elem() Type { return t.elem }

func (t *AryKlassPtrType) aryElem() Type            { return t.elem }
func (t *AryKlassPtrType) aryKlassOf() *klass.Klass { return t.klass }
func (t *AryKlassPtrType) aryExactOf() bool         { return t.exact }
func (t *AryKlassPtrType) aryKindOf() PtrKind       { return t.kind }

// MakeAryKlassPtr interns the klass pointer of an array type with the
// given element view.
func (c *Context) MakeAryKlassPtr(kind PtrKind, elem Type, k *klass.Klass, off int32) Type {
	exact := kind == Constant
	return c.hashcons(newAryKlassPtr(kind, elem, k, exact, off))
}

// klassElemType derives the element view for an array klass.
func (c *Context) klassElemType(k *klass.Klass) Type {
	if k.Elem != nil {
		return c.MakeInstKlassPtr(NotNull, k.Elem, 0)
	}
	return Bottom
}

func (t *AryKlassPtrType) eq(o Type) bool {
	p, ok := o.(*AryKlassPtrType)
	return ok && t.kind == p.kind && t.off == p.off &&
		t.elem == p.elem && t.klass == p.klass && t.exact == p.exact
}

func (t *AryKlassPtrType) xdual() Type {
	return newAryKlassPtr(ptrDual[t.kind], t.elem.Dual(), t.klass, t.exact, dualOffset(t.off))
}

func (t *AryKlassPtrType) withSpec(c *Context, spec Type, depth int32) Type { return t }

func (t *AryKlassPtrType) addOffset(c *Context, delta int64) Type {
	return c.hashcons(newAryKlassPtr(t.kind, t.elem, t.klass, t.exact, xaddOffset(t.off, delta)))
}

func (t *AryKlassPtrType) String() string {
	name := "[]"
	if t.klass != nil {
		name = t.klass.Name
	}
	s := "klass:" + name + ":" + ptrKindNames[t.kind]
	if t.exact {
		s += ":exact"
	}
	return s + fmt.Sprintf("<%v>", t.elem) + fmtOffset(t.off)
}

func (t *AryKlassPtrType) xmeet(c *Context, o Type) Type {
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
	case TagRawPtr, TagOopPtr, TagInstPtr, TagAryPtr, TagMetadataPtr:
		return PtrBottom
	case TagAnyPtr:
		tp := o.(*AnyPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		switch tp.kind {
		case TopPTR:
			return t
		case Null:
			if kind == Null {
				return c.makeAnyPtr(kind, off, tp.spec, tp.depth)
			}
			fallthrough
		case AnyNull:
			return c.hashcons(newAryKlassPtr(kind, t.elem, t.klass, kind == Constant, off))
		case BotPTR, NotNull:
			return c.makeAnyPtr(kind, off, tp.spec, tp.depth)
		}
		util.ShouldNotReachHere("aryklassptr meet anyptr")

	case TagInstKlassPtr:
		tp := o.(*InstKlassPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		arrayBelow := tp.klass == c.hier.Object && tp.ifaces.IsEmpty() && !tp.exact
		switch kind {
		case TopPTR, AnyNull:
			if arrayBelow {
				return c.hashcons(newAryKlassPtr(kind, t.elem, t.klass, t.exact, off))
			}
			return c.makeInstKlassPtr(NotNull, c.hier.Object, emptyInterfaces, false, off)
		case Constant, NotNull, BotPTR:
			if aboveCenterline(tp.kind) && arrayBelow {
				return c.hashcons(newAryKlassPtr(kind, t.elem, t.klass, t.exact, off))
			}
			if kind == Constant {
				kind = NotNull
			}
			return c.makeInstKlassPtr(kind, c.hier.Object, c.intersectInterfaces(t.ifaces, tp.ifaces), false, off)
		}
		util.ShouldNotReachHere("aryklassptr meet instklassptr")

	case TagAryKlassPtr:
		tp := o.(*AryKlassPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		elem, resKlass, resXk, _ := c.meetAryParts(&kind, t, tp)
		return c.hashcons(newAryKlassPtr(kind, elem, resKlass, resXk, off))
	}
	c.typerr(t, o)
	return nil
}

// AsKlassType lifts a heap oop type into the klass space.
func (c *Context) AsKlassType(t Type) Type {
	switch tt := t.(type) {
	case *NarrowPtrType:
		return c.AsKlassType(tt.ptrType)
	case *InstPtrType:
		return c.makeInstKlassPtr(NotNull, tt.klass, tt.ifaces, tt.exact, 0)
	case *AryPtrType:
		return c.hashcons(newAryKlassPtr(NotNull, c.aryKlassElem(tt), tt.klass, tt.exact, 0))
	case *OopPtrType:
		return c.MakeInstKlassPtr(NotNull, c.hier.Object, 0)
	}
	util.ShouldNotReachHere(fmt.Sprintf("no klass mirror for %v", t))
	return nil
}

func (c *Context) aryKlassElem(t *AryPtrType) Type {
	switch e := t.ary.elem.(type) {
	case *NarrowPtrType:
		if ip, ok := e.ptrType.(*InstPtrType); ok {
			return c.makeInstKlassPtr(NotNull, ip.klass, ip.ifaces, ip.exact, 0)
		}
	case *InstPtrType:
		return c.makeInstKlassPtr(NotNull, e.klass, e.ifaces, e.exact, 0)
	}
	return t.ary.elem
}

// AsInstanceType lowers a klass pointer back to the heap oop type of
// its instances.
func (c *Context) AsInstanceType(t Type) Type {
	switch tt := t.(type) {
	case *InstKlassPtrType:
		return c.makeInstPtrRaw(BotPTR, tt.klass, tt.ifaces, tt.exact, nil, 0, InstanceBot, nil, InlineDepthBottom)
	case *AryKlassPtrType:
		elem := tt.elem
		if ik, ok := elem.(*InstKlassPtrType); ok {
			elem = c.AsInstanceType(ik)
		}
		ary := c.MakeAry(elem, c.MakeInt(0, maxArrayLength, WidenMin).(*IntType), false)
		return c.makeAryPtrRaw(BotPTR, nil, ary, tt.klass, tt.exact, 0, InstanceBot, nil, InlineDepthBottom)
	}
	util.ShouldNotReachHere(fmt.Sprintf("no instance type for %v", t))
	return nil
}
