package types

import (
	"fmt"

	"github.com/xplshn/jolt/pkg/klass"

	"github.com/xplshn/jolt/pkg/util"
)

// Arrays cannot be longer than this many elements; the object header
// has to fit in the same address space.
const maxArrayLength = maxJint - 8

// AryType is the body of an array: what the elements are, how many
// there can be, and whether the contents are stable (constant-foldable
// once read).
type AryType struct {
	baseType
	elem   Type
	size   *IntType
	stable bool
}

func newAryType(elem Type, size *IntType, stable bool) *AryType {
	t := &AryType{elem: elem, size: size, stable: stable}
	t.tag = TagArray
	t.hash = newHash(TagArray).sub(elem).sub(size).boolv(stable).done()
	return t
}

// MakeAry interns an array body. Heap-oop elements compress when
// compressed references are on; the size widen is normalized so array
// types never differ by index wideness alone.
func (c *Context) MakeAry(elem Type, size Type, stable bool) *AryType {
	if !c.stableOn {
		stable = false
	}
	if c.compressedOn {
		switch elem.(type) {
		case *OopPtrType, *InstPtrType, *AryPtrType:
			elem = c.MakeNarrowOop(elem)
		}
	}
	return c.hashcons(newAryType(elem, normalizeArraySize(c, size), stable)).(*AryType)
}

func normalizeArraySize(c *Context, size Type) *IntType {
	sz, ok := size.(*IntType)
	util.Assertf(ok, "array size must be a 32-bit integer type, got %v", size)
	if sz.W != WidenMin {
		return c.makeIntOrTop(sz.proto(), WidenMin, sz.isDual).(*IntType)
	}
	return sz
}

// aryMustBeExact reports whether only one runtime array klass can
// hold the elements: primitive elements and exact-klass object
// elements leave no room for a covariant subclass array.
func aryMustBeExact(ary *AryType) bool {
	elem := ary.elem
	if n, ok := elem.(*NarrowPtrType); ok {
		elem = n.ptrType
	}
	if op, ok := elem.(oopPtrType); ok {
		return op.exactKlass()
	}
	switch elem.(type) {
	case *IntType, *LongType, *FloatConType, *DoubleConType, *HalfFloatConType:
		return true
	}
	switch elem {
	case Float, Double, HalfFloat:
		return true
	}
	return false
}

// Elem returns the element type, compressed if the array was built
// with compressed references.
func (t *AryType) Elem() Type     { return t.elem }
func (t *AryType) Size() *IntType { return t.size }
func (t *AryType) Stable() bool   { return t.stable }

func (t *AryType) eq(o Type) bool {
	a, ok := o.(*AryType)
	return ok && t.elem == a.elem && t.size == a.size && t.stable == a.stable
}

func (t *AryType) xdual() Type {
	return newAryType(t.elem.Dual(), t.size.Dual().(*IntType), !t.stable)
}

func (t *AryType) Singleton() bool { return false }
func (t *AryType) Empty() bool     { return t.elem.Empty() || t.size.Empty() }

func (t *AryType) String() string {
	s := fmt.Sprintf("array<%v>[%v]", t.elem, t.size)
	if t.stable {
		s += " stable"
	}
	return s
}

func (t *AryType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagTop:
		return t
	case TagBottom:
		return Bottom
	case TagArray:
		a := o.(*AryType)
		return c.MakeAry(c.meetHelper(t.elem, a.elem, true),
			t.size.xmeet(c, a.size), t.stable && a.stable)
	}
	c.typerr(t, o)
	return nil
}

// AryPtrType is a pointer to an array object. The klass view may be
// nil when the element type has fallen to Bottom and no single array
// klass describes the values.
type AryPtrType struct {
	oopBase
	ary *AryType
}

func newAryPtr(kind PtrKind, obj *klass.Object, ary *AryType, k *klass.Klass, ifaces *InterfacesType,
	exact bool, off, iid int32, spec Type, depth int32) *AryPtrType {
	t := &AryPtrType{
		oopBase: oopBase{
			ptrBase: ptrBase{kind: kind, off: off, spec: spec, depth: depth},
			klass:   k, ifaces: ifaces, exact: exact, obj: obj, iid: iid,
		},
		ary: ary,
	}
	t.tag = TagAryPtr
	t.hash = t.hashInto(newHash(TagAryPtr)).sub(ary).done()
	return t
}

// Ary returns the array body.
func (t *AryPtrType) Ary() *AryType { return t.ary }

// MakeAryPtr interns an array pointer over the given body. k may be
// nil when no one array klass covers the elements.
func (c *Context) MakeAryPtr(kind PtrKind, ary *AryType, k *klass.Klass, exact bool, off int32) Type {
	return c.makeAryPtrRaw(kind, nil, ary, k, exact, off, InstanceBot, nil, InlineDepthBottom)
}

// MakeAryConstant interns the constant pointer to the array object
// obj with the given body.
func (c *Context) MakeAryConstant(obj *klass.Object, ary *AryType) Type {
	return c.makeAryPtrRaw(Constant, obj, ary, obj.Klass, true, 0, InstanceBot, nil, InlineDepthBottom)
}

func (c *Context) makeAryPtrRaw(kind PtrKind, obj *klass.Object, ary *AryType, k *klass.Klass,
	exact bool, off, iid int32, spec Type, depth int32) Type {
	util.Assertf(c.hier != nil, "array pointer types need a class hierarchy")
	util.Assertf(kind != Null, "null pointers are not array-typed")
	if kind == Constant || aryMustBeExact(ary) {
		exact = true
	}
	ary = c.MakeAry(ary.elem, c.narrowSizeType(ary.size), ary.stable)
	return c.hashcons(newAryPtr(kind, obj, ary, k, c.arrayIfaces, exact, off, iid, spec, depth))
}

func (t *AryPtrType) eq(o Type) bool {
	a, ok := o.(*AryPtrType)
	return ok && t.ary == a.ary && t.eqOop(&a.oopBase)
}

func (t *AryPtrType) xdual() Type {
	return newAryPtr(ptrDual[t.kind], t.obj, t.ary.Dual().(*AryType), t.klass, t.ifaces,
		t.exact, dualOffset(t.off), dualInstanceID(t.iid), dualSpec(t.spec), -t.depth)
}

func (t *AryPtrType) withSpec(c *Context, spec Type, depth int32) Type {
	return c.hashcons(newAryPtr(t.kind, t.obj, t.ary, t.klass, t.ifaces, t.exact, t.off, t.iid, spec, depth))
}

func (t *AryPtrType) addOffset(c *Context, delta int64) Type {
	return c.hashcons(newAryPtr(t.kind, t.obj, t.ary, t.klass, t.ifaces, t.exact,
		xaddOffset(t.off, delta), t.iid, c.addOffsetSpeculative(t.spec, delta), t.depth))
}

func (t *AryPtrType) String() string {
	name := "[]"
	if t.klass != nil {
		name = t.klass.Name
	}
	s := name + ":" + ptrKindNames[t.kind]
	if t.exact {
		s += ":exact"
	}
	s += fmt.Sprintf("<%v>", t.ary)
	s += fmtOffset(t.off)
	if t.obj != nil {
		s += fmt.Sprintf(" oop=#%d", t.obj.Seq)
	}
	if t.iid != InstanceBot {
		s += fmt.Sprintf(" id=%d", t.iid)
	}
	return s + specString(t.spec, t.depth)
}

// narrowSizeType clamps a would-be array size to what the VM can
// allocate; contradictions collapse to the zero-length type.
func (c *Context) narrowSizeType(size *IntType) *IntType {
	lo, hi := size.Lo, size.Hi
	chg := false
	if lo < 0 {
		lo = 0
		if size.IsCon() {
			hi = lo
		}
		chg = true
	}
	if hi > maxArrayLength {
		hi = maxArrayLength
		if size.IsCon() {
			lo = hi
		}
		chg = true
	}
	if lo > hi {
		return IntZero
	}
	if !chg {
		return size
	}
	return c.MakeInt(lo, hi, WidenMin).(*IntType)
}

func (t *AryPtrType) xmeet(c *Context, o Type) Type {
	return stripRedundantSpec(c, t.xmeetHelper(c, o))
}

func (t *AryPtrType) xmeetHelper(c *Context, o Type) Type {
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
	case TagRawPtr, TagMetadataPtr, TagKlassPtr, TagInstKlassPtr, TagAryKlassPtr:
		return PtrBottom

	case TagOopPtr:
		tp := o.(*OopPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		iid := meetInstanceID(t.iid, tp.iid)
		spec := c.xmeetSpeculative(t, tp)
		depth := meetInlineDepth(t.depth, tp.depth)
		switch tp.kind {
		case TopPTR, AnyNull:
			var obj *klass.Object
			if kind == Constant {
				obj = t.obj
			}
			return c.hashcons(newAryPtr(kind, obj, t.ary, t.klass, t.ifaces, t.exact, off, iid, spec, depth))
		case NotNull, BotPTR:
			return c.makeOopPtr(kind, off, iid, spec, depth)
		}
		util.ShouldNotReachHere("aryptr meet oopptr")

	case TagAnyPtr:
		tp := o.(*AnyPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		spec := c.xmeetSpeculative(t, tp)
		depth := meetInlineDepth(t.depth, tp.depth)
		switch tp.kind {
		case Null:
			if kind == Null {
				return c.makeAnyPtr(kind, off, spec, depth)
			}
			fallthrough
		case TopPTR, AnyNull:
			iid := meetInstanceID(t.iid, InstanceTop)
			var obj *klass.Object
			if kind == Constant {
				obj = t.obj
			}
			return c.hashcons(newAryPtr(kind, obj, t.ary, t.klass, t.ifaces, t.exact, off, iid, spec, depth))
		case NotNull, BotPTR:
			return c.makeAnyPtr(kind, off, spec, depth)
		}
		util.ShouldNotReachHere("aryptr meet anyptr")

	case TagInstPtr:
		tp := o.(*InstPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		iid := meetInstanceID(t.iid, tp.iid)
		spec := c.xmeetSpeculative(t, tp)
		depth := meetInlineDepth(t.depth, tp.depth)

		// An array is a subtype of Object and of any interface view
		// the array types carry; anything else cannot be a supertype
		// of an array, so the meet falls to an Object instance.
		arrayBelow := tp.klass == c.hier.Object && t.ifaces.ContainsAll(tp.ifaces) && !tp.exact
		switch kind {
		case TopPTR, AnyNull:
			if arrayBelow {
				return c.hashcons(newAryPtr(kind, nil, t.ary, t.klass, t.ifaces, t.exact, off, iid, spec, depth))
			}
			kind = NotNull
			iid = InstanceBot
			return c.hashcons(newInstPtr(kind, c.hier.Object, c.intersectInterfaces(t.ifaces, tp.ifaces),
				false, nil, off, iid, spec, depth))
		case Constant, NotNull, BotPTR:
			if aboveCenterline(tp.kind) && arrayBelow {
				var obj *klass.Object
				if kind == Constant {
					obj = t.obj
				}
				return c.hashcons(newAryPtr(kind, obj, t.ary, t.klass, t.ifaces, t.exact, off, iid, spec, depth))
			}
			if kind == Constant {
				kind = NotNull
			}
			if iid > 0 {
				iid = InstanceBot
			}
			return c.hashcons(newInstPtr(kind, c.hier.Object, c.intersectInterfaces(t.ifaces, tp.ifaces),
				false, nil, off, iid, spec, depth))
		}
		util.ShouldNotReachHere("aryptr meet instptr")

	case TagAryPtr:
		tp := o.(*AryPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		iid := meetInstanceID(t.iid, tp.iid)
		spec := c.xmeetSpeculative(t, tp)
		depth := meetInlineDepth(t.depth, tp.depth)

		elem, resKlass, resXk, res := c.meetAryParts(&kind, t, tp)
		size := t.ary.size.xmeet(c, tp.ary.size).(*IntType)
		ary := c.MakeAry(elem, size, t.ary.stable && tp.ary.stable)

		var obj *klass.Object
		if kind == Constant {
			switch {
			case t.obj != nil && tp.obj != nil && t.obj == tp.obj:
				obj = t.obj
			case aboveCenterline(t.kind):
				obj = tp.obj
			case aboveCenterline(tp.kind):
				obj = t.obj
			default:
				kind = NotNull
			}
		}
		if res == meetNotSubtype && iid > 0 {
			iid = InstanceBot
		}
		return c.hashcons(newAryPtr(kind, obj, ary, resKlass, t.ifaces, resXk, off, iid, spec, depth))
	}
	c.typerr(t, o)
	return nil
}

// aryView abstracts the two array-shaped pointer families (heap
// arrays and their klass mirrors) over the parts the meet needs.
type aryView interface {
	aryElem() Type
	aryKlassOf() *klass.Klass
	aryExactOf() bool
	aryKindOf() PtrKind
}

func (t *AryPtrType) aryElem() Type            { return t.ary.elem }
func (t *AryPtrType) aryKlassOf() *klass.Klass { return t.klass }
func (t *AryPtrType) aryExactOf() bool         { return t.exact }
func (t *AryPtrType) aryKindOf() PtrKind       { return t.kind }

// meetAryParts combines the element and klass views of two array
// pointers. kind is in/out: irreconcilable element types force the
// result below the centerline.
func (c *Context) meetAryParts(kind *PtrKind, a, b aryView) (Type, *klass.Klass, bool, meetResult) {
	elem := c.meetHelper(a.aryElem(), b.aryElem(), true)
	aEmpty := a.aryElem() == Top || a.aryElem() == Bottom
	bEmpty := b.aryElem() == Top || b.aryElem() == Bottom

	if _, integral := elem.(*IntType); integral {
		// Integral elements: the array klass is determined by the
		// element kind, so differing klasses (int[] meet short[])
		// cannot be reconciled.
		var resKlass *klass.Klass
		switch {
		case aEmpty:
			resKlass = b.aryKlassOf()
		case bEmpty || a.aryKlassOf() == b.aryKlassOf():
			resKlass = a.aryKlassOf()
		default:
			if aboveCenterline(*kind) || *kind == Constant {
				*kind = NotNull
			}
			return Bottom, nil, false, meetNotSubtype
		}
		xk := c.meetAryExactness(a, b)
		return elem, resKlass, xk, meetSubtype
	}

	// Reference elements. Exact views that are neither equal nor in a
	// subtype relation cannot meet above the centerline.
	sameType := a.aryElem() == b.aryElem()
	if (aboveCenterline(*kind) || *kind == Constant) && !sameType && !aEmpty && !bEmpty &&
		((a.aryExactOf() && b.aryExactOf()) ||
			(b.aryExactOf() && !c.isAryMeetSubtype(b, a)) ||
			(a.aryExactOf() && !c.isAryMeetSubtype(a, b))) {
		if aboveCenterline(*kind) || elemPtrAboveCenterline(elem) {
			elem = Bottom
		}
		*kind = NotNull
		return elem, nil, false, meetNotSubtype
	}

	xk := c.meetAryExactness(a, b)
	resKlass := c.aryKlassFor(elem)
	if _, klassElem := elem.(*InstKlassPtrType); klassElem {
		resKlass = a.aryKlassOf()
		if aEmpty || resKlass == nil {
			resKlass = b.aryKlassOf()
		}
	}
	return elem, resKlass, xk, meetSubtype
}

// meetAryExactness decides the result exactness from the tie-break
// table over the other operand's nullability.
func (c *Context) meetAryExactness(a, b aryView) bool {
	sameType := a.aryElem() == b.aryElem()
	switch b.aryKindOf() {
	case AnyNull, TopPTR:
		if belowCenterline(a.aryKindOf()) {
			return a.aryExactOf()
		}
		return a.aryExactOf() || b.aryExactOf()
	case Constant:
		if a.aryKindOf() == Constant || aboveCenterline(a.aryKindOf()) {
			return true
		}
		return a.aryExactOf() && sameType
	case NotNull, BotPTR:
		if aboveCenterline(a.aryKindOf()) {
			return b.aryExactOf()
		}
		return a.aryExactOf() && b.aryExactOf() && sameType
	}
	util.ShouldNotReachHere("array exactness meet")
	return false
}

func elemPtrAboveCenterline(elem Type) bool {
	switch e := elem.(type) {
	case *NarrowPtrType:
		return elemPtrAboveCenterline(e.ptrType)
	case ptrType:
		return aboveCenterline(e.ptrPart().kind)
	}
	return false
}

// isAryMeetSubtype reports whether sub's values are a subset of
// super's, element-wise.
func (c *Context) isAryMeetSubtype(sub, super aryView) bool {
	if sub.aryKlassOf() == nil || super.aryKlassOf() == nil {
		return false
	}
	return c.hier.IsSubtypeOf(sub.aryKlassOf(), super.aryKlassOf())
}

// aryKlassFor derives the array klass a meet result is an instance
// of, or nil when no single klass covers the elements.
func (c *Context) aryKlassFor(elem Type) *klass.Klass {
	switch e := elem.(type) {
	case *NarrowPtrType:
		return c.aryKlassFor(e.ptrType)
	case *OopPtrType:
		return c.hier.ObjArrayOf(e.klass)
	case *InstPtrType:
		return c.hier.ObjArrayOf(e.klass)
	case *AryPtrType:
		if e.klass == nil {
			return nil
		}
		return c.hier.ObjArrayOf(e.klass)
	}
	return nil
}
