package types

import (
	"fmt"

	"github.com/xplshn/jolt/pkg/config"
	"github.com/xplshn/jolt/pkg/klass"
	"github.com/xplshn/jolt/pkg/util"
)

// oopBase extends the pointer parts with what every heap oop type
// carries: a static klass with its interface view, exactness, an
// optional constant oop and an instance id.
type oopBase struct {
	ptrBase
	klass  *klass.Klass
	ifaces *InterfacesType
	exact  bool
	obj    *klass.Object
	iid    int32
}

func (o *oopBase) Klass() *klass.Klass         { return o.klass }
func (o *oopBase) Interfaces() *InterfacesType { return o.ifaces }
func (o *oopBase) KlassIsExact() bool          { return o.exact }
func (o *oopBase) ConstOop() *klass.Object     { return o.obj }
func (o *oopBase) InstanceID() int32           { return o.iid }

func (o *oopBase) exactKlass() bool   { return o.exact }
func (o *oopBase) oopPart() *oopBase  { return o }
func (o *oopBase) IsLoaded() bool     { return o.klass.Loaded }
func (o *oopBase) Singleton() bool    { return o.off == 0 && !belowCenterline(o.kind) }

func (o *oopBase) hashInto(h *hashBuilder) *hashBuilder {
	h.u64(uint64(o.kind)).i32(o.off).sub(o.spec).i32(o.depth)
	if o.klass != nil {
		h.u32(o.klass.ID())
	} else {
		h.u64(0)
	}
	h.sub(o.ifaces).boolv(o.exact).i32(o.iid)
	if o.obj != nil {
		h.u64(o.obj.Seq)
	} else {
		h.u64(0)
	}
	return h
}

func (o *oopBase) eqOop(p *oopBase) bool {
	return o.kind == p.kind && o.off == p.off && o.spec == p.spec && o.depth == p.depth &&
		o.klass == p.klass && o.ifaces == p.ifaces && o.exact == p.exact &&
		o.obj == p.obj && o.iid == p.iid
}

type oopPtrType interface {
	ptrType
	exactKlass() bool
	oopPart() *oopBase
}

// OopPtrType is "some heap object": any oop with no memory family
// narrowed down yet. Its klass view is always Object.
type OopPtrType struct{ oopBase }

func newOopPtr(kind PtrKind, k *klass.Klass, off int32, iid int32, spec Type, depth int32) *OopPtrType {
	t := &OopPtrType{oopBase{
		ptrBase: ptrBase{kind: kind, off: off, spec: spec, depth: depth},
		klass:   k, ifaces: emptyInterfaces, exact: false, iid: iid,
	}}
	t.tag = TagOopPtr
	t.hash = t.hashInto(newHash(TagOopPtr)).done()
	return t
}

// MakeOopPtr interns the generic heap pointer with the given kind,
// offset and instance id.
func (c *Context) MakeOopPtr(kind PtrKind, off int32, iid int32) Type {
	return c.makeOopPtr(kind, off, iid, nil, InlineDepthBottom)
}

func (c *Context) makeOopPtr(kind PtrKind, off int32, iid int32, spec Type, depth int32) Type {
	util.Assertf(kind != Constant, "no constant generic heap pointers")
	util.Assertf(c.hier != nil, "heap pointer types need a class hierarchy")
	return c.hashcons(newOopPtr(kind, c.hier.Object, off, iid, spec, depth))
}

func (t *OopPtrType) eq(o Type) bool {
	p, ok := o.(*OopPtrType)
	return ok && t.eqOop(&p.oopBase)
}

func (t *OopPtrType) xdual() Type {
	return newOopPtr(ptrDual[t.kind], t.klass, dualOffset(t.off), dualInstanceID(t.iid), dualSpec(t.spec), -t.depth)
}

func (t *OopPtrType) withSpec(c *Context, spec Type, depth int32) Type {
	return c.makeOopPtr(t.kind, t.off, t.iid, spec, depth)
}

func (t *OopPtrType) addOffset(c *Context, delta int64) Type {
	return c.makeOopPtr(t.kind, xaddOffset(t.off, delta), t.iid, c.addOffsetSpeculative(t.spec, delta), t.depth)
}

func (t *OopPtrType) String() string {
	s := "oop:" + ptrKindNames[t.kind] + fmtOffset(t.off)
	if t.iid != InstanceBot {
		s += fmt.Sprintf(" id=%d", t.iid)
	}
	return s + specString(t.spec, t.depth)
}

func (t *OopPtrType) xmeet(c *Context, o Type) Type {
	return stripRedundantSpec(c, t.xmeetHelper(c, o))
}

func (t *OopPtrType) xmeetHelper(c *Context, o Type) Type {
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
	case TagInstPtr, TagAryPtr:
		return o.xmeet(c, t)
	case TagOopPtr:
		tp := o.(*OopPtrType)
		return c.makeOopPtr(ptrMeet[t.kind][tp.kind], meetOffset(t.off, tp.off),
			meetInstanceID(t.iid, tp.iid), c.xmeetSpeculative(t, tp), meetInlineDepth(t.depth, tp.depth))
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
			return c.makeOopPtr(kind, off, meetInstanceID(t.iid, InstanceTop), spec, depth)
		case BotPTR, NotNull:
			return c.makeAnyPtr(kind, off, spec, depth)
		}
		util.ShouldNotReachHere("oop meet anyptr")
	}
	c.typerr(t, o)
	return nil
}

// InstPtrType is a pointer to an instance of a class, possibly exact,
// possibly a constant, with the set of interfaces every value
// implements tracked alongside the klass.
type InstPtrType struct{ oopBase }

func newInstPtr(kind PtrKind, k *klass.Klass, ifaces *InterfacesType, exact bool,
	obj *klass.Object, off, iid int32, spec Type, depth int32) *InstPtrType {
	t := &InstPtrType{oopBase{
		ptrBase: ptrBase{kind: kind, off: off, spec: spec, depth: depth},
		klass:   k, ifaces: ifaces, exact: exact, obj: obj, iid: iid,
	}}
	t.tag = TagInstPtr
	t.hash = t.hashInto(newHash(TagInstPtr)).done()
	return t
}

// MakeInstPtr interns an instance pointer to k with the given kind
// and offset. The interface view is derived from the hierarchy.
func (c *Context) MakeInstPtr(kind PtrKind, k *klass.Klass, off int32) Type {
	return c.makeInstPtrRaw(kind, k, c.interfacesOf(k), false, nil, off, InstanceBot, nil, InlineDepthBottom)
}

// MakeInstPtrExact interns an exact instance pointer to k.
func (c *Context) MakeInstPtrExact(kind PtrKind, k *klass.Klass, off int32) Type {
	return c.makeInstPtrRaw(kind, k, c.interfacesOf(k), true, nil, off, InstanceBot, nil, InlineDepthBottom)
}

// MakeOopConstant interns the constant pointer to obj.
func (c *Context) MakeOopConstant(obj *klass.Object) Type {
	return c.makeInstPtrRaw(Constant, obj.Klass, c.interfacesOf(obj.Klass), true, obj, 0, InstanceBot, nil, InlineDepthBottom)
}

// MakeInstPtrSpeculative interns an instance pointer carrying a
// speculative type observed at the given inline depth.
func (c *Context) MakeInstPtrSpeculative(kind PtrKind, k *klass.Klass, off int32, spec Type, depth int32) Type {
	return c.makeInstPtrRaw(kind, k, c.interfacesOf(k), false, nil, off, InstanceBot, spec, depth)
}

// makeInstPtrRaw canonicalizes and interns. Interface klasses live as
// Object plus an interface set; constants and final classes force
// exactness.
func (c *Context) makeInstPtrRaw(kind PtrKind, k *klass.Klass, ifaces *InterfacesType, exact bool,
	obj *klass.Object, off, iid int32, spec Type, depth int32) Type {
	util.Assertf(kind != Null, "null pointers are not instance-typed")
	util.Assertf((obj == nil) != (kind == Constant), "constant instance pointers carry their oop")
	util.Assertf(c.hier != nil, "instance pointer types need a class hierarchy")
	if !c.specOn {
		spec = nil
	}
	if spec == nil || !c.inlineDepthOn {
		depth = InlineDepthBottom
	}
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
	return c.hashcons(newInstPtr(kind, k, ifaces, exact, obj, off, iid, spec, depth))
}

func (t *InstPtrType) eq(o Type) bool {
	p, ok := o.(*InstPtrType)
	return ok && t.eqOop(&p.oopBase)
}

func (t *InstPtrType) xdual() Type {
	return newInstPtr(ptrDual[t.kind], t.klass, t.ifaces, t.exact, t.obj,
		dualOffset(t.off), dualInstanceID(t.iid), dualSpec(t.spec), -t.depth)
}

func (t *InstPtrType) withSpec(c *Context, spec Type, depth int32) Type {
	return c.hashcons(newInstPtr(t.kind, t.klass, t.ifaces, t.exact, t.obj, t.off, t.iid, spec, depth))
}

func (t *InstPtrType) addOffset(c *Context, delta int64) Type {
	return c.hashcons(newInstPtr(t.kind, t.klass, t.ifaces, t.exact, t.obj,
		xaddOffset(t.off, delta), t.iid, c.addOffsetSpeculative(t.spec, delta), t.depth))
}

// isInterfaceType reports whether this is "some implementor of an
// interface": the klass view degenerates to Object while the
// interface set carries the real constraint.
func (t *InstPtrType) isInterfaceType() bool {
	return !t.ifaces.IsEmpty() && t.klass.Super == nil && !t.klass.Interface
}

func (t *InstPtrType) String() string {
	s := t.klass.Name + ":" + ptrKindNames[t.kind]
	if t.exact {
		s += ":exact"
	}
	if !t.ifaces.IsEmpty() {
		s += " (" + t.ifaces.String() + ")"
	}
	s += fmtOffset(t.off)
	if t.obj != nil {
		s += fmt.Sprintf(" oop=#%d", t.obj.Seq)
	}
	if t.iid != InstanceBot {
		s += fmt.Sprintf(" id=%d", t.iid)
	}
	return s + specString(t.spec, t.depth)
}

func (t *InstPtrType) xmeet(c *Context, o Type) Type {
	return stripRedundantSpec(c, t.xmeetHelper(c, o))
}

func (t *InstPtrType) xmeetHelper(c *Context, o Type) Type {
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
	case TagAryPtr:
		return o.xmeet(c, t)

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
			return c.hashcons(newInstPtr(kind, t.klass, t.ifaces, t.exact, obj, off, iid, spec, depth))
		case NotNull, BotPTR:
			return c.makeOopPtr(kind, off, iid, spec, depth)
		}
		util.ShouldNotReachHere("instptr meet oopptr")

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
			return c.hashcons(newInstPtr(kind, t.klass, t.ifaces, t.exact, obj, off, iid, spec, depth))
		case NotNull, BotPTR:
			return c.makeAnyPtr(kind, off, spec, depth)
		}
		util.ShouldNotReachHere("instptr meet anyptr")

	case TagInstPtr:
		tp := o.(*InstPtrType)
		off := meetOffset(t.off, tp.off)
		kind := ptrMeet[t.kind][tp.kind]
		iid := meetInstanceID(t.iid, tp.iid)
		spec := c.xmeetSpeculative(t, tp)
		depth := meetInlineDepth(t.depth, tp.depth)

		a := instOperand{k: t.klass, ifaces: t.ifaces, exact: t.exact, kind: t.kind}
		b := instOperand{k: tp.klass, ifaces: tp.ifaces, exact: tp.exact, kind: tp.kind}
		resKlass, resXk, ifaces, res := c.meetInstParts(&kind, a, b)

		if res == meetUnloaded {
			return t.xmeetUnloaded(c, tp, ifaces)
		}
		if (res == meetLCA || res == meetNotSubtype) && iid > 0 {
			iid = InstanceBot
		}
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
		return c.hashcons(newInstPtr(kind, resKlass, ifaces, resXk, obj, off, iid, spec, depth))
	}
	c.typerr(t, o)
	return nil
}

// xmeetUnloaded merges an instance pointer with one whose class has
// not been loaded. All that is known about the unloaded side is its
// name, so the result falls toward Object conservatively.
func (t *InstPtrType) xmeetUnloaded(c *Context, tp *InstPtrType, ifaces *InterfacesType) Type {
	off := meetOffset(t.off, tp.off)
	kind := ptrMeet[t.kind][tp.kind]
	iid := meetInstanceID(t.iid, tp.iid)
	spec := c.xmeetSpeculative(t, tp)
	depth := meetInlineDepth(t.depth, tp.depth)

	loaded, unloaded := t, tp
	if !loaded.klass.Loaded {
		loaded, unloaded = tp, t
	}
	c.warnf(config.WarnUnloaded, "conservative meet: class %s is not loaded", unloaded.klass.Name)
	if loaded.klass == c.hier.Object {
		util.Assertf(loaded.kind != Null, "null instance pointer: %v", loaded)
		switch loaded.kind {
		case TopPTR:
			// Loaded side is empty: the unloaded guy comes back as-is,
			// with only the speculative part merged.
			return unloaded.withSpec(c, spec, depth)
		case AnyNull:
			return c.hashcons(newInstPtr(kind, unloaded.klass, ifaces, false, nil, off, iid, spec, depth))
		case BotPTR:
			return c.instBottom.withSpec(c, spec, depth)
		case Constant, NotNull:
			if unloaded.kind == BotPTR {
				return c.instBottom.withSpec(c, spec, depth)
			}
			return c.instNotNull.withSpec(c, spec, depth)
		}
	}
	// Both unloaded, or the loaded side is some other class.
	if kind != BotPTR {
		return c.instNotNull.withSpec(c, spec, depth)
	}
	return c.instBottom.withSpec(c, spec, depth)
}

// meetResult classifies how two instance views combined.
type meetResult int

const (
	meetQuick meetResult = iota
	meetUnloaded
	meetSubtype
	meetNotSubtype
	meetLCA
)

type instOperand struct {
	k      *klass.Klass
	ifaces *InterfacesType
	exact  bool
	kind   PtrKind
}

func (op instOperand) sameJavaTypeAs(other instOperand) bool {
	return op.k == other.k && op.ifaces == other.ifaces
}

func (c *Context) isMeetSubtype(sub, super instOperand) bool {
	return c.hier.IsSubtypeOf(sub.k, super.k) && sub.ifaces.ContainsAll(super.ifaces)
}

// meetInstParts combines the klass views of two instance-like
// pointers (instance oops or instance klass pointers). ptr is both an
// input (already met) and an output: an LCA result forces it below
// the centerline. The symmetry requirement shapes the tie-breaks: a
// one-up-one-down split keeps the down man, both-up takes the
// subtype, and exactness is and-ed below the centerline but or-ed
// above it.
func (c *Context) meetInstParts(ptr *PtrKind, a, b instOperand) (*klass.Klass, bool, *InterfacesType, meetResult) {
	ifaces := c.meetInterfaceSets(a.kind, a.ifaces, b.kind, b.ifaces)

	// Easy case: equal klasses, interfaces and exactness, loaded or not.
	if *ptr != Constant && a.k == b.k && a.ifaces == b.ifaces && a.exact == b.exact {
		return a.k, a.exact, ifaces, meetQuick
	}
	if !a.k.Loaded || !b.k.Loaded {
		return nil, false, ifaces, meetUnloaded
	}

	// An exact supertype admits no proper subtypes, so a subtype is
	// only picked past an inexact other side.
	var subtype *instOperand
	subtypeExact := false
	switch {
	case a.sameJavaTypeAs(b):
		subtype = &a
		if belowCenterline(*ptr) {
			subtypeExact = a.exact && b.exact
		} else {
			subtypeExact = a.exact || b.exact
		}
	case !b.exact && c.isMeetSubtype(a, b):
		subtype = &a
		subtypeExact = a.exact
	case !a.exact && c.isMeetSubtype(b, a):
		subtype = &b
		subtypeExact = b.exact
	}
	if subtype != nil {
		switch {
		case aboveCenterline(*ptr):
			// Both above: take the subtype class.
			a, b = *subtype, *subtype
			a.exact, b.exact = subtypeExact, subtypeExact
		case aboveCenterline(a.kind) && !aboveCenterline(b.kind):
			a = b
		case aboveCenterline(b.kind) && !aboveCenterline(a.kind):
			b = a
		default:
			a.exact = subtypeExact
		}
	}

	if a.sameJavaTypeAs(b) {
		return a.k, a.exact, ifaces, meetSubtype
	}

	// Different classes force an ancestor walk, which means falling
	// to at least NotNull.
	if *ptr == TopPTR || *ptr == AnyNull || *ptr == Constant {
		*ptr = NotNull
	}
	ifaces = c.intersectInterfaces(a.ifaces, b.ifaces)
	return c.hier.LeastCommonAncestor(a.k, b.k), false, ifaces, meetLCA
}
