// Package klass is the class-hierarchy collaborator of the type
// lattice: it answers subtype, least-common-ancestor and
// transitive-interface queries over a host class graph.
package klass

import (
	"fmt"
	"sort"
	"sync"
)

// Klass is a handle to one class, interface or array class. Handles
// are canonical per Hierarchy: pointer equality is identity.
type Klass struct {
	id        uint32
	Name      string
	Super     *Klass
	Ifaces    []*Klass // direct superinterfaces
	Final     bool
	Loaded    bool
	Interface bool
	Elem      *Klass // element klass for object array classes
}

// ID returns a stable identity ordinal, used to sort interface sets.
func (k *Klass) ID() uint32 { return k.id }

func (k *Klass) IsArray() bool { return k.Elem != nil }

func (k *Klass) String() string { return k.Name }

// Object is a constant object reference (an oop). Pointer equality is
// identity; two oops of the same class are still distinct constants.
type Object struct {
	Klass *Klass
	Seq   uint64
}

func (o *Object) String() string { return fmt.Sprintf("%s#%d", o.Klass.Name, o.Seq) }

// Method is an opaque metadata handle, usable as a metadata-pointer
// constant.
type Method struct {
	Holder *Klass
	Name   string
	Seq    uint64
}

func (m *Method) String() string { return m.Holder.Name + "." + m.Name }

// Hierarchy owns a class graph. It is built up front and treated as
// read-only while compilations query it.
type Hierarchy struct {
	nextID  uint32
	nextSeq uint64
	byName  map[string]*Klass
	arrays  map[*Klass]*Klass
	prims   map[string]*Klass
	transMu sync.RWMutex
	transit map[*Klass][]*Klass

	Object       *Klass
	Cloneable    *Klass
	Serializable *Klass
}

// NewHierarchy creates a hierarchy pre-seeded with Object and the two
// interfaces every array class implements.
func NewHierarchy() *Hierarchy {
	h := &Hierarchy{
		byName:  make(map[string]*Klass),
		arrays:  make(map[*Klass]*Klass),
		prims:   make(map[string]*Klass),
		transit: make(map[*Klass][]*Klass),
	}
	h.Object = h.DefineClass("java/lang/Object", nil, nil)
	h.Cloneable = h.DefineInterface("java/lang/Cloneable")
	h.Serializable = h.DefineInterface("java/io/Serializable")
	return h
}

func (h *Hierarchy) newKlass(name string) *Klass {
	h.nextID++
	k := &Klass{id: h.nextID, Name: name, Loaded: true}
	h.byName[name] = k
	return k
}

// DefineClass registers a loaded class. A nil super means Object
// (except for Object itself).
func (h *Hierarchy) DefineClass(name string, super *Klass, ifaces []*Klass, opts ...func(*Klass)) *Klass {
	k := h.newKlass(name)
	if super == nil && h.Object != nil {
		super = h.Object
	}
	k.Super, k.Ifaces = super, ifaces
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// DefineInterface registers an interface, optionally extending others.
func (h *Hierarchy) DefineInterface(name string, supers ...*Klass) *Klass {
	k := h.newKlass(name)
	k.Super, k.Ifaces, k.Interface = h.Object, supers, true
	return k
}

// DefineUnloaded registers a class handle whose hierarchy position is
// not yet resolvable. Meets over it must take the conservative path.
func (h *Hierarchy) DefineUnloaded(name string) *Klass {
	k := h.newKlass(name)
	k.Super, k.Loaded = h.Object, false
	return k
}

// Final marks a class as final at definition time.
func Final(k *Klass) { k.Final = true }

// Lookup returns the klass registered under name, or nil.
func (h *Hierarchy) Lookup(name string) *Klass { return h.byName[name] }

// Klasses returns every registered klass in definition order.
func (h *Hierarchy) Klasses() []*Klass {
	out := make([]*Klass, 0, len(h.byName))
	for _, k := range h.byName {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// NewObject mints a fresh constant object reference of class k.
func (h *Hierarchy) NewObject(k *Klass) *Object {
	h.nextSeq++
	return &Object{Klass: k, Seq: h.nextSeq}
}

// NewMethod mints a metadata handle for a method of holder.
func (h *Hierarchy) NewMethod(holder *Klass, name string) *Method {
	h.nextSeq++
	return &Method{Holder: holder, Name: name, Seq: h.nextSeq}
}

// PrimArrayOf returns the canonical array class over a primitive
// element kind ("int", "short", ...). Primitive array classes are
// final and carry no element klass; two of them are related only when
// identical.
func (h *Hierarchy) PrimArrayOf(elem string) *Klass {
	if a, ok := h.prims[elem]; ok {
		return a
	}
	a := h.newKlass(elem + "[]")
	a.Super = h.Object
	a.Ifaces = []*Klass{h.Cloneable, h.Serializable}
	a.Final = true
	h.prims[elem] = a
	return a
}

// ObjArrayOf returns the canonical object-array class with element
// klass elem.
func (h *Hierarchy) ObjArrayOf(elem *Klass) *Klass {
	if a, ok := h.arrays[elem]; ok {
		return a
	}
	a := h.newKlass(elem.Name + "[]")
	a.Super = h.Object
	a.Ifaces = []*Klass{h.Cloneable, h.Serializable}
	a.Elem = elem
	h.arrays[elem] = a
	return a
}

// IsSubtypeOf reports whether sub is a (reflexive) subtype of super.
// Both klasses must be loaded; callers check Loaded first and fall
// back to the conservative meet path otherwise.
func (h *Hierarchy) IsSubtypeOf(sub, super *Klass) bool {
	if sub == super {
		return true
	}
	if sub.IsArray() {
		if super == h.Object {
			return true
		}
		if super.Interface {
			return super == h.Cloneable || super == h.Serializable
		}
		if super.IsArray() {
			return h.IsSubtypeOf(sub.Elem, super.Elem)
		}
		return false
	}
	if super.Interface {
		for _, i := range h.TransitiveInterfaces(sub) {
			if i == super {
				return true
			}
		}
		return false
	}
	if sub.Interface {
		return super == h.Object
	}
	for c := sub.Super; c != nil; c = c.Super {
		if c == super {
			return true
		}
	}
	return false
}

// LeastCommonAncestor returns the closest common superclass.
// Interfaces participate as Object; unrelated arrays meet at Object.
func (h *Hierarchy) LeastCommonAncestor(a, b *Klass) *Klass {
	if a == b {
		return a
	}
	if a.Interface || b.Interface {
		return h.Object
	}
	if a.IsArray() && b.IsArray() {
		e := h.LeastCommonAncestor(a.Elem, b.Elem)
		return h.ObjArrayOf(e)
	}
	if a.IsArray() || b.IsArray() {
		return h.Object
	}
	for c := a; c != nil; c = c.Super {
		if h.IsSubtypeOf(b, c) {
			return c
		}
	}
	return h.Object
}

// TransitiveInterfaces returns every interface k implements (for an
// interface, including itself), sorted by identity and deduplicated.
// The result is memoized; concurrent compilations may query freely.
func (h *Hierarchy) TransitiveInterfaces(k *Klass) []*Klass {
	h.transMu.RLock()
	t, ok := h.transit[k]
	h.transMu.RUnlock()
	if ok {
		return t
	}
	seen := make(map[*Klass]bool)
	var walk func(*Klass)
	walk = func(c *Klass) {
		if c == nil {
			return
		}
		if c.Interface && !seen[c] {
			seen[c] = true
		}
		for _, i := range c.Ifaces {
			if !seen[i] {
				seen[i] = true
				walk(i)
			}
		}
		if !c.Interface {
			walk(c.Super)
		}
	}
	walk(k)
	out := make([]*Klass, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	h.transMu.Lock()
	h.transit[k] = out
	h.transMu.Unlock()
	return out
}
