package types

import (
	"sort"
	"strings"

	"github.com/xplshn/jolt/pkg/klass"
)

// InterfacesType is a canonical, id-sorted set of interface klasses.
// It only ever appears as a component of instance and klass pointer
// types, tracking which interfaces every value is known to implement.
type InterfacesType struct {
	baseType
	list []*klass.Klass
}

func newInterfacesType(list []*klass.Klass) *InterfacesType {
	t := &InterfacesType{list: list}
	t.tag = TagInterfaces
	h := newHash(TagInterfaces)
	for _, k := range list {
		h.u32(k.ID())
	}
	t.hash = h.done()
	return t
}

// MakeInterfaces interns the set holding exactly the given interface
// klasses, deduplicated.
func (c *Context) MakeInterfaces(ifaces ...*klass.Klass) *InterfacesType {
	list := append([]*klass.Klass(nil), ifaces...)
	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
	out := list[:0]
	for i, k := range list {
		if i == 0 || list[i-1] != k {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return emptyInterfaces
	}
	return c.hashcons(newInterfacesType(out)).(*InterfacesType)
}

// interfacesOf is the canonical set of every interface k transitively
// implements.
func (c *Context) interfacesOf(k *klass.Klass) *InterfacesType {
	if c.hier == nil || !k.Loaded {
		return emptyInterfaces
	}
	if k.IsArray() {
		return c.arrayIfaces
	}
	return c.MakeInterfaces(c.hier.TransitiveInterfaces(k)...)
}

func (t *InterfacesType) eq(o Type) bool {
	i, ok := o.(*InterfacesType)
	if !ok || len(t.list) != len(i.list) {
		return false
	}
	for n := range t.list {
		if t.list[n] != i.list[n] {
			return false
		}
	}
	return true
}

// The interface set is its own dual; above or below the centerline is
// decided by the pointer carrying it.
func (t *InterfacesType) xdual() Type { return t }

func (t *InterfacesType) Singleton() bool { return false }
func (t *InterfacesType) Empty() bool     { return false }

// IsEmpty reports whether the set holds no interfaces.
func (t *InterfacesType) IsEmpty() bool { return len(t.list) == 0 }

// List returns the sorted members. Callers must not mutate it.
func (t *InterfacesType) List() []*klass.Klass { return t.list }

// ContainsAll reports whether o is a subset of t.
func (t *InterfacesType) ContainsAll(o *InterfacesType) bool {
	i := 0
	for _, want := range o.list {
		for i < len(t.list) && t.list[i].ID() < want.ID() {
			i++
		}
		if i == len(t.list) || t.list[i] != want {
			return false
		}
	}
	return true
}

// Union interns the set union of t and o.
func (c *Context) unionInterfaces(t, o *InterfacesType) *InterfacesType {
	merged := make([]*klass.Klass, 0, len(t.list)+len(o.list))
	merged = append(merged, t.list...)
	merged = append(merged, o.list...)
	return c.MakeInterfaces(merged...)
}

// Intersection interns the set intersection of t and o.
func (c *Context) intersectInterfaces(t, o *InterfacesType) *InterfacesType {
	var out []*klass.Klass
	i := 0
	for _, k := range t.list {
		for i < len(o.list) && o.list[i].ID() < k.ID() {
			i++
		}
		if i < len(o.list) && o.list[i] == k {
			out = append(out, k)
		}
	}
	return c.MakeInterfaces(out...)
}

func (t *InterfacesType) String() string {
	if len(t.list) == 0 {
		return "interfaces:{}"
	}
	names := make([]string, len(t.list))
	for i, k := range t.list {
		names[i] = k.Name
	}
	return "interfaces:{" + strings.Join(names, ",") + "}"
}

func (t *InterfacesType) xmeet(c *Context, o Type) Type {
	if Type(t) == o {
		return t
	}
	switch o.Base() {
	case TagTop:
		return t
	case TagBottom:
		return Bottom
	case TagInterfaces:
		return c.intersectInterfaces(t, o.(*InterfacesType))
	}
	c.typerr(t, o)
	return nil
}

// meetInterfaceSets merges the interface views of two pointers: above
// the centerline claims accumulate, below they must agree.
func (c *Context) meetInterfaceSets(ak PtrKind, a *InterfacesType, bk PtrKind, b *InterfacesType) *InterfacesType {
	switch {
	case aboveCenterline(ak) && aboveCenterline(bk):
		return c.unionInterfaces(a, b)
	case aboveCenterline(ak) && !aboveCenterline(bk):
		return b
	case !aboveCenterline(ak) && aboveCenterline(bk):
		return a
	}
	return c.intersectInterfaces(a, b)
}
