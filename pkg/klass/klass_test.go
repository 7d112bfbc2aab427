package klass

import "testing"

func buildGraph(t *testing.T) *Hierarchy {
	t.Helper()
	h := NewHierarchy()
	cmp := h.DefineInterface("Comparable")
	ser := h.DefineInterface("Sortable", cmp)
	num := h.DefineClass("Number", nil, nil)
	h.DefineClass("Integer", num, []*Klass{ser}, Final)
	h.DefineClass("Double", num, []*Klass{cmp}, Final)
	h.DefineClass("String", nil, []*Klass{cmp}, Final)
	h.DefineUnloaded("Mystery")
	return h
}

func TestSubtypeQueries(t *testing.T) {
	h := buildGraph(t)
	num := h.Lookup("Number")
	integer := h.Lookup("Integer")
	cmp := h.Lookup("Comparable")
	srt := h.Lookup("Sortable")

	cases := []struct {
		sub, super *Klass
		want       bool
	}{
		{integer, integer, true},
		{integer, num, true},
		{num, integer, false},
		{integer, h.Object, true},
		{integer, srt, true},
		{integer, cmp, true}, // through Sortable
		{num, cmp, false},
		{srt, h.Object, true},
		{h.Lookup("String"), num, false},
	}
	for _, tc := range cases {
		if got := h.IsSubtypeOf(tc.sub, tc.super); got != tc.want {
			t.Errorf("IsSubtypeOf(%v, %v) = %v, want %v", tc.sub, tc.super, got, tc.want)
		}
	}
}

func TestArraySubtyping(t *testing.T) {
	h := buildGraph(t)
	num := h.Lookup("Number")
	intArr := h.ObjArrayOf(h.Lookup("Integer"))
	numArr := h.ObjArrayOf(num)
	if !h.IsSubtypeOf(intArr, numArr) {
		t.Error("Integer[] should be a Number[]")
	}
	if h.IsSubtypeOf(numArr, intArr) {
		t.Error("Number[] is not an Integer[]")
	}
	if !h.IsSubtypeOf(intArr, h.Object) || !h.IsSubtypeOf(intArr, h.Cloneable) || !h.IsSubtypeOf(intArr, h.Serializable) {
		t.Error("arrays are Objects, Cloneable and Serializable")
	}
	if h.IsSubtypeOf(intArr, h.Lookup("Comparable")) {
		t.Error("arrays implement no other interfaces")
	}
	// Canonical handles.
	if h.ObjArrayOf(num) != numArr {
		t.Error("array class not canonical")
	}
	pi := h.PrimArrayOf("int")
	if h.PrimArrayOf("int") != pi {
		t.Error("primitive array class not canonical")
	}
	if pi.IsArray() {
		t.Error("primitive array carries no element klass")
	}
}

func TestLeastCommonAncestor(t *testing.T) {
	h := buildGraph(t)
	num := h.Lookup("Number")
	integer := h.Lookup("Integer")
	dbl := h.Lookup("Double")
	str := h.Lookup("String")

	if got := h.LeastCommonAncestor(integer, dbl); got != num {
		t.Errorf("lca(Integer, Double) = %v", got)
	}
	if got := h.LeastCommonAncestor(integer, num); got != num {
		t.Errorf("lca(Integer, Number) = %v", got)
	}
	if got := h.LeastCommonAncestor(integer, str); got != h.Object {
		t.Errorf("lca(Integer, String) = %v", got)
	}
	if got := h.LeastCommonAncestor(integer, h.Lookup("Comparable")); got != h.Object {
		t.Errorf("lca with interface = %v", got)
	}
	// Array classes recurse on the element.
	got := h.LeastCommonAncestor(h.ObjArrayOf(integer), h.ObjArrayOf(dbl))
	if got != h.ObjArrayOf(num) {
		t.Errorf("lca(Integer[], Double[]) = %v", got)
	}
	if got := h.LeastCommonAncestor(h.ObjArrayOf(integer), str); got != h.Object {
		t.Errorf("lca(Integer[], String) = %v", got)
	}
}

func TestTransitiveInterfaces(t *testing.T) {
	h := buildGraph(t)
	ints := h.TransitiveInterfaces(h.Lookup("Integer"))
	want := map[string]bool{"Comparable": true, "Sortable": true}
	if len(ints) != len(want) {
		t.Fatalf("interfaces of Integer = %v", ints)
	}
	for _, i := range ints {
		if !want[i.Name] {
			t.Errorf("unexpected interface %v", i)
		}
	}
	// An interface includes itself.
	found := false
	for _, i := range h.TransitiveInterfaces(h.Lookup("Sortable")) {
		found = found || i.Name == "Sortable"
	}
	if !found {
		t.Error("interface missing from its own set")
	}
	// Memoized slices are stable across calls.
	a := h.TransitiveInterfaces(h.Lookup("Integer"))
	b := h.TransitiveInterfaces(h.Lookup("Integer"))
	if len(a) != len(b) || (len(a) > 0 && &a[0] != &b[0]) {
		t.Error("memoization broken")
	}
}

func TestUnloadedAndHandles(t *testing.T) {
	h := buildGraph(t)
	if h.Lookup("Mystery").Loaded {
		t.Error("unloaded class marked loaded")
	}
	if h.Lookup("Nope") != nil {
		t.Error("lookup of unknown name")
	}
	o1 := h.NewObject(h.Lookup("Integer"))
	o2 := h.NewObject(h.Lookup("Integer"))
	if o1.Seq == o2.Seq {
		t.Error("object handles share a sequence number")
	}
	m1 := h.NewMethod(h.Lookup("Number"), "intValue")
	m2 := h.NewMethod(h.Lookup("Number"), "intValue")
	if m1.Seq == m2.Seq {
		t.Error("method handles share a sequence number")
	}
	ks := h.Klasses()
	for i := 1; i < len(ks); i++ {
		if ks[i-1].ID() >= ks[i].ID() {
			t.Fatal("klasses not in definition order")
		}
	}
}
