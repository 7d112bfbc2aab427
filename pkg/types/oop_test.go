package types

import (
	"testing"

	"github.com/xplshn/jolt/pkg/config"
	"github.com/xplshn/jolt/pkg/klass"
)

func TestUnrelatedClassesMeetAtSharedShape(t *testing.T) {
	h := klass.NewHierarchy()
	shape := h.DefineInterface("Shape")
	circle := h.DefineClass("Circle", nil, []*klass.Klass{shape})
	square := h.DefineClass("Square", nil, []*klass.Klass{shape})
	c := NewContext(h, nil)

	m := c.Meet(c.MakeInstPtr(NotNull, circle, 0), c.MakeInstPtr(NotNull, square, 0)).(*InstPtrType)
	if m.Klass() != h.Object {
		t.Errorf("ancestor = %v", m.Klass())
	}
	if m.Kind() != NotNull || m.KlassIsExact() {
		t.Errorf("kind/exactness = %v", m)
	}
	// Both sides implement Shape, so the merged value still does.
	if !m.Interfaces().ContainsAll(c.MakeInterfaces(shape)) {
		t.Errorf("interface view lost: %v", m.Interfaces())
	}
}

func TestSubtypeMeetIsSupertype(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	aPtr := c.MakeInstPtr(BotPTR, h.Lookup("A"), 0)
	bPtr := c.MakeInstPtr(BotPTR, h.Lookup("B"), 0)
	if got := c.Meet(aPtr, bPtr); got != aPtr {
		t.Errorf("A meet B = %v, want %v", got, aPtr)
	}
	// In the join direction the subtype survives.
	if got := c.Join(aPtr, bPtr); got != bPtr {
		t.Errorf("A join B = %v, want %v", got, bPtr)
	}
}

func TestExactnessDropsAcrossMeet(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	a := h.Lookup("A")
	exact := c.MakeInstPtrExact(NotNull, a, 0)
	plain := c.MakeInstPtr(NotNull, a, 0)
	if got := c.Meet(exact, plain); got != plain {
		t.Errorf("exact meet inexact = %v, want %v", got, plain)
	}
	// Final classes are exact whether asked for or not.
	finalPtr := c.MakeInstPtr(NotNull, h.Lookup("C"), 0).(*InstPtrType)
	if !finalPtr.KlassIsExact() {
		t.Error("final class pointer not exact")
	}
}

func TestOopConstants(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	b := h.Lookup("B")
	o1 := h.NewObject(b)
	k1 := c.MakeOopConstant(o1)
	if k1 != c.MakeOopConstant(o1) {
		t.Error("same oop interned twice")
	}
	if !k1.Singleton() {
		t.Error("oop constant is one value")
	}
	// Two distinct objects of the same class: still exactly a B, no
	// longer a particular one.
	k2 := c.MakeOopConstant(h.NewObject(b))
	if got := c.Meet(k1, k2); got != c.MakeInstPtrExact(NotNull, b, 0) {
		t.Errorf("distinct constants = %v", got)
	}
}

func TestNullMergesIntoInstancePointer(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	a := h.Lookup("A")
	aBot := c.MakeInstPtr(BotPTR, a, 0)
	if got := c.Meet(PtrNull, aBot); got != aBot {
		t.Errorf("null meet maybe-null A = %v", got)
	}
	// Adding null to a not-null pointer keeps the class view.
	if got := c.Meet(PtrNull, c.MakeInstPtr(NotNull, a, 0)); got != aBot {
		t.Errorf("null meet not-null A = %v", got)
	}
}

func TestInterfacePointerIsObjectWithView(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	ip := c.MakeInstPtr(NotNull, h.Lookup("I"), 0).(*InstPtrType)
	if ip.Klass() != h.Object || ip.KlassIsExact() {
		t.Errorf("interface pointer = %v", ip)
	}
	if !ip.Interfaces().ContainsAll(c.MakeInterfaces(h.Lookup("I"))) {
		t.Errorf("interface view = %v", ip.Interfaces())
	}
	// A meet with an implementor keeps the interface in view only if
	// both sides carry it.
	m := c.Meet(ip, c.MakeInstPtr(NotNull, h.Lookup("A"), 0)).(*InstPtrType)
	if !m.Interfaces().ContainsAll(c.MakeInterfaces(h.Lookup("I"))) {
		t.Errorf("shared interface lost: %v", m.Interfaces())
	}
}

func TestUnloadedClassMeetsConservatively(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	u := c.MakeInstPtr(NotNull, h.Lookup("U"), 0)
	m := c.Meet(u, c.MakeInstPtr(BotPTR, h.Lookup("A"), 0)).(*InstPtrType)
	if m.Klass() != h.Object || m.Kind() != BotPTR || m.Offset() != OffsetBot {
		t.Errorf("unloaded meet loaded = %v", m)
	}
	// Both not-null: the merge stays not-null.
	m2 := c.Meet(u, c.MakeInstPtr(NotNull, h.Lookup("A"), 0)).(*InstPtrType)
	if m2.Klass() != h.Object || m2.Kind() != NotNull {
		t.Errorf("not-null unloaded meet = %v", m2)
	}
}

// An empty above-centerline view must leave an unloaded pointer
// untouched: nothing from the loaded side, interface views included,
// may stick to it. The dual directions of unloaded meets fall to
// Object and are not symmetric, so the cross-check is off here.
func TestUnloadedKeepsNoInterfaceView(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatVerifyMeet, false)
	h := testHierarchy()
	c := NewContext(h, cfg)
	u := c.MakeInstPtr(NotNull, h.Lookup("U"), 0)

	// Joining back out of an interface-typed pointer narrows to the
	// unloaded type itself, with no grafted interface set.
	iBot := c.MakeInstPtr(BotPTR, h.Lookup("I"), 0)
	if got := c.Join(u, iBot); got != u {
		t.Errorf("join with interface view = %v", got)
	}
	// Same row met directly: the unloaded side comes back as-is.
	objBot := c.MakeInstPtr(BotPTR, h.Object, OffsetBot)
	if got := c.Meet(u, objBot.Dual()); got != u {
		t.Errorf("meet with empty view = %v", got)
	}
}

func TestPrimitiveArraysOfDifferentElementKinds(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	intArr := c.MakeAryPtr(BotPTR, c.MakeAry(Int, IntPos, false), h.PrimArrayOf("int"), true, 0)
	shortArr := c.MakeAryPtr(BotPTR, c.MakeAry(IntShort, IntPos, false), h.PrimArrayOf("short"), true, 0)
	m := c.Meet(intArr, shortArr).(*AryPtrType)
	// int[] and short[] share no array supertype: all that remains is
	// "some array".
	if m.Ary().Elem() != Bottom {
		t.Errorf("element = %v", m.Ary().Elem())
	}
	if m.Klass() != nil || m.KlassIsExact() {
		t.Errorf("klass view = %v exact=%v", m.Klass(), m.KlassIsExact())
	}
}

func TestArrayCovariance(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	a := h.Lookup("A")
	b := h.Lookup("B")
	aArr := c.MakeAryPtr(BotPTR, c.MakeAry(c.MakeInstPtr(BotPTR, a, 0), IntPos, false), h.ObjArrayOf(a), false, 0)
	bArr := c.MakeAryPtr(BotPTR, c.MakeAry(c.MakeInstPtr(BotPTR, b, 0), IntPos, false), h.ObjArrayOf(b), false, 0)
	if got := c.Meet(aArr, bArr); got != aArr {
		t.Errorf("B[] meet A[] = %v, want %v", got, aArr)
	}
	if got := c.Join(aArr, bArr); got != bArr {
		t.Errorf("B[] join A[] = %v, want %v", got, bArr)
	}
}

func TestArrayMeetsObjectInstance(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	intArr := c.MakeAryPtr(BotPTR, c.MakeAry(Int, IntPos, false), h.PrimArrayOf("int"), true, 0)
	objPtr := c.MakeInstPtr(BotPTR, h.Object, 0)
	// Arrays are Objects: downward the array view dissolves, upward it
	// survives.
	if got := c.Meet(intArr, objPtr); got != objPtr {
		t.Errorf("int[] meet Object = %v", got)
	}
	if got := c.Join(intArr, objPtr); got != intArr {
		t.Errorf("int[] join Object = %v", got)
	}
	// A non-Object instance cannot hold an array.
	m := c.Meet(intArr, c.MakeInstPtr(BotPTR, h.Lookup("A"), 0)).(*InstPtrType)
	if m.Klass() != h.Object {
		t.Errorf("int[] meet A = %v", m)
	}
}

func TestArrayConstant(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	ik := h.PrimArrayOf("int")
	ary := c.MakeAry(Int, c.MakeIntCon(10).(*IntType), false)
	k := c.MakeAryConstant(h.NewObject(ik), ary)
	if !k.Singleton() {
		t.Error("array constant is one value")
	}
	ap := k.(*AryPtrType)
	if ap.Kind() != Constant || !ap.Ary().Size().IsCon() {
		t.Errorf("constant array = %v", ap)
	}
}

func TestKlassPointerRoundTrip(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	a := h.Lookup("A")
	aPtr := c.MakeInstPtr(BotPTR, a, 0)
	kp := c.AsKlassType(aPtr)
	if kp != c.MakeInstKlassPtr(NotNull, a, 0) {
		t.Errorf("klass mirror = %v", kp)
	}
	if got := c.AsInstanceType(kp); got != aPtr {
		t.Errorf("round trip = %v, want %v", got, aPtr)
	}
	// The compressed wrapper unwraps on the way up.
	if got := c.AsKlassType(c.MakeNarrowOop(aPtr)); got != kp {
		t.Errorf("narrow klass mirror = %v", got)
	}
}

func TestKlassConstantsMeetAtAncestor(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	ka := c.MakeKlassConstant(h.Lookup("A"))
	kc := c.MakeKlassConstant(h.Lookup("C"))
	m := c.Meet(ka, kc).(*InstKlassPtrType)
	if m.Kind() != NotNull {
		t.Errorf("kind = %v", m.Kind())
	}
	if m != c.MakeInstKlassPtr(NotNull, h.Object, 0) {
		t.Errorf("A.class meet C.class = %v", m)
	}
	// An array class constant mirrors into the array klass family.
	if _, ok := c.MakeKlassConstant(h.ObjArrayOf(h.Lookup("A"))).(*AryKlassPtrType); !ok {
		t.Error("array class constant not array-shaped")
	}
}

func TestMethodConstants(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	a := h.Lookup("A")
	m1 := c.MakeMethodConstant(h.NewMethod(a, "run"))
	if m1 != c.Meet(m1, m1) {
		t.Error("method constant meet itself changed")
	}
	m2 := c.MakeMethodConstant(h.NewMethod(a, "run"))
	if m1 == m2 {
		t.Error("distinct methods interned together")
	}
	got := c.Meet(m1, m2).(*MetadataPtrType)
	if got.Kind() != NotNull || got.Metadata() != nil {
		t.Errorf("distinct methods = %v", got)
	}
}

func TestInterfaceSetAlgebra(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	i := h.Lookup("I")
	j := h.Lookup("J")
	s1 := c.MakeInterfaces(i, j, i)
	if len(s1.List()) != 2 {
		t.Errorf("dedup failed: %v", s1)
	}
	if c.MakeInterfaces(j, i) != s1 {
		t.Error("order-insensitive interning failed")
	}
	if !s1.ContainsAll(c.MakeInterfaces(i)) || c.MakeInterfaces(i).ContainsAll(s1) {
		t.Error("subset relation wrong")
	}
	if c.MakeInterfaces().IsEmpty() != true {
		t.Error("empty set not empty")
	}
}
