package types

import (
	"math"
	"testing"
)

func TestPointerKindMeets(t *testing.T) {
	c := newTestContext()
	if got := c.Meet(PtrNull, PtrNotNull); got != PtrBottom {
		t.Errorf("null meet notnull = %v", got)
	}
	anyNull := c.MakeAnyPtr(AnyNull, 0)
	m := c.Meet(anyNull, PtrNull).(*AnyPtrType)
	if m.Kind() != BotPTR || m.Offset() != 0 {
		t.Errorf("anynull meet null = %v", m)
	}
	if got := c.Meet(anyNull, c.MakeAnyPtr(NotNull, 0)); got.(*AnyPtrType).Kind() != NotNull {
		t.Errorf("anynull meet notnull = %v", got)
	}
	if got := c.Meet(c.MakeAnyPtr(TopPTR, 0), PtrNull); got != PtrNull {
		t.Errorf("topptr meet null = %v", got)
	}
}

func TestOffsetsMeetToUnknown(t *testing.T) {
	c := newTestContext()
	p8 := c.MakeAnyPtr(NotNull, 8)
	p16 := c.MakeAnyPtr(NotNull, 16)
	// Distinct known offsets give up to "any offset", which is the
	// interned not-null pointer bottom.
	if got := c.Meet(p8, p16); got != PtrNotNull {
		t.Errorf("mixed offsets = %v", got)
	}
	if got := c.Meet(p8, p8); got != p8 {
		t.Errorf("same offset = %v", got)
	}
}

func TestAddOffset(t *testing.T) {
	c := newTestContext()
	p8 := c.MakeAnyPtr(NotNull, 8)
	if got := c.AddOffset(p8, 8); got != c.MakeAnyPtr(NotNull, 16) {
		t.Errorf("8+8 = %v", got)
	}
	// Unknown offset is sticky.
	if got := c.AddOffset(PtrBottom, 4); got != PtrBottom {
		t.Errorf("bottom+4 = %v", got)
	}
	// Out-of-range sums degrade to unknown rather than wrapping.
	if got := c.AddOffset(p8, math.MaxInt64); got != PtrNotNull {
		t.Errorf("overflowing add = %v", got)
	}
	// Address arithmetic on a raw constant stays constant.
	r := c.AddOffset(c.MakeRawPtrCon(0x1000), 0x10).(*RawPtrType)
	if r.Bits != 0x1010 {
		t.Errorf("raw constant add = %#x", r.Bits)
	}
	// Non-pointers pass through.
	if got := c.AddOffset(Int, 8); got != Int {
		t.Errorf("int add = %v", got)
	}
}

func TestRawPointerMeets(t *testing.T) {
	c := newTestContext()
	r1 := c.MakeRawPtrCon(0x1000)
	r2 := c.MakeRawPtrCon(0x2000)
	if got := c.Meet(r1, r1); got != r1 {
		t.Errorf("same address = %v", got)
	}
	// Two different addresses are still some non-null address.
	if got := c.Meet(r1, r2); got != RawNotNull {
		t.Errorf("different addresses = %v", got)
	}
	// NotNull already covers the constant, so the address is forgotten.
	if got := c.Meet(r1, RawNotNull); got != RawNotNull {
		t.Errorf("constant meet notnull = %v", got)
	}
	// Raw addresses never alias the heap.
	h := c.Hierarchy()
	if got := c.Meet(r1, c.MakeInstPtr(BotPTR, h.Lookup("A"), 0)); got != PtrBottom {
		t.Errorf("raw meet oop = %v", got)
	}
	// A raw address can not be null.
	if got := c.Meet(r1, PtrNull); got != RawBottom {
		t.Errorf("raw meet null = %v", got)
	}
}

func TestSpeculativeSurvivesMeetWithExactType(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	obj := h.Object
	a := h.Lookup("A")
	specA := c.MakeInstPtrExact(NotNull, a, 0)
	guess := c.MakeInstPtrSpeculative(BotPTR, obj, 0, specA, 2)
	m := c.Meet(guess, specA)
	if got := Speculative(m); got != specA {
		t.Errorf("speculative part = %v, want %v", got, specA)
	}
	mp := m.(*InstPtrType)
	if mp.Klass() != obj || mp.Kind() != BotPTR || mp.KlassIsExact() {
		t.Errorf("main type = %v", mp)
	}
}

func TestRedundantSpeculativeIsStripped(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	obj := h.Object
	specA := c.MakeInstPtrExact(NotNull, h.Lookup("A"), 0)
	guess := c.MakeInstPtrSpeculative(BotPTR, obj, 0, specA, 2)
	plain := c.MakeInstPtr(BotPTR, obj, 0)
	// The merged speculation collapses to the main type and is dropped.
	if got := c.Meet(guess, plain); got != plain {
		t.Errorf("meet with plain object = %v", got)
	}
}

func TestRemoveSpeculative(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	specA := c.MakeInstPtrExact(NotNull, h.Lookup("A"), 0)
	guess := c.MakeInstPtrSpeculative(NotNull, h.Object, 0, specA, 2)
	bare := c.RemoveSpeculative(guess)
	if Speculative(bare) != nil {
		t.Errorf("speculative part survived: %v", bare)
	}
	if bare.(*InstPtrType).Klass() != h.Object {
		t.Errorf("main type changed: %v", bare)
	}
	if got := c.RemoveSpeculative(bare); got != bare {
		t.Errorf("idempotence broken: %v", got)
	}
	// The wrapper delegates to the compressed pointer.
	narrow := c.MakeNarrowOop(guess)
	if Speculative(c.RemoveSpeculative(narrow).(*NarrowPtrType).PtrType()) != nil {
		t.Error("narrow speculative part survived")
	}
}

func TestCleanupSpeculative(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	specA := c.MakeInstPtrExact(NotNull, h.Lookup("A"), 0)

	// An exact not-null speculation on an inexact main type earns its keep.
	useful := c.MakeInstPtrSpeculative(BotPTR, h.Object, 0, specA, 2)
	if got := c.CleanupSpeculative(useful); got != useful {
		t.Errorf("useful speculation dropped: %v", got)
	}

	// The main type is already exact and not null: nothing left to learn.
	exactMain := c.MakeInstPtrSpeculative(NotNull, h.Lookup("C"), 0, specA, 2)
	if Speculative(c.CleanupSpeculative(exactMain)) != nil {
		t.Error("speculation kept on an exact main type")
	}

	// An inexact maybe-null speculation can not drive optimization.
	vague := c.MakeInstPtr(BotPTR, h.Lookup("A"), 0)
	weak := c.MakeInstPtrSpeculative(BotPTR, h.Object, 0, vague, 2)
	if Speculative(c.CleanupSpeculative(weak)) != nil {
		t.Error("vague speculation kept")
	}

	// Speculating null stays: it guards null checks.
	nullGuess := c.MakeInstPtrSpeculative(BotPTR, h.Object, 0, PtrNull, 2)
	if got := c.CleanupSpeculative(nullGuess); got != nullGuess {
		t.Errorf("null speculation dropped: %v", got)
	}
}

func TestPointerPredicates(t *testing.T) {
	c := newTestContext()
	if !PtrNull.(*AnyPtrType).Singleton() {
		t.Error("null is one value")
	}
	if PtrBottom.(*AnyPtrType).Singleton() {
		t.Error("pointer bottom is not one value")
	}
	if PtrNotNull.(*AnyPtrType).MaybeNull() {
		t.Error("notnull may not be null")
	}
	if !PtrBottom.(*AnyPtrType).MaybeNull() {
		t.Error("pointer bottom includes null")
	}
	p := c.MakeAnyPtr(AnyNull, 4).(*AnyPtrType)
	if !p.Empty() {
		t.Error("above-centerline pointer has no concrete values")
	}
}
