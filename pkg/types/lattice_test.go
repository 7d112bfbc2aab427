package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xplshn/jolt/pkg/klass"
)

// testHierarchy builds the small class graph the type tests run
// against:
//
//	interface I ; interface J
//	class A implements I
//	class B : A implements J
//	class C final
//	unloaded U
func testHierarchy() *klass.Hierarchy {
	h := klass.NewHierarchy()
	i := h.DefineInterface("I")
	h.DefineInterface("J")
	a := h.DefineClass("A", nil, []*klass.Klass{i})
	h.DefineClass("B", a, []*klass.Klass{h.Lookup("J")})
	h.DefineClass("C", nil, nil, klass.Final)
	h.DefineUnloaded("U")
	return h
}

func newTestContext() *Context {
	return NewContext(testHierarchy(), nil)
}

// testCorpus returns a spread of types across every family, built in c.
func testCorpus(c *Context) []Type {
	h := c.Hierarchy()
	a := h.Lookup("A")
	b := h.Lookup("B")
	cc := h.Lookup("C")

	aElem := c.MakeInstPtr(BotPTR, a, 0)
	aAry := c.MakeAry(aElem, IntPos, false)
	intAry := c.MakeAry(Int, IntPos, false)

	return []Type{
		Top, Bottom, Control, Memory, Abio,
		Int, IntByte, IntChar, IntBool, IntZero, IntPos,
		c.MakeInt(-5, 5, WidenMin),
		Long, LongUInt, LongZero,
		Float, Double, HalfFloat,
		c.MakeFloat(1.5), c.MakeDouble(-2.0), c.MakeHalfFloat(0.5),
		PtrNull, PtrNotNull, PtrBottom,
		c.MakeAnyPtr(AnyNull, 8),
		RawNotNull, RawBottom, c.MakeRawPtrCon(0x1000),
		c.MakeOopPtr(BotPTR, OffsetBot, InstanceBot),
		c.MakeInstPtr(BotPTR, a, 0),
		c.MakeInstPtr(NotNull, b, 0),
		c.MakeInstPtrExact(NotNull, cc, 0),
		c.MakeOopConstant(h.NewObject(b)),
		c.MakeInstPtr(BotPTR, h.Lookup("I"), 0),
		c.MakeInstPtr(NotNull, h.Lookup("U"), 0),
		c.MakeAryPtr(BotPTR, aAry, h.ObjArrayOf(a), false, 0),
		c.MakeAryPtr(NotNull, intAry, h.PrimArrayOf("int"), true, 0),
		c.MakeInstKlassPtr(NotNull, a, 0),
		c.MakeKlassConstant(cc),
		c.MakeMetadataPtr(BotPTR, 0),
		c.MakeMethodConstant(h.NewMethod(a, "run")),
		c.MakeVect(Int, 4, 32),
		c.MakeVectMask(Int, 4),
	}
}

// meetDefined reports whether a pair lies inside the lattice's
// symmetric domain. Control, Abio and Memory only ever meet Top,
// Bottom and themselves; a raw pointer against an above-centerline
// pointer with a known offset drops the offset, which the built-in
// verifier rejects; unloaded klasses fall toward Object and lose their
// offset and interface view, so they are only symmetric against Top,
// Bottom and themselves.
func meetDefined(a, b Type) bool {
	if a == b || a == Top || b == Top || a == Bottom || b == Bottom {
		return true
	}
	marker := func(t Type) bool {
		switch t.Base() {
		case TagControl, TagAbio, TagMemory, TagReturnAddress:
			return true
		}
		return false
	}
	if marker(a) || marker(b) {
		return false
	}
	unloaded := func(t Type) bool {
		p, ok := t.(*InstPtrType)
		return ok && !p.Klass().Loaded
	}
	if unloaded(a) || unloaded(b) {
		return false
	}
	rawVsAbove := func(x, y Type) bool {
		if x.Base() != TagRawPtr {
			return false
		}
		p, ok := y.(*AnyPtrType)
		return ok && (p.Kind() == TopPTR || p.Kind() == AnyNull) && p.Offset() != 0
	}
	return !rawVsAbove(a, b) && !rawVsAbove(b, a)
}

func TestMeetIdempotentAndAbsorbing(t *testing.T) {
	c := newTestContext()
	for _, a := range testCorpus(c) {
		if got := c.Meet(a, a); got != a {
			t.Errorf("%v meet itself = %v", a, got)
		}
		if got := c.Meet(a, Top); got != a {
			t.Errorf("%v meet top = %v", a, got)
		}
		if got := c.Meet(a, Bottom); got != Bottom {
			t.Errorf("%v meet bottom = %v", a, got)
		}
	}
}

// Meeting every pair exercises the built-in symmetry verifier: any
// commutativity or dual-absorption failure aborts the test binary with
// a diagnostic dump.
func TestMeetPairwiseSymmetry(t *testing.T) {
	c := newTestContext()
	corpus := testCorpus(c)
	for _, a := range corpus {
		for _, b := range corpus {
			if !meetDefined(a, b) {
				continue
			}
			m1 := c.Meet(a, b)
			m2 := c.Meet(b, a)
			if m1 != m2 {
				t.Fatalf("meet not commutative: %v / %v -> %v vs %v", a, b, m1, m2)
			}
		}
	}
}

func TestDoubleDualIsIdentity(t *testing.T) {
	c := newTestContext()
	for _, a := range testCorpus(c) {
		if got := a.Dual().Dual(); got != a {
			t.Errorf("dual(dual(%v)) = %v", a, got)
		}
	}
}

func TestJoinIsDualizedMeet(t *testing.T) {
	c := newTestContext()
	corpus := testCorpus(c)
	for _, a := range corpus {
		for _, b := range corpus {
			if !meetDefined(a, b) {
				continue
			}
			want := c.Meet(a.Dual(), b.Dual()).Dual()
			if got := c.Join(a, b); got != want {
				t.Errorf("join(%v, %v) = %v, want %v", a, b, got, want)
			}
		}
	}
}

func TestHashConsingUniqueness(t *testing.T) {
	c := newTestContext()
	if c.MakeInt(0, 1, WidenMin) != c.MakeInt(0, 1, WidenMin) {
		t.Error("equal int constructions are distinct instances")
	}
	a := c.Hierarchy().Lookup("A")
	if c.MakeInstPtr(NotNull, a, 0) != c.MakeInstPtr(NotNull, a, 0) {
		t.Error("equal instance-pointer constructions are distinct instances")
	}
	ary := c.MakeAry(Int, IntPos, false)
	if c.MakeAryPtr(BotPTR, ary, c.Hierarchy().PrimArrayOf("int"), true, 0) !=
		c.MakeAryPtr(BotPTR, ary, c.Hierarchy().PrimArrayOf("int"), true, 0) {
		t.Error("equal array-pointer constructions are distinct instances")
	}
}

func TestSharedSingletonsAcrossContexts(t *testing.T) {
	c1 := newTestContext()
	c2 := newTestContext()
	// Hierarchy-free types come from the shared bootstrap dictionary,
	// so separate compilations agree on their identity.
	if c1.MakeIntCon(0) != c2.MakeIntCon(0) {
		t.Error("bootstrap constant differs between contexts")
	}
	if c1.MakeAnyPtr(Null, 0) != PtrNull || c2.MakeAnyPtr(Null, 0) != PtrNull {
		t.Error("null pointer not the shared singleton")
	}
}

func TestFilterCanonicalizesEmptyToTop(t *testing.T) {
	c := newTestContext()
	if got := c.Filter(IntBool, IntPos); got != IntBool {
		t.Errorf("filter([0,1], [0,maxint]) = %v", got)
	}
	lo := c.MakeInt(0, 10, WidenMin)
	hi := c.MakeInt(100, 200, WidenMin)
	if got := c.Filter(lo, hi); got != Top {
		t.Errorf("filter of disjoint ranges = %v, want top", got)
	}
	if got := c.Filter(Float, Int); got != Top {
		t.Errorf("filter across families = %v, want top", got)
	}
}

func TestNarrowOopMeetsAsWrappedPointer(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	a := c.MakeInstPtr(BotPTR, h.Lookup("A"), 0)
	b := c.MakeInstPtr(NotNull, h.Lookup("B"), 0)
	na := c.MakeNarrowOop(a)
	nb := c.MakeNarrowOop(b)
	want := c.MakeNarrowOop(c.Meet(a, b))
	if got := c.Meet(na, nb); got != want {
		t.Errorf("narrowoop meet = %v, want %v", got, want)
	}
	if got := c.Meet(na, Int); got != Bottom {
		t.Errorf("narrowoop meet int = %v, want bottom", got)
	}
	if got := c.Meet(na, a); got != Bottom {
		t.Errorf("narrowoop meet its own pointer = %v, want bottom", got)
	}
}

func TestTupleMeetIsFieldwise(t *testing.T) {
	c := newTestContext()
	t1 := c.MakeTuple(Control, IntBool, Memory)
	t2 := c.MakeTuple(Control, IntCC, Memory)
	m := c.Meet(t1, t2).(*TupleType)
	if m.Cnt() != 3 {
		t.Fatalf("arity = %d", m.Cnt())
	}
	if m.FieldAt(1) != c.Meet(IntBool, IntCC) {
		t.Errorf("field 1 = %v", m.FieldAt(1))
	}
	if c.MakeTuple(Control, IntBool, Memory) != t1 {
		t.Error("tuple not hash-consed")
	}
	if c.Meet(t1, Top) != t1 || c.Meet(t1, Bottom) != Bottom {
		t.Error("tuple extremes broken")
	}
}

func TestVectorSpeciesAndMeet(t *testing.T) {
	c := newTestContext()
	v128 := c.MakeVect(Int, 4, 32)
	if v128.Base() != TagVectorX {
		t.Errorf("4 x 32 bits species = %v", v128.Base())
	}
	if c.MakeVect(Int, 4, 32) != v128 {
		t.Error("vector not hash-consed")
	}
	if v128.Dual() != Type(v128) {
		t.Error("vector not self-dual")
	}
	v256 := c.MakeVect(Int, 8, 32)
	if got := c.Meet(v128, v256); got != Bottom {
		t.Errorf("cross-species meet = %v, want bottom", got)
	}
	mask := c.MakeVectMask(Int, 4)
	if got := c.Meet(v128, mask); got != Bottom {
		t.Errorf("vector meet mask = %v, want bottom", got)
	}
	if got := c.Meet(v128, Int); got != Bottom {
		t.Errorf("vector meet scalar = %v, want bottom", got)
	}
	// The reverse directions land in the scalar and pointer arms.
	if got := c.Meet(Long, v128); got != Bottom {
		t.Errorf("scalar meet vector = %v, want bottom", got)
	}
	if got := c.Meet(c.MakeFloat(1.5), mask); got != Bottom {
		t.Errorf("float constant meet mask = %v, want bottom", got)
	}
	if got := c.Meet(PtrBottom, v128); got != Bottom {
		t.Errorf("pointer meet vector = %v, want bottom", got)
	}
	if got := c.Meet(RawNotNull, v128); got != Bottom {
		t.Errorf("raw pointer meet vector = %v, want bottom", got)
	}
	h := c.Hierarchy()
	if got := c.Meet(c.MakeInstPtr(BotPTR, h.Lookup("A"), 0), v128); got != Bottom {
		t.Errorf("instance pointer meet vector = %v, want bottom", got)
	}
}

func TestFuncTypeAlgebra(t *testing.T) {
	c := newTestContext()
	dom := c.MakeTuple(Control, Int)
	rng := c.MakeTuple(Control, Long)
	f := c.MakeFunc(dom, rng)
	if c.MakeFunc(dom, rng) != f {
		t.Error("signature not hash-consed")
	}
	if f.Dual() != Type(f) {
		t.Error("signature not self-dual")
	}
	g := c.MakeFunc(rng, dom)
	if got := c.Meet(f, g); got != Bottom {
		t.Errorf("distinct signatures meet = %v, want bottom", got)
	}
	if c.Meet(f, Top) != f {
		t.Error("signature meet top broken")
	}
}

// The String forms double as the debug dump format, so pin the exact
// renderings for one representative of each family.
func TestStringRendering(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	a := h.Lookup("A")
	cc := h.Lookup("C")
	aPtr := c.MakeInstPtr(BotPTR, a, 0)

	cases := []struct {
		typ  Type
		want string
	}{
		{Top, "top"},
		{Bottom, "bottom"},
		{Control, "control"},
		{Memory, "memory"},
		{Int, "int"},
		{Int.Dual(), "dual int"},
		{c.MakeIntCon(5), "int:5"},
		{IntByte, "int:-128..127"},
		{c.MakeInt(-5, 5, WidenMin), "int:-5..5"},
		{Long, "long"},
		{Float, "float"},
		{c.MakeFloat(1.5), "float:1.5"},
		{PtrNull, "ptr:Null"},
		{PtrNotNull, "ptr:NotNull+any"},
		{PtrBottom, "ptr:BotPTR+any"},
		{c.MakeAnyPtr(NotNull, 8), "ptr:NotNull+8"},
		{RawBottom, "rawptr:BotPTR"},
		{c.MakeRawPtrCon(0x1000), "rawptr:0x1000"},
		{aPtr, "A:BotPTR (interfaces:{I})"},
		{c.MakeInstPtrExact(NotNull, cc, 0), "C:NotNull:exact"},
		{c.MakeInstKlassPtr(NotNull, a, 8), "klass:A:NotNull (interfaces:{I})+8"},
		{c.MakeNarrowOop(aPtr), "narrowoop:A:BotPTR (interfaces:{I})"},
		{c.MakeTuple(Control, Int), "{control, int}"},
		{c.MakeVect(Int, 4, 32), "vectorx[4]:{int}"},
		{c.MakeFunc(c.MakeTuple(Control, Int), c.MakeTuple(Control, Long)), "{control, int} -> {control, long}"},
	}
	got := make([]string, len(cases))
	want := make([]string, len(cases))
	for i, tc := range cases {
		got[i] = tc.typ.String()
		want[i] = tc.want
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("type renderings (-want +got):\n%s", diff)
	}
}
