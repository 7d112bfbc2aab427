package types

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/xplshn/jolt/pkg/config"
	"github.com/xplshn/jolt/pkg/klass"
	"github.com/xplshn/jolt/pkg/util"
)

// hashBuilder accumulates the structural identity of a candidate type.
// The digest is computed once, before interning, and never changes.
type hashBuilder struct{ d *xxhash.Digest }

func newHash(tag Tag) *hashBuilder {
	h := &hashBuilder{d: xxhash.New()}
	return h.u64(uint64(tag))
}

func (h *hashBuilder) u64(v uint64) *hashBuilder {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.d.Write(buf[:])
	return h
}

func (h *hashBuilder) i64(v int64) *hashBuilder  { return h.u64(uint64(v)) }
func (h *hashBuilder) i32(v int32) *hashBuilder  { return h.u64(uint64(uint32(v))) }
func (h *hashBuilder) u32(v uint32) *hashBuilder { return h.u64(uint64(v)) }

func (h *hashBuilder) boolv(v bool) *hashBuilder {
	if v {
		return h.u64(1)
	}
	return h.u64(0)
}

// sub folds in the hash of an already-canonical component type.
func (h *hashBuilder) sub(t Type) *hashBuilder {
	if t == nil {
		return h.u64(0)
	}
	return h.u64(t.hashVal())
}

func (h *hashBuilder) done() uint64 { return h.d.Sum64() }

// typeDict is a bucketed intern table. Buckets resolve hash collisions
// through structural eq. The shared half holds the process-wide
// singletons and is never written after bootstrap, so lookups in it
// need no lock; the local half belongs to exactly one Context.
type typeDict struct {
	shared map[uint64][]Type
	local  map[uint64][]Type
}

func (d *typeDict) find(t Type) Type {
	h := t.hashVal()
	for _, old := range d.shared[h] {
		if old.eq(t) {
			return old
		}
	}
	for _, old := range d.local[h] {
		if old.eq(t) {
			return old
		}
	}
	return nil
}

func (d *typeDict) insert(t Type) {
	h := t.hashVal()
	d.local[h] = append(d.local[h], t)
}

// Context owns one compilation's type dictionary. All factory methods
// and the meet/join/filter algebra hang off it. A Context is not safe
// for concurrent use; concurrent compilations each get their own,
// sharing only the immutable bootstrap dictionary and the class
// hierarchy.
type Context struct {
	hier   *klass.Hierarchy
	dict   typeDict
	verify verifyMeet

	verifyOn      bool
	specOn        bool
	inlineDepthOn bool
	stableOn      bool
	compressedOn  bool
	warnOn        [config.WarnCount]bool

	// Prebuilt per-hierarchy types, used as meet fallbacks.
	instBottom  *InstPtrType // all instances of Object, any nullness
	instNotNull *InstPtrType // non-null instances of Object
	arrayIfaces *InterfacesType
	objectKlass *InstKlassPtrType
}

// NewContext builds a fresh type context over a class hierarchy.
// A nil cfg enables every feature, verification included.
func NewContext(h *klass.Hierarchy, cfg *config.Config) *Context {
	bootstrap()
	c := &Context{
		hier:          h,
		dict:          typeDict{shared: sharedDict, local: make(map[uint64][]Type)},
		verifyOn:      true,
		specOn:        true,
		inlineDepthOn: true,
		stableOn:      true,
		compressedOn:  true,
	}
	c.warnOn[config.WarnUnloaded] = true
	c.warnOn[config.WarnEmptyMeet] = true
	c.warnOn[config.WarnExtra] = true
	if cfg != nil {
		c.verifyOn = cfg.IsFeatureEnabled(config.FeatVerifyMeet)
		c.specOn = cfg.IsFeatureEnabled(config.FeatSpeculative)
		c.inlineDepthOn = cfg.IsFeatureEnabled(config.FeatInlineDepth)
		c.stableOn = cfg.IsFeatureEnabled(config.FeatStableArrays)
		c.compressedOn = cfg.IsFeatureEnabled(config.FeatCompressedRefs)
		for w := config.Warning(0); w < config.WarnCount; w++ {
			c.warnOn[w] = cfg.IsWarningEnabled(w)
		}
	}
	if h != nil {
		c.instBottom = c.makeInstPtrRaw(BotPTR, h.Object, emptyInterfaces, false, nil, OffsetBot, InstanceBot, nil, InlineDepthBottom).(*InstPtrType)
		c.instNotNull = c.makeInstPtrRaw(NotNull, h.Object, emptyInterfaces, false, nil, OffsetBot, InstanceBot, nil, InlineDepthBottom).(*InstPtrType)
		c.arrayIfaces = c.MakeInterfaces(h.Cloneable, h.Serializable)
		c.objectKlass = c.MakeInstKlassPtr(NotNull, h.Object, 0).(*InstKlassPtrType)
	}
	return c
}

// Hierarchy returns the class hierarchy this context resolves
// subtyping against.
func (c *Context) Hierarchy() *klass.Hierarchy { return c.hier }

// warnf reports a diagnostic gated on the warning switches. Re-meets
// issued by the symmetry verifier stay silent: the outer meet already
// warned.
func (c *Context) warnf(w config.Warning, format string, args ...interface{}) {
	if !c.warnOn[w] || c.verify.depth > 0 {
		return
	}
	util.Warnf(format, args...)
}

// hashcons interns a candidate. If a structurally equal type already
// exists, the candidate is discarded in its favor. A genuinely new
// type gets its dual computed and interned in the same step, so the
// dual link is total over the dictionary and double-dual is pointer
// identity.
func (c *Context) hashcons(t Type) Type {
	if old := c.dict.find(t); old != nil {
		return old
	}
	c.dict.insert(t)
	d := t.xdual()
	if t.eq(d) {
		// Self-symmetric.
		util.Assertf(d.hashVal() == t.hashVal(), "self-dual with differing hash: %v", t)
		t.common().dual = t
		return t
	}
	util.Assertf(c.dict.find(d) == nil, "dual already interned without its primal: %v", d)
	c.dict.insert(d)
	t.common().dual = d
	d.common().dual = t
	return t
}

// Process-wide singletons, interned once into the shared dictionary.
var (
	Top    Type
	Bottom Type

	Control       Type
	Abio          Type
	Memory        Type
	ReturnAddress Type
	Half          Type

	HalfFloatTopT Type
	HalfFloat     Type
	FloatTopT     Type
	Float         Type
	DoubleTopT    Type
	Double        Type

	FloatZero  Type // 32-bit +0.0
	FloatOne   Type
	DoubleZero Type // 64-bit +0.0
	DoubleOne  Type

	IntMinus1 *IntType
	IntZero   *IntType
	IntOne    *IntType
	IntBool   *IntType
	IntCC     *IntType // condition codes, [-1,1]
	IntCCLT   *IntType // [-1,-1]
	IntCCGT   *IntType // [1,1]
	IntCCEQ   *IntType // [0,0]
	IntCCLE   *IntType // [-1,0]
	IntCCGE   *IntType // [0,1]
	IntByte   *IntType
	IntUByte  *IntType
	IntChar   *IntType
	IntShort  *IntType
	IntPos    *IntType // [0,maxint]
	IntPos1   *IntType // [1,maxint]
	Int       *IntType // all 32 bits

	LongMinus1 *LongType
	LongZero   *LongType
	LongOne    *LongType
	LongUInt   *LongType // [0, 2^32-1]
	LongPos    *LongType // [0,maxlong]
	Long       *LongType // all 64 bits

	PtrNull    Type // the null pointer
	PtrNotNull Type // any non-null pointer
	PtrBottom  Type // any pointer, null included

	RawNotNull Type
	RawBottom  Type

	emptyInterfaces *InterfacesType

	bootstrapOnce sync.Once
	sharedDict    map[uint64][]Type
)

// bootstrap interns the hierarchy-independent singletons into the
// shared dictionary. Runs exactly once per process.
func bootstrap() {
	bootstrapOnce.Do(func() {
		sharedDict = make(map[uint64][]Type)
		c := &Context{dict: typeDict{shared: map[uint64][]Type{}, local: sharedDict}}

		Top = c.hashcons(newSimpleType(TagTop))
		Bottom = Top.Dual()

		Control = c.hashcons(newSimpleType(TagControl))
		Abio = c.hashcons(newSimpleType(TagAbio))
		Memory = c.hashcons(newSimpleType(TagMemory))
		ReturnAddress = c.hashcons(newSimpleType(TagReturnAddress))
		Half = c.hashcons(newSimpleType(TagHalf))

		HalfFloatTopT = c.hashcons(newSimpleType(TagHalfFloatTop))
		HalfFloat = HalfFloatTopT.Dual()
		FloatTopT = c.hashcons(newSimpleType(TagFloatTop))
		Float = FloatTopT.Dual()
		DoubleTopT = c.hashcons(newSimpleType(TagDoubleTop))
		Double = DoubleTopT.Dual()

		FloatZero = c.MakeFloat(0.0)
		FloatOne = c.MakeFloat(1.0)
		DoubleZero = c.MakeDouble(0.0)
		DoubleOne = c.MakeDouble(1.0)

		IntMinus1 = c.MakeIntCon(-1).(*IntType)
		IntZero = c.MakeIntCon(0).(*IntType)
		IntOne = c.MakeIntCon(1).(*IntType)
		IntBool = c.MakeInt(0, 1, WidenMin).(*IntType)
		IntCC = c.MakeInt(-1, 1, WidenMin).(*IntType)
		IntCCLT = IntMinus1
		IntCCGT = IntOne
		IntCCEQ = IntZero
		IntCCLE = c.MakeInt(-1, 0, WidenMin).(*IntType)
		IntCCGE = c.MakeInt(0, 1, WidenMin).(*IntType)
		IntByte = c.MakeInt(-128, 127, WidenMin).(*IntType)
		IntUByte = c.MakeInt(0, 255, WidenMin).(*IntType)
		IntChar = c.MakeInt(0, 65535, WidenMin).(*IntType)
		IntShort = c.MakeInt(-32768, 32767, WidenMin).(*IntType)
		IntPos = c.MakeInt(0, maxJint, WidenMin).(*IntType)
		IntPos1 = c.MakeInt(1, maxJint, WidenMin).(*IntType)
		Int = c.MakeInt(minJint, maxJint, WidenMax).(*IntType)

		LongMinus1 = c.MakeLongCon(-1).(*LongType)
		LongZero = c.MakeLongCon(0).(*LongType)
		LongOne = c.MakeLongCon(1).(*LongType)
		LongUInt = c.MakeLong(0, 1<<32-1, WidenMin).(*LongType)
		LongPos = c.MakeLong(0, maxJlong, WidenMin).(*LongType)
		Long = c.MakeLong(minJlong, maxJlong, WidenMax).(*LongType)

		PtrNull = c.MakeAnyPtr(Null, 0)
		PtrNotNull = c.MakeAnyPtr(NotNull, OffsetBot)
		PtrBottom = c.MakeAnyPtr(BotPTR, OffsetBot)

		RawNotNull = c.makeRawPtr(NotNull, 0)
		RawBottom = c.makeRawPtr(BotPTR, 0)

		emptyInterfaces = c.hashcons(newInterfacesType(nil)).(*InterfacesType)
	})
}
