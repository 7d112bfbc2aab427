package types

import (
	"math"
	"testing"
)

func TestFloatConstantsUseBitIdentity(t *testing.T) {
	c := newTestContext()
	if c.MakeFloat(1.5) != c.MakeFloat(1.5) {
		t.Error("same constant interned twice")
	}
	// +0.0 and -0.0 compare equal as floats but are different values.
	posZero := c.MakeFloat(0)
	negZero := c.MakeFloat(float32(math.Copysign(0, -1)))
	if posZero == negZero {
		t.Error("signed zeros interned together")
	}
	if got := c.Meet(posZero, negZero); got != Float {
		t.Errorf("+0.0 meet -0.0 = %v", got)
	}
	// NaN payloads are values too.
	nan := c.MakeFloat(float32(math.NaN()))
	if nan != c.MakeFloat(float32(math.NaN())) {
		t.Error("same NaN interned twice")
	}
	if got := c.Meet(nan, nan); got != nan {
		t.Errorf("nan meet itself = %v", got)
	}
}

func TestFloatFamiliesDoNotMix(t *testing.T) {
	c := newTestContext()
	if got := c.Meet(c.MakeFloat(1), c.MakeDouble(1)); got != Bottom {
		t.Errorf("float meet double = %v", got)
	}
	if got := c.Meet(c.MakeFloat(1), Int); got != Bottom {
		t.Errorf("float meet int = %v", got)
	}
	if got := c.Meet(c.MakeHalfFloat(1), Float); got != Bottom {
		t.Errorf("halffloat meet float = %v", got)
	}
	// The whole families, tops included, fall to Bottom against each
	// other just like their constants do.
	if got := c.Meet(Float, Double); got != Bottom {
		t.Errorf("float meet double = %v", got)
	}
	if got := c.Meet(HalfFloat, Float); got != Bottom {
		t.Errorf("halffloat meet float = %v", got)
	}
	if got := c.Meet(FloatTopT, Double); got != Bottom {
		t.Errorf("float top meet double = %v", got)
	}
	if got := c.Meet(DoubleTopT, c.MakeHalfFloat(1)); got != Bottom {
		t.Errorf("double top meet halffloat constant = %v", got)
	}
}

func TestFloatSubLattice(t *testing.T) {
	c := newTestContext()
	k := c.MakeFloat(2.5)
	if got := c.Meet(k, Float); got != Float {
		t.Errorf("constant meet bottom = %v", got)
	}
	if got := c.Meet(k, FloatTopT); got != k {
		t.Errorf("constant meet family top = %v", got)
	}
	if got := c.Meet(k, c.MakeFloat(3.5)); got != Float {
		t.Errorf("different constants = %v", got)
	}
	// Constants sit on the centerline: their own duals.
	if k.Dual() != k {
		t.Error("constant not self-dual")
	}
	if got := c.Meet(c.MakeDouble(2.5), c.MakeDouble(3.5)); got != Double {
		t.Errorf("different double constants = %v", got)
	}
}

func TestHalfFloatConversion(t *testing.T) {
	cases := []struct {
		v    float32
		bits uint16
	}{
		{0, 0x0000},
		{1, 0x3c00},
		{-2, 0xc000},
		{0.1, 0x2e66},   // rounds down
		{65504, 0x7bff}, // largest finite binary16
		{65536, 0x7c00}, // overflow to infinity
		{float32(math.Inf(-1)), 0xfc00},
		{5.9604645e-8, 0x0001},        // smallest subnormal
		{float32(math.NaN()), 0x7e00}, // quieted
	}
	for _, tc := range cases {
		if got := float32ToHalfBits(tc.v); got != tc.bits {
			t.Errorf("float32ToHalfBits(%v) = %#04x, want %#04x", tc.v, got, tc.bits)
		}
	}
	// Exactly representable values survive the round trip.
	for _, bits := range []uint16{0x0000, 0x8000, 0x3c00, 0xc000, 0x7bff, 0x0001, 0x7c00} {
		if got := float32ToHalfBits(halfBitsToFloat32(bits)); got != bits {
			t.Errorf("round trip of %#04x = %#04x", bits, got)
		}
	}
	if v := halfBitsToFloat32(0x7e00); !math.IsNaN(float64(v)) {
		t.Errorf("0x7e00 = %v, want NaN", v)
	}
}

func TestHalfFloatConstants(t *testing.T) {
	c := newTestContext()
	k := c.MakeHalfFloat(1).(*HalfFloatConType)
	if k.Bits != 0x3c00 || k.Value() != 1 {
		t.Errorf("constant 1 = %v", k)
	}
	if c.MakeHalfFloatBits(0x3c00) != Type(k) {
		t.Error("bit and value construction disagree")
	}
	if got := c.Meet(k, c.MakeHalfFloat(2)); got != HalfFloat {
		t.Errorf("different constants = %v", got)
	}
}
