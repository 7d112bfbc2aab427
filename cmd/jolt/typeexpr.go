package main

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"github.com/xplshn/jolt/pkg/types"
)

// parseTypeExpr evaluates a command-line type expression against a
// context's hierarchy:
//
//	top | bottom | int | long | float | double
//	int[lo,hi]      bounded 32-bit range
//	long[lo,hi]     bounded 64-bit range
//	float(1.5)      float constant (double(c) likewise)
//	null | notnull | anyptr | rawptr
//	Name            instance pointer, null included
//	Name[]          array of Name, any length
//	klass(Name)     klass-pointer constant
//
// A class form takes trailing :exact, :notnull or :top modifiers, an
// array form additionally :stable.
func parseTypeExpr(c *types.Context, expr string) (types.Type, error) {
	base, mods, err := splitModifiers(expr)
	if err != nil {
		return nil, err
	}

	if len(mods) > 0 && isScalar(base) {
		return nil, fmt.Errorf("'%s' takes no modifiers", base)
	}
	switch base {
	case "top":
		return types.Top, nil
	case "bottom":
		return types.Bottom, nil
	case "int":
		return types.Int, nil
	case "long":
		return types.Long, nil
	case "float":
		return types.Float, nil
	case "double":
		return types.Double, nil
	case "null":
		return types.PtrNull, nil
	case "notnull":
		return types.PtrNotNull, nil
	case "anyptr":
		return types.PtrBottom, nil
	case "rawptr":
		return types.RawBottom, nil
	}

	// The array form is checked first so that "int[]" is an int array,
	// not an empty range.
	if elem, ok := strings.CutSuffix(base, "[]"); ok {
		return makeArrayExpr(c, elem, mods)
	}
	if name, ok := argOf(base, "int[", "]"); ok {
		lo, hi, err := parseRange32(name)
		if err != nil {
			return nil, err
		}
		return c.MakeInt(lo, hi, types.WidenMin), nil
	}
	if name, ok := argOf(base, "long[", "]"); ok {
		lo, hi, err := parseRange64(name)
		if err != nil {
			return nil, err
		}
		return c.MakeLong(lo, hi, types.WidenMin), nil
	}
	if name, ok := argOf(base, "float(", ")"); ok {
		v, err := strconv.ParseFloat(name, 32)
		if err != nil {
			return nil, fmt.Errorf("bad float constant '%s'", name)
		}
		return c.MakeFloat(float32(v)), nil
	}
	if name, ok := argOf(base, "double(", ")"); ok {
		v, err := strconv.ParseFloat(name, 64)
		if err != nil {
			return nil, fmt.Errorf("bad double constant '%s'", name)
		}
		return c.MakeDouble(v), nil
	}
	if name, ok := argOf(base, "klass(", ")"); ok {
		k := c.Hierarchy().Lookup(name)
		if k == nil {
			return nil, fmt.Errorf("unknown class '%s'", name)
		}
		return c.MakeKlassConstant(k), nil
	}

	return makeInstanceExpr(c, base, mods)
}

func isScalar(base string) bool {
	switch base {
	case "top", "bottom", "int", "long", "float", "double",
		"null", "notnull", "anyptr", "rawptr":
		return true
	}
	return false
}

func splitModifiers(expr string) (string, []string, error) {
	parts := strings.Split(expr, ":")
	base := parts[0]
	if base == "" {
		return "", nil, fmt.Errorf("empty type expression")
	}
	for _, m := range parts[1:] {
		switch m {
		case "exact", "notnull", "top", "stable":
		default:
			return "", nil, fmt.Errorf("unknown modifier ':%s'", m)
		}
	}
	return base, parts[1:], nil
}

func argOf(s, prefix, suffix string) (string, bool) {
	if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix) {
		return s[len(prefix) : len(s)-len(suffix)], true
	}
	return "", false
}

func parseRange32(s string) (int32, int32, error) {
	lo64, hi64, err := parseRange64(s)
	if err != nil {
		return 0, 0, err
	}
	lo, errLo := safecast.Convert[int32](lo64)
	hi, errHi := safecast.Convert[int32](hi64)
	if errLo != nil || errHi != nil {
		return 0, 0, fmt.Errorf("range [%d,%d] does not fit in 32 bits", lo64, hi64)
	}
	return lo, hi, nil
}

func parseRange64(s string) (int64, int64, error) {
	lo, hi, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected 'lo,hi' in '%s'", s)
	}
	loV, errLo := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
	hiV, errHi := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
	if errLo != nil || errHi != nil {
		return 0, 0, fmt.Errorf("bad bounds in '%s'", s)
	}
	if loV > hiV {
		return 0, 0, fmt.Errorf("empty range [%d,%d]", loV, hiV)
	}
	return loV, hiV, nil
}

func kindOf(mods []string) types.PtrKind {
	kind := types.BotPTR
	for _, m := range mods {
		switch m {
		case "notnull":
			kind = types.NotNull
		case "top":
			kind = types.TopPTR
		}
	}
	return kind
}

func makeInstanceExpr(c *types.Context, name string, mods []string) (types.Type, error) {
	k := c.Hierarchy().Lookup(name)
	if k == nil {
		return nil, fmt.Errorf("unknown class '%s'", name)
	}
	kind := kindOf(mods)
	for _, m := range mods {
		switch m {
		case "exact":
			if kind == types.BotPTR {
				kind = types.NotNull
			}
			return c.MakeInstPtrExact(kind, k, 0), nil
		case "stable":
			return nil, fmt.Errorf("':stable' applies to arrays only")
		}
	}
	return c.MakeInstPtr(kind, k, 0), nil
}

func makeArrayExpr(c *types.Context, elemName string, mods []string) (types.Type, error) {
	h := c.Hierarchy()
	var elem types.Type

	stable := false
	exact := false
	for _, m := range mods {
		switch m {
		case "stable":
			stable = true
		case "exact":
			exact = true
		}
	}
	kind := kindOf(mods)
	if exact && kind == types.BotPTR {
		kind = types.NotNull
	}
	size := types.IntPos

	switch elemName {
	case "int":
		elem = types.Int
		ary := c.MakeAry(elem, size, stable)
		return c.MakeAryPtr(kind, ary, h.PrimArrayOf("int"), true, 0), nil
	case "short":
		elem = types.IntShort
		ary := c.MakeAry(elem, size, stable)
		return c.MakeAryPtr(kind, ary, h.PrimArrayOf("short"), true, 0), nil
	case "byte":
		elem = types.IntByte
		ary := c.MakeAry(elem, size, stable)
		return c.MakeAryPtr(kind, ary, h.PrimArrayOf("byte"), true, 0), nil
	case "char":
		elem = types.IntChar
		ary := c.MakeAry(elem, size, stable)
		return c.MakeAryPtr(kind, ary, h.PrimArrayOf("char"), true, 0), nil
	case "long":
		elem = types.Long
		ary := c.MakeAry(elem, size, stable)
		return c.MakeAryPtr(kind, ary, h.PrimArrayOf("long"), true, 0), nil
	}

	k := h.Lookup(elemName)
	if k == nil {
		return nil, fmt.Errorf("unknown element class '%s'", elemName)
	}
	elem = c.MakeInstPtr(types.BotPTR, k, 0)
	ary := c.MakeAry(elem, size, stable)
	return c.MakeAryPtr(kind, ary, h.ObjArrayOf(k), exact, 0), nil
}
