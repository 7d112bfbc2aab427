package types

// verifyMeet memoizes raw xmeet results while the symmetry checker
// runs. The checker re-meets every pair three extra times; without the
// cache, verification of deeply nested composites goes quadratic. The
// cache only lives for the duration of one outermost Meet call: depth
// tracks nesting (the checker's meets recurse back into meetHelper),
// and leaving depth zero truncates the table so stale entries never
// outlive the types-in-flight that produced them.
type verifyMeet struct {
	depth int
	cache map[meetKey]Type
}

type meetKey struct{ a, b Type }

func (v *verifyMeet) enter(c *Context) {
	if v.cache == nil {
		v.cache = make(map[meetKey]Type)
	}
	v.depth++
}

func (v *verifyMeet) leave(c *Context) {
	v.depth--
	if v.depth == 0 && len(v.cache) > 0 {
		v.cache = make(map[meetKey]Type)
	}
}

func (v *verifyMeet) meet(c *Context, a, b Type) Type {
	if res, ok := v.cache[meetKey{a, b}]; ok {
		return res
	}
	res := a.xmeet(c, b)
	v.cache[meetKey{a, b}] = res
	return res
}
