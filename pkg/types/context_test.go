package types

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/xplshn/jolt/pkg/config"
)

func TestMeetIgnoringSpeculative(t *testing.T) {
	c := newTestContext()
	h := c.Hierarchy()
	specA := c.MakeInstPtrExact(NotNull, h.Lookup("A"), 0)
	guess := c.MakeInstPtrSpeculative(BotPTR, h.Object, 0, specA, 2)
	got := c.MeetIgnoringSpeculative(guess, specA)
	if Speculative(got) != nil {
		t.Errorf("speculative part survived: %v", got)
	}
	if got != c.MakeInstPtr(BotPTR, h.Object, 0) {
		t.Errorf("main meet = %v", got)
	}
	if got := c.FilterIgnoringSpeculative(guess, guess); Speculative(got) != nil {
		t.Errorf("filter kept speculative part: %v", got)
	}
}

func TestConfigDrivesContext(t *testing.T) {
	cfg := config.NewConfig()
	if err := cfg.ApplyProfile("fast"); err != nil {
		t.Fatal(err)
	}
	c := NewContext(testHierarchy(), cfg)
	// Verification is off; meets still canonicalize.
	if got := c.Meet(IntByte, IntChar); got != c.MakeInt(-128, 65535, WidenMin) {
		t.Errorf("meet without verification = %v", got)
	}

	// With compressed references off, array elements stay full oops.
	cfg2 := config.NewConfig()
	cfg2.SetFeature(config.FeatCompressedRefs, false)
	c2 := NewContext(testHierarchy(), cfg2)
	elem := c2.MakeInstPtr(BotPTR, c2.Hierarchy().Lookup("A"), 0)
	if _, ok := c2.MakeAry(elem, IntPos, false).Elem().(*InstPtrType); !ok {
		t.Errorf("element compressed despite the feature being off")
	}
	if _, ok := c.MakeAry(c.MakeInstPtr(BotPTR, c.Hierarchy().Lookup("A"), 0), IntPos, false).Elem().(*NarrowPtrType); !ok {
		t.Errorf("element not compressed with the feature on")
	}

	// Speculation off: speculative parts are never attached.
	cfg3 := config.NewConfig()
	cfg3.SetFeature(config.FeatSpeculative, false)
	c3 := NewContext(testHierarchy(), cfg3)
	a := c3.Hierarchy().Lookup("A")
	spec := c3.MakeInstPtrExact(NotNull, a, 0)
	if got := c3.MakeInstPtrSpeculative(BotPTR, c3.Hierarchy().Object, 0, spec, 2); Speculative(got) != nil {
		t.Errorf("speculative part attached with speculation off: %v", got)
	}
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	fn()
	w.Close()
	os.Stderr = old
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestWarningsFollowConfig(t *testing.T) {
	unloadedMeet := func(c *Context) {
		h := c.Hierarchy()
		c.Meet(c.MakeInstPtr(NotNull, h.Lookup("U"), 0), c.MakeInstPtr(BotPTR, h.Lookup("A"), 0))
	}

	c := newTestContext()
	if out := captureStderr(t, func() { unloadedMeet(c) }); !strings.Contains(out, "not loaded") {
		t.Errorf("no unloaded warning in %q", out)
	}

	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnUnloaded, false)
	quiet := NewContext(testHierarchy(), cfg)
	if out := captureStderr(t, func() { unloadedMeet(quiet) }); out != "" {
		t.Errorf("warning despite the switch being off: %q", out)
	}

	if out := captureStderr(t, func() { c.Filter(c.MakeInt(0, 10, WidenMin), c.MakeInt(20, 30, WidenMin)) }); !strings.Contains(out, "empty") {
		t.Errorf("no empty-filter warning in %q", out)
	}
}
