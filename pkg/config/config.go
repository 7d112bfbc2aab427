package config

import (
	"fmt"
	"strings"
)

type Feature int

const (
	FeatVerifyMeet Feature = iota
	FeatSpeculative
	FeatInlineDepth
	FeatStableArrays
	FeatCompressedRefs
	FeatDumpVerbose
	FeatCount
)

type Warning int

const (
	WarnUnloaded Warning = iota
	WarnEmptyMeet
	WarnSpecDropped
	WarnWiden
	WarnPedantic
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	Profile    string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
	}

	features := map[Feature]Info{
		FeatVerifyMeet:     {"verify-meet", true, "Check every meet for commutativity and dual symmetry."},
		FeatSpeculative:    {"speculative", true, "Carry profile-derived speculative parts on pointer types."},
		FeatInlineDepth:    {"inline-depth", true, "Track the inlining depth that produced each speculative part."},
		FeatStableArrays:   {"stable-arrays", true, "Track stable (constant-foldable) array contents."},
		FeatCompressedRefs: {"compressed-refs", true, "Compress heap-oop array elements to 32-bit views."},
		FeatDumpVerbose:    {"dump-verbose", false, "Print widen counters and instance ids when dumping types."},
	}

	warnings := map[Warning]Info{
		WarnUnloaded:    {"unloaded", true, "Warn when a meet falls back to the conservative unloaded-class path."},
		WarnEmptyMeet:   {"empty-meet", true, "Warn when a filter collapses a type to the empty set."},
		WarnSpecDropped: {"spec-dropped", false, "Warn when a speculative part is dropped as useless."},
		WarnWiden:       {"widen", false, "Warn when bound widening saturates to the full range."},
		WarnPedantic:    {"pedantic", false, "Issue all warnings demanded by strict lattice hygiene."},
		WarnExtra:       {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyProfile configures the engine for a named operating profile:
// "debug" keeps every cross-check on, "fast" turns off everything that
// only exists to catch lattice bugs.
func (c *Config) ApplyProfile(name string) error {
	c.Profile = name

	type profileSettings struct {
		feature    Feature
		debugValue bool
		fastValue  bool
	}

	settings := []profileSettings{
		{FeatVerifyMeet, true, false},
		{FeatSpeculative, true, true},
		{FeatInlineDepth, true, true},
		{FeatStableArrays, true, true},
		{FeatCompressedRefs, true, true},
		{FeatDumpVerbose, true, false},
	}

	switch name {
	case "debug":
		for _, s := range settings {
			c.SetFeature(s.feature, s.debugValue)
		}
		c.SetWarning(WarnSpecDropped, true)
		c.SetWarning(WarnWiden, true)
	case "fast":
		for _, s := range settings {
			c.SetFeature(s.feature, s.fastValue)
		}
		c.SetWarning(WarnSpecDropped, false)
		c.SetWarning(WarnWiden, false)
	default:
		return fmt.Errorf("unsupported profile '%s'. Supported: 'debug', 'fast'", name)
	}
	return nil
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enable)
			}
		}
		return
	}

	if name == "pedantic" && isWarning {
		c.SetWarning(WarnPedantic, true)
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

func (c *Config) ProcessFlags(visitFlag func(fn func(name string))) {
	visitFlag(func(name string) {
		if name == "Wall" || name == "Wno-all" || name == "pedantic" {
			c.applyFlag("-" + name)
		}
	})
	visitFlag(func(name string) {
		if name != "Wall" && name != "Wno-all" && name != "pedantic" {
			c.applyFlag("-" + name)
		}
	})
}
