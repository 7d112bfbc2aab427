package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/xplshn/jolt/pkg/cli"
	"github.com/xplshn/jolt/pkg/config"
	"github.com/xplshn/jolt/pkg/klass"
	"github.com/xplshn/jolt/pkg/types"
	"github.com/xplshn/jolt/pkg/util"
)

func main() {
	app := cli.NewApp("jolt")
	app.Synopsis = "[options] <type-expr> ..."
	app.Description = "A type-lattice workbench: parses type expressions against a class hierarchy, meets and joins them, and dumps the results."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/jolt>"
	app.Since = 2025

	var (
		hierarchyFile string
		profile       string
		check         bool
		showJoin      bool
	)

	fs := app.FlagSet
	fs.String(&hierarchyFile, "hierarchy", "H", "", "Load the class hierarchy from <file>.", "file")
	fs.String(&profile, "profile", "p", "debug", "Set the operating profile (debug, fast).", "profile")
	fs.Bool(&check, "check", "c", false, "Sweep a generated corpus of meets through the verifier and exit.")
	fs.Bool(&showJoin, "join", "j", false, "Print joins and duals alongside meets.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := setupFlagGroups(fs, cfg)

	app.Action = func(exprs []string) error {
		if err := cfg.ApplyProfile(profile); err != nil {
			util.Fatalf("%v", err)
		}
		applyGroupFlags(cfg, warningFlags, featureFlags)

		h, err := loadHierarchy(hierarchyFile)
		if err != nil {
			util.Fatalf("%v", err)
		}
		ctx := types.NewContext(h, cfg)

		if check {
			return runCheck(ctx, cfg)
		}
		if len(exprs) == 0 {
			return fmt.Errorf("no type expressions given")
		}
		return runMeets(ctx, cfg, exprs, showJoin)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupFlagGroups exposes every config feature and warning as
// -F<name>/-Fno-<name> and -W<name>/-Wno-<name> flags.
func setupFlagGroups(fs *cli.FlagSet, cfg *config.Config) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warnings := make([]cli.FlagGroupEntry, config.WarnCount)
	for i := config.Warning(0); i < config.WarnCount; i++ {
		info := cfg.Warnings[i]
		warnings[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
	}
	features := make([]cli.FlagGroupEntry, config.FeatCount)
	for i := config.Feature(0); i < config.FeatCount; i++ {
		info := cfg.Features[i]
		features[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "F",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
	}
	fs.AddFlagGroup("Warnings", "Diagnostic toggles", "warning", "Available warnings", warnings)
	fs.AddFlagGroup("Features", "Lattice feature toggles", "feature", "Available features", features)
	return warnings, features
}

// applyGroupFlags overrides profile settings with explicit -F/-W flags.
func applyGroupFlags(cfg *config.Config, warnings, features []cli.FlagGroupEntry) {
	for i, entry := range warnings {
		if entry.Enabled != nil && *entry.Enabled {
			cfg.SetWarning(config.Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			cfg.SetWarning(config.Warning(i), false)
		}
	}
	for i, entry := range features {
		if entry.Enabled != nil && *entry.Enabled {
			cfg.SetFeature(config.Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			cfg.SetFeature(config.Feature(i), false)
		}
	}
}

// loadHierarchy reads the named description file, or falls back to a
// small built-in demo graph.
func loadHierarchy(path string) (*klass.Hierarchy, error) {
	if path == "" {
		return demoHierarchy(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not read hierarchy '%s': %w", path, err)
	}
	defer f.Close()
	h, err := klass.ParseHierarchy(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

func demoHierarchy() *klass.Hierarchy {
	h := klass.NewHierarchy()
	comparable := h.DefineInterface("Comparable")
	number := h.DefineClass("Number", nil, nil)
	h.DefineClass("Integer", number, []*klass.Klass{comparable}, klass.Final)
	h.DefineClass("Double", number, []*klass.Klass{comparable}, klass.Final)
	h.DefineClass("String", nil, []*klass.Klass{comparable}, klass.Final)
	return h
}

func runMeets(ctx *types.Context, cfg *config.Config, exprs []string, showJoin bool) error {
	ts := make([]types.Type, len(exprs))
	for i, e := range exprs {
		t, err := parseTypeExpr(ctx, e)
		if err != nil {
			return fmt.Errorf("'%s': %w", e, err)
		}
		ts[i] = t
		fmt.Printf("%-24s = %v\n", e, t)
	}
	if len(ts) == 1 {
		if showJoin {
			fmt.Printf("%-24s = %v\n", "dual", ts[0].Dual())
		}
		return nil
	}

	acc := ts[0]
	for _, t := range ts[1:] {
		m := ctx.Meet(acc, t)
		fmt.Printf("%v meet %v\n  = %v\n", acc, t, m)
		if showJoin {
			j := ctx.Join(acc, t)
			fmt.Printf("%v join %v\n  = %v\n", acc, t, j)
		}
		acc = m
	}
	if cfg.IsFeatureEnabled(config.FeatDumpVerbose) {
		fmt.Printf("result dual = %v\n", acc.Dual())
		fmt.Printf("singleton=%v empty=%v\n", acc.Singleton(), acc.Empty())
	}
	return nil
}

// runCheck meets every ordered pair drawn from a generated corpus.
// With verification on, every meet is cross-checked for commutativity
// and dual symmetry as a side effect; surviving the sweep is the pass
// signal.
func runCheck(ctx *types.Context, cfg *config.Config) error {
	corpus := buildCorpus(ctx)
	total := 0
	for _, a := range corpus {
		for _, b := range corpus {
			ctx.Meet(a, b)
			ctx.Join(a, b)
			total += 2
		}
	}
	fmt.Printf("checked %d meets/joins over %d types", total, len(corpus))
	if !cfg.IsFeatureEnabled(config.FeatVerifyMeet) {
		fmt.Print(" (verification off)")
	}
	fmt.Println()
	return nil
}

func buildCorpus(ctx *types.Context) []types.Type {
	h := ctx.Hierarchy()
	corpus := []types.Type{
		types.Top, types.Bottom,
		types.Int, types.IntByte, types.IntChar, types.IntShort, types.IntPos, types.IntZero,
		types.Long, types.LongUInt, types.LongZero,
		types.Float, types.Double,
		ctx.MakeFloat(1.5), ctx.MakeDouble(2.5),
		types.PtrNull, types.PtrNotNull, types.PtrBottom,
		types.RawNotNull, types.RawBottom,
		ctx.MakeInt(-64, 100, types.WidenMin),
		ctx.MakeLong(0, 1<<40, types.WidenMin),
	}
	for _, k := range h.Klasses() {
		if k.IsArray() || strings.HasSuffix(k.Name, "[]") {
			continue
		}
		corpus = append(corpus,
			ctx.MakeInstPtr(types.BotPTR, k, 0),
			ctx.MakeInstPtr(types.NotNull, k, 0),
			ctx.MakeKlassConstant(k),
		)
		if !k.Interface && k.Loaded {
			corpus = append(corpus,
				ctx.MakeInstPtrExact(types.NotNull, k, 0),
				ctx.MakeOopConstant(h.NewObject(k)),
			)
			elem := ctx.MakeInstPtr(types.BotPTR, k, 0)
			ary := ctx.MakeAry(elem, types.IntPos, false)
			corpus = append(corpus, ctx.MakeAryPtr(types.BotPTR, ary, h.ObjArrayOf(k), false, 0))
		}
	}
	intAry := ctx.MakeAry(types.Int, types.IntPos, false)
	corpus = append(corpus, ctx.MakeAryPtr(types.BotPTR, intAry, h.PrimArrayOf("int"), true, 0))
	shortAry := ctx.MakeAry(types.IntShort, types.IntPos, false)
	corpus = append(corpus, ctx.MakeAryPtr(types.BotPTR, shortAry, h.PrimArrayOf("short"), true, 0))
	return corpus
}
