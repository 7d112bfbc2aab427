// Package cli is the small command-line layer of the jolt tool: a
// flag set with shorthands and -X<name>/-Xno-<name> toggle groups,
// plus terminal-width-aware usage and help pages.
package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

// Value is the parsed representation behind a flag.
type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

// Flag is one registered option.
type Flag struct {
	Name      string
	Shorthand string
	Usage     string
	Value     Value
	DefValue  string
	ArgName   string
}

func (f *Flag) isBool() bool {
	_, ok := f.Value.(*boolValue)
	return ok
}

// FlagGroupEntry is one named toggle inside a group: -W<name> sets
// Enabled, -Wno-<name> sets Disabled, and the caller decides which one
// wins.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

// FlagGroup renders a family of toggles as its own help section.
type FlagGroup struct {
	Name        string
	Description string
	Entries     []FlagGroupEntry
	Kind        string
	ListHeader  string
}

// FlagSet holds the registered flags of one command invocation.
type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	groups     []FlagGroup
	args       []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

// Args returns the positional arguments left after Parse.
func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, argName string) {
	*p = value
	f.register(&stringValue{p}, name, shorthand, usage, value, argName)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.register(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

// AddFlagGroup registers every entry of the group as a -P<name> and
// -Pno-<name> flag pair and records the group for help rendering.
func (f *FlagSet) AddFlagGroup(name, description, kind, listHeader string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.register(&boolValue{e.Enabled}, e.Prefix+e.Name, "", e.Usage, "false", "")
		}
		if e.Disabled != nil {
			f.register(&boolValue{e.Disabled}, e.Prefix+"no-"+e.Name, "", "Disable '"+e.Name+"'", "false", "")
		}
	}
	f.groups = append(f.groups, FlagGroup{
		Name:        name,
		Description: description,
		Entries:     entries,
		Kind:        kind,
		ListHeader:  listHeader,
	})
}

func (f *FlagSet) register(value Value, name, shorthand, usage, defValue, argName string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, dup := f.flags[name]; dup {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	fl := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ArgName: argName}
	f.flags[name] = fl
	if shorthand != "" {
		if _, dup := f.shorthands[shorthand]; dup {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = fl
	}
}

// Lookup returns the flag registered under name, or nil.
func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

// Parse consumes arguments. Both -name and --name address long flags;
// a single trailing letter falls back to the shorthand table. "--"
// ends flag processing.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}
		body := strings.TrimPrefix(arg[1:], "-")
		name, value, hasValue := strings.Cut(body, "=")
		if name == "" {
			return fmt.Errorf("empty flag name")
		}

		fl, ok := f.flags[name]
		if !ok && !strings.HasPrefix(arg, "--") {
			if fl, ok = f.shorthands[name[:1]]; ok && len(name) > 1 && !hasValue {
				// -p<value> with the value glued on.
				value, hasValue = name[1:], true
			}
		}
		if !ok {
			return fmt.Errorf("unknown flag: %s", arg)
		}

		switch {
		case hasValue:
			if err := fl.Value.Set(value); err != nil {
				return err
			}
		case fl.isBool():
			if err := fl.Value.Set(""); err != nil {
				return err
			}
		default:
			if i+1 >= len(arguments) {
				return fmt.Errorf("flag needs an argument: %s", arg)
			}
			i++
			if err := fl.Value.Set(arguments[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// App ties a flag set to an action and owns the help pages.
type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.writeUsage(os.Stderr)
		return err
	}
	if help {
		a.writeHelp(os.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

const indentUnit = 4

func indent(level int) string { return strings.Repeat(" ", indentUnit*level) }

// writeUsage prints the short page shown on a flag error: the
// synopsis and the plain options, without the toggle groups.
func (a *App) writeUsage(w *os.File) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)

	if flags := a.optionFlags(); len(flags) > 0 {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%sOptions\n", indent(1))
		a.writeFlagLines(&sb, flags, a.layout())
	}
	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	fmt.Fprint(w, sb.String())
}

// writeHelp prints the full page: copyright, synopsis, description,
// options and every toggle group.
func (a *App) writeHelp(w *os.File) {
	var sb strings.Builder
	l := a.layout()

	sb.WriteString("\n")
	year := time.Now().Year()
	from := strconv.Itoa(year)
	if a.Since != 0 && a.Since < year {
		from = fmt.Sprintf("%d-%d", a.Since, year)
	}
	fmt.Fprintf(&sb, "%sCopyright (c) %s: %s and contributors\n", indent(1), from, strings.Join(a.Authors, ", "))
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indent(1), a.Repository)
	}

	if a.Synopsis != "" {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%sSynopsis\n", indent(1))
		fmt.Fprintf(&sb, "%s%s %s\n", indent(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%sDescription\n", indent(1))
		for _, line := range wrapText(a.Description, l.width-2*indentUnit) {
			fmt.Fprintf(&sb, "%s%s\n", indent(2), line)
		}
	}

	if flags := a.optionFlags(); len(flags) > 0 {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%sOptions\n", indent(1))
		a.writeFlagLines(&sb, flags, l)
	}

	groups := make([]FlagGroup, len(a.FlagSet.groups))
	copy(groups, a.FlagSet.groups)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, g := range groups {
		a.writeGroup(&sb, g, l)
	}
	fmt.Fprint(w, sb.String())
}

// layout carries the column widths shared by every help line.
type layout struct {
	width int // terminal width
	left  int // widest flag spelling
}

func (a *App) layout() layout {
	l := layout{width: terminalWidth()}
	grow := func(s string) {
		if len(s) > l.left {
			l.left = len(s)
		}
	}
	for _, fl := range a.optionFlags() {
		grow(flagSpelling(fl))
	}
	for _, g := range a.FlagSet.groups {
		grow(fmt.Sprintf("-%sno-<%s>", g.Entries[0].Prefix, g.Kind))
		for _, e := range g.Entries {
			grow(e.Name)
		}
	}
	return l
}

// optionFlags returns the stand-alone flags, leaving out the ones a
// group already owns.
func (a *App) optionFlags() []*Flag {
	grouped := make(map[string]bool)
	for _, g := range a.FlagSet.groups {
		for _, e := range g.Entries {
			grouped[e.Prefix+e.Name] = true
			grouped[e.Prefix+"no-"+e.Name] = true
		}
	}
	var flags []*Flag
	for name, fl := range a.FlagSet.flags {
		if !grouped[name] {
			flags = append(flags, fl)
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
	return flags
}

func flagSpelling(fl *Flag) string {
	arg := ""
	if !fl.isBool() && fl.ArgName != "" {
		arg = " <" + fl.ArgName + ">"
	}
	if fl.Shorthand != "" {
		return fmt.Sprintf("-%s%s, --%s%s", fl.Shorthand, arg, fl.Name, arg)
	}
	return "--" + fl.Name + arg
}

func (a *App) writeFlagLines(sb *strings.Builder, flags []*Flag, l layout) {
	for _, fl := range flags {
		def := ""
		if !fl.isBool() && fl.DefValue != "" {
			def = "|" + fl.DefValue + "|"
		}
		writeEntry(sb, l, flagSpelling(fl), fl.Usage, def)
	}
}

func (a *App) writeGroup(sb *strings.Builder, g FlagGroup, l layout) {
	sb.WriteString("\n")
	fmt.Fprintf(sb, "%s%s\n", indent(1), g.Name)

	prefix := g.Entries[0].Prefix
	writeEntry(sb, l, fmt.Sprintf("-%s<%s>", prefix, g.Kind), "Enable a specific "+g.Kind, "")
	writeEntry(sb, l, fmt.Sprintf("-%sno-<%s>", prefix, g.Kind), "Disable a specific "+g.Kind, "")

	if g.ListHeader != "" {
		fmt.Fprintf(sb, "%s%s\n", indent(1), g.ListHeader)
	}
	entries := make([]FlagGroupEntry, len(g.Entries))
	copy(entries, g.Entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, e := range entries {
		state := "|-|"
		if e.Enabled != nil && *e.Enabled && (e.Disabled == nil || !*e.Disabled) {
			state = "|x|"
		}
		writeEntry(sb, l, e.Name, e.Usage, state)
	}
}

// writeEntry lays out one "flag  usage  annotation" line, wrapping the
// usage text into the space the terminal leaves.
func writeEntry(sb *strings.Builder, l layout, left, usage, annotation string) {
	pad := indentUnit * 2
	avail := l.width - pad - l.left - 1 - len(annotation) - 2
	if avail < 10 {
		avail = 10
	}
	lines := wrapText(usage, avail)
	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}
	if annotation != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", indent(2), l.left, left, avail, first, annotation)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", indent(2), l.left, left, first)
	}
	for i := 1; i < len(lines); i++ {
		fmt.Fprintf(sb, "%s%s %s\n", indent(2), strings.Repeat(" ", l.left), lines[i])
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 20 {
		return 80
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var cur strings.Builder
	for _, word := range words {
		if cur.Len() > 0 && cur.Len()+1+len(word) > maxWidth {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
