package klass

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseHierarchy reads a hierarchy description, one declaration per
// line:
//
//	interface I : J, K
//	class Foo : Bar implements I, K final
//	class Baz
//	unloaded Qux
//
// '#' starts a comment. Names referenced before their declaration are
// an error; the format is declaration-ordered on purpose.
func ParseHierarchy(r io.Reader) (*Hierarchy, error) {
	h := NewHierarchy()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := h.parseDecl(fields); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hierarchy) parseDecl(fields []string) error {
	kind, rest := fields[0], fields[1:]
	if len(rest) == 0 {
		return fmt.Errorf("missing name after '%s'", kind)
	}
	name := rest[0]
	if h.Lookup(name) != nil {
		return fmt.Errorf("redefinition of '%s'", name)
	}
	rest = rest[1:]

	switch kind {
	case "unloaded":
		if len(rest) != 0 {
			return fmt.Errorf("unexpected '%s' after unloaded class", rest[0])
		}
		h.DefineUnloaded(name)
		return nil

	case "interface":
		supers, _, final, err := h.parseClauses(rest)
		if err != nil {
			return err
		}
		if final {
			return fmt.Errorf("interface '%s' cannot be final", name)
		}
		h.DefineInterface(name, supers...)
		return nil

	case "class":
		supers, ifaces, final, err := h.parseClauses(rest)
		if err != nil {
			return err
		}
		var super *Klass
		switch len(supers) {
		case 0:
		case 1:
			super = supers[0]
			if super.Interface {
				return fmt.Errorf("superclass '%s' is an interface", super.Name)
			}
		default:
			return fmt.Errorf("class '%s' has more than one superclass", name)
		}
		var opts []func(*Klass)
		if final {
			opts = append(opts, Final)
		}
		h.DefineClass(name, super, ifaces, opts...)
		return nil

	default:
		return fmt.Errorf("unknown declaration '%s'", kind)
	}
}

// parseClauses handles the ": Super" and "implements I, J" clauses
// plus a trailing "final".
func (h *Hierarchy) parseClauses(fields []string) (supers, ifaces []*Klass, final bool, err error) {
	mode := ""
	for _, f := range fields {
		switch f {
		case ":":
			mode = ":"
			continue
		case "implements":
			mode = "implements"
			continue
		case "final":
			final = true
			continue
		}
		for _, name := range strings.Split(f, ",") {
			if name == "" {
				continue
			}
			k := h.Lookup(name)
			if k == nil {
				return nil, nil, false, fmt.Errorf("unknown type '%s'", name)
			}
			switch mode {
			case ":":
				supers = append(supers, k)
			case "implements":
				if !k.Interface {
					return nil, nil, false, fmt.Errorf("'%s' is not an interface", name)
				}
				ifaces = append(ifaces, k)
			default:
				return nil, nil, false, fmt.Errorf("unexpected '%s'", name)
			}
		}
	}
	return supers, ifaces, final, nil
}
