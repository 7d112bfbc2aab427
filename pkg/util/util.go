package util

import (
	"fmt"
	"os"
)

// Fatalf prints a formatted error message and exits the program.
// Lattice-degeneracy is never fatal; this is reserved for broken
// invariants and unusable input.
func Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "jolt: \033[31merror:\033[0m ")
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

// Warnf prints a formatted warning message.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "jolt: \033[33mwarning:\033[0m ")
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
}

// Assertf panics when cond is false. Used for caller-contract
// violations: these are bugs in the calling pass, not runtime
// conditions, so they are not surfaced as error values.
func Assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("assert failed: "+format, args...))
	}
}

// ShouldNotReachHere marks switch arms that a well-formed caller can
// never select.
func ShouldNotReachHere(what string) {
	panic("should not reach here: " + what)
}
