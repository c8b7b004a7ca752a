// Package trace supplies the ambient logging/trace-flag stack shared by
// gdbserver, simriscv and cmd/riscv-gdbserver. Grounded on
// original_source/server/main.cpp's TraceFlags/usage table for the flag
// vocabulary, and on other_examples/go-delve-delve__gdbserver_conn.go for
// using logrus to log a GDB RSP connection (the pack's only concrete
// precedent for logging this exact protocol).
package trace

import "fmt"

// Flag is one of the repeatable --trace values, spec §6.
type Flag string

const (
	RSP    Flag = "rsp"
	Conn   Flag = "conn"
	Break  Flag = "break"
	VCD    Flag = "vcd"
	Silent Flag = "silent"
)

var allFlags = []Flag{RSP, Conn, Break, VCD, Silent}

// ParseFlag validates a --trace argument, matching
// original_source/server/main.cpp's traceFlags->isFlag check.
func ParseFlag(s string) (Flag, error) {
	for _, f := range allFlags {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("bad trace flag %q (want one of rsp, conn, break, vcd, silent)", s)
}

// Flags is the repeatable --trace set plus the --silent/-q synonym.
type Flags struct {
	set map[Flag]bool
}

// NewFlags returns an empty flag set.
func NewFlags() *Flags {
	return &Flags{set: make(map[Flag]bool)}
}

// Set enables f.
func (f *Flags) Set(flag Flag) { f.set[flag] = true }

// Has reports whether flag is enabled. Silent, set via --silent/-q, is
// equivalent to --trace silent.
func (f *Flags) Has(flag Flag) bool { return f.set[flag] }
