package gdbserver

import (
	"context"
	"fmt"
)

// ResetKind selects whether a Reset zeroes the cycle/instruction counters.
type ResetKind int

const (
	WarmReset ResetKind = iota
	ColdReset
)

func (k ResetKind) String() string {
	if k == ColdReset {
		return "cold"
	}
	return "warm"
}

// ResumeMode selects single-step or run-to-break semantics for Resume.
type ResumeMode int

const (
	ResumeStep ResumeMode = iota
	ResumeContinue
)

// MatchKind enumerates the matchpoint kinds GDB can request via Z/z.
type MatchKind int

const (
	MatchSoftwareBreak MatchKind = iota
	MatchHardwareBreak
	MatchWriteWatch
	MatchReadWatch
	MatchAccessWatch
)

// matchKindFromRSP maps the numeric kind GDB uses in "Z<kind>,addr,len"
// packets to a MatchKind.
func matchKindFromRSP(k int) (MatchKind, bool) {
	switch k {
	case 0:
		return MatchSoftwareBreak, true
	case 1:
		return MatchHardwareBreak, true
	case 2:
		return MatchWriteWatch, true
	case 3:
		return MatchReadWatch, true
	case 4:
		return MatchAccessWatch, true
	default:
		return 0, false
	}
}

// StopKind enumerates the reasons a Resume call can return.
type StopKind int

const (
	StopStepped StopKind = iota
	StopSoftwareBreak
	StopHardwareBreak
	StopWatch
	StopTimeout
	StopInterrupted
	StopSyscall
	StopExited
	StopSignalled
	StopFailure
)

// StopReason describes why Resume returned. Only the fields relevant to
// Kind are populated; the rest are zero.
type StopReason struct {
	Kind       StopKind
	WatchAddr  uint64 // StopWatch
	SyscallReq string // StopSyscall: "<call>,<args...>" GDB F-packet body
	ExitCode   uint8  // StopExited
	Signal     uint8  // StopSignalled
	Err        error  // StopFailure: underlying cause, for logging only
}

func (r StopReason) String() string {
	switch r.Kind {
	case StopWatch:
		return fmt.Sprintf("watch(0x%x)", r.WatchAddr)
	case StopSyscall:
		return fmt.Sprintf("syscall(%s)", r.SyscallReq)
	case StopExited:
		return fmt.Sprintf("exited(%d)", r.ExitCode)
	case StopSignalled:
		return fmt.Sprintf("signalled(%d)", r.Signal)
	case StopFailure:
		return fmt.Sprintf("failure(%v)", r.Err)
	default:
		return [...]string{"stepped", "swbreak", "hwbreak", "", "timeout", "interrupted"}[r.Kind]
	}
}

// TargetIface is the contract every CPU back-end must satisfy. It is the
// only surface the protocol engine talks to; back-ends are otherwise free
// to be an instruction-set simulator, an RTL/cycle-accurate model, or
// anything else that can be driven this way.
type TargetIface interface {
	// Reset reinitializes the target. ColdReset also zeroes the cycle and
	// instruction counters.
	Reset(kind ResetKind) error

	// ReadRegister returns the value of register n and its width in bytes.
	// Fails if n is not a register this target exposes.
	ReadRegister(n int) (value uint64, width int, err error)

	// WriteRegister writes value to register n and returns the width
	// written.
	WriteRegister(n int, value uint64) (width int, err error)

	// ReadMemory reads up to len(data) bytes starting at addr into data,
	// returning the number of bytes actually read (may be short).
	ReadMemory(addr uint64, data []byte) (n int, err error)

	// WriteMemory writes data to addr, returning the number of bytes
	// actually written (may be short).
	WriteMemory(addr uint64, data []byte) (n int, err error)

	// Resume runs the target in the given mode until it stops for any
	// reason. A zero timeout means unbounded. ctx is canceled by the
	// engine to request a stop at the next instruction boundary.
	Resume(ctx context.Context, mode ResumeMode, timeout int64) (StopReason, error)

	// InsertMatchpoint asks the target to arm a hardware matchpoint.
	// supported is false when the target has no hardware support for this
	// kind, in which case the engine falls back to a software breakpoint.
	InsertMatchpoint(addr uint64, kind MatchKind, length int) (supported bool, err error)

	// RemoveMatchpoint is the inverse of InsertMatchpoint.
	RemoveMatchpoint(addr uint64, kind MatchKind, length int) (ok bool, err error)

	// CycleCount and InstrCount are monotone counters since the last cold
	// reset.
	CycleCount() uint64
	InstrCount() uint64

	// Command hands a qRcmd payload to the target. handled is false if the
	// target does not recognize cmd; any output is written to out.
	Command(cmd string, out StringSink) (handled bool, err error)

	// RegisterWidth returns the register file's XLEN in bytes (4 or 8).
	RegisterWidth() int

	// NumRegisters returns the number of registers in the RSP register
	// file, in RSP register-number order.
	NumRegisters() int

	// Close tears the target down. No further calls are made after Close.
	Close() error
}

// StringSink receives qRcmd console output. It is satisfied by
// *strings.Builder and similar.
type StringSink interface {
	WriteString(s string) (int, error)
}
