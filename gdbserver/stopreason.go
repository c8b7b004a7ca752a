package gdbserver

import "fmt"

// StopReasoner formats a StopReason as the wire reply spec §4.5 specifies.
// Grounded on SeleniaProject-Orizon/internal/debug/gdbserver/server.go's
// makeStopReplyLocked (T-vs-S reply selection) and on
// other_examples/aykevl-emculator__gdb-rsp.go's plain S%02x replies for the
// simpler cases.
type StopReasoner struct {
	// UseT selects the richer "T05..." form over plain "S05" for the cases
	// that support both; it is set once the peer's qSupported has been
	// seen, matching a real stub's negotiated behavior.
	UseT        bool
	SwbreakFeat bool
	HwbreakFeat bool
}

// Format renders reason as the reply body (without the leading '$' or
// trailing checksum, which EncodeFrame adds).
func (sr *StopReasoner) Format(reason StopReason) string {
	switch reason.Kind {
	case StopStepped, StopInterrupted:
		return sr.threadStop("")
	case StopSoftwareBreak:
		if sr.SwbreakFeat {
			return sr.threadStop("swbreak:;")
		}
		return "S05"
	case StopHardwareBreak:
		if sr.HwbreakFeat {
			return sr.threadStop("hwbreak:;")
		}
		return "S05"
	case StopWatch:
		return sr.threadStop(fmt.Sprintf("watch:%x;", reason.WatchAddr))
	case StopTimeout:
		return "T05"
	case StopSyscall:
		return "F" + reason.SyscallReq
	case StopExited:
		return fmt.Sprintf("W%02x", reason.ExitCode)
	case StopSignalled:
		return fmt.Sprintf("X%02x", reason.Signal)
	default: // StopFailure
		return "E01"
	}
}

// threadStop renders "T05thread:p1.1;<extra>", the single-thread form all
// trap-like stops share. GDB accepts the thread field ahead of extra even
// where the table writes the stop reason alone (e.g. plain "T05swbreak:;"),
// so this is left as the one reply shape rather than branched per reason.
func (sr *StopReasoner) threadStop(extra string) string {
	if !sr.UseT {
		return "S05"
	}
	return "T05thread:p1.1;" + extra
}
