package simriscv

// ISS is the minimal instruction-set-simulator contract SimBackend drives.
// It is the Go-native stand-in for the sim_resume/sim_fetch_register/
// sim_read family of C calls GdbSimImpl made against gdbsim: one step of
// execution, plus the register/memory access every RSP command ultimately
// needs. Splitting this out of SimBackend (rather than folding the
// interpreter directly into it, the way GdbSimImpl folded in calls to
// gdbsim) keeps the RSP-facing bookkeeping (stop-reason classification,
// register numbering) separate from instruction decode, and leaves room for a future
// ISS backed by something other than the built-in interpreter.
type ISS interface {
	// Step decodes and executes one instruction at the current PC. A trap
	// instruction (EBREAK/C.EBREAK) is decoded but not retired: PC is left
	// pointing at it, matching real hardware halting in debug mode rather
	// than completing the instruction.
	Step() error

	PC() uint64
	SetPC(pc uint64)

	ReadReg(n int) uint64
	WriteReg(n int, v uint64)

	// ReadMem/WriteMem access the simulated address space directly, with
	// no matchpoint awareness; that lives in gdbserver.MatchpointStore; a
	// short read (address off the end of memory) is not an error, since
	// reading past the end is exactly what a debugger does when probing.
	ReadMem(addr uint64, buf []byte) (n int, err error)
	WriteMem(addr uint64, buf []byte) (n int, err error)

	Reset()

	InstrCount() uint64
	CycleCount() uint64

	NumRegs() int
	XLEN() int // 32 or 64
}
