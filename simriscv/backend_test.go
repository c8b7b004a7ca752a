package simriscv

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/T-J-Teru/riscv-gdbserver/gdbserver"
	"github.com/T-J-Teru/riscv-gdbserver/trace"
)

func newTestBackend(t *testing.T) (*SimBackend, *InstrInterp) {
	t.Helper()
	iss := NewInstrInterp(32)
	log := trace.NewLogger(trace.NewFlags())
	return NewSimBackend(iss, log, "gdbsim"), iss
}

func putInstr(iss *InstrInterp, addr uint64, raw uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], raw)
	_, _ = iss.WriteMem(addr, buf[:])
}

func TestInterpAddiAndStep(t *testing.T) {
	iss := NewInstrInterp(32)
	// addi x1, x0, 5
	putInstr(iss, 0, 0x00500093)
	if err := iss.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := iss.ReadReg(1); got != 5 {
		t.Fatalf("x1 = %d, want 5", got)
	}
	if iss.PC() != 4 {
		t.Fatalf("pc = %d, want 4", iss.PC())
	}
}

func TestInterpBranchTaken(t *testing.T) {
	iss := NewInstrInterp(32)
	iss.WriteReg(1, 1)
	iss.WriteReg(2, 1)
	// beq x1, x2, +8
	putInstr(iss, 0, 0x00208463)
	if err := iss.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if iss.PC() != 8 {
		t.Fatalf("pc = %d, want 8", iss.PC())
	}
}

func TestBackendSoftwareBreakpointStopsWithoutRetiring(t *testing.T) {
	backend, iss := newTestBackend(t)
	putInstr(iss, 0, ebreak32)

	reason, err := backend.Resume(context.Background(), gdbserver.ResumeStep, 0)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if reason.Kind != gdbserver.StopSoftwareBreak {
		t.Fatalf("stop kind = %v, want StopSoftwareBreak", reason.Kind)
	}
	if iss.PC() != 0 {
		t.Fatalf("pc advanced past ebreak: %d", iss.PC())
	}
}

func TestBackendEcallAdvancesPCAndReportsSyscall(t *testing.T) {
	backend, iss := newTestBackend(t)
	putInstr(iss, 0, ecall32)

	reason, err := backend.Resume(context.Background(), gdbserver.ResumeStep, 0)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if reason.Kind != gdbserver.StopSyscall {
		t.Fatalf("stop kind = %v, want StopSyscall", reason.Kind)
	}
	if iss.PC() != 4 {
		t.Fatalf("pc = %d, want 4 after ecall", iss.PC())
	}
}

func TestBackendRunToBreakStopsAtBreakpoint(t *testing.T) {
	backend, iss := newTestBackend(t)
	// addi x1, x0, 1 ; addi x1, x1, 1 ; ebreak
	putInstr(iss, 0, 0x00100093)
	putInstr(iss, 4, 0x00108093)
	putInstr(iss, 8, ebreak32)

	reason, err := backend.Resume(context.Background(), gdbserver.ResumeContinue, 0)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if reason.Kind != gdbserver.StopSoftwareBreak {
		t.Fatalf("stop kind = %v, want StopSoftwareBreak", reason.Kind)
	}
	if iss.PC() != 8 {
		t.Fatalf("pc = %d, want 8 at breakpoint", iss.PC())
	}
	if got := iss.ReadReg(1); got != 2 {
		t.Fatalf("x1 = %d, want 2", got)
	}
}

func TestBackendRegisterRoundTrip(t *testing.T) {
	backend, _ := newTestBackend(t)
	if _, err := backend.WriteRegister(3, 0x1234); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	value, width, err := backend.ReadRegister(3)
	if err != nil {
		t.Fatalf("ReadRegister: %v", err)
	}
	if value != 0x1234 || width != 4 {
		t.Fatalf("got (%d, %d), want (0x1234, 4)", value, width)
	}
}

func TestBackendPCIsRegister32(t *testing.T) {
	backend, _ := newTestBackend(t)
	if _, err := backend.WriteRegister(32, 0x100); err != nil {
		t.Fatalf("WriteRegister pc: %v", err)
	}
	value, _, err := backend.ReadRegister(32)
	if err != nil {
		t.Fatalf("ReadRegister pc: %v", err)
	}
	if value != 0x100 {
		t.Fatalf("pc = 0x%x, want 0x100", value)
	}
}
