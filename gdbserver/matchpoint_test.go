package gdbserver

import (
	"bytes"
	"context"
	"testing"
)

// fakeTarget is a minimal TargetIface backed by a flat byte slice, enough
// to exercise MatchpointStore without pulling in simriscv (which would be
// a cyclic import anyway: simriscv depends on gdbserver, not vice versa).
type fakeTarget struct {
	mem [64]byte
}

func (f *fakeTarget) Reset(ResetKind) error                                 { return nil }
func (f *fakeTarget) ReadRegister(int) (uint64, int, error)                 { return 0, 4, nil }
func (f *fakeTarget) WriteRegister(int, uint64) (int, error)                { return 4, nil }
func (f *fakeTarget) ReadMemory(addr uint64, data []byte) (int, error) {
	n := copy(data, f.mem[addr:])
	return n, nil
}
func (f *fakeTarget) WriteMemory(addr uint64, data []byte) (int, error) {
	n := copy(f.mem[addr:], data)
	return n, nil
}
func (f *fakeTarget) Resume(context.Context, ResumeMode, int64) (StopReason, error) {
	return StopReason{}, nil
}
func (f *fakeTarget) InsertMatchpoint(uint64, MatchKind, int) (bool, error) { return false, nil }
func (f *fakeTarget) RemoveMatchpoint(uint64, MatchKind, int) (bool, error) { return false, nil }
func (f *fakeTarget) CycleCount() uint64                                   { return 0 }
func (f *fakeTarget) InstrCount() uint64                                   { return 0 }
func (f *fakeTarget) Command(string, StringSink) (bool, error)             { return false, nil }
func (f *fakeTarget) RegisterWidth() int                                   { return 4 }
func (f *fakeTarget) NumRegisters() int                                    { return 33 }
func (f *fakeTarget) Close() error                                         { return nil }

func TestMatchpointInsertSavesAndTraps(t *testing.T) {
	tgt := &fakeTarget{}
	copy(tgt.mem[16:], []byte{0x11, 0x22, 0x33, 0x44})

	store := NewMatchpointStore()
	if err := store.Insert(tgt, 16, MatchSoftwareBreak, 4); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !bytes.Equal(tgt.mem[16:20], trapOpcode(4)) {
		t.Fatalf("trap not installed, got %x", tgt.mem[16:20])
	}

	read := make([]byte, 4)
	copy(read, tgt.mem[16:20])
	store.OverlayRead(16, read)
	if !bytes.Equal(read, []byte{0x11, 0x22, 0x33, 0x44}) {
		t.Fatalf("OverlayRead did not restore original bytes, got %x", read)
	}
}

func TestMatchpointRemoveRestores(t *testing.T) {
	tgt := &fakeTarget{}
	copy(tgt.mem[0:], []byte{0xaa, 0xbb, 0xcc, 0xdd})

	store := NewMatchpointStore()
	if err := store.Insert(tgt, 0, MatchSoftwareBreak, 4); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Remove(tgt, 0, MatchSoftwareBreak, 4); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !bytes.Equal(tgt.mem[0:4], []byte{0xaa, 0xbb, 0xcc, 0xdd}) {
		t.Fatalf("Remove did not restore original bytes, got %x", tgt.mem[0:4])
	}
}

func TestMatchpointMergeWriteProtectsTrap(t *testing.T) {
	tgt := &fakeTarget{}
	store := NewMatchpointStore()
	if err := store.Insert(tgt, 8, MatchSoftwareBreak, 4); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// A debugger write that overlaps the trapped range should update the
	// saved shadow copy, not the live trap bytes.
	if _, err := store.MergeWrite(tgt, 8, []byte{0x01, 0x02, 0x03, 0x04}); err != nil {
		t.Fatalf("MergeWrite: %v", err)
	}
	if !bytes.Equal(tgt.mem[8:12], trapOpcode(4)) {
		t.Fatalf("trap instruction was disturbed, got %x", tgt.mem[8:12])
	}

	read := make([]byte, 4)
	copy(read, tgt.mem[8:12])
	store.OverlayRead(8, read)
	if !bytes.Equal(read, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("shadow copy not updated, got %x", read)
	}
}

func TestMatchpointInsertIsIdempotent(t *testing.T) {
	tgt := &fakeTarget{}
	copy(tgt.mem[0:], []byte{1, 2, 3, 4})
	store := NewMatchpointStore()
	if err := store.Insert(tgt, 0, MatchSoftwareBreak, 4); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if err := store.Insert(tgt, 0, MatchSoftwareBreak, 4); err != nil {
		t.Fatalf("second Insert: %v", err)
	}
	if !bytes.Equal(tgt.mem[0:4], trapOpcode(4)) {
		t.Fatalf("expected trap still installed, got %x", tgt.mem[0:4])
	}
}
