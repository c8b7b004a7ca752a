package gdbserver

// trapOpcode returns the architectural RISC-V trap-immediate instruction
// sized to fit a breakpoint of the given length: EBREAK (4 bytes) or
// C.EBREAK (2 bytes), little-endian as RSP register/memory payloads are
// for RISC-V (spec §6).
func trapOpcode(length int) []byte {
	switch length {
	case 2:
		return []byte{0x02, 0x90} // C.EBREAK, 0x9002
	default:
		return []byte{0x73, 0x00, 0x10, 0x00} // EBREAK, 0x00100073
	}
}

type matchKey struct {
	addr uint64
	kind MatchKind
}

// MatchpointStore backs software breakpoints when the target declines
// hardware support (spec §4.4). Keyed by (address, kind); insert of an
// existing key is a no-op, remove of an absent key is a no-op (GDB may
// re-issue either). New code: the teacher talks to a stub that keeps its
// own breakpoint bookkeeping, so there is nothing to generalize from
// raw.go here — grounded directly on spec §4.4 and the save/restore idiom
// visible in other_examples/go-delve-delve__gdbserver_conn.go and
// other_examples/hitzhangjie-godbg__breakpoint.go.
type MatchpointStore struct {
	records map[matchKey]*matchRecordAt
}

type matchRecordAt struct {
	addr          uint64
	length        int
	saved         []byte
	trapInstalled bool
}

func (r *matchRecordAt) overlap(addr uint64, n int) (lo, hi uint64, ok bool) {
	rlo, rhi := r.addr, r.addr+uint64(r.length)
	qlo, qhi := addr, addr+uint64(n)
	if qhi <= rlo || qlo >= rhi {
		return 0, 0, false
	}
	lo, hi = rlo, rhi
	if qlo > lo {
		lo = qlo
	}
	if qhi < hi {
		hi = qhi
	}
	return lo, hi, true
}

// NewMatchpointStore returns an empty store.
func NewMatchpointStore() *MatchpointStore {
	return &MatchpointStore{records: make(map[matchKey]*matchRecordAt)}
}

// Insert arms a matchpoint, patching a trap instruction into target memory
// when kind is a breakpoint kind (software or a hardware kind the target
// declined). Watchpoint kinds are recorded for bookkeeping only and never
// armed; the engine does not route them here, it answers Z2/Z3/Z4 as
// unsupported (see DESIGN.md's Open Question decision).
func (s *MatchpointStore) Insert(target TargetIface, addr uint64, kind MatchKind, length int) error {
	key := matchKey{addr, kind}
	if _, ok := s.records[key]; ok {
		return nil
	}
	rec := &matchRecordAt{addr: addr, length: length}
	if kind == MatchSoftwareBreak || kind == MatchHardwareBreak {
		saved := make([]byte, length)
		if n, err := target.ReadMemory(addr, saved); err != nil || n != length {
			if err != nil {
				return err
			}
			return &TargetError{Code: ErrCodeBadAddress}
		}
		rec.saved = saved
		if _, err := target.WriteMemory(addr, trapOpcode(length)); err != nil {
			return err
		}
		rec.trapInstalled = true
	}
	s.records[key] = rec
	return nil
}

// Remove disarms a matchpoint, restoring saved bytes if a trap was
// installed.
func (s *MatchpointStore) Remove(target TargetIface, addr uint64, kind MatchKind, length int) error {
	key := matchKey{addr, kind}
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	if rec.trapInstalled {
		if _, err := target.WriteMemory(addr, rec.saved); err != nil {
			return err
		}
	}
	delete(s.records, key)
	return nil
}

// OverlayRead rewrites data (just read from target memory starting at
// addr) so that any byte range shadowed by an installed trap shows its
// saved original instead, per spec §4.4's coherence requirement.
func (s *MatchpointStore) OverlayRead(addr uint64, data []byte) {
	for _, rec := range s.records {
		if !rec.trapInstalled {
			continue
		}
		lo, hi, ok := rec.overlap(addr, len(data))
		if !ok {
			continue
		}
		for a := lo; a < hi; a++ {
			data[a-addr] = rec.saved[a-rec.addr]
		}
	}
}

// MergeWrite applies a debugger write of data at addr, routing any byte
// range shadowed by an installed trap into the saved copy instead of
// target memory (so the trap instruction is never disturbed), and passing
// the rest straight through to target.WriteMemory.
func (s *MatchpointStore) MergeWrite(target TargetIface, addr uint64, data []byte) (int, error) {
	shadowed := make([]bool, len(data))
	for _, rec := range s.records {
		if !rec.trapInstalled {
			continue
		}
		lo, hi, ok := rec.overlap(addr, len(data))
		if !ok {
			continue
		}
		for a := lo; a < hi; a++ {
			rec.saved[a-rec.addr] = data[a-addr]
			shadowed[a-addr] = true
		}
	}

	// Write the unshadowed runs through to the target, coalescing
	// contiguous stretches into single calls.
	i := 0
	for i < len(data) {
		if shadowed[i] {
			i++
			continue
		}
		j := i
		for j < len(data) && !shadowed[j] {
			j++
		}
		if _, err := target.WriteMemory(addr+uint64(i), data[i:j]); err != nil {
			return i, err
		}
		i = j
	}
	return len(data), nil
}
