package gdbserver

import (
	"fmt"
	"strconv"
	"strings"
)

// TargetXML builds the target-description document served through
// qXfer:features:read:target.xml, describing the RV32I or RV64I base
// integer register set plus pc (spec §6). Grounded on
// SeleniaProject-Orizon's handleQXferFeatures (the <feature> shape) and
// other_examples/aykevl-emculator__gdb-rsp.go's gdbAnnexTarget (per-register
// <reg> tags), adapted from ARM registers to RISC-V x0-x31.
func TargetXML(xlen int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>`)
	b.WriteString(`<target version="1.0">`)
	arch := "riscv:rv32"
	if xlen == 64 {
		arch = "riscv:rv64"
	}
	fmt.Fprintf(&b, `<architecture>%s</architecture>`, arch)
	b.WriteString(`<feature name="org.gnu.gdb.riscv.cpu">`)
	for i := 0; i < 32; i++ {
		fmt.Fprintf(&b, `<reg name="x%d" bitsize="%d" regnum="%d" save-restore="yes" type="int" group="general"/>`, i, xlen, i)
	}
	fmt.Fprintf(&b, `<reg name="pc" bitsize="%d" regnum="32" save-restore="yes" type="code_ptr" group="general"/>`, xlen)
	b.WriteString(`</feature>`)
	b.WriteString(`</target>`)
	return b.String()
}

// qXferWindow implements the generic "annex:OFFSET,LENGTH" windowing that
// every qXfer read query uses: it returns the reply marker ('m' for more
// data, 'l' for the last or only chunk) plus the requested slice of data.
// Grounded on SeleniaProject-Orizon's handleQXferFeatures/handleQXferLibraries,
// which all repeat this same offset/length slicing.
func qXferWindow(data []byte, offsetLen string) (string, error) {
	parts := strings.SplitN(offsetLen, ",", 2)
	if len(parts) != 2 {
		return "", &ProtocolError{Reason: "malformed qXfer offset,length"}
	}
	off, err1 := strconv.ParseUint(parts[0], 16, 64)
	ln, err2 := strconv.ParseUint(parts[1], 16, 64)
	if err1 != nil || err2 != nil {
		return "", &ProtocolError{Reason: "malformed qXfer offset,length"}
	}
	if off >= uint64(len(data)) {
		return "l", nil
	}
	end := off + ln
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	marker := "m"
	if end == uint64(len(data)) {
		marker = "l"
	}
	return marker + string(data[off:end]), nil
}
