package gdbserver

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// dispatchResult is what dispatch produces for one command: either an
// immediate reply, a "start a resume" instruction for the engine to act
// on, or a request to send nothing at all (the 'k' packet, which GDB does
// not wait on a reply to).
type dispatchResult struct {
	reply       string
	noReply     bool
	startResume bool
	resumeMode  ResumeMode
}

// pcRegNum is the RSP register number for pc, per xml.go's TargetXML layout.
const pcRegNum = 32

func reply(s string) dispatchResult { return dispatchResult{reply: s} }

// dispatch implements the command table of spec §4.7. cmd is the decoded
// packet payload with no leading '$' or trailing checksum. Grounded on
// SeleniaProject-Orizon/internal/debug/gdbserver/server.go's dispatch()
// switch-case shape, broadened to the full command set this server
// supports.
func (e *Engine) dispatch(cmd string) dispatchResult {
	switch {
	case cmd == "?":
		return e.cmdLastStop()
	case cmd == "g":
		return e.cmdReadAllRegisters()
	case strings.HasPrefix(cmd, "G"):
		return e.cmdWriteAllRegisters(cmd[1:])
	case strings.HasPrefix(cmd, "p"):
		return e.cmdReadRegister(cmd[1:])
	case strings.HasPrefix(cmd, "P"):
		return e.cmdWriteRegister(cmd[1:])
	case strings.HasPrefix(cmd, "m"):
		return e.cmdReadMemory(cmd[1:])
	case strings.HasPrefix(cmd, "M"):
		return e.cmdWriteMemory(cmd[1:])
	case strings.HasPrefix(cmd, "X"):
		return e.cmdWriteMemoryBinary(cmd[1:])
	case cmd == "c" || strings.HasPrefix(cmd, "c"):
		return e.cmdResume(cmd[1:], ResumeContinue)
	case cmd == "s" || strings.HasPrefix(cmd, "s"):
		return e.cmdResume(cmd[1:], ResumeStep)
	case strings.HasPrefix(cmd, "Z"):
		return e.cmdInsertMatchpoint(cmd[1:])
	case strings.HasPrefix(cmd, "z"):
		return e.cmdRemoveMatchpoint(cmd[1:])
	case strings.HasPrefix(cmd, "H"):
		return reply("OK") // single implicit thread; accept any Hc/Hg target
	case strings.HasPrefix(cmd, "qSupported"):
		return e.cmdQSupported(cmd)
	case cmd == "QStartNoAckMode":
		e.session.noAck = true
		return reply("OK")
	case strings.HasPrefix(cmd, "qXfer:features:read:target.xml:"):
		return e.cmdQXferTargetXML(strings.TrimPrefix(cmd, "qXfer:features:read:target.xml:"))
	case cmd == "qAttached":
		return reply("1")
	case cmd == "qC":
		return reply("QC1")
	case cmd == "qfThreadInfo":
		return reply("m1")
	case cmd == "qsThreadInfo":
		return reply("l")
	case cmd == "vCont?":
		return reply("vCont;c;C;s;S")
	case strings.HasPrefix(cmd, "vCont;"):
		return e.cmdVCont(strings.TrimPrefix(cmd, "vCont;"))
	case strings.HasPrefix(cmd, "qRcmd,"):
		return e.cmdMonitor(strings.TrimPrefix(cmd, "qRcmd,"))
	case cmd == "k":
		return e.cmdKill()
	case cmd == "D" || strings.HasPrefix(cmd, "D;"):
		e.session.detach()
		return reply("OK")
	default:
		return reply("")
	}
}

// cmdResume starts a resume, first moving pc to addrHex if the debugger
// supplied one (the optional new-PC argument of "c addr"/"s addr" and their
// vCont equivalents, spec §4.7). addrHex == "" leaves pc untouched.
func (e *Engine) cmdResume(addrHex string, mode ResumeMode) dispatchResult {
	if addrHex != "" {
		addr, err := strconv.ParseUint(addrHex, 16, 64)
		if err != nil {
			return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
		}
		if _, err := e.target.WriteRegister(pcRegNum, addr); err != nil {
			return reply((&TargetError{Code: ErrCodeBadRegister}).wireReply())
		}
	}
	return dispatchResult{startResume: true, resumeMode: mode}
}

func (e *Engine) cmdLastStop() dispatchResult {
	if e.session.lastStop == nil {
		return reply("S05")
	}
	return reply(e.reasoner.Format(*e.session.lastStop))
}

func (e *Engine) cmdReadAllRegisters() dispatchResult {
	var b strings.Builder
	n := e.target.NumRegisters()
	for i := 0; i < n; i++ {
		value, width, err := e.target.ReadRegister(i)
		if err != nil {
			return reply((&TargetError{Code: ErrCodeBadRegister}).wireReply())
		}
		b.WriteString(encodeLE(value, width))
	}
	return reply(b.String())
}

func (e *Engine) cmdWriteAllRegisters(hexBlob string) dispatchResult {
	n := e.target.NumRegisters()
	pos := 0
	for i := 0; i < n; i++ {
		width := e.target.RegisterWidth()
		if pos+width*2 > len(hexBlob) {
			return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
		}
		value, err := decodeLE(hexBlob[pos : pos+width*2])
		if err != nil {
			return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
		}
		if _, err := e.target.WriteRegister(i, value); err != nil {
			return reply((&TargetError{Code: ErrCodeBadRegister}).wireReply())
		}
		pos += width * 2
	}
	return reply("OK")
}

func (e *Engine) cmdReadRegister(arg string) dispatchResult {
	n, err := strconv.ParseInt(arg, 16, 32)
	if err != nil {
		return reply((&TargetError{Code: ErrCodeBadRegister}).wireReply())
	}
	value, width, err := e.target.ReadRegister(int(n))
	if err != nil {
		return reply((&TargetError{Code: ErrCodeBadRegister}).wireReply())
	}
	return reply(encodeLE(value, width))
}

func (e *Engine) cmdWriteRegister(arg string) dispatchResult {
	parts := strings.SplitN(arg, "=", 2)
	if len(parts) != 2 {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	n, err := strconv.ParseInt(parts[0], 16, 32)
	if err != nil {
		return reply((&TargetError{Code: ErrCodeBadRegister}).wireReply())
	}
	value, err := decodeLE(parts[1])
	if err != nil {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	if _, err := e.target.WriteRegister(int(n), value); err != nil {
		return reply((&TargetError{Code: ErrCodeBadRegister}).wireReply())
	}
	return reply("OK")
}

func (e *Engine) cmdReadMemory(arg string) dispatchResult {
	addr, n, err := parseAddrLength(arg)
	if err != nil {
		return reply((&TargetError{Code: ErrCodeBadAddress}).wireReply())
	}
	data := make([]byte, n)
	got, err := e.target.ReadMemory(addr, data)
	if err != nil {
		return reply((&TargetError{Code: ErrCodeBadAddress}).wireReply())
	}
	data = data[:got]
	e.matchpoints.OverlayRead(addr, data)
	return reply(hex.EncodeToString(data))
}

func (e *Engine) cmdWriteMemory(arg string) dispatchResult {
	addrLen, dataHex, ok := splitOnColon(arg)
	if !ok {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	addr, n, err := parseAddrLength(addrLen)
	if err != nil {
		return reply((&TargetError{Code: ErrCodeBadAddress}).wireReply())
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil || len(data) != n {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	if _, err := e.matchpoints.MergeWrite(e.target, addr, data); err != nil {
		return reply((&TargetError{Code: ErrCodeBadAddress}).wireReply())
	}
	return reply("OK")
}

func (e *Engine) cmdWriteMemoryBinary(arg string) dispatchResult {
	addrLen, data, ok := splitOnColonBytes(arg)
	if !ok {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	addr, n, err := parseAddrLength(addrLen)
	if err != nil {
		return reply((&TargetError{Code: ErrCodeBadAddress}).wireReply())
	}
	if len(data) != n {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	if _, err := e.matchpoints.MergeWrite(e.target, addr, data); err != nil {
		return reply((&TargetError{Code: ErrCodeBadAddress}).wireReply())
	}
	return reply("OK")
}

func (e *Engine) cmdInsertMatchpoint(arg string) dispatchResult {
	kind, addr, length, _, err := parseMatchpointArgs(arg)
	if err != nil {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	if supported, err := e.target.InsertMatchpoint(addr, kind, length); err != nil {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	} else if supported {
		return reply("OK")
	}
	if kind != MatchSoftwareBreak && kind != MatchHardwareBreak {
		// No software fallback for watchpoints (see matchpoint.go); GDB
		// treats an empty reply to Z2/Z3/Z4 as "not supported".
		return reply("")
	}
	if err := e.matchpoints.Insert(e.target, addr, kind, length); err != nil {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	return reply("OK")
}

func (e *Engine) cmdRemoveMatchpoint(arg string) dispatchResult {
	kind, addr, length, _, err := parseMatchpointArgs(arg)
	if err != nil {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	if ok, err := e.target.RemoveMatchpoint(addr, kind, length); err != nil {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	} else if ok {
		return reply("OK")
	}
	if err := e.matchpoints.Remove(e.target, addr, kind, length); err != nil {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	return reply("OK")
}

func (e *Engine) cmdQSupported(cmd string) dispatchResult {
	e.session.swbreakFeat = strings.Contains(cmd, "swbreak+")
	e.session.hwbreakFeat = strings.Contains(cmd, "hwbreak+")
	e.reasoner.UseT = true
	e.reasoner.SwbreakFeat = e.session.swbreakFeat
	e.reasoner.HwbreakFeat = e.session.hwbreakFeat
	return reply("PacketSize=1000;qXfer:features:read+;swbreak+;hwbreak+;vContSupported+;QStartNoAckMode+")
}

func (e *Engine) cmdQXferTargetXML(offsetLen string) dispatchResult {
	doc := TargetXML(e.target.RegisterWidth() * 8)
	out, err := qXferWindow([]byte(doc), offsetLen)
	if err != nil {
		return reply("E00")
	}
	return reply(out)
}

func (e *Engine) cmdVCont(rest string) dispatchResult {
	switch {
	case strings.HasPrefix(rest, "c"):
		return e.cmdResume(vContResumeAddr(rest[1:]), ResumeContinue)
	case strings.HasPrefix(rest, "s"):
		return e.cmdResume(vContResumeAddr(rest[1:]), ResumeStep)
	case strings.HasPrefix(rest, "C"):
		// "C sig": the signal is ignored and pc is left as it is.
		return e.cmdResume("", ResumeContinue)
	case strings.HasPrefix(rest, "S"):
		return e.cmdResume("", ResumeStep)
	default:
		return reply("")
	}
}

// vContResumeAddr strips the trailing ":thread-id" a vCont action may carry,
// leaving just the optional new-PC hex argument for cmdResume.
func vContResumeAddr(action string) string {
	if i := strings.IndexByte(action, ':'); i >= 0 {
		return action[:i]
	}
	return action
}

func (e *Engine) cmdMonitor(hexCmd string) dispatchResult {
	raw, err := hex.DecodeString(hexCmd)
	if err != nil {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	var out strings.Builder
	handled, err := e.target.Command(string(raw), &out)
	if err != nil {
		return reply((&TargetError{Code: ErrCodeGeneric}).wireReply())
	}
	if !handled {
		return reply("")
	}
	if out.Len() == 0 {
		return reply("OK")
	}
	return reply(hex.EncodeToString([]byte(out.String())))
}

func (e *Engine) cmdKill() dispatchResult {
	keepServing, err := e.kill.AfterKill(e.target, e.matchpoints)
	if err != nil {
		e.log.Errorf("kill policy: %v", err)
	}
	if !keepServing {
		e.session.detach()
	}
	return dispatchResult{noReply: true}
}

// encodeLE renders value as width little-endian bytes, hex-encoded, the
// wire format every register and memory reply uses for RISC-V (spec §6).
func encodeLE(value uint64, width int) string {
	buf := make([]byte, width)
	for i := 0; i < width; i++ {
		buf[i] = byte(value >> (8 * i))
	}
	return hex.EncodeToString(buf)
}

func decodeLE(hexStr string) (uint64, error) {
	buf, err := hex.DecodeString(hexStr)
	if err != nil {
		return 0, err
	}
	var value uint64
	for i, b := range buf {
		value |= uint64(b) << (8 * i)
	}
	return value, nil
}

func parseAddrLength(arg string) (addr uint64, length int, err error) {
	parts := strings.SplitN(arg, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed addr,length")
	}
	a, err1 := strconv.ParseUint(parts[0], 16, 64)
	l, err2 := strconv.ParseUint(parts[1], 16, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("malformed addr,length")
	}
	return a, int(l), nil
}

func parseMatchpointArgs(arg string) (kind MatchKind, addr uint64, length int, cond string, err error) {
	parts := strings.SplitN(arg, ";", 2)
	if len(parts) == 2 {
		cond = parts[1]
	}
	fields := strings.SplitN(parts[0], ",", 3)
	if len(fields) != 3 {
		return 0, 0, 0, "", fmt.Errorf("malformed Z/z args")
	}
	k, err1 := strconv.Atoi(fields[0])
	a, err2 := strconv.ParseUint(fields[1], 16, 64)
	l, err3 := strconv.ParseUint(fields[2], 16, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, "", fmt.Errorf("malformed Z/z args")
	}
	kind, ok := matchKindFromRSP(k)
	if !ok {
		return 0, 0, 0, "", fmt.Errorf("unknown matchpoint kind %d", k)
	}
	return kind, a, int(l), cond, nil
}

func splitOnColon(s string) (before, after string, ok bool) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func splitOnColonBytes(s string) (before string, data []byte, ok bool) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", nil, false
	}
	return s[:i], []byte(s[i+1:]), true
}
