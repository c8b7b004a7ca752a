package gdbserver

import (
	"errors"
	"fmt"
)

// errMalformedRLE is returned internally when a run-length run cannot be
// expanded; the caller drops the frame and relies on retransmission
// (spec §4.1 "Fail modes").
var errMalformedRLE = errors.New("malformed RLE encoding")

// Target operation error codes, spec §7.
const (
	ErrCodeGeneric     byte = 0x01
	ErrCodeBadAddress  byte = 0x02
	ErrCodeBadRegister byte = 0x03
)

// TargetError is reported to the debugger as "E<hh>". It is the teacher's
// own GDBError (raw.go) with the roles reversed: the teacher parsed these
// out of a stub's replies, this server produces them.
type TargetError struct {
	Code byte
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("target error code %d", e.Code)
}

// wireReply renders the error as the RSP "E<hh>" reply body.
func (e *TargetError) wireReply() string {
	return fmt.Sprintf("E%02x", e.Code)
}

// ProtocolError marks a malformed request argument; qXferWindow returns it
// for a bad "offset,length" and the caller replies with an error. The
// codec does not use it: a bad frame surfaces as a checksum-error event
// and is dropped, and the peer is expected to retransmit.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol framing error: " + e.Reason
}
