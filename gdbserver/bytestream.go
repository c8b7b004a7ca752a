package gdbserver

import (
	"bufio"
	"io"
)

// ByteStream is the reliable ordered octet stream to/from the debugger.
// A TCP connection and a pair of stdin/stdout pipes both satisfy it, per
// spec §6; the engine does not care which.
type ByteStream interface {
	io.Reader
	io.Writer
}

// streamResult is what the packet reader goroutine hands back to the
// engine: either a decoded event or a terminal read error.
type streamResult struct {
	evt decodeEvent
	err error
}

// packetReader owns the read half of a ByteStream and continuously feeds
// it through a Decoder, publishing every event on a channel. Running this
// in its own goroutine is what lets the engine observe a bare 0x03
// interrupt while a Resume call is in flight, per spec §5's requirement
// that the peer's input remain observable during resume. Grounded on
// other_examples/aykevl-emculator__gdb-rsp.go's gdbRecvPackets, which pumps
// a bufio.Reader into a channel read by the command-dispatch loop.
type packetReader struct {
	r   *bufio.Reader
	dec *Decoder
}

func newPacketReader(stream ByteStream) *packetReader {
	return &packetReader{
		r:   bufio.NewReaderSize(stream, 4096),
		dec: NewDecoder(),
	}
}

// run feeds bytes into the decoder until the stream errors or ctx-like
// cancellation isn't needed: the caller closes the underlying stream to
// unblock a pending Read. Every produced event (including checksum
// errors, which the caller naks) is sent on events; run returns when the
// stream returns an error, sending that error as the final streamResult.
func (pr *packetReader) run(events chan<- streamResult) {
	for {
		b, err := pr.r.ReadByte()
		if err != nil {
			events <- streamResult{err: err}
			return
		}
		if evt := pr.dec.Feed(b); evt.kind != eventNone {
			events <- streamResult{evt: evt}
		}
	}
}
