package gdbserver

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/T-J-Teru/riscv-gdbserver/trace"
)

// scriptedTarget is a fakeTarget whose Resume call is driven by the test,
// so engine tests can exercise the resume/stop-reply path without pulling
// in a real instruction-set simulator.
type scriptedTarget struct {
	fakeTarget
	resume       func(ctx context.Context) (StopReason, error)
	lastRegWrite map[int]uint64
}

func (s *scriptedTarget) Resume(ctx context.Context, mode ResumeMode, timeout int64) (StopReason, error) {
	return s.resume(ctx)
}

func (s *scriptedTarget) WriteRegister(n int, value uint64) (int, error) {
	if s.lastRegWrite == nil {
		s.lastRegWrite = make(map[int]uint64)
	}
	s.lastRegWrite[n] = value
	return 4, nil
}

func newTestLogger() *trace.Logger {
	return trace.NewLogger(trace.NewFlags())
}

// rspClient wraps one end of a net.Pipe with the helpers an RSP peer
// needs, grounded on SeleniaProject-Orizon's server_test.go encodeRSP/
// readReply pair.
type rspClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func newRspClient(t *testing.T, conn net.Conn) *rspClient {
	return &rspClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *rspClient) send(payload string) {
	c.t.Helper()
	if _, err := c.conn.Write(EncodeFrame([]byte(payload))); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *rspClient) expectAck() {
	c.t.Helper()
	b, err := c.r.ReadByte()
	if err != nil {
		c.t.Fatalf("read ack: %v", err)
	}
	if b != '+' {
		c.t.Fatalf("got %q, want ack", b)
	}
}

// readReply reads one "$...#hh" frame, skipping a leading ack if present.
func (c *rspClient) readReply() string {
	c.t.Helper()
	b, err := c.r.ReadByte()
	if err != nil {
		c.t.Fatalf("read reply: %v", err)
	}
	if b == '+' || b == '-' {
		b, err = c.r.ReadByte()
		if err != nil {
			c.t.Fatalf("read reply: %v", err)
		}
	}
	if b != '$' {
		c.t.Fatalf("got %q, want '$'", b)
	}
	var payload []byte
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			c.t.Fatalf("read reply: %v", err)
		}
		if b == '#' {
			break
		}
		payload = append(payload, b)
	}
	if _, err := c.r.ReadByte(); err != nil { // checksum hi
		c.t.Fatalf("read checksum: %v", err)
	}
	if _, err := c.r.ReadByte(); err != nil { // checksum lo
		c.t.Fatalf("read checksum: %v", err)
	}
	return string(payload)
}

func TestEngineRegisterReadWrite(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	tgt := &fakeTarget{}
	engine := NewEngine(serverConn, tgt, ExitOnKill, newTestLogger())
	done := make(chan error, 1)
	go func() { done <- engine.Run(context.Background()) }()

	client := newRspClient(t, clientConn)
	client.send("p0")
	client.expectAck()
	if got := client.readReply(); got != "00000000" {
		t.Fatalf("p0 reply = %q, want zero register", got)
	}

	client.send("P0=01000000")
	client.expectAck()
	if got := client.readReply(); got != "OK" {
		t.Fatalf("P0 reply = %q, want OK", got)
	}

	client.send("D")
	client.expectAck()
	if got := client.readReply(); got != "OK" {
		t.Fatalf("D reply = %q, want OK", got)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("engine.Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("engine did not exit after detach")
	}
}

func TestEngineMemoryReadWrite(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	tgt := &fakeTarget{}
	engine := NewEngine(serverConn, tgt, ExitOnKill, newTestLogger())
	go func() { _ = engine.Run(context.Background()) }()

	client := newRspClient(t, clientConn)
	client.send("M10,4:deadbeef")
	client.expectAck()
	if got := client.readReply(); got != "OK" {
		t.Fatalf("M reply = %q, want OK", got)
	}

	client.send("m10,4")
	client.expectAck()
	if got := client.readReply(); got != "deadbeef" {
		t.Fatalf("m reply = %q, want deadbeef", got)
	}
}

func TestEngineResumeAndStopReply(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	tgt := &scriptedTarget{
		resume: func(ctx context.Context) (StopReason, error) {
			return StopReason{Kind: StopSoftwareBreak}, nil
		},
	}
	engine := NewEngine(serverConn, tgt, ExitOnKill, newTestLogger())
	go func() { _ = engine.Run(context.Background()) }()

	client := newRspClient(t, clientConn)
	client.send("c")
	client.expectAck()
	if got := client.readReply(); got != "S05" {
		t.Fatalf("stop reply = %q, want S05", got)
	}
}

// TestEngineResumeWithAddressSetsPC checks the optional new-PC argument of
// "c addr"/"s addr" (and their vCont equivalents) is honored, not discarded.
func TestEngineResumeWithAddressSetsPC(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	tgt := &scriptedTarget{
		resume: func(ctx context.Context) (StopReason, error) {
			return StopReason{Kind: StopSoftwareBreak}, nil
		},
	}
	engine := NewEngine(serverConn, tgt, ExitOnKill, newTestLogger())
	go func() { _ = engine.Run(context.Background()) }()

	client := newRspClient(t, clientConn)
	client.send("c1000")
	client.expectAck()
	if got := client.readReply(); got != "S05" {
		t.Fatalf("stop reply = %q, want S05", got)
	}
	if got := tgt.lastRegWrite[pcRegNum]; got != 0x1000 {
		t.Fatalf("pc register write = 0x%x, want 0x1000", got)
	}

	client.send("vCont;s2000")
	client.expectAck()
	if got := client.readReply(); got != "S05" {
		t.Fatalf("stop reply = %q, want S05", got)
	}
	if got := tgt.lastRegWrite[pcRegNum]; got != 0x2000 {
		t.Fatalf("pc register write = 0x%x, want 0x2000", got)
	}
}

func TestEngineInterruptDuringResumeCancelsContext(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	canceled := make(chan struct{}, 1)
	tgt := &scriptedTarget{
		resume: func(ctx context.Context) (StopReason, error) {
			<-ctx.Done()
			canceled <- struct{}{}
			return StopReason{Kind: StopInterrupted}, nil
		},
	}
	engine := NewEngine(serverConn, tgt, ExitOnKill, newTestLogger())
	go func() { _ = engine.Run(context.Background()) }()

	client := newRspClient(t, clientConn)
	client.send("c")
	client.expectAck()

	if _, err := clientConn.Write([]byte{0x03}); err != nil {
		t.Fatalf("write interrupt: %v", err)
	}

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("resume context was never canceled")
	}

	if got := client.readReply(); got != "S05" {
		t.Fatalf("stop reply = %q, want S05", got)
	}
}
