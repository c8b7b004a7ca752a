package gdbserver

import "testing"

func feedAll(t *testing.T, d *Decoder, wire []byte) decodeEvent {
	t.Helper()
	var last decodeEvent
	for _, b := range wire {
		evt := d.Feed(b)
		if evt.kind != eventNone {
			last = evt
		}
	}
	return last
}

func TestDecoderPlainFrame(t *testing.T) {
	wire := EncodeFrame([]byte("g"))
	d := NewDecoder()
	evt := feedAll(t, d, wire)
	if evt.kind != eventFrame {
		t.Fatalf("got kind %v, want eventFrame", evt.kind)
	}
	if string(evt.payload) != "g" {
		t.Fatalf("got payload %q, want %q", evt.payload, "g")
	}
}

func TestDecoderEscapedPayload(t *testing.T) {
	payload := []byte("a}$b#c*d")
	wire := EncodeFrame(payload)
	d := NewDecoder()
	evt := feedAll(t, d, wire)
	if evt.kind != eventFrame {
		t.Fatalf("got kind %v, want eventFrame", evt.kind)
	}
	if string(evt.payload) != string(payload) {
		t.Fatalf("got payload %q, want %q", evt.payload, payload)
	}
}

func TestDecoderRLEExpansion(t *testing.T) {
	// "a*<n>" expands to 'a' plus n-rleBase more copies; n=34 ('"') gives 6
	// in all, and 34 isn't one of the must-escape bytes so it needs no encoding.
	raw := []byte{'a', '*', '"'}
	wire := []byte{'$'}
	wire = append(wire, raw...)
	sum := checksum(raw)
	wire = append(wire, '#')
	wire = append(wire, hexByte(sum)...)

	d := NewDecoder()
	evt := feedAll(t, d, wire)
	if evt.kind != eventFrame {
		t.Fatalf("got kind %v, want eventFrame", evt.kind)
	}
	want := "aaaaaa"
	if string(evt.payload) != want {
		t.Fatalf("got payload %q, want %q", evt.payload, want)
	}
}

func TestDecoderBadChecksum(t *testing.T) {
	wire := EncodeFrame([]byte("g"))
	wire[len(wire)-1] ^= 0xf // corrupt the low checksum nibble
	d := NewDecoder()
	evt := feedAll(t, d, wire)
	if evt.kind != eventChecksumError {
		t.Fatalf("got kind %v, want eventChecksumError", evt.kind)
	}
}

func TestDecoderAckNakInterrupt(t *testing.T) {
	d := NewDecoder()
	if evt := d.Feed('+'); evt.kind != eventAck || !evt.ackOK {
		t.Fatalf("got %+v, want ack ok", evt)
	}
	if evt := d.Feed('-'); evt.kind != eventAck || evt.ackOK {
		t.Fatalf("got %+v, want ack !ok", evt)
	}
	if evt := d.Feed(0x03); evt.kind != eventInterrupt {
		t.Fatalf("got %+v, want eventInterrupt", evt)
	}
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	payload := []byte("T05thread:p1.1;swbreak:;")
	wire := EncodeFrame(payload)
	if wire[0] != '$' || wire[len(wire)-3] != '#' {
		t.Fatalf("malformed frame: %q", wire)
	}
	d := NewDecoder()
	evt := feedAll(t, d, wire)
	if evt.kind != eventFrame || string(evt.payload) != string(payload) {
		t.Fatalf("round trip failed: %+v", evt)
	}
}
