package gdbserver

// SessionState is one of the four states of spec §3/§4.8.
type SessionState int

const (
	Disconnected SessionState = iota
	ConnectedIdle
	ConnectedRunning
	ConnectedAwaitAck
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectedIdle:
		return "connected-idle"
	case ConnectedRunning:
		return "connected-running"
	case ConnectedAwaitAck:
		return "connected-await-ack"
	default:
		return "unknown"
	}
}

// Session holds the per-connection state machine. New code; hand-rolled
// rather than via a state-machine library since no pack repo imports one
// (see DESIGN.md). It also carries the last stop reason so "?" can answer
// without a fresh resume, and whether no-ack mode has been negotiated.
type Session struct {
	state       SessionState
	lastStop    *StopReason
	noAck       bool
	swbreakFeat bool // peer advertised swbreak+ in qSupported
	hwbreakFeat bool
}

// NewSession returns a freshly accepted, idle session.
func NewSession() *Session {
	return &Session{state: ConnectedIdle}
}

func (s *Session) State() SessionState { return s.state }

func (s *Session) enterRunning() { s.state = ConnectedRunning }

func (s *Session) enterIdle(reason StopReason) {
	s.lastStop = &reason
	s.state = ConnectedIdle
}

func (s *Session) detach() { s.state = Disconnected }
