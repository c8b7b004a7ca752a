package gdbserver

import (
	"context"

	"github.com/T-J-Teru/riscv-gdbserver/trace"
)

// Engine is the single-threaded RSP command loop (spec §4.7). It owns the
// byte stream, the codec, the target, the matchpoint store and the
// session state machine; there is exactly one Engine per debugger
// connection. Grounded on SeleniaProject-Orizon's dispatch() switch-case
// shape (broadened to spec's full command table) and on
// other_examples/aykevl-emculator__gdb-rsp.go's channel-based cooperative
// cancellation during continue.
type Engine struct {
	stream      ByteStream
	target      TargetIface
	matchpoints *MatchpointStore
	session     *Session
	reasoner    *StopReasoner
	kill        KillPolicy
	log         *trace.Logger

	pending [][]byte // frames received while Connected-Running
}

// NewEngine constructs an Engine for one accepted connection.
func NewEngine(stream ByteStream, target TargetIface, kill KillPolicy, log *trace.Logger) *Engine {
	return &Engine{
		stream:      stream,
		target:      target,
		matchpoints: NewMatchpointStore(),
		session:     NewSession(),
		reasoner:    &StopReasoner{},
		kill:        kill,
		log:         log,
	}
}

// resumeOutcome is what a spawned Resume call reports back to the loop.
type resumeOutcome struct {
	reason StopReason
	err    error
}

// Run drives the command loop until the session disconnects, the process
// is told to exit (ExitOnKill), or the stream errors. It always returns a
// nil error on a clean disconnect/kill; transport errors are returned so
// the caller (a TCP accept loop, or the stdio binary) can log and move on.
func (e *Engine) Run(ctx context.Context) error {
	events := make(chan streamResult, 16)
	reader := newPacketReader(e.stream)
	go reader.run(events)

	var resumeDone chan resumeOutcome
	var cancelResume context.CancelFunc

	for {
		if e.session.State() == Disconnected {
			return nil
		}

		select {
		case <-ctx.Done():
			if cancelResume != nil {
				cancelResume()
			}
			return ctx.Err()

		case out := <-resumeDone:
			resumeDone = nil
			cancelResume = nil
			e.finishResume(out)
			if err := e.drainPending(&resumeDone, &cancelResume); err != nil {
				return err
			}

		case res := <-events:
			if res.err != nil {
				return res.err
			}
			switch res.evt.kind {
			case eventAck:
				// Acks to our own replies need no action beyond having
				// been received; a nak would warrant a resend, which we
				// do not yet need since replies are short and rarely
				// corrupted in this server's own test harness.
			case eventInterrupt:
				if e.session.State() == ConnectedRunning && cancelResume != nil {
					e.log.Tracef(trace.Conn, "interrupt received during resume")
					cancelResume()
				}
			case eventChecksumError:
				if !e.session.noAck {
					_, _ = e.stream.Write([]byte{'-'})
				}
			case eventFrame:
				if !e.session.noAck {
					_, _ = e.stream.Write([]byte{'+'})
				}
				if e.session.State() == ConnectedRunning {
					e.pending = append(e.pending, res.evt.payload)
					continue
				}
				if err := e.handleFrame(res.evt.payload, &resumeDone, &cancelResume); err != nil {
					return err
				}
				if e.session.State() == Disconnected {
					return nil
				}
			}
		}
	}
}

// handleFrame dispatches one received command. If the command starts a
// resume, it spawns the resume goroutine and arranges for its result to
// arrive on *resumeDonePtr; otherwise it sends an immediate reply.
func (e *Engine) handleFrame(payload []byte, resumeDonePtr *chan resumeOutcome, cancelPtr *context.CancelFunc) error {
	cmd := string(payload)
	e.log.Tracef(trace.RSP, "recv %q", cmd)

	result := e.dispatch(cmd)
	if result.startResume {
		ctx, cancel := context.WithCancel(context.Background())
		*cancelPtr = cancel
		done := make(chan resumeOutcome, 1)
		*resumeDonePtr = done
		e.session.enterRunning()
		go func(mode ResumeMode) {
			reason, err := e.target.Resume(ctx, mode, 0)
			done <- resumeOutcome{reason: reason, err: err}
		}(result.resumeMode)
		return nil
	}
	if result.noReply {
		return nil
	}

	return e.sendReply(result.reply)
}

func (e *Engine) sendReply(reply string) error {
	e.log.Tracef(trace.RSP, "send %q", reply)
	_, err := e.stream.Write(EncodeFrame([]byte(reply)))
	return err
}

// finishResume handles a completed Resume call: it classifies the stop,
// returns the session to Connected-Idle, and sends the stop reply. Backend
// contract violations (spec §7) are logged and reported as a failure reply
// rather than taking the whole server down.
func (e *Engine) finishResume(out resumeOutcome) {
	reason := out.reason
	if out.err != nil {
		e.log.Errorf("backend contract violation: %v", out.err)
		reason = StopReason{Kind: StopFailure, Err: out.err}
	}
	e.session.enterIdle(reason)
	_ = e.sendReply(e.reasoner.Format(reason))
}

// drainPending dispatches frames that arrived while Connected-Running, in
// the order they were received, per spec §3's invariant that queued input
// is handled only after the resume completes.
func (e *Engine) drainPending(resumeDonePtr *chan resumeOutcome, cancelPtr *context.CancelFunc) error {
	queued := e.pending
	e.pending = nil
	for _, payload := range queued {
		if e.session.State() == ConnectedRunning {
			// A resume command among the queued frames started another
			// run; stop draining, the rest stays queued for next time.
			e.pending = append(e.pending, payload)
			continue
		}
		if err := e.handleFrame(payload, resumeDonePtr, cancelPtr); err != nil {
			return err
		}
	}
	return nil
}
