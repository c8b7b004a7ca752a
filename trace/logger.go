package trace

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a thin wrapper over a *logrus.Entry, tagged with the trace
// flags that were active when it was built. It is the ambient logging
// collaborator for gdbserver.Engine and simriscv.SimBackend, following
// other_examples/go-delve-delve__gdbserver_conn.go's pattern of carrying a
// *logrus.Entry alongside an RSP connection.
type Logger struct {
	entry *logrus.Entry
	flags *Flags
}

// NewLogger builds a Logger from the active trace flags. --silent/-q (or
// --trace silent) raises the level to ErrorLevel. Any of RSP/Conn/Break/VCD
// raises it to DebugLevel, since Tracef logs through Debugf; area() still
// gates which of those flags actually produce output. Otherwise InfoLevel.
func NewLogger(flags *Flags) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	level := logrus.InfoLevel
	if flags.Has(RSP) || flags.Has(Conn) || flags.Has(Break) || flags.Has(VCD) {
		level = logrus.DebugLevel
	}
	if flags.Has(Silent) {
		level = logrus.ErrorLevel
	}
	base.SetLevel(level)
	return &Logger{entry: logrus.NewEntry(base), flags: flags}
}

// For returns a Logger scoped to a named session, the way a real stub
// tags log lines per connection.
func (l *Logger) For(session string) *Logger {
	return &Logger{entry: l.entry.WithField("session", session), flags: l.flags}
}

func (l *Logger) area(flag Flag) *logrus.Entry {
	if l.flags.Has(flag) {
		return l.entry.WithField("area", string(flag))
	}
	return nil
}

// Tracef logs at DebugLevel, but only when flag is active; this is how
// --trace rsp/conn/break selectively turns on chatter for just the areas
// named, even though NewLogger has raised the base level to DebugLevel.
func (l *Logger) Tracef(flag Flag, format string, args ...interface{}) {
	if e := l.area(flag); e != nil {
		e.Debugf(format, args...)
	}
}

func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
