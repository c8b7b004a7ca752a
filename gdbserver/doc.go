// Package gdbserver implements a GDB Remote Serial Protocol server that
// drives an arbitrary target through the TargetIface contract. It owns the
// wire format (packet framing, checksums, escaping), the session state
// machine, breakpoint bookkeeping, and the command dispatch loop; it knows
// nothing about how a particular CPU is actually simulated.
package gdbserver
