// Package simriscv is the reference CPU back-end: a pure-Go RV32I/RV64I
// instruction-set simulator wired up as a gdbserver.TargetIface. It plays
// the role GdbSimImpl/gdbsim played in the original server, minus the
// Verilator model it wrapped — there being no RTL to co-simulate here, the
// ISS itself is the model.
package simriscv
