package simriscv

import "sync/atomic"

// globalCPU is the process-wide weak reference to the currently active
// backend, mirroring original_source/server/main.cpp's global gdbCpu
// pointer and its sc_time_stamp() free function (SystemC calls that during
// a crash handler dump, outside any object it could otherwise reach). Go
// has no SystemC integration to serve, but the same "some ambient code
// outside the request path needs the live core" shape recurs in this
// server's qRcmd "time" command, which reads it through TimeStamp, so the
// pointer is kept for that.
var globalCPU atomic.Pointer[SimBackend]

func setGlobalCPU(b *SimBackend) { globalCPU.Store(b) }

func clearGlobalCPU(b *SimBackend) {
	globalCPU.CompareAndSwap(b, nil)
}

// TimeStamp reports the current backend's notion of elapsed time, in
// simulated nanoseconds since the last cold reset, the same units
// original_source/server/main.cpp's sc_time_stamp() reported. One cycle is
// treated as one nanosecond, since the interpreter has no clock model.
func TimeStamp() float64 {
	b := globalCPU.Load()
	if b == nil {
		return 0
	}
	return float64(b.CycleCount())
}
