package gdbserver

// KillPolicy decides what happens after a 'k' packet, per spec §4.6.
// Modeled as a one-method interface rather than an enum-plus-switch in the
// engine, following the teacher's closure-as-behavior idiom (CancelFunc in
// run.go).
type KillPolicy interface {
	// AfterKill runs the policy's effect and reports whether the engine
	// should keep serving (true) or the session should end (false).
	AfterKill(target TargetIface, matchpoints *MatchpointStore) (keepServing bool, err error)
}

// exitOnKill terminates the process after replying to 'k'. Fits a
// one-shot stdio transport (spec §4.6), matching
// original_source/server/main.cpp's StreamConnection wiring.
type exitOnKill struct{}

func (exitOnKill) AfterKill(TargetIface, *MatchpointStore) (bool, error) {
	return false, nil
}

// ExitOnKill is the KillPolicy for one-shot transports (stdio).
var ExitOnKill KillPolicy = exitOnKill{}

// resetOnKill performs a cold reset and discards matchpoints, remaining in
// Connected-Idle. Fits a long-lived TCP listener (spec §4.6), matching
// original_source/server/main.cpp's RspConnection wiring.
type resetOnKill struct{}

func (resetOnKill) AfterKill(target TargetIface, matchpoints *MatchpointStore) (bool, error) {
	if err := target.Reset(ColdReset); err != nil {
		return true, err
	}
	*matchpoints = *NewMatchpointStore()
	return true, nil
}

// ResetOnKill is the KillPolicy for long-lived transports (TCP).
var ResetOnKill KillPolicy = resetOnKill{}
