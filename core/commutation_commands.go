package core

import (
	"errors"

	"sixstep/commutation"
	"sixstep/protocol"
)

var (
	ErrShutdown     = errors.New("commutation: firmware is shut down")
	ErrNoCommutator = errors.New("commutation: engine not registered")
)

// CommutationInfo describes the fixed engine configuration for the
// dictionary
type CommutationInfo struct {
	Pattern    commutation.Pattern
	MaxDuty    commutation.Duty
	TickHz     uint32
	DeadtimeNs uint32
}

// engine is the single commutation sequencer of the firmware
var engine *commutation.Sequencer

// InitCommutationCommands registers the commutation commands for seq.
// Call it after InitCoreCommands and before BuildDictionary.
func InitCommutationCommands(seq *commutation.Sequencer, info CommutationInfo) {
	engine = seq

	RegisterCommand("commutation_start", "", handleCommutationStart)
	RegisterCommand("commutation_stop", "", handleCommutationStop)
	RegisterCommand("query_commutation", "", handleQueryCommutation)
	RegisterResponse("commutation_state",
		"running=%c active=%c index=%u step=%c u=%u v=%u w=%u")

	RegisterConstant("PWM_MAX_DUTY", uint32(info.MaxDuty))
	RegisterConstant("COMMUTATION_PATTERN", info.Pattern.String())
	RegisterConstant("TICK_HZ", info.TickHz)
	RegisterConstant("DEADTIME_NS", info.DeadtimeNs)
	RegisterEnumeration("pattern", commutation.PatternNames())

	RegisterShutdownHandler(haltCommutation)
}

// StartCommutation resumes stepping. It is refused while shut down.
func StartCommutation() error {
	if engine == nil {
		return ErrNoCommutator
	}
	if IsShutdown() {
		return ErrShutdown
	}
	engine.Start()
	st := engine.State()
	RecordTiming(EvtStart, GetTime(), st.Index, 0)
	DebugPrintln("[commutation] start at index " + utoa(st.Index))
	return nil
}

// StopCommutation floats the bridge from the next tick on
func StopCommutation() error {
	if engine == nil {
		return ErrNoCommutator
	}
	engine.Stop()
	st := engine.State()
	RecordTiming(EvtStop, GetTime(), st.Index, 0)
	DebugPrintln("[commutation] stop at index " + utoa(st.Index))
	return nil
}

// ToggleCommutation starts a stopped engine or stops a running one
func ToggleCommutation() error {
	if engine == nil {
		return ErrNoCommutator
	}
	if engine.Running() {
		return StopCommutation()
	}
	return StartCommutation()
}

// haltCommutation floats all phases now, without waiting for a tick
func haltCommutation() {
	if engine == nil {
		return
	}
	engine.Halt()
	RecordTiming(EvtHalt, GetTime(), engine.State().Index, 0)
}

func handleCommutationStart(data *[]byte) error {
	return StartCommutation()
}

func handleCommutationStop(data *[]byte) error {
	return StopCommutation()
}

func handleQueryCommutation(data *[]byte) error {
	if engine == nil {
		return ErrNoCommutator
	}
	st := engine.State()

	SendResponse("commutation_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolToUint(st.Running))
		protocol.EncodeVLQUint(output, boolToUint(st.Active))
		protocol.EncodeVLQUint(output, st.Index)
		protocol.EncodeVLQUint(output, uint32(st.Step))
		protocol.EncodeVLQUint(output, uint32(st.Duty[commutation.PhaseU]))
		protocol.EncodeVLQUint(output, uint32(st.Duty[commutation.PhaseV]))
		protocol.EncodeVLQUint(output, uint32(st.Duty[commutation.PhaseW]))
	})
	return nil
}
