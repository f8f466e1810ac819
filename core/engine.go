package core

import (
	"sixstep/commutation"
	"sixstep/config"
)

// SetupCommutation builds the commutation engine for drive on the
// registered bridge driver: it configures the bridge, builds the table,
// creates the sequencer on src and registers the commutation commands.
// The caller hooks the returned sequencer's Tick to src.
func SetupCommutation(drive *config.Drive, src commutation.TickSource) (*commutation.Sequencer, error) {
	if err := drive.Validate(); err != nil {
		return nil, err
	}
	pattern, err := drive.PatternValue()
	if err != nil {
		return nil, err
	}

	drv := MustBridge()
	channels, err := drv.ConfigureBridge(drive)
	if err != nil {
		return nil, err
	}

	table, err := commutation.Build(drv.MaxDuty(), pattern)
	if err != nil {
		return nil, err
	}

	seq, err := commutation.NewSequencer(table, channels[0], channels[1], channels[2], src)
	if err != nil {
		return nil, err
	}
	if !drive.AutoStartEnabled() {
		seq.Halt()
	}

	InitCommutationCommands(seq, CommutationInfo{
		Pattern:    pattern,
		MaxDuty:    drv.MaxDuty(),
		TickHz:     drive.TickHz,
		DeadtimeNs: drive.DeadtimeNs,
	})

	DebugPrintln("[commutation] " + pattern.String() +
		" max_duty=" + utoa(uint32(drv.MaxDuty())) +
		" tick_hz=" + utoa(drive.TickHz))
	return seq, nil
}
