//go:build rp2040

package main

import (
	"machine"
	"sync/atomic"

	"sixstep/core"
)

// buttonDebounceUS ignores contact bounce after an accepted press
const buttonDebounceUS = 50000

var (
	buttonPending uint32 // atomic bool, set by the pin interrupt
	lastPress     uint32
	pressSeen     bool
)

// InitButton arms a rising-edge interrupt on pin. The interrupt only
// raises a flag; the main loop does the work.
func InitButton(pin machine.Pin) error {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	return pin.SetInterrupt(machine.PinRising, func(machine.Pin) {
		atomic.StoreUint32(&buttonPending, 1)
	})
}

// pollButton toggles commutation once per debounced press
func pollButton() {
	if !atomic.CompareAndSwapUint32(&buttonPending, 1, 0) {
		return
	}
	now := core.GetTime()
	if pressSeen && now-lastPress < core.TimerFromUS(buttonDebounceUS) {
		return
	}
	pressSeen = true
	lastPress = now

	core.DebugPrintln("click")
	core.RecordTiming(core.EvtButton, now, 0, 0)
	if err := core.ToggleCommutation(); err != nil {
		core.DebugPrintln("[button] " + err.Error())
	}
}
