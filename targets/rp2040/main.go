//go:build rp2040

package main

import (
	"machine"
	"time"

	"sixstep/commutation"
	"sixstep/config"
	"sixstep/core"
	"sixstep/protocol"
)

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// Debug counters
	messagesReceived uint32
	messagesSent     uint32
	msgerrors        uint32

	// USB connection state tracking
	lastUSBActivity          uint64 // Last time we successfully read/wrote USB data
	lastWriteSuccess         uint64 // Last time we successfully wrote USB data
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// CRITICAL: Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	drive := config.Default()

	// Initialize USB CDC immediately
	InitUSB()
	InitDebugUART(drive.Debug)

	// Initialize clock
	InitClock()

	// Initialize core commands
	core.InitCoreCommands()

	// The bridge never takes the tick timer's slice
	bridge := NewRP2040Bridge(tickSlice)
	core.SetBridgeDriver(bridge)

	tick, err := InitTicker(drive.TickHz)
	if err != nil {
		fatal(err)
	}
	seq, err := core.SetupCommutation(drive, tick)
	if err != nil {
		fatal(err)
	}
	tick.SetHandler(seq.Tick)

	if drive.Strobe != "" {
		pin, _ := config.ParsePin(drive.Strobe)
		strobe, err := NewPIOStrobe(machine.Pin(pin))
		if err != nil {
			core.DebugPrintln("[strobe] " + err.Error())
		} else {
			seq.SetMarker(strobe)
		}
	}

	if drive.Button != "" {
		pin, _ := config.ParsePin(drive.Button)
		if err := InitButton(machine.Pin(pin)); err != nil {
			core.DebugPrintln("[button] " + err.Error())
		}
	}

	var display *StatusDisplay
	if drive.Display.Enabled {
		pattern, _ := drive.PatternValue()
		display, err = NewStatusDisplay(drive.Display, seq, pattern)
		if err != nil {
			core.DebugPrintln("[display] " + err.Error())
			display = nil
		}
	}

	// Build and cache dictionary after all commands registered
	core.GetGlobalDictionary().BuildDictionary()

	// Create buffers
	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	// Create transport with a command handler and reset callback
	transport = protocol.NewTransport(outputBuffer, handleCommand)
	transport.SetResetCallback(func() {
		// Clear buffers on host reset
		inputBuffer.Reset()
		outputBuffer.Reset()

		core.ResetFirmwareState() // Clear the shutdown flag and config state
		core.RecordTiming(core.EvtHostSync, core.GetTime(), 0, 0)
	})
	// Send ACKs before the responses they precede
	transport.SetFlushCallback(func() {
		writeUSB()
	})
	core.SetGlobalTransport(transport)

	// Watchdog reset handles USB re-enumeration better than SYSRESETREQ
	core.SetResetHandler(func() {
		// Outputs float before the chip goes down
		seq.Halt()
		err = machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
		if err != nil {
			return
		}
		err = machine.Watchdog.Start()
		if err != nil {
			return
		}
		// Wait for reset (should happen in ~1ms)
		for {
			time.Sleep(1 * time.Millisecond)
		}
	})

	// Phase slices first so the first tick finds the counters running
	bridge.Start()
	tick.Start()

	// Start USB reader goroutine
	go usbReaderLoop()

	// Main loop - start immediately
	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					// Clear buffers and continue
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			// Update system time from hardware
			UpdateSystemTime()

			// Process incoming messages
			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
				messagesReceived++
			}

			// Write outgoing USB data
			result := outputBuffer.Result()
			if len(result) > 0 {
				writeUSB()
				messagesSent++
			}

			// Check for pending reset after all messages sent
			// This ensures the ACK has been transmitted before reset
			core.CheckPendingReset()

			// Process scheduled timers
			core.ProcessTimers()

			pollButton()
			if display != nil {
				display.Refresh()
			}
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// fatal floats the bridge and blinks the LED forever
func fatal(err error) {
	core.DebugPrintln("[fatal] " + err.Error())
	core.TryShutdown("setup failed")

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(400 * time.Millisecond)
	}
}

// usbReaderLoop runs in a goroutine to continuously read USB data
func usbReaderLoop() {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			// Restart the reader loop
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		available := USBAvailable()
		if available > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// If we were disconnected and now receiving data, reset the state for reconnection
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				core.ResetFirmwareState() // Clear the shutdown flag and config state
				messagesReceived = 0
				messagesSent = 0
				consecutiveWriteFailures = 0
			}

			// Update activity timestamp
			lastUSBActivity = core.GetUptime()

			written := inputBuffer.Write([]byte{data})
			if written == 0 {
				// Buffer full - error condition
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}

// handleCommand dispatches received commands to the command registry
func handleCommand(cmdID uint16, data *[]byte) error {
	return core.DispatchCommand(cmdID, data)
}

// writeUSB writes available data from output buffer to USB
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}

	// Write all data, handling partial writes
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// No progress - likely disconnect
			consecutiveWriteFailures++
			// After several failures, mark as disconnected and drop stale data
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}

	consecutiveWriteFailures = 0
	lastWriteSuccess = core.GetUptime()
	outputBuffer.Reset()
}

// Compile-time interface checks
var (
	_ core.BridgeDriver       = (*RP2040Bridge)(nil)
	_ commutation.TickSource  = (*PWMTicker)(nil)
	_ commutation.CycleMarker = (*PIOStrobe)(nil)
	_ commutation.Channel     = (*halfBridge)(nil)
)
