//go:build rp2040

package main

import (
	"machine"

	"sixstep/config"
	"sixstep/core"
)

var debugUART *machine.UART

// InitDebugUART routes core.DebugPrintln to UART0 on GPIO0 (TX) and
// GPIO1 (RX) at 115200 baud
func InitDebugUART(enabled bool) {
	debugUART = machine.UART0
	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.Pin(config.DebugTXPin),
		RX:       machine.Pin(config.DebugRXPin),
	})
	if err != nil {
		return
	}

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(enabled)
	core.DebugPrintln("=== sixstep rp2040 ===")
}
