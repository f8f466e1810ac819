//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/hd44780i2c"

	"sixstep/commutation"
	"sixstep/config"
	"sixstep/core"
)

const (
	lcdColumns   = 16
	lcdRows      = 2
	lcdRefreshUS = 250000
)

// lcdMessage is one screen of the status display
type lcdMessage struct {
	line1 []byte
	line2 []byte
}

// StatusDisplay shows the engine state on a 16x2 HD44780 behind an I2C
// backpack. Updates go through a channel so the main loop never waits on
// the bus.
type StatusDisplay struct {
	device   hd44780i2c.Device
	messages chan lcdMessage
	seq      *commutation.Sequencer
	pattern  string
	last     screen
	shown    bool
	next     uint32
}

// NewStatusDisplay configures I2C0 and the display
func NewStatusDisplay(cfg config.Display, seq *commutation.Sequencer, pattern commutation.Pattern) (*StatusDisplay, error) {
	sda, err := config.ParsePin(cfg.SDA)
	if err != nil {
		return nil, err
	}
	scl, err := config.ParsePin(cfg.SCL)
	if err != nil {
		return nil, err
	}

	err = machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.Pin(sda),
		SCL: machine.Pin(scl),
	})
	if err != nil {
		return nil, err
	}

	device := hd44780i2c.New(machine.I2C0, uint8(cfg.Address))
	device.Configure(hd44780i2c.Config{Width: lcdColumns, Height: lcdRows})
	device.ClearDisplay()

	d := &StatusDisplay{
		device:   device,
		messages: make(chan lcdMessage, 2),
		seq:      seq,
		pattern:  pattern.String(),
	}
	go d.run()
	return d, nil
}

func (d *StatusDisplay) run() {
	for msg := range d.messages {
		d.device.ClearDisplay()
		d.device.SetCursor(0, 0)
		d.device.Print(truncate(msg.line1))
		d.device.SetCursor(0, 1)
		d.device.Print(truncate(msg.line2))
	}
}

// Refresh queues a new screen when the state changed, at most every
// lcdRefreshUS
func (d *StatusDisplay) Refresh() {
	now := core.GetTime()
	if d.shown && core.TimerIsBefore(now, d.next) {
		return
	}
	scr := screenOf(d.seq.State(), core.IsShutdown())
	if d.shown && scr == d.last {
		return
	}
	d.next = now + core.TimerFromUS(lcdRefreshUS)

	select {
	case d.messages <- lcdMessage{line1: []byte(scr.line1()), line2: []byte(d.pattern)}:
		d.last = scr
		d.shown = true
	default:
		// Channel full - screen dropped
	}
}

func truncate(line []byte) []byte {
	if len(line) > lcdColumns {
		return line[:lcdColumns]
	}
	return line
}
