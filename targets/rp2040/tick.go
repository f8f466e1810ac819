//go:build rp2040

package main

import (
	"device/rp"
	"machine"
	"runtime/interrupt"
)

// tickSlice is the PWM slice used as commutation timer. It drives no
// pins (GPIO 8, 9, 24 and 25 stay free for other functions).
const tickSlice = 4

// PWMTicker fires a handler from the wrap interrupt of a free-running
// PWM slice. Rates below what one wrap can span are reached by counting
// several wraps per tick.
type PWMTicker struct {
	slice   pwmSlice
	every   uint32 // wraps per tick
	wraps   uint32
	handler func()
}

var ticker PWMTicker

// InitTicker programs the tick slice for hz without starting it
func InitTicker(hz uint32) (*PWMTicker, error) {
	div, top, every, err := tickDivider(machine.CPUFrequency(), hz)
	if err != nil {
		return nil, err
	}

	// Out of reset through the machine package, then raw registers
	if err := getPWMPeripheral(tickSlice).Configure(machine.PWMConfig{}); err != nil {
		return nil, err
	}
	t := &ticker
	t.slice = newPWMSlice(tickSlice)
	t.every = every
	t.slice.csr.Set(0)
	t.slice.div.Set(div << 4)
	t.slice.top.Set(top)
	t.slice.ctr.Set(0)

	pwmReg(pwmINTR).Set(1 << tickSlice)
	inte := pwmReg(pwmINTE)
	inte.Set(inte.Get() | 1<<tickSlice)

	intr := interrupt.New(rp.IRQ_PWM_IRQ_WRAP, pwmWrapISR)
	intr.SetPriority(0)
	intr.Enable()
	return t, nil
}

// SetHandler sets the function run on every tick
func (t *PWMTicker) SetHandler(handler func()) {
	t.handler = handler
}

// Start runs the slice counter
func (t *PWMTicker) Start() {
	t.slice.csr.Set(csrEN)
}

// Ack clears the wrap flag of the tick slice
func (t *PWMTicker) Ack() {
	pwmReg(pwmINTR).Set(1 << tickSlice)
}

func pwmWrapISR(interrupt.Interrupt) {
	if pwmReg(pwmINTS).Get()&(1<<tickSlice) == 0 {
		return
	}
	t := &ticker
	t.wraps++
	if t.wraps < t.every || t.handler == nil {
		t.Ack()
		return
	}
	t.wraps = 0
	t.handler()
}
