//go:build rp2040

package main

import (
	"errors"
	"machine"
	"runtime/volatile"
	"unsafe"

	"sixstep/commutation"
	"sixstep/config"
	"sixstep/core"
)

// RP2040 PWM block memory map
const (
	pwmBase        = 0x40050000
	pwmSliceStride = 0x14

	pwmCSR = 0x00
	pwmDIV = 0x04
	pwmCTR = 0x08
	pwmCC  = 0x0C
	pwmTOP = 0x10

	pwmEN   = 0xA0 // global enable, one bit per slice
	pwmINTR = 0xA4 // raw wrap flags, write 1 to clear
	pwmINTE = 0xA8
	pwmINTS = 0xB0

	csrEN        = 1 << 0
	csrPHCorrect = 1 << 1
	csrBInv      = 1 << 3

	pwmDIVOne = 1 << 4 // integer divider 1, fraction 0
)

var (
	ErrPhasePair   = errors.New("bridge: high and low pins must be the A and B channel of one slice")
	ErrSliceShared = errors.New("bridge: PWM slice used twice")
	ErrConfigured  = errors.New("bridge: already configured")
)

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
}

// pwmReg returns a PWM register by offset from the block base
func pwmReg(offset uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(pwmBase) + offset))
}

// pwmSlice is the register view of one PWM slice
type pwmSlice struct {
	num uint8
	csr *volatile.Register32
	div *volatile.Register32
	ctr *volatile.Register32
	cc  *volatile.Register32
	top *volatile.Register32
}

func newPWMSlice(num uint8) pwmSlice {
	base := uintptr(num) * pwmSliceStride
	return pwmSlice{
		num: num,
		csr: pwmReg(base + pwmCSR),
		div: pwmReg(base + pwmDIV),
		ctr: pwmReg(base + pwmCTR),
		cc:  pwmReg(base + pwmCC),
		top: pwmReg(base + pwmTOP),
	}
}

// halfBridge drives one phase: channel A is the high-side gate, channel
// B the inverted low-side gate. The B compare trails A by the dead-time,
// so in phase-correct mode both gates are off for deadtime counts around
// every edge.
type halfBridge struct {
	slice    pwmSlice
	top      uint32
	deadtime uint32
	duty     uint32
	enabled  bool
}

func (h *halfBridge) SetDuty(d commutation.Duty) {
	h.duty = uint32(d)
	if h.enabled {
		h.write()
	}
}

func (h *halfBridge) Enable() {
	h.enabled = true
	h.write()
}

// Disable holds A low and B (inverted, compare above top) low
func (h *halfBridge) Disable() {
	h.enabled = false
	h.slice.cc.Set(floatCompare(h.top))
}

func (h *halfBridge) write() {
	h.slice.cc.Set(driveCompare(h.duty, h.deadtime, h.top))
}

// RP2040Bridge implements core.BridgeDriver on three PWM slices
type RP2040Bridge struct {
	phases  [3]*halfBridge
	top     uint32
	mask    uint32 // slices to enable together
	claimed map[uint8]bool
}

// NewRP2040Bridge creates the bridge driver. reserved lists slices owned
// by other functions (the tick timer).
func NewRP2040Bridge(reserved ...uint8) *RP2040Bridge {
	b := &RP2040Bridge{claimed: make(map[uint8]bool)}
	for _, s := range reserved {
		b.claimed[s] = true
	}
	return b
}

// ConfigureBridge sets up one phase-correct slice per phase with both
// gates off. The slices stay stopped until Start.
func (b *RP2040Bridge) ConfigureBridge(drive *config.Drive) ([3]commutation.Channel, error) {
	var channels [3]commutation.Channel
	if b.mask != 0 {
		return channels, ErrConfigured
	}

	b.top = drive.Period
	deadtime := deadtimeCounts(drive.DeadtimeNs, machine.CPUFrequency())

	var mask uint32
	for i, pins := range drive.Phases() {
		high, err := config.ParsePin(pins.High)
		if err != nil {
			return channels, err
		}
		low, err := config.ParsePin(pins.Low)
		if err != nil {
			return channels, err
		}
		// RP2040: GPIO N is slice (N >> 1) & 7, channel A when even
		if high&1 != 0 || low != high+1 {
			return channels, ErrPhasePair
		}
		sliceNum := (high >> 1) & 0x7
		if b.claimed[sliceNum] {
			return channels, ErrSliceShared
		}
		b.claimed[sliceNum] = true

		// Bring the slice out of reset, then take over its registers
		if err := getPWMPeripheral(sliceNum).Configure(machine.PWMConfig{}); err != nil {
			return channels, err
		}
		slice := newPWMSlice(sliceNum)
		slice.csr.Set(0)
		slice.div.Set(pwmDIVOne)
		slice.top.Set(b.top)
		slice.ctr.Set(0)

		h := &halfBridge{slice: slice, top: b.top, deadtime: deadtime}
		h.Disable()
		slice.csr.Set(csrPHCorrect | csrBInv)

		machine.Pin(high).Configure(machine.PinConfig{Mode: machine.PinPWM})
		machine.Pin(low).Configure(machine.PinConfig{Mode: machine.PinPWM})

		b.phases[i] = h
		channels[i] = h
		mask |= 1 << sliceNum
	}
	b.mask = mask

	core.DebugPrintln("[bridge] top=" + itoa(int(b.top)) + " deadtime=" + itoa(int(deadtime)))
	return channels, nil
}

// MaxDuty is the counter top: a compare of top+1 would hold A on
func (b *RP2040Bridge) MaxDuty() commutation.Duty {
	return commutation.Duty(b.top)
}

// Start enables the phase slices in one write so their counters run in
// step
func (b *RP2040Bridge) Start() {
	en := pwmReg(pwmEN)
	en.Set(en.Get() | b.mask)
}

// getPWMPeripheral returns TinyGo's PWM peripheral for a slice number
func getPWMPeripheral(sliceNum uint8) pwmPeripheral {
	switch sliceNum {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
