//go:build rp2040

package main

import (
	"errors"
	"machine"

	pio "github.com/tinygo-org/pio/rp2-pio"
)

var ErrNoStateMachine = errors.New("strobe: no free PIO state machine")

// PIOStrobe emits a short pulse on a pin at the start of every electrical
// cycle, for triggering a scope. The PIO state machine times the pulse so
// the tick interrupt only pushes one word.
type PIOStrobe struct {
	sm pio.StateMachine
}

// strobeDelay is the extra cycles the pin stays high after the set
const strobeDelay = 31

// NewPIOStrobe loads the pulse program on PIO0 and claims a state machine
func NewPIOStrobe(pin machine.Pin) (*PIOStrobe, error) {
	p := pio.PIO0

	asm := pio.AssemblerV0{SidesetBits: 0}
	program := []uint16{
		asm.Pull(false, true).Encode(),
		asm.Set(pio.SetDestPins, 1).Delay(strobeDelay).Encode(),
		asm.Set(pio.SetDestPins, 0).Encode(),
	}

	offset, err := p.AddProgram(program, -1)
	if err != nil {
		return nil, err
	}

	var sm pio.StateMachine
	claimed := false
	for i := uint8(0); i < 4; i++ {
		sm = p.StateMachine(i)
		if sm.TryClaim() {
			claimed = true
			break
		}
	}
	if !claimed {
		return nil, ErrNoStateMachine
	}

	pin.Configure(machine.PinConfig{Mode: p.PinMode()})

	cfg := pio.DefaultStateMachineConfig()
	cfg.SetSetPins(pin, 1)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	// 1 MHz: the pulse lasts 32 us
	cfg.SetClkDivIntFrac(uint16(machine.CPUFrequency()/1000000), 0)

	sm.Init(offset, cfg)
	sm.SetPindirsConsecutive(pin, 1, true)
	sm.SetPinsConsecutive(pin, 1, false)
	sm.SetEnabled(true)

	return &PIOStrobe{sm: sm}, nil
}

// Mark queues one pulse. A full FIFO drops the pulse instead of blocking
// the tick.
func (s *PIOStrobe) Mark() {
	if s.sm.IsTxFIFOFull() {
		return
	}
	s.sm.TxPut(0)
}
