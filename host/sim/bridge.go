// Package sim runs the drive firmware core on the host: the real
// commutation engine, command set and control link, with recording
// channels in place of the PWM hardware.
package sim

import (
	"errors"
	"sync"

	"sixstep/commutation"
	"sixstep/config"
)

var ErrConfigured = errors.New("sim: bridge already configured")

// PhaseState is the last output requested for one phase
type PhaseState struct {
	Duty    commutation.Duty
	Enabled bool
}

// Phase is a commutation.Channel that records its state
type Phase struct {
	mu     sync.Mutex
	state  PhaseState
	writes uint32
}

func (p *Phase) SetDuty(d commutation.Duty) {
	p.mu.Lock()
	p.state.Duty = d
	p.writes++
	p.mu.Unlock()
}

func (p *Phase) Enable() {
	p.mu.Lock()
	p.state.Enabled = true
	p.mu.Unlock()
}

func (p *Phase) Disable() {
	p.mu.Lock()
	p.state.Enabled = false
	p.mu.Unlock()
}

// State returns the current duty and enable state
func (p *Phase) State() PhaseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Writes returns the number of SetDuty calls
func (p *Phase) Writes() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

// Bridge implements core.BridgeDriver with three recording phases
type Bridge struct {
	phases     [3]*Phase
	maxDuty    commutation.Duty
	configured bool
}

func NewBridge() *Bridge {
	return &Bridge{phases: [3]*Phase{{}, {}, {}}}
}

func (b *Bridge) ConfigureBridge(drive *config.Drive) ([3]commutation.Channel, error) {
	if b.configured {
		return [3]commutation.Channel{}, ErrConfigured
	}
	b.configured = true
	b.maxDuty = commutation.Duty(drive.Period)
	for _, p := range b.phases {
		p.Disable()
	}
	return [3]commutation.Channel{b.phases[0], b.phases[1], b.phases[2]}, nil
}

func (b *Bridge) MaxDuty() commutation.Duty {
	return b.maxDuty
}

// Phases returns the u, v, w phase states
func (b *Bridge) Phases() [3]PhaseState {
	return [3]PhaseState{b.phases[0].State(), b.phases[1].State(), b.phases[2].State()}
}
