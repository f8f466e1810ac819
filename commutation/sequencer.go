package commutation

import (
	"errors"
	"sync/atomic"
)

var ErrNilChannel = errors.New("commutation: nil channel or tick source")

// Phase indexes the three output channels
const (
	PhaseU = iota
	PhaseV
	PhaseW
)

// Sequencer steps through a commutation table, one step per tick.
//
// Tick is the only mutator of the channels and the step counter once the
// timer interrupt is running. Start, Stop, Halt, SetIndex and State may be
// called from the main loop; they synchronise with Tick through a critical
// section or atomics.
type Sequencer struct {
	table    Table
	channels [3]Channel
	source   TickSource
	marker   CycleMarker

	index   uint32 // next step counter value, used mod StepCount
	running uint32 // atomic bool
	active  uint32 // applied step + 1, 0 while floating
}

// State is a snapshot of the sequencer
type State struct {
	Running bool
	Index   uint32 // counter value the next tick will apply
	Active  bool   // false while all phases float
	Step    uint8  // table index currently applied (valid when Active)
	Duty    Step   // duties currently applied
}

// NewSequencer takes ownership of the three channels. The sequencer starts
// running at step 0; call Stop or Halt before the first tick to keep the
// bridge floating.
func NewSequencer(table Table, u, v, w Channel, src TickSource) (*Sequencer, error) {
	if u == nil || v == nil || w == nil || src == nil {
		return nil, ErrNilChannel
	}
	return &Sequencer{
		table:    table,
		channels: [3]Channel{u, v, w},
		source:   src,
		running:  1,
	}, nil
}

// SetMarker installs the cycle marker (nil disables it). Call before the
// tick interrupt is enabled.
func (s *Sequencer) SetMarker(m CycleMarker) {
	s.marker = m
}

// Table returns a copy of the commutation table
func (s *Sequencer) Table() Table {
	return s.table
}

// Tick applies the current step and advances the counter. It is called
// once per timer expiry, from the timer interrupt.
func (s *Sequencer) Tick() {
	state := disableInterrupts()

	if atomic.LoadUint32(&s.running) == 0 {
		s.float()
	} else {
		i := atomic.LoadUint32(&s.index)
		n := i % StepCount
		s.apply(&s.table[n])
		atomic.StoreUint32(&s.active, n+1)
		// Overflow wraps to 0; only the residue is ever used.
		atomic.StoreUint32(&s.index, i+1)
		if n == 0 && s.marker != nil {
			s.marker.Mark()
		}
	}

	s.source.Ack()
	restoreInterrupts(state)
}

// apply writes the duties in u, v, w order. A zero duty floats the phase.
func (s *Sequencer) apply(step *Step) {
	for i, ch := range s.channels {
		d := step[i]
		ch.SetDuty(d)
		if d != 0 {
			ch.Enable()
		} else {
			ch.Disable()
		}
	}
}

func (s *Sequencer) float() {
	for _, ch := range s.channels {
		ch.SetDuty(0)
		ch.Disable()
	}
	atomic.StoreUint32(&s.active, 0)
}

// Start resumes stepping on the next tick from the current counter value
func (s *Sequencer) Start() {
	atomic.StoreUint32(&s.running, 1)
}

// Stop makes the next tick float all phases instead of stepping
func (s *Sequencer) Stop() {
	atomic.StoreUint32(&s.running, 0)
}

// Halt stops the sequencer and floats all phases immediately
func (s *Sequencer) Halt() {
	state := disableInterrupts()
	atomic.StoreUint32(&s.running, 0)
	s.float()
	restoreInterrupts(state)
}

// Running reports whether ticks advance the sequence
func (s *Sequencer) Running() bool {
	return atomic.LoadUint32(&s.running) != 0
}

// SetIndex moves the step counter. The next tick applies table[i % 6].
func (s *Sequencer) SetIndex(i uint32) {
	atomic.StoreUint32(&s.index, i)
}

// State returns a consistent snapshot
func (s *Sequencer) State() State {
	state := disableInterrupts()
	st := State{
		Running: atomic.LoadUint32(&s.running) != 0,
		Index:   atomic.LoadUint32(&s.index),
	}
	if a := atomic.LoadUint32(&s.active); a != 0 {
		st.Active = true
		st.Step = uint8(a - 1)
		st.Duty = s.table[a-1]
	}
	restoreInterrupts(state)
	return st
}
