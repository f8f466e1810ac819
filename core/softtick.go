package core

import "errors"

var ErrZeroPeriod = errors.New("soft ticker period must be positive")

// SoftTicker calls a tick handler at a fixed period from the cooperative
// timer list. It stands in for a hardware timer interrupt where none is
// available (host simulation, boards without a spare timer) and satisfies
// commutation.TickSource: there is no hardware flag, so Ack only counts.
type SoftTicker struct {
	timer   Timer
	period  uint32
	handler func()
	acks    uint32
	fired   uint32
	active  bool
}

// NewSoftTicker creates a stopped ticker with a period in timer ticks
func NewSoftTicker(period uint32) (*SoftTicker, error) {
	if period == 0 {
		return nil, ErrZeroPeriod
	}
	s := &SoftTicker{period: period}
	s.timer.Handler = s.fire
	return s, nil
}

// SetHandler sets the function run on every period (typically
// Sequencer.Tick). Set it before Start.
func (s *SoftTicker) SetHandler(handler func()) {
	s.handler = handler
}

// Start schedules the first tick one period after now
func (s *SoftTicker) Start(now uint32) {
	if s.active {
		return
	}
	s.active = true
	s.timer.WakeTime = now + s.period
	ScheduleTimer(&s.timer)
}

// Stop removes the ticker from the timer list
func (s *SoftTicker) Stop() {
	if !s.active {
		return
	}
	s.active = false
	CancelTimer(&s.timer)
}

// Ack records that the handler finished the tick
func (s *SoftTicker) Ack() {
	s.acks++
}

// Acks returns the number of acknowledged ticks
func (s *SoftTicker) Acks() uint32 {
	return s.acks
}

// Fired returns the number of periods that elapsed while running
func (s *SoftTicker) Fired() uint32 {
	return s.fired
}

// Period returns the tick period in timer ticks
func (s *SoftTicker) Period() uint32 {
	return s.period
}

func (s *SoftTicker) fire(t *Timer) uint8 {
	s.fired++
	if s.handler != nil {
		s.handler()
	}
	// Keep a fixed rate: the next wake is relative to the last, not to now
	t.WakeTime += s.period
	return SF_RESCHEDULE
}
