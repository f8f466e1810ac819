package commutation

// Channel is one complementary PWM output pair (high and low side of a
// half-bridge). Implementations arrive fully configured: pins, dead-time and
// center-aligned mode are the platform's concern, never the sequencer's.
type Channel interface {
	// SetDuty sets the compare value of the pair. The value is always
	// within the range the channel reported when the table was built.
	SetDuty(d Duty)

	// Enable drives the pair with the current duty
	Enable()

	// Disable turns both switches off, leaving the phase floating
	Disable()
}

// TickSource is the periodic timer that invokes Sequencer.Tick
type TickSource interface {
	// Ack clears the timer-expiry condition that caused the current tick
	Ack()
}

// CycleMarker is notified at the start of every electrical cycle.
// Mark runs in interrupt context and must not block.
type CycleMarker interface {
	Mark()
}
